// Package uow implements the unit of work pattern on top of Bun.
//
// A UnitOfWork hands out one repository per entity type. Repositories read
// directly from the database and stage writes; SaveChanges writes the staged
// changes, optionally inside a single transaction:
//
//	u := uow.New(db, uow.WithLogger(database.NewLogger("uow")))
//	defer u.Close()
//
//	mentors := uow.GetRepository[model.MentorProfile](u)
//	if err := mentors.Add(ctx, mentor); err != nil {
//		return err
//	}
//	if _, err := u.SaveChanges(ctx, true); err != nil {
//		return err
//	}
package uow

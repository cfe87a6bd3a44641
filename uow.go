/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package uow

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/tomoncle/uow/database"
	"github.com/tomoncle/uow/repository"
	"github.com/tomoncle/uow/utils"
	"github.com/uptrace/bun"
)

// UnitOfWork owns one Session and the repositories bound to it. Changes
// staged through any of its repositories are written together by
// SaveChanges.
type UnitOfWork struct {
	db      *bun.DB
	session *repository.Session
	logger  database.Logger
	clock   func() time.Time
	ownsDB  bool

	mu    sync.RWMutex
	repos map[reflect.Type]any

	closeOnce sync.Once
	closeErr  error
}

type Option func(*UnitOfWork)

// WithLogger sets the logger shared by the unit of work and its repositories.
func WithLogger(logger database.Logger) Option {
	return func(u *UnitOfWork) { u.logger = logger }
}

// WithClock sets the time source used for soft-delete timestamps.
func WithClock(clock func() time.Time) Option {
	return func(u *UnitOfWork) { u.clock = clock }
}

// WithOwnedDB makes Close also close the database handle.
func WithOwnedDB() Option {
	return func(u *UnitOfWork) { u.ownsDB = true }
}

// New returns a unit of work over db. The handle is shared and left open on
// Close unless WithOwnedDB is given.
func New(db *bun.DB, opts ...Option) *UnitOfWork {
	u := &UnitOfWork{
		db:    db,
		clock: time.Now,
		repos: make(map[reflect.Type]any),
	}
	for _, opt := range opts {
		opt(u)
	}
	if u.logger == nil {
		u.logger = database.NopLogger()
	}
	u.session = repository.NewSession(db, u.logger, u.clock)
	return u
}

func (u *UnitOfWork) DB() *bun.DB { return u.db }

func (u *UnitOfWork) Session() *repository.Session { return u.session }

// GetRepository returns the repository for T, creating it on first use.
// Every call for the same T on the same unit of work returns the same
// instance, including under concurrent first access.
func GetRepository[T any](u *UnitOfWork) repository.Repository[T] {
	typ := reflect.TypeOf((*T)(nil)).Elem()

	u.mu.RLock()
	r, ok := u.repos[typ]
	u.mu.RUnlock()
	if ok {
		return r.(repository.Repository[T])
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if r, ok := u.repos[typ]; ok {
		return r.(repository.Repository[T])
	}
	repo := repository.NewRepository[T](u.session)
	u.repos[typ] = repo
	return repo
}

// GetLenientRepository returns the error-collapsing view of the cached
// repository for T.
func GetLenientRepository[T any](u *UnitOfWork) *repository.Lenient[T] {
	return repository.NewLenient[T](GetRepository[T](u))
}

// HasChanges reports whether any change is staged.
func (u *UnitOfWork) HasChanges() bool { return u.session.HasChanges() }

// Discard drops all staged changes and forgets tracked entities.
func (u *UnitOfWork) Discard() { u.session.Discard() }

// SaveChanges writes every staged change and returns the number of affected
// rows. Without a transaction the statements run one by one and those that
// succeeded before a failure stay applied. With a transaction either all of
// them are committed or none is; a failure is reported as KindTransaction.
// Staged changes that were not persisted remain staged.
func (u *UnitOfWork) SaveChanges(ctx context.Context, useTransaction bool) (int64, error) {
	const op = "SaveChanges"
	if u.session.Closed() {
		return 0, &repository.Error{Op: op, Kind: repository.KindClosed, Err: repository.ErrSessionClosed}
	}
	if !u.session.HasChanges() {
		return 0, nil
	}

	start := time.Now()
	pending := u.session.Pending()
	if !useTransaction {
		res, err := u.session.Flush(ctx, u.db)
		u.session.AcceptChanges(res.Applied)
		if err != nil {
			u.logger.Warn("Save failed", "applied", res.Applied, "pending", pending, "error", err)
			return res.Affected, err
		}
		u.logger.Debug("Changes saved", "entries", pending, "affected", res.Affected, "elapsed", utils.Elapsed(start))
		return res.Affected, nil
	}

	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, repository.TransactionError(op, err)
	}
	var committed bool
	defer func(tx bun.Tx) {
		if !committed {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				u.logger.Error("Failed to rollback transaction", "error", rollbackErr)
			} else {
				u.logger.Warn("Transaction rolled back", "pending", pending)
			}
		}
	}(tx)

	res, err := u.session.Flush(ctx, tx)
	if err != nil {
		return 0, repository.TransactionError(op, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, repository.TransactionError(op, err)
	}
	committed = true
	u.session.AcceptChanges(-1)

	u.logger.Debug("Transaction committed", "entries", pending, "affected", res.Affected, "elapsed", utils.Elapsed(start))
	return res.Affected, nil
}

// TrySaveChanges reports true only when saving affected at least one row.
// A failure and a save that changed nothing both yield false.
func (u *UnitOfWork) TrySaveChanges(ctx context.Context, useTransaction bool) bool {
	n, err := u.SaveChanges(ctx, useTransaction)
	if err != nil {
		u.logger.Debug("Save error swallowed", "kind", repository.KindOf(err).String(), "error", err)
		return false
	}
	return n > 0
}

// Close discards staged changes and closes the session so that later
// repository calls fail with ErrSessionClosed. It closes the database only
// when the unit of work owns it. Calling Close again does nothing.
func (u *UnitOfWork) Close() error {
	u.closeOnce.Do(func() {
		u.session.Close()
		if u.ownsDB && u.db != nil {
			u.closeErr = u.db.Close()
		}
	})
	return u.closeErr
}

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

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/tomoncle/uow/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

type baseRepositoryImpl[T any] struct {
	db      *bun.DB
	session *Session
	desc    *Descriptor
}

// NewRepository returns a repository for T bound to session.
func NewRepository[T any](session *Session) Repository[T] {
	return &baseRepositoryImpl[T]{
		db:      session.DB(),
		session: session,
		desc:    DescriptorOf[T](session.DB()),
	}
}

func (r *baseRepositoryImpl[T]) Descriptor() *Descriptor { return r.desc }

func (r *baseRepositoryImpl[T]) Session() *Session { return r.session }

func (r *baseRepositoryImpl[T]) Dialect() schema.Dialect { return r.db.Dialect() }

func (r *baseRepositoryImpl[T]) NewSelect() *bun.SelectQuery { return r.db.NewSelect() }

func (r *baseRepositoryImpl[T]) storageError(op string, err error) error {
	e := storageError(op, err)
	r.session.logger.Warn("Repository query failed",
		"op", op, "table", r.desc.Table, "sql_error", e.SQL.String(), "error", err)
	return e
}

func (r *baseRepositoryImpl[T]) resolve(entities []*T) []*T {
	out := make([]*T, 0, len(entities))
	for _, e := range entities {
		out = append(out, r.session.attach(r.desc, e).(*T))
	}
	return out
}

func (r *baseRepositoryImpl[T]) list(ctx context.Context, op string, q *bun.SelectQuery, entities *[]*T) ([]*T, error) {
	if err := q.Scan(ctx); err != nil {
		return nil, r.storageError(op, err)
	}
	return r.resolve(*entities), nil
}

func (r *baseRepositoryImpl[T]) GetByID(ctx context.Context, id any, status types.RecordStatus) (*T, error) {
	const op = "GetByID"
	if err := r.session.checkOpen(op); err != nil {
		return nil, err
	}
	values, err := r.desc.keyValues(id)
	if err != nil {
		return nil, newError(op, KindInvalidArgument, fmt.Errorf("%w: %v", ErrInvalidArgument, err))
	}

	if tracked, ok := r.session.lookup(r.desc.identityFor(values)); ok {
		if !r.desc.matches(tracked, status) {
			return nil, newError(op, KindNotFound, ErrNotFound)
		}
		return tracked.(*T), nil
	}

	entity := new(T)
	q := r.desc.wherePK(r.db.NewSelect().Model(entity), values)
	if err := q.Limit(1).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, newError(op, KindNotFound, ErrNotFound)
		}
		return nil, r.storageError(op, err)
	}

	entity = r.session.attach(r.desc, entity).(*T)
	if !r.desc.matches(entity, status) {
		return nil, newError(op, KindNotFound, ErrNotFound)
	}
	return entity, nil
}

func (r *baseRepositoryImpl[T]) GetAll(ctx context.Context, status types.RecordStatus) ([]*T, error) {
	const op = "GetAll"
	if err := r.session.checkOpen(op); err != nil {
		return nil, err
	}
	entities := make([]*T, 0)
	q := r.desc.applyStatus(r.db.NewSelect().Model(&entities), status)
	return r.list(ctx, op, q, &entities)
}

func (r *baseRepositoryImpl[T]) GetPaged(ctx context.Context, pageNumber, pageSize int, status types.RecordStatus) ([]*T, error) {
	const op = "GetPaged"
	if err := r.session.checkOpen(op); err != nil {
		return nil, err
	}
	pageNumber, pageSize = types.ClampPage(pageNumber, pageSize)

	entities := make([]*T, 0)
	q := r.desc.applyStatus(r.db.NewSelect().Model(&entities), status)
	q = r.desc.orderByPK(q).
		Offset((pageNumber - 1) * pageSize).
		Limit(pageSize)
	return r.list(ctx, op, q, &entities)
}

func (r *baseRepositoryImpl[T]) Page(ctx context.Context, pageRequest *types.PageRequest, status types.RecordStatus) (*types.Pagination[T], error) {
	const op = "Page"
	if err := r.session.checkOpen(op); err != nil {
		return nil, err
	}
	if pageRequest == nil {
		pageRequest = types.NewDefaultPageRequest(types.DefaultPage, types.DefaultPageSize)
	}

	entities := make([]*T, 0)
	query := r.desc.applyStatus(r.db.NewSelect().Model(&entities), status)
	if filter := pageRequest.GetFilter(); !filter.IsEmpty() {
		query = query.Where(filter.Schema, filter.Args...)
	}
	pagination := types.NewDefaultPagination[T](pageRequest.GetPage(), pageRequest.GetPageSize())
	total, err := query.Count(ctx)
	if err != nil {
		return nil, r.storageError(op, err)
	}
	if total == 0 {
		return pagination, nil
	}

	if orders := pageRequest.GetOrders(); len(orders) > 0 {
		query = query.Order(orders...)
	} else {
		query = r.desc.orderByPK(query)
	}
	err = query.
		Offset(pageRequest.GetOffset()).
		Limit(pageRequest.GetPageSize()).
		Scan(ctx)
	if err != nil {
		return nil, r.storageError(op, err)
	}
	pagination.Total = total
	pagination.Items = r.resolve(entities)
	return pagination, nil
}

func (r *baseRepositoryImpl[T]) GetAllIncluding(ctx context.Context, status types.RecordStatus, relations ...string) ([]*T, error) {
	const op = "GetAllIncluding"
	if err := r.session.checkOpen(op); err != nil {
		return nil, err
	}
	for _, rel := range relations {
		if !r.desc.HasRelation(rel) {
			return nil, newError(op, KindInvalidArgument,
				fmt.Errorf("%w: %s has no relation %q (known: %s)",
					ErrUnknownRelation, r.desc.Table, rel, strings.Join(r.desc.Relations, ", ")))
		}
	}

	entities := make([]*T, 0)
	q := r.desc.applyStatus(r.db.NewSelect().Model(&entities), status)
	for _, rel := range relations {
		q = q.Relation(rel)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, r.storageError(op, err)
	}

	out := make([]*T, 0, len(entities))
	for _, e := range entities {
		tracked := r.session.attach(r.desc, e).(*T)
		if tracked != e {
			r.desc.copyRelations(tracked, e, relations)
		}
		out = append(out, tracked)
	}
	return out, nil
}

func (r *baseRepositoryImpl[T]) Count(ctx context.Context, status types.RecordStatus) (int, error) {
	const op = "Count"
	if err := r.session.checkOpen(op); err != nil {
		return 0, err
	}
	q := r.desc.applyStatus(r.db.NewSelect().Model((*T)(nil)), status)
	n, err := q.Count(ctx)
	if err != nil {
		return 0, r.storageError(op, err)
	}
	return n, nil
}

// Find returns the records matching filter and status. An empty filter
// matches nothing.
func (r *baseRepositoryImpl[T]) Find(ctx context.Context, filter *types.QueryFilter, status types.RecordStatus) ([]*T, error) {
	const op = "Find"
	if err := r.session.checkOpen(op); err != nil {
		return nil, err
	}
	if filter.IsEmpty() {
		return make([]*T, 0), nil
	}
	entities := make([]*T, 0)
	q := r.desc.applyStatus(r.db.NewSelect().Model(&entities), status).
		Where(filter.Schema, filter.Args...)
	return r.list(ctx, op, q, &entities)
}

func (r *baseRepositoryImpl[T]) GetDeleted(ctx context.Context) ([]*T, error) {
	if !r.desc.SoftDelete {
		if err := r.session.checkOpen("GetDeleted"); err != nil {
			return nil, err
		}
		return make([]*T, 0), nil
	}
	return r.GetAll(ctx, types.DeletedOnly)
}

// Restore clears the soft-delete state of a deleted record and stages the
// update.
func (r *baseRepositoryImpl[T]) Restore(ctx context.Context, id any) error {
	const op = "Restore"
	if err := r.session.checkOpen(op); err != nil {
		return err
	}
	if !r.desc.SoftDelete {
		return newError(op, KindNoOp, fmt.Errorf("%w: %s is not soft-deletable", ErrNoOp, r.desc.Table))
	}
	entity, err := r.GetByID(ctx, id, types.All)
	if err != nil {
		return relabel(op, err)
	}
	sd := any(entity).(types.SoftDeletable)
	if !sd.IsDeleted() {
		return newError(op, KindNoOp, fmt.Errorf("%w: record is active", ErrNoOp))
	}
	sd.Restore()
	return r.session.stageUpdate(op, r.desc, []any{entity})
}

func (r *baseRepositoryImpl[T]) Add(ctx context.Context, entity *T) error {
	const op = "Add"
	if entity == nil {
		return newError(op, KindInvalidArgument, fmt.Errorf("%w: nil entity", ErrInvalidArgument))
	}
	return r.session.stageAdd(op, r.desc, []any{entity})
}

func (r *baseRepositoryImpl[T]) AddRange(ctx context.Context, entities []*T) error {
	const op = "AddRange"
	models, err := r.models(op, entities)
	if err != nil {
		return err
	}
	return r.session.stageAdd(op, r.desc, models)
}

func (r *baseRepositoryImpl[T]) Update(ctx context.Context, entity *T) error {
	const op = "Update"
	if entity == nil {
		return newError(op, KindInvalidArgument, fmt.Errorf("%w: nil entity", ErrInvalidArgument))
	}
	return r.session.stageUpdate(op, r.desc, []any{entity})
}

func (r *baseRepositoryImpl[T]) UpdateRange(ctx context.Context, entities []*T) error {
	const op = "UpdateRange"
	models, err := r.models(op, entities)
	if err != nil {
		return err
	}
	return r.session.stageUpdate(op, r.desc, models)
}

// Delete soft-deletes the record when soft is set and the type supports it,
// and stages a physical removal otherwise.
func (r *baseRepositoryImpl[T]) Delete(ctx context.Context, id any, soft bool) error {
	const op = "Delete"
	if err := r.session.checkOpen(op); err != nil {
		return err
	}
	entity, err := r.GetByID(ctx, id, types.All)
	if err != nil {
		return relabel(op, err)
	}
	return r.remove(op, []any{entity}, soft)
}

func (r *baseRepositoryImpl[T]) DeleteRange(ctx context.Context, entities []*T, soft bool) error {
	const op = "DeleteRange"
	models, err := r.models(op, entities)
	if err != nil {
		return err
	}
	if err := r.session.checkOpen(op); err != nil {
		return err
	}
	return r.remove(op, models, soft)
}

func (r *baseRepositoryImpl[T]) remove(op string, models []any, soft bool) error {
	if !soft || !r.desc.SoftDelete {
		return r.session.stageRemove(op, r.desc, models)
	}
	now := r.session.now()
	for _, model := range models {
		if sd := model.(types.SoftDeletable); !sd.IsDeleted() {
			sd.MarkDeleted(now)
		}
	}
	return r.session.stageUpdate(op, r.desc, models)
}

// models rejects nil or empty input and nil elements before anything is
// staged.
func (r *baseRepositoryImpl[T]) models(op string, entities []*T) ([]any, error) {
	if len(entities) == 0 {
		return nil, newError(op, KindInvalidArgument, fmt.Errorf("%w: no entities", ErrInvalidArgument))
	}
	models := make([]any, len(entities))
	for i, e := range entities {
		if e == nil {
			return nil, newError(op, KindInvalidArgument, fmt.Errorf("%w: nil entity at index %d", ErrInvalidArgument, i))
		}
		models[i] = e
	}
	return models, nil
}

// relabel reports err under op, keeping its kind and cause.
func relabel(op string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return &Error{Op: op, Kind: e.Kind, Err: e.Err, SQL: e.SQL}
	}
	return err
}

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

	"github.com/tomoncle/uow/database"
	"github.com/tomoncle/uow/types"
)

// Lenient wraps a Repository and turns every error into a default value:
// nil, an empty slice, zero or false. Not found, no-op and storage failures
// all look the same to its callers; the swallowed error is logged at debug
// level.
type Lenient[T any] struct {
	repo   Repository[T]
	logger database.Logger
}

// NewLenient wraps repo.
func NewLenient[T any](repo Repository[T]) *Lenient[T] {
	return &Lenient[T]{repo: repo, logger: repo.Session().Logger()}
}

// Strict returns the wrapped repository.
func (l *Lenient[T]) Strict() Repository[T] { return l.repo }

func (l *Lenient[T]) swallow(op string, err error) {
	l.logger.Debug("Repository error swallowed",
		"op", op, "table", l.repo.Descriptor().Table, "kind", KindOf(err).String(), "error", err)
}

func (l *Lenient[T]) GetByID(ctx context.Context, id any, status types.RecordStatus) *T {
	entity, err := l.repo.GetByID(ctx, id, status)
	if err != nil {
		l.swallow("GetByID", err)
		return nil
	}
	return entity
}

func (l *Lenient[T]) GetAll(ctx context.Context, status types.RecordStatus) []*T {
	return l.slice("GetAll", func() ([]*T, error) { return l.repo.GetAll(ctx, status) })
}

func (l *Lenient[T]) GetPaged(ctx context.Context, pageNumber, pageSize int, status types.RecordStatus) []*T {
	return l.slice("GetPaged", func() ([]*T, error) { return l.repo.GetPaged(ctx, pageNumber, pageSize, status) })
}

func (l *Lenient[T]) GetAllIncluding(ctx context.Context, status types.RecordStatus, relations ...string) []*T {
	return l.slice("GetAllIncluding", func() ([]*T, error) { return l.repo.GetAllIncluding(ctx, status, relations...) })
}

func (l *Lenient[T]) Find(ctx context.Context, filter *types.QueryFilter, status types.RecordStatus) []*T {
	return l.slice("Find", func() ([]*T, error) { return l.repo.Find(ctx, filter, status) })
}

func (l *Lenient[T]) GetDeleted(ctx context.Context) []*T {
	return l.slice("GetDeleted", func() ([]*T, error) { return l.repo.GetDeleted(ctx) })
}

func (l *Lenient[T]) Count(ctx context.Context, status types.RecordStatus) int {
	n, err := l.repo.Count(ctx, status)
	if err != nil {
		l.swallow("Count", err)
		return 0
	}
	return n
}

func (l *Lenient[T]) Restore(ctx context.Context, id any) bool {
	return l.ok("Restore", l.repo.Restore(ctx, id))
}

func (l *Lenient[T]) Add(ctx context.Context, entity *T) bool {
	return l.ok("Add", l.repo.Add(ctx, entity))
}

func (l *Lenient[T]) AddRange(ctx context.Context, entities []*T) bool {
	return l.ok("AddRange", l.repo.AddRange(ctx, entities))
}

func (l *Lenient[T]) Update(ctx context.Context, entity *T) bool {
	return l.ok("Update", l.repo.Update(ctx, entity))
}

func (l *Lenient[T]) UpdateRange(ctx context.Context, entities []*T) bool {
	return l.ok("UpdateRange", l.repo.UpdateRange(ctx, entities))
}

func (l *Lenient[T]) Delete(ctx context.Context, id any, soft bool) bool {
	return l.ok("Delete", l.repo.Delete(ctx, id, soft))
}

func (l *Lenient[T]) DeleteRange(ctx context.Context, entities []*T, soft bool) bool {
	return l.ok("DeleteRange", l.repo.DeleteRange(ctx, entities, soft))
}

func (l *Lenient[T]) slice(op string, fn func() ([]*T, error)) []*T {
	entities, err := fn()
	if err != nil {
		l.swallow(op, err)
		return make([]*T, 0)
	}
	return entities
}

func (l *Lenient[T]) ok(op string, err error) bool {
	if err != nil {
		l.swallow(op, err)
		return false
	}
	return true
}

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

	"github.com/tomoncle/uow/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// QueryRepository reads entities, folding the soft-delete status into every
// query. Reads go to the database and resolve against the session's
// identity map.
type QueryRepository[T any] interface {
	GetByID(ctx context.Context, id any, status types.RecordStatus) (*T, error)

	GetAll(ctx context.Context, status types.RecordStatus) ([]*T, error)

	GetPaged(ctx context.Context, pageNumber, pageSize int, status types.RecordStatus) ([]*T, error)

	GetAllIncluding(ctx context.Context, status types.RecordStatus, relations ...string) ([]*T, error)

	Count(ctx context.Context, status types.RecordStatus) (int, error)

	Find(ctx context.Context, filter *types.QueryFilter, status types.RecordStatus) ([]*T, error)

	GetDeleted(ctx context.Context) ([]*T, error)
}

// PageQueryRepository defines pagination functionality for listing entities.
type PageQueryRepository[T any] interface {
	Page(ctx context.Context, page *types.PageRequest, status types.RecordStatus) (*types.Pagination[T], error)
}

// CommandRepository stages changes on the session. Nothing reaches the
// database until the owner of the session saves.
type CommandRepository[T any] interface {
	Add(ctx context.Context, entity *T) error
	AddRange(ctx context.Context, entities []*T) error
	Update(ctx context.Context, entity *T) error
	UpdateRange(ctx context.Context, entities []*T) error
	Delete(ctx context.Context, id any, soft bool) error
	DeleteRange(ctx context.Context, entities []*T, soft bool) error
	Restore(ctx context.Context, id any) error
}

// Repository combines reads, pagination and staged writes for one entity
// type and exposes Bun query builders for advanced use cases.
type Repository[T any] interface {
	QueryRepository[T]
	PageQueryRepository[T]
	CommandRepository[T]
	Descriptor() *Descriptor
	Session() *Session
	Dialect() schema.Dialect
	NewSelect() *bun.SelectQuery
}

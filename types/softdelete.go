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

package types

import "time"

const (
	DefaultDeletedColumn   = "deleted"
	DefaultDeletedAtColumn = "deleted_at"
)

// SoftDeletable is implemented by entities that are flagged instead of
// removed. Repositories detect it on the pointer type.
type SoftDeletable interface {
	IsDeleted() bool
	MarkDeleted(at time.Time)
	Restore()
}

// SoftDeleteColumns lets an entity store its flag and timestamp under
// different column names.
type SoftDeleteColumns interface {
	SoftDeleteColumns() (deleted string, deletedAt string)
}

// SoftDelete is meant to be embedded in Bun models:
//
//	type Post struct {
//		ID uuid.UUID `bun:"id,pk"`
//		types.SoftDelete
//	}
type SoftDelete struct {
	Deleted   bool       `bun:"deleted,notnull,default:false" json:"deleted"`
	DeletedAt *time.Time `bun:"deleted_at,nullzero" json:"deleted_at,omitempty"`
}

var (
	_ SoftDeletable     = (*SoftDelete)(nil)
	_ SoftDeleteColumns = (*SoftDelete)(nil)
)

func (s *SoftDelete) IsDeleted() bool { return s.Deleted }

func (s *SoftDelete) MarkDeleted(at time.Time) {
	s.Deleted = true
	at = at.UTC()
	s.DeletedAt = &at
}

func (s *SoftDelete) Restore() {
	s.Deleted = false
	s.DeletedAt = nil
}

func (s *SoftDelete) SoftDeleteColumns() (string, string) {
	return DefaultDeletedColumn, DefaultDeletedAtColumn
}

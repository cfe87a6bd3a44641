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
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/tomoncle/uow/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

var (
	softDeletableType     = reflect.TypeOf((*types.SoftDeletable)(nil)).Elem()
	softDeleteColumnsType = reflect.TypeOf((*types.SoftDeleteColumns)(nil)).Elem()
	descriptors           sync.Map // reflect.Type -> *Descriptor
)

// Descriptor holds what repositories need to know about an entity type. It
// is computed once per type and shared for the life of the process.
type Descriptor struct {
	Type            reflect.Type
	Table           string
	Alias           string
	PrimaryKeys     []string
	Relations       []string
	SoftDelete      bool
	DeletedColumn   string
	DeletedAtColumn string

	table *schema.Table
}

// DescriptorOf returns the cached descriptor of T, building it from Bun's
// table metadata on first use. T must be a struct.
func DescriptorOf[T any](db *bun.DB) *Descriptor {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	if d, ok := descriptors.Load(typ); ok {
		return d.(*Descriptor)
	}
	d, _ := descriptors.LoadOrStore(typ, newDescriptor(db, typ))
	return d.(*Descriptor)
}

func newDescriptor(db *bun.DB, typ reflect.Type) *Descriptor {
	table := db.Table(typ)
	d := &Descriptor{
		Type:  typ,
		Table: table.Name,
		Alias: table.Alias,
		table: table,
	}
	for _, pk := range table.PKs {
		d.PrimaryKeys = append(d.PrimaryKeys, pk.Name)
	}
	for name := range table.Relations {
		d.Relations = append(d.Relations, name)
	}
	sort.Strings(d.Relations)

	ptr := reflect.PointerTo(typ)
	if ptr.Implements(softDeletableType) {
		deleted, deletedAt := types.DefaultDeletedColumn, types.DefaultDeletedAtColumn
		if ptr.Implements(softDeleteColumnsType) {
			deleted, deletedAt = reflect.New(typ).Interface().(types.SoftDeleteColumns).SoftDeleteColumns()
		}
		// The flag must be a mapped column for status filtering to work.
		if table.HasField(deleted) {
			d.SoftDelete = true
			d.DeletedColumn = deleted
			if table.HasField(deletedAt) {
				d.DeletedAtColumn = deletedAt
			}
		}
	}
	return d
}

// HasRelation reports whether path ("Companies" or "Mentor.Companies") names
// a relation reachable from the model.
func (d *Descriptor) HasRelation(path string) bool {
	if path == "" {
		return false
	}
	t := d.table
	for _, name := range strings.Split(path, ".") {
		rel, ok := t.Relations[name]
		if !ok || rel.JoinTable == nil {
			return false
		}
		t = rel.JoinTable
	}
	return true
}

// copyRelations sets the fields of the root relations named in paths on dst
// from src. Both are pointers to the descriptor's type.
func (d *Descriptor) copyRelations(dst, src any, paths []string) {
	dv := reflect.ValueOf(dst).Elem()
	sv := reflect.ValueOf(src).Elem()
	for _, path := range paths {
		root, _, _ := strings.Cut(path, ".")
		rel, ok := d.table.Relations[root]
		if !ok {
			continue
		}
		df, err := dv.FieldByIndexErr(rel.Field.Index)
		if err != nil {
			continue
		}
		sf, err := sv.FieldByIndexErr(rel.Field.Index)
		if err != nil {
			continue
		}
		df.Set(sf)
	}
}

// keyValues normalises an id argument to one value per primary key column.
// Composite keys are passed as []any in PrimaryKeys order.
func (d *Descriptor) keyValues(id any) ([]any, error) {
	if id == nil {
		return nil, fmt.Errorf("%s: nil id", d.Table)
	}
	switch len(d.PrimaryKeys) {
	case 0:
		return nil, fmt.Errorf("%s: model has no primary key", d.Table)
	case 1:
		return []any{id}, nil
	}
	values, ok := id.([]any)
	if !ok || len(values) != len(d.PrimaryKeys) {
		return nil, fmt.Errorf("%s: expected %d key values", d.Table, len(d.PrimaryKeys))
	}
	return values, nil
}

func (d *Descriptor) keyString(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, "|")
}

// identityOf returns the identity of model, a pointer to the entity. Entities
// whose key is still zero are identified by their address.
func (d *Descriptor) identityOf(model any) identity {
	v := reflect.ValueOf(model)
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	values := make([]any, 0, len(d.table.PKs))
	for _, pk := range d.table.PKs {
		fv, err := v.FieldByIndexErr(pk.Index)
		if err != nil || fv.IsZero() {
			return identity{typ: d.Type, key: fmt.Sprintf("@%p", model)}
		}
		values = append(values, fv.Interface())
	}
	if len(values) == 0 {
		return identity{typ: d.Type, key: fmt.Sprintf("@%p", model)}
	}
	return identity{typ: d.Type, key: d.keyString(values)}
}

func (d *Descriptor) identityFor(values []any) identity {
	return identity{typ: d.Type, key: d.keyString(values)}
}

// wherePK adds one equality condition per primary key column.
func (d *Descriptor) wherePK(q *bun.SelectQuery, values []any) *bun.SelectQuery {
	for i, pk := range d.PrimaryKeys {
		q = q.Where("?TableAlias.? = ?", bun.Ident(pk), values[i])
	}
	return q
}

// orderByPK orders by every primary key column ascending.
func (d *Descriptor) orderByPK(q *bun.SelectQuery) *bun.SelectQuery {
	for _, pk := range d.PrimaryKeys {
		q = q.OrderExpr("?TableAlias.? ASC", bun.Ident(pk))
	}
	return q
}

// applyStatus restricts q to the records selected by status. It does nothing
// for types without the soft-delete capability.
func (d *Descriptor) applyStatus(q *bun.SelectQuery, status types.RecordStatus) *bun.SelectQuery {
	if !d.SoftDelete {
		return q
	}
	switch status.Normalize() {
	case types.ActiveOnly:
		return q.Where("?TableAlias.? = ?", bun.Ident(d.DeletedColumn), false)
	case types.DeletedOnly:
		return q.Where("?TableAlias.? = ?", bun.Ident(d.DeletedColumn), true)
	default:
		return q
	}
}

// matches reports whether a loaded entity is selected by status.
func (d *Descriptor) matches(model any, status types.RecordStatus) bool {
	if !d.SoftDelete {
		return true
	}
	sd, ok := model.(types.SoftDeletable)
	if !ok {
		return true
	}
	return status.Matches(sd.IsDeleted())
}

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

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

type ensureOptions struct {
	foreignKeys bool
}

type EnsureOption func(*ensureOptions)

// WithForeignKeys adds FOREIGN KEY constraints for belongs-to and has-one
// relations. Referenced tables must have a lower priority.
func WithForeignKeys() EnsureOption {
	return func(o *ensureOptions) { o.foreignKeys = true }
}

// EnsureTables creates the table of every registered model that does not
// exist yet, in priority order and inside a single transaction. Existing
// tables are left untouched.
func EnsureTables(ctx context.Context, db *bun.DB, registry ModelRegistry, logger Logger, opts ...EnsureOption) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}
	if logger == nil {
		logger = NopLogger()
	}
	var o ensureOptions
	for _, opt := range opts {
		opt(&o)
	}
	instances := registry.Instances()
	if len(instances) == 0 {
		return nil
	}

	start := time.Now()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	var committed bool
	defer func(tx bun.Tx) {
		if !committed {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				logger.Error("Failed to rollback transaction", "error", rollbackErr)
			}
		}
	}(tx)

	if err := createTables(ctx, tx, instances, o); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	logger.Info("Tables ensured", "count", len(instances), "foreign_keys", o.foreignKeys, "elapsed", time.Since(start).Round(time.Microsecond))
	return nil
}

func createTables(ctx context.Context, db bun.IDB, instances []interface{}, o ensureOptions) error {
	for _, model := range instances {
		q := db.NewCreateTable().
			Model(model).
			IfNotExists()
		if o.foreignKeys {
			q = q.WithForeignKeys()
		}
		_, err := q.Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create table %T: %w", model, err)
		}
	}
	return nil
}

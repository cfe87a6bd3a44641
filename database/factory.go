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
)

// Open validates cfg, connects a new manager and, when cfg.Schema.EnsureTables
// is set, creates the tables of models. The caller owns the returned manager
// and must Disconnect it.
func Open(ctx context.Context, cfg *Config, logger Logger, models ...SQLModel) (DatabaseManager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = NopLogger()
	}

	manager := NewDatabaseManager(&cfg.Connection)
	manager.SetLogger(logger)

	if err := manager.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Schema.EnsureTables {
		var opts []EnsureOption
		if cfg.Schema.ForeignKeys {
			opts = append(opts, WithForeignKeys())
		}
		if err := EnsureTables(ctx, manager.GetDB(), NewModelRegistry(models...), logger, opts...); err != nil {
			_ = manager.Disconnect()
			return nil, fmt.Errorf("failed to ensure tables: %w", err)
		}
	}

	logger.Info("Database initialization completed", "type", cfg.Connection.Type)
	return manager, nil
}

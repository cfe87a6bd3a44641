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
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/extra/bundebug"
)

const healthPingTimeout = 5 * time.Second

type defaultDatabaseManager struct {
	config *ConnectionConfig

	mu     sync.RWMutex
	db     *bun.DB
	sqlDB  *sql.DB
	logger Logger

	stopHealth chan struct{}
	healthDone chan struct{}
}

// NewDatabaseManager returns a DatabaseManager backed by Bun. A nil config
// falls back to DefaultConnectionConfig.
func NewDatabaseManager(config *ConnectionConfig) DatabaseManager {
	if config == nil {
		config = DefaultConnectionConfig()
	}
	return &defaultDatabaseManager{
		config: config,
		logger: NopLogger(),
	}
}

// Connect opens the pool, applies pool settings and pings the server. It is
// a no-op when already connected.
func (dm *defaultDatabaseManager) Connect(ctx context.Context) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.db != nil {
		return nil
	}

	if dm.config.ConnectTimeout <= 0 {
		dm.config.ConnectTimeout = 30 * time.Second
	}
	sqlDB, db, err := openDB(dm.config)
	if err != nil {
		return fmt.Errorf("failed to create database connection: %w", err)
	}
	dm.configurePool(sqlDB)
	dm.addHooks(db)

	pingCtx, cancel := context.WithTimeout(ctx, dm.config.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return fmt.Errorf("database connection test failed: %w", err)
	}

	dm.db, dm.sqlDB = db, sqlDB
	if dm.config.HealthCheckInterval > 0 {
		dm.stopHealth = make(chan struct{})
		dm.healthDone = make(chan struct{})
		go dm.healthLoop(dm.config.HealthCheckInterval, dm.stopHealth, dm.healthDone)
	}

	dm.logger.Info("Database connected", "type", dm.config.Type, "host", dm.config.Host, "dbname", dm.config.DBName)
	return nil
}

func (dm *defaultDatabaseManager) addHooks(db *bun.DB) {
	// BUNDEBUG=1 logs failed queries, BUNDEBUG=2 logs everything.
	db.AddQueryHook(bundebug.NewQueryHook(bundebug.FromEnv("BUNDEBUG")))
	if dm.config.EnableQueryLog {
		db.AddQueryHook(NewQueryHook(WithQueryHookVerbose(true)))
	}
	if dm.config.SlowQueryTime > 0 {
		db.AddQueryHook(&slowQueryHook{slowTime: dm.config.SlowQueryTime, logger: dm.logger})
	}
}

func (dm *defaultDatabaseManager) configurePool(sqlDB *sql.DB) {
	// Every connection to ":memory:" opens a fresh database.
	if isMemorySQLite(dm.config) {
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
		sqlDB.SetConnMaxIdleTime(0)
		return
	}
	sqlDB.SetMaxIdleConns(dm.config.MaxIdleConns)
	sqlDB.SetMaxOpenConns(dm.config.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(dm.config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(dm.config.ConnMaxIdleTime)
}

// Disconnect stops the health loop and closes the pool. Calling it on a
// disconnected manager does nothing.
func (dm *defaultDatabaseManager) Disconnect() error {
	dm.mu.Lock()
	stop, done := dm.stopHealth, dm.healthDone
	dm.stopHealth, dm.healthDone = nil, nil
	db, logger := dm.db, dm.logger
	dm.db, dm.sqlDB = nil, nil
	dm.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	if db == nil {
		return nil
	}

	err := db.Close()
	if err != nil {
		logger.Error("Failed to close database connection", "error", err)
	} else {
		logger.Info("Database connection closed")
	}
	return err
}

func (dm *defaultDatabaseManager) Ping(ctx context.Context) error {
	db := dm.GetDB()
	if db == nil {
		return fmt.Errorf("database not connected")
	}
	return db.PingContext(ctx)
}

func (dm *defaultDatabaseManager) GetDB() *bun.DB {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.db
}

func (dm *defaultDatabaseManager) GetSQLDB() *sql.DB {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.sqlDB
}

// HealthCheck pings the database and reports pool usage.
func (dm *defaultDatabaseManager) HealthCheck(ctx context.Context) *HealthStatus {
	dm.mu.RLock()
	db, sqlDB := dm.db, dm.sqlDB
	dm.mu.RUnlock()

	start := time.Now()
	status := &HealthStatus{LastCheckTime: start}
	var err error
	if db == nil {
		err = fmt.Errorf("database not initialized")
	} else {
		pingCtx, cancel := context.WithTimeout(ctx, healthPingTimeout)
		err = db.PingContext(pingCtx)
		cancel()
		status.ResponseTime = time.Since(start)
	}

	if err != nil {
		status.LastError = err.Error()
	} else {
		status.Healthy = true
		status.Connected = true
	}
	if sqlDB != nil {
		stats := sqlDB.Stats()
		status.ActiveConns = stats.InUse
		status.IdleConns = stats.Idle
		status.MaxOpenConns = stats.MaxOpenConnections
	}
	return status
}

func (dm *defaultDatabaseManager) healthLoop(every time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if status := dm.HealthCheck(context.Background()); !status.Healthy {
				dm.currentLogger().Warn("Database health check failed", "error", status.LastError)
			}
		case <-stop:
			return
		}
	}
}

func (dm *defaultDatabaseManager) GetStats() *DBStats {
	sqlDB := dm.GetSQLDB()
	if sqlDB == nil {
		return &DBStats{}
	}
	s := sqlDB.Stats()
	return &DBStats{
		MaxOpenConns:      s.MaxOpenConnections,
		OpenConns:         s.OpenConnections,
		InUse:             s.InUse,
		Idle:              s.Idle,
		WaitCount:         s.WaitCount,
		WaitDuration:      s.WaitDuration,
		MaxIdleClosed:     s.MaxIdleClosed,
		MaxIdleTimeClosed: s.MaxIdleTimeClosed,
		MaxLifetimeClosed: s.MaxLifetimeClosed,
	}
}

func (dm *defaultDatabaseManager) currentLogger() Logger {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.logger
}

func (dm *defaultDatabaseManager) SetLogger(logger Logger) {
	if logger == nil {
		logger = NopLogger()
	}
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.logger = logger
}

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
	"time"

	"github.com/uptrace/bun"
)

// DatabaseManager owns one connection pool and reports its health.
type DatabaseManager interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Ping(ctx context.Context) error
	HealthCheck(ctx context.Context) *HealthStatus
	GetDB() *bun.DB
	GetSQLDB() *sql.DB
	GetStats() *DBStats
	SetLogger(logger Logger)
}

// HealthStatus holds the result of a health check against the database.
type HealthStatus struct {
	Healthy       bool          `json:"healthy"`
	Connected     bool          `json:"connected"`
	ResponseTime  time.Duration `json:"response_time"`
	ActiveConns   int           `json:"active_conns"`
	IdleConns     int           `json:"idle_conns"`
	MaxOpenConns  int           `json:"max_open_conns"`
	LastError     string        `json:"last_error,omitempty"`
	LastCheckTime time.Time     `json:"last_check_time"`
}

// DBStats mirrors database/sql stats returned by the manager.
type DBStats struct {
	MaxOpenConns      int           `json:"max_open_conns"`
	OpenConns         int           `json:"open_conns"`
	InUse             int           `json:"in_use"`
	Idle              int           `json:"idle"`
	WaitCount         int64         `json:"wait_count"`
	WaitDuration      time.Duration `json:"wait_duration"`
	MaxIdleClosed     int64         `json:"max_idle_closed"`
	MaxIdleTimeClosed int64         `json:"max_idle_time_closed"`
	MaxLifetimeClosed int64         `json:"max_lifetime_closed"`
}

// ConnectionConfig describes how to connect to a database and tune its pool.
type ConnectionConfig struct {
	Type                string        `json:"type" yaml:"type" koanf:"type"`       // postgres, mysql, sqlite
	Driver              string        `json:"driver" yaml:"driver" koanf:"driver"` // postgres only: pq (default) or pgx
	Host                string        `json:"host" yaml:"host" koanf:"host"`
	Port                int           `json:"port" yaml:"port" koanf:"port"`
	Username            string        `json:"username" yaml:"username" koanf:"username"`
	Password            string        `json:"password" yaml:"-" koanf:"password"`
	DBName              string        `json:"dbname" yaml:"dbname" koanf:"dbname"`
	SSLMode             string        `json:"sslmode" yaml:"sslmode" koanf:"sslmode"`
	Charset             string        `json:"charset" yaml:"charset" koanf:"charset"`
	MaxIdleConns        int           `json:"max_idle_conns" yaml:"max_idle_conns" koanf:"max_idle_conns"`
	MaxOpenConns        int           `json:"max_open_conns" yaml:"max_open_conns" koanf:"max_open_conns"`
	ConnMaxLifetime     time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime" koanf:"conn_max_lifetime"`
	ConnMaxIdleTime     time.Duration `json:"conn_max_idle_time" yaml:"conn_max_idle_time" koanf:"conn_max_idle_time"`
	ConnectTimeout      time.Duration `json:"connect_timeout" yaml:"connect_timeout" koanf:"connect_timeout"`
	ReadTimeout         time.Duration `json:"read_timeout" yaml:"read_timeout" koanf:"read_timeout"`
	WriteTimeout        time.Duration `json:"write_timeout" yaml:"write_timeout" koanf:"write_timeout"`
	HealthCheckInterval time.Duration `json:"health_check_interval" yaml:"health_check_interval" koanf:"health_check_interval"`
	EnableQueryLog      bool          `json:"enable_query_log" yaml:"enable_query_log" koanf:"enable_query_log"`
	SlowQueryTime       time.Duration `json:"slow_query_time" yaml:"slow_query_time" koanf:"slow_query_time"`
}

// SchemaConfig controls table bootstrap for registered models.
type SchemaConfig struct {
	EnsureTables bool `json:"ensure_tables" yaml:"ensure_tables" koanf:"ensure_tables"`
	ForeignKeys  bool `json:"foreign_keys" yaml:"foreign_keys" koanf:"foreign_keys"`
}

// Config aggregates connection and schema settings. It is always passed
// explicitly; nothing in this module keeps a process-wide copy.
type Config struct {
	Connection ConnectionConfig `json:"connection" yaml:"connection" koanf:"connection"`
	Schema     SchemaConfig     `json:"schema" yaml:"schema" koanf:"schema"`
}

// DefaultConnectionConfig returns a connection config with sensible defaults.
func DefaultConnectionConfig() *ConnectionConfig {
	return &ConnectionConfig{
		Type:                "sqlite",
		DBName:              ":memory:",
		Charset:             "utf8mb4",
		MaxIdleConns:        10,
		MaxOpenConns:        100,
		ConnMaxLifetime:     time.Hour,
		ConnMaxIdleTime:     time.Minute * 30,
		ConnectTimeout:      time.Second * 10,
		ReadTimeout:         time.Second * 30,
		WriteTimeout:        time.Second * 30,
		HealthCheckInterval: 0,
		EnableQueryLog:      false,
		SlowQueryTime:       time.Second * 2,
	}
}

// DefaultConfig returns a Config wrapping DefaultConnectionConfig.
func DefaultConfig() *Config {
	return &Config{Connection: *DefaultConnectionConfig()}
}

var supportedTypes = []string{"mysql", "postgres", "postgresql", "sqlite", "sqlite3"}

// Validate checks that the connection settings can be turned into a DSN.
func (c *ConnectionConfig) Validate() error {
	supported := false
	for _, t := range supportedTypes {
		if c.Type == t {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("unsupported database type: %q, supported types: %v", c.Type, supportedTypes)
	}
	if c.DBName == "" {
		return fmt.Errorf("database name is required")
	}
	switch c.Driver {
	case "", "pq", "pgx":
	default:
		return fmt.Errorf("unsupported postgres driver: %q", c.Driver)
	}
	if c.Type != "sqlite" && c.Type != "sqlite3" && c.Host == "" {
		return fmt.Errorf("host is required for %s", c.Type)
	}
	if c.MaxOpenConns < 0 || c.MaxIdleConns < 0 {
		return fmt.Errorf("pool sizes cannot be negative")
	}
	return nil
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("database configuration cannot be empty")
	}
	if err := c.Connection.Validate(); err != nil {
		return fmt.Errorf("connection: %w", err)
	}
	return nil
}

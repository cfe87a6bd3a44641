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
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/schema"
)

const memoryDSN = ":memory:"

// dialectOpener describes how one database type is reached.
type dialectOpener struct {
	driver  func(c *ConnectionConfig) string
	dsn     func(c *ConnectionConfig) string
	dialect func() schema.Dialect
}

var openers = map[string]dialectOpener{
	"mysql": {
		driver:  func(*ConnectionConfig) string { return "mysql" },
		dsn:     mysqlDSN,
		dialect: func() schema.Dialect { return mysqldialect.New() },
	},
	"postgres": {
		driver:  postgresDriver,
		dsn:     postgresDSN,
		dialect: func() schema.Dialect { return pgdialect.New() },
	},
	"sqlite": {
		driver:  func(*ConnectionConfig) string { return sqliteshim.ShimName },
		dsn:     func(c *ConnectionConfig) string { return sqliteDSN(c.DBName) },
		dialect: func() schema.Dialect { return sqlitedialect.New() },
	},
}

// canonicalType folds the accepted aliases of Type.
func canonicalType(t string) string {
	switch t {
	case "postgresql":
		return "postgres"
	case "sqlite3":
		return "sqlite"
	default:
		return t
	}
}

func isMemorySQLite(c *ConnectionConfig) bool {
	return canonicalType(c.Type) == "sqlite" && c.DBName == memoryDSN
}

// openDB opens the pool for c without connecting.
func openDB(c *ConnectionConfig) (*sql.DB, *bun.DB, error) {
	o, ok := openers[canonicalType(c.Type)]
	if !ok {
		return nil, nil, fmt.Errorf("unsupported database type: %s", c.Type)
	}
	sqlDB, err := sql.Open(o.driver(c), o.dsn(c))
	if err != nil {
		return nil, nil, err
	}
	return sqlDB, bun.NewDB(sqlDB, o.dialect()), nil
}

func mysqlDSN(c *ConnectionConfig) string {
	charset := c.Charset
	if charset == "" {
		charset = "utf8mb4"
	}
	mc := mysql.NewConfig()
	mc.User = c.Username
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	mc.DBName = c.DBName
	mc.ParseTime = true
	mc.Loc = time.Local
	mc.Timeout = c.ConnectTimeout
	mc.ReadTimeout = c.ReadTimeout
	mc.WriteTimeout = c.WriteTimeout
	mc.Params = map[string]string{"charset": charset}
	return mc.FormatDSN()
}

func postgresDriver(c *ConnectionConfig) string {
	if c.Driver == "pgx" {
		return "pgx"
	}
	return "postgres"
}

func postgresDSN(c *ConnectionConfig) string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	q := url.Values{}
	q.Set("sslmode", sslMode)
	q.Set("connect_timeout", strconv.Itoa(int(c.ConnectTimeout.Seconds())))
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Username, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.DBName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// sqliteDSN keeps ":memory:" and names with an extension as they are and
// appends ".db" otherwise.
func sqliteDSN(name string) string {
	if name == memoryDSN || filepath.Ext(name) != "" {
		return name
	}
	return name + ".db"
}

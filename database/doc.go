// Package database provides connection management, configuration loading,
// query hooks, SQL error classification, table bootstrap and structured
// logging built on top of Bun.
package database

package main

import (
	"context"
	"database/sql"
	"fmt"
)

// execer is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// DBAdapter defines the contract for database-specific behavior.
// Each supported database (PostgreSQL, MySQL, SQLite) implements this interface.
type DBAdapter interface {
	// DriverName returns the database/sql driver name (e.g., "postgres", "mysql", "sqlite").
	DriverName() string

	// BuildDSN constructs a DSN from the database configuration.
	BuildDSN(cfg DatabaseConfig) string

	// ListTablesQuery returns the SQL that lists base tables as a single
	// table_name column, ordered by name.
	ListTablesQuery() string

	// DescribeTableQuery returns the SQL that lists column_name, data_type,
	// is_nullable and column_default for a table, by ordinal position.
	// The table name is interpolated as a string literal, not bound.
	DescribeTableQuery(tableName string) string

	// EnforceReadOnly makes the session on conn reject writes.
	EnforceReadOnly(ctx context.Context, conn execer) error
}

// adapterFor returns the adapter registered for a driver name.
func adapterFor(driver string) (DBAdapter, error) {
	switch driver {
	case "", "postgres", "postgresql":
		return &PostgresAdapter{}, nil
	case "mysql":
		return &MySQLAdapter{}, nil
	case "sqlite", "sqlite3":
		return &SQLiteAdapter{}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

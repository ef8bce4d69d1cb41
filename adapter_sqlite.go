package main

import (
	"context"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteAdapter implements DBAdapter for SQLite databases. It mirrors the
// information_schema column names so tool output looks the same.
type SQLiteAdapter struct{}

func (a *SQLiteAdapter) DriverName() string { return "sqlite" }

func (a *SQLiteAdapter) BuildDSN(cfg DatabaseConfig) string {
	return cfg.SQLitePath
}

func (a *SQLiteAdapter) ListTablesQuery() string {
	return "SELECT name AS table_name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name"
}

// pragma_table_info keeps the statement read-like (it starts with SELECT),
// unlike a bare PRAGMA.
func (a *SQLiteAdapter) DescribeTableQuery(tableName string) string {
	return fmt.Sprintf(`SELECT name AS column_name, type AS data_type,
		CASE WHEN "notnull" = 1 THEN 'NO' ELSE 'YES' END AS is_nullable,
		dflt_value AS column_default
		FROM pragma_table_info('%s')
		ORDER BY cid`, tableName)
}

func (a *SQLiteAdapter) EnforceReadOnly(ctx context.Context, conn execer) error {
	_, err := conn.ExecContext(ctx, "PRAGMA query_only = ON")
	return err
}

package main

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"

	_ "github.com/lib/pq"
)

// PostgresAdapter implements DBAdapter for PostgreSQL databases.
type PostgresAdapter struct{}

func (a *PostgresAdapter) DriverName() string { return "postgres" }

func (a *PostgresAdapter) BuildDSN(cfg DatabaseConfig) string {
	sslmode := cfg.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Name,
		RawQuery: url.Values{"sslmode": {sslmode}}.Encode(),
	}
	return u.String()
}

func (a *PostgresAdapter) ListTablesQuery() string {
	return "SELECT table_name FROM information_schema.tables WHERE table_schema='public' AND table_type='BASE TABLE' ORDER BY table_name"
}

func (a *PostgresAdapter) DescribeTableQuery(tableName string) string {
	return fmt.Sprintf(`SELECT column_name, data_type, is_nullable, column_default
		FROM information_schema.columns
		WHERE table_name = '%s'
		ORDER BY ordinal_position`, tableName)
}

func (a *PostgresAdapter) EnforceReadOnly(ctx context.Context, conn execer) error {
	_, err := conn.ExecContext(ctx, "SET SESSION CHARACTERISTICS AS TRANSACTION READ ONLY")
	return err
}

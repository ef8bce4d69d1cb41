package main

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"
)

// MySQLAdapter implements DBAdapter for MySQL databases.
type MySQLAdapter struct{}

func (a *MySQLAdapter) DriverName() string { return "mysql" }

func (a *MySQLAdapter) BuildDSN(cfg DatabaseConfig) string {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mc.DBName = cfg.Name
	mc.ParseTime = true
	return mc.FormatDSN()
}

// MySQL reports information_schema columns in upper case, hence the aliases.
func (a *MySQLAdapter) ListTablesQuery() string {
	return "SELECT table_name AS table_name FROM information_schema.tables WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE' ORDER BY table_name"
}

func (a *MySQLAdapter) DescribeTableQuery(tableName string) string {
	return fmt.Sprintf(`SELECT column_name AS column_name, data_type AS data_type,
		is_nullable AS is_nullable, column_default AS column_default
		FROM information_schema.columns
		WHERE table_schema = DATABASE() AND table_name = '%s'
		ORDER BY ordinal_position`, tableName)
}

func (a *MySQLAdapter) EnforceReadOnly(ctx context.Context, conn execer) error {
	_, err := conn.ExecContext(ctx, "SET SESSION TRANSACTION READ ONLY")
	return err
}

package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// readLikePrefixes decide whether a statement returns rows.
var readLikePrefixes = []string{"SELECT", "WITH", "SHOW", "DESCRIBE"}

// QueryOutcome is the uniform result of one executed statement.
type QueryOutcome struct {
	ReadLike     bool
	Columns      []string
	Rows         [][]any
	AffectedRows int64
}

// QueryExecutor runs one SQL statement against the database.
type QueryExecutor interface {
	// Execute runs query on a fresh connection. Write-like statements are
	// committed; any failure rolls the transaction back.
	Execute(ctx context.Context, query string) (*QueryOutcome, error)

	// Ping opens a trial connection and closes it again.
	Ping(ctx context.Context) error
}

// ExecutionError is a failure while executing a statement. Its message is
// the driver's, unchanged, since it is shown to the caller as-is.
type ExecutionError struct {
	Op  string
	Err error
}

func (e *ExecutionError) Error() string { return e.Err.Error() }
func (e *ExecutionError) Unwrap() error { return e.Err }

// isReadLike classifies a statement by its leading keyword.
func isReadLike(query string) bool {
	upper := strings.ToUpper(strings.TrimSpace(query))
	for _, prefix := range readLikePrefixes {
		if strings.HasPrefix(upper, prefix) {
			return true
		}
	}
	return false
}

// SQLExecutor is a QueryExecutor over database/sql. It keeps no pool: every
// call opens its own handle and closes it before returning.
type SQLExecutor struct {
	adapter  DBAdapter
	dsn      string
	readOnly bool
	logger   Logger
	open     func() (*sql.DB, error)
}

// NewSQLExecutor creates an executor for the configured database.
func NewSQLExecutor(adapter DBAdapter, cfg DatabaseConfig, logger Logger) *SQLExecutor {
	e := &SQLExecutor{
		adapter:  adapter,
		dsn:      adapter.BuildDSN(cfg),
		readOnly: cfg.ReadOnly,
		logger:   logger,
	}
	e.open = func() (*sql.DB, error) {
		db, err := sql.Open(e.adapter.DriverName(), e.dsn)
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(1)
		return db, nil
	}
	return e
}

func (e *SQLExecutor) Execute(ctx context.Context, query string) (outcome *QueryOutcome, err error) {
	readLike := isReadLike(query)

	ctx, span := StartSpan(ctx, "SQLExecutor.Execute")
	span.SetAttributes(
		attribute.String("db.system", e.adapter.DriverName()),
		attribute.Bool("db.read_like", readLike),
	)
	defer func() { endSpan(span, err) }()

	db, err := e.open()
	if err != nil {
		return nil, &ExecutionError{Op: "open", Err: err}
	}
	defer e.closeDB(db)

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, &ExecutionError{Op: "connect", Err: err}
	}
	defer conn.Close()

	if e.readOnly {
		if err := e.adapter.EnforceReadOnly(ctx, conn); err != nil {
			return nil, &ExecutionError{Op: "read-only", Err: err}
		}
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, &ExecutionError{Op: "begin", Err: err}
	}

	if readLike {
		outcome, err = e.query(ctx, tx, query)
	} else {
		outcome, err = e.exec(ctx, tx, query)
	}
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			e.logger.WithErr(rbErr).Warn("Rollback failed")
		}
		return nil, err
	}

	if readLike {
		// Nothing to persist for reads.
		err = tx.Rollback()
	} else {
		err = tx.Commit()
	}
	if err != nil {
		return nil, &ExecutionError{Op: "commit", Err: err}
	}
	span.SetAttributes(attribute.Int("db.rows", len(outcome.Rows)))
	return outcome, nil
}

func (e *SQLExecutor) query(ctx context.Context, tx *sql.Tx, query string) (*QueryOutcome, error) {
	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, &ExecutionError{Op: "query", Err: err}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, &ExecutionError{Op: "columns", Err: err}
	}

	outcome := &QueryOutcome{ReadLike: true, Columns: columns, Rows: [][]any{}}
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, &ExecutionError{Op: "scan", Err: err}
		}
		for i := range values {
			values[i] = normalizeValue(values[i])
		}
		outcome.Rows = append(outcome.Rows, values)
	}

	if err := rows.Err(); err != nil {
		return nil, &ExecutionError{Op: "rows", Err: err}
	}
	return outcome, nil
}

func (e *SQLExecutor) exec(ctx context.Context, tx *sql.Tx, query string) (*QueryOutcome, error) {
	res, err := tx.ExecContext(ctx, query)
	if err != nil {
		return nil, &ExecutionError{Op: "exec", Err: err}
	}

	affected, err := res.RowsAffected()
	if err != nil {
		// Statements without a row count (DDL on some drivers).
		affected = -1
	}
	return &QueryOutcome{AffectedRows: affected}, nil
}

func (e *SQLExecutor) Ping(ctx context.Context) error {
	db, err := e.open()
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer e.closeDB(db)

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	return nil
}

func (e *SQLExecutor) closeDB(db *sql.DB) {
	if err := db.Close(); err != nil {
		e.logger.WithErr(err).Warn("Failed to close database connection")
	}
}

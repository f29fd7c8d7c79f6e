// Package postgres mirrors exported report tables into Postgres so they can
// be queried by BI tooling. Each collection lands in crm_report_<name> and
// the table is dropped and recreated on every write.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	"github.com/jmoiron/sqlx"

	"crmcore/internal/reporting"
)

const (
	defaultDriver = "pgx"
	tablePrefix   = "crm_report_"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex

	identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
)

var _ reporting.Sink = (*Sink)(nil)

// Sink writes report tables to Postgres.
type Sink struct {
	db *sqlx.DB
	mu sync.Mutex
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*Sink, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres report sink: dsn required")
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return New(db), nil
}

// New wraps an existing connection pool.
func New(db *sql.DB) *Sink {
	return &Sink{db: sqlx.NewDb(db, defaultDriver)}
}

// TableName returns the Postgres table that receives name.
func TableName(name string) string { return tablePrefix + name }

// WriteTable replaces the report table for t, schema included, in a single
// transaction.
func (s *Sink) WriteTable(ctx context.Context, t reporting.Table) error {
	if !identPattern.MatchString(t.Name) {
		return fmt.Errorf("report table name %q is not a plain identifier", t.Name)
	}
	for _, col := range t.Columns {
		if !identPattern.MatchString(col) {
			return fmt.Errorf("report column %q is not a plain identifier", col)
		}
	}
	table := TableName(t.Name)

	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	defs := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		defs[i] = col + " TEXT NOT NULL"
	}
	// Columns follow the records present, so the schema is rebuilt each time.
	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
		return fmt.Errorf("drop %s: %w", table, err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(defs, ", "))); err != nil {
		return fmt.Errorf("create %s: %w", table, err)
	}

	insert := insertStatement(table, t.Columns)
	args := make([]any, len(t.Columns))
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(t.Columns))
		}
		for j, cell := range row {
			args[j] = cell
		}
		if _, err := tx.ExecContext(ctx, insert, args...); err != nil {
			return fmt.Errorf("insert %s row %d: %w", table, i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// Close releases the connection pool.
func (s *Sink) Close() error { return s.db.Close() }

func insertStatement(table string, columns []string) string {
	marks := make([]string, len(columns))
	for i := range columns {
		marks[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ", "), strings.Join(marks, ","))
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}

// Package sqlite renders report tables as standalone SQLite database files.
package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"crmcore/internal/reporting"
)

const driverName = "sqlite"

// ContentType is the media type of rendered databases.
const ContentType = "application/vnd.sqlite3"

// Render writes t into a fresh database holding a single table named after
// t.Name with one TEXT column per table column, and returns the file bytes.
func Render(ctx context.Context, t reporting.Table) ([]byte, error) {
	dir, err := os.MkdirTemp("", "crmcore-report-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	path := filepath.Join(dir, "report.db")
	if err := write(ctx, path, t); err != nil {
		return nil, err
	}
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rendered database: %w", err)
	}
	return payload, nil
}

// Open opens a rendered database file for reading.
func Open(path string) (*sqlx.DB, error) {
	db, err := sqlx.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return db, nil
}

func write(ctx context.Context, path string, t reporting.Table) (retErr error) {
	if t.Name == "" || len(t.Columns) == 0 {
		return fmt.Errorf("render sqlite: table needs a name and columns")
	}
	db, err := Open(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil && retErr == nil {
			retErr = fmt.Errorf("close sqlite: %w", cerr)
		}
	}()

	if _, err := db.ExecContext(ctx, createStatement(t)); err != nil {
		return fmt.Errorf("create table %s: %w", t.Name, err)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	stmt, err := tx.PreparexContext(ctx, insertStatement(t))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	args := make([]any, len(t.Columns))
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(t.Columns))
		}
		for j, cell := range row {
			args[j] = cell
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

func createStatement(t reporting.Table) string {
	cols := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		cols[i] = quoteIdent(col) + " TEXT NOT NULL"
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(t.Name), strings.Join(cols, ", "))
}

func insertStatement(t reporting.Table) string {
	cols := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		cols[i] = quoteIdent(col)
	}
	marks := strings.TrimSuffix(strings.Repeat("?,", len(t.Columns)), ",")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quoteIdent(t.Name), strings.Join(cols, ", "), marks)
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Package pgstub provides an in-memory database/sql driver that understands
// the handful of statements the report sink issues.
package pgstub

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
)

var registered atomic.Int64

// Conn records statements and keeps the schema and inserted rows per table.
// Inserts naming a column the table was not created with fail, as they do in
// Postgres. Changes made inside a transaction are discarded on rollback.
// FailTables makes inserts into the named tables fail.
type Conn struct {
	mu         sync.Mutex
	Execs      []string
	Tables     map[string][]map[string]any
	Schemas    map[string][]string
	FailPing   bool
	FailBegin  bool
	FailTables map[string]bool
	FailCommit bool
	Commits    int
	Rollbacks  int

	backup        map[string][]map[string]any
	backupSchemas map[string][]string
}

// NewDB registers a fresh driver instance and opens a sql.DB on it.
func NewDB() (*sql.DB, *Conn) {
	conn := &Conn{Tables: make(map[string][]map[string]any), Schemas: make(map[string][]string)}
	name := fmt.Sprintf("pgstub%d", registered.Add(1))
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	db.SetMaxOpenConns(1)
	return db, conn
}

// Rows returns a copy of the rows stored for table.
func (c *Conn) Rows(table string) []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]map[string]any(nil), c.Tables[table]...)
}

// Columns returns the columns table was created with.
func (c *Conn) Columns(table string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.Schemas[table]...)
}

type stubDriver struct {
	conn *Conn
}

func (d *stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

// Prepare implements driver.Conn.
func (c *Conn) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("prepare not supported") }

// Close implements driver.Conn.
func (c *Conn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *Conn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// Ping implements driver.Pinger.
func (c *Conn) Ping(context.Context) error {
	if c.FailPing {
		return fmt.Errorf("ping fail")
	}
	return nil
}

// BeginTx implements driver.ConnBeginTx.
func (c *Conn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailBegin {
		return nil, fmt.Errorf("begin fail")
	}
	c.backup = make(map[string][]map[string]any, len(c.Tables))
	for table, rows := range c.Tables {
		c.backup[table] = append([]map[string]any(nil), rows...)
	}
	c.backupSchemas = make(map[string][]string, len(c.Schemas))
	for table, cols := range c.Schemas {
		c.backupSchemas[table] = cols
	}
	return &stubTx{conn: c}, nil
}

// ExecContext implements driver.ExecerContext.
func (c *Conn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Execs = append(c.Execs, query)
	upper := strings.ToUpper(strings.TrimSpace(query))
	switch {
	case strings.HasPrefix(upper, "CREATE TABLE"):
		table, cols, ifNotExists, err := parseCreate(query)
		if err != nil {
			return nil, err
		}
		if _, ok := c.Schemas[table]; ok {
			if ifNotExists {
				return driver.RowsAffected(0), nil
			}
			return nil, fmt.Errorf("relation %q already exists", table)
		}
		c.Schemas[table] = cols
		c.Tables[table] = nil
		return driver.RowsAffected(0), nil
	case strings.HasPrefix(upper, "DROP TABLE"):
		fields := strings.Fields(query)
		table := strings.ToLower(fields[len(fields)-1])
		if _, ok := c.Schemas[table]; !ok && !strings.Contains(upper, "IF EXISTS") {
			return nil, fmt.Errorf("table %q does not exist", table)
		}
		delete(c.Schemas, table)
		delete(c.Tables, table)
		return driver.RowsAffected(0), nil
	case strings.HasPrefix(upper, "INSERT INTO"):
		table, cols, err := parseInsert(query)
		if err != nil {
			return nil, err
		}
		if c.FailTables[table] {
			return nil, fmt.Errorf("exec fail for %s", table)
		}
		if len(cols) != len(args) {
			return nil, fmt.Errorf("column/arg mismatch for %s", table)
		}
		schema, ok := c.Schemas[table]
		if !ok {
			return nil, fmt.Errorf("relation %q does not exist", table)
		}
		for _, col := range cols {
			if !slices.Contains(schema, col) {
				return nil, fmt.Errorf("column %q of relation %q does not exist", col, table)
			}
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = args[i].Value
		}
		c.Tables[table] = append(c.Tables[table], row)
		return driver.RowsAffected(1), nil
	default:
		return nil, fmt.Errorf("unsupported statement: %s", query)
	}
}

type stubTx struct {
	conn *Conn
}

func (t *stubTx) Commit() error {
	t.conn.mu.Lock()
	defer t.conn.mu.Unlock()
	if t.conn.FailCommit {
		t.conn.restore()
		return fmt.Errorf("commit fail")
	}
	t.conn.Commits++
	t.conn.backup = nil
	return nil
}

func (t *stubTx) Rollback() error {
	t.conn.mu.Lock()
	defer t.conn.mu.Unlock()
	t.conn.Rollbacks++
	t.conn.restore()
	return nil
}

func (c *Conn) restore() {
	if c.backup != nil {
		c.Tables = c.backup
		c.Schemas = c.backupSchemas
		c.backup = nil
		c.backupSchemas = nil
	}
}

// parseCreate reads CREATE TABLE [IF NOT EXISTS] name (col TYPE ..., ...).
func parseCreate(query string) (string, []string, bool, error) {
	open := strings.Index(query, "(")
	closeIdx := strings.LastIndex(query, ")")
	if open == -1 || closeIdx <= open {
		return "", nil, false, fmt.Errorf("cannot parse create: %s", query)
	}
	head := strings.Fields(query[:open])
	if len(head) < 3 {
		return "", nil, false, fmt.Errorf("cannot parse create: %s", query)
	}
	ifNotExists := strings.Contains(strings.ToUpper(query[:open]), "IF NOT EXISTS")
	var cols []string
	for _, def := range strings.Split(query[open+1:closeIdx], ",") {
		if parts := strings.Fields(def); len(parts) > 0 {
			cols = append(cols, strings.ToLower(parts[0]))
		}
	}
	return strings.ToLower(head[len(head)-1]), cols, ifNotExists, nil
}


func parseInsert(query string) (string, []string, error) {
	up := strings.ToUpper(query)
	intoIdx := strings.Index(up, "INTO ")
	if intoIdx == -1 {
		return "", nil, fmt.Errorf("cannot parse insert: %s", query)
	}
	rest := strings.TrimSpace(query[intoIdx+len("INTO "):])
	open := strings.Index(rest, "(")
	closeIdx := strings.Index(rest, ")")
	if open == -1 || closeIdx == -1 || closeIdx <= open {
		return "", nil, fmt.Errorf("cannot parse insert: %s", query)
	}
	table := strings.ToLower(strings.TrimSpace(rest[:open]))
	parts := strings.Split(rest[open+1:closeIdx], ",")
	cols := make([]string, 0, len(parts))
	for _, part := range parts {
		cols = append(cols, strings.ToLower(strings.TrimSpace(part)))
	}
	return table, cols, nil
}

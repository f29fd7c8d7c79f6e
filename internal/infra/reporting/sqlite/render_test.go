package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crmcore/internal/reporting"
)

func TestRenderRoundTripsRows(t *testing.T) {
	table := reporting.Table{
		Name:    "deals",
		Columns: []string{"id", "amount", "stage"},
		Rows: [][]string{
			{"D1", "100", "Prospecting"},
			{"D2", "200", "Closed Won"},
		},
	}
	payload, err := Render(context.Background(), table)
	require.NoError(t, err)
	require.NotEmpty(t, payload)

	path := filepath.Join(t.TempDir(), "deals.db")
	require.NoError(t, os.WriteFile(path, payload, 0o600))
	db, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	type dealRow struct {
		ID     string `db:"id"`
		Amount string `db:"amount"`
		Stage  string `db:"stage"`
	}
	var rows []dealRow
	require.NoError(t, db.Select(&rows, `SELECT id, amount, stage FROM deals ORDER BY id`))
	assert.Equal(t, []dealRow{{"D1", "100", "Prospecting"}, {"D2", "200", "Closed Won"}}, rows)
}

func TestRenderEmptyTableKeepsSchema(t *testing.T) {
	payload, err := Render(context.Background(), reporting.Table{Name: "tasks", Columns: []string{"id"}})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "tasks.db")
	require.NoError(t, os.WriteFile(path, payload, 0o600))
	db, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var count int
	require.NoError(t, db.Get(&count, `SELECT COUNT(*) FROM tasks`))
	assert.Zero(t, count)
}

func TestRenderRejectsMalformedTables(t *testing.T) {
	_, err := Render(context.Background(), reporting.Table{Columns: []string{"id"}})
	assert.Error(t, err)

	_, err = Render(context.Background(), reporting.Table{
		Name:    "deals",
		Columns: []string{"id", "stage"},
		Rows:    [][]string{{"D1"}},
	})
	assert.ErrorContains(t, err, "row 0 has 1 cells, want 2")
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"show_name"`, quoteIdent("show_name"))
	assert.Equal(t, `"a""b"`, quoteIdent(`a"b`))
}

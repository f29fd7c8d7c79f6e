package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const demoScript = `
name: demo
steps:
  - op: list
    kind: deals
    count: 43
  - op: create
    kind: deals
    fields:
      name: Fleet renewal
      account: Wipro
      amount: 250000
  - op: create
    kind: deals
    fields:
      id: D3000
      name: Clash
    expect: duplicate
  - op: move
    kind: deals
    id: D3043
    stage: Negotiation
  - op: query
    kind: deals
    filters:
      stage: Negotiation
    count: 9
  - op: update
    kind: tasks
    id: T9999
    fields:
      status: Completed
    expect: not_found
  - op: bulk_delete
    kind: deals
    ids: [D3043, D9999]
    count: 1
  - op: pipeline
    count: 43
  - op: export
    kind: contacts
    search: a
    formats: [json]
`

func newTestApp(t *testing.T) *App {
	t.Helper()
	app, err := NewApp(context.Background(), testConfig(), AppOptions{ErrOut: &strings.Builder{}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })
	return app
}

func TestRunScriptDemo(t *testing.T) {
	script, err := LoadScript(strings.NewReader(demoScript))
	require.NoError(t, err)
	assert.Equal(t, "demo", script.Name)

	results, err := RunScript(context.Background(), newTestApp(t), script)
	require.NoError(t, err)
	require.Len(t, results, 9)
	assert.Equal(t, "D3043", results[1].Detail)
	assert.Contains(t, results[2].Error, "already exists")
	assert.Equal(t, "D3043 -> Negotiation", results[3].Detail)
	assert.True(t, strings.HasSuffix(results[4].Detail, "D3043"), results[4].Detail)
	assert.Contains(t, results[8].Detail, "/contacts.json")
}

func TestRunScriptStopsAtUnexpectedOutcome(t *testing.T) {
	script, err := LoadScript(strings.NewReader(`
steps:
  - op: delete
    kind: tasks
    id: T4000
  - op: get
    kind: tasks
    id: T4001
    expect: not_found
  - op: list
    kind: tasks
`))
	require.NoError(t, err)

	results, err := RunScript(context.Background(), newTestApp(t), script)
	assert.EqualError(t, err, "step 2 (get): expected not_found error, got success")
	assert.Len(t, results, 2)

	script.Steps = script.Steps[:1]
	script.Steps[0].Kind = "widgets"
	_, err = RunScript(context.Background(), newTestApp(t), script)
	assert.ErrorContains(t, err, "step 1 (delete): invalid kind")

	count := 3
	script.Steps = []Step{{Op: "list", Kind: "accounts", Count: &count}}
	_, err = RunScript(context.Background(), newTestApp(t), script)
	assert.EqualError(t, err, "step 1 (list): expected 3 records, got 15")
}

func TestLoadScriptRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"":                                        "script is empty",
		"name: x\n":                               "script has no steps",
		"steps:\n  - op: frobnicate\n":            `step 1: unknown op "frobnicate"`,
		"steps:\n  - op: list\n    colour: 1\n":   "field colour not found",
		"steps:\n  - op: get\n    expect: gone\n": `step 1: unknown expected error "gone"`,
	}
	for input, want := range cases {
		_, err := LoadScript(strings.NewReader(input))
		assert.ErrorContains(t, err, want, "input %q", input)
	}
}

func TestRunCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(demoScript), 0o600))

	out, _, err := runCLI(t, testConfig(), "run", path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ 1 list deals (43)")
	assert.Contains(t, out, "✓ 9 export contacts")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("steps:\n  - op: get\n    kind: deals\n    id: D1\n"), 0o600))
	out, _, err = runCLI(t, testConfig(), "run", bad)
	assert.ErrorContains(t, err, "step 1 (get): deals D1 not found")
	assert.Contains(t, out, "✗ 1 get deals (0)")
}

// Package reporting flattens record collections into tables that export
// renderers and report sinks can consume without knowing entity types.
package reporting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"crmcore/pkg/domain"
)

// Table is a flattened collection. Every row has one cell per column.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]string
}

// Sink receives tables produced by an export run.
type Sink interface {
	WriteTable(ctx context.Context, t Table) error
	Close() error
}

// Tabulate flattens records of one kind. Nested objects such as show
// details contribute their fields as top-level columns. Columns are the
// union over all records, "id" first and the rest sorted; missing cells are
// empty.
func Tabulate(kind domain.EntityType, records []domain.Record) (Table, error) {
	flat := make([]map[string]string, 0, len(records))
	seen := map[string]struct{}{}
	for _, r := range records {
		if r.Kind() != kind {
			return Table{}, fmt.Errorf("tabulate %s: record %s is %s", kind, r.Meta().ID, r.Kind())
		}
		row, err := flatten(r)
		if err != nil {
			return Table{}, fmt.Errorf("tabulate %s: %w", kind, err)
		}
		for col := range row {
			seen[col] = struct{}{}
		}
		flat = append(flat, row)
	}

	columns := make([]string, 0, len(seen))
	for col := range seen {
		if col != "id" {
			columns = append(columns, col)
		}
	}
	sort.Strings(columns)
	columns = append([]string{"id"}, columns...)

	t := Table{Name: string(kind), Columns: columns, Rows: make([][]string, len(flat))}
	for i, row := range flat {
		cells := make([]string, len(columns))
		for j, col := range columns {
			cells[j] = row[col]
		}
		t.Rows[i] = cells
	}
	return t, nil
}

func flatten(r domain.Record) (map[string]string, error) {
	payload, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(raw))
	for key, value := range raw {
		if nested, ok := value.(map[string]any); ok {
			for k, v := range nested {
				out[k] = cell(v)
			}
			continue
		}
		out[key] = cell(value)
	}
	return out, nil
}

func cell(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case json.Number:
		return value.String()
	case bool:
		return strconv.FormatBool(value)
	default:
		return fmt.Sprint(value)
	}
}

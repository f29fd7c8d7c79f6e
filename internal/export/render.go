package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"time"

	"crmcore/internal/core"
	reportsqlite "crmcore/internal/infra/reporting/sqlite"
	"crmcore/internal/reporting"
	"crmcore/pkg/domain"
)

type rendered struct {
	format      Format
	contentType string
	payload     []byte
}

// document is the JSON artifact layout.
type document struct {
	Kind       domain.EntityType `json:"kind"`
	Criteria   core.Criteria     `json:"criteria"`
	ExportedAt time.Time         `json:"exported_at"`
	Count      int               `json:"count"`
	Records    []domain.Record   `json:"records"`
}

// renderer renders one job's records, tabulating them at most once.
type renderer struct {
	kind     domain.EntityType
	criteria core.Criteria
	records  []domain.Record
	now      time.Time

	table    *reporting.Table
	tableErr error
}

func (r *renderer) tabulate() (reporting.Table, error) {
	if r.table == nil && r.tableErr == nil {
		t, err := reporting.Tabulate(r.kind, r.records)
		r.table, r.tableErr = &t, err
	}
	if r.tableErr != nil {
		return reporting.Table{}, r.tableErr
	}
	return *r.table, nil
}

func (r *renderer) render(ctx context.Context, format Format) (rendered, error) {
	switch format {
	case FormatJSON:
		payload, err := json.MarshalIndent(document{
			Kind:       r.kind,
			Criteria:   r.criteria,
			ExportedAt: r.now,
			Count:      len(r.records),
			Records:    r.records,
		}, "", "  ")
		if err != nil {
			return rendered{}, fmt.Errorf("marshal json: %w", err)
		}
		return rendered{format: format, contentType: "application/json", payload: payload}, nil
	case FormatCSV:
		table, err := r.tabulate()
		if err != nil {
			return rendered{}, err
		}
		buf := &bytes.Buffer{}
		writer := csv.NewWriter(buf)
		if err := writer.Write(table.Columns); err != nil {
			return rendered{}, err
		}
		if err := writer.WriteAll(table.Rows); err != nil {
			return rendered{}, err
		}
		return rendered{format: format, contentType: "text/csv", payload: buf.Bytes()}, nil
	case FormatSQLite:
		table, err := r.tabulate()
		if err != nil {
			return rendered{}, err
		}
		payload, err := reportsqlite.Render(ctx, table)
		if err != nil {
			return rendered{}, fmt.Errorf("render sqlite: %w", err)
		}
		return rendered{format: format, contentType: reportsqlite.ContentType, payload: payload}, nil
	default:
		return rendered{}, fmt.Errorf("format %s not supported", format)
	}
}

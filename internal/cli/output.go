package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"crmcore/internal/core"
	"crmcore/internal/export"
	memory "crmcore/internal/infra/persistence/memory"
	"crmcore/internal/reporting"
	"crmcore/pkg/domain"
)

// Output formats accepted by --output.
const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

var (
	okMark   = color.New(color.FgGreen).SprintFunc()
	failMark = color.New(color.FgRed).SprintFunc()
	dim      = color.New(color.FgHiBlack).SprintFunc()
)

// columnsByKind keeps table output readable; json and yaml show every field.
var columnsByKind = map[domain.EntityType][]string{
	domain.EntityLead:    {"id", "variant", "contact_name", "company_name", "lead_source", "status", "show_name"},
	domain.EntityContact: {"id", "name", "company", "email", "owner", "last_activity"},
	domain.EntityAccount: {"id", "name", "industry", "location", "owner", "status", "revenue"},
	domain.EntityDeal:    {"id", "name", "account", "amount", "stage", "owner", "close_date"},
	domain.EntityTask:    {"id", "subject", "related_to", "priority", "status", "assigned_to", "due_date"},
}

type printer struct {
	out    io.Writer
	format string
}

func newPrinter(out io.Writer, format string) (*printer, error) {
	switch format {
	case outputTable, outputJSON, outputYAML:
		return &printer{out: out, format: format}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
	}
}

// value prints v in the structured formats; table mode falls back to fn.
func (p *printer) value(v any, table func() error) error {
	switch p.format {
	case outputJSON:
		enc := json.NewEncoder(p.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputYAML:
		enc := yaml.NewEncoder(p.out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return table()
	}
}

func (p *printer) records(kind domain.EntityType, records []domain.Record) error {
	return p.value(records, func() error {
		t, err := reporting.Tabulate(kind, records)
		if err != nil {
			return err
		}
		cols := columnsByKind[kind]
		index := make(map[string]int, len(t.Columns))
		for i, c := range t.Columns {
			index[c] = i
		}
		tw := tabwriter.NewWriter(p.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, strings.ToUpper(strings.Join(cols, "\t")))
		for _, row := range t.Rows {
			cells := make([]string, len(cols))
			for i, c := range cols {
				if j, ok := index[c]; ok {
					cells[i] = row[j]
				}
			}
			fmt.Fprintln(tw, strings.Join(cells, "\t"))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintln(p.out, dim(fmt.Sprintf("%d %s", len(records), kind)))
		return nil
	})
}

func (p *printer) record(r domain.Record) error {
	return p.records(r.Kind(), []domain.Record{r})
}

func (p *printer) pipeline(summary []core.StageSummary) error {
	return p.value(summary, func() error {
		tw := tabwriter.NewWriter(p.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "STAGE\tDEALS\tTOTAL")
		var count int
		var total int64
		for _, s := range summary {
			fmt.Fprintf(tw, "%s\t%d\t%d\n", s.Stage, s.Count, s.TotalAmount)
			count += s.Count
			total += s.TotalAmount
		}
		fmt.Fprintf(tw, "all\t%d\t%d\n", count, total)
		return tw.Flush()
	})
}

func (p *printer) snapshot(snap memory.Snapshot) error {
	return p.value(snap, func() error {
		tw := tabwriter.NewWriter(p.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "COLLECTION\tRECORDS")
		for _, kind := range domain.EntityTypes() {
			if records, ok := snap.Collections[kind]; ok {
				fmt.Fprintf(tw, "%s\t%d\n", kind, len(records))
			}
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintln(p.out, dim("taken at "+snap.TakenAt.UTC().Format(time.RFC3339)))
		return nil
	})
}

func (p *printer) job(job export.Job) error {
	return p.value(job, func() error {
		mark := okMark("✓")
		if job.Status != export.StatusSucceeded {
			mark = failMark("✗")
		}
		fmt.Fprintf(p.out, "%s export %s %s (%d %s)\n", mark, job.ID, job.Status, job.Rows, job.Kind)
		if job.Error != "" {
			fmt.Fprintf(p.out, "  error: %s\n", job.Error)
		}
		for _, a := range job.Artifacts {
			fmt.Fprintf(p.out, "  %-6s %s (%d bytes)\n", a.Format, a.Key, a.Size)
			if a.URL != "" {
				fmt.Fprintf(p.out, "         %s\n", dim(a.URL))
			}
		}
		return nil
	})
}

func (p *printer) ok(format string, args ...any) {
	if p.format == outputTable {
		fmt.Fprintf(p.out, "%s %s\n", okMark("✓"), fmt.Sprintf(format, args...))
	}
}

func (p *printer) fail(format string, args ...any) {
	if p.format == outputTable {
		fmt.Fprintf(p.out, "%s %s\n", failMark("✗"), fmt.Sprintf(format, args...))
	}
}

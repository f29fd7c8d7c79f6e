package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"crmcore/internal/core"
	"crmcore/internal/export"
	"crmcore/pkg/domain"
)

// Script is a sequence of operations run against a single store.
type Script struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps"`
}

// Step is one operation. Expect names the error class the step must fail
// with (not_found, invalid_argument, duplicate); Count, when set, is the
// number of records the step must return.
type Step struct {
	Op      string            `yaml:"op"`
	Kind    string            `yaml:"kind,omitempty"`
	ID      string            `yaml:"id,omitempty"`
	IDs     []string          `yaml:"ids,omitempty"`
	Fields  map[string]any    `yaml:"fields,omitempty"`
	Search  string            `yaml:"search,omitempty"`
	Filters map[string]string `yaml:"filters,omitempty"`
	Stage   string            `yaml:"stage,omitempty"`
	Status  string            `yaml:"status,omitempty"`
	Owner   string            `yaml:"owner,omitempty"`
	Formats []string          `yaml:"formats,omitempty"`
	Expect  string            `yaml:"expect,omitempty"`
	Count   *int              `yaml:"count,omitempty"`
}

// StepResult reports what a step did.
type StepResult struct {
	Index  int    `json:"index" yaml:"index"`
	Op     string `json:"op" yaml:"op"`
	Kind   string `json:"kind,omitempty" yaml:"kind,omitempty"`
	Count  int    `json:"count" yaml:"count"`
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
}

var scriptOps = map[string]bool{
	"list": true, "query": true, "get": true, "create": true, "update": true,
	"delete": true, "move": true, "bulk_status": true, "bulk_assign": true,
	"bulk_delete": true, "pipeline": true, "export": true,
}

// LoadScript decodes a YAML script, rejecting unknown keys and operations.
func LoadScript(r io.Reader) (Script, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var s Script
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return Script{}, fmt.Errorf("script is empty")
		}
		return Script{}, fmt.Errorf("decode script: %w", err)
	}
	if len(s.Steps) == 0 {
		return Script{}, fmt.Errorf("script has no steps")
	}
	for i, step := range s.Steps {
		if !scriptOps[step.Op] {
			return Script{}, fmt.Errorf("step %d: unknown op %q", i+1, step.Op)
		}
		if step.Expect != "" && !oneOfClass(step.Expect) {
			return Script{}, fmt.Errorf("step %d: unknown expected error %q", i+1, step.Expect)
		}
	}
	return s, nil
}

func oneOfClass(class string) bool {
	switch class {
	case "not_found", "invalid_argument", "duplicate":
		return true
	}
	return false
}

func errorClass(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, domain.ErrDuplicateIdentifier):
		return "duplicate"
	default:
		return "internal"
	}
}

// RunScript executes the steps in order and stops at the first step whose
// outcome differs from its expectations.
func RunScript(ctx context.Context, app *App, s Script) ([]StepResult, error) {
	results := make([]StepResult, 0, len(s.Steps))
	for i, step := range s.Steps {
		res, err := runStep(ctx, app, step)
		res.Index, res.Op, res.Kind = i+1, step.Op, step.Kind
		if err != nil {
			res.Error = err.Error()
		}
		results = append(results, res)

		fail := func(format string, args ...any) ([]StepResult, error) {
			return results, fmt.Errorf("step %d (%s): %s", i+1, step.Op, fmt.Sprintf(format, args...))
		}
		switch class := errorClass(err); {
		case step.Expect == "" && err != nil:
			return fail("%v", err)
		case step.Expect != "" && class != step.Expect:
			if err == nil {
				return fail("expected %s error, got success", step.Expect)
			}
			return fail("expected %s error, got %v", step.Expect, err)
		}
		if step.Count != nil && err == nil && res.Count != *step.Count {
			return fail("expected %d records, got %d", *step.Count, res.Count)
		}
	}
	return results, nil
}

func runStep(ctx context.Context, app *App, step Step) (StepResult, error) {
	var res StepResult
	var kind domain.EntityType
	if step.Op != "pipeline" {
		k, err := kindArg(step.Kind)
		if err != nil {
			return res, err
		}
		kind = k
	}
	svc := app.Service
	switch step.Op {
	case "list":
		records, err := svc.Collection(ctx, kind)
		res.Count = len(records)
		return res, err
	case "query":
		records, err := svc.Query(ctx, kind, core.Criteria{Search: step.Search, Filters: step.Filters})
		res.Count = len(records)
		res.Detail = strings.Join(ids(records), ",")
		return res, err
	case "get":
		record, err := svc.Get(ctx, kind, step.ID)
		if err == nil {
			res.Count, res.Detail = 1, record.Meta().ID
		}
		return res, err
	case "create":
		record, err := svc.Create(ctx, kind, domain.Fields(step.Fields))
		if err == nil {
			res.Count, res.Detail = 1, record.Meta().ID
		}
		return res, err
	case "update":
		record, err := svc.Update(ctx, kind, step.ID, domain.Fields(step.Fields))
		if err == nil {
			res.Count, res.Detail = 1, record.Meta().ID
		}
		return res, err
	case "delete":
		deleted, err := svc.Delete(ctx, kind, step.ID)
		if deleted {
			res.Count = 1
		}
		res.Detail = fmt.Sprintf("deleted=%t", deleted)
		return res, err
	case "move":
		record, err := svc.MoveStage(ctx, kind, step.ID, step.Stage)
		if err == nil {
			res.Count, res.Detail = 1, record.Meta().ID+" -> "+step.Stage
		}
		return res, err
	case "bulk_status":
		records, err := svc.BulkSetStatus(ctx, kind, step.IDs, step.Status)
		res.Count = len(records)
		return res, err
	case "bulk_assign":
		records, err := svc.BulkAssign(ctx, kind, step.IDs, step.Owner)
		res.Count = len(records)
		return res, err
	case "bulk_delete":
		removed, err := svc.BulkDelete(ctx, kind, step.IDs)
		res.Count = removed
		return res, err
	case "pipeline":
		summary, err := svc.PipelineSummary(ctx)
		parts := make([]string, 0, len(summary))
		for _, s := range summary {
			res.Count += s.Count
			parts = append(parts, fmt.Sprintf("%s=%d", s.Stage, s.Count))
		}
		res.Detail = strings.Join(parts, " ")
		return res, err
	case "export":
		req := export.Request{Kind: kind, Criteria: core.Criteria{Search: step.Search, Filters: step.Filters}, RequestedBy: "script"}
		for _, f := range step.Formats {
			req.Formats = append(req.Formats, export.Format(f))
		}
		job, err := app.Exports.Enqueue(ctx, req)
		if err != nil {
			return res, err
		}
		job, err = app.Exports.Wait(ctx, job.ID)
		if err != nil {
			return res, err
		}
		if job.Status == export.StatusFailed {
			return res, fmt.Errorf("export %s failed: %s", job.ID, job.Error)
		}
		keys := make([]string, len(job.Artifacts))
		for i, a := range job.Artifacts {
			keys[i] = a.Key
		}
		res.Count, res.Detail = job.Rows, strings.Join(keys, ",")
		return res, nil
	default:
		return res, fmt.Errorf("unknown op %q", step.Op)
	}
}

func ids(records []domain.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Meta().ID
	}
	return out
}

func runCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run <script.yaml>",
		Short: "Run a YAML script of operations against one store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()
			script, err := LoadScript(f)
			if err != nil {
				return err
			}
			results, runErr := RunScript(cmd.Context(), opts.app, script)
			p := printerFor(cmd, opts)
			err = p.value(results, func() error {
				for _, r := range results {
					line := fmt.Sprintf("%d %s %s (%d)", r.Index, r.Op, r.Kind, r.Count)
					if r.Detail != "" {
						line += " " + dim(r.Detail)
					}
					if r.Error != "" {
						line += " " + r.Error
					}
					if runErr != nil && r.Index == len(results) {
						p.fail("%s", line)
					} else {
						p.ok("%s", line)
					}
				}
				return nil
			})
			if runErr != nil {
				return runErr
			}
			return err
		},
	}
}

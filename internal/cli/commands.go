package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"crmcore/internal/core"
	"crmcore/internal/export"
	"crmcore/pkg/domain"
)

func listCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list <kind>",
		Short: "List a collection (leads, contacts, accounts, deals, tasks)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := kindArg(args[0])
			if err != nil {
				return err
			}
			records, err := opts.app.Service.Collection(cmd.Context(), kind)
			if err != nil {
				return err
			}
			return printerFor(cmd, opts).records(kind, records)
		},
	}
}

func getCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <kind> <id>",
		Short: "Show one record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := kindArg(args[0])
			if err != nil {
				return err
			}
			record, err := opts.app.Service.Get(cmd.Context(), kind, args[1])
			if err != nil {
				return err
			}
			return printerFor(cmd, opts).record(record)
		},
	}
}

type criteriaFlags struct {
	search  string
	filters []string
}

func (f *criteriaFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.search, "search", "s", "", "case-insensitive text search")
	cmd.Flags().StringArrayVarP(&f.filters, "filter", "f", nil, "exact-match filter field=value (repeatable)")
}

func (f *criteriaFlags) criteria() (core.Criteria, error) {
	filters, err := filterMap(f.filters)
	if err != nil {
		return core.Criteria{}, err
	}
	return core.Criteria{Search: f.search, Filters: filters}, nil
}

func queryCmd(opts *rootOptions) *cobra.Command {
	var flags criteriaFlags
	cmd := &cobra.Command{
		Use:   "query <kind>",
		Short: "Search and filter a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := kindArg(args[0])
			if err != nil {
				return err
			}
			c, err := flags.criteria()
			if err != nil {
				return err
			}
			records, err := opts.app.Service.Query(cmd.Context(), kind, c)
			if err != nil {
				return err
			}
			return printerFor(cmd, opts).records(kind, records)
		},
	}
	flags.register(cmd)
	return cmd
}

func createCmd(opts *rootOptions) *cobra.Command {
	var sets []string
	cmd := &cobra.Command{
		Use:   "create <kind>",
		Short: "Create a record from --set field=value pairs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := kindArg(args[0])
			if err != nil {
				return err
			}
			fields, err := parseAssignments(sets)
			if err != nil {
				return err
			}
			record, err := opts.app.Service.Create(cmd.Context(), kind, fields)
			if err != nil {
				return err
			}
			p := printerFor(cmd, opts)
			p.ok("created %s %s", kind, record.Meta().ID)
			return p.record(record)
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "field=value (repeatable)")
	return cmd
}

func updateCmd(opts *rootOptions) *cobra.Command {
	var sets []string
	cmd := &cobra.Command{
		Use:   "update <kind> <id>",
		Short: "Merge --set field=value pairs into a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := kindArg(args[0])
			if err != nil {
				return err
			}
			fields, err := parseAssignments(sets)
			if err != nil {
				return err
			}
			record, err := opts.app.Service.Update(cmd.Context(), kind, args[1], fields)
			if err != nil {
				return err
			}
			p := printerFor(cmd, opts)
			p.ok("updated %s %s", kind, record.Meta().ID)
			return p.record(record)
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "field=value (repeatable)")
	return cmd
}

func deleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <kind> <id>",
		Short: "Delete a record; deleting a missing record is not an error",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := kindArg(args[0])
			if err != nil {
				return err
			}
			deleted, err := opts.app.Service.Delete(cmd.Context(), kind, args[1])
			if err != nil {
				return err
			}
			p := printerFor(cmd, opts)
			if deleted {
				p.ok("deleted %s %s", kind, args[1])
			} else {
				p.fail("%s %s did not exist", kind, args[1])
			}
			return p.value(map[string]any{"id": args[1], "deleted": deleted}, func() error { return nil })
		},
	}
}

func moveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "move <deal-id> <stage>",
		Short: "Move a deal to another pipeline stage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := opts.app.Service.MoveStage(cmd.Context(), domain.EntityDeal, args[0], args[1])
			if err != nil {
				return err
			}
			p := printerFor(cmd, opts)
			p.ok("moved %s to %s", args[0], args[1])
			return p.record(record)
		},
	}
}

func bulkCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bulk",
		Short: "Apply one change to several records at once",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "status <kind> <status> <id>...",
			Short: "Set the status (or deal stage) of several records",
			Args:  cobra.MinimumNArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				kind, err := kindArg(args[0])
				if err != nil {
					return err
				}
				records, err := opts.app.Service.BulkSetStatus(cmd.Context(), kind, args[2:], args[1])
				if err != nil {
					return err
				}
				p := printerFor(cmd, opts)
				p.ok("updated %d %s", len(records), kind)
				return p.records(kind, records)
			},
		},
		&cobra.Command{
			Use:   "assign <kind> <owner> <id>...",
			Short: "Assign several records to an owner",
			Args:  cobra.MinimumNArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				kind, err := kindArg(args[0])
				if err != nil {
					return err
				}
				records, err := opts.app.Service.BulkAssign(cmd.Context(), kind, args[2:], args[1])
				if err != nil {
					return err
				}
				p := printerFor(cmd, opts)
				p.ok("assigned %d %s to %s", len(records), kind, args[1])
				return p.records(kind, records)
			},
		},
		&cobra.Command{
			Use:   "delete <kind> <id>...",
			Short: "Delete several records",
			Args:  cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				kind, err := kindArg(args[0])
				if err != nil {
					return err
				}
				removed, err := opts.app.Service.BulkDelete(cmd.Context(), kind, args[1:])
				if err != nil {
					return err
				}
				p := printerFor(cmd, opts)
				p.ok("deleted %d %s", removed, kind)
				return p.value(map[string]any{"deleted": removed}, func() error { return nil })
			},
		},
	)
	return cmd
}

func pipelineCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pipeline",
		Short: "Summarise deals by stage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			summary, err := opts.app.Service.PipelineSummary(cmd.Context())
			if err != nil {
				return err
			}
			return printerFor(cmd, opts).pipeline(summary)
		},
	}
}

func snapshotCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Seed every collection and dump the whole store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, err := opts.app.Service.Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			return printerFor(cmd, opts).snapshot(snap)
		},
	}
}

func exportCmd(opts *rootOptions) *cobra.Command {
	var (
		flags   criteriaFlags
		formats []string
	)
	cmd := &cobra.Command{
		Use:   "export <kind>",
		Short: "Export matching records to the blob store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := kindArg(args[0])
			if err != nil {
				return err
			}
			c, err := flags.criteria()
			if err != nil {
				return err
			}
			req := export.Request{Kind: kind, Criteria: c, RequestedBy: "cli"}
			for _, raw := range formats {
				req.Formats = append(req.Formats, export.Format(raw))
			}
			job, err := opts.app.Exports.Enqueue(cmd.Context(), req)
			if err != nil {
				return err
			}
			job, err = opts.app.Exports.Wait(cmd.Context(), job.ID)
			if err != nil {
				return err
			}
			if err := printerFor(cmd, opts).job(job); err != nil {
				return err
			}
			if job.Status == export.StatusFailed {
				return fmt.Errorf("export %s failed: %s", job.ID, job.Error)
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringSliceVar(&formats, "format", nil, "artifact formats: json, csv, sqlite (default from config)")
	return cmd
}

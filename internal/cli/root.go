// Package cli implements the crm command line. Every invocation builds a
// fresh in-memory store, seeds it on first access and discards it on exit;
// the run command chains several operations against one store.
package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"crmcore/internal/config"
	"crmcore/pkg/domain"
)

type configLoader func(envFile string) (config.Config, error)

type rootOptions struct {
	envFile string
	output  string
	seed    uint64
	trace   bool
	noColor bool

	app *App
}

func (o *rootOptions) close(ctx context.Context) error {
	if o.app == nil {
		return nil
	}
	err := o.app.Close(ctx)
	o.app = nil
	return err
}

// NewRootCmd builds the crm command tree.
func NewRootCmd() *cobra.Command {
	root, _ := newRootCmd(config.Load)
	return root
}

func newRootCmd(load configLoader) (*cobra.Command, *rootOptions) {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "crm",
		Short:         "Inspect and mutate an in-memory CRM seeded with synthetic data",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if opts.noColor {
				color.NoColor = true
			}
			if _, err := newPrinter(cmd.OutOrStdout(), opts.output); err != nil {
				return err
			}
			cfg, err := load(opts.envFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cmd.Flags().Changed("seed") {
				cfg.Seed = opts.seed
			}
			opts.app, err = NewApp(cmd.Context(), cfg, AppOptions{ErrOut: cmd.ErrOrStderr(), Trace: opts.trace})
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.close(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "dotenv file to load (default .env when present)")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", outputTable, "output format: table, json or yaml")
	root.PersistentFlags().Uint64Var(&opts.seed, "seed", 0, "seed for the synthetic data generator")
	root.PersistentFlags().BoolVar(&opts.trace, "trace", false, "write a JSON span per operation to stderr")
	root.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		listCmd(opts),
		getCmd(opts),
		queryCmd(opts),
		createCmd(opts),
		updateCmd(opts),
		deleteCmd(opts),
		moveCmd(opts),
		bulkCmd(opts),
		pipelineCmd(opts),
		snapshotCmd(opts),
		exportCmd(opts),
		runCmd(opts),
	)
	return root, opts
}

// Execute runs the command tree with ctx. The app is closed even when the
// command fails.
func Execute(ctx context.Context, args []string) error {
	return execute(ctx, config.Load, args)
}

func execute(ctx context.Context, load configLoader, args []string) error {
	root, opts := newRootCmd(load)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if cerr := opts.close(ctx); err == nil {
		err = cerr
	}
	return err
}

func printerFor(cmd *cobra.Command, opts *rootOptions) *printer {
	p, _ := newPrinter(cmd.OutOrStdout(), opts.output)
	return p
}

func kindArg(raw string) (domain.EntityType, error) {
	return domain.ParseEntityType(strings.ToLower(raw))
}

// parseAssignments turns key=value pairs into record fields.
func parseAssignments(pairs []string) (domain.Fields, error) {
	fields := make(domain.Fields, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", pair)
		}
		fields[key] = value
	}
	return fields, nil
}

func filterMap(pairs []string) (map[string]string, error) {
	fields, err := parseAssignments(pairs)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = v.(string)
	}
	return out, nil
}

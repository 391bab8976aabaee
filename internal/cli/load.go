package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/graphq/internal/config"
)

// LoadOptions holds flags for the load command.
type LoadOptions struct {
	*RootOptions
	Delete []string // entity IDs removed after loading
}

// LoadSummary is the result of the load command.
type LoadSummary struct {
	Loaded  int `json:"loaded"`
	Deleted int `json:"deleted"`
	Total   int `json:"total"`
}

func (s LoadSummary) String() string {
	return fmt.Sprintf("Loaded %d record(s), deleted %d; store holds %d entities.", s.Loaded, s.Deleted, s.Total)
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "load [records.yaml...]",
		Short: "Write entity records to the store",
		Long: `Write entity records to the configured SQLite store.

Each file holds a YAML list of records. All files are written in one
transaction, replacing entities with the same ID. Use --delete to remove
entities by ID.

Examples:
  graphq load --config graphq.yaml people.yaml groups.yaml
  graphq load --config graphq.yaml --delete u1,u2`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(opts, args, cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Delete, "delete", nil, "IDs of entities to delete")

	return cmd
}

func runLoad(opts *LoadOptions, paths []string, cmd *cobra.Command) error {
	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	if len(paths) == 0 && len(opts.Delete) == 0 {
		return NewExitError(ExitCommandError, "nothing to do: pass record files or --delete")
	}

	e, err := newEnv(opts.RootOptions, cmd.ErrOrStderr())
	if err != nil {
		return fail(f, err)
	}
	if e.cfg.Store.Backend != config.BackendSQLite {
		return fail(f, commandError(ErrCodeBackend, "load requires the sqlite backend", nil))
	}
	if err := e.openBackend(); err != nil {
		return fail(f, err)
	}
	defer e.close()

	ctx, cancel := signalContext(cmd)
	defer cancel()

	loaded, err := e.loadRecords(ctx, paths)
	if err != nil {
		return fail(f, err)
	}
	if len(opts.Delete) > 0 {
		if err := e.sqlite.Delete(ctx, opts.Delete...); err != nil {
			return fail(f, commandError(ErrCodeStore, "failed to delete entities", err))
		}
		e.logger.Debug("entities deleted", "ids", opts.Delete)
	}

	total, err := e.sqlite.Count(ctx)
	if err != nil {
		return fail(f, commandError(ErrCodeStore, "failed to count entities", err))
	}

	return f.Success(LoadSummary{Loaded: loaded, Deleted: len(opts.Delete), Total: total})
}

package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/graphq/internal/engine"
	"github.com/roach88/graphq/internal/graph"
	"github.com/roach88/graphq/internal/query"
	"github.com/roach88/graphq/internal/querydef"
)

// QueryOptions holds flags for the query and explain commands.
type QueryOptions struct {
	*RootOptions
	Schema    string   // overrides the configured schema
	Records   []string // record files written before the query runs
	Page      int      // overrides the document's page when > 0
	PageSize  int      // overrides the document's page size when > 0
	Superuser bool
}

func (o *QueryOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Schema, "schema", "", "CUE schema file or directory (overrides the config)")
	cmd.Flags().StringSliceVar(&o.Records, "records", nil, "record files to load before running")
	cmd.Flags().IntVar(&o.Page, "page", 0, "page number (overrides the query file)")
	cmd.Flags().IntVar(&o.PageSize, "page-size", 0, "page size (overrides the query file)")
	cmd.Flags().BoolVar(&o.Superuser, "superuser", false, "include hidden entities")
}

// QueryOutput is the result of the query command.
type QueryOutput struct {
	ExecutionID  string         `json:"execution_id"`
	Seq          int64          `json:"seq"`
	Found        bool           `json:"found"`
	IDs          []string       `json:"ids"`
	Entities     []graph.Record `json:"entities"`
	Skipped      int            `json:"skipped"`
	Route        engine.Route   `json:"route"`
	Reasons      []string       `json:"reasons,omitempty"`
	Materialized int            `json:"materialized"`
	Warnings     []string       `json:"warnings,omitempty"`
}

func (o QueryOutput) String() string {
	var b strings.Builder
	for _, r := range o.Entities {
		fmt.Fprintf(&b, "%s\t%s\n", r.ID, r.Type)
	}
	for _, w := range o.Warnings {
		fmt.Fprintf(&b, "warning: %s\n", w)
	}
	fmt.Fprintf(&b, "%d result(s), %d skipped (route %s, %d materialized)",
		len(o.Entities), o.Skipped, o.Route, o.Materialized)
	return b.String()
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <query.yaml>",
		Short: "Run a query definition",
		Long: `Run a YAML query definition against the configured backend and print
the requested page.

Exit codes:
  0 - Query executed
  1 - Query failed (invalid predicate, resource limit, index failure)
  2 - Command error (bad config, schema or query file)

Examples:
  graphq query --config graphq.yaml adults.yaml
  graphq query --config graphq.yaml adults.yaml --page 2 --page-size 10
  graphq query --schema schema.cue --records people.yaml adults.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}
	opts.addFlags(cmd)

	return cmd
}

func runQuery(opts *QueryOptions, path string, cmd *cobra.Command) error {
	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	e, q, err := prepareQuery(ctx, opts, path, cmd)
	if e != nil {
		defer e.close()
	}
	if err != nil {
		return fail(f, err)
	}

	x, err := e.executor()
	if err != nil {
		return fail(f, err)
	}
	res, err := x.Execute(ctx, q)
	if err != nil {
		return fail(f, err)
	}

	out := QueryOutput{
		ExecutionID:  res.ExecutionID,
		Seq:          res.Seq,
		Found:        res.Found(),
		IDs:          res.IDs(),
		Entities:     make([]graph.Record, len(res.Entities)),
		Skipped:      res.Skipped,
		Route:        res.Plan.Route,
		Reasons:      res.Plan.Reasons,
		Materialized: res.Materialized,
		Warnings:     warningStrings(res.Warnings),
	}
	for i, ent := range res.Entities {
		out.Entities[i] = ent.Record()
	}
	return f.Executed(res.ExecutionID, out)
}

// prepareQuery opens the environment, writes --records and builds the query
// document at path. The returned env is non-nil whenever it was opened, so
// callers close it even on error.
func prepareQuery(ctx context.Context, opts *QueryOptions, path string, cmd *cobra.Command) (*env, *query.Query, error) {
	e, err := newEnv(opts.RootOptions, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}
	if err := e.loadSchema(opts.Schema); err != nil {
		return nil, nil, err
	}

	doc, err := querydef.Load(path)
	if err != nil {
		return nil, nil, commandError(ErrCodeQueryFile, "failed to load query", err)
	}
	if opts.Page > 0 {
		doc.Page = opts.Page
	}
	if opts.PageSize > 0 {
		doc.PageSize = opts.PageSize
	}
	if opts.Superuser {
		doc.Superuser = true
	}

	if err := e.openBackend(); err != nil {
		return nil, nil, err
	}
	if _, err := e.loadRecords(ctx, opts.Records); err != nil {
		return e, nil, err
	}
	if e.mem != nil && e.mem.Len() == 0 {
		e.logger.Warn("memory backend is empty; pass --records to load entities")
	}

	return e, doc.Build(e.schema), nil
}

func warningStrings(warnings []query.Warning) []string {
	if len(warnings) == 0 {
		return nil
	}
	out := make([]string, len(warnings))
	for i, w := range warnings {
		out[i] = w.String()
	}
	return out
}

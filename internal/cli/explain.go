package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/graphq/internal/engine"
	"github.com/roach88/graphq/internal/ir"
)

// ExplainOutput is the result of the explain command.
type ExplainOutput struct {
	ExecutionID string      `json:"execution_id"`
	Query       ir.IRObject `json:"query"`
	Fingerprint string      `json:"fingerprint"`
	Plan        engine.Plan `json:"plan"`

	// SQL is set for index routes on the sqlite backend.
	SQL    string `json:"sql,omitempty"`
	Params []any  `json:"params,omitempty"`

	Warnings []string `json:"warnings,omitempty"`
}

func (o ExplainOutput) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "query:       %s\n", o.Query["where"])
	fmt.Fprintf(&b, "fingerprint: %s\n", o.Fingerprint)
	fmt.Fprintf(&b, "route:       %s\n", o.Plan.Route)
	fmt.Fprintf(&b, "push paging: %t\n", o.Plan.PushPaging)
	fmt.Fprintf(&b, "post filter: %t\n", o.Plan.PostFilter)
	fmt.Fprintf(&b, "sort:        %s", sortPlace(o.Plan))
	for _, r := range o.Plan.Reasons {
		fmt.Fprintf(&b, "\nreason:      %s", r)
	}
	for _, w := range o.Warnings {
		fmt.Fprintf(&b, "\nwarning:     %s", w)
	}
	if o.SQL != "" {
		fmt.Fprintf(&b, "\n\n%s\n-- params: %v", o.SQL, o.Params)
	}
	return b.String()
}

func sortPlace(p engine.Plan) string {
	if p.SortInMemory {
		return "in memory"
	}
	return string(p.Route)
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "explain <query.yaml>",
		Short: "Show how a query would execute",
		Long: `Plan a YAML query definition without reading any candidates.

Prints the route (index or sources), whether paging and sorting are pushed
to the index and why not, and, on the sqlite backend, the SQL the index
would run.

Examples:
  graphq explain --config graphq.yaml adults.yaml
  graphq explain --config graphq.yaml adults.yaml --page-size 10 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(opts, args[0], cmd)
		},
	}
	opts.addFlags(cmd)

	return cmd
}

func runExplain(opts *QueryOptions, path string, cmd *cobra.Command) error {
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
	exp, err := x.Explain(ctx, q)
	if err != nil {
		return fail(f, err)
	}

	out := ExplainOutput{
		ExecutionID: exp.ExecutionID,
		Query:       q.Describe(),
		Fingerprint: q.Fingerprint(),
		Plan:        exp.Plan,
		Warnings:    warningStrings(exp.Warnings),
	}
	if exp.Request != nil && e.sqlite != nil {
		sqlText, params, err := e.sqlite.Index().Explain(*exp.Request)
		if err != nil {
			return fail(f, err)
		}
		out.SQL, out.Params = sqlText, params
	}
	return f.Executed(exp.ExecutionID, out)
}

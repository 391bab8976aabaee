package cli

import (
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/graphq/internal/graph"
)

// TypeInfo describes one declared type.
type TypeInfo struct {
	Name         string    `json:"name"`
	Traits       []string  `json:"traits,omitempty"`
	Relationship bool      `json:"relationship,omitempty"`
	Keys         []KeyInfo `json:"keys"`
}

// KeyInfo describes one property key.
type KeyInfo struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Collection bool   `json:"collection,omitempty"`
	Related    string `json:"related,omitempty"`
	Notion     string `json:"notion,omitempty"`
	Sort       string `json:"sort,omitempty"`
}

// SchemaOutput is the result of the schema command.
type SchemaOutput struct {
	Path  string     `json:"path"`
	Types []TypeInfo `json:"types"`
}

func (o SchemaOutput) String() string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	for i, t := range o.Types {
		if i > 0 {
			fmt.Fprintln(w)
		}
		header := t.Name
		if t.Relationship {
			header += " (relationship)"
		}
		if len(t.Traits) > 0 {
			header += " traits: " + strings.Join(t.Traits, ", ")
		}
		fmt.Fprintln(w, header)
		for _, k := range t.Keys {
			fmt.Fprintf(w, "  %s\t%s\n", k.Name, k.describe())
		}
	}
	w.Flush()
	return strings.TrimRight(b.String(), "\n")
}

func (k KeyInfo) describe() string {
	s := k.Kind
	if k.Collection {
		s += "[]"
	}
	if k.Related != "" {
		s += " -> " + k.Related
		if k.Notion != "" {
			s += "." + k.Notion
		}
	}
	if k.Sort != "" {
		s += " sort " + k.Sort
	}
	return s
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema [path]",
		Short: "Compile and print a schema",
		Long: `Compile a CUE schema file or directory and print its types and keys.
Without a path the configured schema is used.

Examples:
  graphq schema ./schema.cue
  graphq schema --config graphq.yaml --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runSchema(rootOpts, path, cmd)
		},
	}
	return cmd
}

func runSchema(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	e, err := newEnv(opts, cmd.ErrOrStderr())
	if err != nil {
		return fail(f, err)
	}
	if path == "" {
		path = e.cfg.Schema
	}
	if err := e.loadSchema(path); err != nil {
		return fail(f, err)
	}
	return f.Success(describeSchema(path, e.schema))
}

func describeSchema(path string, s *graph.Schema) SchemaOutput {
	out := SchemaOutput{Path: path, Types: []TypeInfo{}}
	for _, name := range s.TypeNames() {
		def, _ := s.Type(name)
		info := TypeInfo{
			Name:         def.Name,
			Traits:       def.Traits,
			Relationship: def.Relationship,
			Keys:         make([]KeyInfo, 0, len(def.Keys)),
		}
		for keyName, k := range def.Keys {
			info.Keys = append(info.Keys, KeyInfo{
				Name:       keyName,
				Kind:       string(k.Kind),
				Collection: k.Collection,
				Related:    k.Related,
				Notion:     k.Notion,
				Sort:       string(k.SortKind),
			})
		}
		slices.SortFunc(info.Keys, func(a, b KeyInfo) int { return strings.Compare(a.Name, b.Name) })
		out.Types = append(out.Types, info)
	}
	return out
}

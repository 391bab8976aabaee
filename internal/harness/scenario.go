package harness

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/graphq/internal/engine"
	"github.com/roach88/graphq/internal/geocode"
	"github.com/roach88/graphq/internal/graph"
	"github.com/roach88/graphq/internal/querydef"
)

// Backends a scenario can run against.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Scenario defines a conformance test scenario.
// A scenario loads a schema and a set of records into a fresh store, runs a
// sequence of queries and checks each result.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is an inline CUE schema document.
	Schema string `yaml:"schema,omitempty"`

	// SchemaFile is a CUE file or directory, relative to the scenario file.
	// Exactly one of Schema and SchemaFile is set.
	SchemaFile string `yaml:"schema_file,omitempty"`

	// Backend selects the index: "sqlite" (default) or "memory".
	Backend string `yaml:"backend,omitempty"`

	// Records are loaded before the first step.
	Records []graph.Fixture `yaml:"records"`

	// Geocoder maps addresses to coordinates for location clauses.
	Geocoder map[string]geocode.Point `yaml:"geocoder,omitempty"`

	// MaxMaterialized bounds each execution. Zero uses the executor default.
	MaxMaterialized int `yaml:"max_materialized,omitempty"`

	// ExecutionID is the fixed ID every step's execution reports.
	// If empty, defaults to "test-execution".
	ExecutionID string `yaml:"execution_id,omitempty"`

	// Steps run in order against the same store.
	Steps []Step `yaml:"steps"`
}

// Step is one query and its expected outcome.
type Step struct {
	Name  string            `yaml:"name"`
	Query querydef.Document `yaml:"query"`

	// Expect is checked against the result. If nil, the step only feeds the
	// golden snapshot.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the expected result of a step. Only the fields that are
// set are checked.
type Expect struct {
	// IDs is the expected page, in order unless Unordered is set.
	IDs       []string `yaml:"ids,omitempty"`
	Unordered bool     `yaml:"unordered,omitempty"`

	// Empty expects no results. It is needed because an empty ids list
	// cannot be told apart from an absent one.
	Empty bool `yaml:"empty,omitempty"`

	Skipped *int `yaml:"skipped,omitempty"`

	// Found is the expected answer of a ping query.
	Found *bool `yaml:"found,omitempty"`

	// Route is "index" or "sources".
	Route string `yaml:"route,omitempty"`

	// Error is the expected error kind, e.g. "invalid_regex".
	Error string `yaml:"error,omitempty"`

	Warnings *int `yaml:"warnings,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// A relative schema_file is resolved against the scenario's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ParseScenario decodes a scenario, resolving schema_file against basePath.
func ParseScenario(data []byte, basePath string) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "step:" vs "steps:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.SchemaFile != "" && !filepath.IsAbs(scenario.SchemaFile) && basePath != "" {
		scenario.SchemaFile = filepath.Join(basePath, scenario.SchemaFile)
	}
	if scenario.Backend == "" {
		scenario.Backend = BackendSQLite
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch {
	case s.Schema == "" && s.SchemaFile == "":
		return fmt.Errorf("schema or schema_file is required")
	case s.Schema != "" && s.SchemaFile != "":
		return fmt.Errorf("schema and schema_file are mutually exclusive")
	case s.SchemaFile != "":
		if _, err := os.Stat(s.SchemaFile); os.IsNotExist(err) {
			return fmt.Errorf("schema file not found: %s", s.SchemaFile)
		}
	}

	switch s.Backend {
	case BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("backend must be %q or %q, got %q", BackendSQLite, BackendMemory, s.Backend)
	}

	if s.MaxMaterialized < 0 {
		return fmt.Errorf("max_materialized must not be negative")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	names := make(map[string]bool, len(s.Steps))
	for i, step := range s.Steps {
		if step.Name == "" {
			return fmt.Errorf("steps[%d]: name is required", i)
		}
		if names[step.Name] {
			return fmt.Errorf("steps[%d]: duplicate step name %q", i, step.Name)
		}
		names[step.Name] = true
		if err := step.Query.Validate(); err != nil {
			return fmt.Errorf("steps[%d].query: %w", i, err)
		}
		if step.Expect != nil {
			if err := validateExpect(step.Expect); err != nil {
				return fmt.Errorf("steps[%d].expect: %w", i, err)
			}
		}
	}

	return nil
}

// validateExpect rejects contradictory expectations.
func validateExpect(e *Expect) error {
	if e.Empty && len(e.IDs) > 0 {
		return fmt.Errorf("empty and ids are mutually exclusive")
	}
	if e.Unordered && len(e.IDs) == 0 {
		return fmt.Errorf("unordered requires ids")
	}
	switch e.Route {
	case "", string(engine.RouteIndex), string(engine.RouteSources):
	default:
		return fmt.Errorf("unknown route %q", e.Route)
	}
	if e.Error != "" && (len(e.IDs) > 0 || e.Empty || e.Skipped != nil || e.Found != nil) {
		return fmt.Errorf("error cannot be combined with result expectations")
	}
	return nil
}

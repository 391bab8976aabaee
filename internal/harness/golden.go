package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/graphq/internal/ir"
)

// Snapshot captures the outcome of every step of a scenario.
// It serializes to canonical JSON for deterministic comparison.
type Snapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Backend      string       `json:"backend"`
	Steps        []StepResult `json:"steps"`
}

// toCanonicalMap converts a Snapshot to a map[string]any for canonical JSON serialization.
// This is required because ir.MarshalCanonical only handles IR types and primitives.
func (s *Snapshot) toCanonicalMap() map[string]any {
	steps := make([]any, len(s.Steps))
	for i, r := range s.Steps {
		step := map[string]any{
			"name":         r.Name,
			"ids":          r.IDs,
			"skipped":      r.Skipped,
			"found":        r.Found,
			"materialized": r.Materialized,
		}
		if r.ExecutionID != "" {
			step["execution_id"] = r.ExecutionID
		}
		if r.Seq != 0 {
			step["seq"] = r.Seq
		}
		if r.Route != "" {
			step["route"] = r.Route
		}
		if len(r.Reasons) > 0 {
			step["reasons"] = r.Reasons
		}
		if len(r.Warnings) > 0 {
			step["warnings"] = r.Warnings
		}
		if r.Error != "" {
			step["error"] = r.Error
		}
		steps[i] = step
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"backend":       s.Backend,
		"steps":         steps,
	}
}

// MarshalSnapshot returns the canonical JSON of a scenario result.
func MarshalSnapshot(scenario *Scenario, result *Result) ([]byte, error) {
	snapshot := Snapshot{
		ScenarioName: scenario.Name,
		Backend:      scenario.Backend,
		Steps:        result.Steps,
	}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check Pass. Test failure (via
// goldie) occurs if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an already computed result against the scenario's
// golden file.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(scenario, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
	return nil
}

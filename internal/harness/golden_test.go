package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden_UsersByCity(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "users_by_city.yaml"))
	require.NoError(t, err)

	// To regenerate:
	//   go test ./internal/harness -run TestRunWithGolden_UsersByCity -update
	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestMarshalSnapshot_Deterministic(t *testing.T) {
	scenario := peopleScenario(BackendMemory, Step{Name: "a"}, Step{Name: "b"})
	result := NewResult()
	result.AddStep(StepResult{Name: "a", IDs: []string{"u2", "u1"}, Route: "index", Seq: 1, Materialized: 2})
	result.AddStep(StepResult{Name: "b", IDs: []string{}, Error: "cancelled"})

	first, err := MarshalSnapshot(scenario, result)
	require.NoError(t, err)
	for range 10 {
		again, err := MarshalSnapshot(scenario, result)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	want := `{"backend":"memory","scenario_name":"people","steps":[` +
		`{"found":false,"ids":["u2","u1"],"materialized":2,"name":"a","route":"index","seq":1,"skipped":0},` +
		`{"error":"cancelled","found":false,"ids":[],"materialized":0,"name":"b","skipped":0}]}`
	assert.Equal(t, want, string(first))
}

func TestAssertGolden_FromResult(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "users_by_city.yaml"))
	require.NoError(t, err)

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	require.NoError(t, AssertGolden(t, scenario, result))
}

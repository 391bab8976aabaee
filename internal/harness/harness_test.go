package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/graphq/internal/graph"
	"github.com/roach88/graphq/internal/querydef"
)

func intPtr(n int) *int    { return &n }
func boolPtr(b bool) *bool { return &b }

// peopleScenario builds a scenario over three users for the given backend.
func peopleScenario(backend string, steps ...Step) *Scenario {
	return &Scenario{
		Name:        "people",
		Description: "Three users",
		Schema:      `types: User: keys: {name: {}, age: kind: "int", tags: {collection: true}}`,
		Backend:     backend,
		Records: []graph.Fixture{
			{ID: "u1", Type: "User", Props: map[string]any{"name": "Ada", "age": 30, "tags": []any{"go"}}},
			{ID: "u2", Type: "User", Props: map[string]any{"name": "Alan", "age": 31}},
			{ID: "u3", Type: "User", Hidden: true, Props: map[string]any{"name": "Grace", "age": 30}},
		},
		Steps: steps,
	}
}

func TestRun_Backends(t *testing.T) {
	steps := []Step{
		{
			Name: "thirty",
			Query: querydef.Document{
				Type:  "User",
				Where: []querydef.Clause{{Key: &querydef.Value{Key: "age", Value: 30}}},
			},
			Expect: &Expect{IDs: []string{"u1"}, Route: "index"},
		},
		{
			Name: "thirty_superuser",
			Query: querydef.Document{
				Type:      "User",
				Superuser: true,
				Where:     []querydef.Clause{{Key: &querydef.Value{Key: "age", Value: 30}}},
			},
			Expect: &Expect{IDs: []string{"u3", "u1"}, Unordered: true},
		},
		{
			Name: "by_age_desc",
			Query: querydef.Document{
				Type:     "User",
				Sort:     []querydef.SortKey{{Key: "age", Desc: true}},
				PageSize: 1,
			},
			Expect: &Expect{IDs: []string{"u2"}, Skipped: intPtr(0)},
		},
		{
			Name: "untagged",
			Query: querydef.Document{
				Type:  "User",
				Where: []querydef.Clause{{Blank: "tags"}},
			},
			Expect: &Expect{IDs: []string{"u2"}},
		},
		{
			Name:   "nobody",
			Query:  querydef.Document{Type: "User", Where: []querydef.Clause{{Key: &querydef.Value{Key: "name", Value: "Linus"}}}},
			Expect: &Expect{Empty: true},
		},
		{
			Name:   "ping",
			Query:  querydef.Document{Type: "User", Ping: true},
			Expect: &Expect{Found: boolPtr(true)},
		},
		{
			Name:   "bad_range",
			Query:  querydef.Document{Type: "User", Where: []querydef.Clause{{Range: &querydef.Range{Key: "age", Lo: []any{1, 2}, Hi: 3}}}},
			Expect: &Expect{Error: "malformed_range"},
		},
	}

	for _, backend := range []string{BackendSQLite, BackendMemory} {
		t.Run(backend, func(t *testing.T) {
			result, err := Run(context.Background(), peopleScenario(backend, steps...))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			require.Len(t, result.Steps, len(steps))
			for _, s := range result.Steps {
				assert.Equal(t, "test-execution", s.ExecutionID, s.Name)
			}
		})
	}
}

func TestRun_FailedExpectations(t *testing.T) {
	scenario := peopleScenario(BackendSQLite,
		Step{
			Name:   "wrong_ids",
			Query:  querydef.Document{Type: "User"},
			Expect: &Expect{IDs: []string{"u2", "u1"}},
		},
		Step{
			Name:   "unexpected_error",
			Query:  querydef.Document{Where: []querydef.Clause{{Matches: &querydef.Text{Key: "name", Value: "["}}}},
			Expect: &Expect{IDs: []string{"u1"}},
		},
	)

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], `step "wrong_ids": ids`)
	assert.Contains(t, result.Errors[1], `step "unexpected_error": error`)
	assert.Contains(t, result.Errors[1], "invalid_regex")
}

func TestRun_Deterministic(t *testing.T) {
	steps := []Step{{Name: "all", Query: querydef.Document{Type: "User", Sort: []querydef.SortKey{{Key: "name"}}}}}

	first, err := Run(context.Background(), peopleScenario(BackendSQLite, steps...))
	require.NoError(t, err)
	second, err := Run(context.Background(), peopleScenario(BackendSQLite, steps...))
	require.NoError(t, err)

	assert.Equal(t, first.Steps, second.Steps)
	assert.Equal(t, []string{"u1", "u2"}, first.Steps[0].IDs)
	assert.Equal(t, int64(1), first.Steps[0].Seq)
}

func TestRun_SetupErrors(t *testing.T) {
	bad := peopleScenario(BackendSQLite, Step{Name: "all", Query: querydef.Document{}})
	bad.Schema = `types: User: keys: id: {}`
	_, err := Run(context.Background(), bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to compile schema")

	bad = peopleScenario(BackendMemory, Step{Name: "all", Query: querydef.Document{}})
	bad.Records = append(bad.Records, graph.Fixture{ID: "x"})
	_, err = Run(context.Background(), bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load records")
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, peopleScenario(BackendMemory, Step{Name: "all", Query: querydef.Document{Type: "User"}}))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_MaxMaterialized(t *testing.T) {
	scenario := peopleScenario(BackendSQLite, Step{
		Name:   "all",
		Query:  querydef.Document{Superuser: true},
		Expect: &Expect{Error: "resource_limit"},
	})
	scenario.MaxMaterialized = 2

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestResult_AddError(t *testing.T) {
	r := NewResult()
	assert.True(t, r.Pass)
	r.AddError("boom")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"boom"}, r.Errors)
}

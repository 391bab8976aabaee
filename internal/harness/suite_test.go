package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscover(t *testing.T) {
	paths, err := Discover(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join("testdata", "scenarios", "memberships.yaml"),
		filepath.Join("testdata", "scenarios", "users_by_city.yaml"),
	}, paths)

	single := filepath.Join("testdata", "scenarios", "memberships.yaml")
	paths, err = Discover(single)
	require.NoError(t, err)
	assert.Equal(t, []string{single}, paths)

	_, err = Discover(filepath.Join("testdata", "missing"))
	var nf *ScenarioNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestRunSuite_Testdata(t *testing.T) {
	paths, err := Discover(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)

	result, err := RunSuite(context.Background(), paths)
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalScenarios)
	assert.Equal(t, 2, result.Passed, "failures: %+v", result.Failures)
	assert.Zero(t, result.Failed)
}

func TestRunSuite_Failures(t *testing.T) {
	dir := t.TempDir()
	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("name: [\n"), 0644))

	failing := filepath.Join(dir, "failing.yaml")
	content := minimalScenario + `  - name: wrong
    query: {type: User}
    expect:
      empty: true
`
	require.NoError(t, os.WriteFile(failing, []byte(content), 0644))

	passing := filepath.Join(dir, "passing.yaml")
	require.NoError(t, os.WriteFile(passing, []byte(minimalScenario), 0644))

	paths, err := Discover(dir)
	require.NoError(t, err)
	require.Len(t, paths, 3)

	result, err := RunSuite(context.Background(), paths)
	require.NoError(t, err)
	assert.Equal(t, 3, result.TotalScenarios)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 2, result.Failed)
	require.Len(t, result.Failures, 2)

	assert.Equal(t, broken, result.Failures[0].ScenarioPath)
	assert.Contains(t, result.Failures[0].Error, "failed to load scenario")
	assert.Equal(t, "minimal", result.Failures[1].Scenario)
	assert.Contains(t, result.Failures[1].Error, `step "wrong": empty`)
}

func TestRunSuite_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := RunSuite(ctx, []string{"a.yaml"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, result.TotalScenarios)
}

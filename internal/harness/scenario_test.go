package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalSchema = `types: User: keys: {name: {}, age: kind: "int"}`

// minimalScenario is a valid scenario document; tests append to or edit it.
const minimalScenario = `
name: minimal
description: "Minimal test scenario"
schema: 'types: User: keys: {name: {}, age: kind: "int"}'
records:
  - id: u1
    type: User
    props: {name: Ada, age: 30}
steps:
  - name: all
    query: {type: User}
    expect:
      ids: [u1]
`

func TestParseScenario_Valid(t *testing.T) {
	scenario, err := ParseScenario([]byte(minimalScenario), "")
	require.NoError(t, err)

	assert.Equal(t, "minimal", scenario.Name)
	assert.Equal(t, minimalSchema, scenario.Schema)
	assert.Equal(t, BackendSQLite, scenario.Backend, "backend defaults to sqlite")
	require.Len(t, scenario.Records, 1)
	assert.Equal(t, "Ada", scenario.Records[0].Props["name"])
	require.Len(t, scenario.Steps, 1)
	assert.Equal(t, "User", scenario.Steps[0].Query.Type)
	assert.Equal(t, []string{"u1"}, scenario.Steps[0].Expect.IDs)
}

func TestLoadScenario_ResolvesSchemaFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema.cue"), []byte(minimalSchema), 0644))
	path := filepath.Join(dir, "s.yaml")
	content := `
name: with_file
description: "Schema from a file"
schema_file: schema.cue
steps:
  - name: all
    query: {}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	scenario, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "schema.cue"), scenario.SchemaFile)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "malformed yaml",
			content: "name: [",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "unknown field",
			content: minimalScenario + "flow: []\n",
			wantErr: "field flow not found",
		},
		{
			name:    "missing name",
			content: "description: d\nschema: x\nsteps: [{name: a, query: {}}]",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			content: "name: n\nschema: x\nsteps: [{name: a, query: {}}]",
			wantErr: "description is required",
		},
		{
			name:    "missing schema",
			content: "name: n\ndescription: d\nsteps: [{name: a, query: {}}]",
			wantErr: "schema or schema_file is required",
		},
		{
			name:    "both schemas",
			content: "name: n\ndescription: d\nschema: x\nschema_file: y.cue\nsteps: [{name: a, query: {}}]",
			wantErr: "mutually exclusive",
		},
		{
			name:    "schema file not found",
			content: "name: n\ndescription: d\nschema_file: /nonexistent/y.cue\nsteps: [{name: a, query: {}}]",
			wantErr: "schema file not found",
		},
		{
			name:    "unknown backend",
			content: "name: n\ndescription: d\nschema: x\nbackend: postgres\nsteps: [{name: a, query: {}}]",
			wantErr: `backend must be "sqlite" or "memory"`,
		},
		{
			name:    "no steps",
			content: "name: n\ndescription: d\nschema: x",
			wantErr: "steps list is required",
		},
		{
			name:    "step without name",
			content: "name: n\ndescription: d\nschema: x\nsteps: [{query: {}}]",
			wantErr: "steps[0]: name is required",
		},
		{
			name:    "duplicate step",
			content: "name: n\ndescription: d\nschema: x\nsteps: [{name: a, query: {}}, {name: a, query: {}}]",
			wantErr: `duplicate step name "a"`,
		},
		{
			name:    "invalid query",
			content: "name: n\ndescription: d\nschema: x\nsteps: [{name: a, query: {where: [{}]}}]",
			wantErr: "steps[0].query: where[0]: empty clause",
		},
		{
			name:    "contradictory expect",
			content: "name: n\ndescription: d\nschema: x\nsteps: [{name: a, query: {}, expect: {empty: true, ids: [u1]}}]",
			wantErr: "empty and ids are mutually exclusive",
		},
		{
			name:    "error with ids",
			content: "name: n\ndescription: d\nschema: x\nsteps: [{name: a, query: {}, expect: {error: invalid_regex, ids: [u1]}}]",
			wantErr: "error cannot be combined",
		},
		{
			name:    "unknown route",
			content: "name: n\ndescription: d\nschema: x\nsteps: [{name: a, query: {}, expect: {route: scan}}]",
			wantErr: `unknown route "scan"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.content), "")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

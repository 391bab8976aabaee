package graph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/graphq/internal/ir"
)

func TestParseRecords(t *testing.T) {
	data := []byte(`
- id: g1
  type: Group
  props: {name: Engineering}
- id: u1
  type: User
  traits: [Person]
  hidden: true
  props:
    name: Ada
    age: 30
    score: 1.5
    tags: [go, cue]
    groups: [{$ref: g1}]
- id: r1
  kind: relationship
  type: member
  source: u1
  target: g1
`)
	records, err := ParseRecords(data)
	require.NoError(t, err)
	require.Len(t, records, 3)

	u := records[1]
	assert.Equal(t, "User", u.Type)
	assert.Equal(t, []string{"Person"}, u.Traits)
	assert.True(t, u.Hidden)
	assert.Equal(t, ir.IRString("Ada"), u.Props["name"])
	assert.Equal(t, ir.IRInt(30), u.Props["age"])
	assert.Equal(t, ir.IRFloat(1.5), u.Props["score"])
	assert.Equal(t, ir.IRArray{ir.IRString("go"), ir.IRString("cue")}, u.Props["tags"])
	assert.Equal(t, ir.IRArray{ir.IRRef{ID: "g1"}}, u.Props["groups"])

	r := records[2]
	assert.Equal(t, KindRelationship, r.Kind)
	assert.Equal(t, "u1", r.Source)
	assert.Equal(t, "g1", r.Target)
}

func TestParseRecords_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{"unknown field", "- id: a\n  type: T\n  color: red", "field color not found"},
		{"missing type", "- id: a", `records[0]: record "a": type is required`},
		{"reserved id property", "- id: a\n  type: T\n  props: {id: b}", "reserved"},
		{"dangling relationship", "- id: r\n  kind: relationship\n  type: member\n  source: a", "needs source and target"},
		{"not a list", "id: a", "failed to parse records"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRecords([]byte(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- id: a\n  type: T\n"), 0o644))

	records, err := LoadRecords(path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "a", records[0].ID)

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	records, err = LoadRecords(empty)
	require.NoError(t, err)
	assert.Empty(t, records)
}

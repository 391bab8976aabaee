package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromAny(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  IRValue
	}{
		{"nil", nil, IRNull{}},
		{"string", "a", IRString("a")},
		{"int", 7, IRInt(7)},
		{"uint8", uint8(3), IRInt(3)},
		{"float", 2.5, IRFloat(2.5)},
		{"bool", true, IRBool(true)},
		{"json int", json.Number("12"), IRInt(12)},
		{"json float", json.Number("1e3"), IRFloat(1000)},
		{"string slice", []string{"a", "b"}, IRArray{IRString("a"), IRString("b")}},
		{"mixed slice", []any{"a", 1, nil}, IRArray{IRString("a"), IRInt(1), IRNull{}}},
		{"ref", map[string]any{"$ref": "p1"}, IRRef{ID: "p1"}},
		{"short ref", map[string]any{"ref": "p2"}, IRRef{ID: "p2"}},
		{"object", map[string]any{"ref": "p2", "x": 1}, IRObject{"ref": IRString("p2"), "x": IRInt(1)}},
		{"already ir", IRString("z"), IRString("z")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromAny(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromAnyErrors(t *testing.T) {
	_, err := FromAny(uint64(1 << 63))
	assert.Error(t, err)

	_, err = FromAny([]any{struct{}{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "array[0]")
}

func TestUnmarshalIRValue(t *testing.T) {
	v, err := UnmarshalIRValue([]byte(`{"name":"Ada","age":36,"score":9.5,"friend":{"$ref":"p2"},"tags":["x"],"gone":null}`))
	require.NoError(t, err)

	obj, ok := v.(IRObject)
	require.True(t, ok)
	assert.Equal(t, IRString("Ada"), obj["name"])
	assert.Equal(t, IRInt(36), obj["age"])
	assert.Equal(t, IRFloat(9.5), obj["score"])
	assert.Equal(t, IRRef{ID: "p2"}, obj["friend"])
	assert.Equal(t, IRArray{IRString("x")}, obj["tags"])
	assert.Equal(t, IRNull{}, obj["gone"])
}

func TestMarshalIRValueFloatKeepsFraction(t *testing.T) {
	b, err := MarshalIRValue(IRObject{"f": IRFloat(3), "r": IRRef{ID: "x"}})
	require.NoError(t, err)
	assert.Equal(t, `{"f":3.0,"r":{"$ref":"x"}}`, string(b))

	back, err := UnmarshalIRValue(b)
	require.NoError(t, err)
	assert.Equal(t, IRFloat(3), back.(IRObject)["f"])
}

func TestSortedKeys(t *testing.T) {
	obj := IRObject{"b": IRInt(1), "a": IRInt(2), "c": IRInt(3)}
	assert.Equal(t, []string{"a", "b", "c"}, obj.SortedKeys())
}

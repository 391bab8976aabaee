package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/graphq/internal/ir"
)

func TestRecordValidate(t *testing.T) {
	tests := []struct {
		name    string
		rec     Record
		wantErr string
	}{
		{"valid node", Record{ID: "a", Type: "User"}, ""},
		{"missing id", Record{Type: "User"}, "id is required"},
		{"missing type", Record{ID: "a"}, "type is required"},
		{"node with endpoints", Record{ID: "a", Type: "User", Source: "x"}, "only relationships"},
		{"relationship without target", Record{ID: "r", Kind: KindRelationship, Type: "KNOWS", Source: "a"}, "needs source and target"},
		{"unknown kind", Record{ID: "a", Type: "User", Kind: "edge"}, "unknown kind"},
		{"reserved prop", Record{ID: "a", Type: "User", Props: ir.IRObject{"id": ir.IRString("b")}}, "reserved"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rec.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEntityAccessors(t *testing.T) {
	props := ir.IRObject{"age": ir.IRInt(30)}
	e := NewEntity(Record{ID: "u1", Type: "User", Traits: []string{"Person"}, Props: props})

	props["age"] = ir.IRInt(99)

	assert.Equal(t, KindNode, e.Kind())
	assert.Equal(t, ir.IRInt(30), e.Get("age"), "entity must not alias caller maps")
	assert.Equal(t, ir.IRString("u1"), e.Get(IdentityKey))
	assert.Equal(t, ir.IRNull{}, e.Get("missing"))
	assert.True(t, e.HasType("User"))
	assert.True(t, e.HasType("Person"))
	assert.False(t, e.HasType("Admin"))

	_, _, ok := e.Endpoints()
	assert.False(t, ok)

	rel := NewEntity(Record{ID: "r1", Kind: KindRelationship, Type: "KNOWS", Source: "u1", Target: "u2"})
	src, dst, ok := rel.Endpoints()
	assert.True(t, ok)
	assert.Equal(t, "u1", src)
	assert.Equal(t, "u2", dst)
}

func TestMemoryScanOrderAndFilter(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Put(
		Record{ID: "c", Type: "User"},
		Record{ID: "a", Type: "Admin", Traits: []string{"User"}},
		Record{ID: "b", Type: "Group"},
		Record{ID: "r", Kind: KindRelationship, Type: "MEMBER", Source: "a", Target: "b"},
	))

	var got []string
	err := m.Scan(context.Background(), KindNode, "User", func(e Entity) error {
		got = append(got, e.ID())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, got)

	got = nil
	err = m.Scan(context.Background(), "", "", func(e Entity) error {
		got = append(got, e.ID())
		if len(got) == 2 {
			return ErrStopScan
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)

	boom := errors.New("boom")
	err = m.Scan(context.Background(), "", "", func(Entity) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestMemoryScanHonorsContext(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Put(Record{ID: "a", Type: "User"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := m.Scan(ctx, "", "", func(Entity) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryReferrers(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Put(
		Record{ID: "g1", Type: "Group"},
		Record{ID: "u2", Type: "User", Props: ir.IRObject{"groups": ir.IRArray{ir.IRRef{ID: "g1"}, ir.IRRef{ID: "g2"}}}},
		Record{ID: "u1", Type: "User", Props: ir.IRObject{"groups": ir.IRArray{ir.IRRef{ID: "g1"}}}},
	))

	refs, err := m.Referrers(context.Background(), "g1", "groups")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, IDs(refs))

	// Replacing a record drops its stale references.
	require.NoError(t, m.Put(Record{ID: "u2", Type: "User"}))
	refs, err = m.Referrers(context.Background(), "g1", "groups")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, IDs(refs))
	assert.Equal(t, 3, m.Len())
}

func TestMemoryPutIsAtomic(t *testing.T) {
	m := NewMemory()
	err := m.Put(Record{ID: "a", Type: "User"}, Record{ID: "", Type: "User"})
	require.Error(t, err)
	assert.Equal(t, 0, m.Len())

	_, err = m.Lookup(context.Background(), "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRefTargets(t *testing.T) {
	v := ir.IRArray{ir.IRRef{ID: "a"}, ir.IRArray{ir.IRRef{ID: "b"}, ir.IRRef{ID: "a"}}, ir.IRString("c")}
	assert.Equal(t, []string{"a", "b"}, RefTargets(v))
	assert.Nil(t, RefTargets(ir.IRString("x")))
}

func TestSchemaResolve(t *testing.T) {
	s, err := NewSchema(
		TypeDef{Name: "User", Keys: map[string]PropertyKey{
			"age":    {Kind: ir.KindInt},
			"groups": {Kind: ir.KindRef, Collection: true, Related: "Group", Notion: "name"},
		}},
		TypeDef{Name: "Group", Keys: map[string]PropertyKey{
			"name": {},
			"age":  {Kind: ir.KindFloat},
		}},
	)
	require.NoError(t, err)

	assert.Equal(t, ir.KindInt, s.Resolve("User", "age").Kind)
	assert.Equal(t, ir.KindFloat, s.Resolve("Group", "age").Kind)
	// Without a type, the first declaring type in name order wins.
	assert.Equal(t, ir.KindFloat, s.Resolve("", "age").Kind)
	assert.Equal(t, ir.KindString, s.Resolve("User", "nickname").Kind)
	assert.True(t, s.Resolve("User", IdentityKey).IsIdentity())

	groups := s.Resolve("User", "groups")
	assert.True(t, groups.IsRelationship())
	assert.Equal(t, "name", groups.NotionKey())
	assert.Equal(t, []string{"Group", "User"}, s.TypeNames())
}

func TestSchemaErrors(t *testing.T) {
	_, err := NewSchema(TypeDef{Name: "User"}, TypeDef{Name: "User"})
	assert.ErrorContains(t, err, "duplicate type")

	_, err = NewSchema(TypeDef{Name: "User", Keys: map[string]PropertyKey{"friend": {Kind: ir.KindRef, Related: "Nope"}}})
	assert.ErrorContains(t, err, "unknown type")

	_, err = NewSchema(TypeDef{Name: "User", Keys: map[string]PropertyKey{"friend": {Kind: ir.KindString, Related: "User"}}})
	assert.ErrorContains(t, err, "has related type")

	_, err = NewSchema(TypeDef{Name: "User", Keys: map[string]PropertyKey{"id": {}}})
	assert.ErrorContains(t, err, "reserved")
}

func TestPropertyKeyConvert(t *testing.T) {
	k := PropertyKey{Name: "scores", Kind: ir.KindInt, Collection: true}

	v, err := k.Convert(ir.IRArray{ir.IRString("1"), ir.IRString("2")})
	require.NoError(t, err)
	assert.Equal(t, ir.IRArray{ir.IRInt(1), ir.IRInt(2)}, v)

	orig := ir.IRArray{ir.IRString("1"), ir.IRString("x")}
	v, err = k.Convert(orig)
	require.Error(t, err)
	assert.ErrorIs(t, err, ir.ErrConversion)
	assert.Equal(t, orig, v)

	assert.Equal(t, ir.KindString, Key("x").SortType())
	assert.Equal(t, ir.KindFloat, PropertyKey{Kind: ir.KindInt, SortKind: ir.KindFloat}.SortType())
}

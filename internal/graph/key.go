package graph

import (
	"fmt"
	"slices"

	"github.com/roach88/graphq/internal/ir"
)

// PropertyKey describes how a property is typed, compared and sorted.
type PropertyKey struct {
	Name string
	Kind ir.Kind

	// Collection marks properties holding an ordered array of Kind values.
	Collection bool

	// Related names the entity type a relationship-typed property points at.
	Related string

	// Notion is the property of the related entity used when comparing by
	// projection. Empty means the related entity's identity.
	Notion string

	// SortKind overrides Kind for ordering. Empty means Kind.
	SortKind ir.Kind
}

// Key returns an untyped string key, used for properties no schema declares.
func Key(name string) PropertyKey {
	return PropertyKey{Name: name, Kind: ir.KindString}
}

// Identity is the key that reads entity IDs.
func Identity() PropertyKey {
	return PropertyKey{Name: IdentityKey, Kind: ir.KindString}
}

// IsIdentity reports whether the key reads entity IDs.
func (k PropertyKey) IsIdentity() bool {
	return k.Name == IdentityKey
}

// IsRelationship reports whether values of the key reference other entities.
func (k PropertyKey) IsRelationship() bool {
	return k.Related != "" || k.Kind == ir.KindRef
}

// NotionKey returns the related-entity property used for projection.
func (k PropertyKey) NotionKey() string {
	if k.Notion == "" {
		return IdentityKey
	}
	return k.Notion
}

// SortType returns the kind used to order values of this key.
func (k PropertyKey) SortType() ir.Kind {
	if k.SortKind != "" {
		return k.SortKind
	}
	if k.Kind == "" {
		return ir.KindString
	}
	return k.Kind
}

// Convert converts a search value to the key's declared kind. Arrays are
// converted element by element. The first conversion failure is returned
// together with the unconverted value.
func (k PropertyKey) Convert(v ir.IRValue) (ir.IRValue, error) {
	kind := k.Kind
	if kind == "" {
		kind = ir.KindString
	}
	if arr, ok := v.(ir.IRArray); ok {
		out := make(ir.IRArray, len(arr))
		for i, elem := range arr {
			c, err := k.Convert(elem)
			if err != nil {
				return v, fmt.Errorf("key %q element %d: %w", k.Name, i, err)
			}
			out[i] = c
		}
		return out, nil
	}
	c, err := ir.Convert(v, kind)
	if err != nil {
		return v, fmt.Errorf("key %q: %w", k.Name, err)
	}
	return c, nil
}

// TypeDef declares one entity type.
type TypeDef struct {
	Name         string
	Traits       []string
	Relationship bool
	Keys         map[string]PropertyKey
}

// Schema is the set of declared entity types.
type Schema struct {
	types map[string]*TypeDef
}

// NewSchema validates and indexes type definitions.
func NewSchema(defs ...TypeDef) (*Schema, error) {
	s := &Schema{types: make(map[string]*TypeDef, len(defs))}
	for _, def := range defs {
		if def.Name == "" {
			return nil, fmt.Errorf("schema: type name is required")
		}
		if _, dup := s.types[def.Name]; dup {
			return nil, fmt.Errorf("schema: duplicate type %q", def.Name)
		}
		d := def
		d.Keys = make(map[string]PropertyKey, len(def.Keys))
		for name, key := range def.Keys {
			if name == IdentityKey {
				return nil, fmt.Errorf("schema: type %q: key %q is reserved", def.Name, name)
			}
			key.Name = name
			if key.Kind == "" {
				key.Kind = ir.KindString
			}
			if key.Related != "" && key.Kind != ir.KindRef {
				return nil, fmt.Errorf("schema: type %q: key %q has related type but kind %s", def.Name, name, key.Kind)
			}
			d.Keys[name] = key
		}
		s.types[def.Name] = &d
	}
	for _, def := range s.types {
		for name, key := range def.Keys {
			if key.Related == "" {
				continue
			}
			if _, ok := s.types[key.Related]; !ok {
				return nil, fmt.Errorf("schema: type %q: key %q references unknown type %q", def.Name, name, key.Related)
			}
		}
	}
	return s, nil
}

// Type returns the definition of a type.
func (s *Schema) Type(name string) (*TypeDef, bool) {
	if s == nil {
		return nil, false
	}
	d, ok := s.types[name]
	return d, ok
}

// TypeNames returns all declared type names, sorted.
func (s *Schema) TypeNames() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.types))
	for n := range s.types {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Resolve finds the declaration of a key. The named type is consulted first,
// then every other type in name order. Unknown keys resolve to an untyped
// string key; the identity key always resolves to Identity().
func (s *Schema) Resolve(typeName, key string) PropertyKey {
	if key == IdentityKey {
		return Identity()
	}
	if d, ok := s.Type(typeName); ok {
		if k, ok := d.Keys[key]; ok {
			return k
		}
	}
	for _, n := range s.TypeNames() {
		if k, ok := s.types[n].Keys[key]; ok {
			return k
		}
	}
	return Key(key)
}

package graph

import (
	"fmt"
	"slices"

	"github.com/roach88/graphq/internal/ir"
)

// Kind distinguishes nodes from relationships.
type Kind string

const (
	KindNode         Kind = "node"
	KindRelationship Kind = "relationship"
)

// IdentityKey is the reserved property name that reads an entity's ID.
const IdentityKey = "id"

// Location property names read by distance predicates.
const (
	LatitudeKey  = "latitude"
	LongitudeKey = "longitude"
)

// Entity is a read-only view of one node or relationship.
type Entity interface {
	ID() string
	Kind() Kind
	Type() string

	// HasType reports whether name is the entity's type or one of its traits.
	HasType(name string) bool

	// Get returns the property value, or ir.IRNull{} when absent.
	// Get(IdentityKey) returns the ID as a string.
	Get(key string) ir.IRValue

	Hidden() bool

	// Endpoints returns the source and target IDs of a relationship.
	// ok is false for nodes.
	Endpoints() (source, target string, ok bool)

	Record() Record
}

// Record is the storable form of an entity.
type Record struct {
	ID     string      `json:"id" yaml:"id"`
	Kind   Kind        `json:"kind,omitempty" yaml:"kind,omitempty"`
	Type   string      `json:"type" yaml:"type"`
	Traits []string    `json:"traits,omitempty" yaml:"traits,omitempty"`
	Source string      `json:"source,omitempty" yaml:"source,omitempty"`
	Target string      `json:"target,omitempty" yaml:"target,omitempty"`
	Hidden bool        `json:"hidden,omitempty" yaml:"hidden,omitempty"`
	Props  ir.IRObject `json:"props,omitempty" yaml:"-"`
}

// Validate checks the structural rules every stored record must satisfy.
func (r Record) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("record: id is required")
	}
	if r.Type == "" {
		return fmt.Errorf("record %q: type is required", r.ID)
	}
	switch r.Kind {
	case "", KindNode:
		if r.Source != "" || r.Target != "" {
			return fmt.Errorf("record %q: only relationships have endpoints", r.ID)
		}
	case KindRelationship:
		if r.Source == "" || r.Target == "" {
			return fmt.Errorf("record %q: relationship needs source and target", r.ID)
		}
	default:
		return fmt.Errorf("record %q: unknown kind %q", r.ID, r.Kind)
	}
	if _, ok := r.Props[IdentityKey]; ok {
		return fmt.Errorf("record %q: property %q is reserved", r.ID, IdentityKey)
	}
	return nil
}

// NewEntity wraps a record. The record is copied; later changes to the
// caller's slices or maps do not leak into the entity.
func NewEntity(r Record) Entity {
	if r.Kind == "" {
		r.Kind = KindNode
	}
	e := &entity{rec: r}
	e.rec.Traits = slices.Clone(r.Traits)
	e.rec.Props = make(ir.IRObject, len(r.Props))
	for k, v := range r.Props {
		e.rec.Props[k] = v
	}
	return e
}

type entity struct {
	rec Record
}

func (e *entity) ID() string   { return e.rec.ID }
func (e *entity) Kind() Kind   { return e.rec.Kind }
func (e *entity) Type() string { return e.rec.Type }
func (e *entity) Hidden() bool { return e.rec.Hidden }

func (e *entity) HasType(name string) bool {
	return e.rec.Type == name || slices.Contains(e.rec.Traits, name)
}

func (e *entity) Get(key string) ir.IRValue {
	if key == IdentityKey {
		return ir.IRString(e.rec.ID)
	}
	if v, ok := e.rec.Props[key]; ok && v != nil {
		return v
	}
	return ir.IRNull{}
}

func (e *entity) Endpoints() (string, string, bool) {
	if e.rec.Kind != KindRelationship {
		return "", "", false
	}
	return e.rec.Source, e.rec.Target, true
}

func (e *entity) Record() Record {
	r := e.rec
	r.Traits = slices.Clone(e.rec.Traits)
	r.Props = make(ir.IRObject, len(e.rec.Props))
	for k, v := range e.rec.Props {
		r.Props[k] = v
	}
	return r
}

func (e *entity) String() string {
	return fmt.Sprintf("%s(%s)", e.rec.Type, e.rec.ID)
}

// IDs returns the IDs of the given entities in order.
func IDs(entities []Entity) []string {
	ids := make([]string, len(entities))
	for i, e := range entities {
		ids[i] = e.ID()
	}
	return ids
}

package graph

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/roach88/graphq/internal/ir"
)

// ErrNotFound is returned by Lookup for unknown IDs.
var ErrNotFound = errors.New("entity not found")

// ErrStopScan may be returned by a Scan callback to end the scan early.
// Scan then returns nil.
var ErrStopScan = errors.New("stop scan")

// Resolver looks up single entities by ID.
type Resolver interface {
	Lookup(ctx context.Context, id string) (Entity, error)
}

// Store is the entity storage the executor enumerates source candidates from.
type Store interface {
	Resolver

	// Scan calls fn for every entity of the given kind whose type or traits
	// include typeName, in ascending ID order. An empty typeName matches all.
	Scan(ctx context.Context, kind Kind, typeName string, fn func(Entity) error) error

	// Referrers returns the entities whose property key references targetID,
	// in ascending ID order.
	Referrers(ctx context.Context, targetID, key string) ([]Entity, error)
}

// RefTargets returns the IDs referenced by a property value, flattening
// nested arrays. Order is preserved and duplicates are dropped.
func RefTargets(v ir.IRValue) []string {
	var out []string
	var walk func(ir.IRValue)
	walk = func(v ir.IRValue) {
		switch val := v.(type) {
		case ir.IRRef:
			if !slices.Contains(out, val.ID) {
				out = append(out, val.ID)
			}
		case ir.IRArray:
			for _, elem := range val {
				walk(elem)
			}
		}
	}
	walk(v)
	return out
}

// Memory is an in-process Store. It is safe for concurrent use.
type Memory struct {
	mu       sync.RWMutex
	entities map[string]Entity
	ids      []string // sorted
	refs     map[string]map[string][]string
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		entities: make(map[string]Entity),
		refs:     make(map[string]map[string][]string),
	}
}

// Put inserts or replaces records. Nothing is written if any record is invalid.
func (m *Memory) Put(records ...Record) error {
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range records {
		if old, ok := m.entities[r.ID]; ok {
			m.unindex(old)
		} else {
			i, _ := slices.BinarySearch(m.ids, r.ID)
			m.ids = slices.Insert(m.ids, i, r.ID)
		}
		e := NewEntity(r)
		m.entities[r.ID] = e
		m.index(e)
	}
	return nil
}

func (m *Memory) index(e Entity) {
	rec := e.Record()
	for key, v := range rec.Props {
		for _, target := range RefTargets(v) {
			byKey, ok := m.refs[target]
			if !ok {
				byKey = make(map[string][]string)
				m.refs[target] = byKey
			}
			i, found := slices.BinarySearch(byKey[key], e.ID())
			if !found {
				byKey[key] = slices.Insert(byKey[key], i, e.ID())
			}
		}
	}
}

func (m *Memory) unindex(e Entity) {
	rec := e.Record()
	for key, v := range rec.Props {
		for _, target := range RefTargets(v) {
			byKey := m.refs[target]
			if i, found := slices.BinarySearch(byKey[key], e.ID()); found {
				byKey[key] = slices.Delete(byKey[key], i, i+1)
			}
		}
	}
}

// Lookup implements Resolver.
func (m *Memory) Lookup(_ context.Context, id string) (Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entities[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

// Scan implements Store.
func (m *Memory) Scan(ctx context.Context, kind Kind, typeName string, fn func(Entity) error) error {
	for _, e := range m.snapshot() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if kind != "" && e.Kind() != kind {
			continue
		}
		if typeName != "" && !e.HasType(typeName) {
			continue
		}
		if err := fn(e); err != nil {
			if errors.Is(err, ErrStopScan) {
				return nil
			}
			return err
		}
	}
	return nil
}

// Referrers implements Store.
func (m *Memory) Referrers(_ context.Context, targetID, key string) ([]Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.refs[targetID][key]
	out := make([]Entity, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.entities[id])
	}
	return out, nil
}

// All returns every entity in ascending ID order.
func (m *Memory) All() []Entity {
	return m.snapshot()
}

// Len returns the number of stored entities.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids)
}

// snapshot copies the ordered entity list so callbacks can run unlocked.
func (m *Memory) snapshot() []Entity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entity, len(m.ids))
	for i, id := range m.ids {
		out[i] = m.entities[id]
	}
	return out
}

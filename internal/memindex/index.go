package memindex

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/tidwall/btree"

	"github.com/roach88/graphq/internal/graph"
	"github.com/roach88/graphq/internal/ir"
	"github.com/roach88/graphq/internal/query"
)

// numEntry associates a numeric property element with an entity.
type numEntry struct {
	Value float64
	ID    string
}

// textEntry associates a string property element with an entity.
type textEntry struct {
	Value string
	ID    string
}

func numLess(a, b numEntry) bool {
	if a.Value != b.Value {
		return a.Value < b.Value
	}
	return a.ID < b.ID
}

func textLess(a, b textEntry) bool {
	if a.Value != b.Value {
		return a.Value < b.Value
	}
	return a.ID < b.ID
}

// Index is an in-memory store plus the secondary structures used to seed
// searches. It is safe for concurrent use.
type Index struct {
	mu      sync.RWMutex
	mem     *graph.Memory
	numbers map[string]*btree.BTreeG[numEntry]
	texts   map[string]*btree.BTreeG[textEntry]
	types   map[string]*btree.Set[string]
}

var _ query.Index = (*Index)(nil)

// New creates an empty index.
func New() *Index {
	return &Index{
		mem:     graph.NewMemory(),
		numbers: make(map[string]*btree.BTreeG[numEntry]),
		texts:   make(map[string]*btree.BTreeG[textEntry]),
		types:   make(map[string]*btree.Set[string]),
	}
}

// Store returns the underlying entity store, for source enumeration and
// relationship resolution.
func (ix *Index) Store() *graph.Memory { return ix.mem }

// Put inserts or replaces records. Nothing is written if any record is
// invalid.
func (ix *Index) Put(records ...graph.Record) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	var previous []graph.Entity
	for _, r := range records {
		if old, err := ix.mem.Lookup(context.Background(), r.ID); err == nil {
			previous = append(previous, old)
		}
	}
	if err := ix.mem.Put(records...); err != nil {
		return err
	}
	for _, old := range previous {
		ix.remove(old)
	}
	for _, r := range records {
		e, err := ix.mem.Lookup(context.Background(), r.ID)
		if err != nil {
			return fmt.Errorf("memindex: reload %q: %w", r.ID, err)
		}
		ix.add(e)
	}
	return nil
}

// Len returns the number of indexed entities.
func (ix *Index) Len() int { return ix.mem.Len() }

func (ix *Index) add(e graph.Entity) {
	ix.eachType(e, func(name string) {
		set, ok := ix.types[name]
		if !ok {
			set = &btree.Set[string]{}
			ix.types[name] = set
		}
		set.Insert(e.ID())
	})
	ix.eachValue(e, func(key string, n *float64, s *string) {
		if n != nil {
			tree, ok := ix.numbers[key]
			if !ok {
				tree = btree.NewBTreeG[numEntry](numLess)
				ix.numbers[key] = tree
			}
			tree.Set(numEntry{Value: *n, ID: e.ID()})
		}
		if s != nil {
			tree, ok := ix.texts[key]
			if !ok {
				tree = btree.NewBTreeG[textEntry](textLess)
				ix.texts[key] = tree
			}
			tree.Set(textEntry{Value: *s, ID: e.ID()})
		}
	})
}

func (ix *Index) remove(e graph.Entity) {
	ix.eachType(e, func(name string) {
		if set, ok := ix.types[name]; ok {
			set.Delete(e.ID())
		}
	})
	ix.eachValue(e, func(key string, n *float64, s *string) {
		if n != nil {
			if tree, ok := ix.numbers[key]; ok {
				tree.Delete(numEntry{Value: *n, ID: e.ID()})
			}
		}
		if s != nil {
			if tree, ok := ix.texts[key]; ok {
				tree.Delete(textEntry{Value: *s, ID: e.ID()})
			}
		}
	})
}

func (ix *Index) eachType(e graph.Entity, fn func(name string)) {
	rec := e.Record()
	if rec.Type != "" {
		fn(rec.Type)
	}
	for _, t := range rec.Traits {
		fn(t)
	}
}

// eachValue reports the numeric and string elements of every property.
func (ix *Index) eachValue(e graph.Entity, fn func(key string, n *float64, s *string)) {
	props := e.Record().Props
	for _, key := range props.SortedKeys() {
		for _, elem := range ir.Flatten(props[key]) {
			switch v := elem.(type) {
			case ir.IRInt:
				f := float64(v)
				fn(key, &f, nil)
			case ir.IRFloat:
				f := float64(v)
				fn(key, &f, nil)
			case ir.IRString:
				s := string(v)
				fn(key, nil, &s)
			}
		}
	}
}

// Search implements query.Index. Any SortOrder is accepted.
func (ix *Index) Search(ctx context.Context, req query.IndexRequest) (query.IndexResult, error) {
	ix.mu.RLock()
	seeded, ok := ix.seed(req.Root)
	ix.mu.RUnlock()

	var candidates []graph.Entity
	if ok {
		ids := make([]string, 0, len(seeded))
		for id := range seeded {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		for _, id := range ids {
			e, err := ix.mem.Lookup(ctx, id)
			if errors.Is(err, graph.ErrNotFound) {
				continue
			}
			if err != nil {
				return query.IndexResult{}, fmt.Errorf("%w: %w", query.ErrIndexUnavailable, err)
			}
			candidates = append(candidates, e)
		}
	} else {
		candidates = ix.mem.All()
	}

	matches := []graph.Entity{}
	for _, e := range candidates {
		if err := ctx.Err(); err != nil {
			return query.IndexResult{}, fmt.Errorf("%w: %w", query.ErrIndexUnavailable, err)
		}
		if req.Kind != "" && e.Kind() != req.Kind {
			continue
		}
		if req.Root != nil && !query.MatchRelaxed(req.Root, e, query.IndexMatch) {
			continue
		}
		matches = append(matches, e)
	}
	query.SortEntities(matches, req.Order)

	skipped := 0
	switch {
	case req.PageSize > 0:
		skipped = min(req.Offset(), len(matches))
		end := min(skipped+req.PageSize, len(matches))
		matches = matches[skipped:end]
	case req.Limit > 0 && len(matches) > req.Limit:
		matches = matches[:req.Limit]
	}
	return query.IndexResult{Cursor: query.NewSliceCursor(matches), Skipped: skipped}, nil
}

// seed intersects the candidate sets of the root's seedable children. ok is
// false when no child narrows the search.
func (ix *Index) seed(root *query.Group) (map[string]struct{}, bool) {
	if root == nil || root.Op() != query.OperatorAnd {
		return nil, false
	}
	var result map[string]struct{}
	for _, child := range root.Children() {
		ids, ok := ix.candidates(child)
		if !ok {
			continue
		}
		if result == nil {
			result = ids
			continue
		}
		for id := range result {
			if _, keep := ids[id]; !keep {
				delete(result, id)
			}
		}
	}
	return result, result != nil
}

// candidates returns a superset of the entities a leaf accepts, when the
// leaf can be answered from the secondary structures.
func (ix *Index) candidates(n query.Node) (map[string]struct{}, bool) {
	ids := make(map[string]struct{})
	switch leaf := n.(type) {
	case *query.UUID:
		for _, id := range leaf.IDs() {
			ids[id] = struct{}{}
		}
		return ids, true

	case *query.Type:
		if leaf.Negate {
			return nil, false
		}
		if set, ok := ix.types[leaf.Name]; ok {
			set.Scan(func(id string) bool {
				ids[id] = struct{}{}
				return true
			})
		}
		return ids, true

	case *query.Comparison:
		if leaf.Op != query.OpEqual || leaf.StringMode || leaf.Key.IsIdentity() {
			return nil, false
		}
		switch v := leaf.Value.(type) {
		case ir.IRInt:
			ix.numberRange(leaf.Key.Name, float64(v), float64(v), ids)
		case ir.IRFloat:
			ix.numberRange(leaf.Key.Name, float64(v), float64(v), ids)
		case ir.IRString:
			s := string(v)
			ix.textRange(leaf.Key.Name, &s, &s, ids)
		default:
			return nil, false
		}
		return ids, true

	case *query.Range:
		if leaf.Key.IsIdentity() || (leaf.Lo == nil && leaf.Hi == nil) {
			return nil, false
		}
		if lo, hi, ok := numericBounds(leaf.Lo, leaf.Hi); ok {
			ix.numberRange(leaf.Key.Name, lo, hi, ids)
			return ids, true
		}
		if lo, hi, ok := textBounds(leaf.Lo, leaf.Hi); ok {
			ix.textRange(leaf.Key.Name, lo, hi, ids)
			return ids, true
		}
	}
	return nil, false
}

// numberRange adds the IDs with a value in [lo, hi]. Bound exclusivity is
// left to the relaxed evaluation.
func (ix *Index) numberRange(key string, lo, hi float64, ids map[string]struct{}) {
	tree, ok := ix.numbers[key]
	if !ok {
		return
	}
	tree.Ascend(numEntry{Value: lo}, func(item numEntry) bool {
		if item.Value > hi {
			return false
		}
		ids[item.ID] = struct{}{}
		return true
	})
}

// textRange adds the IDs with a value between lo and hi. A nil bound is open.
func (ix *Index) textRange(key string, lo, hi *string, ids map[string]struct{}) {
	tree, ok := ix.texts[key]
	if !ok {
		return
	}
	visit := func(item textEntry) bool {
		if hi != nil && item.Value > *hi {
			return false
		}
		ids[item.ID] = struct{}{}
		return true
	}
	if lo == nil {
		tree.Scan(visit)
		return
	}
	tree.Ascend(textEntry{Value: *lo}, visit)
}

func numericBounds(lo, hi ir.IRValue) (float64, float64, bool) {
	l, h := math.Inf(-1), math.Inf(1)
	for i, b := range []ir.IRValue{lo, hi} {
		if b == nil {
			continue
		}
		var f float64
		switch v := b.(type) {
		case ir.IRInt:
			f = float64(v)
		case ir.IRFloat:
			f = float64(v)
		default:
			return 0, 0, false
		}
		if i == 0 {
			l = f
		} else {
			h = f
		}
	}
	return l, h, true
}

func textBounds(lo, hi ir.IRValue) (*string, *string, bool) {
	var out [2]*string
	for i, b := range []ir.IRValue{lo, hi} {
		if b == nil {
			continue
		}
		s, ok := b.(ir.IRString)
		if !ok {
			return nil, nil, false
		}
		str := string(s)
		out[i] = &str
	}
	return out[0], out[1], true
}

package query

// SourceRef is a source predicate found in the tree, with the operator of
// the group it sits in. The operator is recorded for diagnostics; merging is
// a union regardless of it.
type SourceRef struct {
	Source Source
	Intent Operator
}

// SearchConfig holds the facts about a tree that drive routing and paging.
type SearchConfig struct {
	HasSource                       bool
	HasSpatialSource                bool
	HasUnresolvedSpatial            bool
	HasEmptyFilterFields            bool
	HasRelationshipVisibilityFilter bool
	HasApproximatePushdown          bool

	Sources    []SourceRef
	Unresolved []*Distance
}

// Classify walks the tree once and collects its SearchConfig.
func Classify(root Node) SearchConfig {
	var cfg SearchConfig
	Walk(root, func(n Node, parent Operator) bool {
		p, ok := n.(Predicate)
		if !ok {
			return true
		}
		switch leaf := p.(type) {
		case *Distance:
			if leaf.NeedsGeocoding() {
				cfg.HasUnresolvedSpatial = true
				cfg.Unresolved = append(cfg.Unresolved, leaf)
			}
		case *Empty:
			cfg.HasEmptyFilterFields = true
		case *Visibility:
			cfg.HasRelationshipVisibilityFilter = true
		}
		if s, ok := p.(Source); ok && s.IsSource() {
			cfg.HasSource = true
			if _, spatial := s.(*Distance); spatial {
				cfg.HasSpatialSource = true
			}
			cfg.Sources = append(cfg.Sources, SourceRef{Source: s, Intent: parent})
			return true
		}
		if p.Pushdown() != PushExact {
			cfg.HasApproximatePushdown = true
		}
		return true
	})
	return cfg
}

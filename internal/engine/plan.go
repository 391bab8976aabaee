package engine

import (
	"github.com/roach88/graphq/internal/graph"
	"github.com/roach88/graphq/internal/metrics"
	"github.com/roach88/graphq/internal/query"
)

// Route is the path candidates come from.
type Route string

const (
	// RouteIndex delegates the tree to the index.
	RouteIndex Route = metrics.RouteIndex
	// RouteSources merges the candidates of source predicates.
	RouteSources Route = metrics.RouteSources
)

// Plan records the routing and paging decisions of one execution.
type Plan struct {
	Route Route `json:"route"`

	// PushPaging is set when the index applies the page window itself.
	PushPaging bool `json:"push_paging"`

	// PostFilter is set when candidates are re-evaluated against the tree.
	PostFilter bool `json:"post_filter"`

	// SortInMemory is set when the executor sorts instead of the index.
	SortInMemory bool `json:"sort_in_memory"`

	// Reasons lists why paging was deferred, for diagnostics.
	Reasons []string `json:"reasons,omitempty"`

	order      query.SortOrder
	indexOrder query.SortOrder
}

// Reasons paging is deferred to the executor.
const (
	ReasonSources      = "source predicates"
	ReasonComparator   = "custom comparator"
	ReasonCustomOrder  = "order not pushable"
	ReasonEmptiness    = "emptiness predicates"
	ReasonVisibility   = "relationship visibility"
	ReasonApproximate  = "approximate pushdown"
)

func (x *Executor) plan(ex *execution) Plan {
	q, cfg := ex.q, ex.cfg
	p := Plan{Route: RouteIndex}

	order := q.Order()
	if q.SortingDisabled() || q.IsPing() {
		order = nil
	}
	p.order = order

	if cfg.HasSource {
		p.Route = RouteSources
		p.PostFilter = true
		p.SortInMemory = true
		p.Reasons = append(p.Reasons, ReasonSources)
		return p
	}

	pushable := query.Pushable(order)
	if pushable {
		p.indexOrder = order
	}
	switch {
	case q.HasComparator():
		p.Reasons = append(p.Reasons, ReasonComparator)
	case !pushable:
		p.Reasons = append(p.Reasons, ReasonCustomOrder)
	}
	if cfg.HasEmptyFilterFields {
		p.Reasons = append(p.Reasons, ReasonEmptiness)
	}
	if cfg.HasRelationshipVisibilityFilter && q.Kind() == graph.KindRelationship {
		p.Reasons = append(p.Reasons, ReasonVisibility)
	}
	if cfg.HasApproximatePushdown {
		p.Reasons = append(p.Reasons, ReasonApproximate)
	}

	p.PostFilter = len(p.Reasons) > 0
	p.SortInMemory = !pushable
	size, _ := q.Window()
	p.PushPaging = !p.PostFilter && size > 0 && !q.IsPing()
	return p
}

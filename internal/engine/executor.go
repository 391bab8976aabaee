package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/graphq/internal/geocode"
	"github.com/roach88/graphq/internal/graph"
	"github.com/roach88/graphq/internal/metrics"
	"github.com/roach88/graphq/internal/query"
)

// Defaults for Executor.
const (
	DefaultIndexTimeout   = 30 * time.Second
	DefaultGeocodeTimeout = 5 * time.Second
)

// Executor runs queries against an index and the entity store behind it.
//
// An Executor holds no per-execution state and may run different queries
// from several goroutines; each Execute call runs single-threaded in the
// calling goroutine. A Query is not safe to share: execution geocodes its
// distance predicates in place and binds resolvers on its leaves, so each
// Query is built once and executed once.
type Executor struct {
	index          query.Index
	store          graph.Store
	geocoder       geocode.Geocoder
	maxMaterialize int
	indexTimeout   time.Duration
	geocodeTimeout time.Duration
	logger         *slog.Logger
	ids            IDGenerator
	clock          *Clock
	metrics        *metrics.Metrics
}

// Option configures an Executor.
type Option func(*Executor)

// WithGeocoder sets the geocoder used for address-based distance predicates.
// Without one, such predicates match nothing.
func WithGeocoder(g geocode.Geocoder) Option {
	return func(e *Executor) { e.geocoder = g }
}

// WithMaxMaterialized sets how many entities one execution may hold in
// memory. n <= 0 disables the limit.
func WithMaxMaterialized(n int) Option {
	return func(e *Executor) { e.maxMaterialize = n }
}

// WithIndexTimeout bounds each index search, including reading its results.
// d <= 0 disables the timeout.
func WithIndexTimeout(d time.Duration) Option {
	return func(e *Executor) { e.indexTimeout = d }
}

// WithGeocodeTimeout bounds each geocoding lookup.
func WithGeocodeTimeout(d time.Duration) Option {
	return func(e *Executor) { e.geocodeTimeout = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithExecutionIDs sets the generator of execution IDs.
func WithExecutionIDs(g IDGenerator) Option {
	return func(e *Executor) { e.ids = g }
}

// WithMetrics records executions.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithClock sets the clock stamping executions with sequence numbers.
func WithClock(c *Clock) Option {
	return func(e *Executor) { e.clock = c }
}

// New creates an executor. store is used to enumerate source candidates and
// to resolve related entities; it is normally the store behind index.
func New(index query.Index, store graph.Store, opts ...Option) *Executor {
	e := &Executor{
		index:          index,
		store:          store,
		maxMaterialize: DefaultMaxMaterialized,
		indexTimeout:   DefaultIndexTimeout,
		geocodeTimeout: DefaultGeocodeTimeout,
		logger:         slog.Default(),
		ids:            UUIDv7Generator{},
		clock:          NewClock(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Result is one page of a query.
type Result struct {
	ExecutionID string
	Seq         int64

	// Entities is the requested page, in result order.
	Entities []graph.Entity

	// Skipped is the number of matches before the page.
	Skipped int

	// Plan describes how the query was executed.
	Plan Plan

	// Materialized is the number of candidates read from sources or the index.
	Materialized int

	// Warnings are the value conversion warnings of the query.
	Warnings []query.Warning
}

// IDs returns the entity IDs of the page.
func (r *Result) IDs() []string { return graph.IDs(r.Entities) }

// Found reports whether the page holds at least one entity. It is the answer
// of a ping query.
func (r *Result) Found() bool { return len(r.Entities) > 0 }

// execution is the state of one Execute call.
type execution struct {
	id     string
	seq    int64
	q      *query.Query
	root   *query.Group
	cfg    query.SearchConfig
	plan   Plan
	budget *Budget
	logger *slog.Logger
}

// Execute runs q and returns the requested page.
//
// The query's address-based distance predicates are geocoded in place, so a
// query executed twice is geocoded once.
func (x *Executor) Execute(ctx context.Context, q *query.Query) (*Result, error) {
	start := time.Now()
	ex := &execution{
		id:     x.ids.Generate(),
		seq:    x.clock.Next(),
		q:      q,
		budget: NewBudget(x.maxMaterialize),
	}
	ex.logger = x.logger.With("execution", ex.id, "seq", ex.seq)

	res, err := x.execute(ctx, ex)
	if err != nil {
		var qe *QueryError
		if errors.As(err, &qe) {
			x.metrics.QueryError(string(qe.Kind))
		}
		ex.logger.Error("query failed", "route", ex.plan.Route, "error", err)
		return nil, err
	}

	x.metrics.Query(string(ex.plan.Route), time.Since(start).Seconds(), ex.budget.Current())
	ex.logger.Debug("query executed",
		"route", ex.plan.Route,
		"results", len(res.Entities),
		"skipped", res.Skipped,
		"materialized", res.Materialized,
		"duration", time.Since(start),
	)
	return res, nil
}

// Explanation describes how a query would run without running it.
type Explanation struct {
	ExecutionID string
	Plan        Plan

	// Request is what the index would be asked. Nil on the sources route.
	Request *query.IndexRequest

	Warnings []query.Warning
}

// Explain geocodes, prepares and plans q like Execute but reads no
// candidates. Preparation errors are returned as from Execute.
func (x *Executor) Explain(ctx context.Context, q *query.Query) (*Explanation, error) {
	ex := &execution{
		id:     x.ids.Generate(),
		seq:    x.clock.Next(),
		q:      q,
		budget: NewBudget(x.maxMaterialize),
	}
	ex.logger = x.logger.With("execution", ex.id, "seq", ex.seq)

	warnings, err := x.prepare(ctx, ex)
	if err != nil {
		return nil, err
	}
	out := &Explanation{ExecutionID: ex.id, Plan: ex.plan, Warnings: warnings}
	if ex.plan.Route == RouteIndex {
		req := x.indexRequest(ex)
		out.Request = &req
	}
	return out, nil
}

func (x *Executor) execute(ctx context.Context, ex *execution) (*Result, error) {
	warnings, err := x.prepare(ctx, ex)
	if err != nil {
		return nil, err
	}

	var (
		entities []graph.Entity
		skipped  int
	)
	if ex.plan.Route == RouteSources {
		entities, err = x.fromSources(ctx, ex)
	} else {
		entities, skipped, err = x.fromIndex(ctx, ex)
	}
	if err != nil {
		return nil, err
	}

	if !ex.plan.PushPaging {
		if ex.plan.SortInMemory {
			query.SortEntities(entities, ex.plan.order)
		}
		entities, skipped = x.page(ex, entities)
	}

	return &Result{
		ExecutionID:  ex.id,
		Seq:          ex.seq,
		Entities:     entities,
		Skipped:      skipped,
		Plan:         ex.plan,
		Materialized: ex.budget.Current(),
		Warnings:     warnings,
	}, nil
}

// prepare validates q, adds implicit visibility, geocodes, prepares the tree
// and plans the execution.
func (x *Executor) prepare(ctx context.Context, ex *execution) ([]query.Warning, error) {
	q := ex.q
	if q == nil {
		return nil, newQueryError(KindInvalidQuery, ex.id, "nil query", nil)
	}
	if err := q.Err(); err != nil {
		return nil, newQueryError(KindInvalidQuery, ex.id, "query could not be built", err)
	}

	warnings := q.Warnings()
	for _, w := range warnings {
		ex.logger.Warn("search value conversion failed",
			"key", w.Key,
			"value", w.Value,
			"error", w.Err,
		)
	}
	x.metrics.ConversionWarning(len(warnings))

	ex.root = q.Root()
	if !q.Superuser() {
		children := append(q.Root().Children(), &query.Visibility{})
		ex.root = query.NewGroup(query.OperatorAnd, children...)
	}

	ex.cfg = query.Classify(ex.root)
	if ex.cfg.HasUnresolvedSpatial {
		x.geocode(ctx, ex, ex.cfg.Unresolved)
		if err := ctx.Err(); err != nil {
			return nil, cancelled(ex.id, err)
		}
		ex.cfg = query.Classify(ex.root)
	}

	if err := query.Prepare(ex.root, query.Env{Resolve: x.resolver(ctx)}); err != nil {
		return nil, prepareError(ex.id, err)
	}

	ex.plan = x.plan(ex)
	ex.logger.Debug("query planned",
		"route", ex.plan.Route,
		"push_paging", ex.plan.PushPaging,
		"post_filter", ex.plan.PostFilter,
		"reasons", ex.plan.Reasons,
	)
	return warnings, nil
}

// geocode resolves every pending distance predicate. Failures make the
// predicate match nothing and are never returned.
func (x *Executor) geocode(ctx context.Context, ex *execution, pending []*query.Distance) {
	for _, d := range pending {
		if x.geocoder == nil {
			ex.logger.Warn("no geocoder configured", "address", d.Address)
			d.Fail()
			continue
		}
		gctx := ctx
		var cancel context.CancelFunc = func() {}
		if x.geocodeTimeout > 0 {
			gctx, cancel = context.WithTimeout(ctx, x.geocodeTimeout)
		}
		p, ok, err := x.geocoder.Geocode(gctx, d.Address)
		cancel()
		switch {
		case err != nil:
			ex.logger.Warn("geocoding failed", "address", d.Address, "error", err)
			d.Fail()
		case !ok:
			ex.logger.Info("address not found", "address", d.Address)
			d.Fail()
		default:
			d.Resolve(p.Lat, p.Lon)
		}
	}
}

// resolver looks up related entities for relationship projection and
// visibility. Lookup failures count as missing entities.
func (x *Executor) resolver(ctx context.Context) func(id string) (graph.Entity, bool) {
	return func(id string) (graph.Entity, bool) {
		if x.store == nil {
			return nil, false
		}
		e, err := x.store.Lookup(ctx, id)
		if err != nil {
			return nil, false
		}
		return e, true
	}
}

// errPingFound ends source enumeration once a ping has its match.
var errPingFound = errors.New("ping found a match")

// fromSources merges the candidates of every source predicate, in the order
// the sources appear in the tree, keeping the first occurrence of each ID.
// The merge is a union whatever the enclosing operator; post-filtering
// applies the tree's semantics.
//
// Candidates are charged to the budget as they stream in, so an exhausted
// budget stops the enumeration itself.
func (x *Executor) fromSources(ctx context.Context, ex *execution) ([]graph.Entity, error) {
	if x.store == nil {
		return nil, newQueryError(KindSourceFailure, ex.id, "no entity store configured", nil)
	}
	typeName := topLevelType(ex.q.Root())

	seen := make(map[string]struct{})
	var out []graph.Entity
	for _, ref := range ex.cfg.Sources {
		if err := ctx.Err(); err != nil {
			return nil, cancelled(ex.id, err)
		}
		enumerated := 0
		err := ref.Source.Candidates(ctx, x.store, ex.q.Kind(), typeName, func(e graph.Entity) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			enumerated++
			if _, dup := seen[e.ID()]; dup {
				return nil
			}
			seen[e.ID()] = struct{}{}
			if err := ex.budget.Charge(1); err != nil {
				return err
			}
			if e.Kind() != ex.q.Kind() || !query.MatchWith(ex.root, e, query.IndexMatch) {
				return nil
			}
			out = append(out, e)
			if ex.q.IsPing() {
				return errPingFound
			}
			return nil
		})
		ex.logger.Debug("source enumerated",
			"source", ref.Source.Kind(),
			"intent", ref.Intent,
			"candidates", enumerated,
		)
		switch {
		case err == nil:
		case errors.Is(err, errPingFound):
			return out, nil
		case IsLimitExceededError(err):
			return nil, limitError(ex.id, err)
		case ctx.Err() != nil:
			return nil, cancelled(ex.id, ctx.Err())
		default:
			return nil, newQueryError(KindSourceFailure, ex.id,
				fmt.Sprintf("%s source failed", ref.Source.Kind()), err)
		}
	}
	return out, nil
}

// fromIndex delegates the tree to the index and drains the cursor. skipped
// is only meaningful when paging was pushed down.
func (x *Executor) fromIndex(ctx context.Context, ex *execution) (entities []graph.Entity, skipped int, err error) {
	if x.index == nil {
		return nil, 0, newQueryError(KindIndexUnavailable, ex.id, "no index configured", query.ErrIndexUnavailable)
	}
	req := x.indexRequest(ex)

	ictx := ctx
	if x.indexTimeout > 0 {
		var cancel context.CancelFunc
		ictx, cancel = context.WithTimeout(ctx, x.indexTimeout)
		defer cancel()
	}

	res, err := x.index.Search(ictx, req)
	if err != nil {
		return nil, 0, x.indexError(ctx, ex, err)
	}
	defer res.Cursor.Close()

	for res.Cursor.Next() {
		if err := ctx.Err(); err != nil {
			return nil, 0, cancelled(ex.id, err)
		}
		if err := ex.budget.Charge(1); err != nil {
			return nil, 0, limitError(ex.id, err)
		}
		e := res.Cursor.Entity()
		if ex.plan.PostFilter && !query.MatchWith(ex.root, e, query.IndexMatch) {
			continue
		}
		entities = append(entities, e)
		if ex.q.IsPing() {
			break
		}
	}
	if err := res.Cursor.Err(); err != nil {
		return nil, 0, x.indexError(ctx, ex, err)
	}
	return entities, res.Skipped, nil
}

func (x *Executor) indexRequest(ex *execution) query.IndexRequest {
	req := query.IndexRequest{
		Kind:  ex.q.Kind(),
		Root:  ex.root,
		Order: ex.plan.indexOrder,
	}
	switch {
	case ex.plan.PushPaging:
		req.PageSize, req.Page = ex.q.Window()
	case ex.q.IsPing() && !ex.plan.PostFilter:
		req.Limit = 1
	case x.maxMaterialize > 0:
		// One past the budget, so exceeding it is detected.
		req.Limit = x.maxMaterialize + 1
	}
	return req
}

func (x *Executor) indexError(ctx context.Context, ex *execution, err error) error {
	if ctx.Err() != nil {
		return cancelled(ex.id, ctx.Err())
	}
	return newQueryError(KindIndexUnavailable, ex.id, "index search failed", err)
}

// page slices the in-memory result to the query's window.
func (x *Executor) page(ex *execution, entities []graph.Entity) ([]graph.Entity, int) {
	size, page := ex.q.Window()
	if ex.q.IsPing() {
		if len(entities) > 1 {
			entities = entities[:1]
		}
		return entities, 0
	}
	if size <= 0 {
		return entities, 0
	}
	offset := min(max(page-1, 0)*size, len(entities))
	end := min(offset+size, len(entities))
	return entities[offset:end], offset
}

// topLevelType returns the type named by a Type predicate directly under
// root, which source enumeration can narrow by. Empty when there is none.
func topLevelType(root *query.Group) string {
	for _, c := range root.Children() {
		if t, ok := c.(*query.Type); ok && !t.Negate {
			return t.Name
		}
	}
	return ""
}

func prepareError(id string, err error) error {
	switch {
	case errors.Is(err, query.ErrInvalidRegex):
		return newQueryError(KindInvalidRegex, id, "invalid regular expression", err)
	case errors.Is(err, query.ErrMalformedRange):
		return newQueryError(KindMalformedRange, id, "malformed range", err)
	default:
		return newQueryError(KindInvalidQuery, id, "invalid predicate", err)
	}
}

func cancelled(id string, err error) error {
	return newQueryError(KindCancelled, id, "execution cancelled", err)
}

func limitError(id string, err error) error {
	return newQueryError(KindResourceLimit, id, "materialization limit exceeded", err)
}

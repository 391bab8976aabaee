package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/graphq/internal/geocode"
	"github.com/roach88/graphq/internal/graph"
	"github.com/roach88/graphq/internal/ir"
	"github.com/roach88/graphq/internal/memindex"
	"github.com/roach88/graphq/internal/metrics"
	"github.com/roach88/graphq/internal/query"
	"github.com/roach88/graphq/internal/store"
)

var (
	berlin  = geocode.Point{Lat: 52.52, Lon: 13.405}
	potsdam = geocode.Point{Lat: 52.39, Lon: 13.06}
	paris   = geocode.Point{Lat: 48.85, Lon: 2.35}
)

func testSchema(t *testing.T) *graph.Schema {
	t.Helper()
	userKeys := map[string]graph.PropertyKey{
		"name":   {Kind: ir.KindString},
		"age":    {Kind: ir.KindInt},
		"tags":   {Kind: ir.KindString, Collection: true},
		"groups": {Kind: ir.KindRef, Collection: true, Related: "Group"},
	}
	s, err := graph.NewSchema(
		graph.TypeDef{Name: "User", Keys: userKeys},
		graph.TypeDef{Name: "Admin", Keys: userKeys},
		graph.TypeDef{Name: "Group", Keys: map[string]graph.PropertyKey{
			"name": {Kind: ir.KindString},
		}},
		graph.TypeDef{Name: "member", Relationship: true, Keys: map[string]graph.PropertyKey{
			"role": {Kind: ir.KindString},
		}},
	)
	require.NoError(t, err)
	return s
}

func user(id, typ, name string, age int64, at *geocode.Point, groups ...string) graph.Record {
	props := ir.IRObject{"name": ir.IRString(name), "age": ir.IRInt(age)}
	if at != nil {
		props[graph.LatitudeKey] = ir.IRFloat(at.Lat)
		props[graph.LongitudeKey] = ir.IRFloat(at.Lon)
	}
	if len(groups) > 0 {
		refs := make(ir.IRArray, len(groups))
		for i, g := range groups {
			refs[i] = ir.IRRef{ID: g}
		}
		props["groups"] = refs
	}
	return graph.Record{ID: id, Kind: graph.KindNode, Type: typ, Props: props}
}

func testRecords() []graph.Record {
	hidden := user("u4", "User", "Grace", 30, &berlin, "g1")
	hidden.Hidden = true
	return []graph.Record{
		{ID: "g1", Kind: graph.KindNode, Type: "Group", Props: ir.IRObject{"name": ir.IRString("Engineering")}},
		{ID: "g2", Kind: graph.KindNode, Type: "Group", Props: ir.IRObject{"name": ir.IRString("Sales")}},
		user("u1", "User", "Ada", 30, &berlin, "g1"),
		user("u2", "User", "Alan", 31, &paris, "g2"),
		user("u3", "Admin", "Root", 30, nil),
		hidden,
		user("u5", "User", "Bob", 40, &potsdam, "g1"),
		{ID: "r1", Kind: graph.KindRelationship, Type: "member", Source: "u1", Target: "g1", Props: ir.IRObject{"role": ir.IRString("lead")}},
		{ID: "r2", Kind: graph.KindRelationship, Type: "member", Source: "u4", Target: "g1"},
		{ID: "r3", Kind: graph.KindRelationship, Type: "member", Source: "u2", Target: "g2"},
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newExecutor(t *testing.T, opts ...Option) *Executor {
	t.Helper()
	ix := memindex.New()
	require.NoError(t, ix.Put(testRecords()...))
	geo := geocode.NewStatic(map[string]geocode.Point{"Berlin": berlin})
	base := []Option{WithLogger(quietLogger()), WithGeocoder(geo)}
	return New(ix, ix.Store(), append(base, opts...)...)
}

func run(t *testing.T, x *Executor, q *query.Query) *Result {
	t.Helper()
	res, err := x.Execute(context.Background(), q)
	require.NoError(t, err)
	return res
}

func TestExecute_Queries(t *testing.T) {
	s := testSchema(t)
	tests := []struct {
		name  string
		build func(q *query.Query)
		want  []string
	}{
		{
			name:  "type and exact age",
			build: func(q *query.Query) { q.Where().Type("User").Key("age", 30) },
			want:  []string{"u1"},
		},
		{
			name:  "superuser sees hidden entities",
			build: func(q *query.Query) { q.AsSuperuser().Where().Type("User").Key("age", 30) },
			want:  []string{"u1", "u4"},
		},
		{
			name: "not excludes every child",
			build: func(q *query.Query) {
				q.Where().Type("User")
				q.Where().Not().Key("age", 30).Key("age", 31)
			},
			want: []string{"u5"},
		},
		{
			name: "or of ages",
			build: func(q *query.Query) {
				q.Where().Or().Key("age", 31).Key("age", 40)
			},
			want: []string{"u2", "u5"},
		},
		{
			name:  "half-open range",
			build: func(q *query.Query) { q.Where().Type("User").RangeBounds("age", 30, 40, true, false) },
			want:  []string{"u1", "u2"},
		},
		{
			name:  "inexact name post-filtered",
			build: func(q *query.Query) { q.Where().Type("User").Like("name", "AL") },
			want:  []string{"u2"},
		},
		{
			name:  "regex post-filtered",
			build: func(q *query.Query) { q.Where().Type("User").MatchesRegex("name", "^A") },
			want:  []string{"u1", "u2"},
		},
		{
			name:  "related by identity",
			build: func(q *query.Query) { q.Where().Type("User").Related("groups", "g1") },
			want:  []string{"u1", "u5"},
		},
		{
			name:  "location within radius",
			build: func(q *query.Query) { q.Where().Type("User").Location("Berlin", 50) },
			want:  []string{"u1", "u5"},
		},
		{
			name:  "resolved location",
			build: func(q *query.Query) { q.Where().LocationAt(paris.Lat, paris.Lon, 10) },
			want:  []string{"u2"},
		},
		{
			name: "sources merge as a union",
			build: func(q *query.Query) {
				q.Where().Type("User")
				q.Where().Or().Related("groups", "g2").LocationAt(berlin.Lat, berlin.Lon, 50)
			},
			want: []string{"u1", "u2", "u5"},
		},
		{
			name:  "relationships hide hidden endpoints",
			build: func(q *query.Query) { q.Relationships().Where().Type("member") },
			want:  []string{"r1", "r3"},
		},
		{
			name:  "relationships as superuser",
			build: func(q *query.Query) { q.Relationships().AsSuperuser().Where().Type("member") },
			want:  []string{"r1", "r2", "r3"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := newExecutor(t)
			q := query.New(s)
			tt.build(q)
			res := run(t, x, q)
			assert.Equal(t, tt.want, res.IDs())
		})
	}
}

func TestExecute_UserAdminEndToEnd(t *testing.T) {
	s := testSchema(t)
	ix := memindex.New()
	require.NoError(t, ix.Put(
		user("a", "User", "u30", 30, nil),
		user("b", "User", "u31", 31, nil),
		user("c", "Admin", "a30", 30, nil),
	))
	x := New(ix, ix.Store(), WithLogger(quietLogger()))

	q := query.New(s)
	q.Where().Type("User").Key("age", 30)
	res := run(t, x, q)
	assert.Equal(t, []string{"a"}, res.IDs())
	assert.Equal(t, RouteIndex, res.Plan.Route)
	assert.False(t, res.Plan.PostFilter)
}

func TestExecute_FailedGeocodingMatchesNothing(t *testing.T) {
	s := testSchema(t)

	t.Run("unknown address", func(t *testing.T) {
		q := query.New(s)
		q.Where().Type("User").Location("Atlantis", 100)
		res := run(t, newExecutor(t), q)
		assert.Empty(t, res.Entities)
	})

	t.Run("geocoder error", func(t *testing.T) {
		failing := geocode.Func(func(context.Context, string) (geocode.Point, bool, error) {
			return geocode.Point{}, false, errors.New("service down")
		})
		q := query.New(s)
		q.Where().Type("User").Location("Berlin", 100)
		res := run(t, newExecutor(t, WithGeocoder(failing)), q)
		assert.Empty(t, res.Entities)
	})

	t.Run("no geocoder", func(t *testing.T) {
		q := query.New(s)
		q.Where().Type("User").Location("Berlin", 100)
		res := run(t, newExecutor(t, WithGeocoder(nil)), q)
		assert.Empty(t, res.Entities)
	})

	t.Run("failed distance under or", func(t *testing.T) {
		q := query.New(s)
		q.Where().Type("User")
		q.Where().Or().Location("Atlantis", 100).Key("age", 31)
		res := run(t, newExecutor(t), q)
		assert.Equal(t, []string{"u2"}, res.IDs())
	})
}

func TestExecute_GeocodesOnce(t *testing.T) {
	calls := 0
	geo := geocode.Func(func(_ context.Context, address string) (geocode.Point, bool, error) {
		calls++
		return berlin, true, nil
	})
	x := newExecutor(t, WithGeocoder(geo))

	q := query.New(testSchema(t))
	q.Where().Type("User").Location("Berlin", 50)
	q.Where().Or().Location("Berlin", 1).Key("age", 40)

	res := run(t, x, q)
	assert.Equal(t, []string{"u1", "u5"}, res.IDs())
	assert.Equal(t, 2, calls, "one lookup per predicate")

	run(t, x, q)
	assert.Equal(t, 2, calls, "resolved predicates are not geocoded again")
}

func TestExecute_Paging(t *testing.T) {
	s := testSchema(t)
	tests := []struct {
		name        string
		build       func(q *query.Query)
		want        []string
		skipped     int
		pushPaging  bool
		sortInMem   bool
		wantReasons []string
	}{
		{
			name: "pushed to index",
			build: func(q *query.Query) {
				q.AsSuperuser().Sort("age", false).PageSize(2).Page(2).Where().Type("User")
			},
			want:       []string{"u2", "u5"},
			skipped:    2,
			pushPaging: true,
		},
		{
			name: "visible nodes only",
			build: func(q *query.Query) {
				q.Sort("age", false).PageSize(2).Page(2).Where().Type("User")
			},
			want:       []string{"u5"},
			skipped:    2,
			pushPaging: true,
		},
		{
			name: "page past the end",
			build: func(q *query.Query) {
				q.Sort("age", false).PageSize(2).Page(5).Where().Type("User")
			},
			want:       []string{},
			skipped:    3,
			pushPaging: true,
		},
		{
			name: "comparator defers paging",
			build: func(q *query.Query) {
				q.Comparator(func(a, b graph.Entity) int {
					return -strings.Compare(ir.Stringify(a.Get("name")), ir.Stringify(b.Get("name")))
				}).PageSize(2).Page(2).Where().Type("User")
			},
			want:        []string{"u1"},
			skipped:     2,
			sortInMem:   true,
			wantReasons: []string{ReasonComparator},
		},
		{
			name: "approximate pushdown defers paging",
			build: func(q *query.Query) {
				q.Sort("age", true).PageSize(1).Page(2).Where().Type("User").Like("name", "a")
			},
			want:        []string{"u1"},
			skipped:     1,
			wantReasons: []string{ReasonApproximate},
		},
		{
			name: "sources sort and page in memory",
			build: func(q *query.Query) {
				q.Sort("age", true).PageSize(1).Page(1).Where().Type("User").Related("groups", "g1")
			},
			want:        []string{"u5"},
			skipped:     0,
			sortInMem:   true,
			wantReasons: []string{ReasonSources},
		},
		{
			name: "relationship visibility defers paging",
			build: func(q *query.Query) {
				q.Relationships().PageSize(1).Page(2).Where().Type("member")
			},
			want:        []string{"r3"},
			skipped:     1,
			wantReasons: []string{ReasonVisibility},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := query.New(s)
			tt.build(q)
			res := run(t, newExecutor(t), q)
			assert.Equal(t, tt.want, res.IDs())
			assert.Equal(t, tt.skipped, res.Skipped)
			assert.Equal(t, tt.pushPaging, res.Plan.PushPaging)
			assert.Equal(t, tt.sortInMem, res.Plan.SortInMemory)
			assert.Equal(t, tt.wantReasons, res.Plan.Reasons)
		})
	}
}

func TestExecute_DisableSortingUsesIDOrder(t *testing.T) {
	q := query.New(testSchema(t))
	q.Sort("age", true).DisableSorting().Where().Type("User").Related("groups", "g1")
	res := run(t, newExecutor(t), q)
	assert.Equal(t, []string{"u1", "u5"}, res.IDs())
}

func TestExecute_Ping(t *testing.T) {
	s := testSchema(t)

	q := query.New(s)
	q.Ping().Where().Type("User")
	res := run(t, newExecutor(t), q)
	assert.True(t, res.Found())
	assert.Len(t, res.Entities, 1)
	assert.Equal(t, 1, res.Materialized)

	q = query.New(s)
	q.Ping().Where().Type("User").Like("name", "zz")
	res = run(t, newExecutor(t), q)
	assert.False(t, res.Found())

	q = query.New(s)
	q.Ping().Where().Type("User").Related("groups", "g1", "g2")
	res = run(t, newExecutor(t), q)
	assert.False(t, res.Found(), "no user is in exactly both groups")
}

func TestExecute_Errors(t *testing.T) {
	s := testSchema(t)
	tests := []struct {
		name  string
		build func(q *query.Query)
		kind  ErrorKind
		is    error
	}{
		{
			name:  "invalid regex",
			build: func(q *query.Query) { q.Where().MatchesRegex("name", "(") },
			kind:  KindInvalidRegex,
			is:    query.ErrInvalidRegex,
		},
		{
			name:  "malformed range",
			build: func(q *query.Query) { q.Where().Range("age", []any{1, 2}, 30) },
			kind:  KindMalformedRange,
			is:    query.ErrMalformedRange,
		},
		{
			name:  "builder error",
			build: func(q *query.Query) { q.Where().Key("id", []any{}) },
			kind:  KindInvalidQuery,
			is:    query.ErrInvalidQuery,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := query.New(s)
			tt.build(q)
			_, err := newExecutor(t).Execute(context.Background(), q)
			require.Error(t, err)
			assert.True(t, IsKind(err, tt.kind), "got %v", err)
			assert.ErrorIs(t, err, tt.is)
		})
	}
}

// failingIndex fails every search, or every cursor after n entities.
type failingIndex struct {
	inner    query.Index
	afterN   int
	searched bool
}

var errBackend = errors.New("backend gone")

func (f *failingIndex) Search(ctx context.Context, req query.IndexRequest) (query.IndexResult, error) {
	f.searched = true
	if f.inner == nil {
		return query.IndexResult{}, fmt.Errorf("%w: %w", query.ErrIndexUnavailable, errBackend)
	}
	res, err := f.inner.Search(ctx, req)
	if err != nil {
		return res, err
	}
	res.Cursor = &failingCursor{Cursor: res.Cursor, left: f.afterN}
	return res, nil
}

type failingCursor struct {
	query.Cursor
	left int
	err  error
}

func (c *failingCursor) Next() bool {
	if c.left == 0 {
		c.err = errBackend
		return false
	}
	c.left--
	return c.Cursor.Next()
}

func (c *failingCursor) Err() error { return c.err }

func TestExecute_IndexFailure(t *testing.T) {
	ix := memindex.New()
	require.NoError(t, ix.Put(testRecords()...))
	s := testSchema(t)

	t.Run("search fails", func(t *testing.T) {
		x := New(&failingIndex{}, ix.Store(), WithLogger(quietLogger()))
		q := query.New(s)
		q.Where().Type("User")
		res, err := x.Execute(context.Background(), q)
		require.Error(t, err)
		assert.Nil(t, res)
		assert.True(t, IsIndexUnavailable(err))
		assert.ErrorIs(t, err, query.ErrIndexUnavailable)
	})

	t.Run("cursor fails mid-read", func(t *testing.T) {
		x := New(&failingIndex{inner: ix, afterN: 1}, ix.Store(), WithLogger(quietLogger()))
		q := query.New(s)
		q.Where().Type("User")
		res, err := x.Execute(context.Background(), q)
		require.Error(t, err)
		assert.Nil(t, res, "no partial result")
		assert.True(t, IsIndexUnavailable(err))
		assert.ErrorIs(t, err, errBackend)
	})

	t.Run("sources skip the index", func(t *testing.T) {
		idx := &failingIndex{}
		x := New(idx, ix.Store(), WithLogger(quietLogger()))
		q := query.New(s)
		q.Where().Type("User").Related("groups", "g2")
		res, err := x.Execute(context.Background(), q)
		require.NoError(t, err)
		assert.Equal(t, []string{"u2"}, res.IDs())
		assert.False(t, idx.searched)
	})
}

func TestExecute_Cancelled(t *testing.T) {
	s := testSchema(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, build := range []func(q *query.Query){
		func(q *query.Query) { q.Where().Type("User") },
		func(q *query.Query) { q.Where().Type("User").Related("groups", "g1") },
		func(q *query.Query) { q.Where().Type("User").Location("Berlin", 10) },
	} {
		q := query.New(s)
		build(q)
		_, err := newExecutor(t).Execute(ctx, q)
		require.Error(t, err)
		assert.True(t, IsCancelled(err), "got %v", err)
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestExecute_ResourceLimit(t *testing.T) {
	s := testSchema(t)

	t.Run("index", func(t *testing.T) {
		q := query.New(s)
		q.AsSuperuser().Where().Type("User")
		_, err := newExecutor(t, WithMaxMaterialized(2)).Execute(context.Background(), q)
		require.Error(t, err)
		assert.True(t, IsResourceLimit(err))
		assert.True(t, IsLimitExceededError(err))
	})

	t.Run("sources", func(t *testing.T) {
		q := query.New(s)
		q.Where().Type("User").Related("groups", "g1")
		_, err := newExecutor(t, WithMaxMaterialized(1)).Execute(context.Background(), q)
		require.Error(t, err)
		assert.True(t, IsResourceLimit(err))
	})

	t.Run("within limit", func(t *testing.T) {
		q := query.New(s)
		q.AsSuperuser().Where().Type("User")
		res := run(t, newExecutor(t, WithMaxMaterialized(4)), q)
		assert.Equal(t, []string{"u1", "u2", "u4", "u5"}, res.IDs())
	})
}

// scanCounter counts the entities a store hands to Scan callbacks.
type scanCounter struct {
	graph.Store
	scanned int
}

func (s *scanCounter) Scan(ctx context.Context, kind graph.Kind, typeName string, fn func(graph.Entity) error) error {
	return s.Store.Scan(ctx, kind, typeName, func(e graph.Entity) error {
		s.scanned++
		return fn(e)
	})
}

func TestExecute_ResourceLimitStopsSourceEnumeration(t *testing.T) {
	ix := memindex.New()
	for i := 0; i < 50; i++ {
		require.NoError(t, ix.Put(user(fmt.Sprintf("c%02d", i), "User", "Near", 20, &berlin)))
	}
	counter := &scanCounter{Store: ix.Store()}
	x := New(ix, counter, WithLogger(quietLogger()), WithMaxMaterialized(10))

	q := query.New(testSchema(t))
	q.Where().Type("User").LocationAt(berlin.Lat, berlin.Lon, 5)
	_, err := x.Execute(context.Background(), q)
	require.Error(t, err)
	assert.True(t, IsResourceLimit(err))
	assert.Equal(t, 11, counter.scanned, "enumeration stops at the first candidate over the limit")
}

func TestExecute_ConcurrentQueries(t *testing.T) {
	x := newExecutor(t)
	s := testSchema(t)

	const workers = 8
	results := make([][]string, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q := query.New(s)
			q.Where().Type("User").Location("Berlin", 50)
			res, err := x.Execute(context.Background(), q)
			errs[i] = err
			if err == nil {
				results[i] = res.IDs()
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, []string{"u1", "u5"}, results[i])
	}
}

func TestExecute_PagedSearchIgnoresLimit(t *testing.T) {
	q := query.New(testSchema(t))
	q.AsSuperuser().PageSize(1).Where().Type("User")
	res := run(t, newExecutor(t, WithMaxMaterialized(1)), q)
	assert.Equal(t, []string{"u1"}, res.IDs())
	assert.Equal(t, 1, res.Materialized)
}

func TestExecute_MetricsAndWarnings(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	x := newExecutor(t, WithMetrics(m), WithExecutionIDs(NewFixedGenerator("exec-1", "exec-2")), WithClock(NewClockAt(41)))

	q := query.New(testSchema(t))
	q.Where().Type("User").Key("age", "thirty")
	res := run(t, x, q)
	assert.Empty(t, res.Entities)
	assert.Equal(t, "exec-1", res.ExecutionID)
	assert.Equal(t, int64(42), res.Seq)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "age", res.Warnings[0].Key)

	bad := query.New(testSchema(t))
	bad.Where().MatchesRegex("name", "[")
	_, err := x.Execute(context.Background(), bad)
	require.Error(t, err)
	var qe *QueryError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "exec-2", qe.ExecutionID)

	assert.Equal(t, 1.0, promtest.ToFloat64(m.Queries.WithLabelValues(metrics.RouteIndex)))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.QueryErrors.WithLabelValues(string(KindInvalidRegex))))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.ConversionWarnings))
}

func TestExecute_SQLiteMatchesMemory(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Put(ctx, testRecords()...))

	geo := geocode.NewStatic(map[string]geocode.Point{"Berlin": berlin})
	sqlx := New(st.Index(), st, WithLogger(quietLogger()), WithGeocoder(geo))
	memx := newExecutor(t)

	s := testSchema(t)
	builds := []func(q *query.Query){
		func(q *query.Query) { q.Where().Type("User").Key("age", 30) },
		func(q *query.Query) { q.Sort("age", true).PageSize(2).Where().Type("User") },
		func(q *query.Query) { q.Where().Type("User").Like("name", "a") },
		func(q *query.Query) {
			q.Where().Type("User")
			q.Where().Not().Key("age", 30).Key("age", 31)
		},
		func(q *query.Query) { q.Where().Type("User").Location("Berlin", 50) },
		func(q *query.Query) { q.Relationships().Where().Type("member") },
		func(q *query.Query) { q.Relationships().AsSuperuser().PageSize(2).Page(2).Where().Type("member") },
	}
	for i, build := range builds {
		mq, sq := query.New(s), query.New(s)
		build(mq)
		build(sq)
		want := run(t, memx, mq)
		got := run(t, sqlx, sq)
		assert.Equal(t, want.IDs(), got.IDs(), "query %d", i)
		assert.Equal(t, want.Skipped, got.Skipped, "query %d", i)
	}
}

func TestExplain(t *testing.T) {
	s := testSchema(t)

	t.Run("index route", func(t *testing.T) {
		q := query.New(s)
		q.AsSuperuser().Sort("age", false).PageSize(2).Page(2).Where().Type("User")
		exp, err := newExecutor(t).Explain(context.Background(), q)
		require.NoError(t, err)
		assert.Equal(t, RouteIndex, exp.Plan.Route)
		assert.True(t, exp.Plan.PushPaging)
		require.NotNil(t, exp.Request)
		assert.Equal(t, graph.KindNode, exp.Request.Kind)
		assert.Equal(t, 2, exp.Request.PageSize)
		assert.Equal(t, 2, exp.Request.Page)
		assert.Equal(t, 2, exp.Request.Offset())
	})

	t.Run("sources route", func(t *testing.T) {
		q := query.New(s)
		q.Where().Type("User").Location("Berlin", 50)
		exp, err := newExecutor(t).Explain(context.Background(), q)
		require.NoError(t, err)
		assert.Equal(t, RouteSources, exp.Plan.Route)
		assert.Equal(t, []string{ReasonSources}, exp.Plan.Reasons)
		assert.Nil(t, exp.Request)
	})

	t.Run("ping limits the index", func(t *testing.T) {
		q := query.New(s)
		q.Ping().Where().Type("User")
		exp, err := newExecutor(t).Explain(context.Background(), q)
		require.NoError(t, err)
		require.NotNil(t, exp.Request)
		assert.Equal(t, 1, exp.Request.Limit)
	})

	t.Run("preparation errors", func(t *testing.T) {
		q := query.New(s)
		q.Where().MatchesRegex("name", "[")
		_, err := newExecutor(t).Explain(context.Background(), q)
		var qe *QueryError
		require.ErrorAs(t, err, &qe)
		assert.Equal(t, KindInvalidRegex, qe.Kind)
	})
}

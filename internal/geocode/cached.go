package geocode

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/roach88/graphq/internal/metrics"
)

// Defaults for Cached.
const (
	DefaultCacheSize   = 1024
	DefaultTTL         = 24 * time.Hour
	DefaultNegativeTTL = time.Hour
	DefaultTimeout     = 5 * time.Second
)

type entry struct {
	point   Point
	ok      bool
	expires time.Time
}

// Cached decorates a Geocoder.
//
// Answers are kept in an LRU keyed by the normalized address; found
// addresses live for the TTL and unknown ones for the negative TTL. Failed
// lookups are not cached. Concurrent lookups of the same address share one
// call to the wrapped geocoder, which runs under its own timeout so that a
// caller giving up does not fail the others.
type Cached struct {
	next        Geocoder
	cache       *lru.Cache[string, entry]
	group       singleflight.Group
	ttl         time.Duration
	negativeTTL time.Duration
	timeout     time.Duration
	now         func() time.Time
	metrics     *metrics.Metrics
}

var _ Geocoder = (*Cached)(nil)

// Option configures a Cached geocoder.
type Option func(*options)

type options struct {
	size        int
	ttl         time.Duration
	negativeTTL time.Duration
	timeout     time.Duration
	now         func() time.Time
	metrics     *metrics.Metrics
}

// WithSize sets the maximum number of cached addresses.
func WithSize(n int) Option {
	return func(o *options) { o.size = n }
}

// WithTTL sets how long resolved addresses are cached.
func WithTTL(d time.Duration) Option {
	return func(o *options) { o.ttl = d }
}

// WithNegativeTTL sets how long unknown addresses are cached. Zero disables
// negative caching.
func WithNegativeTTL(d time.Duration) Option {
	return func(o *options) { o.negativeTTL = d }
}

// WithTimeout bounds each call to the wrapped geocoder.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithClock sets the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithMetrics records lookup outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// NewCached wraps next.
func NewCached(next Geocoder, opts ...Option) (*Cached, error) {
	o := options{
		size:        DefaultCacheSize,
		ttl:         DefaultTTL,
		negativeTTL: DefaultNegativeTTL,
		timeout:     DefaultTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if next == nil {
		return nil, fmt.Errorf("geocode: nil geocoder")
	}
	cache, err := lru.New[string, entry](o.size)
	if err != nil {
		return nil, fmt.Errorf("geocode: cache: %w", err)
	}
	return &Cached{
		next:        next,
		cache:       cache,
		ttl:         o.ttl,
		negativeTTL: o.negativeTTL,
		timeout:     o.timeout,
		now:         o.now,
		metrics:     o.metrics,
	}, nil
}

// Geocode implements Geocoder. Blank addresses are unknown without a lookup.
func (c *Cached) Geocode(ctx context.Context, address string) (Point, bool, error) {
	key := Normalize(address)
	if key == "" {
		c.metrics.Geocode(metrics.GeocodeNotFound)
		return Point{}, false, nil
	}
	if e, ok := c.lookup(key); ok {
		c.metrics.Geocode(metrics.GeocodeHit)
		return e.point, e.ok, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		// A flight that finished between the lookup above and DoChan has
		// already stored its answer.
		if e, ok := c.lookup(key); ok {
			return e, nil
		}
		lctx := context.WithoutCancel(ctx)
		if c.timeout > 0 {
			var cancel context.CancelFunc
			lctx, cancel = context.WithTimeout(lctx, c.timeout)
			defer cancel()
		}
		p, ok, err := c.next.Geocode(lctx, address)
		if err != nil {
			return nil, err
		}
		c.store(key, p, ok)
		return entry{point: p, ok: ok}, nil
	})

	select {
	case <-ctx.Done():
		c.metrics.Geocode(metrics.GeocodeError)
		return Point{}, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			c.metrics.Geocode(metrics.GeocodeError)
			return Point{}, false, fmt.Errorf("geocode %q: %w", address, res.Err)
		}
		e := res.Val.(entry)
		if e.ok {
			c.metrics.Geocode(metrics.GeocodeResolved)
		} else {
			c.metrics.Geocode(metrics.GeocodeNotFound)
		}
		return e.point, e.ok, nil
	}
}

// Len returns the number of cached answers, including expired ones not yet
// evicted.
func (c *Cached) Len() int { return c.cache.Len() }

// Purge drops every cached answer.
func (c *Cached) Purge() { c.cache.Purge() }

func (c *Cached) lookup(key string) (entry, bool) {
	e, ok := c.cache.Get(key)
	if !ok {
		return entry{}, false
	}
	if !c.now().Before(e.expires) {
		c.cache.Remove(key)
		return entry{}, false
	}
	return e, true
}

func (c *Cached) store(key string, p Point, ok bool) {
	ttl := c.ttl
	if !ok {
		ttl = c.negativeTTL
	}
	if ttl <= 0 {
		return
	}
	c.cache.Add(key, entry{point: p, ok: ok, expires: c.now().Add(ttl)})
}

// Package geocode resolves addresses to coordinates for distance predicates.
//
// Geocoder is the collaborator the executor calls. Static serves a fixed
// table (typically from configuration) and Cached decorates any Geocoder with
// a bounded, expiring cache, call coalescing and a per-lookup timeout.
package geocode

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Lat float64 `yaml:"lat" json:"lat"`
	Lon float64 `yaml:"lon" json:"lon"`
}

func (p Point) String() string {
	return fmt.Sprintf("(%g, %g)", p.Lat, p.Lon)
}

// Geocoder resolves an address.
//
// ok is false when the address is unknown; that answer is authoritative and
// may be cached. A non-nil error means the lookup itself failed.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (p Point, ok bool, err error)
}

// Func adapts a function to the Geocoder interface.
type Func func(ctx context.Context, address string) (Point, bool, error)

func (f Func) Geocode(ctx context.Context, address string) (Point, bool, error) {
	return f(ctx, address)
}

// Normalize returns the lookup key of an address: case folded, with runs of
// whitespace collapsed.
func Normalize(address string) string {
	return strings.Join(strings.Fields(cases.Fold().String(address)), " ")
}

// Static resolves addresses from a fixed table. It is safe for concurrent use.
type Static struct {
	points map[string]Point
}

var _ Geocoder = (*Static)(nil)

// NewStatic creates a table geocoder. Addresses are normalized.
func NewStatic(points map[string]Point) *Static {
	s := &Static{points: make(map[string]Point, len(points))}
	for addr, p := range points {
		s.points[Normalize(addr)] = p
	}
	return s
}

// Geocode implements Geocoder.
func (s *Static) Geocode(ctx context.Context, address string) (Point, bool, error) {
	if err := ctx.Err(); err != nil {
		return Point{}, false, err
	}
	p, ok := s.points[Normalize(address)]
	return p, ok, nil
}

// Len returns the number of known addresses.
func (s *Static) Len() int { return len(s.points) }

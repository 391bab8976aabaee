package query

import (
	"context"
	"fmt"
	"math"

	"github.com/roach88/graphq/internal/graph"
	"github.com/roach88/graphq/internal/ir"
)

// earthRadiusKm is the mean Earth radius used for great-circle distances.
const earthRadiusKm = 6371.0

// Distance matches entities located within RadiusKm of a point. Entities are
// located by their latitude and longitude properties.
//
// A distance built from an address needs geocoding before it can match. The
// executor resolves it exactly once; until then, and after a failed lookup,
// the predicate matches nothing.
type Distance struct {
	Address  string
	Lat, Lon float64
	RadiusKm float64

	resolved bool
	failed   bool
}

func (*Distance) queryNode() {}

// NewDistance builds a resolved distance predicate.
func NewDistance(lat, lon, radiusKm float64) *Distance {
	return &Distance{Lat: lat, Lon: lon, RadiusKm: radiusKm, resolved: true}
}

// NewAddressDistance builds a distance predicate that needs geocoding.
func NewAddressDistance(address string, radiusKm float64) *Distance {
	return &Distance{Address: address, RadiusKm: radiusKm}
}

func (d *Distance) Kind() string       { return "distance" }
func (d *Distance) Exact() bool        { return true }
func (d *Distance) Indexable() bool    { return false }
func (d *Distance) Pushdown() Pushdown { return PushNone }

// NeedsGeocoding reports whether the address still has to be resolved.
func (d *Distance) NeedsGeocoding() bool {
	return !d.resolved && !d.failed
}

// Resolve records the geocoded coordinates.
func (d *Distance) Resolve(lat, lon float64) {
	d.Lat, d.Lon = lat, lon
	d.resolved = true
	d.failed = false
}

// Fail records a failed geocoding attempt. The predicate then matches nothing.
func (d *Distance) Fail() {
	d.resolved = false
	d.failed = true
}

// Failed reports whether geocoding failed.
func (d *Distance) Failed() bool { return d.failed }

// IsSource implements Source. Only a resolved distance enumerates candidates.
func (d *Distance) IsSource() bool { return d.resolved }

func (d *Distance) prepare(Env) error {
	if d.RadiusKm < 0 || math.IsNaN(d.RadiusKm) {
		return fmt.Errorf("%w: distance radius %v", ErrInvalidQuery, d.RadiusKm)
	}
	return nil
}

// Locate reads an entity's coordinates.
func Locate(e graph.Entity) (lat, lon float64, ok bool) {
	la, err := ir.Convert(e.Get(graph.LatitudeKey), ir.KindFloat)
	if err != nil {
		return 0, 0, false
	}
	lo, err := ir.Convert(e.Get(graph.LongitudeKey), ir.KindFloat)
	if err != nil {
		return 0, 0, false
	}
	laf, ok1 := la.(ir.IRFloat)
	lof, ok2 := lo.(ir.IRFloat)
	if !ok1 || !ok2 {
		return 0, 0, false
	}
	return float64(laf), float64(lof), true
}

func (d *Distance) Matches(e graph.Entity) bool {
	if !d.resolved {
		return false
	}
	lat, lon, ok := Locate(e)
	if !ok {
		return false
	}
	return Haversine(d.Lat, d.Lon, lat, lon) <= d.RadiusKm
}

// inBox is a cheap prefilter: a bounding box containing the search circle.
// A circle reaching a pole spans every longitude.
func (d *Distance) inBox(lat, lon float64) bool {
	dLat := d.RadiusKm / earthRadiusKm * 180 / math.Pi
	if math.Abs(lat-d.Lat) > dLat {
		return false
	}
	if d.Lat+dLat >= 90 || d.Lat-dLat <= -90 {
		return true
	}
	cos := math.Cos(d.Lat * math.Pi / 180)
	if cos < 1e-9 {
		return true
	}
	dLon := dLat / cos
	diff := math.Abs(lon - d.Lon)
	if diff > 180 {
		diff = 360 - diff
	}
	return diff <= dLon
}

// Candidates implements Source: every located entity within the radius.
func (d *Distance) Candidates(ctx context.Context, store graph.Store, kind graph.Kind, typeName string, yield func(graph.Entity) error) error {
	if !d.resolved {
		return nil
	}
	var stopped error
	err := store.Scan(ctx, kind, typeName, func(e graph.Entity) error {
		lat, lon, ok := Locate(e)
		if !ok || !d.inBox(lat, lon) {
			return nil
		}
		if Haversine(d.Lat, d.Lon, lat, lon) > d.RadiusKm {
			return nil
		}
		if err := yield(e); err != nil {
			stopped = err
			return graph.ErrStopScan
		}
		return nil
	})
	if stopped != nil {
		return stopped
	}
	if err != nil {
		return fmt.Errorf("distance: scan: %w", err)
	}
	return nil
}

// Haversine returns the great-circle distance in kilometres.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const rad = math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(a)))
}

func (d *Distance) String() string {
	if d.Address != "" && !d.resolved {
		return fmt.Sprintf("within %gkm of %q", d.RadiusKm, d.Address)
	}
	return fmt.Sprintf("within %gkm of (%g,%g)", d.RadiusKm, d.Lat, d.Lon)
}

// internal/service/geo/math.go

package geo

import (
	"math"

	"roomscope/internal/domain/room"
	"roomscope/internal/domain/viewport"

	"github.com/paulmach/orb"
)

const (
	// EarthRadiusMeters is the sphere radius used for great-circle distances
	EarthRadiusMeters = 6371000.0

	// MetersPerDegree approximates one degree of latitude
	MetersPerDegree = 111000.0
)

// Distance returns the great-circle distance in meters using the Haversine formula.
// NaN inputs produce NaN.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180.0
	lat2Rad := lat2 * math.Pi / 180.0
	dLat := (lat2 - lat1) * math.Pi / 180.0
	dLon := (lon2 - lon1) * math.Pi / 180.0

	hSin := math.Sin(dLat / 2)
	hSin *= hSin

	vSin := math.Sin(dLon / 2)
	vSin *= vSin

	h := hSin + math.Cos(lat1Rad)*math.Cos(lat2Rad)*vSin

	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(math.Min(h, 1)))
}

// IsWithinRadius checks whether a point lies within radiusMeters of the center.
// A radius of 0 means global visibility and always returns true.
func IsWithinRadius(centerLat, centerLon, lat, lon, radiusMeters float64) bool {
	if radiusMeters == 0 {
		return true
	}
	return Distance(centerLat, centerLon, lat, lon) <= radiusMeters
}

// PointInBounds is a closed-interval containment test. Non-finite
// coordinates are never inside.
func PointInBounds(lat, lng float64, b viewport.Bounds) bool {
	if !finite(lat) || !finite(lng) {
		return false
	}

	if b.West > b.East {
		// antimeridian: test the eastern and western halves
		east := viewport.NewBounds(b.West, b.South, 180, b.North)
		west := viewport.NewBounds(-180, b.South, b.East, b.North)
		return east.Bound().Contains(orb.Point{lng, lat}) || west.Bound().Contains(orb.Point{lng, lat})
	}
	return b.Bound().Contains(orb.Point{lng, lat})
}

// BoundsCenter returns the midpoint of the bounds
func BoundsCenter(b viewport.Bounds) room.Point {
	if b.West > b.East {
		lng := b.West + b.LngSpan()/2
		if lng > 180 {
			lng -= 360
		}
		return room.Point{Lat: (b.South + b.North) / 2, Lng: lng}
	}

	c := b.Bound().Center()
	return room.Point{Lat: c.Lat(), Lng: c.Lon()}
}

// BoundsSpan returns the larger of the latitude and longitude extents in degrees
func BoundsSpan(b viewport.Bounds) float64 {
	return math.Max(b.LatSpan(), b.LngSpan())
}

// PadBounds grows each side of the bounds by factor times the matching span
func PadBounds(b viewport.Bounds, factor float64) viewport.Bounds {
	if factor <= 0 {
		return b
	}

	lngPad := b.LngSpan() * factor
	latPad := b.LatSpan() * factor
	return viewport.NewBounds(b.West-lngPad, b.South-latPad, b.East+lngPad, b.North+latPad)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

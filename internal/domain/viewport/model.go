package viewport

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// ErrInvalidBounds is returned when bounds cannot describe a map region
var ErrInvalidBounds = errors.New("invalid bounds")

// Bounds is a [west, south, east, north] rectangle in degrees
type Bounds struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// NewBounds builds bounds from the [west, south, east, north] order used on the wire
func NewBounds(west, south, east, north float64) Bounds {
	return Bounds{West: west, South: south, East: east, North: north}
}

// FromSlice converts a 4-element [west, south, east, north] slice
func FromSlice(v []float64) (Bounds, error) {
	if len(v) != 4 {
		return Bounds{}, fmt.Errorf("%w: want 4 values, got %d", ErrInvalidBounds, len(v))
	}

	b := NewBounds(v[0], v[1], v[2], v[3])
	if err := b.Validate(); err != nil {
		return Bounds{}, err
	}
	return b, nil
}

// Validate checks the values are finite and south is not above north
func (b Bounds) Validate() error {
	for _, v := range b.Slice() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value", ErrInvalidBounds)
		}
	}
	if b.South > b.North {
		return fmt.Errorf("%w: south %f above north %f", ErrInvalidBounds, b.South, b.North)
	}
	return nil
}

// Slice returns the bounds in [west, south, east, north] order
func (b Bounds) Slice() []float64 {
	return []float64{b.West, b.South, b.East, b.North}
}

// Bound converts to an orb.Bound (lng as X, lat as Y)
func (b Bounds) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.West, b.South},
		Max: orb.Point{b.East, b.North},
	}
}

// FromBound converts an orb.Bound back to Bounds
func FromBound(bound orb.Bound) Bounds {
	return NewBounds(bound.Min.Lon(), bound.Min.Lat(), bound.Max.Lon(), bound.Max.Lat())
}

// LatSpan returns the north-south extent in degrees
func (b Bounds) LatSpan() float64 {
	return math.Abs(b.North - b.South)
}

// LngSpan returns the east-west extent in degrees. Bounds crossing the
// antimeridian (west > east) wrap around.
func (b Bounds) LngSpan() float64 {
	if b.West > b.East {
		return b.East + 360 - b.West
	}
	return b.East - b.West
}

// IsWorldView reports whether the bounds are the full-globe sentinel a map
// reports before it has been positioned.
func (b Bounds) IsWorldView() bool {
	return b.LatSpan() >= 90 || b.LngSpan() >= 180
}

// Viewport is the visible map region
type Viewport struct {
	Bounds Bounds  `json:"bounds"`
	Zoom   float64 `json:"zoom"`
}

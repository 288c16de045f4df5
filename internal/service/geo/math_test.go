package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"roomscope/internal/domain/viewport"
)

func TestDistance(t *testing.T) {
	// One degree of latitude along a meridian
	d := Distance(0, 0, 1, 0)
	assert.InDelta(t, 111195, d, 1)

	assert.Equal(t, 0.0, Distance(40.7128, -74.006, 40.7128, -74.006))

	// Symmetric
	ab := Distance(40.7128, -74.006, 51.5074, -0.1278)
	ba := Distance(51.5074, -0.1278, 40.7128, -74.006)
	assert.InDelta(t, ab, ba, 1e-6)
	assert.InDelta(t, 5570000, ab, 10000)

	// Across the antimeridian
	assert.InDelta(t, Distance(0, 179.5, 0, -179.5), Distance(0, 0, 0, 1), 1e-6)

	assert.True(t, math.IsNaN(Distance(math.NaN(), 0, 0, 0)))
}

func TestIsWithinRadius(t *testing.T) {
	assert.True(t, IsWithinRadius(0, 0, 10, 10, 0), "zero radius means global visibility")
	assert.True(t, IsWithinRadius(0, 0, 0.001, 0, 1000))
	assert.False(t, IsWithinRadius(0, 0, 1, 0, 1000))
}

func TestPointInBounds(t *testing.T) {
	b := viewport.NewBounds(-1, -1, 1, 1)

	assert.True(t, PointInBounds(0, 0, b))
	assert.True(t, PointInBounds(1, 1, b), "edges are inside")
	assert.True(t, PointInBounds(-1, -1, b))
	assert.False(t, PointInBounds(1.0001, 0, b))
	assert.False(t, PointInBounds(math.NaN(), 0, b))
	assert.False(t, PointInBounds(0, math.Inf(1), b))

	wrapped := viewport.NewBounds(170, -10, -170, 10)
	assert.True(t, PointInBounds(0, 175, wrapped))
	assert.True(t, PointInBounds(0, -175, wrapped))
	assert.False(t, PointInBounds(0, 0, wrapped))
}

func TestBoundsCenter(t *testing.T) {
	c := BoundsCenter(viewport.NewBounds(-10, -20, 30, 40))
	assert.InDelta(t, 10, c.Lat, 1e-9)
	assert.InDelta(t, 10, c.Lng, 1e-9)

	wrapped := BoundsCenter(viewport.NewBounds(170, 0, -170, 10))
	assert.InDelta(t, 5, wrapped.Lat, 1e-9)
	assert.InDelta(t, 180, math.Abs(wrapped.Lng), 1e-9)
}

func TestPadBounds(t *testing.T) {
	b := viewport.NewBounds(-0.1, -0.1, 0.1, 0.1)

	padded := PadBounds(b, 0.5)
	assert.InDelta(t, -0.2, padded.West, 1e-9)
	assert.InDelta(t, -0.2, padded.South, 1e-9)
	assert.InDelta(t, 0.2, padded.East, 1e-9)
	assert.InDelta(t, 0.2, padded.North, 1e-9)

	assert.Equal(t, b, PadBounds(b, 0))
	assert.InDelta(t, 0.2, BoundsSpan(b), 1e-9)
}

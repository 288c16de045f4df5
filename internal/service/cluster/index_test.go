package cluster

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "roomscope/internal/domain/cluster"
	"roomscope/internal/domain/room"
	"roomscope/internal/domain/viewport"
)

func testRoom(id string, lat, lng float64) room.Room {
	return room.Room{
		ID:        id,
		Latitude:  room.Float(lat),
		Longitude: room.Float(lng),
		Status:    room.StatusOpen,
		Category:  room.CategoryGeneral,
	}
}

func scenarioRooms() []room.Room {
	return []room.Room{
		testRoom("a", 0, 0),
		testRoom("b", 0.001, 0.001),
		testRoom("c", 5, 5),
	}
}

func countKinds(features []domain.Feature) (clusters, rooms int) {
	for _, f := range features {
		if f.IsCluster() {
			clusters++
		} else {
			rooms++
		}
	}
	return clusters, rooms
}

func TestVisibleFeatures_ClustersNearbyRooms(t *testing.T) {
	idx := NewIndex(scenarioRooms(), DefaultOptions())
	require.Equal(t, 3, idx.Len())

	features := idx.VisibleFeatures(viewport.NewBounds(-0.1, -0.1, 0.1, 0.1), 10)
	require.Len(t, features, 1)

	f := features[0]
	assert.True(t, f.IsCluster())
	assert.Equal(t, 2, f.PointCount)
	assert.NotEmpty(t, f.ClusterID)
	require.NotNil(t, f.ExpansionBounds)
	assert.InDelta(t, 0.0005, f.Latitude, 1e-4)
	assert.InDelta(t, 0.0005, f.Longitude, 1e-4)

	// The far room shows up once the viewport reaches it
	wide := idx.VisibleFeatures(viewport.NewBounds(-1, -1, 6, 6), 10)
	clusters, rooms := countKinds(wide)
	assert.Equal(t, 1, clusters)
	assert.Equal(t, 1, rooms)
}

func TestVisibleFeatures_SplitsAtHighZoom(t *testing.T) {
	idx := NewIndex(scenarioRooms(), DefaultOptions())

	features := idx.VisibleFeatures(viewport.NewBounds(-0.01, -0.01, 0.01, 0.01), 17)
	clusters, rooms := countKinds(features)
	assert.Equal(t, 0, clusters)
	assert.Equal(t, 2, rooms)
}

func TestVisibleFeatures_HugeZoomUsesFinestLevel(t *testing.T) {
	idx := NewIndex(scenarioRooms(), DefaultOptions())
	bounds := viewport.NewBounds(-0.01, -0.01, 0.01, 0.01)

	for _, zoom := range []float64{math.Inf(1), 1e300} {
		features := idx.VisibleFeatures(bounds, zoom)
		clusters, rooms := countKinds(features)
		assert.Equal(t, 0, clusters, "zoom %v", zoom)
		assert.Equal(t, 2, rooms, "zoom %v", zoom)
	}

	assert.Equal(t, idx.VisibleFeatures(bounds, 0), idx.VisibleFeatures(bounds, math.Inf(-1)))
}

func TestVisibleFeatures_EveryRoomAppearsOnce(t *testing.T) {
	var rooms []room.Room
	for i := 0; i < 200; i++ {
		lat := float64(i%20)*0.01 - 0.1
		lng := float64(i/20)*0.01 - 0.05
		rooms = append(rooms, testRoom(fmt.Sprintf("r%03d", i), lat, lng))
	}
	idx := NewIndex(rooms, DefaultOptions())
	world := viewport.NewBounds(-180, -85, 180, 85)

	for zoom := 0.0; zoom <= 17; zoom++ {
		total := 0
		seen := make(map[string]struct{})
		for _, f := range idx.VisibleFeatures(world, zoom) {
			if f.IsCluster() {
				total += f.PointCount
				continue
			}
			_, dup := seen[f.RoomID]
			require.False(t, dup, "room %s repeated at zoom %v", f.RoomID, zoom)
			seen[f.RoomID] = struct{}{}
			total++
		}
		assert.Equal(t, len(rooms), total, "zoom %v", zoom)
	}
}

func TestVisibleFeatures_DropsMalformedInput(t *testing.T) {
	rooms := []room.Room{
		testRoom("ok", 1, 1),
		testRoom("", 1, 1.0001),
		testRoom("nan", math.NaN(), 1),
		testRoom("inf", 1, math.Inf(-1)),
		{ID: "missing"},
	}
	idx := NewIndex(rooms, DefaultOptions())
	assert.Equal(t, 1, idx.Len())

	features := idx.VisibleFeatures(viewport.NewBounds(0, 0, 2, 2), 20)
	require.Len(t, features, 1)
	assert.Equal(t, "ok", features[0].RoomID)
	for _, f := range features {
		assert.False(t, math.IsNaN(f.Latitude))
		assert.False(t, math.IsNaN(f.Longitude))
	}
}

func TestVisibleFeatures_InvalidQuery(t *testing.T) {
	idx := NewIndex(scenarioRooms(), DefaultOptions())

	assert.Empty(t, idx.VisibleFeatures(viewport.NewBounds(-1, 1, 1, -1), 10))
	assert.Empty(t, idx.VisibleFeatures(viewport.NewBounds(-1, -1, 1, 1), math.NaN()))
	assert.Empty(t, NewIndex(nil, DefaultOptions()).VisibleFeatures(viewport.NewBounds(-1, -1, 1, 1), 10))
}

func TestVisibleFeatures_Antimeridian(t *testing.T) {
	rooms := []room.Room{
		testRoom("east", 0, 179.9),
		testRoom("west", 0, -179.9),
		testRoom("far", 0, 0),
	}
	idx := NewIndex(rooms, DefaultOptions())

	features := idx.VisibleFeatures(viewport.NewBounds(179, -1, -179, 1), 18)
	ids := make([]string, 0, len(features))
	for _, f := range features {
		ids = append(ids, f.RoomID)
	}
	assert.ElementsMatch(t, []string{"east", "west"}, ids)
}

func TestClusterIDsAreStableAcrossRebuilds(t *testing.T) {
	b := viewport.NewBounds(-0.1, -0.1, 0.1, 0.1)

	first := NewIndex(scenarioRooms(), DefaultOptions()).VisibleFeatures(b, 10)
	reversed := scenarioRooms()
	reversed[0], reversed[2] = reversed[2], reversed[0]
	second := NewIndex(reversed, DefaultOptions()).VisibleFeatures(b, 10)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ClusterID, second[0].ClusterID)
}

func TestExpansionZoomAndLeaves(t *testing.T) {
	idx := NewIndex(scenarioRooms(), DefaultOptions())
	features := idx.VisibleFeatures(viewport.NewBounds(-0.1, -0.1, 0.1, 0.1), 10)
	require.Len(t, features, 1)
	id := features[0].ClusterID

	zoom, err := idx.ExpansionZoom(id)
	require.NoError(t, err)
	assert.Greater(t, zoom, 10)
	assert.LessOrEqual(t, zoom, idx.Options().MaxZoom+1)

	// At the expansion zoom the cluster is gone
	split := idx.VisibleFeatures(viewport.NewBounds(-0.01, -0.01, 0.01, 0.01), float64(zoom))
	clusters, rooms := countKinds(split)
	assert.Equal(t, 0, clusters)
	assert.Equal(t, 2, rooms)

	leaves, err := idx.Leaves(id, 10, 0)
	require.NoError(t, err)
	ids := []string{leaves[0].RoomID, leaves[1].RoomID}
	assert.ElementsMatch(t, []string{"a", "b"}, ids)

	page, err := idx.Leaves(id, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Contains(t, ids, page[0].RoomID)
	assert.NotEqual(t, leaves[0].RoomID, page[0].RoomID)
}

func TestUnknownCluster(t *testing.T) {
	idx := NewIndex(scenarioRooms(), DefaultOptions())

	_, err := idx.ExpansionZoom("nope")
	assert.ErrorIs(t, err, domain.ErrUnknownCluster)

	_, err = idx.Leaves("nope", 10, 0)
	assert.ErrorIs(t, err, domain.ErrUnknownCluster)
}

func TestSizeOf(t *testing.T) {
	assert.Equal(t, domain.SizeSmall, domain.SizeOf(2))
	assert.Equal(t, domain.SizeMedium, domain.SizeOf(10))
	assert.Equal(t, domain.SizeLarge, domain.SizeOf(99))
	assert.Equal(t, domain.SizeXLarge, domain.SizeOf(100))
}

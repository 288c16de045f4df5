package cluster

import (
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "roomscope/internal/domain/cluster"
	"roomscope/internal/domain/room"
	"roomscope/internal/domain/viewport"
)

func TestFacade_RoundTrip(t *testing.T) {
	f := NewFacade()
	r := testRoom("r1", 40.7, -74.0)
	r.Title = "Parade"

	feature, ok := f.FromRoom(r)
	require.True(t, ok)
	assert.Equal(t, domain.KindRoom, feature.Kind)
	assert.Equal(t, "r1", feature.RoomID)

	back, err := f.ToRoom(feature)
	require.NoError(t, err)
	assert.Equal(t, r, back)

	_, ok = f.FromRoom(room.Room{ID: "nowhere"})
	assert.False(t, ok)
	_, ok = f.FromRoom(testRoom("", 1, 1))
	assert.False(t, ok)
}

func TestFacade_ToRoomRejectsClusters(t *testing.T) {
	f := NewFacade()

	_, err := f.ToRoom(domain.Feature{Kind: domain.KindCluster, ClusterID: "c1", PointCount: 3})
	assert.ErrorIs(t, err, domain.ErrNotLeaf)

	rooms := f.ToRooms([]domain.Feature{
		{Kind: domain.KindCluster, ClusterID: "c1", PointCount: 3},
		{Kind: domain.KindRoom, RoomID: "bare", Latitude: 1, Longitude: 2},
	})
	require.Len(t, rooms, 1)
	assert.Equal(t, "bare", rooms[0].ID)
	assert.Equal(t, 1.0, *rooms[0].Latitude)
	assert.Equal(t, 2.0, *rooms[0].Longitude)
}

func TestFacade_FilterExcluded(t *testing.T) {
	f := NewFacade()
	features := []domain.Feature{
		{Kind: domain.KindCluster, ClusterID: "c1", PointCount: 2},
		{Kind: domain.KindRoom, RoomID: "keep"},
		{Kind: domain.KindRoom, RoomID: "hidden"},
	}

	filtered := f.FilterExcluded(features, map[string]struct{}{"hidden": {}, "c1": {}})
	require.Len(t, filtered, 2)
	assert.True(t, filtered[0].IsCluster())
	assert.Equal(t, "keep", filtered[1].RoomID)

	assert.Equal(t, features, f.FilterExcluded(features, nil))
}

func TestFacade_MergePending(t *testing.T) {
	f := NewFacade()
	expansion := viewport.NewBounds(-1, -1, 1, 1)
	features := []domain.Feature{
		{Kind: domain.KindCluster, ClusterID: "c1", PointCount: 4, ExpansionBounds: &expansion},
		{Kind: domain.KindRoom, RoomID: "shown", Latitude: 3, Longitude: 3},
	}
	rooms := map[string]room.Room{
		"shown":  testRoom("shown", 3, 3),
		"inside": testRoom("inside", 0.5, 0.5),
		"new":    testRoom("new", 5, 5),
	}
	pending := []string{"new", "shown", "inside", "gone"}

	merged := f.MergePending(features, pending, rooms)
	require.Len(t, merged, 3)
	assert.Equal(t, "new", merged[2].RoomID)

	again := f.MergePending(merged, pending, rooms)
	assert.Equal(t, merged, again)

	assert.Equal(t, features, f.MergePending(features, nil, rooms))
}

func TestToFeatureCollection(t *testing.T) {
	expansion := viewport.NewBounds(-1, -1, 1, 1)
	r := testRoom("r1", 2, 3)
	r.Title = "Market"

	fc := ToFeatureCollection([]domain.Feature{
		{Kind: domain.KindCluster, ClusterID: "c1", PointCount: 12, Latitude: 0, Longitude: 0, ExpansionBounds: &expansion},
		{Kind: domain.KindRoom, RoomID: "r1", Latitude: 2, Longitude: 3, Room: &r},
	})
	require.Len(t, fc.Features, 2)

	c := fc.Features[0]
	assert.Equal(t, true, c.Properties["cluster"])
	assert.Equal(t, 12, c.Properties["point_count"])
	assert.Equal(t, "medium", c.Properties["size"])
	assert.Len(t, c.BBox, 4)

	p := fc.Features[1]
	assert.Equal(t, orb.Point{3, 2}, p.Geometry)
	assert.Equal(t, "Market", p.Properties["title"])
	assert.Equal(t, "r1", p.ID)
}

func TestRoomsFromFeatureCollection(t *testing.T) {
	raw := []byte(`{
		"type": "FeatureCollection",
		"features": [
			{"type": "Feature", "id": "f1", "geometry": {"type": "Point", "coordinates": [-74.0, 40.7]},
			 "properties": {"title": "Concert", "category": "event", "participant_count": 42, "expires_at": "2030-01-02T15:04:05Z"}},
			{"type": "Feature", "geometry": {"type": "Point", "coordinates": [1, 2]},
			 "properties": {"room_id": "f2", "status": "full", "is_new": true}},
			{"type": "Feature", "geometry": {"type": "Point", "coordinates": [1, 2]}, "properties": {}},
			{"type": "Feature", "id": "line", "geometry": {"type": "LineString", "coordinates": [[0, 0], [1, 1]]}, "properties": {}}
		]
	}`)

	fc, err := geojson.UnmarshalFeatureCollection(raw)
	require.NoError(t, err)

	rooms := RoomsFromFeatureCollection(fc)
	require.Len(t, rooms, 2)

	first := rooms[0]
	assert.Equal(t, "f1", first.ID)
	assert.Equal(t, "Concert", first.Title)
	assert.Equal(t, room.CategoryEvent, first.Category)
	assert.Equal(t, room.StatusOpen, first.Status)
	assert.Equal(t, 42, first.ParticipantCount)
	assert.Equal(t, 40.7, *first.Latitude)
	assert.Equal(t, -74.0, *first.Longitude)
	assert.True(t, first.ExpiresAt.Equal(time.Date(2030, 1, 2, 15, 4, 5, 0, time.UTC)))

	second := rooms[1]
	assert.Equal(t, "f2", second.ID)
	assert.Equal(t, room.StatusFull, second.Status)
	assert.Equal(t, room.CategoryGeneral, second.Category)
	assert.True(t, second.IsNew)
}

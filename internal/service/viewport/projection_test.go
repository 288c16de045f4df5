package viewport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomscope/internal/domain/room"
	"roomscope/internal/domain/viewport"
	roomsvc "roomscope/internal/service/room"
)

func placed(id string, lat, lng float64) room.Room {
	return room.Room{
		ID:        id,
		Latitude:  room.Float(lat),
		Longitude: room.Float(lng),
		Status:    room.StatusOpen,
	}
}

func TestVisibleRooms(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := roomsvc.NewStore()

	expired := placed("expired", 0.01, 0.01)
	expired.ExpiresAt = now.Add(-time.Second)
	closed := placed("closed", 0.01, 0.01)
	closed.Status = room.StatusClosed
	ended := placed("ended", 0.01, 0.01)
	ended.Status = room.StatusExpired
	endedLater := placed("ended-later", 0.02, 0.02)
	endedLater.Status = room.StatusExpired
	endedLater.ExpiresAt = now.Add(time.Hour)

	for _, r := range []room.Room{
		placed("far", 0.09, 0.09),
		placed("near", 0.001, 0),
		placed("center", 0, 0),
		placed("hidden", 0.002, 0),
		placed("outside", 1, 1),
		expired,
		closed,
		ended,
		endedLater,
		{ID: "nowhere"},
	} {
		require.NoError(t, store.Upsert(r))
	}
	store.Hide("hidden")
	store.AddJoined("near")

	rooms := VisibleRooms(store.Snapshot(), viewport.NewBounds(-0.1, -0.1, 0.1, 0.1), now)

	ids := make([]string, 0, len(rooms))
	for _, r := range rooms {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"center", "near", "far"}, ids)

	assert.Equal(t, 0.0, rooms[0].Distance)
	assert.InDelta(t, 111, rooms[1].Distance, 1)
	assert.True(t, rooms[1].HasJoined)
	assert.False(t, rooms[0].HasJoined)
}

func TestVisibleRooms_TiesSortByID(t *testing.T) {
	store := roomsvc.NewStore()
	require.NoError(t, store.Upsert(placed("b", 0.01, 0)))
	require.NoError(t, store.Upsert(placed("a", -0.01, 0)))

	rooms := VisibleRooms(store.Snapshot(), viewport.NewBounds(-1, -1, 1, 1), time.Now())
	require.Len(t, rooms, 2)
	assert.Equal(t, "a", rooms[0].ID)
	assert.Equal(t, "b", rooms[1].ID)
}

package discovery

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "roomscope/internal/domain/cluster"
	"roomscope/internal/domain/room"
	"roomscope/internal/domain/viewport"
)

var testLogger = &log.Logger{Handler: discard.New(), Level: log.DebugLevel}

type staticSearcher struct {
	mu    sync.Mutex
	rooms []room.Room
	calls int
}

func (s *staticSearcher) Search(ctx context.Context, q room.SearchQuery) (room.SearchPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return room.SearchPage{Rooms: append([]room.Room(nil), s.rooms...)}, nil
}

func placed(id string, lat, lng float64) room.Room {
	return room.Room{
		ID:        id,
		Title:     "room " + id,
		Latitude:  room.Float(lat),
		Longitude: room.Float(lng),
		Status:    room.StatusOpen,
		Category:  room.CategoryGeneral,
	}
}

var nearby = viewport.NewBounds(-0.1, -0.1, 0.1, 0.1)

func loadedEngine(t *testing.T, rooms ...room.Room) *Engine {
	t.Helper()

	cfg := DefaultEngineConfig()
	cfg.Viewport.DebounceDelay = time.Hour
	e := NewEngine("test", &staticSearcher{rooms: rooms}, cfg, testLogger)
	t.Cleanup(e.Close)

	require.True(t, e.OnViewportChange(viewport.Viewport{Bounds: nearby, Zoom: 10}, true, false))
	require.True(t, e.Refetch(context.Background()))
	require.Empty(t, e.Status().Error)
	return e
}

func TestEngine_ClustersFetchedRooms(t *testing.T) {
	e := loadedEngine(t, placed("a", 0, 0), placed("b", 0.001, 0.001), placed("c", 5, 5))

	features := e.Features(nearby, 10)
	require.Len(t, features, 1)
	assert.True(t, features[0].IsCluster())
	assert.Equal(t, 2, features[0].PointCount)

	zoom, err := e.ExpansionZoom(features[0].ClusterID)
	require.NoError(t, err)
	assert.Greater(t, zoom, 10)

	leaves, err := e.Leaves(features[0].ClusterID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, leaves, 2)

	_, err = e.Leaves("missing", 10, 0)
	assert.ErrorIs(t, err, domain.ErrUnknownCluster)
}

func TestEngine_HiddenAndPendingRooms(t *testing.T) {
	e := loadedEngine(t, placed("a", 0, 0), placed("b", 0.05, 0.05))

	e.Rooms().Hide("b")
	features := e.Features(nearby, 17)
	require.Len(t, features, 1)
	assert.Equal(t, "a", features[0].RoomID)

	mine, err := e.Rooms().CreatePending(room.Room{
		Title:     "Pop-up",
		Latitude:  room.Float(-0.05),
		Longitude: room.Float(-0.05),
	})
	require.NoError(t, err)
	_, err = e.Rooms().CreatePending(room.Room{
		Title:     "Elsewhere",
		Latitude:  room.Float(20),
		Longitude: room.Float(20),
	})
	require.NoError(t, err)

	features = e.Features(nearby, 17)
	ids := make([]string, 0, len(features))
	for _, f := range features {
		ids = append(ids, f.RoomID)
	}
	assert.ElementsMatch(t, []string{"a", mine.ID}, ids)

	rooms := e.VisibleRooms(nearby)
	require.Len(t, rooms, 2)
	assert.Equal(t, "a", rooms[0].ID)
	assert.Equal(t, mine.ID, rooms[1].ID)
	assert.True(t, rooms[1].HasJoined)
}

func TestEngine_DropsRoomsThatExpireAfterIndexing(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	short := placed("short", 0.01, 0.01)
	short.ExpiresAt = now.Add(time.Hour)

	e := loadedEngine(t, placed("a", 0, 0), short)
	e.now = func() time.Time { return now }
	require.Len(t, e.Features(nearby, 17), 2)

	e.now = func() time.Time { return now.Add(2 * time.Hour) }
	features := e.Features(nearby, 17)
	require.Len(t, features, 1)
	assert.Equal(t, "a", features[0].RoomID)
}

func TestEngine_IndexFollowsStoreVersion(t *testing.T) {
	e := loadedEngine(t, placed("a", 0, 0))

	first := e.indexFor(e.Store().Snapshot())
	assert.Same(t, first, e.indexFor(e.Store().Snapshot()))

	require.NoError(t, e.Store().Upsert(placed("b", 0.02, 0.02)))
	second := e.indexFor(e.Store().Snapshot())
	assert.NotSame(t, first, second)
	assert.Equal(t, 2, second.Len())
}

func TestEngine_TouchTracksActivity(t *testing.T) {
	e := loadedEngine(t, placed("a", 0, 0))

	later := time.Now().Add(time.Hour)
	e.now = func() time.Time { return later }
	e.VisibleRooms(nearby)
	assert.Equal(t, later, e.LastSeen())
}

func TestEngine_ClustersForgetExpiredRooms(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	short := placed("short", 0.001, 0.001)
	short.ExpiresAt = now.Add(time.Hour)

	e := loadedEngine(t, placed("a", 0, 0), short, placed("c", 0.002, 0.002))
	e.now = func() time.Time { return now }

	features := e.Features(nearby, 10)
	require.Len(t, features, 1)
	require.True(t, features[0].IsCluster())
	assert.Equal(t, 3, features[0].PointCount)

	e.now = func() time.Time { return now.Add(2 * time.Hour) }

	features = e.Features(nearby, 10)
	require.Len(t, features, 1)
	require.True(t, features[0].IsCluster())
	assert.Equal(t, 2, features[0].PointCount)

	leaves, err := e.Leaves(features[0].ClusterID, 10, 0)
	require.NoError(t, err)
	ids := make([]string, 0, len(leaves))
	for _, leaf := range leaves {
		ids = append(ids, leaf.RoomID)
	}
	assert.ElementsMatch(t, []string{"a", "c"}, ids)
}

func TestEngine_NewRoomsUntilListed(t *testing.T) {
	fresh := placed("fresh", 0.01, 0.01)
	fresh.IsNew = true
	far := placed("far", 1, 1)
	far.IsNew = true

	e := loadedEngine(t, placed("a", 0, 0), fresh, far)

	ids := func() []string {
		var out []string
		for _, r := range e.Rooms().NewRooms() {
			out = append(out, r.ID)
		}
		return out
	}
	assert.Equal(t, []string{"far", "fresh"}, ids())

	e.VisibleRooms(nearby)
	assert.Equal(t, []string{"far"}, ids())

	version := e.Store().Version()
	e.VisibleRooms(nearby)
	assert.Equal(t, version, e.Store().Version())
}

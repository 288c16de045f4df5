package room

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomscope/internal/domain/room"
)

func TestFacade_JoinAndLeave(t *testing.T) {
	f := NewFacade(NewStore())
	require.NoError(t, f.Store().Upsert(newRoom("r1", 1, 1)))

	joined, err := f.Join("r1")
	require.NoError(t, err)
	assert.True(t, joined.HasJoined)
	assert.Equal(t, []string{"r1"}, f.Store().JoinedIDs())
	require.Len(t, f.Joined(), 1)

	left, err := f.Leave("r1")
	require.NoError(t, err)
	assert.False(t, left.HasJoined)
	assert.Empty(t, f.Joined())

	_, err = f.Join("missing")
	assert.ErrorIs(t, err, room.ErrNotFound)
}

func TestFacade_ListSkipsHiddenAndExpired(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	f := NewFacade(NewStore())
	f.now = func() time.Time { return now }

	expired := newRoom("expired", 1, 1)
	expired.ExpiresAt = now.Add(-time.Minute)
	closed := newRoom("closed", 1, 1)
	closed.Status = room.StatusClosed
	live := newRoom("live", 1, 1)
	live.ExpiresAt = now.Add(time.Hour)

	for _, r := range []room.Room{expired, closed, live, newRoom("hidden", 1, 1), newRoom("forever", 1, 1)} {
		require.NoError(t, f.Store().Upsert(r))
	}
	f.Hide("hidden")
	assert.True(t, f.IsHidden("hidden"))

	ids := make([]string, 0)
	for _, r := range f.List() {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"forever", "live"}, ids)

	f.Unhide("hidden")
	assert.False(t, f.IsHidden("hidden"))
	assert.Len(t, f.List(), 3)
}

func TestFacade_JoinedSetIsAuthoritative(t *testing.T) {
	f := NewFacade(NewStore())
	r := newRoom("r1", 1, 1)
	r.HasJoined = true
	require.NoError(t, f.Store().Upsert(r))

	got, err := f.Get("r1")
	require.NoError(t, err)
	assert.False(t, got.HasJoined)

	f.Store().AddJoined("r1")
	got, err = f.Get("r1")
	require.NoError(t, err)
	assert.True(t, got.HasJoined)
}

func TestFacade_CreatePending(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	f := NewFacade(NewStore())
	f.now = func() time.Time { return now }

	created, err := f.CreatePending(room.Room{
		Title:     "Street fair",
		Latitude:  room.Float(40.7),
		Longitude: room.Float(-74),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, room.CategoryGeneral, created.Category)
	assert.Equal(t, room.StatusOpen, created.Status)
	assert.Equal(t, now, created.CreatedAt)
	assert.Equal(t, 1, created.ParticipantCount)
	assert.True(t, created.IsCreator)
	assert.True(t, created.IsNew)
	assert.True(t, created.HasJoined)

	assert.Equal(t, []string{created.ID}, f.Store().PendingIDs())
	assert.Equal(t, []string{created.ID}, f.Store().JoinedIDs())
	require.Len(t, f.NewRooms(), 1)

	// A fetch that does not include it yet keeps it visible
	f.Store().ReplaceFetched(nil)
	_, err = f.Get(created.ID)
	require.NoError(t, err)

	require.NoError(t, f.DiscardPending(created.ID))
	_, err = f.Get(created.ID)
	assert.ErrorIs(t, err, room.ErrNotFound)
	assert.ErrorIs(t, f.DiscardPending(created.ID), room.ErrNotFound)
}

func TestFacade_CreatePendingValidation(t *testing.T) {
	f := NewFacade(NewStore())

	_, err := f.CreatePending(room.Room{Title: "No place"})
	assert.Error(t, err)

	_, err = f.CreatePending(room.Room{Title: "NaN", Latitude: room.Float(math.NaN()), Longitude: room.Float(1)})
	assert.Error(t, err)

	_, err = f.CreatePending(room.Room{Title: "  ", Latitude: room.Float(1), Longitude: room.Float(1)})
	assert.Error(t, err)

	assert.Equal(t, 0, f.Store().Len())
}

func TestFacade_NewRoomsSkipsDiscovered(t *testing.T) {
	f := NewFacade(NewStore())
	a := newRoom("a", 1, 1)
	a.IsNew = true
	b := newRoom("b", 1, 1)
	b.IsNew = true
	require.NoError(t, f.Store().Upsert(a))
	require.NoError(t, f.Store().Upsert(b))
	require.NoError(t, f.Store().Upsert(newRoom("old", 1, 1)))

	f.Store().MarkDiscovered("a")

	fresh := f.NewRooms()
	require.Len(t, fresh, 1)
	assert.Equal(t, "b", fresh[0].ID)
}

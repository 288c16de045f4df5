// internal/service/room/facade.go

package room

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"roomscope/internal/domain/room"

	"github.com/google/uuid"
)

// Facade is the session-facing API over the store: membership, hiding
// and optimistic creation.
type Facade struct {
	store *Store
	now   func() time.Time
}

// NewFacade creates a room facade over store
func NewFacade(store *Store) *Facade {
	return &Facade{
		store: store,
		now:   time.Now,
	}
}

// Store returns the underlying store
func (f *Facade) Store() *Store {
	return f.store
}

// Get returns a room annotated with its joined flag
func (f *Facade) Get(id string) (room.Room, error) {
	r, err := f.store.Get(id)
	if err != nil {
		return room.Room{}, err
	}

	snap := f.store.Snapshot()
	return annotate(r, snap), nil
}

// List returns every discoverable, non-hidden room ordered by id
func (f *Facade) List() []room.Room {
	snap := f.store.Snapshot()
	now := f.now()

	rooms := make([]room.Room, 0, len(snap.Rooms))
	for _, r := range snap.List() {
		if _, hidden := snap.Hidden[r.ID]; hidden {
			continue
		}
		if !r.IsDiscoverable(now) {
			continue
		}
		rooms = append(rooms, annotate(r, snap))
	}
	return rooms
}

// Joined returns the rooms the user is a member of
func (f *Facade) Joined() []room.Room {
	snap := f.store.Snapshot()

	rooms := make([]room.Room, 0, len(snap.Joined))
	for _, id := range sortedIDs(snap.Joined) {
		if r, ok := snap.Rooms[id]; ok {
			rooms = append(rooms, annotate(r, snap))
		}
	}
	return rooms
}

// Join marks a room as joined
func (f *Facade) Join(id string) (room.Room, error) {
	joined := true
	r, err := f.store.UpdateRoom(id, room.Patch{HasJoined: &joined})
	if err != nil {
		return room.Room{}, fmt.Errorf("failed to join room: %w", err)
	}

	f.store.AddJoined(id)
	return r, nil
}

// Leave clears the joined mark
func (f *Facade) Leave(id string) (room.Room, error) {
	joined := false
	r, err := f.store.UpdateRoom(id, room.Patch{HasJoined: &joined})
	if err != nil {
		return room.Room{}, fmt.Errorf("failed to leave room: %w", err)
	}

	f.store.RemoveJoined(id)
	return r, nil
}

// Hide removes a room from discovery output for this session. Unknown ids
// are accepted so a room can be hidden before it is fetched.
func (f *Facade) Hide(id string) {
	f.store.Hide(id)
}

// Unhide reverses Hide
func (f *Facade) Unhide(id string) {
	f.store.Unhide(id)
}

// IsHidden reports whether id is hidden
func (f *Facade) IsHidden(id string) bool {
	for _, hidden := range f.store.HiddenIDs() {
		if hidden == id {
			return true
		}
	}
	return false
}

// CreatePending adds an optimistic room created by the user. It shows up
// in discovery output until a fetch confirms or replaces it.
func (f *Facade) CreatePending(r room.Room) (room.Room, error) {
	if _, _, ok := r.Coordinates(); !ok {
		return room.Room{}, fmt.Errorf("room needs finite coordinates")
	}
	if strings.TrimSpace(r.Title) == "" {
		return room.Room{}, fmt.Errorf("room title is required")
	}

	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Category == "" {
		r.Category = room.CategoryGeneral
	}
	if r.Status == "" {
		r.Status = room.StatusOpen
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = f.now()
	}
	r.IsCreator = true
	r.IsNew = true
	r.HasJoined = true
	if r.ParticipantCount < 1 {
		r.ParticipantCount = 1
	}

	if err := f.store.AddPending(r); err != nil {
		return room.Room{}, fmt.Errorf("failed to add pending room: %w", err)
	}
	f.store.AddJoined(r.ID)

	return r, nil
}

// DiscardPending drops an optimistic room whose creation failed upstream
func (f *Facade) DiscardPending(id string) error {
	for _, pending := range f.store.PendingIDs() {
		if pending == id {
			return f.store.Remove(id)
		}
	}
	return fmt.Errorf("%w: %s is not pending", room.ErrNotFound, id)
}

// Update applies a partial update
func (f *Facade) Update(id string, patch room.Patch) (room.Room, error) {
	return f.store.UpdateRoom(id, patch)
}

// Remove evicts a room
func (f *Facade) Remove(id string) error {
	return f.store.Remove(id)
}

// NewRooms returns flagged-new rooms the user has not been shown yet.
// Fetched rooms count as shown once they appear in a visible room list.
func (f *Facade) NewRooms() []room.Room {
	snap := f.store.Snapshot()

	var rooms []room.Room
	for _, r := range snap.Rooms {
		if !r.IsNew {
			continue
		}
		if _, seen := snap.Discovered[r.ID]; seen {
			continue
		}
		rooms = append(rooms, annotate(r, snap))
	}
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].ID < rooms[j].ID
	})
	return rooms
}

func annotate(r room.Room, snap Snapshot) room.Room {
	_, joined := snap.Joined[r.ID]
	r.HasJoined = joined
	return r
}

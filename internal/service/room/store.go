// internal/service/room/store.go

package room

import (
	"fmt"
	"sort"
	"sync"

	"roomscope/internal/domain/room"
)

// ChangeKind describes what a store mutation did
type ChangeKind string

const (
	ChangeReplaced ChangeKind = "replaced"
	ChangeUpserted ChangeKind = "upserted"
	ChangeUpdated  ChangeKind = "updated"
	ChangeRemoved  ChangeKind = "removed"
	ChangeSets     ChangeKind = "sets"
)

// Change is delivered to listeners after every mutation
type Change struct {
	Kind    ChangeKind `json:"kind"`
	IDs     []string   `json:"ids"`
	Version uint64     `json:"version"`
}

// Listener receives store changes
type Listener func(Change)

type idSet map[string]struct{}

func (s idSet) clone() idSet {
	c := make(idSet, len(s))
	for id := range s {
		c[id] = struct{}{}
	}
	return c
}

// Snapshot is a consistent, detached copy of the store
type Snapshot struct {
	Rooms      map[string]room.Room
	Joined     map[string]struct{}
	Hidden     map[string]struct{}
	Discovered map[string]struct{}
	Pending    map[string]struct{}
	Version    uint64
}

// List returns the rooms ordered by id
func (s Snapshot) List() []room.Room {
	rooms := make([]room.Room, 0, len(s.Rooms))
	for _, r := range s.Rooms {
		rooms = append(rooms, r)
	}
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].ID < rooms[j].ID
	})
	return rooms
}

// PendingIDs returns the pending ids in sorted order
func (s Snapshot) PendingIDs() []string {
	return sortedIDs(s.Pending)
}

// Store is the authoritative in-memory table of known rooms plus the
// joined, hidden, discovered and pending id sets.
type Store struct {
	mu         sync.RWMutex
	rooms      map[string]room.Room
	joined     idSet
	hidden     idSet
	discovered idSet
	pending    idSet
	version    uint64

	listenerMu   sync.RWMutex
	listeners    map[int]Listener
	nextListener int
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		rooms:      make(map[string]room.Room),
		joined:     make(idSet),
		hidden:     make(idSet),
		discovered: make(idSet),
		pending:    make(idSet),
		listeners:  make(map[int]Listener),
	}
}

// Subscribe registers a listener and returns a function that removes it
func (s *Store) Subscribe(listener Listener) func() {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()

	id := s.nextListener
	s.nextListener++
	s.listeners[id] = listener

	return func() {
		s.listenerMu.Lock()
		defer s.listenerMu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Store) notify(change Change) {
	s.listenerMu.RLock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.listenerMu.RUnlock()

	for _, l := range listeners {
		l(change)
	}
}

// Version increments on every mutation
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Len returns the number of rooms in the table
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// Get returns a room by id
func (s *Store) Get(id string) (room.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rooms[id]
	if !ok {
		return room.Room{}, fmt.Errorf("%w: %s", room.ErrNotFound, id)
	}
	return r, nil
}

// Snapshot returns a detached copy of the table and id sets
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make(map[string]room.Room, len(s.rooms))
	for id, r := range s.rooms {
		rooms[id] = r
	}

	return Snapshot{
		Rooms:      rooms,
		Joined:     s.joined.clone(),
		Hidden:     s.hidden.clone(),
		Discovered: s.discovered.clone(),
		Pending:    s.pending.clone(),
		Version:    s.version,
	}
}

// ReplaceFetched swaps the table for the result of one fetch in a single
// write. Pending rooms the server has not returned yet are kept; pending
// rooms it did return are confirmed.
func (s *Store) ReplaceFetched(fetched []room.Room) {
	s.mu.Lock()

	next := make(map[string]room.Room, len(fetched)+len(s.pending))
	ids := make([]string, 0, len(fetched))
	for _, r := range fetched {
		if r.ID == "" {
			continue
		}
		next[r.ID] = r
		ids = append(ids, r.ID)
		if r.HasJoined {
			s.joined[r.ID] = struct{}{}
		}
	}

	for id := range s.pending {
		if _, confirmed := next[id]; confirmed {
			delete(s.pending, id)
			continue
		}
		if r, ok := s.rooms[id]; ok {
			next[id] = r
		}
	}

	s.rooms = next
	s.version++
	change := Change{Kind: ChangeReplaced, IDs: ids, Version: s.version}
	s.mu.Unlock()

	s.notify(change)
}

// Upsert inserts or overwrites a whole room
func (s *Store) Upsert(r room.Room) error {
	if r.ID == "" {
		return fmt.Errorf("room id is required")
	}

	s.mu.Lock()
	s.rooms[r.ID] = r
	s.version++
	change := Change{Kind: ChangeUpserted, IDs: []string{r.ID}, Version: s.version}
	s.mu.Unlock()

	s.notify(change)
	return nil
}

// UpdateRoom applies a partial update, keeping every field the patch does
// not set. It is the only way to change part of a stored room.
func (s *Store) UpdateRoom(id string, patch room.Patch) (room.Room, error) {
	s.mu.Lock()
	current, ok := s.rooms[id]
	if !ok {
		s.mu.Unlock()
		return room.Room{}, fmt.Errorf("%w: %s", room.ErrNotFound, id)
	}

	updated := patch.Apply(current)
	s.rooms[id] = updated
	s.version++
	change := Change{Kind: ChangeUpdated, IDs: []string{id}, Version: s.version}
	s.mu.Unlock()

	s.notify(change)
	return updated, nil
}

// Remove evicts a room and drops it from every id set
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	if _, ok := s.rooms[id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", room.ErrNotFound, id)
	}

	delete(s.rooms, id)
	delete(s.joined, id)
	delete(s.pending, id)
	s.version++
	change := Change{Kind: ChangeRemoved, IDs: []string{id}, Version: s.version}
	s.mu.Unlock()

	s.notify(change)
	return nil
}

// AddPending stores an optimistic room and marks it pending
func (s *Store) AddPending(r room.Room) error {
	if r.ID == "" {
		return fmt.Errorf("room id is required")
	}

	s.mu.Lock()
	s.rooms[r.ID] = r
	s.pending[r.ID] = struct{}{}
	s.version++
	change := Change{Kind: ChangeUpserted, IDs: []string{r.ID}, Version: s.version}
	s.mu.Unlock()

	s.notify(change)
	return nil
}

// AddJoined marks ids as joined
func (s *Store) AddJoined(ids ...string) {
	s.updateSet(func() { addAll(s.joined, ids) }, ids)
}

// RemoveJoined clears the joined mark
func (s *Store) RemoveJoined(ids ...string) {
	s.updateSet(func() { removeAll(s.joined, ids) }, ids)
}

// Hide excludes ids from discovery output
func (s *Store) Hide(ids ...string) {
	s.updateSet(func() { addAll(s.hidden, ids) }, ids)
}

// Unhide reverses Hide
func (s *Store) Unhide(ids ...string) {
	s.updateSet(func() { removeAll(s.hidden, ids) }, ids)
}

// MarkDiscovered records ids the user has been shown. Ids already
// discovered are ignored, so repeated views do not bump the version.
func (s *Store) MarkDiscovered(ids ...string) {
	s.mu.RLock()
	fresh := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, seen := s.discovered[id]; !seen {
			fresh = append(fresh, id)
		}
	}
	s.mu.RUnlock()

	s.updateSet(func() { addAll(s.discovered, fresh) }, fresh)
}

// RemovePending clears the pending mark without touching the room
func (s *Store) RemovePending(ids ...string) {
	s.updateSet(func() { removeAll(s.pending, ids) }, ids)
}

func (s *Store) updateSet(apply func(), ids []string) {
	if len(ids) == 0 {
		return
	}

	s.mu.Lock()
	apply()
	s.version++
	change := Change{Kind: ChangeSets, IDs: append([]string(nil), ids...), Version: s.version}
	s.mu.Unlock()

	s.notify(change)
}

// JoinedIDs returns the joined ids in sorted order
func (s *Store) JoinedIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedIDs(s.joined)
}

// HiddenIDs returns the hidden ids in sorted order
func (s *Store) HiddenIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedIDs(s.hidden)
}

// DiscoveredIDs returns the discovered ids in sorted order
func (s *Store) DiscoveredIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedIDs(s.discovered)
}

// PendingIDs returns the pending ids in sorted order
func (s *Store) PendingIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedIDs(s.pending)
}

func addAll(set idSet, ids []string) {
	for _, id := range ids {
		set[id] = struct{}{}
	}
}

func removeAll(set idSet, ids []string) {
	for _, id := range ids {
		delete(set, id)
	}
}

func sortedIDs(set map[string]struct{}) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

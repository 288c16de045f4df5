// internal/service/discovery/engine.go

package discovery

import (
	"context"
	"sync"
	"time"

	domain "roomscope/internal/domain/cluster"
	"roomscope/internal/domain/room"
	"roomscope/internal/domain/viewport"
	"roomscope/internal/service/cluster"
	"roomscope/internal/service/geo"
	roomsvc "roomscope/internal/service/room"
	viewportsvc "roomscope/internal/service/viewport"

	"github.com/apex/log"
)

// EngineConfig contains configuration for one discovery session
type EngineConfig struct {
	Viewport viewportsvc.Config
	Cluster  cluster.Options
}

// DefaultEngineConfig returns the standard session configuration
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Viewport: viewportsvc.DefaultConfig(),
		Cluster:  cluster.DefaultOptions(),
	}
}

// Engine owns the state of one map session: the room store, the fetch
// controller and a spatial index rebuilt whenever the store changes.
type Engine struct {
	id         string
	store      *roomsvc.Store
	rooms      *roomsvc.Facade
	clusters   *cluster.Facade
	controller *viewportsvc.Controller
	opts       cluster.Options
	logger     log.Interface
	now        func() time.Time

	mu           sync.Mutex
	index        *cluster.Index
	indexVersion uint64
	indexExpiry  time.Time // earliest expiry among indexed rooms
	lastSeen     time.Time
}

// NewEngine creates a session engine fetching from searcher
func NewEngine(id string, searcher room.Searcher, cfg EngineConfig, logger log.Interface) *Engine {
	if logger == nil {
		logger = log.Log
	}
	logger = logger.WithField("session", id)

	store := roomsvc.NewStore()
	e := &Engine{
		id:       id,
		store:    store,
		rooms:    roomsvc.NewFacade(store),
		clusters: cluster.NewFacade(),
		opts:     cfg.Cluster,
		logger:   logger,
		now:      time.Now,
		lastSeen: time.Now(),
	}
	e.controller = viewportsvc.NewController(searcher, store, cfg.Viewport, logger)

	return e
}

// ID returns the session id
func (e *Engine) ID() string {
	return e.id
}

// Store returns the session store
func (e *Engine) Store() *roomsvc.Store {
	return e.store
}

// Rooms returns the room facade
func (e *Engine) Rooms() *roomsvc.Facade {
	return e.rooms
}

// Controller returns the fetch controller
func (e *Engine) Controller() *viewportsvc.Controller {
	return e.controller
}

// OnViewportChange forwards a viewport event to the controller
func (e *Engine) OnViewportChange(v viewport.Viewport, mapReady, moving bool) bool {
	e.touch()
	return e.controller.OnViewportChange(v, mapReady, moving)
}

// Features returns the display-ready features for the viewport: index
// output minus hidden rooms, plus pending rooms not yet confirmed.
func (e *Engine) Features(b viewport.Bounds, zoom float64) []domain.Feature {
	e.touch()

	snap := e.store.Snapshot()
	idx := e.indexFor(snap)
	now := e.now()

	features := idx.VisibleFeatures(b, zoom)
	features = dropExpired(features, now)
	features = e.clusters.FilterExcluded(features, snap.Hidden)

	padded := geo.PadBounds(b, idx.Options().BoundsPadding)
	pending := make([]string, 0, len(snap.Pending))
	for _, id := range snap.PendingIDs() {
		if _, hidden := snap.Hidden[id]; hidden {
			continue
		}
		r, ok := snap.Rooms[id]
		if !ok || !r.IsDiscoverable(now) {
			continue
		}
		lat, lng, ok := r.Coordinates()
		if !ok || !geo.PointInBounds(lat, lng, padded) {
			continue
		}
		pending = append(pending, id)
	}

	return e.clusters.MergePending(features, pending, snap.Rooms)
}

// VisibleRooms returns the flat, distance-sorted room list for the bounds
// and marks the listed rooms as discovered.
func (e *Engine) VisibleRooms(b viewport.Bounds) []room.Room {
	e.touch()
	rooms := viewportsvc.VisibleRooms(e.store.Snapshot(), b, e.now())

	ids := make([]string, 0, len(rooms))
	for _, r := range rooms {
		ids = append(ids, r.ID)
	}
	e.store.MarkDiscovered(ids...)

	return rooms
}

// Status returns the controller status
func (e *Engine) Status() viewportsvc.Status {
	return e.controller.Status()
}

// Refetch fetches the current viewport immediately
func (e *Engine) Refetch(ctx context.Context) bool {
	e.touch()
	return e.controller.Refetch(ctx)
}

// ClearCache resets the controller's fetch bookkeeping
func (e *Engine) ClearCache() {
	e.controller.ClearCache()
}

// ExpansionZoom returns the zoom at which a cluster splits
func (e *Engine) ExpansionZoom(clusterID string) (int, error) {
	return e.indexFor(e.store.Snapshot()).ExpansionZoom(clusterID)
}

// Leaves pages through the rooms of a cluster
func (e *Engine) Leaves(clusterID string, limit, offset int) ([]domain.Feature, error) {
	return e.indexFor(e.store.Snapshot()).Leaves(clusterID, limit, offset)
}

// LastSeen returns the time of the last session activity
func (e *Engine) LastSeen() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSeen
}

// Close stops the controller
func (e *Engine) Close() {
	e.controller.Close()
}

func (e *Engine) touch() {
	e.mu.Lock()
	e.lastSeen = e.now()
	e.mu.Unlock()
}

// indexFor returns an index matching the snapshot version, rebuilding it
// when the store has changed since the last build or an indexed room has
// expired since then.
func (e *Engine) indexFor(snap roomsvc.Snapshot) *cluster.Index {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	if e.index != nil && e.indexVersion == snap.Version && !e.expiredSinceBuild(now) {
		return e.index
	}

	var expiry time.Time
	rooms := make([]room.Room, 0, len(snap.Rooms))
	for _, r := range snap.Rooms {
		if _, pending := snap.Pending[r.ID]; pending {
			continue
		}
		if !r.IsDiscoverable(now) {
			continue
		}
		if !r.ExpiresAt.IsZero() && (expiry.IsZero() || r.ExpiresAt.Before(expiry)) {
			expiry = r.ExpiresAt
		}
		_, joined := snap.Joined[r.ID]
		r.HasJoined = joined
		rooms = append(rooms, r)
	}

	started := time.Now()
	e.index = cluster.NewIndexWithLogger(rooms, e.opts, e.logger)
	e.indexVersion = snap.Version
	e.indexExpiry = expiry

	e.logger.WithFields(log.Fields{
		"version":  snap.Version,
		"rooms":    e.index.Len(),
		"duration": time.Since(started).String(),
	}).Debug("Rebuilt spatial index")

	return e.index
}

func (e *Engine) expiredSinceBuild(now time.Time) bool {
	return !e.indexExpiry.IsZero() && !now.Before(e.indexExpiry)
}

// dropExpired removes rooms that expired after the index was built
func dropExpired(features []domain.Feature, now time.Time) []domain.Feature {
	out := features[:0:0]
	for _, f := range features {
		if !f.IsCluster() && f.Room != nil && !f.Room.IsDiscoverable(now) {
			continue
		}
		out = append(out, f)
	}
	return out
}

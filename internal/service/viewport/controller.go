// internal/service/viewport/controller.go

package viewport

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"roomscope/internal/domain/room"
	"roomscope/internal/domain/viewport"
	"roomscope/internal/service/geo"

	"github.com/apex/log"
)

// State is the controller's position in its fetch lifecycle
type State string

const (
	StateIdle      State = "idle"
	StateScheduled State = "scheduled"
	StateFetching  State = "fetching"
	StateError     State = "error"
)

// Config holds the controller tuning values
type Config struct {
	DebounceDelay   time.Duration
	MinFetchZoom    float64
	MoveThreshold   float64 // degrees of center movement
	ZoomThreshold   float64
	PageSize        int
	MaxRooms        int
	MaxPages        int
	MaxRadiusMeters float64
	Category        room.Category
}

// DefaultConfig returns the standard controller configuration
func DefaultConfig() Config {
	return Config{
		DebounceDelay:   500 * time.Millisecond,
		MinFetchZoom:    3,
		MoveThreshold:   0.05,
		ZoomThreshold:   1,
		PageSize:        100,
		MaxRooms:        500,
		MaxPages:        10,
		MaxRadiusMeters: 50000,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.DebounceDelay < 0 {
		c.DebounceDelay = d.DebounceDelay
	}
	if c.PageSize <= 0 {
		c.PageSize = d.PageSize
	}
	if c.MaxRooms <= 0 {
		c.MaxRooms = d.MaxRooms
	}
	if c.MaxPages <= 0 {
		c.MaxPages = d.MaxPages
	}
	if c.MaxRadiusMeters <= 0 {
		c.MaxRadiusMeters = d.MaxRadiusMeters
	}
	if c.MoveThreshold <= 0 {
		c.MoveThreshold = d.MoveThreshold
	}
	if c.ZoomThreshold <= 0 {
		c.ZoomThreshold = d.ZoomThreshold
	}
	return c
}

// FetchState describes the last completed fetch
type FetchState struct {
	TotalInViewport int              `json:"totalInViewport"`
	IsComplete      bool             `json:"isComplete"`
	LastFetchBounds *viewport.Bounds `json:"lastFetchBounds,omitempty"`
	LastFetchZoom   float64          `json:"lastFetchZoom"`
	LastFetchedAt   time.Time        `json:"lastFetchedAt,omitempty"`
}

// Status is the controller state exposed to the presentation layer
type Status struct {
	State     State  `json:"state"`
	IsLoading bool   `json:"isLoading"`
	Error     string `json:"error,omitempty"`
	FetchState
}

// Sink receives the rooms of one completed fetch in a single write
type Sink interface {
	ReplaceFetched(rooms []room.Room)
}

// Controller decides when the visible map region warrants a remote fetch,
// debounces viewport events and pages through the search service. At most
// one fetch runs at a time.
type Controller struct {
	searcher room.Searcher
	sink     Sink
	cfg      Config
	logger   log.Interface

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	state      State
	errMsg     string
	fetch      FetchState
	timer      *time.Timer
	generation uint64
	scheduled  *viewport.Viewport
	deferred   *viewport.Viewport
	current    *viewport.Viewport
	closed     bool
	onStatus   func(Status)
}

// NewController creates a controller writing fetch results to sink
func NewController(searcher room.Searcher, sink Sink, cfg Config, logger log.Interface) *Controller {
	if logger == nil {
		logger = log.Log
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		searcher: searcher,
		sink:     sink,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		state:    StateIdle,
	}
}

// SetStatusHandler registers a function called after every state transition.
// It runs outside the controller lock and must not block.
func (c *Controller) SetStatusHandler(fn func(Status)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStatus = fn
}

// Config returns the effective configuration
func (c *Controller) Config() Config {
	return c.cfg
}

// Status returns a snapshot of the controller state
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

func (c *Controller) statusLocked() Status {
	fs := c.fetch
	if fs.LastFetchBounds != nil {
		b := *fs.LastFetchBounds
		fs.LastFetchBounds = &b
	}
	return Status{
		State:      c.state,
		IsLoading:  c.state == StateFetching,
		Error:      c.errMsg,
		FetchState: fs,
	}
}

// ShouldFetch reports whether a viewport event qualifies for a fetch
func (c *Controller) ShouldFetch(v viewport.Viewport, mapReady, moving bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shouldFetchLocked(v, mapReady, moving)
}

func (c *Controller) shouldFetchLocked(v viewport.Viewport, mapReady, moving bool) bool {
	if !c.eligible(v, mapReady, moving) {
		return false
	}
	return c.significant(v)
}

func (c *Controller) eligible(v viewport.Viewport, mapReady, moving bool) bool {
	if !mapReady || moving {
		return false
	}
	if err := v.Bounds.Validate(); err != nil {
		return false
	}
	if v.Bounds.IsWorldView() {
		return false
	}
	if math.IsNaN(v.Zoom) || math.IsInf(v.Zoom, 0) || v.Zoom < c.cfg.MinFetchZoom {
		return false
	}
	return true
}

// significant compares against the last completed fetch. Either a center
// move or a zoom change past its threshold is enough.
func (c *Controller) significant(v viewport.Viewport) bool {
	if c.fetch.LastFetchBounds == nil {
		return true
	}

	last := geo.BoundsCenter(*c.fetch.LastFetchBounds)
	next := geo.BoundsCenter(v.Bounds)
	if math.Abs(next.Lat-last.Lat) >= c.cfg.MoveThreshold {
		return true
	}
	if lngDelta(next.Lng, last.Lng) >= c.cfg.MoveThreshold {
		return true
	}
	return math.Abs(v.Zoom-c.fetch.LastFetchZoom) >= c.cfg.ZoomThreshold
}

// OnViewportChange feeds a viewport event to the controller. It returns
// true when the event scheduled a fetch or was deferred behind the one in
// flight.
func (c *Controller) OnViewportChange(v viewport.Viewport, mapReady, moving bool) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}

	if c.eligible(v, mapReady, moving) {
		vp := v
		c.current = &vp
	}

	if c.state == StateFetching {
		if !c.eligible(v, mapReady, moving) {
			c.mu.Unlock()
			return false
		}
		vp := v
		c.deferred = &vp
		c.mu.Unlock()
		return true
	}

	if !c.shouldFetchLocked(v, mapReady, moving) {
		// a newer, non-qualifying event supersedes a pending timer
		cancelled := c.cancelTimerLocked()
		status := c.statusLocked()
		c.mu.Unlock()
		if cancelled {
			c.emit(status)
		}
		return false
	}

	c.scheduleLocked(v)
	status := c.statusLocked()
	c.mu.Unlock()

	c.emit(status)
	return true
}

func (c *Controller) scheduleLocked(v viewport.Viewport) {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.generation++
	gen := c.generation

	vp := v
	c.scheduled = &vp
	c.state = StateScheduled
	c.timer = time.AfterFunc(c.cfg.DebounceDelay, func() {
		c.fire(gen)
	})
}

func (c *Controller) cancelTimerLocked() bool {
	if c.state != StateScheduled {
		return false
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.generation++
	c.scheduled = nil
	c.state = StateIdle
	return true
}

func (c *Controller) fire(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.generation || c.state != StateScheduled || c.scheduled == nil {
		c.mu.Unlock()
		return
	}

	// bounds captured at schedule time
	v := *c.scheduled
	c.scheduled = nil
	c.timer = nil
	c.beginFetchLocked()
	c.wg.Add(1)
	status := c.statusLocked()
	c.mu.Unlock()

	c.emit(status)

	defer c.wg.Done()
	c.run(c.ctx, v)
}

func (c *Controller) beginFetchLocked() {
	c.state = StateFetching
	c.errMsg = ""
}

// Refetch forgets the last fetch bounds and fetches the current viewport
// immediately, skipping the debounce timer. It returns false when a fetch
// is already running or no viewport has been seen yet.
func (c *Controller) Refetch(ctx context.Context) bool {
	c.mu.Lock()
	if c.closed || c.state == StateFetching {
		c.mu.Unlock()
		return false
	}

	c.fetch.LastFetchBounds = nil
	c.cancelTimerLocked()

	if c.current == nil {
		c.mu.Unlock()
		return false
	}

	v := *c.current
	c.beginFetchLocked()
	c.wg.Add(1)
	status := c.statusLocked()
	c.mu.Unlock()

	c.emit(status)

	defer c.wg.Done()
	c.run(ctx, v)
	return true
}

// ClearCache resets the fetch bookkeeping. Stored rooms are left alone.
func (c *Controller) ClearCache() {
	c.mu.Lock()
	c.fetch = FetchState{}
	status := c.statusLocked()
	c.mu.Unlock()

	c.emit(status)
}

// Close stops any pending timer and waits for an in-flight fetch
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.generation++
	c.mu.Unlock()

	c.wg.Wait()
	c.cancel()
}

func (c *Controller) run(ctx context.Context, v viewport.Viewport) {
	started := time.Now()
	rooms, complete, err := c.fetchAll(ctx, v.Bounds)

	if err != nil {
		c.logger.WithError(err).WithFields(log.Fields{
			"bounds": v.Bounds.Slice(),
			"zoom":   v.Zoom,
		}).Error("Viewport fetch failed")

		c.mu.Lock()
		c.state = StateError
		c.errMsg = fmt.Sprintf("couldn't load rooms: %v", err)
		c.settleLocked()
		status := c.statusLocked()
		c.mu.Unlock()

		c.emit(status)
		return
	}

	// the store write is the only side effect and happens once
	c.sink.ReplaceFetched(rooms)

	c.logger.WithFields(log.Fields{
		"total":    len(rooms),
		"complete": complete,
		"zoom":     v.Zoom,
		"duration": time.Since(started).String(),
	}).Info("Viewport fetch finished")

	c.mu.Lock()
	b := v.Bounds
	c.fetch = FetchState{
		TotalInViewport: len(rooms),
		IsComplete:      complete,
		LastFetchBounds: &b,
		LastFetchZoom:   v.Zoom,
		LastFetchedAt:   time.Now(),
	}
	c.state = StateIdle
	c.errMsg = ""
	c.settleLocked()
	status := c.statusLocked()
	c.mu.Unlock()

	c.emit(status)
}

// settleLocked re-evaluates a viewport event that arrived mid-fetch
func (c *Controller) settleLocked() {
	deferred := c.deferred
	c.deferred = nil
	if deferred == nil || c.closed {
		return
	}
	if c.significant(*deferred) {
		c.scheduleLocked(*deferred)
	}
}

// fetchAll pages through the search service. Nothing is returned on error
// so a failed attempt never reaches the store.
func (c *Controller) fetchAll(ctx context.Context, b viewport.Bounds) ([]room.Room, bool, error) {
	center := geo.BoundsCenter(b)
	radius := math.Min(geo.BoundsSpan(b)*geo.MetersPerDegree/2, c.cfg.MaxRadiusMeters)

	c.logger.WithFields(log.Fields{
		"lat":    center.Lat,
		"lng":    center.Lng,
		"radius": radius,
	}).Debug("Viewport fetch started")

	var (
		rooms    []room.Room
		seen     = make(map[string]struct{})
		complete bool
		pages    int
	)

	for page := 0; page < c.cfg.MaxPages; page++ {
		res, err := c.searcher.Search(ctx, room.SearchQuery{
			Center:       center,
			Page:         page,
			PageSize:     c.cfg.PageSize,
			RadiusMeters: radius,
			Category:     c.cfg.Category,
		})
		if err != nil {
			return nil, false, fmt.Errorf("failed to fetch page %d: %w", page, err)
		}
		pages++

		for _, r := range res.Rooms {
			if r.ID == "" {
				continue
			}
			if _, dup := seen[r.ID]; dup {
				continue
			}
			seen[r.ID] = struct{}{}
			rooms = append(rooms, r)
		}

		if len(rooms) >= c.cfg.MaxRooms {
			rooms = rooms[:c.cfg.MaxRooms]
			complete = true
			break
		}
		if !res.HasNext {
			complete = true
			break
		}
	}

	if !complete {
		c.logger.WithFields(log.Fields{
			"pages": pages,
			"total": len(rooms),
		}).Warn("Page safety limit reached, keeping partial result")
	}

	return rooms, complete, nil
}

func (c *Controller) emit(status Status) {
	c.mu.Lock()
	fn := c.onStatus
	c.mu.Unlock()

	if fn != nil {
		fn(status)
	}
}

func lngDelta(a, b float64) float64 {
	d := math.Abs(a - b)
	if d > 180 {
		d = 360 - d
	}
	return d
}

// internal/service/discovery/manager.go

package discovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"roomscope/internal/domain/room"

	"github.com/apex/log"
	"github.com/google/uuid"
)

// ErrSessionNotFound is returned for an unknown or reaped session id
var ErrSessionNotFound = errors.New("session not found")

// ManagerConfig contains configuration for the session manager
type ManagerConfig struct {
	Engine             EngineConfig
	IdleTimeout        time.Duration
	MonitoringInterval time.Duration
	MaxSessions        int
}

// Manager keeps one Engine per client session and reaps idle ones
type Manager struct {
	searcher room.Searcher
	config   ManagerConfig
	logger   log.Interface
	sessions sync.Map
	count    int
	hooks    []func(*Engine)
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex
	wg       sync.WaitGroup
}

// NewManager creates a session manager and starts the idle reaper
func NewManager(searcher room.Searcher, config ManagerConfig, logger log.Interface) *Manager {
	if logger == nil {
		logger = log.Log
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = 30 * time.Minute
	}
	if config.MonitoringInterval <= 0 {
		config.MonitoringInterval = time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		searcher: searcher,
		config:   config,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}

	m.wg.Add(1)
	go m.monitorSessions()

	return m
}

// OnCreate registers a hook run for every new session, before it is returned
func (m *Manager) OnCreate(hook func(*Engine)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, hook)
}

// Create starts a new session
func (m *Manager) Create() (*Engine, error) {
	m.mu.Lock()
	if m.config.MaxSessions > 0 && m.count >= m.config.MaxSessions {
		m.mu.Unlock()
		return nil, fmt.Errorf("session limit of %d reached", m.config.MaxSessions)
	}
	m.count++
	hooks := append([]func(*Engine){}, m.hooks...)
	m.mu.Unlock()

	e := NewEngine(uuid.New().String(), m.searcher, m.config.Engine, m.logger)
	for _, hook := range hooks {
		hook(e)
	}
	m.sessions.Store(e.ID(), e)

	m.logger.WithField("session", e.ID()).Info("Discovery session created")
	return e, nil
}

// Get returns a live session
func (m *Manager) Get(id string) (*Engine, error) {
	v, ok := m.sessions.Load(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return v.(*Engine), nil
}

// Close ends a session
func (m *Manager) Close(id string) error {
	v, ok := m.sessions.LoadAndDelete(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	m.mu.Lock()
	m.count--
	m.mu.Unlock()

	v.(*Engine).Close()
	m.logger.WithField("session", id).Info("Discovery session closed")
	return nil
}

// Len returns the number of live sessions
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// Stop closes every session and stops the reaper
func (m *Manager) Stop(ctx context.Context) error {
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		m.sessions.Range(func(key, _ interface{}) bool {
			_ = m.Close(key.(string))
			return true
		})
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// monitorSessions regularly closes sessions idle for longer than IdleTimeout
func (m *Manager) monitorSessions() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.MonitoringInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.reapIdle(time.Now())
		}
	}
}

func (m *Manager) reapIdle(now time.Time) int {
	var idle []string
	m.sessions.Range(func(key, value interface{}) bool {
		if now.Sub(value.(*Engine).LastSeen()) > m.config.IdleTimeout {
			idle = append(idle, key.(string))
		}
		return true
	})

	for _, id := range idle {
		_ = m.Close(id)
	}
	if len(idle) > 0 {
		m.logger.WithField("count", len(idle)).Info("Reaped idle discovery sessions")
	}
	return len(idle)
}

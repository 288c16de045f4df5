// internal/server/handlers/websocket.go

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/gorilla/websocket"
	"github.com/paulmach/orb/geojson"

	"roomscope/internal/domain/viewport"
	"roomscope/internal/service/cluster"
	"roomscope/internal/service/discovery"
	roomsvc "roomscope/internal/service/room"
	viewportsvc "roomscope/internal/service/viewport"
)

// WebSocketClient is one connected map client with its own discovery session
type WebSocketClient struct {
	conn        *websocket.Conn
	send        chan []byte
	engine      *discovery.Engine
	manager     *discovery.Manager
	config      WebSocketConfig
	logger      log.Interface
	unsubscribe func()
	ctx         context.Context
	cancel      context.CancelFunc

	mu       sync.Mutex
	viewport *viewport.Viewport
	closed   bool
	once     sync.Once
}

// WebSocketConfig contains configuration for WebSocket connections
type WebSocketConfig struct {
	// Time allowed to write a message to the peer
	WriteWait time.Duration

	// Time allowed to read the next pong message from the peer
	PongWait time.Duration

	// Send pings to peer with this period
	PingPeriod time.Duration

	// Maximum message size allowed from peer
	MaxMessageSize int64
}

// DefaultWebSocketConfig returns the default WebSocket configuration
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     (60 * time.Second * 9) / 10,
		MaxMessageSize: 64 * 1024,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// origins are enforced by the CORS middleware
		return true
	},
}

// viewportMessage is sent by the client
type viewportMessage struct {
	Type     string    `json:"type"`
	Bounds   []float64 `json:"bounds"`
	Zoom     float64   `json:"zoom"`
	MapReady bool      `json:"mapReady"`
	Moving   bool      `json:"moving"`
}

// featuresMessage is pushed to the client
type featuresMessage struct {
	Type     string                     `json:"type"`
	Session  string                     `json:"session"`
	Features *geojson.FeatureCollection `json:"features,omitempty"`
	Status   viewportsvc.Status         `json:"status"`
}

// ViewportWebSocketHandler streams features for a map client. Every
// connection owns one discovery session for its lifetime.
func ViewportWebSocketHandler(manager *discovery.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		engine, err := manager.Create()
		if err != nil {
			respondWithError(w, http.StatusServiceUnavailable, "Failed to create session", err)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.WithError(err).Warn("Failed to upgrade to WebSocket")
			_ = manager.Close(engine.ID())
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		client := &WebSocketClient{
			conn:    conn,
			send:    make(chan []byte, 64),
			engine:  engine,
			manager: manager,
			config:  DefaultWebSocketConfig(),
			logger:  log.WithField("session", engine.ID()),
			ctx:     ctx,
			cancel:  cancel,
		}

		client.unsubscribe = engine.Store().Subscribe(func(roomsvc.Change) {
			client.pushFeatures()
		})
		engine.Controller().SetStatusHandler(func(viewportsvc.Status) {
			client.pushFeatures()
		})

		go client.writePump()
		go client.readPump()

		client.logger.Info("WebSocket viewport client connected")
		client.push(featuresMessage{Type: "welcome", Session: engine.ID(), Status: engine.Status()})
	}
}

// readPump reads client messages until the connection fails
func (c *WebSocketClient) readPump() {
	defer c.closeConnection()

	c.conn.SetReadLimit(c.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.WithError(err).Warn("WebSocket error")
			}
			break
		}

		c.processIncomingMessage(message)
	}
}

// writePump writes queued messages and keeps the connection alive
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(c.config.PingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// processIncomingMessage dispatches one client message
func (c *WebSocketClient) processIncomingMessage(message []byte) {
	var msg viewportMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.WithError(err).Debug("Failed to parse WebSocket message")
		return
	}

	switch msg.Type {
	case "viewport":
		b, err := viewport.FromSlice(msg.Bounds)
		if err != nil {
			c.pushError(err.Error())
			return
		}

		v := viewport.Viewport{Bounds: b, Zoom: msg.Zoom}
		c.mu.Lock()
		c.viewport = &v
		c.mu.Unlock()

		c.engine.OnViewportChange(v, msg.MapReady, msg.Moving)
		// answer from the cached store right away
		c.pushFeatures()

	case "refetch":
		go c.engine.Refetch(c.ctx)

	case "clearCache":
		c.engine.ClearCache()

	default:
		c.logger.WithField("type", msg.Type).Debug("Unknown message type")
	}
}

// pushFeatures sends the features for the last viewport the client reported
func (c *WebSocketClient) pushFeatures() {
	c.mu.Lock()
	v := c.viewport
	c.mu.Unlock()

	msg := featuresMessage{Type: "features", Session: c.engine.ID(), Status: c.engine.Status()}
	if v != nil {
		msg.Features = cluster.ToFeatureCollection(c.engine.Features(v.Bounds, v.Zoom))
	}
	c.push(msg)
}

func (c *WebSocketClient) pushError(message string) {
	c.push(map[string]string{"type": "error", "error": message})
}

// push queues a message without blocking; slow clients drop updates
func (c *WebSocketClient) push(payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		c.logger.WithError(err).Error("Failed to marshal WebSocket message")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	select {
	case c.send <- data:
	default:
		c.logger.Debug("WebSocket send buffer full, dropping update")
	}
}

// closeConnection closes the connection and ends the session
func (c *WebSocketClient) closeConnection() {
	c.once.Do(func() {
		c.cancel()
		c.unsubscribe()
		c.engine.Controller().SetStatusHandler(nil)

		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()

		c.conn.Close()
		_ = c.manager.Close(c.engine.ID())

		c.logger.Info("WebSocket viewport client closed")
	})
}

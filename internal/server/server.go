// internal/server/server.go

package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"roomscope/internal/config"
	"roomscope/internal/server/handlers"
	"roomscope/internal/service/discovery"
)

// Server represents the HTTP server
type Server struct {
	server *http.Server
	router *chi.Mux
}

// NewServer creates a new HTTP server
func NewServer(cfg config.ServerConfig, manager *discovery.Manager) *Server {
	router := NewRouter(cfg, manager)

	// Create HTTP server
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return &Server{
		server: httpServer,
		router: router,
	}
}

// NewRouter builds the API routes
func NewRouter(cfg config.ServerConfig, manager *discovery.Manager) *chi.Mux {
	router := chi.NewRouter()

	// Middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	// CORS configuration
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CorsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Create handler dependencies
	sessionHandler := handlers.NewSessionHandler(manager)
	viewportHandler := handlers.NewViewportHandler()
	clusterHandler := handlers.NewClusterHandler()
	roomHandler := handlers.NewRoomHandler()

	// Routes
	router.Route("/api", func(r chi.Router) {
		// Health check
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})

		// API version
		r.Route("/v1", func(r chi.Router) {
			r.With(middleware.Timeout(60 * time.Second)).Post("/sessions", sessionHandler.CreateSession)

			r.Route("/sessions/{session}", func(r chi.Router) {
				r.Use(sessionHandler.Load)
				r.Use(middleware.Timeout(60 * time.Second))

				r.Delete("/", sessionHandler.CloseSession)

				// Viewport API
				r.Route("/viewport", func(r chi.Router) {
					r.Post("/", viewportHandler.UpdateViewport)
					r.Get("/status", viewportHandler.GetStatus)
					r.Get("/features", viewportHandler.GetFeatures)
					r.Get("/rooms", viewportHandler.GetRooms)
					r.Post("/refetch", viewportHandler.Refetch)
					r.Post("/cache/clear", viewportHandler.ClearCache)
				})

				// Clusters API
				r.Route("/clusters/{id}", func(r chi.Router) {
					r.Get("/expansion-zoom", clusterHandler.GetExpansionZoom)
					r.Get("/leaves", clusterHandler.GetLeaves)
				})

				// Rooms API
				r.Route("/rooms", func(r chi.Router) {
					r.Post("/", roomHandler.CreateRoom)
					r.Get("/{id}", roomHandler.GetRoom)
					r.Patch("/{id}", roomHandler.UpdateRoom)
					r.Post("/{id}/join", roomHandler.JoinRoom)
					r.Delete("/{id}/join", roomHandler.LeaveRoom)
					r.Post("/{id}/hide", roomHandler.HideRoom)
					r.Delete("/{id}/hide", roomHandler.UnhideRoom)
				})
			})
		})
	})

	// WebSocket endpoint for real-time viewport streaming
	router.Get("/ws/viewport", handlers.ViewportWebSocketHandler(manager))

	return router
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

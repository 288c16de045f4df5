// cmd/api/main.go

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/apex/log"
	"github.com/apex/log/handlers/text"
	"github.com/nats-io/nats.go"

	"roomscope/internal/adapter/events"
	"roomscope/internal/app"
	"roomscope/internal/config"
	"roomscope/internal/server"
	"roomscope/internal/service/discovery"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	initLogging(cfg.LogLevel)

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Initialize the search backend
	searcher, closeSearcher, err := app.NewSearcher(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize search backend")
	}
	defer closeSearcher()

	// Initialize session manager
	manager := discovery.NewManager(searcher, discovery.ManagerConfig{
		Engine:             app.EngineConfig(cfg),
		IdleTimeout:        cfg.Discovery.SessionIdleTimeout,
		MonitoringInterval: cfg.Discovery.MonitoringInterval,
		MaxSessions:        cfg.Discovery.MaxSessions,
	}, log.Log)

	// Publish store changes when NATS is configured
	if cfg.NATS.Enabled {
		natsConn, err := initNATS(cfg.NATS)
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to NATS")
		}
		defer natsConn.Close()

		publisher := events.NewPublisher(natsConn, cfg.NATS.EventsTopic, log.Log)
		manager.OnCreate(func(e *discovery.Engine) {
			e.Store().Subscribe(publisher.Listener(e.ID()))
		})
	}

	// Initialize HTTP server
	httpServer := server.NewServer(cfg.Server, manager)

	// Start HTTP server
	go func() {
		log.WithFields(log.Fields{
			"host":    cfg.Server.Host,
			"port":    cfg.Server.Port,
			"backend": cfg.Search.Backend,
		}).Info("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("HTTP server error")
		}
	}()

	// Wait for shutdown signal
	<-shutdown
	log.Info("Shutdown signal received")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Shutdown HTTP server
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP server shutdown error")
	}

	// Stop session manager
	if err := manager.Stop(shutdownCtx); err != nil {
		log.WithError(err).Error("Session manager shutdown error")
	}

	log.Info("Shutdown complete")
}

func initLogging(level string) {
	log.SetHandler(text.New(os.Stderr))
	if lvl, err := log.ParseLevel(level); err == nil {
		log.SetLevel(lvl)
	}
}

// Initialize NATS connection
func initNATS(cfg config.NATSConfig) (*nats.Conn, error) {
	options := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.WithError(err).Warn("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.WithField("url", nc.ConnectedUrl()).Info("NATS reconnected")
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Info("NATS connection closed")
		}),
	}

	nc, err := nats.Connect(cfg.URL, options...)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to NATS: %w", err)
	}

	return nc, nil
}

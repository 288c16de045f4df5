// internal/app/wire.go

package app

import (
	"context"

	"roomscope/internal/adapter/search"
	"roomscope/internal/adapter/storage"
	"roomscope/internal/config"
	"roomscope/internal/domain/room"
	"roomscope/internal/service/cluster"
	"roomscope/internal/service/discovery"
	viewportsvc "roomscope/internal/service/viewport"
)

// NewSearcher builds the configured room search backend and a func
// releasing its connections.
func NewSearcher(ctx context.Context, cfg config.Config) (room.Searcher, func(), error) {
	switch cfg.Search.Backend {
	case config.BackendPostgres:
		db, err := storage.ConnectPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		return storage.NewRoomStore(db), db.Close, nil

	case config.BackendRedis:
		client, err := storage.ConnectRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return storage.NewRedisRoomIndex(client), func() { client.Close() }, nil

	default:
		return search.NewClient(cfg.Search.BaseURL, cfg.Search.Timeout), func() {}, nil
	}
}

// EngineConfig maps configuration onto a discovery session config
func EngineConfig(cfg config.Config) discovery.EngineConfig {
	return discovery.EngineConfig{
		Viewport: viewportsvc.Config{
			DebounceDelay:   cfg.Discovery.DebounceDelay,
			MinFetchZoom:    cfg.Discovery.MinFetchZoom,
			MoveThreshold:   cfg.Discovery.MoveThreshold,
			ZoomThreshold:   cfg.Discovery.ZoomThreshold,
			PageSize:        cfg.Discovery.PageSize,
			MaxRooms:        cfg.Discovery.MaxRooms,
			MaxPages:        cfg.Discovery.MaxPages,
			MaxRadiusMeters: cfg.Discovery.MaxRadiusMeters,
			Category:        room.Category(cfg.Search.Category),
		},
		Cluster: cluster.Options{
			MinZoom:       cfg.Cluster.MinZoom,
			MaxZoom:       cfg.Cluster.MaxZoom,
			MinPoints:     cfg.Cluster.MinPoints,
			Radius:        cfg.Cluster.Radius,
			Extent:        cfg.Cluster.Extent,
			NodeSize:      cfg.Cluster.NodeSize,
			BoundsPadding: cfg.Cluster.BoundsPadding,
		},
	}
}

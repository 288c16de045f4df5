// internal/config/config.go

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Search backends
const (
	BackendHTTP     = "http"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config holds all application configuration
type Config struct {
	Environment string
	LogLevel    string
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	NATS        NATSConfig
	Search      SearchConfig
	Discovery   DiscoveryConfig
	Cluster     ClusterConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CorsOrigins     []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
	SSLMode      string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NATSConfig holds NATS configuration
type NATSConfig struct {
	Enabled        bool
	URL            string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectTimeout time.Duration
	EventsTopic    string
}

// SearchConfig selects and configures the room search backend
type SearchConfig struct {
	Backend  string
	BaseURL  string
	Timeout  time.Duration
	Category string
}

// DiscoveryConfig holds viewport fetch and session configuration
type DiscoveryConfig struct {
	DebounceDelay      time.Duration
	MinFetchZoom       float64
	MoveThreshold      float64
	ZoomThreshold      float64
	PageSize           int
	MaxRooms           int
	MaxPages           int
	MaxRadiusMeters    float64
	SessionIdleTimeout time.Duration
	MonitoringInterval time.Duration
	MaxSessions        int
}

// ClusterConfig holds spatial index configuration
type ClusterConfig struct {
	Radius        float64
	Extent        int
	MinZoom       int
	MaxZoom       int
	MinPoints     int
	NodeSize      int
	BoundsPadding float64
}

// Load loads configuration from an optional .env file and the environment
func Load() (Config, error) {
	// a missing .env file is not an error
	_ = godotenv.Load()

	config := Config{
		Environment: getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			CorsOrigins:     getEnvAsSlice("SERVER_CORS_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvAsInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", "postgres"),
			Database:     getEnv("DB_NAME", "roomscope"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getEnvAsDuration("DB_MAX_LIFETIME", 5*time.Minute),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		NATS: NATSConfig{
			Enabled:        getEnvAsBool("NATS_ENABLED", false),
			URL:            getEnv("NATS_URL", "nats://localhost:4222"),
			MaxReconnects:  getEnvAsInt("NATS_MAX_RECONNECTS", 10),
			ReconnectWait:  getEnvAsDuration("NATS_RECONNECT_WAIT", 1*time.Second),
			ConnectTimeout: getEnvAsDuration("NATS_CONNECT_TIMEOUT", 2*time.Second),
			EventsTopic:    getEnv("NATS_EVENTS_TOPIC", "rooms.store"),
		},
		Search: SearchConfig{
			Backend:  strings.ToLower(getEnv("SEARCH_BACKEND", BackendHTTP)),
			BaseURL:  getEnv("SEARCH_BASE_URL", "http://localhost:9000"),
			Timeout:  getEnvAsDuration("SEARCH_TIMEOUT", 10*time.Second),
			Category: getEnv("SEARCH_CATEGORY", ""),
		},
		Discovery: DiscoveryConfig{
			DebounceDelay:      getEnvAsDuration("DISCOVERY_DEBOUNCE_DELAY", 500*time.Millisecond),
			MinFetchZoom:       getEnvAsFloat("DISCOVERY_MIN_FETCH_ZOOM", 3),
			MoveThreshold:      getEnvAsFloat("DISCOVERY_MOVE_THRESHOLD", 0.05),
			ZoomThreshold:      getEnvAsFloat("DISCOVERY_ZOOM_THRESHOLD", 1),
			PageSize:           getEnvAsInt("DISCOVERY_PAGE_SIZE", 100),
			MaxRooms:           getEnvAsInt("DISCOVERY_MAX_ROOMS", 500),
			MaxPages:           getEnvAsInt("DISCOVERY_MAX_PAGES", 10),
			MaxRadiusMeters:    getEnvAsFloat("DISCOVERY_MAX_RADIUS_METERS", 50000),
			SessionIdleTimeout: getEnvAsDuration("DISCOVERY_SESSION_IDLE_TIMEOUT", 30*time.Minute),
			MonitoringInterval: getEnvAsDuration("DISCOVERY_MONITORING_INTERVAL", 1*time.Minute),
			MaxSessions:        getEnvAsInt("DISCOVERY_MAX_SESSIONS", 10000),
		},
		Cluster: ClusterConfig{
			Radius:        getEnvAsFloat("CLUSTER_RADIUS", 50),
			Extent:        getEnvAsInt("CLUSTER_EXTENT", 512),
			MinZoom:       getEnvAsInt("CLUSTER_MIN_ZOOM", 0),
			MaxZoom:       getEnvAsInt("CLUSTER_MAX_ZOOM", 16),
			MinPoints:     getEnvAsInt("CLUSTER_MIN_POINTS", 2),
			NodeSize:      getEnvAsInt("CLUSTER_NODE_SIZE", 16),
			BoundsPadding: getEnvAsFloat("CLUSTER_BOUNDS_PADDING", 0.5),
		},
	}

	return config, validate(config)
}

// validate checks if config is valid
func validate(config Config) error {
	switch config.Search.Backend {
	case BackendHTTP, BackendPostgres, BackendRedis:
	default:
		return fmt.Errorf("unknown search backend %q", config.Search.Backend)
	}

	if config.Discovery.PageSize <= 0 {
		return fmt.Errorf("discovery page size must be positive")
	}
	if config.Discovery.MaxRooms <= 0 || config.Discovery.MaxPages <= 0 {
		return fmt.Errorf("discovery room and page limits must be positive")
	}
	if config.Cluster.MinZoom > config.Cluster.MaxZoom {
		return fmt.Errorf("cluster min zoom %d above max zoom %d", config.Cluster.MinZoom, config.Cluster.MaxZoom)
	}

	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	return strings.Split(valueStr, ",")
}

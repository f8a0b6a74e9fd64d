package kv

import (
	"context"
	"fmt"
	"time"
)

// Backend represents the storage backend type
type Backend string

const (
	// BackendMemory uses the in-memory store
	BackendMemory Backend = "memory"
	// BackendRedis uses Redis as the backend
	BackendRedis Backend = "redis"
)

// Config holds configuration for creating a Store instance
type Config struct {
	Backend Backend

	// RedisURL is required when Backend is "redis".
	// Format: redis://localhost:6379/0 or redis://:password@localhost:6379/1
	RedisURL string

	// FailoverEnabled keeps an in-memory store behind Redis and switches to it
	// while Redis is unreachable.
	FailoverEnabled bool

	// ProbeInterval controls how often Redis is probed for recovery after failover.
	// Default: 5 seconds
	ProbeInterval time.Duration

	// StartupProbeTimeout bounds the initial Redis ping.
	// Default: 1 second
	StartupProbeTimeout time.Duration

	// Logger receives failover events. Optional.
	Logger LogFunc

	// OnFailover is called with the name of the backend that became active.
	OnFailover func(active string)
}

// StoreFactory defines a function that creates a Store instance
type StoreFactory func(cfg Config) (Store, error)

var factories = make(map[Backend]StoreFactory)

// RegisterBackend registers a store factory for a given backend
func RegisterBackend(backend Backend, factory StoreFactory) {
	factories[backend] = factory
}

// NewStoreFromConfig creates a new Store instance based on the provided configuration
func NewStoreFromConfig(cfg Config) (Store, error) {
	if cfg.ProbeInterval == 0 {
		cfg.ProbeInterval = 5 * time.Second
	}
	if cfg.StartupProbeTimeout == 0 {
		cfg.StartupProbeTimeout = 1 * time.Second
	}

	switch cfg.Backend {
	case BackendMemory:
		factory, exists := factories[BackendMemory]
		if !exists {
			return nil, fmt.Errorf("memory backend not registered")
		}
		return factory(cfg)

	case BackendRedis:
		return createRedisStore(cfg)

	default:
		return nil, fmt.Errorf("unsupported backend: %s (supported: %s, %s)",
			cfg.Backend, BackendMemory, BackendRedis)
	}
}

func (cfg Config) log(msg string, fields ...any) {
	if cfg.Logger != nil {
		cfg.Logger(msg, fields...)
	}
}

func createRedisStore(cfg Config) (Store, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("redis URL is required when backend is 'redis'")
	}

	memoryFactory, exists := factories[BackendMemory]
	if !exists {
		return nil, fmt.Errorf("memory backend not registered")
	}
	redisFactory, exists := factories[BackendRedis]
	if !exists {
		return nil, fmt.Errorf("redis backend not registered")
	}

	memoryStore, err := memoryFactory(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory store: %w", err)
	}

	redisStore, err := redisFactory(cfg)
	if err != nil {
		memoryStore.Close()
		return nil, fmt.Errorf("failed to create redis store: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.StartupProbeTimeout)
	defer cancel()
	pingErr := redisStore.Ping(ctx)

	if !cfg.FailoverEnabled {
		if pingErr != nil {
			redisStore.Close()
			cfg.log("Redis health check failed at startup, using in-memory store", "error", pingErr.Error())
			return memoryStore, nil
		}
		memoryStore.Close()
		return redisStore, nil
	}

	if pingErr != nil {
		cfg.log("Redis unhealthy at startup; using in-memory store (will retry in background)",
			"error", pingErr.Error())
		return NewFailoverStoreWithFallbackActive(redisStore, memoryStore, cfg.ProbeInterval, cfg.Logger, cfg.OnFailover), nil
	}

	cfg.log("Redis healthy at startup; using Redis with in-memory failover")
	return NewFailoverStore(redisStore, memoryStore, cfg.ProbeInterval, cfg.Logger, cfg.OnFailover), nil
}

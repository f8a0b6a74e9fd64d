package kv

import (
	"context"
	"errors"
)

// ErrBackendUnavailable is returned when the backend storage is unavailable
var ErrBackendUnavailable = errors.New("backend unavailable")

// Store is the subset of Redis hash operations the service persists state with.
type Store interface {
	// HSet stores value under field of the hash at key.
	HSet(ctx context.Context, key string, field string, value []byte) error
	// HGetAll returns every field of the hash at key. A missing key yields an
	// empty map, matching Redis.
	HGetAll(ctx context.Context, key string) (map[string][]byte, error)

	// Health check
	Ping(ctx context.Context) error

	// Cleanup
	Close() error
}

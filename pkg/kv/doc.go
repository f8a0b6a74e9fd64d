// Package kv provides a small Redis-like hash store abstraction with
// in-memory and Redis-backed implementations.
//
// Backends register
// themselves from their own packages; import them for side effects:
//
//	import (
//		"github.com/tradepairs/pairs-backend/pkg/kv"
//		_ "github.com/tradepairs/pairs-backend/pkg/kv/memory"
//		_ "github.com/tradepairs/pairs-backend/pkg/kv/redis"
//	)
//
//	store, err := kv.NewStoreFromConfig(kv.Config{
//		Backend:         kv.BackendRedis,
//		RedisURL:        "redis://localhost:6379/0",
//		FailoverEnabled: true,
//	})
//
// With FailoverEnabled a Redis-backed store transparently falls back to the
// in-memory store when Redis becomes unreachable and is promoted back once a
// background probe sees Redis healthy again.
package kv

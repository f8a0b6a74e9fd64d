package kv

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// LogFunc is a function type for structured logging
type LogFunc func(msg string, fields ...any)

// storeRef gives the active store a fixed concrete type so backends of
// different types can be swapped atomically.
type storeRef struct {
	Store
}

// FailoverStore wraps a primary and fallback store, failing over when the
// primary becomes unavailable and recovering when it becomes healthy again.
type FailoverStore struct {
	primary       Store
	fallback      Store
	active        atomic.Pointer[storeRef]
	probeInterval time.Duration
	logger        LogFunc
	onSwitch      func(active string)

	mu        sync.Mutex
	probing   bool
	closeOnce sync.Once
	closed    chan struct{}
	probeStop chan struct{}
	probeDone chan struct{}
	promote   chan struct{}
}

// NewFailoverStore creates a failover store that starts on the primary.
func NewFailoverStore(primary, fallback Store, probeInterval time.Duration, logger LogFunc, onSwitch func(string)) *FailoverStore {
	fs := newFailoverStore(primary, fallback, probeInterval, logger, onSwitch)
	fs.active.Store(&storeRef{primary})
	go fs.handlePromotions()
	return fs
}

// NewFailoverStoreWithFallbackActive starts on the fallback and probes the
// primary for recovery. Used when the primary fails at startup.
func NewFailoverStoreWithFallbackActive(primary, fallback Store, probeInterval time.Duration, logger LogFunc, onSwitch func(string)) *FailoverStore {
	fs := newFailoverStore(primary, fallback, probeInterval, logger, onSwitch)
	fs.active.Store(&storeRef{fallback})
	go fs.handlePromotions()
	fs.startProbing()
	return fs
}

func newFailoverStore(primary, fallback Store, probeInterval time.Duration, logger LogFunc, onSwitch func(string)) *FailoverStore {
	if logger == nil {
		logger = func(msg string, fields ...any) {}
	}
	if onSwitch == nil {
		onSwitch = func(string) {}
	}
	return &FailoverStore{
		primary:       primary,
		fallback:      fallback,
		probeInterval: probeInterval,
		logger:        logger,
		onSwitch:      onSwitch,
		closed:        make(chan struct{}),
		promote:       make(chan struct{}, 1),
	}
}

func (fs *FailoverStore) getActiveStore() Store {
	return fs.active.Load().Store
}

// demoteToFallback switches to the fallback store and starts probing the primary.
func (fs *FailoverStore) demoteToFallback() {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.getActiveStore() == fs.fallback {
		return
	}

	fs.active.Store(&storeRef{fs.fallback})
	fs.logger("Failing over to in-memory store", "reason", "primary_unavailable")
	fs.onSwitch("fallback")

	fs.startProbingUnsafe()
}

func (fs *FailoverStore) handlePromotions() {
	for {
		select {
		case <-fs.closed:
			return
		case <-fs.promote:
			if fs.getActiveStore() == fs.primary {
				continue
			}
			fs.active.Store(&storeRef{fs.primary})
			fs.logger("Recovered to primary store", "reason", "primary_healthy")
			fs.onSwitch("primary")
			fs.stopProbing()
		}
	}
}

func (fs *FailoverStore) signalPromotion() {
	select {
	case fs.promote <- struct{}{}:
	default:
	}
}

// must hold mu
func (fs *FailoverStore) startProbingUnsafe() {
	if fs.probing {
		return
	}
	fs.probing = true
	fs.probeStop = make(chan struct{})
	fs.probeDone = make(chan struct{})
	go fs.probeLoop(fs.probeStop, fs.probeDone)
}

func (fs *FailoverStore) startProbing() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.startProbingUnsafe()
}

func (fs *FailoverStore) stopProbing() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.stopProbingUnsafe()
}

// must hold mu
func (fs *FailoverStore) stopProbingUnsafe() {
	if !fs.probing {
		return
	}
	close(fs.probeStop)
	<-fs.probeDone
	fs.probing = false
}

func (fs *FailoverStore) probeLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(fs.probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-fs.closed:
			return
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), fs.probeInterval/2)
			err := fs.primary.Ping(ctx)
			cancel()

			if err == nil {
				fs.signalPromotion()
				// Wait for stop; the promotion handler owns the transition.
				select {
				case <-stop:
				case <-fs.closed:
				}
				return
			}
		}
	}
}

// withFailover runs fn on the active store and retries it once on the
// fallback when the primary reports ErrBackendUnavailable.
func withFailover[T any](fs *FailoverStore, fn func(Store) (T, error)) (T, error) {
	store := fs.getActiveStore()
	result, err := fn(store)

	if store == fs.primary && errors.Is(err, ErrBackendUnavailable) {
		fs.demoteToFallback()
		if fallback := fs.getActiveStore(); fallback != store {
			return fn(fallback)
		}
	}

	return result, err
}

func (fs *FailoverStore) HSet(ctx context.Context, key string, field string, value []byte) error {
	_, err := withFailover(fs, func(s Store) (struct{}, error) {
		return struct{}{}, s.HSet(ctx, key, field, value)
	})
	return err
}

func (fs *FailoverStore) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	return withFailover(fs, func(s Store) (map[string][]byte, error) {
		return s.HGetAll(ctx, key)
	})
}

// Ping checks the active store.
func (fs *FailoverStore) Ping(ctx context.Context) error {
	return fs.getActiveStore().Ping(ctx)
}

// ActiveBackend returns "primary" or "fallback".
func (fs *FailoverStore) ActiveBackend() string {
	if fs.getActiveStore() == fs.primary {
		return "primary"
	}
	return "fallback"
}

// Close stops background work and closes both stores.
func (fs *FailoverStore) Close() error {
	var err error
	fs.closeOnce.Do(func() {
		close(fs.closed)

		fs.mu.Lock()
		fs.stopProbingUnsafe()
		fs.mu.Unlock()

		err = errors.Join(fs.primary.Close(), fs.fallback.Close())
	})
	return err
}

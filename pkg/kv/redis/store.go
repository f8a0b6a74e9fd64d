package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tradepairs/pairs-backend/pkg/kv"
)

// Store is a Redis-backed implementation of the kv.Store interface
type Store struct {
	client *redis.Client
}

var connectionErrors = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"network is unreachable",
	"i/o timeout",
	"connection closed",
	"EOF",
}

// IsConnectionError checks if an error is a connection-related error that should trigger failover
func IsConnectionError(err error) bool {
	if err == nil || errors.Is(err, redis.Nil) {
		return false
	}
	// Caller cancellation is not a backend failure.
	if errors.Is(err, context.Canceled) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var sysErr syscall.Errno
	if errors.As(err, &sysErr) {
		switch sysErr {
		case syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ECONNABORTED, syscall.ETIMEDOUT:
			return true
		}
	}

	msg := err.Error()
	for _, connErr := range connectionErrors {
		if strings.Contains(msg, connErr) {
			return true
		}
	}
	return false
}

func wrap(err error) error {
	if err == nil {
		return nil
	}
	if IsConnectionError(err) {
		return fmt.Errorf("%w: %v", kv.ErrBackendUnavailable, err)
	}
	return err
}

// ParseOptions accepts a redis:// URL or a bare host:port[/db] address.
func ParseOptions(redisURL string) (*redis.Options, error) {
	opt, err := redis.ParseURL(redisURL)
	if err == nil {
		return opt, nil
	}

	u, parseErr := url.Parse("redis://" + redisURL)
	if parseErr != nil || u.Host == "" {
		return nil, err
	}

	db := 0
	if u.Path != "" && u.Path != "/" {
		if n, dbErr := strconv.Atoi(strings.TrimPrefix(u.Path, "/")); dbErr == nil {
			db = n
		}
	}

	opt = &redis.Options{Addr: u.Host, DB: db}
	if u.User != nil {
		if password, ok := u.User.Password(); ok {
			opt.Password = password
		}
	}
	return opt, nil
}

// New creates a Redis-backed store. The connection is not checked; callers
// ping before use so an unreachable server can be retried.
func New(redisURL string) (*Store, error) {
	opt, err := ParseOptions(redisURL)
	if err != nil {
		return nil, err
	}
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second

	return &Store{client: redis.NewClient(opt)}, nil
}

func (s *Store) HSet(ctx context.Context, key string, field string, value []byte) error {
	return wrap(s.client.HSet(ctx, key, field, value).Err())
}

func (s *Store) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	result, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, wrap(err)
	}
	out := make(map[string][]byte, len(result))
	for field, value := range result {
		out[field] = []byte(value)
	}
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return wrap(s.client.Ping(ctx).Err())
}

func (s *Store) Close() error {
	return s.client.Close()
}

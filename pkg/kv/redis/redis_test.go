package redis

import (
	"context"
	"errors"
	"os"
	"syscall"
	"testing"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradepairs/pairs-backend/pkg/kv"
	"github.com/tradepairs/pairs-backend/pkg/kv/kvtest"
)

func TestRedisStore(t *testing.T) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL not set, skipping Redis tests")
	}

	factory := func(t *testing.T) kv.Store {
		store, err := New(redisURL)
		if err != nil {
			t.Fatalf("Failed to create Redis store: %v", err)
		}
		store.client.FlushDB(context.Background())
		return store
	}

	kvtest.RunConformanceTests(t, factory)
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"redis nil", goredis.Nil, false},
		{"canceled", context.Canceled, false},
		{"refused errno", syscall.ECONNREFUSED, true},
		{"message match", errors.New("dial tcp: connection refused"), true},
		{"other", errors.New("WRONGTYPE Operation against a key"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsConnectionError(tt.err))
		})
	}
}

func TestWrapMarksBackendUnavailable(t *testing.T) {
	err := wrap(syscall.ECONNRESET)
	assert.ErrorIs(t, err, kv.ErrBackendUnavailable)
	assert.NoError(t, wrap(nil))
}

func TestParseOptions(t *testing.T) {
	opt, err := ParseOptions("redis://:secret@localhost:6380/2")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6380", opt.Addr)
	assert.Equal(t, "secret", opt.Password)
	assert.Equal(t, 2, opt.DB)

	opt, err = ParseOptions("127.0.0.1:6379/3")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:6379", opt.Addr)
	assert.Equal(t, 3, opt.DB)
}

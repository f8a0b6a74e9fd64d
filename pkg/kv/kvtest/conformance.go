// Package kvtest provides conformance tests for kv.Store implementations
package kvtest

import (
	"context"
	"testing"

	"github.com/tradepairs/pairs-backend/pkg/kv"
)

// StoreFactory creates a fresh Store instance for testing
type StoreFactory func(t *testing.T) kv.Store

// RunConformanceTests runs all conformance tests against a Store implementation
func RunConformanceTests(t *testing.T, factory StoreFactory) {
	tests := []struct {
		name string
		test func(t *testing.T, store kv.Store)
	}{
		{"HashSetGetAll", testHashSetGetAll},
		{"HashOverwrite", testHashOverwrite},
		{"HashKeysIsolated", testHashKeysIsolated},
		{"HashMissingKey", testHashMissingKey},
		{"Ping", testPing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()
			tt.test(t, store)
		})
	}
}

func testHashSetGetAll(t *testing.T, store kv.Store) {
	ctx := context.Background()
	if err := store.HSet(ctx, "kvtest:hash", "a", []byte("1")); err != nil {
		t.Fatalf("HSet failed: %v", err)
	}
	if err := store.HSet(ctx, "kvtest:hash", "b", []byte("2")); err != nil {
		t.Fatalf("HSet failed: %v", err)
	}

	all, err := store.HGetAll(ctx, "kvtest:hash")
	if err != nil {
		t.Fatalf("HGetAll failed: %v", err)
	}
	if len(all) != 2 || string(all["a"]) != "1" || string(all["b"]) != "2" {
		t.Errorf("HGetAll = %v, want map[a:1 b:2]", all)
	}
}

func testHashOverwrite(t *testing.T, store kv.Store) {
	ctx := context.Background()
	_ = store.HSet(ctx, "kvtest:over", "a", []byte("one"))
	_ = store.HSet(ctx, "kvtest:over", "a", []byte("two"))

	all, err := store.HGetAll(ctx, "kvtest:over")
	if err != nil {
		t.Fatalf("HGetAll failed: %v", err)
	}
	if len(all) != 1 || string(all["a"]) != "two" {
		t.Errorf("HGetAll = %v, want map[a:two]", all)
	}
}

func testHashKeysIsolated(t *testing.T, store kv.Store) {
	ctx := context.Background()
	_ = store.HSet(ctx, "kvtest:left", "f", []byte("l"))
	_ = store.HSet(ctx, "kvtest:right", "f", []byte("r"))

	left, _ := store.HGetAll(ctx, "kvtest:left")
	right, _ := store.HGetAll(ctx, "kvtest:right")
	if string(left["f"]) != "l" || string(right["f"]) != "r" {
		t.Errorf("hashes leaked between keys: left=%v right=%v", left, right)
	}
}

func testHashMissingKey(t *testing.T, store kv.Store) {
	all, err := store.HGetAll(context.Background(), "kvtest:nohash")
	if err != nil {
		t.Fatalf("HGetAll failed: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("HGetAll missing key = %v, want empty", all)
	}
}

func testPing(t *testing.T, store kv.Store) {
	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

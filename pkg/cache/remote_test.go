//go:build integration

package cache

import (
	"context"
	"os"
	"testing"
	"time"
)

// Run with: go test -tags integration ./pkg/cache
// FLOWLANE_TEST_REDIS and FLOWLANE_TEST_MONGO select the servers.

func TestRedisCacheIntegration(t *testing.T) {
	uri := os.Getenv("FLOWLANE_TEST_REDIS")
	if uri == "" {
		uri = "redis://localhost:6379/15"
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c, err := NewRedisCache(ctx, uri)
	if err != nil {
		t.Skipf("redis not available: %v", err)
	}
	defer c.Close()
	exerciseBackend(t, ctx, c)
}

func TestMongoCacheIntegration(t *testing.T) {
	uri := os.Getenv("FLOWLANE_TEST_MONGO")
	if uri == "" {
		uri = "mongodb://localhost:27017/flowlane_test"
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c, err := NewMongoCache(ctx, uri)
	if err != nil {
		t.Skipf("mongodb not available: %v", err)
	}
	defer c.Close()
	exerciseBackend(t, ctx, c)
}

type clearingCache interface {
	Cache
	Clearer
}

func exerciseBackend(t *testing.T, ctx context.Context, c clearingCache) {
	t.Helper()
	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	if _, hit, err := c.Get(ctx, "missing"); err != nil || hit {
		t.Fatalf("Get(missing) = hit %v, err %v", hit, err)
	}
	if err := c.Set(ctx, "k", []byte("payload"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	data, hit, err := c.Get(ctx, "k")
	if err != nil || !hit || string(data) != "payload" {
		t.Fatalf("Get(k) = %q, hit %v, err %v", data, hit, err)
	}

	if err := c.Set(ctx, "k", []byte("v2"), time.Minute); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if data, _, _ := c.Get(ctx, "k"); string(data) != "v2" {
		t.Errorf("overwrite not visible: %q", data)
	}

	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, hit, _ := c.Get(ctx, "k"); hit {
		t.Error("entry should be gone after Delete")
	}

	_ = c.Set(ctx, "a", []byte("1"), 0)
	_ = c.Set(ctx, "b", []byte("2"), 0)
	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, hit, _ := c.Get(ctx, "a"); hit {
		t.Error("entry survived Clear")
	}
}

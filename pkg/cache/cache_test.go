package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matzehuels/flowlane/pkg/observability"
)

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	data, hit, err := c.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if hit || data != nil {
		t.Error("NullCache.Get should always miss")
	}

	if err := c.Set(ctx, "key", []byte("value"), time.Hour); err != nil {
		t.Errorf("Set error: %v", err)
	}
	if _, hit, _ = c.Get(ctx, "key"); hit {
		t.Error("NullCache should not store data")
	}
	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
}

func TestFileCache(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if _, hit, err := c.Get(ctx, "missing"); err != nil || hit {
		t.Fatalf("Get(missing) = hit %v, err %v", hit, err)
	}

	if err := c.Set(ctx, "k", []byte("payload"), time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}
	data, hit, err := c.Get(ctx, "k")
	if err != nil || !hit {
		t.Fatalf("Get(k) = hit %v, err %v", hit, err)
	}
	if string(data) != "payload" {
		t.Errorf("data = %q", data)
	}

	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, hit, _ := c.Get(ctx, "k"); hit {
		t.Error("entry should be gone after Delete")
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Errorf("second Delete should be a no-op: %v", err)
	}
}

func TestFileCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c, _ := NewFileCache(t.TempDir())

	if err := c.Set(ctx, "short", []byte("x"), time.Nanosecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, hit, _ := c.Get(ctx, "short"); hit {
		t.Error("expired entry should miss")
	}
	if _, err := os.Stat(c.path("short")); !os.IsNotExist(err) {
		t.Error("expired entry file should be removed")
	}

	if err := c.Set(ctx, "forever", []byte("x"), 0); err != nil {
		t.Fatal(err)
	}
	if _, hit, _ := c.Get(ctx, "forever"); !hit {
		t.Error("zero ttl should never expire")
	}
}

func TestFileCacheCorruptEntry(t *testing.T) {
	ctx := context.Background()
	c, _ := NewFileCache(t.TempDir())

	path := c.path("bad")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, hit, err := c.Get(ctx, "bad"); hit || err != nil {
		t.Errorf("corrupt entry: hit %v, err %v", hit, err)
	}
}

func TestFileCacheClear(t *testing.T) {
	ctx := context.Background()
	c, _ := NewFileCache(filepath.Join(t.TempDir(), "cache"))
	for _, k := range []string{"a", "b", "c"} {
		_ = c.Set(ctx, k, []byte(k), time.Hour)
	}
	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	for _, k := range []string{"a", "b", "c"} {
		if _, hit, _ := c.Get(ctx, k); hit {
			t.Errorf("%s survived Clear", k)
		}
	}
	if _, err := os.Stat(c.Dir()); err != nil {
		t.Errorf("cache dir should exist after Clear: %v", err)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		name string
		uri  string
		want string
	}{
		{"bare path", dir, "*cache.FileCache"},
		{"file scheme", "file://" + dir, "*cache.FileCache"},
		{"disabled", "none://", "cache.NullCache"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Open(ctx, tt.uri)
			if err != nil {
				t.Fatalf("Open(%q): %v", tt.uri, err)
			}
			defer c.Close()
			if got := typeName(c); got != tt.want {
				t.Errorf("Open(%q) = %s, want %s", tt.uri, got, tt.want)
			}
		})
	}

	if _, err := Open(ctx, "ftp://host/x"); err == nil {
		t.Error("unsupported scheme should fail")
	}
	if _, err := Open(ctx, ""); err == nil {
		t.Error("empty uri should fail")
	}
}

func typeName(c Cache) string {
	switch c.(type) {
	case *FileCache:
		return "*cache.FileCache"
	case NullCache:
		return "cache.NullCache"
	case *RedisCache:
		return "*cache.RedisCache"
	case *MongoCache:
		return "*cache.MongoCache"
	}
	return "unknown"
}

func TestHash(t *testing.T) {
	h1 := Hash([]byte("hello"))
	if h1 != Hash([]byte("hello")) {
		t.Error("Hash should be deterministic")
	}
	if h1 == Hash([]byte("world")) {
		t.Error("Different inputs should produce different hashes")
	}
	if len(h1) != 64 {
		t.Errorf("Hash length should be 64, got %d", len(h1))
	}
}

func TestDefaultKeyer(t *testing.T) {
	k := NewDefaultKeyer()
	base := ViewKeyOpts{PxPerMs: 0.06, LaneHeight: 28, Width: 1000}

	s1 := k.SnapshotKey("g1", base)
	if !strings.HasPrefix(s1, "snapshot:") {
		t.Errorf("SnapshotKey prefix: %s", s1)
	}
	if s1 != k.SnapshotKey("g1", base) {
		t.Error("SnapshotKey should be deterministic")
	}
	if s1 == k.SnapshotKey("g2", base) {
		t.Error("different graphs should produce different keys")
	}

	sel := base
	sel.Selected = "b"
	if s1 == k.SnapshotKey("g1", sel) {
		t.Error("selection should change the key")
	}
	zoom := base
	zoom.PxPerMs = 0.1
	if s1 == k.SnapshotKey("g1", zoom) {
		t.Error("scale should change the key")
	}

	a1 := k.ArtifactKey("g1", "svg", base)
	a2 := k.ArtifactKey("g1", "dot", base)
	if !strings.HasPrefix(a1, "artifact:") {
		t.Errorf("ArtifactKey prefix: %s", a1)
	}
	if a1 == a2 {
		t.Error("different formats should produce different keys")
	}
}

func TestScopedKeyer(t *testing.T) {
	inner := NewDefaultKeyer()
	scoped := NewScopedKeyer(inner, "staging:")
	opts := ViewKeyOpts{Width: 800}

	if got, want := scoped.SnapshotKey("g", opts), "staging:"+inner.SnapshotKey("g", opts); got != want {
		t.Errorf("SnapshotKey = %s, want %s", got, want)
	}
	if got, want := scoped.ArtifactKey("g", "svg", opts), "staging:"+inner.ArtifactKey("g", "svg", opts); got != want {
		t.Errorf("ArtifactKey = %s, want %s", got, want)
	}
}

func TestScopedKeyerNilInner(t *testing.T) {
	scoped := NewScopedKeyer(nil, "prefix:")
	key := scoped.SnapshotKey("g", ViewKeyOpts{})
	if !strings.HasPrefix(key, "prefix:snapshot:") {
		t.Errorf("Unexpected key with nil inner: %s", key)
	}
}

type recordingHooks struct {
	observability.NoopCacheHooks
	mu     sync.Mutex
	events []string
}

func (h *recordingHooks) OnCacheHit(_ context.Context, keyType string) {
	h.record("hit:" + keyType)
}

func (h *recordingHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.record("miss:" + keyType)
}

func (h *recordingHooks) OnCacheSet(_ context.Context, keyType string, _ int) {
	h.record("set:" + keyType)
}

func (h *recordingHooks) record(e string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, e)
}

func TestInstrumented(t *testing.T) {
	hooks := &recordingHooks{}
	observability.SetCacheHooks(hooks)
	defer observability.Reset()

	ctx := context.Background()
	fc, _ := NewFileCache(t.TempDir())
	c := Instrumented{Cache: fc}
	key := NewDefaultKeyer().ArtifactKey("g", "svg", ViewKeyOpts{})

	_, _, _ = c.Get(ctx, key)
	_ = c.Set(ctx, key, []byte("<svg/>"), time.Hour)
	_, _, _ = c.Get(ctx, key)

	want := []string{"miss:artifact", "set:artifact", "hit:artifact"}
	if strings.Join(hooks.events, ",") != strings.Join(want, ",") {
		t.Errorf("events = %v, want %v", hooks.events, want)
	}

	if err := c.Clear(ctx); err != nil {
		t.Errorf("Clear: %v", err)
	}
	if err := (Instrumented{Cache: NewNullCache()}).Clear(ctx); err != nil {
		t.Errorf("Clear on non-clearer should be a no-op: %v", err)
	}
}

var errTransient = errors.New("connection reset")

func TestRetryableError(t *testing.T) {
	if Retryable(nil) != nil {
		t.Error("Retryable(nil) should return nil")
	}

	err := Retryable(errTransient)
	if !IsRetryable(err) {
		t.Error("IsRetryable should return true for wrapped error")
	}
	if err.Error() != errTransient.Error() {
		t.Errorf("Error message should be preserved: %s", err.Error())
	}
	if !errors.Is(err, errTransient) {
		t.Error("wrapped error should unwrap to its cause")
	}
	if IsRetryable(ErrUnavailable) {
		t.Error("IsRetryable should return false for unwrapped error")
	}
}

func TestRetryWithBackoff(t *testing.T) {
	old := retryDelay
	retryDelay = time.Millisecond
	defer func() { retryDelay = old }()

	ctx := context.Background()

	calls := 0
	if err := RetryWithBackoff(ctx, func() error { calls++; return nil }); err != nil || calls != 1 {
		t.Errorf("success: err %v, calls %d", err, calls)
	}

	calls = 0
	err := RetryWithBackoff(ctx, func() error { calls++; return ErrUnavailable })
	if err != ErrUnavailable || calls != 1 {
		t.Errorf("non-retryable: err %v, calls %d", err, calls)
	}

	calls = 0
	err = RetryWithBackoff(ctx, func() error {
		calls++
		if calls < 2 {
			return Retryable(errTransient)
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Errorf("retry once: err %v, calls %d", err, calls)
	}

	calls = 0
	err = RetryWithBackoff(ctx, func() error { calls++; return Retryable(errTransient) })
	if !IsRetryable(err) || calls != 3 {
		t.Errorf("exhausted: err %v, calls %d", err, calls)
	}
}

func TestRetryWithBackoffContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RetryWithBackoff(ctx, func() error {
		return Retryable(errTransient)
	})
	if err != context.Canceled {
		t.Errorf("Should return context error: %v", err)
	}
}

// Package cache stores rendered timeline artifacts and snapshot documents.
//
// Only finished graphs are cached: a live graph changes on every refresh, so
// its output is always recomputed. Keys are derived from the graph's content
// hash, the view options and the interaction state.
//
// # Backends
//
//   - [FileCache]: JSON entry files under a directory (CLI default)
//   - [RedisCache]: shared cache for the viewer API (redis://)
//   - [MongoCache]: document-store cache with a TTL index (mongodb://)
//   - [NullCache]: caching disabled
//
// [Open] picks a backend from a URI.
package cache

import (
	"context"
	"net/url"
	"strings"
	"time"

	flerrors "github.com/matzehuels/flowlane/pkg/errors"
	"github.com/matzehuels/flowlane/pkg/observability"
)

// DefaultTTL is the lifetime of cached artifacts.
const DefaultTTL = 7 * 24 * time.Hour

// Cache is a byte-oriented key/value store with expiry.
type Cache interface {
	// Get returns the value for key. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data under key. A zero ttl never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Clearer is implemented by backends that can drop every entry.
type Clearer interface {
	Clear(ctx context.Context) error
}

// Open returns the backend for uri:
//
//   - a bare path or file:// URI opens a [FileCache]
//   - redis:// and rediss:// open a [RedisCache]
//   - mongodb:// and mongodb+srv:// open a [MongoCache]
//   - none:// disables caching
func Open(ctx context.Context, uri string) (Cache, error) {
	if err := flerrors.ValidateCacheURI(uri); err != nil {
		return nil, err
	}
	if !strings.Contains(uri, "://") {
		return NewFileCache(uri)
	}
	u, _ := url.Parse(uri)
	switch u.Scheme {
	case "file":
		return NewFileCache(u.Path)
	case "redis", "rediss":
		return NewRedisCache(ctx, uri)
	case "mongodb", "mongodb+srv":
		return NewMongoCache(ctx, uri)
	default:
		return NewNullCache(), nil
	}
}

// Instrumented reports hits, misses and writes of the wrapped cache to the
// registered observability hooks. The key type is the key prefix before the
// first colon.
type Instrumented struct {
	Cache
}

// Get implements Cache.
func (c Instrumented) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, hit, err := c.Cache.Get(ctx, key)
	if err == nil {
		if hit {
			observability.Cache().OnCacheHit(ctx, keyType(key))
		} else {
			observability.Cache().OnCacheMiss(ctx, keyType(key))
		}
	}
	return data, hit, err
}

// Set implements Cache.
func (c Instrumented) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := c.Cache.Set(ctx, key, data, ttl); err != nil {
		return err
	}
	observability.Cache().OnCacheSet(ctx, keyType(key), len(data))
	return nil
}

// Clear forwards to the wrapped cache when it supports clearing.
func (c Instrumented) Clear(ctx context.Context) error {
	if cl, ok := c.Cache.(Clearer); ok {
		return cl.Clear(ctx)
	}
	return nil
}

func keyType(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}

var _ Cache = Instrumented{}

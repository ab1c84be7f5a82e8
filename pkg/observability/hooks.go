// Package observability provides hooks for metrics, tracing, and logging.
//
// Libraries emit events through the registered hooks; the application decides
// what to do with them. The defaults are no-ops, so nothing is recorded
// unless main registers an implementation at startup:
//
//	func main() {
//	    observability.SetLayoutHooks(&logHooks{logger})
//	    observability.SetRefreshHooks(&logHooks{logger})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Layout().OnLayoutStart(ctx, g.ID, len(g.Nodes))
//	// ... classify, assign ranks ...
//	observability.Layout().OnLayoutComplete(ctx, g.ID, lanes, time.Since(start), err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Layout Hooks
// =============================================================================

// LayoutHooks receives events from timeline recomputation.
type LayoutHooks interface {
	OnLayoutStart(ctx context.Context, graphID string, nodeCount int)
	OnLayoutComplete(ctx context.Context, graphID string, lanes int, duration time.Duration, err error)

	// OnSelect is called after a selection change; stageID is empty when
	// the selection was cleared.
	OnSelect(ctx context.Context, graphID, stageID string)
}

// =============================================================================
// Refresh Hooks
// =============================================================================

// RefreshHooks receives events from the live refresh loop.
type RefreshHooks interface {
	// OnCycle records one recomputation cycle.
	OnCycle(ctx context.Context, cycle int, live bool, duration time.Duration, err error)

	// OnStateChange records a loop state transition.
	OnStateChange(ctx context.Context, from, to string)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	OnCacheHit(ctx context.Context, keyType string)
	OnCacheMiss(ctx context.Context, keyType string)
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from the viewer API server.
type HTTPHooks interface {
	OnRequest(ctx context.Context, method, path string)
	OnResponse(ctx context.Context, method, path string, statusCode int, duration time.Duration)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopLayoutHooks is a no-op implementation of LayoutHooks.
type NoopLayoutHooks struct{}

func (NoopLayoutHooks) OnLayoutStart(context.Context, string, int)                          {}
func (NoopLayoutHooks) OnLayoutComplete(context.Context, string, int, time.Duration, error) {}
func (NoopLayoutHooks) OnSelect(context.Context, string, string)                            {}

// NoopRefreshHooks is a no-op implementation of RefreshHooks.
type NoopRefreshHooks struct{}

func (NoopRefreshHooks) OnCycle(context.Context, int, bool, time.Duration, error) {}
func (NoopRefreshHooks) OnStateChange(context.Context, string, string)            {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string)                         {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, int, time.Duration) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	layoutHooks  LayoutHooks  = NoopLayoutHooks{}
	refreshHooks RefreshHooks = NoopRefreshHooks{}
	cacheHooks   CacheHooks   = NoopCacheHooks{}
	httpHooks    HTTPHooks    = NoopHTTPHooks{}
	hooksMu      sync.RWMutex
)

// SetLayoutHooks registers custom layout hooks. Nil is ignored.
func SetLayoutHooks(h LayoutHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		layoutHooks = h
	}
}

// SetRefreshHooks registers custom refresh loop hooks. Nil is ignored.
func SetRefreshHooks(h RefreshHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		refreshHooks = h
	}
}

// SetCacheHooks registers custom cache hooks. Nil is ignored.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetHTTPHooks registers custom HTTP hooks. Nil is ignored.
func SetHTTPHooks(h HTTPHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		httpHooks = h
	}
}

// Layout returns the registered layout hooks.
func Layout() LayoutHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return layoutHooks
}

// Refresh returns the registered refresh loop hooks.
func Refresh() RefreshHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return refreshHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return httpHooks
}

// Reset restores all hooks to their no-op defaults.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	layoutHooks = NoopLayoutHooks{}
	refreshHooks = NoopRefreshHooks{}
	cacheHooks = NoopCacheHooks{}
	httpHooks = NoopHTTPHooks{}
}

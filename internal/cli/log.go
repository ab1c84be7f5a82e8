package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/flowlane/pkg/observability"
)

// newLogger creates a new logger with timestamp formatting.
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress tracks the start time of an operation and logs completion with elapsed duration.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg along with the elapsed time, e.g. "Rendered 3 formats (12ms)".
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}

type ctxKey int

const loggerKey ctxKey = 0

// withLogger returns a new context with the given logger attached.
func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext retrieves the logger from ctx, or log.Default().
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}

// =============================================================================
// Observability hooks
// =============================================================================

// logHooks reports layout, refresh and cache events at debug level.
type logHooks struct {
	logger *log.Logger
}

func (h logHooks) OnLayoutStart(_ context.Context, graphID string, nodes int) {
	h.logger.Debug("layout start", "graph", graphID, "nodes", nodes)
}

func (h logHooks) OnLayoutComplete(_ context.Context, graphID string, lanes int, d time.Duration, err error) {
	if err != nil {
		h.logger.Debug("layout failed", "graph", graphID, "err", err)
		return
	}
	h.logger.Debug("layout done", "graph", graphID, "lanes", lanes, "took", d)
}

func (h logHooks) OnSelect(_ context.Context, graphID, stageID string) {
	h.logger.Debug("select", "graph", graphID, "stage", stageID)
}

func (h logHooks) OnCycle(_ context.Context, cycle int, live bool, d time.Duration, err error) {
	h.logger.Debug("refresh", "cycle", cycle, "live", live, "took", d, "err", err)
}

func (h logHooks) OnStateChange(_ context.Context, from, to string) {
	h.logger.Debug("refresh state", "from", from, "to", to)
}

func (h logHooks) OnCacheHit(_ context.Context, keyType string) {
	h.logger.Debug("cache hit", "type", keyType)
}

func (h logHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.logger.Debug("cache miss", "type", keyType)
}

func (h logHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.logger.Debug("cache set", "type", keyType, "bytes", size)
}

// installHooks routes layout, refresh and cache events to l.
func installHooks(l *log.Logger) {
	h := logHooks{logger: l}
	observability.SetLayoutHooks(h)
	observability.SetRefreshHooks(h)
	observability.SetCacheHooks(h)
}

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/flowlane/pkg/cache"
	"github.com/matzehuels/flowlane/pkg/graph"
	"github.com/matzehuels/flowlane/pkg/timeline"
)

// Runner encapsulates pipeline execution with caching.
// Both CLI and API use it to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache, clock and logger. Multiple
// goroutines can safely use the same Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Clock  graph.Clock
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Clock:  graph.WallClock{},
		Logger: logger,
	}
}

// Execute runs layout and render for g with caching.
func (r *Runner) Execute(ctx context.Context, g *graph.Graph, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	opts.SetDefaults()
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	result := &Result{}
	if data, err := graph.MarshalGraph(g); err == nil {
		result.GraphHash = cache.Hash(data)
	}

	layoutStart := time.Now()
	snap, st, err := ComputeView(g, opts, r.Clock.Now())
	if err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}
	result.Snapshot, result.State = snap, st
	result.Stats = Stats{
		StageCount:   len(g.Stages()),
		LaneCount:    snap.LaneCount,
		PendingCount: len(snap.Pending),
		LayoutTime:   time.Since(layoutStart),
	}

	opts.Logger.Debug("computed layout",
		"graph", g.ID,
		"stages", result.Stats.StageCount,
		"lanes", snap.LaneCount,
		"duration", result.Stats.LayoutTime)

	renderStart := time.Now()
	artifacts, info, err := r.RenderWithCacheInfo(ctx, snap, g, result.GraphHash, opts)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	result.Artifacts = artifacts
	result.CacheInfo = info
	result.Stats.RenderTime = time.Since(renderStart)

	opts.Logger.Debug("rendered outputs",
		"formats", opts.Formats,
		"cached", info.RenderHit,
		"duration", result.Stats.RenderTime)

	return result, nil
}

// RenderWithCacheInfo renders artifacts, serving finished graphs from the
// cache when every requested format is present.
func (r *Runner) RenderWithCacheInfo(ctx context.Context, snap *timeline.Snapshot, g *graph.Graph, graphHash string, opts Options) (map[string][]byte, CacheInfo, error) {
	info := CacheInfo{Cacheable: !g.IsLive() && graphHash != ""}
	if !info.Cacheable {
		artifacts, err := Render(ctx, snap, g, opts)
		return artifacts, info, err
	}

	keyOpts := opts.KeyOpts(timeline.State{
		Selected:    snap.Selected,
		CursorTs:    snap.CursorTs,
		ScrollRatio: snap.ScrollRatio,
	})
	keyFor := func(format string) string {
		if format == FormatJSON {
			return r.Keyer.SnapshotKey(graphHash, keyOpts)
		}
		return r.Keyer.ArtifactKey(graphHash, format, keyOpts)
	}

	if !opts.Refresh {
		artifacts := make(map[string][]byte, len(opts.Formats))
		for _, format := range opts.Formats {
			data, hit, err := r.Cache.Get(ctx, keyFor(format))
			if err != nil {
				r.Logger.Warn("cache read failed", "format", format, "err", err)
			}
			if !hit {
				break
			}
			artifacts[format] = data
		}
		if len(artifacts) == len(opts.Formats) {
			info.RenderHit = true
			return artifacts, info, nil
		}
	}

	rendered, err := Render(ctx, snap, g, opts)
	if err != nil {
		return nil, info, err
	}
	for format, data := range rendered {
		if err := r.Cache.Set(ctx, keyFor(format), data, cache.DefaultTTL); err != nil {
			r.Logger.Warn("cache write failed", "format", format, "err", err)
		}
	}
	return rendered, info, nil
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

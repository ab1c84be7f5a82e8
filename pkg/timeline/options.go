package timeline

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	flerrors "github.com/matzehuels/flowlane/pkg/errors"
	"github.com/matzehuels/flowlane/pkg/viewport"
)

// =============================================================================
// Default Values
// =============================================================================

const (
	DefaultPxPerMs           = 0.06
	DefaultLaneHeight        = 28.0
	DefaultWidth             = 1000.0
	DefaultPendingPanelWidth = 150.0
	DefaultViewportHeight    = 400.0
	DefaultSurfaceWidth      = 30000.0
	DefaultRefreshInterval   = 50 * time.Millisecond
)

// barGap is the vertical space between bars in neighbouring lanes.
const barGap = 10.0

// =============================================================================
// Options
// =============================================================================

// Options configures the timeline view. Zero fields take their defaults in
// SetDefaults. Options can be read from TOML files and JSON request bodies.
type Options struct {
	PxPerMs           float64 `json:"px_per_ms,omitempty" toml:"px_per_ms"`
	LaneHeight        float64 `json:"lane_height,omitempty" toml:"lane_height"`
	Width             float64 `json:"width,omitempty" toml:"width"`
	PendingPanelWidth float64 `json:"pending_panel_width,omitempty" toml:"pending_panel_width"`
	ViewportHeight    float64 `json:"viewport_height,omitempty" toml:"viewport_height"`
	// MinContentHeight is the smallest content height; 0 means the
	// viewport height.
	MinContentHeight float64       `json:"min_content_height,omitempty" toml:"min_content_height"`
	SurfaceWidth     float64       `json:"surface_width,omitempty" toml:"surface_width"`
	RefreshInterval  time.Duration `json:"refresh_interval,omitempty" toml:"refresh_interval"`

	// DisableAutoScroll starts live graphs unpinned.
	DisableAutoScroll bool `json:"disable_auto_scroll,omitempty" toml:"disable_auto_scroll"`
}

// DefaultOptions returns Options with every default applied.
func DefaultOptions() Options {
	var o Options
	o.SetDefaults()
	return o
}

// SetDefaults fills zero fields with their defaults.
func (o *Options) SetDefaults() {
	if o.PxPerMs == 0 {
		o.PxPerMs = DefaultPxPerMs
	}
	if o.LaneHeight == 0 {
		o.LaneHeight = DefaultLaneHeight
	}
	if o.Width == 0 {
		o.Width = DefaultWidth
	}
	if o.PendingPanelWidth == 0 {
		o.PendingPanelWidth = DefaultPendingPanelWidth
	}
	if o.ViewportHeight == 0 {
		o.ViewportHeight = DefaultViewportHeight
	}
	if o.SurfaceWidth == 0 {
		o.SurfaceWidth = DefaultSurfaceWidth
	}
	if o.RefreshInterval == 0 {
		o.RefreshInterval = DefaultRefreshInterval
	}
}

// Validate checks option ranges. Call SetDefaults first.
func (o Options) Validate() error {
	switch {
	case o.PxPerMs <= 0:
		return flerrors.New(flerrors.ErrCodeInvalidOptions, "px_per_ms must be positive, got %v", o.PxPerMs)
	case o.LaneHeight <= barGap:
		return flerrors.New(flerrors.ErrCodeInvalidOptions, "lane_height must exceed %v, got %v", barGap, o.LaneHeight)
	case o.PendingPanelWidth < 0:
		return flerrors.New(flerrors.ErrCodeInvalidOptions, "pending_panel_width must not be negative")
	case o.ViewportWidth() <= 0:
		return flerrors.New(flerrors.ErrCodeInvalidOptions, "width %v leaves no room for the viewport", o.Width)
	case o.ViewportHeight <= 0:
		return flerrors.New(flerrors.ErrCodeInvalidOptions, "viewport_height must be positive, got %v", o.ViewportHeight)
	case o.MinContentHeight < 0:
		return flerrors.New(flerrors.ErrCodeInvalidOptions, "min_content_height must not be negative")
	case o.SurfaceWidth < o.ViewportWidth():
		return flerrors.New(flerrors.ErrCodeInvalidOptions, "surface_width must be at least the viewport width")
	case o.RefreshInterval < time.Millisecond:
		return flerrors.New(flerrors.ErrCodeInvalidOptions, "refresh_interval must be at least 1ms, got %v", o.RefreshInterval)
	}
	return nil
}

// ViewportWidth is the width left for the timeline after the pending panel.
func (o Options) ViewportWidth() float64 {
	return o.Width - o.PendingPanelWidth
}

// MinHeight returns the effective minimum content height.
func (o Options) MinHeight() float64 {
	if o.MinContentHeight > 0 {
		return o.MinContentHeight
	}
	return o.ViewportHeight
}

// BarHeight is the drawn height of a stage bar.
func (o Options) BarHeight() float64 {
	return o.LaneHeight - barGap
}

// Geometry returns the fixed viewport dimensions.
func (o Options) Geometry() viewport.Geometry {
	return viewport.Geometry{
		PxPerMs:        o.PxPerMs,
		ViewportWidth:  o.ViewportWidth(),
		ViewportHeight: o.ViewportHeight,
		SurfaceWidth:   o.SurfaceWidth,
	}
}

// LoadOptions reads a TOML option file, applies defaults and validates.
func LoadOptions(path string) (Options, error) {
	var o Options
	data, err := os.ReadFile(path)
	if err != nil {
		return o, fmt.Errorf("read options %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &o); err != nil {
		return o, flerrors.Wrap(flerrors.ErrCodeInvalidOptions, err, "parse options %s", path)
	}
	o.SetDefaults()
	if err := o.Validate(); err != nil {
		return o, err
	}
	return o, nil
}

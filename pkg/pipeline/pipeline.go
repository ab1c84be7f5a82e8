// Package pipeline provides the load → layout → render pipeline shared by
// the CLI and the viewer API.
//
// # Architecture
//
// The pipeline consists of three stages:
//
//  1. Load: read a graph document from a file or reader
//  2. Layout: run [timeline.Compute] for the requested view
//  3. Render: produce artifacts (SVG, JSON, DOT, dependency SVG, PNG, PDF)
//
// Rendered artifacts of finished graphs are cached; live graphs change on
// every refresh and are always recomputed.
//
// # Usage
//
//	runner := pipeline.NewRunner(c, nil, logger)
//	result, err := runner.Execute(ctx, g, pipeline.Options{
//	    Formats: []string{"svg"},
//	})
//	if err != nil {
//	    return err
//	}
//	svg := result.Artifacts["svg"]
package pipeline

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/flowlane/pkg/cache"
	flerrors "github.com/matzehuels/flowlane/pkg/errors"
	"github.com/matzehuels/flowlane/pkg/timeline"
)

// Format constants for output formats.
const (
	FormatSVG  = "svg"
	FormatJSON = "json"
	FormatDOT  = "dot"
	FormatDeps = "deps"
	FormatPNG  = "png"
	FormatPDF  = "pdf"
)

// AllFormats lists the supported output formats.
var AllFormats = []string{FormatSVG, FormatJSON, FormatDOT, FormatDeps, FormatPNG, FormatPDF}

// DefaultPNGScale is the PNG resolution factor.
const DefaultPNGScale = 2.0

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options configures one pipeline run. It supports JSON for API requests.
type Options struct {
	View timeline.Options `json:"view"`

	// State is the interaction state to render. Nil means the initial
	// state of the graph.
	State *timeline.State `json:"state,omitempty"`

	Formats  []string `json:"formats,omitempty"`
	Overview bool     `json:"overview,omitempty"`
	Detailed bool     `json:"detailed,omitempty"` // detailed labels in DOT output
	Refresh  bool     `json:"refresh,omitempty"`  // bypass the cache

	Logger *log.Logger `json:"-"`
}

// SetDefaults applies defaults to unset fields.
func (o *Options) SetDefaults() {
	o.View.SetDefaults()
	if len(o.Formats) == 0 {
		o.Formats = []string{FormatSVG}
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// Validate checks the view options and formats. Call SetDefaults first.
func (o *Options) Validate() error {
	if err := o.View.Validate(); err != nil {
		return err
	}
	return ValidateFormats(o.Formats)
}

// ValidateFormat checks that a format is supported.
func ValidateFormat(format string) error {
	return flerrors.ValidateFormat(format, AllFormats...)
}

// ValidateFormats checks that all formats are supported.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// KeyOpts returns the cache key inputs for the view and state st.
func (o *Options) KeyOpts(st timeline.State) cache.ViewKeyOpts {
	v := o.View
	return cache.ViewKeyOpts{
		PxPerMs:           v.PxPerMs,
		LaneHeight:        v.LaneHeight,
		Width:             v.Width,
		PendingPanelWidth: v.PendingPanelWidth,
		ViewportHeight:    v.ViewportHeight,
		MinContentHeight:  v.MinContentHeight,
		SurfaceWidth:      v.SurfaceWidth,
		Selected:          st.Selected,
		CursorTs:          st.CursorTs,
		ScrollRatio:       st.ScrollRatio,
		Overview:          o.Overview,
		Detailed:          o.Detailed,
	}
}

// =============================================================================
// Results
// =============================================================================

// Result contains the outputs of a pipeline run.
type Result struct {
	// Snapshot is the computed view.
	Snapshot *timeline.Snapshot

	// State is the interaction state after the computation.
	State timeline.State

	// GraphHash is the content hash of the graph.
	GraphHash string

	// Artifacts contains rendered outputs keyed by format.
	Artifacts map[string][]byte

	Stats     Stats
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	StageCount   int
	LaneCount    int
	PendingCount int
	LayoutTime   time.Duration
	RenderTime   time.Duration
}

// CacheInfo tracks cache use of a run.
type CacheInfo struct {
	Cacheable bool // false for live graphs
	RenderHit bool // all artifacts came from cache
}

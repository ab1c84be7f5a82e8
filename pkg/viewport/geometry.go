// Package viewport maps an unbounded time axis and a growing set of lanes
// onto a fixed-size window.
//
// Horizontally, a surface much wider than any realistic timeline is laid out
// from the graph's creation time and translated so that the cursor timestamp
// sits at the left edge of the viewport. Vertically, content taller than the
// viewport scrolls by a ratio in [0, 1] driven by a scrollbar thumb.
package viewport

import "math"

// Geometry holds the fixed dimensions of a timeline view.
type Geometry struct {
	PxPerMs        float64 `json:"px_per_ms"`
	ViewportWidth  float64 `json:"viewport_width"`
	ViewportHeight float64 `json:"viewport_height"`
	SurfaceWidth   float64 `json:"surface_width"`
}

// PixelX converts a timestamp to an x offset on the surface, measured from
// origin (the graph creation time).
func (g Geometry) PixelX(origin, ts int64) float64 {
	return float64(ts-origin) * g.PxPerMs
}

// SurfaceOffsetX is the horizontal translation that puts cursorTs at the
// viewport's left edge.
func (g Geometry) SurfaceOffsetX(origin, cursorTs int64) float64 {
	return -g.PixelX(origin, cursorTs)
}

// WindowMs returns the time span covered by the viewport width.
func (g Geometry) WindowMs() float64 {
	if g.PxPerMs <= 0 {
		return 0
	}
	return g.ViewportWidth / g.PxPerMs
}

// CurrentLineX returns the surface x of the "now" marker and whether it
// lies on the surface at all.
func (g Geometry) CurrentLineX(origin, maxTs int64) (float64, bool) {
	x := g.PixelX(origin, maxTs)
	return x, x < g.SurfaceWidth
}

// VisibleRange returns the timestamps at the left and right edges of the
// viewport for the given cursor.
func (g Geometry) VisibleRange(cursorTs int64) (from, to int64) {
	return cursorTs, cursorTs + int64(math.Ceil(g.WindowMs()))
}

// AutoScroll pins the view to the live edge. When the graph duration exceeds
// the window, it returns the cursor that keeps the latest activity flush with
// the right edge, a vertical ratio of 1 and pinned = true. Otherwise pinned
// is false and the caller keeps its current cursor.
func AutoScroll(g Geometry, created, duration int64) (cursorTs int64, ratio float64, pinned bool) {
	w := g.WindowMs()
	if float64(duration) <= w {
		return 0, 0, false
	}
	return created + int64(math.Round(float64(duration)-w)), 1, true
}

// =============================================================================
// Overview
// =============================================================================

// Overview maps the full graph duration onto a strip width pixels wide, with
// the current window drawn as a bracket. The strip drives horizontal
// scrolling.
type Overview struct {
	Width    float64
	Created  int64
	MaxTs    int64
	WindowMs float64
}

func (o Overview) span() float64 {
	return math.Max(float64(o.MaxTs-o.Created), o.WindowMs)
}

// Window returns the bracket edges for cursorTs, in strip pixels.
func (o Overview) Window(cursorTs int64) (left, right float64) {
	span := o.span()
	if span <= 0 || o.Width <= 0 {
		return 0, o.Width
	}
	scale := o.Width / span
	left = float64(cursorTs-o.Created) * scale
	right = left + o.WindowMs*scale
	return clamp(left, 0, o.Width), clamp(right, 0, o.Width)
}

// CursorAt returns the cursor that centers the window on strip position x,
// kept within [Created, MaxTs - WindowMs] when possible.
func (o Overview) CursorAt(x float64) int64 {
	span := o.span()
	if span <= 0 || o.Width <= 0 {
		return o.Created
	}
	ts := float64(o.Created) + clamp(x, 0, o.Width)/o.Width*span - o.WindowMs/2
	hi := math.Max(float64(o.Created), float64(o.MaxTs)-o.WindowMs)
	return int64(math.Round(clamp(ts, float64(o.Created), hi)))
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

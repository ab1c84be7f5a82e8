package viewport

import "math"

// MinScrollSpan is the smallest vertical span the content translation is
// computed against, so content barely taller than the viewport still moves.
const MinScrollSpan = 9.0

// minHeight is the smallest height treated as non-degenerate.
const minHeight = 1e-6

// VerticalMetrics is the vertical scroll geometry for one snapshot.
type VerticalMetrics struct {
	ContentHeight  float64 `json:"content_height"`
	ViewportHeight float64 `json:"viewport_height"`
	Ratio          float64 `json:"ratio"`
	MaxScroll      float64 `json:"max_scroll"`
	ThumbHeight    float64 `json:"thumb_height"`
	ThumbTop       float64 `json:"thumb_top"`
	ContentOffsetY float64 `json:"content_offset_y"`
	ScrollPos      float64 `json:"scroll_pos"`
	Scrollable     bool    `json:"scrollable"`
}

// Vertical computes scrollbar and content offsets. ratio is clamped to
// [0, 1]. Degenerate heights yield a full-height thumb and no scroll.
func Vertical(contentHeight, viewportHeight, ratio float64) VerticalMetrics {
	if math.IsNaN(ratio) {
		ratio = 0
	}
	ratio = clamp(ratio, 0, 1)

	m := VerticalMetrics{
		ContentHeight:  contentHeight,
		ViewportHeight: viewportHeight,
		Ratio:          ratio,
		ThumbHeight:    math.Max(viewportHeight, 0),
	}
	if contentHeight < minHeight || viewportHeight < minHeight {
		m.Ratio = 0
		return m
	}

	m.MaxScroll = math.Max(0, contentHeight-viewportHeight)
	if m.MaxScroll > 0 {
		m.Scrollable = true
		m.ThumbHeight = viewportHeight * (viewportHeight / contentHeight)
	}
	m.ScrollPos = ratio * m.MaxScroll
	m.ThumbTop = ratio * (viewportHeight - m.ThumbHeight)
	m.ContentOffsetY = -ratio * math.Max(MinScrollSpan, contentHeight-viewportHeight)
	return m
}

// RatioForScroll converts a content scroll position to a ratio, clamping the
// position to [0, MaxScroll].
func (m VerticalMetrics) RatioForScroll(pos float64) float64 {
	if m.MaxScroll <= 0 {
		return 0
	}
	return clamp(pos, 0, m.MaxScroll) / m.MaxScroll
}

// TrackScale is the content distance moved per pixel of thumb movement.
func (m VerticalMetrics) TrackScale() float64 {
	if m.ThumbHeight < minHeight {
		return 0
	}
	return m.ViewportHeight / m.ThumbHeight
}

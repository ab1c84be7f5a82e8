// Package sink renders timeline snapshots to output formats.
//
// # SVG
//
// [RenderSVG] draws what a viewer sees: the surface translated by the
// snapshot's horizontal and vertical offsets and clipped to the viewport, one
// bar per ranked stage, the current-time line, the scrollbar when the lanes
// overflow, the pending panel and, optionally, the overview strip:
//
//	svg := sink.RenderSVG(snap, sink.WithOverview())
//
// Bars carry CSS classes for their op, state and highlight status, so the
// embedded stylesheet (or a host page) controls the look.
//
// # JSON
//
// [RenderJSON] serializes the snapshot together with precomputed bar
// rectangles, labels and tooltips for API clients:
//
//	data, err := sink.RenderJSON(snap)
//
// Both renderers are pure functions of the snapshot and safe for concurrent
// use.
package sink

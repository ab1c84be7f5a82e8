package sink

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/matzehuels/flowlane/pkg/graph"
	"github.com/matzehuels/flowlane/pkg/timeline"
	"github.com/matzehuels/flowlane/pkg/viewport"
)

const (
	// DefaultPendingPanelWidth matches the timeline's default option.
	DefaultPendingPanelWidth = 150.0

	scrollbarWidth   = 25.0
	overviewHeight   = 18.0
	pendingRowHeight = 20.0
	labelPadding     = 4.0
)

const timelineCSS = `
    .node rect { fill: #d0d7de; stroke: #57606a; stroke-width: 1; rx: 3; }
    .node text { font: 11px sans-serif; fill: #24292f; dominant-baseline: middle; }
    .node.invokeFunction rect { fill: #b6e3ff; }
    .node.lifecycle rect { fill: #e7e7e7; stroke-dasharray: 4 2; }
    .node.successful rect { stroke: #1a7f37; }
    .node.failed rect { fill: #ffcecb; stroke: #cf222e; }
    .node.running rect { stroke: #bf8700; stroke-width: 2; }
    .node.highlighted rect { stroke-width: 2; }
    .node.faded { opacity: 0.3; }
    .node.selected rect { stroke: #0969da; stroke-width: 3; }
    .node.pending text { fill: #57606a; }
    .current-line { stroke: #cf222e; stroke-width: 1; }
    .vertical-scroll .track { fill: #f6f8fa; }
    .vertical-scroll .scrollbox { fill: #8c959f; rx: 4; }
    .pending-view .title { font: 11px sans-serif; fill: grey; }
    .overview .strip { fill: #f6f8fa; stroke: #d0d7de; }
    .overview .window { fill: #0969da; fill-opacity: 0.2; stroke: #0969da; }`

// SVGOption configures [RenderSVG].
type SVGOption func(*svgRenderer)

type svgRenderer struct {
	pendingWidth float64
	overview     bool
	interactive  bool
}

// WithPendingPanel sets the pending panel width. Zero hides the panel.
func WithPendingPanel(width float64) SVGOption {
	return func(r *svgRenderer) { r.pendingWidth = width }
}

// WithOverview adds the overview strip below the viewport.
func WithOverview() SVGOption { return func(r *svgRenderer) { r.overview = true } }

// WithInteraction adds data attributes that a host page can bind click
// handlers to.
func WithInteraction() SVGOption { return func(r *svgRenderer) { r.interactive = true } }

// RenderSVG draws the visible part of a timeline snapshot: lanes of bars
// clipped to the viewport, the current-time line, the vertical scrollbar and
// the pending panel. It does not modify s.
func RenderSVG(s *timeline.Snapshot, opts ...SVGOption) []byte {
	r := svgRenderer{pendingWidth: DefaultPendingPanelWidth}
	for _, opt := range opts {
		opt(&r)
	}

	g := s.Geometry
	width := g.ViewportWidth + r.pendingWidth
	height := g.ViewportHeight
	if r.overview {
		height += overviewHeight
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.1f %.1f" width="%.0f" height="%.0f">`+"\n",
		width, height, width, height)
	fmt.Fprintf(&buf, "  <style>%s\n  </style>\n", timelineCSS)
	fmt.Fprintf(&buf, `  <defs><clipPath id="viewport"><rect x="0" y="0" width="%.1f" height="%.1f"/></clipPath></defs>`+"\n",
		g.ViewportWidth, g.ViewportHeight)

	buf.WriteString(`  <g class="viewport" clip-path="url(#viewport)">` + "\n")
	r.renderSurface(&buf, s)
	r.renderScrollbar(&buf, s)
	buf.WriteString("  </g>\n")

	if r.pendingWidth > 0 {
		r.renderPending(&buf, s)
	}
	if r.overview {
		renderOverview(&buf, s)
	}

	buf.WriteString("</svg>\n")
	return buf.Bytes()
}

func (r *svgRenderer) renderSurface(buf *bytes.Buffer, s *timeline.Snapshot) {
	fmt.Fprintf(buf, `    <g class="surface" transform="translate(%.2f %.2f)">`+"\n", s.SurfaceOffsetX, s.ContentOffsetY)

	if x, ok := s.Geometry.CurrentLineX(s.Origin, s.MaxTimestamp); ok {
		fmt.Fprintf(buf, `      <line class="current-line" x1="%.2f" y1="0" x2="%.2f" y2="%.1f"/>`+"\n",
			x, x, s.ContentHeight)
	}

	for _, n := range s.Active {
		bar, ok := s.Bar(n)
		if !ok {
			continue
		}
		fmt.Fprintf(buf, `      <g class="%s" id="stage-%s"%s>`, NodeClasses(s, n), EscapeXML(n.StageID), r.dataAttrs(n))
		fmt.Fprintf(buf, "<title>%s</title>", EscapeXML(Tooltip(n)))
		fmt.Fprintf(buf, `<rect x="%.2f" y="%.2f" width="%.2f" height="%.2f"/>`, bar.X, bar.Y, bar.Width, bar.Height)
		fmt.Fprintf(buf, `<text x="%.2f" y="%.2f">%s</text>`,
			bar.X+labelPadding, bar.Y+bar.Height/2, EscapeXML(BarLabel(n, bar.DurationMs)))
		buf.WriteString("</g>\n")
	}
	buf.WriteString("    </g>\n")
}

func (r *svgRenderer) renderScrollbar(buf *bytes.Buffer, s *timeline.Snapshot) {
	if !s.Scrollable {
		return
	}
	x := s.Geometry.ViewportWidth - scrollbarWidth
	fmt.Fprintf(buf, `    <g class="vertical-scroll"><rect class="track" x="%.1f" y="0" width="%.0f" height="%.1f"/>`,
		x, scrollbarWidth, s.ViewportHeight)
	fmt.Fprintf(buf, `<rect class="scrollbox" x="%.1f" y="%.2f" width="%.0f" height="%.2f"/></g>`+"\n",
		x, s.ThumbTop, scrollbarWidth, s.ThumbHeight)
}

func (r *svgRenderer) renderPending(buf *bytes.Buffer, s *timeline.Snapshot) {
	fmt.Fprintf(buf, `  <g class="pending-view" transform="translate(%.1f 0)">`+"\n", s.Geometry.ViewportWidth)
	fmt.Fprintf(buf, `    <text class="title" x="6" y="%.1f">Pending Events:</text>`+"\n", pendingRowHeight/2+4)
	for i, n := range s.Pending {
		y := pendingRowHeight + float64(i)*s.LaneHeight
		classes := "node pending"
		if n.StageID == s.Selected {
			classes += " selected"
		}
		fmt.Fprintf(buf, `    <g class="%s" id="stage-%s"%s><title>%s</title><text x="3" y="%.1f">%s</text></g>`+"\n",
			classes, EscapeXML(n.StageID), r.dataAttrs(n), EscapeXML(Tooltip(n)),
			y+pendingRowHeight/2, EscapeXML(PendingLabel(n)))
	}
	buf.WriteString("  </g>\n")
}

func renderOverview(buf *bytes.Buffer, s *timeline.Snapshot) {
	g := s.Geometry
	ov := viewport.Overview{Width: g.ViewportWidth, Created: s.Origin, MaxTs: s.MaxTimestamp, WindowMs: g.WindowMs()}
	left, right := ov.Window(s.CursorTs)
	fmt.Fprintf(buf, `  <g class="overview" transform="translate(0 %.1f)">`, g.ViewportHeight)
	fmt.Fprintf(buf, `<rect class="strip" x="0" y="2" width="%.1f" height="%.0f"/>`, g.ViewportWidth, overviewHeight-4)
	fmt.Fprintf(buf, `<rect class="window" x="%.2f" y="2" width="%.2f" height="%.0f"/>`, left, right-left, overviewHeight-4)
	buf.WriteString("</g>\n")
}

func (r *svgRenderer) dataAttrs(n graph.Node) string {
	if !r.interactive {
		return ""
	}
	return fmt.Sprintf(` data-stage="%s" data-state="%s"`, EscapeXML(n.StageID), EscapeXML(string(n.State)))
}

// NodeClasses returns the CSS classes of a stage bar: the op class
// (invokeFunction, lifecycle for main), highlighted or faded when a
// selection exists, the state class and selected.
func NodeClasses(s *timeline.Snapshot, n graph.Node) string {
	classes := []string{"node"}
	switch n.Op {
	case graph.OpInvokeFunction:
		classes = append(classes, "invokeFunction")
	case graph.OpMain:
		classes = append(classes, "lifecycle")
	}
	if s.Selected != "" {
		if s.Highlighted(n.StageID) {
			classes = append(classes, "highlighted")
		} else {
			classes = append(classes, "faded")
		}
	}
	switch n.State {
	case graph.StateFailed, graph.StateSuccessful, graph.StateRunning:
		classes = append(classes, string(n.State))
	}
	if n.StageID == s.Selected {
		classes = append(classes, "selected")
	}
	return strings.Join(classes, " ")
}

// BarLabel is "{stage}: {label} {duration}ms"; the duration is left out
// when zero.
func BarLabel(n graph.Node, durationMs int64) string {
	label := n.StageID + ": " + n.Label()
	if durationMs != 0 {
		label += fmt.Sprintf(" %dms", durationMs)
	}
	return label
}

// PendingLabel is "{stage}:{op}".
func PendingLabel(n graph.Node) string {
	return n.StageID + ":" + string(n.Op)
}

// Tooltip is "{op}: {state}" followed by the dependency line.
func Tooltip(n graph.Node) string {
	deps := ""
	if len(n.Dependencies) > 0 {
		deps = "Dependencies: Stage " + n.DependencyList()
	}
	return string(n.Op) + ": " + string(n.State) + "\n" + deps
}

// EscapeXML escapes s for use in SVG text and attribute values.
func EscapeXML(s string) string {
	var buf bytes.Buffer
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

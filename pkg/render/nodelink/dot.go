package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/flowlane/pkg/graph"
	"github.com/matzehuels/flowlane/pkg/layout"
	"github.com/matzehuels/flowlane/pkg/render"
)

// Options configures node-link diagram rendering.
type Options struct {
	// Detailed adds state, op and run time to node labels.
	// When false, labels are "{stage}: {label}".
	Detailed bool

	// Now is the reference time for the run time of unfinished stages.
	Now int64
}

// stateColors maps stage states to fill colors.
var stateColors = map[graph.State]string{
	graph.StatePending:    "white",
	graph.StateRunning:    "lightyellow",
	graph.StateSuccessful: "honeydew",
	graph.StateFailed:     "mistyrose",
	graph.StateCancelled:  "lightgrey",
}

// ToDOT converts the dependency closure of selected to Graphviz DOT, with
// edges pointing from a dependency to its dependent. An empty selected
// exports every stage. Unknown stages and the root produce an empty graph.
//
// Hidden stages (completed values, external futures) are drawn with dashed
// grey outlines, the selected stage with a bold border.
func ToDOT(g *graph.Graph, selected string, opts Options) string {
	include := closure(g, selected)

	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	for _, n := range g.Stages() {
		if !include(n.StageID) {
			continue
		}
		attrs := fmtAttrs(n, fmtLabel(n, opts), n.StageID == selected)
		fmt.Fprintf(&buf, "  %q [%s];\n", n.StageID, strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, n := range g.Stages() {
		if !include(n.StageID) {
			continue
		}
		for _, dep := range n.Dependencies {
			if include(dep) {
				fmt.Fprintf(&buf, "  %q -> %q;\n", dep, n.StageID)
			}
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func closure(g *graph.Graph, selected string) func(string) bool {
	if selected == "" {
		return func(id string) bool {
			_, ok := g.Node(id)
			return ok
		}
	}
	set := layout.Highlight(g, selected)
	return func(id string) bool {
		_, ok := set[id]
		return ok
	}
}

func fmtLabel(n graph.Node, opts Options) string {
	label := n.StageID + ": " + n.Label()
	if !opts.Detailed {
		return label
	}
	parts := []string{label, fmt.Sprintf("%s (%s)", n.State, n.Op)}
	if d := n.Duration(opts.Now); d > 0 {
		parts = append(parts, fmt.Sprintf("%dms", d))
	}
	return strings.Join(parts, "\n")
}

func fmtAttrs(n graph.Node, label string, selected bool) []string {
	attrs := []string{fmt.Sprintf("label=%q", label)}
	switch {
	case n.Op.Hidden():
		attrs = append(attrs, "style=\"rounded,filled,dashed\"", "fillcolor=lightgrey", "fontcolor=black")
	default:
		if c, ok := stateColors[n.State]; ok {
			attrs = append(attrs, "fillcolor="+c)
		}
	}
	if selected {
		attrs = append(attrs, "penwidth=3")
	}
	return attrs
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
// Returns the SVG bytes ready for display or further conversion with
// [render.ToPDF] or [render.ToPNG].
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	tag := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(tag))
}

// RenderPNG renders a DOT graph as PNG via SVG conversion.
//
// Requires librsvg: brew install librsvg (macOS), apt install librsvg2-bin (Linux).
func RenderPNG(ctx context.Context, dot string, scale float64) ([]byte, error) {
	svg, err := RenderSVG(ctx, dot)
	if err != nil {
		return nil, err
	}
	return render.ToPNG(ctx, svg, scale)
}

// Package nodelink renders the dependency closure of a stage as a
// node-link diagram.
//
// # Usage
//
// Convert a graph to DOT, then render to SVG with the embedded Graphviz:
//
//	dot := nodelink.ToDOT(g, "7", nodelink.Options{Detailed: true})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// The closure is the same set the timeline highlights when the stage is
// selected: the stage and everything it transitively depends on. An empty
// selection exports the whole graph. The DOT source can also be saved and
// processed with external Graphviz tools.
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz] for in-process SVG
// rendering. PNG conversion requires librsvg (rsvg-convert).
package nodelink

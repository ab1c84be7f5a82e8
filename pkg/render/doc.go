// Package render holds the output side of flowlane.
//
// Subpackages:
//
//   - [sink]: timeline snapshots as SVG and JSON
//   - [nodelink]: dependency closures as Graphviz diagrams
//
// The [ToPDF] and [ToPNG] functions convert any SVG to other formats using
// the external rsvg-convert tool (from librsvg):
//
//	svg := sink.RenderSVG(snap)
//	png, err := render.ToPNG(ctx, svg, 2.0)  // 2x scale
//
// [sink]: github.com/matzehuels/flowlane/pkg/render/sink
// [nodelink]: github.com/matzehuels/flowlane/pkg/render/nodelink
package render

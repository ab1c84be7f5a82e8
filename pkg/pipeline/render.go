package pipeline

import (
	"context"
	"fmt"

	"github.com/matzehuels/flowlane/pkg/graph"
	"github.com/matzehuels/flowlane/pkg/render"
	"github.com/matzehuels/flowlane/pkg/render/nodelink"
	"github.com/matzehuels/flowlane/pkg/render/sink"
	"github.com/matzehuels/flowlane/pkg/timeline"
)

// Render generates output artifacts in the requested formats. The DOT and
// dependency formats export the closure of the snapshot's selection, or the
// whole graph when nothing is selected.
func Render(ctx context.Context, snap *timeline.Snapshot, g *graph.Graph, opts Options) (map[string][]byte, error) {
	artifacts := make(map[string][]byte, len(opts.Formats))

	var svg []byte
	timelineSVG := func() []byte {
		if svg == nil {
			svg = sink.RenderSVG(snap, svgOptions(opts)...)
		}
		return svg
	}
	dot := func() string {
		return nodelink.ToDOT(g, snap.Selected, nodelink.Options{Detailed: opts.Detailed, Now: snap.MaxTimestamp})
	}

	for _, format := range opts.Formats {
		var data []byte
		var err error

		switch format {
		case FormatSVG:
			data = timelineSVG()
		case FormatJSON:
			data, err = sink.RenderJSON(snap)
		case FormatDOT:
			data = []byte(dot())
		case FormatDeps:
			data, err = nodelink.RenderSVG(ctx, dot())
		case FormatPNG:
			data, err = render.ToPNG(ctx, timelineSVG(), DefaultPNGScale)
		case FormatPDF:
			data, err = render.ToPDF(ctx, timelineSVG())
		default:
			return nil, fmt.Errorf("unsupported format: %s", format)
		}

		if err != nil {
			return nil, fmt.Errorf("render %s: %w", format, err)
		}
		artifacts[format] = data
	}
	return artifacts, nil
}

func svgOptions(opts Options) []sink.SVGOption {
	svgOpts := []sink.SVGOption{sink.WithPendingPanel(opts.View.PendingPanelWidth), sink.WithInteraction()}
	if opts.Overview {
		svgOpts = append(svgOpts, sink.WithOverview())
	}
	return svgOpts
}

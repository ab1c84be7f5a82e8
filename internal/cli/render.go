package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/flowlane/pkg/graph"
	"github.com/matzehuels/flowlane/pkg/pipeline"
	"github.com/matzehuels/flowlane/pkg/render"
	"github.com/matzehuels/flowlane/pkg/timeline"
)

// extensions maps output formats to file suffixes.
var extensions = map[string]string{
	pipeline.FormatSVG:  ".svg",
	pipeline.FormatJSON: ".json",
	pipeline.FormatDOT:  ".dot",
	pipeline.FormatDeps: ".deps.svg",
	pipeline.FormatPNG:  ".png",
	pipeline.FormatPDF:  ".pdf",
}

// stateFlags position the view of a finished graph.
type stateFlags struct {
	selected string
	cursor   int64
	scroll   float64
}

func (f *stateFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.selected, "selected", "s", "", "stage to select; its dependencies are highlighted")
	cmd.Flags().Int64Var(&f.cursor, "cursor", 0, "left edge of the visible window (epoch ms)")
	cmd.Flags().Float64Var(&f.scroll, "scroll", 0, "vertical scroll ratio in [0, 1]")
}

// state returns nil when no flag was set, so the pipeline starts from the
// graph's initial state.
func (f *stateFlags) state(cmd *cobra.Command, g *graph.Graph, opts timeline.Options) (*timeline.State, error) {
	fs := cmd.Flags()
	if !fs.Changed("selected") && !fs.Changed("cursor") && !fs.Changed("scroll") {
		return nil, nil
	}
	st := timeline.InitialState(g, opts)
	if f.selected != "" {
		if _, ok := g.Node(f.selected); !ok {
			return nil, fmt.Errorf("stage %q not found in graph %s", f.selected, g.ID)
		}
		st = st.Select(f.selected)
	}
	if fs.Changed("cursor") {
		st = st.ScrollX(f.cursor)
	}
	if fs.Changed("scroll") {
		st = st.ScrollY(f.scroll)
	}
	return &st, nil
}

// renderCommand creates the render command.
func (c *CLI) renderCommand() *cobra.Command {
	var (
		formatsStr string
		output     string
		noCache    bool
		view       viewFlags
		state      stateFlags
	)
	opts := pipeline.Options{}

	cmd := &cobra.Command{
		Use:   "render [graph.json]",
		Short: "Render a task graph timeline",
		Long: `Render a task graph timeline.

Formats:
  svg   the lane timeline with scrollbar and pending panel (default)
  json  the computed snapshot with bar geometry
  dot   the dependency graph in Graphviz DOT
  deps  the dependency graph drawn by Graphviz
  png   the timeline rasterized (needs rsvg-convert)
  pdf   the timeline as PDF (needs rsvg-convert)

Use "-" to read the graph from stdin. Finished graphs are cached.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Formats = parseFormats(formatsStr)
			if err := pipeline.ValidateFormats(opts.Formats); err != nil {
				return err
			}
			v, err := c.viewOptions(cmd, &view)
			if err != nil {
				return err
			}
			opts.View = v
			return c.runRender(cmd, args[0], opts, &state, output, noCache)
		},
	}

	cmd.Flags().StringVarP(&formatsStr, "format", "f", "", "output format(s): svg (default), json, dot, deps, png, pdf (comma-separated)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&opts.Refresh, "refresh", false, "re-render even when cached")
	cmd.Flags().BoolVar(&opts.Overview, "overview", false, "add the overview strip below the timeline")
	cmd.Flags().BoolVar(&opts.Detailed, "detailed", false, "label dependency graph nodes with op and state")
	view.register(cmd)
	state.register(cmd)

	return cmd
}

func (c *CLI) runRender(cmd *cobra.Command, input string, opts pipeline.Options, sf *stateFlags, output string, noCache bool) error {
	ctx := cmd.Context()
	g, err := loadGraph(ctx, cmd, input)
	if err != nil {
		return err
	}
	if opts.State, err = sf.state(cmd, g, opts.View); err != nil {
		return err
	}
	if needsConverter(opts.Formats) && !render.Available() {
		return fmt.Errorf("png and pdf output need rsvg-convert on PATH")
	}

	runner, err := c.newRunner(ctx, noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	prog := newProgress(c.Logger)
	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Rendering %s...", g.ID))
	spinner.Start()

	res, err := runner.Execute(ctx, g, opts)
	if err != nil {
		spinner.StopWithError("Render failed")
		return err
	}
	spinner.Stop()
	if ctx.Err() != nil {
		return ctx.Err()
	}

	paths, err := writeArtifacts(res.Artifacts, opts.Formats, input, output)
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Rendered %d format(s)", len(paths)))

	printSuccess("Rendered %s", StyleHighlight.Render(g.ID))
	for _, p := range paths {
		printFile(p)
	}
	printStats(res.Stats, res.CacheInfo.RenderHit)
	return nil
}

func needsConverter(formats []string) bool {
	for _, f := range formats {
		if f == pipeline.FormatPNG || f == pipeline.FormatPDF {
			return true
		}
	}
	return false
}

// writeArtifacts writes one file per format and returns the paths. A
// single format goes to output verbatim; otherwise output (or the input
// path) is the base name that gets the format's extension.
func writeArtifacts(artifacts map[string][]byte, formats []string, input, output string) ([]string, error) {
	var paths []string
	for _, format := range formats {
		path := artifactPath(format, len(formats), input, output)
		if err := os.WriteFile(path, artifacts[format], 0o644); err != nil {
			return paths, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func artifactPath(format string, count int, input, output string) string {
	if output != "" && count == 1 {
		return output
	}
	return basePath(output, input) + extensions[format]
}

// basePath strips the extension from output, falling back to the input
// file name (or "graph" for stdin).
func basePath(output, input string) string {
	if output != "" {
		return strings.TrimSuffix(output, filepath.Ext(output))
	}
	if input == "-" || input == "" {
		return "graph"
	}
	return strings.TrimSuffix(input, filepath.Ext(input))
}

// loadGraph reads and validates the input graph; "-" reads the command's
// stdin.
func loadGraph(ctx context.Context, cmd *cobra.Command, input string) (*graph.Graph, error) {
	return pipeline.Load(ctx, input, cmd.InOrStdin())
}

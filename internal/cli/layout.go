package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/flowlane/pkg/pipeline"
)

// layoutCommand creates the layout command for computing timeline snapshots.
func (c *CLI) layoutCommand() *cobra.Command {
	var (
		output  string
		noCache bool
		view    viewFlags
		state   stateFlags
	)

	cmd := &cobra.Command{
		Use:   "layout [graph.json]",
		Short: "Compute the lane layout of a task graph",
		Long: `Compute the lane layout of a task graph.

The layout command assigns every stage of the graph to a lane and writes the
resulting snapshot as JSON: lanes, ranks, pending stages, highlight set,
scroll metrics and bar rectangles. It is the same document as
'render -f json' and what the viewer API returns.

Use "-" as input to read stdin and "-o -" to write stdout.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := c.viewOptions(cmd, &view)
			if err != nil {
				return err
			}
			opts := pipeline.Options{View: v, Formats: []string{pipeline.FormatJSON}}
			return c.runLayout(cmd, args[0], opts, &state, output, noCache)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <input>.timeline.json)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	view.register(cmd)
	state.register(cmd)

	return cmd
}

func (c *CLI) runLayout(cmd *cobra.Command, input string, opts pipeline.Options, sf *stateFlags, output string, noCache bool) error {
	ctx := cmd.Context()
	g, err := loadGraph(ctx, cmd, input)
	if err != nil {
		return err
	}
	if opts.State, err = sf.state(cmd, g, opts.View); err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	res, err := runner.Execute(ctx, g, opts)
	if err != nil {
		return fmt.Errorf("compute layout: %w", err)
	}
	data := res.Artifacts[pipeline.FormatJSON]

	if output == "-" {
		_, err := cmd.OutOrStdout().Write(append(data, '\n'))
		return err
	}
	if output == "" {
		output = basePath("", input) + ".timeline.json"
	}
	paths, err := writeArtifacts(res.Artifacts, opts.Formats, input, output)
	if err != nil {
		return err
	}

	printSuccess("Layout complete")
	printFile(paths[0])
	printStats(res.Stats, res.CacheInfo.RenderHit)
	printNewline()
	printNextStep("Render", appName+" render "+input)
	return nil
}

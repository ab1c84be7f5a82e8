package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/flowlane/pkg/graph"
	"github.com/matzehuels/flowlane/pkg/layout"
	"github.com/matzehuels/flowlane/pkg/render/nodelink"
)

// depsCommand creates the deps command, which explains a stage's highlight.
func (c *CLI) depsCommand() *cobra.Command {
	var (
		output   string
		detailed bool
	)

	cmd := &cobra.Command{
		Use:   "deps [graph.json] [stage]",
		Short: "List the transitive dependencies of a stage",
		Long: `List the transitive dependencies of a stage.

These are the stages the timeline highlights when the stage is selected.
Without a stage every stage of the graph is listed.

With -o the dependency graph is exported as well: a .svg file is drawn by
Graphviz, any other name receives DOT source.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			stage := ""
			if len(args) == 2 {
				stage = args[1]
			}
			return c.runDeps(cmd, args[0], stage, output, detailed)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "export the dependency graph (.dot or .svg)")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "label exported nodes with op and state")

	return cmd
}

func (c *CLI) runDeps(cmd *cobra.Command, input, stage, output string, detailed bool) error {
	ctx := cmd.Context()
	g, err := loadGraph(ctx, cmd, input)
	if err != nil {
		return err
	}
	if stage != "" {
		if n, ok := g.Node(stage); !ok || n.State == graph.StateGraph {
			return fmt.Errorf("stage %q not found in graph %s", stage, g.ID)
		}
	}

	now := g.MaxTimestamp(time.Now().UnixMilli())
	rows := closureRows(g, stage, now)
	if stage != "" {
		fmt.Fprintln(cmd.OutOrStdout(), StyleTitle.Render(fmt.Sprintf("Stage %s depends on %d stage(s)", stage, len(rows)-1)))
	}
	fmt.Fprintln(cmd.OutOrStdout(), depsTable(rows).Render())

	if output == "" {
		return nil
	}
	dot := nodelink.ToDOT(g, stage, nodelink.Options{Detailed: detailed, Now: now})
	data := []byte(dot)
	if strings.EqualFold(filepath.Ext(output), ".svg") {
		spinner := newSpinnerWithContext(ctx, "Drawing dependency graph...")
		spinner.Start()
		if data, err = nodelink.RenderSVG(ctx, dot); err != nil {
			spinner.StopWithError("Graphviz failed")
			return fmt.Errorf("draw dependency graph: %w", err)
		}
		spinner.StopWithSuccess("Dependency graph drawn")
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}
	printFile(output)
	return nil
}

// closureRows lists the stages in the highlight of stage in graph order,
// or every stage when stage is empty.
func closureRows(g *graph.Graph, stage string, now int64) [][]string {
	set := layout.Highlight(g, stage)
	var rows [][]string
	for _, n := range g.Stages() {
		if _, ok := set[n.StageID]; stage != "" && !ok {
			continue
		}
		dur := "—"
		if n.Started != 0 {
			dur = fmt.Sprintf("%dms", n.Duration(now))
		}
		deps := strings.Join(n.Dependencies, ", ")
		if deps == "" {
			deps = "—"
		}
		rows = append(rows, []string{n.StageID, string(n.Op), string(n.State), dur, deps})
	}
	return rows
}

func depsTable(rows [][]string) *table.Table {
	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Stage", "Op", "State", "Duration", "Depends on").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			base := lipgloss.NewStyle().Padding(0, 1)
			if row == -1 {
				return headerStyle.Padding(0, 1)
			}
			if col == 2 && row >= 0 && row < len(rows) {
				return stateStyle(graph.State(rows[row][2])).Padding(0, 1)
			}
			return base
		})
}

package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/flowlane/pkg/graph"
	"github.com/matzehuels/flowlane/pkg/refresh"
	"github.com/matzehuels/flowlane/pkg/session"
	"github.com/matzehuels/flowlane/pkg/timeline"
)

// watchOpts holds the flags of the watch command.
type watchOpts struct {
	replay  float64 // replay speed factor; 0 polls the file
	resume  bool    // restore and save the view state
	logFile string  // log destination while the TUI owns the terminal
	view    viewFlags
}

// watchCommand creates the watch command, the interactive live viewer.
func (c *CLI) watchCommand() *cobra.Command {
	var opts watchOpts

	cmd := &cobra.Command{
		Use:   "watch [graph.json]",
		Short: "Follow a task graph in the terminal",
		Long: `Follow a task graph in the terminal.

The graph file is polled while the graph is live; every change is laid out
again and redrawn. Refreshing stops once the graph has finished. A finished
graph can be played back in virtual time with --replay.

Keys: ↑/↓ move the focus between stages, enter selects (highlighting the
stage's dependencies), esc clears, ←/→ scroll in time, pgup/pgdn scroll the
lanes, a follows the live edge again, q quits. The scrollbar in the right
column can be dragged with the mouse.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runWatch(cmd, args[0], &opts)
		},
	}

	cmd.Flags().Float64Var(&opts.replay, "replay", 0, "replay a finished graph at this speed factor (1 = real time)")
	cmd.Flags().BoolVar(&opts.resume, "resume", false, "restore the last view of this graph and save it on exit")
	cmd.Flags().StringVar(&opts.logFile, "log-file", "", "write logs to this file while watching")
	opts.view.register(cmd)

	return cmd
}

func (c *CLI) runWatch(cmd *cobra.Command, input string, opts *watchOpts) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	view, err := c.viewOptions(cmd, &opts.view)
	if err != nil {
		return err
	}
	src, err := openSource(ctx, cmd, input, opts.replay)
	if err != nil {
		return err
	}
	g := src.Snapshot()

	logger, closeLog, err := c.watchLogger(opts.logFile)
	if err != nil {
		return err
	}
	defer closeLog()
	installHooks(logger)

	var store *session.FileStore
	sopts := []timeline.SessionOption{timeline.WithLogger(logger)}
	if opts.resume {
		if store, err = session.NewFileStore(""); err != nil {
			return err
		}
		if saved, err := store.Load(ctx, g.ID); err != nil {
			logger.Warn("could not load saved view", "graph", g.ID, "err", err)
		} else if saved != nil {
			sopts = append(sopts, timeline.WithInitialState(saved.State))
		}
	}

	ts, err := timeline.NewSession(view, graph.ClockOf(src), sopts...)
	if err != nil {
		return err
	}
	defer ts.Close()
	if err := ts.Refresh(ctx, g); err != nil {
		return fmt.Errorf("layout graph %s: %w", g.ID, err)
	}

	loop := refresh.New(refresh.WithLogger(logger))
	if g.IsLive() {
		if err := loop.Start(ctx, src, view.RefreshInterval, ts.Refresh); err != nil {
			return err
		}
		defer loop.Stop()
	} else {
		loop = nil
	}

	p := tea.NewProgram(newWatchModel(ctx, ts, loop),
		tea.WithContext(ctx),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithInput(cmd.InOrStdin()),
		tea.WithOutput(cmd.OutOrStdout()),
	)
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("watch: %w", err)
	}

	if store != nil {
		if err := store.Save(context.WithoutCancel(ctx), ts.Graph().ID, ts.State()); err != nil {
			printWarning("Could not save view: %v", err)
		} else {
			printDetail("View saved to %s", store.Path())
		}
	}
	if loop != nil {
		printInfo("Refresh loop %s after %d cycle(s)", loop.State(), loop.Cycles())
	}
	return nil
}

// openSource polls input, or replays it in virtual time when speed > 0.
func openSource(ctx context.Context, cmd *cobra.Command, input string, speed float64) (graph.Source, error) {
	if speed <= 0 {
		if input == "-" {
			return nil, fmt.Errorf("watch needs a file to poll; use --replay to play back stdin")
		}
		return graph.NewFileSource(input)
	}
	g, err := loadGraph(ctx, cmd, input)
	if err != nil {
		return nil, err
	}
	return graph.NewReplay(g, speed)
}

// watchLogger returns a file logger, or a discarding one: the TUI owns the
// terminal.
func (c *CLI) watchLogger(path string) (*log.Logger, func(), error) {
	if path == "" {
		return log.New(io.Discard), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return newLogger(f, c.Logger.GetLevel()), func() { f.Close() }, nil
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/flowlane/internal/server"
	"github.com/matzehuels/flowlane/pkg/graph"
	"github.com/matzehuels/flowlane/pkg/session"
)

const defaultAddr = "127.0.0.1:8080"

// serveCommand creates the serve command for the HTTP viewer API.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr       string
		replay     float64
		noCache    bool
		sessionTTL = session.DefaultTTL
		view       viewFlags
	)

	cmd := &cobra.Command{
		Use:   "serve [graph.json]",
		Short: "Serve the viewer API for a task graph",
		Long: `Serve the viewer API for a task graph.

Clients open a viewer session, then select stages and scroll; every read
lays the current graph out again, so a live graph file is followed as it
changes. Rendered views of finished graphs are served from the cache.

  GET    /healthz
  GET    /graph
  GET    /render?format=svg&selected=<stage>
  POST   /sessions
  GET    /sessions/{id}/snapshot
  GET    /sessions/{id}/timeline.svg
  POST   /sessions/{id}/select      {"stage_id": "3"}
  POST   /sessions/{id}/scroll      {"cursor_ts": 1700000000000, "ratio": 0.5}
  DELETE /sessions/{id}`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			v, err := c.viewOptions(cmd, &view)
			if err != nil {
				return err
			}
			src, err := openSource(ctx, cmd, args[0], replay)
			if err != nil {
				return err
			}
			runner, err := c.newRunner(ctx, noCache)
			if err != nil {
				return fmt.Errorf("initialize runner: %w", err)
			}

			srv, err := server.New(src,
				server.WithLogger(c.Logger),
				server.WithRunner(runner),
				server.WithViewOptions(v),
				server.WithSessionTTL(sessionTTL),
			)
			if err != nil {
				runner.Close()
				return err
			}
			defer srv.Close()

			printSuccess("Serving %s", StyleHighlight.Render(describeSource(src)))
			printKeyValue("Address", StyleLink.Render("http://"+addr))
			printKeyValue("Sessions", sessionTTL.String()+" idle timeout")
			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", defaultAddr, "listen address")
	cmd.Flags().Float64Var(&replay, "replay", 0, "replay a finished graph at this speed factor (1 = real time)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	cmd.Flags().DurationVar(&sessionTTL, "session-ttl", sessionTTL, "idle lifetime of viewer sessions")
	view.register(cmd)

	return cmd
}

func describeSource(src graph.Source) string {
	switch s := src.(type) {
	case *graph.FileSource:
		return s.Path()
	case *graph.Replay:
		return "replay of " + s.Snapshot().ID
	}
	return "graph"
}

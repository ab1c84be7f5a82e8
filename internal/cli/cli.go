// Package cli implements the flowlane command-line interface.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/flowlane/pkg/buildinfo"
	"github.com/matzehuels/flowlane/pkg/cache"
	"github.com/matzehuels/flowlane/pkg/pipeline"
	"github.com/matzehuels/flowlane/pkg/timeline"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "flowlane"

	// configFile is the option file looked up in the config directory when
	// --config is not given.
	configFile = "config.toml"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	cacheURI   string
	cacheScope string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Flowlane lays out task graphs as lane timelines",
		Long: `Flowlane renders the stages of a task graph as bars on a horizontal
timeline, packed into lanes so that dependent stages stack below the work
they wait for. It renders finished graphs to files, follows live graphs in
the terminal and serves an HTTP viewer API.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			installHooks(c.Logger)
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "view option file (default: ~/.config/flowlane/config.toml)")
	root.PersistentFlags().StringVar(&c.cacheURI, "cache", "", "cache location: directory, file://, redis://, mongodb:// or none://")
	root.PersistentFlags().StringVar(&c.cacheScope, "cache-scope", "", "key prefix for deployments sharing one cache backend")

	root.AddCommand(c.layoutCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.depsCommand())
	root.AddCommand(c.watchCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(ctx context.Context, noCache bool) (*pipeline.Runner, error) {
	ch, err := c.openCache(ctx, noCache)
	if err != nil {
		return nil, err
	}
	var keyer cache.Keyer
	if c.cacheScope != "" {
		keyer = cache.NewScopedKeyer(nil, c.cacheScope+":")
	}
	return pipeline.NewRunner(cache.Instrumented{Cache: ch}, keyer, c.Logger), nil
}

// openCache opens the --cache backend, or the file cache in the user cache
// directory. Without a usable home directory caching is disabled.
func (c *CLI) openCache(ctx context.Context, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	uri := c.cacheURI
	if uri == "" {
		dir, err := cacheDir()
		if err != nil {
			c.Logger.Debug("no cache directory, caching disabled", "err", err)
			return cache.NewNullCache(), nil
		}
		uri = dir
	}
	return cache.Open(ctx, uri)
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/flowlane/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// configDir returns the config directory (~/.config/flowlane/).
func configDir() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName), nil
}

// =============================================================================
// Options Helpers
// =============================================================================

// viewFlags are the view options every command accepts on the command line.
// They override the option file.
type viewFlags struct {
	pxPerMs        float64
	laneHeight     float64
	width          float64
	viewportHeight float64
	pendingWidth   float64
	surfaceWidth   float64
}

func (f *viewFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.Float64Var(&f.pxPerMs, "px-per-ms", timeline.DefaultPxPerMs, "horizontal scale in pixels per millisecond")
	fs.Float64Var(&f.laneHeight, "lane-height", timeline.DefaultLaneHeight, "height of one lane")
	fs.Float64Var(&f.width, "width", timeline.DefaultWidth, "total width including the pending panel")
	fs.Float64Var(&f.viewportHeight, "viewport-height", timeline.DefaultViewportHeight, "visible timeline height")
	fs.Float64Var(&f.pendingWidth, "pending-width", timeline.DefaultPendingPanelWidth, "width of the pending panel")
	fs.Float64Var(&f.surfaceWidth, "surface-width", timeline.DefaultSurfaceWidth, "width of the scrollable surface")
}

// viewOptions loads the option file and applies the flags the user set.
func (c *CLI) viewOptions(cmd *cobra.Command, f *viewFlags) (timeline.Options, error) {
	opts, err := c.loadConfig()
	if err != nil {
		return opts, err
	}
	fs := cmd.Flags()
	set := func(name string, dst *float64, v float64) {
		if fs.Changed(name) {
			*dst = v
		}
	}
	set("px-per-ms", &opts.PxPerMs, f.pxPerMs)
	set("lane-height", &opts.LaneHeight, f.laneHeight)
	set("width", &opts.Width, f.width)
	set("viewport-height", &opts.ViewportHeight, f.viewportHeight)
	set("pending-width", &opts.PendingPanelWidth, f.pendingWidth)
	set("surface-width", &opts.SurfaceWidth, f.surfaceWidth)

	opts.SetDefaults()
	return opts, opts.Validate()
}

// loadConfig reads --config, or the default option file when it exists.
func (c *CLI) loadConfig() (timeline.Options, error) {
	path := c.configPath
	if path == "" {
		dir, err := configDir()
		if err != nil {
			return timeline.DefaultOptions(), nil
		}
		path = filepath.Join(dir, configFile)
		if _, err := os.Stat(path); err != nil {
			return timeline.DefaultOptions(), nil
		}
	}
	c.Logger.Debug("loading view options", "path", path)
	return timeline.LoadOptions(path)
}

// parseFormats parses a comma-separated format string into a slice.
func parseFormats(s string) []string {
	if s == "" {
		return []string{pipeline.FormatSVG}
	}
	formats := strings.Split(s, ",")
	for i := range formats {
		formats[i] = strings.TrimSpace(formats[i])
	}
	return formats
}

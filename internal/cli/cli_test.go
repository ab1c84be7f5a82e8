package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/flowlane/pkg/cache"
	"github.com/matzehuels/flowlane/pkg/graph"
	"github.com/matzehuels/flowlane/pkg/pipeline"
	"github.com/matzehuels/flowlane/pkg/timeline"
)

// testGraph is a finished run: 0 fans out to 1 and 3, 2 waits for 1.
func testGraph() *graph.Graph {
	return &graph.Graph{
		ID:       "run-1",
		Created:  1000,
		Finished: 1900,
		Nodes: []graph.Node{
			{StageID: "run-1", Op: graph.OpGraph, State: graph.StateGraph, Created: 1000},
			{StageID: "0", Op: graph.OpMain, State: graph.StateSuccessful, Created: 1000, Started: 1000, Completed: 1900},
			{StageID: "1", Op: graph.OpInvokeFunction, State: graph.StateSuccessful, Created: 1050, Started: 1050, Completed: 1400, Dependencies: []string{"0"}},
			{StageID: "2", Op: "thenApply", State: graph.StateSuccessful, Created: 1450, Started: 1450, Completed: 1500, Dependencies: []string{"1"}},
			{StageID: "3", Op: graph.OpInvokeFunction, State: graph.StateFailed, Created: 1100, Started: 1100, Completed: 1300, Dependencies: []string{"0"}},
		},
	}
}

func writeTestGraph(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.json")
	if err := graph.WriteGraphFile(testGraph(), path); err != nil {
		t.Fatalf("write graph: %v", err)
	}
	return path
}

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	var logs, out bytes.Buffer
	c := New(&logs, log.InfoLevel)
	root := c.RootCommand()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&logs)
	root.SetIn(strings.NewReader(""))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestParseFormats(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty defaults to svg", "", []string{"svg"}},
		{"single format", "json", []string{"json"}},
		{"multiple formats", "svg,dot,png", []string{"svg", "dot", "png"}},
		{"spaces trimmed", "svg, json", []string{"svg", "json"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseFormats(tt.input)
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("parseFormats(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestArtifactPath(t *testing.T) {
	tests := []struct {
		name   string
		format string
		count  int
		input  string
		output string
		want   string
	}{
		{"single format uses output", "svg", 1, "run.json", "out.png", "out.png"},
		{"multiple formats use output base", "json", 2, "run.json", "out/view.svg", "out/view.json"},
		{"no output uses input base", "svg", 1, "runs/run.json", "", "runs/run.svg"},
		{"stdin input", "dot", 1, "-", "", "graph.dot"},
		{"deps extension", "deps", 2, "run.json", "", "run.deps.svg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := artifactPath(tt.format, tt.count, tt.input, tt.output); got != tt.want {
				t.Errorf("artifactPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNeedsConverter(t *testing.T) {
	if needsConverter([]string{"svg", "json"}) {
		t.Error("svg and json need no converter")
	}
	if !needsConverter([]string{"svg", "pdf"}) {
		t.Error("pdf needs a converter")
	}
}

func TestViewOptions(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "view.toml")
	if err := os.WriteFile(cfg, []byte("px_per_ms = 0.5\nlane_height = 40\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := New(&bytes.Buffer{}, log.InfoLevel)
	c.configPath = cfg

	var f viewFlags
	cmd := &cobra.Command{Use: "test"}
	f.register(cmd)
	if err := cmd.ParseFlags([]string{"--lane-height", "32"}); err != nil {
		t.Fatal(err)
	}

	opts, err := c.viewOptions(cmd, &f)
	if err != nil {
		t.Fatalf("viewOptions: %v", err)
	}
	if opts.PxPerMs != 0.5 {
		t.Errorf("PxPerMs = %v, want 0.5 from the option file", opts.PxPerMs)
	}
	if opts.LaneHeight != 32 {
		t.Errorf("LaneHeight = %v, want the flag value 32", opts.LaneHeight)
	}
	if opts.Width != timeline.DefaultWidth {
		t.Errorf("Width = %v, want default %v", opts.Width, timeline.DefaultWidth)
	}
}

func TestViewOptionsMissingConfig(t *testing.T) {
	c := New(&bytes.Buffer{}, log.InfoLevel)
	c.configPath = filepath.Join(t.TempDir(), "missing.toml")

	var f viewFlags
	cmd := &cobra.Command{Use: "test"}
	f.register(cmd)
	if _, err := c.viewOptions(cmd, &f); err == nil {
		t.Error("an explicit --config that does not exist should fail")
	}
}

func TestStateFlags(t *testing.T) {
	g := testGraph()
	opts := timeline.DefaultOptions()

	tests := []struct {
		name     string
		args     []string
		wantNil  bool
		wantErr  bool
		selected string
		cursor   int64
	}{
		{name: "no flags", wantNil: true},
		{name: "select", args: []string{"-s", "2"}, selected: "2", cursor: 1000},
		{name: "cursor", args: []string{"--cursor", "1400"}, cursor: 1400},
		{name: "unknown stage", args: []string{"--selected", "9"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f stateFlags
			cmd := &cobra.Command{Use: "test"}
			f.register(cmd)
			if err := cmd.ParseFlags(tt.args); err != nil {
				t.Fatal(err)
			}
			st, err := f.state(cmd, g, opts)
			if (err != nil) != tt.wantErr {
				t.Fatalf("state() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if (st == nil) != tt.wantNil {
				t.Fatalf("state() = %v, wantNil %v", st, tt.wantNil)
			}
			if st == nil {
				return
			}
			if st.Selected != tt.selected || st.CursorTs != tt.cursor {
				t.Errorf("state() = %+v, want selected %q cursor %d", st, tt.selected, tt.cursor)
			}
			if st.AutoScroll {
				t.Error("positioned state of a finished graph should not auto-scroll")
			}
		})
	}
}

func TestClosureRows(t *testing.T) {
	g := testGraph()

	rows := closureRows(g, "2", g.Finished)
	var ids []string
	for _, r := range rows {
		ids = append(ids, r[0])
	}
	if got := strings.Join(ids, ","); got != "0,1,2" {
		t.Errorf("closure of 2 = %s, want 0,1,2", got)
	}
	if rows[2][3] != "50ms" {
		t.Errorf("duration of 2 = %s, want 50ms", rows[2][3])
	}

	if all := closureRows(g, "", g.Finished); len(all) != 4 {
		t.Errorf("no stage should list all 4 stages, got %d", len(all))
	}
}

// =============================================================================
// Commands
// =============================================================================

func TestRenderCommand(t *testing.T) {
	input := writeTestGraph(t)
	base := filepath.Join(t.TempDir(), "view")

	if _, err := execute(t, "render", input, "--no-cache", "-f", "svg,json,dot", "-o", base, "-s", "2"); err != nil {
		t.Fatalf("render: %v", err)
	}

	svg, err := os.ReadFile(base + ".svg")
	if err != nil {
		t.Fatalf("read svg: %v", err)
	}
	if !bytes.Contains(svg, []byte(`id="stage-2"`)) {
		t.Error("svg should contain a bar for stage 2")
	}

	var doc struct {
		GraphID  string `json:"graph_id"`
		Selected string `json:"selected"`
	}
	data, err := os.ReadFile(base + ".json")
	if err != nil {
		t.Fatalf("read json: %v", err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if doc.GraphID != "run-1" || doc.Selected != "2" {
		t.Errorf("snapshot = %+v, want run-1 with 2 selected", doc)
	}

	dot, err := os.ReadFile(base + ".dot")
	if err != nil {
		t.Fatalf("read dot: %v", err)
	}
	if !bytes.HasPrefix(bytes.TrimSpace(dot), []byte("digraph")) {
		t.Errorf("dot output should start with digraph, got %.40q", dot)
	}
}

func TestRenderCommandErrors(t *testing.T) {
	input := writeTestGraph(t)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown format", []string{"render", input, "-f", "gif"}},
		{"missing file", []string{"render", filepath.Join(t.TempDir(), "nope.json")}},
		{"unknown stage", []string{"render", input, "--no-cache", "-s", "9"}},
		{"bad view option", []string{"render", input, "--lane-height", "-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := execute(t, tt.args...); err == nil {
				t.Errorf("%v should fail", tt.args)
			}
		})
	}
}

func TestLayoutCommandStdout(t *testing.T) {
	input := writeTestGraph(t)

	out, err := execute(t, "layout", input, "-o", "-")
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	var doc struct {
		GraphID   string     `json:"graph_id"`
		Lanes     [][]string `json:"lanes"`
		LaneCount int        `json:"lane_count"`
	}
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if doc.GraphID != "run-1" || doc.LaneCount == 0 || len(doc.Lanes) != doc.LaneCount {
		t.Errorf("layout = %+v", doc)
	}
}

func TestLayoutCommandCached(t *testing.T) {
	input := writeTestGraph(t)
	cacheDir := t.TempDir()
	out := filepath.Join(t.TempDir(), "run.timeline.json")

	for i := 0; i < 2; i++ {
		if _, err := execute(t, "--cache", cacheDir, "layout", input, "-o", out); err != nil {
			t.Fatalf("layout #%d: %v", i, err)
		}
	}
	entries, err := os.ReadDir(cacheDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) == 0 {
		t.Error("layout of a finished graph should populate the cache")
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("layout output missing: %v", err)
	}
}

func TestDepsCommand(t *testing.T) {
	input := writeTestGraph(t)
	dot := filepath.Join(t.TempDir(), "deps.dot")

	out, err := execute(t, "deps", input, "2", "-o", dot)
	if err != nil {
		t.Fatalf("deps: %v", err)
	}
	if !strings.Contains(out, "Stage 2 depends on 2 stage(s)") {
		t.Errorf("deps output missing title:\n%s", out)
	}
	if strings.Contains(out, "failed") {
		t.Errorf("stage 3 is not a dependency of 2:\n%s", out)
	}
	data, err := os.ReadFile(dot)
	if err != nil {
		t.Fatalf("read dot: %v", err)
	}
	if !strings.Contains(string(data), "digraph") {
		t.Errorf("exported file is not DOT: %.40q", data)
	}

	if _, err := execute(t, "deps", input, "run-1"); err == nil {
		t.Error("the graph root is not a stage")
	}
}

func TestCachePathCommand(t *testing.T) {
	out, err := execute(t, "cache", "path")
	if err != nil {
		t.Fatalf("cache path: %v", err)
	}
	if !strings.HasSuffix(strings.TrimSpace(out), appName) {
		t.Errorf("cache path = %q, want a directory ending in %s", out, appName)
	}

	out, err = execute(t, "--cache", "redis://localhost:6379/0", "cache", "path")
	if err != nil {
		t.Fatalf("cache path: %v", err)
	}
	if strings.TrimSpace(out) != "redis://localhost:6379/0" {
		t.Errorf("cache path = %q, want the --cache URI", out)
	}
}

func TestCacheClearCommand(t *testing.T) {
	input := writeTestGraph(t)
	dir := t.TempDir()
	out := filepath.Join(t.TempDir(), "out.json")

	if _, err := execute(t, "--cache", dir, "layout", input, "-o", out); err != nil {
		t.Fatalf("layout: %v", err)
	}
	if _, err := execute(t, "--cache", dir, "cache", "clear"); err != nil {
		t.Fatalf("cache clear: %v", err)
	}
	var files int
	filepath.WalkDir(dir, func(_ string, d os.DirEntry, _ error) error {
		if d != nil && !d.IsDir() {
			files++
		}
		return nil
	})
	if files != 0 {
		t.Errorf("%d cache files left after clear", files)
	}

	if _, err := execute(t, "--cache", "none://", "cache", "clear"); err != nil {
		t.Errorf("clearing a disabled cache should succeed: %v", err)
	}
}

func TestCompletionCommand(t *testing.T) {
	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		t.Run(shell, func(t *testing.T) {
			out, err := execute(t, "completion", shell)
			if err != nil {
				t.Fatalf("completion %s: %v", shell, err)
			}
			if !strings.Contains(out, appName) {
				t.Errorf("completion script should mention %s", appName)
			}
		})
	}
}

func TestVersionFlag(t *testing.T) {
	out, err := execute(t, "--version")
	if err != nil {
		t.Fatalf("--version: %v", err)
	}
	if !strings.Contains(out, appName+" version") {
		t.Errorf("version output = %q", out)
	}
}

func TestWatchNeedsFileWithoutReplay(t *testing.T) {
	if _, err := execute(t, "watch", "-"); err == nil {
		t.Error("watch should refuse to poll stdin")
	}
}

func TestFormatsMatchPipeline(t *testing.T) {
	for _, f := range []string{pipeline.FormatSVG, pipeline.FormatJSON, pipeline.FormatDOT, pipeline.FormatDeps, pipeline.FormatPNG, pipeline.FormatPDF} {
		if _, ok := extensions[f]; !ok {
			t.Errorf("no file extension for format %q", f)
		}
	}
}

func TestNewRunnerCacheScope(t *testing.T) {
	c := New(&bytes.Buffer{}, log.InfoLevel)

	r, err := c.newRunner(context.Background(), true)
	if err != nil {
		t.Fatal(err)
	}
	plain := r.Keyer.SnapshotKey("abc", cache.ViewKeyOpts{})
	r.Close()

	c.cacheScope = "staging"
	r, err = c.newRunner(context.Background(), true)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if got := r.Keyer.SnapshotKey("abc", cache.ViewKeyOpts{}); got != "staging:"+plain {
		t.Errorf("scoped key = %q, want %q", got, "staging:"+plain)
	}
}

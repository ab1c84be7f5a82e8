package graph

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func sample() *Graph {
	return &Graph{
		ID:      "g1",
		Created: 1000,
		Nodes: []Node{
			{StageID: "root", Op: OpGraph, State: StateGraph, Created: 1000},
			{StageID: "0", Op: OpMain, State: StateSuccessful, Created: 1000, Started: 1000, Completed: 1100, FunctionID: "app/main"},
			{StageID: "1", Op: OpCompletedValue, State: StateSuccessful, Created: 1010, Started: 1010, Completed: 1010, Dependencies: []string{"0"}},
			{StageID: "2", Op: OpInvokeFunction, State: StateRunning, Created: 1020, Started: 1030, Dependencies: []string{"1"}, FunctionID: "app/fn"},
			{StageID: "3", Op: "thenApply", State: StatePending, Created: 1040, Dependencies: []string{"2", "0"}},
		},
	}
}

func TestStages(t *testing.T) {
	tests := []struct {
		name string
		g    *Graph
		want int
	}{
		{"empty", &Graph{}, 0},
		{"root only", &Graph{Nodes: []Node{{StageID: "r"}}}, 0},
		{"sample", sample(), 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(tt.g.Stages()); got != tt.want {
				t.Errorf("len(Stages()) = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFindDepIDs(t *testing.T) {
	g := sample()
	tests := []struct {
		id   string
		want []string
	}{
		{"3", []string{"0", "1", "2"}},
		{"2", []string{"0", "1"}},
		{"0", nil},
		{"missing", nil},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got := g.FindDepIDs(tt.id)
			if len(got) != len(tt.want) {
				t.Fatalf("FindDepIDs(%s) = %v, want %v", tt.id, got, tt.want)
			}
			for _, id := range tt.want {
				if _, ok := got[id]; !ok {
					t.Errorf("FindDepIDs(%s) missing %s", tt.id, id)
				}
			}
			if _, ok := got[tt.id]; ok {
				t.Errorf("FindDepIDs(%s) includes the stage itself", tt.id)
			}
		})
	}
}

func TestMaxTimestamp(t *testing.T) {
	g := sample()
	if got := g.MaxTimestamp(5000); got != 5000 {
		t.Errorf("live MaxTimestamp = %d, want 5000", got)
	}
	g.Finished = 2000
	if got := g.MaxTimestamp(5000); got != 2000 {
		t.Errorf("finished MaxTimestamp = %d, want 2000", got)
	}
	if got := g.Duration(5000); got != 1000 {
		t.Errorf("Duration = %d, want 1000", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Graph)
		want   error
	}{
		{"valid", func(*Graph) {}, nil},
		{"empty id", func(g *Graph) { g.Nodes[2].StageID = "" }, ErrInvalidStageID},
		{"duplicate", func(g *Graph) { g.Nodes[2].StageID = "0" }, ErrDuplicateStageID},
		{"unknown dep", func(g *Graph) { g.Nodes[3].Dependencies = []string{"nope"} }, ErrUnknownDependency},
		{"forward dep", func(g *Graph) { g.Nodes[1].Dependencies = []string{"3"} }, ErrForwardDependency},
		{"self dep", func(g *Graph) { g.Nodes[1].Dependencies = []string{"0"} }, ErrForwardDependency},
		{"root dep", func(g *Graph) { g.Nodes[2].Dependencies = []string{g.Nodes[0].StageID} }, ErrRootDependency},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := sample()
			tt.mutate(g)
			err := g.Validate()
			if tt.want == nil {
				if err != nil {
					t.Fatalf("Validate() = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	g := sample()
	c := g.Clone()
	c.Nodes[4].Dependencies[0] = "x"
	c.Nodes[1].State = StateFailed
	if g.Nodes[4].Dependencies[0] != "2" {
		t.Error("Clone shares dependency slices")
	}
	if g.Nodes[1].State != StateSuccessful {
		t.Error("Clone shares nodes")
	}
}

func TestNodeHelpers(t *testing.T) {
	g := sample()
	main, _ := g.Node("0")
	if main.Label() != "app/main" {
		t.Errorf("Label() = %q", main.Label())
	}
	if main.Duration(0) != 100 {
		t.Errorf("completed Duration = %d", main.Duration(0))
	}
	running, _ := g.Node("2")
	if running.Duration(1100) != 70 {
		t.Errorf("running Duration = %d", running.Duration(1100))
	}
	pending, _ := g.Node("3")
	if pending.Label() != "thenApply" || pending.Duration(9999) != 0 {
		t.Errorf("pending Label/Duration = %q/%d", pending.Label(), pending.Duration(9999))
	}
	if pending.DependencyList() != "2,0" {
		t.Errorf("DependencyList() = %q", pending.DependencyList())
	}
	if !OpExternalFuture.Hidden() || OpInvokeFunction.Hidden() {
		t.Error("Hidden() mismatch")
	}
}

func TestReadWriteGraph(t *testing.T) {
	var sb strings.Builder
	if err := WriteGraph(sample(), &sb); err != nil {
		t.Fatalf("WriteGraph: %v", err)
	}
	if !strings.Contains(sb.String(), `"stage_id": "2"`) {
		t.Errorf("unexpected JSON: %s", sb.String())
	}
	g, err := ReadGraph(strings.NewReader(sb.String()))
	if err != nil {
		t.Fatalf("ReadGraph: %v", err)
	}
	if g.NodeCount() != 5 || g.ID != "g1" {
		t.Errorf("read back %d nodes, id %q", g.NodeCount(), g.ID)
	}

	_, err = ReadGraph(strings.NewReader(`{"nodes":[{"stage_id":"a","dependencies":["b"]}]}`))
	if !errors.Is(err, ErrUnknownDependency) {
		t.Errorf("ReadGraph invalid = %v, want ErrUnknownDependency", err)
	}
}

func TestRecorder(t *testing.T) {
	r := NewRecorder("g", "fn", 100)
	if err := r.Add(Node{StageID: "a", Op: OpInvokeFunction, Created: 100}); err != nil {
		t.Fatalf("Add a: %v", err)
	}
	if err := r.Add(Node{StageID: "b", Created: 110, Dependencies: []string{"zz"}}); !errors.Is(err, ErrUnknownDependency) {
		t.Errorf("Add unknown dep = %v", err)
	}
	if err := r.Add(Node{StageID: "b", Created: 110, Dependencies: []string{"g"}}); !errors.Is(err, ErrRootDependency) {
		t.Errorf("Add root dep = %v", err)
	}
	if err := r.Add(Node{StageID: "a"}); !errors.Is(err, ErrDuplicateStageID) {
		t.Errorf("Add duplicate = %v", err)
	}
	if err := r.Complete("a", StateRunning, 120); !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("Complete non-terminal = %v", err)
	}
	if err := r.Start("a", 120); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := r.Start("a", 121); !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("double Start = %v", err)
	}
	if err := r.Complete("a", StateSuccessful, 150); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if err := r.Complete("a", StateFailed, 160); !errors.Is(err, ErrCompletedImmutable) {
		t.Errorf("second Complete = %v", err)
	}
	if err := r.Start("nope", 1); !errors.Is(err, ErrUnknownStage) {
		t.Errorf("Start unknown = %v", err)
	}

	snap := r.Snapshot()
	snap.Nodes[1].State = StateCancelled
	if r.Snapshot().Nodes[1].State != StateSuccessful {
		t.Error("Snapshot is not a copy")
	}

	if err := r.Finish(200); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if err := r.Add(Node{StageID: "c"}); !errors.Is(err, ErrGraphFinished) {
		t.Errorf("Add after finish = %v", err)
	}
	if r.Snapshot().IsLive() {
		t.Error("graph still live after Finish")
	}
}

func TestReplay(t *testing.T) {
	g := sample()
	g.Nodes[3].Completed = 1080
	g.Nodes[3].State = StateFailed
	g.Finished = 1200

	if _, err := NewReplay(sample(), 1); !errors.Is(err, ErrNotFinished) {
		t.Fatalf("NewReplay live = %v", err)
	}

	wall := time.Unix(0, 0)
	r, err := NewReplay(g, 2, WithReplayClock(func() time.Time { return wall }))
	if err != nil {
		t.Fatalf("NewReplay: %v", err)
	}
	if r.Now() != 1000 {
		t.Errorf("Now() at start = %d", r.Now())
	}

	tests := []struct {
		at       int64
		nodes    int
		state2   State
		finished bool
	}{
		{1005, 2, "", false},
		{1025, 4, StatePending, false},
		{1050, 5, StateRunning, false},
		{1100, 5, StateFailed, false},
		{1200, 5, StateFailed, true},
	}
	for _, tt := range tests {
		s := r.At(tt.at)
		if s.NodeCount() != tt.nodes {
			t.Errorf("At(%d) nodes = %d, want %d", tt.at, s.NodeCount(), tt.nodes)
		}
		if tt.state2 != "" {
			n, _ := s.Node("2")
			if n.State != tt.state2 {
				t.Errorf("At(%d) state of 2 = %s, want %s", tt.at, n.State, tt.state2)
			}
		}
		if s.IsLive() == tt.finished {
			t.Errorf("At(%d) live = %v", tt.at, s.IsLive())
		}
	}

	wall = wall.Add(25 * time.Millisecond)
	if r.Now() != 1050 {
		t.Errorf("Now() at 2x speed = %d, want 1050", r.Now())
	}
	wall = wall.Add(time.Hour)
	if r.Now() != 1200 || r.Snapshot().IsLive() {
		t.Error("replay did not finish")
	}
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")
	if err := WriteGraphFile(sample(), path); err != nil {
		t.Fatalf("WriteGraphFile: %v", err)
	}
	src, err := NewFileSource(path)
	if err != nil {
		t.Fatalf("NewFileSource: %v", err)
	}
	if src.Snapshot().NodeCount() != 5 {
		t.Fatal("unexpected initial snapshot")
	}

	later := time.Now().Add(time.Minute)
	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	_ = os.Chtimes(path, later, later)
	if src.Snapshot().NodeCount() != 5 {
		t.Error("bad file replaced the last good snapshot")
	}
	if src.Err() == nil {
		t.Error("Err() = nil after parse failure")
	}

	g := sample()
	g.Finished = 3000
	if err := WriteGraphFile(g, path); err != nil {
		t.Fatal(err)
	}
	later = later.Add(time.Minute)
	_ = os.Chtimes(path, later, later)
	if src.Snapshot().IsLive() {
		t.Error("updated file not picked up")
	}
	if src.Err() != nil {
		t.Errorf("Err() = %v after good read", src.Err())
	}
}

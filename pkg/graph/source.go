package graph

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
)

var (
	// ErrGraphFinished is returned when a finished graph is modified.
	ErrGraphFinished = errors.New("graph already finished")

	// ErrUnknownStage is returned by [Recorder] when a transition names a
	// stage that was never added.
	ErrUnknownStage = errors.New("unknown stage")

	// ErrIllegalTransition is returned by [Recorder] when a state change would
	// move a stage backwards in its lifecycle.
	ErrIllegalTransition = errors.New("illegal state transition")

	// ErrCompletedImmutable is returned by [Recorder.Complete] when the stage
	// already has a completion timestamp.
	ErrCompletedImmutable = errors.New("completion timestamp already set")

	// ErrNotFinished is returned by [NewReplay] for graphs that are still live.
	ErrNotFinished = errors.New("graph is not finished")
)

// Source hands out self-consistent graph snapshots. Implementations must
// return a value the caller may read without further synchronization.
type Source interface {
	Snapshot() *Graph
}

// Clock reports the current time in epoch milliseconds.
type Clock interface {
	Now() int64
}

// WallClock reads the system clock.
type WallClock struct{}

// Now returns the current wall time in epoch milliseconds.
func (WallClock) Now() int64 { return time.Now().UnixMilli() }

// ClockOf returns the source's own clock when it has one (for example a
// [Replay] running in virtual time), and the wall clock otherwise.
func ClockOf(src Source) Clock {
	if c, ok := src.(Clock); ok {
		return c
	}
	return WallClock{}
}

// Static is a Source that always returns copies of the same graph.
type Static struct{ G *Graph }

// Snapshot returns a copy of the wrapped graph, or nil when there is none.
func (s Static) Snapshot() *Graph {
	if s.G == nil {
		return nil
	}
	return s.G.Clone()
}

// =============================================================================
// Recorder
// =============================================================================

// Recorder builds a graph incrementally and enforces the append-only,
// monotonic lifecycle rules. It is safe for concurrent use.
type Recorder struct {
	mu  sync.RWMutex
	g   Graph
	pos map[string]int
}

// NewRecorder starts a live graph whose synthetic root node carries the graph
// ID as its stage ID.
func NewRecorder(id, functionID string, created int64) *Recorder {
	root := Node{
		StageID:    id,
		Op:         OpGraph,
		State:      StateGraph,
		Created:    created,
		FunctionID: functionID,
	}
	return &Recorder{
		g: Graph{
			ID:         id,
			FunctionID: functionID,
			Created:    created,
			Nodes:      []Node{root},
		},
		pos: map[string]int{id: 0},
	}
}

// Add appends a stage. Its dependencies must already be recorded.
func (r *Recorder) Add(n Node) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.g.IsLive() {
		return ErrGraphFinished
	}
	if n.StageID == "" {
		return ErrInvalidStageID
	}
	if _, dup := r.pos[n.StageID]; dup {
		return fmt.Errorf("stage %s: %w", n.StageID, ErrDuplicateStageID)
	}
	for _, dep := range n.Dependencies {
		p, ok := r.pos[dep]
		if !ok {
			return fmt.Errorf("stage %s depends on %s: %w", n.StageID, dep, ErrUnknownDependency)
		}
		if p == 0 {
			return fmt.Errorf("stage %s depends on %s: %w", n.StageID, dep, ErrRootDependency)
		}
	}
	if n.State == "" {
		n.State = StatePending
	}
	r.pos[n.StageID] = len(r.g.Nodes)
	r.g.Nodes = append(r.g.Nodes, n.clone())
	return nil
}

// Start moves a pending stage to running.
func (r *Recorder) Start(stageID string, ts int64) error {
	return r.update(stageID, func(n *Node) error {
		if n.State != StatePending {
			return fmt.Errorf("stage %s %s -> %s: %w", stageID, n.State, StateRunning, ErrIllegalTransition)
		}
		n.State = StateRunning
		n.Started = ts
		return nil
	})
}

// Complete moves a stage to a terminal state and records its completion
// time. Stages completed straight from pending get Started = ts.
func (r *Recorder) Complete(stageID string, state State, ts int64) error {
	if !state.IsTerminal() {
		return fmt.Errorf("stage %s -> %s: %w", stageID, state, ErrIllegalTransition)
	}
	return r.update(stageID, func(n *Node) error {
		if n.HasCompleted() {
			return fmt.Errorf("stage %s: %w", stageID, ErrCompletedImmutable)
		}
		if n.State.rank() > state.rank() || n.State == StateGraph {
			return fmt.Errorf("stage %s %s -> %s: %w", stageID, n.State, state, ErrIllegalTransition)
		}
		if n.Started == 0 {
			n.Started = ts
		}
		n.State = state
		n.Completed = ts
		return nil
	})
}

// Finish marks the graph as finished. No further changes are accepted.
func (r *Recorder) Finish(ts int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.g.IsLive() {
		return ErrGraphFinished
	}
	r.g.Finished = ts
	return nil
}

// Snapshot returns a deep copy of the current graph.
func (r *Recorder) Snapshot() *Graph {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.g.Clone()
}

func (r *Recorder) update(stageID string, fn func(*Node) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.g.IsLive() {
		return ErrGraphFinished
	}
	i, ok := r.pos[stageID]
	if !ok {
		return fmt.Errorf("stage %s: %w", stageID, ErrUnknownStage)
	}
	return fn(&r.g.Nodes[i])
}

// =============================================================================
// Replay
// =============================================================================

// ReplayOption configures a [Replay].
type ReplayOption func(*Replay)

// WithReplayClock overrides the wall clock driving the replay.
func WithReplayClock(now func() time.Time) ReplayOption {
	return func(r *Replay) { r.wall = now }
}

// Replay plays a finished graph back in virtual time. At virtual time t the
// snapshot contains only stages created at or before t, with states derived
// from their recorded timestamps; the graph reports finished once t reaches
// the recorded finish time.
type Replay struct {
	g     *Graph
	speed float64
	wall  func() time.Time
	start time.Time
}

// NewReplay prepares a replay of g at the given speed factor (1 = real time).
func NewReplay(g *Graph, speed float64, opts ...ReplayOption) (*Replay, error) {
	if g.IsLive() {
		return nil, ErrNotFinished
	}
	if speed <= 0 {
		speed = 1
	}
	r := &Replay{g: g.Clone(), speed: speed, wall: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	r.start = r.wall()
	return r, nil
}

// Now returns the virtual time in epoch milliseconds, capped at the
// recorded finish time.
func (r *Replay) Now() int64 {
	elapsed := float64(r.wall().Sub(r.start).Milliseconds()) * r.speed
	return min(r.g.Created+int64(elapsed), r.g.Finished)
}

// Snapshot returns the graph as it looked at the current virtual time.
func (r *Replay) Snapshot() *Graph {
	return r.At(r.Now())
}

// At returns the graph as it looked at virtual time t.
func (r *Replay) At(t int64) *Graph {
	out := &Graph{ID: r.g.ID, FunctionID: r.g.FunctionID, Created: r.g.Created}
	if t >= r.g.Finished {
		out.Finished = r.g.Finished
	}

	included := make(map[string]bool, len(r.g.Nodes))
	for i, n := range r.g.Nodes {
		if i > 0 && n.Created > t {
			continue
		}
		if !depsIncluded(n, included) {
			continue
		}
		included[n.StageID] = true
		out.Nodes = append(out.Nodes, stateAt(n.clone(), t))
	}
	return out
}

func depsIncluded(n Node, included map[string]bool) bool {
	for _, dep := range n.Dependencies {
		if !included[dep] {
			return false
		}
	}
	return true
}

func stateAt(n Node, t int64) Node {
	if n.State == StateGraph {
		return n
	}
	switch {
	case n.Started == 0 || t < n.Started:
		n.State, n.Started, n.Completed = StatePending, 0, 0
	case n.Completed == 0 || t < n.Completed:
		n.State, n.Completed = StateRunning, 0
	}
	return n
}

// =============================================================================
// FileSource
// =============================================================================

// FileSource polls a graph JSON file, re-reading it whenever its
// modification time changes. A file that fails to parse leaves the last good
// snapshot in place; the failure is reported by [FileSource.Err].
type FileSource struct {
	path string

	mu      sync.Mutex
	last    *Graph
	modTime time.Time
	err     error
}

// NewFileSource loads path once and fails if the initial read fails.
func NewFileSource(path string) (*FileSource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	g, err := ReadGraphFile(path)
	if err != nil {
		return nil, fmt.Errorf("read graph %s: %w", path, err)
	}
	return &FileSource{path: path, last: g, modTime: info.ModTime()}, nil
}

// Snapshot returns a copy of the most recent good graph.
func (s *FileSource) Snapshot() *Graph {
	s.mu.Lock()
	defer s.mu.Unlock()

	if info, err := os.Stat(s.path); err != nil {
		s.err = err
	} else if !info.ModTime().Equal(s.modTime) {
		g, err := ReadGraphFile(s.path)
		s.err = err
		if err == nil {
			s.last = g
			s.modTime = info.ModTime()
		}
	}
	return s.last.Clone()
}

// Err returns the error from the most recent poll, if any.
func (s *FileSource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Path returns the polled file path.
func (s *FileSource) Path() string { return s.path }

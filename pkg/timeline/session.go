package timeline

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/flowlane/pkg/graph"
	"github.com/matzehuels/flowlane/pkg/observability"
	"github.com/matzehuels/flowlane/pkg/viewport"
)

// ErrNoGraph is returned by interaction methods called before the first
// Refresh.
var ErrNoGraph = errors.New("session has no graph yet")

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *log.Logger) SessionOption {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithOnNodeSelected registers the selection callback. node is nil when the
// selection was cleared.
func WithOnNodeSelected(fn func(g *graph.Graph, node *graph.Node)) SessionOption {
	return func(s *Session) { s.onNodeSelected = fn }
}

// WithOnHorizontalScrollChanged registers the horizontal scroll callback.
func WithOnHorizontalScrollChanged(fn func(ts int64)) SessionOption {
	return func(s *Session) { s.onScrollX = fn }
}

// WithInitialState seeds the interaction state used for the first graph,
// e.g. a view restored from disk.
func WithInitialState(st State) SessionOption {
	return func(s *Session) { s.seed = &st }
}

// WithID overrides the generated session ID.
func WithID(id string) SessionOption {
	return func(s *Session) { s.id = id }
}

// Session is one interactive view of a graph. All events are serialized, so
// no recomputation overlaps another.
type Session struct {
	id     string
	opts   Options
	clock  graph.Clock
	logger *log.Logger

	onNodeSelected func(*graph.Graph, *graph.Node)
	onScrollX      func(int64)

	mu    sync.Mutex
	seed  *State
	g     *graph.Graph
	state State
	snap  *Snapshot
	drag  *viewport.Drag
}

// NewSession validates opts and returns a session without a graph. A nil
// clock means the wall clock.
func NewSession(opts Options, clock graph.Clock, sopts ...SessionOption) (*Session, error) {
	opts.SetDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = graph.WallClock{}
	}
	s := &Session{
		id:     uuid.NewString(),
		opts:   opts,
		clock:  clock,
		logger: log.New(io.Discard),
	}
	for _, o := range sopts {
		o(s)
	}
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Options returns the effective options.
func (s *Session) Options() Options { return s.opts }

// Refresh recomputes the view from g. A graph with a different ID resets
// the interaction state. On error the previous snapshot is kept.
func (s *Session) Refresh(ctx context.Context, g *graph.Graph) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state
	switch {
	case s.g == nil && s.seed != nil:
		st = *s.seed
		s.seed = nil
	case s.g == nil || s.g.ID != g.ID:
		st = InitialState(g, s.opts)
	}
	return s.recompute(ctx, g, st)
}

// recompute must be called with s.mu held.
func (s *Session) recompute(ctx context.Context, g *graph.Graph, st State) error {
	start := time.Now()
	observability.Layout().OnLayoutStart(ctx, g.ID, len(g.Nodes))

	snap, next, err := Compute(g, st, s.opts, s.clock.Now())
	if err != nil {
		observability.Layout().OnLayoutComplete(ctx, g.ID, 0, time.Since(start), err)
		s.logger.Error("layout failed", "graph", g.ID, "err", err)
		return err
	}
	observability.Layout().OnLayoutComplete(ctx, g.ID, snap.LaneCount, time.Since(start), nil)

	s.g, s.state, s.snap = g, next, snap
	if s.drag != nil {
		s.drag.Update(snap.VerticalMetrics)
	}
	return nil
}

// Select toggles the selection of stageID and disables auto-scroll. The
// OnNodeSelected callback receives the selected node, or nil when the
// selection was cleared or the stage does not exist.
func (s *Session) Select(ctx context.Context, stageID string) error {
	s.mu.Lock()
	if s.g == nil {
		s.mu.Unlock()
		return ErrNoGraph
	}
	g := s.g
	if err := s.recompute(ctx, g, s.state.Select(stageID)); err != nil {
		s.mu.Unlock()
		return err
	}
	selected := s.snap.Selected
	s.mu.Unlock()

	var node *graph.Node
	if n, ok := g.Node(selected); ok && selected != "" {
		node = &n
	}
	observability.Layout().OnSelect(ctx, g.ID, selected)
	s.logger.Debug("selection changed", "stage", selected)
	if s.onNodeSelected != nil {
		s.onNodeSelected(g, node)
	}
	return nil
}

// ScrollX moves the window's left edge to ts and disables auto-scroll.
func (s *Session) ScrollX(ctx context.Context, ts int64) error {
	s.mu.Lock()
	if s.g == nil {
		s.mu.Unlock()
		return ErrNoGraph
	}
	err := s.recompute(ctx, s.g, s.state.ScrollX(ts))
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if s.onScrollX != nil {
		s.onScrollX(ts)
	}
	return nil
}

// ScrollY sets the vertical scroll ratio and disables auto-scroll.
func (s *Session) ScrollY(ctx context.Context, ratio float64) error {
	return s.update(ctx, func(st State) State { return st.ScrollY(ratio) })
}

// EnableAutoScroll pins the view to the live edge again.
func (s *Session) EnableAutoScroll(ctx context.Context) error {
	return s.update(ctx, State.WithAutoScroll)
}

func (s *Session) update(ctx context.Context, fn func(State) State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.g == nil {
		return ErrNoGraph
	}
	return s.recompute(ctx, s.g, fn(s.state))
}

// BeginDrag starts a scrollbar drag at pointer position y. A drag already in
// progress is ended first. Moves scroll through ScrollY.
func (s *Session) BeginDrag(ctx context.Context, src viewport.PointerSource, y float64) (*viewport.Drag, error) {
	s.mu.Lock()
	if s.snap == nil {
		s.mu.Unlock()
		return nil, ErrNoGraph
	}
	prev := s.drag
	s.drag = nil
	metrics := s.snap.VerticalMetrics
	s.mu.Unlock()

	if prev != nil {
		prev.End()
	}
	d := viewport.BeginDrag(ctx, src, y, metrics, func(ratio float64) {
		if err := s.ScrollY(ctx, ratio); err != nil {
			s.logger.Warn("drag scroll failed", "err", err)
		}
	})

	s.mu.Lock()
	stale := s.drag
	s.drag = d
	s.mu.Unlock()
	if stale != nil {
		stale.End()
	}
	return d, nil
}

// Snapshot returns the latest snapshot, or nil before the first Refresh.
func (s *Session) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// State returns the current interaction state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Graph returns the graph of the latest successful refresh.
func (s *Session) Graph() *graph.Graph {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.g
}

// Close ends any drag in progress.
func (s *Session) Close() {
	s.mu.Lock()
	d := s.drag
	s.drag = nil
	s.mu.Unlock()
	if d != nil {
		d.End()
	}
}

// Package refresh drives periodic recomputation of a live graph.
//
// A [Loop] is a cancellable repeating task. While the graph is live it runs
// one cycle per interval on the current snapshot, re-arming its timer only
// after a cycle returns, so cycles never overlap. The first cycle that
// observes a finished snapshot is the last one: the loop moves to
// [Finished] and stops scheduling.
//
//	loop := refresh.New(refresh.WithLogger(logger))
//	if err := loop.Start(ctx, src, 50*time.Millisecond, session.Refresh); err != nil {
//	    return err
//	}
//	defer loop.Stop()
//	<-loop.Done()
package refresh

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/flowlane/pkg/graph"
	"github.com/matzehuels/flowlane/pkg/observability"
)

// ErrAlreadyStarted is returned when Start is called twice on one Loop.
var ErrAlreadyStarted = errors.New("refresh loop already started")

// State is the lifecycle state of a Loop.
type State int

const (
	// Live means cycles are being scheduled.
	Live State = iota
	// Finished means a cycle observed the finished graph and the loop stopped.
	Finished
	// Cancelled means the loop was stopped before the graph finished.
	Cancelled
	// Failed means a cycle returned an error.
	Failed
)

func (s State) String() string {
	switch s {
	case Live:
		return "live"
	case Finished:
		return "finished"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether no further cycles will run.
func (s State) Terminal() bool { return s != Live }

// CycleFunc recomputes from one snapshot.
type CycleFunc func(ctx context.Context, g *graph.Graph) error

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the logger used for cycle and state events.
func WithLogger(l *log.Logger) Option {
	return func(loop *Loop) {
		if l != nil {
			loop.logger = l
		}
	}
}

// Loop is a cancellable repeating refresh task.
type Loop struct {
	logger *log.Logger

	mu      sync.Mutex
	state   State
	cycles  int
	err     error
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New returns an unstarted Loop.
func New(opts ...Option) *Loop {
	l := &Loop{
		logger: log.New(io.Discard),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start schedules the first cycle one interval from now.
func (l *Loop) Start(ctx context.Context, src graph.Source, interval time.Duration, cycle CycleFunc) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return ErrAlreadyStarted
	}
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	l.started = true

	ctx, l.cancel = context.WithCancel(ctx)
	go l.run(ctx, src, interval, cycle)
	return nil
}

func (l *Loop) run(ctx context.Context, src graph.Source, interval time.Duration, cycle CycleFunc) {
	defer close(l.done)
	defer l.cancel()

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			l.transition(ctx, Cancelled, nil)
			return
		case <-timer.C:
		}

		g := src.Snapshot()
		start := time.Now()
		err := cycle(ctx, g)
		n := l.countCycle()
		observability.Refresh().OnCycle(ctx, n, g.IsLive(), time.Since(start), err)
		l.logger.Debug("refresh cycle", "cycle", n, "live", g.IsLive(), "took", time.Since(start))

		switch {
		case err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()):
			l.transition(ctx, Cancelled, nil)
			return
		case err != nil:
			l.transition(ctx, Failed, err)
			return
		case !g.IsLive():
			l.transition(ctx, Finished, nil)
			return
		}
		timer.Reset(interval)
	}
}

func (l *Loop) countCycle() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cycles++
	return l.cycles
}

// transition moves a Live loop to a terminal state. Terminal states are
// never left.
func (l *Loop) transition(ctx context.Context, to State, err error) {
	l.mu.Lock()
	from := l.state
	if from != Live {
		l.mu.Unlock()
		return
	}
	l.state = to
	l.err = err
	l.mu.Unlock()

	observability.Refresh().OnStateChange(ctx, from.String(), to.String())
	if err != nil {
		l.logger.Error("refresh loop failed", "err", err)
		return
	}
	l.logger.Debug("refresh loop stopped", "state", to)
}

// Stop cancels scheduling and waits for an in-flight cycle to return. It is
// idempotent and safe to call before Start. A loop that already reached
// Finished stays Finished.
func (l *Loop) Stop() {
	l.mu.Lock()
	started, cancel := l.started, l.cancel
	l.mu.Unlock()
	if !started {
		return
	}
	cancel()
	<-l.done
}

// Wait blocks until the loop stops and returns the error of a failed cycle.
func (l *Loop) Wait() error {
	<-l.done
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Done is closed when the loop has stopped. It never closes for a loop that
// was not started.
func (l *Loop) Done() <-chan struct{} { return l.done }

// State returns the current state.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Cycles returns the number of completed cycles.
func (l *Loop) Cycles() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cycles
}

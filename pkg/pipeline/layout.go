package pipeline

import (
	"github.com/matzehuels/flowlane/pkg/graph"
	"github.com/matzehuels/flowlane/pkg/timeline"
)

// ComputeView runs the layout for g. A nil opts.State means the initial
// state. Finished graphs are laid out at their finish time, so repeated runs
// produce identical snapshots.
func ComputeView(g *graph.Graph, opts Options, now int64) (*timeline.Snapshot, timeline.State, error) {
	st := timeline.InitialState(g, opts.View)
	if opts.State != nil {
		st = *opts.State
	}
	if !g.IsLive() {
		now = g.Finished
	}
	return timeline.Compute(g, st, opts.View, now)
}

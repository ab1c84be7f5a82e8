// Package timeline assembles the layout engine into a view.
//
// [Compute] is a pure reducer: given a graph snapshot, the interaction
// [State], the [Options] and the current time, it returns a fresh immutable
// [Snapshot] and the next State. [Session] wraps the reducer with a mutex
// and the event surface a UI needs (refresh, select, scroll, drag).
package timeline

import (
	"github.com/matzehuels/flowlane/pkg/graph"
	"github.com/matzehuels/flowlane/pkg/layout"
	"github.com/matzehuels/flowlane/pkg/viewport"
)

// Compute rebuilds the whole view from g. It never mutates g or st.
//
// The returned State differs from st when auto-scroll moved the cursor or a
// selection no longer exists in g. On error, st is returned unchanged.
func Compute(g *graph.Graph, st State, opts Options, now int64) (*Snapshot, State, error) {
	opts.SetDefaults()

	p := layout.Classify(g.Stages())
	ranks, err := layout.AssignRanks(p.Active)
	if err != nil {
		return nil, st, err
	}

	next := st
	if next.Selected != "" {
		if _, ok := g.Node(next.Selected); !ok {
			next.Selected = ""
		}
	}
	if !next.CursorSet {
		next.CursorTs = g.Created
	}

	geom := opts.Geometry()
	maxTs := g.MaxTimestamp(now)
	if next.AutoScroll {
		if cursor, ratio, pinned := viewport.AutoScroll(geom, g.Created, maxTs-g.Created); pinned {
			next.CursorTs = cursor
			next.CursorSet = true
			next.ScrollRatio = ratio
		}
	}

	contentHeight := layout.ContentHeight(opts.MinHeight(), opts.LaneHeight, ranks.LaneCount())
	vm := viewport.Vertical(contentHeight, opts.ViewportHeight, next.ScrollRatio)

	snap := &Snapshot{
		GraphID:         g.ID,
		Live:            g.IsLive(),
		Origin:          g.Created,
		Now:             now,
		MaxTimestamp:    maxTs,
		Lanes:           ranks.Lanes,
		RankOf:          ranks.RankOf,
		LaneCount:       ranks.LaneCount(),
		Active:          p.Active,
		Pending:         p.Pending,
		Selected:        next.Selected,
		Highlight:       layout.Highlight(g, next.Selected),
		CursorTs:        next.CursorTs,
		AutoScroll:      next.AutoScroll,
		ScrollRatio:     next.ScrollRatio,
		SurfaceOffsetX:  geom.SurfaceOffsetX(g.Created, next.CursorTs),
		VerticalMetrics: vm,
		LaneHeight:      opts.LaneHeight,
		BarHeight:       opts.BarHeight(),
		Geometry:        geom,
	}
	return snap, next, nil
}

package layout

import (
	"errors"
	"slices"

	flerrors "github.com/matzehuels/flowlane/pkg/errors"
	"github.com/matzehuels/flowlane/pkg/graph"
)

// ErrMissingDependency is wrapped by the error [AssignRanks] returns when a
// stage references a dependency that has not been placed yet.
var ErrMissingDependency = errors.New("dependency has no lane")

// Ranks is the lane assignment for one snapshot.
type Ranks struct {
	// Lanes lists stage IDs per lane, top to bottom, in placement order.
	Lanes [][]string
	// RankOf maps every placed stage to its lane index.
	RankOf map[string]int
}

// LaneCount returns the number of lanes.
func (r Ranks) LaneCount() int { return len(r.Lanes) }

// Conflict reports whether b blocks a from sharing its lane. The test is
// asymmetric: a is the stage being placed, b one already in the lane.
// Any state other than running is treated as completed.
func Conflict(a, b graph.Node) bool {
	switch {
	case a.IsRunning() && b.IsRunning():
		return true
	case a.IsRunning():
		return b.Completed > a.Started
	case b.IsRunning():
		return a.Completed > b.Started
	}
	return (a.Started > b.Started && a.Started < b.Completed) ||
		(a.Completed > b.Started && a.Completed < b.Completed)
}

// ContentHeight returns the scrollable content height for the given lane
// count, never less than minHeight.
func ContentHeight(minHeight, laneHeight float64, lanes int) float64 {
	return max(minHeight, laneHeight*float64(lanes))
}

// AssignRanks places active stages (as returned by [Classify]) into lanes.
func AssignRanks(active []graph.Node) (Ranks, error) {
	a := &assigner{
		laneOf: make(map[string]*lane, len(active)),
		floor:  make(map[string]*lane),
	}
	for _, n := range active {
		if err := a.place(n); err != nil {
			return Ranks{}, err
		}
	}
	return a.ranks(), nil
}

type lane struct {
	pos   int
	nodes []graph.Node
}

// assigner keeps the reverse index from stage ID to lane next to the lane
// list. Lane positions are renumbered on every insertion.
type assigner struct {
	lanes  []*lane
	laneOf map[string]*lane
	// floor records, per hidden stage, the deepest lane among its
	// dependencies (nil when it has none).
	floor map[string]*lane
}

func (a *assigner) place(n graph.Node) error {
	fl, err := a.floorOf(n)
	if err != nil {
		return err
	}
	if n.Op.Hidden() {
		a.floor[n.StageID] = fl
		return nil
	}
	if fl == nil {
		a.insert(len(a.lanes), n)
		return nil
	}
	for _, other := range fl.nodes {
		if Conflict(n, other) {
			a.insert(fl.pos+1, n)
			return nil
		}
	}
	fl.nodes = append(fl.nodes, n)
	a.laneOf[n.StageID] = fl
	return nil
}

func (a *assigner) floorOf(n graph.Node) (*lane, error) {
	var deepest *lane
	for _, dep := range n.Dependencies {
		l, ok := a.laneOf[dep]
		if !ok {
			l, ok = a.floor[dep]
		}
		if !ok {
			return nil, flerrors.Wrap(flerrors.ErrCodeMissingDependency, ErrMissingDependency,
				"stage %s depends on %s", n.StageID, dep)
		}
		if l != nil && (deepest == nil || l.pos > deepest.pos) {
			deepest = l
		}
	}
	return deepest, nil
}

func (a *assigner) insert(pos int, n graph.Node) {
	l := &lane{pos: pos, nodes: []graph.Node{n}}
	a.lanes = slices.Insert(a.lanes, pos, l)
	for i := pos + 1; i < len(a.lanes); i++ {
		a.lanes[i].pos = i
	}
	a.laneOf[n.StageID] = l
}

func (a *assigner) ranks() Ranks {
	r := Ranks{
		Lanes:  make([][]string, len(a.lanes)),
		RankOf: make(map[string]int, len(a.laneOf)),
	}
	for i, l := range a.lanes {
		ids := make([]string, len(l.nodes))
		for j, n := range l.nodes {
			ids[j] = n.StageID
			r.RankOf[n.StageID] = i
		}
		r.Lanes[i] = ids
	}
	return r
}

package timeline

import (
	"math"
	"slices"

	"github.com/matzehuels/flowlane/pkg/graph"
	"github.com/matzehuels/flowlane/pkg/viewport"
)

// Snapshot is the immutable result of one recomputation. Renderers read it;
// nothing writes to it after [Compute] returns.
type Snapshot struct {
	GraphID      string `json:"graph_id,omitempty"`
	Live         bool   `json:"live"`
	Origin       int64  `json:"origin"`
	Now          int64  `json:"now"`
	MaxTimestamp int64  `json:"max_timestamp"`

	Lanes     [][]string     `json:"lanes"`
	RankOf    map[string]int `json:"rank_of"`
	LaneCount int            `json:"lane_count"`

	Active  []graph.Node `json:"active"`
	Pending []graph.Node `json:"pending"`

	Selected  string              `json:"selected,omitempty"`
	Highlight map[string]struct{} `json:"-"`

	CursorTs       int64   `json:"cursor_ts"`
	AutoScroll     bool    `json:"auto_scroll"`
	ScrollRatio    float64 `json:"scroll_ratio"`
	SurfaceOffsetX float64 `json:"surface_offset_x"`

	viewport.VerticalMetrics

	LaneHeight float64           `json:"lane_height"`
	BarHeight  float64           `json:"bar_height"`
	Geometry   viewport.Geometry `json:"geometry"`
}

// Rank returns the lane of a stage. Hidden and pending stages have none.
func (s *Snapshot) Rank(stageID string) (int, bool) {
	r, ok := s.RankOf[stageID]
	return r, ok
}

// Highlighted reports whether the stage is in the highlight set.
func (s *Snapshot) Highlighted(stageID string) bool {
	_, ok := s.Highlight[stageID]
	return ok
}

// Faded reports whether the stage is drawn faded: a selection exists and the
// stage is not part of its highlight set.
func (s *Snapshot) Faded(stageID string) bool {
	return s.Selected != "" && !s.Highlighted(stageID)
}

// HighlightIDs returns the highlight set sorted.
func (s *Snapshot) HighlightIDs() []string {
	ids := make([]string, 0, len(s.Highlight))
	for id := range s.Highlight {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Node looks a stage up among the active and pending stages.
func (s *Snapshot) Node(stageID string) (graph.Node, bool) {
	for _, list := range [][]graph.Node{s.Active, s.Pending} {
		for _, n := range list {
			if n.StageID == stageID {
				return n, true
			}
		}
	}
	return graph.Node{}, false
}

// Bar is the surface rectangle of a ranked stage.
type Bar struct {
	X, Y, Width, Height float64
	DurationMs          int64
}

// Bar returns the rectangle for n. Stages without a completion time extend
// to MaxTimestamp.
func (s *Snapshot) Bar(n graph.Node) (Bar, bool) {
	rank, ok := s.RankOf[n.StageID]
	if !ok {
		return Bar{}, false
	}
	end := n.Completed
	if !n.HasCompleted() {
		end = s.MaxTimestamp
	}
	x := s.Geometry.PixelX(s.Origin, n.Started)
	return Bar{
		X:          x,
		Y:          float64(rank) * s.LaneHeight,
		Width:      math.Max(0, s.Geometry.PixelX(s.Origin, end)-x),
		Height:     s.BarHeight,
		DurationMs: end - n.Started,
	}, true
}

// VisibleLanes returns the half-open range of lanes inside the viewport at
// the current vertical scroll position.
func (s *Snapshot) VisibleLanes() (first, last int) {
	if s.LaneHeight <= 0 {
		return 0, s.LaneCount
	}
	first = int(s.ScrollPos / s.LaneHeight)
	last = first + int(math.Ceil(s.ViewportHeight/s.LaneHeight))
	return min(first, s.LaneCount), min(last, s.LaneCount)
}

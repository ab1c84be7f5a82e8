package timeline

import (
	"math"

	"github.com/matzehuels/flowlane/pkg/graph"
)

// State is the interaction input to [Compute]: everything the user has
// changed, as opposed to what the graph dictates.
type State struct {
	Selected    string  `json:"selected,omitempty"`
	AutoScroll  bool    `json:"auto_scroll"`
	CursorTs    int64   `json:"cursor_ts,omitempty"`
	CursorSet   bool    `json:"cursor_set,omitempty"`
	ScrollRatio float64 `json:"scroll_ratio"`
}

// InitialState is the state a fresh view of g starts in: cursor at the
// graph's creation time, pinned to the live edge while the graph is live.
func InitialState(g *graph.Graph, opts Options) State {
	return State{
		AutoScroll: g.IsLive() && !opts.DisableAutoScroll,
		CursorTs:   g.Created,
	}
}

// Select toggles the selection of stageID and turns auto-scroll off.
// Selecting the current selection clears it.
func (s State) Select(stageID string) State {
	if stageID == s.Selected {
		stageID = ""
	}
	s.Selected = stageID
	s.AutoScroll = false
	return s
}

// ScrollX moves the left edge of the window to ts and turns auto-scroll off.
func (s State) ScrollX(ts int64) State {
	s.CursorTs = ts
	s.CursorSet = true
	s.AutoScroll = false
	return s
}

// ScrollY sets the vertical scroll ratio, clamped to [0, 1], and turns
// auto-scroll off.
func (s State) ScrollY(ratio float64) State {
	if math.IsNaN(ratio) {
		ratio = 0
	}
	s.ScrollRatio = math.Min(math.Max(ratio, 0), 1)
	s.AutoScroll = false
	return s
}

// WithAutoScroll re-enables pinning to the live edge.
func (s State) WithAutoScroll() State {
	s.AutoScroll = true
	return s
}

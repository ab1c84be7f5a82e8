package sink

import (
	"encoding/json"

	"github.com/matzehuels/flowlane/pkg/graph"
	"github.com/matzehuels/flowlane/pkg/timeline"
)

// JSONOption configures [RenderJSON].
type JSONOption func(*jsonRenderer)

type jsonRenderer struct {
	compact bool
	graph   *graph.Graph
}

// WithCompactJSON disables indentation.
func WithCompactJSON() JSONOption { return func(r *jsonRenderer) { r.compact = true } }

// WithJSONGraph embeds the source graph in the document.
func WithJSONGraph(g *graph.Graph) JSONOption { return func(r *jsonRenderer) { r.graph = g } }

type jsonOutput struct {
	*timeline.Snapshot
	Highlight []string     `json:"highlight"`
	Bars      []jsonBar    `json:"bars"`
	PendingUI []jsonRow    `json:"pending_rows"`
	Graph     *graph.Graph `json:"graph,omitempty"`
}

type jsonBar struct {
	StageID    string  `json:"stage_id"`
	Rank       int     `json:"rank"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	DurationMs int64   `json:"duration_ms"`
	Label      string  `json:"label"`
	Tooltip    string  `json:"tooltip"`
	Classes    string  `json:"classes"`
}

type jsonRow struct {
	StageID string `json:"stage_id"`
	Label   string `json:"label"`
	Tooltip string `json:"tooltip"`
}

// RenderJSON exports a snapshot as a document for API clients: the snapshot
// fields, the sorted highlight set and the precomputed bar rectangles and
// labels, so clients need not repeat the geometry.
func RenderJSON(s *timeline.Snapshot, opts ...JSONOption) ([]byte, error) {
	r := jsonRenderer{}
	for _, opt := range opts {
		opt(&r)
	}

	out := jsonOutput{
		Snapshot:  s,
		Highlight: s.HighlightIDs(),
		Bars:      make([]jsonBar, 0, len(s.Active)),
		PendingUI: make([]jsonRow, 0, len(s.Pending)),
		Graph:     r.graph,
	}
	for _, n := range s.Active {
		bar, ok := s.Bar(n)
		if !ok {
			continue
		}
		out.Bars = append(out.Bars, jsonBar{
			StageID:    n.StageID,
			Rank:       s.RankOf[n.StageID],
			X:          bar.X,
			Y:          bar.Y,
			Width:      bar.Width,
			Height:     bar.Height,
			DurationMs: bar.DurationMs,
			Label:      BarLabel(n, bar.DurationMs),
			Tooltip:    Tooltip(n),
			Classes:    NodeClasses(s, n),
		})
	}
	for _, n := range s.Pending {
		out.PendingUI = append(out.PendingUI, jsonRow{StageID: n.StageID, Label: PendingLabel(n), Tooltip: Tooltip(n)})
	}

	if r.compact {
		return json.Marshal(out)
	}
	return json.MarshalIndent(out, "", "  ")
}

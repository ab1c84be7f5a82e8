package cache

// ViewKeyOpts are the inputs, besides the graph, that change a rendered view.
type ViewKeyOpts struct {
	PxPerMs           float64 `json:"px_per_ms"`
	LaneHeight        float64 `json:"lane_height"`
	Width             float64 `json:"width"`
	PendingPanelWidth float64 `json:"pending_panel_width"`
	ViewportHeight    float64 `json:"viewport_height"`
	MinContentHeight  float64 `json:"min_content_height"`
	SurfaceWidth      float64 `json:"surface_width"`

	Selected    string  `json:"selected"`
	CursorTs    int64   `json:"cursor_ts"`
	ScrollRatio float64 `json:"scroll_ratio"`

	Overview bool `json:"overview"`
	Detailed bool `json:"detailed"`
}

// Keyer derives cache keys.
type Keyer interface {
	// SnapshotKey addresses the JSON snapshot document of a view.
	SnapshotKey(graphHash string, opts ViewKeyOpts) string
	// ArtifactKey addresses a rendered artifact of a view.
	ArtifactKey(graphHash, format string, opts ViewKeyOpts) string
}

// DefaultKeyer hashes all key inputs into fixed-length keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// SnapshotKey implements Keyer.
func (DefaultKeyer) SnapshotKey(graphHash string, opts ViewKeyOpts) string {
	return hashKey("snapshot", graphHash, opts)
}

// ArtifactKey implements Keyer.
func (DefaultKeyer) ArtifactKey(graphHash, format string, opts ViewKeyOpts) string {
	return hashKey("artifact", graphHash, format, opts)
}

package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/flowlane/pkg/buildinfo"
	flerrors "github.com/matzehuels/flowlane/pkg/errors"
	"github.com/matzehuels/flowlane/pkg/graph"
	"github.com/matzehuels/flowlane/pkg/pipeline"
	"github.com/matzehuels/flowlane/pkg/render/sink"
	"github.com/matzehuels/flowlane/pkg/session"
	"github.com/matzehuels/flowlane/pkg/timeline"
)

// maxBodyBytes bounds request bodies; every request body is a small JSON
// object.
const maxBodyBytes = 1 << 20

var contentTypes = map[string]string{
	pipeline.FormatSVG:  "image/svg+xml",
	pipeline.FormatJSON: "application/json",
	pipeline.FormatDOT:  "text/vnd.graphviz",
	pipeline.FormatDeps: "image/svg+xml",
	pipeline.FormatPNG:  "image/png",
	pipeline.FormatPDF:  "application/pdf",
}

type createRequest struct {
	Options timeline.Options `json:"options"`
	State   *timeline.State  `json:"state,omitempty"`
}

type createResponse struct {
	ID       string          `json:"id"`
	Snapshot json.RawMessage `json:"snapshot"`
}

type selectRequest struct {
	StageID string `json:"stage_id"`
}

type scrollRequest struct {
	CursorTs   *int64   `json:"cursor_ts,omitempty"`
	Ratio      *float64 `json:"ratio,omitempty"`
	AutoScroll bool     `json:"auto_scroll,omitempty"`
}

type healthResponse struct {
	Status string         `json:"status"`
	Build  buildinfo.Info `json:"build"`
}

// =============================================================================
// Stateless endpoints
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Build: buildinfo.Get()})
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	g, err := s.snapshot()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data, err := graph.MarshalGraph(g)
	if err != nil {
		s.writeError(w, r, flerrors.Wrap(flerrors.ErrCodeInternal, err, "encode graph"))
		return
	}
	writeBytes(w, contentTypes[pipeline.FormatJSON], data)
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format := q.Get("format")
	if format == "" {
		format = pipeline.FormatSVG
	}
	if err := pipeline.ValidateFormat(format); err != nil {
		s.writeError(w, r, err)
		return
	}

	g, err := s.snapshot()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	opts := pipeline.Options{
		View:     s.view,
		Formats:  []string{format},
		Overview: queryBool(q.Get("overview")),
		Detailed: queryBool(q.Get("detailed")),
		Refresh:  queryBool(q.Get("refresh")),
	}
	if sel := q.Get("selected"); sel != "" {
		if _, ok := g.Node(sel); !ok {
			s.writeError(w, r, flerrors.New(flerrors.ErrCodeStageNotFound, "stage %q not found", sel))
			return
		}
		st := timeline.InitialState(g, s.view).Select(sel)
		opts.State = &st
	}

	res, err := s.runner.Execute(r.Context(), g, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if res.CacheInfo.RenderHit {
		w.Header().Set("X-Cache", "HIT")
	} else if res.CacheInfo.Cacheable {
		w.Header().Set("X-Cache", "MISS")
	}
	writeBytes(w, contentTypes[format], res.Artifacts[format])
}

// =============================================================================
// Viewer sessions
// =============================================================================

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	req := createRequest{Options: s.view}
	if err := decodeBody(r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}

	var sopts []timeline.SessionOption
	sopts = append(sopts, timeline.WithLogger(s.logger))
	if req.State != nil {
		sopts = append(sopts, timeline.WithInitialState(*req.State))
	}
	ts, err := timeline.NewSession(req.Options, s.clock, sopts...)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	g, err := s.snapshot()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := ts.Refresh(r.Context(), g); err != nil {
		s.writeError(w, r, flerrors.Wrap(flerrors.ErrCodeInvalidGraph, err, "layout graph %s", g.ID))
		return
	}

	v := session.NewViewer(ts, s.ttl)
	if err := s.store.Set(r.Context(), v); err != nil {
		s.writeError(w, r, err)
		return
	}
	data, err := sink.RenderJSON(ts.Snapshot(), sink.WithCompactJSON())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Debug("viewer session created", "id", v.ID, "graph", g.ID)
	writeJSON(w, http.StatusCreated, createResponse{ID: v.ID, Snapshot: data})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	v, ok := s.viewer(w, r)
	if !ok {
		return
	}
	var opts []sink.JSONOption
	if queryBool(r.URL.Query().Get("graph")) {
		opts = append(opts, sink.WithJSONGraph(v.Timeline.Graph()))
	}
	s.writeSnapshot(w, r, v, opts...)
}

func (s *Server) handleTimelineSVG(w http.ResponseWriter, r *http.Request) {
	v, ok := s.viewer(w, r)
	if !ok {
		return
	}
	opts := []sink.SVGOption{
		sink.WithPendingPanel(v.Timeline.Options().PendingPanelWidth),
		sink.WithInteraction(),
	}
	if queryBool(r.URL.Query().Get("overview")) {
		opts = append(opts, sink.WithOverview())
	}
	writeBytes(w, contentTypes[pipeline.FormatSVG], sink.RenderSVG(v.Timeline.Snapshot(), opts...))
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := decodeBody(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	v, ok := s.viewer(w, r)
	if !ok {
		return
	}
	if req.StageID != "" {
		if _, found := v.Timeline.Graph().Node(req.StageID); !found {
			s.writeError(w, r, flerrors.New(flerrors.ErrCodeStageNotFound, "stage %q not found", req.StageID))
			return
		}
	}
	if err := v.Timeline.Select(r.Context(), req.StageID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeSnapshot(w, r, v)
}

func (s *Server) handleScroll(w http.ResponseWriter, r *http.Request) {
	var req scrollRequest
	if err := decodeBody(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.CursorTs == nil && req.Ratio == nil && !req.AutoScroll {
		s.writeError(w, r, flerrors.New(flerrors.ErrCodeInvalidInput, "scroll needs cursor_ts, ratio or auto_scroll"))
		return
	}
	v, ok := s.viewer(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	if req.CursorTs != nil {
		if err := v.Timeline.ScrollX(ctx, *req.CursorTs); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	if req.Ratio != nil {
		if err := v.Timeline.ScrollY(ctx, *req.Ratio); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	if req.AutoScroll {
		if err := v.Timeline.EnableAutoScroll(ctx); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	s.writeSnapshot(w, r, v)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	v, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if v == nil {
		s.writeError(w, r, flerrors.New(flerrors.ErrCodeSessionNotFound, "session %s not found", id))
		return
	}
	if err := s.store.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// viewer resolves the session named in the URL and refreshes it from the
// graph source. It writes the error response itself and reports false when
// the request cannot continue.
func (s *Server) viewer(w http.ResponseWriter, r *http.Request) (*session.Viewer, bool) {
	id := chi.URLParam(r, "id")
	v, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	if v == nil {
		s.writeError(w, r, flerrors.New(flerrors.ErrCodeSessionNotFound, "session %s not found", id))
		return nil, false
	}

	g, err := s.snapshot()
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	// A failed refresh keeps the previous snapshot; the client still gets a
	// consistent view.
	if err := v.Timeline.Refresh(r.Context(), g); err != nil {
		s.logger.Warn("session refresh failed", "id", id, "graph", g.ID, "err", err)
	}
	return v, true
}

func (s *Server) writeSnapshot(w http.ResponseWriter, r *http.Request, v *session.Viewer, opts ...sink.JSONOption) {
	data, err := sink.RenderJSON(v.Timeline.Snapshot(), opts...)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeBytes(w, contentTypes[pipeline.FormatJSON], data)
}

// snapshot reads the source once and validates the result.
func (s *Server) snapshot() (*graph.Graph, error) {
	g := s.source.Snapshot()
	if g == nil {
		if es, ok := s.source.(interface{ Err() error }); ok && es.Err() != nil {
			return nil, flerrors.Wrap(flerrors.ErrCodeNotFound, es.Err(), "graph unavailable")
		}
		return nil, flerrors.New(flerrors.ErrCodeNotFound, "graph unavailable")
	}
	if err := g.Validate(); err != nil {
		return nil, flerrors.Wrap(flerrors.ErrCodeInvalidGraph, err, "graph %s", g.ID)
	}
	return g, nil
}

// =============================================================================
// Encoding helpers
// =============================================================================

func decodeBody(r *http.Request, v any, optional bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return flerrors.Wrap(flerrors.ErrCodeInvalidInput, err, "decode request body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeBytes(w http.ResponseWriter, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func queryBool(v string) bool {
	b, _ := strconv.ParseBool(v)
	return b
}

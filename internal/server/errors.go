package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	flerrors "github.com/matzehuels/flowlane/pkg/errors"
	"github.com/matzehuels/flowlane/pkg/observability"
	"github.com/matzehuels/flowlane/pkg/session"
	"github.com/matzehuels/flowlane/pkg/timeline"
)

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// statusFor maps an error code to its HTTP status.
func statusFor(code flerrors.Code) int {
	switch code {
	case flerrors.ErrCodeInvalidInput, flerrors.ErrCodeInvalidOptions,
		flerrors.ErrCodeInvalidFormat, flerrors.ErrCodeInvalidPath, flerrors.ErrCodeInvalidCache:
		return http.StatusBadRequest
	case flerrors.ErrCodeInvalidGraph, flerrors.ErrCodeMissingDependency:
		return http.StatusUnprocessableEntity
	case flerrors.ErrCodeNotFound, flerrors.ErrCodeStageNotFound,
		flerrors.ErrCodeFileNotFound, flerrors.ErrCodeSessionNotFound:
		return http.StatusNotFound
	case flerrors.ErrCodeCacheUnavailable:
		return http.StatusServiceUnavailable
	case flerrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case flerrors.ErrCodeUnsupported:
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

// classify attaches a code to errors from packages that return plain
// sentinel errors.
func classify(err error) flerrors.Code {
	if code := flerrors.GetCode(err); code != "" {
		return code
	}
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrExpired):
		return flerrors.ErrCodeSessionNotFound
	case errors.Is(err, timeline.ErrNoGraph):
		return flerrors.ErrCodeNotFound
	}
	return flerrors.ErrCodeInternal
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := classify(err)
	status := statusFor(code)
	msg := flerrors.UserMessage(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	if code == flerrors.ErrCodeInternal {
		msg = "internal error"
	}
	writeJSON(w, status, errorResponse{
		Code:      string(code),
		Message:   msg,
		RequestID: middleware.GetReqID(r.Context()),
	})
}

// instrument reports requests to the HTTP hooks and logs them at debug
// level.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		hooks := observability.HTTP()
		hooks.OnRequest(r.Context(), r.Method, r.URL.Path)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		hooks.OnResponse(r.Context(), r.Method, r.URL.Path, status, elapsed)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", elapsed,
			"request_id", middleware.GetReqID(r.Context()))
	})
}

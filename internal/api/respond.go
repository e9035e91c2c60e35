package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/kalambet/attune/internal/apperr"
)

// errNotConfigured marks operations whose backing service is disabled.
var errNotConfigured = errors.New("not configured")

type errorBody struct {
	Type     string         `json:"type"`
	Message  string         `json:"message"`
	Hints    map[string]any `json:"hints,omitempty"`
	Upstream *upstreamInfo  `json:"upstream,omitempty"`
	Detail   string         `json:"detail,omitempty"`
}

type upstreamInfo struct {
	Service string `json:"service"`
	Status  int    `json:"status"`
	Reason  string `json:"reason"`
}

type errorResponse struct {
	Error     errorBody `json:"error"`
	RequestID string    `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("writing response", "error", err)
	}
}

func httpError(w http.ResponseWriter, r *http.Request, code int, errType string, format string, args ...any) {
	writeJSON(w, code, errorResponse{
		Error:     errorBody{Type: errType, Message: fmt.Sprintf(format, args...)},
		RequestID: requestID(r.Context()),
	})
}

// writeError maps the error taxonomy onto a status code and a structured
// body. Internal error text is only exposed in development.
func writeError(w http.ResponseWriter, r *http.Request, deps Deps, err error) {
	body := errorBody{Type: apperr.Kind(err), Message: err.Error()}
	code := http.StatusInternalServerError

	var (
		ve *apperr.ValidationError
		nf *apperr.NotFoundError
		up *apperr.UpstreamError
	)
	switch {
	case errors.As(err, &ve):
		code = http.StatusBadRequest
		if len(ve.Fields) > 0 {
			body.Hints = map[string]any{"fields": ve.Fields}
		}
	case errors.As(err, &nf):
		code = http.StatusNotFound
		body.Hints = nf.Hints
	case errors.As(err, &up):
		code = http.StatusBadGateway
		body.Upstream = &upstreamInfo{Service: up.Service, Status: up.Status, Reason: up.Reason}
	case errors.Is(err, errNotConfigured):
		code = http.StatusServiceUnavailable
		body.Type = "not_configured"
	default:
		body.Message = "an unexpected error occurred"
	}
	if deps.Development {
		body.Detail = err.Error()
	}

	level := slog.LevelWarn
	if code >= 500 {
		level = slog.LevelError
	}
	deps.Logger.Log(r.Context(), level, "request failed",
		"kind", body.Type,
		"status", code,
		"path", r.URL.Path,
		"request_id", requestID(r.Context()),
		"error", err,
	)

	writeJSON(w, code, errorResponse{Error: body, RequestID: requestID(r.Context())})
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return apperr.Invalid("invalid request body: %v", err)
	}
	return nil
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cuemby/hutch/pkg/types"
)

// errorBody is the uniform error envelope returned by every endpoint.
type errorBody struct {
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// statusForKind maps the error taxonomy onto HTTP status codes.
func statusForKind(kind types.Kind) int {
	switch kind {
	case types.KindValidation, types.KindLimitReached:
		return http.StatusBadRequest
	case types.KindAuthRequired, types.KindAuthFailed:
		return http.StatusUnauthorized
	case types.KindUnentitled, types.KindForbidden:
		return http.StatusForbidden
	case types.KindNotFound:
		return http.StatusNotFound
	case types.KindConflict:
		return http.StatusConflict
	case types.KindRateLimited:
		return http.StatusTooManyRequests
	case types.KindUpstreamUnreachable, types.KindProviderDown:
		return http.StatusBadGateway
	case types.KindNotRunning, types.KindUnreachable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respond writes body as JSON with the given status.
func respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// renderError writes the error envelope for err. Classified errors carry
// their message and details to the client; anything unclassified becomes
// a generic 500 so internals never leak.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	kind := types.KindOf(err)
	status := statusForKind(kind)

	body := errorBody{Error: string(kind), Message: "internal server error"}
	var typed *types.Error
	if errors.As(err, &typed) && kind != types.KindInternal {
		body.Message = typed.Message
		body.Details = typed.Details
	}

	if status >= http.StatusInternalServerError {
		s.log.Error().
			Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
	}

	respond(w, status, body)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.renderError(w, r, types.NewError(types.KindNotFound, "route not found"))
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusMethodNotAllowed, errorBody{
		Error:   string(types.KindValidation),
		Message: "method not allowed",
	})
}

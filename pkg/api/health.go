package api

import (
	"context"
	"net/http"
	"time"
)

// healthPingTimeout bounds the database probe so a hung pool cannot
// hang the health endpoint.
const healthPingTimeout = 2 * time.Second

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// handleHealth reports process liveness plus database reachability.
// It answers 503 when the database does not respond, so load balancers
// drain a node whose persistence is gone.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		s.log.Error().Err(err).Msg("health check database ping failed")
		respond(w, http.StatusServiceUnavailable, healthResponse{Status: "degraded", Database: "unreachable"})
		return
	}

	respond(w, http.StatusOK, healthResponse{Status: "ok", Database: "ok"})
}

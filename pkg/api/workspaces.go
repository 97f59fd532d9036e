package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cuemby/hutch/pkg/config"
	"github.com/cuemby/hutch/pkg/metrics"
	"github.com/cuemby/hutch/pkg/types"
	"github.com/cuemby/hutch/pkg/workspace"
)

type workspaceView struct {
	ID            uuid.UUID            `json:"id"`
	Name          string               `json:"name"`
	RuntimeState  types.WorkspaceState `json:"runtime_state"`
	CPUQuota      float64              `json:"cpu_quota"`
	MemoryBytes   int64                `json:"memory_bytes"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
	LastStartedAt *time.Time           `json:"last_started_at,omitempty"`

	// ProxyCredential appears only in single-workspace responses; the
	// list view omits it.
	ProxyCredential string `json:"proxy_credential,omitempty"`
}

func toWorkspaceView(ws *types.Workspace, includeCredential bool) workspaceView {
	view := workspaceView{
		ID:            ws.ID,
		Name:          ws.Name,
		RuntimeState:  ws.RuntimeState,
		CPUQuota:      ws.CPUQuota,
		MemoryBytes:   ws.MemoryBytes,
		CreatedAt:     ws.CreatedAt,
		UpdatedAt:     ws.UpdatedAt,
		LastStartedAt: ws.LastStartedAt,
	}
	if includeCredential {
		view.ProxyCredential = ws.ProxyCredential
	}
	return view
}

// observeWorkspaceOp counts a lifecycle operation outcome.
func observeWorkspaceOp(operation string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	metrics.WorkspaceOperationsTotal.WithLabelValues(operation, result).Inc()
}

// workspaceID parses the {id} route parameter.
func workspaceID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, types.NewError(types.KindValidation, "invalid workspace id")
	}
	return id, nil
}

func (s *Server) handleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	workspaces, err := s.workspaces.List(r.Context(), currentUser(r.Context()).ID)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	views := make([]workspaceView, 0, len(workspaces))
	for _, ws := range workspaces {
		views = append(views, toWorkspaceView(ws, false))
	}
	respond(w, http.StatusOK, map[string]any{"workspaces": views, "count": len(views)})
}

func (s *Server) handleCreateWorkspace(w http.ResponseWriter, r *http.Request) {
	var req createWorkspaceRequest
	if err := s.decode(r, &req); err != nil {
		s.renderError(w, r, err)
		return
	}

	var limits workspace.Limits
	if req.CPULimit != nil {
		limits.CPUQuota = *req.CPULimit
	}
	if req.MemoryLimit != nil {
		bytes, err := config.ParseMemorySize(*req.MemoryLimit)
		if err != nil {
			s.renderError(w, r, types.NewError(types.KindValidation, "invalid request").
				WithDetails(map[string]any{"memoryLimit": "must be a size like 512m or 2g"}))
			return
		}
		limits.MemoryBytes = bytes
	}

	ws, err := s.workspaces.Create(r.Context(), currentUser(r.Context()).ID, req.Name, limits)
	observeWorkspaceOp("create", err)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	respond(w, http.StatusCreated, map[string]any{"workspace": toWorkspaceView(ws, true)})
}

func (s *Server) handleGetWorkspace(w http.ResponseWriter, r *http.Request) {
	id, err := workspaceID(r)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	ws, err := s.workspaces.Get(r.Context(), currentUser(r.Context()).ID, id)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	respond(w, http.StatusOK, map[string]any{"workspace": toWorkspaceView(ws, true)})
}

func (s *Server) handleStartWorkspace(w http.ResponseWriter, r *http.Request) {
	id, err := workspaceID(r)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	ws, err := s.workspaces.Start(r.Context(), currentUser(r.Context()).ID, id)
	observeWorkspaceOp("start", err)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	respond(w, http.StatusOK, map[string]any{"workspace": toWorkspaceView(ws, true)})
}

func (s *Server) handleStopWorkspace(w http.ResponseWriter, r *http.Request) {
	id, err := workspaceID(r)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	ws, err := s.workspaces.Stop(r.Context(), currentUser(r.Context()).ID, id)
	observeWorkspaceOp("stop", err)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	respond(w, http.StatusOK, map[string]any{"workspace": toWorkspaceView(ws, true)})
}

func (s *Server) handleDeleteWorkspace(w http.ResponseWriter, r *http.Request) {
	id, err := workspaceID(r)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	err = s.workspaces.Delete(r.Context(), currentUser(r.Context()).ID, id)
	observeWorkspaceOp("delete", err)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

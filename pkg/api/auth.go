package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/hutch/pkg/types"
)

type userView struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserView(u *types.User) userView {
	return userView{ID: u.ID, Email: u.Email, CreatedAt: u.CreatedAt}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := s.decode(r, &req); err != nil {
		s.renderError(w, r, err)
		return
	}

	user, err := s.auth.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	respond(w, http.StatusCreated, map[string]any{"user": toUserView(user)})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := s.decode(r, &req); err != nil {
		s.renderError(w, r, err)
		return
	}

	user, token, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	respond(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_in": int(s.auth.TTL().Seconds()),
		"user":       toUserView(user),
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]any{"user": toUserView(currentUser(r.Context()))})
}

// handleLogout acknowledges the client discarding its token. Tokens are
// stateless; expiry is the only server-side revocation.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]any{"message": "logged out"})
}

package web

import (
	"net/http"

	"github.com/JonMunkholm/chemequip/internal/core"
	webmw "github.com/JonMunkholm/chemequip/internal/web/middleware"
)

// sessionResponse is returned by register and login.
type sessionResponse struct {
	User  userView `json:"user"`
	Token string   `json:"token"`
}

// handleRegister creates an account and returns its first token.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	f, err := decodeFields(w, r, "username", "email", "password")
	if err != nil {
		respondError(w, r, err)
		return
	}

	sess, err := s.service.Register(r.Context(), f["username"], f["email"], f["password"])
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, sessionResponse{User: toUserView(sess.User), Token: sess.Token})
}

// handleLogin exchanges credentials for a token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	f, err := decodeFields(w, r, "username", "password")
	if err != nil {
		respondError(w, r, err)
		return
	}

	sess, err := s.service.Login(r.Context(), f["username"], f["password"])
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{User: toUserView(sess.User), Token: sess.Token})
}

// handleLogout revokes the token used for this request.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Logout(r.Context(), webmw.TokenFromRequest(r)); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

var _ webmw.Authenticator = (*core.Service)(nil)

// internal/handlers/session.go
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gatherat/gatherat/internal/auth"
)

// ClaimName mints a new anonymous identity: it mirrors a user document
// into the store, signs an identity token with the generated user id
// and display name, and sets it as a cookie.
func (s *Server) ClaimName(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DisplayName string `json:"displayName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request payload", http.StatusBadRequest)
		return
	}
	name := strings.TrimSpace(req.DisplayName)
	if len(name) < 2 || len(name) > 50 {
		http.Error(w, "display name must be 2-50 characters", http.StatusBadRequest)
		return
	}

	userID, err := s.Users.Create(r.Context(), name)
	if err != nil {
		s.writeError(w, err)
		return
	}

	token, err := auth.CreateToken(auth.Identity{UserID: userID, DisplayName: name})
	if err != nil {
		s.writeError(w, fmt.Errorf("sign identity token: %w", err))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     identityCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusCreated, map[string]string{
		"userId":      userID,
		"displayName": name,
	})
}

// WhoAmI echoes the identity carried by the cookie.
func (s *Server) WhoAmI(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		http.Error(w, "no identity", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"userId":      id.UserID,
		"displayName": id.DisplayName,
	})
}

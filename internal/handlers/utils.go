// internal/handlers/utils.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gatherat/gatherat/internal/auth"
	"github.com/gatherat/gatherat/internal/comment"
	"github.com/gatherat/gatherat/internal/docstore"
	"github.com/gatherat/gatherat/internal/option"
	"github.com/gatherat/gatherat/internal/room"
	"github.com/gatherat/gatherat/internal/session"
	"github.com/gatherat/gatherat/internal/vote"
)

const identityCookie = "identity_token"

// extractCookieToken extracts a named cookie value from "Cookie" header, or returns empty if not found.
func extractCookieToken(cookieHeader, cookieName string) string {
	parts := strings.Split(cookieHeader, cookieName+"=")
	if len(parts) < 2 {
		return ""
	}
	token := parts[1]
	if idx := strings.Index(token, ";"); idx != -1 {
		token = token[:idx]
	}
	return token
}

// identity reads and verifies the identity cookie.
func identity(r *http.Request) (auth.Identity, error) {
	token := extractCookieToken(r.Header.Get("Cookie"), identityCookie)
	if token == "" {
		return auth.Identity{}, errors.New("missing identity cookie")
	}
	return auth.VerifyToken(token)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain failures onto HTTP statuses: validation 400,
// not-found 404, lifecycle conflicts 409, exhausted transaction
// retries 503, everything else 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, room.ErrValidation),
		errors.Is(err, option.ErrValidation),
		errors.Is(err, comment.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, room.ErrNotFound),
		errors.Is(err, vote.ErrOptionNotFound),
		errors.Is(err, session.ErrUserNotFound),
		errors.Is(err, docstore.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, vote.ErrVotingClosed):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, docstore.ErrTxRetriesExceeded):
		http.Error(w, "store is busy, please retry", http.StatusServiceUnavailable)
	default:
		s.Logger.Errorf("internal error: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

package server

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeySessionID stores the session the request acts on
const ContextKeySessionID ContextKey = "session_id"

// RequireSessionID resolves the session from the session_id query
// parameter, falling back to the session cookie, and rejects requests
// that name neither.
func (s *Server) RequireSessionID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := sessionIDFromRequest(r)
		if sessionID == "" {
			writeError(w, http.StatusBadRequest, "session_id is required")
			return
		}
		ctx := context.WithValue(r.Context(), ContextKeySessionID, sessionID)
		next(w, r.WithContext(ctx))
	}
}

func sessionIDFromContext(ctx context.Context) string {
	sessionID, _ := ctx.Value(ContextKeySessionID).(string)
	return sessionID
}

// RequireAdminToken guards operator routes with the configured admin bearer
// token. The route is not served at all when no token is configured.
func (s *Server) RequireAdminToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		adminToken := s.config.GetAdminToken()
		if adminToken == "" {
			writeError(w, http.StatusNotFound, "not found")
			return
		}

		scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
		if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="tidal-mcp"`)
			writeError(w, http.StatusUnauthorized, "admin token required")
			return
		}
		if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(adminToken)) != 1 {
			writeError(w, http.StatusForbidden, "invalid admin token")
			return
		}
		next(w, r)
	}
}

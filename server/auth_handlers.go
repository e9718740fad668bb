package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/jrsteele09/tidal-mcp/sessions"
)

const maxRequestBody = 64 << 10

type loginRequest struct {
	SessionID   string `json:"session_id"`
	CallbackURL string `json:"callback_url"`
}

// LoginHandler starts (or confirms) a TIDAL login for the browser's session
// and remembers the session in a cookie.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		body := http.MaxBytesReader(w, r.Body, maxRequestBody)
		if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.SessionID == "" {
			req.SessionID = sessionIDFromRequest(r)
		}

		result := s.lifecycle.Authenticate(r.Context(), req.SessionID, req.CallbackURL)
		if result.Status != sessions.StatusError && result.SessionID != "" {
			s.SetSessionCookie(w, r, result.SessionID)
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func (s *Server) StatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.lifecycle.CheckLoginStatus(r.Context(), sessionIDFromContext(r.Context())))
	}
}

// CallbackHandler sends the browser back to the calling application once
// the session is authenticated, and reports the status otherwise.
func (s *Server) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := sessionIDFromContext(r.Context())
		result := s.lifecycle.CheckLoginStatus(r.Context(), sessionID)
		if result.Authenticated && result.CallbackURL != "" {
			http.Redirect(w, r, withSessionID(result.CallbackURL, sessionID), http.StatusFound)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result := s.lifecycle.Logout(r.Context(), sessionIDFromContext(r.Context()))
		s.ClearSessionCookie(w, r)
		writeJSON(w, http.StatusOK, result)
	}
}

func (s *Server) SessionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		infos, err := s.lifecycle.ListActiveSessions(r.Context())
		if err != nil {
			s.logger.Error().Err(err).Msg("listing sessions failed")
			writeError(w, http.StatusServiceUnavailable, "session storage is unavailable")
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Sessions []sessions.SessionInfo `json:"sessions"`
			Count    int                    `json:"count"`
		}{Sessions: infos, Count: len(infos)})
	}
}

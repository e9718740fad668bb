package server

import (
	"net/http"
)

func (s *Server) initRoutes() {
	// LOGIN
	s.RegisterRouteFunc("POST "+RouteAuthLogin, ChainMiddleware(s.LoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteAuthStatus, ChainMiddleware(s.StatusHandler(), s.APIMiddleware(s.RequireSessionID)...))
	s.RegisterRouteFunc("GET "+RouteAuthCallback, ChainMiddleware(s.CallbackHandler(), s.APIMiddleware(s.RequireSessionID)...))
	s.RegisterRouteFunc("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware(s.RequireSessionID)...))
	s.RegisterRouteFunc("GET "+RouteAuthSessions, ChainMiddleware(s.SessionsHandler(), s.APIMiddleware(s.RequireAdminToken)...))

	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
	if s.metricsHandler != nil {
		s.RegisterRouteHandler("GET "+RouteMetrics, s.metricsHandler)
	}
	if s.mcpHandler != nil {
		s.RegisterRouteHandler(RouteMCP, s.mcpHandler)
	}
}

// HealthHandler reports liveness and the number of logins in flight.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, struct {
			Status        string `json:"status"`
			PendingLogins int    `json:"pending_logins"`
		}{Status: "ok", PendingLogins: s.lifecycle.PendingCount()})
	}
}

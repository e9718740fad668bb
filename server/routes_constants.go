package server

// Route path constants
const (
	// Auth Routes
	RouteAuthLogin    = "/auth/login"
	RouteAuthStatus   = "/auth/status"
	RouteAuthCallback = "/auth/callback"
	RouteAuthLogout   = "/auth/logout"
	RouteAuthSessions = "/auth/sessions"

	// Operational Routes
	RouteHealth  = "/health"
	RouteMetrics = "/metrics"

	// MCP streamable HTTP transport
	RouteMCP = "/mcp"
)

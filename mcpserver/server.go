// Package mcpserver exposes the session lifecycle as MCP tools.
package mcpserver

import (
	"context"
	"net/http"

	"github.com/jrsteele09/tidal-mcp/sessions"
	"github.com/jrsteele09/tidal-mcp/tidal"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
)

const serverName = "tidal-mcp"

// Lifecycle is the part of sessions.Manager the tools call.
type Lifecycle interface {
	Authenticate(ctx context.Context, sessionID, callbackURL string) sessions.AuthResult
	CheckLoginStatus(ctx context.Context, sessionID string) sessions.StatusResult
	CheckAuthenticationStatus(ctx context.Context, sessionID string) sessions.AuthenticationStatus
	GetAuthenticatedSession(ctx context.Context, sessionID string) (tidal.Session, error)
	ListActiveSessions(ctx context.Context) ([]sessions.SessionInfo, error)
	Logout(ctx context.Context, sessionID string) sessions.StatusResult
	DefaultSessionID() string
}

var _ Lifecycle = (*sessions.Manager)(nil)

type options struct {
	sessionListing bool
}

type Option func(*options)

// WithSessionListing registers list_sessions. It hands out every session
// id, so only enable it for a trusted local client.
func WithSessionListing() Option {
	return func(o *options) {
		o.sessionListing = true
	}
}

// New returns an MCP server with the session tools registered.
func New(lifecycle Lifecycle, version string, logger zerolog.Logger, opts ...Option) *server.MCPServer {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	s := server.NewMCPServer(
		serverName,
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)
	s.AddTool(loginTool(), handleLogin(lifecycle))
	s.AddTool(checkLoginStatusTool(), handleCheckLoginStatus(lifecycle))
	s.AddTool(checkAuthenticationStatusTool(), handleCheckAuthenticationStatus(lifecycle))
	s.AddTool(getUserTool(), handleGetUser(lifecycle, logger))
	s.AddTool(logoutTool(), handleLogout(lifecycle))
	if o.sessionListing {
		s.AddTool(listSessionsTool(), handleListSessions(lifecycle, logger))
	}
	return s
}

// NewHTTPHandler serves s over streamable HTTP.
func NewHTTPHandler(s *server.MCPServer) http.Handler {
	return server.NewStreamableHTTPServer(s,
		server.WithStateLess(true),
	)
}

// ServeStdio serves s on stdin and stdout until the input closes.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

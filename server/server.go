// Package server is the HTTP surface for browser-based TIDAL login and the
// MCP streamable HTTP transport.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jrsteele09/tidal-mcp/internal/config"
	"github.com/jrsteele09/tidal-mcp/sessions"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Lifecycle is the part of sessions.Manager the HTTP handlers call.
type Lifecycle interface {
	Authenticate(ctx context.Context, sessionID, callbackURL string) sessions.AuthResult
	CheckLoginStatus(ctx context.Context, sessionID string) sessions.StatusResult
	ListActiveSessions(ctx context.Context) ([]sessions.SessionInfo, error)
	Logout(ctx context.Context, sessionID string) sessions.StatusResult
	PendingCount() int
}

var _ Lifecycle = (*sessions.Manager)(nil)

type Server struct {
	env       string // Environment (e.g., "DEV", "PROD")
	router    chi.Router
	routes    []string
	config    config.Config
	lifecycle Lifecycle
	logger    zerolog.Logger

	mcpHandler     http.Handler
	metricsHandler http.Handler
}

type Option func(*Server)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMCPHandler mounts h on /mcp.
func WithMCPHandler(h http.Handler) Option {
	return func(s *Server) {
		s.mcpHandler = h
	}
}

// WithMetricsHandler mounts h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metricsHandler = h
	}
}

func New(config config.Config, lifecycle Lifecycle, options ...Option) (*Server, error) {
	if config == nil {
		return nil, errors.New("[Server New] config is required")
	}
	if lifecycle == nil {
		return nil, errors.New("[Server New] session lifecycle is required")
	}

	s := &Server{
		env:       config.GetEnv(),
		router:    chi.NewRouter(),
		config:    config,
		lifecycle: lifecycle,
		logger:    zerolog.Nop(),
	}
	for _, opt := range options {
		opt(s)
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(handlerMiddleware(s.LoggingMiddleware))
	s.router.Use(handlerMiddleware(s.CorsMiddleware))

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// RegisterRouteHandler takes a "METHOD /path" pattern; a bare path matches
// every method.
func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	method, path, ok := strings.Cut(pattern, " ")
	if !ok {
		s.router.Handle(pattern, handler)
		return
	}
	s.router.Method(method, path, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.RegisterRouteHandler(pattern, http.HandlerFunc(handler))
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		method, path, ok := strings.Cut(route, " ")
		if !ok {
			method, path = "*", route
		}
		s.logRoute(method, path)
	}
}

func (s *Server) logRoute(method, path string) {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	color, ok := methodColors[method]
	if !ok {
		color = Gray
	}
	s.logger.Info().Msgf("[%s%s%s] %s", color, paddedMethod, ResetColor, path)
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}

package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	errs "github.com/jrsteele09/tidal-mcp/internal/errors"
	"github.com/jrsteele09/tidal-mcp/sessions"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
)

func handleLogin(lifecycle Lifecycle) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID := request.GetString("session_id", "")
		callbackURL := request.GetString("callback_url", "")
		return jsonResult(lifecycle.Authenticate(ctx, sessionID, callbackURL))
	}
}

func handleCheckLoginStatus(lifecycle Lifecycle) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID, err := request.RequireString("session_id")
		if err != nil || sessionID == "" {
			return errorResult("Error: session_id parameter is required"), nil
		}
		return jsonResult(lifecycle.CheckLoginStatus(ctx, sessionID))
	}
}

func handleCheckAuthenticationStatus(lifecycle Lifecycle) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(lifecycle.CheckAuthenticationStatus(ctx, request.GetString("session_id", "")))
	}
}

// handleGetUser hands the validated TIDAL connection for a session to the
// caller and reports who it belongs to.
func handleGetUser(lifecycle Lifecycle, logger zerolog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID := request.GetString("session_id", "")
		if sessionID == "" {
			sessionID = lifecycle.DefaultSessionID()
		}
		if sessionID == "" {
			return errorResult("Error: session_id parameter is required when no default session is configured"), nil
		}

		session, err := lifecycle.GetAuthenticatedSession(ctx, sessionID)
		if err != nil {
			if errs.Is(err, errs.ErrNotAuthenticated) {
				return errorResult(fmt.Sprintf("Session %s is not authenticated with TIDAL. Use tidal_login to authenticate.", sessionID)), nil
			}
			logger.Error().Err(err).Str("session_id", sessionID).Msg("resolving session failed")
			return errorResult("Error: session storage is unavailable"), nil
		}
		return jsonResult(struct {
			SessionID string            `json:"session_id"`
			User      sessions.UserInfo `json:"user"`
		}{SessionID: sessionID, User: sessions.NewUserInfo(session.User())})
	}
}

func handleListSessions(lifecycle Lifecycle, logger zerolog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		infos, err := lifecycle.ListActiveSessions(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("listing sessions failed")
			return errorResult("Error: session storage is unavailable"), nil
		}
		return jsonResult(struct {
			Sessions []sessions.SessionInfo `json:"sessions"`
			Count    int                    `json:"count"`
		}{Sessions: infos, Count: len(infos)})
	}
}

func handleLogout(lifecycle Lifecycle) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID, err := request.RequireString("session_id")
		if err != nil || sessionID == "" {
			return errorResult("Error: session_id parameter is required"), nil
		}
		return jsonResult(lifecycle.Logout(ctx, sessionID))
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding tool result: %w", err)
	}
	return textResult(string(data)), nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(message),
		},
		IsError: true,
	}
}

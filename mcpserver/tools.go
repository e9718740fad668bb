package mcpserver

import (
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	ToolLogin                     = "tidal_login"
	ToolCheckLoginStatus          = "check_login_status"
	ToolCheckAuthenticationStatus = "check_authentication_status"
	ToolGetUser                   = "get_user"
	ToolListSessions              = "list_sessions"
	ToolLogout                    = "tidal_logout"
)

func loginTool() mcp.Tool {
	return mcp.NewTool(ToolLogin,
		mcp.WithDescription("Start logging in to TIDAL. Returns a URL the user must open to approve access, or success if the session is already authenticated. Poll check_login_status afterwards."),
		mcp.WithString("session_id",
			mcp.Description("Session to authenticate. A new one is generated when omitted; keep it for later calls."),
		),
		mcp.WithString("callback_url",
			mcp.Description("http(s) URL to send the browser to once the login completes"),
		),
	)
}

func checkLoginStatusTool() mcp.Tool {
	return mcp.NewTool(ToolCheckLoginStatus,
		mcp.WithDescription("Check whether a TIDAL login started with tidal_login has completed. Never waits for the user."),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Session returned by tidal_login"),
		),
	)
}

func checkAuthenticationStatusTool() mcp.Tool {
	return mcp.NewTool(ToolCheckAuthenticationStatus,
		mcp.WithDescription("Report whether a session holds valid TIDAL credentials. Uses the configured default session when session_id is omitted."),
		mcp.WithString("session_id",
			mcp.Description("Session to check"),
		),
	)
}

func getUserTool() mcp.Tool {
	return mcp.NewTool(ToolGetUser,
		mcp.WithDescription("Return the TIDAL user a session is logged in as. Uses the configured default session when session_id is omitted."),
		mcp.WithString("session_id",
			mcp.Description("Authenticated session"),
		),
	)
}

func listSessionsTool() mcp.Tool {
	return mcp.NewTool(ToolListSessions,
		mcp.WithDescription("List every known TIDAL session with its authentication state."),
	)
}

func logoutTool() mcp.Tool {
	return mcp.NewTool(ToolLogout,
		mcp.WithDescription("Forget the TIDAL credentials stored for a session."),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Session to log out"),
		),
	)
}

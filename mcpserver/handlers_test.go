package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/jrsteele09/tidal-mcp/credentials"
	"github.com/jrsteele09/tidal-mcp/sessions"
	"github.com/jrsteele09/tidal-mcp/storage/memory"
	"github.com/jrsteele09/tidal-mcp/tidal"
	"github.com/jrsteele09/tidal-mcp/tidal/tidalfakes"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*sessions.Manager, *tidalfakes.Backend) {
	t.Helper()
	store, err := credentials.NewStore(memory.NewRepository())
	require.NoError(t, err)
	backend := tidalfakes.NewBackend()
	m, err := sessions.NewManager(store, backend.Factory())
	require.NoError(t, err)
	return m, backend
}

func call(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	request := mcp.CallToolRequest{}
	request.Params.Arguments = args
	result, err := handler(context.Background(), request)
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func decode(t *testing.T, result *mcp.CallToolResult, v any) {
	t.Helper()
	require.False(t, result.IsError)
	require.Len(t, result.Content, 1)
	require.NoError(t, json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), v))
}

func TestLoginFlowThroughTools(t *testing.T) {
	m, backend := newTestManager(t)

	var login map[string]any
	decode(t, call(t, handleLogin(m), map[string]interface{}{
		"session_id":   "s1",
		"callback_url": "https://example.com/done",
	}), &login)
	assert.Equal(t, "pending", login["status"])
	assert.Equal(t, "s1", login["session_id"])
	assert.NotEmpty(t, login["auth_url"])
	assert.EqualValues(t, 300, login["expires_in"])

	var status map[string]any
	decode(t, call(t, handleCheckLoginStatus(m), map[string]interface{}{"session_id": "s1"}), &status)
	assert.Equal(t, "pending", status["status"])
	assert.Equal(t, false, status["authenticated"])

	backend.Complete(backend.LastLogin(), tidal.User{ID: "12345", Username: "listener"})

	decode(t, call(t, handleCheckLoginStatus(m), map[string]interface{}{"session_id": "s1"}), &status)
	assert.Equal(t, "success", status["status"])
	assert.Equal(t, true, status["authenticated"])
	assert.Equal(t, "https://example.com/done", status["callback_url"])
	user := status["user"].(map[string]any)
	assert.Equal(t, "12345", user["id"])
	assert.Equal(t, "listener", user["username"])
	assert.Equal(t, "N/A", user["email"])

	var auth map[string]any
	decode(t, call(t, handleCheckAuthenticationStatus(m), map[string]interface{}{"session_id": "s1"}), &auth)
	assert.Equal(t, true, auth["authenticated"])

	var list struct {
		Sessions []sessions.SessionInfo `json:"sessions"`
		Count    int                    `json:"count"`
	}
	decode(t, call(t, handleListSessions(m, zerolog.Nop()), map[string]interface{}{}), &list)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "s1", list.Sessions[0].SessionID)
	assert.True(t, list.Sessions[0].Authenticated)

	var logout map[string]any
	decode(t, call(t, handleLogout(m), map[string]interface{}{"session_id": "s1"}), &logout)
	assert.Equal(t, "success", logout["status"])

	decode(t, call(t, handleCheckAuthenticationStatus(m), map[string]interface{}{"session_id": "s1"}), &auth)
	assert.Equal(t, false, auth["authenticated"])
	assert.Contains(t, auth["message"], "No session")
}

func TestLoginGeneratesSessionID(t *testing.T) {
	m, _ := newTestManager(t)

	var login map[string]any
	decode(t, call(t, handleLogin(m), map[string]interface{}{}), &login)
	assert.Equal(t, "pending", login["status"])
	assert.NotEmpty(t, login["session_id"])
}

func TestToolsRequireSessionID(t *testing.T) {
	m, _ := newTestManager(t)

	assert.True(t, call(t, handleCheckLoginStatus(m), map[string]interface{}{}).IsError)
	assert.True(t, call(t, handleLogout(m), map[string]interface{}{"session_id": ""}).IsError)
}

func TestCheckAuthenticationStatusWithoutDefault(t *testing.T) {
	m, _ := newTestManager(t)

	var auth map[string]any
	decode(t, call(t, handleCheckAuthenticationStatus(m), map[string]interface{}{}), &auth)
	assert.Equal(t, false, auth["authenticated"])
	assert.Equal(t, "No session ID provided and no default session configured", auth["message"])
}

func listTools(t *testing.T, opts ...Option) string {
	t.Helper()
	m, _ := newTestManager(t)
	s := New(m, "test", zerolog.Nop(), opts...)

	response := s.HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	data, err := json.Marshal(response)
	require.NoError(t, err)
	return string(data)
}

func TestServerListsTools(t *testing.T) {
	tools := listTools(t)
	for _, name := range []string{ToolLogin, ToolCheckLoginStatus, ToolCheckAuthenticationStatus, ToolGetUser, ToolLogout} {
		assert.Contains(t, tools, `"`+name+`"`)
	}
	assert.NotContains(t, tools, `"`+ToolListSessions+`"`)

	assert.Contains(t, listTools(t, WithSessionListing()), `"`+ToolListSessions+`"`)
}

func TestGetUser(t *testing.T) {
	m, backend := newTestManager(t)

	assert.True(t, call(t, handleGetUser(m, zerolog.Nop()), map[string]interface{}{}).IsError)
	assert.True(t, call(t, handleGetUser(m, zerolog.Nop()), map[string]interface{}{"session_id": "s1"}).IsError)

	call(t, handleLogin(m), map[string]interface{}{"session_id": "s1"})
	backend.Complete(backend.LastLogin(), tidal.User{ID: "12345", Username: "listener", Email: "listener@example.com"})

	var got struct {
		SessionID string            `json:"session_id"`
		User      sessions.UserInfo `json:"user"`
	}
	decode(t, call(t, handleGetUser(m, zerolog.Nop()), map[string]interface{}{"session_id": "s1"}), &got)
	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, sessions.UserInfo{ID: "12345", Username: "listener", Email: "listener@example.com"}, got.User)
}

func TestGetUserDefaultSession(t *testing.T) {
	store, err := credentials.NewStore(memory.NewRepository())
	require.NoError(t, err)
	backend := tidalfakes.NewBackend()
	m, err := sessions.NewManager(store, backend.Factory(), sessions.WithDefaultSessionID("desk"))
	require.NoError(t, err)

	call(t, handleLogin(m), map[string]interface{}{"session_id": "desk"})
	backend.Complete(backend.LastLogin(), tidal.User{ID: "12345", Username: "listener"})

	var got struct {
		SessionID string            `json:"session_id"`
		User      sessions.UserInfo `json:"user"`
	}
	decode(t, call(t, handleGetUser(m, zerolog.Nop()), map[string]interface{}{}), &got)
	assert.Equal(t, "desk", got.SessionID)
	assert.Equal(t, "listener", got.User.Username)
}


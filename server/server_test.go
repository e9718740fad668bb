package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/jrsteele09/tidal-mcp/credentials"
	"github.com/jrsteele09/tidal-mcp/internal/config"
	"github.com/jrsteele09/tidal-mcp/server"
	"github.com/jrsteele09/tidal-mcp/sessions"
	"github.com/jrsteele09/tidal-mcp/storage/memory"
	"github.com/jrsteele09/tidal-mcp/tidal"
	"github.com/jrsteele09/tidal-mcp/tidal/tidalfakes"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var listener = tidal.User{ID: "12345", Username: "listener", Email: "listener@example.com", CountryCode: "GB"}

type failingLister struct {
	*sessions.Manager
}

func (failingLister) ListActiveSessions(context.Context) ([]sessions.SessionInfo, error) {
	return nil, assert.AnError
}

type testServer struct {
	backend *tidalfakes.Backend
	manager *sessions.Manager
	handler http.Handler
}

func newTestServer(t *testing.T, configure func(v *viper.Viper), options ...server.Option) *testServer {
	t.Helper()
	v := viper.New()
	v.Set(config.KeyEnv, "PROD")
	if configure != nil {
		configure(v)
	}

	store, err := credentials.NewStore(memory.NewRepository())
	require.NoError(t, err)
	backend := tidalfakes.NewBackend()
	manager, err := sessions.NewManager(store, backend.Factory())
	require.NoError(t, err)

	s, err := server.New(config.New(v), manager, options...)
	require.NoError(t, err)
	return &testServer{backend: backend, manager: manager, handler: s}
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "tidal_session_id" {
			return c
		}
	}
	t.Fatalf("no session cookie in response")
	return nil
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := server.New(nil, nil)
	assert.Error(t, err)

	_, err = server.New(config.New(viper.New()), nil)
	assert.Error(t, err)
}

func TestBrowserLoginFlow(t *testing.T) {
	ts := newTestServer(t, nil)

	body := strings.NewReader(`{"callback_url":"https://app.example/done?x=1"}`)
	rec := ts.do(httptest.NewRequest(http.MethodPost, server.RouteAuthLogin, body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	res := decode[sessions.AuthResult](t, rec)
	assert.Equal(t, sessions.StatusPending, res.Status)
	assert.NotEmpty(t, res.AuthURL)

	cookie := sessionCookie(t, rec)
	assert.Equal(t, res.SessionID, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.False(t, cookie.Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, 30*24*60*60, cookie.MaxAge)

	// Still pending: the callback reports status instead of redirecting.
	req := httptest.NewRequest(http.MethodGet, server.RouteAuthCallback, nil)
	req.AddCookie(cookie)
	rec = ts.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, sessions.StatusPending, decode[sessions.StatusResult](t, rec).Status)

	ts.backend.Complete(ts.backend.LastLogin(), listener)

	req = httptest.NewRequest(http.MethodGet, server.RouteAuthCallback, nil)
	req.AddCookie(cookie)
	rec = ts.do(req)
	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "app.example", location.Host)
	assert.Equal(t, "1", location.Query().Get("x"))
	assert.Equal(t, res.SessionID, location.Query().Get("session_id"))

	rec = ts.do(httptest.NewRequest(http.MethodGet, server.RouteAuthStatus+"?session_id="+res.SessionID, nil))
	status := decode[sessions.StatusResult](t, rec)
	assert.Equal(t, sessions.StatusSuccess, status.Status)
	require.NotNil(t, status.User)
	assert.Equal(t, "listener", status.User.Username)

	// Logging in again with the cookie reuses the stored session.
	req = httptest.NewRequest(http.MethodPost, server.RouteAuthLogin, nil)
	req.AddCookie(cookie)
	rec = ts.do(req)
	again := decode[sessions.AuthResult](t, rec)
	assert.Equal(t, sessions.StatusSuccess, again.Status)
	assert.Equal(t, "12345", again.UserID)
}

func TestLoginSessionIDFromBody(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(httptest.NewRequest(http.MethodPost, server.RouteAuthLogin, strings.NewReader(`{"session_id":"desk"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "desk", decode[sessions.AuthResult](t, rec).SessionID)
	assert.Equal(t, "desk", sessionCookie(t, rec).Value)
}

func TestLoginRejectsBadInput(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(httptest.NewRequest(http.MethodPost, server.RouteAuthLogin, strings.NewReader(`{not json`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(httptest.NewRequest(http.MethodPost, server.RouteAuthLogin, strings.NewReader(`{"callback_url":"ftp://nope"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, sessions.StatusError, decode[sessions.AuthResult](t, rec).Status)
	assert.Empty(t, rec.Result().Cookies())
}

func TestLoginSecureCookieBehindTLSProxy(t *testing.T) {
	ts := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, server.RouteAuthLogin, nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rec := ts.do(req)
	assert.True(t, sessionCookie(t, rec).Secure)
}

func TestSessionRoutesRequireSessionID(t *testing.T) {
	ts := newTestServer(t, nil)

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, server.RouteAuthStatus, nil),
		httptest.NewRequest(http.MethodGet, server.RouteAuthCallback, nil),
		httptest.NewRequest(http.MethodPost, server.RouteAuthLogout, nil),
	} {
		rec := ts.do(req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, req.URL.Path)
		assert.Equal(t, "session_id is required", decode[server.ErrorResponse](t, rec).Error)
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(httptest.NewRequest(http.MethodPost, server.RouteAuthLogin, strings.NewReader(`{"session_id":"desk"}`)))
	ts.backend.Complete(ts.backend.LastLogin(), listener)
	ts.manager.CheckLoginStatus(context.Background(), "desk")

	req := httptest.NewRequest(http.MethodPost, server.RouteAuthLogout, nil)
	req.AddCookie(sessionCookie(t, rec))
	rec = ts.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, -1, sessionCookie(t, rec).MaxAge)

	status := ts.manager.CheckAuthenticationStatus(context.Background(), "desk")
	assert.False(t, status.Authenticated)
}

const adminToken = "operator-secret"

func withAdminToken(v *viper.Viper) {
	v.Set(config.KeyAdminToken, adminToken)
}

func adminRequest(target string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	return req
}

func TestSessionsAndHealth(t *testing.T) {
	ts := newTestServer(t, withAdminToken)
	ts.do(httptest.NewRequest(http.MethodPost, server.RouteAuthLogin, strings.NewReader(`{"session_id":"desk"}`)))

	rec := ts.do(adminRequest(server.RouteAuthSessions))
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Sessions []sessions.SessionInfo `json:"sessions"`
		Count    int                    `json:"count"`
	}](t, rec)
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, "desk", list.Sessions[0].SessionID)

	rec = ts.do(httptest.NewRequest(http.MethodGet, server.RouteHealth, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","pending_logins":1}`, rec.Body.String())
}

func TestSessionsRequireAdminToken(t *testing.T) {
	ts := newTestServer(t, withAdminToken)
	ts.do(httptest.NewRequest(http.MethodPost, server.RouteAuthLogin, strings.NewReader(`{"session_id":"desk"}`)))

	rec := ts.do(httptest.NewRequest(http.MethodGet, server.RouteAuthSessions, nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
	assert.NotContains(t, rec.Body.String(), "desk")

	req := httptest.NewRequest(http.MethodGet, server.RouteAuthSessions, nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = ts.do(req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NotContains(t, rec.Body.String(), "desk")

	// A session cookie is not an admin credential.
	req = httptest.NewRequest(http.MethodGet, server.RouteAuthSessions, nil)
	req.AddCookie(&http.Cookie{Name: "tidal_session_id", Value: "desk"})
	rec = ts.do(req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionsDisabledWithoutAdminToken(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.do(httptest.NewRequest(http.MethodPost, server.RouteAuthLogin, strings.NewReader(`{"session_id":"desk"}`)))

	rec := ts.do(adminRequest(server.RouteAuthSessions))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotContains(t, rec.Body.String(), "desk")
}

func TestSessionsStorageFailure(t *testing.T) {
	store, err := credentials.NewStore(memory.NewRepository())
	require.NoError(t, err)
	manager, err := sessions.NewManager(store, tidalfakes.NewBackend().Factory())
	require.NoError(t, err)

	v := viper.New()
	withAdminToken(v)
	s, err := server.New(config.New(v), failingLister{manager})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, adminRequest(server.RouteAuthSessions))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCors(t *testing.T) {
	ts := newTestServer(t, func(v *viper.Viper) {
		v.Set(config.KeyAllowedOrigins, "https://app.example")
	})

	req := httptest.NewRequest(http.MethodOptions, server.RouteAuthLogin, nil)
	req.Header.Set("Origin", "https://app.example")
	rec := ts.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Mcp-Session-Id")

	req = httptest.NewRequest(http.MethodGet, server.RouteHealth, nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = ts.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestOptionalHandlersMounted(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(httptest.NewRequest(http.MethodGet, server.RouteMetrics, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	stub := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	ts = newTestServer(t, nil, server.WithMetricsHandler(stub), server.WithMCPHandler(stub))
	rec = ts.do(httptest.NewRequest(http.MethodGet, server.RouteMetrics, nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	rec = ts.do(httptest.NewRequest(http.MethodPost, server.RouteMCP, nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

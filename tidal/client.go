package tidal

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/tidal-mcp/credentials"
	errs "github.com/jrsteele09/tidal-mcp/internal/errors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const (
	deviceAuthPath = "/oauth2/device_authorization"
	tokenPath      = "/oauth2/token"
	sessionsPath   = "/sessions"
	usersPath      = "/users/"

	bearerTokenType = "Bearer"
	defaultTimeout  = 15 * time.Second
)

var _ Session = (*Client)(nil)

// ClientConfig holds what is needed to talk to TIDAL.
type ClientConfig struct {
	ClientID     string
	ClientSecret string
	AuthBaseURL  string
	APIBaseURL   string
	Scopes       []string

	// HTTPClient is used for every request, defaults to a client with a 15s timeout.
	HTTPClient *http.Client
}

// Client is the Session implementation backed by TIDAL's OAuth device flow
// and REST API.
type Client struct {
	cfg        ClientConfig
	oauth      *oauth2.Config
	httpClient *http.Client
	logger     zerolog.Logger

	mu        sync.RWMutex
	token     *oauth2.Token
	isPKCE    bool
	sessionID string
	user      *User
}

// NewFactory returns a Factory producing Clients that share cfg.
func NewFactory(cfg ClientConfig, logger zerolog.Logger) Factory {
	return func() Session {
		return NewClient(cfg, logger)
	}
}

func NewClient(cfg ClientConfig, logger zerolog.Logger) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	authBase := strings.TrimRight(cfg.AuthBaseURL, "/")
	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger.With().Str("component", "tidal").Logger(),
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				DeviceAuthURL: authBase + deviceAuthPath,
				TokenURL:      authBase + tokenPath,
				AuthStyle:     oauth2.AuthStyleInParams,
			},
		},
	}
}

// deviceAuthorization is TIDAL's response to a device authorization request.
type deviceAuthorization struct {
	DeviceCode              string `json:"deviceCode"`
	UserCode                string `json:"userCode"`
	VerificationURI         string `json:"verificationUri"`
	VerificationURIComplete string `json:"verificationUriComplete"`
	ExpiresIn               int    `json:"expiresIn"`
	Interval                int64  `json:"interval"`
}

func (c *Client) StartOAuthLogin(ctx context.Context) (LoginAttempt, *LoginFuture, error) {
	da, err := c.requestDeviceAuthorization(ctx)
	if err != nil {
		return LoginAttempt{}, nil, errors.Wrap(err, "[Client.StartOAuthLogin]")
	}

	authURL := da.VerificationURIComplete
	if authURL == "" {
		authURL = da.VerificationURI
	}
	if !strings.HasPrefix(authURL, "http://") && !strings.HasPrefix(authURL, "https://") {
		authURL = "https://" + authURL
	}

	expiry := time.Duration(da.ExpiresIn) * time.Second
	// The flow outlives the request that started it.
	loginCtx, cancel := context.WithTimeout(c.oauthContext(context.Background()), expiry)
	future := NewLoginFuture(cancel)

	go func() {
		defer cancel()
		tok, err := c.oauth.DeviceAccessToken(loginCtx, &oauth2.DeviceAuthResponse{
			DeviceCode:              da.DeviceCode,
			UserCode:                da.UserCode,
			VerificationURI:         da.VerificationURI,
			VerificationURIComplete: authURL,
			Expiry:                  time.Now().Add(expiry),
			Interval:                da.Interval,
		})
		if err != nil {
			c.logger.Debug().Err(err).Msg("device login did not complete")
			future.Resolve(errors.Wrap(err, "device login"))
			return
		}
		c.setToken(tok)
		c.logger.Debug().Msg("device login completed")
		future.Resolve(nil)
	}()

	return LoginAttempt{
		AuthURL:   authURL,
		UserCode:  da.UserCode,
		ExpiresIn: da.ExpiresIn,
	}, future, nil
}

func (c *Client) requestDeviceAuthorization(ctx context.Context) (*deviceAuthorization, error) {
	form := url.Values{
		"client_id": {c.cfg.ClientID},
		"scope":     {strings.Join(c.cfg.Scopes, " ")},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.oauth.Endpoint.DeviceAuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "device authorization request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, errors.Errorf("device authorization: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var da deviceAuthorization
	if err := json.NewDecoder(resp.Body).Decode(&da); err != nil {
		return nil, errors.Wrap(err, "decoding device authorization")
	}
	if da.DeviceCode == "" || (da.VerificationURIComplete == "" && da.VerificationURI == "") {
		return nil, errors.New("device authorization response is missing the device code or verification uri")
	}
	if da.ExpiresIn <= 0 {
		return nil, errors.Errorf("device authorization has invalid expiry %d", da.ExpiresIn)
	}
	return &da, nil
}

type sessionResponse struct {
	SessionID   string      `json:"sessionId"`
	UserID      json.Number `json:"userId"`
	CountryCode string      `json:"countryCode"`
}

type userResponse struct {
	ID       json.Number `json:"id"`
	Username string      `json:"username"`
	Email    string      `json:"email"`
}

func (c *Client) CheckLogin(ctx context.Context) bool {
	c.mu.RLock()
	tok := c.token
	c.mu.RUnlock()
	if tok == nil {
		return false
	}

	// The token source refreshes an expired access token.
	src := c.oauth.TokenSource(c.oauthContext(ctx), tok)
	current, err := src.Token()
	if err != nil {
		c.logger.Debug().Err(err).Msg("token refresh failed")
		return false
	}
	api := oauth2.NewClient(c.oauthContext(ctx), oauth2.StaticTokenSource(current))

	var session sessionResponse
	if err := c.getJSON(ctx, api, sessionsPath, &session); err != nil {
		c.logger.Debug().Err(err).Msg("session check failed")
		return false
	}

	user := &User{
		ID:          session.UserID.String(),
		CountryCode: session.CountryCode,
	}
	if user.ID == "" {
		if claims, err := parseAccessToken(current.AccessToken); err == nil {
			user.ID = claims.UserID
		}
	}
	if user.ID != "" {
		var profile userResponse
		path := usersPath + url.PathEscape(user.ID) + "?countryCode=" + url.QueryEscape(session.CountryCode)
		if err := c.getJSON(ctx, api, path, &profile); err != nil {
			c.logger.Debug().Err(err).Str("user_id", user.ID).Msg("user profile lookup failed")
		} else {
			user.Username = profile.Username
			user.Email = profile.Email
		}
	}

	c.mu.Lock()
	c.token = current
	c.sessionID = session.SessionID
	c.user = user
	c.mu.Unlock()
	return true
}

func (c *Client) getJSON(ctx context.Context, api *http.Client, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(c.cfg.APIBaseURL, "/")+path, nil)
	if err != nil {
		return err
	}
	resp, err := api.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	return dec.Decode(dst)
}

func (c *Client) SessionData() (credentials.Bundle, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == nil || c.token.AccessToken == "" {
		return credentials.Bundle{}, errs.Wrapf(errs.ErrNotAuthenticated, "[Client.SessionData]")
	}
	tokenType := c.token.TokenType
	if tokenType == "" {
		tokenType = bearerTokenType
	}
	return credentials.Bundle{
		TokenType:    tokenType,
		AccessToken:  c.token.AccessToken,
		RefreshToken: c.token.RefreshToken,
		SessionID:    c.sessionID,
		IsPKCE:       c.isPKCE,
		ExpiryTime:   c.token.Expiry,
	}, nil
}

func (c *Client) LoadFromData(bundle credentials.Bundle) bool {
	if !bundle.Valid() || !strings.EqualFold(bundle.TokenType, bearerTokenType) {
		return false
	}
	expiry := bundle.ExpiryTime
	if expiry.IsZero() {
		if claims, err := parseAccessToken(bundle.AccessToken); err == nil {
			expiry = claims.Expiry
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = &oauth2.Token{
		AccessToken:  bundle.AccessToken,
		TokenType:    bundle.TokenType,
		RefreshToken: bundle.RefreshToken,
		Expiry:       expiry,
	}
	c.isPKCE = bundle.IsPKCE
	c.sessionID = bundle.SessionID
	c.user = nil
	return true
}

func (c *Client) User() *User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return nil
	}
	u := *c.user
	return &u
}

func (c *Client) setToken(tok *oauth2.Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = tok
	c.isPKCE = false
	if uid, ok := tok.Extra("user_id").(float64); ok {
		c.user = &User{ID: strconv.FormatInt(int64(uid), 10)}
	}
}

func (c *Client) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

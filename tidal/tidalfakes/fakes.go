// Package tidalfakes provides an in-memory stand-in for the TIDAL service.
package tidalfakes

import (
	"context"
	"fmt"
	"sync"

	"github.com/jrsteele09/tidal-mcp/credentials"
	errs "github.com/jrsteele09/tidal-mcp/internal/errors"
	"github.com/jrsteele09/tidal-mcp/tidal"
)

// Login is a device flow started against the Backend.
type Login struct {
	AuthURL string
	Future  *tidal.LoginFuture
	Session *Session
	token   string
}

// Backend decides which access tokens are valid and which user they
// belong to. Sessions created by its Factory consult it.
type Backend struct {
	mu         sync.Mutex
	ExpiresIn  int
	StartErr   error
	users      map[string]tidal.User
	logins     []*Login
	checkCalls int
	sessions   int
}

func NewBackend() *Backend {
	return &Backend{
		ExpiresIn: 300,
		users:     map[string]tidal.User{},
	}
}

func (b *Backend) Factory() tidal.Factory {
	return func() tidal.Session {
		b.mu.Lock()
		b.sessions++
		b.mu.Unlock()
		return &Session{backend: b}
	}
}

// Seed makes accessToken valid for user.
func (b *Backend) Seed(accessToken string, user tidal.User) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users[accessToken] = user
}

// Revoke invalidates accessToken.
func (b *Backend) Revoke(accessToken string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.users, accessToken)
}

// Complete approves login as user and resolves its future.
func (b *Backend) Complete(login *Login, user tidal.User) {
	b.Seed(login.token, user)
	login.Future.Resolve(nil)
}

// Fail resolves login with err.
func (b *Backend) Fail(login *Login, err error) {
	login.Future.Resolve(err)
}

func (b *Backend) Logins() []*Login {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Login(nil), b.logins...)
}

// LastLogin returns the most recent login, nil if none.
func (b *Backend) LastLogin() *Login {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.logins) == 0 {
		return nil
	}
	return b.logins[len(b.logins)-1]
}

// CheckCalls counts CheckLogin round trips.
func (b *Backend) CheckCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.checkCalls
}

// SessionsCreated counts calls to the Factory.
func (b *Backend) SessionsCreated() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessions
}

func (b *Backend) startLogin(s *Session) (*Login, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.StartErr != nil {
		return nil, b.StartErr
	}
	n := len(b.logins) + 1
	login := &Login{
		AuthURL: fmt.Sprintf("https://link.tidal.com/CODE%d", n),
		Future:  tidal.NewLoginFuture(nil),
		Session: s,
		token:   fmt.Sprintf("token-%d", n),
	}
	b.logins = append(b.logins, login)
	return login, nil
}

func (b *Backend) lookup(token string) (tidal.User, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.checkCalls++
	u, ok := b.users[token]
	return u, ok
}

var _ tidal.Session = (*Session)(nil)

// Session is a tidal.Session whose state lives in its Backend.
type Session struct {
	backend *Backend

	mu    sync.Mutex
	token string
	user  *tidal.User
}

func (s *Session) StartOAuthLogin(_ context.Context) (tidal.LoginAttempt, *tidal.LoginFuture, error) {
	login, err := s.backend.startLogin(s)
	if err != nil {
		return tidal.LoginAttempt{}, nil, err
	}
	s.mu.Lock()
	s.token = login.token
	s.mu.Unlock()
	return tidal.LoginAttempt{
		AuthURL:   login.AuthURL,
		ExpiresIn: s.backend.ExpiresIn,
	}, login.Future, nil
}

func (s *Session) CheckLogin(_ context.Context) bool {
	s.mu.Lock()
	token := s.token
	s.mu.Unlock()
	if token == "" {
		return false
	}
	u, ok := s.backend.lookup(token)
	if !ok {
		return false
	}
	s.mu.Lock()
	s.user = &u
	s.mu.Unlock()
	return true
}

func (s *Session) SessionData() (credentials.Bundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return credentials.Bundle{}, errs.ErrNotAuthenticated
	}
	return credentials.Bundle{
		TokenType:    "Bearer",
		AccessToken:  s.token,
		RefreshToken: "refresh-" + s.token,
	}, nil
}

func (s *Session) LoadFromData(bundle credentials.Bundle) bool {
	if !bundle.Valid() || bundle.TokenType != "Bearer" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = bundle.AccessToken
	s.user = nil
	return true
}

func (s *Session) User() *tidal.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Package tidal is the boundary to the TIDAL streaming service: starting the
// OAuth device flow, validating credentials and restoring them.
package tidal

import (
	"context"

	"github.com/jrsteele09/tidal-mcp/credentials"
)

// User is the account a session is logged in as.
type User struct {
	ID          string
	Username    string
	Email       string
	CountryCode string
}

// LoginAttempt describes an out-of-band authorization the user still has to
// complete in a browser.
type LoginAttempt struct {
	AuthURL   string
	UserCode  string
	ExpiresIn int // seconds the AuthURL stays valid
}

// Session is one connection to TIDAL. Implementations must be safe for
// concurrent use once authenticated.
type Session interface {
	// StartOAuthLogin begins the device flow and returns immediately. The
	// returned future resolves when the user completes or abandons it.
	StartOAuthLogin(ctx context.Context) (LoginAttempt, *LoginFuture, error)

	// CheckLogin validates the current credentials against the live service,
	// refreshing them if needed.
	CheckLogin(ctx context.Context) bool

	// SessionData returns the current credentials. It fails with
	// ErrNotAuthenticated when there are none.
	SessionData() (credentials.Bundle, error)

	// LoadFromData restores credentials, returning false when the bundle is
	// malformed or incompatible.
	LoadFromData(bundle credentials.Bundle) bool

	// User is nil until CheckLogin has succeeded.
	User() *User
}

// Factory creates an unauthenticated Session.
type Factory func() Session

// Package credentials persists the bearer credentials of each TIDAL session.
package credentials

import (
	"time"
)

// Bundle is the minimal state needed to resume an authenticated TIDAL
// connection. It is replaced wholesale on refresh or re-login.
type Bundle struct {
	TokenType    string    `json:"token_type"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	SessionID    string    `json:"session_id"`
	IsPKCE       bool      `json:"is_pkce"`
	ExpiryTime   time.Time `json:"expiry_time,omitzero"`
}

// Valid reports whether the bundle carries enough to attempt a restore.
func (b Bundle) Valid() bool {
	return b.TokenType != "" && b.AccessToken != ""
}

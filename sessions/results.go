package sessions

import (
	"github.com/jrsteele09/tidal-mcp/tidal"
)

// Status is the outcome reported to MCP tools and HTTP callers.
type Status string

const (
	StatusSuccess          Status = "success"
	StatusPending          Status = "pending"
	StatusError            Status = "error"
	StatusNotAuthenticated Status = "not_authenticated"
)

const notAvailable = "N/A"

// UserInfo is the account summary shown to callers.
type UserInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// NewUserInfo reports unknown fields of u, or all of them when u is nil, as "N/A".
func NewUserInfo(u *tidal.User) UserInfo {
	info := UserInfo{ID: notAvailable, Username: notAvailable, Email: notAvailable}
	if u == nil {
		return info
	}
	if u.ID != "" {
		info.ID = u.ID
	}
	if u.Username != "" {
		info.Username = u.Username
	}
	if u.Email != "" {
		info.Email = u.Email
	}
	return info
}

// AuthResult is returned by Authenticate.
type AuthResult struct {
	Status      Status `json:"status"`
	SessionID   string `json:"session_id"`
	UserID      string `json:"user_id,omitempty"`
	AuthURL     string `json:"auth_url,omitempty"`
	ExpiresIn   int    `json:"expires_in,omitempty"`
	CallbackURL string `json:"callback_url,omitempty"`
	Message     string `json:"message,omitempty"`
}

// StatusResult is returned by CheckLoginStatus and Logout.
type StatusResult struct {
	Status             Status    `json:"status"`
	Authenticated      bool      `json:"authenticated"`
	SessionID          string    `json:"session_id"`
	User               *UserInfo `json:"user,omitempty"`
	ExpiresInRemaining *int      `json:"expires_in_remaining,omitempty"`
	CallbackURL        string    `json:"callback_url,omitempty"`
	Message            string    `json:"message,omitempty"`
}

// AuthenticationStatus is returned by CheckAuthenticationStatus.
type AuthenticationStatus struct {
	Authenticated bool      `json:"authenticated"`
	SessionID     string    `json:"session_id,omitempty"`
	User          *UserInfo `json:"user,omitempty"`
	Message       string    `json:"message"`
}

// SessionInfo is one row of ListActiveSessions.
type SessionInfo struct {
	SessionID     string    `json:"session_id"`
	Status        Status    `json:"status"`
	Authenticated bool      `json:"authenticated"`
	User          *UserInfo `json:"user,omitempty"`
	Message       string    `json:"message,omitempty"`
}

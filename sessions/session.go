package sessions

import (
	"time"

	"github.com/jrsteele09/tidal-mcp/tidal"
)

// PendingLogin tracks a device flow between tidal_login and the user
// completing it. It lives only in memory and is removed exactly once, by
// whichever status check first sees it resolved or expired.
type PendingLogin struct {
	SessionID string             // Session the login will authenticate
	Future    *tidal.LoginFuture // Resolves when the user acts
	ExpiresIn int                // Seconds the auth URL stays valid
	Session   tidal.Session      // Connection that started the flow
	CreatedAt time.Time
}

// Deadline is the instant after which the login is treated as expired.
func (p *PendingLogin) Deadline(buffer time.Duration) time.Time {
	return p.CreatedAt.Add(time.Duration(p.ExpiresIn)*time.Second + buffer)
}

func (p *PendingLogin) expired(now time.Time, buffer time.Duration) bool {
	return now.After(p.Deadline(buffer))
}

// remaining is the whole seconds left before the login expires, never negative.
func (p *PendingLogin) remaining(now time.Time, buffer time.Duration) int {
	left := p.Deadline(buffer).Sub(now)
	if left <= 0 {
		return 0
	}
	return int(left / time.Second)
}

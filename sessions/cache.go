package sessions

import (
	"sync"
	"time"

	"github.com/jrsteele09/tidal-mcp/tidal"
)

type cachedSession struct {
	session   tidal.Session
	user      UserInfo
	expiresAt time.Time
}

// sessionCache keeps validated sessions for ttl after their last use, so a
// busy session is not re-validated against TIDAL on every call.
type sessionCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]*cachedSession
}

func newSessionCache(ttl time.Duration) *sessionCache {
	return &sessionCache{
		ttl:     ttl,
		entries: make(map[string]*cachedSession),
	}
}

// get returns the cached session and slides its expiry forward.
func (c *sessionCache) get(sessionID string, now time.Time) (tidal.Session, UserInfo, bool) {
	if c.ttl <= 0 {
		return nil, UserInfo{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[sessionID]
	if !ok {
		return nil, UserInfo{}, false
	}
	if !now.Before(entry.expiresAt) {
		delete(c.entries, sessionID)
		return nil, UserInfo{}, false
	}
	entry.expiresAt = now.Add(c.ttl)
	return entry.session, entry.user, true
}

func (c *sessionCache) put(sessionID string, session tidal.Session, user UserInfo, now time.Time) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[sessionID] = &cachedSession{
		session:   session,
		user:      user,
		expiresAt: now.Add(c.ttl),
	}
}

func (c *sessionCache) remove(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, sessionID)
}

package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	KeyDefaultSessionID   = "default-session-id"
	KeyCacheTTL           = "cache-ttl"
	KeyLoginTimeoutBuffer = "login-timeout-buffer"
	KeyJanitorInterval    = "janitor-interval"

	defaultCacheTTL           = time.Hour
	defaultLoginTimeoutBuffer = time.Duration(0)
	defaultJanitorInterval    = 5 * time.Minute
)

type SessionConfig interface {
	GetDefaultSessionID() string
	GetCacheTTL() time.Duration
	GetLoginTimeoutBuffer() time.Duration
	GetJanitorInterval() time.Duration
	GetSessionCookieMaxAge() time.Duration
}

type Session struct {
	v *viper.Viper
}

var _ SessionConfig = Session{}

// GetDefaultSessionID is the session used when a caller supplies none.
// Single-tenant deployments set this to a fixed value.
func (s Session) GetDefaultSessionID() string {
	return strings.TrimSpace(s.v.GetString(KeyDefaultSessionID))
}

func (s Session) GetCacheTTL() time.Duration {
	return s.v.GetDuration(KeyCacheTTL)
}

// GetLoginTimeoutBuffer is added to the expiry reported by TIDAL before a
// pending login is declared expired.
func (s Session) GetLoginTimeoutBuffer() time.Duration {
	return s.v.GetDuration(KeyLoginTimeoutBuffer)
}

func (s Session) GetJanitorInterval() time.Duration {
	return s.v.GetDuration(KeyJanitorInterval)
}

func (Session) GetSessionCookieMaxAge() time.Duration {
	return 30 * 24 * time.Hour // 30 days
}

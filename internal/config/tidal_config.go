package config

import (
	"strings"

	"github.com/spf13/viper"
)

const (
	KeyClientID     = "client-id"
	KeyClientSecret = "client-secret"
	KeyAuthBaseURL  = "auth-base-url"
	KeyAPIBaseURL   = "api-base-url"
	KeyScopes       = "scopes"

	defaultAuthBaseURL = "https://auth.tidal.com/v1"
	defaultAPIBaseURL  = "https://api.tidal.com/v1"
)

type TidalConfig interface {
	GetClientID() string
	GetClientSecret() string
	GetAuthBaseURL() string
	GetAPIBaseURL() string
	GetScopes() []string
}

type Tidal struct {
	v *viper.Viper
}

var _ TidalConfig = Tidal{}

func (t Tidal) GetClientID() string {
	return strings.TrimSpace(t.v.GetString(KeyClientID))
}

func (t Tidal) GetClientSecret() string {
	return strings.TrimSpace(t.v.GetString(KeyClientSecret))
}

func (t Tidal) GetAuthBaseURL() string {
	return strings.TrimRight(t.v.GetString(KeyAuthBaseURL), "/")
}

func (t Tidal) GetAPIBaseURL() string {
	return strings.TrimRight(t.v.GetString(KeyAPIBaseURL), "/")
}

func (t Tidal) GetScopes() []string {
	return t.v.GetStringSlice(KeyScopes)
}

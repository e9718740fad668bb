package config

import (
	"strings"

	"github.com/spf13/viper"
)

const KeyAdminToken = "admin-token"

type SecurityConfig interface {
	GetAdminToken() string
}

type Security struct {
	v *viper.Viper
}

var _ SecurityConfig = Security{}

// GetAdminToken is the bearer token required to enumerate sessions over
// HTTP (env TIDAL_ADMIN_TOKEN). Empty disables the listing endpoint.
func (s Security) GetAdminToken() string {
	return strings.TrimSpace(s.v.GetString(KeyAdminToken))
}

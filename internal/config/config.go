package config

import (
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable the config reads,
// e.g. TIDAL_STORAGE_ENCRYPTION_KEY.
const EnvPrefix = "TIDAL"

type Config interface {
	EnvConfig
	CorsConfig
	StorageConfig
	SessionConfig
	SecurityConfig
	TidalConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetDataFolder() string
	GetEnv() string
	GetLogLevel() string
	GetBaseURL() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Storage
	Session
	Security
	Tidal
}

// New returns a Config reading from v. Defaults are registered on v, and
// environment variables with the TIDAL_ prefix override them.
func New(v *viper.Viper) Config {
	if v == nil {
		v = viper.New()
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	return mainConfig{
		EnvVars:  EnvVars{v: v},
		Cors:     Cors{v: v},
		Storage:  Storage{v: v},
		Session:  Session{v: v},
		Security: Security{v: v},
		Tidal:    Tidal{v: v},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyPort, "8100")
	v.SetDefault(KeyAppName, "TIDAL MCP")
	v.SetDefault(KeyEnv, "DEV")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyBaseURL, "http://localhost:8100")
	v.SetDefault(KeyStore, StoreBBolt)
	v.SetDefault(KeyCacheTTL, defaultCacheTTL)
	v.SetDefault(KeyLoginTimeoutBuffer, defaultLoginTimeoutBuffer)
	v.SetDefault(KeyJanitorInterval, defaultJanitorInterval)
	v.SetDefault(KeyAuthBaseURL, defaultAuthBaseURL)
	v.SetDefault(KeyAPIBaseURL, defaultAPIBaseURL)
	v.SetDefault(KeyScopes, []string{"r_usr", "w_usr", "w_sub"})
}

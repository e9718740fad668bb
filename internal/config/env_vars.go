package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	KeyPort       = "port"
	KeyAppName    = "app-name"
	KeyDataFolder = "data-folder"
	KeyEnv        = "env"
	KeyLogLevel   = "log-level"
	KeyBaseURL    = "base-url"
)

type EnvVars struct {
	v *viper.Viper
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := strings.TrimSpace(e.v.GetString(KeyPort))
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.v.GetString(KeyAppName)
}

// GetDataFolder returns the folder holding the session database and the
// generated storage key. It falls back to ~/.tidal-mcp and then to the
// system temp dir when no home directory is available.
func (e EnvVars) GetDataFolder() string {
	if folder := strings.TrimSpace(e.v.GetString(KeyDataFolder)); folder != "" {
		return expandHome(folder)
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(os.TempDir(), "tidal-mcp")
	}
	return filepath.Join(home, ".tidal-mcp")
}

func (e EnvVars) GetEnv() string {
	env := strings.ToUpper(strings.TrimSpace(e.v.GetString(KeyEnv)))
	if env == "" {
		return "DEV"
	}
	return env
}

func (e EnvVars) GetLogLevel() string {
	return strings.ToLower(strings.TrimSpace(e.v.GetString(KeyLogLevel)))
}

// GetBaseURL returns the externally visible URL of the HTTP server
// (e.g., "https://tidal-mcp.example.com")
func (e EnvVars) GetBaseURL() string {
	return strings.TrimRight(e.v.GetString(KeyBaseURL), "/")
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

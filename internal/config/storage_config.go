package config

import (
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	KeyStore                = "store"
	KeyStorageEncryptionKey = "storage-encryption-key"

	StoreBBolt  = "bbolt"
	StoreMemory = "memory"

	sessionDBName = "sessions.db"
	keyFileName   = "storage.key"
)

type StorageConfig interface {
	GetStoreType() string
	GetStorageEncryptionKey() string
	GetSessionDBPath() string
	GetKeyFilePath() string
}

type Storage struct {
	v *viper.Viper
}

var _ StorageConfig = Storage{}

func (s Storage) GetStoreType() string {
	return strings.ToLower(strings.TrimSpace(s.v.GetString(KeyStore)))
}

// GetStorageEncryptionKey returns the configured key material, read from
// TIDAL_STORAGE_ENCRYPTION_KEY or --storage-encryption-key. Empty means
// a key is generated once and kept in GetKeyFilePath.
func (s Storage) GetStorageEncryptionKey() string {
	return strings.TrimSpace(s.v.GetString(KeyStorageEncryptionKey))
}

func (s Storage) GetSessionDBPath() string {
	return filepath.Join(EnvVars(s).GetDataFolder(), sessionDBName)
}

func (s Storage) GetKeyFilePath() string {
	return filepath.Join(EnvVars(s).GetDataFolder(), keyFileName)
}

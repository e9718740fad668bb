package storage

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/hkdf"
)

const (
	hkdfSalt = "tidal-mcp/storage"
	hkdfInfo = "credential-store v1"
)

// GenerateKey returns a fresh random key, base64 encoded.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("generating key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// DeriveKey turns configured key material into a 32 byte key. A base64
// string that decodes to exactly 32 bytes is used as-is, anything else is
// treated as a passphrase and stretched with HKDF-SHA256.
func DeriveKey(material string) ([]byte, error) {
	material = strings.TrimSpace(material)
	if material == "" {
		return nil, errors.New("empty key material")
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		if raw, err := enc.DecodeString(material); err == nil && len(raw) == KeySize {
			return raw, nil
		}
	}
	key := make([]byte, KeySize)
	r := hkdf.New(sha256.New, []byte(material), []byte(hkdfSalt), []byte(hkdfInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("deriving key: %w", err)
	}
	return key, nil
}

// LoadOrCreateKey resolves the storage key. Configured material wins;
// otherwise the key kept at keyFile is reused, and if there is none a new
// one is generated and written there so sessions stay readable across
// restarts.
func LoadOrCreateKey(material, keyFile string, logger zerolog.Logger) ([]byte, error) {
	if strings.TrimSpace(material) != "" {
		return DeriveKey(material)
	}

	data, err := os.ReadFile(keyFile)
	if err == nil {
		return DeriveKey(string(data))
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading key file %s: %w", keyFile, err)
	}

	encoded, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(keyFile), 0o700); err != nil {
		return nil, fmt.Errorf("creating key folder: %w", err)
	}
	if err := os.WriteFile(keyFile, []byte(encoded+"\n"), 0o600); err != nil {
		return nil, fmt.Errorf("writing key file %s: %w", keyFile, err)
	}
	logger.Warn().Str("key_file", keyFile).
		Msg("Generated new storage encryption key. Set TIDAL_STORAGE_ENCRYPTION_KEY for production deployments.")
	return DeriveKey(encoded)
}

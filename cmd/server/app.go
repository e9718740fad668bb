package main

import (
	"os"
	"time"

	"github.com/jrsteele09/tidal-mcp/credentials"
	"github.com/jrsteele09/tidal-mcp/internal/config"
	"github.com/jrsteele09/tidal-mcp/internal/metrics"
	"github.com/jrsteele09/tidal-mcp/sessions"
	"github.com/jrsteele09/tidal-mcp/storage"
	bboltstorage "github.com/jrsteele09/tidal-mcp/storage/bbolt"
	"github.com/jrsteele09/tidal-mcp/storage/memory"
	"github.com/jrsteele09/tidal-mcp/tidal"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.etcd.io/bbolt"
)

// app is the wiring shared by the subcommands: storage, the credential
// store and the session manager on top of them.
type app struct {
	config config.Config
	logger zerolog.Logger
	repo   storage.Repository
	store  *credentials.Store
}

func newApp(c config.Config, logger zerolog.Logger) (*app, error) {
	repo, err := openRepository(c, logger)
	if err != nil {
		return nil, err
	}

	key, err := storage.LoadOrCreateKey(c.GetStorageEncryptionKey(), c.GetKeyFilePath(), logger)
	if err != nil {
		repo.Close()
		return nil, errors.Wrap(err, "[newApp] resolving storage key")
	}
	cipher, err := storage.NewCipher(key)
	if err != nil {
		repo.Close()
		return nil, errors.Wrap(err, "[newApp]")
	}

	store, err := credentials.NewStore(repo,
		credentials.WithCipher(cipher),
		credentials.WithLogger(logger),
	)
	if err != nil {
		repo.Close()
		return nil, errors.Wrap(err, "[newApp]")
	}
	logger.Debug().Bool("encrypted", store.Encrypted()).Msg("Credential store ready")
	return &app{config: c, logger: logger, repo: repo, store: store}, nil
}

func openRepository(c config.Config, logger zerolog.Logger) (storage.Repository, error) {
	switch c.GetStoreType() {
	case config.StoreMemory:
		logger.Warn().Msg("Using the in-memory credential store, sessions are lost on restart")
		return memory.NewRepository(), nil
	case config.StoreBBolt:
		if err := os.MkdirAll(c.GetDataFolder(), 0o700); err != nil {
			return nil, errors.Wrap(err, "[openRepository] creating data folder")
		}
		// A second process on the same file fails fast instead of hanging.
		repo, err := bboltstorage.NewRepositoryFromFile(c.GetSessionDBPath(), &bbolt.Options{Timeout: time.Second})
		if err != nil {
			return nil, errors.Wrapf(err, "[openRepository] opening %s", c.GetSessionDBPath())
		}
		logger.Info().Str("path", c.GetSessionDBPath()).Msg("Opened session database")
		return repo, nil
	default:
		return nil, errors.Errorf("[openRepository] unknown store type %q", c.GetStoreType())
	}
}

// newManager builds the session manager. reg may be nil when metrics are
// not exported.
func (a *app) newManager(reg prometheus.Registerer) (*sessions.Manager, error) {
	var collectors *metrics.Collectors
	if reg != nil {
		var err error
		if collectors, err = metrics.New(reg); err != nil {
			return nil, errors.Wrap(err, "[app.newManager]")
		}
	}

	factory := tidal.NewFactory(tidal.ClientConfig{
		ClientID:     a.config.GetClientID(),
		ClientSecret: a.config.GetClientSecret(),
		AuthBaseURL:  a.config.GetAuthBaseURL(),
		APIBaseURL:   a.config.GetAPIBaseURL(),
		Scopes:       a.config.GetScopes(),
	}, a.logger)

	return sessions.NewManager(a.store, factory,
		sessions.WithLogger(a.logger),
		sessions.WithMetrics(collectors),
		sessions.WithCacheTTL(a.config.GetCacheTTL()),
		sessions.WithDefaultSessionID(a.config.GetDefaultSessionID()),
		sessions.WithLoginTimeoutBuffer(a.config.GetLoginTimeoutBuffer()),
	)
}

func (a *app) Close() error {
	return a.repo.Close()
}

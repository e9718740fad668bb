package credentials

import (
	"encoding/json"
	"sort"
	"strings"

	errs "github.com/jrsteele09/tidal-mcp/internal/errors"
	"github.com/jrsteele09/tidal-mcp/storage"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	bucketName       = "tidal_sessions"
	indexKey         = "__sessions_index__"
	sessionKeyPrefix = "session:"
	indexAAD         = "tidal-mcp:sessions-index:v1"
)

type sessionIndex struct {
	SessionIDs []string `json:"session_ids"`
}

// Store is the CredentialStore: durable, optionally encrypted persistence
// of one Bundle per session id, plus an index of all known ids.
//
// Every write of a bundle and its index entry happens in one repository
// transaction, so the two cannot drift apart. The index is still only a
// cache of what is stored and is rebuilt from the native listing whenever
// it disagrees with it.
type Store struct {
	repo   storage.Repository
	cipher *storage.Cipher
	logger zerolog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithCipher encrypts every record, the index included.
func WithCipher(c *storage.Cipher) StoreOption {
	return func(s *Store) {
		s.cipher = c
	}
}

// WithLogger sets the logger used for storage diagnostics.
func WithLogger(logger zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore returns a Store writing through repo.
func NewStore(repo storage.Repository, options ...StoreOption) (*Store, error) {
	if repo == nil {
		return nil, errors.New("[NewStore] repository is required")
	}
	s := &Store{
		repo:   repo,
		logger: zerolog.Nop(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Encrypted reports whether records are sealed at rest.
func (s *Store) Encrypted() bool {
	return s.cipher != nil
}

// Save upserts the bundle for sessionID. Concurrent saves for the same id
// resolve last-write-wins.
func (s *Store) Save(sessionID string, bundle Bundle) error {
	if strings.TrimSpace(sessionID) == "" {
		return errors.Wrap(errs.ErrInvalidRequest, "[Store.Save] session id is required")
	}
	if !bundle.Valid() {
		return errors.Wrap(errs.ErrInvalidRequest, "[Store.Save] bundle has no token")
	}
	record, err := s.encode(recordKey(sessionID), bundle)
	if err != nil {
		return errors.Wrap(err, "[Store.Save] encode")
	}

	err = s.repo.Update(bucketName, func(tx storage.Tx) error {
		if err := tx.Put(recordKey(sessionID), record); err != nil {
			return err
		}
		ids := s.readIndex(tx)
		ids[sessionID] = struct{}{}
		return s.writeIndex(tx, ids)
	})
	if err != nil {
		return errs.Wrapf(errs.ErrStorageUnavailable, "[Store.Save] %s: %v", sessionID, err)
	}
	return nil
}

// Load returns the most recently saved bundle. A missing record, or one
// that can no longer be decrypted, yields ErrSessionNotFound.
func (s *Store) Load(sessionID string) (Bundle, error) {
	data, err := s.repo.Get(bucketName, recordKey(sessionID))
	if errors.Is(err, storage.ErrNotFound) {
		return Bundle{}, errs.Wrapf(errs.ErrSessionNotFound, "[Store.Load] %s", sessionID)
	}
	if err != nil {
		return Bundle{}, errs.Wrapf(errs.ErrStorageUnavailable, "[Store.Load] %s: %v", sessionID, err)
	}

	var bundle Bundle
	if err := s.decode(recordKey(sessionID), data, &bundle); err != nil || !bundle.Valid() {
		s.logger.Warn().Str("session_id", sessionID).Err(err).
			Msg("stored session could not be read; treating as absent")
		return Bundle{}, errs.Wrapf(errs.ErrSessionNotFound, "[Store.Load] %s unreadable", sessionID)
	}
	return bundle, nil
}

// Exists reports whether a readable bundle is stored for sessionID.
func (s *Store) Exists(sessionID string) (bool, error) {
	_, err := s.Load(sessionID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errs.ErrSessionNotFound):
		return false, nil
	default:
		return false, err
	}
}

// ListIDs returns every session id with a readable bundle, sorted. Each
// record is opened, so an id is listed exactly when Exists reports it.
func (s *Store) ListIDs() ([]string, error) {
	keys, err := s.repo.List(bucketName)
	if err != nil {
		return nil, errs.Wrapf(errs.ErrStorageUnavailable, "[Store.ListIDs] %v", err)
	}
	readable := map[string]struct{}{}
	for _, k := range keys {
		id, ok := strings.CutPrefix(k, sessionKeyPrefix)
		if !ok {
			continue
		}
		exists, err := s.Exists(id)
		if err != nil {
			return nil, errors.Wrap(err, "[Store.ListIDs]")
		}
		if exists {
			readable[id] = struct{}{}
		}
	}

	// Rewrite the index when it is missing, unreadable or disagrees with
	// the records that can actually be read.
	if index, err := s.loadIndex(); err == nil && sameIDs(index, readable) {
		return sortedIDs(readable), nil
	}
	s.logger.Debug().Int("sessions", len(readable)).Msg("rebuilding session index")
	if err := s.repo.Update(bucketName, func(tx storage.Tx) error {
		return s.writeIndex(tx, readable)
	}); err != nil {
		s.logger.Warn().Err(err).Msg("could not rewrite session index")
	}
	return sortedIDs(readable), nil
}

// Delete removes the bundle for sessionID. Deleting an unknown id is not
// an error.
func (s *Store) Delete(sessionID string) error {
	err := s.repo.Update(bucketName, func(tx storage.Tx) error {
		if err := tx.Delete(recordKey(sessionID)); err != nil {
			return err
		}
		ids := s.readIndex(tx)
		if _, ok := ids[sessionID]; !ok {
			return nil
		}
		delete(ids, sessionID)
		return s.writeIndex(tx, ids)
	})
	if err != nil {
		return errs.Wrapf(errs.ErrStorageUnavailable, "[Store.Delete] %s: %v", sessionID, err)
	}
	return nil
}

func (s *Store) loadIndex() (map[string]struct{}, error) {
	data, err := s.repo.Get(bucketName, indexKey)
	if err != nil {
		return nil, err
	}
	var index sessionIndex
	if err := s.decode(indexAAD, data, &index); err != nil {
		return nil, err
	}
	return toSet(index.SessionIDs), nil
}

// readIndex returns the index as seen inside tx. An unreadable index is
// replaced by the ids present in the bucket.
func (s *Store) readIndex(tx storage.Tx) map[string]struct{} {
	data, err := tx.Get(indexKey)
	if err == nil {
		var index sessionIndex
		if err := s.decode(indexAAD, data, &index); err == nil {
			return toSet(index.SessionIDs)
		}
	}
	ids := map[string]struct{}{}
	keys, err := tx.List()
	if err != nil {
		return ids
	}
	for _, k := range keys {
		if id, ok := strings.CutPrefix(k, sessionKeyPrefix); ok {
			ids[id] = struct{}{}
		}
	}
	return ids
}

func (s *Store) writeIndex(tx storage.Tx, ids map[string]struct{}) error {
	data, err := s.encode(indexAAD, sessionIndex{SessionIDs: sortedIDs(ids)})
	if err != nil {
		return err
	}
	return tx.Put(indexKey, data)
}

func (s *Store) encode(aad string, v any) ([]byte, error) {
	plain, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if s.cipher == nil {
		return plain, nil
	}
	env, err := s.cipher.Seal(plain, []byte(aad))
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

func (s *Store) decode(aad string, data []byte, v any) error {
	if s.cipher == nil {
		return json.Unmarshal(data, v)
	}
	var env storage.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	plain, err := s.cipher.Open(&env, []byte(aad))
	if err != nil {
		return err
	}
	return json.Unmarshal(plain, v)
}

func recordKey(sessionID string) string {
	return sessionKeyPrefix + sessionID
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func sameIDs(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for id := range a {
		if _, ok := b[id]; !ok {
			return false
		}
	}
	return true
}

func sortedIDs(set map[string]struct{}) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

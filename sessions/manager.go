// Package sessions owns the lifecycle of TIDAL sessions: starting device
// logins, promoting completed ones to stored credentials and handing out
// validated connections.
package sessions

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/jrsteele09/tidal-mcp/credentials"
	errs "github.com/jrsteele09/tidal-mcp/internal/errors"
	"github.com/jrsteele09/tidal-mcp/internal/metrics"
	"github.com/jrsteele09/tidal-mcp/tidal"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	// DefaultCacheTTL is how long a validated session is trusted after its last use.
	DefaultCacheTTL = time.Hour

	callbackRetention  = time.Hour
	maxSessionIDLength = 256
)

// CredentialStore persists one credential bundle per session id.
type CredentialStore interface {
	Save(sessionID string, bundle credentials.Bundle) error
	Load(sessionID string) (credentials.Bundle, error)
	Exists(sessionID string) (bool, error)
	ListIDs() ([]string, error)
	Delete(sessionID string) error
}

var _ CredentialStore = (*credentials.Store)(nil)

// Manager is safe for concurrent use. Every expected failure is reported
// through the Status of its results rather than as an error.
type Manager struct {
	store      CredentialStore
	newSession tidal.Factory
	logger     zerolog.Logger
	metrics    *metrics.Collectors
	nowTime    func() time.Time
	newID      func() string

	defaultSessionID   string
	loginTimeoutBuffer time.Duration
	cache              *sessionCache

	mu        sync.Mutex // guards pending, callbacks and promoting
	pending   map[string]*PendingLogin
	callbacks map[string]callbackBinding
	promoting map[string]chan struct{}
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowTime = nowFunc
	}
}

func WithLogger(logger zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

func WithMetrics(c *metrics.Collectors) ManagerOption {
	return func(m *Manager) {
		m.metrics = c
	}
}

// WithCacheTTL sets how long a validated session is reused without asking
// TIDAL again. Zero disables the cache.
func WithCacheTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		m.cache = newSessionCache(ttl)
	}
}

// WithDefaultSessionID is the session used when a caller does not name one.
func WithDefaultSessionID(sessionID string) ManagerOption {
	return func(m *Manager) {
		m.defaultSessionID = sessionID
	}
}

// WithLoginTimeoutBuffer extends every pending login past the expiry TIDAL reports.
func WithLoginTimeoutBuffer(buffer time.Duration) ManagerOption {
	return func(m *Manager) {
		m.loginTimeoutBuffer = buffer
	}
}

// WithIDGenerator replaces the UUID generator used for new session ids.
func WithIDGenerator(newID func() string) ManagerOption {
	return func(m *Manager) {
		m.newID = newID
	}
}

// NewManager returns a Manager persisting to store and creating TIDAL
// connections with newSession.
func NewManager(store CredentialStore, newSession tidal.Factory, options ...ManagerOption) (*Manager, error) {
	if store == nil {
		return nil, errors.New("[NewManager] credential store is required")
	}
	if newSession == nil {
		return nil, errors.New("[NewManager] session factory is required")
	}

	m := &Manager{
		store:      store,
		newSession: newSession,
		logger:     zerolog.Nop(),
		nowTime:    time.Now,
		newID:      uuid.NewString,
		cache:      newSessionCache(DefaultCacheTTL),
		pending:    make(map[string]*PendingLogin),
		callbacks:  make(map[string]callbackBinding),
		promoting:  make(map[string]chan struct{}),
	}
	for _, opt := range options {
		opt(m)
	}
	if m.loginTimeoutBuffer < 0 {
		return nil, errors.New("[NewManager] login timeout buffer cannot be negative")
	}
	return m, nil
}

// DefaultSessionID is the session used when a caller names none, empty
// when none is configured.
func (m *Manager) DefaultSessionID() string {
	return m.defaultSessionID
}

// Authenticate returns success straight away when sessionID already holds
// valid credentials. Otherwise it starts a device login and returns its URL
// without waiting for the user. An empty sessionID gets a fresh one.
func (m *Manager) Authenticate(ctx context.Context, sessionID, callbackURL string) AuthResult {
	if sessionID == "" {
		sessionID = m.newID()
	}
	if err := validateSessionID(sessionID); err != nil {
		return AuthResult{Status: StatusError, SessionID: sessionID, Message: err.Error()}
	}
	if callbackURL != "" {
		if err := validateCallbackURL(callbackURL); err != nil {
			return AuthResult{Status: StatusError, SessionID: sessionID, Message: err.Error()}
		}
	}
	logger := m.logger.With().Str("session_id", sessionID).Logger()

	_, user, err := m.resolveSession(ctx, sessionID)
	if err == nil {
		return AuthResult{
			Status:      StatusSuccess,
			SessionID:   sessionID,
			UserID:      user.ID,
			CallbackURL: callbackURL,
			Message:     "Already authenticated with TIDAL",
		}
	}
	if errs.Is(err, errs.ErrStorageUnavailable) {
		logger.Error().Err(err).Msg("could not read stored session, starting a new login")
	}

	session := m.newSession()
	attempt, future, err := session.StartOAuthLogin(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("could not start TIDAL login")
		return AuthResult{
			Status:    StatusError,
			SessionID: sessionID,
			Message:   fmt.Sprintf("Failed to start TIDAL login: %v", err),
		}
	}

	now := m.nowTime()
	pending := &PendingLogin{
		SessionID: sessionID,
		Future:    future,
		ExpiresIn: attempt.ExpiresIn,
		Session:   session,
		CreatedAt: now,
	}

	m.mu.Lock()
	previous := m.pending[sessionID]
	m.pending[sessionID] = pending
	if callbackURL != "" {
		m.callbacks[sessionID] = callbackBinding{URL: callbackURL, CreatedAt: now}
	} else {
		delete(m.callbacks, sessionID)
	}
	count := len(m.pending)
	m.mu.Unlock()

	if previous != nil {
		previous.Future.Cancel()
		logger.Debug().Msg("replaced an earlier pending login")
	}
	m.metrics.LoginStarted()
	m.metrics.SetPending(count)
	logger.Info().Int("expires_in", attempt.ExpiresIn).Msg("TIDAL login started")

	return AuthResult{
		Status:      StatusPending,
		SessionID:   sessionID,
		AuthURL:     attempt.AuthURL,
		ExpiresIn:   attempt.ExpiresIn,
		CallbackURL: callbackURL,
		Message: fmt.Sprintf("Open the URL to log in to TIDAL. The link expires %s.",
			humanize.RelTime(now, pending.Deadline(m.loginTimeoutBuffer), "from now", "ago")),
	}
}

// CheckLoginStatus never waits on the user. A completed login is promoted
// to stored credentials by exactly one caller.
func (m *Manager) CheckLoginStatus(ctx context.Context, sessionID string) StatusResult {
	if sessionID == "" {
		return StatusResult{Status: StatusError, Message: "session_id is required"}
	}
	now := m.nowTime()

	m.mu.Lock()
	callbackURL := m.callbacks[sessionID].URL
	pending, ok := m.pending[sessionID]
	if !ok {
		inFlight := m.promoting[sessionID]
		m.mu.Unlock()
		if inFlight != nil {
			select {
			case <-inFlight:
			case <-ctx.Done():
			}
			callbackURL = m.callbackURL(sessionID)
		}
		return m.storedStatus(ctx, sessionID, callbackURL)
	}

	if pending.expired(now, m.loginTimeoutBuffer) {
		count := m.dropPendingLocked(sessionID, true)
		m.mu.Unlock()
		pending.Future.Cancel()
		m.metrics.LoginResolved(metrics.ResultExpired)
		m.metrics.SetPending(count)
		m.logger.Info().Str("session_id", sessionID).Msg("TIDAL login expired")
		return StatusResult{
			Status:      StatusError,
			SessionID:   sessionID,
			CallbackURL: callbackURL,
			Message:     "Login expired. Please call tidal_login again.",
		}
	}

	done, loginErr := pending.Future.Poll()
	if !done {
		m.mu.Unlock()
		remaining := pending.remaining(now, m.loginTimeoutBuffer)
		return StatusResult{
			Status:             StatusPending,
			SessionID:          sessionID,
			ExpiresInRemaining: &remaining,
			CallbackURL:        callbackURL,
			Message:            "Waiting for the TIDAL login to be completed in the browser",
		}
	}

	if loginErr != nil {
		count := m.dropPendingLocked(sessionID, true)
		m.mu.Unlock()
		m.metrics.LoginResolved(metrics.ResultFailed)
		m.metrics.SetPending(count)
		m.logger.Warn().Err(loginErr).Str("session_id", sessionID).Msg("TIDAL login failed")
		return StatusResult{
			Status:      StatusError,
			SessionID:   sessionID,
			CallbackURL: callbackURL,
			Message:     fmt.Sprintf("TIDAL login failed: %v", loginErr),
		}
	}

	count := m.dropPendingLocked(sessionID, false)
	finished := make(chan struct{})
	m.promoting[sessionID] = finished
	m.mu.Unlock()
	m.metrics.SetPending(count)

	defer func() {
		m.mu.Lock()
		delete(m.promoting, sessionID)
		m.mu.Unlock()
		close(finished)
	}()
	return m.promote(ctx, pending, callbackURL)
}

// promote validates a completed login and stores its credentials.
func (m *Manager) promote(ctx context.Context, pending *PendingLogin, callbackURL string) StatusResult {
	sessionID := pending.SessionID
	logger := m.logger.With().Str("session_id", sessionID).Logger()
	failed := func(msg string) StatusResult {
		m.mu.Lock()
		if _, restarted := m.pending[sessionID]; !restarted {
			delete(m.callbacks, sessionID)
		}
		m.mu.Unlock()
		m.metrics.LoginResolved(metrics.ResultFailed)
		return StatusResult{Status: StatusError, SessionID: sessionID, CallbackURL: callbackURL, Message: msg}
	}

	if !pending.Session.CheckLogin(ctx) {
		logger.Warn().Msg("completed TIDAL login did not validate")
		return failed("TIDAL login completed but the session could not be validated")
	}
	bundle, err := pending.Session.SessionData()
	if err == nil {
		bundle.SessionID = sessionID
		err = m.store.Save(sessionID, bundle)
	}
	if err != nil {
		logger.Error().Err(err).Msg("could not persist TIDAL session")
		return failed("Could not save the TIDAL session")
	}

	user := NewUserInfo(pending.Session.User())
	m.cache.put(sessionID, pending.Session, user, m.nowTime())
	m.metrics.LoginResolved(metrics.ResultSuccess)
	logger.Info().Str("user_id", user.ID).Msg("TIDAL login completed")

	return StatusResult{
		Status:        StatusSuccess,
		Authenticated: true,
		SessionID:     sessionID,
		User:          &user,
		CallbackURL:   callbackURL,
		Message:       "Successfully authenticated with TIDAL",
	}
}

func (m *Manager) storedStatus(ctx context.Context, sessionID, callbackURL string) StatusResult {
	_, user, err := m.resolveSession(ctx, sessionID)
	if err != nil {
		status := StatusNotAuthenticated
		if errs.Is(err, errs.ErrStorageUnavailable) {
			status = StatusError
			m.logger.Error().Err(err).Str("session_id", sessionID).Msg("could not read stored session")
		}
		return StatusResult{
			Status:      status,
			SessionID:   sessionID,
			CallbackURL: callbackURL,
			Message:     describe(err, sessionID),
		}
	}
	return StatusResult{
		Status:        StatusSuccess,
		Authenticated: true,
		SessionID:     sessionID,
		User:          &user,
		CallbackURL:   callbackURL,
		Message:       "Valid TIDAL session",
	}
}

// CheckAuthenticationStatus falls back to the default session when
// sessionID is empty.
func (m *Manager) CheckAuthenticationStatus(ctx context.Context, sessionID string) AuthenticationStatus {
	if sessionID == "" {
		sessionID = m.defaultSessionID
	}
	if sessionID == "" {
		return AuthenticationStatus{Message: "No session ID provided and no default session configured"}
	}
	r := m.CheckLoginStatus(ctx, sessionID)
	return AuthenticationStatus{
		Authenticated: r.Authenticated,
		SessionID:     sessionID,
		User:          r.User,
		Message:       r.Message,
	}
}

// GetAuthenticatedSession returns a validated TIDAL connection. Errors wrap
// ErrNotAuthenticated unless storage itself failed.
func (m *Manager) GetAuthenticatedSession(ctx context.Context, sessionID string) (tidal.Session, error) {
	if sessionID == "" {
		sessionID = m.defaultSessionID
	}
	if sessionID == "" {
		return nil, errs.Wrapf(errs.ErrNotAuthenticated, "[Manager.GetAuthenticatedSession] no session id provided and no default session configured")
	}

	m.mu.Lock()
	_, pending := m.pending[sessionID]
	m.mu.Unlock()
	if pending {
		// Promotes the login if the user has just finished it.
		m.CheckLoginStatus(ctx, sessionID)
	}

	session, _, err := m.resolveSession(ctx, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.GetAuthenticatedSession]")
	}
	return session, nil
}

// ListActiveSessions validates every stored session independently, then
// appends the logins still in progress.
func (m *Manager) ListActiveSessions(ctx context.Context) ([]SessionInfo, error) {
	ids, err := m.store.ListIDs()
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.ListActiveSessions]")
	}

	infos := make([]SessionInfo, 0, len(ids))
	stored := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		stored[id] = struct{}{}
		_, user, err := m.resolveSession(ctx, id)
		if err != nil {
			m.logger.Debug().Err(err).Str("session_id", id).Msg("stored session did not validate")
			infos = append(infos, SessionInfo{
				SessionID: id,
				Status:    StatusNotAuthenticated,
				Message:   describe(err, id),
			})
			continue
		}
		infos = append(infos, SessionInfo{
			SessionID:     id,
			Status:        StatusSuccess,
			Authenticated: true,
			User:          &user,
		})
	}

	m.mu.Lock()
	var pendingIDs []string
	for id := range m.pending {
		if _, ok := stored[id]; !ok {
			pendingIDs = append(pendingIDs, id)
		}
	}
	m.mu.Unlock()
	sort.Strings(pendingIDs)
	for _, id := range pendingIDs {
		infos = append(infos, SessionInfo{
			SessionID: id,
			Status:    StatusPending,
			Message:   "Login in progress",
		})
	}
	return infos, nil
}

// Logout forgets everything held for sessionID, stored credentials included.
// A login being promoted for sessionID finishes first and its credentials
// are deleted with the rest.
func (m *Manager) Logout(ctx context.Context, sessionID string) StatusResult {
	if sessionID == "" {
		return StatusResult{Status: StatusError, Message: "session_id is required"}
	}

	m.mu.Lock()
	for {
		inFlight := m.promoting[sessionID]
		if inFlight == nil {
			break
		}
		m.mu.Unlock()
		select {
		case <-inFlight:
		case <-ctx.Done():
			return StatusResult{
				Status:    StatusError,
				SessionID: sessionID,
				Message:   "Logout interrupted while a TIDAL login was being completed",
			}
		}
		m.mu.Lock()
	}
	pending := m.pending[sessionID]
	count := m.dropPendingLocked(sessionID, true)
	m.mu.Unlock()
	if pending != nil {
		pending.Future.Cancel()
		m.metrics.SetPending(count)
	}
	m.cache.remove(sessionID)

	if err := m.store.Delete(sessionID); err != nil {
		m.logger.Error().Err(err).Str("session_id", sessionID).Msg("could not delete stored session")
		return StatusResult{Status: StatusError, SessionID: sessionID, Message: describe(err, sessionID)}
	}
	m.logger.Info().Str("session_id", sessionID).Msg("logged out")
	return StatusResult{Status: StatusSuccess, SessionID: sessionID, Message: "Logged out of TIDAL"}
}

// PendingCount is the number of logins awaiting the user.
func (m *Manager) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// SweepExpired removes pending logins past their deadline along with
// orphaned callback bindings, and returns how many logins it removed.
func (m *Manager) SweepExpired() int {
	now := m.nowTime()
	var expired []*PendingLogin

	m.mu.Lock()
	for id, p := range m.pending {
		if p.expired(now, m.loginTimeoutBuffer) {
			expired = append(expired, p)
			m.dropPendingLocked(id, true)
		}
	}
	for id, cb := range m.callbacks {
		if _, waiting := m.pending[id]; !waiting && now.Sub(cb.CreatedAt) > callbackRetention {
			delete(m.callbacks, id)
		}
	}
	count := len(m.pending)
	m.mu.Unlock()

	for _, p := range expired {
		p.Future.Cancel()
		m.metrics.LoginResolved(metrics.ResultExpired)
	}
	m.metrics.SetPending(count)
	if len(expired) > 0 {
		m.logger.Debug().Int("expired", len(expired)).Msg("swept expired logins")
	}
	return len(expired)
}

// StartJanitor sweeps expired logins every interval until ctx is done.
func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.SweepExpired()
			}
		}
	}()
}

// resolveSession serves a cached session or restores and validates the
// stored one.
func (m *Manager) resolveSession(ctx context.Context, sessionID string) (tidal.Session, UserInfo, error) {
	if session, user, ok := m.cache.get(sessionID, m.nowTime()); ok {
		m.metrics.CacheLookup(true)
		return session, user, nil
	}
	m.metrics.CacheLookup(false)

	bundle, err := m.store.Load(sessionID)
	if err != nil {
		if errs.Is(err, errs.ErrSessionNotFound) {
			return nil, UserInfo{}, fmt.Errorf("%w: %w", errs.ErrNotAuthenticated, err)
		}
		return nil, UserInfo{}, err
	}

	session := m.newSession()
	if !session.LoadFromData(bundle) || !session.CheckLogin(ctx) {
		return nil, UserInfo{}, fmt.Errorf("%w: %w: %s", errs.ErrNotAuthenticated, errs.ErrValidationFailed, sessionID)
	}

	// Validation may have refreshed the access token.
	if current, err := session.SessionData(); err == nil && current.AccessToken != bundle.AccessToken {
		current.SessionID = sessionID
		if err := m.store.Save(sessionID, current); err != nil {
			m.logger.Warn().Err(err).Str("session_id", sessionID).Msg("could not store refreshed credentials")
		}
	}

	user := NewUserInfo(session.User())
	m.cache.put(sessionID, session, user, m.nowTime())
	return session, user, nil
}

func (m *Manager) callbackURL(sessionID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callbacks[sessionID].URL
}

// dropPendingLocked removes the pending login and, if asked, its callback
// binding. It returns the number of logins left pending.
func (m *Manager) dropPendingLocked(sessionID string, dropCallback bool) int {
	delete(m.pending, sessionID)
	if dropCallback {
		delete(m.callbacks, sessionID)
	}
	return len(m.pending)
}

func describe(err error, sessionID string) string {
	switch {
	case errs.Is(err, errs.ErrSessionNotFound):
		return fmt.Sprintf("No session found for session ID %s. Use tidal_login to authenticate.", sessionID)
	case errs.Is(err, errs.ErrValidationFailed):
		return fmt.Sprintf("Session %s is no longer valid. Use tidal_login to authenticate again.", sessionID)
	case errs.Is(err, errs.ErrStorageUnavailable):
		return "Session storage is unavailable"
	default:
		return "Not authenticated with TIDAL"
	}
}

func validateSessionID(sessionID string) error {
	if len(sessionID) > maxSessionIDLength {
		return errors.Errorf("session_id is longer than %d characters", maxSessionIDLength)
	}
	if strings.TrimSpace(sessionID) == "" {
		return errors.New("session_id cannot be blank")
	}
	if strings.IndexFunc(sessionID, unicode.IsControl) >= 0 {
		return errors.New("session_id contains control characters")
	}
	return nil
}

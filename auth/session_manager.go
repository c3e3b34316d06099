package auth

import (
	"context"
	"time"

	"github.com/jrsteele09/go-auth-session/authflow"
	"github.com/jrsteele09/go-auth-session/internal/metrics"
	"github.com/jrsteele09/go-auth-session/internal/utils"
	"github.com/jrsteele09/go-auth-session/sessions"
	"github.com/jrsteele09/go-auth-session/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	defaultRefreshThreshold = 5 * time.Minute
	defaultRefreshTimeout   = 30 * time.Second
)

// FlowRunner drives one interactive login and returns its raw payload.
type FlowRunner interface {
	BeginFlow(ctx context.Context, loginPageURL string, scopes []string) (*authflow.Result, error)
}

// TokenService is the part of the remote auth API the manager needs.
type TokenService interface {
	Refresh(ctx context.Context, oldToken string) (string, error)
	Revoke(ctx context.Context, token string) error
	Validate(ctx context.Context, token string) bool
	FetchUserInfo(ctx context.Context, token string) (*token.UserInfo, error)
}

// Deps holds the collaborators of a SessionManager
type Deps struct {
	Store  *sessions.Store // Loaded session registry
	Flows  FlowRunner      // Interactive login
	Tokens TokenService    // Remote token operations
}

// SessionManager is the public surface for creating, listing, refreshing and
// removing sessions. Every mutation persists before its ChangeEvent is emitted.
type SessionManager struct {
	store        *sessions.Store
	flows        FlowRunner
	tokens       TokenService
	validator    *sessions.Validator
	loginPageURL string

	checkAccountActive bool
	validationMode     sessions.ValidationMode
	sweepConcurrency   int
	refreshThreshold   time.Duration
	refreshTimeout     time.Duration
	recorder           metrics.Recorder
	nowTime            func() time.Time

	refreshes singleflight.Group // one remote refresh per session at a time
}

// Option configures a SessionManager.
type Option func(*SessionManager)

// WithAccountActiveCheck controls whether CreateSession confirms the account
// through the userinfo endpoint. When on, the callback's own active flag is ignored.
func WithAccountActiveCheck(enabled bool) Option {
	return func(m *SessionManager) {
		m.checkAccountActive = enabled
	}
}

func WithValidationMode(mode sessions.ValidationMode) Option {
	return func(m *SessionManager) {
		m.validationMode = mode
	}
}

func WithSweepConcurrency(n int) Option {
	return func(m *SessionManager) {
		m.sweepConcurrency = n
	}
}

// WithRefreshThreshold sets how close to expiry a token source refreshes
func WithRefreshThreshold(d time.Duration) Option {
	return func(m *SessionManager) {
		if d >= 0 {
			m.refreshThreshold = d
		}
	}
}

// WithRefreshTimeout bounds one remote refresh, however many callers share it
func WithRefreshTimeout(d time.Duration) Option {
	return func(m *SessionManager) {
		if d > 0 {
			m.refreshTimeout = d
		}
	}
}

func WithRecorder(r metrics.Recorder) Option {
	return func(m *SessionManager) {
		if r != nil {
			m.recorder = r
		}
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(m *SessionManager) {
		m.nowTime = nowFunc
	}
}

// NewSessionManager wires a manager around an already loaded store.
func NewSessionManager(deps Deps, loginPageURL string, options ...Option) (*SessionManager, error) {
	if deps.Store == nil {
		return nil, errors.New("[NewSessionManager] store is required")
	}
	if deps.Flows == nil {
		return nil, errors.New("[NewSessionManager] flow runner is required")
	}
	if deps.Tokens == nil {
		return nil, errors.New("[NewSessionManager] token service is required")
	}
	if loginPageURL == "" {
		return nil, errors.New("[NewSessionManager] login page url is required")
	}

	m := &SessionManager{
		store:              deps.Store,
		flows:              deps.Flows,
		tokens:             deps.Tokens,
		loginPageURL:       loginPageURL,
		checkAccountActive: true,
		validationMode:     sessions.RemoteValidation,
		refreshThreshold:   defaultRefreshThreshold,
		refreshTimeout:     defaultRefreshTimeout,
		recorder:           metrics.Noop{},
		nowTime:            time.Now,
	}
	for _, opt := range options {
		opt(m)
	}

	validator, err := sessions.NewValidator(m.store, m.tokens,
		sessions.WithValidationMode(m.validationMode),
		sessions.WithSweepConcurrency(m.sweepConcurrency),
		sessions.WithRecorder(m.recorder),
		sessions.WithNowTime(m.nowTime),
	)
	if err != nil {
		return nil, errors.Wrap(err, "[NewSessionManager]")
	}
	m.validator = validator
	m.recorder.SessionsActive(m.store.Len())
	return m, nil
}

// GetSessions returns the sessions holding every scope in scopes, or all
// sessions when no scopes are given.
func (m *SessionManager) GetSessions(scopes ...string) []sessions.Session {
	return m.store.List(scopes...)
}

// GetSession returns the session stored under id or ErrSessionNotFound.
func (m *SessionManager) GetSession(id string) (sessions.Session, error) {
	return m.store.Get(id)
}

// CreateSession runs an interactive login for scopes and stores the result.
// On failure nothing is stored and no event is emitted.
func (m *SessionManager) CreateSession(ctx context.Context, scopes []string) (sessions.Session, error) {
	scopes = utils.NormalizeScopes(scopes)

	session, err := m.createSession(ctx, scopes)
	m.recorder.FlowCompleted(metrics.Outcome(err))
	if err != nil {
		log.Err(err).Strs("scopes", scopes).Msg("Login failed")
		return sessions.Session{}, err
	}

	log.Info().Str("session_id", session.ID).Strs("scopes", scopes).Msg("Session created")
	m.recorder.SessionsActive(m.store.Len())
	m.store.Notify(sessions.ChangeEvent{Added: []sessions.Session{session.Clone()}})
	return session, nil
}

func (m *SessionManager) createSession(ctx context.Context, scopes []string) (sessions.Session, error) {
	result, err := m.flows.BeginFlow(ctx, m.loginPageURL, scopes)
	if err != nil {
		return sessions.Session{}, errors.Wrap(err, "[SessionManager.CreateSession]")
	}

	id, label := result.Email, result.DisplayName
	if m.checkAccountActive {
		info, err := m.tokens.FetchUserInfo(ctx, result.AccessToken)
		if err != nil {
			return sessions.Session{}, errors.Wrap(err, "[SessionManager.CreateSession] account check")
		}
		// the service fills in what the callback left out
		if id == authflow.Unknown && info.Email != "" {
			id = info.Email
		}
		if label == authflow.Unknown && info.DisplayName != "" {
			label = info.DisplayName
		}
	}

	session := sessions.Session{
		ID:           id,
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		AccountLabel: label,
		Scopes:       scopes,
		ExpiresAt:    token.ExpiryOf(result.AccessToken),
	}
	if err := m.store.Put(ctx, session); err != nil {
		return sessions.Session{}, errors.Wrap(err, "[SessionManager.CreateSession]")
	}
	return session, nil
}

// RemoveSession logs the session out locally and then revokes its tokens.
// An unknown id is a no-op. Revocation is best effort: its failure is logged
// and never undoes the local removal.
func (m *SessionManager) RemoveSession(ctx context.Context, id string) error {
	removed, ok, err := m.store.Delete(ctx, id)
	if err != nil {
		return errors.Wrap(err, "[SessionManager.RemoveSession]")
	}
	if !ok {
		return nil
	}

	log.Info().Str("session_id", id).Msg("Session removed")
	m.recorder.SessionsActive(m.store.Len())
	m.store.Notify(sessions.ChangeEvent{Removed: []sessions.Session{removed}})

	m.revoke(ctx, removed)
	return nil
}

func (m *SessionManager) revoke(ctx context.Context, s sessions.Session) {
	if s.RefreshToken != "" {
		if err := m.tokens.Revoke(ctx, s.RefreshToken); err != nil {
			log.Err(err).Str("session_id", s.ID).Msg("Failed to revoke refresh token")
		}
	}
	if err := m.tokens.Revoke(ctx, s.AccessToken); err != nil {
		log.Err(err).Str("session_id", s.ID).Msg("Failed to revoke access token")
	}
}

// RefreshSession swaps the session's access token for a new one. Concurrent
// refreshes of the same id share one remote call. On failure the stored
// session is left as it was.
func (m *SessionManager) RefreshSession(ctx context.Context, id string) (sessions.Session, error) {
	results := m.refreshes.DoChan(id, func() (any, error) {
		// the shared call outlives whichever caller started it
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.refreshTimeout)
		defer cancel()
		return m.refreshSession(shared, id)
	})

	select {
	case res := <-results:
		if res.Err != nil {
			return sessions.Session{}, res.Err
		}
		return res.Val.(sessions.Session).Clone(), nil
	case <-ctx.Done():
		return sessions.Session{}, errors.Wrap(ctx.Err(), "[SessionManager.RefreshSession]")
	}
}

func (m *SessionManager) refreshSession(ctx context.Context, id string) (sessions.Session, error) {
	updated, err := m.doRefresh(ctx, id)
	m.recorder.RefreshCompleted(metrics.Outcome(err))
	if err != nil {
		log.Err(err).Str("session_id", id).Msg("Token refresh failed")
		return sessions.Session{}, err
	}

	log.Debug().Str("session_id", id).Msg("Session refreshed")
	m.store.Notify(sessions.ChangeEvent{Changed: []sessions.Session{updated.Clone()}})
	return updated, nil
}

func (m *SessionManager) doRefresh(ctx context.Context, id string) (sessions.Session, error) {
	current, err := m.store.Get(id)
	if err != nil {
		return sessions.Session{}, errors.Wrap(err, "[SessionManager.RefreshSession]")
	}

	newToken, err := m.tokens.Refresh(ctx, current.AccessToken)
	if err != nil {
		return sessions.Session{}, errors.Wrap(err, "[SessionManager.RefreshSession]")
	}

	// Update rather than Put so a session removed meanwhile is not resurrected
	updated, err := m.store.Update(ctx, id, func(s sessions.Session) (sessions.Session, error) {
		s.AccessToken = newToken
		if expiresAt := token.ExpiryOf(newToken); expiresAt != nil {
			s.ExpiresAt = expiresAt
		}
		return s, nil
	})
	if err != nil {
		return sessions.Session{}, errors.Wrap(err, "[SessionManager.RefreshSession]")
	}
	return updated, nil
}

// Subscribe registers fn for every ChangeEvent until unsubscribe is called
func (m *SessionManager) Subscribe(fn sessions.Listener) (unsubscribe func()) {
	return m.store.Subscribe(fn)
}

// Sweep runs one validation pass and returns the evicted sessions
func (m *SessionManager) Sweep(ctx context.Context) ([]sessions.Session, error) {
	return m.validator.Sweep(ctx)
}

// StartValidation sweeps in the background every interval until ctx is done.
// The returned channel is closed once the loop has stopped.
func (m *SessionManager) StartValidation(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.validator.Run(ctx, interval)
	}()
	return done
}

// ValidationMode reports how sweeps decide validity
func (m *SessionManager) ValidationMode() sessions.ValidationMode {
	return m.validator.Mode()
}

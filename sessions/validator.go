package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-auth-session/internal/metrics"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ValidationMode selects how a sweep decides whether a session is still valid.
type ValidationMode string

const (
	// RemoteValidation asks the auth service about every access token
	RemoteValidation ValidationMode = "remote"
	// LocalExpiryValidation only checks the stored ExpiresAt; sessions without one stay valid
	LocalExpiryValidation ValidationMode = "local-expiry"
)

const defaultSweepConcurrency = 4

// TokenValidator reports whether an access token is still accepted remotely.
// Implementations return false on any failure rather than an error.
type TokenValidator interface {
	Validate(ctx context.Context, accessToken string) bool
}

// Validator sweeps the registry and evicts sessions that no longer validate.
type Validator struct {
	store       *Store
	tokens      TokenValidator
	mode        ValidationMode
	concurrency int
	recorder    metrics.Recorder
	nowTime     func() time.Time

	sweepLock sync.Mutex // sweeps never overlap
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

func WithValidationMode(mode ValidationMode) ValidatorOption {
	return func(v *Validator) {
		v.mode = mode
	}
}

// WithSweepConcurrency bounds the number of validate calls in flight during a sweep
func WithSweepConcurrency(n int) ValidatorOption {
	return func(v *Validator) {
		if n > 0 {
			v.concurrency = n
		}
	}
}

func WithRecorder(r metrics.Recorder) ValidatorOption {
	return func(v *Validator) {
		if r != nil {
			v.recorder = r
		}
	}
}

// WithNowTime sets the clock used for local expiry checks (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ValidatorOption {
	return func(v *Validator) {
		v.nowTime = nowFunc
	}
}

// NewValidator creates a Validator. tokens may be nil only in LocalExpiryValidation mode.
func NewValidator(store *Store, tokens TokenValidator, options ...ValidatorOption) (*Validator, error) {
	if store == nil {
		return nil, errors.New("[NewValidator] store is required")
	}

	v := &Validator{
		store:       store,
		tokens:      tokens,
		mode:        RemoteValidation,
		concurrency: defaultSweepConcurrency,
		recorder:    metrics.Noop{},
		nowTime:     time.Now,
	}
	for _, opt := range options {
		opt(v)
	}

	switch v.mode {
	case RemoteValidation:
		if v.tokens == nil {
			return nil, errors.New("[NewValidator] token validator is required for remote validation")
		}
	case LocalExpiryValidation:
	default:
		return nil, errors.Errorf("[NewValidator] unknown validation mode %q", v.mode)
	}
	return v, nil
}

// Mode returns the validation mode in use
func (v *Validator) Mode() ValidationMode {
	return v.mode
}

// Sweep validates every session, evicts the failures with a single persist
// and emits one ChangeEvent listing them. Per-session failures never abort
// the sweep; only a storage failure or a cancelled ctx is returned, and in
// both cases nothing is evicted.
func (v *Validator) Sweep(ctx context.Context) ([]Session, error) {
	v.sweepLock.Lock()
	defer v.sweepLock.Unlock()

	all := v.store.List()
	valid := make([]bool, len(all))

	var g errgroup.Group
	g.SetLimit(v.concurrency)
	for i, session := range all {
		g.Go(func() error {
			valid[i] = v.isValid(ctx, session)
			return nil
		})
	}
	_ = g.Wait()

	// A cancelled sweep would read every failed call as invalid
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "[Validator.Sweep] cancelled")
	}

	evict := make([]Session, 0)
	for i, session := range all {
		if !valid[i] {
			evict = append(evict, session)
		}
	}

	var evicted []Session
	if len(evict) > 0 {
		// a session refreshed or replaced during validation keeps its new token
		removed, err := v.store.DeleteUnchanged(ctx, evict)
		if err != nil {
			return nil, errors.Wrap(err, "[Validator.Sweep] evict")
		}
		evicted = removed
	}

	v.recorder.SweepCompleted(len(evicted))
	v.recorder.SessionsActive(v.store.Len())
	if len(evicted) > 0 {
		for _, s := range evicted {
			log.Info().Str("session_id", s.ID).Str("mode", string(v.mode)).Msg("Evicted session")
		}
		v.store.Notify(ChangeEvent{Removed: evicted})
	}
	return evicted, nil
}

func (v *Validator) isValid(ctx context.Context, session Session) (valid bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("session_id", session.ID).Msg("Token validation panicked")
			valid = false
		}
	}()

	if v.mode == LocalExpiryValidation {
		return !session.IsExpired(v.nowTime())
	}
	return v.tokens.Validate(ctx, session.AccessToken)
}

// Run sweeps immediately and then every interval until ctx is done.
func (v *Validator) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		log.Warn().Dur("interval", interval).Msg("Periodic validation disabled")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := v.Sweep(ctx); err != nil && ctx.Err() == nil {
			log.Err(err).Msg("Session sweep failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

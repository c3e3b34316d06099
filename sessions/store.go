package sessions

import (
	"context"
	"encoding/json"
	"maps"
	"slices"
	"strings"
	"sync"

	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/internal/utils"
	"github.com/jrsteele09/go-auth-session/secrets"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// DefaultSecretKey is the secret-store key the registry is persisted under.
const DefaultSecretKey = "sessions"

// Store is the in-memory session registry backed by a secrets.Store.
// Every mutation is flushed synchronously and becomes visible only once the
// flush succeeds, so the registry never diverges from storage.
type Store struct {
	secrets   secrets.Store
	secretKey string

	writeLock sync.Mutex   // serializes mutations and persists
	lock      sync.RWMutex // guards sessions
	sessions  map[string]Session

	listeners listeners
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithSecretKey overrides the key the registry is persisted under
func WithSecretKey(key string) StoreOption {
	return func(s *Store) {
		s.secretKey = key
	}
}

// NewStore creates an empty registry. Call Load to hydrate it from storage.
func NewStore(secretStore secrets.Store, options ...StoreOption) (*Store, error) {
	if secretStore == nil {
		return nil, errors.New("[NewStore] secret store is required")
	}

	s := &Store{
		secrets:   secretStore,
		secretKey: DefaultSecretKey,
		sessions:  make(map[string]Session),
	}
	for _, opt := range options {
		opt(s)
	}
	if strings.TrimSpace(s.secretKey) == "" {
		return nil, errors.New("[NewStore] secret key cannot be empty")
	}
	return s, nil
}

// Load replaces the registry with the persisted blob. Records that fail
// schema validation are dropped; only an unreadable or unparsable blob fails.
func (s *Store) Load(ctx context.Context) error {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	blob, err := s.secrets.Get(ctx, s.secretKey)
	if err != nil {
		return autherrors.Storage("Store.Load", err)
	}

	loaded := make(map[string]Session)
	if len(blob) > 0 {
		var records []json.RawMessage
		if err := json.Unmarshal(blob, &records); err != nil {
			return autherrors.Storage("Store.Load", err)
		}

		for i, raw := range records {
			var session Session
			if err := json.Unmarshal(raw, &session); err != nil {
				log.Warn().Err(err).Int("index", i).Msg("Dropping unreadable session record")
				continue
			}
			if err := session.Validate(); err != nil {
				log.Warn().Err(err).Int("index", i).Str("session_id", session.ID).Msg("Dropping invalid session record")
				continue
			}
			session.Scopes = utils.NormalizeScopes(session.Scopes)
			loaded[session.ID] = session
		}
	}

	s.lock.Lock()
	s.sessions = loaded
	s.lock.Unlock()

	log.Debug().Int("sessions", len(loaded)).Msg("Session registry loaded")
	return nil
}

// List returns copies of the sessions holding every requested scope, ordered
// by ID. With no scopes it returns every session.
func (s *Store) List(scopes ...string) []Session {
	s.lock.RLock()
	defer s.lock.RUnlock()

	want := utils.NormalizeScopes(scopes)
	list := make([]Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		if session.HasScopes(want) {
			list = append(list, session.Clone())
		}
	}
	slices.SortFunc(list, func(a, b Session) int { return strings.Compare(a.ID, b.ID) })
	return list
}

// Get returns a copy of the session with the given ID
func (s *Store) Get(id string) (Session, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return Session{}, errors.Wrapf(autherrors.ErrSessionNotFound, "[Store.Get] %q", id)
	}
	return session.Clone(), nil
}

// Len returns the number of sessions in the registry
func (s *Store) Len() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.sessions)
}

// Put upserts session by ID and persists. Put does not notify; callers emit
// the ChangeEvent that describes their operation.
func (s *Store) Put(ctx context.Context, session Session) error {
	session = session.Clone()
	session.Scopes = utils.NormalizeScopes(session.Scopes)
	if err := session.Validate(); err != nil {
		return errors.Wrap(err, "[Store.Put] invalid session")
	}

	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	return s.putLocked(ctx, session)
}

// Update applies mutate to the current value of the session and persists the
// result, all under the write lock. It fails with ErrSessionNotFound when the
// session no longer exists.
func (s *Store) Update(ctx context.Context, id string, mutate func(current Session) (Session, error)) (Session, error) {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	s.lock.RLock()
	current, ok := s.sessions[id]
	s.lock.RUnlock()
	if !ok {
		return Session{}, errors.Wrapf(autherrors.ErrSessionNotFound, "[Store.Update] %q", id)
	}

	updated, err := mutate(current.Clone())
	if err != nil {
		return Session{}, err
	}
	updated.Scopes = utils.NormalizeScopes(updated.Scopes)
	if updated.ID != id {
		return Session{}, errors.Errorf("[Store.Update] session id changed from %q to %q", id, updated.ID)
	}
	if err := updated.Validate(); err != nil {
		return Session{}, errors.Wrap(err, "[Store.Update] invalid session")
	}

	if err := s.putLocked(ctx, updated); err != nil {
		return Session{}, err
	}
	return updated.Clone(), nil
}

func (s *Store) putLocked(ctx context.Context, session Session) error {
	next := s.snapshotLocked()
	next[session.ID] = session
	return s.commitLocked(ctx, next)
}

// Delete removes the session with the given ID and persists. It returns the
// removed session and whether it existed; a missing ID is a no-op.
func (s *Store) Delete(ctx context.Context, id string) (Session, bool, error) {
	removed, err := s.DeleteMany(ctx, []string{id})
	if err != nil || len(removed) == 0 {
		return Session{}, false, err
	}
	return removed[0], true, nil
}

// DeleteMany removes every listed session that exists with a single persist
// and returns the removed sessions. Nothing is persisted when none exist.
func (s *Store) DeleteMany(ctx context.Context, ids []string) ([]Session, error) {
	return s.deleteWhere(ctx, ids, func(Session) bool { return true })
}

// DeleteUnchanged removes each of the given sessions only while the stored
// entry still carries the same access token, with a single persist. Sessions
// refreshed, replaced or removed since they were read are left alone.
func (s *Store) DeleteUnchanged(ctx context.Context, seen []Session) ([]Session, error) {
	tokens := make(map[string]string, len(seen))
	ids := make([]string, 0, len(seen))
	for _, session := range seen {
		tokens[session.ID] = session.AccessToken
		ids = append(ids, session.ID)
	}
	return s.deleteWhere(ctx, ids, func(current Session) bool {
		return current.AccessToken == tokens[current.ID]
	})
}

func (s *Store) deleteWhere(ctx context.Context, ids []string, match func(current Session) bool) ([]Session, error) {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	next := s.snapshotLocked()
	removed := make([]Session, 0, len(ids))
	for _, id := range ids {
		if session, ok := next[id]; ok && match(session) {
			removed = append(removed, session.Clone())
			delete(next, id)
		}
	}
	if len(removed) == 0 {
		return nil, nil
	}

	if err := s.commitLocked(ctx, next); err != nil {
		return nil, err
	}
	return removed, nil
}

// Persist writes the whole registry to the secret store.
func (s *Store) Persist(ctx context.Context) error {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()
	return s.persist(ctx, s.snapshotLocked())
}

// snapshotLocked copies the live registry. Callers hold writeLock.
func (s *Store) snapshotLocked() map[string]Session {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return maps.Clone(s.sessions)
}

// commitLocked persists next and only then makes it the live registry, so
// readers never see a change that storage rejected.
func (s *Store) commitLocked(ctx context.Context, next map[string]Session) error {
	if err := s.persist(ctx, next); err != nil {
		return err
	}
	s.lock.Lock()
	s.sessions = next
	s.lock.Unlock()
	return nil
}

func (s *Store) persist(ctx context.Context, registry map[string]Session) error {
	list := make([]Session, 0, len(registry))
	for _, session := range registry {
		list = append(list, session)
	}
	slices.SortFunc(list, func(a, b Session) int { return strings.Compare(a.ID, b.ID) })
	blob, err := json.Marshal(list)
	if err != nil {
		return autherrors.Storage("Store.Persist", err)
	}
	if err := s.secrets.Set(ctx, s.secretKey, blob); err != nil {
		log.Err(err).Str("key", s.secretKey).Msg("Failed to persist session registry")
		return autherrors.Storage("Store.Persist", err)
	}
	return nil
}

// Subscribe registers fn for change events and returns its unsubscribe func.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	return s.listeners.subscribe(fn)
}

// Notify delivers event to every subscriber. Empty events are dropped.
func (s *Store) Notify(event ChangeEvent) {
	if event.IsEmpty() {
		return
	}
	s.listeners.notify(event)
}

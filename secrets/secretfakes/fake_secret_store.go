package secretfakes

import (
	"context"
	"errors"
	"sync"

	"github.com/jrsteele09/go-auth-session/secrets"
)

var _ secrets.Store = (*FakeSecretStore)(nil)

// ErrInjected is the failure returned when a fake operation is told to fail.
var ErrInjected = errors.New("injected secret store failure")

// FakeSecretStore is an in-memory secrets.Store that counts calls and can be
// told to fail reads or writes.
type FakeSecretStore struct {
	lock     sync.Mutex
	inner    *secrets.MemoryStore
	FailGet  bool
	FailSet  bool
	OnSet    func() // runs before every Set, outside the fake's lock
	getCalls int
	setCalls int
}

func NewFakeSecretStore() *FakeSecretStore {
	return &FakeSecretStore{inner: secrets.NewMemoryStore()}
}

func (f *FakeSecretStore) Get(ctx context.Context, key string) ([]byte, error) {
	f.lock.Lock()
	f.getCalls++
	fail := f.FailGet
	f.lock.Unlock()

	if fail {
		return nil, ErrInjected
	}
	return f.inner.Get(ctx, key)
}

func (f *FakeSecretStore) Set(ctx context.Context, key string, value []byte) error {
	f.lock.Lock()
	f.setCalls++
	fail := f.FailSet
	onSet := f.OnSet
	f.lock.Unlock()

	if onSet != nil {
		onSet()
	}
	if fail {
		return ErrInjected
	}
	return f.inner.Set(ctx, key, value)
}

func (f *FakeSecretStore) Delete(ctx context.Context, key string) error {
	return f.inner.Delete(ctx, key)
}

// SetFailSet toggles write failures
func (f *FakeSecretStore) SetFailSet(fail bool) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.FailSet = fail
}

// SetCalls returns the number of Set calls, failed ones included
func (f *FakeSecretStore) SetCalls() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.setCalls
}

// GetCalls returns the number of Get calls, failed ones included
func (f *FakeSecretStore) GetCalls() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.getCalls
}

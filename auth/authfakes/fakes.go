package authfakes

import (
	"context"
	"errors"
	"sync"

	"github.com/jrsteele09/go-auth-session/authflow"
	"github.com/jrsteele09/go-auth-session/token"
)

var ErrInjected = errors.New("injected failure")

// FlowCall records one BeginFlow invocation
type FlowCall struct {
	LoginPageURL string
	Scopes       []string
}

// FakeFlowRunner resolves every flow with Result or Err.
type FakeFlowRunner struct {
	mu     sync.Mutex
	calls  []FlowCall
	Result *authflow.Result
	Err    error
}

func (f *FakeFlowRunner) BeginFlow(_ context.Context, loginPageURL string, scopes []string) (*authflow.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, FlowCall{LoginPageURL: loginPageURL, Scopes: append([]string(nil), scopes...)})
	if f.Err != nil {
		return nil, f.Err
	}
	r := *f.Result
	return &r, nil
}

func (f *FakeFlowRunner) Calls() []FlowCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FlowCall(nil), f.calls...)
}

// FakeTokenService is a scripted remote auth API.
type FakeTokenService struct {
	mu sync.Mutex

	NewToken   string // Returned by Refresh
	RefreshErr error
	// RefreshGate, when set, blocks Refresh until it is closed or ctx is done
	RefreshGate chan struct{}
	refreshes   []string

	RevokeErr error
	revoked   []string

	Valid map[string]bool

	UserInfo    *token.UserInfo
	UserInfoErr error
	userInfos   int
}

func (f *FakeTokenService) Refresh(ctx context.Context, oldToken string) (string, error) {
	f.mu.Lock()
	f.refreshes = append(f.refreshes, oldToken)
	gate := f.RefreshGate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RefreshErr != nil {
		return "", f.RefreshErr
	}
	return f.NewToken, nil
}

func (f *FakeTokenService) Revoke(_ context.Context, tok string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, tok)
	return f.RevokeErr
}

func (f *FakeTokenService) Validate(_ context.Context, tok string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Valid[tok]
}

func (f *FakeTokenService) FetchUserInfo(_ context.Context, _ string) (*token.UserInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userInfos++
	if f.UserInfoErr != nil {
		return f.UserInfo, f.UserInfoErr
	}
	if f.UserInfo == nil {
		return &token.UserInfo{Active: true}, nil
	}
	info := *f.UserInfo
	return &info, nil
}

func (f *FakeTokenService) Refreshes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.refreshes...)
}

func (f *FakeTokenService) Revoked() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.revoked...)
}

func (f *FakeTokenService) UserInfoCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.userInfos
}

package auth

import (
	"context"
	"net/http"

	"github.com/jrsteele09/go-auth-session/internal/utils"
	"github.com/jrsteele09/go-auth-session/sessions"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// sessionTokenSource serves the current access token of one stored session
type sessionTokenSource struct {
	ctx     context.Context
	manager *SessionManager
	id      string
}

// TokenSource returns an oauth2.TokenSource for the session stored under id.
// The session is re-read on every call and refreshed through RefreshSession
// once its expiry falls within the refresh threshold.
func (m *SessionManager) TokenSource(ctx context.Context, id string) oauth2.TokenSource {
	return &sessionTokenSource{ctx: ctx, manager: m, id: id}
}

// HTTPClient returns a client that sends the session's bearer token on every request
func (m *SessionManager) HTTPClient(ctx context.Context, id string) *http.Client {
	return oauth2.NewClient(ctx, m.TokenSource(ctx, id))
}

func (ts *sessionTokenSource) Token() (*oauth2.Token, error) {
	m := ts.manager
	s, err := m.store.Get(ts.id)
	if err != nil {
		return nil, errors.Wrap(err, "[TokenSource]")
	}

	if m.needsRefresh(s) {
		if s, err = m.RefreshSession(ts.ctx, ts.id); err != nil {
			return nil, errors.Wrap(err, "[TokenSource]")
		}
	}
	return oauth2Token(s), nil
}

func (m *SessionManager) needsRefresh(s sessions.Session) bool {
	if s.ExpiresAt == nil {
		return false
	}
	return !m.nowTime().Add(m.refreshThreshold).Before(*s.ExpiresAt)
}

func oauth2Token(s sessions.Session) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: s.RefreshToken,
		Expiry:       utils.Value(s.ExpiresAt),
	}
}

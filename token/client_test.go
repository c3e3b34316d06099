package token_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/token"
	"github.com/stretchr/testify/require"
)

// authAPI is a scripted remote auth service
type authAPI struct {
	status   int
	body     string
	lastPath string
	lastBody map[string]any
	lastAuth string
}

func (a *authAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.lastPath = r.Method + " " + r.URL.Path
	a.lastAuth = r.Header.Get("Authorization")
	a.lastBody = nil
	if data, _ := io.ReadAll(r.Body); len(data) > 0 {
		_ = json.Unmarshal(data, &a.lastBody)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(a.status)
	_, _ = io.WriteString(w, a.body)
}

func newTestClient(t *testing.T, status int, body string) (*token.Client, *authAPI) {
	t.Helper()
	api := &authAPI{status: status, body: body}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	c, err := token.NewClient(srv.URL + "/api/auth/")
	require.NoError(t, err)
	return c, api
}

// unreachableClient points at a closed server so every call fails in transport
func unreachableClient(t *testing.T) *token.Client {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c, err := token.NewClient(srv.URL, token.WithHTTPClient(&http.Client{Timeout: time.Second}))
	require.NoError(t, err)
	return c
}

func TestNewClient(t *testing.T) {
	_, err := token.NewClient("not a url")
	require.Error(t, err)
	_, err = token.NewClient("/relative/path")
	require.Error(t, err)
}

func TestClient_Login(t *testing.T) {
	ctx := context.Background()
	creds := token.Credentials{Username: "ann", Password: "pw"}

	t.Run("token field", func(t *testing.T) {
		c, api := newTestClient(t, http.StatusOK, `{"token":"tok"}`)
		tok, err := c.Login(ctx, creds, []string{"chat"})
		require.NoError(t, err)
		require.Equal(t, "tok", tok)
		require.Equal(t, "POST /api/auth/login", api.lastPath)
		require.Equal(t, "ann", api.lastBody["username"])
		require.Equal(t, "pw", api.lastBody["password"])
		require.Equal(t, []any{"chat"}, api.lastBody["scopes"])
	})

	t.Run("access_token field", func(t *testing.T) {
		c, _ := newTestClient(t, http.StatusOK, `{"access_token":"tok2"}`)
		tok, err := c.Login(ctx, creds, nil)
		require.NoError(t, err)
		require.Equal(t, "tok2", tok)
	})

	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"error":"invalid_grant"}`, want: autherrors.ErrInvalidCredentials},
		{name: "server error", status: http.StatusInternalServerError, body: ``, want: autherrors.ErrAuthService},
		{name: "missing token", status: http.StatusOK, body: `{"user":"ann"}`, want: autherrors.ErrMalformedResponse},
		{name: "not json", status: http.StatusOK, body: `<html>`, want: autherrors.ErrMalformedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, tt.status, tt.body)
			_, err := c.Login(ctx, creds, nil)
			require.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("auth service error keeps status and message", func(t *testing.T) {
		c, _ := newTestClient(t, http.StatusForbidden, `{"error":"access_denied","error_description":"account locked"}`)
		_, err := c.Login(ctx, creds, nil)
		var serviceErr *autherrors.AuthServiceError
		require.ErrorAs(t, err, &serviceErr)
		require.Equal(t, http.StatusForbidden, serviceErr.Status)
		require.Equal(t, "account locked", serviceErr.Message)
	})

	t.Run("network failure", func(t *testing.T) {
		_, err := unreachableClient(t).Login(ctx, creds, nil)
		require.ErrorIs(t, err, autherrors.ErrNetwork)
	})
}

func TestClient_Refresh(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		c, api := newTestClient(t, http.StatusOK, `{"token":"new"}`)
		tok, err := c.Refresh(ctx, "old")
		require.NoError(t, err)
		require.Equal(t, "new", tok)
		require.Equal(t, "POST /api/auth/refresh-token", api.lastPath)
		require.Equal(t, "old", api.lastBody["token"])
	})

	t.Run("unauthorized is expired token", func(t *testing.T) {
		c, _ := newTestClient(t, http.StatusUnauthorized, `{}`)
		_, err := c.Refresh(ctx, "old")
		require.ErrorIs(t, err, autherrors.ErrExpiredToken)
		require.NotErrorIs(t, err, autherrors.ErrInvalidCredentials)
	})

	t.Run("bad gateway", func(t *testing.T) {
		c, _ := newTestClient(t, http.StatusBadGateway, `{}`)
		_, err := c.Refresh(ctx, "old")
		require.ErrorIs(t, err, autherrors.ErrAuthService)
		require.Equal(t, http.StatusBadGateway, autherrors.StatusOf(err))
	})

	t.Run("empty token", func(t *testing.T) {
		c, _ := newTestClient(t, http.StatusOK, `{"token":""}`)
		_, err := c.Refresh(ctx, "old")
		require.ErrorIs(t, err, autherrors.ErrMalformedResponse)
	})

	t.Run("network failure", func(t *testing.T) {
		_, err := unreachableClient(t).Refresh(ctx, "old")
		require.ErrorIs(t, err, autherrors.ErrNetwork)
	})
}

func TestClient_Revoke(t *testing.T) {
	ctx := context.Background()

	t.Run("no content", func(t *testing.T) {
		c, api := newTestClient(t, http.StatusNoContent, ``)
		require.NoError(t, c.Revoke(ctx, "tok"))
		require.Equal(t, "POST /api/auth/revoke-token", api.lastPath)
		require.Equal(t, "tok", api.lastBody["token"])
	})

	t.Run("any status failure is an auth service error", func(t *testing.T) {
		c, _ := newTestClient(t, http.StatusUnauthorized, `{}`)
		err := c.Revoke(ctx, "tok")
		require.ErrorIs(t, err, autherrors.ErrAuthService)
	})

	t.Run("network failure", func(t *testing.T) {
		require.ErrorIs(t, unreachableClient(t).Revoke(ctx, "tok"), autherrors.ErrNetwork)
	})
}

func TestClient_Validate(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		status int
		body   string
		want   bool
	}{
		{name: "valid", status: http.StatusOK, body: `{"valid":true}`, want: true},
		{name: "invalid", status: http.StatusOK, body: `{"valid":false}`, want: false},
		{name: "missing field", status: http.StatusOK, body: `{}`, want: false},
		{name: "garbage", status: http.StatusOK, body: `nope`, want: false},
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"valid":true}`, want: false},
		{name: "server error", status: http.StatusInternalServerError, body: ``, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, api := newTestClient(t, tt.status, tt.body)
			require.Equal(t, tt.want, c.Validate(ctx, "tok"))
			require.Equal(t, "POST /api/auth/validate-token", api.lastPath)
		})
	}

	t.Run("network failure", func(t *testing.T) {
		require.False(t, unreachableClient(t).Validate(ctx, "tok"))
	})
}

func TestClient_FetchUserInfo(t *testing.T) {
	ctx := context.Background()

	t.Run("active account", func(t *testing.T) {
		c, api := newTestClient(t, http.StatusOK, `{"id":"u1","name":"Ann","email":"a@x.com","active":true}`)
		info, err := c.FetchUserInfo(ctx, "tok")
		require.NoError(t, err)
		require.Equal(t, &token.UserInfo{ID: "u1", DisplayName: "Ann", Email: "a@x.com", Active: true}, info)
		require.Equal(t, "GET /api/auth/userinfo", api.lastPath)
		require.Equal(t, "Bearer tok", api.lastAuth)
	})

	t.Run("displayName wins over name", func(t *testing.T) {
		c, _ := newTestClient(t, http.StatusOK, `{"name":"ann","displayName":"Ann A.","email":"a@x.com"}`)
		info, err := c.FetchUserInfo(ctx, "tok")
		require.NoError(t, err)
		require.Equal(t, "Ann A.", info.DisplayName)
		require.True(t, info.Active, "absent active flag is not a disabled account")
	})

	t.Run("inactive account", func(t *testing.T) {
		c, _ := newTestClient(t, http.StatusOK, `{"email":"a@x.com","active":false}`)
		_, err := c.FetchUserInfo(ctx, "tok")
		require.ErrorIs(t, err, autherrors.ErrAccountInactive)
	})

	t.Run("unauthorized", func(t *testing.T) {
		c, _ := newTestClient(t, http.StatusUnauthorized, `{}`)
		_, err := c.FetchUserInfo(ctx, "tok")
		require.ErrorIs(t, err, autherrors.ErrAuthService)
	})

	t.Run("network failure", func(t *testing.T) {
		_, err := unreachableClient(t).FetchUserInfo(ctx, "tok")
		require.ErrorIs(t, err, autherrors.ErrNetwork)
	})
}

func TestExpiryOf(t *testing.T) {
	exp := time.Date(2031, 5, 6, 7, 8, 9, 0, time.UTC)
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.RegisteredClaims{
		Subject:   "a@x.com",
		ExpiresAt: jwtlib.NewNumericDate(exp),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	got := token.ExpiryOf(signed)
	require.NotNil(t, got)
	require.True(t, exp.Equal(*got))

	noExp, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.RegisteredClaims{Subject: "a@x.com"}).
		SignedString([]byte("test-secret"))
	require.NoError(t, err)
	require.Nil(t, token.ExpiryOf(noExp))

	require.Nil(t, token.ExpiryOf("opaque-token"))
}

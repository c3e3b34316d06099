package token

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/pkg/errors"
)

const (
	loginPath    = "/login"
	refreshPath  = "/refresh-token"
	revokePath   = "/revoke-token"
	validatePath = "/validate-token"
	userInfoPath = "/userinfo"

	defaultTimeout   = 30 * time.Second
	maxResponseBytes = 1 << 20
)

// Client is a stateless JSON client for the remote auth service. Every call
// is a single request with no retry. Transport failures map to ErrNetwork,
// non-2xx statuses to *AuthServiceError unless a call documents otherwise.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client used for requests (timeouts, TLS, transport)
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func WithUserAgent(userAgent string) ClientOption {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// NewClient creates a client for the auth API rooted at baseURL
// (e.g. "https://auth.example.com/api/auth").
func NewClient(baseURL string, options ...ClientOption) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "[NewClient] invalid base url")
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("[NewClient] base url %q must be absolute", baseURL)
	}

	c := &Client{
		baseURL:    strings.TrimRight(u.String(), "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		userAgent:  "go-auth-session",
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Login exchanges a username and password for an access token.
// A 401 maps to ErrInvalidCredentials.
func (c *Client) Login(ctx context.Context, credentials Credentials, scopes []string) (string, error) {
	if scopes == nil {
		scopes = []string{}
	}
	var resp tokenResponse
	err := c.send(ctx, http.MethodPost, loginPath, "", loginRequest{
		Username: credentials.Username,
		Password: credentials.Password,
		Scopes:   scopes,
	}, &resp)
	if err != nil {
		if autherrors.StatusOf(err) == http.StatusUnauthorized {
			return "", errors.Wrap(autherrors.ErrInvalidCredentials, "[Client.Login]")
		}
		return "", errors.Wrap(err, "[Client.Login]")
	}
	if resp.value() == "" {
		return "", errors.Wrap(autherrors.ErrMalformedResponse, "[Client.Login] no token in response")
	}
	return resp.value(), nil
}

// Refresh exchanges a current access token for a new one.
// A 401 maps to ErrExpiredToken.
func (c *Client) Refresh(ctx context.Context, oldToken string) (string, error) {
	var resp tokenResponse
	if err := c.send(ctx, http.MethodPost, refreshPath, "", tokenRequest{Token: oldToken}, &resp); err != nil {
		if autherrors.StatusOf(err) == http.StatusUnauthorized {
			return "", errors.Wrap(autherrors.ErrExpiredToken, "[Client.Refresh]")
		}
		return "", errors.Wrap(err, "[Client.Refresh]")
	}
	if resp.value() == "" {
		return "", errors.Wrap(autherrors.ErrMalformedResponse, "[Client.Refresh] no token in response")
	}
	return resp.value(), nil
}

// Revoke asks the service to invalidate token.
func (c *Client) Revoke(ctx context.Context, token string) error {
	if err := c.send(ctx, http.MethodPost, revokePath, "", tokenRequest{Token: token}, nil); err != nil {
		return errors.Wrap(err, "[Client.Revoke]")
	}
	return nil
}

// Validate reports whether the service still accepts token. Any failure,
// transport or status, reads as false; Validate never returns an error.
func (c *Client) Validate(ctx context.Context, token string) bool {
	var resp validateResponse
	if err := c.send(ctx, http.MethodPost, validatePath, "", tokenRequest{Token: token}, &resp); err != nil {
		return false
	}
	return resp.Valid
}

// FetchUserInfo returns the account behind token. An account the service
// reports as inactive yields ErrAccountInactive.
func (c *Client) FetchUserInfo(ctx context.Context, token string) (*UserInfo, error) {
	var resp userInfoResponse
	if err := c.send(ctx, http.MethodGet, userInfoPath, token, nil, &resp); err != nil {
		return nil, errors.Wrap(err, "[Client.FetchUserInfo]")
	}

	info := &UserInfo{
		ID:          resp.ID,
		DisplayName: resp.DisplayName,
		Email:       resp.Email,
		Active:      resp.Active == nil || *resp.Active,
	}
	if info.DisplayName == "" {
		info.DisplayName = resp.Name
	}
	if !info.Active {
		return info, errors.Wrapf(autherrors.ErrAccountInactive, "[Client.FetchUserInfo] %s", info.Email)
	}
	return info, nil
}

// send performs one request. body is JSON encoded when non-nil, out is
// decoded from a 2xx response when non-nil.
func (c *Client) send(ctx context.Context, method, path, bearer string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", autherrors.ErrNetwork, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: read %s response: %w", autherrors.ErrNetwork, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp errorResponse
		_ = json.Unmarshal(data, &errResp)
		return &autherrors.AuthServiceError{Status: resp.StatusCode, Message: errResp.text()}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s: %w", autherrors.ErrMalformedResponse, path, err)
	}
	return nil
}

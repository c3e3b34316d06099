package authflow

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	DefaultTimeout = 5 * time.Minute

	// Unknown stands in for a display name or email the callback did not carry
	Unknown = "Unknown"
)

// Callback and redirect query parameter names
const (
	ParamState        = "state"
	ParamRedirectURI  = "redirect_uri"
	ParamScope        = "scope"
	ParamAccessToken  = "access_token"
	ParamRefreshToken = "refresh_token"
	ParamDisplayName  = "displayName"
	ParamEmail        = "email"
	ParamActive       = "active"
)

// Result is the raw login payload carried by a successful callback.
type Result struct {
	AccessToken  string
	RefreshToken string
	DisplayName  string
	Email        string
	Active       bool
}

// Coordinator drives the browser login round trip: it sends the user to the
// login page with a one-time state token and waits for the matching callback.
type Coordinator struct {
	acceptor CallbackAcceptor
	opener   BrowserOpener
	resolver URIResolver

	timeout  time.Duration
	newState func() string
	nowTime  func() time.Time
	pending  *pendingFlows
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithTimeout sets how long a flow waits for its callback
func WithTimeout(timeout time.Duration) Option {
	return func(c *Coordinator) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithStateGenerator replaces the state token generator (primarily for testing)
func WithStateGenerator(gen func() string) Option {
	return func(c *Coordinator) {
		if gen != nil {
			c.newState = gen
		}
	}
}

func WithNowTime(nowFunc func() time.Time) Option {
	return func(c *Coordinator) {
		c.nowTime = nowFunc
	}
}

func NewCoordinator(acceptor CallbackAcceptor, opener BrowserOpener, resolver URIResolver, options ...Option) (*Coordinator, error) {
	if acceptor == nil {
		return nil, errors.New("[NewCoordinator] callback acceptor is required")
	}
	if opener == nil {
		return nil, errors.New("[NewCoordinator] browser opener is required")
	}
	if resolver == nil {
		return nil, errors.New("[NewCoordinator] uri resolver is required")
	}

	c := &Coordinator{
		acceptor: acceptor,
		opener:   opener,
		resolver: resolver,
		timeout:  DefaultTimeout,
		newState: uuid.NewString,
		nowTime:  time.Now,
		pending:  newPendingFlows(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// BeginFlow opens loginPageURL and blocks until the callback arrives, the
// flow times out or ctx is done. Exactly one outcome is produced and the
// callback handler is unregistered before BeginFlow returns.
func (c *Coordinator) BeginFlow(ctx context.Context, loginPageURL string, scopes []string) (*Result, error) {
	state := c.newState()

	redirectURI, err := c.resolver.CallbackURI(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "[Coordinator.BeginFlow] callback uri")
	}

	loginURL, err := buildLoginURL(loginPageURL, redirectURI, state, scopes)
	if err != nil {
		return nil, errors.Wrap(err, "[Coordinator.BeginFlow]")
	}

	flow := PendingAuthFlow{
		State:       state,
		RedirectURI: redirectURI,
		Deadline:    c.nowTime().Add(c.timeout),
		Scopes:      scopes,
	}
	if err := c.pending.add(flow); err != nil {
		return nil, errors.Wrap(err, "[Coordinator.BeginFlow]")
	}
	defer c.pending.remove(state)

	callbacks := make(chan url.Values, 1)
	cancel := c.acceptor.RegisterOnce(func(params url.Values) {
		select {
		case callbacks <- cloneValues(params):
		default:
		}
	})
	defer cancel()

	log.Debug().Str("redirect_uri", redirectURI).Strs("scopes", scopes).Msg("Starting login flow")

	if err := c.opener.Open(ctx, loginURL); err != nil {
		return nil, errors.Wrap(err, "[Coordinator.BeginFlow] open login page")
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case params := <-callbacks:
		return resolveCallback(state, params)
	case <-timer.C:
		return nil, errors.Wrapf(autherrors.ErrTimeout, "[Coordinator.BeginFlow] no callback within %s", c.timeout)
	case <-ctx.Done():
		return nil, fmt.Errorf("[Coordinator.BeginFlow] %w: %w", autherrors.ErrAuthCancelled, ctx.Err())
	}
}

// Pending lists the flows currently waiting for a callback
func (c *Coordinator) Pending() []PendingAuthFlow {
	return c.pending.list()
}

func resolveCallback(state string, params url.Values) (*Result, error) {
	if subtle.ConstantTimeCompare([]byte(params.Get(ParamState)), []byte(state)) != 1 {
		return nil, errors.Wrap(autherrors.ErrStateMismatch, "[Coordinator.BeginFlow]")
	}

	accessToken := params.Get(ParamAccessToken)
	if accessToken == "" {
		return nil, errors.Wrap(autherrors.ErrMissingToken, "[Coordinator.BeginFlow]")
	}

	// absent or unparsable reads as inactive
	active, _ := strconv.ParseBool(params.Get(ParamActive))

	return &Result{
		AccessToken:  accessToken,
		RefreshToken: params.Get(ParamRefreshToken),
		DisplayName:  valueOrUnknown(params.Get(ParamDisplayName)),
		Email:        valueOrUnknown(params.Get(ParamEmail)),
		Active:       active,
	}, nil
}

// buildLoginURL keeps any query parameters already on loginPageURL
func buildLoginURL(loginPageURL, redirectURI, state string, scopes []string) (string, error) {
	u, err := url.Parse(loginPageURL)
	if err != nil {
		return "", errors.Wrap(err, "invalid login page url")
	}
	if u.Scheme == "" || u.Host == "" {
		return "", errors.Errorf("login page url %q must be absolute", loginPageURL)
	}

	q := u.Query()
	q.Set(ParamRedirectURI, redirectURI)
	q.Set(ParamState, state)
	if len(scopes) > 0 {
		q.Set(ParamScope, strings.Join(scopes, " "))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func valueOrUnknown(v string) string {
	if v == "" {
		return Unknown
	}
	return v
}

func cloneValues(v url.Values) url.Values {
	c := make(url.Values, len(v))
	for k, vals := range v {
		c[k] = append([]string(nil), vals...)
	}
	return c
}

package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jrsteele09/go-auth-session/auth"
	"github.com/jrsteele09/go-auth-session/authflow"
	"github.com/jrsteele09/go-auth-session/authflow/browser"
	"github.com/jrsteele09/go-auth-session/authflow/loopback"
	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/jrsteele09/go-auth-session/internal/metrics"
	"github.com/jrsteele09/go-auth-session/secrets"
	"github.com/jrsteele09/go-auth-session/sessions"
	"github.com/jrsteele09/go-auth-session/token"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const metricsNamespace = "go_auth_session"

// app is everything a command needs, wired from config
type app struct {
	config   config.Config
	registry *prometheus.Registry
	store    *sessions.Store
	manager  *auth.SessionManager
}

func newApp(ctx context.Context, c config.Config, out io.Writer) (*app, error) {
	secretStore, err := secrets.NewFileStore(c.GetStoreDir(), c.GetStorePassphrase())
	if err != nil {
		return nil, errors.Wrap(err, "[newApp] open secret store (is SESSION_STORE_PASSPHRASE set?)")
	}

	store, err := sessions.NewStore(secretStore, sessions.WithSecretKey(c.GetSecretKey()))
	if err != nil {
		return nil, errors.Wrap(err, "[newApp]")
	}
	if err := store.Load(ctx); err != nil {
		return nil, errors.Wrap(err, "[newApp]")
	}

	tokens, err := token.NewClient(c.GetAuthBaseURL(), token.WithUserAgent(c.GetAppName()))
	if err != nil {
		return nil, errors.Wrap(err, "[newApp]")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder, err := metrics.NewPrometheus(registry, metricsNamespace)
	if err != nil {
		return nil, errors.Wrap(err, "[newApp] metrics")
	}

	manager, err := auth.NewSessionManager(
		auth.Deps{
			Store:  store,
			Flows:  &browserFlow{port: c.GetCallbackPort(), timeout: c.GetFlowTimeout(), out: out},
			Tokens: tokens,
		},
		c.GetLoginPageURL(),
		auth.WithAccountActiveCheck(c.GetCheckAccountActive()),
		auth.WithValidationMode(sessions.ValidationMode(c.GetValidationMode())),
		auth.WithSweepConcurrency(c.GetSweepConcurrency()),
		auth.WithRefreshThreshold(c.GetRefreshThreshold()),
		auth.WithRecorder(recorder),
	)
	if err != nil {
		return nil, errors.Wrap(err, "[newApp]")
	}

	return &app{
		config:   c,
		registry: registry,
		store:    store,
		manager:  manager,
	}, nil
}

// browserFlow runs each login on a fresh loopback callback server so other
// commands never bind a port.
type browserFlow struct {
	port    int
	timeout time.Duration
	out     io.Writer
}

func (b *browserFlow) BeginFlow(ctx context.Context, loginPageURL string, scopes []string) (*authflow.Result, error) {
	server, err := loopback.Listen(fmt.Sprintf("127.0.0.1:%d", b.port))
	if err != nil {
		return nil, err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = server.Close(shutdownCtx)
	}()

	coordinator, err := authflow.NewCoordinator(server, browser.New(browser.WithFallback(b.out)), server,
		authflow.WithTimeout(b.timeout))
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(b.out, "Waiting for sign-in in your browser (timeout %s)...\n", b.timeout)
	return coordinator.BeginFlow(ctx, loginPageURL, scopes)
}

// Package metrics exposes session lifecycle counters through prometheus.
package metrics

import (
	"errors"

	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder receives lifecycle observations from the session manager and validator.
type Recorder interface {
	FlowCompleted(outcome string)
	RefreshCompleted(outcome string)
	SweepCompleted(evicted int)
	SessionsActive(n int)
}

// Noop discards all observations.
type Noop struct{}

var _ Recorder = Noop{}

func (Noop) FlowCompleted(string)    {}
func (Noop) RefreshCompleted(string) {}
func (Noop) SweepCompleted(int)      {}
func (Noop) SessionsActive(int)      {}

// Prometheus is a Recorder backed by prometheus collectors.
type Prometheus struct {
	flows     *prometheus.CounterVec
	refreshes *prometheus.CounterVec
	sweeps    prometheus.Counter
	evictions prometheus.Counter
	active    prometheus.Gauge
}

var _ Recorder = (*Prometheus)(nil)

// NewPrometheus creates the collectors and registers them with reg.
func NewPrometheus(reg prometheus.Registerer, namespace string) (*Prometheus, error) {
	p := &Prometheus{
		flows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_flows_total",
			Help:      "Browser login flows by outcome.",
		}, []string{"outcome"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refresh_total",
			Help:      "Session token refreshes by outcome.",
		}, []string{"outcome"}),
		sweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_sweeps_total",
			Help:      "Completed validation sweeps.",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_evictions_total",
			Help:      "Sessions evicted by validation sweeps.",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Sessions currently held in the registry.",
		}),
	}

	for _, c := range []prometheus.Collector{p.flows, p.refreshes, p.sweeps, p.evictions, p.active} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Prometheus) FlowCompleted(outcome string) {
	p.flows.WithLabelValues(outcome).Inc()
}

func (p *Prometheus) RefreshCompleted(outcome string) {
	p.refreshes.WithLabelValues(outcome).Inc()
}

func (p *Prometheus) SweepCompleted(evicted int) {
	p.sweeps.Inc()
	p.evictions.Add(float64(evicted))
}

func (p *Prometheus) SessionsActive(n int) {
	p.active.Set(float64(n))
}

var outcomes = []struct {
	err   error
	label string
}{
	{autherrors.ErrAuthCancelled, "cancelled"},
	{autherrors.ErrStateMismatch, "state_mismatch"},
	{autherrors.ErrMissingToken, "missing_token"},
	{autherrors.ErrTimeout, "timeout"},
	{autherrors.ErrInvalidCredentials, "invalid_credentials"},
	{autherrors.ErrExpiredToken, "expired_token"},
	{autherrors.ErrAccountInactive, "account_inactive"},
	{autherrors.ErrAuthService, "auth_service_error"},
	{autherrors.ErrNetwork, "network_error"},
	{autherrors.ErrMalformedResponse, "malformed_response"},
	{autherrors.ErrStorage, "storage_error"},
	{autherrors.ErrSessionNotFound, "session_not_found"},
}

// Outcome maps an operation result onto a low-cardinality label.
func Outcome(err error) string {
	if err == nil {
		return "success"
	}
	for _, o := range outcomes {
		if errors.Is(err, o.err) {
			return o.label
		}
	}
	return "error"
}

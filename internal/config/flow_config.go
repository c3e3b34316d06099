package config

import "time"

type FlowConfig interface {
	GetCallbackPort() int
	GetFlowTimeout() time.Duration
}

type Flow struct{}

var _ FlowConfig = Flow{}

// GetCallbackPort returns the loopback port for login callbacks. 0 picks a free port.
func (Flow) GetCallbackPort() int {
	return GetInt("SESSION_CALLBACK_PORT", 0)
}

func (Flow) GetFlowTimeout() time.Duration {
	return GetDuration("SESSION_FLOW_TIMEOUT", 5*time.Minute)
}

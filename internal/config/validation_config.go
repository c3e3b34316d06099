package config

import (
	"strings"
	"time"
)

const (
	ValidationModeRemote      = "remote"
	ValidationModeLocalExpiry = "local-expiry"
)

type ValidationConfig interface {
	GetSweepInterval() time.Duration
	GetValidationMode() string
	GetSweepConcurrency() int
}

type Validation struct{}

var _ ValidationConfig = Validation{}

func (Validation) GetSweepInterval() time.Duration {
	return GetDuration("SESSION_SWEEP_INTERVAL", 15*time.Minute)
}

// GetValidationMode returns "remote" (validate-token endpoint) or "local-expiry"
// (stored expiry timestamps only). Unknown values fall back to "remote".
func (Validation) GetValidationMode() string {
	mode := strings.ToLower(GetEnv("SESSION_VALIDATION_MODE", ValidationModeRemote))
	if mode != ValidationModeLocalExpiry {
		return ValidationModeRemote
	}
	return mode
}

func (Validation) GetSweepConcurrency() int {
	n := GetInt("SESSION_SWEEP_CONCURRENCY", 4)
	if n < 1 {
		return 1
	}
	return n
}

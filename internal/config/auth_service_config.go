package config

import "time"

type AuthServiceConfig interface {
	GetAuthBaseURL() string
	GetLoginPageURL() string
	GetCheckAccountActive() bool
	GetRefreshThreshold() time.Duration
}

type AuthService struct{}

var _ AuthServiceConfig = AuthService{}

// GetAuthBaseURL returns the base URL of the remote auth API (login, refresh-token, ...).
func (AuthService) GetAuthBaseURL() string {
	return GetEnv("SESSION_AUTH_BASE_URL", "http://localhost:8080/api/auth")
}

// GetLoginPageURL returns the page the browser is sent to for interactive login.
func (AuthService) GetLoginPageURL() string {
	return GetEnv("SESSION_LOGIN_PAGE_URL", "http://localhost:8080/login")
}

// GetCheckAccountActive controls whether new sessions are checked against the userinfo endpoint.
func (AuthService) GetCheckAccountActive() bool {
	return GetBool("SESSION_CHECK_ACCOUNT_ACTIVE", true)
}

func (AuthService) GetRefreshThreshold() time.Duration {
	return GetDuration("SESSION_REFRESH_THRESHOLD", 5*time.Minute)
}

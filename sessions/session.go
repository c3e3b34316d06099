package sessions

import (
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jrsteele09/go-auth-session/internal/utils"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Session is a locally held authenticated binding to one remote account.
// A stored session always has every required field populated.
type Session struct {
	ID           string     `json:"id" validate:"required"`           // Stable identifier (account email), unique in the registry
	AccessToken  string     `json:"accessToken" validate:"required"`  // Bearer credential for the remote API
	RefreshToken string     `json:"refreshToken,omitempty"`           // Optional refresh credential
	AccountLabel string     `json:"accountLabel" validate:"required"` // Display name
	Scopes       []string   `json:"scopes" validate:"required"`       // Granted capability tags, sorted and unique
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`              // Absolute expiry; nil means unknown
}

// Validate reports whether s satisfies the stored-session schema.
func (s Session) Validate() error {
	return validate.Struct(s)
}

// Clone returns a deep copy of s.
func (s Session) Clone() Session {
	c := s
	c.Scopes = slices.Clone(s.Scopes)
	c.ExpiresAt = utils.Clone(s.ExpiresAt)
	return c
}

// HasScopes reports whether the session holds every scope in want.
func (s Session) HasScopes(want []string) bool {
	return utils.ContainsAll(s.Scopes, want)
}

// IsExpired reports whether the session has a known expiry at or before now.
func (s Session) IsExpired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}

package token

import (
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// ExpiryOf returns the "exp" claim of a JWT access token without verifying
// its signature. Opaque tokens and tokens without "exp" return nil.
func ExpiryOf(accessToken string) *time.Time {
	var claims jwtlib.RegisteredClaims
	if _, _, err := jwtlib.NewParser().ParseUnverified(accessToken, &claims); err != nil {
		return nil
	}
	if claims.ExpiresAt == nil {
		return nil
	}
	exp := claims.ExpiresAt.UTC()
	return &exp
}

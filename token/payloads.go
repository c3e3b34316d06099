package token

// Credentials are the username/password pair sent to the login endpoint.
type Credentials struct {
	Username string
	Password string
}

// UserInfo describes the account behind an access token.
type UserInfo struct {
	ID          string
	DisplayName string
	Email       string
	Active      bool
}

type loginRequest struct {
	Username string   `json:"username"`
	Password string   `json:"password"`
	Scopes   []string `json:"scopes"`
}

// tokenRequest is the body of the refresh, revoke and validate calls
type tokenRequest struct {
	Token string `json:"token"`
}

// tokenResponse accepts both the "token" and the "access_token" spelling.
type tokenResponse struct {
	Token       string `json:"token"`
	AccessToken string `json:"access_token"`
}

func (r tokenResponse) value() string {
	if r.Token != "" {
		return r.Token
	}
	return r.AccessToken
}

type validateResponse struct {
	Valid bool `json:"valid"`
}

type userInfoResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Active      *bool  `json:"active"` // absent means the service did not report the account as disabled
}

// errorResponse covers the OAuth2 style {error, error_description} body and a plain {message}.
type errorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
	Message     string `json:"message"`
}

func (r errorResponse) text() string {
	switch {
	case r.Description != "":
		return r.Description
	case r.Error != "":
		return r.Error
	default:
		return r.Message
	}
}

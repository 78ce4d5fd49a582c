package model

import "time"

// TokenStore holds the bearer credential of the current session.
type TokenStore interface {
	AccessToken() (string, bool)
	Set(token string) error
	Clear() error
}

// TokenClaims is the subset of access token claims shown to the user.
type TokenClaims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the claims carry an expiry that has passed.
func (c TokenClaims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// TokenResponse is returned by every endpoint that issues a session.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

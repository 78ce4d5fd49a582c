package model

import "time"

// SignupRequest is the body of POST /auth/signup.
type SignupRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	FullName        string `json:"full_name,omitempty"`
}

// GoogleAuthResponse is returned by POST /auth/google. No session is issued
// yet: the email still has to be confirmed.
type GoogleAuthResponse struct {
	PendingToken         string `json:"pending_token"`
	PendingTokenType     string `json:"pending_token_type"`
	VerificationRequired bool   `json:"verification_required"`
	Email                string `json:"email"`
	CodeExpiresInSeconds int    `json:"code_expires_in_seconds"`
}

// PendingGoogleAuth is the transient result of the Google token exchange.
// It is consumed by the verification flow and never persisted.
type PendingGoogleAuth struct {
	PendingToken     string
	Email            string
	ExpiresInSeconds int
}

// ExpiresIn returns the code lifetime as a duration.
func (p PendingGoogleAuth) ExpiresIn() time.Duration {
	return time.Duration(p.ExpiresInSeconds) * time.Second
}

// ResendVerificationResponse is returned by POST /auth/resend-verification.
// The pending token may be rotated by the server.
type ResendVerificationResponse struct {
	Message              string  `json:"message"`
	PendingToken         *string `json:"pending_token"`
	Email                *string `json:"email"`
	CodeExpiresInSeconds *int    `json:"code_expires_in_seconds"`
}

// MessageResponse carries a human readable message from the server.
type MessageResponse struct {
	Message string `json:"message"`
}

package token

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/LorenzoCecattoPaim/Math/internal/model"
)

// Inspect decodes the claims of a JWT access token without verifying its
// signature. The result is for display only; the server stays the judge of
// validity.
func Inspect(tokenString string) (model.TokenClaims, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return model.TokenClaims{}, fmt.Errorf("failed to decode access token: %w", err)
	}

	out := model.TokenClaims{Subject: claims.Subject}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}

	return out, nil
}

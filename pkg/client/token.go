package client

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenClaims are the access-token claims the client relies on.
type TokenClaims struct {
	Subject   uuid.UUID
	Email     string
	ExpiresAt time.Time
}

// ParseTokenClaims decodes an access token without verifying its signature.
// The backend verifies tokens; the client only reads identity and expiry.
func ParseTokenClaims(token string) (*TokenClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}
	out := &TokenClaims{}
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		id, err := uuid.Parse(sub)
		if err != nil {
			return nil, fmt.Errorf("parse access token subject: %w", err)
		}
		out.Subject = id
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	if email, ok := claims["email"].(string); ok {
		out.Email = email
	}
	return out, nil
}

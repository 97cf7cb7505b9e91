// Package auth issues and checks the credentials accepted by the API: HS256
// bearer tokens and bcrypt-hashed API keys.
package auth

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidToken     = errors.New("invalid authentication token")
	ErrExpiredToken     = errors.New("authentication token has expired")
	ErrTokenNotYetValid = errors.New("authentication token not yet valid")
	ErrMissingToken     = errors.New("authentication token is missing")
	ErrInvalidAPIKey    = errors.New("invalid API key")
	ErrEmptySubject     = errors.New("token subject cannot be empty")
)

// JWTService mints and validates bearer tokens.
type JWTService interface {
	// GenerateToken signs a token for subject, normally the name of the
	// client that will call the API.
	GenerateToken(ctx context.Context, subject string) (string, error)

	// ValidateToken checks the signature and time claims of tokenString.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims is the validated content of a bearer token.
type Claims struct {
	Subject   string    `json:"sub,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}

package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v4"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrNoJWKS       = errors.New("no JWKS URL provided")
)

// CallerClaims are the claims of a token presented by an event publisher,
// typically a Google-signed OIDC token of a push subscription's service account.
type CallerClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Caller returns the identity used for logging: email when present, otherwise sub.
func (c *CallerClaims) Caller() string {
	if c.Email != "" {
		return c.Email
	}
	return c.Subject
}

// TokenValidator validates a bearer token and returns the caller identity.
type TokenValidator interface {
	ValidateToken(tokenString string) (string, error)
}

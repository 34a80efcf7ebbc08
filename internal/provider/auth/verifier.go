// Package auth adapts the external identity provider: bearer tokens it
// issues are verified locally, and password changes go to its admin API.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Payphone-Digital/portfolio-service/config"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrNoSubject    = errors.New("auth: token has no subject")
)

// Verifier checks tokens signed with either a shared HS256 secret or the
// provider's RS256 public key. The subject claim is the caller's identity.
type Verifier struct {
	key     interface{}
	methods []string
	options []jwt.ParserOption
}

func NewVerifier(cfg config.AuthConfig) (*Verifier, error) {
	v := &Verifier{}
	switch {
	case cfg.JWTPublicKey != "":
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.JWTPublicKey))
		if err != nil {
			return nil, fmt.Errorf("failed to parse auth public key: %w", err)
		}
		v.key = key
		v.methods = []string{jwt.SigningMethodRS256.Alg()}
	case cfg.JWTSecret != "":
		v.key = []byte(cfg.JWTSecret)
		v.methods = []string{jwt.SigningMethodHS256.Alg()}
	default:
		return nil, errors.New("auth: either a JWT secret or a public key is required")
	}

	v.options = []jwt.ParserOption{
		jwt.WithValidMethods(v.methods),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		v.options = append(v.options, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		v.options = append(v.options, jwt.WithAudience(cfg.Audience))
	}
	return v, nil
}

// Verify returns the identity carried by token and the moment the token
// stops being valid.
func (v *Verifier) Verify(_ context.Context, token string) (string, time.Time, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return v.key, nil
	}, v.options...)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.ExpiresAt == nil {
		return "", time.Time{}, ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", time.Time{}, ErrNoSubject
	}
	return claims.Subject, claims.ExpiresAt.Time, nil
}

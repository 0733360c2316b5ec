// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contextd Contributors

package auth

import (
	"crypto/rand"
	stderrors "errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/contextd-dev/contextd/pkg/errors"
)

// DefaultTokenTTL bounds how long an issued bearer token stays valid.
const DefaultTokenTTL = 15 * time.Minute

const signingMethod = "HS256"

// Claims carried inside an issued token.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the verified subject extracted from a bearer token.
type Identity struct {
	Username string
	Role     string
}

// TokenService issues and verifies HMAC-signed bearer tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService builds a token service. An empty secret generates a random
// one, which invalidates outstanding tokens across restarts.
func NewTokenService(secret []byte, ttl time.Duration) (*TokenService, error) {
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, errors.Wrap(err, errors.CodeServerStartFailure, "generating token secret")
		}
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{secret: secret, ttl: ttl, now: time.Now}, nil
}

// WithClock overrides the time source. Test hook.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

// TTL returns the configured token lifetime.
func (s *TokenService) TTL() time.Duration { return s.ttl }

// Issue signs a token for the given identity and returns it with its
// absolute expiry.
func (s *TokenService) Issue(id Identity) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	claims := Claims{
		Role: id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, errors.CodeServerInternalFailure, "signing token")
	}
	return token, expires, nil
}

// Verify parses and validates a bearer token, returning the identity it
// asserts. Expired, forged, and malformed tokens map to distinct codes so
// clients can tell a stale session from a bad one.
func (s *TokenService) Verify(token string) (Identity, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{signingMethod}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	switch {
	case err == nil:
	case stderrors.Is(err, jwt.ErrTokenExpired):
		return Identity{}, errors.Wrap(err, errors.CodeAuthTokenExpired, "token expired")
	case stderrors.Is(err, jwt.ErrTokenMalformed):
		return Identity{}, errors.Wrap(err, errors.CodeAuthTokenMalformed, "malformed token")
	default:
		return Identity{}, errors.Wrap(err, errors.CodeAuthTokenInvalid, "invalid token")
	}
	if claims.Subject == "" {
		return Identity{}, errors.New(errors.CodeAuthTokenInvalid, "token has no subject")
	}
	return Identity{Username: claims.Subject, Role: claims.Role}, nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contextd Contributors

package auth

import (
	"context"
	"strings"
	"time"

	"github.com/contextd-dev/contextd/internal/store"
	"github.com/contextd-dev/contextd/pkg/errors"
)

// Scheme describes one supported authentication method for discovery.
type Scheme struct {
	Method        string            `json:"authMethod"`
	FieldMappings map[string]string `json:"authFieldMappings"`
}

// Schemes returns the authentication methods this gateway accepts.
func Schemes() []Scheme {
	return []Scheme{
		{
			Method: "USERNAME_PASSWORD",
			FieldMappings: map[string]string{
				"username": "username",
				"password": "password",
			},
		},
	}
}

// Service authenticates credentials against the store and issues tokens.
type Service struct {
	creds  store.CredentialStore
	tokens *TokenService
}

// NewService wires a credential store to a token service.
func NewService(creds store.CredentialStore, tokens *TokenService) *Service {
	return &Service{creds: creds, tokens: tokens}
}

// Tokens exposes the underlying token service for middleware verification.
func (s *Service) Tokens() *TokenService { return s.tokens }

// Authenticate checks the username/password pair and issues a bearer token.
// Every failure collapses to the same credentials-invalid code so callers
// cannot distinguish an unknown user from a wrong password.
func (s *Service) Authenticate(ctx context.Context, username, password string) (string, time.Time, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		VerifyDummy(password)
		return "", time.Time{}, errors.New(errors.CodeAuthCredentialsInvalid, "invalid credentials")
	}

	user, hash, err := s.creds.Lookup(ctx, username)
	if err != nil {
		VerifyDummy(password)
		if errors.IsNotFound(err) {
			return "", time.Time{}, errors.New(errors.CodeAuthCredentialsInvalid, "invalid credentials")
		}
		return "", time.Time{}, errors.Wrap(err, errors.CodeStoreDatabaseFailure, "looking up user")
	}

	if !VerifyPassword(hash, password) {
		return "", time.Time{}, errors.New(errors.CodeAuthCredentialsInvalid, "invalid credentials")
	}

	return s.tokens.Issue(Identity{Username: user.Username, Role: user.Role})
}

// UpsertUser hashes the password and creates or replaces the user record.
func (s *Service) UpsertUser(ctx context.Context, username, password, role string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return errors.New(errors.CodeAuthCredentialsInvalid, "username must not be empty")
	}
	if role == "" {
		role = store.RoleUser
	}
	if role != store.RoleUser && role != store.RoleAdmin {
		return errors.New(errors.CodeAuthCredentialsInvalid, "unknown role",
			errors.Field("role", role))
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	return s.creds.Upsert(ctx, store.User{Username: username, Role: role}, hash)
}

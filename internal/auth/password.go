// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contextd Contributors

// Package auth implements credential verification and short-lived
// signed bearer tokens for the gateway.
package auth

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/contextd-dev/contextd/pkg/errors"
)

// dummyHash is a valid bcrypt hash of a random string. Comparing against it
// when a user does not exist keeps the work factor identical to the
// found-user path, so response timing does not leak which usernames exist.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// HashPassword derives a bcrypt hash at the default cost.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New(errors.CodeAuthCredentialsInvalid, "password must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeAuthCredentialsInvalid, "hashing password")
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches the stored bcrypt hash.
func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// VerifyDummy burns a bcrypt comparison against a fixed hash. Callers use it
// on the user-not-found path so both paths cost the same.
func VerifyDummy(password string) {
	_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
}

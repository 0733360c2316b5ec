// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contextd Contributors

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	cerr "github.com/contextd-dev/contextd/pkg/errors"
)

// AuthenticatedUser is the verified principal attached to a request.
type AuthenticatedUser struct {
	Username string
	Role     string
}

// TokenValidator verifies a bearer token and returns the user it asserts.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*AuthenticatedUser, error)
}

type contextKey string

const userContextKey contextKey = "contextd.user"

// UserFromContext returns the authenticated user, or nil when the request
// was not authenticated.
func UserFromContext(ctx context.Context) *AuthenticatedUser {
	user, _ := ctx.Value(userContextKey).(*AuthenticatedUser)
	return user
}

// NewAuthMiddleware enforces bearer-token auth on every route except the
// listed public paths. An entry ending in "/" exempts the whole subtree.
// Paths under /admin/ additionally require the admin role.
func NewAuthMiddleware(validator TokenValidator, publicPaths []string) func(http.Handler) http.Handler {
	public := make(map[string]bool, len(publicPaths))
	var publicPrefixes []string
	for _, p := range publicPaths {
		if strings.HasSuffix(p, "/") {
			publicPrefixes = append(publicPrefixes, p)
			continue
		}
		public[p] = true
	}
	isPublic := func(path string) bool {
		if public[path] {
			return true
		}
		for _, prefix := range publicPrefixes {
			if strings.HasPrefix(path, prefix) {
				return true
			}
		}
		return false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublic(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			if header == "" {
				writeAuthError(w, http.StatusUnauthorized, cerr.CodeServerAuthUnauthorized,
					"authorization header required")
				return
			}

			// Exact scheme match; "bearer" and friends are rejected.
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeAuthError(w, http.StatusUnauthorized, cerr.CodeServerAuthUnauthorized,
					"authorization header must be of the form: Bearer <token>")
				return
			}

			user, err := validator.ValidateToken(r.Context(), token)
			if err != nil {
				status := http.StatusUnauthorized
				code := cerr.CodeServerAuthUnauthorized
				if cerr.HasCode(err, cerr.CodeServerAuthForbidden) {
					status = http.StatusForbidden
					code = cerr.CodeServerAuthForbidden
				}
				writeAuthError(w, status, code, authMessage(err))
				return
			}

			if strings.HasPrefix(r.URL.Path, "/admin/") && user.Role != "admin" {
				writeAuthError(w, http.StatusForbidden, cerr.CodeServerAuthForbidden,
					"admin role required")
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// authMessage keeps token failures generic except for expiry, which clients
// need to distinguish to refresh their session.
func authMessage(err error) string {
	if cerr.HasCode(err, cerr.CodeAuthTokenExpired) {
		return "token expired"
	}
	if cerr.HasCode(err, cerr.CodeServerAuthForbidden) {
		return "forbidden"
	}
	return "invalid token"
}

func writeAuthError(w http.ResponseWriter, status int, code cerr.Code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": msg,
		"code":  string(code),
	})
}

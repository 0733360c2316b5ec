// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contextd Contributors

package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/contextd-dev/contextd/internal/auth"
	"github.com/contextd-dev/contextd/internal/chunk"
	"github.com/contextd-dev/contextd/internal/embed"
	"github.com/contextd-dev/contextd/internal/ingest"
	"github.com/contextd-dev/contextd/internal/retrieval"
	"github.com/contextd-dev/contextd/internal/server"
	"github.com/contextd-dev/contextd/internal/store/memory"
)

const testDimension = 32

var testTokenSecret = []byte("0123456789abcdef0123456789abcdef")

// tokenValidator adapts auth.TokenService to the middleware interface.
type tokenValidator struct {
	tokens *auth.TokenService
}

func (v *tokenValidator) ValidateToken(_ context.Context, token string) (*server.AuthenticatedUser, error) {
	id, err := v.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	return &server.AuthenticatedUser{Username: id.Username, Role: id.Role}, nil
}

type testEnv struct {
	srv     *server.Server
	authSvc *auth.Service
}

// newTestEnv wires a full in-memory gateway.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	tokens, err := auth.NewTokenService(testTokenSecret, time.Minute)
	require.NoError(t, err)
	idx := memory.NewVectorIndex(testDimension)
	creds := memory.NewCredentialStore()
	authSvc := auth.NewService(creds, tokens)

	embedder, err := embed.NewHashProvider(testDimension)
	require.NoError(t, err)
	splitter, err := chunk.NewSplitter(200, 40)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	srv, err := server.New(server.Config{
		ListenAddr:     "127.0.0.1:0",
		TokenTTL:       time.Minute,
		TokenValidator: &tokenValidator{tokens: tokens},
	})
	require.NoError(t, err)

	srv.RegisterServices(&server.Services{
		Auth:      authSvc,
		Ingest:    ingest.NewPipeline(splitter, embedder, idx, logger),
		Retrieval: retrieval.NewPipeline(embedder, idx, 0, logger),
		Embedding: embedder,
		Logger:    logger,
	})

	return &testEnv{srv: srv, authSvc: authSvc}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if _, ok := body.([]byte); ok {
		req.Header.Set("Content-Type", "text/plain")
	} else if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(w, req)
	return w
}

// login provisions the user and returns a valid bearer token.
func (e *testEnv) login(t *testing.T, username, password, role string) string {
	t.Helper()

	require.NoError(t, e.authSvc.UpsertUser(context.Background(), username, password, role))

	w := e.do(t, http.MethodPost, "/auth", "", map[string]string{
		"username": username,
		"password": password,
	})
	require.Equal(t, http.StatusOK, w.Code, "login failed: %s", w.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func uploadPath(filename string) string {
	return "/admin/upload?filename=" + url.QueryEscape(filename)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contextd Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/contextd-dev/contextd/internal/auth"
	"github.com/contextd-dev/contextd/internal/chunk"
	"github.com/contextd-dev/contextd/internal/config"
	"github.com/contextd-dev/contextd/internal/embed"
	"github.com/contextd-dev/contextd/internal/ingest"
	"github.com/contextd-dev/contextd/internal/retrieval"
	"github.com/contextd-dev/contextd/internal/server"
	"github.com/contextd-dev/contextd/internal/store"
	_ "github.com/contextd-dev/contextd/internal/store/memory" // register memory backend
	_ "github.com/contextd-dev/contextd/internal/store/sqlite" // register sqlite backend
	cerr "github.com/contextd-dev/contextd/pkg/errors"
)

// Gateway holds all wired subsystems and manages their lifecycle.
type Gateway struct {
	Server *server.Server
	Auth   *auth.Service

	index store.VectorIndex
	creds store.CredentialStore
}

// Close releases the gateway's storage handles.
func (g *Gateway) Close() error {
	return cerr.Join(g.index.Close(), g.creds.Close())
}

// tokenValidator adapts auth token verification to the server middleware.
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

// WireGateway creates all subsystems and wires them together.
func WireGateway(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	// 1. Storage.
	idx, creds, err := store.Open(cfg.Storage.Backend, cfg.Storage.DataDir, cfg.Embedding.Dimension)
	if err != nil {
		return nil, cerr.Wrap(err, cerr.CodeCLISetupFailure, "opening storage")
	}

	// 2. Auth: credential checks plus token issuance.
	tokens, err := auth.NewTokenService([]byte(cfg.Auth.TokenSecret), cfg.Auth.TokenTTL)
	if err != nil {
		_ = idx.Close()
		_ = creds.Close()
		return nil, cerr.Wrap(err, cerr.CodeCLISetupFailure, "creating token service")
	}
	if cfg.Auth.TokenSecret == "" {
		logger.Warn("auth.token_secret not configured: using a random secret, tokens will not survive restarts")
	}
	authSvc := auth.NewService(creds, tokens)

	// 3. Indexing pipelines.
	embedder, err := embed.NewHashProvider(cfg.Embedding.Dimension)
	if err != nil {
		_ = idx.Close()
		_ = creds.Close()
		return nil, cerr.Wrap(err, cerr.CodeCLISetupFailure, "creating embedder")
	}
	splitter, err := chunk.NewSplitter(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		_ = idx.Close()
		_ = creds.Close()
		return nil, cerr.Wrap(err, cerr.CodeCLISetupFailure, "creating splitter")
	}

	// 4. HTTP server.
	srv, err := server.New(server.Config{
		ListenAddr:     cfg.Server.Listen,
		CORSOrigins:    cfg.Server.CORSOrigins,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		TokenTTL:       tokens.TTL(),
		TokenValidator: &tokenValidator{tokens: tokens},
	})
	if err != nil {
		_ = idx.Close()
		_ = creds.Close()
		return nil, cerr.Wrap(err, cerr.CodeCLISetupFailure, "creating server")
	}

	srv.RegisterServices(&server.Services{
		Auth:      authSvc,
		Ingest:    ingest.NewPipeline(splitter, embedder, idx, logger),
		Retrieval: retrieval.NewPipeline(embedder, idx, cfg.Retrieval.MaxTopK, logger),
		Embedding: embedder,
		Logger:    logger,
	})

	return &Gateway{
		Server: srv,
		Auth:   authSvc,
		index:  idx,
		creds:  creds,
	}, nil
}

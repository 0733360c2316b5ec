// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contextd Contributors

package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/contextd-dev/contextd/internal/auth"
	"github.com/contextd-dev/contextd/internal/embed"
	"github.com/contextd-dev/contextd/internal/ingest"
	"github.com/contextd-dev/contextd/internal/retrieval"
	"github.com/contextd-dev/contextd/internal/store"
	cerr "github.com/contextd-dev/contextd/pkg/errors"
)

// AuthService exchanges credentials for tokens and provisions users.
type AuthService interface {
	Authenticate(ctx context.Context, username, password string) (string, time.Time, error)
	UpsertUser(ctx context.Context, username, password, role string) error
}

// IngestService indexes documents and manages the collection.
type IngestService interface {
	Ingest(ctx context.Context, documentID, text string) (ingest.Summary, error)
	Clear(ctx context.Context) error
	Documents(ctx context.Context) ([]store.DocumentStat, error)
}

// RetrievalService answers similarity queries.
type RetrievalService interface {
	Retrieve(ctx context.Context, query string, topK int) ([]retrieval.Context, error)
	Info() retrieval.Info
}

// Services bundles the dependencies the route handlers dispatch to.
type Services struct {
	Auth      AuthService
	Ingest    IngestService
	Retrieval RetrievalService
	Embedding embed.Provider
	Logger    *slog.Logger
}

// RegisterServices sets the service dependencies and registers REST routes.
func (s *Server) RegisterServices(svc *Services) {
	if svc.Logger == nil {
		svc.Logger = slog.Default()
	}
	s.services = svc
	s.registerRoutes()
}

func (s *Server) registerRoutes() {
	// Auth endpoints
	huma.Register(s.api, huma.Operation{
		OperationID: "list-auth-methods",
		Method:      http.MethodGet,
		Path:        "/auth/methods",
		Summary:     "List supported authentication methods",
		Tags:        []string{"auth"},
	}, s.handleAuthMethods)

	huma.Register(s.api, huma.Operation{
		OperationID: "authenticate",
		Method:      http.MethodPost,
		Path:        "/auth",
		Summary:     "Exchange credentials for a bearer token",
		Tags:        []string{"auth"},
	}, s.handleAuthenticate)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-security-requirements",
		Method:      http.MethodGet,
		Path:        "/security/requirements",
		Summary:     "Describe how to authenticate against this gateway",
		Tags:        []string{"auth"},
	}, s.handleSecurityRequirements)

	// Discovery endpoints
	huma.Register(s.api, huma.Operation{
		OperationID: "get-data-source",
		Method:      http.MethodGet,
		Path:        "/dataSource",
		Summary:     "Describe the indexed data source",
		Tags:        []string{"discovery"},
	}, s.handleDataSource)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-embedding-info",
		Method:      http.MethodGet,
		Path:        "/embedding/info",
		Summary:     "Describe the embedding model",
		Tags:        []string{"discovery"},
	}, s.handleEmbeddingInfo)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-retrieval-info",
		Method:      http.MethodGet,
		Path:        "/retrieval/info",
		Summary:     "Describe the retrieval configuration",
		Tags:        []string{"discovery"},
	}, s.handleRetrievalInfo)

	// Retrieval endpoint
	huma.Register(s.api, huma.Operation{
		OperationID: "retrieve",
		Method:      http.MethodPost,
		Path:        "/retrieval",
		Summary:     "Retrieve the most relevant passages for a query",
		Tags:        []string{"retrieval"},
	}, s.handleRetrieve)

	// Admin endpoints
	huma.Register(s.api, huma.Operation{
		OperationID: "upsert-user",
		Method:      http.MethodPost,
		Path:        "/admin/user",
		Summary:     "Create or update a user",
		Tags:        []string{"admin"},
	}, s.handleUpsertUser)

	huma.Register(s.api, huma.Operation{
		OperationID: "upload-document",
		Method:      http.MethodPost,
		Path:        "/admin/upload",
		Summary:     "Ingest a document into the index",
		Tags:        []string{"admin"},
	}, s.handleUpload)

	huma.Register(s.api, huma.Operation{
		OperationID: "clear-index",
		Method:      http.MethodPost,
		Path:        "/admin/clear",
		Summary:     "Remove every document from the index",
		Tags:        []string{"admin"},
	}, s.handleClear)
}

// --- Request/Response types for huma ---

type authMethodsOutput struct {
	Body struct {
		AuthMethods []auth.Scheme `json:"authMethods"`
	}
}

type authenticateInput struct {
	Body struct {
		Username string `json:"username" minLength:"1" doc:"Username"`
		Password string `json:"password" minLength:"1" doc:"Password"`
	}
}
type authenticateOutput struct {
	Body struct {
		Success   bool      `json:"success"`
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expiresAt"`
	}
}

type securityRequirementsOutput struct {
	Body struct {
		AuthRequired    bool          `json:"authRequired"`
		AuthMethods     []auth.Scheme `json:"authMethods"`
		TokenTransport  string        `json:"tokenTransport"`
		TokenTTLSeconds int           `json:"tokenTtlSeconds"`
	}
}

type documentSummary struct {
	DocumentID string `json:"documentId"`
	Chunks     int    `json:"chunks"`
}

type dataSourceOutput struct {
	Body struct {
		DataSourceType string            `json:"dataSourceType"`
		Description    string            `json:"description"`
		Documents      []documentSummary `json:"documents"`
	}
}

type embeddingInfoOutput struct {
	Body struct {
		Embeddings []embed.Info `json:"embeddings"`
		Dimension  int          `json:"dimension"`
	}
}

type retrievalInfoOutput struct {
	Body retrieval.Info
}

type retrieveInput struct {
	Body struct {
		Query string `json:"query" minLength:"1" doc:"Free-text query"`
		TopK  int    `json:"topK,omitempty" doc:"Number of passages to return; 0 selects the default"`
	}
}
type retrieveOutput struct {
	Body struct {
		Contexts []retrieval.Context `json:"contexts"`
	}
}

type upsertUserInput struct {
	Body struct {
		Username string `json:"username" minLength:"1" doc:"Username"`
		Password string `json:"password" minLength:"1" doc:"Password"`
		Role     string `json:"role,omitempty" doc:"Role, user or admin; defaults to user"`
	}
}
type upsertUserOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

type uploadInput struct {
	Filename string `query:"filename" required:"true" doc:"Document identifier"`
	RawBody  []byte `contentType:"text/plain"`
}
type uploadOutput struct {
	Body struct {
		DocumentID string `json:"documentId"`
		Chunks     int    `json:"chunks"`
	}
}

type clearOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

// --- Handlers ---

func (s *Server) handleAuthMethods(_ context.Context, _ *struct{}) (*authMethodsOutput, error) {
	out := &authMethodsOutput{}
	out.Body.AuthMethods = auth.Schemes()
	return out, nil
}

func (s *Server) handleAuthenticate(ctx context.Context, input *authenticateInput) (*authenticateOutput, error) {
	token, expires, err := s.services.Auth.Authenticate(ctx, input.Body.Username, input.Body.Password)
	if err != nil {
		if cerr.HasCode(err, cerr.CodeAuthCredentialsInvalid) {
			return nil, huma.Error401Unauthorized("invalid credentials")
		}
		return nil, s.asAPIError(err)
	}
	out := &authenticateOutput{}
	out.Body.Success = true
	out.Body.Token = token
	out.Body.ExpiresAt = expires
	return out, nil
}

func (s *Server) handleSecurityRequirements(_ context.Context, _ *struct{}) (*securityRequirementsOutput, error) {
	out := &securityRequirementsOutput{}
	out.Body.AuthRequired = true
	out.Body.AuthMethods = auth.Schemes()
	out.Body.TokenTransport = "Authorization: Bearer <token>"
	out.Body.TokenTTLSeconds = int(s.cfg.TokenTTL.Seconds())
	return out, nil
}

func (s *Server) handleDataSource(ctx context.Context, _ *struct{}) (*dataSourceOutput, error) {
	stats, err := s.services.Ingest.Documents(ctx)
	if err != nil {
		return nil, s.asAPIError(err)
	}
	docs := make([]documentSummary, len(stats))
	for i, st := range stats {
		docs[i] = documentSummary{DocumentID: st.DocumentID, Chunks: st.Chunks}
	}
	out := &dataSourceOutput{}
	out.Body.DataSourceType = "vector_index"
	out.Body.Description = "Uploaded documents chunked and indexed for similarity retrieval."
	out.Body.Documents = docs
	return out, nil
}

func (s *Server) handleEmbeddingInfo(_ context.Context, _ *struct{}) (*embeddingInfoOutput, error) {
	out := &embeddingInfoOutput{}
	out.Body.Embeddings = []embed.Info{s.services.Embedding.Info()}
	out.Body.Dimension = s.services.Embedding.Dimension()
	return out, nil
}

func (s *Server) handleRetrievalInfo(_ context.Context, _ *struct{}) (*retrievalInfoOutput, error) {
	return &retrievalInfoOutput{Body: s.services.Retrieval.Info()}, nil
}

func (s *Server) handleRetrieve(ctx context.Context, input *retrieveInput) (*retrieveOutput, error) {
	contexts, err := s.services.Retrieval.Retrieve(ctx, input.Body.Query, input.Body.TopK)
	if err != nil {
		return nil, s.asAPIError(err)
	}
	if contexts == nil {
		contexts = []retrieval.Context{}
	}
	out := &retrieveOutput{}
	out.Body.Contexts = contexts
	return out, nil
}

func (s *Server) handleUpsertUser(ctx context.Context, input *upsertUserInput) (*upsertUserOutput, error) {
	if err := s.services.Auth.UpsertUser(ctx, input.Body.Username, input.Body.Password, input.Body.Role); err != nil {
		return nil, s.asAPIError(err)
	}
	out := &upsertUserOutput{}
	out.Body.Status = "ok"
	return out, nil
}

func (s *Server) handleUpload(ctx context.Context, input *uploadInput) (*uploadOutput, error) {
	summary, err := s.services.Ingest.Ingest(ctx, input.Filename, string(input.RawBody))
	if err != nil {
		return nil, s.asAPIError(err)
	}
	out := &uploadOutput{}
	out.Body.DocumentID = summary.DocumentID
	out.Body.Chunks = summary.Chunks
	return out, nil
}

func (s *Server) handleClear(ctx context.Context, _ *struct{}) (*clearOutput, error) {
	if err := s.services.Ingest.Clear(ctx); err != nil {
		return nil, s.asAPIError(err)
	}
	out := &clearOutput{}
	out.Body.Status = "cleared"
	return out, nil
}

// asAPIError translates internal errors into HTTP responses. Auth failures
// stay generic; internal failures are logged in full and surfaced without
// detail.
func (s *Server) asAPIError(err error) error {
	code := cerr.CodeOf(err)
	detail := err.Error()
	if code != "" {
		detail = string(code) + ": " + detail
	}

	switch cerr.HTTPStatus(err) {
	case http.StatusBadRequest:
		return huma.Error400BadRequest(detail)
	case http.StatusUnauthorized:
		return huma.Error401Unauthorized("unauthorized")
	case http.StatusForbidden:
		return huma.Error403Forbidden("forbidden")
	case http.StatusNotFound:
		return huma.Error404NotFound(detail)
	case http.StatusConflict:
		return huma.Error409Conflict(detail)
	default:
		s.services.Logger.Error("request failed", "code", code, "error", err)
		return huma.Error500InternalServerError("internal error")
	}
}

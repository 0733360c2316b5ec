// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contextd Contributors

package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error. The segment after
// the last dot classifies the failure (not_found, invalid_input, ...) and
// drives the HTTP status mapping.
type Code string

const (
	CodeAuthCredentialsInvalid Code = "auth.credentials.invalid"
	CodeAuthTokenExpired       Code = "auth.token.expired"
	CodeAuthTokenInvalid       Code = "auth.token.invalid"
	CodeAuthTokenMalformed     Code = "auth.token.malformed"

	CodeChunkDocumentEmpty  Code = "chunk.document.empty"
	CodeChunkConfigInvalid  Code = "chunk.config.invalid_value"
	CodeEmbedInputInvalid   Code = "embed.input.invalid"
	CodeIngestDocumentDup   Code = "ingest.document.duplicate"
	CodeIngestDocumentIDBad Code = "ingest.document_id.invalid_input"
	CodeRetrievalParamRange Code = "retrieval.param.invalid_input"
	CodeRetrievalQueryEmpty Code = "retrieval.query.invalid_input"

	CodeStoreDimensionMismatch Code = "store.vector.dimension_mismatch"
	CodeStoreDocumentNotFound  Code = "store.document.not_found"
	CodeStoreUserNotFound      Code = "store.user.not_found"
	CodeStoreDatabaseFailure   Code = "store.database.failure"
	CodeStoreBackendUnknown    Code = "store.backend.unsupported"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeServerRequestInvalid   Code = "server.request.invalid_input"
	CodeServerAuthUnauthorized Code = "server.auth.unauthorized"
	CodeServerAuthForbidden    Code = "server.auth.forbidden"
	CodeServerInternalFailure  Code = "server.internal.failure"
	CodeServerStartFailure     Code = "server.start.failure"

	CodeCLISetupFailure Code = "cli.setup.failure"
	CodeCLIInputInvalid Code = "cli.input.invalid_input"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldDocument(value string) Attr {
	return Field("document_id", value)
}

func FieldUser(value string) Attr {
	return Field("username", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

// With adds structured fields to an existing error chain.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeServerInternalFailure
	}

	return oops.Code(code).With(flatten(fields)...).Wrap(err)
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}

	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}

	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsConflict(err error) bool {
	r := reason(CodeOf(err))
	return r == "duplicate" || r == "conflict"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" ||
		r == "empty" || r == "dimension_mismatch"
}

// IsAuthFailure reports whether the error is any authentication or
// authorization failure. Callers at the HTTP boundary must not reveal
// which kind to the client; HTTPStatus handles the 401/403 split.
func IsAuthFailure(err error) bool {
	code := CodeOf(err)
	r := reason(code)
	return r == "unauthorized" || r == "forbidden" || r == "expired" ||
		strings.HasPrefix(string(code), "auth.")
}

func HTTPStatus(err error) int {
	code := CodeOf(err)
	switch {
	case reason(code) == "forbidden":
		return http.StatusForbidden
	case IsAuthFailure(err):
		return http.StatusUnauthorized
	case IsConflict(err):
		return http.StatusConflict
	case IsNotFound(err):
		return http.StatusNotFound
	case IsInvalidInput(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func Join(errs ...error) error {
	return oops.Code(CodeServerInternalFailure).Wrap(stderrors.Join(errs...))
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Raglane Contributors

package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeStoreDocumentNotFound      Code = "store.document.get.not_found"
	CodeStoreSettingNotFound       Code = "store.setting.get.not_found"
	CodeStoreDocumentDuplicateHash Code = "store.document.insert.conflict"
	CodeStoreDatabaseFailure       Code = "store.database.failure"
	CodeStoreBackendUnsupported    Code = "store.backend.unsupported"
	CodeStoreInvalidInput          Code = "store.invalid_input"

	CodeIndexBackendUnsupported Code = "index.backend.unsupported"
	CodeIndexDimensionMismatch  Code = "index.dimension.invalid_input"
	CodeIndexInvalidInput       Code = "index.add.invalid_input"
	CodeIndexPersistFailure     Code = "index.persist.failure"
	CodeIndexLoadFailure        Code = "index.load.failure"
	CodeIndexCompactFailure     Code = "index.compact.failure"

	CodeEmbeddingProviderUnknown        Code = "embedding.provider.not_found"
	CodeEmbeddingProviderNotImplemented Code = "embedding.provider.not_implemented"
	CodeEmbeddingRequestInvalid         Code = "embedding.request.invalid_input"
	CodeEmbeddingUpstreamFailure        Code = "embedding.upstream.failure"
	CodeEmbeddingResponseInvalid        Code = "embedding.response.invalid_format"

	CodeChunkInvalidConfig Code = "chunk.config.invalid_value"

	CodeExtractUnsupportedFormat Code = "extract.format.invalid_input"
	CodeExtractParseFailure      Code = "extract.parse.failure"

	CodeIngestExtractFailure Code = "ingest.extract.failure"
	CodeIngestEmbedFailure   Code = "ingest.embed.failure"
	CodeIngestIndexFailure   Code = "ingest.index.failure"
	CodeIngestConfigInvalid  Code = "ingest.config.invalid_value"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeSecretNotFound       Code = "secret.get.not_found"
	CodeSecretInvalidInput   Code = "secret.invalid_input"
	CodeSecretResolveFailure Code = "secret.resolve.failure"
	CodeSecretBackendFailure Code = "secret.backend.failure"

	CodeServerRequestInvalid  Code = "server.request.invalid_input"
	CodeServerEntityNotFound  Code = "server.entity.not_found"
	CodeServerInternalFailure Code = "server.internal.failure"
	CodeServerStartFailure    Code = "server.start.failure"
	CodeServerShutdownFailure Code = "server.shutdown.failure"

	CodeCLIInputInvalid Code = "cli.input.invalid_input"
	CodeCLISetupFailure Code = "cli.setup.failure"
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

func FieldDocumentID(value string) Attr {
	return Field("document_id", value)
}

func FieldProvider(value string) Attr {
	return Field("provider", value)
}

func FieldBackend(value string) Attr {
	return Field("backend", value)
}

// coded pins the effective code at the point the error was built. oops
// resolves Code() from the deepest error in a chain, which would let origin
// codes shadow the code attached by a later Wrap; CodeOf reads the
// shallowest coded wrapper instead, so the most recent code wins.
type coded struct {
	code Code
	err  error
}

func (e *coded) Error() string { return e.err.Error() }
func (e *coded) Unwrap() error { return e.err }

func New(code Code, msg string, fields ...Attr) error {
	return &coded{code: code, err: oops.Code(code).With(flatten(fields)...).New(msg)}
}

func Errorf(code Code, format string, args ...any) error {
	return &coded{code: code, err: oops.Code(code).Errorf(format, args...)}
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return &coded{code: code, err: oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)}
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return &coded{code: code, err: oops.Code(code).Wrapf(err, format, args...)}
}

// With adds structured fields to an existing error chain without changing
// its effective code.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeServerInternalFailure
	}

	return &coded{code: code, err: oops.Code(code).With(flatten(fields)...).Wrap(err)}
}

// CodeOf returns the chain's effective code: the one attached by the most
// recent New/Errorf/Wrap, or the oops code for errors built elsewhere.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	var ce *coded
	if stderrors.As(err, &ce) {
		return ce.code
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
	return reason(CodeOf(err)) == "conflict"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_format"
}

func IsNotImplemented(err error) bool {
	return reason(CodeOf(err)) == "not_implemented"
}

func IsUpstreamFailure(err error) bool {
	code := CodeOf(err)
	return strings.Contains(string(code), "upstream") && reason(code) == "failure"
}

func HTTPStatus(err error) int {
	switch {
	case IsNotImplemented(err):
		return http.StatusNotImplemented
	case IsNotFound(err):
		return http.StatusNotFound
	case IsConflict(err):
		return http.StatusConflict
	case IsInvalidInput(err):
		return http.StatusBadRequest
	case IsUpstreamFailure(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func Join(errs ...error) error {
	joined := stderrors.Join(errs...)
	if joined == nil {
		return nil
	}
	return &coded{code: CodeServerInternalFailure, err: oops.Code(CodeServerInternalFailure).Wrap(joined)}
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

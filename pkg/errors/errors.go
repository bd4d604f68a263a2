// Package errors defines the coded error taxonomy used across quero.
//
// Every error carries a machine-readable Code of the form
// "<area>.<component>[.<operation>].<reason>". Callers branch on the code
// (or on the reason suffix through the Is* helpers), never on message text.
package errors

import (
	"fmt"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeStoreOpenInvalidInput    Code = "store.open.invalid_input"
	CodeStoreFileMalformed       Code = "store.file.malformed"
	CodeStoreFileReadFailure     Code = "store.file.read.failure"
	CodeStorePersistWriteFailure Code = "store.persist.write.failure"
	CodeStoreDimensionMismatch   Code = "store.vector.dimension.invalid"
	CodeStoreSearchInvalidInput  Code = "store.search.invalid_input"
	CodeStoreAddInvalidInput     Code = "store.add.invalid_input"

	CodeEmbeddingProviderFailure Code = "embedding.provider.upstream.failure"

	CodeProviderRequestInvalid  Code = "provider.request.invalid"
	CodeProviderUpstreamFailure Code = "provider.upstream.failure"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigParseInvalidFormat   Code = "config.parse.invalid_format"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"
	CodeConfigSaveFailure          Code = "config.save.failure"

	CodeCLIInputInvalid   Code = "cli.input.invalid"
	CodeCLISetupFailure   Code = "cli.setup.failure"
	CodeCLIDocumentRead   Code = "cli.document.read.failure"
	CodeCLIDocumentsEmpty Code = "cli.documents.not_found"
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

func FieldPath(value string) Attr {
	return Field("path", value)
}

func FieldProvider(value string) Attr {
	return Field("provider", value)
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

// CodeOf returns the innermost code in the chain, or "" for plain errors.
// oops.AsOops walks to the deepest oops error, so the first code set wins;
// components that are wrapped again further up return plain errors.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	switch code := oopsErr.Code().(type) {
	case Code:
		return code
	case string:
		return Code(code)
	case nil:
		return ""
	default:
		return Code(fmt.Sprintf("%v", code))
	}
}

// FieldsOf returns the structured context attached to err.
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

// IsMalformedStoreFile reports a persisted store file that failed to parse or validate.
func IsMalformedStoreFile(err error) bool {
	return HasCode(err, CodeStoreFileMalformed)
}

// IsEmbeddingProviderError reports a failure reaching or decoding the embedding provider.
func IsEmbeddingProviderError(err error) bool {
	return HasCode(err, CodeEmbeddingProviderFailure)
}

// IsPersistenceWriteError reports a failed write-through after an in-memory mutation.
func IsPersistenceWriteError(err error) bool {
	return HasCode(err, CodeStorePersistWriteFailure)
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_format"
}

func IsUpstreamFailure(err error) bool {
	code := CodeOf(err)
	return strings.Contains(string(code), "upstream") && reason(code) == "failure"
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

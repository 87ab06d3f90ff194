package models

import (
	"errors"
	"fmt"
)

var (
	ErrValidation            = errors.New("validation failed")
	ErrMissingMessage        = fmt.Errorf("%w: message is required", ErrValidation)
	ErrMessageTooLong        = fmt.Errorf("%w: message too long", ErrValidation)
	ErrEmbeddingUnavailable  = errors.New("embedding unavailable")
	ErrInvalidEmbedding      = errors.New("invalid embedding")
	ErrGenerationUnavailable = errors.New("generation unavailable")
	ErrRateLimited           = errors.New("rate limited")
	ErrInvalidAPIKey         = errors.New("invalid api key")
	ErrNetwork               = errors.New("network failure")
	ErrSessionNotFound       = errors.New("session not found")
	ErrCorpusLoad            = errors.New("corpus load failed")
	ErrDimensionMismatch     = errors.New("vector dimension mismatch")
	ErrInvalidVector         = errors.New("invalid vector")
)

// Error codes surfaced at the HTTP boundary.
const (
	CodeMissingMessage  = "MISSING_MESSAGE"
	CodeMessageTooLong  = "MESSAGE_TOO_LONG"
	CodeInvalidRequest  = "INVALID_REQUEST"
	CodeEmbeddingError  = "EMBEDDING_ERROR"
	CodeGenerationError = "GENERATION_ERROR"
	CodeQuotaExceeded   = "QUOTA_EXCEEDED"
	CodeInvalidAPIKey   = "INVALID_API_KEY"
	CodeNetworkError    = "NETWORK_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeInternalError   = "INTERNAL_ERROR"
)

// ErrorCode maps an error returned by the chat pipeline to its machine-readable code.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingMessage):
		return CodeMissingMessage
	case errors.Is(err, ErrMessageTooLong):
		return CodeMessageTooLong
	case errors.Is(err, ErrValidation):
		return CodeInvalidRequest
	case errors.Is(err, ErrEmbeddingUnavailable), errors.Is(err, ErrInvalidEmbedding):
		return CodeEmbeddingError
	case errors.Is(err, ErrRateLimited):
		return CodeQuotaExceeded
	case errors.Is(err, ErrInvalidAPIKey):
		return CodeInvalidAPIKey
	case errors.Is(err, ErrNetwork):
		return CodeNetworkError
	case errors.Is(err, ErrGenerationUnavailable):
		return CodeGenerationError
	case errors.Is(err, ErrSessionNotFound):
		return CodeNotFound
	default:
		return CodeInternalError
	}
}

package core

import (
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// ErrorKind is the discriminant carried by every SDK error. It is stored as
// the go-errors TextCode so callers can switch on it without type assertions
// beyond *goerrors.Error.
type ErrorKind string

const (
	ErrorKindUnknown           ErrorKind = ""
	ErrorKindValidation        ErrorKind = "TRIPLINE_VALIDATION_ERROR"
	ErrorKindAuthentication    ErrorKind = "TRIPLINE_AUTHENTICATION_ERROR"
	ErrorKindRequestValidation ErrorKind = "TRIPLINE_REQUEST_VALIDATION_ERROR"
	ErrorKindRateLimit         ErrorKind = "TRIPLINE_RATE_LIMITED"
	ErrorKindServer            ErrorKind = "TRIPLINE_SERVER_ERROR"
	ErrorKindConnection        ErrorKind = "TRIPLINE_CONNECTION_ERROR"
	ErrorKindAPI               ErrorKind = "TRIPLINE_API_ERROR"
	ErrorKindSignature         ErrorKind = "TRIPLINE_WEBHOOK_SIGNATURE_INVALID"
)

const (
	MetaStatusCode   = "status_code"
	MetaRetryAfterMS = "retry_after_ms"
	MetaTimeoutMS    = "timeout_ms"
	MetaOperation    = "operation"
	MetaReason       = "reason"
)

func (k ErrorKind) String() string {
	if k == ErrorKindUnknown {
		return "unknown"
	}
	return string(k)
}

func (k ErrorKind) category() goerrors.Category {
	switch k {
	case ErrorKindValidation:
		return goerrors.CategoryBadInput
	case ErrorKindAuthentication, ErrorKindSignature:
		return goerrors.CategoryAuth
	case ErrorKindRequestValidation:
		return goerrors.CategoryValidation
	case ErrorKindRateLimit:
		return goerrors.CategoryRateLimit
	case ErrorKindServer, ErrorKindConnection, ErrorKindAPI:
		return goerrors.CategoryExternal
	default:
		return goerrors.CategoryInternal
	}
}

func newKindError(kind ErrorKind, message string, code int, metadata map[string]any) *goerrors.Error {
	err := goerrors.New(message, kind.category()).
		WithCode(code).
		WithTextCode(string(kind))
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func wrapKindError(source error, kind ErrorKind, message string, code int, metadata map[string]any) *goerrors.Error {
	if source == nil {
		return newKindError(kind, message, code, metadata)
	}
	err := goerrors.Wrap(source, kind.category(), message).
		WithCode(code).
		WithTextCode(string(kind))
	// Wrap clones go-errors sources and keeps their category.
	err.Category = kind.category()
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// NewValidationError reports bad caller input detected before any network call.
func NewValidationError(message string) error {
	return newKindError(ErrorKindValidation, message, http.StatusBadRequest, nil)
}

func NewAuthenticationError(message string, status int) error {
	return newKindError(ErrorKindAuthentication, message, statusOr(status, http.StatusUnauthorized), statusMetadata(status))
}

func NewRequestValidationError(message string, status int) error {
	return newKindError(ErrorKindRequestValidation, message, statusOr(status, http.StatusBadRequest), statusMetadata(status))
}

// NewRateLimitError carries the server's retry hint when one was supplied. A
// nil retryAfter means the response did not say.
func NewRateLimitError(message string, retryAfter *time.Duration) error {
	metadata := statusMetadata(http.StatusTooManyRequests)
	if retryAfter != nil {
		metadata[MetaRetryAfterMS] = retryAfter.Milliseconds()
	}
	return newKindError(ErrorKindRateLimit, message, http.StatusTooManyRequests, metadata)
}

func NewServerError(message string, status int) error {
	return newKindError(ErrorKindServer, message, statusOr(status, http.StatusInternalServerError), statusMetadata(status))
}

func NewAPIError(message string, status int) error {
	return newKindError(ErrorKindAPI, message, statusOr(status, http.StatusBadGateway), statusMetadata(status))
}

func WrapAPIError(source error, message string, status int) error {
	return wrapKindError(source, ErrorKindAPI, message, statusOr(status, http.StatusBadGateway), statusMetadata(status))
}

func NewConnectionError(source error, message string) error {
	return wrapKindError(source, ErrorKindConnection, message, http.StatusBadGateway, nil)
}

func NewTimeoutError(source error, timeout time.Duration) error {
	ms := timeout.Milliseconds()
	return wrapKindError(
		source,
		ErrorKindConnection,
		fmt.Sprintf("request timed out after %dms", ms),
		http.StatusGatewayTimeout,
		map[string]any{MetaTimeoutMS: ms},
	)
}

// NewSignatureError is the single error shape for every webhook verification
// failure. The message may describe structural causes but never whether the
// secret or the payload was wrong.
func NewSignatureError(message string) error {
	return newKindError(ErrorKindSignature, message, http.StatusUnauthorized, nil)
}

// NewSignatureRejection is NewSignatureError with a short machine readable
// reason, suitable as a metrics tag.
func NewSignatureRejection(reason string, message string) error {
	return newKindError(ErrorKindSignature, message, http.StatusUnauthorized, map[string]any{MetaReason: reason})
}

func KindOf(err error) ErrorKind {
	if err == nil {
		return ErrorKindUnknown
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich == nil {
		return ErrorKindUnknown
	}
	code := ErrorKind(strings.TrimSpace(rich.TextCode))
	switch code {
	case ErrorKindValidation,
		ErrorKindAuthentication,
		ErrorKindRequestValidation,
		ErrorKindRateLimit,
		ErrorKindServer,
		ErrorKindConnection,
		ErrorKindAPI,
		ErrorKindSignature:
		return code
	default:
		return ErrorKindUnknown
	}
}

func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// RetryAfter returns the retry interval attached to a rate-limit error.
func RetryAfter(err error) (time.Duration, bool) {
	if !IsKind(err, ErrorKindRateLimit) {
		return 0, false
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich == nil || rich.Metadata == nil {
		return 0, false
	}
	ms, ok := toInt64(rich.Metadata[MetaRetryAfterMS])
	if !ok {
		return 0, false
	}
	return time.Duration(ms) * time.Millisecond, true
}

// StatusCode returns the HTTP status observed for errors created from a
// response, or zero.
func StatusCode(err error) int {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich == nil || rich.Metadata == nil {
		return 0
	}
	status, ok := toInt64(rich.Metadata[MetaStatusCode])
	if !ok {
		return 0
	}
	return int(status)
}

// Reason returns the reason recorded on a signature rejection, or "".
func Reason(err error) string {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich == nil || rich.Metadata == nil {
		return ""
	}
	reason, _ := rich.Metadata[MetaReason].(string)
	return reason
}

func statusOr(status int, fallback int) int {
	if status > 0 {
		return status
	}
	return fallback
}

func statusMetadata(status int) map[string]any {
	metadata := map[string]any{}
	if status > 0 {
		metadata[MetaStatusCode] = status
	}
	return metadata
}

func toInt64(value any) (int64, bool) {
	switch typed := value.(type) {
	case int64:
		return typed, true
	case int:
		return int64(typed), true
	case int32:
		return int64(typed), true
	case float64:
		if math.IsNaN(typed) || math.IsInf(typed, 0) {
			return 0, false
		}
		return int64(typed), true
	default:
		return 0, false
	}
}

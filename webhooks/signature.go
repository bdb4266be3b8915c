package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-tripline/core"
)

// SignaturePrefix tags the algorithm on every signature produced by Sign.
const SignaturePrefix = "sha256="

// Rejection reasons attached to signature errors.
const (
	ReasonMissingSignature = "missing_signature"
	ReasonMissingTimestamp = "missing_timestamp"
	ReasonMissingSecret    = "missing_secret"
	ReasonInvalidTimestamp = "invalid_timestamp"
	ReasonStale            = "stale"
	ReasonMismatch         = "mismatch"
	ReasonInvalidPayload   = "invalid_payload"
)

type verifyOptions struct {
	maxAge int
	now    func() time.Time
}

type VerifyOption func(*verifyOptions)

// WithMaxAge bounds the accepted skew between the signing timestamp and now,
// in seconds, in both directions. Zero disables the freshness check, which
// allows a captured request to be replayed indefinitely. Negative values keep
// the default window.
func WithMaxAge(seconds int) VerifyOption {
	return func(o *verifyOptions) {
		if seconds >= 0 {
			o.maxAge = seconds
		}
	}
}

func WithClock(now func() time.Time) VerifyOption {
	return func(o *verifyOptions) {
		if now != nil {
			o.now = now
		}
	}
}

func resolveVerifyOptions(opts []VerifyOption) verifyOptions {
	resolved := verifyOptions{
		maxAge: core.DefaultWebhookMaxAgeSeconds,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&resolved)
		}
	}
	return resolved
}

// Verify authenticates a webhook body against its signature and timestamp
// headers and decodes it. payload must be the exact bytes received; any
// re-encoding before verification breaks the signature. Every failure is a
// core.ErrorKindSignature error.
func Verify(payload []byte, signature string, timestamp string, secret string, opts ...VerifyOption) (Payload, error) {
	if err := verifySignature(payload, signature, timestamp, secret, resolveVerifyOptions(opts)); err != nil {
		return Payload{}, err
	}
	return decodePayload(payload)
}

// VerifyValue verifies a payload that was already decoded by the caller. The
// value is re-encoded with json.Marshal, which is only safe when the signer
// produced the body with the same routine (see SignValue).
func VerifyValue(payload any, signature string, timestamp string, secret string, opts ...VerifyOption) (Payload, error) {
	body, err := canonicalize(payload)
	if err != nil {
		return Payload{}, core.NewSignatureRejection(ReasonInvalidPayload, fmt.Sprintf("webhook payload could not be serialized: %v", err))
	}
	return Verify(body, signature, timestamp, secret, opts...)
}

// CheckHeaders reports a missing signature or timestamp header with the
// same error Verify returns for it.
func CheckHeaders(signature string, timestamp string) error {
	if strings.TrimSpace(signature) == "" {
		return core.NewSignatureRejection(ReasonMissingSignature, "missing webhook signature")
	}
	if strings.TrimSpace(timestamp) == "" {
		return core.NewSignatureRejection(ReasonMissingTimestamp, "missing webhook timestamp")
	}
	return nil
}

func verifySignature(payload []byte, signature string, timestamp string, secret string, opts verifyOptions) error {
	if err := CheckHeaders(signature, timestamp); err != nil {
		return err
	}
	if secret == "" {
		return core.NewSignatureRejection(ReasonMissingSecret, "webhook secret is required")
	}

	signedAt, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return core.NewSignatureRejection(ReasonInvalidTimestamp, "invalid webhook timestamp")
	}

	if opts.maxAge > 0 {
		age := opts.now().Unix() - signedAt
		maxAge := int64(opts.maxAge)
		if age > maxAge {
			return core.NewSignatureRejection(ReasonStale, fmt.Sprintf("webhook timestamp is too old (max age %ds)", opts.maxAge))
		}
		if age < -maxAge {
			return core.NewSignatureRejection(ReasonStale, fmt.Sprintf("webhook timestamp is too far in the future (max skew %ds)", opts.maxAge))
		}
	}

	expected := computeSignature(payload, timestamp, secret)
	received := strings.TrimPrefix(signature, SignaturePrefix)

	// Differing lengths are rejected before the constant time compare. Length
	// reveals nothing about the expected digest beyond its fixed size.
	if len(received) != len(expected) {
		return core.NewSignatureRejection(ReasonMismatch, "signature mismatch")
	}
	if subtle.ConstantTimeCompare([]byte(received), []byte(expected)) != 1 {
		return core.NewSignatureRejection(ReasonMismatch, "signature mismatch")
	}
	return nil
}

// computeSignature returns hex(HMAC-SHA256(secret, timestamp + "." + payload)).
// The timestamp is hashed exactly as it was received.
func computeSignature(payload []byte, timestamp string, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(timestamp))
	_, _ = mac.Write([]byte{'.'})
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func canonicalize(payload any) ([]byte, error) {
	switch typed := payload.(type) {
	case nil:
		return nil, fmt.Errorf("payload is nil")
	case []byte:
		return typed, nil
	case string:
		return []byte(typed), nil
	case json.RawMessage:
		return typed, nil
	default:
		return json.Marshal(typed)
	}
}

type SignedPayload struct {
	Signature string
	Timestamp string
	Body      []byte
}

// Headers returns the signature and timestamp headers a producer sends
// alongside Body.
func (s SignedPayload) Headers() map[string]string {
	return map[string]string{
		core.DefaultWebhookSignatureHeader: s.Signature,
		core.DefaultWebhookTimestampHeader: s.Timestamp,
	}
}

type signOptions struct {
	timestamp *int64
	now       func() time.Time
}

type SignOption func(*signOptions)

func WithTimestamp(unixSeconds int64) SignOption {
	return func(o *signOptions) {
		o.timestamp = &unixSeconds
	}
}

func WithSignClock(now func() time.Time) SignOption {
	return func(o *signOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// Sign produces the headers a Tripline producer attaches to payload. The
// timestamp defaults to the current unix time.
func Sign(payload []byte, secret string, opts ...SignOption) (SignedPayload, error) {
	if secret == "" {
		return SignedPayload{}, core.NewValidationError("webhook secret is required")
	}
	resolved := signOptions{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&resolved)
		}
	}
	signedAt := resolved.now().Unix()
	if resolved.timestamp != nil {
		signedAt = *resolved.timestamp
	}
	timestamp := strconv.FormatInt(signedAt, 10)
	body := append([]byte(nil), payload...)
	return SignedPayload{
		Signature: SignaturePrefix + computeSignature(body, timestamp, secret),
		Timestamp: timestamp,
		Body:      body,
	}, nil
}

// SignValue encodes value with json.Marshal and signs the result. The encoded
// body is returned in SignedPayload.Body and must be sent unmodified.
func SignValue(value any, secret string, opts ...SignOption) (SignedPayload, error) {
	body, err := canonicalize(value)
	if err != nil {
		return SignedPayload{}, core.NewValidationError(fmt.Sprintf("webhook payload could not be serialized: %v", err))
	}
	return Sign(body, secret, opts...)
}

package webhooks

import (
	"context"
	"strings"

	"github.com/goliatone/go-tripline/core"
)

type Verifier interface {
	Verify(ctx context.Context, req core.InboundRequest) (Payload, error)
}

// HeaderVerifier reads the signature and timestamp from request headers and
// checks them with Verify.
type HeaderVerifier struct {
	SignatureHeader string
	TimestampHeader string
	Secret          string
	Options         []VerifyOption
}

func NewHeaderVerifier(cfg core.WebhookConfig, opts ...VerifyOption) HeaderVerifier {
	options := []VerifyOption{WithMaxAge(cfg.MaxAge())}
	options = append(options, opts...)
	return HeaderVerifier{
		SignatureHeader: cfg.SignatureHeaderName(),
		TimestampHeader: cfg.TimestampHeaderName(),
		Secret:          cfg.Secret,
		Options:         options,
	}
}

func (v HeaderVerifier) Verify(_ context.Context, req core.InboundRequest) (Payload, error) {
	signatureHeader := strings.TrimSpace(v.SignatureHeader)
	if signatureHeader == "" {
		signatureHeader = core.DefaultWebhookSignatureHeader
	}
	timestampHeader := strings.TrimSpace(v.TimestampHeader)
	if timestampHeader == "" {
		timestampHeader = core.DefaultWebhookTimestampHeader
	}
	return Verify(
		req.Body,
		headerValue(req.Headers, signatureHeader),
		headerValue(req.Headers, timestampHeader),
		v.Secret,
		v.Options...,
	)
}

func headerValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

var _ Verifier = HeaderVerifier{}

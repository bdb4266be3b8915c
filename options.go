package tripline

import (
	"github.com/goliatone/go-tripline/core"
	"github.com/goliatone/go-tripline/transport"
)

type clientBuilder struct {
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	httpClient      transport.HTTPDoer
	transport       core.TransportAdapter
	rateLimitPolicy core.RateLimitPolicy
	replayLedger    core.ReplayLedger
	configProvider  core.ConfigProvider
	optionsResolver core.OptionsResolver
	userAgent       string
}

type Option func(*clientBuilder)

func WithLogger(logger Logger) Option {
	return func(b *clientBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *clientBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *clientBuilder) {
		b.metricsRecorder = recorder
	}
}

// WithHTTPClient sets the doer used by the default REST transport. It is
// ignored when WithTransport is also supplied.
func WithHTTPClient(client transport.HTTPDoer) Option {
	return func(b *clientBuilder) {
		b.httpClient = client
	}
}

func WithTransport(adapter core.TransportAdapter) Option {
	return func(b *clientBuilder) {
		b.transport = adapter
	}
}

// WithRateLimitPolicy enables local throttling between calls. Without a
// policy every call goes to the API and 429 responses are only reported.
func WithRateLimitPolicy(policy core.RateLimitPolicy) Option {
	return func(b *clientBuilder) {
		b.rateLimitPolicy = policy
	}
}

// WithReplayLedger sets the ledger used by WebhookProcessor to drop
// redelivered events.
func WithReplayLedger(ledger core.ReplayLedger) Option {
	return func(b *clientBuilder) {
		b.replayLedger = ledger
	}
}

func WithConfigProvider(provider core.ConfigProvider) Option {
	return func(b *clientBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver core.OptionsResolver) Option {
	return func(b *clientBuilder) {
		b.optionsResolver = resolver
	}
}

func WithUserAgent(userAgent string) Option {
	return func(b *clientBuilder) {
		b.userAgent = userAgent
	}
}

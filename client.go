package tripline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-tripline/core"
	"github.com/goliatone/go-tripline/ratelimit"
	"github.com/goliatone/go-tripline/transport"
	"github.com/goliatone/go-tripline/webhooks"
)

const (
	OperationEvaluate = "evaluate"
	OperationScreen   = "screen"

	evaluatePath = "/v1/evaluate"
	screenPath   = "/v1/screen"
)

// Client calls the Tripline API. It holds no per-call state and is safe for
// concurrent use.
type Client struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	transport       core.TransportAdapter
	rateLimitPolicy core.RateLimitPolicy
	replayLedger    core.ReplayLedger
}

func NewClient(cfg Config, opts ...Option) (*Client, error) {
	builder := clientBuilder{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("tripline", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("tripline.client"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = core.NopMetricsRecorder{}
	}

	resolved, err := core.ResolveConfig(context.Background(), cfg, builder.configProvider, builder.optionsResolver)
	if err != nil {
		return nil, core.NewValidationError(err.Error())
	}
	if strings.TrimSpace(builder.userAgent) != "" {
		resolved.UserAgent = strings.TrimSpace(builder.userAgent)
	}

	adapter := builder.transport
	if adapter == nil {
		adapter = transport.NewRESTAdapter(builder.httpClient)
	}

	return &Client{
		config:          resolved,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		transport:       adapter,
		rateLimitPolicy: builder.rateLimitPolicy,
		replayLedger:    builder.replayLedger,
	}, nil
}

// Config returns the resolved configuration.
func (c *Client) Config() Config {
	if c == nil {
		return Config{}
	}
	return c.config
}

// Evaluate requests a full risk assessment. Exactly one of Messages or Text
// must be set; otherwise a validation error is returned without contacting
// the API.
func (c *Client) Evaluate(ctx context.Context, req EvaluateRequest) (*EvaluateResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var out EvaluateResponse
	if err := c.call(ctx, OperationEvaluate, evaluatePath, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Screen requests a lightweight flag decision. It follows the same input rules
// as Evaluate.
func (c *Client) Screen(ctx context.Context, req ScreenRequest) (*ScreenResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var out ScreenResponse
	if err := c.call(ctx, OperationScreen, screenPath, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyWebhook checks a webhook body with the configured secret and freshness
// window.
func (c *Client) VerifyWebhook(payload []byte, signature string, timestamp string, opts ...webhooks.VerifyOption) (WebhookPayload, error) {
	if c == nil {
		return WebhookPayload{}, core.NewSignatureRejection(webhooks.ReasonMissingSecret, "webhook secret is required")
	}
	options := append([]webhooks.VerifyOption{webhooks.WithMaxAge(c.config.Webhook.MaxAge())}, opts...)
	return webhooks.Verify(payload, signature, timestamp, c.config.Webhook.Secret, options...)
}

// WebhookProcessor builds a processor that verifies deliveries with the
// configured headers and secret before passing them to handler. On a nil
// Client every delivery is rejected as missing_secret.
func (c *Client) WebhookProcessor(handler webhooks.Handler, opts ...webhooks.VerifyOption) *webhooks.Processor {
	if c == nil {
		return webhooks.NewProcessor(webhooks.NewHeaderVerifier(core.WebhookConfig{}, opts...), handler)
	}
	processor := webhooks.NewProcessor(webhooks.NewHeaderVerifier(c.config.Webhook, opts...), handler)
	processor.Ledger = c.replayLedger
	processor.Metrics = c.metricsRecorder
	processor.Logger = c.namedLogger("tripline.webhooks")
	return processor
}

// WebhookHandler mounts WebhookProcessor as an http.Handler.
func (c *Client) WebhookHandler(handler webhooks.Handler, opts ...webhooks.VerifyOption) http.Handler {
	return webhooks.NewHTTPHandler(c.WebhookProcessor(handler, opts...), c.namedLogger("tripline.webhooks"))
}

func (c *Client) call(ctx context.Context, operation string, path string, body any, out any) error {
	if c == nil || c.transport == nil {
		return core.NewConnectionError(nil, "tripline client is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	key := core.RateLimitKey{
		ServiceName: c.config.ServiceName,
		Operation:   operation,
		BucketKey:   c.config.BaseURL,
	}
	if c.rateLimitPolicy != nil {
		if err := c.rateLimitPolicy.BeforeCall(ctx, key); err != nil {
			c.record(ctx, operation, "throttled", 0)
			return err
		}
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return core.NewValidationError(fmt.Sprintf("encode %s request: %v", operation, err))
	}

	timeout := c.config.Timeout()
	started := time.Now()
	res, err := c.transport.Do(ctx, core.TransportRequest{
		Method:  http.MethodPost,
		URL:     c.config.Endpoint(path),
		Headers: c.headers(),
		Body:    encoded,
		Timeout: timeout,
		Metadata: map[string]any{
			"operation": operation,
		},
	})
	elapsed := time.Since(started)
	if err != nil {
		c.record(ctx, operation, "error", elapsed)
		core.LogWithFields(ctx, c.logger, core.LevelWarn, "tripline request failed", map[string]any{
			"operation":  operation,
			"error":      err.Error(),
			"timeout_ms": timeout.Milliseconds(),
		})
		return err
	}

	c.record(ctx, operation, strconv.Itoa(res.StatusCode), elapsed)
	c.afterCall(ctx, key, res)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		mapped := errorFromResponse(res)
		core.LogWithFields(ctx, c.logger, core.LevelWarn, "tripline request rejected", map[string]any{
			"operation": operation,
			"status":    res.StatusCode,
			"kind":      core.KindOf(mapped).String(),
		})
		return mapped
	}

	if err := json.Unmarshal(res.Body, out); err != nil {
		return core.WrapAPIError(err, fmt.Sprintf("invalid JSON in %s response", operation), res.StatusCode)
	}
	core.LogWithFields(ctx, c.logger, core.LevelDebug, "tripline request completed", map[string]any{
		"operation":   operation,
		"status":      res.StatusCode,
		"duration_ms": elapsed.Milliseconds(),
	})
	return nil
}

func (c *Client) headers() map[string]string {
	headers := map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
	}
	if agent := strings.TrimSpace(c.config.UserAgent); agent != "" {
		headers["User-Agent"] = agent
	}
	if key := strings.TrimSpace(c.config.APIKey); key != "" {
		headers["Authorization"] = "Bearer " + key
	}
	return headers
}

func (c *Client) afterCall(ctx context.Context, key core.RateLimitKey, res core.TransportResponse) {
	if c.rateLimitPolicy == nil {
		return
	}
	meta := core.ResponseMeta{
		StatusCode: res.StatusCode,
		Headers:    res.Headers,
	}
	if retryAfter, ok := ratelimit.ParseRetryAfter(transport.Header(res.Headers, "Retry-After")); ok {
		meta.RetryAfter = &retryAfter
	}
	if err := c.rateLimitPolicy.AfterCall(ctx, key, meta); err != nil {
		core.LogWithFields(ctx, c.logger, core.LevelWarn, "rate limit state update failed", map[string]any{
			"operation": key.Operation,
			"error":     err.Error(),
		})
	}
}

func (c *Client) record(ctx context.Context, operation string, status string, elapsed time.Duration) {
	tags := map[string]string{
		"operation": operation,
		"status":    status,
	}
	c.metricsRecorder.IncCounter(ctx, core.MetricClientRequests, 1, tags)
	if elapsed > 0 {
		c.metricsRecorder.ObserveHistogram(ctx, core.MetricClientDurationMS, float64(elapsed.Milliseconds()), core.CloneTags(tags))
	}
}

func (c *Client) namedLogger(name string) Logger {
	if c == nil {
		return nil
	}
	if c.loggerProvider != nil {
		if named := c.loggerProvider.GetLogger(name); named != nil {
			return named
		}
	}
	return c.logger
}

func errorFromResponse(res core.TransportResponse) error {
	message := responseMessage(res)
	switch {
	case res.StatusCode == http.StatusUnauthorized:
		return core.NewAuthenticationError(message, res.StatusCode)
	case res.StatusCode == http.StatusBadRequest:
		return core.NewRequestValidationError(message, res.StatusCode)
	case res.StatusCode == http.StatusTooManyRequests:
		if retryAfter, ok := ratelimit.ParseRetryAfter(transport.Header(res.Headers, "Retry-After")); ok {
			return core.NewRateLimitError(message, &retryAfter)
		}
		return core.NewRateLimitError(message, nil)
	case res.StatusCode >= 500:
		return core.NewServerError(message, res.StatusCode)
	default:
		return core.NewAPIError(message, res.StatusCode)
	}
}

// responseMessage prefers the {"error": "..."} envelope, then the raw body,
// then the status text.
func responseMessage(res core.TransportResponse) string {
	body := strings.TrimSpace(string(res.Body))
	if body != "" {
		var envelope struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(res.Body, &envelope); err == nil && strings.TrimSpace(envelope.Error) != "" {
			return strings.TrimSpace(envelope.Error)
		}
		return body
	}
	if text := http.StatusText(res.StatusCode); text != "" {
		return text
	}
	return fmt.Sprintf("unexpected status %d", res.StatusCode)
}

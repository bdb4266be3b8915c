package gojob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
	"github.com/goliatone/go-tripline/core"
	"github.com/goliatone/go-tripline/webhooks"
)

const (
	JobIDWebhookPrefix = "tripline.webhook."
	ScriptPathWebhook  = "tripline.webhook.handle"

	ParamEvent      = "event"
	ParamEventID    = "event_id"
	ParamAPIVersion = "api_version"
	ParamRiskLevel  = "risk_level"
	ParamPayload    = "payload"

	defaultRetryDelay = 5 * time.Second
)

// JobIDForEvent returns the job id used for a webhook event type, for example
// "tripline.webhook.risk.critical".
func JobIDForEvent(event webhooks.EventType) string {
	name := strings.TrimSpace(string(event))
	if name == "" {
		name = "unknown"
	}
	return JobIDWebhookPrefix + name
}

// RetryPolicy bounds queue retries so a poisoned delivery cannot loop forever.
// Exhausted deliveries are dead lettered when DeadLetterOnMax is set and
// marked failed otherwise.
type RetryPolicy struct {
	MaxAttempts     int
	Delay           time.Duration
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// Decide implements worker.RetryPolicy. Errors marked non-retryable by go-job
// are dead lettered immediately.
func (p RetryPolicy) Decide(attempt int, err error) queue.NackOptions {
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	var terminal job.NonRetryableError
	if errors.As(err, &terminal) && terminal.NonRetryable() {
		return p.NormalizeAttempt(queue.NackOptions{
			Disposition: queue.NackDispositionDeadLetter,
			Reason:      terminal.NonRetryableReason(),
		}, attempt)
	}
	delay := p.Delay
	if delay <= 0 {
		delay = defaultRetryDelay
	}
	return p.NormalizeAttempt(queue.NackOptions{
		Disposition: queue.NackDispositionRetry,
		Delay:       delay,
		Reason:      reason,
	}, attempt)
}

// NormalizeAttempt enforces bounded retry behavior for a nack operation. An
// empty disposition is treated as a retry.
func (p RetryPolicy) NormalizeAttempt(opts queue.NackOptions, attempt int) queue.NackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Disposition == "" {
		out.Disposition = queue.NackDispositionRetry
	}
	if out.Disposition != queue.NackDispositionRetry {
		out.Delay = 0
		return out
	}
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Delay = 0
		out.Disposition = queue.NackDispositionFailed
		if p.DeadLetterOnMax {
			out.Disposition = queue.NackDispositionDeadLetter
		}
	}
	return out
}

// ToExecutionMessage maps a verified webhook event to a go-job message. The
// event id doubles as the idempotency key so a queue with dedup support drops
// redeliveries the replay ledger missed.
func ToExecutionMessage(event webhooks.Event) (*job.ExecutionMessage, error) {
	eventID := strings.TrimSpace(event.Payload.EventID)
	if eventID == "" {
		return nil, fmt.Errorf("gojob: webhook event id is required")
	}
	raw := event.Payload.Raw
	if len(raw) == 0 {
		encoded, err := json.Marshal(event.Payload)
		if err != nil {
			return nil, fmt.Errorf("gojob: encode webhook payload: %w", err)
		}
		raw = encoded
	}
	params := map[string]any{
		ParamEvent:      string(event.Payload.Event),
		ParamEventID:    eventID,
		ParamAPIVersion: event.Payload.APIVersion,
		ParamPayload:    string(raw),
	}
	if level := event.Payload.RiskLevel(); level != "" {
		params[ParamRiskLevel] = string(level)
	}
	return &job.ExecutionMessage{
		JobID:          JobIDForEvent(event.Payload.Event),
		ScriptPath:     ScriptPathWebhook,
		Parameters:     params,
		IdempotencyKey: webhooks.ReplayKey(eventID),
		DedupPolicy:    job.DedupPolicyDrop,
	}, nil
}

// FromExecutionMessage rebuilds the webhook event carried by msg.
func FromExecutionMessage(msg *job.ExecutionMessage) (webhooks.Event, error) {
	if msg == nil {
		return webhooks.Event{}, fmt.Errorf("gojob: execution message is required")
	}
	if !strings.HasPrefix(strings.TrimSpace(msg.JobID), JobIDWebhookPrefix) {
		return webhooks.Event{}, fmt.Errorf("gojob: job %q is not a webhook job", msg.JobID)
	}
	raw, _ := msg.Parameters[ParamPayload].(string)
	if strings.TrimSpace(raw) == "" {
		return webhooks.Event{}, fmt.Errorf("gojob: job %q has no webhook payload", msg.JobID)
	}
	payload, err := webhooks.ParsePayload([]byte(raw))
	if err != nil {
		return webhooks.Event{}, fmt.Errorf("gojob: decode webhook payload: %w", err)
	}
	return webhooks.Event{Payload: payload}, nil
}

// EnqueueHandler is a webhooks.Handler that defers processing to a go-job
// queue. A failed enqueue fails the delivery, which releases its replay
// claim so the producer's retry is accepted.
type EnqueueHandler struct {
	enqueuer queue.Enqueuer
}

func NewEnqueueHandler(enqueuer queue.Enqueuer) *EnqueueHandler {
	return &EnqueueHandler{enqueuer: enqueuer}
}

func (h *EnqueueHandler) Handle(ctx context.Context, event webhooks.Event) error {
	if h == nil || h.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	msg, err := ToExecutionMessage(event)
	if err != nil {
		return err
	}
	_, err = h.enqueuer.Enqueue(ctx, msg)
	return err
}

// Consumer drains webhook jobs from a dequeuer into a webhooks.Handler.
type Consumer struct {
	dequeuer queue.Dequeuer
	handler  webhooks.Handler
	policy   worker.RetryPolicy
}

// NewConsumer builds a consumer. A nil policy falls back to RetryPolicy{}.
func NewConsumer(dequeuer queue.Dequeuer, handler webhooks.Handler, policy worker.RetryPolicy) *Consumer {
	if policy == nil {
		policy = RetryPolicy{}
	}
	return &Consumer{
		dequeuer: dequeuer,
		handler:  handler,
		policy:   policy,
	}
}

// ConsumeOne handles a single delivery. attempt is the delivery attempt as
// tracked by the caller's worker loop. Undecodable jobs go straight to the
// dead letter queue.
func (c *Consumer) ConsumeOne(ctx context.Context, attempt int) error {
	if c == nil || c.dequeuer == nil || c.handler == nil {
		return fmt.Errorf("gojob: consumer is not configured")
	}
	delivery, err := c.dequeuer.Dequeue(ctx)
	if err != nil {
		return err
	}
	if delivery == nil {
		return nil
	}

	event, err := FromExecutionMessage(delivery.Message())
	if err != nil {
		if nackErr := delivery.Nack(ctx, queue.NackOptions{
			Disposition: queue.NackDispositionDeadLetter,
			Reason:      err.Error(),
		}); nackErr != nil {
			return nackErr
		}
		return err
	}
	if err := c.handler.Handle(ctx, event); err != nil {
		if nackErr := delivery.Nack(ctx, c.policy.Decide(attempt, err)); nackErr != nil {
			return nackErr
		}
		return err
	}
	return delivery.Ack(ctx)
}

// MetricsHook reports worker outcomes for webhook jobs.
type MetricsHook struct {
	metrics core.MetricsRecorder
}

func NewMetricsHook(metrics core.MetricsRecorder) *MetricsHook {
	if metrics == nil {
		metrics = core.NopMetricsRecorder{}
	}
	return &MetricsHook{metrics: metrics}
}

func (h *MetricsHook) OnStart(context.Context, worker.Event) {}

func (h *MetricsHook) OnSuccess(ctx context.Context, event worker.Event) {
	h.record(ctx, event, "success")
}

func (h *MetricsHook) OnFailure(ctx context.Context, event worker.Event) {
	h.record(ctx, event, "failure")
}

func (h *MetricsHook) OnRetry(ctx context.Context, event worker.Event) {
	h.record(ctx, event, "retry")
}

func (h *MetricsHook) record(ctx context.Context, event worker.Event, outcome string) {
	if h == nil || h.metrics == nil {
		return
	}
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	jobID := "unknown"
	if message != nil && strings.TrimSpace(message.JobID) != "" {
		jobID = strings.TrimSpace(message.JobID)
	}
	tags := map[string]string{
		"job":     jobID,
		"outcome": outcome,
	}
	h.metrics.IncCounter(ctx, core.MetricWebhookJobs, 1, tags)
	if event.Duration > 0 {
		h.metrics.ObserveHistogram(ctx, core.MetricWebhookJobMS, float64(event.Duration.Milliseconds()), core.CloneTags(tags))
	}
}

var (
	_ webhooks.Handler   = (*EnqueueHandler)(nil)
	_ worker.Hook        = (*MetricsHook)(nil)
	_ worker.RetryPolicy = RetryPolicy{}
)

package webhooks

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-tripline/core"
)

// Event is a verified delivery handed to a Handler.
type Event struct {
	Payload    Payload
	Headers    map[string]string
	ReceivedAt time.Time
}

type Handler interface {
	Handle(ctx context.Context, event Event) error
}

type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Processor verifies inbound deliveries and dispatches them to Handler. When a
// Ledger is set, each event_id is claimed before dispatch and repeats are
// acknowledged without reaching the handler.
type Processor struct {
	Verifier  Verifier
	Handler   Handler
	Ledger    core.ReplayLedger
	ReplayTTL time.Duration
	Logger    core.Logger
	Metrics   core.MetricsRecorder
	Now       func() time.Time
}

func NewProcessor(verifier Verifier, handler Handler) *Processor {
	return &Processor{
		Verifier:  verifier,
		Handler:   handler,
		ReplayTTL: DefaultReplayTTL,
		Metrics:   core.NopMetricsRecorder{},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (p *Processor) Process(ctx context.Context, req core.InboundRequest) (core.InboundResult, error) {
	if p == nil || p.Verifier == nil || p.Handler == nil {
		return core.InboundResult{}, fmt.Errorf("webhooks: processor requires verifier and handler")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	payload, err := p.Verifier.Verify(ctx, req)
	if err != nil {
		p.count(ctx, core.MetricWebhookRejected, map[string]string{"reason": rejectionReason(err)})
		core.LogWithFields(ctx, p.Logger, core.LevelWarn, "webhook rejected", map[string]any{
			"surface": req.Surface,
			"error":   err.Error(),
		})
		return core.InboundResult{
			Accepted:   false,
			StatusCode: http.StatusUnauthorized,
			Metadata:   map[string]any{"rejected": true},
		}, err
	}

	tags := map[string]string{"event": string(payload.Event)}
	p.count(ctx, core.MetricWebhookVerified, tags)
	metadata := map[string]any{
		"event":    string(payload.Event),
		"event_id": payload.EventID,
	}

	claimKey := ""
	if p.Ledger != nil && strings.TrimSpace(payload.EventID) != "" {
		claimKey = ReplayKey(payload.EventID)
		claimed, claimErr := p.Ledger.Claim(ctx, claimKey, p.replayTTL())
		if claimErr != nil {
			return core.InboundResult{
				Accepted:   false,
				StatusCode: http.StatusInternalServerError,
				Metadata:   metadata,
			}, fmt.Errorf("webhooks: claim event %q: %w", payload.EventID, claimErr)
		}
		if !claimed {
			p.count(ctx, core.MetricWebhookDeduped, tags)
			core.LogWithFields(ctx, p.Logger, core.LevelDebug, "webhook deduped", metadata)
			metadata["deduped"] = true
			return core.InboundResult{
				Accepted:   true,
				StatusCode: http.StatusOK,
				Metadata:   metadata,
			}, nil
		}
	}

	event := Event{
		Payload:    payload,
		Headers:    req.Headers,
		ReceivedAt: p.now(),
	}
	if err := p.Handler.Handle(ctx, event); err != nil {
		if releaser, ok := p.Ledger.(ReplayReleaser); ok && claimKey != "" {
			if releaseErr := releaser.Release(ctx, claimKey); releaseErr != nil {
				core.LogWithFields(ctx, p.Logger, core.LevelError, "webhook claim release failed", map[string]any{
					"event_id": payload.EventID,
					"error":    releaseErr.Error(),
				})
			}
		}
		core.LogWithFields(ctx, p.Logger, core.LevelError, "webhook handler failed", map[string]any{
			"event":    string(payload.Event),
			"event_id": payload.EventID,
			"error":    err.Error(),
		})
		return core.InboundResult{
			Accepted:   false,
			StatusCode: http.StatusInternalServerError,
			Metadata:   metadata,
		}, err
	}

	core.LogWithFields(ctx, p.Logger, core.LevelInfo, "webhook processed", metadata)
	return core.InboundResult{
		Accepted:   true,
		StatusCode: http.StatusOK,
		Metadata:   metadata,
	}, nil
}

func (p *Processor) count(ctx context.Context, name string, tags map[string]string) {
	if p.Metrics == nil {
		return
	}
	p.Metrics.IncCounter(ctx, name, 1, core.CloneTags(tags))
}

func (p *Processor) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func (p *Processor) replayTTL() time.Duration {
	if p.ReplayTTL > 0 {
		return p.ReplayTTL
	}
	return DefaultReplayTTL
}

func rejectionReason(err error) string {
	if reason := core.Reason(err); reason != "" {
		return reason
	}
	return "error"
}

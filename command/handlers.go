package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-tripline/core"
	"github.com/goliatone/go-tripline/webhooks"
)

// RiskService is the API surface the evaluate and screen commands call.
// *tripline.Client satisfies it.
type RiskService interface {
	Evaluate(ctx context.Context, req core.EvaluateRequest) (*core.EvaluateResponse, error)
	Screen(ctx context.Context, req core.ScreenRequest) (*core.ScreenResponse, error)
}

type WebhookVerifier interface {
	VerifyWebhook(payload []byte, signature string, timestamp string, opts ...webhooks.VerifyOption) (webhooks.Payload, error)
}

type EvaluateCommand struct {
	service RiskService
}

func NewEvaluateCommand(service RiskService) *EvaluateCommand {
	return &EvaluateCommand{service: service}
}

func (c *EvaluateCommand) Execute(ctx context.Context, msg EvaluateMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: evaluate service is required")
	}
	out, err := c.service.Evaluate(ctx, msg.Request)
	if err != nil {
		return err
	}
	if out != nil {
		storeResult(ctx, *out)
	}
	return nil
}

type ScreenCommand struct {
	service RiskService
}

func NewScreenCommand(service RiskService) *ScreenCommand {
	return &ScreenCommand{service: service}
}

func (c *ScreenCommand) Execute(ctx context.Context, msg ScreenMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: screen service is required")
	}
	out, err := c.service.Screen(ctx, msg.Request)
	if err != nil {
		return err
	}
	if out != nil {
		storeResult(ctx, *out)
	}
	return nil
}

type VerifyWebhookCommand struct {
	verifier WebhookVerifier
	options  []webhooks.VerifyOption
}

func NewVerifyWebhookCommand(verifier WebhookVerifier, opts ...webhooks.VerifyOption) *VerifyWebhookCommand {
	return &VerifyWebhookCommand{verifier: verifier, options: opts}
}

func (c *VerifyWebhookCommand) Execute(ctx context.Context, msg VerifyWebhookMessage) error {
	if c == nil || c.verifier == nil {
		return commandDependencyError("command: webhook verifier is required")
	}
	payload, err := c.verifier.VerifyWebhook(msg.Payload, msg.Signature, msg.Timestamp, c.options...)
	if err != nil {
		return err
	}
	storeResult(ctx, payload)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}

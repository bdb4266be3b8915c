package command

import (
	"github.com/goliatone/go-tripline/core"
	"github.com/goliatone/go-tripline/webhooks"
)

const (
	TypeEvaluate      = "tripline.command.evaluate"
	TypeScreen        = "tripline.command.screen"
	TypeVerifyWebhook = "tripline.command.webhook.verify"
)

type EvaluateMessage struct {
	Request core.EvaluateRequest
}

func (EvaluateMessage) Type() string { return TypeEvaluate }

func (m EvaluateMessage) Validate() error {
	return commandWrapValidation(m.Request.Validate(), "command: invalid evaluate request")
}

type ScreenMessage struct {
	Request core.ScreenRequest
}

func (ScreenMessage) Type() string { return TypeScreen }

func (m ScreenMessage) Validate() error {
	return commandWrapValidation(m.Request.Validate(), "command: invalid screen request")
}

// VerifyWebhookMessage carries a raw delivery. The secret comes from the
// verifier's configuration.
type VerifyWebhookMessage struct {
	Payload   []byte
	Signature string
	Timestamp string
}

func (VerifyWebhookMessage) Type() string { return TypeVerifyWebhook }

// Validate rejects incomplete deliveries with the same signature errors the
// verifier returns, so dispatching a delivery and verifying it directly fail
// the same way.
func (m VerifyWebhookMessage) Validate() error {
	if err := webhooks.CheckHeaders(m.Signature, m.Timestamp); err != nil {
		return err
	}
	if len(m.Payload) == 0 {
		return core.NewSignatureRejection(webhooks.ReasonInvalidPayload, "webhook payload is empty")
	}
	return nil
}

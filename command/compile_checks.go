package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[EvaluateMessage]      = (*EvaluateCommand)(nil)
	_ gocmd.Commander[ScreenMessage]        = (*ScreenCommand)(nil)
	_ gocmd.Commander[VerifyWebhookMessage] = (*VerifyWebhookCommand)(nil)
)

package sqlstore

import (
	"github.com/goliatone/go-tripline/core"
	"github.com/goliatone/go-tripline/ratelimit"
	"github.com/goliatone/go-tripline/webhooks"
)

var (
	_ core.ReplayLedger       = (*WebhookEventStore)(nil)
	_ webhooks.ReplayReleaser = (*WebhookEventStore)(nil)
	_ ratelimit.StateStore    = (*RateLimitStateStore)(nil)
	_ ratelimit.StateStore    = (*CachedRateLimitStateStore)(nil)
)

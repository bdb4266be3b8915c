package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-tripline/ratelimit"
	sqlstore "github.com/goliatone/go-tripline/store/sql"
)

var (
	_ gocmd.Querier[GetWebhookEventMessage, sqlstore.WebhookEvent]       = (*GetWebhookEventQuery)(nil)
	_ gocmd.Querier[ListWebhookEventsMessage, sqlstore.WebhookEventPage] = (*ListWebhookEventsQuery)(nil)
	_ gocmd.Querier[GetRateLimitStateMessage, ratelimit.State]           = (*GetRateLimitStateQuery)(nil)
	_ WebhookEventReader                                                 = (*sqlstore.WebhookEventStore)(nil)
	_ gocmd.Querier[ListThrottledMessage, []ratelimit.State]             = (*ListThrottledQuery)(nil)
	_ RateLimitStateReader                                               = (*sqlstore.RateLimitStateStore)(nil)
	_ ThrottledStateLister                                               = (*sqlstore.RateLimitStateStore)(nil)
)

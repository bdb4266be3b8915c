package query

import (
	"context"
	"time"

	"github.com/goliatone/go-tripline/core"
	"github.com/goliatone/go-tripline/ratelimit"
	sqlstore "github.com/goliatone/go-tripline/store/sql"
)

// WebhookEventReader reads the webhook archive. *sqlstore.WebhookEventStore
// satisfies it.
type WebhookEventReader interface {
	Get(ctx context.Context, eventID string) (sqlstore.WebhookEvent, error)
	List(ctx context.Context, filter sqlstore.WebhookEventFilter) (sqlstore.WebhookEventPage, error)
}

type RateLimitStateReader interface {
	Get(ctx context.Context, key core.RateLimitKey) (ratelimit.State, error)
}

type ThrottledStateLister interface {
	Throttled(ctx context.Context, now time.Time) ([]ratelimit.State, error)
}

type GetWebhookEventQuery struct {
	reader WebhookEventReader
}

func NewGetWebhookEventQuery(reader WebhookEventReader) *GetWebhookEventQuery {
	return &GetWebhookEventQuery{reader: reader}
}

func (q *GetWebhookEventQuery) Query(ctx context.Context, msg GetWebhookEventMessage) (sqlstore.WebhookEvent, error) {
	if q == nil || q.reader == nil {
		return sqlstore.WebhookEvent{}, queryDependencyError("query: webhook event reader is required")
	}
	return q.reader.Get(ctx, msg.EventID)
}

type ListWebhookEventsQuery struct {
	reader WebhookEventReader
}

func NewListWebhookEventsQuery(reader WebhookEventReader) *ListWebhookEventsQuery {
	return &ListWebhookEventsQuery{reader: reader}
}

func (q *ListWebhookEventsQuery) Query(
	ctx context.Context,
	msg ListWebhookEventsMessage,
) (sqlstore.WebhookEventPage, error) {
	if q == nil || q.reader == nil {
		return sqlstore.WebhookEventPage{}, queryDependencyError("query: webhook event reader is required")
	}
	return q.reader.List(ctx, msg.Filter)
}

type GetRateLimitStateQuery struct {
	reader RateLimitStateReader
}

func NewGetRateLimitStateQuery(reader RateLimitStateReader) *GetRateLimitStateQuery {
	return &GetRateLimitStateQuery{reader: reader}
}

func (q *GetRateLimitStateQuery) Query(ctx context.Context, msg GetRateLimitStateMessage) (ratelimit.State, error) {
	if q == nil || q.reader == nil {
		return ratelimit.State{}, queryDependencyError("query: rate limit state reader is required")
	}
	return q.reader.Get(ctx, msg.Key)
}

type ListThrottledQuery struct {
	lister ThrottledStateLister
	Now    func() time.Time
}

func NewListThrottledQuery(lister ThrottledStateLister) *ListThrottledQuery {
	return &ListThrottledQuery{lister: lister, Now: time.Now}
}

func (q *ListThrottledQuery) Query(ctx context.Context, msg ListThrottledMessage) ([]ratelimit.State, error) {
	if q == nil || q.lister == nil {
		return nil, queryDependencyError("query: throttled state lister is required")
	}
	at := msg.At
	if at.IsZero() {
		at = time.Now()
		if q.Now != nil {
			at = q.Now()
		}
	}
	return q.lister.Throttled(ctx, at)
}

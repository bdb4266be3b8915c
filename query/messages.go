package query

import (
	"strings"
	"time"

	"github.com/goliatone/go-tripline/core"
	sqlstore "github.com/goliatone/go-tripline/store/sql"
)

const (
	TypeGetWebhookEvent   = "tripline.query.webhook_event.get"
	TypeListWebhookEvents = "tripline.query.webhook_event.list"
	TypeGetRateLimitState = "tripline.query.rate_limit_state.get"
	TypeListThrottled     = "tripline.query.rate_limit_state.throttled"
)

type GetWebhookEventMessage struct {
	EventID string
}

func (GetWebhookEventMessage) Type() string { return TypeGetWebhookEvent }

func (m GetWebhookEventMessage) Validate() error {
	if strings.TrimSpace(m.EventID) == "" {
		return queryValidationError("event_id", "event id is required")
	}
	return nil
}

type ListWebhookEventsMessage struct {
	Filter sqlstore.WebhookEventFilter
}

func (ListWebhookEventsMessage) Type() string { return TypeListWebhookEvents }

func (m ListWebhookEventsMessage) Validate() error {
	if m.Filter.Page < 0 {
		return queryValidationError("page", "page must be >= 0")
	}
	if m.Filter.PerPage < 0 {
		return queryValidationError("per_page", "per_page must be >= 0")
	}
	return nil
}

type GetRateLimitStateMessage struct {
	Key core.RateLimitKey
}

func (GetRateLimitStateMessage) Type() string { return TypeGetRateLimitState }

func (m GetRateLimitStateMessage) Validate() error {
	if strings.TrimSpace(m.Key.ServiceName) == "" {
		return queryValidationError("service_name", "service name is required")
	}
	if strings.TrimSpace(m.Key.Operation) == "" {
		return queryValidationError("operation", "operation is required")
	}
	return nil
}

// ListThrottledMessage asks for keys still locally blocked at At. A zero At
// means the time the query runs.
type ListThrottledMessage struct {
	At time.Time
}

func (ListThrottledMessage) Type() string { return TypeListThrottled }

func (ListThrottledMessage) Validate() error { return nil }

package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type webhookEventRecord struct {
	bun.BaseModel `bun:"table:tripline_webhook_events,alias:twe"`

	ID         string    `bun:"id,pk"`
	ClaimKey   string    `bun:"claim_key,notnull"`
	EventID    string    `bun:"event_id"`
	Event      string    `bun:"event"`
	APIVersion string    `bun:"api_version"`
	RiskLevel  string    `bun:"risk_level"`
	Payload    []byte    `bun:"payload"`
	ReceivedAt time.Time `bun:"received_at,nullzero,notnull,default:current_timestamp"`
	ExpiresAt  time.Time `bun:"expires_at,notnull"`
	UpdatedAt  time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// rateLimitStateRecord keeps one row per ratelimit.StateKey. Every State
// field has its own column; metadata carries only caller-supplied values.
type rateLimitStateRecord struct {
	bun.BaseModel `bun:"table:tripline_rate_limit_state,alias:trl"`

	StateKey       string         `bun:"state_key,pk"`
	ServiceName    string         `bun:"service_name,notnull"`
	Operation      string         `bun:"operation,notnull"`
	BucketKey      string         `bun:"bucket_key,notnull"`
	Limit          int            `bun:"limit_count,notnull"`
	Remaining      *int           `bun:"remaining"`
	ResetAt        *time.Time     `bun:"reset_at"`
	RetryAfterMS   *int64         `bun:"retry_after_ms"`
	ThrottledUntil *time.Time     `bun:"throttled_until"`
	LastStatus     int            `bun:"last_status,notnull"`
	Attempts       int            `bun:"attempts,notnull"`
	Metadata       map[string]any `bun:"metadata,type:jsonb,notnull"`
	UpdatedAt      time.Time      `bun:"updated_at,notnull"`
}

package redisstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-tripline/core"
	"github.com/goliatone/go-tripline/webhooks"
	"github.com/redis/go-redis/v9"
)

const defaultLedgerPrefix = "tripline:ledger:"

// ReplayLedger claims keys with SET NX PX, so the first consumer to see an
// event id wins across every process sharing the Redis instance.
type ReplayLedger struct {
	client redis.Cmdable
	prefix string
}

func NewReplayLedger(client redis.Cmdable) *ReplayLedger {
	return &ReplayLedger{client: client, prefix: defaultLedgerPrefix}
}

// WithPrefix returns a copy of the ledger that namespaces keys under prefix.
func (l *ReplayLedger) WithPrefix(prefix string) *ReplayLedger {
	if l == nil {
		return nil
	}
	copied := *l
	copied.prefix = prefix
	return &copied
}

func (l *ReplayLedger) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if l == nil || l.client == nil {
		return false, fmt.Errorf("redisstore: replay ledger is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return false, fmt.Errorf("redisstore: claim key is required")
	}
	if ttl <= 0 {
		ttl = webhooks.DefaultReplayTTL
	}
	claimed, err := l.client.SetNX(ctx, l.prefix+key, time.Now().UTC().Format(time.RFC3339Nano), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redisstore: claim %q: %w", key, err)
	}
	return claimed, nil
}

func (l *ReplayLedger) Release(ctx context.Context, key string) error {
	if l == nil || l.client == nil {
		return fmt.Errorf("redisstore: replay ledger is not configured")
	}
	if err := l.client.Del(ctx, l.prefix+strings.TrimSpace(key)).Err(); err != nil {
		return fmt.Errorf("redisstore: release %q: %w", key, err)
	}
	return nil
}

var (
	_ core.ReplayLedger       = (*ReplayLedger)(nil)
	_ webhooks.ReplayReleaser = (*ReplayLedger)(nil)
)

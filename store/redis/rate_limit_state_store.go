package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-tripline/core"
	"github.com/goliatone/go-tripline/ratelimit"
	"github.com/redis/go-redis/v9"
)

const (
	defaultStatePrefix = "tripline:ratelimit:"
	DefaultStateTTL    = time.Hour
)

// RateLimitStateStore keeps one JSON document per rate-limit key. Documents
// outlive the latest throttle or reset deadline by StateTTL.
type RateLimitStateStore struct {
	client   redis.Cmdable
	prefix   string
	StateTTL time.Duration
	Now      func() time.Time
}

func NewRateLimitStateStore(client redis.Cmdable) *RateLimitStateStore {
	return &RateLimitStateStore{
		client:   client,
		prefix:   defaultStatePrefix,
		StateTTL: DefaultStateTTL,
		Now:      time.Now,
	}
}

func (s *RateLimitStateStore) Get(ctx context.Context, key core.RateLimitKey) (ratelimit.State, error) {
	if s == nil || s.client == nil {
		return ratelimit.State{}, fmt.Errorf("redisstore: rate-limit state store is not configured")
	}
	raw, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ratelimit.State{}, ratelimit.ErrStateNotFound
		}
		return ratelimit.State{}, fmt.Errorf("redisstore: get rate-limit state: %w", err)
	}
	var state ratelimit.State
	if err := json.Unmarshal(raw, &state); err != nil {
		return ratelimit.State{}, fmt.Errorf("redisstore: decode rate-limit state: %w", err)
	}
	return state, nil
}

func (s *RateLimitStateStore) Upsert(ctx context.Context, state ratelimit.State) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("redisstore: rate-limit state store is not configured")
	}
	state.Key = ratelimit.NormalizeKey(state.Key)
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = s.now().UTC()
	}
	encoded, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("redisstore: encode rate-limit state: %w", err)
	}
	if err := s.client.Set(ctx, s.key(state.Key), encoded, s.expiry(state)).Err(); err != nil {
		return fmt.Errorf("redisstore: set rate-limit state: %w", err)
	}
	return nil
}

func (s *RateLimitStateStore) key(key core.RateLimitKey) string {
	return s.prefix + ratelimit.StateKey(key)
}

func (s *RateLimitStateStore) expiry(state ratelimit.State) time.Duration {
	ttl := s.StateTTL
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	now := s.now()
	deadline := now
	if state.ThrottledUntil != nil && state.ThrottledUntil.After(deadline) {
		deadline = *state.ThrottledUntil
	}
	if state.ResetAt != nil && state.ResetAt.After(deadline) {
		deadline = *state.ResetAt
	}
	return deadline.Sub(now) + ttl
}

func (s *RateLimitStateStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

var _ ratelimit.StateStore = (*RateLimitStateStore)(nil)

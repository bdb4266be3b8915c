package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-tripline/core"
	"github.com/goliatone/go-tripline/ratelimit"
	"github.com/uptrace/bun"
)

// RateLimitStateStore persists adaptive throttling state in
// tripline_rate_limit_state, one row per normalized key.
type RateLimitStateStore struct {
	db *bun.DB
}

func NewRateLimitStateStore(db *bun.DB) (*RateLimitStateStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &RateLimitStateStore{db: db}, nil
}

func (s *RateLimitStateStore) Get(ctx context.Context, key core.RateLimitKey) (ratelimit.State, error) {
	if s == nil || s.db == nil {
		return ratelimit.State{}, fmt.Errorf("sqlstore: rate-limit state store is not configured")
	}
	stateKey, err := rateLimitStateKey(key)
	if err != nil {
		return ratelimit.State{}, err
	}

	record := &rateLimitStateRecord{}
	err = s.db.NewSelect().
		Model(record).
		Where("?TableAlias.state_key = ?", stateKey).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return ratelimit.State{}, ratelimit.ErrStateNotFound
	}
	if err != nil {
		return ratelimit.State{}, err
	}
	return record.toDomain(), nil
}

// Upsert writes the whole state in one statement. A concurrent writer for
// the same key wins or loses as a unit; columns are never merged.
func (s *RateLimitStateStore) Upsert(ctx context.Context, state ratelimit.State) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: rate-limit state store is not configured")
	}
	stateKey, err := rateLimitStateKey(state.Key)
	if err != nil {
		return err
	}
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now()
	}

	record := newRateLimitStateRecord(stateKey, state)
	_, err = s.db.NewInsert().
		Model(record).
		On("CONFLICT (state_key) DO UPDATE").
		Set("limit_count = EXCLUDED.limit_count").
		Set("remaining = EXCLUDED.remaining").
		Set("reset_at = EXCLUDED.reset_at").
		Set("retry_after_ms = EXCLUDED.retry_after_ms").
		Set("throttled_until = EXCLUDED.throttled_until").
		Set("last_status = EXCLUDED.last_status").
		Set("attempts = EXCLUDED.attempts").
		Set("metadata = EXCLUDED.metadata").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

// Throttled lists the keys still locally blocked at now, soonest release
// first.
func (s *RateLimitStateStore) Throttled(ctx context.Context, now time.Time) ([]ratelimit.State, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: rate-limit state store is not configured")
	}
	var records []rateLimitStateRecord
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.throttled_until > ?", now.UTC()).
		OrderExpr("?TableAlias.throttled_until ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	states := make([]ratelimit.State, 0, len(records))
	for i := range records {
		states = append(states, records[i].toDomain())
	}
	return states, nil
}

func rateLimitStateKey(key core.RateLimitKey) (string, error) {
	if ratelimit.NormalizeKey(key) == (core.RateLimitKey{}) {
		return "", fmt.Errorf("sqlstore: rate-limit key is empty")
	}
	return ratelimit.StateKey(key), nil
}

func newRateLimitStateRecord(stateKey string, state ratelimit.State) *rateLimitStateRecord {
	key := ratelimit.NormalizeKey(state.Key)
	record := &rateLimitStateRecord{
		StateKey:       stateKey,
		ServiceName:    key.ServiceName,
		Operation:      key.Operation,
		BucketKey:      key.BucketKey,
		Limit:          state.Limit,
		Remaining:      cloneIntPointer(state.Remaining),
		ResetAt:        cloneTimePointer(state.ResetAt),
		ThrottledUntil: cloneTimePointer(state.ThrottledUntil),
		LastStatus:     state.LastStatus,
		Attempts:       state.Attempts,
		Metadata:       copyAnyMap(state.Metadata),
		UpdatedAt:      state.UpdatedAt.UTC(),
	}
	if state.RetryAfter != nil {
		ms := state.RetryAfter.Milliseconds()
		record.RetryAfterMS = &ms
	}
	return record
}

func (r *rateLimitStateRecord) toDomain() ratelimit.State {
	state := ratelimit.State{
		Key: core.RateLimitKey{
			ServiceName: r.ServiceName,
			Operation:   r.Operation,
			BucketKey:   r.BucketKey,
		},
		Limit:          r.Limit,
		Remaining:      cloneIntPointer(r.Remaining),
		ResetAt:        cloneTimePointer(r.ResetAt),
		ThrottledUntil: cloneTimePointer(r.ThrottledUntil),
		LastStatus:     r.LastStatus,
		Attempts:       r.Attempts,
		UpdatedAt:      r.UpdatedAt.UTC(),
		Metadata:       copyAnyMap(r.Metadata),
	}
	if r.RetryAfterMS != nil {
		retryAfter := time.Duration(*r.RetryAfterMS) * time.Millisecond
		state.RetryAfter = &retryAfter
	}
	return state
}

func copyAnyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func cloneIntPointer(input *int) *int {
	if input == nil {
		return nil
	}
	value := *input
	return &value
}

func cloneTimePointer(input *time.Time) *time.Time {
	if input == nil {
		return nil
	}
	value := input.UTC()
	return &value
}

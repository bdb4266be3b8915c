package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-tripline/core"
)

// AdaptivePolicy remembers server throttling signals and rejects calls
// locally until the advertised window has passed. It never waits or retries;
// callers decide what to do with the rate-limit error.
type AdaptivePolicy struct {
	Store          StateStore
	Now            func() time.Time
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func NewAdaptivePolicy(store StateStore) *AdaptivePolicy {
	if store == nil {
		store = NewMemoryStateStore()
	}
	return &AdaptivePolicy{
		Store:          store,
		Now:            func() time.Time { return time.Now().UTC() },
		InitialBackoff: time.Second,
		MaxBackoff:     time.Minute,
	}
}

func (p *AdaptivePolicy) BeforeCall(ctx context.Context, key core.RateLimitKey) error {
	if p == nil || p.Store == nil {
		return nil
	}
	key = NormalizeKey(key)
	state, err := p.Store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrStateNotFound) {
			return nil
		}
		return err
	}

	now := p.now()
	if until := state.ThrottledUntil; until != nil && now.Before(*until) {
		return throttledError(key, until.Sub(now))
	}
	if state.Remaining != nil && *state.Remaining == 0 && state.ResetAt != nil && now.Before(*state.ResetAt) {
		return throttledError(key, state.ResetAt.Sub(now))
	}
	return nil
}

func (p *AdaptivePolicy) AfterCall(ctx context.Context, key core.RateLimitKey, res core.ResponseMeta) error {
	if p == nil || p.Store == nil {
		return nil
	}
	key = NormalizeKey(key)
	now := p.now()
	state, err := p.Store.Get(ctx, key)
	switch {
	case errors.Is(err, ErrStateNotFound):
		state = State{Key: key}
	case err != nil:
		return err
	}

	state.LastStatus = res.StatusCode
	state.UpdatedAt = now
	state.Metadata = cloneMap(state.Metadata)
	for k, v := range res.Metadata {
		state.Metadata[k] = v
	}

	limit, hasLimit := parseHeaderInt(res.Headers, "x-ratelimit-limit")
	if hasLimit {
		state.Limit = limit
	}
	remaining, hasRemaining := parseHeaderInt(res.Headers, "x-ratelimit-remaining")
	if hasRemaining {
		state.Remaining = &remaining
	}
	if resetAt, ok := parseHeaderResetAt(res.Headers); ok {
		state.ResetAt = &resetAt
	}

	retryAfter, hasRetryAfter := res.RetryAfter, res.RetryAfter != nil && *res.RetryAfter > 0
	if !hasRetryAfter {
		if parsed, ok := ParseRetryAfter(headerValue(res.Headers, "retry-after")); ok {
			retryAfter, hasRetryAfter = &parsed, true
		}
	}
	if hasRetryAfter {
		state.RetryAfter = retryAfter
	} else {
		state.RetryAfter = nil
	}

	if res.StatusCode == 429 || (hasRemaining && remaining == 0 && res.StatusCode < 500) {
		state.Attempts++
		delay := p.nextBackoff(state.Attempts)
		if hasRetryAfter {
			delay = *retryAfter
		}
		until := now.Add(delay)
		state.ThrottledUntil = &until
		return p.Store.Upsert(ctx, state)
	}

	state.Attempts = 0
	state.ThrottledUntil = nil
	return p.Store.Upsert(ctx, state)
}

// ParseRetryAfter reads a Retry-After header given in whole seconds. Other
// forms, including HTTP dates, are reported as absent.
func ParseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	seconds, err := strconv.ParseInt(value, 10, 64)
	if err != nil || seconds < 0 {
		return 0, false
	}
	return time.Duration(seconds) * time.Second, true
}

func throttledError(key core.RateLimitKey, retryAfter time.Duration) error {
	err := core.NewRateLimitError(
		fmt.Sprintf("ratelimit: %s %s throttled locally for %s", key.ServiceName, key.Operation, retryAfter.Round(time.Millisecond)),
		&retryAfter,
	)
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		rich.WithMetadata(map[string]any{
			core.MetaOperation: key.Operation,
			"bucket_key":       key.BucketKey,
			"local":            true,
		})
	}
	return err
}

func (p *AdaptivePolicy) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func (p *AdaptivePolicy) nextBackoff(attempt int) time.Duration {
	initial := p.InitialBackoff
	if initial <= 0 {
		initial = time.Second
	}
	maximum := p.MaxBackoff
	if maximum <= 0 {
		maximum = time.Minute
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maximum {
			return maximum
		}
	}
	return min(delay, maximum)
}

func parseHeaderInt(headers map[string]string, key string) (int, bool) {
	value := headerValue(headers, key)
	if value == "" {
		return 0, false
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

func parseHeaderResetAt(headers map[string]string) (time.Time, bool) {
	unix, err := strconv.ParseInt(headerValue(headers, "x-ratelimit-reset"), 10, 64)
	if err != nil || unix <= 0 {
		return time.Time{}, false
	}
	return time.Unix(unix, 0).UTC(), true
}

func headerValue(headers map[string]string, key string) string {
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), key) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

var _ core.RateLimitPolicy = (*AdaptivePolicy)(nil)

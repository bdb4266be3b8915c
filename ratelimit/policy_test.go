package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-tripline/core"
)

var testKey = core.RateLimitKey{ServiceName: "Tripline", Operation: "evaluate", BucketKey: "default"}

func newFixedPolicy(now *time.Time) (*AdaptivePolicy, *MemoryStateStore) {
	store := NewMemoryStateStore()
	policy := NewAdaptivePolicy(store)
	policy.Now = func() time.Time { return *now }
	return policy, store
}

func TestAdaptivePolicy_BeforeCallAllowsWhenNoState(t *testing.T) {
	policy := NewAdaptivePolicy(nil)
	if err := policy.BeforeCall(context.Background(), testKey); err != nil {
		t.Fatalf("expected no error when no state exists, got %v", err)
	}
}

func TestAdaptivePolicy_AfterCallParsesHeadersAndPersistsState(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	policy, store := newFixedPolicy(&now)

	err := policy.AfterCall(context.Background(), testKey, core.ResponseMeta{
		StatusCode: 200,
		Headers: map[string]string{
			"X-RateLimit-Limit":     "600",
			"X-RateLimit-Remaining": "599",
			"X-RateLimit-Reset":     "1700000045",
		},
		Metadata: map[string]any{"path": "/v1/evaluate"},
	})
	if err != nil {
		t.Fatalf("after call: %v", err)
	}

	state, err := store.Get(context.Background(), testKey)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if state.Limit != 600 || state.Remaining == nil || *state.Remaining != 599 {
		t.Fatalf("unexpected quota state %#v", state)
	}
	if state.ResetAt == nil || !state.ResetAt.Equal(now.Add(45*time.Second)) {
		t.Fatalf("unexpected reset at %+v", state.ResetAt)
	}
	if state.Key.ServiceName != "tripline" {
		t.Fatalf("expected normalized key, got %#v", state.Key)
	}
	if state.Metadata["path"] != "/v1/evaluate" {
		t.Fatalf("expected metadata to be merged")
	}
	if state.ThrottledUntil != nil {
		t.Fatalf("expected no throttle window on success")
	}
}

func TestAdaptivePolicy_RetryAfterOpensLocalWindow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	policy, _ := newFixedPolicy(&now)
	retry := 30 * time.Second

	if err := policy.AfterCall(context.Background(), testKey, core.ResponseMeta{
		StatusCode: 429,
		RetryAfter: &retry,
	}); err != nil {
		t.Fatalf("after call: %v", err)
	}

	err := policy.BeforeCall(context.Background(), testKey)
	if !core.IsKind(err, core.ErrorKindRateLimit) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	remaining, ok := core.RetryAfter(err)
	if !ok || remaining != 30*time.Second {
		t.Fatalf("expected 30s retry hint, got %s %v", remaining, ok)
	}

	now = now.Add(31 * time.Second)
	if err := policy.BeforeCall(context.Background(), testKey); err != nil {
		t.Fatalf("expected window to close, got %v", err)
	}
}

func TestAdaptivePolicy_RetryAfterHeaderFallback(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	policy, store := newFixedPolicy(&now)

	if err := policy.AfterCall(context.Background(), testKey, core.ResponseMeta{
		StatusCode: 429,
		Headers:    map[string]string{"Retry-After": "12"},
	}); err != nil {
		t.Fatalf("after call: %v", err)
	}
	state, _ := store.Get(context.Background(), testKey)
	if state.ThrottledUntil == nil || !state.ThrottledUntil.Equal(now.Add(12*time.Second)) {
		t.Fatalf("expected header retry window, got %+v", state.ThrottledUntil)
	}
}

func TestAdaptivePolicy_BackoffWithoutRetryHint(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	policy, store := newFixedPolicy(&now)
	policy.InitialBackoff = time.Second
	policy.MaxBackoff = 3 * time.Second

	expected := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}
	for i, want := range expected {
		if err := policy.AfterCall(context.Background(), testKey, core.ResponseMeta{StatusCode: 429}); err != nil {
			t.Fatalf("after call %d: %v", i, err)
		}
		state, _ := store.Get(context.Background(), testKey)
		if got := state.ThrottledUntil.Sub(now); got != want {
			t.Fatalf("attempt %d: expected %s backoff, got %s", i+1, want, got)
		}
	}

	if err := policy.AfterCall(context.Background(), testKey, core.ResponseMeta{StatusCode: 200}); err != nil {
		t.Fatalf("after success: %v", err)
	}
	state, _ := store.Get(context.Background(), testKey)
	if state.Attempts != 0 || state.ThrottledUntil != nil {
		t.Fatalf("expected success to reset throttle state, got %#v", state)
	}
}

func TestAdaptivePolicy_ExhaustedQuotaBlocksUntilReset(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	policy, store := newFixedPolicy(&now)
	resetAt := now.Add(20 * time.Second)
	if err := store.Upsert(context.Background(), State{Key: testKey, Remaining: core.IntPtr(0), ResetAt: &resetAt}); err != nil {
		t.Fatalf("seed state: %v", err)
	}
	if err := policy.BeforeCall(context.Background(), testKey); !core.IsKind(err, core.ErrorKindRateLimit) {
		t.Fatalf("expected local throttle, got %v", err)
	}
}

func TestAdaptivePolicy_ResetWithoutRemainingDoesNotBlock(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	policy, store := newFixedPolicy(&now)

	err := policy.AfterCall(context.Background(), testKey, core.ResponseMeta{
		StatusCode: 200,
		Headers: map[string]string{
			"X-RateLimit-Limit": "600",
			"X-RateLimit-Reset": "1700000045",
		},
	})
	if err != nil {
		t.Fatalf("after call: %v", err)
	}

	state, err := store.Get(context.Background(), testKey)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if state.Remaining != nil {
		t.Fatalf("expected remaining to stay unknown, got %d", *state.Remaining)
	}
	if state.ResetAt == nil {
		t.Fatalf("expected reset header to be recorded")
	}
	if err := policy.BeforeCall(context.Background(), testKey); err != nil {
		t.Fatalf("expected call to be allowed without a remaining header, got %v", err)
	}

	err = policy.AfterCall(context.Background(), testKey, core.ResponseMeta{
		StatusCode: 200,
		Headers:    map[string]string{"X-RateLimit-Remaining": "0"},
	})
	if err != nil {
		t.Fatalf("after call with exhausted quota: %v", err)
	}
	if err := policy.BeforeCall(context.Background(), testKey); !core.IsKind(err, core.ErrorKindRateLimit) {
		t.Fatalf("expected a reported zero remaining to block, got %v", err)
	}
}

func TestParseRetryAfter(t *testing.T) {
	cases := map[string]struct {
		want time.Duration
		ok   bool
	}{
		"30":                            {30 * time.Second, true},
		" 5 ":                           {5 * time.Second, true},
		"0":                             {0, true},
		"":                              {0, false},
		"-1":                            {0, false},
		"1.5":                           {0, false},
		"Wed, 21 Oct 2015 07:28:00 GMT": {0, false},
	}
	for input, tc := range cases {
		got, ok := ParseRetryAfter(input)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParseRetryAfter(%q) = %s %v, want %s %v", input, got, ok, tc.want, tc.ok)
		}
	}
}

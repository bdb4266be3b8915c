package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-tripline/core"
)

var ErrStateNotFound = errors.New("ratelimit: state not found")

// State is the last throttling signal seen for a key. Remaining is nil until
// a response has carried a remaining-calls header.
type State struct {
	Key            core.RateLimitKey `json:"key"`
	Limit          int               `json:"limit"`
	Remaining      *int              `json:"remaining,omitempty"`
	ResetAt        *time.Time        `json:"reset_at,omitempty"`
	RetryAfter     *time.Duration    `json:"retry_after,omitempty"`
	ThrottledUntil *time.Time        `json:"throttled_until,omitempty"`
	LastStatus     int               `json:"last_status"`
	Attempts       int               `json:"attempts"`
	UpdatedAt      time.Time         `json:"updated_at"`
	Metadata       map[string]any    `json:"metadata,omitempty"`
}

type StateStore interface {
	Get(ctx context.Context, key core.RateLimitKey) (State, error)
	Upsert(ctx context.Context, state State) error
}

// NormalizeKey lowercases and trims every key component so stores agree on
// identity.
func NormalizeKey(key core.RateLimitKey) core.RateLimitKey {
	return core.RateLimitKey{
		ServiceName: strings.TrimSpace(strings.ToLower(key.ServiceName)),
		Operation:   strings.TrimSpace(strings.ToLower(key.Operation)),
		BucketKey:   strings.TrimSpace(strings.ToLower(key.BucketKey)),
	}
}

// StateKey renders a normalized key as a single storage identifier.
func StateKey(key core.RateLimitKey) string {
	key = NormalizeKey(key)
	return key.ServiceName + "|" + key.Operation + "|" + key.BucketKey
}

type MemoryStateStore struct {
	mu    sync.RWMutex
	items map[string]State
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{items: map[string]State{}}
}

func (s *MemoryStateStore) Get(_ context.Context, key core.RateLimitKey) (State, error) {
	if s == nil {
		return State{}, fmt.Errorf("ratelimit: state store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.items[StateKey(key)]
	if !ok {
		return State{}, ErrStateNotFound
	}
	state.Metadata = cloneMap(state.Metadata)
	state.Remaining = cloneInt(state.Remaining)
	return state, nil
}

func (s *MemoryStateStore) Upsert(_ context.Context, state State) error {
	if s == nil {
		return fmt.Errorf("ratelimit: state store is nil")
	}
	state.Key = NormalizeKey(state.Key)
	state.Metadata = cloneMap(state.Metadata)
	state.Remaining = cloneInt(state.Remaining)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[StateKey(state.Key)] = state
	return nil
}

func cloneMap(input map[string]any) map[string]any {
	if len(input) == 0 {
		return map[string]any{}
	}
	output := make(map[string]any, len(input))
	for key, value := range input {
		output[key] = value
	}
	return output
}

func cloneInt(input *int) *int {
	if input == nil {
		return nil
	}
	value := *input
	return &value
}

var _ StateStore = (*MemoryStateStore)(nil)

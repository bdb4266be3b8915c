package webhooks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-tripline/core"
)

const (
	DefaultReplayTTL        = 24 * time.Hour
	defaultLedgerMaxEntries = 8192
	replayKeyPrefix         = "tripline:webhook:"
)

// ReplayReleaser is implemented by ledgers that can give a claim back, so a
// delivery whose handler failed can be retried by the producer.
type ReplayReleaser interface {
	Release(ctx context.Context, key string) error
}

// ReplayKey namespaces an event id for storage in a shared ledger.
func ReplayKey(eventID string) string {
	return replayKeyPrefix + strings.TrimSpace(eventID)
}

// MemoryReplayLedger is a process-local claim set bounded by ttl and by
// entry count. When full, the claim closest to expiry is evicted first.
type MemoryReplayLedger struct {
	mu         sync.Mutex
	defaultTTL time.Duration
	maxEntries int
	entries    map[string]time.Time
	Now        func() time.Time
}

func NewMemoryReplayLedger(defaultTTL time.Duration) *MemoryReplayLedger {
	return NewMemoryReplayLedgerWithLimits(defaultTTL, defaultLedgerMaxEntries)
}

func NewMemoryReplayLedgerWithLimits(defaultTTL time.Duration, maxEntries int) *MemoryReplayLedger {
	if defaultTTL <= 0 {
		defaultTTL = DefaultReplayTTL
	}
	if maxEntries <= 0 {
		maxEntries = defaultLedgerMaxEntries
	}
	return &MemoryReplayLedger{
		defaultTTL: defaultTTL,
		maxEntries: maxEntries,
		entries:    map[string]time.Time{},
		Now:        time.Now,
	}
}

func (l *MemoryReplayLedger) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	if l == nil {
		return false, fmt.Errorf("webhooks: replay ledger is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return false, fmt.Errorf("webhooks: replay key is required")
	}
	if ttl <= 0 {
		ttl = l.defaultTTL
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if expiresAt, ok := l.entries[key]; ok && now.Before(expiresAt) {
		return false, nil
	}
	l.pruneLocked(now)
	for len(l.entries) >= l.maxEntries {
		l.evictSoonestLocked()
	}
	l.entries[key] = now.Add(ttl)
	return true, nil
}

func (l *MemoryReplayLedger) Release(_ context.Context, key string) error {
	if l == nil {
		return fmt.Errorf("webhooks: replay ledger is not configured")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, strings.TrimSpace(key))
	return nil
}

func (l *MemoryReplayLedger) PurgeExpired(_ context.Context) (int, error) {
	if l == nil {
		return 0, fmt.Errorf("webhooks: replay ledger is not configured")
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pruneLocked(now), nil
}

func (l *MemoryReplayLedger) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *MemoryReplayLedger) now() time.Time {
	if l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

func (l *MemoryReplayLedger) pruneLocked(now time.Time) int {
	pruned := 0
	for key, expiresAt := range l.entries {
		if !now.Before(expiresAt) {
			delete(l.entries, key)
			pruned++
		}
	}
	return pruned
}

func (l *MemoryReplayLedger) evictSoonestLocked() {
	var soonestKey string
	var soonest time.Time
	for key, expiresAt := range l.entries {
		if soonestKey == "" || expiresAt.Before(soonest) {
			soonestKey = key
			soonest = expiresAt
		}
	}
	delete(l.entries, soonestKey)
}

var (
	_ core.ReplayLedger = (*MemoryReplayLedger)(nil)
	_ ReplayReleaser    = (*MemoryReplayLedger)(nil)
)

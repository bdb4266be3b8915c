package sqlstore

import (
	"context"
	"fmt"
	"net/url"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-tripline/core"
	"github.com/goliatone/go-tripline/ratelimit"
)

const rateLimitStateCachePrefix = "tripline:ratelimit:"

// CachedRateLimitStateStore fronts a StateStore with a read cache. Upsert
// writes through to the base store and then drops the cached entry, so the
// next Get observes the write.
type CachedRateLimitStateStore struct {
	base  ratelimit.StateStore
	cache repositorycache.CacheService
}

func NewCachedRateLimitStateStore(
	base ratelimit.StateStore,
	cacheService repositorycache.CacheService,
) (*CachedRateLimitStateStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base rate-limit state store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: rate-limit cache service is required")
	}
	return &CachedRateLimitStateStore{base: base, cache: cacheService}, nil
}

// RateLimitStateCacheKey is the cache key for the normalized StateKey of key,
// path escaped since bucket keys are base URLs.
func RateLimitStateCacheKey(key core.RateLimitKey) string {
	return rateLimitStateCachePrefix + url.PathEscape(ratelimit.StateKey(key))
}

func (s *CachedRateLimitStateStore) Get(ctx context.Context, key core.RateLimitKey) (ratelimit.State, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return ratelimit.State{}, fmt.Errorf("sqlstore: cached rate-limit state store is not configured")
	}
	key = ratelimit.NormalizeKey(key)
	state, err := repositorycache.GetOrFetch(ctx, s.cache, RateLimitStateCacheKey(key), func(ctx context.Context) (ratelimit.State, error) {
		return s.base.Get(ctx, key)
	})
	if err != nil {
		return ratelimit.State{}, err
	}
	return cloneRateLimitState(state), nil
}

func (s *CachedRateLimitStateStore) Upsert(ctx context.Context, state ratelimit.State) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached rate-limit state store is not configured")
	}
	state.Key = ratelimit.NormalizeKey(state.Key)
	if err := s.base.Upsert(ctx, cloneRateLimitState(state)); err != nil {
		return err
	}
	return s.cache.Delete(ctx, RateLimitStateCacheKey(state.Key))
}

// cloneRateLimitState detaches every pointer and the metadata map so a
// cached value is never shared with a caller.
func cloneRateLimitState(state ratelimit.State) ratelimit.State {
	cloned := state
	cloned.Metadata = copyAnyMap(state.Metadata)
	cloned.Remaining = cloneIntPointer(state.Remaining)
	cloned.ResetAt = cloneTimePointer(state.ResetAt)
	cloned.ThrottledUntil = cloneTimePointer(state.ThrottledUntil)
	if state.RetryAfter != nil {
		retryAfter := *state.RetryAfter
		cloned.RetryAfter = &retryAfter
	}
	return cloned
}

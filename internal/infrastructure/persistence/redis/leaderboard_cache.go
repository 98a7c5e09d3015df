package redis

import (
	"context"
	"errors"
	"time"

	"github.com/zhuldyz-hub/zhuldyz-hub/internal/application/query"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE
// Хранит уже отранжированный верх рейтинга для каждой области видимости.
// Ключ - "leaderboard:top:{scope}", где scope - "global" или ID учителя.
// Ранги считаются в запросе, кеш хранит готовый результат целиком: список
// короткий (сотни записей максимум), а порядок задан базой, поэтому sorted
// set здесь не нужен.
// ══════════════════════════════════════════════════════════════════════════════

// keyLeaderboardTop is the key prefix for cached leaderboard tops.
const keyLeaderboardTop = PrefixLeaderboard + "top:"

// cachedTop is the stored envelope: entries plus the time they were built.
type cachedTop struct {
	Entries  []query.LeaderboardEntryDTO `json:"entries"`
	CachedAt time.Time                   `json:"cached_at"`
	ScopeKey string                      `json:"scope_key"`
}

// LeaderboardCache implements query.LeaderboardCache over Redis.
type LeaderboardCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewLeaderboardCache creates a new LeaderboardCache instance.
func NewLeaderboardCache(cache *Cache) *LeaderboardCache {
	return &LeaderboardCache{
		cache: cache,
		ttl:   TTLLeaderboardCache,
	}
}

// GetCachedTop returns the cached top of the leaderboard for a scope.
// Returns ErrCacheMiss when the scope is not cached or the cached top is
// shorter than the requested limit.
func (l *LeaderboardCache) GetCachedTop(ctx context.Context, scopeKey string, limit int) ([]query.LeaderboardEntryDTO, error) {
	if scopeKey == "" {
		return nil, ErrCacheKeyEmpty
	}

	var top cachedTop
	if err := l.cache.Get(ctx, keyLeaderboardTop+scopeKey, &top); err != nil {
		return nil, err
	}

	// Неполный топ бесполезен для страницы глубже кеша: лучше честный промах.
	if limit > 0 && len(top.Entries) < limit {
		return nil, ErrCacheMiss
	}

	if limit > 0 && limit < len(top.Entries) {
		return top.Entries[:limit], nil
	}
	return top.Entries, nil
}

// CacheTop stores the ranked top of the leaderboard for a scope.
func (l *LeaderboardCache) CacheTop(ctx context.Context, scopeKey string, entries []query.LeaderboardEntryDTO) error {
	if scopeKey == "" {
		return ErrCacheKeyEmpty
	}

	top := cachedTop{
		Entries:  entries,
		CachedAt: time.Now().UTC(),
		ScopeKey: scopeKey,
	}

	return l.cache.Set(ctx, keyLeaderboardTop+scopeKey, top, l.ttl)
}

// Invalidate drops the cached top for a scope.
func (l *LeaderboardCache) Invalidate(ctx context.Context, scopeKey string) error {
	if scopeKey == "" {
		return ErrCacheKeyEmpty
	}
	return l.cache.Delete(ctx, keyLeaderboardTop+scopeKey)
}

// InvalidateAll drops every cached leaderboard top.
func (l *LeaderboardCache) InvalidateAll(ctx context.Context) error {
	return l.cache.DeleteByPattern(ctx, keyLeaderboardTop+"*")
}

// CachedAt returns when the scope's top was built, or ErrCacheMiss.
func (l *LeaderboardCache) CachedAt(ctx context.Context, scopeKey string) (time.Time, error) {
	if scopeKey == "" {
		return time.Time{}, ErrCacheKeyEmpty
	}

	var top cachedTop
	if err := l.cache.Get(ctx, keyLeaderboardTop+scopeKey, &top); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return time.Time{}, ErrCacheMiss
		}
		return time.Time{}, err
	}

	return top.CachedAt, nil
}

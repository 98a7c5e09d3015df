package redis

import (
	"context"
	"errors"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION STORE
// Токены HTTP-сессий учителей. Токен - случайная строка, значение - ID
// учителя. Redis с TTL даёт автоматическое истечение сессий без фоновой
// чистки.
// ══════════════════════════════════════════════════════════════════════════════

// ErrSessionNotFound is returned when a session token is unknown or expired.
var ErrSessionNotFound = errors.New("session: not found or expired")

// SessionStore keeps authenticated session tokens in Redis.
type SessionStore struct {
	cache *Cache
	ttl   time.Duration
}

// NewSessionStore creates a new SessionStore instance.
func NewSessionStore(cache *Cache) *SessionStore {
	return &SessionStore{
		cache: cache,
		ttl:   TTLSessionData,
	}
}

// Put stores a session token for a teacher account.
func (s *SessionStore) Put(ctx context.Context, token, teacherID string) error {
	if token == "" || teacherID == "" {
		return ErrCacheKeyEmpty
	}
	return s.cache.SetString(ctx, PrefixSession+token, teacherID, s.ttl)
}

// Resolve returns the teacher ID for a session token and slides its TTL.
// Returns ErrSessionNotFound when the token is unknown or expired.
func (s *SessionStore) Resolve(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrSessionNotFound
	}

	teacherID, err := s.cache.GetString(ctx, PrefixSession+token)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return "", ErrSessionNotFound
		}
		return "", err
	}

	// Активная сессия продлевается; бездействие сутки - выход.
	_ = s.cache.Expire(ctx, PrefixSession+token, s.ttl)

	return teacherID, nil
}

// Drop removes a session token (logout).
func (s *SessionStore) Drop(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.cache.Delete(ctx, PrefixSession+token)
}

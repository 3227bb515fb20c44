package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/servicenegotiator/api/internal/model"
	"github.com/servicenegotiator/api/internal/session"
)

// sessionPrefix is the Redis key prefix for session records.
const sessionPrefix = "session:"

// storedSession is the Redis representation of a session.
// The token is the key suffix, not part of the value.
type storedSession struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionStore adapts the Cache to the session.Store interface.
// The Redis key TTL mirrors the session expiry, so abandoned sessions
// vanish without a sweeper.
type SessionStore struct {
	cache *Cache
}

// NewSessionStore creates a Redis-backed session store.
func NewSessionStore(cache *Cache) *SessionStore {
	return &SessionStore{cache: cache}
}

var _ session.Store = (*SessionStore)(nil)

// Save persists a session with a TTL matching its expiry.
func (s *SessionStore) Save(ctx context.Context, sess *model.Session) error {
	data, err := json.Marshal(storedSession{
		UserID:    sess.UserID,
		CreatedAt: sess.CreatedAt,
		ExpiresAt: sess.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	key := sessionPrefix + sess.Token
	if err := s.cache.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}

	return nil
}

// Get returns the session for a token, or session.ErrNotFound.
func (s *SessionStore) Get(ctx context.Context, token string) (*model.Session, error) {
	key := sessionPrefix + token

	data, err := s.cache.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	var stored storedSession
	if err := json.Unmarshal(data, &stored); err != nil {
		// Corrupted entry - treat as missing and drop it.
		_ = s.cache.client.Del(ctx, key).Err()
		return nil, session.ErrNotFound
	}

	return &model.Session{
		Token:     token,
		UserID:    stored.UserID,
		CreatedAt: stored.CreatedAt,
		ExpiresAt: stored.ExpiresAt,
	}, nil
}

// Delete removes a session. Absent keys are a no-op.
func (s *SessionStore) Delete(ctx context.Context, token string) error {
	return s.cache.client.Del(ctx, sessionPrefix+token).Err()
}

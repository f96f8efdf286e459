package token

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/testflow-app/testflow-web/pkg/database"
)

// RedisProvider keeps token pairs server-side in Redis, keyed by an opaque
// session-id cookie. The browser only ever sees the session id; the pair
// itself never leaves the server.
type RedisProvider struct {
	redis    *database.Redis
	settings CookieSettings
}

// NewRedisProvider creates a redis-backed token provider.
func NewRedisProvider(rdb *database.Redis, settings CookieSettings) *RedisProvider {
	return &RedisProvider{redis: rdb, settings: settings}
}

func (p *RedisProvider) ForRequest(w http.ResponseWriter, r *http.Request) Store {
	s := &redisStore{provider: p, w: w}
	if c, err := r.Cookie(SessionCookieName); err == nil {
		s.sessionID = c.Value
	}
	return s
}

type redisStore struct {
	provider *RedisProvider
	w        http.ResponseWriter

	mu        sync.Mutex
	sessionID string
}

func sessionTokensKey(sessionID string) string {
	return fmt.Sprintf("session:tokens:%s", sessionID)
}

func (s *redisStore) Tokens(ctx context.Context) Pair {
	s.mu.Lock()
	sid := s.sessionID
	s.mu.Unlock()

	if sid == "" {
		return Pair{}
	}

	raw, err := s.provider.redis.Client.Get(ctx, sessionTokensKey(sid)).Result()
	if err != nil {
		// Missing key means an anonymous or expired session; anything else
		// is a degraded Redis and reads as unauthenticated.
		return Pair{}
	}

	var pair Pair
	if err := json.Unmarshal([]byte(raw), &pair); err != nil {
		return Pair{}
	}
	return pair
}

func (s *redisStore) Set(ctx context.Context, pair Pair) error {
	s.mu.Lock()
	if s.sessionID == "" {
		s.sessionID = uuid.New().String()
		s.writeSessionCookie(s.sessionID, s.provider.settings.RefreshTTL)
	}
	sid := s.sessionID
	s.mu.Unlock()

	raw, err := json.Marshal(pair)
	if err != nil {
		return fmt.Errorf("failed to encode token pair: %w", err)
	}

	err = s.provider.redis.Client.Set(ctx, sessionTokensKey(sid), raw, s.provider.settings.RefreshTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to store token pair: %w", err)
	}
	return nil
}

func (s *redisStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	sid := s.sessionID
	s.sessionID = ""
	s.writeSessionCookie("", -1)
	s.mu.Unlock()

	if sid == "" {
		return nil
	}

	err := s.provider.redis.Client.Del(ctx, sessionTokensKey(sid)).Err()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("failed to clear token pair: %w", err)
	}
	return nil
}

func (s *redisStore) writeSessionCookie(value string, ttl time.Duration) {
	maxAge := int(ttl.Seconds())
	if ttl < 0 {
		maxAge = -1
	}
	http.SetCookie(s.w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		Domain:   s.provider.settings.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.provider.settings.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

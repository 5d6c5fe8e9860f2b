package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/payflow/payflow/internal/adapters/http/common"
)

// CounterStore counts requests per key within a fixed window. Two
// implementations exist: an in-process map for single-instance deployments
// and Redis for shared counting across instances.
type CounterStore interface {
	// Incr bumps the key's counter and returns the new count plus the time
	// remaining in the current window.
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// MemoryCounterStore is the in-process fixed-window counter.
type MemoryCounterStore struct {
	mu      sync.Mutex
	windows map[string]*countWindow
}

type countWindow struct {
	count   int64
	resetAt time.Time
}

// NewMemoryCounterStore creates an empty store and starts a janitor that
// drops stale windows.
func NewMemoryCounterStore() *MemoryCounterStore {
	s := &MemoryCounterStore{windows: make(map[string]*countWindow)}
	go s.sweep()
	return s
}

// Incr implements CounterStore.
func (s *MemoryCounterStore) Incr(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	w, ok := s.windows[key]
	if !ok || now.After(w.resetAt) {
		w = &countWindow{resetAt: now.Add(window)}
		s.windows[key] = w
	}
	w.count++
	return w.count, time.Until(w.resetAt), nil
}

func (s *MemoryCounterStore) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		now := time.Now()
		s.mu.Lock()
		for key, w := range s.windows {
			if now.After(w.resetAt) {
				delete(s.windows, key)
			}
		}
		s.mu.Unlock()
	}
}

// RedisCounterStore shares counters across server instances.
type RedisCounterStore struct {
	client *redis.Client
	prefix string
}

// NewRedisCounterStore creates the Redis-backed store.
func NewRedisCounterStore(client *redis.Client) *RedisCounterStore {
	return &RedisCounterStore{client: client, prefix: "payflow:ratelimit:"}
}

// Incr implements CounterStore. The expiry is set only when the key is
// created, so the window boundary is shared by every instance.
func (s *RedisCounterStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	full := s.prefix + key
	count, err := s.client.Incr(ctx, full).Result()
	if err != nil {
		return 0, 0, err
	}
	if count == 1 {
		if err := s.client.Expire(ctx, full, window).Err(); err != nil {
			return 0, 0, err
		}
		return count, window, nil
	}
	ttl, err := s.client.TTL(ctx, full).Result()
	if err != nil {
		return 0, 0, err
	}
	return count, ttl, nil
}

// RateLimit bounds requests per API key per fixed window. Unauthenticated
// requests fall back to the client IP. Every response carries the three
// X-RateLimit-* headers; requests over the limit get 429 plus Retry-After.
// A store failure lets the request through rather than failing it.
func RateLimit(store CounterStore, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if apiKey := AuthAPIKey(c); apiKey != nil {
			key = apiKey.ID().String()
		}

		count, remaining, err := store.Incr(c.Request.Context(), key, window)
		if err != nil {
			c.Next()
			return
		}

		left := int64(limit) - count
		if left < 0 {
			left = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(left, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(remaining).Unix(), 10))

		if count > int64(limit) {
			seconds := int(remaining.Seconds())
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(seconds))
			common.RespondError(c, http.StatusTooManyRequests, common.KindRateLimited, nil)
			return
		}
		c.Next()
	}
}

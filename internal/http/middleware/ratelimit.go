package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/careflow/clinic-scheduling/pkg/logging"
)

// Limiter decides whether a request from a client may proceed. Booking
// endpoints sit behind one so a single client cannot drain a day's capacity
// by hammering the API.
type Limiter interface {
	Allow(ctx context.Context, clientID string) bool
}

const rateLimitKeyPrefix = "careflow:ratelimit:"

// RedisLimiter counts requests per client in fixed Redis windows using
// INCR + EXPIRE, so the limit holds across every API instance. Redis
// failures fail open: a cache outage must not take the booking surface down
// with it.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	logger *logging.Logger
}

// NewRedisLimiter allows limit requests per client per window.
func NewRedisLimiter(client *redis.Client, limit int, window time.Duration, logger *logging.Logger) *RedisLimiter {
	if client == nil {
		panic("middleware: redis client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RedisLimiter{client: client, limit: limit, window: window, logger: logger}
}

func (l *RedisLimiter) Allow(ctx context.Context, clientID string) bool {
	key := rateLimitKeyPrefix + clientID
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		l.logger.Warn("rate limit check failed, allowing", "client", clientID, "error", err)
		return true
	}
	// Window starts with the first request.
	if count == 1 {
		l.client.Expire(ctx, key, l.window)
	}
	return count <= int64(l.limit)
}

// LocalLimiter is a per-client token bucket for runs without Redis. The
// limit is per process.
type LocalLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64
	burst   int
}

type bucket struct {
	tokens   float64
	lastTime time.Time
}

// NewLocalLimiter allows rate requests/sec with the given burst size per
// client.
func NewLocalLimiter(rate float64, burst int) *LocalLimiter {
	l := &LocalLimiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		burst:   burst,
	}
	// Evict stale entries to bound memory.
	go l.cleanup()
	return l
}

func (l *LocalLimiter) Allow(_ context.Context, clientID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[clientID]
	if !ok {
		b = &bucket{tokens: float64(l.burst), lastTime: now}
		l.buckets[clientID] = b
	}

	elapsed := now.Sub(b.lastTime).Seconds()
	b.tokens += elapsed * l.rate
	if b.tokens > float64(l.burst) {
		b.tokens = float64(l.burst)
	}
	b.lastTime = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (l *LocalLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		l.mu.Lock()
		cutoff := time.Now().Add(-10 * time.Minute)
		for id, b := range l.buckets {
			if b.lastTime.Before(cutoff) {
				delete(l.buckets, id)
			}
		}
		l.mu.Unlock()
	}
}

// RateLimit rejects requests exceeding the limiter's budget with 429.
func RateLimit(limiter Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := r.RemoteAddr
			// Prefer X-Real-Ip set by chi's RealIP middleware.
			if xri := r.Header.Get("X-Real-Ip"); xri != "" {
				ip = xri
			}
			if !limiter.Allow(r.Context(), ip) {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

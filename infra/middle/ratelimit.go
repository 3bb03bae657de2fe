package middle

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mstgnz/hummpay/infra/logger"
	"github.com/mstgnz/hummpay/infra/response"
	redis "github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed window limiter per client IP. With a Redis client
// the counters are shared between instances; otherwise they live in memory.
type RateLimiter struct {
	visitors map[string]*visitor
	mu       sync.Mutex
	rate     int
	window   time.Duration
	redis    *redis.Client
	prefix   string
}

type visitor struct {
	count     int
	lastReset time.Time
}

// NewRateLimiter allows rate requests per minute. A rate below one defaults to 100.
func NewRateLimiter(rate int, client *redis.Client) *RateLimiter {
	if rate < 1 {
		rate = 100
	}
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   time.Minute,
		redis:    client,
		prefix:   "humm:ratelimit:",
	}
}

// Allow checks if the request is allowed
func (rl *RateLimiter) Allow(ctx context.Context, clientIP string) bool {
	if rl.redis != nil {
		allowed, err := rl.allowRedis(ctx, clientIP)
		if err == nil {
			return allowed
		}
		logger.Warn(fmt.Sprintf("rate limiter falling back to memory: %v", err))
	}
	return rl.allowMemory(clientIP, time.Now())
}

func (rl *RateLimiter) allowRedis(ctx context.Context, clientIP string) (bool, error) {
	key := rl.prefix + clientIP
	count, err := rl.redis.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := rl.redis.Expire(ctx, key, rl.window).Err(); err != nil {
			return false, err
		}
	}
	return count <= int64(rl.rate), nil
}

func (rl *RateLimiter) allowMemory(clientIP string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[clientIP]
	if !exists || now.Sub(v.lastReset) > rl.window {
		rl.visitors[clientIP] = &visitor{count: 1, lastReset: now}
		return true
	}
	if v.count >= rl.rate {
		return false
	}
	v.count++
	return true
}

// Cleanup drops stale in-memory visitors every window until ctx is done.
func (rl *RateLimiter) Cleanup(ctx context.Context) {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			rl.evict(now)
		}
	}
}

func (rl *RateLimiter) evict(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, v := range rl.visitors {
		if now.Sub(v.lastReset) > rl.window*2 {
			delete(rl.visitors, ip)
		}
	}
}

// RateLimitMiddleware creates a rate limiting middleware
func RateLimitMiddleware(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.Allow(r.Context(), GetClientIP(r)) {
				response.Error(w, http.StatusTooManyRequests, "Rate limit exceeded", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetClientIP returns the host part of r.RemoteAddr. Forwarding headers are
// not read here; chi's RealIP middleware rewrites RemoteAddr when the server
// sits behind a trusted proxy.
func GetClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = strings.Trim(r.RemoteAddr, "[]")
	}
	if host == "::1" {
		return "127.0.0.1"
	}
	return host
}

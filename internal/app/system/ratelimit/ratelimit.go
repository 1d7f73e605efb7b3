// internal/app/system/ratelimit/ratelimit.go
package ratelimit

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter counts requests per key in fixed windows stored in Redis, so all
// processes share one count. It is safe for concurrent use.
type Limiter struct {
	client *redis.Client
	prefix string
	limit  int64
	window time.Duration
}

// New creates a limiter allowing limit requests per window for each key.
// prefix namespaces the Redis keys.
func New(client *redis.Client, prefix string, limit int, window time.Duration) *Limiter {
	return &Limiter{
		client: client,
		prefix: "ratelimit:" + prefix + ":",
		limit:  int64(limit),
		window: window,
	}
}

func (l *Limiter) key(k string) string {
	return l.prefix + k
}

// Allow records one request for key and reports whether it is within the limit.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	k := l.key(key)
	n, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("ratelimit incr: %w", err)
	}
	if n == 1 {
		// First hit opens the window.
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return false, fmt.Errorf("ratelimit expire: %w", err)
		}
	}
	return n <= l.limit, nil
}

// Remaining returns how many requests are left for key in the current window.
func (l *Limiter) Remaining(ctx context.Context, key string) (int, error) {
	n, err := l.client.Get(ctx, l.key(key)).Int64()
	if err == redis.Nil {
		return int(l.limit), nil
	}
	if err != nil {
		return 0, fmt.Errorf("ratelimit get: %w", err)
	}
	if n >= l.limit {
		return 0, nil
	}
	return int(l.limit - n), nil
}

// Reset clears the count for key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, l.key(key)).Err()
}

// ClientIP extracts the client IP from an HTTP request.
// It checks X-Forwarded-For and X-Real-IP first (for proxied requests),
// then falls back to RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// LoginLimiter tracks both per-IP and per-email attempts, which covers
// attacks spread over many accounts and attacks aimed at one.
type LoginLimiter struct {
	ip    *Limiter
	email *Limiter
}

// NewLoginLimiter uses 10 attempts per IP per minute and 5 per email per 5 minutes.
func NewLoginLimiter(client *redis.Client) *LoginLimiter {
	return NewLoginLimiterWithConfig(client, 10, time.Minute, 5, 5*time.Minute)
}

func NewLoginLimiterWithConfig(client *redis.Client, ipLimit int, ipWindow time.Duration, emailLimit int, emailWindow time.Duration) *LoginLimiter {
	return &LoginLimiter{
		ip:    New(client, "login-ip", ipLimit, ipWindow),
		email: New(client, "login-email", emailLimit, emailWindow),
	}
}

// Check records a login attempt. It returns false and a user-facing reason
// when the attempt is over a limit.
func (ll *LoginLimiter) Check(ctx context.Context, r *http.Request, email string) (bool, string, error) {
	ok, err := ll.ip.Allow(ctx, ClientIP(r))
	if err != nil {
		return false, "", err
	}
	if !ok {
		return false, "Too many login attempts. Please wait a minute before trying again.", nil
	}

	if key := strings.ToLower(strings.TrimSpace(email)); key != "" {
		ok, err := ll.email.Allow(ctx, key)
		if err != nil {
			return false, "", err
		}
		if !ok {
			return false, "Too many login attempts for this account. Please wait a few minutes.", nil
		}
	}
	return true, "", nil
}

// ResetEmail clears the per-email count after a successful login.
func (ll *LoginLimiter) ResetEmail(ctx context.Context, email string) error {
	if key := strings.ToLower(strings.TrimSpace(email)); key != "" {
		return ll.email.Reset(ctx, key)
	}
	return nil
}

package redis

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RateLimiter shares a sliding-window request budget between processes.
// Disabled Redis means no shared budget: every request is allowed.
// ⭐ SSOT: 프로세스 간 레이트 리밋은 여기서만
type RateLimiter struct {
	client *Client
	prefix string
}

// RateLimitConfig defines rate limit parameters
type RateLimitConfig struct {
	Key    string        // "laads", "earthdata"
	Limit  int           // requests per Window
	Window time.Duration
}

// LAADSRateLimit converts a requests-per-second setting into a window.
// Fractional rates widen the window (0.5/s → 1 per 2s).
func LAADSRateLimit(perSecond float64) RateLimitConfig {
	cfg := RateLimitConfig{Key: "laads", Limit: 1, Window: time.Second}
	switch {
	case perSecond >= 1:
		cfg.Limit = int(math.Floor(perSecond))
	case perSecond > 0:
		cfg.Window = time.Duration(float64(time.Second) / perSecond)
	}
	return cfg
}

// EarthdataRateLimit caps S3 credential requests (keys live an hour and are cached)
var EarthdataRateLimit = RateLimitConfig{
	Key:    "earthdata",
	Limit:  10,
	Window: time.Minute,
}

// slidingWindow returns {allowed, remaining, oldest_ms}.
// Members are unique so concurrent requests in the same millisecond all count.
var slidingWindow = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_ms = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])

	redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window_ms)
	local count = redis.call('ZCARD', key)

	if count < limit then
		redis.call('ZADD', key, now, ARGV[4])
		redis.call('PEXPIRE', key, window_ms)
		return {1, limit - count - 1, 0}
	end

	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	return {0, 0, tonumber(oldest[2])}
`)

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(client *Client, prefix string) *RateLimiter {
	return &RateLimiter{
		client: client,
		prefix: prefix,
	}
}

// Allow checks if a request is allowed under the rate limit
// Returns (allowed, remaining, error)
func (r *RateLimiter) Allow(ctx context.Context, cfg RateLimitConfig) (bool, int, error) {
	allowed, remaining, _, err := r.reserve(ctx, cfg)
	return allowed, remaining, err
}

// reserve also reports how long until the oldest request leaves the window
func (r *RateLimiter) reserve(ctx context.Context, cfg RateLimitConfig) (bool, int, time.Duration, error) {
	if !r.client.Enabled() {
		return true, cfg.Limit, 0, nil
	}

	key := fmt.Sprintf("%s:ratelimit:%s", r.prefix, cfg.Key)
	now := time.Now().UnixMilli()
	windowMs := cfg.Window.Milliseconds()

	result, err := slidingWindow.Run(ctx, r.client.Redis(), []string{key},
		now, windowMs, cfg.Limit, uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return false, 0, 0, fmt.Errorf("rate limit script failed: %w", err)
	}

	if result[0] == 1 {
		return true, int(result[1]), 0, nil
	}
	retry := time.Duration(result[2]+windowMs-now) * time.Millisecond
	return false, 0, retry, nil
}

// Wait blocks until a request is allowed or ctx is cancelled
func (r *RateLimiter) Wait(ctx context.Context, cfg RateLimitConfig) error {
	for {
		allowed, _, retry, err := r.reserve(ctx, cfg)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		timer := time.NewTimer(clampRetry(retry, cfg.Window))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// clampRetry keeps the wait between 10ms and one window
func clampRetry(d, window time.Duration) time.Duration {
	const floor = 10 * time.Millisecond
	if d < floor {
		return floor
	}
	if window > 0 && d > window {
		return window
	}
	return d
}

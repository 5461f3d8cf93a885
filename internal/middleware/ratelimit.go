package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/ticket-rush/internal/config"
)

// NewTokenBucket returns a distributed token-bucket rate limiter.
// Bucket state lives in Redis, refill and take are one atomic Lua
// script, so the limit holds across all server instances.  Buckets
// are keyed per user (falling back to client IP) and route.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	limiterScript := redis.NewScript(`
        local key = KEYS[1]
        local now_ms = tonumber(ARGV[1])
        local capacity = tonumber(ARGV[2])
        local refill_tokens = tonumber(ARGV[3])
        local interval_ms = tonumber(ARGV[4])
        local ttl_seconds = tonumber(ARGV[5])

        local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
        local tokens = tonumber(state[1])
        local last_refill = tonumber(state[2])

        if tokens == nil or last_refill == nil then
            tokens = capacity
            last_refill = now_ms
        end

        if interval_ms > 0 and refill_tokens > 0 then
            local elapsed = math.max(0, now_ms - last_refill)
            local intervals = math.floor(elapsed / interval_ms)
            if intervals > 0 then
                tokens = math.min(capacity, tokens + (intervals * refill_tokens))
                last_refill = last_refill + (intervals * interval_ms)
            end
        end

        local allowed = 0
        local retry_after_ms = 0
        if tokens > 0 then
            allowed = 1
            tokens = tokens - 1
        else
            local until_next = interval_ms - (now_ms - last_refill)
            if until_next < 0 then until_next = 0 end
            retry_after_ms = until_next
        end

        redis.call('HMSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
        redis.call('EXPIRE', key, ttl_seconds)

        return { allowed, tokens, retry_after_ms }
    `)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := fmt.Sprintf("%s:%s:%s", cfg.Prefix, rateIdentity(c), c.Path())

			args := []interface{}{
				time.Now().UnixMilli(),
				cfg.Capacity,
				cfg.RefillTokens,
				cfg.RefillInterval.Milliseconds(),
				int64(cfg.TTL / time.Second),
			}
			vals, err := limiterScript.Run(c.Request().Context(), rdb, []string{key}, args...).Slice()
			if err != nil || len(vals) != 3 {
				// Fail open: a limiter outage must not take the API down.
				return next(c)
			}
			allowed, _ := vals[0].(int64)
			if allowed == 1 {
				return next(c)
			}
			retryMS, _ := vals[2].(int64)
			retryAfter := (retryMS + 999) / 1000
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Response().Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
			return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "rate limit exceeded"})
		}
	}
}

// rateIdentity keys the bucket by authenticated user when available
// and by client IP otherwise.
func rateIdentity(c echo.Context) string {
	if v := c.Get("user_id"); v != nil {
		if id, ok := v.(uint64); ok {
			return fmt.Sprintf("u%d", id)
		}
	}
	return "ip:" + c.RealIP()
}

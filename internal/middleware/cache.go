package middleware

import (
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/ticket-rush/internal/config"
)

// cachedResponse is the stored representation of a cacheable reply.
type cachedResponse struct {
	Status int         `json:"status"`
	Header http.Header `json:"header"`
	Body   []byte      `json:"body"`
}

// CacheKey returns the Redis key for a route's cached response.  Keys
// depend on the route path only, so a mutation handler can compute
// and delete the exact entries its commit staled.
func CacheKey(prefix, route string) string {
	sum := sha1.Sum([]byte(route))
	return fmt.Sprintf("%s:%x", prefix, sum[:])
}

// bodyCapture tees the response body while forwarding to the client.
type bodyCapture struct {
	http.ResponseWriter
	status int
	buf    []byte
	limit  int
}

func (w *bodyCapture) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *bodyCapture) Write(b []byte) (int, error) {
	if len(w.buf)+len(b) <= w.limit {
		w.buf = append(w.buf, b...)
	} else {
		w.buf = nil
		w.limit = 0 // oversized, stop capturing
	}
	return w.ResponseWriter.Write(b)
}

// NewRedisCache caches successful GET responses in Redis.  Headers
// and body are stored together so clients see identical formatting on
// a hit.  Mutating handlers must call Invalidate for the list routes
// they stale; together with the TTL that keeps reads fresh.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Method != http.MethodGet {
				return next(c)
			}
			key := CacheKey(cfg.Prefix, c.Path())
			if raw, err := rdb.Get(c.Request().Context(), key).Bytes(); err == nil {
				var cr cachedResponse
				if json.Unmarshal(raw, &cr) == nil {
					h := c.Response().Header()
					for k, vals := range cr.Header {
						for _, v := range vals {
							h.Add(k, v)
						}
					}
					h.Set("X-Cache", "HIT")
					return c.Blob(cr.Status, h.Get(echo.HeaderContentType), cr.Body)
				}
			}

			cap := &bodyCapture{
				ResponseWriter: c.Response().Writer,
				status:         http.StatusOK,
				limit:          cfg.MaxBodyBytes,
			}
			c.Response().Writer = cap
			if err := next(c); err != nil {
				return err
			}
			if cap.status == http.StatusOK && cap.buf != nil {
				cr := cachedResponse{Status: cap.status, Header: c.Response().Header().Clone(), Body: cap.buf}
				if raw, err := json.Marshal(cr); err == nil {
					rdb.Set(c.Request().Context(), key, raw, ttl)
				}
			}
			return nil
		}
	}
}

// Invalidate deletes the cached responses for the given routes.  It
// is called by mutation handlers after their transaction commits; a
// nil client is a no-op so callers need no Redis guard.
func Invalidate(ctx context.Context, rdb *redis.Client, prefix string, routes ...string) {
	if rdb == nil || len(routes) == 0 {
		return
	}
	keys := make([]string, 0, len(routes))
	for _, r := range routes {
		keys = append(keys, CacheKey(prefix, r))
	}
	rdb.Del(ctx, keys...)
}

package middleware_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/ticket-rush/internal/middleware"
)

func TestCacheKeyIsStablePerRoute(t *testing.T) {
	a := middleware.CacheKey("cache", "/v1/items")
	b := middleware.CacheKey("cache", "/v1/items")
	c := middleware.CacheKey("cache", "/v1/seats")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Contains(t, a, "cache:")
}

func TestInvalidateWithoutRedisIsNoop(t *testing.T) {
	// Mutation handlers call Invalidate unconditionally; a nil client
	// (Redis down or disabled) must not panic.
	middleware.Invalidate(context.Background(), nil, "cache", "/v1/items")
	middleware.Invalidate(context.Background(), nil, "cache")
}

// Package middleware contains reusable HTTP middleware: JWT
// authentication, Redis response caching and distributed rate
// limiting.
package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-rush/internal/utils"
)

// JWTAuth returns an Echo middleware that validates a Bearer access
// token and injects the authenticated identity into the request
// context.  Handlers read it via c.Get("user_id") (uint64) and
// c.Get("username") (string).
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")
			id, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			c.Set("user_id", id.UserID)
			c.Set("username", id.Username)
			return next(c)
		}
	}
}

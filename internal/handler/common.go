// Package handler implements the HTTP and WebSocket boundary of the
// allocation core.  Handlers translate transport requests into
// allocator calls, map structured results onto status codes, and
// trigger the broadcast hub after successful mutations.
package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-rush/internal/service"
)

// getUserID extracts the authenticated user ID injected by the JWT
// middleware.
func getUserID(c echo.Context) (uint64, error) {
	if id, ok := c.Get("user_id").(uint64); ok && id != 0 {
		return id, nil
	}
	return 0, errors.New("invalid user_id in context")
}

// getUsername extracts the authenticated username, or "" when absent.
func getUsername(c echo.Context) string {
	name, _ := c.Get("username").(string)
	return name
}

// statusForResult maps an allocator result onto an HTTP status code.
// Contention outcomes (insufficient stock, seat taken, seat limit)
// are conflicts, not client mistakes.
func statusForResult(r service.Result) int {
	if r.OK {
		return http.StatusOK
	}
	switch r.Code {
	case service.CodeNotFound:
		return http.StatusNotFound
	case service.CodeInvalidQuantity:
		return http.StatusBadRequest
	case service.CodeUnauthorized:
		return http.StatusForbidden
	case service.CodeTxFailure:
		return http.StatusInternalServerError
	default:
		return http.StatusConflict
	}
}

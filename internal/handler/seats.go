package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/ticket-rush/internal/config"
	"github.com/iliyamo/ticket-rush/internal/hub"
	"github.com/iliyamo/ticket-rush/internal/middleware"
	"github.com/iliyamo/ticket-rush/internal/model"
	"github.com/iliyamo/ticket-rush/internal/queue"
	"github.com/iliyamo/ticket-rush/internal/service"
)

// SeatsHandler serves the seat map and the reserve/cancel endpoints.
type SeatsHandler struct {
	Seats    *service.Seats
	Hub      *hub.Hub
	RDB      *redis.Client
	CacheCfg config.CacheConfig
}

func NewSeatsHandler(seats *service.Seats, h *hub.Hub, rdb *redis.Client, cc config.CacheConfig) *SeatsHandler {
	return &SeatsHandler{Seats: seats, Hub: h, RDB: rdb, CacheCfg: cc}
}

type reserveReq struct {
	Strategy string `json:"strategy"`
}

// ListSeats returns the full seat map, free and held alike.
func (h *SeatsHandler) ListSeats(c echo.Context) error {
	seats, err := h.Seats.ListSeats(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"seats": seats})
}

// MySeat returns the caller's held seat, or seat: null.
func (h *SeatsHandler) MySeat(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	seat, err := h.Seats.SeatHeldBy(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"seat": seat})
}

// Reserve handles POST /v1/seats/:id/reserve.
func (h *SeatsHandler) Reserve(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	seatID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid seat id"})
	}

	var req reserveReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	strategy := service.ParseStrategy(req.Strategy)

	res := h.Seats.Reserve(c.Request().Context(), userID, seatID, strategy)
	if res.OK {
		h.afterSeatChange(queue.KindSeatReserved, hub.ActionReserved, userID, getUsername(c), seatID, strategy)
	}
	return c.JSON(statusForResult(res), res)
}

// Cancel handles POST /v1/seats/:id/cancel.
func (h *SeatsHandler) Cancel(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	seatID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid seat id"})
	}

	res := h.Seats.Cancel(c.Request().Context(), userID, seatID)
	if res.OK {
		h.afterSeatChange(queue.KindSeatReleased, hub.ActionCancelled, userID, getUsername(c), seatID, service.StrategySafe)
	}
	return c.JSON(statusForResult(res), res)
}

// afterSeatChange invalidates the cached seat list, publishes the
// audit event and broadcasts a fresh seat snapshot.  The snapshot is
// also used to backfill the seat label on the event.
func (h *SeatsHandler) afterSeatChange(kind, action string, userID uint64, username string, seatID uint64, strategy service.Strategy) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	middleware.Invalidate(ctx, h.RDB, h.CacheCfg.Prefix, "/v1/seats")

	seats, err := h.Seats.ListSeats(ctx)
	if err != nil {
		seats = nil
	}

	ev := queue.AllocationEvent{
		Kind:     kind,
		UserID:   userID,
		Username: username,
		SeatID:   seatID,
		Strategy: string(strategy),
		At:       time.Now().UTC().Format(time.RFC3339),
	}
	ev.SeatLabel = seatLabel(seats, seatID)
	go func(ev queue.AllocationEvent) {
		pubCtx, pubCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer pubCancel()
		_ = queue.PublishAllocation(pubCtx, ev)
	}(ev)

	if seats == nil {
		return
	}
	h.Hub.Broadcast(ctx, hub.Event{
		Type:     hub.TypeSeatUpdate,
		Action:   action,
		SeatID:   seatID,
		Username: username,
		Seats:    seats,
	})
}

func seatLabel(seats []model.SeatView, seatID uint64) string {
	for i := range seats {
		if seats[i].ID == seatID {
			return seats[i].Label
		}
	}
	return ""
}

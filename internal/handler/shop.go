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
	"github.com/iliyamo/ticket-rush/internal/queue"
	"github.com/iliyamo/ticket-rush/internal/service"
)

// ShopHandler serves the item catalogue and the purchase endpoint.
type ShopHandler struct {
	Shop     *service.Shop
	Hub      *hub.Hub
	RDB      *redis.Client
	CacheCfg config.CacheConfig
}

func NewShopHandler(shop *service.Shop, h *hub.Hub, rdb *redis.Client, cc config.CacheConfig) *ShopHandler {
	return &ShopHandler{Shop: shop, Hub: h, RDB: rdb, CacheCfg: cc}
}

type purchaseReq struct {
	Quantity int64  `json:"quantity"`
	Strategy string `json:"strategy"`
}

// ListItems returns every item with its live stock count.
func (h *ShopHandler) ListItems(c echo.Context) error {
	items, err := h.Shop.ListItems(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// MyPurchases returns the caller's purchase history, newest first.
func (h *ShopHandler) MyPurchases(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	purchases, err := h.Shop.PurchasesByUser(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"purchases": purchases})
}

// Purchase handles POST /v1/items/:id/purchase.  On a committed
// purchase it invalidates the cached item list, publishes an audit
// event and broadcasts a fresh stock snapshot to all observers.
func (h *ShopHandler) Purchase(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	itemID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid item id"})
	}

	var req purchaseReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	strategy := service.ParseStrategy(req.Strategy)

	res := h.Shop.Purchase(c.Request().Context(), userID, itemID, req.Quantity, strategy)
	if res.OK {
		h.afterPurchase(userID, getUsername(c), itemID, req.Quantity, strategy, res.RemainingStock)
	}
	return c.JSON(statusForResult(res), res)
}

// afterPurchase runs the post-commit side effects.  None of them can
// fail the purchase that already committed; the broadcast snapshot is
// re-read from the store so observers see the final state, not the
// handler's view of it.
func (h *ShopHandler) afterPurchase(userID uint64, username string, itemID uint64, qty int64, strategy service.Strategy, remaining *int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	middleware.Invalidate(ctx, h.RDB, h.CacheCfg.Prefix, "/v1/items")

	ev := queue.AllocationEvent{
		Kind:      queue.KindPurchase,
		UserID:    userID,
		Username:  username,
		ItemID:    itemID,
		Quantity:  qty,
		Remaining: remaining,
		Strategy:  string(strategy),
		At:        time.Now().UTC().Format(time.RFC3339),
	}
	if item, err := h.Shop.ItemByID(ctx, itemID); err == nil {
		ev.ItemName = item.Name
	}
	go func(ev queue.AllocationEvent) {
		pubCtx, pubCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer pubCancel()
		_ = queue.PublishAllocation(pubCtx, ev)
	}(ev)

	items, err := h.Shop.ListItems(ctx)
	if err != nil {
		return
	}
	h.Hub.Broadcast(ctx, hub.Event{
		Type:     hub.TypeStockUpdate,
		Action:   hub.ActionPurchased,
		ItemID:   itemID,
		Username: username,
		Items:    items,
	})
}

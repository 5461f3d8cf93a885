package handler

import (
	"context"
	"log"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-rush/internal/hub"
	"github.com/iliyamo/ticket-rush/internal/queue"
	"github.com/iliyamo/ticket-rush/internal/service"
	"github.com/iliyamo/ticket-rush/internal/utils"
)

// WSHandler upgrades GET /v1/ws/seats to a WebSocket channel.  Every
// connection is a hub subscriber: it receives the full seat and item
// snapshots on connect and after every committed allocation, and may
// itself issue reserve/cancel commands over the socket.
type WSHandler struct {
	Secret string
	Shop   *service.Shop
	Seats  *SeatsHandler
	Hub    *hub.Hub
}

func NewWSHandler(secret string, shop *service.Shop, seats *SeatsHandler, h *hub.Hub) *WSHandler {
	return &WSHandler{Secret: secret, Shop: shop, Seats: seats, Hub: h}
}

// clientMessage is a command sent by the browser over the socket.
// UseSafe is a pointer so an omitted field defaults to the safe path.
type clientMessage struct {
	Action  string `json:"action"`
	SeatID  uint64 `json:"seat_id,omitempty"`
	UseSafe *bool  `json:"use_safe,omitempty"`
}

// wsSender adapts one connection to the hub's Sender interface.
type wsSender struct {
	conn *websocket.Conn
}

func (s *wsSender) Send(ctx context.Context, ev hub.Event) error {
	return wsjson.Write(ctx, s.conn, ev)
}

// Serve authenticates via the token query parameter (browsers cannot
// set headers on a WebSocket dial), upgrades the connection and runs
// the read loop until the client goes away.
func (h *WSHandler) Serve(c echo.Context) error {
	ident, err := utils.ParseAccessToken(h.Secret, c.QueryParam("token"))
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
	}

	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		InsecureSkipVerify: true, // same-origin is not enforced; auth is the token
	})
	if err != nil {
		log.Printf("ws: accept failed for user=%d: %v", ident.UserID, err)
		return nil
	}
	defer conn.Close(websocket.StatusInternalError, "closed")

	sender := &wsSender{conn: conn}
	h.Hub.Subscribe(sender)
	defer h.Hub.Unsubscribe(sender)

	ctx := c.Request().Context()
	h.sendSnapshots(ctx, sender)

	for {
		var msg clientMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			// Normal close, timeout or protocol error alike end the session.
			conn.Close(websocket.StatusNormalClosure, "bye")
			return nil
		}
		h.handleCommand(ctx, sender, ident, msg)
	}
}

// sendSnapshots pushes the current seat map and item list to one
// subscriber.  Used on connect and for explicit refresh commands.
func (h *WSHandler) sendSnapshots(ctx context.Context, sender *wsSender) {
	if seats, err := h.Seats.Seats.ListSeats(ctx); err == nil {
		_ = sender.Send(ctx, hub.Event{Type: hub.TypeAllSeats, Seats: seats})
	}
	if items, err := h.Shop.ListItems(ctx); err == nil {
		_ = sender.Send(ctx, hub.Event{Type: hub.TypeAllItems, Items: items})
	}
}

// handleCommand executes one client command.  Failures are reported
// only to the issuing connection; successes reach everyone through the
// regular post-commit broadcast.
func (h *WSHandler) handleCommand(ctx context.Context, sender *wsSender, ident utils.Identity, msg clientMessage) {
	strategy := service.StrategySafe
	if msg.UseSafe != nil && !*msg.UseSafe {
		strategy = service.StrategyUnsafe
	}

	switch msg.Action {
	case "reserve":
		res := h.Seats.Seats.Reserve(ctx, ident.UserID, msg.SeatID, strategy)
		if res.OK {
			h.Seats.afterSeatChange(queue.KindSeatReserved, hub.ActionReserved, ident.UserID, ident.Username, msg.SeatID, strategy)
			return
		}
		_ = sender.Send(ctx, hub.Event{Type: hub.TypeError, SeatID: msg.SeatID, Message: res.Message})
	case "cancel":
		res := h.Seats.Seats.Cancel(ctx, ident.UserID, msg.SeatID)
		if res.OK {
			h.Seats.afterSeatChange(queue.KindSeatReleased, hub.ActionCancelled, ident.UserID, ident.Username, msg.SeatID, strategy)
			return
		}
		_ = sender.Send(ctx, hub.Event{Type: hub.TypeError, SeatID: msg.SeatID, Message: res.Message})
	case "refresh", "get_all":
		h.sendSnapshots(ctx, sender)
	default:
		_ = sender.Send(ctx, hub.Event{Type: hub.TypeError, Message: "unknown action"})
	}
}

package repository

import (
	"context"
	"time"

	"github.com/iliyamo/ticket-rush/internal/model"
)

// ShopStore is the storage surface the purchase allocator depends on.
// It is implemented by ItemRepo against MySQL and by the in-memory
// store used in concurrency tests.  Begin opens a transaction scoped
// to a single purchase attempt; the caller must commit or roll back.
type ShopStore interface {
	Items(ctx context.Context) ([]model.Item, error)
	ItemByID(ctx context.Context, id uint64) (model.Item, error)
	PurchasesByUser(ctx context.Context, userID uint64) ([]model.PurchaseDetail, error)
	BeginShop(ctx context.Context) (ShopTx, error)
}

// ShopTx exposes the row-level primitives a purchase runs inside one
// transaction.  Stock reads without a lock; StockForUpdate acquires an
// exclusive row lock held until Commit or Rollback.  SetStock writes a
// client-computed absolute value (the unsafe path), DecrementStock is
// the store-evaluated relative update (the safe path).
type ShopTx interface {
	Stock(ctx context.Context, itemID uint64) (int64, error)
	StockForUpdate(ctx context.Context, itemID uint64) (int64, error)
	SetStock(ctx context.Context, itemID uint64, stock int64) error
	DecrementStock(ctx context.Context, itemID uint64, qty int64) error
	InsertPurchase(ctx context.Context, userID, itemID uint64, qty int64) error
	Commit() error
	Rollback() error
}

// SeatStore is the storage surface the seat allocator depends on.
type SeatStore interface {
	Seats(ctx context.Context) ([]model.SeatView, error)
	SeatHeldBy(ctx context.Context, userID uint64) (*model.SeatView, error)
	BeginSeats(ctx context.Context) (SeatTx, error)
}

// SeatTx exposes the row-level primitives a reserve or release runs
// inside one transaction.  SeatState reads without a lock;
// SeatStateForUpdate acquires the exclusive row lock.  ReleaseOwned is
// a conditional update ("... WHERE reserved_by = ?") and reports
// whether a row actually changed, which makes release naturally safe
// against double submission.
//
// CountHeldBy is intentionally an unlocked aggregate: the one-seat-
// per-holder rule is best-effort under concurrent reserves of
// different seats.
type SeatTx interface {
	SeatState(ctx context.Context, seatID uint64) (model.SeatState, error)
	SeatStateForUpdate(ctx context.Context, seatID uint64) (model.SeatState, error)
	CountHeldBy(ctx context.Context, userID uint64) (int64, error)
	Reserve(ctx context.Context, seatID, userID uint64, at time.Time) error
	ReleaseOwned(ctx context.Context, seatID, userID uint64) (bool, error)
	Commit() error
	Rollback() error
}

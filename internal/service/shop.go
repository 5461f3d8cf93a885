package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/iliyamo/ticket-rush/internal/model"
	"github.com/iliyamo/ticket-rush/internal/repository"
)

// Shop allocates units of a shared, finite stock counter to buyers.
// The safe path delegates all mutual exclusion to the store's row
// locks; the service itself holds no in-process locks, so any number
// of handler goroutines may call Purchase concurrently.
type Shop struct {
	store    repository.ShopStore
	lockWait time.Duration
}

// NewShop constructs a Shop.  lockWait bounds how long one purchase
// may block waiting on a contended row lock; zero or negative values
// fall back to 5 seconds.
func NewShop(store repository.ShopStore, lockWait time.Duration) *Shop {
	if store == nil {
		panic("nil store passed to NewShop")
	}
	if lockWait <= 0 {
		lockWait = 5 * time.Second
	}
	return &Shop{store: store, lockWait: lockWait}
}

// ListItems returns all items as currently stored.
func (s *Shop) ListItems(ctx context.Context) ([]model.Item, error) {
	return s.store.Items(ctx)
}

// ItemByID returns one item, or repository.ErrNotFound.
func (s *Shop) ItemByID(ctx context.Context, itemID uint64) (model.Item, error) {
	return s.store.ItemByID(ctx, itemID)
}

// PurchasesByUser returns the caller's purchase history.
func (s *Shop) PurchasesByUser(ctx context.Context, userID uint64) ([]model.PurchaseDetail, error) {
	return s.store.PurchasesByUser(ctx, userID)
}

// Purchase attempts to buy qty units of an item, dispatching on the
// strategy flag.  Exactly one purchase record is appended per granted
// allocation; on any failure the transaction is rolled back whole.
func (s *Shop) Purchase(ctx context.Context, userID, itemID uint64, qty int64, strategy Strategy) Result {
	if qty < 1 {
		return failure(CodeInvalidQuantity, "quantity must be at least 1")
	}
	ctx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()
	if strategy == StrategyUnsafe {
		return s.purchaseUnsafe(ctx, userID, itemID, qty)
	}
	return s.purchaseSafe(ctx, userID, itemID, qty)
}

// purchaseUnsafe re-creates the classic lost-update bug on purpose:
// the stock is read without a lock, the check happens in application
// code, and the new value is written back as an absolute number.
// Concurrent callers can all observe the same stale stock, all pass
// the check, and all "succeed".  Do not fix this; reproducing the
// race is the point.
func (s *Shop) purchaseUnsafe(ctx context.Context, userID, itemID uint64, qty int64) Result {
	tx, err := s.store.BeginShop(ctx)
	if err != nil {
		return s.txFailure("begin", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	stock, err := tx.Stock(ctx, itemID)
	if errors.Is(err, repository.ErrNotFound) {
		return failure(CodeNotFound, "item not found")
	}
	if err != nil {
		return s.txFailure("read stock", err)
	}
	if stock < qty {
		log.Printf("shop: [UNSAFE] purchase rejected: user=%d item=%d stock=%d qty=%d", userID, itemID, stock, qty)
		return failure(CodeInsufficientStock, fmt.Sprintf("insufficient stock (current: %d)", stock))
	}

	// The window between the read above and the write below is
	// unsynchronized.
	newStock := stock - qty
	if err := tx.SetStock(ctx, itemID, newStock); err != nil {
		return s.txFailure("write stock", err)
	}
	if err := tx.InsertPurchase(ctx, userID, itemID, qty); err != nil {
		return s.txFailure("insert purchase", err)
	}
	if err := tx.Commit(); err != nil {
		return s.txFailure("commit", err)
	}
	committed = true
	log.Printf("shop: [UNSAFE] purchase ok: user=%d item=%d remaining=%d", userID, itemID, newStock)
	res := success("purchase complete")
	res.RemainingStock = &newStock
	return res
}

// purchaseSafe serializes contenders on the item row lock and applies
// the decrement as a store-evaluated relative update.  Across any set
// of concurrent safe purchases of one item, granted quantity never
// exceeds the initial stock and stock never goes negative.
func (s *Shop) purchaseSafe(ctx context.Context, userID, itemID uint64, qty int64) Result {
	tx, err := s.store.BeginShop(ctx)
	if err != nil {
		return s.txFailure("begin", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	stock, err := tx.StockForUpdate(ctx, itemID)
	if errors.Is(err, repository.ErrNotFound) {
		return failure(CodeNotFound, "item not found")
	}
	if err != nil {
		return s.txFailure("lock stock", err)
	}
	if stock < qty {
		log.Printf("shop: [SAFE] purchase rejected: user=%d item=%d stock=%d qty=%d", userID, itemID, stock, qty)
		return failure(CodeInsufficientStock, fmt.Sprintf("insufficient stock (current: %d)", stock))
	}
	if err := tx.DecrementStock(ctx, itemID, qty); err != nil {
		return s.txFailure("decrement stock", err)
	}
	if err := tx.InsertPurchase(ctx, userID, itemID, qty); err != nil {
		return s.txFailure("insert purchase", err)
	}
	if err := tx.Commit(); err != nil {
		return s.txFailure("commit", err)
	}
	committed = true
	remaining := stock - qty
	log.Printf("shop: [SAFE] purchase ok: user=%d item=%d remaining=%d", userID, itemID, remaining)
	res := success("purchase complete")
	res.RemainingStock = &remaining
	return res
}

// txFailure logs the raw store error and returns a generic result, so
// driver details never leak into user-visible messages.
func (s *Shop) txFailure(stage string, err error) Result {
	log.Printf("shop: %s failed: %v", stage, err)
	return failure(CodeTxFailure, "operation failed, please retry")
}

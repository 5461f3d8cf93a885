package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/ticket-rush/internal/model"
)

// ItemRepo provides access to the items and purchases tables.  It
// implements ShopStore.  All statements are parametrized; caller
// input never reaches query text.
type ItemRepo struct {
	db *sql.DB
}

// NewItemRepo returns a new ItemRepo bound to the given database.
func NewItemRepo(db *sql.DB) *ItemRepo { return &ItemRepo{db: db} }

// Items returns all items ordered by ID.
func (r *ItemRepo) Items(ctx context.Context) ([]model.Item, error) {
	const q = `SELECT id, name, stock, price_cents FROM items ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]model.Item, 0)
	for rows.Next() {
		var it model.Item
		if err := rows.Scan(&it.ID, &it.Name, &it.Stock, &it.PriceCents); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// ItemByID returns a single item.  ErrNotFound is returned when the
// ID does not exist.
func (r *ItemRepo) ItemByID(ctx context.Context, id uint64) (model.Item, error) {
	const q = `SELECT id, name, stock, price_cents FROM items WHERE id = ?`
	var it model.Item
	err := r.db.QueryRowContext(ctx, q, id).Scan(&it.ID, &it.Name, &it.Stock, &it.PriceCents)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Item{}, ErrNotFound
	}
	if err != nil {
		return model.Item{}, err
	}
	return it, nil
}

// PurchasesByUser returns the purchase history for a user, newest
// first, with item names and prices resolved.
func (r *ItemRepo) PurchasesByUser(ctx context.Context, userID uint64) ([]model.PurchaseDetail, error) {
	const q = `SELECT p.id, p.item_id, i.name, p.quantity, i.price_cents, p.created_at
	           FROM purchases p
	           JOIN items i ON i.id = p.item_id
	           WHERE p.user_id = ?
	           ORDER BY p.created_at DESC, p.id DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.PurchaseDetail, 0)
	for rows.Next() {
		var d model.PurchaseDetail
		var createdAt time.Time
		if err := rows.Scan(&d.ID, &d.ItemID, &d.ItemName, &d.Quantity, &d.PriceCents, &createdAt); err != nil {
			return nil, err
		}
		d.CreatedAt = createdAt.UTC().Format(time.RFC3339)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// BeginShop opens a transaction for a single purchase attempt.
func (r *ItemRepo) BeginShop(ctx context.Context) (ShopTx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &itemTx{tx: tx}, nil
}

// itemTx implements ShopTx on top of *sql.Tx.
type itemTx struct {
	tx *sql.Tx
}

func (t *itemTx) Stock(ctx context.Context, itemID uint64) (int64, error) {
	return t.stock(ctx, itemID, `SELECT stock FROM items WHERE id = ?`)
}

// StockForUpdate reads the stock under an exclusive row lock.  The
// lock is held until the transaction ends, serializing all safe
// purchases against the same item.
func (t *itemTx) StockForUpdate(ctx context.Context, itemID uint64) (int64, error) {
	return t.stock(ctx, itemID, `SELECT stock FROM items WHERE id = ? FOR UPDATE`)
}

func (t *itemTx) stock(ctx context.Context, itemID uint64, q string) (int64, error) {
	var stock int64
	err := t.tx.QueryRowContext(ctx, q, itemID).Scan(&stock)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return stock, nil
}

// SetStock overwrites the stock with a value computed in application
// code.  Only the unsafe purchase path uses it; the write can clobber
// a concurrent decrement (lost update).
func (t *itemTx) SetStock(ctx context.Context, itemID uint64, stock int64) error {
	_, err := t.tx.ExecContext(ctx, `UPDATE items SET stock = ? WHERE id = ?`, stock, itemID)
	return err
}

// DecrementStock applies the decrement as a single store-evaluated
// statement, so no concurrent writer can interleave between read and
// write.
func (t *itemTx) DecrementStock(ctx context.Context, itemID uint64, qty int64) error {
	_, err := t.tx.ExecContext(ctx, `UPDATE items SET stock = stock - ? WHERE id = ?`, qty, itemID)
	return err
}

func (t *itemTx) InsertPurchase(ctx context.Context, userID, itemID uint64, qty int64) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO purchases (user_id, item_id, quantity) VALUES (?, ?, ?)`,
		userID, itemID, qty)
	return err
}

func (t *itemTx) Commit() error   { return t.tx.Commit() }
func (t *itemTx) Rollback() error { return t.tx.Rollback() }

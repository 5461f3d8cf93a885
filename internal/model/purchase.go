package model

import "time"

// Purchase is an append-only log entry recording one successful
// purchase.  Rows are inserted exactly once per granted allocation and
// never updated or deleted.
type Purchase struct {
	ID        uint64    // purchases.id
	UserID    uint64    // purchases.user_id
	ItemID    uint64    // purchases.item_id
	Quantity  int64     // purchases.quantity
	CreatedAt time.Time // purchases.created_at
}

// PurchaseDetail joins a purchase with its item for display in the
// purchase-history listing.
type PurchaseDetail struct {
	ID         uint64 `json:"id"`
	ItemID     uint64 `json:"item_id"`
	ItemName   string `json:"item_name"`
	Quantity   int64  `json:"quantity"`
	PriceCents uint32 `json:"price_cents"`
	CreatedAt  string `json:"created_at"` // RFC3339, UTC
}

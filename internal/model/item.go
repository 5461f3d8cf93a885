package model

// Item represents a stock-limited product as stored in the `items`
// table.  Stock is the shared counter the allocators compete over; it
// is signed on purpose so that the unsafe purchase path is able to
// drive it negative under contention.
//
// Fields:
//  ID         – primary key identifier.
//  Name       – display name of the product.
//  Stock      – remaining units; may go negative via the unsafe path.
//  PriceCents – unit price in cents.
type Item struct {
	ID         uint64 `json:"id"`          // items.id
	Name       string `json:"name"`        // items.name
	Stock      int64  `json:"stock"`       // items.stock
	PriceCents uint32 `json:"price_cents"` // items.price_cents
}

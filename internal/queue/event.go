// Package queue defines the allocation events exchanged over the
// message broker and the background consumer that turns them into an
// audit log.
package queue

// Event kinds published to the allocation.events queue.
const (
	KindPurchase     = "purchase"
	KindSeatReserved = "seat_reserved"
	KindSeatReleased = "seat_released"
)

// AllocationEvent is published after a state-changing allocation
// commits.  It carries enough information for downstream consumers to
// log or trigger analytics without querying the primary database.
// Publication is best-effort; a broker outage never fails the
// allocation itself.
type AllocationEvent struct {
	Kind      string `json:"kind"`
	UserID    uint64 `json:"user_id"`
	Username  string `json:"username,omitempty"`
	ItemID    uint64 `json:"item_id,omitempty"`
	ItemName  string `json:"item_name,omitempty"`
	Quantity  int64  `json:"quantity,omitempty"`
	Remaining *int64 `json:"remaining_stock,omitempty"`
	SeatID    uint64 `json:"seat_id,omitempty"`
	SeatLabel string `json:"seat_label,omitempty"`
	Strategy  string `json:"strategy,omitempty"`
	At        string `json:"at"` // RFC3339, UTC
}

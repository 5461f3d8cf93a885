package model

import "time"

// Seat statuses.  A seat is either free or held by exactly one user;
// there are no other states and no other transitions.
const (
	SeatFree = "free"
	SeatHeld = "held"
)

// Seat describes one reservable seat as stored in the `seats` table.
// Layout fields (row, column, pixel box) are fixed at seed time and
// never change; only Status, ReservedBy and ReservedAt are mutable,
// and only through the seat allocator.
type Seat struct {
	ID         uint64     // seats.id
	Label      string     // seats.seat_label, unique, e.g. "A-1"
	RowNum     uint32     // seats.row_num
	ColNum     uint32     // seats.col_num
	XPos       uint32     // seats.x_pos
	YPos       uint32     // seats.y_pos
	Width      uint32     // seats.width
	Height     uint32     // seats.height
	Status     string     // seats.status ('free' | 'held')
	ReservedBy *uint64    // seats.reserved_by (nullable)
	ReservedAt *time.Time // seats.reserved_at (nullable)
}

// SeatView is the wire representation of a seat used in list responses
// and hub broadcasts.  Every field has a fixed wire type: timestamps
// are pre-rendered as RFC3339 strings and the holder's username is
// resolved by the store, so serialization never has to inspect values.
type SeatView struct {
	ID         uint64  `json:"id"`
	Label      string  `json:"seat_label"`
	RowNum     uint32  `json:"row_num"`
	ColNum     uint32  `json:"col_num"`
	XPos       uint32  `json:"x_pos"`
	YPos       uint32  `json:"y_pos"`
	Width      uint32  `json:"width"`
	Height     uint32  `json:"height"`
	Status     string  `json:"status"`
	ReservedBy *uint64 `json:"reserved_by,omitempty"`
	HolderName *string `json:"reserved_by_username,omitempty"`
	ReservedAt *string `json:"reserved_at,omitempty"`
}

// SeatState is the minimal slice of a seat row the allocator inspects
// inside a transaction: the status flag and the current holder.
type SeatState struct {
	Status     string
	ReservedBy *uint64
}

// Held reports whether the state describes an occupied seat.
func (s SeatState) Held() bool { return s.Status == SeatHeld }

// View converts a Seat into its wire representation.  The holder's
// username must be supplied by the caller (it lives in the users
// table).
func (s Seat) View(holderName *string) SeatView {
	v := SeatView{
		ID:         s.ID,
		Label:      s.Label,
		RowNum:     s.RowNum,
		ColNum:     s.ColNum,
		XPos:       s.XPos,
		YPos:       s.YPos,
		Width:      s.Width,
		Height:     s.Height,
		Status:     s.Status,
		ReservedBy: s.ReservedBy,
		HolderName: holderName,
	}
	if s.ReservedAt != nil {
		iso := s.ReservedAt.UTC().Format(time.RFC3339)
		v.ReservedAt = &iso
	}
	return v
}

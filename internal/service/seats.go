package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/iliyamo/ticket-rush/internal/model"
	"github.com/iliyamo/ticket-rush/internal/repository"
)

// Seats assigns exclusively-owned seats, at most one per user.  A
// seat cycles free -> held -> free only through Reserve and Cancel;
// every other attempted transition is a self-loop reporting failure
// without mutating state.
type Seats struct {
	store    repository.SeatStore
	lockWait time.Duration
	now      func() time.Time
}

// NewSeats constructs a Seats allocator.  lockWait bounds blocking on
// a contended seat row; zero or negative values fall back to 5s.
func NewSeats(store repository.SeatStore, lockWait time.Duration) *Seats {
	if store == nil {
		panic("nil store passed to NewSeats")
	}
	if lockWait <= 0 {
		lockWait = 5 * time.Second
	}
	return &Seats{store: store, lockWait: lockWait, now: time.Now}
}

// ListSeats returns the full seat map snapshot.
func (s *Seats) ListSeats(ctx context.Context) ([]model.SeatView, error) {
	return s.store.Seats(ctx)
}

// SeatHeldBy returns the caller's current seat, or nil.
func (s *Seats) SeatHeldBy(ctx context.Context, userID uint64) (*model.SeatView, error) {
	return s.store.SeatHeldBy(ctx, userID)
}

// Reserve attempts to assign a seat to the user, dispatching on the
// strategy flag.
func (s *Seats) Reserve(ctx context.Context, userID, seatID uint64, strategy Strategy) Result {
	ctx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()
	if strategy == StrategyUnsafe {
		return s.reserveUnsafe(ctx, userID, seatID)
	}
	return s.reserveSafe(ctx, userID, seatID)
}

// reserveUnsafe checks the seat status and the caller's existing-seat
// count without any lock, then writes.  Two concurrent requests for
// the same free seat can both pass the checks, and a user can race
// past the one-seat check twice.  Both defects are intentional.
func (s *Seats) reserveUnsafe(ctx context.Context, userID, seatID uint64) Result {
	tx, err := s.store.BeginSeats(ctx)
	if err != nil {
		return s.txFailure("begin", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	state, err := tx.SeatState(ctx, seatID)
	if errors.Is(err, repository.ErrNotFound) {
		return failure(CodeNotFound, "seat not found")
	}
	if err != nil {
		return s.txFailure("read seat", err)
	}
	if state.Held() {
		log.Printf("seats: [UNSAFE] reserve rejected: user=%d seat=%d already held", userID, seatID)
		return failure(CodeAlreadyHeld, "seat already held")
	}
	held, err := tx.CountHeldBy(ctx, userID)
	if err != nil {
		return s.txFailure("count seats", err)
	}
	if held > 0 {
		return failure(CodeLimitExceeded, "already holds a seat")
	}

	// Unsynchronized window: another request may reserve this seat,
	// or this user another seat, between the checks and the write.
	if err := tx.Reserve(ctx, seatID, userID, s.now().UTC()); err != nil {
		return s.txFailure("reserve seat", err)
	}
	if err := tx.Commit(); err != nil {
		return s.txFailure("commit", err)
	}
	committed = true
	log.Printf("seats: [UNSAFE] reserve ok: user=%d seat=%d", userID, seatID)
	return success("seat reserved")
}

// reserveSafe locks the target seat row before re-reading it, so
// concurrent contenders for that seat are fully serialized: one wins,
// the rest observe held.  The one-seat-per-user count still reads
// unlocked rows and stays best-effort across different seats.
func (s *Seats) reserveSafe(ctx context.Context, userID, seatID uint64) Result {
	tx, err := s.store.BeginSeats(ctx)
	if err != nil {
		return s.txFailure("begin", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	state, err := tx.SeatStateForUpdate(ctx, seatID)
	if errors.Is(err, repository.ErrNotFound) {
		return failure(CodeNotFound, "seat not found")
	}
	if err != nil {
		return s.txFailure("lock seat", err)
	}
	if state.Held() {
		log.Printf("seats: [SAFE] reserve rejected: user=%d seat=%d already held", userID, seatID)
		return failure(CodeAlreadyHeld, "seat already held")
	}
	held, err := tx.CountHeldBy(ctx, userID)
	if err != nil {
		return s.txFailure("count seats", err)
	}
	if held > 0 {
		return failure(CodeLimitExceeded, "already holds a seat")
	}
	if err := tx.Reserve(ctx, seatID, userID, s.now().UTC()); err != nil {
		return s.txFailure("reserve seat", err)
	}
	if err := tx.Commit(); err != nil {
		return s.txFailure("commit", err)
	}
	committed = true
	log.Printf("seats: [SAFE] reserve ok: user=%d seat=%d", userID, seatID)
	return success("seat reserved")
}

// Cancel releases a seat held by the caller.  The ownership check and
// the write are a single conditional update; a mismatch (including a
// stale double release) reports unauthorized and changes nothing.
func (s *Seats) Cancel(ctx context.Context, userID, seatID uint64) Result {
	ctx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()
	tx, err := s.store.BeginSeats(ctx)
	if err != nil {
		return s.txFailure("begin", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.SeatState(ctx, seatID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return failure(CodeNotFound, "seat not found")
		}
		return s.txFailure("read seat", err)
	}
	released, err := tx.ReleaseOwned(ctx, seatID, userID)
	if err != nil {
		return s.txFailure("release seat", err)
	}
	if !released {
		return failure(CodeUnauthorized, "not the holder of this seat")
	}
	if err := tx.Commit(); err != nil {
		return s.txFailure("commit", err)
	}
	committed = true
	log.Printf("seats: release ok: user=%d seat=%d", userID, seatID)
	return success("reservation cancelled")
}

func (s *Seats) txFailure(stage string, err error) Result {
	log.Printf("seats: %s failed: %v", stage, err)
	return failure(CodeTxFailure, "operation failed, please retry")
}

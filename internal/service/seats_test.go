package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ticket-rush/internal/model"
	"github.com/iliyamo/ticket-rush/internal/service"
	"github.com/iliyamo/ticket-rush/internal/storetest"
)

func newSeatStore(seatIDs ...uint64) *storetest.Store {
	st := storetest.New()
	for i, id := range seatIDs {
		st.AddSeat(model.Seat{
			ID:     id,
			Label:  string(rune('A'+i)) + "-1",
			RowNum: uint32(i + 1),
			ColNum: 1,
			Status: model.SeatFree,
		})
	}
	return st
}

func TestReserveAndCancelRoundTrip(t *testing.T) {
	st := newSeatStore(1)
	seats := service.NewSeats(st, time.Second)
	ctx := context.Background()

	res := seats.Reserve(ctx, 7, 1, service.StrategySafe)
	require.True(t, res.OK, res.Message)

	mine, err := seats.SeatHeldBy(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, mine)
	assert.Equal(t, uint64(1), mine.ID)
	assert.Equal(t, model.SeatHeld, mine.Status)

	res = seats.Cancel(ctx, 7, 1)
	require.True(t, res.OK, res.Message)

	mine, err = seats.SeatHeldBy(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, mine)

	// The freed seat is reservable again, by anyone.
	res = seats.Reserve(ctx, 8, 1, service.StrategySafe)
	assert.True(t, res.OK, res.Message)
}

func TestReserveUnknownSeat(t *testing.T) {
	st := newSeatStore(1)
	seats := service.NewSeats(st, time.Second)

	res := seats.Reserve(context.Background(), 7, 999, service.StrategySafe)
	require.False(t, res.OK)
	assert.Equal(t, service.CodeNotFound, res.Code)

	res = seats.Cancel(context.Background(), 7, 999)
	require.False(t, res.OK)
	assert.Equal(t, service.CodeNotFound, res.Code)
}

func TestReserveHeldSeat(t *testing.T) {
	st := newSeatStore(1)
	seats := service.NewSeats(st, time.Second)
	ctx := context.Background()

	require.True(t, seats.Reserve(ctx, 7, 1, service.StrategySafe).OK)

	res := seats.Reserve(ctx, 8, 1, service.StrategySafe)
	require.False(t, res.OK)
	assert.Equal(t, service.CodeAlreadyHeld, res.Code)
}

func TestReserveSecondSeatRejected(t *testing.T) {
	st := newSeatStore(1, 2)
	seats := service.NewSeats(st, time.Second)
	ctx := context.Background()

	require.True(t, seats.Reserve(ctx, 7, 1, service.StrategySafe).OK)

	res := seats.Reserve(ctx, 7, 2, service.StrategySafe)
	require.False(t, res.OK)
	assert.Equal(t, service.CodeLimitExceeded, res.Code)

	// After cancelling, the user may pick a different seat.
	require.True(t, seats.Cancel(ctx, 7, 1).OK)
	assert.True(t, seats.Reserve(ctx, 7, 2, service.StrategySafe).OK)
}

func TestCancelRequiresOwnership(t *testing.T) {
	st := newSeatStore(1, 2)
	seats := service.NewSeats(st, time.Second)
	ctx := context.Background()

	require.True(t, seats.Reserve(ctx, 7, 1, service.StrategySafe).OK)

	// Someone else's seat.
	res := seats.Cancel(ctx, 8, 1)
	require.False(t, res.OK)
	assert.Equal(t, service.CodeUnauthorized, res.Code)

	// A seat nobody holds.
	res = seats.Cancel(ctx, 8, 2)
	require.False(t, res.OK)
	assert.Equal(t, service.CodeUnauthorized, res.Code)

	// The real holder is untouched by either attempt.
	mine, err := seats.SeatHeldBy(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, mine)
	assert.Equal(t, uint64(1), mine.ID)
}

// Exclusivity under contention: many users race for the same seat on
// the safe path; the row lock serializes them, exactly one wins and
// everyone else observes the seat as held.
func TestReserveSafeExclusive(t *testing.T) {
	const contenders = 8

	st := newSeatStore(1)
	seats := service.NewSeats(st, 10*time.Second)

	results := make([]service.Result, contenders)
	var wg sync.WaitGroup
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = seats.Reserve(context.Background(), uint64(i+1), 1, service.StrategySafe)
		}(i)
	}
	wg.Wait()

	winners, losers := 0, 0
	for _, r := range results {
		switch {
		case r.OK:
			winners++
		case r.Code == service.CodeAlreadyHeld:
			losers++
		default:
			t.Fatalf("unexpected result: %+v", r)
		}
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, contenders-1, losers)
}

// The unsafe path must double-book: both contenders read the seat as
// free before either writes, so both are told they won.  The ReadHook
// barrier pins both inside the check-then-act window.
func TestReserveUnsafeDoubleBooks(t *testing.T) {
	st := newSeatStore(1)
	seats := service.NewSeats(st, 10*time.Second)

	var barrier sync.WaitGroup
	barrier.Add(2)
	st.ReadHook = func() {
		barrier.Done()
		barrier.Wait()
	}

	var results [2]service.Result
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = seats.Reserve(context.Background(), uint64(i+1), 1, service.StrategyUnsafe)
		}(i)
	}
	wg.Wait()

	assert.True(t, results[0].OK, "first contender: %+v", results[0])
	assert.True(t, results[1].OK, "second contender: %+v", results[1])

	// Two grants, one seat: at most one of them actually holds it.
	held := 0
	for _, uid := range []uint64{1, 2} {
		seat, err := seats.SeatHeldBy(context.Background(), uid)
		require.NoError(t, err)
		if seat != nil {
			held++
		}
	}
	assert.Equal(t, 1, held)
}

// Same deadline contract on the seat row lock: an expired wait rolls
// back and surfaces as transaction_failure instead of a late grant.
func TestReserveSafeTimesOutOnHeldLock(t *testing.T) {
	st := newSeatStore(1)
	seats := service.NewSeats(st, 100*time.Millisecond)

	holder, err := st.BeginSeats(context.Background())
	require.NoError(t, err)
	_, err = holder.SeatStateForUpdate(context.Background(), 1)
	require.NoError(t, err)

	res := seats.Reserve(context.Background(), 2, 1, service.StrategySafe)
	require.False(t, res.OK)
	assert.Equal(t, service.CodeTxFailure, res.Code)

	require.NoError(t, holder.Rollback())
	res = seats.Reserve(context.Background(), 2, 1, service.StrategySafe)
	require.True(t, res.OK, res.Message)
}

func TestListSeatsIsIdempotent(t *testing.T) {
	st := newSeatStore(1, 2, 3)
	seats := service.NewSeats(st, time.Second)
	ctx := context.Background()

	require.True(t, seats.Reserve(ctx, 7, 2, service.StrategySafe).OK)

	first, err := seats.ListSeats(ctx)
	require.NoError(t, err)
	second, err := seats.ListSeats(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	require.Len(t, first, 3)
	assert.Equal(t, model.SeatFree, first[0].Status)
	assert.Equal(t, model.SeatHeld, first[1].Status)
	require.NotNil(t, first[1].ReservedBy)
	assert.Equal(t, uint64(7), *first[1].ReservedBy)
}

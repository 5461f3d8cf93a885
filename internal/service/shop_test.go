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

func newShopStore(itemID uint64, stock int64) *storetest.Store {
	st := storetest.New()
	st.AddItem(model.Item{ID: itemID, Name: "Limited Edition T-Shirt", Stock: stock, PriceCents: 5000})
	return st
}

func TestPurchaseSafeSingle(t *testing.T) {
	st := newShopStore(1, 10)
	shop := service.NewShop(st, time.Second)

	res := shop.Purchase(context.Background(), 1, 1, 3, service.StrategySafe)
	require.True(t, res.OK, "purchase should succeed: %s", res.Message)
	require.NotNil(t, res.RemainingStock)
	assert.Equal(t, int64(7), *res.RemainingStock)
	assert.Equal(t, int64(7), st.StockOf(1))
	assert.Equal(t, 1, st.PurchaseCount())
}

func TestPurchaseRejectsBadInput(t *testing.T) {
	st := newShopStore(1, 10)
	shop := service.NewShop(st, time.Second)

	res := shop.Purchase(context.Background(), 1, 1, 0, service.StrategySafe)
	require.False(t, res.OK)
	assert.Equal(t, service.CodeInvalidQuantity, res.Code)

	res = shop.Purchase(context.Background(), 1, 1, -5, service.StrategyUnsafe)
	require.False(t, res.OK)
	assert.Equal(t, service.CodeInvalidQuantity, res.Code)

	res = shop.Purchase(context.Background(), 1, 999, 1, service.StrategySafe)
	require.False(t, res.OK)
	assert.Equal(t, service.CodeNotFound, res.Code)

	// Nothing above may have touched stock or history.
	assert.Equal(t, int64(10), st.StockOf(1))
	assert.Equal(t, 0, st.PurchaseCount())
}

func TestPurchaseSafeInsufficientStock(t *testing.T) {
	st := newShopStore(1, 2)
	shop := service.NewShop(st, time.Second)

	res := shop.Purchase(context.Background(), 1, 1, 3, service.StrategySafe)
	require.False(t, res.OK)
	assert.Equal(t, service.CodeInsufficientStock, res.Code)
	assert.Contains(t, res.Message, "insufficient stock")
	assert.Equal(t, int64(2), st.StockOf(1))
	assert.Equal(t, 0, st.PurchaseCount())
}

// Conservation under contention: with 10 units and 15 concurrent
// single-unit buyers on the safe path, exactly 10 succeed, the rest
// see insufficient stock, and stock lands on zero.
func TestPurchaseSafeConservesStock(t *testing.T) {
	const initialStock = 10
	const buyers = 15

	st := newShopStore(1, initialStock)
	shop := service.NewShop(st, 10*time.Second)

	results := make([]service.Result, buyers)
	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = shop.Purchase(context.Background(), uint64(i+1), 1, 1, service.StrategySafe)
		}(i)
	}
	wg.Wait()

	ok, insufficient := 0, 0
	for _, r := range results {
		switch {
		case r.OK:
			ok++
		case r.Code == service.CodeInsufficientStock:
			insufficient++
		default:
			t.Fatalf("unexpected result: %+v", r)
		}
	}
	assert.Equal(t, initialStock, ok)
	assert.Equal(t, buyers-initialStock, insufficient)
	assert.Equal(t, int64(0), st.StockOf(1))
	assert.Equal(t, initialStock, st.PurchaseCount())
}

// The unsafe path must exhibit the lost update: every contender reads
// the same stale stock before any of them writes, so all of them pass
// the check and "succeed" even though stock cannot cover them.  The
// ReadHook barrier holds all goroutines inside the read-then-write
// window to make the race fire every run.
func TestPurchaseUnsafeOversells(t *testing.T) {
	const initialStock = 3
	const buyers = 5

	st := newShopStore(1, initialStock)
	shop := service.NewShop(st, 10*time.Second)

	var barrier sync.WaitGroup
	barrier.Add(buyers)
	st.ReadHook = func() {
		barrier.Done()
		barrier.Wait()
	}

	results := make([]service.Result, buyers)
	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = shop.Purchase(context.Background(), uint64(i+1), 1, 1, service.StrategyUnsafe)
		}(i)
	}
	wg.Wait()

	for i, r := range results {
		assert.True(t, r.OK, "buyer %d should have been (wrongly) granted: %+v", i, r)
	}
	// 5 grants against 3 units: more purchase records than stock could
	// cover, and the final stock reflects only the last absolute write.
	assert.Equal(t, buyers, st.PurchaseCount())
	assert.Equal(t, int64(initialStock-1), st.StockOf(1))
}

// A contender whose lock-wait bound expires while another transaction
// holds the row lock must roll back and report transaction_failure,
// not block past its deadline and then succeed.
func TestPurchaseSafeTimesOutOnHeldLock(t *testing.T) {
	st := newShopStore(1, 10)
	shop := service.NewShop(st, 100*time.Millisecond)

	holder, err := st.BeginShop(context.Background())
	require.NoError(t, err)
	_, err = holder.StockForUpdate(context.Background(), 1)
	require.NoError(t, err)

	res := shop.Purchase(context.Background(), 2, 1, 1, service.StrategySafe)
	require.False(t, res.OK)
	assert.Equal(t, service.CodeTxFailure, res.Code)
	assert.Equal(t, 0, st.PurchaseCount())

	// Once the holder lets go, the same purchase goes through.
	require.NoError(t, holder.Rollback())
	res = shop.Purchase(context.Background(), 2, 1, 1, service.StrategySafe)
	require.True(t, res.OK, res.Message)
	assert.Equal(t, int64(9), st.StockOf(1))
}

func TestListItemsIsReadOnly(t *testing.T) {
	st := newShopStore(1, 10)
	st.AddItem(model.Item{ID: 2, Name: "Concert Ticket", Stock: 5, PriceCents: 10000})
	shop := service.NewShop(st, time.Second)

	first, err := shop.ListItems(context.Background())
	require.NoError(t, err)
	second, err := shop.ListItems(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int64(10), st.StockOf(1))
}

func TestParseStrategy(t *testing.T) {
	assert.Equal(t, service.StrategyUnsafe, service.ParseStrategy("unsafe"))
	assert.Equal(t, service.StrategyUnsafe, service.ParseStrategy("  UNSAFE "))
	assert.Equal(t, service.StrategySafe, service.ParseStrategy("safe"))
	assert.Equal(t, service.StrategySafe, service.ParseStrategy(""))
	assert.Equal(t, service.StrategySafe, service.ParseStrategy("anything-else"))
}

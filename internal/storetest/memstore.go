// Package storetest provides an in-memory implementation of the
// repository store contracts for tests.  Row locks are modeled with
// one context-aware lock per row, acquired by the ForUpdate reads and
// held until Commit or Rollback, which mirrors how the MySQL gateway
// serializes contenders and how a lock wait is cut short when the
// operation's deadline expires.  Unlocked reads take no row lock, so
// the unsafe allocation paths race here exactly as they do against a
// real store.
//
// The double models locking, not MVCC: writes apply to shared state
// immediately and Rollback only releases locks.  That is sufficient
// for the allocation tests, which never roll back applied writes.
package storetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/ticket-rush/internal/model"
	"github.com/iliyamo/ticket-rush/internal/repository"
)

// Store is a concurrency-faithful in-memory stand-in for the MySQL
// repositories.  It implements repository.ShopStore and
// repository.SeatStore.
//
// ReadHook, when set, runs after every unlocked read (ShopTx.Stock and
// SeatTx.SeatState).  Tests use it as a barrier to hold every racing
// goroutine inside the read-then-write window at once, making the
// unsafe paths' misbehavior deterministic.
type Store struct {
	ReadHook func()

	mu        sync.RWMutex
	items     map[uint64]*itemRow
	seats     map[uint64]*seatRow
	users     map[uint64]model.User
	purchases []model.Purchase
	nextPurch uint64
}

// rowLock emulates an exclusive row lock.  Acquisition honors the
// caller's context, like a blocked FOR UPDATE honors the statement
// deadline.
type rowLock chan struct{}

func newRowLock() rowLock { return make(rowLock, 1) }

func (l rowLock) acquire(ctx context.Context) error {
	select {
	case l <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l rowLock) release() { <-l }

type itemRow struct {
	lock rowLock
	item model.Item
}

type seatRow struct {
	lock rowLock
	seat model.Seat
}

// New returns an empty store.
func New() *Store {
	return &Store{
		items:     make(map[uint64]*itemRow),
		seats:     make(map[uint64]*seatRow),
		users:     make(map[uint64]model.User),
		nextPurch: 1,
	}
}

// AddItem seeds an item row.
func (s *Store) AddItem(it model.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[it.ID] = &itemRow{lock: newRowLock(), item: it}
}

// AddSeat seeds a seat row.
func (s *Store) AddSeat(seat model.Seat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seat.Status == "" {
		seat.Status = model.SeatFree
	}
	s.seats[seat.ID] = &seatRow{lock: newRowLock(), seat: seat}
}

// AddUser seeds a user row.
func (s *Store) AddUser(u model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// StockOf reports the current stock of an item, for assertions.
func (s *Store) StockOf(itemID uint64) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.items[itemID].item.Stock
}

// PurchaseCount reports how many purchase records were appended.
func (s *Store) PurchaseCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.purchases)
}

// ---- repository.ShopStore ----

func (s *Store) Items(ctx context.Context) ([]model.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Item, 0, len(s.items))
	for _, r := range s.items {
		out = append(out, r.item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ItemByID(ctx context.Context, id uint64) (model.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.items[id]
	if !ok {
		return model.Item{}, repository.ErrNotFound
	}
	return r.item, nil
}

func (s *Store) PurchasesByUser(ctx context.Context, userID uint64) ([]model.PurchaseDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.PurchaseDetail, 0)
	for i := len(s.purchases) - 1; i >= 0; i-- {
		p := s.purchases[i]
		if p.UserID != userID {
			continue
		}
		it := s.items[p.ItemID].item
		out = append(out, model.PurchaseDetail{
			ID:         p.ID,
			ItemID:     p.ItemID,
			ItemName:   it.Name,
			Quantity:   p.Quantity,
			PriceCents: it.PriceCents,
			CreatedAt:  p.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return out, nil
}

func (s *Store) BeginShop(ctx context.Context) (repository.ShopTx, error) {
	return &shopTx{s: s}, nil
}

type shopTx struct {
	s      *Store
	locked []*itemRow
	done   bool
}

func (t *shopTx) Stock(ctx context.Context, itemID uint64) (int64, error) {
	t.s.mu.RLock()
	r, ok := t.s.items[itemID]
	var stock int64
	if ok {
		stock = r.item.Stock
	}
	t.s.mu.RUnlock()
	if !ok {
		return 0, repository.ErrNotFound
	}
	if t.s.ReadHook != nil {
		t.s.ReadHook()
	}
	return stock, nil
}

func (t *shopTx) StockForUpdate(ctx context.Context, itemID uint64) (int64, error) {
	t.s.mu.RLock()
	r, ok := t.s.items[itemID]
	t.s.mu.RUnlock()
	if !ok {
		return 0, repository.ErrNotFound
	}
	if err := r.lock.acquire(ctx); err != nil {
		return 0, err
	}
	t.locked = append(t.locked, r)
	t.s.mu.RLock()
	stock := r.item.Stock
	t.s.mu.RUnlock()
	return stock, nil
}

func (t *shopTx) SetStock(ctx context.Context, itemID uint64, stock int64) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	r, ok := t.s.items[itemID]
	if !ok {
		return repository.ErrNotFound
	}
	r.item.Stock = stock
	return nil
}

func (t *shopTx) DecrementStock(ctx context.Context, itemID uint64, qty int64) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	r, ok := t.s.items[itemID]
	if !ok {
		return repository.ErrNotFound
	}
	r.item.Stock -= qty
	return nil
}

func (t *shopTx) InsertPurchase(ctx context.Context, userID, itemID uint64, qty int64) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.purchases = append(t.s.purchases, model.Purchase{
		ID:        t.s.nextPurch,
		UserID:    userID,
		ItemID:    itemID,
		Quantity:  qty,
		CreatedAt: time.Now().UTC(),
	})
	t.s.nextPurch++
	return nil
}

func (t *shopTx) Commit() error   { t.finish(); return nil }
func (t *shopTx) Rollback() error { t.finish(); return nil }

func (t *shopTx) finish() {
	if t.done {
		return
	}
	t.done = true
	for _, r := range t.locked {
		r.lock.release()
	}
	t.locked = nil
}

// ---- repository.SeatStore ----

func (s *Store) Seats(ctx context.Context) ([]model.SeatView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.SeatView, 0, len(s.seats))
	for _, r := range s.seats {
		out = append(out, r.seat.View(s.holderNameLocked(r.seat.ReservedBy)))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RowNum != out[j].RowNum {
			return out[i].RowNum < out[j].RowNum
		}
		return out[i].ColNum < out[j].ColNum
	})
	return out, nil
}

func (s *Store) SeatHeldBy(ctx context.Context, userID uint64) (*model.SeatView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.seats {
		if r.seat.ReservedBy != nil && *r.seat.ReservedBy == userID {
			v := r.seat.View(s.holderNameLocked(r.seat.ReservedBy))
			return &v, nil
		}
	}
	return nil, nil
}

// holderNameLocked resolves a username; callers must hold s.mu.
func (s *Store) holderNameLocked(userID *uint64) *string {
	if userID == nil {
		return nil
	}
	if u, ok := s.users[*userID]; ok {
		name := u.Username
		return &name
	}
	return nil
}

func (s *Store) BeginSeats(ctx context.Context) (repository.SeatTx, error) {
	return &seatTx{s: s}, nil
}

type seatTx struct {
	s      *Store
	locked []*seatRow
	done   bool
}

func (t *seatTx) SeatState(ctx context.Context, seatID uint64) (model.SeatState, error) {
	t.s.mu.RLock()
	r, ok := t.s.seats[seatID]
	var st model.SeatState
	if ok {
		st = model.SeatState{Status: r.seat.Status, ReservedBy: r.seat.ReservedBy}
	}
	t.s.mu.RUnlock()
	if !ok {
		return model.SeatState{}, repository.ErrNotFound
	}
	if t.s.ReadHook != nil {
		t.s.ReadHook()
	}
	return st, nil
}

func (t *seatTx) SeatStateForUpdate(ctx context.Context, seatID uint64) (model.SeatState, error) {
	t.s.mu.RLock()
	r, ok := t.s.seats[seatID]
	t.s.mu.RUnlock()
	if !ok {
		return model.SeatState{}, repository.ErrNotFound
	}
	if err := r.lock.acquire(ctx); err != nil {
		return model.SeatState{}, err
	}
	t.locked = append(t.locked, r)
	t.s.mu.RLock()
	st := model.SeatState{Status: r.seat.Status, ReservedBy: r.seat.ReservedBy}
	t.s.mu.RUnlock()
	return st, nil
}

func (t *seatTx) CountHeldBy(ctx context.Context, userID uint64) (int64, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	var n int64
	for _, r := range t.s.seats {
		if r.seat.ReservedBy != nil && *r.seat.ReservedBy == userID {
			n++
		}
	}
	return n, nil
}

func (t *seatTx) Reserve(ctx context.Context, seatID, userID uint64, at time.Time) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	r, ok := t.s.seats[seatID]
	if !ok {
		return repository.ErrNotFound
	}
	uid := userID
	ts := at.UTC()
	r.seat.Status = model.SeatHeld
	r.seat.ReservedBy = &uid
	r.seat.ReservedAt = &ts
	return nil
}

func (t *seatTx) ReleaseOwned(ctx context.Context, seatID, userID uint64) (bool, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	r, ok := t.s.seats[seatID]
	if !ok {
		return false, nil
	}
	if r.seat.ReservedBy == nil || *r.seat.ReservedBy != userID {
		return false, nil
	}
	r.seat.Status = model.SeatFree
	r.seat.ReservedBy = nil
	r.seat.ReservedAt = nil
	return true, nil
}

func (t *seatTx) Commit() error   { t.finish(); return nil }
func (t *seatTx) Rollback() error { t.finish(); return nil }

func (t *seatTx) finish() {
	if t.done {
		return
	}
	t.done = true
	for _, r := range t.locked {
		r.lock.release()
	}
	t.locked = nil
}

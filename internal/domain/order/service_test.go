package order

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/cloud-kitchen/internal/domain/customer"
	"github.com/xenking/cloud-kitchen/internal/domain/inventory"
)

// --- Mock implementations ---

// memStore is an in-memory Store with real transaction semantics: InTx
// snapshots the state and restores it when fn returns an error, so rollback
// behaviour is observable from tests.
type memStore struct {
	mu     sync.Mutex
	items  map[string]*inventory.Item
	orders map[string]*Order
}

func newMemStore(items ...inventory.Item) *memStore {
	s := &memStore{
		items:  make(map[string]*inventory.Item, len(items)),
		orders: make(map[string]*Order),
	}
	for i := range items {
		it := items[i]
		s.items[it.ID] = &it
	}
	return s
}

func (s *memStore) snapshot() (map[string]*inventory.Item, map[string]*Order) {
	items := make(map[string]*inventory.Item, len(s.items))
	for id, it := range s.items {
		cp := *it
		items[id] = &cp
	}
	orders := make(map[string]*Order, len(s.orders))
	for id, o := range s.orders {
		cp := *o
		cp.Items = append([]OrderItem(nil), o.Items...)
		orders[id] = &cp
	}
	return items, orders
}

func (s *memStore) InTx(_ context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, orders := s.snapshot()
	if err := fn(&memTx{store: s}); err != nil {
		s.items, s.orders = items, orders
		return err
	}
	return nil
}

func (s *memStore) GetOrder(_ context.Context, id string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	cp.Items = append([]OrderItem(nil), o.Items...)
	return &cp, nil
}

func (s *memStore) ListByCustomer(_ context.Context, customerID string, offset, limit int) ([]Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Order
	for _, o := range s.orders {
		if o.CustomerID == customerID {
			out = append(out, *o)
		}
	}
	_ = offset
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) itemQuantity(t *testing.T, id string) int {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[id]
	require.True(t, ok, "item %s not found", id)
	return it.Quantity
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

// memTx operates on the live store maps; memStore.InTx already holds the
// lock and handles rollback.
type memTx struct {
	store *memStore
}

func (t *memTx) TryReserve(_ context.Context, itemID string, qty int) (bool, error) {
	it, ok := t.store.items[itemID]
	if !ok || it.Quantity < qty {
		return false, nil
	}
	it.Quantity -= qty
	return true, nil
}

func (t *memTx) Restore(_ context.Context, itemID string, qty int) error {
	if it, ok := t.store.items[itemID]; ok {
		it.Quantity += qty
	}
	return nil
}

func (t *memTx) InventoryItem(_ context.Context, id string) (*inventory.Item, error) {
	it, ok := t.store.items[id]
	if !ok {
		return nil, inventory.ErrNotFound
	}
	cp := *it
	return &cp, nil
}

func (t *memTx) CreateOrder(_ context.Context, o *Order) error {
	cp := *o
	t.store.orders[o.ID] = &cp
	return nil
}

func (t *memTx) CreateOrderItem(_ context.Context, it *OrderItem) error {
	o, ok := t.store.orders[it.OrderID]
	if !ok {
		return ErrNotFound
	}
	o.Items = append(o.Items, *it)
	return nil
}

func (t *memTx) SetTotal(_ context.Context, orderID string, total decimal.Decimal) error {
	o, ok := t.store.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	o.Total = total
	return nil
}

func (t *memTx) OrderForUpdate(_ context.Context, id string) (*Order, error) {
	o, ok := t.store.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	cp.Items = append([]OrderItem(nil), o.Items...)
	return &cp, nil
}

func (t *memTx) SetStatus(_ context.Context, orderID string, st Status, at time.Time) error {
	o, ok := t.store.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	o.Status = st
	o.UpdatedAt = at
	return nil
}

type mockCustomerRepo struct {
	byID map[string]*customer.Customer
}

func (m *mockCustomerRepo) List(_ context.Context) ([]customer.Customer, error) { return nil, nil }

func (m *mockCustomerRepo) GetByID(_ context.Context, id string) (*customer.Customer, error) {
	c, ok := m.byID[id]
	if !ok {
		return nil, customer.ErrNotFound
	}
	return c, nil
}

func (m *mockCustomerRepo) Create(_ context.Context, _ *customer.Customer) error { return nil }
func (m *mockCustomerRepo) Update(_ context.Context, _ *customer.Customer) error { return nil }
func (m *mockCustomerRepo) Delete(_ context.Context, _ string) error             { return nil }

// recordingEffects counts side-effect dispatches.
type recordingEffects struct {
	mu      sync.Mutex
	placed  []*Order
	changed []*Order
}

func (r *recordingEffects) OrderPlaced(o *Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.placed = append(r.placed, o)
}

func (r *recordingEffects) StatusChanged(o *Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changed = append(r.changed, o)
}

// --- Helpers ---

func newTestItem(id, name string, qty int, price string) inventory.Item {
	return inventory.Item{
		ID:                id,
		Name:              name,
		Quantity:          qty,
		LowStockThreshold: 5,
		UnitPrice:         decimal.RequireFromString(price),
	}
}

func newCustomerRepo(ids ...string) *mockCustomerRepo {
	byID := make(map[string]*customer.Customer, len(ids))
	for _, id := range ids {
		byID[id] = &customer.Customer{ID: id, Name: "Test", Email: id + "@example.com"}
	}
	return &mockCustomerRepo{byID: byID}
}

// --- Tests ---

func TestCreateOrder_EmptyItems(t *testing.T) {
	svc := NewService(newMemStore(), newCustomerRepo("c1"), &recordingEffects{})

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{CustomerID: "c1"})
	require.ErrorIs(t, err, ErrEmptyItems)
}

func TestCreateOrder_InvalidQuantity(t *testing.T) {
	store := newMemStore(newTestItem("i1", "Burger", 10, "8.50"))
	svc := NewService(store, newCustomerRepo("c1"), &recordingEffects{})

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerID: "c1",
		Items:      []ItemRequest{{InventoryItemID: "i1", Quantity: 0}},
	})

	var iqErr *InvalidQuantityError
	require.ErrorAs(t, err, &iqErr)
	assert.Equal(t, "i1", iqErr.ItemID)
	assert.Equal(t, 10, store.itemQuantity(t, "i1"))
}

func TestCreateOrder_CustomerNotFound(t *testing.T) {
	store := newMemStore(newTestItem("i1", "Burger", 10, "8.50"))
	svc := NewService(store, newCustomerRepo(), &recordingEffects{})

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerID: "ghost",
		Items:      []ItemRequest{{InventoryItemID: "i1", Quantity: 1}},
	})
	require.ErrorIs(t, err, customer.ErrNotFound)
}

func TestCreateOrder_ItemNotFound_RollsBack(t *testing.T) {
	store := newMemStore(newTestItem("i1", "Burger", 10, "8.50"))
	effects := &recordingEffects{}
	svc := NewService(store, newCustomerRepo("c1"), effects)

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerID: "c1",
		Items: []ItemRequest{
			{InventoryItemID: "i1", Quantity: 3},
			{InventoryItemID: "missing", Quantity: 1},
		},
	})

	var nfErr *inventory.ItemNotFoundError
	require.ErrorAs(t, err, &nfErr)
	assert.Equal(t, "missing", nfErr.ItemID)

	// The first line's reservation must have been rolled back with the rest.
	assert.Equal(t, 10, store.itemQuantity(t, "i1"))
	assert.Equal(t, 0, store.orderCount())
	assert.Empty(t, effects.placed)
}

func TestCreateOrder_OutOfStock_RollsBack(t *testing.T) {
	store := newMemStore(
		newTestItem("i1", "Burger", 10, "8.50"),
		newTestItem("i2", "Fries", 2, "3.00"),
	)
	effects := &recordingEffects{}
	svc := NewService(store, newCustomerRepo("c1"), effects)

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerID: "c1",
		Items: []ItemRequest{
			{InventoryItemID: "i1", Quantity: 2},
			{InventoryItemID: "i2", Quantity: 5},
		},
	})

	var oosErr *inventory.OutOfStockError
	require.ErrorAs(t, err, &oosErr)
	assert.Equal(t, "i2", oosErr.ItemID)

	assert.Equal(t, 10, store.itemQuantity(t, "i1"))
	assert.Equal(t, 2, store.itemQuantity(t, "i2"))
	assert.Equal(t, 0, store.orderCount())
	assert.Empty(t, effects.placed)
}

func TestCreateOrder_Success(t *testing.T) {
	store := newMemStore(
		newTestItem("i1", "Burger", 10, "8.50"),
		newTestItem("i2", "Fries", 20, "3.00"),
	)
	effects := &recordingEffects{}
	svc := NewService(store, newCustomerRepo("c1"), effects)

	o, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerID: "c1",
		Items: []ItemRequest{
			{InventoryItemID: "i1", Quantity: 3},
			{InventoryItemID: "i2", Quantity: 2},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, o)

	assert.NotEmpty(t, o.ID)
	assert.Equal(t, StatusPlaced, o.Status)
	assert.Equal(t, "c1", o.CustomerID)
	assert.Len(t, o.Items, 2)
	// 3*8.50 + 2*3.00 = 31.50
	assert.True(t, o.Total.Equal(decimal.RequireFromString("31.50")),
		"total = %s", o.Total)

	assert.Equal(t, 7, store.itemQuantity(t, "i1"))
	assert.Equal(t, 18, store.itemQuantity(t, "i2"))

	require.Len(t, effects.placed, 1)
	assert.Equal(t, o.ID, effects.placed[0].ID)

	stored, err := svc.FindOrder(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPlaced, stored.Status)
	assert.Len(t, stored.Items, 2)
}

func TestCreateOrder_ConcurrentReservations(t *testing.T) {
	const stock, contenders = 5, 20

	store := newMemStore(newTestItem("i1", "Burger", stock, "8.50"))
	svc := NewService(store, newCustomerRepo("c1"), &recordingEffects{})

	errs := make(chan error, contenders)
	var wg sync.WaitGroup
	for range contenders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
				CustomerID: "c1",
				Items:      []ItemRequest{{InventoryItemID: "i1", Quantity: 1}},
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var won, lost int
	for err := range errs {
		if err == nil {
			won++
			continue
		}
		var oosErr *inventory.OutOfStockError
		require.ErrorAs(t, err, &oosErr)
		lost++
	}

	assert.Equal(t, stock, won)
	assert.Equal(t, contenders-stock, lost)
	assert.Equal(t, 0, store.itemQuantity(t, "i1"))
	assert.Equal(t, stock, store.orderCount())
}

func TestCancelOrder_RestoresStock(t *testing.T) {
	store := newMemStore(
		newTestItem("i1", "Burger", 10, "8.50"),
		newTestItem("i2", "Fries", 20, "3.00"),
	)
	effects := &recordingEffects{}
	svc := NewService(store, newCustomerRepo("c1"), effects)

	o, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerID: "c1",
		Items: []ItemRequest{
			{InventoryItemID: "i1", Quantity: 2},
			{InventoryItemID: "i2", Quantity: 3},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 8, store.itemQuantity(t, "i1"))
	require.Equal(t, 17, store.itemQuantity(t, "i2"))

	cancelled, err := svc.CancelOrder(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	assert.Equal(t, 10, store.itemQuantity(t, "i1"))
	assert.Equal(t, 20, store.itemQuantity(t, "i2"))

	require.Len(t, effects.changed, 1)
	assert.Equal(t, StatusCancelled, effects.changed[0].Status)
}

func TestCancelOrder_NotFound(t *testing.T) {
	svc := NewService(newMemStore(), newCustomerRepo(), &recordingEffects{})

	_, err := svc.CancelOrder(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCancelOrder_NotPlaced(t *testing.T) {
	store := newMemStore(newTestItem("i1", "Burger", 10, "8.50"))
	svc := NewService(store, newCustomerRepo("c1"), &recordingEffects{})

	o, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerID: "c1",
		Items:      []ItemRequest{{InventoryItemID: "i1", Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), o.ID, "delivered")
	require.NoError(t, err)

	_, err = svc.CancelOrder(context.Background(), o.ID)

	var ncErr *NotCancellableError
	require.ErrorAs(t, err, &ncErr)
	assert.Equal(t, StatusDelivered, ncErr.Status)

	// Stock stays reserved: a delivered order is not restored.
	assert.Equal(t, 9, store.itemQuantity(t, "i1"))
}

func TestUpdateStatus_Success(t *testing.T) {
	store := newMemStore(newTestItem("i1", "Burger", 10, "8.50"))
	effects := &recordingEffects{}
	svc := NewService(store, newCustomerRepo("c1"), effects)

	o, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerID: "c1",
		Items:      []ItemRequest{{InventoryItemID: "i1", Quantity: 1}},
	})
	require.NoError(t, err)

	updated, err := svc.UpdateStatus(context.Background(), o.ID, "PREPARING")
	require.NoError(t, err)
	assert.Equal(t, StatusPreparing, updated.Status)

	// Status transitions never move stock.
	assert.Equal(t, 9, store.itemQuantity(t, "i1"))

	require.Len(t, effects.changed, 1)
	assert.Equal(t, StatusPreparing, effects.changed[0].Status)
}

func TestUpdateStatus_InvalidValue(t *testing.T) {
	svc := NewService(newMemStore(), newCustomerRepo(), &recordingEffects{})

	_, err := svc.UpdateStatus(context.Background(), "any", "shipped")

	var invErr *InvalidStatusError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, "shipped", invErr.Value)
}

func TestUpdateStatus_SameStatus(t *testing.T) {
	store := newMemStore(newTestItem("i1", "Burger", 10, "8.50"))
	effects := &recordingEffects{}
	svc := NewService(store, newCustomerRepo("c1"), effects)

	o, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerID: "c1",
		Items:      []ItemRequest{{InventoryItemID: "i1", Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), o.ID, "placed")

	var sameErr *SameStatusError
	require.ErrorAs(t, err, &sameErr)
	assert.Equal(t, StatusPlaced, sameErr.Status)
	assert.Empty(t, effects.changed)
}

func TestUpdateStatus_NotFound(t *testing.T) {
	svc := NewService(newMemStore(), newCustomerRepo(), &recordingEffects{})

	_, err := svc.UpdateStatus(context.Background(), "missing", "preparing")
	require.ErrorIs(t, err, ErrNotFound)
}

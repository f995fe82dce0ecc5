package order

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inlineScheduler runs each task immediately and records its name.
type inlineScheduler struct {
	names []string
	errs  []error
}

func (s *inlineScheduler) Enqueue(name string, fn func(ctx context.Context) error) {
	s.names = append(s.names, name)
	s.errs = append(s.errs, fn(context.Background()))
}

type mockNotifier struct {
	orderIDs []string
	statuses []Status
}

func (m *mockNotifier) OrderStatusChanged(_ context.Context, orderID, _ string, st Status) error {
	m.orderIDs = append(m.orderIDs, orderID)
	m.statuses = append(m.statuses, st)
	return nil
}

type mockLogStore struct {
	logs []StatusLog
}

func (m *mockLogStore) AppendStatusLog(_ context.Context, l *StatusLog) error {
	m.logs = append(m.logs, *l)
	return nil
}

type mockStockChecker struct {
	itemIDs []string
}

func (m *mockStockChecker) CheckItem(_ context.Context, itemID string) error {
	m.itemIDs = append(m.itemIDs, itemID)
	return nil
}

func newTestEffects() (*Effects, *inlineScheduler, *mockNotifier, *mockLogStore, *mockStockChecker) {
	sched := &inlineScheduler{}
	notifier := &mockNotifier{}
	logs := &mockLogStore{}
	stock := &mockStockChecker{}
	return NewEffects(sched, notifier, NewHistoryRecorder(logs), stock), sched, notifier, logs, stock
}

func TestEffects_OrderPlaced(t *testing.T) {
	eff, sched, notifier, logs, stock := newTestEffects()

	changedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	eff.OrderPlaced(&Order{
		ID:         "o1",
		CustomerID: "c1",
		Status:     StatusPlaced,
		UpdatedAt:  changedAt,
		Items: []OrderItem{
			{InventoryItemID: "i1", Quantity: 2},
			{InventoryItemID: "i2", Quantity: 1},
		},
	})

	assert.Equal(t, []string{
		TaskNotifyCustomer,
		TaskRecordHistory,
		TaskLowStockCheck,
		TaskLowStockCheck,
	}, sched.names)
	for _, err := range sched.errs {
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"o1"}, notifier.orderIDs)
	assert.Equal(t, []Status{StatusPlaced}, notifier.statuses)

	require.Len(t, logs.logs, 1)
	assert.Equal(t, "o1", logs.logs[0].OrderID)
	assert.Equal(t, StatusPlaced, logs.logs[0].Status)
	assert.Equal(t, changedAt, logs.logs[0].ChangedAt)
	assert.NotEmpty(t, logs.logs[0].ID)

	assert.Equal(t, []string{"i1", "i2"}, stock.itemIDs)
}

func TestEffects_StatusChanged(t *testing.T) {
	eff, sched, notifier, logs, stock := newTestEffects()

	eff.StatusChanged(&Order{
		ID:         "o1",
		CustomerID: "c1",
		Status:     StatusDelivered,
		UpdatedAt:  time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC),
		Items:      []OrderItem{{InventoryItemID: "i1", Quantity: 2}},
	})

	// No stock checks on forward transitions: stock never moved.
	assert.Equal(t, []string{TaskNotifyCustomer, TaskRecordHistory}, sched.names)
	assert.Empty(t, stock.itemIDs)
	assert.Equal(t, []Status{StatusDelivered}, notifier.statuses)
	require.Len(t, logs.logs, 1)
	assert.Equal(t, StatusDelivered, logs.logs[0].Status)
}

func TestHistoryRecorder_RejectsEmpty(t *testing.T) {
	rec := NewHistoryRecorder(&mockLogStore{})

	err := rec.Record(context.Background(), "", StatusPlaced, time.Now())
	require.Error(t, err)

	err = rec.Record(context.Background(), "o1", "", time.Now())
	require.Error(t, err)
}

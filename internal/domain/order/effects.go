package order

import (
	"context"
	"time"
)

// Scheduler enqueues a named unit of background work with at-most-once
// delivery. No ordering is guaranteed between different task names.
type Scheduler interface {
	Enqueue(name string, fn func(ctx context.Context) error)
}

// Notifier sends the customer-facing status-change message.
type Notifier interface {
	OrderStatusChanged(ctx context.Context, orderID, customerID string, st Status) error
}

// StockChecker re-evaluates one item's low-stock threshold crossing.
type StockChecker interface {
	CheckItem(ctx context.Context, itemID string) error
}

// Effects is the side-effect coordinator. After each successful engine
// operation it schedules the notification, history and low-stock tasks on the
// async pool. It is only ever called after the originating transaction has
// durably committed, so a task failure can never roll a reservation back.
type Effects struct {
	tasks    Scheduler
	notifier Notifier
	history  *HistoryRecorder
	stock    StockChecker
}

// NewEffects wires the coordinator.
func NewEffects(tasks Scheduler, notifier Notifier, history *HistoryRecorder, stock StockChecker) *Effects {
	return &Effects{tasks: tasks, notifier: notifier, history: history, stock: stock}
}

var _ SideEffects = (*Effects)(nil)

// Task names as they appear in worker logs.
const (
	TaskNotifyCustomer = "order.notify_customer"
	TaskRecordHistory  = "order.record_status_history"
	TaskLowStockCheck  = "inventory.low_stock_check"
)

// OrderPlaced schedules the placed-order notification and history entry plus
// one low-stock check per reserved item.
func (e *Effects) OrderPlaced(o *Order) {
	e.StatusChanged(o)
	for _, line := range o.Items {
		itemID := line.InventoryItemID
		e.tasks.Enqueue(TaskLowStockCheck, func(ctx context.Context) error {
			return e.stock.CheckItem(ctx, itemID)
		})
	}
}

// StatusChanged schedules the customer notification and the history entry
// for the order's new status.
func (e *Effects) StatusChanged(o *Order) {
	orderID, customerID, st := o.ID, o.CustomerID, o.Status
	changedAt := o.UpdatedAt
	if changedAt.IsZero() {
		changedAt = time.Now().UTC()
	}

	e.tasks.Enqueue(TaskNotifyCustomer, func(ctx context.Context) error {
		return e.notifier.OrderStatusChanged(ctx, orderID, customerID, st)
	})
	e.tasks.Enqueue(TaskRecordHistory, func(ctx context.Context) error {
		return e.history.Record(ctx, orderID, st, changedAt)
	})
}

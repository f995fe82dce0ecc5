package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/cloud-kitchen/internal/domain/inventory"
)

// Sentinel errors for order validation and lookup.
var (
	ErrNotFound   = errors.New("order not found")
	ErrEmptyItems = errors.New("items required")
)

// InvalidQuantityError indicates a line item with a non-positive quantity.
type InvalidQuantityError struct {
	ItemID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for item %s", e.ItemID)
}

// SameStatusError indicates a status update to the order's current status.
// It is deliberately distinct from InvalidStatusError so callers can tell a
// no-op request apart from an unknown status value.
type SameStatusError struct {
	Status Status
}

func (e *SameStatusError) Error() string {
	return fmt.Sprintf("order is already %s", e.Status)
}

// NotCancellableError indicates a cancellation attempt on an order that has
// left the placed state.
type NotCancellableError struct {
	Status Status
}

func (e *NotCancellableError) Error() string {
	return fmt.Sprintf("only placed orders can be cancelled, order is %s", e.Status)
}

// Order is the aggregate root: an order plus its line items. It is created
// only through the transaction engine, together with the inventory deduction.
type Order struct {
	ID         string
	CustomerID string
	Status     Status
	Total      decimal.Decimal
	Items      []OrderItem
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// OrderItem is a single reserved line. Immutable once created: correcting an
// order means cancelling and re-placing it.
type OrderItem struct {
	ID              string
	OrderID         string
	InventoryItemID string
	Quantity        int
	CreatedAt       time.Time
}

// StatusLog is one append-only entry of an order's status history. ChangedAt
// is the business timestamp of the transition, distinct from row creation.
type StatusLog struct {
	ID        string
	OrderID   string
	Status    Status
	ChangedAt time.Time
}

// Tx is the set of operations available inside one atomic unit of work.
// Everything invoked through a Tx either commits as a whole or leaves no
// trace; no partial state is ever visible to concurrent readers.
type Tx interface {
	inventory.Ledger

	// InventoryItem loads an item inside the transaction, returning
	// inventory.ErrNotFound if it does not exist.
	InventoryItem(ctx context.Context, id string) (*inventory.Item, error)

	CreateOrder(ctx context.Context, o *Order) error
	CreateOrderItem(ctx context.Context, it *OrderItem) error
	SetTotal(ctx context.Context, orderID string, total decimal.Decimal) error

	// OrderForUpdate loads an order with its items, holding a row lock until
	// the transaction ends.
	OrderForUpdate(ctx context.Context, id string) (*Order, error)

	SetStatus(ctx context.Context, orderID string, st Status, at time.Time) error
}

// Store provides transactional and read access to orders.
type Store interface {
	// InTx runs fn inside a storage transaction. A non-nil error from fn
	// rolls the transaction back and is returned unchanged.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	GetOrder(ctx context.Context, id string) (*Order, error)
	ListByCustomer(ctx context.Context, customerID string, offset, limit int) ([]Order, error)
}

// LogStore persists status history entries.
type LogStore interface {
	AppendStatusLog(ctx context.Context, l *StatusLog) error
}

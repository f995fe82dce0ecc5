package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound indicates a referenced inventory item does not exist.
var ErrNotFound = errors.New("inventory item not found")

// ItemNotFoundError identifies which item of a request was missing.
type ItemNotFoundError struct {
	ItemID string
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("invalid inventory item ID: %s", e.ItemID)
}

// OutOfStockError indicates a reservation exceeded the available quantity.
type OutOfStockError struct {
	ItemID string
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("inventory item %s is out of stock", e.ItemID)
}

// Item is a stockable inventory entry. Quantity never goes negative: every
// decrement is a conditional update at the storage layer, so the invariant
// holds under concurrent reservations.
type Item struct {
	ID                string
	Name              string
	Quantity          int
	LowStockThreshold int
	LowStockAlertSent bool
	UnitPrice         decimal.Decimal
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Ledger exposes the two stock-movement primitives. TryReserve must be a
// single atomic check-and-decrement at the storage layer, not a
// read-then-write pair.
type Ledger interface {
	// TryReserve decrements the item's quantity by qty if enough stock is
	// available, returning whether the reservation took effect. It does not
	// distinguish a missing item from insufficient stock; callers that need
	// the distinction check existence first.
	TryReserve(ctx context.Context, itemID string, qty int) (bool, error)

	// Restore unconditionally increments the item's quantity by qty.
	Restore(ctx context.Context, itemID string, qty int) error
}

// Repository defines persistence operations for inventory items.
type Repository interface {
	List(ctx context.Context) ([]Item, error)
	GetByID(ctx context.Context, id string) (*Item, error)
	Create(ctx context.Context, it *Item) error
	Update(ctx context.Context, it *Item) error
	Delete(ctx context.Context, id string) error

	// MarkAlertSent sets the low-stock flag, but only if it is currently
	// clear. Returns whether this call won the transition.
	MarkAlertSent(ctx context.Context, id string) (bool, error)

	// ClearAlertSent re-arms the low-stock alert for the item.
	ClearAlertSent(ctx context.Context, id string) error
}

package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/cloud-kitchen/internal/domain/customer"
	"github.com/xenking/cloud-kitchen/internal/domain/inventory"
)

// SideEffects receives the facts of a durably committed transaction and
// schedules the asynchronous follow-up work. Implementations must be
// fire-and-forget: nothing they do can affect the committed transaction.
type SideEffects interface {
	OrderPlaced(o *Order)
	StatusChanged(o *Order)
}

// CreateOrderRequest holds the input for placing an order.
type CreateOrderRequest struct {
	CustomerID string
	Items      []ItemRequest
}

// ItemRequest is one requested line of a new order.
type ItemRequest struct {
	InventoryItemID string
	Quantity        int
}

// Service is the order transaction engine. Order creation, cancellation and
// status transitions all go through it; each runs as one atomic unit over the
// inventory ledger and the order aggregate, with side effects dispatched only
// after commit.
type Service struct {
	store     Store
	customers customer.Repository
	effects   SideEffects
}

// NewService creates the engine with its collaborators.
func NewService(store Store, customers customer.Repository, effects SideEffects) *Service {
	return &Service{store: store, customers: customers, effects: effects}
}

// CreateOrder atomically reserves stock for every requested item and creates
// the order with its lines. If any item is missing or short on stock the
// whole unit aborts: no order, no lines, no stock movement.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	for _, it := range req.Items {
		if it.Quantity <= 0 {
			return nil, &InvalidQuantityError{ItemID: it.InventoryItemID}
		}
	}
	if _, err := s.customers.GetByID(ctx, req.CustomerID); err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			return nil, customer.ErrNotFound
		}
		return nil, errors.Wrap(err, "check customer")
	}

	var created *Order
	err := s.store.InTx(ctx, func(tx Tx) error {
		now := time.Now().UTC()
		o := &Order{
			ID:         uuid.New().String(),
			CustomerID: req.CustomerID,
			Status:     StatusPlaced,
			Total:      decimal.Zero,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := tx.CreateOrder(ctx, o); err != nil {
			return errors.Wrap(err, "create order")
		}

		total := decimal.Zero
		for _, req := range req.Items {
			item, err := tx.InventoryItem(ctx, req.InventoryItemID)
			if err != nil {
				if errors.Is(err, inventory.ErrNotFound) {
					return &inventory.ItemNotFoundError{ItemID: req.InventoryItemID}
				}
				return errors.Wrap(err, "load item")
			}

			ok, err := tx.TryReserve(ctx, req.InventoryItemID, req.Quantity)
			if err != nil {
				return errors.Wrap(err, "reserve stock")
			}
			if !ok {
				return &inventory.OutOfStockError{ItemID: req.InventoryItemID}
			}

			line := &OrderItem{
				ID:              uuid.New().String(),
				OrderID:         o.ID,
				InventoryItemID: req.InventoryItemID,
				Quantity:        req.Quantity,
				CreatedAt:       now,
			}
			if err := tx.CreateOrderItem(ctx, line); err != nil {
				return errors.Wrap(err, "create order item")
			}
			o.Items = append(o.Items, *line)
			total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(req.Quantity))))
		}

		total = total.Round(2)
		if err := tx.SetTotal(ctx, o.ID, total); err != nil {
			return errors.Wrap(err, "set total")
		}
		o.Total = total
		created = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.effects.OrderPlaced(created)
	return created, nil
}

// CancelOrder restores every reserved quantity and moves the order to
// cancelled, all in one atomic unit. Only placed orders can be cancelled.
func (s *Service) CancelOrder(ctx context.Context, orderID string) (*Order, error) {
	var cancelled *Order
	err := s.store.InTx(ctx, func(tx Tx) error {
		o, err := tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status != StatusPlaced {
			return &NotCancellableError{Status: o.Status}
		}

		for _, line := range o.Items {
			if err := tx.Restore(ctx, line.InventoryItemID, line.Quantity); err != nil {
				return errors.Wrap(err, "restore stock")
			}
		}

		now := time.Now().UTC()
		if err := tx.SetStatus(ctx, o.ID, StatusCancelled, now); err != nil {
			return errors.Wrap(err, "set status")
		}
		o.Status = StatusCancelled
		o.UpdatedAt = now
		cancelled = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.effects.StatusChanged(cancelled)
	return cancelled, nil
}

// UpdateStatus parses and persists a new status for the order. The engine
// enforces no transition graph beyond membership in the enumeration and
// "must differ from the current status"; forward transitions never move
// stock.
func (s *Service) UpdateStatus(ctx context.Context, orderID, rawStatus string) (*Order, error) {
	st, err := ParseStatus(rawStatus)
	if err != nil {
		return nil, err
	}

	var updated *Order
	err = s.store.InTx(ctx, func(tx Tx) error {
		o, err := tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status == st {
			return &SameStatusError{Status: st}
		}

		now := time.Now().UTC()
		if err := tx.SetStatus(ctx, o.ID, st, now); err != nil {
			return errors.Wrap(err, "set status")
		}
		o.Status = st
		o.UpdatedAt = now
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.effects.StatusChanged(updated)
	return updated, nil
}

// ListOrders returns a customer's orders, newest first.
func (s *Service) ListOrders(ctx context.Context, customerID string, offset, limit int) ([]Order, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListByCustomer(ctx, customerID, offset, limit)
}

// FindOrder returns one order with its items.
func (s *Service) FindOrder(ctx context.Context, id string) (*Order, error) {
	return s.store.GetOrder(ctx, id)
}

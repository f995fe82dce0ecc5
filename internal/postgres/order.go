package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/cloud-kitchen/internal/domain/inventory"
	"github.com/xenking/cloud-kitchen/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders (id, customer_id, status, total, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	createOrderItemSQL = `INSERT INTO order_items (id, order_id, inventory_item_id, quantity, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	setOrderTotalSQL = `UPDATE orders SET total = $2 WHERE id = $1`

	getOrderSQL = `SELECT id, customer_id, status, total, created_at, updated_at
		FROM orders WHERE id = $1`

	getOrderForUpdateSQL = getOrderSQL + ` FOR UPDATE`

	listOrdersSQL = `SELECT id, customer_id, status, total, created_at, updated_at
		FROM orders WHERE customer_id = $1
		ORDER BY created_at DESC OFFSET $2 LIMIT $3`

	listOrderItemsSQL = `SELECT id, order_id, inventory_item_id, quantity, created_at
		FROM order_items WHERE order_id = ANY($1) ORDER BY created_at, id`

	setOrderStatusSQL = `UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`

	appendStatusLogSQL = `INSERT INTO order_status_logs (id, order_id, status, changed_at)
		VALUES ($1, $2, $3, $4)`
)

var (
	_ order.Store    = (*OrderStore)(nil)
	_ order.LogStore = (*OrderStore)(nil)
)

// OrderStore implements order.Store: reads on the pool, atomic units through
// InTx on a single database transaction.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore returns an OrderStore that uses the given pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// InTx runs fn inside one database transaction. Any error from fn (or from
// commit) rolls back every statement issued through the Tx.
func (s *OrderStore) InTx(ctx context.Context, fn func(tx order.Tx) error) error {
	pgtx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = pgtx.Rollback(ctx) }()

	if err := fn(&orderTx{tx: pgtx}); err != nil {
		return err
	}
	if err := pgtx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetOrder returns one order with its items.
func (s *OrderStore) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	rows, err := s.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	items, err := loadItems(ctx, s.pool, []string{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	return &o, nil
}

// ListByCustomer returns a customer's orders newest first, items included.
func (s *OrderStore) ListByCustomer(ctx context.Context, customerID string, offset, limit int) ([]order.Order, error) {
	rows, err := s.pool.Query(ctx, listOrdersSQL, customerID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("listing orders for customer %q: %w", customerID, err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders for customer %q: %w", customerID, err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]string, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}
	items, err := loadItems(ctx, s.pool, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

// AppendStatusLog inserts one history entry.
func (s *OrderStore) AppendStatusLog(ctx context.Context, l *order.StatusLog) error {
	_, err := s.pool.Exec(ctx, appendStatusLogSQL, l.ID, l.OrderID, l.Status, l.ChangedAt)
	if err != nil {
		return fmt.Errorf("appending status log for order %q: %w", l.OrderID, err)
	}
	return nil
}

// querier is the subset of pgx shared by pool and transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// orderTx implements order.Tx over a single pgx.Tx.
type orderTx struct {
	tx pgx.Tx
}

func (t *orderTx) CreateOrder(ctx context.Context, o *order.Order) error {
	_, err := t.tx.Exec(ctx, createOrderSQL,
		o.ID, o.CustomerID, o.Status, o.Total, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

func (t *orderTx) CreateOrderItem(ctx context.Context, it *order.OrderItem) error {
	_, err := t.tx.Exec(ctx, createOrderItemSQL,
		it.ID, it.OrderID, it.InventoryItemID, it.Quantity, it.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order item %q: %w", it.ID, err)
	}
	return nil
}

func (t *orderTx) SetTotal(ctx context.Context, orderID string, total decimal.Decimal) error {
	_, err := t.tx.Exec(ctx, setOrderTotalSQL, orderID, total)
	if err != nil {
		return fmt.Errorf("setting total for order %q: %w", orderID, err)
	}
	return nil
}

func (t *orderTx) OrderForUpdate(ctx context.Context, id string) (*order.Order, error) {
	rows, err := t.tx.Query(ctx, getOrderForUpdateSQL, id)
	if err != nil {
		return nil, fmt.Errorf("locking order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("locking order %q: %w", id, err)
	}

	items, err := loadItems(ctx, t.tx, []string{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	return &o, nil
}

func (t *orderTx) SetStatus(ctx context.Context, orderID string, st order.Status, at time.Time) error {
	tag, err := t.tx.Exec(ctx, setOrderStatusSQL, orderID, st, at)
	if err != nil {
		return fmt.Errorf("setting status for order %q: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func (t *orderTx) InventoryItem(ctx context.Context, id string) (*inventory.Item, error) {
	rows, err := t.tx.Query(ctx, getItemSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting inventory item %q: %w", id, err)
	}

	it, err := pgx.CollectExactlyOneRow(rows, scanItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, inventory.ErrNotFound
		}
		return nil, fmt.Errorf("getting inventory item %q: %w", id, err)
	}
	return &it, nil
}

func (t *orderTx) TryReserve(ctx context.Context, itemID string, qty int) (bool, error) {
	tag, err := t.tx.Exec(ctx, reserveItemSQL, itemID, qty)
	if err != nil {
		return false, fmt.Errorf("reserving %d of item %q: %w", qty, itemID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (t *orderTx) Restore(ctx context.Context, itemID string, qty int) error {
	_, err := t.tx.Exec(ctx, restoreItemSQL, itemID, qty)
	if err != nil {
		return fmt.Errorf("restoring %d of item %q: %w", qty, itemID, err)
	}
	return nil
}

func loadItems(ctx context.Context, q querier, orderIDs []string) (map[string][]order.OrderItem, error) {
	rows, err := q.Query(ctx, listOrderItemsSQL, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("loading order items: %w", err)
	}
	items, err := pgx.CollectRows(rows, scanOrderItem)
	if err != nil {
		return nil, fmt.Errorf("loading order items: %w", err)
	}

	byOrder := make(map[string][]order.OrderItem, len(orderIDs))
	for _, it := range items {
		byOrder[it.OrderID] = append(byOrder[it.OrderID], it)
	}
	return byOrder, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var o order.Order
	err := row.Scan(&o.ID, &o.CustomerID, &o.Status, &o.Total, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func scanOrderItem(row pgx.CollectableRow) (order.OrderItem, error) {
	var it order.OrderItem
	err := row.Scan(&it.ID, &it.OrderID, &it.InventoryItemID, &it.Quantity, &it.CreatedAt)
	return it, err
}

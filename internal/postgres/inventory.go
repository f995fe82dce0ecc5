package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/cloud-kitchen/internal/domain/inventory"
)

const (
	listItemsSQL = `SELECT id, name, quantity, low_stock_threshold, low_stock_alert_sent, unit_price, created_at, updated_at
		FROM inventory_items ORDER BY name`

	getItemSQL = `SELECT id, name, quantity, low_stock_threshold, low_stock_alert_sent, unit_price, created_at, updated_at
		FROM inventory_items WHERE id = $1`

	createItemSQL = `INSERT INTO inventory_items (id, name, quantity, low_stock_threshold, unit_price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	updateItemSQL = `UPDATE inventory_items
		SET name = $2, quantity = $3, low_stock_threshold = $4, unit_price = $5, updated_at = now()
		WHERE id = $1`

	deleteItemSQL = `DELETE FROM inventory_items WHERE id = $1`

	// The check and the decrement are one statement: the WHERE clause makes
	// the reservation conditional and the affected-row count reports the
	// outcome, so concurrent reservations cannot lose updates.
	reserveItemSQL = `UPDATE inventory_items
		SET quantity = quantity - $2, updated_at = now()
		WHERE id = $1 AND quantity >= $2`

	restoreItemSQL = `UPDATE inventory_items
		SET quantity = quantity + $2, updated_at = now()
		WHERE id = $1`

	markAlertSentSQL = `UPDATE inventory_items
		SET low_stock_alert_sent = TRUE, updated_at = now()
		WHERE id = $1 AND low_stock_alert_sent = FALSE`

	clearAlertSentSQL = `UPDATE inventory_items
		SET low_stock_alert_sent = FALSE, updated_at = now()
		WHERE id = $1 AND low_stock_alert_sent = TRUE`
)

var (
	_ inventory.Repository = (*InventoryRepository)(nil)
	_ inventory.Ledger     = (*InventoryRepository)(nil)
)

// InventoryRepository implements inventory.Repository and inventory.Ledger
// backed by PostgreSQL. Ledger operations issued through it run in their own
// implicit transaction; the order engine uses the same statements through
// Store.InTx instead.
type InventoryRepository struct {
	pool *pgxpool.Pool
}

// NewInventoryRepository returns an InventoryRepository that uses the given pool.
func NewInventoryRepository(pool *pgxpool.Pool) *InventoryRepository {
	return &InventoryRepository{pool: pool}
}

// List returns all inventory items ordered by name.
func (r *InventoryRepository) List(ctx context.Context) ([]inventory.Item, error) {
	rows, err := r.pool.Query(ctx, listItemsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing inventory items: %w", err)
	}
	return pgx.CollectRows(rows, scanItem)
}

// GetByID returns a single inventory item by its identifier.
func (r *InventoryRepository) GetByID(ctx context.Context, id string) (*inventory.Item, error) {
	rows, err := r.pool.Query(ctx, getItemSQL, id)
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

// Create persists a new inventory item.
func (r *InventoryRepository) Create(ctx context.Context, it *inventory.Item) error {
	_, err := r.pool.Exec(ctx, createItemSQL,
		it.ID, it.Name, it.Quantity, it.LowStockThreshold, it.UnitPrice, it.CreatedAt, it.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating inventory item %q: %w", it.ID, err)
	}
	return nil
}

// Update persists item changes. Direct quantity edits go through here only
// for administrative restocking; order flow uses TryReserve/Restore.
func (r *InventoryRepository) Update(ctx context.Context, it *inventory.Item) error {
	tag, err := r.pool.Exec(ctx, updateItemSQL,
		it.ID, it.Name, it.Quantity, it.LowStockThreshold, it.UnitPrice,
	)
	if err != nil {
		return fmt.Errorf("updating inventory item %q: %w", it.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return inventory.ErrNotFound
	}
	return nil
}

// Delete removes an inventory item.
func (r *InventoryRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteItemSQL, id)
	if err != nil {
		return fmt.Errorf("deleting inventory item %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return inventory.ErrNotFound
	}
	return nil
}

// TryReserve atomically decrements quantity if enough stock is available.
func (r *InventoryRepository) TryReserve(ctx context.Context, itemID string, qty int) (bool, error) {
	tag, err := r.pool.Exec(ctx, reserveItemSQL, itemID, qty)
	if err != nil {
		return false, fmt.Errorf("reserving %d of item %q: %w", qty, itemID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// Restore unconditionally increments quantity.
func (r *InventoryRepository) Restore(ctx context.Context, itemID string, qty int) error {
	_, err := r.pool.Exec(ctx, restoreItemSQL, itemID, qty)
	if err != nil {
		return fmt.Errorf("restoring %d of item %q: %w", qty, itemID, err)
	}
	return nil
}

// MarkAlertSent sets the low-stock flag if it is currently clear.
func (r *InventoryRepository) MarkAlertSent(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, markAlertSentSQL, id)
	if err != nil {
		return false, fmt.Errorf("marking alert sent for item %q: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// ClearAlertSent re-arms the low-stock alert.
func (r *InventoryRepository) ClearAlertSent(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, clearAlertSentSQL, id)
	if err != nil {
		return fmt.Errorf("clearing alert flag for item %q: %w", id, err)
	}
	return nil
}

func scanItem(row pgx.CollectableRow) (inventory.Item, error) {
	var it inventory.Item
	err := row.Scan(
		&it.ID, &it.Name, &it.Quantity, &it.LowStockThreshold,
		&it.LowStockAlertSent, &it.UnitPrice, &it.CreatedAt, &it.UpdatedAt,
	)
	return it, err
}

package inventory

import (
	"context"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
)

// AlertSender delivers a low-stock admin alert for an item.
type AlertSender interface {
	LowStockAlert(ctx context.Context, it *Item) error
}

// Checker evaluates low-stock threshold crossings with hysteresis: once an
// alert fires it does not fire again until the quantity first rises back
// above the threshold, which re-arms the gate.
type Checker struct {
	items  Repository
	alerts AlertSender
	lg     *zap.Logger
}

// NewChecker constructs a Checker.
func NewChecker(items Repository, alerts AlertSender, lg *zap.Logger) *Checker {
	return &Checker{items: items, alerts: alerts, lg: lg}
}

// CheckItem loads the item and applies the hysteresis gate. A missing item is
// not an error: the item may have been deleted between the originating
// transaction and this asynchronous check.
func (c *Checker) CheckItem(ctx context.Context, itemID string) error {
	it, err := c.items.GetByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.lg.Debug("low-stock check skipped, item gone", zap.String("item_id", itemID))
			return nil
		}
		return errors.Wrap(err, "load item")
	}
	return c.Check(ctx, it)
}

// Check applies the gate to an already-loaded item.
func (c *Checker) Check(ctx context.Context, it *Item) error {
	switch {
	case it.Quantity <= it.LowStockThreshold && !it.LowStockAlertSent:
		// Claim the transition first so concurrent checkers cannot both alert.
		won, err := c.items.MarkAlertSent(ctx, it.ID)
		if err != nil {
			return errors.Wrap(err, "mark alert sent")
		}
		if !won {
			return nil
		}
		if err := c.alerts.LowStockAlert(ctx, it); err != nil {
			return errors.Wrap(err, "send low-stock alert")
		}
		c.lg.Info("low-stock alert fired",
			zap.String("item_id", it.ID),
			zap.String("name", it.Name),
			zap.Int("quantity", it.Quantity),
			zap.Int("threshold", it.LowStockThreshold),
		)

	case it.Quantity > it.LowStockThreshold && it.LowStockAlertSent:
		if err := c.items.ClearAlertSent(ctx, it.ID); err != nil {
			return errors.Wrap(err, "clear alert flag")
		}
		c.lg.Debug("low-stock alert re-armed", zap.String("item_id", it.ID))
	}

	return nil
}

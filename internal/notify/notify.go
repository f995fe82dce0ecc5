// Package notify composes and delivers the system's outbound messages:
// order status updates to customers, low-stock alerts to the admin, and
// welcome mail for new customers. Delivery goes through the Sender
// abstraction; content here is deliberately one line per message.
package notify

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/cloud-kitchen/internal/domain/customer"
	"github.com/xenking/cloud-kitchen/internal/domain/inventory"
	"github.com/xenking/cloud-kitchen/internal/domain/order"
)

// Sender delivers one message to one destination.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// ZapSender writes messages to the log instead of a mail gateway. It is the
// default transport; deployments swap in a real gateway behind Sender.
type ZapSender struct {
	lg *zap.Logger
}

// NewZapSender constructs a ZapSender.
func NewZapSender(lg *zap.Logger) *ZapSender {
	return &ZapSender{lg: lg}
}

// Send logs the message at info level.
func (s *ZapSender) Send(_ context.Context, to, subject, body string) error {
	s.lg.Info("notification sent",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("body", body),
	)
	return nil
}

// Service resolves recipients and composes message content.
type Service struct {
	sender     Sender
	customers  customer.Repository
	adminEmail string
}

// NewService constructs the notification service. adminEmail receives
// low-stock alerts.
func NewService(sender Sender, customers customer.Repository, adminEmail string) *Service {
	return &Service{sender: sender, customers: customers, adminEmail: adminEmail}
}

var (
	_ order.Notifier        = (*Service)(nil)
	_ inventory.AlertSender = (*Service)(nil)
)

// OrderStatusChanged sends the per-status message to the order's customer.
// The customer is resolved at delivery time; if it has been deleted in the
// meantime there is nobody to notify and the task succeeds as a no-op.
func (s *Service) OrderStatusChanged(ctx context.Context, orderID, customerID string, st order.Status) error {
	c, err := s.customers.GetByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			return nil
		}
		return errors.Wrap(err, "load customer")
	}

	subject := fmt.Sprintf("Your Order #%s - %s", orderID, st)
	return s.sender.Send(ctx, c.Email, subject, statusMessage(st))
}

// LowStockAlert notifies the admin that an item crossed its threshold.
func (s *Service) LowStockAlert(ctx context.Context, it *inventory.Item) error {
	subject := fmt.Sprintf("Low Inventory Alert: %s", it.Name)
	body := fmt.Sprintf("%s is down to %d (threshold %d).", it.Name, it.Quantity, it.LowStockThreshold)
	return s.sender.Send(ctx, s.adminEmail, subject, body)
}

// Welcome greets a newly registered customer.
func (s *Service) Welcome(ctx context.Context, c *customer.Customer) error {
	subject := fmt.Sprintf("Welcome to Cloud Kitchen, %s!", c.Name)
	return s.sender.Send(ctx, c.Email, subject, "Thanks for joining Cloud Kitchen.")
}

func statusMessage(st order.Status) string {
	switch st {
	case order.StatusPlaced:
		return "Your order has been placed."
	case order.StatusPreparing:
		return "Your order is being prepared."
	case order.StatusOutForDelivery:
		return "Your order is out for delivery."
	case order.StatusDelivered:
		return "Your order has been delivered."
	case order.StatusCancelled:
		return "Your order has been cancelled."
	default:
		return "Your order status has been updated."
	}
}

package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/cloud-kitchen/internal/domain/customer"
	"github.com/xenking/cloud-kitchen/internal/domain/inventory"
	"github.com/xenking/cloud-kitchen/internal/domain/order"
)

type recordedMessage struct {
	to, subject, body string
}

type mockSender struct {
	sent []recordedMessage
}

func (m *mockSender) Send(_ context.Context, to, subject, body string) error {
	m.sent = append(m.sent, recordedMessage{to: to, subject: subject, body: body})
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

func newService(customers ...*customer.Customer) (*Service, *mockSender) {
	byID := make(map[string]*customer.Customer, len(customers))
	for _, c := range customers {
		byID[c.ID] = c
	}
	sender := &mockSender{}
	return NewService(sender, &mockCustomerRepo{byID: byID}, "admin@cloudkitchen.local"), sender
}

func TestOrderStatusChanged_SendsToCustomer(t *testing.T) {
	svc, sender := newService(&customer.Customer{ID: "c1", Name: "Alice", Email: "alice@example.com"})

	err := svc.OrderStatusChanged(context.Background(), "o1", "c1", order.StatusOutForDelivery)
	require.NoError(t, err)

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "alice@example.com", msg.to)
	assert.Equal(t, "Your Order #o1 - out_for_delivery", msg.subject)
	assert.Equal(t, "Your order is out for delivery.", msg.body)
}

func TestOrderStatusChanged_DeletedCustomerIsNoOp(t *testing.T) {
	svc, sender := newService()

	err := svc.OrderStatusChanged(context.Background(), "o1", "gone", order.StatusDelivered)
	require.NoError(t, err)
	assert.Empty(t, sender.sent)
}

func TestStatusMessages(t *testing.T) {
	tests := []struct {
		st   order.Status
		body string
	}{
		{order.StatusPlaced, "Your order has been placed."},
		{order.StatusPreparing, "Your order is being prepared."},
		{order.StatusOutForDelivery, "Your order is out for delivery."},
		{order.StatusDelivered, "Your order has been delivered."},
		{order.StatusCancelled, "Your order has been cancelled."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.body, statusMessage(tt.st))
	}
}

func TestLowStockAlert_SendsToAdmin(t *testing.T) {
	svc, sender := newService()

	err := svc.LowStockAlert(context.Background(), &inventory.Item{
		ID:                "i1",
		Name:              "Burger",
		Quantity:          3,
		LowStockThreshold: 5,
	})
	require.NoError(t, err)

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "admin@cloudkitchen.local", msg.to)
	assert.Equal(t, "Low Inventory Alert: Burger", msg.subject)
	assert.Equal(t, "Burger is down to 3 (threshold 5).", msg.body)
}

func TestWelcome(t *testing.T) {
	svc, sender := newService()

	err := svc.Welcome(context.Background(), &customer.Customer{
		ID: "c1", Name: "Alice", Email: "alice@example.com",
	})
	require.NoError(t, err)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "alice@example.com", sender.sent[0].to)
	assert.Equal(t, "Welcome to Cloud Kitchen, Alice!", sender.sent[0].subject)
}

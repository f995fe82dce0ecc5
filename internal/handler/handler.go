// Package handler exposes the JSON HTTP API. Handlers are thin: they decode
// input, delegate to the domain, and map domain errors to status codes.
package handler

import (
	"context"
	"net/http"

	"github.com/xenking/cloud-kitchen/internal/domain/customer"
	"github.com/xenking/cloud-kitchen/internal/domain/inventory"
	"github.com/xenking/cloud-kitchen/internal/domain/order"
)

// WelcomeNotifier sends the new-customer greeting.
type WelcomeNotifier interface {
	Welcome(ctx context.Context, c *customer.Customer) error
}

// Handler holds the API's domain dependencies.
type Handler struct {
	orders    *order.Service
	customers customer.Repository
	items     inventory.Repository
	tasks     order.Scheduler
	welcome   WelcomeNotifier
}

// New constructs a Handler.
func New(
	orders *order.Service,
	customers customer.Repository,
	items inventory.Repository,
	tasks order.Scheduler,
	welcome WelcomeNotifier,
) *Handler {
	return &Handler{
		orders:    orders,
		customers: customers,
		items:     items,
		tasks:     tasks,
		welcome:   welcome,
	}
}

// Register mounts all API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /orders", h.createOrder)
	mux.HandleFunc("GET /orders", h.listOrders)
	mux.HandleFunc("GET /orders/{id}", h.getOrder)
	mux.HandleFunc("DELETE /orders/{id}", h.cancelOrder)
	mux.HandleFunc("PATCH /orders/{id}/status", h.updateOrderStatus)

	mux.HandleFunc("GET /customers", h.listCustomers)
	mux.HandleFunc("POST /customers", h.createCustomer)
	mux.HandleFunc("GET /customers/{id}", h.getCustomer)
	mux.HandleFunc("PUT /customers/{id}", h.updateCustomer)
	mux.HandleFunc("DELETE /customers/{id}", h.deleteCustomer)

	mux.HandleFunc("GET /inventory-items", h.listItems)
	mux.HandleFunc("POST /inventory-items", h.createItem)
	mux.HandleFunc("GET /inventory-items/{id}", h.getItem)
	mux.HandleFunc("PUT /inventory-items/{id}", h.updateItem)
	mux.HandleFunc("DELETE /inventory-items/{id}", h.deleteItem)
}

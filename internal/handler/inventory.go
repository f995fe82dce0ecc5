package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/cloud-kitchen/internal/domain/inventory"
)

type inventoryItemRequest struct {
	Name              string          `json:"name"`
	Quantity          int             `json:"quantity"`
	LowStockThreshold int             `json:"low_stock_threshold"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
}

type inventoryItemResponse struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Quantity          int       `json:"quantity"`
	LowStockThreshold int       `json:"low_stock_threshold"`
	LowStockAlertSent bool      `json:"low_stock_alert_sent"`
	UnitPrice         string    `json:"unit_price"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func toItemResponse(it *inventory.Item) inventoryItemResponse {
	return inventoryItemResponse{
		ID:                it.ID,
		Name:              it.Name,
		Quantity:          it.Quantity,
		LowStockThreshold: it.LowStockThreshold,
		LowStockAlertSent: it.LowStockAlertSent,
		UnitPrice:         it.UnitPrice.StringFixed(2),
		CreatedAt:         it.CreatedAt,
		UpdatedAt:         it.UpdatedAt,
	}
}

func (req *inventoryItemRequest) validate() string {
	if req.Name == "" {
		return "name is required"
	}
	if req.Quantity < 0 {
		return "quantity must not be negative"
	}
	if req.LowStockThreshold < 0 {
		return "low_stock_threshold must not be negative"
	}
	if req.UnitPrice.IsNegative() {
		return "unit_price must not be negative"
	}
	return ""
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.items.List(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	resp := make([]inventoryItemResponse, len(items))
	for i := range items {
		resp[i] = toItemResponse(&items[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	it, err := h.items.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemResponse(it))
}

func (h *Handler) createItem(w http.ResponseWriter, r *http.Request) {
	var req inventoryItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusUnprocessableEntity, msg)
		return
	}

	now := time.Now().UTC()
	it := &inventory.Item{
		ID:                uuid.New().String(),
		Name:              req.Name,
		Quantity:          req.Quantity,
		LowStockThreshold: req.LowStockThreshold,
		UnitPrice:         req.UnitPrice,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := h.items.Create(r.Context(), it); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toItemResponse(it))
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	var req inventoryItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusUnprocessableEntity, msg)
		return
	}

	it, err := h.items.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	it.Name = req.Name
	it.Quantity = req.Quantity
	it.LowStockThreshold = req.LowStockThreshold
	it.UnitPrice = req.UnitPrice
	if err := h.items.Update(r.Context(), it); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemResponse(it))
}

func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	if err := h.items.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

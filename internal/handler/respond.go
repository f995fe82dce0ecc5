package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/cloud-kitchen/internal/domain/customer"
	"github.com/xenking/cloud-kitchen/internal/domain/inventory"
	"github.com/xenking/cloud-kitchen/internal/domain/order"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("error", func(e *jx.Encoder) {
			e.Str(msg)
		})
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeDomainError maps a domain error to an HTTP response. Unknown errors
// are treated as storage failures: logged with detail, returned as a generic
// 500 so internals never leak.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := errorStatus(err)
	if status == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		msg = "Internal Server Error"
	}
	writeError(w, status, msg)
}

// errorStatus classifies a domain error. Missing-entity lookups are 404;
// business-rule rejections (out of stock, non-cancellable, bad status,
// duplicate email) are 422; structurally bad requests are 400.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, customer.ErrNotFound),
		errors.Is(err, inventory.ErrNotFound):
		return http.StatusNotFound, err.Error()

	case errors.Is(err, order.ErrEmptyItems):
		return http.StatusBadRequest, err.Error()

	case errors.Is(err, customer.ErrEmailTaken):
		return http.StatusUnprocessableEntity, err.Error()
	}

	var (
		itemNotFound *inventory.ItemNotFoundError
		outOfStock   *inventory.OutOfStockError
		badQuantity  *order.InvalidQuantityError
		badStatus    *order.InvalidStatusError
		sameStatus   *order.SameStatusError
		notCancel    *order.NotCancellableError
	)
	switch {
	case errors.As(err, &itemNotFound),
		errors.As(err, &outOfStock),
		errors.As(err, &badQuantity),
		errors.As(err, &badStatus),
		errors.As(err, &sameStatus),
		errors.As(err, &notCancel):
		return http.StatusUnprocessableEntity, err.Error()
	}

	return http.StatusInternalServerError, err.Error()
}

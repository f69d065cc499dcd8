package httpapi

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/shipping-service-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/shipping-service-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/shipping-service-go/internal/order"
	"github.com/andreasstove999/ecommerce-system/shipping-service-go/internal/shipping"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, shipping.ErrNotFound),
		errors.Is(err, catalog.ErrProductNotFound):
		return http.StatusNotFound
	case errors.Is(err, cart.ErrOutOfStock),
		errors.Is(err, catalog.ErrInsufficientStock),
		errors.Is(err, order.ErrOrderCancelled):
		return http.StatusConflict
	case errors.Is(err, shipping.ErrUnsupportedShippingType),
		errors.Is(err, shipping.ErrInvalidDueDate):
		return http.StatusUnprocessableEntity
	case errors.Is(err, cart.ErrInvalidAmount),
		errors.Is(err, cart.ErrEmptyCart),
		errors.Is(err, catalog.ErrInvalidProduct),
		errors.Is(err, catalog.ErrInvalidAmount),
		errors.Is(err, shipping.ErrInvalidStatus):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	h.writeErrorWith(w, r, err, nil)
}

// writeErrorWith adds extra fields to the error body. They are kept on
// internal errors too, where the message itself is hidden.
func (h *Handler) writeErrorWith(w http.ResponseWriter, r *http.Request, err error, extra map[string]any) {
	status := statusFor(err)
	body := map[string]any{"error": err.Error()}
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		if len(extra) == 0 {
			http.Error(w, "internal error", status)
			return
		}
		body["error"] = "internal error"
	}

	var partial *cart.PartialCommitError
	if errors.As(err, &partial) {
		body["committed"] = partial.Committed
	}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, status, body)
}

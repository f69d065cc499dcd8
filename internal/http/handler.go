package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/shipping-service-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/shipping-service-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/shipping-service-go/internal/order"
	"github.com/andreasstove999/ecommerce-system/shipping-service-go/internal/shipping"
)

type Handler struct {
	catalog  *catalog.Catalog
	shipping *shipping.Service
	logger   *zap.Logger
}

func NewHandler(c *catalog.Catalog, svc *shipping.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{catalog: c, shipping: svc, logger: logger}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type productResponse struct {
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Available int             `json:"available"`
}

func toProductResponse(p *catalog.Product) productResponse {
	return productResponse{Name: p.Name(), Price: p.Price(), Available: p.Available()}
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products := h.catalog.List()
	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

type upsertProductRequest struct {
	Price     decimal.Decimal `json:"price"`
	Available int             `json:"available"`
}

func (h *Handler) UpsertProduct(w http.ResponseWriter, r *http.Request) {
	var req upsertProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	p, err := h.catalog.Upsert(chi.URLParam(r, "name"), req.Price, req.Available)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}

type orderItem struct {
	Name   string `json:"name"`
	Amount int    `json:"amount"`
}

type placeOrderRequest struct {
	OrderID      string      `json:"orderId"`
	ShippingType string      `json:"shippingType"`
	DueDate      *time.Time  `json:"dueDate"`
	Items        []orderItem `json:"items"`
}

type placeOrderResponse struct {
	OrderID    string          `json:"orderId"`
	ShippingID string          `json:"shippingId"`
	Total      decimal.Decimal `json:"total"`
}

// PlaceOrder fills a cart from the catalog and places it as one order.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	c := cart.New()
	for _, it := range req.Items {
		p, err := h.catalog.Get(it.Name)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		if err := c.AddProduct(p, it.Amount); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	total := c.TotalPrice()

	var due time.Time
	if req.DueDate != nil {
		due = *req.DueDate
	}

	o := order.New(c, h.shipping, order.WithID(req.OrderID))
	shippingID, err := o.PlaceOrder(r.Context(), shipping.ShippingType(req.ShippingType), due)
	if err != nil {
		var extra map[string]any
		if shippingID != "" {
			// Stock is already bought and the shipment exists.
			extra = map[string]any{"orderId": o.ID(), "shippingId": shippingID}
		}
		h.writeErrorWith(w, r, err, extra)
		return
	}

	h.logger.Info("order placed",
		zap.String("order_id", o.ID()),
		zap.String("shipping_id", shippingID),
		zap.String("total", total.String()),
	)
	writeJSON(w, http.StatusCreated, placeOrderResponse{OrderID: o.ID(), ShippingID: shippingID, Total: total})
}

func (h *Handler) ListShippingTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.shipping.ListAvailableShippingTypes())
}

type createShippingRequest struct {
	ShippingType string    `json:"shippingType"`
	ProductIDs   []string  `json:"productIds"`
	OrderID      string    `json:"orderId"`
	DueDate      time.Time `json:"dueDate"`
}

func (h *Handler) CreateShipping(w http.ResponseWriter, r *http.Request) {
	var req createShippingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if req.OrderID == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	id, err := h.shipping.CreateShipping(r.Context(), shipping.ShippingType(req.ShippingType), req.ProductIDs, req.OrderID, req.DueDate)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"shippingId": id})
}

type statusResponse struct {
	ShippingID string          `json:"shippingId"`
	Status     shipping.Status `json:"status"`
}

func (h *Handler) GetShipping(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "shippingId")
	status, err := h.shipping.CheckStatus(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{ShippingID: id, Status: status})
}

func (h *Handler) CompleteShipping(w http.ResponseWriter, r *http.Request) {
	res, err := h.shipping.CompleteShipping(r.Context(), chi.URLParam(r, "shippingId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) FailShipping(w http.ResponseWriter, r *http.Request) {
	res, err := h.shipping.FailShipping(r.Context(), chi.URLParam(r, "shippingId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type batchResponse struct {
	Results []shipping.UpdateResult `json:"results"`
	Errors  []string                `json:"errors,omitempty"`
}

// ProcessBatch runs one batch. Failures of individual deliveries are
// reported next to the results; a failed poll is a server error.
func (h *Handler) ProcessBatch(w http.ResponseWriter, r *http.Request) {
	results, err := h.shipping.ProcessShippingBatch(r.Context())
	if errors.Is(err, shipping.ErrPollFailed) {
		h.writeError(w, r, fmt.Errorf("process batch: %w", err))
		return
	}
	resp := batchResponse{Results: results}
	if err != nil {
		var joined interface{ Unwrap() []error }
		if !errors.As(err, &joined) {
			h.writeError(w, r, fmt.Errorf("process batch: %w", err))
			return
		}
		for _, e := range joined.Unwrap() {
			resp.Errors = append(resp.Errors, e.Error())
		}
	}
	if resp.Results == nil {
		resp.Results = []shipping.UpdateResult{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

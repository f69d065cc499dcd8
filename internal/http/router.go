package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	r.Get("/health", h.Health)

	r.Route("/api/catalog", func(r chi.Router) {
		r.Get("/products", h.ListProducts)
		r.Put("/products/{name}", h.UpsertProduct)
	})

	r.Post("/api/orders", h.PlaceOrder)

	r.Route("/api/shipping", func(r chi.Router) {
		r.Get("/types", h.ListShippingTypes)
		r.Post("/", h.CreateShipping)
		r.Post("/batch", h.ProcessBatch)
		r.Get("/{shippingId}", h.GetShipping)
		r.Post("/{shippingId}/complete", h.CompleteShipping)
		r.Post("/{shippingId}/fail", h.FailShipping)
	})

	return r
}

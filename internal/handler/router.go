package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/zapiertracker-hub/Whopify-sub001/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса Whopify.
// Витринные маршруты открыты, административные закрыты токеном панели.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/public-config/{checkoutID}", h.PublicConfig)
		r.Post("/create-payment-intent", h.CreatePaymentIntent)
		r.Post("/create-manual-order", h.CreateManualOrder)
		r.Post("/gateway-events", h.GatewayEvent)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/checkouts", h.ListCheckouts)
			r.Post("/checkouts", h.UpsertCheckout)
			r.Delete("/checkouts/{id}", h.DeleteCheckout)

			r.Get("/settings", h.GetSettings)
			r.Post("/settings", h.UpdateSettings)

			r.Post("/verify-connection", h.VerifyConnection)
			r.Get("/analytics", h.Analytics)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}

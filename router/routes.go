package router

import (
	"github.com/go-chi/chi/v5"
	"github.com/mstgnz/hummpay/handler"
	"github.com/mstgnz/hummpay/infra/middle"
)

// Handlers groups the HTTP handlers served by the plugin.
type Handlers struct {
	Checkout *handler.CheckoutHandler
	Config   *handler.ConfigHandler
	Payment  *handler.PaymentHandler
	Logs     *handler.LogsHandler
	Health   *handler.HealthHandler
}

// Routes registers all routes on r. Admin routes require adminKey as a bearer token.
func Routes(r chi.Router, h Handlers, adminKey string) {
	r.Get("/health", h.Health.CheckHealth)

	// Customer redirects from the provider, no auth.
	r.Route("/humm", func(r chi.Router) {
		r.Post("/checkout/completed/{token}", h.Checkout.Completed)
		r.Get("/checkout/completed/{token}", h.Checkout.Cancelled)
		r.Post("/confirm", h.Checkout.LegacyConfirm)
		r.Get("/cancel", h.Checkout.LegacyCancel)
	})

	r.Get("/stores/{storeID}/humm/checkout-options", h.Payment.CheckoutOptions)

	r.Route("/admin", func(r chi.Router) {
		r.Use(middle.AdminAuthMiddleware(adminKey))

		r.Route("/stores/{storeID}/humm", func(r chi.Router) {
			r.Get("/settings", h.Config.GetSettings)
			r.Put("/settings", h.Config.UpdateSettings)
			r.Delete("/settings", h.Config.DeleteSettings)
			r.Get("/transactions/{trackingID}", h.Payment.GetTransaction)
		})

		r.Route("/orders/{orderID}/humm", func(r chi.Router) {
			r.Post("/payment", h.Payment.ProcessPayment)
			r.Get("/payment", h.Payment.CanRetryPayment)
			r.Post("/refund", h.Payment.RefundPayment)
		})

		r.Get("/humm/calls", h.Logs.ListCalls)
	})
}

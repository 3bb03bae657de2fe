// Package handler provides the HTTP handlers of the Humm payment service.
//
// Handlers are thin: they parse the request, obtain a store bound
// *humm.Service from the factory and render its result. Provider and
// validation details are logged server side; customers only ever see the
// generic invalid payment notice.
//
// # Checkout Callbacks
//
// Humm sends the customer's browser back to the return URL built when the
// payment was initiated. The path carries the customer GUID:
//
//	checkout := handler.NewCheckoutHandler(factory, storeID, appURL)
//
//	r.Post("/humm/checkout/completed/{token}", checkout.Completed)
//	r.Get("/humm/checkout/completed/{token}", checkout.Cancelled)
//	r.Post("/humm/confirm", checkout.LegacyConfirm) // ?token=
//	r.Get("/humm/cancel", checkout.LegacyCancel)    // ?token=
//
// The confirmation is a form post:
//
//	success=true&flexiTrackingId=F1&partnerTrackingId=P1&paymentAmount=120.50&paymentDate=2024-03-02
//
// and the cancellation a query string:
//
//	?accId=ACC&orderId=P1
//
// Every callback answers with a 302 to the storefront: the completed page,
// the order details page (with ?notice=Plugins.Payments.Humm.InvalidPayment
// when the payment failed) or the home page.
//
// # Store Settings
//
// The ConfigHandler is the plugin configuration page of a store:
//
//	GET /admin/stores/{storeID}/humm/settings
//	PUT /admin/stores/{storeID}/humm/settings
//	DELETE /admin/stores/{storeID}/humm/settings
//
// Secrets are returned masked; sending the mask back keeps the stored
// value. A PUT requests a new session with the submitted credentials and
// only persists the settings when that succeeds.
//
// # Payments
//
// The PaymentHandler covers the order side:
//
//	POST /admin/orders/{orderID}/humm/payment   start the checkout
//	GET  /admin/orders/{orderID}/humm/payment   may the customer retry
//	POST /admin/orders/{orderID}/humm/refund    {"amount": "20.00"}
//	GET  /admin/stores/{storeID}/humm/transactions/{trackingID}
//	GET  /stores/{storeID}/humm/checkout-options?subtotal=100
//
// # Operations
//
//	GET /health               database, Redis and per store configured state
//	GET /admin/humm/calls     recent provider calls from OpenSearch
package handler

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mstgnz/hummpay/infra/response"
	"github.com/mstgnz/hummpay/infra/store"
	"github.com/mstgnz/hummpay/provider"
	"github.com/shopspring/decimal"
)

// OrderReader loads platform orders.
type OrderReader interface {
	GetOrderByID(ctx context.Context, id int64) (*store.Order, error)
}

// PaymentHandler exposes the payment operations to the storefront and back office.
type PaymentHandler struct {
	services ServiceFactory
	orders   OrderReader
	now      func() time.Time
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(services ServiceFactory, orders OrderReader) *PaymentHandler {
	return &PaymentHandler{services: services, orders: orders, now: time.Now}
}

// RefundRequest is the body of a refund call.
type RefundRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// ProcessPayment handles POST /admin/orders/{orderID}/humm/payment. It starts
// the provider checkout for a placed order and returns where to send the customer.
func (h *PaymentHandler) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	order, ok := h.order(w, r)
	if !ok {
		return
	}
	svc, err := h.services.ForStore(r.Context(), order.StoreID)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to load payment settings", err)
		return
	}

	result, err := svc.PostProcessPayment(r.Context(), order)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.Success(w, http.StatusOK, "Payment processed", map[string]any{
		"redirect_url": result.RedirectURL,
		"notice":       result.Notice,
		"errors":       result.Errors,
	})
}

// CanRetryPayment handles GET /admin/orders/{orderID}/humm/payment.
func (h *PaymentHandler) CanRetryPayment(w http.ResponseWriter, r *http.Request) {
	order, ok := h.order(w, r)
	if !ok {
		return
	}
	svc, err := h.services.ForStore(r.Context(), order.StoreID)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to load payment settings", err)
		return
	}

	allowed, err := svc.CanRePostProcessPayment(order, h.now().UTC())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.Success(w, http.StatusOK, "", map[string]any{"can_retry": allowed})
}

// RefundPayment handles POST /admin/orders/{orderID}/humm/refund.
func (h *PaymentHandler) RefundPayment(w http.ResponseWriter, r *http.Request) {
	order, ok := h.order(w, r)
	if !ok {
		return
	}

	var req RefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	svc, err := h.services.ForStore(r.Context(), order.StoreID)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to load payment settings", err)
		return
	}

	status, errs, err := svc.Refund(r.Context(), order, req.Amount)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if len(errs) > 0 {
		response.Errors(w, http.StatusUnprocessableEntity, "Refund failed", errs)
		return
	}
	response.Success(w, http.StatusOK, "Refund processed", map[string]any{
		"order_id":       order.ID,
		"payment_status": status,
	})
}

// GetTransaction handles GET /admin/stores/{storeID}/humm/transactions/{trackingID}.
func (h *PaymentHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	storeID, err := pathID(r, "storeID")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid store id", err)
		return
	}
	svc, err := h.services.ForStore(r.Context(), storeID)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to load payment settings", err)
		return
	}

	result, err := svc.GetTransactionByID(r.Context(), chi.URLParam(r, "trackingID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !result.Success {
		response.Errors(w, http.StatusBadGateway, "Failed to fetch the transaction", result.Errors)
		return
	}

	data := map[string]any{"transaction": result.Transaction}
	if tx := result.Transaction; tx != nil && tx.Status != nil {
		data["status"] = tx.Status.String()
	}
	response.Success(w, http.StatusOK, "", data)
}

// CheckoutOptions handles GET /stores/{storeID}/humm/checkout-options?subtotal=.
func (h *PaymentHandler) CheckoutOptions(w http.ResponseWriter, r *http.Request) {
	storeID, err := pathID(r, "storeID")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid store id", err)
		return
	}

	subtotal := decimal.Zero
	if raw := strings.TrimSpace(r.URL.Query().Get("subtotal")); raw != "" {
		if subtotal, err = decimal.NewFromString(raw); err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid subtotal", err)
			return
		}
	}

	svc, err := h.services.ForStore(r.Context(), storeID)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to load payment settings", err)
		return
	}
	response.Success(w, http.StatusOK, "", map[string]any{
		"hide_payment_method": svc.HidePaymentMethod(),
		"additional_fee":      svc.AdditionalHandlingFee(subtotal),
	})
}

func (h *PaymentHandler) order(w http.ResponseWriter, r *http.Request) (*store.Order, bool) {
	orderID, err := pathID(r, "orderID")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid order id", err)
		return nil, false
	}
	order, err := h.orders.GetOrderByID(r.Context(), orderID)
	switch {
	case errors.Is(err, store.ErrNotFound) || (err == nil && order.Deleted):
		response.Error(w, http.StatusNotFound, "Order not found", nil)
		return nil, false
	case err != nil:
		response.Error(w, http.StatusInternalServerError, "Failed to load order", err)
		return nil, false
	}
	return order, true
}

func writeServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, provider.ErrInvalidArgument) {
		response.Error(w, http.StatusBadRequest, "Invalid request", err)
		return
	}
	response.Error(w, http.StatusInternalServerError, "Payment operation failed", err)
}

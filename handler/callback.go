package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mstgnz/hummpay/infra/logger"
	"github.com/mstgnz/hummpay/infra/response"
	"github.com/mstgnz/hummpay/provider/humm"
)

// ServiceFactory returns the Humm service bound to a store.
type ServiceFactory interface {
	ForStore(ctx context.Context, storeID int64) (*humm.Service, error)
}

var _ ServiceFactory = (*humm.Factory)(nil)

// CheckoutHandler handles the customer redirects coming back from Humm.
type CheckoutHandler struct {
	services ServiceFactory
	storeID  int64
	baseURL  string
}

// NewCheckoutHandler creates the callback handler. Customers are redirected
// to pages under baseURL.
func NewCheckoutHandler(services ServiceFactory, storeID int64, baseURL string) *CheckoutHandler {
	return &CheckoutHandler{
		services: services,
		storeID:  storeID,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// Completed handles POST /humm/checkout/completed/{token}.
func (h *CheckoutHandler) Completed(w http.ResponseWriter, r *http.Request) {
	h.confirm(w, r, chi.URLParam(r, "token"))
}

// Cancelled handles GET /humm/checkout/completed/{token}?accId=&orderId=.
func (h *CheckoutHandler) Cancelled(w http.ResponseWriter, r *http.Request) {
	h.cancel(w, r, chi.URLParam(r, "token"))
}

// LegacyConfirm handles POST /humm/confirm?token=.
func (h *CheckoutHandler) LegacyConfirm(w http.ResponseWriter, r *http.Request) {
	h.confirm(w, r, r.URL.Query().Get("token"))
}

// LegacyCancel handles GET /humm/cancel?token=.
func (h *CheckoutHandler) LegacyCancel(w http.ResponseWriter, r *http.Request) {
	h.cancel(w, r, r.URL.Query().Get("token"))
}

func (h *CheckoutHandler) confirm(w http.ResponseWriter, r *http.Request, rawToken string) {
	token, ok := h.token(w, r, rawToken)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		h.rejectPayload(w, r, err)
		return
	}
	req, err := humm.ParseConfirmPaymentForm(r.Form)
	if err != nil {
		h.rejectPayload(w, r, err)
		return
	}

	svc, err := h.services.ForStore(r.Context(), h.storeID)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to load payment settings", err)
		return
	}
	h.redirect(w, r, svc.ConfirmCheckout(r.Context(), token, req))
}

func (h *CheckoutHandler) cancel(w http.ResponseWriter, r *http.Request, rawToken string) {
	token, ok := h.token(w, r, rawToken)
	if !ok {
		return
	}
	query := r.URL.Query()
	req := humm.CancelRequest{AccID: query.Get("accId"), OrderID: query.Get("orderId")}

	svc, err := h.services.ForStore(r.Context(), h.storeID)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to load payment settings", err)
		return
	}
	h.redirect(w, r, svc.CancelCheckout(r.Context(), token, req))
}

func (h *CheckoutHandler) token(w http.ResponseWriter, r *http.Request, raw string) (uuid.UUID, bool) {
	token, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		logger.Warn(fmt.Sprintf("%s: callback with malformed customer token %q", humm.SystemName, raw))
		http.Redirect(w, r, h.homeURL(), http.StatusFound)
		return uuid.Nil, false
	}
	return token, true
}

func (h *CheckoutHandler) rejectPayload(w http.ResponseWriter, r *http.Request, err error) {
	logger.Warn(fmt.Sprintf("%s: callback with malformed payload: %v", humm.SystemName, err))
	http.Redirect(w, r, h.homeURL(), http.StatusFound)
}

// redirect renders an outcome. Only the notice key reaches the customer.
func (h *CheckoutHandler) redirect(w http.ResponseWriter, r *http.Request, outcome humm.CheckoutOutcome) {
	target := h.homeURL()
	switch outcome.Action {
	case humm.ActionCompleted:
		if outcome.Order != nil {
			target = fmt.Sprintf("%s/checkout/completed/%d", h.baseURL, outcome.Order.ID)
		}
	case humm.ActionOrderDetails:
		if outcome.Order != nil {
			target = fmt.Sprintf("%s/orders/%d", h.baseURL, outcome.Order.ID)
		}
	}
	if outcome.Notice != "" {
		target += "?" + url.Values{"notice": {outcome.Notice}}.Encode()
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *CheckoutHandler) homeURL() string {
	return h.baseURL + "/"
}

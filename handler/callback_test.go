package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/mstgnz/hummpay/infra/store"
	"github.com/mstgnz/hummpay/provider/humm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shopURL = "https://shop.example.com/"

func checkoutRouter(h *CheckoutHandler) http.Handler {
	r := chi.NewRouter()
	r.Post("/humm/checkout/completed/{token}", h.Completed)
	r.Get("/humm/checkout/completed/{token}", h.Cancelled)
	r.Post("/humm/confirm", h.LegacyConfirm)
	r.Get("/humm/cancel", h.LegacyCancel)
	return r
}

func postForm(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// pendingOrder seeds a configured store with an order waiting on tracking id P1.
func pendingOrder(t *testing.T, env *handlerEnv) seededOrder {
	t.Helper()
	env.configure(t, 1)
	seed := env.seedOrder(t, 1)
	require.NoError(t, env.sqlite.SaveAttribute(context.Background(), store.KeyGroupOrder, seed.order.ID, humm.TrackingIDAttribute, "P1", 0))
	return seed
}

func TestCheckoutHandler_Completed(t *testing.T) {
	env := newHandlerEnv(t)
	env.stub.respond(detailsPath, http.StatusOK, `{"success":true,"status":"PAYMENT_DONE","paymentAmount":120.5}`)
	seed := pendingOrder(t, env)
	router := checkoutRouter(NewCheckoutHandler(env.factory, 1, shopURL))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, postForm("/humm/checkout/completed/"+seed.customer.CustomerGUID.String(), url.Values{
		"success":           {"true"},
		"partnerTrackingId": {"P1"},
		"paymentAmount":     {"120.50"},
	}))

	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, fmt.Sprintf("https://shop.example.com/checkout/completed/%d", seed.order.ID), rr.Header().Get("Location"))

	order, err := env.sqlite.GetOrderByID(context.Background(), seed.order.ID)
	require.NoError(t, err)
	assert.Equal(t, store.PaymentPaid, order.PaymentStatus)
}

func TestCheckoutHandler_FailedPaymentCarriesNotice(t *testing.T) {
	env := newHandlerEnv(t)
	env.stub.respond(detailsPath, http.StatusOK, `{"success":true,"status":"PAYMENT_CANCELLED"}`)
	seed := pendingOrder(t, env)
	router := checkoutRouter(NewCheckoutHandler(env.factory, 1, shopURL))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, postForm("/humm/confirm?token="+seed.customer.CustomerGUID.String(), url.Values{
		"flexiTrackingId": {"P1"},
	}))

	assert.Equal(t, http.StatusFound, rr.Code)
	location, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("/orders/%d", seed.order.ID), location.Path)
	assert.Equal(t, humm.NoticeInvalidPayment, location.Query().Get("notice"))
}

func TestCheckoutHandler_Cancelled(t *testing.T) {
	env := newHandlerEnv(t)
	seed := pendingOrder(t, env)
	router := checkoutRouter(NewCheckoutHandler(env.factory, 1, shopURL))

	for _, target := range []string{
		"/humm/checkout/completed/" + seed.customer.CustomerGUID.String() + "?accId=ACC&orderId=P1",
		"/humm/cancel?token=" + seed.customer.CustomerGUID.String() + "&orderId=P1",
	} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusFound, rr.Code, target)
		assert.Equal(t, fmt.Sprintf("https://shop.example.com/orders/%d", seed.order.ID), rr.Header().Get("Location"), target)
	}

	order, err := env.sqlite.GetOrderByID(context.Background(), seed.order.ID)
	require.NoError(t, err)
	assert.Equal(t, store.OrderCancelled, order.OrderStatus)
	assert.Equal(t, 0, env.stub.hitCount(detailsPath))
}

func TestCheckoutHandler_RejectsBadInput(t *testing.T) {
	env := newHandlerEnv(t)
	seed := pendingOrder(t, env)
	router := checkoutRouter(NewCheckoutHandler(env.factory, 1, shopURL))
	token := seed.customer.CustomerGUID.String()

	tests := []struct {
		name string
		req  *http.Request
	}{
		{name: "malformed_token", req: postForm("/humm/checkout/completed/not-a-guid", url.Values{"flexiTrackingId": {"P1"}})},
		{name: "missing_legacy_token", req: httptest.NewRequest(http.MethodGet, "/humm/cancel?orderId=P1", nil)},
		{name: "bad_success_flag", req: postForm("/humm/checkout/completed/"+token, url.Values{"success": {"maybe"}})},
		{name: "bad_amount", req: postForm("/humm/checkout/completed/"+token, url.Values{"flexiTrackingId": {"P1"}, "paymentAmount": {"lots"}})},
		{name: "unknown_tracking_id", req: postForm("/humm/checkout/completed/"+token, url.Values{"flexiTrackingId": {"NOPE"}})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, tt.req)
			assert.Equal(t, http.StatusFound, rr.Code)
			assert.Equal(t, shopURL, rr.Header().Get("Location"))
		})
	}
	assert.Equal(t, 0, env.stub.hitCount(detailsPath))
}

type failingFactory struct{}

func (failingFactory) ForStore(context.Context, int64) (*humm.Service, error) {
	return nil, errors.New("settings unavailable")
}

func TestCheckoutHandler_SettingsFailure(t *testing.T) {
	router := checkoutRouter(NewCheckoutHandler(failingFactory{}, 1, shopURL))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/humm/cancel?token=6f1c5a0e-8d2b-4d6e-9a77-0c2b5a1f4e11", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

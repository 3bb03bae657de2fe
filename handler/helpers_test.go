package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mstgnz/hummpay/infra/config"
	"github.com/mstgnz/hummpay/infra/response"
	"github.com/mstgnz/hummpay/infra/store"
	"github.com/mstgnz/hummpay/provider"
	"github.com/mstgnz/hummpay/provider/humm"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const (
	tokenPath    = "/oauth2/token"
	initiatePath = "/services/apexrest/initiateProcess"
	detailsPath  = "/services/apexrest/getPaymentDetails"
	refundPath   = "/services/apexrest/RefundPayment"
)

// providerStub answers provider calls with canned bodies per path.
type providerStub struct {
	server    *httptest.Server
	mu        sync.Mutex
	responses map[string]string
	statuses  map[string]int
	hits      map[string]int
}

func newProviderStub(t *testing.T) *providerStub {
	t.Helper()
	p := &providerStub{responses: map[string]string{}, statuses: map[string]int{}, hits: map[string]int{}}
	p.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		p.hits[r.URL.Path]++
		body, ok := p.responses[r.URL.Path]
		status := p.statuses[r.URL.Path]
		p.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if status == 0 {
			status = http.StatusOK
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(p.server.Close)
	return p
}

func (p *providerStub) respond(path string, status int, body string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses[path] = body
	p.statuses[path] = status
}

func (p *providerStub) hitCount(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hits[path]
}

type handlerEnv struct {
	stub    *providerStub
	storage *config.SQLiteStorage
	sqlite  *store.SQLite
	repo    *config.CachedSettings
	factory *humm.Factory
}

func newHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()
	path := filepath.Join(t.TempDir(), "handler.db")
	db, err := config.OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	storage, err := config.NewSQLiteStorage(db, path)
	require.NoError(t, err)
	platform, err := store.NewSQLite(db)
	require.NoError(t, err)

	stub := newProviderStub(t)
	repo := config.NewCachedSettings(storage, nil, 0)
	transport := provider.NewProviderHTTPClient(provider.HTTPClientConfig{Timeout: 2 * time.Second})
	factory := humm.NewFactory(transport, repo, platform, humm.ServiceOptions{CallbackBaseURL: "https://shop.example.com"},
		humm.WithTokenEndpoints(stub.server.URL+tokenPath, stub.server.URL+tokenPath))

	return &handlerEnv{stub: stub, storage: storage, sqlite: platform, repo: repo, factory: factory}
}

// configure stores sandbox settings with a live session on the stub.
func (e *handlerEnv) configure(t *testing.T, storeID int64) config.Settings {
	t.Helper()
	s := config.DefaultSettings(storeID)
	s.Sandbox = config.Credentials{AccountID: "ACC", ClientID: "cid", ClientSecret: "secret", RefreshToken: "rt"}
	s.AccessToken = "T0"
	s.InstanceURL = e.stub.server.URL
	require.NoError(t, e.repo.Save(context.Background(), s))
	return s
}

type seededOrder struct {
	customer *store.Customer
	order    *store.Order
}

func (e *handlerEnv) seedOrder(t *testing.T, storeID int64) seededOrder {
	t.Helper()
	ctx := context.Background()
	customer := &store.Customer{Username: "jo", Email: "jo@example.com", Active: true}
	require.NoError(t, e.sqlite.CreateCustomer(ctx, customer))
	address := &store.Address{FirstName: "Jo", PhoneNumber: "0400000000"}
	require.NoError(t, e.sqlite.CreateAddress(ctx, address))
	order := &store.Order{
		StoreID:           storeID,
		CustomerID:        customer.ID,
		ShippingAddressID: address.ID,
		OrderTotal:        decimal.RequireFromString("120.50"),
		CreatedOnUTC:      time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, e.sqlite.CreateOrder(ctx, order))
	return seededOrder{customer: customer, order: order}
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var resp response.Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

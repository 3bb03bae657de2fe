package humm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mstgnz/hummpay/infra/config"
	"github.com/mstgnz/hummpay/infra/store"
	"github.com/mstgnz/hummpay/provider"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeCall struct {
	Path  string
	Query url.Values
	Auth  string
	Body  map[string]any
}

type fakeResponse struct {
	status int
	body   string
}

// fakeHumm stands in for both the token endpoints and the instance API.
type fakeHumm struct {
	server    *httptest.Server
	mu        sync.Mutex
	calls     []fakeCall
	responses map[string]fakeResponse
}

const (
	sandboxTokenPath    = "/sandbox/oauth2/token"
	productionTokenPath = "/production/oauth2/token"
)

func newFakeHumm(t *testing.T) *fakeHumm {
	t.Helper()
	f := &fakeHumm{responses: map[string]fakeResponse{}}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		call := fakeCall{Path: r.URL.Path, Query: r.URL.Query(), Auth: r.Header.Get("Authorization")}
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &call.Body)
		}

		f.mu.Lock()
		f.calls = append(f.calls, call)
		resp, ok := f.responses[r.URL.Path]
		f.mu.Unlock()

		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`[{"error":"NOT_FOUND","error_description":"no route"}]`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.status)
		_, _ = w.Write([]byte(resp.body))
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeHumm) respond(path string, status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[path] = fakeResponse{status: status, body: body}
}

func (f *fakeHumm) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeHumm) lastCall(t *testing.T) fakeCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.calls, "expected at least one provider call")
	return f.calls[len(f.calls)-1]
}

type testEnv struct {
	fake      *fakeHumm
	db        *store.SQLite
	repo      *config.CachedSettings
	transport *provider.ProviderHTTPClient
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hummpay.db")
	db, err := config.OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	storage, err := config.NewSQLiteStorage(db, path)
	require.NoError(t, err)
	platform, err := store.NewSQLite(db)
	require.NoError(t, err)

	return &testEnv{
		fake:      newFakeHumm(t),
		db:        platform,
		repo:      config.NewCachedSettings(storage, nil, 0),
		transport: provider.NewProviderHTTPClient(provider.HTTPClientConfig{Timeout: 2 * time.Second}),
	}
}

// configuredSettings returns sandbox settings with a live session on the fake.
func (e *testEnv) configuredSettings() config.Settings {
	s := config.DefaultSettings(1)
	s.Sandbox = config.Credentials{AccountID: "ACC-SB", ClientID: "cid", ClientSecret: "secret", RefreshToken: "rt"}
	s.Production = config.Credentials{AccountID: "ACC-PR", ClientID: "pcid", ClientSecret: "psecret", RefreshToken: "prt"}
	s.AccessToken = "T0"
	s.InstanceURL = e.fake.server.URL
	s.LogIpnErrors = true
	return s
}

func (e *testEnv) factory(opts ServiceOptions) *Factory {
	if opts.CallbackBaseURL == "" {
		opts.CallbackBaseURL = "https://shop.example.com/"
	}
	return NewFactory(e.transport, e.repo, e.db, opts,
		WithTokenEndpoints(e.fake.server.URL+sandboxTokenPath, e.fake.server.URL+productionTokenPath))
}

func (e *testEnv) service(settings config.Settings, opts ServiceOptions) *Service {
	return e.factory(opts).ForSettings(settings)
}

type seeded struct {
	customer *store.Customer
	address  *store.Address
	order    *store.Order
}

// seedOrder creates a customer with a shipping address and a pending order.
func (e *testEnv) seedOrder(t *testing.T, address *store.Address) seeded {
	t.Helper()
	ctx := context.Background()

	customer := &store.Customer{Username: "jo", Email: "jo@example.com", Active: true}
	require.NoError(t, e.db.CreateCustomer(ctx, customer))

	order := &store.Order{
		StoreID:      1,
		CustomerID:   customer.ID,
		OrderTotal:   decimal.RequireFromString("120.50"),
		CreatedOnUTC: time.Date(2024, 3, 1, 23, 30, 0, 0, time.UTC),
	}
	if address != nil {
		require.NoError(t, e.db.CreateAddress(ctx, address))
		order.ShippingAddressID = address.ID
	}
	require.NoError(t, e.db.CreateOrder(ctx, order))
	return seeded{customer: customer, address: address, order: order}
}

func defaultAddress() *store.Address {
	return &store.Address{FirstName: "Jo", Email: "ship@example.com", PhoneNumber: "0400000000"}
}

package opensearch

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/mstgnz/hummpay/infra/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
}

// fakeOpenSearch answers the handful of endpoints the client touches.
type fakeOpenSearch struct {
	mu       sync.Mutex
	requests []recordedRequest
	indices  map[string]bool
	hits     []CallLog
	server   *httptest.Server
}

func newFakeOpenSearch(t *testing.T) *fakeOpenSearch {
	t.Helper()
	f := &fakeOpenSearch{indices: map[string]bool{}}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeOpenSearch) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Body: string(body)})
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	segments := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case r.URL.Path == "/":
		_, _ = w.Write([]byte(`{"version":{"number":"2.11.0","distribution":"opensearch"}}`))
	case r.Method == http.MethodHead && len(segments) == 1:
		f.mu.Lock()
		exists := f.indices[segments[0]]
		f.mu.Unlock()
		if !exists {
			w.WriteHeader(http.StatusNotFound)
		}
	case r.Method == http.MethodPut && len(segments) == 1:
		f.mu.Lock()
		f.indices[segments[0]] = true
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"acknowledged":true}`))
	case len(segments) == 2 && segments[1] == "_doc":
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	case len(segments) == 2 && segments[1] == "_search":
		type hit struct {
			Source CallLog `json:"_source"`
		}
		var resp struct {
			Hits struct {
				Hits []hit `json:"hits"`
			} `json:"hits"`
		}
		f.mu.Lock()
		for _, h := range f.hits {
			resp.Hits.Hits = append(resp.Hits.Hits, hit{Source: h})
		}
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(resp)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeOpenSearch) recorded(method, path string) []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedRequest
	for _, r := range f.requests {
		if r.Method == method && r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.AppConfig
		enabled bool
	}{
		{
			name:    "disabled",
			cfg:     &config.AppConfig{OpenSearchURL: "http://localhost:9200"},
			enabled: false,
		},
		{
			name:    "with_auth",
			cfg:     &config.AppConfig{OpenSearchURL: "http://localhost:9200", OpenSearchUser: "admin", OpenSearchPass: "admin"},
			enabled: false,
		},
		{
			name:    "empty_url",
			cfg:     &config.AppConfig{},
			enabled: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.cfg)
			require.NoError(t, err)
			require.NotNil(t, client)
			assert.NotNil(t, client.GetClient())
			assert.Equal(t, tt.enabled, client.IsEnabled())
		})
	}
}

func TestNewClient_CreatesMissingIndices(t *testing.T) {
	fake := newFakeOpenSearch(t)
	fake.indices[SystemLogIndex] = true

	client, err := NewClient(&config.AppConfig{OpenSearchURL: fake.server.URL, EnableOpenSearch: true})
	require.NoError(t, err)
	assert.True(t, client.IsEnabled())

	assert.Empty(t, fake.recorded(http.MethodPut, "/"+SystemLogIndex))
	created := fake.recorded(http.MethodPut, "/"+CallLogIndex)
	require.Len(t, created, 1)
	assert.Contains(t, created[0].Body, `"operation"`)
}

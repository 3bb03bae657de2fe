package middle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("success"))
})

func TestAdminAuthMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		apiKey         string
		header         string
		expectedStatus int
	}{
		{name: "valid_key", apiKey: "secret", header: "Bearer secret", expectedStatus: http.StatusOK},
		{name: "wrong_key", apiKey: "secret", header: "Bearer nope", expectedStatus: http.StatusUnauthorized},
		{name: "missing_header", apiKey: "secret", header: "", expectedStatus: http.StatusUnauthorized},
		{name: "basic_scheme", apiKey: "secret", header: "Basic secret", expectedStatus: http.StatusUnauthorized},
		{name: "key_not_configured", apiKey: "", header: "Bearer ", expectedStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			AdminAuthMiddleware(tt.apiKey)(okHandler).ServeHTTP(rr, req)
			assert.Equal(t, tt.expectedStatus, rr.Code)
		})
	}
}

func TestRateLimiter_Memory(t *testing.T) {
	rl := NewRateLimiter(2, nil)
	ctx := context.Background()

	assert.True(t, rl.Allow(ctx, "192.168.1.1"))
	assert.True(t, rl.Allow(ctx, "192.168.1.1"))
	assert.False(t, rl.Allow(ctx, "192.168.1.1"))
	assert.True(t, rl.Allow(ctx, "192.168.1.2"))

	// a new window starts after the old one expired
	assert.True(t, rl.allowMemory("192.168.1.1", time.Now().Add(2*time.Minute)))

	rl.evict(time.Now().Add(10 * time.Minute))
	assert.Empty(t, rl.visitors)
}

func TestRateLimiter_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	rl := NewRateLimiter(2, client)
	ctx := context.Background()

	assert.True(t, rl.Allow(ctx, "10.0.0.1"))
	assert.True(t, rl.Allow(ctx, "10.0.0.1"))
	assert.False(t, rl.Allow(ctx, "10.0.0.1"))
	assert.True(t, mr.TTL("humm:ratelimit:10.0.0.1") > 0)

	mr.FastForward(time.Minute + time.Second)
	assert.True(t, rl.Allow(ctx, "10.0.0.1"))

	// the in-memory counter takes over when Redis is gone
	mr.Close()
	assert.True(t, rl.Allow(ctx, "10.0.0.1"))
}

func TestRateLimitMiddleware(t *testing.T) {
	handler := RateLimitMiddleware(NewRateLimiter(1, nil))(okHandler)

	req1 := httptest.NewRequest(http.MethodGet, "/test", nil)
	req1.RemoteAddr = "192.168.1.1:12345"
	rr1 := httptest.NewRecorder()
	handler.ServeHTTP(rr1, req1)
	assert.Equal(t, http.StatusOK, rr1.Code)

	req2 := httptest.NewRequest(http.MethodGet, "/test", nil)
	req2.RemoteAddr = "192.168.1.1:12346"
	rr2 := httptest.NewRecorder()
	handler.ServeHTTP(rr2, req2)
	assert.Equal(t, http.StatusTooManyRequests, rr2.Code)
}

func TestRateLimitMiddleware_ForwardedForDoesNotResetLimit(t *testing.T) {
	handler := RateLimitMiddleware(NewRateLimiter(1, nil))(okHandler)

	codes := make([]int, 0, 3)
	for _, spoofed := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		req.Header.Set("X-Forwarded-For", spoofed)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
}

func TestRateLimitMiddleware_BehindRealIP(t *testing.T) {
	handler := middleware.RealIP(RateLimitMiddleware(NewRateLimiter(1, nil))(okHandler))

	for _, tc := range []struct {
		client string
		want   int
	}{
		{"10.0.0.1", http.StatusOK},
		{"10.0.0.1", http.StatusTooManyRequests},
		{"10.0.0.2", http.StatusOK},
	} {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = "172.16.0.1:443"
		req.Header.Set("X-Real-IP", tc.client)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, tc.want, rr.Code, tc.client)
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		expected   string
	}{
		{name: "forwarded_for_ignored", headers: map[string]string{"X-Forwarded-For": "1.1.1.1, 2.2.2.2"}, remoteAddr: "3.3.3.3:1", expected: "3.3.3.3"},
		{name: "real_ip_ignored", headers: map[string]string{"X-Real-IP": "4.4.4.4"}, remoteAddr: "3.3.3.3:1", expected: "3.3.3.3"},
		{name: "remote_addr", remoteAddr: "3.3.3.3:1", expected: "3.3.3.3"},
		{name: "remote_addr_without_port", remoteAddr: "5.5.5.5", expected: "5.5.5.5"},
		{name: "ipv6", remoteAddr: "[2001:db8::1]:443", expected: "2001:db8::1"},
		{name: "ipv6_localhost", remoteAddr: "[::1]:8080", expected: "127.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.expected, GetClientIP(req))
		})
	}
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	rr := httptest.NewRecorder()
	SecurityHeadersMiddleware()(okHandler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", rr.Header().Get("Referrer-Policy"))
}

func TestRequestValidationMiddleware(t *testing.T) {
	handler := RequestValidationMiddleware("/humm/")(okHandler)

	tests := []struct {
		name           string
		method         string
		path           string
		contentType    string
		contentLength  int64
		expectedStatus int
	}{
		{name: "json_admin_put", method: http.MethodPut, path: "/admin/stores/1/humm/settings", contentType: "application/json", contentLength: 9, expectedStatus: http.StatusOK},
		{name: "form_callback", method: http.MethodPost, path: "/humm/checkout/completed/x", contentType: "application/x-www-form-urlencoded", contentLength: 9, expectedStatus: http.StatusOK},
		{name: "callback_without_type", method: http.MethodPost, path: "/humm/confirm", contentLength: 9, expectedStatus: http.StatusOK},
		{name: "json_callback", method: http.MethodPost, path: "/humm/confirm", contentType: "application/json", contentLength: 9, expectedStatus: http.StatusUnsupportedMediaType},
		{name: "form_admin", method: http.MethodPost, path: "/admin/orders/1/humm/refund", contentType: "application/x-www-form-urlencoded", contentLength: 9, expectedStatus: http.StatusUnsupportedMediaType},
		{name: "admin_without_type", method: http.MethodPost, path: "/admin/orders/1/humm/refund", contentLength: 9, expectedStatus: http.StatusBadRequest},
		{name: "get_without_type", method: http.MethodGet, path: "/health", expectedStatus: http.StatusOK},
		{name: "too_large", method: http.MethodPost, path: "/admin/x", contentType: "application/json", contentLength: 2 << 20, expectedStatus: http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader("test body"))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			req.ContentLength = tt.contentLength

			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			assert.Equal(t, tt.expectedStatus, rr.Code)
		})
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	handler.ServeHTTP(rr, req)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rr.Header().Get(RequestIDHeader))

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, seen)
	assert.NotEqual(t, "abc-123", seen)
	assert.Equal(t, seen, rr.Header().Get(RequestIDHeader))

	assert.Empty(t, GetRequestID(context.Background()))
}

func TestRequestLoggingMiddleware(t *testing.T) {
	r := chi.NewRouter()
	r.Use(RequestIDMiddleware(), RequestLoggingMiddleware())
	r.Get("/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/orders/7", nil))
	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.Equal(t, "short and stout", rr.Body.String())
}

func TestStatusRecorder(t *testing.T) {
	rr := httptest.NewRecorder()
	rec := newStatusRecorder(rr)
	assert.Equal(t, http.StatusOK, rec.statusCode)

	rec.WriteHeader(http.StatusCreated)
	n, err := rec.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, http.StatusCreated, rec.statusCode)
	assert.Equal(t, 3, rec.written)
}

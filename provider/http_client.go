package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds every call made to the provider.
	DefaultTimeout = 20 * time.Second
	// DefaultUserAgent is sent with every provider request.
	DefaultUserAgent = "hummpay/1.0"
)

// HTTPClientConfig represents configuration for the provider HTTP client
type HTTPClientConfig struct {
	BaseURL        string
	AccessToken    string
	Timeout        time.Duration
	UserAgent      string
	DefaultHeaders map[string]string
	Metrics        *Metrics
	Observer       CallObserver
}

// RequestContext describes one provider request.
type RequestContext struct {
	Path    string
	Method  string
	Query   map[string]string
	Headers map[string]string
	Body    any
}

// NewRequestContext creates a request for path. An empty method means GET.
func NewRequestContext(path, method string) *RequestContext {
	if method == "" {
		method = http.MethodGet
	}
	return &RequestContext{
		Path:    path,
		Method:  method,
		Query:   map[string]string{},
		Headers: map[string]string{},
	}
}

// AddQueryParameter sets a query parameter, skipping blank values.
func (rc *RequestContext) AddQueryParameter(key, value string) *RequestContext {
	if strings.TrimSpace(value) == "" {
		return rc
	}
	if rc.Query == nil {
		rc.Query = map[string]string{}
	}
	rc.Query[key] = value
	return rc
}

// AddHeader sets a request specific header.
func (rc *RequestContext) AddHeader(key, value string) *RequestContext {
	if rc.Headers == nil {
		rc.Headers = map[string]string{}
	}
	rc.Headers[key] = value
	return rc
}

// CallRecord summarizes a finished provider call for observers.
type CallRecord struct {
	Operation    string
	Method       string
	URL          string
	RequestBody  string
	StatusCode   int
	ResponseBody string
	Duration     time.Duration
	Err          error
}

// CallObserver receives a record of every provider call.
type CallObserver interface {
	ObserveCall(ctx context.Context, record CallRecord)
}

// ProviderHTTPClient executes JSON requests against the provider.
// A client is immutable; WithSession derives a copy bound to a session.
type ProviderHTTPClient struct {
	config HTTPClientConfig
	client *http.Client
}

// NewProviderHTTPClient creates a new provider HTTP client
func NewProviderHTTPClient(config HTTPClientConfig) *ProviderHTTPClient {
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}
	return &ProviderHTTPClient{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

// WithSession returns a copy of the client using baseURL and accessToken.
// The underlying http.Client is shared.
func (c *ProviderHTTPClient) WithSession(baseURL, accessToken string) *ProviderHTTPClient {
	cfg := c.config
	cfg.BaseURL = baseURL
	cfg.AccessToken = accessToken
	return &ProviderHTTPClient{config: cfg, client: c.client}
}

// Call executes rc and decodes a successful response into out.
// Failures are returned as *APIError unless rc itself is invalid.
func (c *ProviderHTTPClient) Call(ctx context.Context, operation string, rc *RequestContext, out any) error {
	if rc == nil {
		return fmt.Errorf("%w: request context is required for '%s'", ErrInvalidArgument, operation)
	}

	fullURL, err := c.buildURL(rc.Path, rc.Query)
	if err != nil {
		return err
	}

	var payload []byte
	if rc.Body != nil {
		payload, err = json.Marshal(rc.Body)
		if err != nil {
			return fmt.Errorf("%w: failed to marshal body for '%s': %v", ErrInvalidArgument, operation, err)
		}
	}

	start := time.Now()
	status, respBody, err := c.do(ctx, operation, rc, fullURL, payload, out)
	elapsed := time.Since(start)

	c.config.Metrics.observe(operation, err, elapsed)
	if c.config.Observer != nil {
		c.config.Observer.ObserveCall(ctx, CallRecord{
			Operation:    operation,
			Method:       rc.Method,
			URL:          fullURL,
			RequestBody:  string(payload),
			StatusCode:   status,
			ResponseBody: string(respBody),
			Duration:     elapsed,
			Err:          err,
		})
	}
	return err
}

func (c *ProviderHTTPClient) do(ctx context.Context, operation string, rc *RequestContext, fullURL string, payload []byte, out any) (int, []byte, error) {
	method := rc.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: failed to create request for '%s': %v", ErrInvalidArgument, operation, err)
	}

	for key, value := range c.config.DefaultHeaders {
		httpReq.Header.Set(key, value)
	}
	for key, value := range rc.Headers {
		httpReq.Header.Set(key, value)
	}
	httpReq.Header.Set("Accept", "*/*")
	httpReq.Header.Set("User-Agent", c.config.UserAgent)
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token := strings.TrimSpace(c.config.AccessToken); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return 500, nil, newTransportError(operation, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 500, nil, newTransportError(operation, err)
	}

	if resp.StatusCode >= 400 {
		return resp.StatusCode, respBody, newStatusError(operation, resp.StatusCode, respBody, parseEnvelope(respBody))
	}

	if out != nil && len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return resp.StatusCode, respBody, newProtocolError(operation, resp.StatusCode, respBody, err)
		}
	}
	return resp.StatusCode, respBody, nil
}

func parseEnvelope(body []byte) *ErrorEnvelope {
	var env ErrorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		// Salesforce also answers with a list of envelopes.
		var list []ErrorEnvelope
		if err := json.Unmarshal(body, &list); err != nil || len(list) == 0 {
			return nil
		}
		env = list[0]
	}
	if env.Empty() {
		return nil
	}
	return &env
}

func joinURL(base, endpoint string) string {
	if strings.HasSuffix(base, "/") && strings.HasPrefix(endpoint, "/") {
		return base + endpoint[1:]
	}
	if !strings.HasSuffix(base, "/") && !strings.HasPrefix(endpoint, "/") {
		return base + "/" + endpoint
	}
	return base + endpoint
}

// buildURL resolves endpoint against the base URL and applies query parameters.
func (c *ProviderHTTPClient) buildURL(endpoint string, queryParams map[string]string) (string, error) {
	raw := endpoint
	if !IsAbsoluteURL(endpoint) {
		if !IsAbsoluteURL(c.config.BaseURL) {
			return "", fmt.Errorf("%w: base URL %q is not an absolute URL", ErrInvalidArgument, c.config.BaseURL)
		}
		raw = joinURL(c.config.BaseURL, endpoint)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if len(queryParams) > 0 {
		q := u.Query()
		for key, value := range queryParams {
			q.Set(key, value)
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// IsAbsoluteURL reports whether raw parses as an absolute URL with a host.
func IsAbsoluteURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return u.IsAbs() && u.Host != ""
}

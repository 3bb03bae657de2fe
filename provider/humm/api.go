package humm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mstgnz/hummpay/infra/config"
	"github.com/mstgnz/hummpay/provider"
)

// Client exposes the typed provider operations. It is immutable: the
// settings it was built with never change, WithSettings derives a new client.
type Client struct {
	transport *provider.ProviderHTTPClient
	settings  config.Settings

	sandboxTokenURL    string
	productionTokenURL string
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithTokenEndpoints overrides the sandbox and production token URLs.
func WithTokenEndpoints(sandbox, production string) ClientOption {
	return func(c *Client) {
		c.sandboxTokenURL = sandbox
		c.productionTokenURL = production
	}
}

// NewClient creates a provider client using transport for all calls.
func NewClient(transport *provider.ProviderHTTPClient, settings config.Settings, opts ...ClientOption) *Client {
	c := &Client{
		transport:          transport,
		settings:           settings,
		sandboxTokenURL:    endpointAuthorizeSandbox,
		productionTokenURL: endpointAuthorizeProduction,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Settings returns a copy of the client's settings.
func (c *Client) Settings() config.Settings {
	return c.settings
}

// WithSettings returns a client bound to settings. The receiver is untouched.
func (c *Client) WithSettings(settings config.Settings) *Client {
	next := *c
	next.settings = settings
	return &next
}

func (c *Client) tokenURL() string {
	if c.settings.IsSandbox {
		return c.sandboxTokenURL
	}
	return c.productionTokenURL
}

func (c *Client) session() *provider.ProviderHTTPClient {
	return c.transport.WithSession(c.settings.InstanceURL, c.settings.AccessToken)
}

// RefreshToken exchanges the active environment's refresh token for a new session.
func (c *Client) RefreshToken(ctx context.Context) (*PrerequisitesResponse, error) {
	creds := c.settings.ActiveCredentials()

	rc := provider.NewRequestContext(c.tokenURL(), http.MethodPost).
		AddQueryParameter("grant_type", "refresh_token").
		AddQueryParameter("refresh_token", creds.RefreshToken).
		AddQueryParameter("client_id", creds.ClientID).
		AddQueryParameter("client_secret", creds.ClientSecret)

	var resp PrerequisitesResponse
	if err := c.transport.WithSession("", "").Call(ctx, OpRefreshToken, rc, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// InitiatePayment starts a checkout.
func (c *Client) InitiatePayment(ctx context.Context, req *InitiateProcessRequest) (*InitiateProcessResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: initiate process request is required", provider.ErrInvalidArgument)
	}
	var resp InitiateProcessResponse
	if err := c.post(ctx, OpInitiatePayment, endpointInitiatePayment, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetPaymentDetails queries the state of a checkout.
func (c *Client) GetPaymentDetails(ctx context.Context, req *GetPaymentDetailsRequest) (*GetPaymentDetailsResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: payment details request is required", provider.ErrInvalidArgument)
	}
	var resp GetPaymentDetailsResponse
	if err := c.post(ctx, OpGetPaymentDetails, endpointPaymentDetails, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RefundPayment refunds a completed checkout.
func (c *Client) RefundPayment(ctx context.Context, req *RefundPaymentRequest) (*RefundPaymentResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: refund payment request is required", provider.ErrInvalidArgument)
	}
	var resp RefundPaymentResponse
	if err := c.post(ctx, OpRefundPayment, endpointRefundPayment, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, operation, path string, body, out any) error {
	rc := provider.NewRequestContext(path, http.MethodPost)
	rc.Body = body
	return c.session().Call(ctx, operation, rc, out)
}

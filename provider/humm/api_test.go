package humm

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/mstgnz/hummpay/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_RefreshToken(t *testing.T) {
	env := newTestEnv(t)
	env.fake.respond(sandboxTokenPath, http.StatusOK, `{"access_token":"T1","instance_url":"https://x.my.salesforce.com"}`)
	env.fake.respond(productionTokenPath, http.StatusOK, `{"access_token":"P1","instance_url":"https://p.my.salesforce.com"}`)

	settings := env.configuredSettings()
	client := NewClient(env.transport, settings,
		WithTokenEndpoints(env.fake.server.URL+sandboxTokenPath, env.fake.server.URL+productionTokenPath))

	resp, err := client.RefreshToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "T1", resp.AccessToken)
	assert.Equal(t, "https://x.my.salesforce.com", resp.InstanceURL)

	call := env.fake.lastCall(t)
	assert.Equal(t, sandboxTokenPath, call.Path)
	assert.Equal(t, "refresh_token", call.Query.Get("grant_type"))
	assert.Equal(t, "rt", call.Query.Get("refresh_token"))
	assert.Equal(t, "cid", call.Query.Get("client_id"))
	assert.Equal(t, "secret", call.Query.Get("client_secret"))
	assert.Empty(t, call.Auth, "token requests carry no bearer token")
	assert.Nil(t, call.Body)

	settings.IsSandbox = false
	resp, err = client.WithSettings(settings).RefreshToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "P1", resp.AccessToken)
	call = env.fake.lastCall(t)
	assert.Equal(t, productionTokenPath, call.Path)
	assert.Equal(t, "pcid", call.Query.Get("client_id"))
}

func TestClient_DefaultTokenEndpoints(t *testing.T) {
	settings := newTestEnv(t).configuredSettings()
	client := NewClient(provider.NewProviderHTTPClient(provider.HTTPClientConfig{}), settings)
	assert.Equal(t, "https://test.salesforce.com/services/oauth2/token", client.tokenURL())

	settings.IsSandbox = false
	assert.Equal(t, "https://login.salesforce.com/services/oauth2/token", client.WithSettings(settings).tokenURL())
}

func TestClient_WithSettingsLeavesReceiverUntouched(t *testing.T) {
	env := newTestEnv(t)
	original := env.configuredSettings()
	client := NewClient(env.transport, original)

	other := original
	other.AccessToken = "other"
	derived := client.WithSettings(other)

	assert.Equal(t, original, client.Settings())
	assert.Equal(t, "other", derived.Settings().AccessToken)
}

func TestClient_OperationsUseInstanceSession(t *testing.T) {
	env := newTestEnv(t)
	env.fake.respond(endpointInitiatePayment, http.StatusOK, `{"success":true,"partnerTrackingId":"P1","redirectURL":"https://pay"}`)
	env.fake.respond(endpointPaymentDetails, http.StatusOK, `{"success":true,"status":"IN_PROGRESS"}`)
	env.fake.respond(endpointRefundPayment, http.StatusOK, `{"success":true,"refundMessage":"ok"}`)

	client := NewClient(env.transport, env.configuredSettings())
	ctx := context.Background()

	initResp, err := client.InitiatePayment(ctx, &InitiateProcessRequest{AccountID: "ACC"})
	require.NoError(t, err)
	assert.Equal(t, "P1", initResp.TrackingID())
	call := env.fake.lastCall(t)
	assert.Equal(t, "Bearer T0", call.Auth)
	assert.Equal(t, "ACC", call.Body["accountId"])

	details, err := client.GetPaymentDetails(ctx, &GetPaymentDetailsRequest{AccountID: "ACC", TrackingID: "P1"})
	require.NoError(t, err)
	require.NotNil(t, details.Status)
	assert.Equal(t, StatusInProgress, *details.Status)
	assert.Equal(t, "P1", env.fake.lastCall(t).Body["trackingId"])

	refund, err := client.RefundPayment(ctx, &RefundPaymentRequest{AccountID: "ACC", TrackingID: "P1"})
	require.NoError(t, err)
	assert.Equal(t, "ok", refund.Message)
	assert.Equal(t, endpointRefundPayment, env.fake.lastCall(t).Path)
}

func TestClient_NilRequests(t *testing.T) {
	env := newTestEnv(t)
	client := NewClient(env.transport, env.configuredSettings())
	ctx := context.Background()

	_, err := client.InitiatePayment(ctx, nil)
	assert.True(t, errors.Is(err, provider.ErrInvalidArgument))
	_, err = client.GetPaymentDetails(ctx, nil)
	assert.True(t, errors.Is(err, provider.ErrInvalidArgument))
	_, err = client.RefundPayment(ctx, nil)
	assert.True(t, errors.Is(err, provider.ErrInvalidArgument))
	assert.Equal(t, 0, env.fake.callCount())
}

func TestClient_MissingInstanceURL(t *testing.T) {
	env := newTestEnv(t)
	settings := env.configuredSettings()
	settings.InstanceURL = ""

	_, err := NewClient(env.transport, settings).GetPaymentDetails(context.Background(), &GetPaymentDetailsRequest{})
	assert.True(t, errors.Is(err, provider.ErrInvalidArgument))
	assert.Equal(t, 0, env.fake.callCount())
}

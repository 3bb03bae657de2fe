// Package provider holds the transport layer shared by payment provider
// integrations.
//
// # Transport
//
// ProviderHTTPClient sends JSON requests to a provider and decodes JSON
// responses. A client is immutable: WithSession returns a copy bound to a
// base URL and bearer token, so concurrent requests for different stores
// never share credentials.
//
//	client := provider.NewProviderHTTPClient(provider.HTTPClientConfig{
//	    Timeout: 30 * time.Second,
//	    Metrics: provider.NewMetrics("hummpay", prometheus.DefaultRegisterer),
//	})
//	rc := provider.NewRequestContext("/services/apexrest/getPaymentDetails", http.MethodPost)
//	rc.Body = req
//	var out Response
//	err := client.WithSession(instanceURL, token).Call(ctx, "getPaymentDetails", rc, &out)
//
// Relative paths are joined to the base URL; absolute URLs are used as is.
//
// # Error Handling
//
// Every failure is an *APIError whose message follows one format:
//
//	Error when calling 'getPaymentDetails'. HTTP status code - 503. Error code - 'DOWN'. Error description - 'maintenance'.
//
// The error also matches one of the sentinels with errors.Is:
//
//   - ErrTransport: the request never got an HTTP response (reported as status 500)
//   - ErrProvider: the provider answered with a non 2xx status
//   - ErrProtocol: a 2xx body could not be decoded
//
// The failing URL is reported without its query string. errors.As with
// *APIError gives the status code, envelope and raw body.
//
// # Observability
//
// Metrics counts calls per operation and outcome. An optional CallObserver
// receives a CallRecord for every call; the OpenSearch logger implements it.
//
// # Configuration Checks
//
// ValidateConfigFields reports every blank or malformed field at once so
// admin pages can show all problems together.
package provider

// Package hummpay is the Humm payment method for a storefront platform.
//
// # Overview
//
// A store configures sandbox and production credentials. The plugin trades
// the refresh token for an access token and instance URL, starts a checkout
// when an order is placed, confirms or cancels the order when the customer
// comes back, and refunds captured payments.
//
//	┌─────────────────┐    ┌─────────────────┐    ┌─────────────────┐
//	│                 │    │                 │    │                 │
//	│   Storefront    │◄──►│    hummpay      │◄──►│      Humm       │
//	│  (orders, UI)   │    │   (plugin)      │    │  (instance API) │
//	│                 │    │                 │    │                 │
//	└─────────────────┘    └─────────────────┘    └─────────────────┘
//
// # Layout
//
//   - provider: JSON transport, error format and call metrics
//   - provider/humm: API client, payment service, checkout callbacks and the token refresh task
//   - infra/config: environment configuration and per-store settings (SQLite, Redis cache)
//   - infra/store: orders, customers, addresses and generic attributes
//   - infra/logger, infra/opensearch: structured logging and the provider call log
//   - infra/middle, handler, router: the HTTP surface
//   - cmd: the server binary
//
// # Running
//
//	SQLITE_PATH=./data/hummpay.db \
//	APP_URL=https://shop.example.com \
//	ADMIN_API_KEY=change-me \
//	go run ./cmd
//
// Setting REDIS_URL enables the settings cache, the shared rate limiter and
// the asynq scheduler for the token refresh job. Without Redis the job runs
// on an in-process ticker.
package hummpay

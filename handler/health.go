package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/mstgnz/hummpay/infra/config"
	"github.com/mstgnz/hummpay/infra/response"
	"github.com/mstgnz/hummpay/infra/store"
	redis "github.com/redis/go-redis/v9"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreLister lists the stores served by this instance.
type StoreLister interface {
	ListStores(ctx context.Context) ([]store.Store, error)
}

// StatsReporter summarizes the settings database.
type StatsReporter interface {
	GetStats(ctx context.Context) (map[string]any, error)
}

// HealthHandler handles health check requests
type HealthHandler struct {
	db        Pinger
	stats     StatsReporter
	redis     *redis.Client
	stores    StoreLister
	factory   SettingsFactory
	version   string
	startTime time.Time
}

// HealthStatus represents overall system health
type HealthStatus struct {
	Status    string                    `json:"status"`
	Version   string                    `json:"version"`
	Timestamp time.Time                 `json:"timestamp"`
	Uptime    string                    `json:"uptime"`
	Services  map[string]*ServiceHealth `json:"services"`
	Stores    []StoreHealth             `json:"stores"`
	Settings  map[string]any            `json:"settings,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status       string `json:"status"`
	Healthy      bool   `json:"healthy"`
	ResponseTime string `json:"response_time,omitempty"`
	Error        string `json:"error,omitempty"`
}

// StoreHealth tells whether a store can take Humm payments.
type StoreHealth struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Environment string `json:"environment"`
	Configured  bool   `json:"configured"`
}

// NewHealthHandler creates a new health handler. A nil Redis client is reported as disabled.
func NewHealthHandler(db Pinger, stats StatsReporter, client *redis.Client, stores StoreLister, factory SettingsFactory, version string) *HealthHandler {
	return &HealthHandler{
		db:        db,
		stats:     stats,
		redis:     client,
		stores:    stores,
		factory:   factory,
		version:   version,
		startTime: time.Now(),
	}
}

// CheckHealth handles GET /health. A database failure makes the service
// unhealthy; a Redis failure only degrades it.
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := &HealthStatus{
		Version:   h.version,
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Services: map[string]*ServiceHealth{
			"database": h.ping(ctx, h.db),
			"redis":    h.checkRedis(ctx),
		},
	}
	if health.Services["database"].Healthy {
		health.Stores = h.checkStores(ctx)
		if h.stats != nil {
			if stats, err := h.stats.GetStats(ctx); err == nil {
				health.Settings = stats
			}
		}
	}

	health.Status = "healthy"
	statusCode := http.StatusOK
	switch {
	case !health.Services["database"].Healthy:
		health.Status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	case !health.Services["redis"].Healthy:
		health.Status = "degraded"
	}

	_ = response.WriteJSON(w, statusCode, response.Response{
		Code:    statusCode,
		Success: statusCode == http.StatusOK,
		Message: "Service is " + health.Status,
		Data:    health,
	})
}

func (h *HealthHandler) ping(ctx context.Context, p Pinger) *ServiceHealth {
	if p == nil {
		return &ServiceHealth{Status: "not_configured"}
	}
	start := time.Now()
	if err := p.Ping(ctx); err != nil {
		return &ServiceHealth{Status: "down", Error: err.Error()}
	}
	return &ServiceHealth{Status: "up", Healthy: true, ResponseTime: time.Since(start).String()}
}

func (h *HealthHandler) checkRedis(ctx context.Context) *ServiceHealth {
	if h.redis == nil {
		return &ServiceHealth{Status: "disabled", Healthy: true}
	}
	start := time.Now()
	if err := h.redis.Ping(ctx).Err(); err != nil {
		return &ServiceHealth{Status: "down", Error: err.Error()}
	}
	return &ServiceHealth{Status: "up", Healthy: true, ResponseTime: time.Since(start).String()}
}

func (h *HealthHandler) checkStores(ctx context.Context) []StoreHealth {
	if h.stores == nil || h.factory == nil {
		return nil
	}
	stores, err := h.stores.ListStores(ctx)
	if err != nil {
		return nil
	}

	result := make([]StoreHealth, 0, len(stores))
	for _, st := range stores {
		settings, err := h.factory.Settings().Load(ctx, st.ID)
		if err != nil {
			settings = config.DefaultSettings(st.ID)
		}
		result = append(result, StoreHealth{
			ID:          st.ID,
			Name:        st.Name,
			Environment: settings.Environment(),
			Configured:  h.factory.ForSettings(settings).IsConfigured(),
		})
	}
	return result
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	"github.com/mstgnz/hummpay/handler"
	"github.com/mstgnz/hummpay/infra/config"
	"github.com/mstgnz/hummpay/infra/logger"
	"github.com/mstgnz/hummpay/infra/middle"
	"github.com/mstgnz/hummpay/infra/opensearch"
	"github.com/mstgnz/hummpay/infra/response"
	"github.com/mstgnz/hummpay/infra/store"
	"github.com/mstgnz/hummpay/provider"
	"github.com/mstgnz/hummpay/provider/humm"
	"github.com/mstgnz/hummpay/router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	// OpenSearch is optional; without it logs only go to the console.
	var osLogger *opensearch.Logger
	if cfg.EnableOpenSearch {
		osClient, err := opensearch.NewClient(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "opensearch disabled: %v\n", err)
		} else {
			osLogger = opensearch.NewLogger(osClient)
		}
	}

	var sink logger.EventSink
	if osLogger != nil {
		sink = osLogger
	}
	logger.InitGlobalLogger(sink, logger.SystemLoggerConfig{
		EnableConsole:    true,
		EnableOpenSearch: osLogger != nil,
		MinLevel:         logger.ParseLevel(cfg.LogLevel),
		Format:           cfg.LogFormat,
		Service:          "hummpay",
		Version:          version,
		Environment:      cfg.Environment,
	})

	if err := run(cfg, osLogger); err != nil {
		logger.Fatal("hummpay stopped", err)
	}
}

func run(cfg *config.AppConfig, osLogger *opensearch.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	db, err := config.OpenSQLite(cfg.SQLitePath)
	if err != nil {
		return err
	}
	defer db.Close()

	storage, err := config.NewSQLiteStorage(db, cfg.SQLitePath)
	if err != nil {
		return err
	}
	platform, err := store.NewSQLite(db)
	if err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
	}
	settings := config.NewCachedSettings(storage, redisClient, cfg.SettingsCacheTTL)

	transportCfg := provider.HTTPClientConfig{
		Metrics: provider.NewMetrics("hummpay", prometheus.DefaultRegisterer),
	}
	if osLogger != nil {
		transportCfg.Observer = osLogger
	}
	factory := humm.NewFactory(provider.NewProviderHTTPClient(transportCfg), settings, platform, humm.ServiceOptions{
		CallbackBaseURL:  cfg.AppURL,
		Location:         cfg.Location(),
		UsernamesEnabled: cfg.UsernamesEnabled,
		PhoneEnabled:     cfg.PhoneEnabled,
	})

	refresh := humm.NewRefreshTask(platform, factory, prometheus.DefaultRegisterer)
	stopScheduler, err := startRefreshSchedule(ctx, cfg, refresh)
	if err != nil {
		return err
	}
	defer stopScheduler()

	var calls handler.CallLogReader
	if osLogger != nil {
		calls = osLogger
	}
	handlers := router.Handlers{
		Checkout: handler.NewCheckoutHandler(factory, cfg.DefaultStoreID, cfg.AppURL),
		Config:   handler.NewConfigHandler(factory, config.App().Validator),
		Payment:  handler.NewPaymentHandler(factory, platform),
		Logs:     handler.NewLogsHandler(calls),
		Health:   handler.NewHealthHandler(platform, storage, redisClient, platform, factory, version),
	}

	rateLimiter := middle.NewRateLimiter(cfg.RateLimit, redisClient)
	go rateLimiter.Cleanup(ctx)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middle.RequestIDMiddleware())
	r.Use(middle.RequestLoggingMiddleware())
	r.Use(middle.PanicRecoveryMiddleware())
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middle.SecurityHeadersMiddleware())
	r.Use(middle.RateLimitMiddleware(rateLimiter))
	r.Use(middle.RequestValidationMiddleware("/humm/"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())
	router.Routes(r, handlers, cfg.AdminAPIKey)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotFound, "Not Found", nil)
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Info("API is running on " + cfg.HTTPAddr())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// startRefreshSchedule runs the token refresh job. With Redis the asynq
// scheduler enqueues it so only one instance refreshes per tick; without
// Redis an in-process ticker is used.
func startRefreshSchedule(ctx context.Context, cfg *config.AppConfig, task *humm.RefreshTask) (func(), error) {
	if cfg.RedisURL == "" {
		go func() {
			ticker := time.NewTicker(cfg.RefreshInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					task.Run(ctx)
				}
			}
		}()
		logger.Info("Token refresh scheduled in process every " + cfg.RefreshInterval.String())
		return func() {}, nil
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL for asynq: %w", err)
	}

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Location: time.UTC})
	entryID, err := humm.RegisterRefreshSchedule(scheduler, cfg.RefreshInterval)
	if err != nil {
		return nil, fmt.Errorf("register refresh schedule: %w", err)
	}
	if err := scheduler.Start(); err != nil {
		return nil, fmt.Errorf("start scheduler: %w", err)
	}

	worker := asynq.NewServer(redisOpt, asynq.Config{Concurrency: 1})
	mux := asynq.NewServeMux()
	mux.Handle(humm.TypeRefreshPrerequisites, task)
	if err := worker.Start(mux); err != nil {
		scheduler.Shutdown()
		return nil, fmt.Errorf("start worker: %w", err)
	}

	logger.Info(fmt.Sprintf("Token refresh scheduled every %s (entry %s)", cfg.RefreshInterval, entryID))
	return func() {
		scheduler.Shutdown()
		worker.Shutdown()
	}, nil
}

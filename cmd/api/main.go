package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/cmd/mainconfig"
	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/internal/api/router"
	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/internal/app/bootstrap"
	appconfig "github.com/Innovatel-Q/malaikasante-main-backend-sub000/internal/config"
	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/internal/http/handlers"
	httpmiddleware "github.com/Innovatel-Q/malaikasante-main-backend-sub000/internal/http/middleware"
	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/internal/observability/metrics"
	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/pkg/logging"
)

func main() {
	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting scheduling API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage, cache and collaborators
	storage, err := bootstrap.BuildStorage(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer storage.Close()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	metricsHandler, bookingMetrics := setupMetrics()
	svc, err := bootstrap.BuildSchedulingService(cfg, storage.Store, redisClient, bookingMetrics, logger)
	if err != nil {
		logger.Error("failed to build scheduling service", "error", err)
		os.Exit(1)
	}

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	notifier := bootstrap.BuildNotifier(cfg, awsCfg, logger)
	deliverer := bootstrap.BuildDeliverer(cfg, storage.Outbox, notifier, logger)
	go deliverer.Start(ctx)

	limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	stopCleanup := make(chan struct{})
	defer close(stopCleanup)
	go limiter.Cleanup(5*time.Minute, stopCleanup)

	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set; scheduling endpoints will reject every request")
	}

	// Setup router
	health := map[string]handlers.Pinger{}
	if storage.Ping != nil {
		health["postgres"] = handlers.PingFunc(storage.Ping)
	}
	if redisClient != nil {
		health["redis"] = handlers.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	}
	r := router.New(&router.Config{
		Logger:         logger,
		Scheduling:     handlers.NewSchedulingHandler(svc, logger),
		AuthSecret:     cfg.JWTSecret,
		RateLimiter:    limiter,
		MetricsHandler: metricsHandler,
		Health:         handlers.HealthCheck(health),
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	// Flush anything committed after the last poll.
	deliverer.Drain(shutdownCtx)

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// setupMetrics registers the booking metrics on a private registry together
// with the runtime collectors.
func setupMetrics() (http.Handler, *metrics.BookingMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewBookingMetrics(reg)
}

// loadAWSConfig returns nil when no notification queue is configured.
func loadAWSConfig(ctx context.Context, cfg *appconfig.Config) (*aws.Config, error) {
	if strings.TrimSpace(cfg.NotificationQueueURL) == "" {
		return nil, nil
	}
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &awsCfg, nil
}

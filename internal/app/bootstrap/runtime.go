package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/Innovatel-Q/malaikasante-main-backend-sub000/internal/config"
	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/internal/events"
	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/internal/notify"
	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/internal/observability/metrics"
	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/internal/scheduling"
	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/internal/scheduling/memstore"
	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/internal/slotcache"
	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/internal/storage/postgres"
	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/pkg/logging"
)

// ProviderRegistry stores provider records, which the scheduling service only reads.
type ProviderRegistry interface {
	UpsertProvider(ctx context.Context, p scheduling.Provider) error
}

// Storage bundles the scheduling store with the outbox its transactions write to.
type Storage struct {
	Store     scheduling.Store
	Outbox    events.Source
	Providers ProviderRegistry

	// Ping is nil for the in-memory store.
	Ping  func(ctx context.Context) error
	Close func()
}

// BuildStorage opens the postgres store, or falls back to the in-memory
// store when DATABASE_URL is empty.
func BuildStorage(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		logger.Warn("DATABASE_URL not set; using in-memory scheduling store")
		mem := memstore.New()
		return &Storage{Store: mem, Outbox: mem, Providers: mem, Close: func() {}}, nil
	}

	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
		URL:      cfg.DatabaseURL,
		MaxConns: int32(cfg.DBMaxConns),
		MinConns: int32(cfg.DBMinConns),
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	store := postgres.NewStore(pool)
	return &Storage{
		Store:     store,
		Outbox:    events.NewOutboxStore(pool),
		Providers: store,
		Ping:      pool.Ping,
		Close:     pool.Close,
	}, nil
}

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildNotifier returns the SQS notifier when a queue is configured and the
// log notifier otherwise.
func BuildNotifier(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) notify.Notifier {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil || strings.TrimSpace(cfg.NotificationQueueURL) == "" || awsCfg == nil {
		logger.Info("notification queue not configured; logging notifications")
		return notify.NewLogNotifier(logger)
	}
	return notify.NewSQSNotifier(sqs.NewFromConfig(*awsCfg), cfg.NotificationQueueURL)
}

// BuildSchedulingService wires the service with the configured policy, the
// optional slot cache and metrics.
func BuildSchedulingService(cfg *appconfig.Config, store scheduling.Store, redisClient *redis.Client, m *metrics.BookingMetrics, logger *logging.Logger) (*scheduling.Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if store == nil {
		return nil, fmt.Errorf("bootstrap: store is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	svc := scheduling.NewService(store, logger.WithComponent("scheduling")).
		WithPolicy(cfg.SchedulingPolicy())
	if m != nil {
		svc = svc.WithMetrics(m)
	}
	if redisClient != nil {
		svc = svc.WithSlotCache(slotcache.New(redisClient, cfg.SlotCacheTTL, logger))
		logger.Info("slot cache enabled", "ttl", cfg.SlotCacheTTL)
	}
	return svc, nil
}

// BuildDeliverer wires the outbox deliverer to the notifier.
func BuildDeliverer(cfg *appconfig.Config, source events.Source, notifier notify.Notifier, logger *logging.Logger) *events.Deliverer {
	if logger == nil {
		logger = logging.Default()
	}
	d := events.NewDeliverer(source, notify.NewService(notifier, logger), logger.WithComponent("outbox"))
	if cfg != nil {
		d = d.WithBatchSize(int32(cfg.OutboxBatchSize)).WithInterval(cfg.OutboxPollInterval)
	}
	return d
}

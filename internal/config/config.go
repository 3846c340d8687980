package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/internal/scheduling"
)

// Config holds application configuration
type Config struct {
	Port        string
	Env         string
	LogLevel    string
	DatabaseURL string
	DBMaxConns  int
	DBMinConns  int

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	SlotCacheTTL  time.Duration

	RoutineLeadTime     time.Duration
	UrgentLeadTime      time.Duration
	MinBookingMinutes   int
	MaxBookingMinutes   int
	MaxSlotRange        time.Duration
	MaxLeaveDuration    time.Duration
	LeaveCascadeCap     int
	ProviderLockTimeout time.Duration

	JWTSecret      string
	RateLimitRPS   float64
	RateLimitBurst int

	AWSRegion            string
	AWSAccessKeyID       string
	AWSSecretAccessKey   string
	AWSEndpointOverride  string
	NotificationQueueURL string
	OutboxPollInterval   time.Duration
	OutboxBatchSize      int
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first without overriding variables already set.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		DBMaxConns:  getEnvAsInt("DB_MAX_CONNS", 10),
		DBMinConns:  getEnvAsInt("DB_MIN_CONNS", 1),

		RedisAddr:     strings.TrimSpace(getEnv("REDIS_ADDR", "")),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		SlotCacheTTL:  getEnvAsDuration("SLOT_CACHE_TTL", 5*time.Second),

		RoutineLeadTime:     getEnvAsDuration("ROUTINE_LEAD_TIME", scheduling.RoutineLeadTime),
		UrgentLeadTime:      getEnvAsDuration("URGENT_LEAD_TIME", scheduling.UrgentLeadTime),
		MinBookingMinutes:   getEnvAsInt("MIN_BOOKING_MINUTES", 15),
		MaxBookingMinutes:   getEnvAsInt("MAX_BOOKING_MINUTES", 120),
		MaxSlotRange:        getEnvAsDuration("MAX_SLOT_RANGE", 30*24*time.Hour),
		MaxLeaveDuration:    getEnvAsDuration("MAX_LEAVE_DURATION", 365*24*time.Hour),
		LeaveCascadeCap:     getEnvAsInt("LEAVE_CASCADE_CAP", 50),
		ProviderLockTimeout: getEnvAsDuration("PROVIDER_LOCK_TIMEOUT", 5*time.Second),

		JWTSecret:      getEnv("JWT_SECRET", ""),
		RateLimitRPS:   getEnvAsFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getEnvAsInt("RATE_LIMIT_BURST", 10),

		AWSRegion:            getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:       getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride:  getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		NotificationQueueURL: getEnv("NOTIFICATION_QUEUE_URL", ""),
		OutboxPollInterval:   getEnvAsDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		OutboxBatchSize:      getEnvAsInt("OUTBOX_BATCH_SIZE", 25),
	}
}

// SchedulingPolicy converts the scheduling settings into a policy. Invalid
// values fall back to the defaults.
func (c *Config) SchedulingPolicy() scheduling.Policy {
	return scheduling.Policy{
		RoutineLeadTime:    c.RoutineLeadTime,
		UrgentLeadTime:     c.UrgentLeadTime,
		MinBookingDuration: time.Duration(c.MinBookingMinutes) * time.Minute,
		MaxBookingDuration: time.Duration(c.MaxBookingMinutes) * time.Minute,
		MaxSlotRange:       c.MaxSlotRange,
		MaxLeaveDuration:   c.MaxLeaveDuration,
		LeaveCascadeCap:    c.LeaveCascadeCap,
		LockTimeout:        c.ProviderLockTimeout,
	}.Normalize()
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

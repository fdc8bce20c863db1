package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// generateWorkerID creates a unique worker ID using hostname and PID
func generateWorkerID() string {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "worker"
	}
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}

type Config struct {
	Port        string
	Environment string
	LogLevel    string

	// Database
	DatabaseURL   string
	DBMaxConns    int
	RedisURL      string
	RedisPoolSize int
	AutoMigrate   bool

	// Auth
	JWTSecret   string
	SupabaseURL string
	AdminAPIKey string

	// Public links
	PublicBaseURL string

	// Resolver
	ResolveTimeout  time.Duration
	ViewGuardTTL    time.Duration
	PremiumCacheTTL time.Duration

	// EncryptionKey is the hex-encoded AES key for contact exchange PII.
	EncryptionKey string

	// Worker
	WorkerID         string
	WorkerCount      int
	WorkerBatchSize  int
	WorkerFlushMS    int
	WorkerJobTimeout time.Duration

	// Consumer (Redis Stream)
	ConsumerGroup           string
	ConsumerBatchSize       int
	ConsumerBlockMS         int
	ConsumerMaxRetries      int
	ConsumerPendingCheckSec int
	ConsumerPendingIdleSec  int
	StreamMaxLen            int64

	// Scheduler
	SchedulerEnabled  bool
	RollupInterval    time.Duration
	RollupLookbackHrs int

	// Object storage (Cloudflare R2)
	R2AccountID       string
	R2AccessKeyID     string
	R2AccessKeySecret string
	R2Bucket          string
	R2PublicBaseURL   string

	// Rate limits (requests per minute)
	RateLimitTap      int
	RateLimitExchange int
	RateLimitOwner    int

	// CORS
	AllowedOrigins []string
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", ""),

		DatabaseURL:   getEnv("DATABASE_URL", ""),
		DBMaxConns:    getEnvInt("DB_MAX_CONNS", 25),
		RedisURL:      getEnv("REDIS_URL", ""),
		RedisPoolSize: getEnvInt("REDIS_POOL_SIZE", 50),
		AutoMigrate:   getEnvBool("AUTO_MIGRATE", true),

		JWTSecret:   getEnv("SUPABASE_JWT_SECRET", ""),
		SupabaseURL: getEnv("SUPABASE_URL", ""),
		AdminAPIKey: getEnv("ADMIN_API_KEY", ""),

		PublicBaseURL: strings.TrimSuffix(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),

		ResolveTimeout:  time.Duration(getEnvInt("RESOLVE_TIMEOUT_MS", 6000)) * time.Millisecond,
		ViewGuardTTL:    time.Duration(getEnvInt("VIEW_GUARD_TTL_MIN", 30)) * time.Minute,
		PremiumCacheTTL: time.Duration(getEnvInt("PREMIUM_CACHE_TTL_MIN", 10)) * time.Minute,

		EncryptionKey: getEnv("ENCRYPTION_KEY", ""),

		WorkerID:         getEnv("WORKER_ID", generateWorkerID()),
		WorkerCount:      getEnvInt("WORKER_COUNT", 4),
		WorkerBatchSize:  getEnvInt("WORKER_BATCH_SIZE", 100),
		WorkerFlushMS:    getEnvInt("WORKER_FLUSH_MS", 2000),
		WorkerJobTimeout: time.Duration(getEnvInt("WORKER_JOB_TIMEOUT_SEC", 30)) * time.Second,

		ConsumerGroup:           getEnv("CONSUMER_GROUP", "tapcard-workers"),
		ConsumerBatchSize:       getEnvInt("CONSUMER_BATCH_SIZE", 50),
		ConsumerBlockMS:         getEnvInt("CONSUMER_BLOCK_MS", 5000),
		ConsumerMaxRetries:      getEnvInt("CONSUMER_MAX_RETRIES", 3),
		ConsumerPendingCheckSec: getEnvInt("CONSUMER_PENDING_CHECK_SEC", 30),
		ConsumerPendingIdleSec:  getEnvInt("CONSUMER_PENDING_IDLE_SEC", 120),
		StreamMaxLen:            int64(getEnvInt("STREAM_MAX_LEN", 1_000_000)),

		SchedulerEnabled:  getEnvBool("SCHEDULER_ENABLED", true),
		RollupInterval:    time.Duration(getEnvInt("ROLLUP_INTERVAL_MIN", 15)) * time.Minute,
		RollupLookbackHrs: getEnvInt("ROLLUP_LOOKBACK_HOURS", 48),

		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2AccessKeySecret: getEnv("R2_ACCESS_KEY_SECRET", ""),
		R2Bucket:          getEnv("R2_BUCKET", ""),
		R2PublicBaseURL:   getEnv("R2_PUBLIC_BASE_URL", ""),

		RateLimitTap:      getEnvInt("RATE_LIMIT_TAP_PER_MIN", 120),
		RateLimitExchange: getEnvInt("RATE_LIMIT_EXCHANGE_PER_MIN", 10),
		RateLimitOwner:    getEnvInt("RATE_LIMIT_OWNER_PER_MIN", 300),

		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings that would make the server misbehave silently.
func (c *Config) Validate() error {
	var errs []error
	if c.ResolveTimeout <= 0 {
		errs = append(errs, errors.New("RESOLVE_TIMEOUT_MS must be positive"))
	}
	if c.EncryptionKey != "" {
		key, err := hex.DecodeString(c.EncryptionKey)
		if err != nil || (len(key) != 16 && len(key) != 24 && len(key) != 32) {
			errs = append(errs, errors.New("ENCRYPTION_KEY must be 16, 24 or 32 hex-encoded bytes"))
		}
	}
	if c.IsProduction() && c.EncryptionKey == "" {
		errs = append(errs, errors.New("ENCRYPTION_KEY is required in production"))
	}
	return errors.Join(errs...)
}

// EncryptionKeyBytes decodes EncryptionKey; nil when unset.
func (c *Config) EncryptionKeyBytes() []byte {
	if c.EncryptionKey == "" {
		return nil
	}
	key, _ := hex.DecodeString(c.EncryptionKey)
	return key
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := parts[:0]
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

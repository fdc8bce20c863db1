package bootstrap

import (
	"context"
	"fmt"

	"tapcard_server/adapter/in/http"
	"tapcard_server/adapter/out/messaging"
	"tapcard_server/adapter/out/persistence"
	"tapcard_server/adapter/out/session"
	"tapcard_server/adapter/out/storage"
	"tapcard_server/config"
	"tapcard_server/core/port/out"
	"tapcard_server/core/service/analytics"
	"tapcard_server/core/service/card"
	"tapcard_server/core/service/exchange"
	"tapcard_server/core/service/outbox"
	"tapcard_server/core/service/profile"
	"tapcard_server/core/service/provisioning"
	"tapcard_server/core/service/resolver"
	"tapcard_server/infra/database"
	"tapcard_server/pkg/cache"
	"tapcard_server/pkg/crypto"
	"tapcard_server/pkg/logger"
	"tapcard_server/pkg/metrics"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

const latencyWindow = 1000

type Dependencies struct {
	Config *config.Config
	DB     *pgxpool.Pool
	SQLDB  *sqlx.DB
	Redis  *redis.Client

	// Repositories
	CardRepo        *persistence.CardAdapter
	ProfileRepo     out.ProfileRepository
	PublicProfiles  *persistence.BreakerProfileAdapter
	ExchangeRepo    *persistence.ContactExchangeAdapter
	EventRepo       *persistence.EventAdapter
	ManifestStorage out.ObjectStorage

	// Redis-backed; nil without REDIS_URL.
	StreamPublisher *messaging.RedisEventPublisher
	VisitGuard      *session.VisitGuard

	ResolveLatencies *metrics.Registry

	Recorder *outbox.Recorder

	// Services
	ResolveService      *resolver.Service
	CardService         *card.Service
	ProfileService      *profile.Service
	ExchangeService     *exchange.Service
	AnalyticsService    *analytics.Service
	ProvisioningService *provisioning.Service
}

func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg}
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	// Database (pgxpool)
	pgCfg := database.DefaultPostgresConfig()
	pgCfg.MaxConns = int32(cfg.DBMaxConns)
	db, err := database.NewPostgres(ctx, cfg.DatabaseURL, pgCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: %w", err)
	}
	deps.DB = db
	cleanups = append(cleanups, db.Close)

	if cfg.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
	}

	// Database (sqlx for the persistence adapters)
	sqlDB, err := database.NewSQLX(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMaxConns/2)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("sqlx: %w", err)
	}
	deps.SQLDB = sqlDB
	cleanups = append(cleanups, func() { _ = sqlDB.Close() })
	logger.Info("sqlx database connection successful (pool: max=%d)", cfg.DBMaxConns)

	// Redis carries the outbox streams, the view guard and the caches. Without
	// it events are written straight to Postgres; only tapcardctl runs that way.
	deps.CardRepo = persistence.NewCardAdapter(sqlDB)
	deps.ProfileRepo = persistence.NewProfileAdapter(sqlDB)
	deps.EventRepo = persistence.NewEventAdapter(sqlDB)
	var publisher out.EventPublisher = deps.EventRepo

	if cfg.RedisURL != "" {
		redisCfg := database.DefaultRedisConfig()
		redisCfg.PoolSize = cfg.RedisPoolSize
		redisClient, err := database.NewRedis(ctx, cfg.RedisURL, redisCfg)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("redis: %w", err)
		}
		deps.Redis = redisClient
		cleanups = append(cleanups, func() { _ = redisClient.Close() })

		deps.ProfileRepo = persistence.NewCachedProfileAdapter(
			deps.ProfileRepo,
			cache.NewRedisCache(redisClient, "tapcard:profile"),
			cfg.PremiumCacheTTL,
		)
		deps.StreamPublisher = messaging.NewRedisEventPublisher(redisClient, cfg.StreamMaxLen)
		deps.VisitGuard = session.NewVisitGuard(cache.NewRedisCache(redisClient, "tapcard:visit"), cfg.ViewGuardTTL)
		publisher = deps.StreamPublisher
	} else {
		logger.Warn("REDIS_URL not set, events are written directly to Postgres")
	}
	deps.PublicProfiles = persistence.NewBreakerProfileAdapter(deps.ProfileRepo)

	var cipher *crypto.FieldCipher
	if key := cfg.EncryptionKeyBytes(); key != nil {
		cipher, err = crypto.NewFieldCipher(key)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("field cipher: %w", err)
		}
	}
	deps.ExchangeRepo = persistence.NewContactExchangeAdapter(sqlDB, cipher)

	deps.Recorder = outbox.NewRecorder(publisher, 0)
	cleanups = append(cleanups, deps.Recorder.Flush)
	deps.ResolveLatencies = metrics.NewRegistry(latencyWindow)

	// Manifest storage (Cloudflare R2) is optional.
	r2Cfg := storage.R2Config{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		AccessKeySecret: cfg.R2AccessKeySecret,
		Bucket:          cfg.R2Bucket,
		PublicBaseURL:   cfg.R2PublicBaseURL,
	}
	if r2Cfg.Enabled() {
		r2, err := storage.NewR2Adapter(ctx, r2Cfg)
		if err != nil {
			logger.Warn("R2 storage disabled: %v", err)
		} else {
			deps.ManifestStorage = r2
			logger.Info("R2 manifest storage initialized (bucket: %s)", cfg.R2Bucket)
		}
	}

	// Services
	deps.ResolveService = resolver.NewService(
		deps.CardRepo,
		deps.PublicProfiles,
		deps.Recorder,
		visitGuard(deps.VisitGuard),
		deps.ResolveLatencies,
		resolver.Config{LookupTimeout: cfg.ResolveTimeout},
	)
	deps.CardService = card.NewService(deps.CardRepo, deps.ProfileRepo, deps.Recorder)
	deps.ProfileService = profile.NewService(deps.ProfileRepo, deps.EventRepo)
	deps.ExchangeService = exchange.NewService(deps.ExchangeRepo, deps.ProfileRepo)
	deps.AnalyticsService = analytics.NewService(deps.EventRepo, deps.Recorder)
	deps.ProvisioningService = provisioning.NewService(deps.CardRepo, deps.ManifestStorage, cfg.PublicBaseURL)

	return deps, cleanup, nil
}

// visitGuard keeps a missing guard a nil interface.
func visitGuard(g *session.VisitGuard) out.VisitGuard {
	if g == nil {
		return nil
	}
	return g
}

// RequireRedis fails for modes that cannot run on direct writes.
func (d *Dependencies) RequireRedis(mode string) error {
	if d.Redis == nil {
		return fmt.Errorf("%s mode requires REDIS_URL", mode)
	}
	return nil
}

// HealthChecks probes every configured backing store.
func (d *Dependencies) HealthChecks() map[string]http.Check {
	checks := map[string]http.Check{
		"postgres": func(ctx context.Context) error { return d.DB.Ping(ctx) },
	}
	if d.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return d.Redis.Ping(ctx).Err() }
	}
	return checks
}

// PoolStats snapshots the postgres and redis connection pools.
func (d *Dependencies) PoolStats() map[string]any {
	stats := map[string]any{"postgres": database.GetPoolStats(d.DB)}
	if d.Redis != nil {
		stats["redis"] = database.GetRedisStats(d.Redis)
	}
	return stats
}

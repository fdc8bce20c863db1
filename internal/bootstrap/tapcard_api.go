package bootstrap

import (
	"context"
	"strings"
	"time"

	"tapcard_server/adapter/in/http"
	"tapcard_server/config"
	"tapcard_server/infra/middleware"
	"tapcard_server/pkg/logger"
	"tapcard_server/pkg/ratelimit"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// exchangeBodyLimit bounds the public contact exchange form.
const exchangeBodyLimit = 8 * 1024

// API is the HTTP surface plus what must be drained on shutdown.
type API struct {
	App     *fiber.App
	deps    *Dependencies
	auditor *middleware.Auditor
}

func NewAPI(cfg *config.Config) (*API, func(), error) {
	logLevel := logger.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = logger.LevelDebug
	}
	if cfg.LogLevel != "" {
		logLevel = logger.ParseLevel(cfg.LogLevel)
	}
	logger.Init(logger.Config{
		Level:   logLevel,
		Service: "tapcard-api",
		Console: cfg.IsDevelopment(),
	})

	// Supabase ES256/RS256 tokens are verified against the project's JWKS.
	middleware.InitJWKS(cfg.SupabaseURL)

	deps, cleanup, err := NewDependencies(context.Background(), cfg)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize dependencies")
		return nil, nil, err
	}
	if err := deps.RequireRedis("api"); err != nil {
		cleanup()
		return nil, nil, err
	}

	middleware.InitTokenBlacklist(deps.Redis)
	auditor := middleware.NewAuditor(middleware.NewRedisAuditSink(deps.Redis), middleware.AuditActions)

	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: cfg.IsProduction(),
		StrictRouting:         false,
		CaseSensitive:         false,

		ReadBufferSize:  16384,
		WriteBufferSize: 16384,

		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,

		BodyLimit: 1 * 1024 * 1024,

		ServerHeader:       "",
		DisableDefaultDate: true,
		ReadTimeout:        10 * time.Second,
		WriteTimeout:       15 * time.Second,
		IdleTimeout:        60 * time.Second,
	})

	// Global middleware stack (order matters)
	app.Use(middleware.Recover())
	app.Use(middleware.RequestID())
	app.Use(middleware.SecurityHeaders())
	app.Use(middleware.PreventPathTraversal())
	app.Use(middleware.RequestLogger())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// AllowCredentials requires explicit origins (not "*")
	allowOrigins := strings.Join(cfg.AllowedOrigins, ",")
	allowCredentials := true
	if allowOrigins == "" || allowOrigins == "*" {
		if cfg.IsProduction() {
			allowOrigins = ""
			allowCredentials = false
		} else {
			allowOrigins = "http://localhost:3000,http://localhost:5173"
		}
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-Request-ID,X-Visit-ID",
		ExposeHeaders:    "X-Request-ID,X-RateLimit-Limit,Retry-After",
		AllowCredentials: allowCredentials,
		MaxAge:           86400,
	}))

	// Health check (no auth required)
	health := http.NewHealthHandler(deps.HealthChecks(), deps.ResolveLatencies).
		WithBreaker(deps.PublicProfiles.State).
		WithBacklog(deps.StreamPublisher.Backlog).
		WithPools(deps.PoolStats)
	health.Register(app)

	tapLimiter := ratelimit.NewSlidingWindowLimiter(deps.Redis, "tap", cfg.RateLimitTap, time.Minute)
	exchangeLimiter := ratelimit.NewSlidingWindowLimiter(deps.Redis, "exchange", cfg.RateLimitExchange, time.Minute)
	ownerLimiter := ratelimit.NewSlidingWindowLimiter(deps.Redis, "owner", cfg.RateLimitOwner, time.Minute)

	resolveHandler := http.NewResolveHandler(deps.ResolveService)
	exchangeHandler := http.NewExchangeHandler(deps.ExchangeService)

	// Public API routes. Registered before the JWT middleware so it does not apply to them.
	publicGuards := []fiber.Handler{middleware.NoStore(), middleware.OptionalJWTAuth(cfg.JWTSecret)}
	tapGuards := append(publicGuards, middleware.RateLimit(tapLimiter, middleware.KeyByIP))
	public := app.Group("/api/v1")
	resolveHandler.Register(public, tapGuards...)
	exchangeHandler.RegisterPublic(public,
		middleware.RateLimit(exchangeLimiter, middleware.KeyByIP),
		middleware.MaxBodySize(exchangeBodyLimit),
	)
	http.NewEventHandler(deps.AnalyticsService).RegisterPublic(public, tapGuards...)

	// Owner API routes (with auth and rate limiting)
	api := app.Group("/api/v1")
	api.Use(middleware.JWTAuth(cfg.JWTSecret))
	api.Use(middleware.RateLimit(ownerLimiter, middleware.KeyByUserOrIP))
	api.Use(auditor.Middleware())

	http.NewCardHandler(deps.CardService).Register(api)
	http.NewProfileHandler(deps.ProfileService).Register(api)
	exchangeHandler.Register(api)

	// Operator routes
	if cfg.AdminAPIKey == "" {
		logger.Warn("ADMIN_API_KEY not set, admin routes will reject every request")
	}
	admin := app.Group("/admin", middleware.AdminKey(cfg.AdminAPIKey), auditor.Middleware())
	http.NewAdminHandler(deps.ProvisioningService).Register(admin)

	// Tap URL catch-all goes last so it never shadows the routes above.
	resolveHandler.RegisterTap(app, tapGuards...)

	logger.Info("API server initialized successfully")

	return &API{App: app, deps: deps, auditor: auditor}, cleanup, nil
}

// Shutdown stops accepting requests, then waits for background audit and
// outbox writes started by in-flight requests.
func (a *API) Shutdown(ctx context.Context) error {
	err := a.App.ShutdownWithContext(ctx)
	a.auditor.Flush()
	a.deps.Recorder.Flush()
	return err
}

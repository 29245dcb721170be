package bootstrap

import (
	"context"
	"strings"
	"time"

	"tracker_server/adapter/in/http"
	"tracker_server/config"
	"tracker_server/infra/middleware"
	"tracker_server/pkg/logger"
	"tracker_server/pkg/ratelimit"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	bodyLimit = 2 * 1024 * 1024

	// Per-user budgets for routes that fan out to Gmail or OpenAI.
	syncRateLimit    = 10
	analyzeRateLimit = 20
	rateLimitWindow  = time.Minute
)

// NewAPI wires the dependencies and returns the Fiber app.
func NewAPI(cfg *config.Config) (*fiber.App, func(), error) {
	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize dependencies")
		return nil, nil, err
	}
	return NewApp(deps), cleanup, nil
}

// NewApp builds the HTTP surface over already wired dependencies.
func NewApp(deps *Dependencies) *fiber.App {
	cfg := deps.Config

	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: cfg.IsProduction(),
		Prefork:               false,

		// go-json: faster JSON serialization than encoding/json
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,

		BodyLimit:          bodyLimit,
		ReadTimeout:        30 * time.Second,
		WriteTimeout:       5 * time.Minute, // a manual sync can run for minutes
		IdleTimeout:        120 * time.Second,
		ServerHeader:       "",
		DisableDefaultDate: true,
	})

	// Global middleware stack (order matters)
	app.Use(middleware.Recover())         // 1. Panic recovery
	app.Use(middleware.RequestID())       // 2. Request ID
	app.Use(middleware.SecurityHeaders()) // 3. Security headers
	app.Use(middleware.RequestLogger())   // 4. Request logging
	app.Use(middleware.MaxBodySize(bodyLimit))
	app.Use(compress.New(compress.Config{Level: compress.LevelBestSpeed}))

	// CORS - credentials require explicit origins
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
		AllowMethods:     "GET,POST,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-Request-ID," + middleware.CronSecretHeader,
		ExposeHeaders:    "X-Request-ID,X-RateLimit-Limit,X-RateLimit-Remaining,X-RateLimit-Reset,Retry-After",
		AllowCredentials: allowCredentials,
		MaxAge:           86400,
	}))

	// Health and metrics (no auth required)
	var rdb redis.UniversalClient
	if deps.Redis != nil {
		rdb = deps.Redis
	}
	health := http.NewHealthHandler(deps.DB, rdb)
	if deps.Mongo != nil {
		client := deps.Mongo
		health.WithCheck("mongodb", http.CheckFunc(func(ctx context.Context) error {
			return client.Ping(ctx, readpref.Primary())
		}))
	}
	health.Register(app)

	api := app.Group("/api/v1")

	// Scheduler entry point, shared secret instead of a user token
	http.NewCronHandler(deps.Orchestrator).Register(api, middleware.CronAuth(cfg.CronSecret))

	api.Use(middleware.JWTAuth(cfg.JWTSecret))

	syncLimiter := newRateLimiter(deps, "sync", syncRateLimit)
	analyzeLimiter := newRateLimiter(deps, "analyze", analyzeRateLimit)

	http.NewSyncHandler(deps.Orchestrator).Register(api, syncLimiter.Handler())
	http.NewWebhookHandler(deps.Applications).Register(api)
	http.NewIntegrationHandler(deps.Integrations).Register(api)
	http.NewApplicationHandler(deps.Applications).Register(api, analyzeLimiter.Handler())

	logger.Info("API routes registered (providers: %s)", strings.Join(deps.Registry.Providers(), ","))
	return app
}

// newRateLimiter shares counts through Redis when it is configured so every
// replica enforces the same budget.
func newRateLimiter(deps *Dependencies, route string, limit int) *middleware.RateLimiter {
	if deps.Redis == nil {
		return middleware.NewRateLimiter(limit, rateLimitWindow)
	}
	prefix := "tracker:ratelimit:" + route + ":"
	return middleware.NewRateLimiterWith(ratelimit.NewSlidingWindowLimiter(deps.Redis, limit, rateLimitWindow, prefix))
}

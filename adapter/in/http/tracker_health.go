package http

import (
	"context"
	"time"

	"tracker_server/infra/database"
	"tracker_server/pkg/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// HealthChecker is any dependency that can report liveness.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// CheckFunc adapts a function to HealthChecker.
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) Ping(ctx context.Context) error { return f(ctx) }

type HealthHandler struct {
	db    *sqlx.DB
	redis redis.UniversalClient
	extra map[string]HealthChecker
}

// NewHealthHandler creates the handler. Nil dependencies are reported as
// not configured.
func NewHealthHandler(db *sqlx.DB, rdb redis.UniversalClient) *HealthHandler {
	return &HealthHandler{db: db, redis: rdb, extra: map[string]HealthChecker{}}
}

// WithCheck adds a named readiness check.
func (h *HealthHandler) WithCheck(name string, checker HealthChecker) *HealthHandler {
	if checker != nil {
		h.extra[name] = checker
	}
	return h
}

func (h *HealthHandler) Register(app *fiber.App) {
	app.Get("/health", h.Health)
	app.Get("/ready", h.Ready)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true
	var redisPool *database.RedisPoolStats

	// PostgreSQL
	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			checks["postgres"] = "unhealthy: " + err.Error()
			allHealthy = false
		} else {
			checks["postgres"] = "healthy"
		}
	} else {
		checks["postgres"] = "not configured"
	}

	// Redis
	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = "unhealthy: " + err.Error()
			allHealthy = false
		} else {
			checks["redis"] = "healthy"
		}
		if client, ok := h.redis.(*redis.Client); ok {
			stats := database.ReadRedisPool(client)
			redisPool = &stats
		}
	} else {
		checks["redis"] = "not configured"
	}

	for name, checker := range h.extra {
		if err := checker.Ping(ctx); err != nil {
			checks[name] = "unhealthy: " + err.Error()
			allHealthy = false
		} else {
			checks[name] = "healthy"
		}
	}

	body := fiber.Map{
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if redisPool != nil {
		body["redis_pool"] = redisPool
	}
	if h.db != nil {
		pool := metrics.RecordDBPool(metrics.GetDBPoolStats(h.db.DB))
		body["db_pool"] = pool
		if pool.Status == metrics.PoolUnhealthy {
			allHealthy = false
		}
	}

	statusCode := fiber.StatusOK
	body["status"] = "ready"
	if !allHealthy {
		body["status"] = "not ready"
		statusCode = fiber.StatusServiceUnavailable
	}
	return c.Status(statusCode).JSON(body)
}

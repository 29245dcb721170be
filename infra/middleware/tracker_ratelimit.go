package middleware

import (
	"strconv"
	"time"

	"tracker_server/pkg/apperr"
	"tracker_server/pkg/logger"
	"tracker_server/pkg/ratelimit"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// RateLimiter guards the routes that fan out to the mailbox or the LLM. Keys
// are the authenticated user, falling back to client IP.
type RateLimiter struct {
	limiter ratelimit.Limiter
	now     func() time.Time
}

// NewRateLimiter limits each key to limit requests per window in this process.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return NewRateLimiterWith(ratelimit.NewLocalLimiter(limit, window))
}

// NewRateLimiterWith uses the given backend, typically a Redis sliding window
// shared by every API replica.
func NewRateLimiterWith(limiter ratelimit.Limiter) *RateLimiter {
	return &RateLimiter{limiter: limiter, now: time.Now}
}

func (rl *RateLimiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := "ip:" + c.IP()
		if uid, ok := c.Locals("user_id").(uuid.UUID); ok {
			key = "user:" + uid.String()
		}

		d, err := rl.limiter.Allow(c.UserContext(), key)
		if err != nil {
			// Fail open: a limiter outage must not take the API down.
			logger.WithError(err).Warn("[RateLimiter] backend unavailable, allowing %s", key)
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
		if !d.Allowed {
			retryAfter := int(d.RetryAfter(rl.now()) / time.Second)
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfter))
			return apperr.RateLimited(retryAfter)
		}
		return c.Next()
	}
}

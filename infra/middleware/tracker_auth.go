package middleware

import (
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"tracker_server/pkg/apperr"
	"tracker_server/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// CronSecretHeader carries the shared secret for scheduler-triggered routes.
const CronSecretHeader = "X-Cron-Secret"

// JWTAuth validates HS256 bearer tokens and stores the subject as the
// "user_id" local.
func JWTAuth(secret string) fiber.Handler {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(time.Minute),
	)

	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodOptions {
			return c.Next()
		}
		if secret == "" {
			return apperr.ConfigError("JWT secret not configured")
		}

		tokenString := bearerToken(c.Get(fiber.HeaderAuthorization))
		if tokenString == "" {
			return apperr.Unauthorized("missing authorization")
		}

		claims := jwt.MapClaims{}
		_, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
			return []byte(secret), nil
		})
		if err != nil {
			logger.WithError(err).Warn("JWT validation failed")
			return apperr.InvalidToken("invalid token").WithError(err)
		}

		sub, err := claims.GetSubject()
		if err != nil || sub == "" {
			return apperr.InvalidToken("missing user id in token")
		}
		userID, err := uuid.Parse(sub)
		if err != nil {
			return apperr.InvalidToken("invalid user id format")
		}

		if email, ok := claims["email"].(string); ok {
			c.Locals("user_email", email)
		}
		c.Locals("user_id", userID)
		return c.Next()
	}
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// CronAuth accepts requests carrying secret in X-Cron-Secret or as a bearer
// token.
func CronAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret == "" {
			return apperr.ConfigError("cron secret not configured")
		}
		got := c.Get(CronSecretHeader)
		if got == "" {
			// Vercel Cron sends the secret as a bearer token.
			got = bearerToken(c.Get(fiber.HeaderAuthorization))
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			LogSecurityEvent(c, "cron_auth_failed", fmt.Sprintf("header present: %t", got != ""))
			return apperr.Unauthorized("invalid cron secret")
		}
		return c.Next()
	}
}

// LogSecurityEvent records a rejected request for later review.
func LogSecurityEvent(c *fiber.Ctx, eventType, detail string) {
	requestID, _ := c.Locals("request_id").(string)
	logger.WithFields(map[string]any{
		"request_id": requestID,
		"event":      eventType,
		"ip":         c.IP(),
		"path":       c.Path(),
	}).Warn("Security event: %s", detail)
}

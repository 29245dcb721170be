// Package http exposes the tracker API over Fiber.
package http

import (
	"tracker_server/pkg/apperr"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// GetUserID extracts the authenticated user set by middleware.JWTAuth.
func GetUserID(c *fiber.Ctx) (uuid.UUID, error) {
	userID, ok := c.Locals("user_id").(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return uuid.Nil, apperr.Unauthorized("authentication required")
	}
	return userID, nil
}

// paramUUID parses a path parameter as a UUID.
func paramUUID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	raw := c.Params(name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.InvalidInput(name, "must be a valid UUID")
	}
	return id, nil
}

// parseBody decodes the JSON body into v, mapping decode failures to 400.
func parseBody(c *fiber.Ctx, v any) error {
	if len(c.Body()) == 0 {
		return apperr.BadRequest("request body is required")
	}
	if err := json.Unmarshal(c.Body(), v); err != nil {
		return apperr.BadRequest("invalid request body").WithError(err)
	}
	return nil
}

package http

import (
	"tracker_server/core/port/in"
	"tracker_server/pkg/logger"
	"tracker_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// ApplicationHandler serves the evidence trail of tracked applications and
// account-level operations.
type ApplicationHandler struct {
	service in.ApplicationService
}

func NewApplicationHandler(service in.ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{service: service}
}

// Register mounts the routes. analyzeMW runs before the analyze route, which
// calls the LLM and is usually rate limited.
func (h *ApplicationHandler) Register(router fiber.Router, analyzeMW ...fiber.Handler) {
	apps := router.Group("/applications")
	apps.Post("/analyze", append(append([]fiber.Handler{}, analyzeMW...), h.Analyze)...)
	apps.Get("/:id/emails", h.ListEmails)
	apps.Get("/:id/history", h.ListHistory)

	router.Delete("/account", h.DeleteAccount)
}

// ListEmails returns the linked messages, newest first.
func (h *ApplicationHandler) ListEmails(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	emails, err := h.service.ListEmails(c.UserContext(), userID, id)
	if err != nil {
		return err
	}
	return response.OK(c, emails)
}

func (h *ApplicationHandler) ListHistory(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	history, err := h.service.ListHistory(c.UserContext(), userID, id)
	if err != nil {
		return err
	}
	return response.OK(c, history)
}

// Analyze classifies a pasted email and tracks the application it describes.
func (h *ApplicationHandler) Analyze(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}
	var req in.AnalyzeEmailRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	res, err := h.service.AnalyzeEmail(c.UserContext(), userID, req)
	if err != nil {
		return err
	}
	if res.Created {
		return response.Created(c, res)
	}
	return response.OK(c, res)
}

// DeleteAccount removes every integration and application of the caller.
func (h *ApplicationHandler) DeleteAccount(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}
	if err := h.service.DeleteAccountData(c.UserContext(), userID); err != nil {
		return err
	}
	logger.Info("[ApplicationHandler.DeleteAccount] tracker data removed for user %s", userID)
	return response.NoContent(c)
}

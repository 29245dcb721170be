package http

import (
	"tracker_server/core/domain"
	"tracker_server/core/port/in"
	"tracker_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// IntegrationHandler manages the caller's mailbox integrations.
type IntegrationHandler struct {
	service in.IntegrationService
}

func NewIntegrationHandler(service in.IntegrationService) *IntegrationHandler {
	return &IntegrationHandler{service: service}
}

func (h *IntegrationHandler) Register(router fiber.Router) {
	integrations := router.Group("/integrations")

	integrations.Get("/", h.List)
	integrations.Post("/", h.Connect)
	integrations.Delete("/:id", h.Disconnect)

	// Scheduling
	integrations.Post("/:id/pause", h.Pause)
	integrations.Post("/:id/resume", h.Resume)
	integrations.Patch("/:id/frequency", h.SetFrequency)
	integrations.Post("/:id/frequency", h.SetFrequency)
}

func (h *IntegrationHandler) List(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}
	list, err := h.service.List(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return response.OK(c, list)
}

func (h *IntegrationHandler) Connect(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}
	var req in.ConnectRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	it, err := h.service.Connect(c.UserContext(), userID, req)
	if err != nil {
		return err
	}
	return response.Created(c, it)
}

func (h *IntegrationHandler) Pause(c *fiber.Ctx) error {
	return h.setActive(c, false)
}

func (h *IntegrationHandler) Resume(c *fiber.Ctx) error {
	return h.setActive(c, true)
}

func (h *IntegrationHandler) setActive(c *fiber.Ctx, active bool) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	it, err := h.service.SetActive(c.UserContext(), userID, id, active)
	if err != nil {
		return err
	}
	return response.OK(c, it)
}

type frequencyRequest struct {
	SyncFrequency domain.SyncFrequency `json:"sync_frequency"`
}

func (h *IntegrationHandler) SetFrequency(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req frequencyRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	it, err := h.service.SetFrequency(c.UserContext(), userID, id, req.SyncFrequency)
	if err != nil {
		return err
	}
	return response.OK(c, it)
}

func (h *IntegrationHandler) Disconnect(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.Disconnect(c.UserContext(), userID, id); err != nil {
		return err
	}
	return response.NoContent(c)
}

package http

import (
	"tracker_server/core/domain"
	"tracker_server/core/port/in"
	"tracker_server/pkg/logger"
	"tracker_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// SyncHandler triggers mailbox syncs for a user.
type SyncHandler struct {
	sync in.SyncService
}

func NewSyncHandler(sync in.SyncService) *SyncHandler {
	return &SyncHandler{sync: sync}
}

// Register mounts the user-triggered sync route. Extra handlers run before
// the sync, typically a rate limiter.
func (h *SyncHandler) Register(router fiber.Router, mw ...fiber.Handler) {
	handlers := append(append([]fiber.Handler{}, mw...), h.SyncIntegration)
	router.Post("/sync/:integrationId", handlers...)
}

// SyncIntegration runs one sync and returns its SyncResult. Run-level
// failures still carry the result as data.
func (h *SyncHandler) SyncIntegration(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}
	integrationID, err := paramUUID(c, "integrationId")
	if err != nil {
		return err
	}

	result := h.sync.SyncIntegration(c.UserContext(), userID, integrationID)
	if result.Success {
		return response.OK(c, result)
	}

	code, message := domain.SyncErrInternal, "sync failed"
	if result.Error != nil {
		code, message = result.Error.Code, result.Error.Message
	}
	return response.ErrorWithData(c, syncErrorStatus(code), &response.ErrorInfo{
		Code:    string(code),
		Message: message,
	}, result)
}

func syncErrorStatus(code domain.SyncErrorCode) int {
	switch code {
	case domain.SyncErrNotFound:
		return fiber.StatusNotFound
	case domain.SyncErrInProgress:
		return fiber.StatusConflict
	case domain.SyncErrUnsupportedProvider:
		return fiber.StatusBadRequest
	case domain.SyncErrConnectionFailed, domain.SyncErrFetchFailed:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// ===== Cron =====

// CronHandler is the scheduler entry point, guarded by a shared secret.
type CronHandler struct {
	sync in.SyncService
}

func NewCronHandler(sync in.SyncService) *CronHandler {
	return &CronHandler{sync: sync}
}

// Register mounts the batch route for GET (hosted cron schedulers) and POST.
// auth must reject callers without the cron secret.
func (h *CronHandler) Register(router fiber.Router, auth fiber.Handler) {
	router.Get("/cron/email-sync", auth, h.EmailSync)
	router.Post("/cron/email-sync", auth, h.EmailSync)
}

// EmailSync syncs every eligible integration and reports each result.
func (h *CronHandler) EmailSync(c *fiber.Ctx) error {
	batch := h.sync.SyncAll(c.UserContext())
	failed := 0
	for _, r := range batch.Processed {
		if !r.Success {
			failed++
		}
	}
	logger.Info("[CronHandler.EmailSync] batch finished: %d processed, %d failed", len(batch.Processed), failed)
	if batch.Processed == nil {
		batch.Processed = []domain.SyncResult{}
	}
	return response.OK(c, batch)
}

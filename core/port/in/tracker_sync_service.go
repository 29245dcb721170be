package in

import (
	"context"

	"tracker_server/core/domain"

	"github.com/google/uuid"
)

// SyncService runs mailbox syncs.
type SyncService interface {
	SyncIntegration(ctx context.Context, userID, integrationID uuid.UUID) domain.SyncResult
	SyncAll(ctx context.Context) domain.BatchResult
}

package out

import (
	"context"
	"errors"
	"time"

	"tracker_server/core/domain"

	"github.com/google/uuid"
)

var ErrLockHeld = errors.New("sync lock already held")

// SyncLocker guarantees one running sync per integration.
type SyncLocker interface {
	// Acquire returns ErrLockHeld when another run owns the integration.
	Acquire(ctx context.Context, integrationID uuid.UUID, ttl time.Duration) (release func(), err error)
}

// ArchivedMessage is a classified message kept for debugging classifier output.
type ArchivedMessage struct {
	IntegrationID uuid.UUID                   `json:"integration_id"`
	UserID        uuid.UUID                   `json:"user_id"`
	MessageID     string                      `json:"message_id"`
	Subject       string                      `json:"subject"`
	Sender        string                      `json:"sender"`
	ReceivedAt    time.Time                   `json:"received_at"`
	Result        domain.ClassificationResult `json:"result"`
	Outcome       string                      `json:"outcome"`
	ArchivedAt    time.Time                   `json:"archived_at"`
}

// MessageArchive stores classified messages. Failures never affect a sync run.
type MessageArchive interface {
	Save(ctx context.Context, msg *ArchivedMessage) error
}

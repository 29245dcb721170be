package out

import (
	"context"
	"errors"
	"time"

	"tracker_server/core/domain"

	"github.com/google/uuid"
)

// Store errors shared by every repository implementation.
var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate entry")
)

// IntegrationRepository persists mailbox integrations.
type IntegrationRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Integration, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Integration, error)
	ListByUserAndProvider(ctx context.Context, userID uuid.UUID, provider string) ([]*domain.Integration, error)
	ListActive(ctx context.Context) ([]*domain.Integration, error)
	Create(ctx context.Context, integration *domain.Integration) error
	UpdateCredentials(ctx context.Context, id uuid.UUID, creds domain.Credentials) error
	UpdateSyncCursor(ctx context.Context, id uuid.UUID, cursor domain.SyncCursor) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	SetFrequency(ctx context.Context, id uuid.UUID, freq domain.SyncFrequency) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
}

// ApplicationRepository persists tracked applications.
// Create returns ErrDuplicate when a uniqueness key is already taken.
type ApplicationRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Application, error)
	FindByExternalID(ctx context.Context, userID uuid.UUID, externalJobID string) (*domain.Application, error)
	FindByCompanyAndTitle(ctx context.Context, userID uuid.UUID, company, title string) (*domain.Application, error)
	Create(ctx context.Context, app *domain.Application) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ApplicationStatus, at time.Time) error
	// UpdateDetails overwrites the descriptive fields (url, description, location, remote).
	UpdateDetails(ctx context.Context, app *domain.Application) error
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
}

// ApplicationEmailRepository persists evidence emails.
// Create returns ErrDuplicate when (application_id, message_id) already exists.
type ApplicationEmailRepository interface {
	Exists(ctx context.Context, applicationID uuid.UUID, messageID string) (bool, error)
	Create(ctx context.Context, email *domain.ApplicationEmail) error
	ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]*domain.ApplicationEmail, error)
}

// StatusHistoryRepository is the append-only status trail.
type StatusHistoryRepository interface {
	Append(ctx context.Context, entry *domain.StatusHistoryEntry) error
	ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]*domain.StatusHistoryEntry, error)
}

// Store groups the repositories the sync engine reads and writes.
type Store struct {
	Integrations IntegrationRepository
	Applications ApplicationRepository
	Emails       ApplicationEmailRepository
	History      StatusHistoryRepository
}

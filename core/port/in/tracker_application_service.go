package in

import (
	"context"
	"time"

	"tracker_server/core/domain"

	"github.com/google/uuid"
)

// ScrapedApplication is one record pushed by the browser extension.
type ScrapedApplication struct {
	JobTitle       string `json:"title" validate:"required,max=300"`
	CompanyName    string `json:"company" validate:"required,max=300"`
	JobURL         string `json:"url" validate:"omitempty,url"`
	JobDescription string `json:"description"`
	Location       string `json:"location"`
	Remote         bool   `json:"remote"`
	ExternalJobID  string `json:"jobId" validate:"max=200"`
	// AppliedDate defaults to the ingestion time when nil.
	AppliedDate *time.Time `json:"appliedDate,omitempty"`
}

// IngestResult reports what happened to each scraped record.
type IngestResult struct {
	Application *domain.Application `json:"application"`
	Created     bool                `json:"created"`
}

// AnalyzeEmailRequest is a pasted email the user wants tracked.
type AnalyzeEmailRequest struct {
	Subject string `json:"subject" validate:"max=500"`
	Sender  string `json:"sender" validate:"max=320"`
	Content string `json:"emailContent" validate:"required,max=100000"`
}

// AnalyzeResult reports the judgment and the application it produced.
type AnalyzeResult struct {
	Classification domain.ClassificationResult `json:"classification"`
	Application    *domain.Application         `json:"application"`
	Created        bool                        `json:"created"`
}

// ApplicationService covers everything around tracked applications that is
// not the mailbox sync itself.
type ApplicationService interface {
	IngestScraped(ctx context.Context, userID uuid.UUID, source domain.ApplicationSource, records []ScrapedApplication) ([]IngestResult, error)
	ListEmails(ctx context.Context, userID, applicationID uuid.UUID) ([]*domain.ApplicationEmail, error)
	ListHistory(ctx context.Context, userID, applicationID uuid.UUID) ([]*domain.StatusHistoryEntry, error)
	AnalyzeEmail(ctx context.Context, userID uuid.UUID, req AnalyzeEmailRequest) (*AnalyzeResult, error)
	DeleteAccountData(ctx context.Context, userID uuid.UUID) error
}

// ConnectRequest carries a freshly authorised credential bundle.
type ConnectRequest struct {
	Provider      string               `json:"provider" validate:"required,oneof=gmail"`
	Credentials   domain.Credentials   `json:"credentials"`
	SyncFrequency domain.SyncFrequency `json:"sync_frequency" validate:"omitempty,oneof=hourly daily manual"`
}

// IntegrationService manages a user's mailbox integrations.
type IntegrationService interface {
	List(ctx context.Context, userID uuid.UUID) ([]*domain.Integration, error)
	Connect(ctx context.Context, userID uuid.UUID, req ConnectRequest) (*domain.Integration, error)
	SetActive(ctx context.Context, userID, integrationID uuid.UUID, active bool) (*domain.Integration, error)
	SetFrequency(ctx context.Context, userID, integrationID uuid.UUID, freq domain.SyncFrequency) (*domain.Integration, error)
	Disconnect(ctx context.Context, userID, integrationID uuid.UUID) error
}

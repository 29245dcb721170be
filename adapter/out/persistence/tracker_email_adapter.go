package persistence

import (
	"context"
	"fmt"
	"time"

	"tracker_server/core/domain"
	"tracker_server/core/port/out"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var (
	_ out.ApplicationEmailRepository = (*EmailAdapter)(nil)
	_ out.StatusHistoryRepository    = (*HistoryAdapter)(nil)
)

// =============================================================================
// EmailAdapter - application_emails
// =============================================================================

type EmailAdapter struct {
	db *sqlx.DB
}

func NewEmailAdapter(db *sqlx.DB) *EmailAdapter {
	return &EmailAdapter{db: db}
}

type emailEntity struct {
	ID            uuid.UUID `db:"id"`
	UserID        uuid.UUID `db:"user_id"`
	ApplicationID uuid.UUID `db:"application_id"`
	MessageID     string    `db:"message_id"`
	Subject       string    `db:"subject"`
	Sender        string    `db:"sender"`
	ReceivedAt    time.Time `db:"received_at"`
	Body          string    `db:"body"`
	Category      string    `db:"category"`
	Metadata      []byte    `db:"metadata"`
	CreatedAt     time.Time `db:"created_at"`
}

func (e *emailEntity) toDomain() (*domain.ApplicationEmail, error) {
	email := &domain.ApplicationEmail{
		ID:            e.ID,
		UserID:        e.UserID,
		ApplicationID: e.ApplicationID,
		MessageID:     e.MessageID,
		Subject:       e.Subject,
		Sender:        e.Sender,
		ReceivedAt:    e.ReceivedAt,
		Body:          e.Body,
		Category:      domain.ParseEmailCategory(e.Category),
		CreatedAt:     e.CreatedAt,
	}
	if len(e.Metadata) > 0 {
		if err := json.Unmarshal(e.Metadata, &email.Metadata); err != nil {
			return nil, fmt.Errorf("email %s metadata: %w", e.ID, err)
		}
	}
	return email, nil
}

func (a *EmailAdapter) Exists(ctx context.Context, applicationID uuid.UUID, messageID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM application_emails WHERE application_id = $1 AND message_id = $2)`
	if err := a.db.GetContext(ctx, &exists, query, applicationID, messageID); err != nil {
		return false, mapError(err)
	}
	return exists, nil
}

func (a *EmailAdapter) Create(ctx context.Context, email *domain.ApplicationEmail) error {
	if email.ID == uuid.Nil {
		email.ID = uuid.New()
	}
	metadata, err := json.Marshal(email.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO application_emails (
			id, user_id, application_id, message_id, subject, sender, received_at, body, category, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb)
		RETURNING created_at`
	row := a.db.QueryRowxContext(ctx, query,
		email.ID, email.UserID, email.ApplicationID, email.MessageID, email.Subject, email.Sender,
		email.ReceivedAt, email.Body, string(email.Category), string(metadata),
	)
	return mapError(row.Scan(&email.CreatedAt))
}

func (a *EmailAdapter) ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]*domain.ApplicationEmail, error) {
	var entities []emailEntity
	query := `
		SELECT id, user_id, application_id, message_id, subject, sender, received_at, body, category, metadata, created_at
		FROM application_emails
		WHERE application_id = $1
		ORDER BY received_at DESC`
	if err := a.db.SelectContext(ctx, &entities, query, applicationID); err != nil {
		return nil, mapError(err)
	}
	res := make([]*domain.ApplicationEmail, 0, len(entities))
	for i := range entities {
		email, err := entities[i].toDomain()
		if err != nil {
			return nil, err
		}
		res = append(res, email)
	}
	return res, nil
}

// =============================================================================
// HistoryAdapter - application_status_history
// =============================================================================

type HistoryAdapter struct {
	db *sqlx.DB
}

func NewHistoryAdapter(db *sqlx.DB) *HistoryAdapter {
	return &HistoryAdapter{db: db}
}

func (a *HistoryAdapter) Append(ctx context.Context, entry *domain.StatusHistoryEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	query := `
		INSERT INTO application_status_history (id, application_id, status, note, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := a.db.ExecContext(ctx, query, entry.ID, entry.ApplicationID, string(entry.Status), entry.Note, entry.CreatedAt)
	return mapError(err)
}

func (a *HistoryAdapter) ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]*domain.StatusHistoryEntry, error) {
	var entries []*domain.StatusHistoryEntry
	query := `
		SELECT id, application_id, status, note, created_at
		FROM application_status_history
		WHERE application_id = $1
		ORDER BY created_at`
	if err := a.db.SelectContext(ctx, &entries, query, applicationID); err != nil {
		return nil, mapError(err)
	}
	if entries == nil {
		entries = []*domain.StatusHistoryEntry{}
	}
	return entries, nil
}

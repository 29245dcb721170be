package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tracker_server/core/domain"
	"tracker_server/core/port/out"
	"tracker_server/pkg/crypto"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var _ out.IntegrationRepository = (*IntegrationAdapter)(nil)

// =============================================================================
// IntegrationAdapter - email_integrations
// =============================================================================

type IntegrationAdapter struct {
	db    *sqlx.DB
	codec credentialCodec
}

// NewIntegrationAdapter seals credentials with enc when it is not nil.
func NewIntegrationAdapter(db *sqlx.DB, enc *crypto.Encryptor) *IntegrationAdapter {
	return &IntegrationAdapter{db: db, codec: credentialCodec{enc: enc}}
}

// =============================================================================
// Entity
// =============================================================================

type integrationEntity struct {
	ID            uuid.UUID      `db:"id"`
	UserID        uuid.UUID      `db:"user_id"`
	Provider      string         `db:"provider"`
	Credentials   []byte         `db:"credentials"`
	IsActive      bool           `db:"is_active"`
	SyncFrequency string         `db:"sync_frequency"`
	LastSync      sql.NullTime   `db:"last_sync"`
	LastEmailID   sql.NullString `db:"last_email_id"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

func (e *integrationEntity) toDomain(codec credentialCodec) (*domain.Integration, error) {
	creds, err := codec.decode(e.Credentials)
	if err != nil {
		return nil, fmt.Errorf("integration %s: %w", e.ID, err)
	}
	it := &domain.Integration{
		ID:            e.ID,
		UserID:        e.UserID,
		Provider:      e.Provider,
		Credentials:   creds,
		IsActive:      e.IsActive,
		SyncFrequency: domain.ParseSyncFrequency(e.SyncFrequency),
		LastSync:      timePtr(e.LastSync),
		LastEmailID:   stringPtr(e.LastEmailID),
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
	return it, nil
}

const integrationColumns = `id, user_id, provider, credentials, is_active, sync_frequency,
	last_sync, last_email_id, created_at, updated_at`

// =============================================================================
// Queries
// =============================================================================

func (a *IntegrationAdapter) GetByID(ctx context.Context, id uuid.UUID) (*domain.Integration, error) {
	var e integrationEntity
	query := `SELECT ` + integrationColumns + ` FROM email_integrations WHERE id = $1`
	if err := a.db.GetContext(ctx, &e, query, id); err != nil {
		return nil, mapError(err)
	}
	return e.toDomain(a.codec)
}

func (a *IntegrationAdapter) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Integration, error) {
	query := `SELECT ` + integrationColumns + ` FROM email_integrations
		WHERE user_id = $1 ORDER BY created_at`
	return a.list(ctx, query, userID)
}

func (a *IntegrationAdapter) ListByUserAndProvider(ctx context.Context, userID uuid.UUID, provider string) ([]*domain.Integration, error) {
	query := `SELECT ` + integrationColumns + ` FROM email_integrations
		WHERE user_id = $1 AND provider = $2 ORDER BY created_at`
	return a.list(ctx, query, userID, provider)
}

func (a *IntegrationAdapter) ListActive(ctx context.Context) ([]*domain.Integration, error) {
	query := `SELECT ` + integrationColumns + ` FROM email_integrations
		WHERE is_active ORDER BY created_at`
	return a.list(ctx, query)
}

func (a *IntegrationAdapter) list(ctx context.Context, query string, args ...any) ([]*domain.Integration, error) {
	var entities []integrationEntity
	if err := a.db.SelectContext(ctx, &entities, query, args...); err != nil {
		return nil, mapError(err)
	}
	res := make([]*domain.Integration, 0, len(entities))
	for i := range entities {
		it, err := entities[i].toDomain(a.codec)
		if err != nil {
			return nil, err
		}
		res = append(res, it)
	}
	return res, nil
}

// =============================================================================
// Commands
// =============================================================================

func (a *IntegrationAdapter) Create(ctx context.Context, it *domain.Integration) error {
	if it.ID == uuid.Nil {
		it.ID = uuid.New()
	}
	creds, err := a.codec.encode(it.Credentials)
	if err != nil {
		return err
	}
	if it.SyncFrequency == "" {
		it.SyncFrequency = domain.SyncFrequencyHourly
	}

	query := `
		INSERT INTO email_integrations (id, user_id, provider, credentials, is_active, sync_frequency)
		VALUES ($1, $2, $3, $4::jsonb, $5, $6)
		RETURNING created_at, updated_at`
	row := a.db.QueryRowxContext(ctx, query, it.ID, it.UserID, it.Provider, creds, it.IsActive, string(it.SyncFrequency))
	return mapError(row.Scan(&it.CreatedAt, &it.UpdatedAt))
}

func (a *IntegrationAdapter) UpdateCredentials(ctx context.Context, id uuid.UUID, creds domain.Credentials) error {
	encoded, err := a.codec.encode(creds)
	if err != nil {
		return err
	}
	query := `UPDATE email_integrations SET credentials = $2::jsonb, updated_at = NOW() WHERE id = $1`
	return expectAffected(a.db.ExecContext(ctx, query, id, encoded))
}

func (a *IntegrationAdapter) UpdateSyncCursor(ctx context.Context, id uuid.UUID, cursor domain.SyncCursor) error {
	query := `UPDATE email_integrations SET last_sync = $2, last_email_id = $3, updated_at = NOW() WHERE id = $1`
	return expectAffected(a.db.ExecContext(ctx, query, id, cursor.LastSync, nullString(cursor.LastEmailID)))
}

func (a *IntegrationAdapter) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	query := `UPDATE email_integrations SET is_active = $2, updated_at = NOW() WHERE id = $1`
	return expectAffected(a.db.ExecContext(ctx, query, id, active))
}

func (a *IntegrationAdapter) SetFrequency(ctx context.Context, id uuid.UUID, freq domain.SyncFrequency) error {
	query := `UPDATE email_integrations SET sync_frequency = $2, updated_at = NOW() WHERE id = $1`
	return expectAffected(a.db.ExecContext(ctx, query, id, string(freq)))
}

func (a *IntegrationAdapter) Delete(ctx context.Context, id uuid.UUID) error {
	return expectAffected(a.db.ExecContext(ctx, `DELETE FROM email_integrations WHERE id = $1`, id))
}

func (a *IntegrationAdapter) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	_, err := a.db.ExecContext(ctx, `DELETE FROM email_integrations WHERE user_id = $1`, userID)
	return mapError(err)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

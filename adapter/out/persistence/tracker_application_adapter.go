package persistence

import (
	"context"
	"database/sql"
	"time"

	"tracker_server/core/domain"
	"tracker_server/core/port/out"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var _ out.ApplicationRepository = (*ApplicationAdapter)(nil)

// =============================================================================
// ApplicationAdapter - job_applications
// =============================================================================

type ApplicationAdapter struct {
	db *sqlx.DB
}

func NewApplicationAdapter(db *sqlx.DB) *ApplicationAdapter {
	return &ApplicationAdapter{db: db}
}

type applicationEntity struct {
	ID             uuid.UUID      `db:"id"`
	UserID         uuid.UUID      `db:"user_id"`
	JobTitle       string         `db:"job_title"`
	CompanyName    string         `db:"company_name"`
	Status         string         `db:"status"`
	Source         string         `db:"source"`
	JobURL         sql.NullString `db:"job_url"`
	JobDescription sql.NullString `db:"job_description"`
	Location       sql.NullString `db:"location"`
	Remote         bool           `db:"remote"`
	ExternalJobID  sql.NullString `db:"external_job_id"`
	AppliedDate    sql.NullTime   `db:"applied_date"`
	LastUpdated    time.Time      `db:"last_updated"`
	IsFavorite     bool           `db:"is_favorite"`
	CreatedAt      time.Time      `db:"created_at"`
}

func (e *applicationEntity) toDomain() *domain.Application {
	return &domain.Application{
		ID:             e.ID,
		UserID:         e.UserID,
		JobTitle:       e.JobTitle,
		CompanyName:    e.CompanyName,
		Status:         domain.ApplicationStatus(e.Status),
		Source:         domain.ApplicationSource(e.Source),
		JobURL:         stringPtr(e.JobURL),
		JobDescription: stringPtr(e.JobDescription),
		Location:       stringPtr(e.Location),
		Remote:         e.Remote,
		ExternalJobID:  stringPtr(e.ExternalJobID),
		AppliedDate:    timePtr(e.AppliedDate),
		LastUpdated:    e.LastUpdated,
		IsFavorite:     e.IsFavorite,
		CreatedAt:      e.CreatedAt,
	}
}

const applicationColumns = `id, user_id, job_title, company_name, status, source, job_url,
	job_description, location, remote, external_job_id, applied_date, last_updated, is_favorite, created_at`

func (a *ApplicationAdapter) GetByID(ctx context.Context, id uuid.UUID) (*domain.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM job_applications WHERE id = $1`
	return a.get(ctx, query, id)
}

func (a *ApplicationAdapter) FindByExternalID(ctx context.Context, userID uuid.UUID, externalJobID string) (*domain.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM job_applications
		WHERE user_id = $1 AND external_job_id = $2`
	return a.get(ctx, query, userID, externalJobID)
}

func (a *ApplicationAdapter) FindByCompanyAndTitle(ctx context.Context, userID uuid.UUID, company, title string) (*domain.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM job_applications
		WHERE user_id = $1 AND company_name = $2 AND job_title = $3`
	return a.get(ctx, query, userID, company, title)
}

func (a *ApplicationAdapter) get(ctx context.Context, query string, args ...any) (*domain.Application, error) {
	var e applicationEntity
	if err := a.db.GetContext(ctx, &e, query, args...); err != nil {
		return nil, mapError(err)
	}
	return e.toDomain(), nil
}

// Create inserts app and fills the server-side timestamps. A taken
// external id or company/title pair returns out.ErrDuplicate.
func (a *ApplicationAdapter) Create(ctx context.Context, app *domain.Application) error {
	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	var lastUpdated, createdAt *time.Time
	if !app.LastUpdated.IsZero() {
		lastUpdated = &app.LastUpdated
	}
	if !app.CreatedAt.IsZero() {
		createdAt = &app.CreatedAt
	}

	query := `
		INSERT INTO job_applications (
			id, user_id, job_title, company_name, status, source, job_url, job_description,
			location, remote, external_job_id, applied_date, last_updated, is_favorite, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8,
			$9, $10, $11, $12, COALESCE($13, NOW()), $14, COALESCE($15, NOW())
		)
		RETURNING last_updated, created_at`
	row := a.db.QueryRowxContext(ctx, query,
		app.ID, app.UserID, app.JobTitle, app.CompanyName, string(app.Status), string(app.Source),
		nullString(app.JobURL), nullString(app.JobDescription), nullString(app.Location), app.Remote,
		nullString(app.ExternalJobID), nullTime(app.AppliedDate), nullTime(lastUpdated), app.IsFavorite,
		nullTime(createdAt),
	)
	return mapError(row.Scan(&app.LastUpdated, &app.CreatedAt))
}

func (a *ApplicationAdapter) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ApplicationStatus, at time.Time) error {
	query := `UPDATE job_applications SET status = $2, last_updated = $3 WHERE id = $1`
	return expectAffected(a.db.ExecContext(ctx, query, id, string(status), at))
}

func (a *ApplicationAdapter) UpdateDetails(ctx context.Context, app *domain.Application) error {
	at := app.LastUpdated
	if at.IsZero() {
		at = time.Now()
	}
	query := `
		UPDATE job_applications
		SET job_url = $2, job_description = $3, location = $4, remote = $5, last_updated = $6
		WHERE id = $1`
	return expectAffected(a.db.ExecContext(ctx, query,
		app.ID, nullString(app.JobURL), nullString(app.JobDescription), nullString(app.Location), app.Remote, at,
	))
}

// DeleteByUser relies on ON DELETE CASCADE for evidence emails and history.
func (a *ApplicationAdapter) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	_, err := a.db.ExecContext(ctx, `DELETE FROM job_applications WHERE user_id = $1`, userID)
	return mapError(err)
}

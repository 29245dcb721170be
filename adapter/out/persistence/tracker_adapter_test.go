package persistence

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"tracker_server/core/domain"
	"tracker_server/core/port/out"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	return sqlx.NewDb(raw, "sqlmock"), mock
}

var integrationCols = []string{
	"id", "user_id", "provider", "credentials", "is_active", "sync_frequency",
	"last_sync", "last_email_id", "created_at", "updated_at",
}

func TestIntegrationAdapter_RoundTripsSealedCredentials(t *testing.T) {
	db, mock := newMockDB(t)
	enc := testEncryptor(t)
	adapter := NewIntegrationAdapter(db, enc)
	ctx := context.Background()

	id, user := uuid.New(), uuid.New()
	created := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	sealed, err := credentialCodec{enc: enc}.encode(domain.Credentials{AccessToken: "at", RefreshToken: "rt"})
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("FROM email_integrations WHERE id = $1")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(integrationCols).
			AddRow(id.String(), user.String(), "gmail", []byte(sealed), true, "daily", nil, "m-9", created, created))

	it, err := adapter.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, user, it.UserID)
	assert.Equal(t, "rt", it.Credentials.RefreshToken)
	assert.Equal(t, domain.SyncFrequencyDaily, it.SyncFrequency)
	assert.Nil(t, it.LastSync)
	assert.Equal(t, "m-9", domain.StringValue(it.LastEmailID))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIntegrationAdapter_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	adapter := NewIntegrationAdapter(db, nil)
	ctx := context.Background()
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("FROM email_integrations WHERE id = $1")).
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)
	_, err := adapter.GetByID(ctx, id)
	assert.ErrorIs(t, err, out.ErrNotFound)

	last := "m-1"
	at := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE email_integrations SET last_sync = $2, last_email_id = $3")).
		WithArgs(id, at, last).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err = adapter.UpdateSyncCursor(ctx, id, domain.SyncCursor{LastSync: at, LastEmailID: &last})
	assert.ErrorIs(t, err, out.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIntegrationAdapter_ListActive(t *testing.T) {
	db, mock := newMockDB(t)
	adapter := NewIntegrationAdapter(db, nil)
	created := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE is_active ORDER BY created_at")).
		WillReturnRows(sqlmock.NewRows(integrationCols).
			AddRow(uuid.NewString(), uuid.NewString(), "gmail", []byte(`{"access_token":"a"}`), true, "hourly", created, nil, created, created).
			AddRow(uuid.NewString(), uuid.NewString(), "gmail", []byte(`{"access_token":"b"}`), true, "bogus", nil, nil, created, created))

	list, err := adapter.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Credentials.AccessToken)
	require.NotNil(t, list[0].LastSync)
	assert.Equal(t, domain.SyncFrequencyHourly, list[1].SyncFrequency)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationAdapter_CreateDuplicate(t *testing.T) {
	db, mock := newMockDB(t)
	adapter := NewApplicationAdapter(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO job_applications")).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uq_job_applications_company_title"})

	err := adapter.Create(context.Background(), &domain.Application{
		UserID: uuid.New(), JobTitle: "SRE", CompanyName: "Hooli",
		Status: domain.StatusApplied, Source: domain.SourceEmail,
	})
	assert.ErrorIs(t, err, out.ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationAdapter_Create(t *testing.T) {
	db, mock := newMockDB(t)
	adapter := NewApplicationAdapter(db)
	now := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO job_applications")).
		WillReturnRows(sqlmock.NewRows([]string{"last_updated", "created_at"}).AddRow(now, now))

	app := &domain.Application{
		UserID: uuid.New(), JobTitle: "SRE", CompanyName: "Hooli",
		Status: domain.StatusApplied, Source: domain.SourceLinkedIn, ExternalJobID: domain.StringPtr("4242"),
	}
	require.NoError(t, adapter.Create(context.Background(), app))
	assert.NotEqual(t, uuid.Nil, app.ID)
	assert.Equal(t, now, app.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEmailAdapter_ListDecodesMetadata(t *testing.T) {
	db, mock := newMockDB(t)
	adapter := NewEmailAdapter(db)
	appID := uuid.New()
	at := time.Date(2025, 6, 9, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM application_emails WHERE application_id = $1")).
		WithArgs(appID).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "application_id", "message_id", "subject", "sender", "received_at", "body", "category", "metadata", "created_at",
		}).AddRow(uuid.NewString(), uuid.NewString(), appID.String(), "m-1", "Interview", "hr@acme.com", at, "body", "interview",
			[]byte(`{"source":"ai","confidence":0.92,"model":"gpt-4o-mini"}`), at))

	emails, err := adapter.ListByApplication(context.Background(), appID)
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.Equal(t, domain.CategoryInterview, emails[0].Category)
	assert.Equal(t, domain.ClassifiedByAI, emails[0].Metadata.Source)
	assert.InDelta(t, 0.92, emails[0].Metadata.Confidence, 1e-9)
	require.NoError(t, mock.ExpectationsWereMet())
}

package application

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"tracker_server/adapter/out/memory"
	"tracker_server/core/domain"
	"tracker_server/core/port/in"
	"tracker_server/core/port/out"
	"tracker_server/core/service/classification"
	"tracker_server/core/service/reconcile"
	"tracker_server/pkg/apperr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)

type recordingRevoker struct {
	mu     sync.Mutex
	tokens []string
	err    error
}

func (r *recordingRevoker) Revoke(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens = append(r.tokens, token)
	return r.err
}

func newTestService(t *testing.T) (*Service, out.Store, *recordingRevoker) {
	t.Helper()
	store := memory.NewStore().Ports()
	revoker := &recordingRevoker{}
	rec := reconcile.NewReconciler(store.Applications, store.Emails, store.History).WithClock(func() time.Time { return fixedNow })
	svc := NewService(store, classification.NewClassifier(nil, 0), rec, revoker)
	svc.now = func() time.Time { return fixedNow }
	return svc, store, revoker
}

func requireAppErr(t *testing.T, err error, status int) *apperr.AppError {
	t.Helper()
	require.Error(t, err)
	ae := apperr.AsAppError(err)
	require.NotNil(t, ae, "expected AppError, got %v", err)
	assert.Equal(t, status, ae.HTTPStatus())
	return ae
}

// ====== IngestScraped ======

func TestIngestScraped_CreatesThenUpdates(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)
	user := uuid.New()

	first, err := svc.IngestScraped(ctx, user, domain.SourceLinkedIn, []in.ScrapedApplication{{
		JobTitle:      "Platform Engineer",
		CompanyName:   "Globex",
		JobURL:        "https://www.linkedin.com/jobs/view/4242",
		Location:      "Berlin",
		ExternalJobID: "4242",
	}})
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.True(t, first[0].Created)
	assert.Equal(t, domain.StatusApplied, first[0].Application.Status)
	assert.Equal(t, domain.SourceLinkedIn, first[0].Application.Source)

	second, err := svc.IngestScraped(ctx, user, domain.SourceLinkedIn, []in.ScrapedApplication{{
		JobTitle:      "Platform Engineer (renamed)",
		CompanyName:   "Globex",
		Location:      "Remote",
		Remote:        true,
		ExternalJobID: "4242",
	}})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.False(t, second[0].Created)
	assert.Equal(t, first[0].Application.ID, second[0].Application.ID)

	stored, err := store.Applications.GetByID(ctx, first[0].Application.ID)
	require.NoError(t, err)
	assert.Equal(t, "Remote", domain.StringValue(stored.Location))
	assert.True(t, stored.Remote)
	assert.Nil(t, stored.JobURL)
	assert.Equal(t, "Platform Engineer", stored.JobTitle)
}

func TestIngestScraped_MatchesByCompanyAndTitle(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	user := uuid.New()

	rec := in.ScrapedApplication{JobTitle: "SRE", CompanyName: "Hooli"}
	first, err := svc.IngestScraped(ctx, user, domain.SourceLinkedIn, []in.ScrapedApplication{rec})
	require.NoError(t, err)

	second, err := svc.IngestScraped(ctx, user, domain.SourceLinkedIn, []in.ScrapedApplication{rec, {JobTitle: "SRE II", CompanyName: "Hooli"}})
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.False(t, second[0].Created)
	assert.Equal(t, first[0].Application.ID, second[0].Application.ID)
	assert.True(t, second[1].Created)
}

func TestIngestScraped_AppliedDate(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	user := uuid.New()
	applied := time.Date(2025, 5, 28, 0, 0, 0, 0, time.UTC)

	got, err := svc.IngestScraped(ctx, user, domain.SourceLinkedIn, []in.ScrapedApplication{
		{JobTitle: "Backend Engineer", CompanyName: "Acme", AppliedDate: &applied},
		{JobTitle: "Data Engineer", CompanyName: "Acme"},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.NotNil(t, got[0].Application.AppliedDate)
	assert.Equal(t, applied, *got[0].Application.AppliedDate)
	require.NotNil(t, got[1].Application.AppliedDate)
	assert.Equal(t, fixedNow, *got[1].Application.AppliedDate)
}

func TestIngestScraped_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		records []in.ScrapedApplication
	}{
		{"empty payload", nil},
		{"missing title", []in.ScrapedApplication{{CompanyName: "Acme"}}},
		{"placeholder company", []in.ScrapedApplication{{JobTitle: "Engineer", CompanyName: "Unknown Company"}}},
		{"bad url", []in.ScrapedApplication{{JobTitle: "Engineer", CompanyName: "Acme", JobURL: "not a url"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTestService(t)
			_, err := svc.IngestScraped(context.Background(), uuid.New(), domain.SourceLinkedIn, tt.records)
			requireAppErr(t, err, http.StatusBadRequest)
		})
	}
}

// ====== AnalyzeEmail ======

func TestAnalyzeEmail_CreatesApplication(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)
	user := uuid.New()

	res, err := svc.AnalyzeEmail(ctx, user, in.AnalyzeEmailRequest{
		Subject: "Thank you for applying to the Backend Engineer role",
		Sender:  "Acme Careers <jobs@acme.com>",
		Content: "<p>We received your application and will review it shortly.</p>",
	})
	require.NoError(t, err)
	assert.True(t, res.Created)
	require.NotNil(t, res.Application)
	assert.Equal(t, "Acme", res.Application.CompanyName)
	assert.Equal(t, "Backend Engineer", res.Application.JobTitle)
	assert.Equal(t, domain.ClassifiedByFallback, res.Classification.Source)

	emails, err := store.Emails.ListByApplication(ctx, res.Application.ID)
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.Contains(t, emails[0].MessageID, "manual-")
}

func TestAnalyzeEmail_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		req    in.AnalyzeEmailRequest
		status int
	}{
		{"missing content", in.AnalyzeEmailRequest{Subject: "hello"}, http.StatusBadRequest},
		{"not job related", in.AnalyzeEmailRequest{Subject: "Your weekly newsletter", Content: "Ten recipes for summer."}, http.StatusBadRequest},
		{"no company or title", in.AnalyzeEmailRequest{Subject: "re: your application status", Sender: "noreply@gmail.com", Content: "thanks for your application, we will be in touch"}, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTestService(t)
			_, err := svc.AnalyzeEmail(context.Background(), uuid.New(), tt.req)
			requireAppErr(t, err, tt.status)
		})
	}
}

// ====== Evidence and history ======

func TestListEmailsAndHistory_Ownership(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)
	owner := uuid.New()

	app := &domain.Application{ID: uuid.New(), UserID: owner, JobTitle: "QA", CompanyName: "Umbrella", Status: domain.StatusApplied, Source: domain.SourceEmail}
	require.NoError(t, store.Applications.Create(ctx, app))

	emails, err := svc.ListEmails(ctx, owner, app.ID)
	require.NoError(t, err)
	assert.NotNil(t, emails)
	assert.Empty(t, emails)

	history, err := svc.ListHistory(ctx, owner, app.ID)
	require.NoError(t, err)
	assert.NotNil(t, history)

	_, err = svc.ListEmails(ctx, uuid.New(), app.ID)
	requireAppErr(t, err, http.StatusNotFound)

	_, err = svc.ListHistory(ctx, owner, uuid.New())
	requireAppErr(t, err, http.StatusNotFound)
}

// ====== DeleteAccountData ======

func TestDeleteAccountData(t *testing.T) {
	ctx := context.Background()
	svc, store, revoker := newTestService(t)
	user := uuid.New()
	other := uuid.New()
	revoker.err = errors.New("revocation endpoint down")

	require.NoError(t, store.Integrations.Create(ctx, &domain.Integration{
		UserID: user, Provider: domain.ProviderGmail, IsActive: true,
		Credentials: domain.Credentials{AccessToken: "at-1", RefreshToken: "rt-1"},
	}))
	require.NoError(t, store.Integrations.Create(ctx, &domain.Integration{
		UserID: user, Provider: domain.ProviderGmail, IsActive: true,
		Credentials: domain.Credentials{AccessToken: "at-2"},
	}))
	require.NoError(t, store.Integrations.Create(ctx, &domain.Integration{
		UserID: other, Provider: domain.ProviderGmail, IsActive: true,
		Credentials: domain.Credentials{AccessToken: "at-other"},
	}))
	mine := &domain.Application{ID: uuid.New(), UserID: user, JobTitle: "Dev", CompanyName: "Acme", Status: domain.StatusApplied}
	theirs := &domain.Application{ID: uuid.New(), UserID: other, JobTitle: "Dev", CompanyName: "Acme", Status: domain.StatusApplied}
	require.NoError(t, store.Applications.Create(ctx, mine))
	require.NoError(t, store.Applications.Create(ctx, theirs))

	require.NoError(t, svc.DeleteAccountData(ctx, user))

	assert.ElementsMatch(t, []string{"rt-1", "at-2"}, revoker.tokens)

	left, err := store.Integrations.ListByUser(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, left)
	_, err = store.Applications.GetByID(ctx, mine.ID)
	assert.ErrorIs(t, err, out.ErrNotFound)

	kept, err := store.Integrations.ListByUser(ctx, other)
	require.NoError(t, err)
	assert.Len(t, kept, 1)
	_, err = store.Applications.GetByID(ctx, theirs.ID)
	assert.NoError(t, err)
}

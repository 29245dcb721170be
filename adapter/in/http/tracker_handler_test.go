package http

import (
	"context"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tracker_server/core/domain"
	"tracker_server/core/port/in"
	"tracker_server/infra/middleware"
	"tracker_server/pkg/apperr"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUserHeader = "X-Test-User"

// ===== Stubs =====

type stubSync struct {
	result domain.SyncResult
	batch  domain.BatchResult
	calls  []uuid.UUID
}

func (s *stubSync) SyncIntegration(ctx context.Context, userID, integrationID uuid.UUID) domain.SyncResult {
	s.calls = append(s.calls, integrationID)
	r := s.result
	r.UserID, r.IntegrationID = userID, integrationID
	return r
}

func (s *stubSync) SyncAll(ctx context.Context) domain.BatchResult {
	return s.batch
}

type stubApps struct {
	ingested []in.ScrapedApplication
	source   domain.ApplicationSource
	deleted  uuid.UUID
	err      error
}

func (s *stubApps) IngestScraped(ctx context.Context, userID uuid.UUID, source domain.ApplicationSource, records []in.ScrapedApplication) ([]in.IngestResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.source = source
	s.ingested = append(s.ingested, records...)
	out := make([]in.IngestResult, 0, len(records))
	for i, r := range records {
		out = append(out, in.IngestResult{
			Application: &domain.Application{ID: uuid.New(), UserID: userID, JobTitle: r.JobTitle, CompanyName: r.CompanyName},
			Created:     i == 0,
		})
	}
	return out, nil
}

func (s *stubApps) ListEmails(ctx context.Context, userID, applicationID uuid.UUID) ([]*domain.ApplicationEmail, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []*domain.ApplicationEmail{{ID: uuid.New(), ApplicationID: applicationID, Subject: "Interview"}}, nil
}

func (s *stubApps) ListHistory(ctx context.Context, userID, applicationID uuid.UUID) ([]*domain.StatusHistoryEntry, error) {
	return []*domain.StatusHistoryEntry{}, s.err
}

func (s *stubApps) AnalyzeEmail(ctx context.Context, userID uuid.UUID, req in.AnalyzeEmailRequest) (*in.AnalyzeResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &in.AnalyzeResult{Application: &domain.Application{ID: uuid.New(), UserID: userID}, Created: true}, nil
}

func (s *stubApps) DeleteAccountData(ctx context.Context, userID uuid.UUID) error {
	s.deleted = userID
	return s.err
}

type stubIntegrations struct {
	active *bool
	freq   domain.SyncFrequency
	err    error
}

func (s *stubIntegrations) List(ctx context.Context, userID uuid.UUID) ([]*domain.Integration, error) {
	return []*domain.Integration{{ID: uuid.New(), UserID: userID, Provider: domain.ProviderGmail}}, s.err
}

func (s *stubIntegrations) Connect(ctx context.Context, userID uuid.UUID, req in.ConnectRequest) (*domain.Integration, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Integration{ID: uuid.New(), UserID: userID, Provider: req.Provider, IsActive: true}, nil
}

func (s *stubIntegrations) SetActive(ctx context.Context, userID, integrationID uuid.UUID, active bool) (*domain.Integration, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.active = &active
	return &domain.Integration{ID: integrationID, UserID: userID, IsActive: active}, nil
}

func (s *stubIntegrations) SetFrequency(ctx context.Context, userID, integrationID uuid.UUID, freq domain.SyncFrequency) (*domain.Integration, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.freq = freq
	return &domain.Integration{ID: integrationID, UserID: userID, SyncFrequency: freq}, nil
}

func (s *stubIntegrations) Disconnect(ctx context.Context, userID, integrationID uuid.UUID) error {
	return s.err
}

// ===== Harness =====

// newTestApp mounts the handlers behind a fake auth middleware that trusts
// the X-Test-User header.
func newTestApp(sync in.SyncService, apps in.ApplicationService, integrations in.IntegrationService) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(),
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})
	app.Use(middleware.RequestID())

	api := app.Group("/api/v1")
	NewCronHandler(sync).Register(api, middleware.CronAuth("cron-secret"))

	api.Use(func(c *fiber.Ctx) error {
		if raw := c.Get(testUserHeader); raw != "" {
			if id, err := uuid.Parse(raw); err == nil {
				c.Locals("user_id", id)
			}
		}
		return c.Next()
	})
	NewSyncHandler(sync).Register(api)
	NewWebhookHandler(apps).Register(api)
	NewIntegrationHandler(integrations).Register(api)
	NewApplicationHandler(apps).Register(api)
	NewHealthHandler(nil, nil).Register(app)
	return app
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func do(t *testing.T, app *fiber.App, method, path string, user uuid.UUID, body string) (*nethttp.Response, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if user != uuid.Nil {
		req.Header.Set(testUserHeader, user.String())
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var env envelope
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp, env
}

// ===== Sync =====

func TestSyncIntegration_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		result domain.SyncResult
		status int
		code   string
	}{
		{"success", domain.SyncResult{Success: true, ProcessedCount: 3}, nethttp.StatusOK, ""},
		{"not found", *(&domain.SyncResult{}).Fail(domain.SyncErrNotFound, "missing"), nethttp.StatusNotFound, "not_found"},
		{"in progress", *(&domain.SyncResult{}).Fail(domain.SyncErrInProgress, "busy"), nethttp.StatusConflict, "sync_in_progress"},
		{"unsupported", *(&domain.SyncResult{}).Fail(domain.SyncErrUnsupportedProvider, "outlook"), nethttp.StatusBadRequest, "unsupported_provider"},
		{"connect", *(&domain.SyncResult{}).Fail(domain.SyncErrConnectionFailed, "refused"), nethttp.StatusBadGateway, "connection_failed"},
		{"fetch", *(&domain.SyncResult{}).Fail(domain.SyncErrFetchFailed, "timeout"), nethttp.StatusBadGateway, "fetch_failed"},
		{"config", *(&domain.SyncResult{}).Fail(domain.SyncErrConfig, "no client"), nethttp.StatusInternalServerError, "config_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sync := &stubSync{result: tt.result}
			app := newTestApp(sync, &stubApps{}, &stubIntegrations{})
			id := uuid.New()

			resp, env := do(t, app, fiber.MethodPost, "/api/v1/sync/"+id.String(), uuid.New(), "")
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.result.Success, env.Success)

			var data domain.SyncResult
			require.NoError(t, json.Unmarshal(env.Data, &data))
			assert.Equal(t, id, data.IntegrationID)
			if tt.code != "" {
				require.NotNil(t, env.Error)
				assert.Equal(t, tt.code, env.Error.Code)
			}
		})
	}
}

func TestSyncIntegration_BadRequests(t *testing.T) {
	sync := &stubSync{}
	app := newTestApp(sync, &stubApps{}, &stubIntegrations{})

	resp, _ := do(t, app, fiber.MethodPost, "/api/v1/sync/"+uuid.NewString(), uuid.Nil, "")
	assert.Equal(t, nethttp.StatusUnauthorized, resp.StatusCode)

	resp, env := do(t, app, fiber.MethodPost, "/api/v1/sync/not-a-uuid", uuid.New(), "")
	assert.Equal(t, nethttp.StatusBadRequest, resp.StatusCode)
	require.NotNil(t, env.Error)
	assert.Equal(t, apperr.CodeInvalidInput, env.Error.Code)

	assert.Empty(t, sync.calls)
}

func TestCronEmailSync(t *testing.T) {
	sync := &stubSync{batch: domain.BatchResult{Processed: []domain.SyncResult{
		{IntegrationID: uuid.New(), Success: true},
		*(&domain.SyncResult{IntegrationID: uuid.New()}).Fail(domain.SyncErrFetchFailed, "boom"),
	}}}
	app := newTestApp(sync, &stubApps{}, &stubIntegrations{})

	req := httptest.NewRequest(fiber.MethodPost, "/api/v1/cron/email-sync", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, nethttp.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest(fiber.MethodPost, "/api/v1/cron/email-sync", nil)
	req.Header.Set(middleware.CronSecretHeader, "cron-secret")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	var batch domain.BatchResult
	require.NoError(t, json.Unmarshal(env.Data, &batch))
	require.Len(t, batch.Processed, 2)
	assert.False(t, batch.Processed[1].Success)
}

func TestCronEmailSync_EmptyBatch(t *testing.T) {
	app := newTestApp(&stubSync{}, &stubApps{}, &stubIntegrations{})
	req := httptest.NewRequest(fiber.MethodPost, "/api/v1/cron/email-sync", nil)
	req.Header.Set(middleware.CronSecretHeader, "cron-secret")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"processed":[]`)
}

func TestCronEmailSync_GetWithBearer(t *testing.T) {
	sync := &stubSync{batch: domain.BatchResult{Processed: []domain.SyncResult{{IntegrationID: uuid.New(), Success: true}}}}
	app := newTestApp(sync, &stubApps{}, &stubIntegrations{})

	req := httptest.NewRequest(fiber.MethodGet, "/api/v1/cron/email-sync", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer cron-secret")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(fiber.MethodGet, "/api/v1/cron/email-sync", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer wrong")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, nethttp.StatusUnauthorized, resp.StatusCode)
}

// ===== Webhook =====

func TestLinkedInWebhook(t *testing.T) {
	user := uuid.New()

	tests := []struct {
		name    string
		body    string
		status  int
		records int
	}{
		{"batch", `{"applications":[{"title":"SRE","company":"Hooli"},{"title":"Dev","company":"Acme"}]}`, nethttp.StatusOK, 2},
		{"single record", `{"userId":"` + user.String() + `","applicationData":{"title":"SRE","company":"Hooli","jobId":"42"}}`, nethttp.StatusOK, 1},
		{"record list", `{"applicationData":[{"title":"SRE","company":"Hooli"}]}`, nethttp.StatusOK, 1},
		{"other user", `{"userId":"` + uuid.NewString() + `","applications":[{"title":"SRE","company":"Hooli"}]}`, nethttp.StatusForbidden, 0},
		{"bad user id", `{"userId":"nope","applications":[{"title":"SRE","company":"Hooli"}]}`, nethttp.StatusBadRequest, 0},
		{"empty", `{}`, nethttp.StatusBadRequest, 0},
		{"bad record", `{"applicationData":"text"}`, nethttp.StatusBadRequest, 0},
		{"not json", `{`, nethttp.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apps := &stubApps{}
			app := newTestApp(&stubSync{}, apps, &stubIntegrations{})

			resp, _ := do(t, app, fiber.MethodPost, "/api/v1/webhooks/linkedin", user, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Len(t, apps.ingested, tt.records)
			if tt.records > 0 {
				assert.Equal(t, domain.SourceLinkedIn, apps.source)
			}
		})
	}
}

func TestLinkedInWebhook_ExtensionPayload(t *testing.T) {
	user := uuid.New()
	apps := &stubApps{}
	app := newTestApp(&stubSync{}, apps, &stubIntegrations{})

	body := `{"userId":"` + user.String() + `","applicationData":[
		{"id":0,"jobTitle":"Backend Engineer","companyName":"Acme","location":"Berlin","jobLink":"https://www.linkedin.com/jobs/view/123","appliedDate":"2025-05-28T09:30:00.000Z","source":"linkedin","scrapedAt":"2025-06-01T10:00:00.000Z"},
		{"id":1,"jobTitle":"Data Engineer","companyName":"Globex","location":"","jobLink":"","appliedDate":"Applied 3 days ago","source":"linkedin","scrapedAt":"2025-06-01T10:00:00.000Z"}
	]}`
	resp, _ := do(t, app, fiber.MethodPost, "/api/v1/webhooks/linkedin", user, body)
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
	require.Len(t, apps.ingested, 2)

	first := apps.ingested[0]
	assert.Equal(t, "Backend Engineer", first.JobTitle)
	assert.Equal(t, "Acme", first.CompanyName)
	assert.Equal(t, "https://www.linkedin.com/jobs/view/123", first.JobURL)
	assert.Equal(t, "Berlin", first.Location)
	require.NotNil(t, first.AppliedDate)
	assert.Equal(t, time.Date(2025, 5, 28, 9, 30, 0, 0, time.UTC), *first.AppliedDate)

	second := apps.ingested[1]
	assert.Equal(t, "Data Engineer", second.JobTitle)
	assert.Equal(t, "Globex", second.CompanyName)
	assert.Empty(t, second.JobURL)
	assert.Nil(t, second.AppliedDate)
}

func TestLinkedInWebhook_ServiceError(t *testing.T) {
	apps := &stubApps{err: apperr.ValidationFailed("records[0]: company is a placeholder")}
	app := newTestApp(&stubSync{}, apps, &stubIntegrations{})

	resp, env := do(t, app, fiber.MethodPost, "/api/v1/webhooks/linkedin", uuid.New(), `{"applications":[{"title":"SRE","company":"Unknown Company"}]}`)
	assert.Equal(t, nethttp.StatusBadRequest, resp.StatusCode)
	require.NotNil(t, env.Error)
	assert.Equal(t, apperr.CodeValidationFailed, env.Error.Code)
}

// ===== Integrations =====

func TestIntegrationRoutes(t *testing.T) {
	user := uuid.New()
	id := uuid.NewString()
	integrations := &stubIntegrations{}
	app := newTestApp(&stubSync{}, &stubApps{}, integrations)

	resp, _ := do(t, app, fiber.MethodGet, "/api/v1/integrations", user, "")
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)

	resp, _ = do(t, app, fiber.MethodPost, "/api/v1/integrations", user, `{"provider":"gmail","credentials":{"access_token":"tok"}}`)
	assert.Equal(t, nethttp.StatusCreated, resp.StatusCode)

	resp, _ = do(t, app, fiber.MethodPost, "/api/v1/integrations/"+id+"/pause", user, "")
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
	require.NotNil(t, integrations.active)
	assert.False(t, *integrations.active)

	resp, _ = do(t, app, fiber.MethodPost, "/api/v1/integrations/"+id+"/resume", user, "")
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.True(t, *integrations.active)

	resp, _ = do(t, app, fiber.MethodPatch, "/api/v1/integrations/"+id+"/frequency", user, `{"sync_frequency":"daily"}`)
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Equal(t, domain.SyncFrequencyDaily, integrations.freq)

	resp, _ = do(t, app, fiber.MethodDelete, "/api/v1/integrations/"+id, user, "")
	assert.Equal(t, nethttp.StatusNoContent, resp.StatusCode)

	resp, _ = do(t, app, fiber.MethodDelete, "/api/v1/integrations/xyz", user, "")
	assert.Equal(t, nethttp.StatusBadRequest, resp.StatusCode)
}

func TestIntegrationRoutes_NotFound(t *testing.T) {
	app := newTestApp(&stubSync{}, &stubApps{}, &stubIntegrations{err: apperr.NotFound("integration")})

	resp, env := do(t, app, fiber.MethodPost, "/api/v1/integrations/"+uuid.NewString()+"/pause", uuid.New(), "")
	assert.Equal(t, nethttp.StatusNotFound, resp.StatusCode)
	require.NotNil(t, env.Error)
	assert.Equal(t, apperr.CodeNotFound, env.Error.Code)
}

// ===== Applications =====

func TestApplicationRoutes(t *testing.T) {
	user := uuid.New()
	apps := &stubApps{}
	app := newTestApp(&stubSync{}, apps, &stubIntegrations{})

	resp, env := do(t, app, fiber.MethodGet, "/api/v1/applications/"+uuid.NewString()+"/emails", user, "")
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
	var emails []domain.ApplicationEmail
	require.NoError(t, json.Unmarshal(env.Data, &emails))
	assert.Len(t, emails, 1)

	resp, _ = do(t, app, fiber.MethodGet, "/api/v1/applications/"+uuid.NewString()+"/history", user, "")
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)

	resp, _ = do(t, app, fiber.MethodPost, "/api/v1/applications/analyze", user, `{"subject":"Offer","emailContent":"We are pleased"}`)
	assert.Equal(t, nethttp.StatusCreated, resp.StatusCode)

	resp, _ = do(t, app, fiber.MethodDelete, "/api/v1/account", user, "")
	assert.Equal(t, nethttp.StatusNoContent, resp.StatusCode)
	assert.Equal(t, user, apps.deleted)
}

func TestApplicationRoutes_Ownership(t *testing.T) {
	app := newTestApp(&stubSync{}, &stubApps{err: apperr.NotFound("application")}, &stubIntegrations{})

	resp, _ := do(t, app, fiber.MethodGet, "/api/v1/applications/"+uuid.NewString()+"/emails", uuid.New(), "")
	assert.Equal(t, nethttp.StatusNotFound, resp.StatusCode)
}

// ===== Health =====

func TestHealthAndReady(t *testing.T) {
	app := newTestApp(&stubSync{}, &stubApps{}, &stubIntegrations{})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/ready", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
}

func TestReady_FailingCheck(t *testing.T) {
	app := fiber.New()
	NewHealthHandler(nil, nil).
		WithCheck("mongodb", CheckFunc(func(ctx context.Context) error { return assert.AnError })).
		Register(app)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/ready", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, nethttp.StatusServiceUnavailable, resp.StatusCode)
}

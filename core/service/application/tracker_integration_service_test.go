package application

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"tracker_server/adapter/out/memory"
	"tracker_server/core/domain"
	"tracker_server/core/port/in"
	"tracker_server/core/port/out"
	"tracker_server/core/service/auth"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMailbox struct {
	err error
}

func (m *stubMailbox) Name() string { return domain.ProviderGmail }

func (m *stubMailbox) Connect(ctx context.Context, creds domain.Credentials) (domain.Credentials, bool, error) {
	return creds, false, m.err
}

func (m *stubMailbox) FetchEmails(ctx context.Context, since *time.Time, maxResults int) ([]domain.MailMessage, error) {
	return nil, nil
}

func (m *stubMailbox) GetContent(ctx context.Context, messageID string) (string, error) {
	return "", nil
}

type stubRegistry struct {
	connectErr error
}

func (r stubRegistry) Lookup(provider string) (out.MailboxFactory, bool) {
	if provider != domain.ProviderGmail {
		return nil, false
	}
	return r, true
}

func (r stubRegistry) NewMailbox() out.MailboxProvider {
	return &stubMailbox{err: r.connectErr}
}

func newIntegrationService(connectErr error) (*IntegrationService, out.IntegrationRepository, *recordingRevoker) {
	store := memory.NewStore().Ports()
	revoker := &recordingRevoker{}
	return NewIntegrationService(store.Integrations, stubRegistry{connectErr: connectErr}, revoker), store.Integrations, revoker
}

func connectReq(token string) in.ConnectRequest {
	return in.ConnectRequest{
		Provider:    domain.ProviderGmail,
		Credentials: domain.Credentials{AccessToken: token, RefreshToken: "refresh-" + token},
	}
}

func TestConnect_CreatesIntegration(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newIntegrationService(nil)
	user := uuid.New()

	it, err := svc.Connect(ctx, user, connectReq("tok-1"))
	require.NoError(t, err)
	assert.True(t, it.IsActive)
	assert.Equal(t, domain.SyncFrequencyHourly, it.SyncFrequency)

	stored, err := repo.GetByID(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", stored.Credentials.AccessToken)
}

func TestConnect_ReusesAndDeduplicates(t *testing.T) {
	ctx := context.Background()
	svc, repo, revoker := newIntegrationService(nil)
	user := uuid.New()

	first := &domain.Integration{
		UserID: user, Provider: domain.ProviderGmail, SyncFrequency: domain.SyncFrequencyDaily,
		Credentials: domain.Credentials{AccessToken: "old-1", RefreshToken: "old-refresh-1"},
		CreatedAt:   time.Now().Add(-2 * time.Hour),
	}
	dup := &domain.Integration{
		UserID: user, Provider: domain.ProviderGmail, IsActive: true,
		Credentials: domain.Credentials{AccessToken: "old-2"},
		CreatedAt:   time.Now().Add(-time.Hour),
	}
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, dup))

	it, err := svc.Connect(ctx, user, connectReq("new"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, it.ID)
	assert.True(t, it.IsActive)
	assert.Equal(t, domain.SyncFrequencyDaily, it.SyncFrequency)
	assert.Equal(t, "new", it.Credentials.AccessToken)

	all, err := repo.ListByUser(ctx, user)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.ElementsMatch(t, []string{"old-refresh-1", "old-2"}, revoker.tokens)
}

func TestConnect_Errors(t *testing.T) {
	tests := []struct {
		name       string
		connectErr error
		req        in.ConnectRequest
		status     int
	}{
		{"unsupported provider", nil, in.ConnectRequest{Provider: "outlook", Credentials: domain.Credentials{AccessToken: "x"}}, http.StatusBadRequest},
		{"missing token", nil, in.ConnectRequest{Provider: domain.ProviderGmail}, http.StatusBadRequest},
		{"bad frequency", nil, in.ConnectRequest{Provider: domain.ProviderGmail, Credentials: domain.Credentials{AccessToken: "x"}, SyncFrequency: "weekly"}, http.StatusBadRequest},
		{"provider rejects", errors.New("401 invalid credentials"), connectReq("x"), http.StatusBadRequest},
		{"oauth not configured", auth.ErrNotConfigured, connectReq("x"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, _ := newIntegrationService(tt.connectErr)
			user := uuid.New()
			_, err := svc.Connect(context.Background(), user, tt.req)
			requireAppErr(t, err, tt.status)

			list, err := repo.ListByUser(context.Background(), user)
			require.NoError(t, err)
			assert.Empty(t, list)
		})
	}
}

func TestIntegrationLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, repo, revoker := newIntegrationService(nil)
	user := uuid.New()

	it, err := svc.Connect(ctx, user, connectReq("tok"))
	require.NoError(t, err)

	paused, err := svc.SetActive(ctx, user, it.ID, false)
	require.NoError(t, err)
	assert.False(t, paused.IsActive)

	daily, err := svc.SetFrequency(ctx, user, it.ID, domain.SyncFrequencyDaily)
	require.NoError(t, err)
	assert.Equal(t, domain.SyncFrequencyDaily, daily.SyncFrequency)

	_, err = svc.SetFrequency(ctx, user, it.ID, "weekly")
	requireAppErr(t, err, http.StatusBadRequest)

	_, err = svc.SetActive(ctx, uuid.New(), it.ID, true)
	requireAppErr(t, err, http.StatusNotFound)

	err = svc.Disconnect(ctx, uuid.New(), it.ID)
	requireAppErr(t, err, http.StatusNotFound)

	require.NoError(t, svc.Disconnect(ctx, user, it.ID))
	assert.Equal(t, []string{"refresh-tok"}, revoker.tokens)
	_, err = repo.GetByID(ctx, it.ID)
	assert.ErrorIs(t, err, out.ErrNotFound)

	list, err := svc.List(ctx, user)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

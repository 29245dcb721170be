package application

import (
	"context"
	"errors"

	"tracker_server/core/domain"
	"tracker_server/core/port/in"
	"tracker_server/core/port/out"
	"tracker_server/core/service/auth"
	"tracker_server/pkg/apperr"
	"tracker_server/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var _ in.IntegrationService = (*IntegrationService)(nil)

// IntegrationService manages mailbox connections. A user keeps at most one
// integration per provider.
type IntegrationService struct {
	integrations out.IntegrationRepository
	providers    out.MailboxRegistry
	revoker      out.TokenRevoker
	validate     *validator.Validate
}

// NewIntegrationService creates the service. revoker may be nil.
func NewIntegrationService(integrations out.IntegrationRepository, providers out.MailboxRegistry, revoker out.TokenRevoker) *IntegrationService {
	return &IntegrationService{
		integrations: integrations,
		providers:    providers,
		revoker:      revoker,
		validate:     validator.New(),
	}
}

func (s *IntegrationService) List(ctx context.Context, userID uuid.UUID) ([]*domain.Integration, error) {
	list, err := s.integrations.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperr.DatabaseError("list integrations", err)
	}
	if list == nil {
		list = []*domain.Integration{}
	}
	return list, nil
}

// Connect verifies the credentials against the provider and stores them.
// When the user already has integrations for the provider, the oldest one is
// kept with the new credentials and the rest are removed.
func (s *IntegrationService) Connect(ctx context.Context, userID uuid.UUID, req in.ConnectRequest) (*domain.Integration, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, apperr.ValidationFailed(err.Error())
	}
	if err := req.Credentials.Validate(); err != nil {
		return nil, apperr.InvalidInput("credentials", err.Error())
	}

	factory, ok := s.providers.Lookup(req.Provider)
	if !ok {
		return nil, apperr.BadRequest("unsupported provider: " + req.Provider)
	}
	creds, _, err := factory.NewMailbox().Connect(ctx, req.Credentials)
	if err != nil {
		if errors.Is(err, auth.ErrNotConfigured) {
			return nil, apperr.ConfigError("oauth client is not configured")
		}
		return nil, apperr.BadRequest("failed to connect to email provider").WithError(err)
	}

	freq := req.SyncFrequency
	if freq == "" {
		freq = domain.SyncFrequencyHourly
	}

	existing, err := s.integrations.ListByUserAndProvider(ctx, userID, req.Provider)
	if err != nil {
		return nil, apperr.DatabaseError("list integrations", err)
	}
	if len(existing) == 0 {
		it := &domain.Integration{
			ID:            uuid.New(),
			UserID:        userID,
			Provider:      req.Provider,
			Credentials:   creds,
			IsActive:      true,
			SyncFrequency: freq,
		}
		if err := s.integrations.Create(ctx, it); err != nil {
			return nil, apperr.DatabaseError("create integration", err)
		}
		logger.Info("[IntegrationService.Connect] %s connected for user %s", req.Provider, userID)
		return it, nil
	}

	keep := existing[0]
	if keep.Credentials.AccessToken != creds.AccessToken {
		revokeQuietly(ctx, s.revoker, keep.Credentials)
	}
	if err := s.integrations.UpdateCredentials(ctx, keep.ID, creds); err != nil {
		return nil, apperr.DatabaseError("update credentials", err)
	}
	if err := s.integrations.SetActive(ctx, keep.ID, true); err != nil {
		return nil, apperr.DatabaseError("activate integration", err)
	}
	if req.SyncFrequency != "" {
		if err := s.integrations.SetFrequency(ctx, keep.ID, req.SyncFrequency); err != nil {
			return nil, apperr.DatabaseError("update frequency", err)
		}
	}
	for _, extra := range existing[1:] {
		revokeQuietly(ctx, s.revoker, extra.Credentials)
		if err := s.integrations.Delete(ctx, extra.ID); err != nil && !errors.Is(err, out.ErrNotFound) {
			logger.WithError(err).Warn("[IntegrationService.Connect] remove duplicate %s", extra.ID)
		}
	}
	logger.Info("[IntegrationService.Connect] %s reconnected for user %s (%d duplicates removed)", req.Provider, userID, len(existing)-1)

	updated, err := s.integrations.GetByID(ctx, keep.ID)
	if err != nil {
		return nil, apperr.DatabaseError("load integration", err)
	}
	return updated, nil
}

func (s *IntegrationService) owned(ctx context.Context, userID, integrationID uuid.UUID) (*domain.Integration, error) {
	it, err := s.integrations.GetByID(ctx, integrationID)
	if errors.Is(err, out.ErrNotFound) || (err == nil && !it.OwnedBy(userID)) {
		return nil, apperr.NotFound("integration")
	}
	if err != nil {
		return nil, apperr.DatabaseError("load integration", err)
	}
	return it, nil
}

// SetActive pauses or resumes scheduled syncs.
func (s *IntegrationService) SetActive(ctx context.Context, userID, integrationID uuid.UUID, active bool) (*domain.Integration, error) {
	it, err := s.owned(ctx, userID, integrationID)
	if err != nil {
		return nil, err
	}
	if err := s.integrations.SetActive(ctx, it.ID, active); err != nil {
		return nil, apperr.DatabaseError("update integration", err)
	}
	it.IsActive = active
	return it, nil
}

func (s *IntegrationService) SetFrequency(ctx context.Context, userID, integrationID uuid.UUID, freq domain.SyncFrequency) (*domain.Integration, error) {
	switch freq {
	case domain.SyncFrequencyHourly, domain.SyncFrequencyDaily, domain.SyncFrequencyManual:
	default:
		return nil, apperr.InvalidInput("sync_frequency", "must be hourly, daily or manual")
	}
	it, err := s.owned(ctx, userID, integrationID)
	if err != nil {
		return nil, err
	}
	if err := s.integrations.SetFrequency(ctx, it.ID, freq); err != nil {
		return nil, apperr.DatabaseError("update integration", err)
	}
	it.SyncFrequency = freq
	return it, nil
}

// Disconnect revokes the stored token and deletes the integration.
func (s *IntegrationService) Disconnect(ctx context.Context, userID, integrationID uuid.UUID) error {
	it, err := s.owned(ctx, userID, integrationID)
	if err != nil {
		return err
	}
	revokeQuietly(ctx, s.revoker, it.Credentials)
	if err := s.integrations.Delete(ctx, it.ID); err != nil && !errors.Is(err, out.ErrNotFound) {
		return apperr.DatabaseError("delete integration", err)
	}
	return nil
}

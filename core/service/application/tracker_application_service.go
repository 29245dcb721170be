// Package application manages tracked applications outside the mailbox sync:
// browser-extension ingestion, pasted emails, evidence listing and account
// deletion.
package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tracker_server/core/domain"
	"tracker_server/core/port/in"
	"tracker_server/core/port/out"
	"tracker_server/core/service/classification"
	"tracker_server/core/service/reconcile"
	"tracker_server/pkg/apperr"
	"tracker_server/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// EmailClassifier produces a judgment for one email.
type EmailClassifier interface {
	Classify(ctx context.Context, email classification.EmailInput) domain.ClassificationResult
}

// EmailReconciler applies a judgment to the store.
type EmailReconciler interface {
	Reconcile(ctx context.Context, userID uuid.UUID, msg domain.MailMessage, result domain.ClassificationResult) (reconcile.Outcome, error)
}

var _ in.ApplicationService = (*Service)(nil)

type Service struct {
	store      out.Store
	classifier EmailClassifier
	reconciler EmailReconciler
	revoker    out.TokenRevoker
	validate   *validator.Validate
	now        func() time.Time
}

// NewService creates the application service. revoker may be nil.
func NewService(store out.Store, classifier EmailClassifier, reconciler EmailReconciler, revoker out.TokenRevoker) *Service {
	return &Service{
		store:      store,
		classifier: classifier,
		reconciler: reconciler,
		revoker:    revoker,
		validate:   validator.New(),
		now:        time.Now,
	}
}

// =============================================================================
// Scraped records (browser extension / LinkedIn webhook)
// =============================================================================

// IngestScraped stores scraped records, matching existing applications by
// external job id then by company and title. Matches get their descriptive
// fields overwritten; status is never touched here.
func (s *Service) IngestScraped(ctx context.Context, userID uuid.UUID, source domain.ApplicationSource, records []in.ScrapedApplication) ([]in.IngestResult, error) {
	if len(records) == 0 {
		return nil, apperr.BadRequest("no applications in payload")
	}
	for i := range records {
		if err := s.validate.Struct(records[i]); err != nil {
			return nil, apperr.ValidationFailed(err.Error()).WithDetail("index", i)
		}
		if domain.IsPlaceholder(records[i].CompanyName) || domain.IsPlaceholder(records[i].JobTitle) {
			return nil, apperr.InvalidInput("company/title", "placeholder values are not accepted").WithDetail("index", i)
		}
	}

	results := make([]in.IngestResult, 0, len(records))
	for _, rec := range records {
		res, err := s.ingestOne(ctx, userID, source, rec)
		if err != nil {
			return nil, apperr.DatabaseError("ingest application", err)
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *Service) ingestOne(ctx context.Context, userID uuid.UUID, source domain.ApplicationSource, rec in.ScrapedApplication) (in.IngestResult, error) {
	now := s.now()
	company := strings.TrimSpace(rec.CompanyName)
	title := strings.TrimSpace(rec.JobTitle)

	existing, err := s.findExisting(ctx, userID, strings.TrimSpace(rec.ExternalJobID), company, title)
	if err != nil {
		return in.IngestResult{}, err
	}
	if existing != nil {
		applyDetails(existing, rec, now)
		if err := s.store.Applications.UpdateDetails(ctx, existing); err != nil {
			return in.IngestResult{}, fmt.Errorf("update details: %w", err)
		}
		return in.IngestResult{Application: existing}, nil
	}

	app := &domain.Application{
		ID:            uuid.New(),
		UserID:        userID,
		JobTitle:      title,
		CompanyName:   company,
		Status:        domain.StatusApplied,
		Source:        source,
		ExternalJobID: domain.StringPtr(rec.ExternalJobID),
		AppliedDate:   &now,
		CreatedAt:     now,
	}
	if rec.AppliedDate != nil {
		app.AppliedDate = rec.AppliedDate
	}
	applyDetails(app, rec, now)

	err = s.store.Applications.Create(ctx, app)
	if errors.Is(err, out.ErrDuplicate) {
		existing, findErr := s.findExisting(ctx, userID, strings.TrimSpace(rec.ExternalJobID), company, title)
		if findErr != nil || existing == nil {
			return in.IngestResult{}, fmt.Errorf("create application: %w", err)
		}
		return in.IngestResult{Application: existing}, nil
	}
	if err != nil {
		return in.IngestResult{}, fmt.Errorf("create application: %w", err)
	}

	logger.Info("[ApplicationService.IngestScraped] created %s from %s", app.ID, source)
	return in.IngestResult{Application: app, Created: true}, nil
}

func (s *Service) findExisting(ctx context.Context, userID uuid.UUID, externalID, company, title string) (*domain.Application, error) {
	if externalID != "" {
		app, err := s.store.Applications.FindByExternalID(ctx, userID, externalID)
		if err == nil {
			return app, nil
		}
		if !errors.Is(err, out.ErrNotFound) {
			return nil, err
		}
	}
	app, err := s.store.Applications.FindByCompanyAndTitle(ctx, userID, company, title)
	if errors.Is(err, out.ErrNotFound) {
		return nil, nil
	}
	return app, err
}

func applyDetails(app *domain.Application, rec in.ScrapedApplication, now time.Time) {
	app.JobURL = domain.StringPtr(rec.JobURL)
	app.JobDescription = domain.StringPtr(rec.JobDescription)
	app.Location = domain.StringPtr(rec.Location)
	app.Remote = rec.Remote
	app.LastUpdated = now
}

// =============================================================================
// Pasted email
// =============================================================================

// AnalyzeEmail classifies an email the user pasted in and tracks it. The user
// explicitly asked for it, so a job-related email is treated as an
// application confirmation when no application matches yet.
func (s *Service) AnalyzeEmail(ctx context.Context, userID uuid.UUID, req in.AnalyzeEmailRequest) (*in.AnalyzeResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, apperr.ValidationFailed(err.Error())
	}

	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		subject = "Manual Email Import"
	}
	now := s.now()
	msg := domain.MailMessage{
		ID:         fmt.Sprintf("manual-%d", now.UnixNano()),
		Subject:    subject,
		Sender:     strings.TrimSpace(req.Sender),
		ReceivedAt: now,
		Body:       req.Content,
	}

	judgment := s.classifier.Classify(ctx, classification.EmailInput{Subject: msg.Subject, Sender: msg.Sender, Body: msg.Body})
	result := &in.AnalyzeResult{Classification: judgment}
	if !judgment.IsJobRelated {
		return nil, apperr.BadRequest("email does not appear to be job related").WithDetail("reasoning", judgment.Reasoning)
	}

	forced := judgment
	forced.Category = domain.CategoryApplication
	outcome, err := s.reconciler.Reconcile(ctx, userID, msg, forced)
	if err != nil {
		return nil, apperr.DatabaseError("track pasted email", err)
	}
	if outcome.Skipped == reconcile.SkipIncompleteDetails {
		return nil, apperr.Unprocessable("could not determine company and job title from the email")
	}

	app, err := s.store.Applications.GetByID(ctx, outcome.ApplicationID)
	if err != nil {
		return nil, apperr.DatabaseError("load application", err)
	}
	result.Application = app
	result.Created = outcome.Created
	return result, nil
}

// =============================================================================
// Evidence and history
// =============================================================================

func (s *Service) ownedApplication(ctx context.Context, userID, applicationID uuid.UUID) (*domain.Application, error) {
	app, err := s.store.Applications.GetByID(ctx, applicationID)
	if errors.Is(err, out.ErrNotFound) || (err == nil && app.UserID != userID) {
		return nil, apperr.NotFound("application")
	}
	if err != nil {
		return nil, apperr.DatabaseError("load application", err)
	}
	return app, nil
}

// ListEmails returns the evidence emails of an application, newest first.
func (s *Service) ListEmails(ctx context.Context, userID, applicationID uuid.UUID) ([]*domain.ApplicationEmail, error) {
	if _, err := s.ownedApplication(ctx, userID, applicationID); err != nil {
		return nil, err
	}
	emails, err := s.store.Emails.ListByApplication(ctx, applicationID)
	if err != nil {
		return nil, apperr.DatabaseError("list emails", err)
	}
	if emails == nil {
		emails = []*domain.ApplicationEmail{}
	}
	return emails, nil
}

// ListHistory returns the status trail of an application in creation order.
func (s *Service) ListHistory(ctx context.Context, userID, applicationID uuid.UUID) ([]*domain.StatusHistoryEntry, error) {
	if _, err := s.ownedApplication(ctx, userID, applicationID); err != nil {
		return nil, err
	}
	history, err := s.store.History.ListByApplication(ctx, applicationID)
	if err != nil {
		return nil, apperr.DatabaseError("list history", err)
	}
	if history == nil {
		history = []*domain.StatusHistoryEntry{}
	}
	return history, nil
}

// =============================================================================
// Account deletion
// =============================================================================

// DeleteAccountData removes every integration and application of the user.
// Stored tokens are revoked first on a best-effort basis. All deletions are
// attempted even when one of them fails.
func (s *Service) DeleteAccountData(ctx context.Context, userID uuid.UUID) error {
	integrations, err := s.store.Integrations.ListByUser(ctx, userID)
	if err != nil {
		logger.WithError(err).Warn("[ApplicationService.DeleteAccountData] list integrations")
	}
	for _, it := range integrations {
		revokeQuietly(ctx, s.revoker, it.Credentials)
	}

	var errs []error
	if err := s.store.Integrations.DeleteByUser(ctx, userID); err != nil {
		errs = append(errs, fmt.Errorf("delete integrations: %w", err))
	}
	if err := s.store.Applications.DeleteByUser(ctx, userID); err != nil {
		errs = append(errs, fmt.Errorf("delete applications: %w", err))
	}
	if len(errs) > 0 {
		return apperr.DatabaseError("delete account data", errors.Join(errs...))
	}

	logger.Info("[ApplicationService.DeleteAccountData] removed tracker data for %s", userID)
	return nil
}

func revokeQuietly(ctx context.Context, revoker out.TokenRevoker, creds domain.Credentials) {
	if revoker == nil {
		return
	}
	token := creds.RefreshToken
	if token == "" {
		token = creds.AccessToken
	}
	if token == "" {
		return
	}
	if err := revoker.Revoke(ctx, token); err != nil {
		logger.WithError(err).Debug("[revoke] token revocation failed")
	}
}

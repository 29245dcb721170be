// Package reconcile links classified emails to tracked applications.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tracker_server/core/domain"
	"tracker_server/core/port/out"
	"tracker_server/pkg/logger"

	"github.com/google/uuid"
)

// SkipReason explains why a message left no trace in the store.
type SkipReason string

const (
	SkipNotJobRelated     SkipReason = "not_job_related"
	SkipIncompleteDetails SkipReason = "incomplete_details"
	SkipNoApplication     SkipReason = "no_application"
	SkipAlreadyAttached   SkipReason = "already_attached"
)

// Outcome is the result of reconciling one message.
type Outcome struct {
	ApplicationID uuid.UUID
	Created       bool
	StatusChanged bool
	Attached      bool
	Skipped       SkipReason
}

func (o Outcome) String() string {
	switch {
	case o.Skipped != "":
		return "skipped:" + string(o.Skipped)
	case o.Created:
		return "created"
	case o.StatusChanged:
		return "status_changed"
	default:
		return "attached"
	}
}

// Reconciler applies the matching and creation rules against the store.
type Reconciler struct {
	apps    out.ApplicationRepository
	emails  out.ApplicationEmailRepository
	history out.StatusHistoryRepository
	now     func() time.Time
}

func NewReconciler(apps out.ApplicationRepository, emails out.ApplicationEmailRepository, history out.StatusHistoryRepository) *Reconciler {
	return &Reconciler{
		apps:    apps,
		emails:  emails,
		history: history,
		now:     time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

// Reconcile matches msg to an application, creating one only for explicit
// application confirmations, attaches the message as evidence and advances
// the status when the judgment calls for it. Store failures are returned so
// the caller can count the message as skipped.
func (r *Reconciler) Reconcile(ctx context.Context, userID uuid.UUID, msg domain.MailMessage, result domain.ClassificationResult) (Outcome, error) {
	if !result.IsJobRelated {
		return Outcome{Skipped: SkipNotJobRelated}, nil
	}

	app, err := r.match(ctx, userID, result)
	if err != nil {
		return Outcome{}, err
	}

	var outcome Outcome
	if app == nil && result.Category == domain.CategoryApplication {
		if !result.HasIdentity() {
			logger.Debug("[Reconciler] skipping %s: missing company or title", msg.ID)
			return Outcome{Skipped: SkipIncompleteDetails}, nil
		}
		app, outcome.Created, err = r.create(ctx, userID, msg, result)
		if err != nil {
			return Outcome{}, err
		}
	}
	if app == nil {
		return Outcome{Skipped: SkipNoApplication}, nil
	}
	outcome.ApplicationID = app.ID

	attached, err := r.attach(ctx, userID, app.ID, msg, result)
	if err != nil {
		return outcome, err
	}
	if !attached {
		outcome.Skipped = SkipAlreadyAttached
		return outcome, nil
	}
	outcome.Attached = true

	changed, err := r.advanceStatus(ctx, app, msg, result)
	if err != nil {
		return outcome, err
	}
	outcome.StatusChanged = changed
	return outcome, nil
}

// match looks up by external job id first, then by the exact company and
// title pair. No fuzzy matching.
func (r *Reconciler) match(ctx context.Context, userID uuid.UUID, result domain.ClassificationResult) (*domain.Application, error) {
	if id := strings.TrimSpace(result.ExternalJobID); id != "" {
		app, err := r.apps.FindByExternalID(ctx, userID, id)
		switch {
		case err == nil:
			return app, nil
		case !errors.Is(err, out.ErrNotFound):
			return nil, fmt.Errorf("find by external id: %w", err)
		}
	}

	company := strings.TrimSpace(result.CompanyName)
	title := strings.TrimSpace(result.JobTitle)
	if company == "" || title == "" {
		return nil, nil
	}
	app, err := r.apps.FindByCompanyAndTitle(ctx, userID, company, title)
	switch {
	case err == nil:
		return app, nil
	case errors.Is(err, out.ErrNotFound):
		return nil, nil
	default:
		return nil, fmt.Errorf("find by company and title: %w", err)
	}
}

func (r *Reconciler) create(ctx context.Context, userID uuid.UUID, msg domain.MailMessage, result domain.ClassificationResult) (*domain.Application, bool, error) {
	status := domain.StatusApplied
	if result.SuggestedStatus != nil {
		status = *result.SuggestedStatus
	}
	now := r.now()
	applied := msg.ReceivedAt
	if applied.IsZero() {
		applied = now
	}

	app := &domain.Application{
		ID:             uuid.New(),
		UserID:         userID,
		JobTitle:       strings.TrimSpace(result.JobTitle),
		CompanyName:    strings.TrimSpace(result.CompanyName),
		Status:         status,
		Source:         domain.SourceEmail,
		JobURL:         domain.StringPtr(result.JobURL),
		JobDescription: domain.StringPtr(result.JobDescription),
		ExternalJobID:  domain.StringPtr(result.ExternalJobID),
		AppliedDate:    &applied,
		LastUpdated:    now,
		CreatedAt:      now,
	}

	err := r.apps.Create(ctx, app)
	if errors.Is(err, out.ErrDuplicate) {
		// Another run created the same application between match and insert.
		existing, matchErr := r.match(ctx, userID, result)
		if matchErr != nil {
			return nil, false, matchErr
		}
		if existing == nil {
			return nil, false, fmt.Errorf("create application: %w", err)
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("create application: %w", err)
	}

	logger.Info("[Reconciler] created application %s (%s at %s)", app.ID, app.JobTitle, app.CompanyName)
	return app, true, nil
}

// attach stores msg as evidence. It reports false when the message is
// already linked to the application.
func (r *Reconciler) attach(ctx context.Context, userID, applicationID uuid.UUID, msg domain.MailMessage, result domain.ClassificationResult) (bool, error) {
	exists, err := r.emails.Exists(ctx, applicationID, msg.ID)
	if err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return false, nil
	}

	received := msg.ReceivedAt
	if received.IsZero() {
		received = r.now()
	}
	email := &domain.ApplicationEmail{
		ID:            uuid.New(),
		UserID:        userID,
		ApplicationID: applicationID,
		MessageID:     msg.ID,
		Subject:       msg.Subject,
		Sender:        msg.Sender,
		ReceivedAt:    received,
		Body:          msg.Body,
		Category:      result.Category,
		Metadata:      result.Metadata(),
		CreatedAt:     r.now(),
	}
	err = r.emails.Create(ctx, email)
	if errors.Is(err, out.ErrDuplicate) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert email: %w", err)
	}
	return true, nil
}

// advanceStatus applies a suggested status beyond "applied" when it differs
// from the stored one, recording a history entry. Ordering between statuses
// is not enforced; the classifier's judgment is applied as given.
func (r *Reconciler) advanceStatus(ctx context.Context, app *domain.Application, msg domain.MailMessage, result domain.ClassificationResult) (bool, error) {
	if result.SuggestedStatus == nil {
		return false, nil
	}
	next := *result.SuggestedStatus
	if next == domain.StatusApplied || next == app.Status {
		return false, nil
	}

	now := r.now()
	if err := r.apps.UpdateStatus(ctx, app.ID, next, now); err != nil {
		return false, fmt.Errorf("update status: %w", err)
	}
	entry := &domain.StatusHistoryEntry{
		ID:            uuid.New(),
		ApplicationID: app.ID,
		Status:        next,
		Note:          "Status updated based on email: " + msg.Subject,
		CreatedAt:     now,
	}
	if err := r.history.Append(ctx, entry); err != nil {
		return true, fmt.Errorf("append history: %w", err)
	}

	logger.Info("[Reconciler] application %s moved %s -> %s", app.ID, app.Status, next)
	app.Status = next
	app.LastUpdated = now
	return true, nil
}

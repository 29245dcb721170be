// Package emailsync drives mailbox sync runs: fetch, classify, reconcile,
// then advance the integration's sync cursor.
package emailsync

import (
	"context"
	"errors"
	"time"

	"tracker_server/core/domain"
	"tracker_server/core/port/out"
	"tracker_server/core/service/auth"
	"tracker_server/core/service/classification"
	"tracker_server/core/service/reconcile"
	"tracker_server/pkg/logger"
	"tracker_server/pkg/metrics"

	"github.com/google/uuid"
)

const (
	DefaultLookback   = 5 * 24 * time.Hour
	DefaultMaxResults = 50
	DefaultLockTTL    = 10 * time.Minute
)

// MessageClassifier produces a judgment for one message. It never fails.
type MessageClassifier interface {
	Classify(ctx context.Context, email classification.EmailInput) domain.ClassificationResult
}

// MessageReconciler applies a judgment to the store.
type MessageReconciler interface {
	Reconcile(ctx context.Context, userID uuid.UUID, msg domain.MailMessage, result domain.ClassificationResult) (reconcile.Outcome, error)
}

// Options tunes a sync run.
type Options struct {
	Lookback    time.Duration
	MaxResults  int
	LockTTL     time.Duration
	Concurrency int
}

func (o Options) withDefaults() Options {
	if o.Lookback <= 0 {
		o.Lookback = DefaultLookback
	}
	if o.MaxResults <= 0 {
		o.MaxResults = DefaultMaxResults
	}
	if o.LockTTL <= 0 {
		o.LockTTL = DefaultLockTTL
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	return o
}

// =============================================================================
// Orchestrator
// =============================================================================

type Orchestrator struct {
	integrations out.IntegrationRepository
	providers    out.MailboxRegistry
	classifier   MessageClassifier
	reconciler   MessageReconciler
	locker       out.SyncLocker
	archive      out.MessageArchive
	opts         Options
	now          func() time.Time
}

// NewOrchestrator wires a sync orchestrator. locker and archive may be nil.
func NewOrchestrator(
	integrations out.IntegrationRepository,
	providers out.MailboxRegistry,
	classifier MessageClassifier,
	reconciler MessageReconciler,
	locker out.SyncLocker,
	archive out.MessageArchive,
	opts Options,
) *Orchestrator {
	return &Orchestrator{
		integrations: integrations,
		providers:    providers,
		classifier:   classifier,
		reconciler:   reconciler,
		locker:       locker,
		archive:      archive,
		opts:         opts.withDefaults(),
		now:          time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// SyncIntegration runs one sync for one integration. Failures are reported
// on the result rather than returned.
func (o *Orchestrator) SyncIntegration(ctx context.Context, userID, integrationID uuid.UUID) domain.SyncResult {
	start := time.Now()
	result := domain.SyncResult{IntegrationID: integrationID, UserID: userID}

	provider := "unknown"
	defer func() {
		label := metrics.StatusSuccess
		if result.Error != nil {
			label = string(result.Error.Code)
		}
		metrics.SyncRunsTotal.WithLabelValues(provider, label).Inc()
		metrics.SyncRunDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	}()

	// 1. Integration
	integration, err := o.integrations.GetByID(ctx, integrationID)
	if err != nil && !errors.Is(err, out.ErrNotFound) {
		logger.WithError(err).Error("[Orchestrator.SyncIntegration] load integration %s", integrationID)
		result.Fail(domain.SyncErrInternal, "failed to load integration")
		return result
	}
	if integration == nil || !integration.OwnedBy(userID) {
		result.Fail(domain.SyncErrNotFound, "integration %s not found", integrationID)
		return result
	}
	provider = integration.Provider

	// 2. Provider client
	factory, ok := o.providers.Lookup(integration.Provider)
	if !ok {
		result.Fail(domain.SyncErrUnsupportedProvider, "provider %q is not supported", integration.Provider)
		return result
	}

	// 3. Single flow per integration
	if o.locker != nil {
		release, err := o.locker.Acquire(ctx, integration.ID, o.opts.LockTTL)
		if errors.Is(err, out.ErrLockHeld) {
			result.Fail(domain.SyncErrInProgress, "a sync is already running for this integration")
			return result
		}
		if err != nil {
			logger.WithError(err).Error("[Orchestrator.SyncIntegration] acquire lock")
			result.Fail(domain.SyncErrInternal, "failed to acquire sync lock")
			return result
		}
		defer release()
	}

	// 4. Connect, refreshing credentials when needed
	mailbox := factory.NewMailbox()
	creds, refreshed, err := mailbox.Connect(ctx, integration.Credentials)
	if refreshed {
		// The refresh token may have rotated, so the new bundle is saved even
		// when the connection check failed afterwards.
		if persistErr := o.integrations.UpdateCredentials(ctx, integration.ID, creds); persistErr != nil {
			logger.WithError(persistErr).Warn("[Orchestrator.SyncIntegration] persist refreshed credentials")
		}
	}
	if err != nil {
		logger.WithError(err).Warn("[Orchestrator.SyncIntegration] connect %s failed", integration.ID)
		if errors.Is(err, auth.ErrNotConfigured) {
			result.Fail(domain.SyncErrConfig, "oauth client is not configured")
			return result
		}
		result.Fail(domain.SyncErrConnectionFailed, "failed to connect to %s", integration.Provider)
		return result
	}

	// 5. Fetch
	since := o.now().Add(-o.opts.Lookback)
	if integration.LastSync != nil {
		since = *integration.LastSync
	}
	messages, err := mailbox.FetchEmails(ctx, &since, o.opts.MaxResults)
	if err != nil {
		logger.WithError(err).Error("[Orchestrator.SyncIntegration] fetch failed for %s", integration.ID)
		result.Fail(domain.SyncErrFetchFailed, "failed to fetch messages")
		return result
	}

	// 6. Classify and reconcile strictly in order
	for i := range messages {
		o.processMessage(ctx, integration, mailbox, &messages[i], &result)
	}

	// 7. Advance the cursor even when nothing matched
	cursor := domain.SyncCursor{LastSync: o.now(), LastEmailID: integration.LastEmailID}
	if len(messages) > 0 {
		id := messages[0].ID
		cursor.LastEmailID = &id
	}
	if err := o.integrations.UpdateSyncCursor(ctx, integration.ID, cursor); err != nil {
		logger.WithError(err).Error("[Orchestrator.SyncIntegration] persist cursor")
		result.Fail(domain.SyncErrInternal, "failed to persist sync cursor")
		return result
	}

	result.Success = true
	logger.Info("[Orchestrator.SyncIntegration] %s: %d processed, %d job related, %d new, %d updated, %d skipped in %v",
		integration.ID, result.ProcessedCount, result.JobRelatedCount, result.NewApplications,
		result.UpdatedApplications, result.SkippedCount, time.Since(start))
	return result
}

func (o *Orchestrator) processMessage(ctx context.Context, integration *domain.Integration, mailbox out.MailboxProvider, msg *domain.MailMessage, result *domain.SyncResult) {
	if msg.Body == "" {
		body, err := mailbox.GetContent(ctx, msg.ID)
		if err != nil {
			logger.WithError(err).Warn("[Orchestrator.processMessage] content for %s", msg.ID)
			result.SkippedCount++
			metrics.MessagesTotal.WithLabelValues("failed").Inc()
			return
		}
		msg.Body = body
	}

	judgment := o.classifier.Classify(ctx, classification.EmailInput{
		Subject: msg.Subject,
		Sender:  msg.Sender,
		Body:    msg.Body,
	})
	metrics.ClassificationsTotal.WithLabelValues(string(judgment.Source), string(judgment.Category)).Inc()

	outcome, err := o.reconciler.Reconcile(ctx, integration.UserID, *msg, judgment)
	if err != nil {
		logger.WithError(err).Warn("[Orchestrator.processMessage] reconcile %s", msg.ID)
		result.SkippedCount++
		metrics.MessagesTotal.WithLabelValues("failed").Inc()
		o.archiveMessage(ctx, integration, msg, judgment, "failed")
		return
	}

	result.ProcessedCount++
	if judgment.IsJobRelated {
		result.JobRelatedCount++
	}
	if outcome.Created {
		result.NewApplications++
	}
	if outcome.StatusChanged {
		result.UpdatedApplications++
	}
	metrics.MessagesTotal.WithLabelValues(outcome.String()).Inc()
	o.archiveMessage(ctx, integration, msg, judgment, outcome.String())
}

func (o *Orchestrator) archiveMessage(ctx context.Context, integration *domain.Integration, msg *domain.MailMessage, judgment domain.ClassificationResult, outcome string) {
	if o.archive == nil {
		return
	}
	err := o.archive.Save(ctx, &out.ArchivedMessage{
		IntegrationID: integration.ID,
		UserID:        integration.UserID,
		MessageID:     msg.ID,
		Subject:       msg.Subject,
		Sender:        msg.Sender,
		ReceivedAt:    msg.ReceivedAt,
		Result:        judgment,
		Outcome:       outcome,
		ArchivedAt:    o.now(),
	})
	if err != nil {
		logger.WithError(err).Debug("[Orchestrator] archive %s", msg.ID)
	}
}

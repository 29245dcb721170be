// Package memory is an in-process store used for local runs and tests.
// It enforces the same uniqueness rules as the Postgres schema.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"tracker_server/core/domain"
	"tracker_server/core/port/out"

	"github.com/google/uuid"
)

// Store holds every record behind one lock.
type Store struct {
	mu           sync.RWMutex
	integrations map[uuid.UUID]*domain.Integration
	applications map[uuid.UUID]*domain.Application
	emails       map[uuid.UUID]*domain.ApplicationEmail
	history      []*domain.StatusHistoryEntry
}

func NewStore() *Store {
	return &Store{
		integrations: make(map[uuid.UUID]*domain.Integration),
		applications: make(map[uuid.UUID]*domain.Application),
		emails:       make(map[uuid.UUID]*domain.ApplicationEmail),
	}
}

// Ports returns the store wired into the repository interfaces.
func (s *Store) Ports() out.Store {
	return out.Store{
		Integrations: (*integrationRepo)(s),
		Applications: (*applicationRepo)(s),
		Emails:       (*emailRepo)(s),
		History:      (*historyRepo)(s),
	}
}

// ============================================================
// Integrations
// ============================================================

type integrationRepo Store

func (r *integrationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Integration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	it, ok := r.integrations[id]
	if !ok {
		return nil, out.ErrNotFound
	}
	cp := *it
	return &cp, nil
}

func (r *integrationRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Integration, error) {
	return r.filter(func(it *domain.Integration) bool { return it.UserID == userID }), nil
}

func (r *integrationRepo) ListByUserAndProvider(ctx context.Context, userID uuid.UUID, provider string) ([]*domain.Integration, error) {
	return r.filter(func(it *domain.Integration) bool { return it.UserID == userID && it.Provider == provider }), nil
}

func (r *integrationRepo) ListActive(ctx context.Context) ([]*domain.Integration, error) {
	return r.filter(func(it *domain.Integration) bool { return it.IsActive }), nil
}

func (r *integrationRepo) filter(keep func(*domain.Integration) bool) []*domain.Integration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var res []*domain.Integration
	for _, it := range r.integrations {
		if keep(it) {
			cp := *it
			res = append(res, &cp)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res
}

func (r *integrationRepo) Create(ctx context.Context, it *domain.Integration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if it.ID == uuid.Nil {
		it.ID = uuid.New()
	}
	if _, ok := r.integrations[it.ID]; ok {
		return out.ErrDuplicate
	}
	now := time.Now()
	if it.CreatedAt.IsZero() {
		it.CreatedAt = now
	}
	it.UpdatedAt = now
	cp := *it
	r.integrations[it.ID] = &cp
	return nil
}

func (r *integrationRepo) update(id uuid.UUID, apply func(*domain.Integration)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.integrations[id]
	if !ok {
		return out.ErrNotFound
	}
	apply(it)
	it.UpdatedAt = time.Now()
	return nil
}

func (r *integrationRepo) UpdateCredentials(ctx context.Context, id uuid.UUID, creds domain.Credentials) error {
	return r.update(id, func(it *domain.Integration) { it.Credentials = creds })
}

func (r *integrationRepo) UpdateSyncCursor(ctx context.Context, id uuid.UUID, cursor domain.SyncCursor) error {
	return r.update(id, func(it *domain.Integration) {
		last := cursor.LastSync
		it.LastSync = &last
		it.LastEmailID = cursor.LastEmailID
	})
}

func (r *integrationRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return r.update(id, func(it *domain.Integration) { it.IsActive = active })
}

func (r *integrationRepo) SetFrequency(ctx context.Context, id uuid.UUID, freq domain.SyncFrequency) error {
	return r.update(id, func(it *domain.Integration) { it.SyncFrequency = freq })
}

func (r *integrationRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.integrations[id]; !ok {
		return out.ErrNotFound
	}
	delete(r.integrations, id)
	return nil
}

func (r *integrationRepo) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, it := range r.integrations {
		if it.UserID == userID {
			delete(r.integrations, id)
		}
	}
	return nil
}

// ============================================================
// Applications
// ============================================================

type applicationRepo Store

func (r *applicationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Application, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	app, ok := r.applications[id]
	if !ok {
		return nil, out.ErrNotFound
	}
	cp := *app
	return &cp, nil
}

func (r *applicationRepo) FindByExternalID(ctx context.Context, userID uuid.UUID, externalJobID string) (*domain.Application, error) {
	return r.find(func(a *domain.Application) bool {
		return a.UserID == userID && a.ExternalJobID != nil && *a.ExternalJobID == externalJobID
	})
}

func (r *applicationRepo) FindByCompanyAndTitle(ctx context.Context, userID uuid.UUID, company, title string) (*domain.Application, error) {
	return r.find(func(a *domain.Application) bool {
		return a.UserID == userID && a.CompanyName == company && a.JobTitle == title
	})
}

func (r *applicationRepo) find(match func(*domain.Application) bool) (*domain.Application, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, app := range r.applications {
		if match(app) {
			cp := *app
			return &cp, nil
		}
	}
	return nil, out.ErrNotFound
}

func (r *applicationRepo) Create(ctx context.Context, app *domain.Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.applications {
		if existing.UserID != app.UserID {
			continue
		}
		if app.ExternalJobID != nil && existing.ExternalJobID != nil && *existing.ExternalJobID == *app.ExternalJobID {
			return out.ErrDuplicate
		}
		if existing.CompanyName == app.CompanyName && existing.JobTitle == app.JobTitle {
			return out.ErrDuplicate
		}
	}
	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	cp := *app
	r.applications[app.ID] = &cp
	return nil
}

func (r *applicationRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ApplicationStatus, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.applications[id]
	if !ok {
		return out.ErrNotFound
	}
	app.Status = status
	app.LastUpdated = at
	return nil
}

func (r *applicationRepo) UpdateDetails(ctx context.Context, app *domain.Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.applications[app.ID]
	if !ok {
		return out.ErrNotFound
	}
	stored.JobURL = app.JobURL
	stored.JobDescription = app.JobDescription
	stored.Location = app.Location
	stored.Remote = app.Remote
	stored.LastUpdated = app.LastUpdated
	return nil
}

// DeleteByUser cascades to evidence emails and history like the SQL schema.
func (r *applicationRepo) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := make(map[uuid.UUID]struct{})
	for id, app := range r.applications {
		if app.UserID == userID {
			removed[id] = struct{}{}
			delete(r.applications, id)
		}
	}
	for id, email := range r.emails {
		if _, ok := removed[email.ApplicationID]; ok {
			delete(r.emails, id)
		}
	}
	kept := r.history[:0]
	for _, entry := range r.history {
		if _, ok := removed[entry.ApplicationID]; !ok {
			kept = append(kept, entry)
		}
	}
	r.history = kept
	return nil
}

// ============================================================
// Evidence emails
// ============================================================

type emailRepo Store

func (r *emailRepo) Exists(ctx context.Context, applicationID uuid.UUID, messageID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.emails {
		if e.ApplicationID == applicationID && e.MessageID == messageID {
			return true, nil
		}
	}
	return false, nil
}

func (r *emailRepo) Create(ctx context.Context, email *domain.ApplicationEmail) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.applications[email.ApplicationID]; !ok {
		return out.ErrNotFound
	}
	for _, e := range r.emails {
		if e.ApplicationID == email.ApplicationID && e.MessageID == email.MessageID {
			return out.ErrDuplicate
		}
	}
	if email.ID == uuid.Nil {
		email.ID = uuid.New()
	}
	cp := *email
	r.emails[email.ID] = &cp
	return nil
}

func (r *emailRepo) ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]*domain.ApplicationEmail, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var res []*domain.ApplicationEmail
	for _, e := range r.emails {
		if e.ApplicationID == applicationID {
			cp := *e
			res = append(res, &cp)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ReceivedAt.After(res[j].ReceivedAt) })
	return res, nil
}

// ============================================================
// Status history
// ============================================================

type historyRepo Store

func (r *historyRepo) Append(ctx context.Context, entry *domain.StatusHistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	cp := *entry
	r.history = append(r.history, &cp)
	return nil
}

func (r *historyRepo) ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]*domain.StatusHistoryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var res []*domain.StatusHistoryEntry
	for _, entry := range r.history {
		if entry.ApplicationID == applicationID {
			cp := *entry
			res = append(res, &cp)
		}
	}
	return res, nil
}

// Package auth keeps mailbox credentials usable across sync runs.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tracker_server/core/domain"
	"tracker_server/core/port/out"
	"tracker_server/pkg/logger"
)

var (
	// ErrNotConfigured means no token refresher is wired (missing client credentials).
	ErrNotConfigured = errors.New("oauth client not configured")
	// ErrNoRefreshToken means the bundle expired and cannot be renewed.
	ErrNoRefreshToken = errors.New("credentials expired and no refresh token is stored")
	// ErrRefreshFailed wraps a rejected refresh grant.
	ErrRefreshFailed = errors.New("token refresh failed")
)

// CredentialManager decides when a bundle needs refreshing and performs the refresh.
type CredentialManager struct {
	refresher out.TokenRefresher
	margin    time.Duration
	now       func() time.Time
}

// NewCredentialManager creates a manager. A nil refresher is allowed; refreshes
// then fail with ErrNotConfigured.
func NewCredentialManager(refresher out.TokenRefresher, margin time.Duration) *CredentialManager {
	return &CredentialManager{
		refresher: refresher,
		margin:    margin,
		now:       time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (m *CredentialManager) WithClock(now func() time.Time) *CredentialManager {
	m.now = now
	return m
}

// NeedsRefresh is true when the access token expires within the safety margin.
// Legacy bundles without expiry tracking never need a refresh.
func (m *CredentialManager) NeedsRefresh(creds domain.Credentials) bool {
	if !creds.TracksExpiry() {
		return false
	}
	return !m.now().Before(creds.ExpiresAt().Add(-m.margin))
}

// EnsureValid returns a bundle that is safe to use, refreshing it when needed.
// The bool reports whether a refresh happened; callers persist the new bundle.
func (m *CredentialManager) EnsureValid(ctx context.Context, creds domain.Credentials) (domain.Credentials, bool, error) {
	if err := creds.Validate(); err != nil {
		return creds, false, err
	}
	if !m.NeedsRefresh(creds) {
		return creds, false, nil
	}
	if m.refresher == nil {
		return creds, false, ErrNotConfigured
	}
	if strings.TrimSpace(creds.RefreshToken) == "" {
		return creds, false, ErrNoRefreshToken
	}

	tok, err := m.refresher.Refresh(ctx, creds.RefreshToken)
	if err != nil {
		logger.WithError(err).Warn("[CredentialManager] refresh rejected")
		return creds, false, fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	if tok == nil || tok.AccessToken == "" {
		return creds, false, fmt.Errorf("%w: empty access token", ErrRefreshFailed)
	}

	issuedAt := m.now().Unix()
	expiresIn := tok.ExpiresIn

	refreshed := creds
	refreshed.AccessToken = tok.AccessToken
	refreshed.IssuedAt = &issuedAt
	refreshed.ExpiresIn = &expiresIn
	if tok.RefreshToken != "" {
		refreshed.RefreshToken = tok.RefreshToken
	}
	if tok.TokenType != "" {
		refreshed.TokenType = tok.TokenType
	}
	if tok.Scope != "" {
		refreshed.Scope = tok.Scope
	}

	logger.Debug("[CredentialManager] access token refreshed, expires in %ds", expiresIn)
	return refreshed, true, nil
}

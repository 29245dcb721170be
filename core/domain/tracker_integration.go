package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const ProviderGmail = "gmail"

type SyncFrequency string

const (
	SyncFrequencyHourly SyncFrequency = "hourly"
	SyncFrequencyDaily  SyncFrequency = "daily"
	SyncFrequencyManual SyncFrequency = "manual"
)

// ParseSyncFrequency normalises a stored frequency. Unknown values read as hourly.
func ParseSyncFrequency(s string) SyncFrequency {
	switch SyncFrequency(strings.ToLower(strings.TrimSpace(s))) {
	case SyncFrequencyDaily:
		return SyncFrequencyDaily
	case SyncFrequencyManual:
		return SyncFrequencyManual
	default:
		return SyncFrequencyHourly
	}
}

// Interval returns the minimum time between automatic runs. Manual returns 0.
func (f SyncFrequency) Interval() time.Duration {
	switch f {
	case SyncFrequencyDaily:
		return 24 * time.Hour
	case SyncFrequencyManual:
		return 0
	default:
		return time.Hour
	}
}

var (
	ErrMissingAccessToken = errors.New("credentials: missing access token")
	ErrInvalidExpiry      = errors.New("credentials: invalid expiry")
)

// Credentials is the provider token bundle persisted on an integration.
// ExpiresIn and IssuedAt are seconds; bundles written before expiry tracking leave them nil.
type Credentials struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	Scope        string `json:"scope,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Email        string `json:"email,omitempty"`
	ExpiresIn    *int64 `json:"expires_in,omitempty"`
	IssuedAt     *int64 `json:"issued_at,omitempty"`
}

// Validate checks the bundle shape on ingress.
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.AccessToken) == "" {
		return ErrMissingAccessToken
	}
	if c.ExpiresIn != nil && *c.ExpiresIn < 0 {
		return ErrInvalidExpiry
	}
	if c.IssuedAt != nil && *c.IssuedAt < 0 {
		return ErrInvalidExpiry
	}
	return nil
}

// TracksExpiry is false for legacy bundles, which are always treated as valid.
func (c Credentials) TracksExpiry() bool {
	return c.ExpiresIn != nil && c.IssuedAt != nil
}

// ExpiresAt returns the absolute expiry. Only meaningful when TracksExpiry is true.
func (c Credentials) ExpiresAt() time.Time {
	if !c.TracksExpiry() {
		return time.Time{}
	}
	return time.Unix(*c.IssuedAt+*c.ExpiresIn, 0)
}

// Integration links one user to one mail provider.
type Integration struct {
	ID            uuid.UUID     `json:"id" db:"id"`
	UserID        uuid.UUID     `json:"user_id" db:"user_id"`
	Provider      string        `json:"provider" db:"provider"`
	Credentials   Credentials   `json:"-" db:"-"`
	IsActive      bool          `json:"is_active" db:"is_active"`
	SyncFrequency SyncFrequency `json:"sync_frequency" db:"sync_frequency"`
	LastSync      *time.Time    `json:"last_sync,omitempty" db:"last_sync"`
	LastEmailID   *string       `json:"last_email_id,omitempty" db:"last_email_id"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" db:"updated_at"`
}

// OwnedBy reports whether the integration belongs to the user.
func (i *Integration) OwnedBy(userID uuid.UUID) bool {
	return i != nil && i.UserID == userID
}

// SyncCursor is the window boundary written after each run.
type SyncCursor struct {
	LastSync    time.Time
	LastEmailID *string
}

package out

import (
	"context"
	"errors"
	"time"

	"tracker_server/core/domain"
)

// MailboxProvider is implemented once per mail provider. An instance is bound
// to one integration's credentials after Connect succeeds.
type MailboxProvider interface {
	Name() string
	// Connect validates the credentials, refreshing them when needed. The
	// returned bundle differs from the input when a refresh happened; the bool
	// is true in that case even if err is non-nil, and the caller must still
	// persist the bundle.
	Connect(ctx context.Context, creds domain.Credentials) (domain.Credentials, bool, error)
	// FetchEmails lists messages received after since (provider default window
	// when nil) and returns up to maxResults fully decoded messages in provider order.
	FetchEmails(ctx context.Context, since *time.Time, maxResults int) ([]domain.MailMessage, error)
	GetContent(ctx context.Context, messageID string) (string, error)
}

// MailboxFactory builds an unconnected provider instance per run.
type MailboxFactory interface {
	NewMailbox() MailboxProvider
}

// MailboxRegistry resolves the factory for an integration's provider name.
type MailboxRegistry interface {
	Lookup(provider string) (MailboxFactory, bool)
}

// ProviderErrorCode represents error codes.
type ProviderErrorCode string

const (
	ProviderErrAuth         ProviderErrorCode = "auth_error"
	ProviderErrTokenExpired ProviderErrorCode = "token_expired"
	ProviderErrRateLimit    ProviderErrorCode = "rate_limit"
	ProviderErrNotFound     ProviderErrorCode = "not_found"
	ProviderErrNetwork      ProviderErrorCode = "network_error"
	ProviderErrServer       ProviderErrorCode = "server_error"
	ProviderErrNotConnected ProviderErrorCode = "not_connected"
)

// ProviderError represents a provider error.
type ProviderError struct {
	Provider  string
	Code      ProviderErrorCode
	Message   string
	Err       error
	Retryable bool
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a new provider error.
func NewProviderError(provider string, code ProviderErrorCode, message string, err error, retryable bool) *ProviderError {
	return &ProviderError{
		Provider:  provider,
		Code:      code,
		Message:   message,
		Err:       err,
		Retryable: retryable,
	}
}

// IsProviderError reports whether err carries the given provider code.
func IsProviderError(err error, code ProviderErrorCode) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Code == code
}

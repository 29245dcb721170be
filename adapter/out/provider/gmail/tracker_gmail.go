// Package gmail implements the mailbox provider on the Gmail REST API.
package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"tracker_server/core/domain"
	"tracker_server/core/port/out"
	"tracker_server/core/service/classification"
	"tracker_server/pkg/httputil"
	"tracker_server/pkg/logger"
	"tracker_server/pkg/metrics"
	"tracker_server/pkg/resilience"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	providerName     = domain.ProviderGmail
	defaultLookback  = 5 * 24 * time.Hour
	defaultMaxResult = 50
	defaultTimeout   = 30 * time.Second
)

// CredentialEnsurer returns a usable bundle, refreshing it when needed.
type CredentialEnsurer interface {
	EnsureValid(ctx context.Context, creds domain.Credentials) (domain.Credentials, bool, error)
}

// Config holds Gmail client settings. Endpoint overrides the API base URL.
type Config struct {
	Endpoint   string
	HTTPClient *http.Client
	Lookback   time.Duration
	Timeout    time.Duration
}

// =============================================================================
// Factory
// =============================================================================

// Factory builds one Mailbox per sync run. The circuit breaker is shared.
type Factory struct {
	cfg     Config
	creds   CredentialEnsurer
	breaker *resilience.Breaker
	now     func() time.Time
}

var _ out.MailboxFactory = (*Factory)(nil)

// NewFactory creates the Gmail factory.
func NewFactory(cfg Config, creds CredentialEnsurer) *Factory {
	if cfg.Lookback <= 0 {
		cfg.Lookback = defaultLookback
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = httputil.NewClient(httputil.GoogleClientConfig(cfg.Timeout))
	}
	return &Factory{
		cfg:     cfg,
		creds:   creds,
		breaker: resilience.NewBreaker(resilience.DefaultBreakerConfig("gmail-api")),
		now:     time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (f *Factory) WithClock(now func() time.Time) *Factory {
	f.now = now
	return f
}

func (f *Factory) NewMailbox() out.MailboxProvider {
	return &Mailbox{factory: f}
}

// =============================================================================
// Mailbox
// =============================================================================

// Mailbox is bound to one integration's credentials after Connect.
type Mailbox struct {
	factory *Factory
	service *gmail.Service
}

var _ out.MailboxProvider = (*Mailbox)(nil)

func (m *Mailbox) Name() string {
	return providerName
}

// Connect makes sure the credentials are usable and checks them against the
// profile endpoint. The returned bool reports a token refresh, also when the
// profile check fails afterwards.
func (m *Mailbox) Connect(ctx context.Context, creds domain.Credentials) (domain.Credentials, bool, error) {
	valid, refreshed, err := m.factory.creds.EnsureValid(ctx, creds)
	if err != nil {
		return creds, false, err
	}

	tokenType := valid.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	baseCtx := context.WithValue(context.Background(), oauth2.HTTPClient, m.factory.cfg.HTTPClient)
	client := oauth2.NewClient(baseCtx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: valid.AccessToken,
		TokenType:   tokenType,
	}))

	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if m.factory.cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(m.factory.cfg.Endpoint))
	}
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return valid, refreshed, fmt.Errorf("failed to create gmail service: %w", err)
	}

	var profile *gmail.Profile
	err = m.call(ctx, "profile", func(ctx context.Context) error {
		var callErr error
		profile, callErr = svc.Users.GetProfile("me").Context(ctx).Do()
		return callErr
	})
	if err != nil {
		// A refresh that already happened is still handed back for persisting.
		return valid, refreshed, wrapError(err, "failed to validate token")
	}

	if valid.Email == "" && profile != nil {
		valid.Email = profile.EmailAddress
	}
	m.service = svc
	return valid, refreshed, nil
}

// FetchEmails lists primary-category messages received after since and
// fetches each one in list order. A message that fails to load is skipped.
func (m *Mailbox) FetchEmails(ctx context.Context, since *time.Time, maxResults int) ([]domain.MailMessage, error) {
	if m.service == nil {
		return nil, out.NewProviderError(providerName, out.ProviderErrNotConnected, "mailbox not connected", nil, false)
	}
	if maxResults <= 0 {
		maxResults = defaultMaxResult
	}
	after := m.factory.now().Add(-m.factory.cfg.Lookback)
	if since != nil {
		after = *since
	}
	query := fmt.Sprintf("category:primary after:%d", after.Unix())

	var list *gmail.ListMessagesResponse
	err := m.call(ctx, "list", func(ctx context.Context) error {
		var callErr error
		list, callErr = m.service.Users.Messages.List("me").Q(query).MaxResults(int64(maxResults)).Context(ctx).Do()
		return callErr
	})
	if err != nil {
		return nil, wrapError(err, "failed to list messages")
	}

	messages := make([]domain.MailMessage, 0, len(list.Messages))
	for _, ref := range list.Messages {
		msg, err := m.getMessage(ctx, ref.Id)
		if err != nil {
			logger.WithError(err).Warn("[GmailMailbox.FetchEmails] skipping message %s", ref.Id)
			continue
		}
		messages = append(messages, parseMessage(msg, m.factory.now))
	}

	logger.Debug("[GmailMailbox.FetchEmails] query=%q listed=%d fetched=%d", query, len(list.Messages), len(messages))
	return messages, nil
}

// GetContent returns the decoded body of one message.
func (m *Mailbox) GetContent(ctx context.Context, messageID string) (string, error) {
	if m.service == nil {
		return "", out.NewProviderError(providerName, out.ProviderErrNotConnected, "mailbox not connected", nil, false)
	}
	msg, err := m.getMessage(ctx, messageID)
	if err != nil {
		return "", err
	}
	return extractBody(msg.Payload), nil
}

func (m *Mailbox) getMessage(ctx context.Context, id string) (*gmail.Message, error) {
	var msg *gmail.Message
	err := m.call(ctx, "get", func(ctx context.Context) error {
		var callErr error
		msg, callErr = m.service.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
		return callErr
	})
	if err != nil {
		return nil, wrapError(err, "failed to get message")
	}
	return msg, nil
}

// call runs one API request with a timeout under the shared circuit breaker.
func (m *Mailbox) call(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, m.factory.cfg.Timeout)
	defer cancel()

	err := m.factory.breaker.Execute(func() error { return fn(ctx) }, isClientError)
	metrics.ProviderRequestsTotal.WithLabelValues(providerName, operation, metrics.StatusLabel(err)).Inc()
	if err != nil && errors.Is(err, resilience.ErrCircuitOpen) {
		logger.Warn("[GmailMailbox] circuit open, %s rejected (state=%s)", operation, m.factory.breaker.State())
	}
	return err
}

// =============================================================================
// Parsing
// =============================================================================

func parseMessage(msg *gmail.Message, now func() time.Time) domain.MailMessage {
	mm := domain.MailMessage{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Snippet:  msg.Snippet,
	}

	var date string
	if msg.Payload != nil {
		for _, header := range msg.Payload.Headers {
			switch strings.ToLower(header.Name) {
			case "subject":
				mm.Subject = header.Value
			case "from":
				mm.Sender = header.Value
			case "date":
				date = header.Value
			}
		}
		mm.Body = extractBody(msg.Payload)
	}

	mm.ReceivedAt = receivedAt(date, msg.InternalDate, now)
	return mm
}

// receivedAt prefers the Date header, then Gmail's internal date, then now.
func receivedAt(date string, internalDate int64, now func() time.Time) time.Time {
	if date != "" {
		if t, err := mail.ParseDate(date); err == nil {
			return t
		}
	}
	if internalDate > 0 {
		return time.UnixMilli(internalDate)
	}
	return now()
}

// extractBody joins every text/plain part. HTML is converted only when the
// message has no plain part.
func extractBody(payload *gmail.MessagePart) string {
	if payload == nil {
		return ""
	}
	var plain, html []string
	collectParts(payload, &plain, &html)

	if len(plain) > 0 {
		return strings.TrimSpace(strings.Join(plain, "\n"))
	}
	if len(html) > 0 {
		return classification.HTMLToText(strings.Join(html, "\n"))
	}
	return ""
}

func collectParts(part *gmail.MessagePart, plain, html *[]string) {
	if part.Body != nil && part.Body.Data != "" && part.Filename == "" {
		switch strings.ToLower(strings.TrimSpace(strings.Split(part.MimeType, ";")[0])) {
		case "text/plain":
			if text, err := decodeBase64URL(part.Body.Data); err == nil {
				*plain = append(*plain, text)
			}
		case "text/html":
			if text, err := decodeBase64URL(part.Body.Data); err == nil {
				*html = append(*html, text)
			}
		}
	}
	for _, child := range part.Parts {
		if child != nil {
			collectParts(child, plain, html)
		}
	}
}

// decodeBase64URL accepts padded and unpadded url-safe data.
func decodeBase64URL(data string) (string, error) {
	data = strings.TrimRight(strings.TrimSpace(data), "=")
	decoded, err := base64.RawURLEncoding.DecodeString(data)
	if err != nil {
		decoded, err = base64.RawStdEncoding.DecodeString(data)
		if err != nil {
			return "", err
		}
	}
	return string(decoded), nil
}

// =============================================================================
// Errors
// =============================================================================

// isClientError keeps 4xx responses other than 429 from tripping the breaker.
func isClientError(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Code {
	case 400, 401, 403, 404:
		return true
	}
	return false
}

func wrapError(err error, defaultMsg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return out.NewProviderError(providerName, out.ProviderErrServer, "Gmail API circuit open", err, true)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 401:
			return out.NewProviderError(providerName, out.ProviderErrTokenExpired, "Token expired", err, false)
		case 403:
			if strings.Contains(apiErr.Message, "Rate Limit") {
				return out.NewProviderError(providerName, out.ProviderErrRateLimit, "Rate limit exceeded", err, true)
			}
			return out.NewProviderError(providerName, out.ProviderErrAuth, "Access denied", err, false)
		case 404:
			return out.NewProviderError(providerName, out.ProviderErrNotFound, "Not found", err, false)
		case 429:
			return out.NewProviderError(providerName, out.ProviderErrRateLimit, "Too many requests", err, true)
		case 500, 502, 503:
			return out.NewProviderError(providerName, out.ProviderErrServer, "Server error", err, true)
		}
	}

	return out.NewProviderError(providerName, out.ProviderErrNetwork, defaultMsg, err, true)
}

package domain

import (
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

type EmailCategory string

const (
	CategoryApplication EmailCategory = "application"
	CategoryInterview   EmailCategory = "interview"
	CategoryOffer       EmailCategory = "offer"
	CategoryRejection   EmailCategory = "rejection"
	CategoryUpdate      EmailCategory = "update"
	CategoryOther       EmailCategory = "other"
)

// ParseEmailCategory returns CategoryOther for anything unrecognised.
func ParseEmailCategory(s string) EmailCategory {
	switch c := EmailCategory(strings.ToLower(strings.TrimSpace(s))); c {
	case CategoryApplication, CategoryInterview, CategoryOffer, CategoryRejection, CategoryUpdate:
		return c
	default:
		return CategoryOther
	}
}

// MailMessage is one message fetched from a mailbox provider.
type MailMessage struct {
	ID         string    `json:"id"`
	ThreadID   string    `json:"thread_id,omitempty"`
	Subject    string    `json:"subject"`
	Sender     string    `json:"sender"`
	ReceivedAt time.Time `json:"received_at"`
	Body       string    `json:"body"`
	Snippet    string    `json:"snippet,omitempty"`
}

type ClassificationSource string

const (
	ClassifiedByAI       ClassificationSource = "ai"
	ClassifiedByFallback ClassificationSource = "fallback"
)

// EmailMetadata is the classifier judgment kept alongside an attached email.
type EmailMetadata struct {
	Source     ClassificationSource `json:"source"`
	Confidence float64              `json:"confidence"`
	Reasoning  string               `json:"reasoning,omitempty"`
	Model      string               `json:"model,omitempty"`
	Judgment   json.RawMessage      `json:"judgment,omitempty"`
}

// ApplicationEmail is an email attached to an application as evidence.
type ApplicationEmail struct {
	ID            uuid.UUID     `json:"id" db:"id"`
	UserID        uuid.UUID     `json:"user_id" db:"user_id"`
	ApplicationID uuid.UUID     `json:"application_id" db:"application_id"`
	MessageID     string        `json:"message_id" db:"message_id"`
	Subject       string        `json:"subject" db:"subject"`
	Sender        string        `json:"sender" db:"sender"`
	ReceivedAt    time.Time     `json:"received_at" db:"received_at"`
	Body          string        `json:"body" db:"body"`
	Category      EmailCategory `json:"category" db:"category"`
	Metadata      EmailMetadata `json:"metadata" db:"-"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
}

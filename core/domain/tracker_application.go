package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type ApplicationStatus string

const (
	StatusSaved     ApplicationStatus = "saved"
	StatusApplied   ApplicationStatus = "applied"
	StatusInterview ApplicationStatus = "interview"
	StatusOffer     ApplicationStatus = "offer"
	StatusRejected  ApplicationStatus = "rejected"
)

// ParseApplicationStatus maps free text onto a status. Classifier output like
// "interviewing" or "Rejected" is accepted.
func ParseApplicationStatus(s string) (ApplicationStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "saved":
		return StatusSaved, true
	case "applied", "application":
		return StatusApplied, true
	case "interview", "interviewing":
		return StatusInterview, true
	case "offer", "offered":
		return StatusOffer, true
	case "rejected", "rejection":
		return StatusRejected, true
	}
	return "", false
}

type ApplicationSource string

const (
	SourceManual   ApplicationSource = "manual"
	SourceEmail    ApplicationSource = "email"
	SourceLinkedIn ApplicationSource = "linkedin"
)

// Application is a tracked job application.
type Application struct {
	ID             uuid.UUID         `json:"id" db:"id"`
	UserID         uuid.UUID         `json:"user_id" db:"user_id"`
	JobTitle       string            `json:"job_title" db:"job_title"`
	CompanyName    string            `json:"company_name" db:"company_name"`
	Status         ApplicationStatus `json:"status" db:"status"`
	Source         ApplicationSource `json:"source" db:"source"`
	JobURL         *string           `json:"job_url,omitempty" db:"job_url"`
	JobDescription *string           `json:"job_description,omitempty" db:"job_description"`
	Location       *string           `json:"location,omitempty" db:"location"`
	Remote         bool              `json:"remote" db:"remote"`
	ExternalJobID  *string           `json:"external_job_id,omitempty" db:"external_job_id"`
	AppliedDate    *time.Time        `json:"applied_date,omitempty" db:"applied_date"`
	LastUpdated    time.Time         `json:"last_updated" db:"last_updated"`
	IsFavorite     bool              `json:"is_favorite" db:"is_favorite"`
	CreatedAt      time.Time         `json:"created_at" db:"created_at"`
}

// StatusHistoryEntry is one row of the append-only status audit trail.
type StatusHistoryEntry struct {
	ID            uuid.UUID         `json:"id" db:"id"`
	ApplicationID uuid.UUID         `json:"application_id" db:"application_id"`
	Status        ApplicationStatus `json:"status" db:"status"`
	Note          string            `json:"note" db:"note"`
	CreatedAt     time.Time         `json:"created_at" db:"created_at"`
}

var placeholderValues = map[string]struct{}{
	"":                 {},
	"unknown":          {},
	"unknown company":  {},
	"unknown position": {},
	"unknown title":    {},
	"unknown role":     {},
	"n/a":              {},
	"na":               {},
	"none":             {},
	"null":             {},
	"not specified":    {},
}

// IsPlaceholder reports whether an extracted company or title is a stand-in
// rather than a real value.
func IsPlaceholder(s string) bool {
	_, ok := placeholderValues[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// StringPtr returns nil for blank strings.
func StringPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// StringValue dereferences a possibly nil string.
func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

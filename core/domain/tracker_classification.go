package domain

import "github.com/goccy/go-json"

// ClassificationResult is the per-message judgment handed to reconciliation.
type ClassificationResult struct {
	IsJobRelated    bool               `json:"isJobRelated"`
	Category        EmailCategory      `json:"category"`
	CompanyName     string             `json:"companyName,omitempty"`
	JobTitle        string             `json:"jobTitle,omitempty"`
	JobDescription  string             `json:"jobDescription,omitempty"`
	JobURL          string             `json:"jobUrl,omitempty"`
	ExternalJobID   string             `json:"externalJobId,omitempty"`
	SuggestedStatus *ApplicationStatus `json:"suggestedStatus,omitempty"`
	Confidence      float64            `json:"confidence"`
	Reasoning       string             `json:"reasoning"`

	Source ClassificationSource `json:"source"`
	Model  string               `json:"model,omitempty"`
	Raw    json.RawMessage      `json:"-"`
}

// Metadata builds the record stored on the attached email.
func (r ClassificationResult) Metadata() EmailMetadata {
	return EmailMetadata{
		Source:     r.Source,
		Confidence: r.Confidence,
		Reasoning:  r.Reasoning,
		Model:      r.Model,
		Judgment:   r.Raw,
	}
}

// HasIdentity reports whether both company and title are real values.
func (r ClassificationResult) HasIdentity() bool {
	return !IsPlaceholder(r.CompanyName) && !IsPlaceholder(r.JobTitle)
}

// StatusPtr is a convenience for building results.
func StatusPtr(s ApplicationStatus) *ApplicationStatus {
	return &s
}

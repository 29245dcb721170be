package classification

import (
	"errors"
	"fmt"
	"strings"

	"tracker_server/core/domain"

	"github.com/goccy/go-json"
)

const systemPrompt = `You classify emails for a job application tracker. Respond with a single JSON object and nothing else.

An email is job related ONLY when it explicitly confirms or updates a specific application the recipient already submitted:
- confirmation that an application was received
- a status change on that application
- an interview invitation or scheduling for it
- a job offer
- a rejection

These are NOT job related and must have "isJobRelated": false:
- job board alerts and recommended jobs
- newsletters, digests and marketing
- account onboarding or welcome emails
- generic recruiter outreach that does not reference a submitted application

JSON fields:
{
  "isJobRelated": boolean,
  "category": "application" | "interview" | "offer" | "rejection" | "update" | "other",
  "companyName": string or null,
  "jobTitle": string or null,
  "jobDescription": string or null,
  "jobUrl": string or null,
  "externalJobId": string or null,
  "suggestedStatus": "applied" | "interview" | "offer" | "rejected" or null,
  "confidence": number between 0 and 1,
  "reasoning": short string
}

Use null instead of guessing. Never answer "Unknown Company", "Unknown Position" or "N/A".`

// BuildUserPrompt renders one email for the model.
func BuildUserPrompt(subject, sender, body string) string {
	return fmt.Sprintf("Subject: %s\nFrom: %s\n\nBody:\n%s", subject, sender, body)
}

var errEmptyResponse = errors.New("empty model response")

// aiJudgment mirrors the JSON document the model is asked to return.
type aiJudgment struct {
	IsJobRelated    *bool    `json:"isJobRelated"`
	Category        string   `json:"category"`
	CompanyName     *string  `json:"companyName"`
	JobTitle        *string  `json:"jobTitle"`
	JobDescription  *string  `json:"jobDescription"`
	JobURL          *string  `json:"jobUrl"`
	ExternalJobID   *string  `json:"externalJobId"`
	SuggestedStatus *string  `json:"suggestedStatus"`
	Confidence      *float64 `json:"confidence"`
	Reasoning       string   `json:"reasoning"`
}

const defaultAIConfidence = 0.7

// ParseJudgment validates and normalises a model response.
func ParseJudgment(raw string) (domain.ClassificationResult, error) {
	cleaned := StripCodeFence(raw)
	if cleaned == "" {
		return domain.ClassificationResult{}, errEmptyResponse
	}

	var j aiJudgment
	if err := json.Unmarshal([]byte(cleaned), &j); err != nil {
		return domain.ClassificationResult{}, fmt.Errorf("decode judgment: %w", err)
	}
	if j.IsJobRelated == nil {
		return domain.ClassificationResult{}, errors.New("judgment missing isJobRelated")
	}

	result := domain.ClassificationResult{
		IsJobRelated:   *j.IsJobRelated,
		Category:       domain.ParseEmailCategory(j.Category),
		CompanyName:    cleanField(j.CompanyName),
		JobTitle:       cleanField(j.JobTitle),
		JobDescription: cleanField(j.JobDescription),
		JobURL:         cleanField(j.JobURL),
		ExternalJobID:  cleanField(j.ExternalJobID),
		Confidence:     clampConfidence(j.Confidence),
		Reasoning:      strings.TrimSpace(j.Reasoning),
		Source:         domain.ClassifiedByAI,
		Raw:            json.RawMessage(cleaned),
	}
	if j.SuggestedStatus != nil {
		if status, ok := domain.ParseApplicationStatus(*j.SuggestedStatus); ok {
			result.SuggestedStatus = &status
		}
	}
	if !result.IsJobRelated {
		result.Category = domain.CategoryOther
		result.SuggestedStatus = nil
	}
	return result, nil
}

func cleanField(s *string) string {
	if s == nil {
		return ""
	}
	v := strings.TrimSpace(*s)
	if strings.EqualFold(v, "null") {
		return ""
	}
	return v
}

func clampConfidence(c *float64) float64 {
	if c == nil {
		return defaultAIConfidence
	}
	switch {
	case *c < 0:
		return 0
	case *c > 1:
		return 1
	}
	return *c
}

package http

import (
	"bytes"
	"strings"
	"time"

	"tracker_server/core/domain"
	"tracker_server/core/port/in"
	"tracker_server/infra/middleware"
	"tracker_server/pkg/apperr"
	"tracker_server/pkg/logger"
	"tracker_server/pkg/response"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// maxWebhookRecords bounds one ingestion batch.
const maxWebhookRecords = 200

// WebhookHandler ingests application records scraped by the browser
// extension.
type WebhookHandler struct {
	apps in.ApplicationService
}

func NewWebhookHandler(apps in.ApplicationService) *WebhookHandler {
	return &WebhookHandler{apps: apps}
}

func (h *WebhookHandler) Register(router fiber.Router) {
	router.Post("/webhooks/linkedin", h.LinkedIn)
}

// linkedInPayload accepts either a batch under "applications" or a record
// (or list of records) under "applicationData".
type linkedInPayload struct {
	UserID          string          `json:"userId"`
	Applications    []scrapedRecord `json:"applications"`
	ApplicationData json.RawMessage `json:"applicationData"`
}

// scrapedRecord takes both the API field names and the ones the extension
// scrapes (jobTitle, companyName, jobLink, appliedDate).
type scrapedRecord struct {
	Title          string `json:"title"`
	JobTitle       string `json:"jobTitle"`
	Company        string `json:"company"`
	CompanyName    string `json:"companyName"`
	URL            string `json:"url"`
	JobLink        string `json:"jobLink"`
	Description    string `json:"description"`
	JobDescription string `json:"jobDescription"`
	Location       string `json:"location"`
	Remote         bool   `json:"remote"`
	JobID          string `json:"jobId"`
	AppliedDate    string `json:"appliedDate"`
}

// appliedDateLayouts covers ISO timestamps and plain dates. Anything else the
// extension scrapes ("Applied 3 days ago") is ignored.
var appliedDateLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func (r scrapedRecord) toScraped() in.ScrapedApplication {
	rec := in.ScrapedApplication{
		JobTitle:       firstNonEmpty(r.Title, r.JobTitle),
		CompanyName:    firstNonEmpty(r.Company, r.CompanyName),
		JobURL:         firstNonEmpty(r.URL, r.JobLink),
		JobDescription: firstNonEmpty(r.Description, r.JobDescription),
		Location:       strings.TrimSpace(r.Location),
		Remote:         r.Remote,
		ExternalJobID:  strings.TrimSpace(r.JobID),
	}
	if raw := strings.TrimSpace(r.AppliedDate); raw != "" {
		for _, layout := range appliedDateLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				t = t.UTC()
				rec.AppliedDate = &t
				break
			}
		}
	}
	return rec
}

func (p *linkedInPayload) records() ([]in.ScrapedApplication, error) {
	raw := bytes.TrimSpace(p.ApplicationData)
	all := append([]scrapedRecord{}, p.Applications...)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
	case raw[0] == '[':
		var list []scrapedRecord
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, err
		}
		all = append(all, list...)
	default:
		var one scrapedRecord
		if err := json.Unmarshal(raw, &one); err != nil {
			return nil, err
		}
		all = append(all, one)
	}

	records := make([]in.ScrapedApplication, 0, len(all))
	for _, r := range all {
		records = append(records, r.toScraped())
	}
	return records, nil
}

// LinkedIn creates or matches one application per record.
func (h *WebhookHandler) LinkedIn(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	var payload linkedInPayload
	if err := parseBody(c, &payload); err != nil {
		return err
	}
	if payload.UserID != "" {
		claimed, err := uuid.Parse(payload.UserID)
		if err != nil {
			return apperr.InvalidInput("userId", "must be a valid UUID")
		}
		if claimed != userID {
			middleware.LogSecurityEvent(c, "webhook_user_mismatch", payload.UserID)
			return apperr.Forbidden("userId does not match the authenticated user")
		}
	}

	records, err := payload.records()
	if err != nil {
		return apperr.BadRequest("invalid applicationData").WithError(err)
	}
	if len(records) == 0 {
		return apperr.ValidationFailed("applications or applicationData is required")
	}
	if len(records) > maxWebhookRecords {
		return apperr.ValidationFailed("too many records in one request").WithDetail("max", maxWebhookRecords)
	}

	results, err := h.apps.IngestScraped(c.UserContext(), userID, domain.SourceLinkedIn, records)
	if err != nil {
		return err
	}

	created := 0
	for _, r := range results {
		if r.Created {
			created++
		}
	}
	logger.Info("[WebhookHandler.LinkedIn] user %s: %d records, %d created", userID, len(results), created)

	return response.OK(c, fiber.Map{
		"results": results,
		"created": created,
		"matched": len(results) - created,
	})
}

package classification

import (
	"testing"

	"tracker_server/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallback_Categories(t *testing.T) {
	tests := []struct {
		name       string
		subject    string
		body       string
		wantJob    bool
		wantCat    domain.EmailCategory
		wantStatus *domain.ApplicationStatus
	}{
		{
			name:       "application confirmation",
			subject:    "Thank you for applying",
			body:       "We have received your application.",
			wantJob:    true,
			wantCat:    domain.CategoryApplication,
			wantStatus: domain.StatusPtr(domain.StatusApplied),
		},
		{
			name:       "interview request",
			subject:    "Interview Request",
			body:       "Can we talk next week?",
			wantJob:    true,
			wantCat:    domain.CategoryInterview,
			wantStatus: domain.StatusPtr(domain.StatusInterview),
		},
		{
			name:       "offer",
			subject:    "Good news",
			body:       "We are pleased to offer you the job.",
			wantJob:    true,
			wantCat:    domain.CategoryOffer,
			wantStatus: domain.StatusPtr(domain.StatusOffer),
		},
		{
			name:       "rejection",
			subject:    "About the position",
			body:       "We regret to inform you that we went with other candidates.",
			wantJob:    true,
			wantCat:    domain.CategoryRejection,
			wantStatus: domain.StatusPtr(domain.StatusRejected),
		},
		{
			name:    "update",
			subject: "An update on your career profile",
			body:    "Nothing changed.",
			wantJob: true,
			wantCat: domain.CategoryUpdate,
		},
		{
			name:    "job word only",
			subject: "Career fair",
			body:    "Come by booth 4.",
			wantJob: true,
			wantCat: domain.CategoryOther,
		},
		{
			name:    "unrelated",
			subject: "Your receipt",
			body:    "Thanks for shopping.",
			wantJob: false,
			wantCat: domain.CategoryOther,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fallback(tt.subject, "someone@example.com", tt.body)
			assert.Equal(t, tt.wantJob, got.IsJobRelated)
			assert.Equal(t, tt.wantCat, got.Category)
			assert.Equal(t, tt.wantStatus, got.SuggestedStatus)
			assert.Equal(t, domain.ClassifiedByFallback, got.Source)
			assert.GreaterOrEqual(t, got.Confidence, 0.5)
			assert.LessOrEqual(t, got.Confidence, 0.85)
			assert.NotEmpty(t, got.Reasoning)
		})
	}
}

func TestFallback_AcmeConfirmation(t *testing.T) {
	got := Fallback(
		"Thank you for applying to the Backend Engineer role",
		"Acme Careers <jobs@acme.com>",
		"Hi, we have received your application and will be in touch.",
	)

	assert.True(t, got.IsJobRelated)
	assert.Equal(t, domain.CategoryApplication, got.Category)
	require.NotNil(t, got.SuggestedStatus)
	assert.Equal(t, domain.StatusApplied, *got.SuggestedStatus)
	assert.Equal(t, "Acme", got.CompanyName)
	assert.Equal(t, "Backend Engineer", got.JobTitle)
	assert.True(t, got.HasIdentity())
}

func TestFallback_Extraction(t *testing.T) {
	body := "Thanks for your application for the Senior Data Analyst position.\n" +
		"Requisition ID: R-2231\n" +
		"Details: https://careers.initech.io/jobs/2231.\n" +
		"Best, The Initech Recruiting Team"

	got := Fallback("Application received", "no-reply@greenhouse.io", body)

	assert.Equal(t, "Initech", got.CompanyName)
	assert.Equal(t, "Senior Data Analyst", got.JobTitle)
	assert.Equal(t, "R-2231", got.ExternalJobID)
	assert.Equal(t, "https://careers.initech.io/jobs/2231", got.JobURL)
	assert.InDelta(t, 0.85, got.Confidence, 1e-9)
}

func TestFallback_GenericSenderYieldsNoCompany(t *testing.T) {
	got := Fallback("Re: job application: Designer", "friend@gmail.com", "see attached")
	assert.Empty(t, got.CompanyName)
	assert.Equal(t, "Designer", got.JobTitle)
}

func TestFallback_LongSubjectYieldsNoTitle(t *testing.T) {
	got := Fallback("we wanted to share some thoughts about your job search this week", "news@boards.com", "")
	assert.Empty(t, got.JobTitle)
	assert.Equal(t, "Boards", got.CompanyName)
}

func TestHTMLToText(t *testing.T) {
	in := `<html><head><title>T</title><style>p{}</style></head><body><div>Hello <b>there</b></div><p>Second&nbsp;line</p><script>evil()</script></body></html>`
	got := HTMLToText(in)
	assert.Equal(t, "Hello there\nSecond line", got)
}

func TestPrepareBody(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		limit int
		want  string
	}{
		{"plain text trimmed", "  thanks for applying \n", 0, "thanks for applying"},
		{"markup stripped", "<p>Thanks <b>Ada</b></p>", 0, "Thanks Ada"},
		{"capped in runes", "héllo wörld", 5, "héllo"},
		{"markup stripped before cap", "<div>abcdef</div>", 3, "abc"},
		{"short body under cap", "ok", 10, "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PrepareBody(tt.body, tt.limit))
		})
	}
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripCodeFence("```\n{\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, StripCodeFence(`  {"a":1} `))
}

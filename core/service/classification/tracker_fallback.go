package classification

import (
	"fmt"
	"regexp"
	"strings"

	"tracker_server/core/domain"
)

var jobVocabulary = []string{
	"application", "applying", "applied", "job", "position", "career", "interview",
	"offer", "rejection", "hiring", "recruitment", "recruiting",
	"thank you for applying", "we have received your application",
	"schedule an interview", "pleased to offer you",
}

type categoryRule struct {
	category domain.EmailCategory
	status   *domain.ApplicationStatus
	subject  []string
	body     []string
}

// Ordered by priority; first match wins.
var categoryRules = []categoryRule{
	{
		category: domain.CategoryApplication,
		status:   domain.StatusPtr(domain.StatusApplied),
		subject:  []string{"application", "applied", "applying"},
		body: []string{
			"thank you for applying", "thanks for applying", "we have received your application",
			"received your application", "application has been received", "application was submitted",
		},
	},
	{
		category: domain.CategoryInterview,
		status:   domain.StatusPtr(domain.StatusInterview),
		subject:  []string{"interview", "phone screen"},
		body: []string{
			"schedule an interview", "would like to schedule", "interview invitation",
			"invite you to interview", "next round",
		},
	},
	{
		category: domain.CategoryOffer,
		status:   domain.StatusPtr(domain.StatusOffer),
		subject:  []string{"offer"},
		body:     []string{"pleased to offer you", "job offer", "offer letter"},
	},
	{
		category: domain.CategoryRejection,
		status:   domain.StatusPtr(domain.StatusRejected),
		subject:  []string{"rejection", "not moving forward", "regret"},
		body: []string{
			"we regret", "not moving forward", "other candidates", "decided not to proceed",
			"will not be moving forward", "not been selected",
		},
	},
	{
		category: domain.CategoryUpdate,
		subject:  []string{"update", "status"},
		body:     []string{"update on your application", "application status"},
	},
}

const (
	capWord     = `[A-Z][A-Za-z0-9&+#/.'-]*`
	capPhrase   = `((?:` + capWord + `\s+){0,2}` + capWord + `)`
	titlePhrase = `((?:` + capWord + `\s+){0,5}` + capWord + `)`
)

var (
	companyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(?:from|at|joining)\s+` + capPhrase),
		regexp.MustCompile(`\b` + capPhrase + `\s+(?i:team|recruiting|recruitment|talent|careers|hiring)\b`),
	}
	titlePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i:application for|applying for|applying to|applied for|applied to)\s+(?:(?i:the|a|an)\s+)?` + titlePhrase),
		regexp.MustCompile(`\b` + titlePhrase + `\s+(?i:position|role|opening|opportunity)\b`),
	}
	externalIDPattern = regexp.MustCompile(`(?i)\b(?:job\s+id|reference\s+number|requisition\s+id|req\s+id|application\s+id)[:#\s]+([A-Za-z0-9][A-Za-z0-9-]*)`)
	urlPattern        = regexp.MustCompile(`https?://[^\s<>"'()\[\]]+`)
	senderDomain      = regexp.MustCompile(`@([^.>\s]+)`)
	subjectPrefixes   = regexp.MustCompile(`(?i)^\s*(?:re|fwd?|aw)\s*:\s*`)
	subjectLabels     = regexp.MustCompile(`(?i)\b(?:job application:|application for)\s*`)
)

// Words that look like names in a sentence but never are.
var leadingNoise = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "our": {}, "your": {}, "this": {}, "thank": {}, "thanks": {},
	"dear": {}, "hi": {}, "hello": {}, "best": {}, "regards": {}, "we": {}, "i": {},
}

var trailingNoise = map[string]struct{}{
	"team": {}, "recruiting": {}, "recruitment": {}, "talent": {}, "careers": {}, "hiring": {}, "hr": {},
}

// Mail hosts and recruiting platforms; their domain says nothing about the employer.
var genericSenderDomains = map[string]struct{}{
	"gmail": {}, "googlemail": {}, "yahoo": {}, "outlook": {}, "hotmail": {}, "live": {},
	"icloud": {}, "aol": {}, "proton": {}, "protonmail": {}, "mail": {},
	"linkedin": {}, "indeed": {}, "glassdoor": {}, "greenhouse": {}, "lever": {},
	"workday": {}, "myworkday": {}, "smartrecruiters": {}, "ashbyhq": {}, "jobvite": {},
	"icims": {}, "bamboohr": {}, "workable": {}, "noreply": {}, "no-reply": {},
}

// Fallback classifies with keyword and regex heuristics. It is deterministic
// and never fails.
func Fallback(subject, sender, body string) domain.ClassificationResult {
	lowerSubject := strings.ToLower(subject)
	lowerBody := strings.ToLower(body)
	combined := lowerSubject + "\n" + lowerBody

	if !containsAny(combined, jobVocabulary) {
		return domain.ClassificationResult{
			IsJobRelated: false,
			Category:     domain.CategoryOther,
			Confidence:   0.5,
			Reasoning:    "fallback: no job vocabulary in subject or body",
			Source:       domain.ClassifiedByFallback,
		}
	}

	result := domain.ClassificationResult{
		IsJobRelated: true,
		Category:     domain.CategoryOther,
		Source:       domain.ClassifiedByFallback,
	}
	var reasons []string
	confidence := 0.5

	for _, rule := range categoryRules {
		inSubject := containsAny(lowerSubject, rule.subject) || containsAny(lowerSubject, rule.body)
		inBody := containsAny(lowerBody, rule.body)
		if !inSubject && !inBody {
			continue
		}
		result.Category = rule.category
		if rule.status != nil {
			status := *rule.status
			result.SuggestedStatus = &status
		}
		where := "body"
		confidence = 0.6
		if inSubject {
			where = "subject"
			confidence = 0.7
		}
		reasons = append(reasons, fmt.Sprintf("%s phrase in %s", rule.category, where))
		break
	}
	if result.Category == domain.CategoryOther {
		reasons = append(reasons, "job vocabulary without a category phrase")
	}

	if company, how := extractCompany(subject, body, sender); company != "" {
		result.CompanyName = company
		reasons = append(reasons, "company from "+how)
		if how != "sender domain" {
			confidence += 0.075
		}
	}
	if title, how := extractTitle(subject, body); title != "" {
		result.JobTitle = title
		reasons = append(reasons, "title from "+how)
		if how != "subject line" {
			confidence += 0.075
		}
	}
	if m := externalIDPattern.FindStringSubmatch(body); m != nil {
		result.ExternalJobID = m[1]
		reasons = append(reasons, "external id pattern")
	}
	if u := urlPattern.FindString(body); u != "" {
		result.JobURL = strings.TrimRight(u, ".,;:!?")
	}

	if confidence > 0.85 {
		confidence = 0.85
	}
	result.Confidence = confidence
	result.Reasoning = "fallback: " + strings.Join(reasons, "; ")
	return result
}

func extractCompany(subject, body, sender string) (string, string) {
	for _, text := range []string{subject, body} {
		for _, re := range companyPatterns {
			for _, m := range re.FindAllStringSubmatch(text, -1) {
				if name := cleanName(m[1]); name != "" {
					return name, "text pattern"
				}
			}
		}
	}
	if m := senderDomain.FindStringSubmatch(strings.ToLower(sender)); m != nil {
		if _, generic := genericSenderDomains[m[1]]; !generic {
			return strings.ToUpper(m[1][:1]) + m[1][1:], "sender domain"
		}
	}
	return "", ""
}

func extractTitle(subject, body string) (string, string) {
	for _, text := range []string{subject, body} {
		for _, re := range titlePatterns {
			for _, m := range re.FindAllStringSubmatch(text, -1) {
				if title := cleanName(m[1]); title != "" {
					return title, "text pattern"
				}
			}
		}
	}

	cleaned := subjectPrefixes.ReplaceAllString(subject, "")
	cleaned = strings.TrimSpace(subjectLabels.ReplaceAllString(cleaned, ""))
	if words := strings.Fields(cleaned); len(words) > 0 && len(words) <= 5 {
		return strings.Join(words, " "), "subject line"
	}
	return "", ""
}

// cleanName drops leading filler words and trailing punctuation from a
// captured phrase, rejecting what is left if it is a placeholder.
func cleanName(s string) string {
	words := strings.Fields(s)
	for len(words) > 0 {
		if _, noise := leadingNoise[strings.ToLower(words[0])]; !noise {
			break
		}
		words = words[1:]
	}
	for len(words) > 0 {
		if _, noise := trailingNoise[strings.ToLower(words[len(words)-1])]; !noise {
			break
		}
		words = words[:len(words)-1]
	}
	name := strings.TrimRight(strings.Join(words, " "), ".,;:!?'-")
	if domain.IsPlaceholder(name) {
		return ""
	}
	return name
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

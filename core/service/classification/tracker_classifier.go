// Package classification turns a raw email into a job-application judgment.
package classification

import (
	"context"

	"tracker_server/core/domain"
	"tracker_server/core/port/out"
	"tracker_server/pkg/logger"
)

// EmailInput is the part of a message the classifier looks at.
type EmailInput struct {
	Subject string
	Sender  string
	Body    string
}

// Classifier asks the text generator first and falls back to heuristics.
type Classifier struct {
	llm     out.TextGenerator
	bodyCap int
}

// NewClassifier creates a classifier. llm may be nil, in which case every
// email goes through the heuristic path.
func NewClassifier(llm out.TextGenerator, bodyCap int) *Classifier {
	if bodyCap <= 0 {
		bodyCap = 2000
	}
	return &Classifier{llm: llm, bodyCap: bodyCap}
}

// Classify never fails; generator errors and malformed output are absorbed
// by the fallback.
func (c *Classifier) Classify(ctx context.Context, email EmailInput) domain.ClassificationResult {
	text := PrepareBody(email.Body, 0)

	if c.llm == nil {
		return Fallback(email.Subject, email.Sender, text)
	}

	prompt := BuildUserPrompt(email.Subject, email.Sender, truncateRunes(text, c.bodyCap))
	raw, err := c.llm.GenerateJSON(ctx, systemPrompt, prompt)
	if err != nil {
		logger.WithError(err).Warn("[Classifier] generator failed, using fallback")
		return Fallback(email.Subject, email.Sender, text)
	}

	result, err := ParseJudgment(raw)
	if err != nil {
		logger.WithError(err).Warn("[Classifier] unparseable judgment, using fallback")
		return Fallback(email.Subject, email.Sender, text)
	}
	result.Model = c.llm.Model()
	return result
}

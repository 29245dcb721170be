// Package llm implements out.TextGenerator on the OpenAI chat completions API.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"tracker_server/core/port/out"
	"tracker_server/pkg/httputil"
	"tracker_server/pkg/metrics"
	"tracker_server/pkg/resilience"

	openai "github.com/sashabaranov/go-openai"
)

const DefaultModel = "gpt-4o-mini"

var ErrEmptyCompletion = errors.New("completion returned no content")

type ClientConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// Client asks the model for a JSON object response.
type Client struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
	breaker     *resilience.Breaker
}

var _ out.TextGenerator = (*Client)(nil)

func NewClient(cfg ClientConfig) *Client {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 800
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	} else {
		oc.HTTPClient = httputil.NewClient(httputil.OpenAIClientConfig(timeout))
	}

	return &Client{
		client:      openai.NewClientWithConfig(oc),
		model:       model,
		maxTokens:   maxTokens,
		temperature: float32(cfg.Temperature),
		timeout:     timeout,
		breaker:     resilience.NewBreaker(resilience.DefaultBreakerConfig("openai")),
	}
}

func (c *Client) Model() string {
	return c.model
}

// GenerateJSON sends one system and one user message and returns the raw
// content of the first choice.
func (c *Client) GenerateJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	var content string
	err := c.breaker.Execute(func() error {
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: userPrompt},
			},
			MaxTokens:   c.maxTokens,
			Temperature: c.temperature,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return ErrEmptyCompletion
		}
		content = resp.Choices[0].Message.Content
		return nil
	}, isRequestError)
	metrics.LLMRequestDuration.WithLabelValues(c.model, metrics.StatusLabel(err)).Observe(time.Since(start).Seconds())

	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyCompletion
	}
	return content, nil
}

// isRequestError reports caller-side failures that say nothing about the API's health.
func isRequestError(err error) bool {
	if errors.Is(err, ErrEmptyCompletion) {
		return true
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return true
		}
	}
	return false
}

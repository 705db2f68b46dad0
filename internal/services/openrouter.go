package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	openai "github.com/sashabaranov/go-openai"

	"chatbot-backend/internal/models"
)

const openRouterProvider = "openrouter"

type OpenRouterConfig struct {
	APIKey  string
	BaseURL string
	// Referer and Title are OpenRouter's optional attribution headers.
	Referer string
	Title   string
	Timeout time.Duration
}

// OpenRouterClient talks to an OpenAI-compatible chat completions endpoint.
type OpenRouterClient struct {
	http    *resty.Client
	apiKey  string
	referer string
	title   string
}

func NewOpenRouterClient(cfg OpenRouterConfig) *OpenRouterClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenRouterClient{
		http: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
		apiKey:  cfg.APIKey,
		referer: cfg.Referer,
		title:   cfg.Title,
	}
}

func (c *OpenRouterClient) Configured() bool {
	return c.apiKey != ""
}

func (c *OpenRouterClient) Complete(ctx context.Context, model string, messages []models.ChatMessage) (string, error) {
	body := openai.ChatCompletionRequest{
		Model:    model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		body.Messages = append(body.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	req := c.http.R().
		SetContext(ctx).
		SetAuthToken(c.apiKey).
		SetBody(body)
	if c.referer != "" {
		req.SetHeader("HTTP-Referer", c.referer)
	}
	if c.title != "" {
		req.SetHeader("X-Title", c.title)
	}

	resp, err := req.Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("%s request: %w", openRouterProvider, err)
	}
	if resp.IsError() {
		return "", &UpstreamError{Provider: openRouterProvider, Status: resp.StatusCode(), Body: resp.String()}
	}

	var out openai.ChatCompletionResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("%s decode response: %w", openRouterProvider, err)
	}
	if len(out.Choices) == 0 {
		return "", nil
	}
	return out.Choices[0].Message.Content, nil
}

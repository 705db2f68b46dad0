package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"chatbot-backend/internal/models"
)

const geminiProvider = "gemini"

// GeminiClient relays a conversation to Gemini. A client is opened per call
// so nothing outlives the request.
type GeminiClient struct {
	apiKey string
	opts   []option.ClientOption
}

func NewGeminiClient(apiKey string, opts ...option.ClientOption) *GeminiClient {
	return &GeminiClient{apiKey: apiKey, opts: opts}
}

func (c *GeminiClient) Configured() bool {
	return c.apiKey != ""
}

func (c *GeminiClient) Complete(ctx context.Context, model string, messages []models.ChatMessage) (string, error) {
	system, history, last := splitForGemini(messages)
	if last == nil {
		return "", nil
	}

	opts := append([]option.ClientOption{option.WithAPIKey(c.apiKey)}, c.opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to create Gemini client: %w", err)
	}
	defer client.Close()

	gm := client.GenerativeModel(model)
	if system != "" {
		gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	cs := gm.StartChat()
	cs.History = history

	resp, err := cs.SendMessage(ctx, last.Parts...)
	if err != nil {
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			return "", nil
		}
		return "", fmt.Errorf("Gemini API error: %w", err)
	}

	return extractText(resp), nil
}

// splitForGemini maps chat roles onto Gemini's: system turns are merged into
// the system instruction, assistant becomes "model", and the final turn is
// held back to be sent.
func splitForGemini(messages []models.ChatMessage) (string, []*genai.Content, *genai.Content) {
	var system []string
	var turns []*genai.Content
	for _, m := range messages {
		switch models.Role(m.Role) {
		case models.RoleSystem:
			system = append(system, m.Content)
		case models.RoleAssistant:
			turns = append(turns, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(m.Content)}})
		default:
			turns = append(turns, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(m.Content)}})
		}
	}
	if len(turns) == 0 {
		return strings.Join(system, "\n\n"), nil, nil
	}
	return strings.Join(system, "\n\n"), turns[:len(turns)-1], turns[len(turns)-1]
}

// extractText reads the first candidate only.
func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	return text.String()
}

package services

import (
	"testing"

	"github.com/google/generative-ai-go/genai"

	"chatbot-backend/internal/models"
)

func TestSplitForGemini(t *testing.T) {
	system, history, last := splitForGemini([]models.ChatMessage{
		{Role: "system", Content: "Be brief."},
		{Role: "user", Content: "Hello"},
		{Role: "assistant", Content: "Hi"},
		{Role: "system", Content: "Answer in English."},
		{Role: "user", Content: "Why?"},
	})

	if system != "Be brief.\n\nAnswer in English." {
		t.Fatalf("unexpected system instruction %q", system)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history turns, got %d", len(history))
	}
	if history[0].Role != "user" || history[1].Role != "model" {
		t.Fatalf("unexpected history roles: %s, %s", history[0].Role, history[1].Role)
	}
	if last == nil || last.Role != "user" || last.Parts[0] != genai.Text("Why?") {
		t.Fatalf("unexpected last turn: %+v", last)
	}
}

func TestSplitForGemini_OnlySystem(t *testing.T) {
	_, history, last := splitForGemini([]models.ChatMessage{{Role: "system", Content: "x"}})
	if history != nil || last != nil {
		t.Fatalf("expected nothing to send, got history=%v last=%v", history, last)
	}
}

func TestExtractText_FirstCandidateOnly(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []genai.Part{genai.Text("Hi "), genai.Text("there")}}},
			{Content: &genai.Content{Parts: []genai.Part{genai.Text("ignored")}}},
		},
	}
	if got := extractText(resp); got != "Hi there" {
		t.Fatalf("expected %q, got %q", "Hi there", got)
	}

	if got := extractText(&genai.GenerateContentResponse{}); got != "" {
		t.Fatalf("expected empty text without candidates, got %q", got)
	}
}

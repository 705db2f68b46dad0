package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestRoleValid(t *testing.T) {
	for _, r := range []Role{RoleUser, RoleAssistant, RoleSystem} {
		if !r.Valid() {
			t.Errorf("expected %q to be valid", r)
		}
	}
	for _, r := range []Role{"", "tool", "USER"} {
		if r.Valid() {
			t.Errorf("expected %q to be invalid", r)
		}
	}
}

func TestMessageBefore(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := Message{ID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), CreatedAt: base}
	b := Message{ID: uuid.MustParse("00000000-0000-0000-0000-000000000002"), CreatedAt: base}
	c := Message{ID: uuid.MustParse("00000000-0000-0000-0000-000000000000"), CreatedAt: base.Add(time.Second)}

	if !a.Before(b) || b.Before(a) {
		t.Fatalf("expected id to break ties between equal timestamps")
	}
	if !b.Before(c) || c.Before(a) {
		t.Fatalf("expected creation time to dominate ordering")
	}
}

func TestConversationChannel(t *testing.T) {
	id := uuid.MustParse("6f1c2a8e-4c1b-4a55-9a43-0f1f9b1d2c3e")
	if got := ConversationChannel(id); got != "conversation_messages:6f1c2a8e-4c1b-4a55-9a43-0f1f9b1d2c3e" {
		t.Fatalf("unexpected channel: %q", got)
	}
}

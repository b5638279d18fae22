package assistant

import (
	"context"
	"testing"

	"mooai/internal/events"
	"mooai/internal/models"
)

func TestBuildTranscriptLabelsRoles(t *testing.T) {
	msgs := []models.Message{
		{TS: "1.1", Text: "question"},
		{TS: "1.2", BotID: "B1", Text: "answer"},
	}
	got := BuildTranscript("system rules", msgs)
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	if got[0].Role != models.RoleSystem || got[0].Text != "system rules" {
		t.Fatalf("first entry must be the system instruction: %+v", got[0])
	}
	if got[1].Role != models.RoleUser || got[2].Role != models.RoleAssistant {
		t.Fatalf("unexpected roles: %+v", got)
	}
}

func TestBuildPromptUsesOnlyCurrentText(t *testing.T) {
	p := BuildPrompt("sys", "latest")
	if p.System != "sys" || p.Instruction != "latest" {
		t.Fatalf("unexpected prompt: %+v", p)
	}
}

func TestHistorySortsByNumericTimestamp(t *testing.T) {
	p := &fakePlatform{replies: []models.Message{
		{TS: "100.1", Text: "a"},
		{TS: "100.3", Text: "c"},
		{TS: "100.2", Text: "b"},
	}}
	svc := newTestService(t, p, &fakeCompleter{})

	thread, err := svc.history(context.Background(), events.UserMessage{ChannelID: "D1", TS: "100.3", ThreadTS: "100.1"})
	if err != nil {
		t.Fatalf("history error: %v", err)
	}
	var order string
	for _, m := range thread.Messages {
		order += m.Text
	}
	if order != "abc" {
		t.Fatalf("messages not sorted: %s", order)
	}
	if thread.RootTS != "100.1" {
		t.Fatalf("unexpected root %q", thread.RootTS)
	}
}

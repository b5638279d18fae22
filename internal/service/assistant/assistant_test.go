package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"mooai/internal/config"
	"mooai/internal/events"
	"mooai/internal/logger"
	"mooai/internal/models"
)

type fakePlatform struct {
	calls   []string
	replies []models.Message
	failOn  string

	posted      []string
	titles      []string
	fetchWindow [2]string
	fetchLimit  int
	prompts     []config.SuggestedPrompt
	promptTitle string
}

func (f *fakePlatform) record(call string) error {
	f.calls = append(f.calls, call)
	if call == f.failOn {
		return fmt.Errorf("%s failed", call)
	}
	return nil
}

func (f *fakePlatform) PostMessage(_ context.Context, channelID, threadTS, text string) (string, error) {
	if err := f.record("post"); err != nil {
		return "", err
	}
	f.posted = append(f.posted, channelID+"|"+threadTS+"|"+text)
	return "999.1", nil
}

func (f *fakePlatform) SetStatus(_ context.Context, _, _, _ string) error {
	return f.record("status")
}

func (f *fakePlatform) SetSuggestedPrompts(_ context.Context, _, _, title string, prompts []config.SuggestedPrompt) error {
	f.promptTitle = title
	f.prompts = prompts
	return f.record("prompts")
}

func (f *fakePlatform) SetTitle(_ context.Context, _, _, title string) error {
	f.titles = append(f.titles, title)
	return f.record("title")
}

func (f *fakePlatform) FetchReplies(_ context.Context, _, oldest, latest string, limit int) ([]models.Message, error) {
	f.fetchWindow = [2]string{oldest, latest}
	f.fetchLimit = limit
	if err := f.record("fetch"); err != nil {
		return nil, err
	}
	return f.replies, nil
}

type fakeCompleter struct {
	calls   int
	reply   string
	err     error
	prompts []models.Prompt
	onCall  func()
}

func (f *fakeCompleter) Complete(_ context.Context, prompt models.Prompt) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if f.onCall != nil {
		f.onCall()
	}
	return f.reply, f.err
}

func newTestService(t *testing.T, p *fakePlatform, c *fakeCompleter) *Service {
	t.Helper()
	cfg := config.Default()
	cfg.BasicConfig.HistoryLimit = 50
	return NewService(p, c, cfg, logger.Discard())
}

func joinCalls(calls []string) string { return strings.Join(calls, ",") }

func TestUserMessageRunsStepsInOrder(t *testing.T) {
	p := &fakePlatform{replies: []models.Message{{TS: "100.1", Text: "hi"}}}
	c := &fakeCompleter{reply: "Moo back"}
	c.onCall = func() { p.calls = append(p.calls, "complete") }
	svc := newTestService(t, p, c)

	ev := events.UserMessage{ChannelID: "D1", TS: "100.3", ThreadTS: "100.1", Text: "hello"}
	if err := svc.UserMessage(context.Background(), ev); err != nil {
		t.Fatalf("UserMessage error: %v", err)
	}
	if got, want := joinCalls(p.calls), "status,fetch,complete,title,post"; got != want {
		t.Fatalf("call order = %s, want %s", got, want)
	}
	if p.fetchWindow != [2]string{"100.1", "100.3"} || p.fetchLimit != 50 {
		t.Fatalf("unexpected fetch window %v limit %d", p.fetchWindow, p.fetchLimit)
	}
	if len(p.titles) != 1 || p.titles[0] != "Moo back" {
		t.Fatalf("title not set to reply: %v", p.titles)
	}
	if len(p.posted) != 1 || p.posted[0] != "D1|100.1|Moo back" {
		t.Fatalf("unexpected posted messages: %v", p.posted)
	}
	if c.prompts[0].Instruction != "hello" || c.prompts[0].System != config.Default().Assistant.SystemInstruction {
		t.Fatalf("unexpected prompt: %+v", c.prompts[0])
	}
}

func TestUserMessageTopLevelUsesOwnTS(t *testing.T) {
	p := &fakePlatform{}
	svc := newTestService(t, p, &fakeCompleter{reply: "ok"})

	ev := events.UserMessage{ChannelID: "D1", TS: "200.5", Text: "hi"}
	if err := svc.UserMessage(context.Background(), ev); err != nil {
		t.Fatalf("UserMessage error: %v", err)
	}
	if p.fetchWindow != [2]string{"200.5", "200.5"} {
		t.Fatalf("unexpected fetch window %v", p.fetchWindow)
	}
	if p.posted[0] != "D1|200.5|ok" {
		t.Fatalf("reply not posted in thread of the message: %v", p.posted)
	}
}

func TestUserMessageEmptyTextStillCompletes(t *testing.T) {
	p := &fakePlatform{}
	c := &fakeCompleter{reply: "What would you like to know?"}
	svc := newTestService(t, p, c)

	if err := svc.UserMessage(context.Background(), events.UserMessage{ChannelID: "D1", TS: "1.1"}); err != nil {
		t.Fatalf("UserMessage error: %v", err)
	}
	if c.calls != 1 || c.prompts[0].Instruction != "" {
		t.Fatalf("expected one completion with empty instruction, got %d %+v", c.calls, c.prompts)
	}
	if len(p.posted) != 1 {
		t.Fatalf("expected reply to be posted")
	}
}

func TestUserMessageAbortsOnFailure(t *testing.T) {
	tests := []struct {
		failOn    string
		wantCalls string
		completes int
	}{
		{failOn: "status", wantCalls: "status", completes: 0},
		{failOn: "fetch", wantCalls: "status,fetch", completes: 0},
		{failOn: "title", wantCalls: "status,fetch,title", completes: 1},
		{failOn: "post", wantCalls: "status,fetch,title,post", completes: 1},
	}
	for _, tt := range tests {
		t.Run(tt.failOn, func(t *testing.T) {
			p := &fakePlatform{failOn: tt.failOn}
			c := &fakeCompleter{reply: "r"}
			svc := newTestService(t, p, c)
			err := svc.UserMessage(context.Background(), events.UserMessage{ChannelID: "D1", TS: "1.1", Text: "x"})
			if err == nil {
				t.Fatalf("expected error")
			}
			if got := joinCalls(p.calls); got != tt.wantCalls {
				t.Fatalf("calls = %s, want %s", got, tt.wantCalls)
			}
			if c.calls != tt.completes {
				t.Fatalf("completions = %d, want %d", c.calls, tt.completes)
			}
		})
	}
}

func TestUserMessageCompletionFailureSkipsReply(t *testing.T) {
	p := &fakePlatform{}
	upstream := errors.New("provider down")
	svc := newTestService(t, p, &fakeCompleter{err: upstream})

	err := svc.UserMessage(context.Background(), events.UserMessage{ChannelID: "D1", TS: "1.1", Text: "x"})
	if !errors.Is(err, upstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if got := joinCalls(p.calls); got != "status,fetch" {
		t.Fatalf("no calls expected after failed completion, got %s", got)
	}
}

func TestThreadStartedGreetsThenSuggests(t *testing.T) {
	p := &fakePlatform{}
	c := &fakeCompleter{}
	svc := newTestService(t, p, c)

	ev := events.ThreadStarted{ChannelID: "D1", ThreadTS: "300.1"}
	if _, err := svc.Dispatch(context.Background(), ev); err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	if got := joinCalls(p.calls); got != "post,prompts" {
		t.Fatalf("calls = %s, want post,prompts", got)
	}
	if p.posted[0] != "D1|300.1|Hi, how can I help you today?" {
		t.Fatalf("unexpected greeting: %v", p.posted)
	}
	if len(p.prompts) != 1 || p.prompts[0].Message != "What does SLACK stand for?" {
		t.Fatalf("unexpected prompts: %+v", p.prompts)
	}
	if c.calls != 0 {
		t.Fatalf("thread start must not call the completion service")
	}
}

func TestThreadStartedGreetingFailurePropagates(t *testing.T) {
	p := &fakePlatform{failOn: "post"}
	svc := newTestService(t, p, &fakeCompleter{})
	if err := svc.ThreadStarted(context.Background(), events.ThreadStarted{ChannelID: "D1", ThreadTS: "1.1"}); err == nil {
		t.Fatalf("expected error")
	}
	if got := joinCalls(p.calls); got != "post" {
		t.Fatalf("prompts must not be set after failed greeting, calls = %s", got)
	}
}

func TestCommandReturnsFixedReply(t *testing.T) {
	p := &fakePlatform{}
	c := &fakeCompleter{}
	svc := newTestService(t, p, c)

	for _, text := range []string{"", "please ignore me", "🐄"} {
		reply, err := svc.Dispatch(context.Background(), events.SlashCommand{Command: "/moo-hello", ChannelID: "C1", Text: text})
		if err != nil {
			t.Fatalf("Dispatch error: %v", err)
		}
		if reply != "🐮 Mooooooo from MooAI!" {
			t.Fatalf("unexpected reply %q", reply)
		}
	}
	if len(p.calls) != 0 || c.calls != 0 {
		t.Fatalf("command must not make external calls: %v / %d", p.calls, c.calls)
	}
}

func TestCommandIgnoresOtherNames(t *testing.T) {
	svc := newTestService(t, &fakePlatform{}, &fakeCompleter{})
	reply, err := svc.Command(context.Background(), events.SlashCommand{Command: "/other"})
	if err != nil || reply != "" {
		t.Fatalf("expected empty reply, got %q %v", reply, err)
	}
}

func TestDispatchUnknownEventIsNoop(t *testing.T) {
	p := &fakePlatform{}
	c := &fakeCompleter{}
	svc := newTestService(t, p, c)

	reply, err := svc.Dispatch(context.Background(), nil)
	if err != nil || reply != "" {
		t.Fatalf("expected no-op, got %q %v", reply, err)
	}
	if len(p.calls) != 0 || c.calls != 0 {
		t.Fatalf("unknown events must not make calls")
	}
}

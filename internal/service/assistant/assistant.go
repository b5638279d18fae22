package assistant

import (
	"context"
	"fmt"
	"log/slog"

	"mooai/internal/config"
	"mooai/internal/events"
	"mooai/internal/models"
)

// Platform is the subset of the Slack Web API the handlers call.
type Platform interface {
	PostMessage(ctx context.Context, channelID, threadTS, text string) (string, error)
	SetStatus(ctx context.Context, channelID, threadTS, status string) error
	SetSuggestedPrompts(ctx context.Context, channelID, threadTS, title string, prompts []config.SuggestedPrompt) error
	SetTitle(ctx context.Context, channelID, threadTS, title string) error
	FetchReplies(ctx context.Context, channelID, oldest, latest string, limit int) ([]models.Message, error)
}

// Completer produces a reply for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt models.Prompt) (string, error)
}

// Service reacts to platform events. It keeps no state between requests.
type Service struct {
	platform     Platform
	completer    Completer
	cfg          config.AssistantConfig
	historyLimit int
	log          *slog.Logger
}

func NewService(platform Platform, completer Completer, cfg *config.Config, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		platform:     platform,
		completer:    completer,
		cfg:          cfg.Assistant,
		historyLimit: cfg.BasicConfig.HistoryLimit,
		log:          log,
	}
}

// Dispatch runs the handler for ev. The returned text is only non-empty for
// slash commands, whose reply goes back in the HTTP response. Events the
// assistant does not know are ignored.
func (s *Service) Dispatch(ctx context.Context, ev events.Event) (string, error) {
	switch e := ev.(type) {
	case events.ThreadStarted:
		return "", s.ThreadStarted(ctx, e)
	case events.UserMessage:
		return "", s.UserMessage(ctx, e)
	case events.SlashCommand:
		return s.Command(ctx, e)
	default:
		return "", nil
	}
}

// ThreadStarted greets the user and offers the configured prompts.
func (s *Service) ThreadStarted(ctx context.Context, ev events.ThreadStarted) error {
	if _, err := s.platform.PostMessage(ctx, ev.ChannelID, ev.ThreadTS, s.cfg.Greeting); err != nil {
		return fmt.Errorf("greet thread %s: %w", ev.ThreadTS, err)
	}
	if len(s.cfg.SuggestedPrompts) == 0 {
		return nil
	}
	if err := s.platform.SetSuggestedPrompts(ctx, ev.ChannelID, ev.ThreadTS, s.cfg.SuggestedPromptsTitle, s.cfg.SuggestedPrompts); err != nil {
		return fmt.Errorf("suggest prompts for thread %s: %w", ev.ThreadTS, err)
	}
	return nil
}

// UserMessage answers a message. Every step must succeed before the next one
// runs; nothing is retried.
func (s *Service) UserMessage(ctx context.Context, ev events.UserMessage) error {
	root := ev.RootTS()
	if err := s.platform.SetStatus(ctx, ev.ChannelID, root, s.cfg.Status); err != nil {
		return fmt.Errorf("set typing status: %w", err)
	}

	thread, err := s.history(ctx, ev)
	if err != nil {
		return err
	}
	transcript := BuildTranscript(s.cfg.SystemInstruction, thread.Messages)
	s.log.Debug("thread transcript",
		"channel", ev.ChannelID,
		"thread_ts", root,
		"messages", len(thread.Messages),
		"transcript", transcript,
	)

	reply, err := s.completer.Complete(ctx, BuildPrompt(s.cfg.SystemInstruction, ev.Text))
	if err != nil {
		return fmt.Errorf("complete message %s: %w", ev.TS, err)
	}

	if err := s.platform.SetTitle(ctx, ev.ChannelID, root, reply); err != nil {
		return fmt.Errorf("set thread title: %w", err)
	}
	if _, err := s.platform.PostMessage(ctx, ev.ChannelID, root, reply); err != nil {
		return fmt.Errorf("post reply: %w", err)
	}
	return nil
}

// Command answers the configured slash command with its fixed reply. Other
// commands are ignored.
func (s *Service) Command(_ context.Context, cmd events.SlashCommand) (string, error) {
	if cmd.Command != s.cfg.CommandName {
		s.log.Debug("ignoring unknown command", "command", cmd.Command)
		return "", nil
	}
	return s.cfg.CommandReply, nil
}

// Package slack wraps the Slack Web API calls the assistant makes.
package slack

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	slackgo "github.com/slack-go/slack"

	"mooai/internal/config"
	"mooai/internal/models"
)

// Client talks to the Web API with the bot token.
type Client struct {
	api *slackgo.Client
	log *slog.Logger
}

// New builds a client from the slack section of the config. APIURL, when set,
// replaces the public endpoint and must end with a slash.
func New(cfg config.SlackConfig, httpClient *http.Client, log *slog.Logger) *Client {
	opts := []slackgo.Option{}
	if cfg.APIURL != "" {
		apiURL := cfg.APIURL
		if !strings.HasSuffix(apiURL, "/") {
			apiURL += "/"
		}
		opts = append(opts, slackgo.OptionAPIURL(apiURL))
	}
	if httpClient != nil {
		opts = append(opts, slackgo.OptionHTTPClient(httpClient))
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{api: slackgo.New(cfg.BotToken, opts...), log: log}
}

// PostMessage posts text into the thread rooted at threadTS and returns the
// timestamp of the new message.
func (c *Client) PostMessage(ctx context.Context, channelID, threadTS, text string) (string, error) {
	opts := []slackgo.MsgOption{slackgo.MsgOptionText(text, false)}
	if threadTS != "" {
		opts = append(opts, slackgo.MsgOptionTS(threadTS))
	}
	_, ts, err := c.api.PostMessageContext(ctx, channelID, opts...)
	if err != nil {
		return "", fmt.Errorf("post message: %w", err)
	}
	return ts, nil
}

func (c *Client) SetStatus(ctx context.Context, channelID, threadTS, status string) error {
	err := c.api.SetAssistantThreadsStatusContext(ctx, slackgo.AssistantThreadsSetStatusParameters{
		ChannelID: channelID,
		ThreadTS:  threadTS,
		Status:    status,
	})
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	return nil
}

func (c *Client) SetSuggestedPrompts(ctx context.Context, channelID, threadTS, title string, prompts []config.SuggestedPrompt) error {
	params := slackgo.AssistantThreadsSetSuggestedPromptsParameters{
		ChannelID: channelID,
		ThreadTS:  threadTS,
		Title:     title,
		Prompts:   make([]slackgo.AssistantThreadsPrompt, 0, len(prompts)),
	}
	for _, p := range prompts {
		params.Prompts = append(params.Prompts, slackgo.AssistantThreadsPrompt{Title: p.Title, Message: p.Message})
	}
	if err := c.api.SetAssistantThreadsSuggestedPromptsContext(ctx, params); err != nil {
		return fmt.Errorf("set suggested prompts: %w", err)
	}
	return nil
}

func (c *Client) SetTitle(ctx context.Context, channelID, threadTS, title string) error {
	err := c.api.SetAssistantThreadsTitleContext(ctx, slackgo.AssistantThreadsSetTitleParameters{
		ChannelID: channelID,
		ThreadTS:  threadTS,
		Title:     title,
	})
	if err != nil {
		return fmt.Errorf("set title: %w", err)
	}
	return nil
}

// FetchReplies returns up to limit messages of the thread rooted at oldest whose
// timestamps fall in [oldest, latest]. The platform order is kept as is.
func (c *Client) FetchReplies(ctx context.Context, channelID, oldest, latest string, limit int) ([]models.Message, error) {
	var (
		out    []models.Message
		cursor string
	)
	for {
		params := &slackgo.GetConversationRepliesParameters{
			ChannelID: channelID,
			Timestamp: oldest,
			Oldest:    oldest,
			Latest:    latest,
			Inclusive: true,
			Limit:     limit,
			Cursor:    cursor,
		}
		msgs, hasMore, next, err := c.api.GetConversationRepliesContext(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("fetch replies: %w", err)
		}
		for _, m := range msgs {
			out = append(out, models.Message{
				TS:     m.Timestamp,
				Role:   models.RoleFor(m.BotID),
				Text:   m.Text,
				UserID: m.User,
				BotID:  m.BotID,
			})
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}
		if !hasMore || next == "" {
			break
		}
		cursor = next
		c.log.Debug("fetching next replies page", "channel", channelID, "count", len(out))
	}
	return out, nil
}

package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/tidwall/gjson"
)

var ErrMalformed = errors.New("malformed event payload")

// Envelope is the outer Events API request. Event is nil when the payload
// carries something the assistant does not handle.
type Envelope struct {
	Type      string
	Challenge string
	EventID   string
	TeamID    string
	InnerType string
	Event     Event
}

type assistantThreadStarted struct {
	Type            string `json:"type"`
	AssistantThread struct {
		UserID    string `json:"user_id"`
		ChannelID string `json:"channel_id"`
		ThreadTS  string `json:"thread_ts"`
		Context   struct {
			ChannelID string `json:"channel_id"`
			TeamID    string `json:"team_id"`
		} `json:"context"`
	} `json:"assistant_thread"`
}

// Parse decodes an Events API body. Unknown outer or inner types yield an
// envelope without an Event rather than an error.
func Parse(body []byte) (*Envelope, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrMalformed
	}
	env := &Envelope{Type: gjson.GetBytes(body, "type").String()}

	switch env.Type {
	case slackevents.URLVerification:
		var v slackevents.EventsAPIURLVerificationEvent
		if err := json.Unmarshal(body, &v); err != nil {
			return nil, fmt.Errorf("decode url verification: %w", err)
		}
		env.Challenge = v.Challenge
		return env, nil
	case slackevents.CallbackEvent:
		var cb slackevents.EventsAPICallbackEvent
		if err := json.Unmarshal(body, &cb); err != nil {
			return nil, fmt.Errorf("decode event callback: %w", err)
		}
		if cb.InnerEvent == nil {
			return nil, ErrMalformed
		}
		env.EventID = cb.EventID
		env.TeamID = cb.TeamID
		inner := []byte(*cb.InnerEvent)
		env.InnerType = gjson.GetBytes(inner, "type").String()
		ev, err := decodeInner(env.InnerType, inner)
		if err != nil {
			return nil, err
		}
		env.Event = ev
		return env, nil
	default:
		return env, nil
	}
}

func decodeInner(typ string, raw []byte) (Event, error) {
	switch typ {
	case KindThreadStarted:
		var ev assistantThreadStarted
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", typ, err)
		}
		t := ev.AssistantThread
		return ThreadStarted{
			ChannelID:        t.ChannelID,
			ThreadTS:         t.ThreadTS,
			UserID:           t.UserID,
			ContextChannelID: t.Context.ChannelID,
		}, nil
	case KindUserMessage:
		var msg slackevents.MessageEvent
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", typ, err)
		}
		// Edits, joins and our own replies come back as messages too.
		if msg.SubType != "" || msg.BotID != "" {
			return nil, nil
		}
		return UserMessage{
			ChannelID: msg.Channel,
			TS:        msg.TimeStamp,
			ThreadTS:  msg.ThreadTimeStamp,
			UserID:    msg.User,
			Text:      msg.Text,
		}, nil
	default:
		return nil, nil
	}
}

// ParseCommand reads a form-encoded slash command from r.
func ParseCommand(r *http.Request) (SlashCommand, error) {
	cmd, err := slack.SlashCommandParse(r)
	if err != nil {
		return SlashCommand{}, fmt.Errorf("parse slash command: %w", err)
	}
	return SlashCommand{
		Command:   cmd.Command,
		ChannelID: cmd.ChannelID,
		UserID:    cmd.UserID,
		Text:      cmd.Text,
		TriggerID: cmd.TriggerID,
	}, nil
}

// Package events turns raw webhook payloads into the small set of events the
// assistant understands.
package events

// Kinds reported by Event.Kind and used as metric and ledger labels.
const (
	KindThreadStarted = "assistant_thread_started"
	KindUserMessage   = "message"
	KindSlashCommand  = "slash_command"
)

// Event is one of ThreadStarted, UserMessage or SlashCommand.
type Event interface {
	Kind() string
	Channel() string
}

// ThreadStarted fires when a user opens a new assistant thread.
type ThreadStarted struct {
	ChannelID string
	ThreadTS  string
	UserID    string
	// Context is the channel the user was viewing when the thread opened, if any.
	ContextChannelID string
}

func (ThreadStarted) Kind() string      { return KindThreadStarted }
func (e ThreadStarted) Channel() string { return e.ChannelID }

// UserMessage is a plain message written by a human inside a thread.
type UserMessage struct {
	ChannelID string
	TS        string
	ThreadTS  string
	UserID    string
	Text      string
}

func (UserMessage) Kind() string      { return KindUserMessage }
func (e UserMessage) Channel() string { return e.ChannelID }

// RootTS returns the timestamp of the thread root, which is the message itself
// for top-level messages.
func (e UserMessage) RootTS() string {
	if e.ThreadTS != "" {
		return e.ThreadTS
	}
	return e.TS
}

type SlashCommand struct {
	Command   string
	ChannelID string
	UserID    string
	Text      string
	TriggerID string
}

func (SlashCommand) Kind() string      { return KindSlashCommand }
func (e SlashCommand) Channel() string { return e.ChannelID }

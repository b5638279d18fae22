package assistant

import (
	"mooai/internal/models"
)

// BuildTranscript lays out the conversation the way a chat model would see it:
// the system instruction first, then each message with its role.
func BuildTranscript(system string, msgs []models.Message) []models.Message {
	out := make([]models.Message, 0, len(msgs)+1)
	out = append(out, models.Message{Role: models.RoleSystem, Text: system})
	for _, m := range msgs {
		out = append(out, models.Message{
			TS:   m.TS,
			Role: models.RoleFor(m.BotID),
			Text: m.Text,
		})
	}
	return out
}

// BuildPrompt only forwards the text of the current message.
func BuildPrompt(system, text string) models.Prompt {
	return models.Prompt{System: system, Instruction: text}
}

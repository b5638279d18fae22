package models

import (
	"strconv"
	"strings"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one entry of a thread as returned by the platform. TS is both the
// ordering key and the identity of the message.
type Message struct {
	TS     string `json:"ts"`
	Role   Role   `json:"role"`
	Text   string `json:"text"`
	UserID string `json:"user_id,omitempty"`
	BotID  string `json:"bot_id,omitempty"`
}

// RoleFor classifies a platform message: anything carrying a bot id was
// written by an assistant.
func RoleFor(botID string) Role {
	if botID != "" {
		return RoleAssistant
	}
	return RoleUser
}

// Prompt is what gets sent to the completion service.
type Prompt struct {
	System      string
	Instruction string
}

// CompareTS orders platform timestamps ("1712345678.000200") numerically.
// Values that do not parse sort after every valid timestamp.
func CompareTS(a, b string) int {
	as, af, aok := splitTS(a)
	bs, bf, bok := splitTS(b)
	switch {
	case !aok && !bok:
		return strings.Compare(a, b)
	case !aok:
		return 1
	case !bok:
		return -1
	}
	if as != bs {
		if as < bs {
			return -1
		}
		return 1
	}
	if af != bf {
		if af < bf {
			return -1
		}
		return 1
	}
	return 0
}

func splitTS(ts string) (int64, int64, bool) {
	secPart, fracPart, _ := strings.Cut(strings.TrimSpace(ts), ".")
	if secPart == "" {
		return 0, 0, false
	}
	sec, err := strconv.ParseInt(secPart, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	if len(fracPart) > 6 {
		fracPart = fracPart[:6]
	}
	if fracPart == "" {
		return sec, 0, true
	}
	fracPart += strings.Repeat("0", 6-len(fracPart))
	frac, err := strconv.ParseInt(fracPart, 10, 64)
	if err != nil || frac < 0 {
		return 0, 0, false
	}
	return sec, frac, true
}

package models

import "sort"

// Thread groups the messages sharing a root timestamp. It is rebuilt from the
// platform on every request and never stored.
type Thread struct {
	ChannelID string
	RootTS    string
	Messages  []Message
}

// Sort orders the messages by ascending numeric timestamp.
func (t *Thread) Sort() {
	sort.SliceStable(t.Messages, func(i, j int) bool {
		return CompareTS(t.Messages[i].TS, t.Messages[j].TS) < 0
	})
}

package assistant

import (
	"context"
	"fmt"

	"mooai/internal/events"
	"mooai/internal/models"
)

// history loads the thread up to and including the current message, ordered
// by timestamp.
func (s *Service) history(ctx context.Context, ev events.UserMessage) (*models.Thread, error) {
	root := ev.RootTS()
	msgs, err := s.platform.FetchReplies(ctx, ev.ChannelID, root, ev.TS, s.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch thread %s: %w", root, err)
	}
	thread := &models.Thread{ChannelID: ev.ChannelID, RootTS: root, Messages: msgs}
	thread.Sort()
	return thread, nil
}

package chatapi

import (
	"context"
	"fmt"
	"net/http"
)

// Session event names pushed to a user's live clients.
const (
	EventChatNew    = "chat:new"
	EventChatUpdate = "chat:update"
)

// chatEventInfo is the trimmed chat view carried in a session event.
type chatEventInfo struct {
	ID        string                 `json:"id"`
	Title     string                 `json:"title"`
	UpdatedAt int64                  `json:"updated_at"`
	CreatedAt int64                  `json:"created_at"`
	Archived  bool                   `json:"archived"`
	Pinned    bool                   `json:"pinned"`
	Meta      map[string]interface{} `json:"meta"`
}

type chatEventBody struct {
	UserID string        `json:"user_id"`
	Event  string        `json:"event"`
	Chat   chatEventInfo `json:"chat"`
}

// SendChatEvent pushes a chat event to every live session of userID. Callers
// treat this as best-effort; failures never affect task outcomes.
func (c *Client) SendChatEvent(ctx context.Context, userID, event string, chat *Chat) error {
	body := chatEventBody{
		UserID: userID,
		Event:  event,
		Chat: chatEventInfo{
			ID:        chat.ID,
			Title:     chat.Title,
			UpdatedAt: chat.UpdatedAt,
			CreatedAt: chat.CreatedAt,
			Archived:  chat.Archived,
			Pinned:    chat.Pinned,
			Meta:      chat.Meta,
		},
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/events", body, nil); err != nil {
		return fmt.Errorf("send %s event: %w", event, err)
	}
	return nil
}

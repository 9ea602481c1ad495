package chatapi

import (
	"context"
	"fmt"
	"net/http"
)

// chatForm wraps a payload the way the host's chat endpoints expect it.
type chatForm struct {
	Chat ChatPayload `json:"chat"`
}

// CreateChat creates a new chat owned by the authenticated user.
func (c *Client) CreateChat(ctx context.Context, payload ChatPayload) (*Chat, error) {
	var chat Chat
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/chats/new", chatForm{Chat: payload}, &chat); err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}
	return &chat, nil
}

// GetChat fetches a chat record including its full message history.
func (c *Client) GetChat(ctx context.Context, id string) (*Chat, error) {
	var chat Chat
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/chats/"+id, nil, &chat); err != nil {
		return nil, fmt.Errorf("get chat %s: %w", id, err)
	}
	return &chat, nil
}

// UpdateChat replaces a chat's payload and returns the updated record.
func (c *Client) UpdateChat(ctx context.Context, id string, payload ChatPayload) (*Chat, error) {
	var chat Chat
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/chats/"+id, chatForm{Chat: payload}, &chat); err != nil {
		return nil, fmt.Errorf("update chat %s: %w", id, err)
	}
	return &chat, nil
}

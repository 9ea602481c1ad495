package chatapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// CompletionMessage is the flat role/content pair the completion endpoint
// consumes and produces.
type CompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is a synchronous (non-streamed) completion call. ChatID
// and MessageID tell the backend which chat and which message the reply
// targets, so live clients can be updated in place. Params are generation
// parameters spliced into the body at the top level.
type CompletionRequest struct {
	Model     string
	ToolIDs   []string
	ChatID    string
	MessageID string
	Messages  []CompletionMessage
	Params    map[string]interface{}
}

// MarshalJSON flattens the request into the backend's wire shape. Fixed
// fields win over colliding param keys.
func (r CompletionRequest) MarshalJSON() ([]byte, error) {
	body := map[string]interface{}{
		"model":    r.Model,
		"stream":   false,
		"chat_id":  r.ChatID,
		"id":       r.MessageID,
		"messages": r.Messages,
	}
	if len(r.ToolIDs) > 0 {
		body["tool_ids"] = r.ToolIDs
	}
	for k, v := range r.Params {
		if _, taken := body[k]; !taken {
			body[k] = v
		}
	}
	return json.Marshal(body)
}

// CompletionChoice is one candidate reply.
type CompletionChoice struct {
	Message CompletionMessage `json:"message"`
}

// CompletionResponse is the backend's reply envelope.
type CompletionResponse struct {
	Choices []CompletionChoice `json:"choices"`
}

// ChatCompletion dispatches a completion request and returns the parsed
// response. The call blocks for the duration of one assistant turn; callers
// bound it with the context.
func (c *Client) ChatCompletion(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	var resp CompletionResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/chat/completions", req, &resp); err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	return &resp, nil
}

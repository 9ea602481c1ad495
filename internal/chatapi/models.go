package chatapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// ModelConfig is the canonical, resolved form of a registry entry. The wire
// format spreads tool ids across two accepted key spellings; resolution
// happens once here so callers never see the raw shape.
type ModelConfig struct {
	Name    string
	Params  map[string]interface{}
	ToolIDs []string
}

type modelResponse struct {
	ID     string                 `json:"id"`
	Params map[string]interface{} `json:"params"`
	Meta   modelMeta              `json:"meta"`
}

type modelMeta struct {
	ToolIDs      []string `json:"toolIds"`
	ToolIDsSnake []string `json:"tool_ids"`
}

// GetModel fetches a model's configuration from the host registry.
func (c *Client) GetModel(ctx context.Context, name string) (*ModelConfig, error) {
	var resp modelResponse
	path := "/api/v1/models/model?id=" + url.QueryEscape(name)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("get model %s: %w", name, err)
	}

	toolIDs := resp.Meta.ToolIDs
	if len(toolIDs) == 0 {
		toolIDs = resp.Meta.ToolIDsSnake
	}

	params := resp.Params
	if params == nil {
		params = map[string]interface{}{}
	}

	return &ModelConfig{
		Name:    name,
		Params:  params,
		ToolIDs: toolIDs,
	}, nil
}

package chatapi

import "time"

// Message is one entry in a chat's history map. The field names follow the
// host application's wire format.
type Message struct {
	ID          string      `json:"id"`
	ParentID    *string     `json:"parentId"`
	ChildrenIDs []string    `json:"childrenIds"`
	Role        string      `json:"role"`
	Content     string      `json:"content"`
	Timestamp   int64       `json:"timestamp"`
	Model       string      `json:"model,omitempty"`
	Models      []string    `json:"models,omitempty"`
	Done        bool        `json:"done"`
	Context     interface{} `json:"context"`
}

// History holds a chat's message map and the id of the newest message.
type History struct {
	Messages  map[string]Message `json:"messages"`
	CurrentID *string            `json:"currentId"`
}

// ChatMeta carries chat-level tags and the tool ids the chat was seeded with.
type ChatMeta struct {
	Tags    []string `json:"tags,omitempty"`
	ToolIDs []string `json:"toolIds,omitempty"`
}

// ChatPayload is the full mutable body of a chat record.
type ChatPayload struct {
	Title   string                 `json:"title"`
	Models  []string               `json:"models"`
	Params  map[string]interface{} `json:"params"`
	History History                `json:"history"`
	Meta    ChatMeta               `json:"meta"`
}

// Chat is the host's chat record wrapping a ChatPayload.
type Chat struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"user_id"`
	Title     string                 `json:"title"`
	Chat      ChatPayload            `json:"chat"`
	CreatedAt int64                  `json:"created_at"`
	UpdatedAt int64                  `json:"updated_at"`
	Archived  bool                   `json:"archived"`
	Pinned    bool                   `json:"pinned"`
	Meta      map[string]interface{} `json:"meta"`
}

// NewChatPayload builds an empty chat tagged as a scheduled-task conversation,
// seeded with the resolved model parameters and tool ids.
func NewChatPayload(title, model string, params map[string]interface{}, toolIDs []string) ChatPayload {
	if params == nil {
		params = map[string]interface{}{}
	}
	return ChatPayload{
		Title:  title,
		Models: []string{model},
		Params: params,
		History: History{
			Messages: map[string]Message{},
		},
		Meta: ChatMeta{
			Tags:    []string{"scheduled-task"},
			ToolIDs: toolIDs,
		},
	}
}

// AppendMessage links msg to the current tip of the history and makes it the
// new current message.
func (p *ChatPayload) AppendMessage(msg Message) {
	if p.History.Messages == nil {
		p.History.Messages = map[string]Message{}
	}
	if cur := p.History.CurrentID; cur != nil {
		if parent, ok := p.History.Messages[*cur]; ok {
			msg.ParentID = cur
			parent.ChildrenIDs = append(parent.ChildrenIDs, msg.ID)
			p.History.Messages[parent.ID] = parent
		}
	}
	if msg.ChildrenIDs == nil {
		msg.ChildrenIDs = []string{}
	}
	p.History.Messages[msg.ID] = msg
	id := msg.ID
	p.History.CurrentID = &id
}

// OrderedMessages walks the history chain from the current message back to
// the root and returns the messages oldest-first.
func (p *ChatPayload) OrderedMessages() []Message {
	var reversed []Message
	cur := p.History.CurrentID
	for cur != nil {
		msg, ok := p.History.Messages[*cur]
		if !ok {
			break
		}
		reversed = append(reversed, msg)
		cur = msg.ParentID
	}

	ordered := make([]Message, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		ordered = append(ordered, reversed[i])
	}
	return ordered
}

// UserMessage builds a user-role message carrying content.
func UserMessage(id, content, model string, at time.Time) Message {
	return Message{
		ID:          id,
		ChildrenIDs: []string{},
		Role:        "user",
		Content:     content,
		Timestamp:   at.Unix(),
		Model:       model,
		Models:      []string{model},
		Done:        true,
	}
}

// AssistantMessage builds an assistant-role message carrying content.
func AssistantMessage(id, content, model string, at time.Time) Message {
	m := UserMessage(id, content, model, at)
	m.Role = "assistant"
	return m
}

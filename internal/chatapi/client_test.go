package chatapi

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestClientSendsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(Chat{ID: "c1"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret-key", 5*time.Second, testLogger())
	_, err := client.GetChat(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret-key", gotAuth)
}

func TestCreateChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/chats/new", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var form struct {
			Chat ChatPayload `json:"chat"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&form))
		assert.Equal(t, "Test chat", form.Chat.Title)
		assert.Equal(t, []string{"scheduled-task"}, form.Chat.Meta.Tags)

		json.NewEncoder(w).Encode(Chat{ID: "chat-123", Title: form.Chat.Title, Chat: form.Chat})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "k", 5*time.Second, testLogger())
	payload := NewChatPayload("Test chat", "assistant", nil, nil)
	chat, err := client.CreateChat(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, "chat-123", chat.ID)
}

func TestUpdateChatNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "k", 5*time.Second, testLogger())
	_, err := client.UpdateChat(context.Background(), "c1", NewChatPayload("t", "m", nil, nil))
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
}

func TestGetModelCamelCaseToolIDs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/models/model", r.URL.Path)
		require.Equal(t, "my-model", r.URL.Query().Get("id"))
		w.Write([]byte(`{
			"id": "my-model",
			"params": {"temperature": 0.7, "system": "be brief"},
			"meta": {"toolIds": ["web-search", "calculator"]}
		}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "k", 5*time.Second, testLogger())
	cfg, err := client.GetModel(context.Background(), "my-model")
	require.NoError(t, err)
	assert.Equal(t, []string{"web-search", "calculator"}, cfg.ToolIDs)
	assert.Equal(t, 0.7, cfg.Params["temperature"])
}

func TestGetModelSnakeCaseToolIDs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": "m", "meta": {"tool_ids": ["memory"]}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "k", 5*time.Second, testLogger())
	cfg, err := client.GetModel(context.Background(), "m")
	require.NoError(t, err)
	assert.Equal(t, []string{"memory"}, cfg.ToolIDs)
	assert.NotNil(t, cfg.Params)
}

func TestChatCompletionRequestShape(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "done"}}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "k", 5*time.Second, testLogger())
	resp, err := client.ChatCompletion(context.Background(), CompletionRequest{
		Model:     "assistant",
		ToolIDs:   []string{"web-search"},
		ChatID:    "chat-1",
		MessageID: "msg-1",
		Messages:  []CompletionMessage{{Role: "user", Content: "hello"}},
		Params:    map[string]interface{}{"temperature": 0.2, "model": "must-not-override"},
	})
	require.NoError(t, err)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "done", resp.Choices[0].Message.Content)

	assert.Equal(t, "assistant", body["model"], "fixed fields win over param collisions")
	assert.Equal(t, false, body["stream"])
	assert.Equal(t, "chat-1", body["chat_id"])
	assert.Equal(t, "msg-1", body["id"])
	assert.Equal(t, []interface{}{"web-search"}, body["tool_ids"])
	assert.Equal(t, 0.2, body["temperature"])
	msgs, ok := body["messages"].([]interface{})
	require.True(t, ok)
	require.Len(t, msgs, 1)
}

func TestSendChatEvent(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/events", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "k", 5*time.Second, testLogger())
	chat := &Chat{ID: "c9", Title: "T", CreatedAt: 100, UpdatedAt: 200}
	err := client.SendChatEvent(context.Background(), "user-1", EventChatNew, chat)
	require.NoError(t, err)

	assert.Equal(t, "user-1", body["user_id"])
	assert.Equal(t, "chat:new", body["event"])
	chatBody, ok := body["chat"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "c9", chatBody["id"])
	assert.Equal(t, "T", chatBody["title"])
}

func TestAppendMessageLinksHistory(t *testing.T) {
	payload := NewChatPayload("t", "m", nil, nil)

	first := UserMessage("m1", "hello", "m", time.Unix(1000, 0))
	payload.AppendMessage(first)
	require.NotNil(t, payload.History.CurrentID)
	assert.Equal(t, "m1", *payload.History.CurrentID)

	second := AssistantMessage("m2", "hi there", "m", time.Unix(1001, 0))
	payload.AppendMessage(second)
	assert.Equal(t, "m2", *payload.History.CurrentID)

	parent := payload.History.Messages["m1"]
	assert.Equal(t, []string{"m2"}, parent.ChildrenIDs)
	child := payload.History.Messages["m2"]
	require.NotNil(t, child.ParentID)
	assert.Equal(t, "m1", *child.ParentID)

	ordered := payload.OrderedMessages()
	require.Len(t, ordered, 2)
	assert.Equal(t, "hello", ordered[0].Content)
	assert.Equal(t, "hi there", ordered[1].Content)
	assert.Equal(t, "user", ordered[0].Role)
	assert.Equal(t, "assistant", ordered[1].Role)
}

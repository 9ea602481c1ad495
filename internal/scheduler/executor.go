package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"tasksched-go/internal/chatapi"
	"tasksched-go/internal/metrics"
	"tasksched-go/internal/notify"
	"tasksched-go/internal/storage"
)

// promptMarker prefixes the seeded user message so the backend and the chat
// transcript both show the turn came from the scheduler, not a live user.
const promptMarker = "[Scheduled Task]"

var errNoChoices = errors.New("no choices returned")

// ConversationStore creates and updates chats in the assistant host.
type ConversationStore interface {
	CreateChat(ctx context.Context, payload chatapi.ChatPayload) (*chatapi.Chat, error)
	UpdateChat(ctx context.Context, id string, payload chatapi.ChatPayload) (*chatapi.Chat, error)
}

// ModelRegistry resolves model configuration (params, tool ids).
type ModelRegistry interface {
	GetModel(ctx context.Context, name string) (*chatapi.ModelConfig, error)
}

// ResponseBackend produces the assistant's reply for a seeded chat.
type ResponseBackend interface {
	ChatCompletion(ctx context.Context, req chatapi.CompletionRequest) (*chatapi.CompletionResponse, error)
}

// EventSender pushes session events to a user's live clients.
type EventSender interface {
	SendChatEvent(ctx context.Context, userID, event string, chat *chatapi.Chat) error
}

// ExecutionError is a failure in the essential steps of a task run. It counts
// against the task's fail threshold.
type ExecutionError struct {
	Step string
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// DispatchError is a failure in the best-effort reply round-trip. The chat
// and its prompt already exist, so it is logged and never counted against the
// task.
type DispatchError struct {
	Step string
	Err  error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// Executor runs one task end to end: it creates a conversation, seeds the
// task prompt, asks the response backend for a reply, and persists the reply
// back into the conversation. Only the essential steps (create, seed) surface
// errors; the reply round-trip and all session events are best-effort.
type Executor struct {
	chats      ConversationStore
	models     ModelRegistry
	backend    ResponseBackend
	events     EventSender
	dispatcher *notify.Dispatcher
	model      string
	loc        *time.Location
	logger     *log.Logger

	now func() time.Time // override in tests
}

// NewExecutor wires an executor against the assistant host client. model is
// the default model tasks run on; loc is the timezone chat titles are stamped
// in.
func NewExecutor(chats ConversationStore, models ModelRegistry, backend ResponseBackend, events EventSender, dispatcher *notify.Dispatcher, model string, loc *time.Location, logger *log.Logger) *Executor {
	return &Executor{
		chats:      chats,
		models:     models,
		backend:    backend,
		events:     events,
		dispatcher: dispatcher,
		model:      model,
		loc:        loc,
		logger:     logger,
		now:        time.Now,
	}
}

// Execute runs a single task. A returned *ExecutionError means the run failed
// before the conversation was fully seeded and should count against the
// task's fail threshold. A nil return means the conversation exists with the
// prompt in it; whatever happened to the reply afterwards has already been
// logged.
func (e *Executor) Execute(ctx context.Context, task *storage.ScheduledTask) error {
	metrics.TasksInFlight.Inc()
	defer metrics.TasksInFlight.Dec()

	now := e.now()

	// Resolve the model configuration; a missing or broken registry entry
	// degrades to an unconfigured model rather than failing the task.
	model, err := e.models.GetModel(ctx, e.model)
	if err != nil {
		e.logger.Printf("task %d: model %q not resolvable, using defaults: %v", task.ID, e.model, err)
		model = &chatapi.ModelConfig{Name: e.model, Params: map[string]interface{}{}}
	}

	title := fmt.Sprintf("📅 %s - %s", task.TaskName, now.In(e.loc).Format("2006-01-02 15:04"))
	payload := chatapi.NewChatPayload(title, model.Name, model.Params, model.ToolIDs)

	chat, err := e.chats.CreateChat(ctx, payload)
	if err != nil {
		return &ExecutionError{Step: "create chat", Err: err}
	}

	userMsg := chatapi.UserMessage(
		uuid.NewString(),
		promptMarker+"\n"+task.Prompt,
		model.Name,
		now,
	)
	payload = chat.Chat
	payload.AppendMessage(userMsg)

	chat, err = e.chats.UpdateChat(ctx, chat.ID, payload)
	if err != nil {
		return &ExecutionError{Step: "seed prompt", Err: err}
	}

	e.sendEvent(task.UserID, chatapi.EventChatNew, chat)

	// Everything past this point is best-effort: the conversation exists and
	// carries the prompt, which is what the run guarantees.
	if derr := e.requestReply(ctx, task, chat, model, userMsg.ID); derr != nil {
		e.logger.Printf("task %d: reply dispatch for chat %s: %v", task.ID, chat.ID, derr)
	}
	return nil
}

// requestReply asks the backend for the assistant turn and persists it into
// the chat. Its *DispatchError is informational only.
func (e *Executor) requestReply(ctx context.Context, task *storage.ScheduledTask, chat *chatapi.Chat, model *chatapi.ModelConfig, userMsgID string) *DispatchError {
	payload := chat.Chat

	ordered := payload.OrderedMessages()
	messages := make([]chatapi.CompletionMessage, 0, len(ordered))
	for _, m := range ordered {
		messages = append(messages, chatapi.CompletionMessage{Role: m.Role, Content: m.Content})
	}

	started := e.now()
	resp, err := e.backend.ChatCompletion(ctx, chatapi.CompletionRequest{
		Model:     model.Name,
		ToolIDs:   model.ToolIDs,
		ChatID:    chat.ID,
		MessageID: userMsgID,
		Messages:  messages,
		Params:    model.Params,
	})
	metrics.DispatchDuration.Observe(e.now().Sub(started).Seconds())
	if err != nil {
		return &DispatchError{Step: "completion failed", Err: err}
	}
	if len(resp.Choices) == 0 {
		return &DispatchError{Step: "completion", Err: errNoChoices}
	}

	reply := chatapi.AssistantMessage(uuid.NewString(), resp.Choices[0].Message.Content, model.Name, e.now())
	payload.AppendMessage(reply)

	updated, err := e.chats.UpdateChat(ctx, chat.ID, payload)
	if err != nil {
		return &DispatchError{Step: "persist reply", Err: err}
	}

	e.sendEvent(task.UserID, chatapi.EventChatUpdate, updated)
	return nil
}

// sendEvent pushes a session event through the best-effort dispatcher.
func (e *Executor) sendEvent(userID, event string, chat *chatapi.Chat) {
	e.dispatcher.Submit(notify.Job{
		Name: fmt.Sprintf("%s %s", event, chat.ID),
		Run: func(ctx context.Context) error {
			return e.events.SendChatEvent(ctx, userID, event, chat)
		},
	})
}

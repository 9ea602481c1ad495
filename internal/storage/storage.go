package storage

import (
	"context"
	"errors"
	"time"

	"tasksched-go/internal/schedule"
)

var (
	// ErrTaskNotFound is returned when an operation references a task id that
	// does not exist.
	ErrTaskNotFound = errors.New("task not found")
)

// ScheduledTask is a persisted automation task. NextExecutionAt is the sole
// scheduling key: the poll loop selects on it and nothing else.
type ScheduledTask struct {
	ID                  int64
	UserID              string
	TaskName            string
	NotificationSummary string
	Prompt              string
	Frequency           schedule.Frequency
	ScheduledTime       *string    // "HH:MM", daily and weekly tasks
	ScheduledDatetime   *time.Time // absolute instant, once tasks
	Weekday             *int       // 0-6, Monday=0, weekly tasks
	NextExecutionAt     *time.Time
	LastExecutedAt      *time.Time
	ExecutionCount      int
	FailCount           int
	LastError           *string
	IsActive            bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// TaskFilter restricts ListTasks results.
type TaskFilter struct {
	// ActiveOnly selects only active tasks, ordered soonest-due first.
	// Otherwise all tasks are returned most-recently-due first.
	ActiveOnly bool
	// Limit bounds the result set; zero or negative means no limit.
	Limit int
}

// TaskStore is the persistence interface for scheduled tasks. Mutations that
// touch counters are single atomic statements keyed by task id, so the
// definition API and the poll loop can write concurrently without losing
// updates.
type TaskStore interface {
	CreateTask(ctx context.Context, t *ScheduledTask) error
	GetTask(ctx context.Context, id int64) (*ScheduledTask, error)
	ListTasks(ctx context.Context, f TaskFilter) ([]*ScheduledTask, error)

	// DueTasks returns active tasks with next_execution_at <= now, ordered
	// earliest-due first.
	DueTasks(ctx context.Context, now time.Time) ([]*ScheduledTask, error)

	DeleteTask(ctx context.Context, id int64) error

	// ToggleTask flips is_active and stamps updated_at, returning the new state.
	ToggleTask(ctx context.Context, id int64) (bool, error)

	// MarkExecuted records a successful run: increments execution_count, resets
	// fail_count, sets last_executed_at, and either reschedules to next or
	// deactivates the task when next is nil (the one-shot case).
	MarkExecuted(ctx context.Context, id int64, executedAt time.Time, next *time.Time) error

	// RecordFailure increments fail_count, records the error message, and
	// deactivates the task once the new count reaches threshold. Returns the
	// new fail count.
	RecordFailure(ctx context.Context, id int64, errMsg string, threshold int) (int, error)
}

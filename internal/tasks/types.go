package tasks

import (
	"fmt"
	"time"

	"tasksched-go/internal/schedule"
)

// SummaryMaxLen caps notification_summary; longer values are truncated with
// an ellipsis so they stay usable as toast notifications.
const SummaryMaxLen = 140

// CreateTaskRequest carries everything needed to define a task. Time, Date
// and Weekday are conditionally required depending on Frequency.
type CreateTaskRequest struct {
	UserID              string `validate:"required"`
	TaskName            string `validate:"required"`
	NotificationSummary string `validate:"required"`
	Prompt              string `validate:"required"`
	Frequency           string `validate:"required"`
	Time                string // "HH:MM", daily/weekly (optional for once)
	Date                string // "YYYY-MM-DD", once only
	Weekday             string // weekday name, weekly only
}

// CreateResult describes a successfully created task.
type CreateResult struct {
	ID            int64
	TaskName      string
	Summary       string
	Schedule      string
	NextExecution time.Time
}

// TaskDetail is the full view of a single task, with the weekday rendered as
// a name and instants converted to the deployment timezone.
type TaskDetail struct {
	ID                  int64
	TaskName            string
	NotificationSummary string
	Prompt              string
	Frequency           schedule.Frequency
	ScheduledTime       string
	Weekday             string
	Schedule            string
	NextExecutionAt     *time.Time
	LastExecutedAt      *time.Time
	ExecutionCount      int
	FailCount           int
	LastError           string
	IsActive            bool
	CreatedAt           time.Time
}

// ValidationError is a task definition rejected before any store write.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func validationf(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

package tasks

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"tasksched-go/internal/schedule"
	"tasksched-go/internal/storage"
)

const defaultOnceTime = "09:00"

// Service is the task definition API: it validates incoming definitions,
// computes the first execution instant and persists tasks. A wake callback
// lets the scheduler loop re-poll immediately after any change instead of
// waiting out its current sleep.
type Service struct {
	store    storage.TaskStore
	loc      *time.Location
	logger   *log.Logger
	validate *validator.Validate
	wake     func()

	now func() time.Time // override in tests
}

// NewService creates a Service operating in the given timezone. wake may be
// nil when nothing needs waking (tests, one-off tools).
func NewService(store storage.TaskStore, loc *time.Location, wake func(), logger *log.Logger) *Service {
	if wake == nil {
		wake = func() {}
	}
	return &Service{
		store:    store,
		loc:      loc,
		logger:   logger,
		validate: validator.New(),
		wake:     wake,
		now:      func() time.Time { return time.Now().In(loc) },
	}
}

// Create validates the request, computes the first execution time and stores
// the task. Invalid definitions are rejected with a *ValidationError before
// anything is written.
func (s *Service) Create(ctx context.Context, req CreateTaskRequest) (*CreateResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}

	summary := truncateSummary(req.NotificationSummary)
	if summary == "" {
		return nil, validationf("notification summary must not be blank")
	}

	freq, err := schedule.ParseFrequency(req.Frequency)
	if err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}

	now := s.now()
	task := &storage.ScheduledTask{
		UserID:              req.UserID,
		TaskName:            strings.TrimSpace(req.TaskName),
		NotificationSummary: summary,
		Prompt:              req.Prompt,
		Frequency:           freq,
		IsActive:            true,
	}

	var next time.Time
	switch freq {
	case schedule.Once:
		if req.Date == "" {
			return nil, validationf("one-shot tasks require a date")
		}
		at := req.Time
		if at == "" {
			at = defaultOnceTime
		}
		if _, _, err := schedule.ParseClock(at); err != nil {
			return nil, &ValidationError{Msg: err.Error()}
		}
		when, err := time.ParseInLocation("2006-01-02 15:04", req.Date+" "+at, s.loc)
		if err != nil {
			return nil, validationf("invalid date %q: expected YYYY-MM-DD", req.Date)
		}
		if !when.After(now) {
			return nil, validationf("scheduled time %s is in the past", when.Format("2006-01-02 15:04"))
		}
		next = when
		task.ScheduledDatetime = &next
		task.ScheduledTime = &at

	case schedule.Hourly:
		next = schedule.Next(freq, "", 0, now)

	case schedule.Daily:
		if req.Time == "" {
			return nil, validationf("daily tasks require a time of day")
		}
		if _, _, err := schedule.ParseClock(req.Time); err != nil {
			return nil, &ValidationError{Msg: err.Error()}
		}
		next = schedule.Next(freq, req.Time, 0, now)
		t := req.Time
		task.ScheduledTime = &t

	case schedule.Weekly:
		if req.Time == "" {
			return nil, validationf("weekly tasks require a time of day")
		}
		if _, _, err := schedule.ParseClock(req.Time); err != nil {
			return nil, &ValidationError{Msg: err.Error()}
		}
		if req.Weekday == "" {
			return nil, validationf("weekly tasks require a weekday")
		}
		wd, err := schedule.ParseWeekday(req.Weekday)
		if err != nil {
			return nil, &ValidationError{Msg: err.Error()}
		}
		next = schedule.Next(freq, req.Time, wd, now)
		t := req.Time
		task.ScheduledTime = &t
		task.Weekday = &wd
	}

	task.NextExecutionAt = &next
	if err := s.store.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	s.logger.Printf("task %d (%s) created, first run %s",
		task.ID, task.TaskName, next.In(s.loc).Format(time.RFC3339))
	s.wake()

	return &CreateResult{
		ID:            task.ID,
		TaskName:      task.TaskName,
		Summary:       summary,
		Schedule:      describeSchedule(task, s.loc),
		NextExecution: next.In(s.loc),
	}, nil
}

// List returns tasks for display. A non-positive limit defaults to 10; the
// store orders active tasks by next execution and inactive ones most recent
// first.
func (s *Service) List(ctx context.Context, activeOnly bool, limit int) ([]*storage.ScheduledTask, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.store.ListTasks(ctx, storage.TaskFilter{ActiveOnly: activeOnly, Limit: limit})
}

// Detail returns the full view of one task, rendered for the service's
// timezone.
func (s *Service) Detail(ctx context.Context, id int64) (*TaskDetail, error) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	d := &TaskDetail{
		ID:                  task.ID,
		TaskName:            task.TaskName,
		NotificationSummary: task.NotificationSummary,
		Prompt:              task.Prompt,
		Frequency:           task.Frequency,
		Schedule:            describeSchedule(task, s.loc),
		ExecutionCount:      task.ExecutionCount,
		FailCount:           task.FailCount,
		IsActive:            task.IsActive,
		CreatedAt:           task.CreatedAt.In(s.loc),
	}
	if task.ScheduledTime != nil {
		d.ScheduledTime = *task.ScheduledTime
	}
	if task.Weekday != nil {
		d.Weekday = schedule.WeekdayName(*task.Weekday)
	}
	if task.NextExecutionAt != nil {
		local := task.NextExecutionAt.In(s.loc)
		d.NextExecutionAt = &local
	}
	if task.LastExecutedAt != nil {
		local := task.LastExecutedAt.In(s.loc)
		d.LastExecutedAt = &local
	}
	if task.LastError != nil {
		d.LastError = *task.LastError
	}
	return d, nil
}

// Delete removes a task permanently.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteTask(ctx, id); err != nil {
		return err
	}
	s.logger.Printf("task %d deleted", id)
	s.wake()
	return nil
}

// Toggle flips a task's active flag and returns the new state.
func (s *Service) Toggle(ctx context.Context, id int64) (bool, error) {
	active, err := s.store.ToggleTask(ctx, id)
	if err != nil {
		return false, err
	}
	s.logger.Printf("task %d now active=%t", id, active)
	s.wake()
	return active, nil
}

// describeSchedule renders a task's schedule as a human-readable phrase.
func describeSchedule(task *storage.ScheduledTask, loc *time.Location) string {
	at := ""
	if task.ScheduledTime != nil {
		at = *task.ScheduledTime
	}
	switch task.Frequency {
	case schedule.Once:
		if task.ScheduledDatetime != nil {
			return "once at " + task.ScheduledDatetime.In(loc).Format("2006-01-02 15:04")
		}
		return "once"
	case schedule.Hourly:
		return "every hour"
	case schedule.Daily:
		return "daily at " + at
	case schedule.Weekly:
		day := ""
		if task.Weekday != nil {
			day = schedule.WeekdayName(*task.Weekday)
		}
		return fmt.Sprintf("every %s at %s", day, at)
	}
	return string(task.Frequency)
}

// truncateSummary trims and caps the summary at SummaryMaxLen runes,
// appending an ellipsis when anything was cut.
func truncateSummary(s string) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= SummaryMaxLen {
		return s
	}
	return strings.TrimSpace(string(runes[:SummaryMaxLen])) + "…"
}

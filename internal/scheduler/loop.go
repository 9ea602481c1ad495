package scheduler

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"tasksched-go/internal/metrics"
	"tasksched-go/internal/notify"
	"tasksched-go/internal/schedule"
	"tasksched-go/internal/storage"
)

// State is the loop's externally observable phase.
type State int32

const (
	StateIdle State = iota
	StatePolling
	StateDispatching
	StateSleeping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateDispatching:
		return "dispatching"
	case StateSleeping:
		return "sleeping"
	}
	return "unknown"
}

// bookkeepingTimeout bounds the store writes that follow a task run. They use
// a fresh context so a run outcome is always recorded, even during shutdown.
const bookkeepingTimeout = 10 * time.Second

// TaskRunner executes one due task.
type TaskRunner interface {
	Execute(ctx context.Context, task *storage.ScheduledTask) error
}

// Notifier announces a finished task to the owner.
type Notifier interface {
	SendTaskSummary(taskName, summary string) error
}

// Config tunes the poll loop.
type Config struct {
	// PollInterval is the sleep between successful poll cycles.
	PollInterval time.Duration
	// ErrorBackoff replaces PollInterval after a failed poll.
	ErrorBackoff time.Duration
	// DispatchTimeout bounds a single task execution.
	DispatchTimeout time.Duration
	// FailThreshold deactivates a task when its consecutive failures reach it.
	FailThreshold int
}

// Loop is the scheduler: it polls the store for due tasks, executes them
// sequentially, and records outcomes. A single goroutine owns the whole
// cycle, so tasks never race each other.
type Loop struct {
	store      storage.TaskStore
	runner     TaskRunner
	notifier   Notifier // nil disables announcements
	dispatcher *notify.Dispatcher
	loc        *time.Location
	cfg        Config
	logger     *log.Logger

	state  atomic.Int32
	wakeup chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	now func() time.Time // override in tests
}

// NewLoop builds a stopped loop. loc is the timezone recurring schedules are
// computed in.
func NewLoop(store storage.TaskStore, runner TaskRunner, notifier Notifier, dispatcher *notify.Dispatcher, loc *time.Location, cfg Config, logger *log.Logger) *Loop {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = time.Minute
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = 2 * time.Minute
	}
	if cfg.FailThreshold <= 0 {
		cfg.FailThreshold = 3
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Loop{
		store:      store,
		runner:     runner,
		notifier:   notifier,
		dispatcher: dispatcher,
		loc:        loc,
		cfg:        cfg,
		logger:     logger,
		wakeup:     make(chan struct{}, 1),
		ctx:        ctx,
		cancel:     cancel,
		now:        time.Now,
	}
}

// Start launches the poll loop goroutine.
func (l *Loop) Start() {
	l.wg.Add(1)
	go l.run()
	l.logger.Printf("scheduler started (poll every %s)", l.cfg.PollInterval)
}

// Stop cancels the loop and waits for the current cycle to finish.
func (l *Loop) Stop() {
	l.cancel()
	l.wg.Wait()
	l.logger.Printf("scheduler stopped")
}

// Wakeup asks the loop to poll immediately instead of sleeping out the
// current interval. Safe to call from any goroutine; redundant wakeups
// coalesce.
func (l *Loop) Wakeup() {
	select {
	case l.wakeup <- struct{}{}:
	default:
	}
}

// State reports the loop's current phase.
func (l *Loop) State() State {
	return State(l.state.Load())
}

func (l *Loop) setState(s State) {
	l.state.Store(int32(s))
}

func (l *Loop) run() {
	defer l.wg.Done()
	defer l.setState(StateIdle)

	for {
		if l.ctx.Err() != nil {
			return
		}

		interval := l.cfg.PollInterval
		l.setState(StatePolling)

		due, err := l.store.DueTasks(l.ctx, l.now())
		if err != nil {
			if l.ctx.Err() != nil {
				return
			}
			metrics.PollErrors.Inc()
			l.logger.Printf("poll failed, backing off %s: %v", l.cfg.ErrorBackoff, err)
			interval = l.cfg.ErrorBackoff
		} else {
			metrics.PollCycles.Inc()
			if len(due) > 0 {
				l.setState(StateDispatching)
				l.logger.Printf("%d task(s) due", len(due))
				for _, task := range due {
					if l.ctx.Err() != nil {
						return
					}
					l.runTask(task)
				}
			}
		}

		l.setState(StateSleeping)
		timer := time.NewTimer(interval)
		select {
		case <-l.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		case <-l.wakeup:
			timer.Stop()
		}
	}
}

// runTask executes one task and records its outcome. The execution context is
// detached from the loop context: Stop lets an in-flight run finish (bounded
// by the dispatch timeout) instead of aborting it, so a shutdown can never
// book a spurious failure against a healthy task. Outcome bookkeeping likewise
// uses a fresh context so the counters are written even when the loop context
// has just been cancelled.
func (l *Loop) runTask(task *storage.ScheduledTask) {
	l.logger.Printf("executing task %d (%s)", task.ID, task.TaskName)

	execCtx, cancel := context.WithTimeout(context.Background(), l.cfg.DispatchTimeout)
	err := l.runner.Execute(execCtx, task)
	cancel()

	bookCtx, cancelBook := context.WithTimeout(context.Background(), bookkeepingTimeout)
	defer cancelBook()

	if err != nil {
		metrics.TasksExecuted.WithLabelValues("failure").Inc()
		count, recErr := l.store.RecordFailure(bookCtx, task.ID, err.Error(), l.cfg.FailThreshold)
		if recErr != nil {
			l.logger.Printf("task %d: failed to record failure: %v", task.ID, recErr)
			return
		}
		if count >= l.cfg.FailThreshold {
			metrics.TasksDeactivated.Inc()
			l.logger.Printf("task %d (%s) deactivated after %d failures: %v", task.ID, task.TaskName, count, err)
			return
		}
		l.logger.Printf("task %d (%s) failed (%d/%d): %v", task.ID, task.TaskName, count, l.cfg.FailThreshold, err)
		return
	}

	executedAt := l.now()
	next := l.nextExecution(task, executedAt)
	if err := l.store.MarkExecuted(bookCtx, task.ID, executedAt, next); err != nil {
		l.logger.Printf("task %d: failed to record success: %v", task.ID, err)
	}

	metrics.TasksExecuted.WithLabelValues("success").Inc()
	if next != nil {
		l.logger.Printf("task %d (%s) done, next run %s", task.ID, task.TaskName, next.Format(time.RFC3339))
	} else {
		l.logger.Printf("task %d (%s) done, one-shot complete", task.ID, task.TaskName)
	}

	l.announce(task)
}

// nextExecution computes the follow-up run for a recurring task. One-shot
// tasks return nil, which MarkExecuted turns into deactivation.
func (l *Loop) nextExecution(task *storage.ScheduledTask, executedAt time.Time) *time.Time {
	if task.Frequency == schedule.Once {
		return nil
	}

	timeOfDay := ""
	if task.ScheduledTime != nil {
		timeOfDay = *task.ScheduledTime
	}
	weekday := -1
	if task.Weekday != nil {
		weekday = *task.Weekday
	}

	next := schedule.Next(task.Frequency, timeOfDay, weekday, executedAt.In(l.loc))
	return &next
}

// announce pushes the task's notification summary, best-effort.
func (l *Loop) announce(task *storage.ScheduledTask) {
	if l.notifier == nil || task.NotificationSummary == "" {
		return
	}
	name, summary := task.TaskName, task.NotificationSummary
	l.dispatcher.Submit(notify.Job{
		Name: "task summary " + name,
		Run: func(ctx context.Context) error {
			return l.notifier.SendTaskSummary(name, summary)
		},
	})
}

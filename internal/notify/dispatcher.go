package notify

import (
	"context"
	"log"
	"sync"
)

// Job is a best-effort side effect. Errors are logged and dropped; nothing a
// Job returns can influence the outcome of the work that submitted it.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Dispatcher runs best-effort side effects (session events, summary pushes)
// on a bounded queue so they can never block or fail the scheduler's control
// flow.
type Dispatcher struct {
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	workers int
	jobs    chan Job
	logger  *log.Logger
}

// NewDispatcher creates a Dispatcher with the given worker count and queue
// capacity.
func NewDispatcher(workers, queueCap int, logger *log.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueCap < 1 {
		queueCap = 16
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		ctx:     ctx,
		cancel:  cancel,
		workers: workers,
		jobs:    make(chan Job, queueCap),
		logger:  logger,
	}
}

// Start launches the worker goroutines.
func (d *Dispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.workerLoop()
	}
}

// Stop drains nothing: queued jobs still in the channel when workers observe
// cancellation are dropped. Best-effort work is not worth delaying shutdown.
func (d *Dispatcher) Stop() {
	d.cancel()
	d.wg.Wait()
}

// Submit enqueues a job without blocking. A full queue drops the job and
// reports false.
func (d *Dispatcher) Submit(job Job) bool {
	select {
	case d.jobs <- job:
		return true
	default:
		d.logger.Printf("notify queue full, dropping %q", job.Name)
		return false
	}
}

// QueueLength returns the number of queued jobs.
func (d *Dispatcher) QueueLength() int {
	return len(d.jobs)
}

func (d *Dispatcher) workerLoop() {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case job, ok := <-d.jobs:
			if !ok {
				return
			}
			d.run(job)
		}
	}
}

// run is the catch-and-log boundary for best-effort work.
func (d *Dispatcher) run(job Job) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Printf("notify job %q panicked: %v", job.Name, r)
		}
	}()
	if err := job.Run(d.ctx); err != nil {
		d.logger.Printf("notify job %q failed: %v", job.Name, err)
	}
}

// Package dispatch runs work detached from the webhook request cycle.
// The router acknowledges the user immediately and hands the slow part
// (LLM drafting, publishing sweeps) to the dispatcher; each task owns
// its completion message and its conversation-state update, so a later
// "publish" or "update" reply resolves against what the task wrote.
package dispatch

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/postpilot/postpilot/internal/channel"
	"github.com/postpilot/postpilot/internal/recordstore"
)

var (
	tasksStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postpilot_tasks_started_total",
		Help: "Background tasks accepted by the dispatcher.",
	}, []string{"kind"})
	tasksFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postpilot_tasks_failed_total",
		Help: "Background tasks that returned an error or panicked.",
	}, []string{"kind"})
	taskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "postpilot_task_duration_seconds",
		Help:    "Background task wall time.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"kind"})
)

// Task is one unit of detached work. Run sends its own success message;
// the dispatcher only steps in on error or panic, messaging Notify with
// FailText so the user is never left waiting silently.
type Task struct {
	ID       string // assigned by Submit
	Kind     string // e.g. "create_post", "publish_sweep"
	ClientID string // record-store client, for the job row
	Notify   string // recipient for the failure message; empty = no message
	FailText string // user-visible failure reply; defaults to a generic apology

	Run func(ctx context.Context) error
}

const defaultFailText = "Sorry, something went wrong while working on that. Please try again."

// Dispatcher owns a bounded worker pool draining a task queue.
type Dispatcher struct {
	queue   chan Task
	wg      sync.WaitGroup
	tables  *recordstore.Tables // nil disables job rows
	sender  channel.Sender      // nil disables failure messages
	timeout time.Duration

	stopOnce sync.Once
}

// Config sizes the dispatcher. Zero values get defaults: 4 workers, a
// 64-task queue, 5-minute per-task timeout.
type Config struct {
	Workers     int
	QueueSize   int
	TaskTimeout time.Duration
}

// New starts the worker pool. tables and sender may be nil in tests.
func New(cfg Config, tables *recordstore.Tables, sender channel.Sender) *Dispatcher {
	if cfg.Workers < 1 {
		cfg.Workers = 4
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 64
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 5 * time.Minute
	}

	d := &Dispatcher{
		queue:   make(chan Task, cfg.QueueSize),
		tables:  tables,
		sender:  sender,
		timeout: cfg.TaskTimeout,
	}
	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Submit queues a task and returns its ID without waiting for it to
// run. A full queue runs the task in its own goroutine instead of
// blocking the webhook worker.
func (d *Dispatcher) Submit(task Task) string {
	if task.ID == "" {
		task.ID = "task-" + uuid.NewString()[:8]
	}
	if task.FailText == "" {
		task.FailText = defaultFailText
	}
	tasksStarted.WithLabelValues(task.Kind).Inc()

	select {
	case d.queue <- task:
	default:
		log.Printf("[Dispatch] Queue full, running %s (%s) unpooled", task.ID, task.Kind)
		go d.execute(task)
	}
	return task.ID
}

// Stop closes intake and waits for in-flight tasks to finish.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.queue) })
	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for task := range d.queue {
		d.execute(task)
	}
}

func (d *Dispatcher) execute(task Task) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	jobID := ""
	if d.tables != nil {
		var err error
		jobID, err = d.tables.CreateJob(ctx, task.Kind, task.ClientID, map[string]any{"task_id": task.ID})
		if err != nil {
			log.Printf("[Dispatch] Cannot record job for %s: %v", task.ID, err)
		} else {
			d.tables.UpdateJob(ctx, jobID, "Running", nil, nil)
		}
	}

	start := time.Now()
	err := d.run(ctx, task)
	taskDuration.WithLabelValues(task.Kind).Observe(time.Since(start).Seconds())

	if err == nil {
		if d.tables != nil {
			d.tables.UpdateJob(ctx, jobID, "Completed", nil, nil)
		}
		return
	}

	tasksFailed.WithLabelValues(task.Kind).Inc()
	log.Printf("[Dispatch] Task %s (%s) failed: %v", task.ID, task.Kind, err)
	if d.tables != nil {
		d.tables.UpdateJob(ctx, jobID, "Failed", err, nil)
	}
	if d.sender != nil && task.Notify != "" {
		if sendErr := d.sender.Send(ctx, task.Notify, task.FailText); sendErr != nil {
			log.Printf("[Dispatch] Cannot notify %s about failed task %s: %v", task.Notify, task.ID, sendErr)
		}
	}
}

// run executes the task body, converting panics to errors so a bad task
// never takes a worker down with it.
func (d *Dispatcher) run(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Dispatch] Task %s panicked: %v\n%s", task.ID, r, debug.Stack())
			err = &PanicError{Value: r}
		}
	}()
	return task.Run(ctx)
}

// PanicError wraps a recovered panic value.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string { return fmt.Sprintf("task panic: %v", e.Value) }

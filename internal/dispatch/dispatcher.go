// Package dispatch runs the worker pool that drains the queue and
// hands tasks to agents.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"

	"github.com/shayc/relay/internal/agent"
	"github.com/shayc/relay/internal/manager"
	"github.com/shayc/relay/internal/queue"
	"github.com/shayc/relay/internal/store"
	"github.com/shayc/relay/pkg/models"
)

// DefaultWorkers is the worker count when none is configured.
const DefaultWorkers = 2

// RescanInterval is how often the queue is topped up from the store.
// The rescan picks up tasks created by other processes between ticks.
const RescanInterval = 5 * time.Second

// Dispatcher pulls task IDs off the queue and runs them. Queue entries
// are advisory: each worker reloads the task and skips anything no
// longer pending, so duplicate or stale entries are harmless.
type Dispatcher struct {
	queue    *queue.DispatchQueue
	manager  *manager.TaskManager
	registry *agent.Registry
	executor *agent.Executor
	store    *store.DB
	workers  int
	debug    *DebugLogger
}

// New returns a Dispatcher. workers <= 0 uses DefaultWorkers; debug may
// be nil.
func New(q *queue.DispatchQueue, m *manager.TaskManager, r *agent.Registry, db *store.DB, workers int, debug *DebugLogger) *Dispatcher {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Dispatcher{
		queue:    q,
		manager:  m,
		registry: r,
		executor: agent.NewExecutor(db),
		store:    db,
		workers:  workers,
		debug:    debug,
	}
}

// Run requeues surviving pending tasks and blocks running the worker
// pool until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	requeued, err := d.manager.RequeuePending(ctx)
	if err != nil {
		return fmt.Errorf("requeue pending tasks: %w", err)
	}
	d.debug.Log("dispatcher starting: %d workers, %d tasks requeued", d.workers, requeued)

	wg := conc.NewWaitGroup()
	for i := 0; i < d.workers; i++ {
		workerID := "worker-" + uuid.NewString()[:8]
		wg.Go(func() {
			d.workerLoop(ctx, workerID)
		})
	}
	wg.Go(func() {
		d.rescanLoop(ctx)
	})
	wg.Wait()

	d.debug.Log("dispatcher stopped")
	return nil
}

// rescanLoop re-enqueues pending tasks on an interval. Workers reload
// and claim before executing, so duplicate entries stay harmless.
func (d *Dispatcher) rescanLoop(ctx context.Context) {
	ticker := time.NewTicker(RescanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := d.manager.RequeuePending(ctx)
			if err != nil {
				d.debug.Log("pending rescan failed: %v", err)
			} else if n > 0 {
				d.debug.Log("pending rescan queued %d tasks", n)
			}
		}
	}
}

func (d *Dispatcher) workerLoop(ctx context.Context, workerID string) {
	log.Printf("[dispatch] %s started", workerID)
	for {
		item, err := d.queue.Take(ctx)
		if err != nil {
			log.Printf("[dispatch] %s stopping: %v", workerID, err)
			return
		}
		d.dispatchOne(ctx, workerID, item.TaskID)
	}
}

// dispatchOne runs a single queue entry end to end. All failure modes
// are absorbed here; a worker never dies because of one bad task.
func (d *Dispatcher) dispatchOne(ctx context.Context, workerID string, taskID int64) {
	task, err := d.manager.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			d.debug.Log("%s: task %d vanished, skipping", workerID, taskID)
			return
		}
		log.Printf("[dispatch] %s: load task %d: %v", workerID, taskID, err)
		return
	}
	if task.Status != models.TaskStatusPending {
		// Stale entry: cancelled, claimed by another worker, or a
		// duplicate of an already-finished run.
		d.debug.Log("%s: task %d is %s, skipping", workerID, taskID, task.Status)
		return
	}

	handler := d.registry.FindHandler(task.Kind)
	if handler == nil {
		d.failUnroutable(task)
		return
	}

	d.debug.Log("%s: executing task %d (%s) with %s", workerID, taskID, task.Kind, handler.Name())
	result, err := d.executor.Execute(ctx, handler, task)
	if err != nil {
		log.Printf("[dispatch] %s: execute task %d: %v", workerID, taskID, err)
		return
	}
	if result == nil {
		d.debug.Log("%s: task %d claimed elsewhere", workerID, taskID)
		return
	}

	if !result.Success && result.ErrorKind.Retryable() {
		d.maybeRetry(ctx, workerID, task)
	}
}

// failUnroutable marks a task with no capable agent as permanently
// failed. Configuration gaps are not retried.
func (d *Dispatcher) failUnroutable(task *models.Task) {
	msg := fmt.Sprintf("no agent available for kind %q", task.Kind)
	log.Printf("[dispatch] task %d: %s", task.ID, msg)

	claimed, err := d.store.ClaimTask(task.ID, "dispatcher", time.Now())
	if err != nil || !claimed {
		return
	}
	if _, err := d.store.FinishTask(task.ID, models.TaskStatusFailed, nil, msg, time.Now()); err != nil {
		log.Printf("[dispatch] task %d: record unroutable failure: %v", task.ID, err)
	}
}

// maybeRetry re-enqueues a transiently failed task while budget
// remains. The store guards the budget; a refused reset ends the
// task's life as failed.
func (d *Dispatcher) maybeRetry(ctx context.Context, workerID string, task *models.Task) {
	ok, err := d.manager.RetryTask(ctx, task.ID)
	if err != nil {
		log.Printf("[dispatch] %s: retry task %d: %v", workerID, task.ID, err)
		return
	}
	if ok {
		d.debug.Log("%s: task %d requeued for retry", workerID, task.ID)
	} else {
		d.debug.Log("%s: task %d retry budget exhausted", workerID, task.ID)
	}
}

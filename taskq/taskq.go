// CLAUDE:SUMMARY Single-worker FIFO task queue with bounded batch drain — serialises all document mutations.
// Package taskq implements the serialised operation queue behind domscribe
// mutations.
//
// Every mutation is wrapped in a Task and enqueued; a single worker goroutine
// drains the queue in FIFO order, at most BatchSize tasks per cycle. The
// caller never blocks: Enqueue returns immediately with a Task handle whose
// Done channel closes once the task has run (or been rejected). Task failures
// are logged and recorded on the handle, never propagated: a failing
// mutation must not take down the loop or leave a waiter hanging.
//
// The batch bound keeps one burst of mutations from starving everything else
// sharing the scheduler: after BatchSize tasks the worker yields and picks up
// the remainder on the next cycle.
package taskq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/hazyhaar/domscribe/idgen"
)

// ErrQueueFull is reported on tasks rejected because the queue buffer is full.
var ErrQueueFull = errors.New("taskq: queue full")

// ErrStopped is reported on tasks that were still pending when the worker
// shut down, and on tasks enqueued after shutdown.
var ErrStopped = errors.New("taskq: stopped")

// Task is the handle returned by Enqueue. Done closes exactly once, after the
// task ran, failed, or was rejected; Err is valid once Done is closed.
type Task struct {
	id    string
	label string
	fn    func(ctx context.Context) error
	done  chan struct{}
	err   error
}

// ID returns the task's generated identifier.
func (t *Task) ID() string { return t.id }

// Label returns the operation label given at Enqueue time.
func (t *Task) Label() string { return t.label }

// Done returns a channel that closes when the task has completed.
func (t *Task) Done() <-chan struct{} { return t.done }

// Err returns the task's outcome. Only valid after Done is closed.
func (t *Task) Err() error { return t.err }

// Wait blocks until the task completes or ctx is cancelled.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Task) finish(err error) {
	t.err = err
	close(t.done)
}

// Options configures queue behaviour.
type Options struct {
	// BatchSize is the maximum number of tasks drained per worker cycle.
	// Default: 5.
	BatchSize int
	// QueueSize is the buffered capacity of the queue. Enqueue on a full
	// queue rejects the task with ErrQueueFull. Default: 256.
	QueueSize int
	// IDs generates task identifiers. Default: Prefixed("op_", NanoID(10)).
	IDs idgen.Generator
	// Logger overrides the default slog logger.
	Logger *slog.Logger
	// OnCycle, if set, is called by the worker after each drain cycle with
	// the number of tasks processed in that cycle. Test hook.
	OnCycle func(n int)
}

func (o *Options) defaults() {
	if o.BatchSize <= 0 {
		o.BatchSize = 5
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.IDs == nil {
		o.IDs = idgen.Prefixed("op_", idgen.NanoID(10))
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Q is the queue handle. Create with New, start the worker with Run, submit
// with Enqueue. Safe for concurrent use.
type Q struct {
	opts Options
	ch   chan *Task

	stopped atomic.Bool

	// Counters for observability (exported via Stats).
	enqueued  atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64
	cycles    atomic.Int64
}

// Stats are point-in-time counters.
type Stats struct {
	Enqueued  int64 `json:"enqueued"`
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
	Rejected  int64 `json:"rejected"`
	Cycles    int64 `json:"cycles"`
	Pending   int   `json:"pending"`
}

// New creates a queue. Call Run in a goroutine to start the worker.
func New(opts Options) *Q {
	opts.defaults()
	return &Q{opts: opts, ch: make(chan *Task, opts.QueueSize)}
}

// Stats returns the current counters.
func (q *Q) Stats() Stats {
	return Stats{
		Enqueued:  q.enqueued.Load(),
		Processed: q.processed.Load(),
		Failed:    q.failed.Load(),
		Rejected:  q.rejected.Load(),
		Cycles:    q.cycles.Load(),
		Pending:   len(q.ch),
	}
}

// Len returns the number of tasks waiting in the queue.
func (q *Q) Len() int { return len(q.ch) }

// Enqueue submits fn for execution and returns its Task handle without
// blocking. If the queue is full or the worker has stopped, the task is
// rejected: Done closes immediately and Err reports why.
func (q *Q) Enqueue(label string, fn func(ctx context.Context) error) *Task {
	t := &Task{
		id:    q.opts.IDs(),
		label: label,
		fn:    fn,
		done:  make(chan struct{}),
	}

	if q.stopped.Load() {
		q.rejected.Add(1)
		t.finish(ErrStopped)
		return t
	}

	select {
	case q.ch <- t:
		q.enqueued.Add(1)
		// The worker may have shut down between the check above and the
		// send, leaving the task stranded after shutdown's drain. Re-check
		// and drain so every accepted task still resolves.
		if q.stopped.Load() {
			q.drain()
		}
	default:
		q.rejected.Add(1)
		q.opts.Logger.Warn("taskq: queue full, rejecting task",
			"id", t.id, "label", t.label, "capacity", q.opts.QueueSize)
		t.finish(ErrQueueFull)
	}
	return t
}

// Flush enqueues a barrier task and waits for it, guaranteeing every task
// enqueued before the call has completed when Flush returns.
func (q *Q) Flush(ctx context.Context) error {
	t := q.Enqueue("flush", func(context.Context) error { return nil })
	return t.Wait(ctx)
}

// Run is the worker loop. It blocks until ctx is cancelled, then fails any
// still-pending tasks with ErrStopped so no waiter hangs.
func (q *Q) Run(ctx context.Context) {
	log := q.opts.Logger
	log.Info("taskq: worker started",
		"batch_size", q.opts.BatchSize, "queue_size", q.opts.QueueSize)

	for {
		select {
		case <-ctx.Done():
			q.shutdown(log)
			return

		case first := <-q.ch:
			batch := []*Task{first}
			for len(batch) < q.opts.BatchSize {
				select {
				case next := <-q.ch:
					batch = append(batch, next)
				default:
					goto drained
				}
			}
		drained:
			for _, t := range batch {
				q.exec(ctx, t)
			}
			q.cycles.Add(1)
			if q.opts.OnCycle != nil {
				q.opts.OnCycle(len(batch))
			}
		}
	}
}

// exec runs a single task with panic isolation. Errors are recorded on the
// handle and logged, never returned: the loop must survive any task.
func (q *Q) exec(ctx context.Context, t *Task) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("taskq: task panic: %v", r)
			q.failed.Add(1)
			q.opts.Logger.Error("taskq: task panicked",
				"id", t.id, "label", t.label, "panic", r)
			t.finish(err)
		}
	}()

	err := t.fn(ctx)
	if err != nil {
		q.failed.Add(1)
		q.opts.Logger.Warn("taskq: task failed",
			"id", t.id, "label", t.label, "error", err)
	} else {
		q.processed.Add(1)
	}
	t.finish(err)
}

func (q *Q) shutdown(log *slog.Logger) {
	q.stopped.Store(true)
	n := q.drain()
	log.Info("taskq: worker stopped", "abandoned", n)
}

// drain fails pending tasks with ErrStopped until the channel is empty.
// Only called with stopped set, so no worker is competing for the tasks;
// each task is received, and therefore finished, by exactly one drainer.
func (q *Q) drain() int {
	n := 0
	for {
		select {
		case t := <-q.ch:
			t.finish(ErrStopped)
			n++
		default:
			return n
		}
	}
}

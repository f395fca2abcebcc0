// Package mutex provides a serial dispatch queue: tasks run one at a time,
// strictly in submission order, on a single worker goroutine.
package mutex

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Classroom/internal/metrics"
)

var (
	ErrQueueClosed = errors.New("dispatch queue closed")
	ErrTaskPanic   = errors.New("dispatch task panicked")
)

const DefaultQueueSize = 64

// Task is a unit of serialized work. It should return promptly once ctx is done.
type Task func(ctx context.Context) error

type job struct {
	ctx  context.Context
	task Task
	done chan error
}

// Queue runs submitted tasks in FIFO order without overlap. A failing task
// never affects the ones after it. When timeout is positive every task runs
// under a deadline and the queue moves on once it expires. A timed-out task
// that ignores ctx keeps running alongside the next one, so tasks must return
// once ctx is done for the no-overlap guarantee to hold.
type Queue struct {
	name    string
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	jobs   chan job

	stopped chan struct{}
}

func New(name string, size int, timeout time.Duration) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	q := &Queue{
		name:    name,
		timeout: timeout,
		jobs:    make(chan job, size),
		stopped: make(chan struct{}),
	}
	go q.run()
	return q
}

// Submit enqueues task and returns a channel that receives its result once it
// has run. Submit blocks while the queue is full.
func (q *Queue) Submit(ctx context.Context, task Task) <-chan error {
	done := make(chan error, 1)
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		done <- ErrQueueClosed
		return done
	}
	q.jobs <- job{ctx: ctx, task: task, done: done}
	metrics.QueueDepth.WithLabelValues(q.name).Inc()
	return done
}

// Dispatch enqueues task and waits for its result.
func (q *Queue) Dispatch(ctx context.Context, task Task) error {
	return <-q.Submit(ctx, task)
}

// Len is the number of tasks waiting to start.
func (q *Queue) Len() int { return len(q.jobs) }

// Close stops accepting tasks, runs the ones already queued and waits for the worker.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.stopped
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()
	<-q.stopped
}

func (q *Queue) run() {
	defer close(q.stopped)
	for j := range q.jobs {
		metrics.QueueDepth.WithLabelValues(q.name).Dec()
		err := q.exec(j)
		if err != nil {
			log.Debug().Err(err).Str("module", "app.mutex").Str("queue", q.name).Msg("task failed")
		}
		j.done <- err
	}
}

func (q *Queue) exec(j job) error {
	ctx := j.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		metrics.TaskFailures.WithLabelValues(q.name, "canceled").Inc()
		return err
	}

	start := time.Now()
	defer func() {
		metrics.TaskDuration.WithLabelValues(q.name).Observe(time.Since(start).Seconds())
	}()

	if q.timeout <= 0 {
		return q.call(ctx, j.task)
	}

	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	res := make(chan error, 1)
	go func() { res <- q.call(ctx, j.task) }()

	select {
	case err := <-res:
		return err
	case <-ctx.Done():
		metrics.TaskFailures.WithLabelValues(q.name, "timeout").Inc()
		log.Warn().Str("module", "app.mutex").Str("queue", q.name).Dur("timeout", q.timeout).Msg("task timed out, moving on")
		return ctx.Err()
	}
}

func (q *Queue) call(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.TaskFailures.WithLabelValues(q.name, "panic").Inc()
			err = fmt.Errorf("%w: %v", ErrTaskPanic, r)
		}
	}()
	if err = task(ctx); err != nil {
		metrics.TaskFailures.WithLabelValues(q.name, "error").Inc()
	}
	return err
}

package jobs

import (
	"context"
	"errors"
	"log"
	"sync"
)

// Runner is the job body executed for each queued evidence id.
type Runner func(ctx context.Context, evidenceID string) error

// Queue is a bounded in-process worker pool for analysis jobs. Enqueue
// is idempotent per evidence id: an id that is already queued or running
// is not queued again. Cancel kills the job's context whether the job
// has started or not.
type Queue struct {
	runner Runner
	tasks  chan string

	base      context.Context
	cancelAll context.CancelFunc
	wg        sync.WaitGroup

	mu     sync.Mutex
	active map[string]*task
}

type task struct {
	ctx    context.Context
	cancel context.CancelFunc
}

var ErrQueueFull = errors.New("analysis queue full")

func NewQueue(runner Runner, workers, backlog int) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if backlog <= 0 {
		backlog = 64
	}
	base, cancelAll := context.WithCancel(context.Background())
	q := &Queue{
		runner:    runner,
		tasks:     make(chan string, backlog),
		base:      base,
		cancelAll: cancelAll,
		active:    make(map[string]*task),
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

func (q *Queue) Enqueue(evidenceID string) error {
	q.mu.Lock()
	if _, ok := q.active[evidenceID]; ok {
		q.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(q.base)
	q.active[evidenceID] = &task{ctx: ctx, cancel: cancel}
	q.mu.Unlock()

	select {
	case q.tasks <- evidenceID:
		return nil
	default:
		q.drop(evidenceID)
		return ErrQueueFull
	}
}

// Active reports whether the id currently has a queued or running job.
func (q *Queue) Active(evidenceID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.active[evidenceID]
	return ok
}

// Cancel aborts a queued or running job. A job that already finished is
// a no-op.
func (q *Queue) Cancel(evidenceID string) {
	q.mu.Lock()
	t, ok := q.active[evidenceID]
	q.mu.Unlock()
	if ok {
		t.cancel()
	}
}

// Close stops accepting work, cancels in-flight jobs and waits for the
// workers to drain.
func (q *Queue) Close() {
	q.cancelAll()
	close(q.tasks)
	q.wg.Wait()
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for evidenceID := range q.tasks {
		q.mu.Lock()
		t, ok := q.active[evidenceID]
		q.mu.Unlock()
		if !ok {
			continue
		}
		if err := q.runner(t.ctx, evidenceID); err != nil {
			log.Printf("analysis job %s: %v", evidenceID, err)
		}
		q.drop(evidenceID)
	}
}

func (q *Queue) drop(evidenceID string) {
	q.mu.Lock()
	t, ok := q.active[evidenceID]
	delete(q.active, evidenceID)
	q.mu.Unlock()
	if ok {
		t.cancel()
	}
}

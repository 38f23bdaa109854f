package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/user/custodian/internal/logging"
	"github.com/user/custodian/internal/types"
)

// laneDepth bounds how many jobs may wait for one case.
const laneDepth = 32

// Queue manages per-case lanes with a global concurrency semaphore.
// Each case gets its own FIFO channel (lane) so that jobs for one case are
// processed sequentially, while the semaphore limits the total number of
// concurrent job processors across all cases.
type Queue struct {
	lanes     map[types.CaseID]chan *Job
	semaphore *semaphore.Weighted
	processor func(*Job) error
	active    atomic.Int64
	pending   atomic.Int64

	log    *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
}

// NewQueue creates a Queue that allows up to maxConcurrent jobs to execute
// simultaneously across all case lanes.
func NewQueue(maxConcurrent int64) *Queue {
	return &Queue{
		lanes:     make(map[types.CaseID]chan *Job),
		semaphore: semaphore.NewWeighted(maxConcurrent),
		log:       logging.New("gateway"),
	}
}

// Start initialises the queue's context. Must be called before Enqueue.
func (q *Queue) Start(ctx context.Context) {
	q.ctx, q.cancel = context.WithCancel(ctx)
}

// Stop cancels the queue context, closes all lanes, and waits for in-flight
// processors to finish.
func (q *Queue) Stop() {
	if q.cancel != nil {
		q.cancel()
	}
	q.mu.Lock()
	for id, lane := range q.lanes {
		close(lane)
		delete(q.lanes, id)
	}
	q.mu.Unlock()
	q.wg.Wait()
}

// Enqueue adds a Job to the case's lane, creating the lane (and its
// goroutine) on first use. Returns an error if the lane's buffer is full or
// the queue has not been started.
func (q *Queue) Enqueue(job *Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.ctx == nil || q.ctx.Err() != nil {
		return fmt.Errorf("queue not running")
	}

	lane, exists := q.lanes[job.CaseID]
	if !exists {
		lane = make(chan *Job, laneDepth)
		q.lanes[job.CaseID] = lane
		q.wg.Add(1)
		go q.runLane(job.CaseID, lane)
	}

	q.pending.Add(1)
	select {
	case lane <- job:
		return nil
	default:
		q.pending.Add(-1)
		return fmt.Errorf("queue full for case %s", job.CaseID)
	}
}

// runLane works through one case's jobs in order. The lane goroutine exits
// once the lane drains; a later job for the case starts a fresh one.
func (q *Queue) runLane(id types.CaseID, lane chan *Job) {
	defer q.wg.Done()
	for {
		select {
		case job, ok := <-lane:
			if !ok || !q.run(job) {
				return
			}
		case <-q.ctx.Done():
			return
		}
		if q.retire(id, lane) {
			return
		}
	}
}

// run processes one job under a semaphore slot. It returns false when the
// queue is shutting down.
func (q *Queue) run(job *Job) bool {
	if err := q.semaphore.Acquire(q.ctx, 1); err != nil {
		q.pending.Add(-1)
		return false
	}
	q.active.Add(1)
	q.pending.Add(-1)
	defer func() {
		q.active.Add(-1)
		q.semaphore.Release(1)
	}()

	if q.processor == nil {
		return true
	}
	job.Ctx = q.ctx
	if err := q.processor(job); err != nil {
		q.log.Error("job failed", "job_id", string(job.ID), "case_id", string(job.CaseID), "kind", job.Kind, "attempts", job.Attempts, "error", err)
	}
	return true
}

// retire removes lane from the map if nothing is waiting in it. Enqueue
// only sends while holding q.mu, so an empty lane stays empty here.
func (q *Queue) retire(id types.CaseID, lane chan *Job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(lane) > 0 {
		return false
	}
	if q.lanes[id] == lane {
		delete(q.lanes, id)
	}
	return true
}

// WaitIdle blocks until no jobs are queued or running, or the timeout
// expires. Returns true if idle, false if timed out.
func (q *Queue) WaitIdle(timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if q.active.Load() == 0 && q.pending.Load() == 0 {
			return true
		}
		select {
		case <-deadline:
			return false
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// SetProcessor sets the function invoked for each dequeued Job.
func (q *Queue) SetProcessor(fn func(*Job) error) {
	q.processor = fn
}

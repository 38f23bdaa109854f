// Package gateway runs post-seal work (assistant briefings, notifications)
// on copies of sealed cases. Nothing it does can reach back into the store.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/user/custodian/internal/types"
)

// ErrUnsealed is returned when a record without a seal is dispatched.
var ErrUnsealed = errors.New("case is not sealed")

// Handler performs one kind of post-seal job.
type Handler func(ctx context.Context, job *Job) error

// Gateway fans sealed cases out into jobs, one per registered handler, and
// runs them through the queue with retries.
type Gateway struct {
	Queue *Queue
	retry *RetryPolicy

	mu       sync.RWMutex
	handlers map[string]Handler
	kinds    []string
}

// New creates a Gateway with the given concurrency limit for simultaneous
// job processing.
func New(maxConcurrent ...int64) *Gateway {
	var concurrency int64 = 2
	if len(maxConcurrent) > 0 && maxConcurrent[0] > 0 {
		concurrency = maxConcurrent[0]
	}
	g := &Gateway{
		Queue:    NewQueue(concurrency),
		retry:    DefaultRetryPolicy(),
		handlers: make(map[string]Handler),
	}
	g.Queue.SetProcessor(g.process)
	return g
}

// SetRetryPolicy replaces the default retry policy.
func (g *Gateway) SetRetryPolicy(p *RetryPolicy) {
	g.retry = p
}

// Handle registers h for jobs of the given kind. Registering a kind again
// replaces its handler.
func (g *Gateway) Handle(kind string, h Handler) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.handlers[kind]; !ok {
		g.kinds = append(g.kinds, kind)
	}
	g.handlers[kind] = h
}

// Start starts the internal queue.
func (g *Gateway) Start(ctx context.Context) {
	g.Queue.Start(ctx)
}

// Stop stops the queue and waits for in-flight jobs.
func (g *Gateway) Stop() {
	g.Queue.Stop()
}

// Dispatch enqueues one job per registered kind for a sealed case, in
// registration order.
func (g *Gateway) Dispatch(rec *types.CaseRecord) ([]*Job, error) {
	if rec == nil || rec.Seal == "" {
		return nil, ErrUnsealed
	}

	g.mu.RLock()
	kinds := append([]string(nil), g.kinds...)
	g.mu.RUnlock()

	jobs := make([]*Job, 0, len(kinds))
	for _, kind := range kinds {
		job := NewJob(rec, kind)
		if err := g.Queue.Enqueue(job); err != nil {
			return jobs, fmt.Errorf("enqueue %s job: %w", kind, err)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (g *Gateway) process(job *Job) error {
	g.mu.RLock()
	h, ok := g.handlers[job.Kind]
	g.mu.RUnlock()

	now := time.Now()
	job.StartedAt = &now
	job.Status = JobStatusRunning

	var err error
	if !ok {
		err = Permanent(fmt.Errorf("no handler for job kind %q", job.Kind))
	} else {
		err = g.retry.Run(job.Ctx, func() error {
			job.Attempts++
			return h(job.Ctx, job)
		})
	}

	end := time.Now()
	job.EndedAt = &end
	if err != nil {
		job.Status = JobStatusFailed
		job.Error = err
		return err
	}
	job.Status = JobStatusComplete
	return nil
}

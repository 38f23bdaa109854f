package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/user/custodian/internal/types"
)

// JobStatus represents the lifecycle state of a Job.
type JobStatus string

const (
	JobStatusQueued   JobStatus = "queued"
	JobStatusRunning  JobStatus = "running"
	JobStatusComplete JobStatus = "complete"
	JobStatusFailed   JobStatus = "failed"
)

// Job is one piece of post-seal work against a sealed case. It carries
// copies of the report and seal, never the stored record itself.
type Job struct {
	ID        types.JobID
	CaseID    types.CaseID
	CaseName  string
	Kind      string
	Report    string
	Seal      string
	Status    JobStatus
	Attempts  int
	CreatedAt time.Time
	StartedAt *time.Time
	EndedAt   *time.Time
	Error     error

	// Ctx is the queue context the job runs under. Set when dequeued.
	Ctx context.Context

	mu   sync.Mutex
	done map[string]bool
}

// MarkDone records that step finished, so a retried handler can skip it.
func (j *Job) MarkDone(step string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.done == nil {
		j.done = make(map[string]bool)
	}
	j.done[step] = true
}

// Done reports whether step was marked done on an earlier attempt.
func (j *Job) Done(step string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.done[step]
}

// NewJob creates a queued job of the given kind for a sealed case.
func NewJob(rec *types.CaseRecord, kind string) *Job {
	return &Job{
		ID:        types.NewJobID(),
		CaseID:    rec.ID,
		CaseName:  rec.Name,
		Kind:      kind,
		Report:    rec.Report,
		Seal:      rec.Seal,
		Status:    JobStatusQueued,
		CreatedAt: time.Now(),
	}
}

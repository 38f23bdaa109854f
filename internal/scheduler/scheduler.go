// Package scheduler periodically re-audits every stored case.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/user/custodian/internal/logging"
	"github.com/user/custodian/internal/seal"
	"github.com/user/custodian/internal/state"
	"github.com/user/custodian/internal/types"
)

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Auditor recomputes seals and report self-hashes of stored cases and
// records the outcome.
type Auditor struct {
	store    types.CaseStore
	results  *state.AuditLog
	now      func() time.Time
	onTamper func(state.AuditResult)
	log      *slog.Logger
}

// NewAuditor creates an Auditor. onTamper, if non-nil, is called for every
// case that fails its audit.
func NewAuditor(store types.CaseStore, results *state.AuditLog, onTamper func(state.AuditResult)) *Auditor {
	return &Auditor{
		store:    store,
		results:  results,
		now:      time.Now,
		onTamper: onTamper,
		log:      logging.New("scheduler"),
	}
}

// Check audits one case and records the result.
func (a *Auditor) Check(rec *types.CaseRecord) (state.AuditResult, error) {
	res := state.AuditResult{CaseID: rec.ID, CheckedAt: a.now().UTC(), Intact: true}
	if err := seal.Audit(rec); err != nil {
		res.Intact = false
		res.Error = err.Error()
		a.log.Warn("case failed audit", "case", rec.ID, "error", err)
		if a.onTamper != nil {
			a.onTamper(res)
		}
	}
	if a.results != nil {
		if err := a.results.Record(res); err != nil {
			return res, fmt.Errorf("record audit: %w", err)
		}
	}
	return res, nil
}

// RunOnce audits every stored case. Results are recorded even when some
// cases fail; only store and log I/O errors are returned.
func (a *Auditor) RunOnce(ctx context.Context) ([]state.AuditResult, error) {
	cases, err := a.store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cases: %w", err)
	}

	out := make([]state.AuditResult, 0, len(cases))
	for _, rec := range cases {
		res, err := a.Check(rec)
		if err != nil {
			return out, err
		}
		out = append(out, res)
	}
	a.log.Info("audit complete", "cases", len(out))
	return out, nil
}

// Scheduler runs an Auditor on a cron schedule.
type Scheduler struct {
	auditor  *Auditor
	schedule string

	mu   sync.Mutex
	cron *cron.Cron
}

// New creates a Scheduler that audits on the given cron expression.
func New(auditor *Auditor, schedule string) *Scheduler {
	return &Scheduler{
		auditor:  auditor,
		schedule: schedule,
		cron:     cron.New(cron.WithParser(cronParser)),
	}
}

// Start registers the audit job and starts the cron ticker.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.cron.AddFunc(s.schedule, func() {
		if _, err := s.auditor.RunOnce(ctx); err != nil {
			s.auditor.log.Error("scheduled audit failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid audit schedule %q: %w", s.schedule, err)
	}
	s.auditor.log.Info("scheduled audit", "schedule", s.schedule)
	s.cron.Start()
	return nil
}

// Stop stops the cron ticker and waits for a running audit to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	<-s.cron.Stop().Done()
}

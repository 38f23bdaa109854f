package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/user/custodian/internal/types"
)

func sealedCase() *types.CaseRecord {
	return &types.CaseRecord{
		ID:     types.NewCaseID(),
		Name:   "harbour",
		Report: "REPORT\n",
		Seal:   "abc123",
	}
}

func fastRetry() *RetryPolicy {
	return &RetryPolicy{Attempts: 3, Base: time.Millisecond, Cap: time.Millisecond}
}

func TestGatewayDispatch(t *testing.T) {
	gw := New()
	gw.SetRetryPolicy(fastRetry())

	var mu sync.Mutex
	var seen []string
	record := func(ctx context.Context, job *Job) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, job.Kind+":"+job.Seal)
		return nil
	}
	gw.Handle("brief", record)
	gw.Handle("notify", record)

	gw.Start(context.Background())
	defer gw.Stop()

	jobs, err := gw.Dispatch(sealedCase())
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 2 || jobs[0].Kind != "brief" || jobs[1].Kind != "notify" {
		t.Fatalf("unexpected jobs: %+v", jobs)
	}
	if !gw.Queue.WaitIdle(2 * time.Second) {
		t.Fatal("gateway did not drain")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] != "brief:abc123" || seen[1] != "notify:abc123" {
		t.Errorf("expected jobs in lane order, got %v", seen)
	}
	for _, job := range jobs {
		if job.Status != JobStatusComplete {
			t.Errorf("job %s: expected complete, got %s", job.Kind, job.Status)
		}
	}
}

func TestGatewayJobCarriesCopies(t *testing.T) {
	gw := New()
	rec := sealedCase()
	done := make(chan struct{})
	gw.Handle("mutate", func(ctx context.Context, job *Job) error {
		job.Report = "rewritten"
		job.Seal = "forged"
		close(done)
		return nil
	})
	gw.Start(context.Background())
	defer gw.Stop()

	if _, err := gw.Dispatch(rec); err != nil {
		t.Fatal(err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
	if rec.Report != "REPORT\n" || rec.Seal != "abc123" {
		t.Error("job handler must not reach the sealed record")
	}
}

func TestGatewayRetriesThenFails(t *testing.T) {
	gw := New()
	gw.SetRetryPolicy(fastRetry())
	gw.Handle("flaky", func(ctx context.Context, job *Job) error {
		return errors.New("telegram: bad gateway")
	})
	gw.Start(context.Background())
	defer gw.Stop()

	jobs, err := gw.Dispatch(sealedCase())
	if err != nil {
		t.Fatal(err)
	}
	if !gw.Queue.WaitIdle(2 * time.Second) {
		t.Fatal("gateway did not drain")
	}
	job := jobs[0]
	if job.Status != JobStatusFailed {
		t.Errorf("expected failed, got %s", job.Status)
	}
	if job.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", job.Attempts)
	}
	if job.Error == nil {
		t.Error("expected job error recorded")
	}
}

func TestGatewayPermanentFailureNotRetried(t *testing.T) {
	gw := New()
	gw.SetRetryPolicy(fastRetry())
	gw.Handle("notify", func(ctx context.Context, job *Job) error {
		return Permanent(errors.New("unknown target"))
	})
	gw.Start(context.Background())
	defer gw.Stop()

	jobs, err := gw.Dispatch(sealedCase())
	if err != nil {
		t.Fatal(err)
	}
	if !gw.Queue.WaitIdle(2 * time.Second) {
		t.Fatal("gateway did not drain")
	}
	if jobs[0].Attempts != 1 || jobs[0].Status != JobStatusFailed {
		t.Errorf("permanent failure: attempts=%d status=%s", jobs[0].Attempts, jobs[0].Status)
	}
}

func TestJobStepsSurviveRetries(t *testing.T) {
	gw := New()
	gw.SetRetryPolicy(fastRetry())

	var mu sync.Mutex
	sent := map[string]int{}
	gw.Handle("notify", func(ctx context.Context, job *Job) error {
		var errs []error
		for _, target := range []string{"log:", "telegram:1"} {
			if job.Done(target) {
				continue
			}
			if target == "telegram:1" && job.Attempts < 2 {
				errs = append(errs, errors.New("telegram: timeout"))
				continue
			}
			mu.Lock()
			sent[target]++
			mu.Unlock()
			job.MarkDone(target)
		}
		return errors.Join(errs...)
	})
	gw.Start(context.Background())
	defer gw.Stop()

	jobs, err := gw.Dispatch(sealedCase())
	if err != nil {
		t.Fatal(err)
	}
	if !gw.Queue.WaitIdle(2 * time.Second) {
		t.Fatal("gateway did not drain")
	}
	if jobs[0].Status != JobStatusComplete || jobs[0].Attempts != 2 {
		t.Errorf("status=%s attempts=%d", jobs[0].Status, jobs[0].Attempts)
	}
	mu.Lock()
	defer mu.Unlock()
	if sent["log:"] != 1 || sent["telegram:1"] != 1 {
		t.Errorf("each target should be sent once, got %v", sent)
	}
}

func TestGatewayRejectsUnsealed(t *testing.T) {
	gw := New()
	gw.Start(context.Background())
	defer gw.Stop()

	rec := sealedCase()
	rec.Seal = ""
	if _, err := gw.Dispatch(rec); !errors.Is(err, ErrUnsealed) {
		t.Errorf("expected ErrUnsealed, got %v", err)
	}
	if _, err := gw.Dispatch(nil); !errors.Is(err, ErrUnsealed) {
		t.Errorf("expected ErrUnsealed for nil, got %v", err)
	}
}

func TestGatewayNoHandlersNoJobs(t *testing.T) {
	gw := New()
	gw.Start(context.Background())
	defer gw.Stop()

	jobs, err := gw.Dispatch(sealedCase())
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 0 {
		t.Errorf("expected no jobs, got %d", len(jobs))
	}
}

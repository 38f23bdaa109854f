package gateway

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestRetryDelay(t *testing.T) {
	p := &RetryPolicy{Attempts: 6, Base: 100 * time.Millisecond, Cap: time.Second}
	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}
	for i, w := range want {
		if got := p.Delay(i + 1); got != w {
			t.Errorf("Delay(%d) = %v, want %v", i+1, got, w)
		}
	}

	uncapped := &RetryPolicy{Base: time.Millisecond}
	if got := uncapped.Delay(4); got != 8*time.Millisecond {
		t.Errorf("uncapped Delay(4) = %v", got)
	}
}

func TestIsPermanent(t *testing.T) {
	base := errors.New("no route")
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"plain", base, false},
		{"marked", Permanent(base), true},
		{"marked and wrapped", fmt.Errorf("deliver: %w", Permanent(base)), true},
		{"joined", errors.Join(errors.New("timeout"), Permanent(base)), true},
		{"canceled", fmt.Errorf("job: %w", context.Canceled), true},
		{"deadline", context.DeadlineExceeded, false},
		{"unsealed", ErrUnsealed, true},
	}
	for _, tt := range tests {
		if got := IsPermanent(tt.err); got != tt.want {
			t.Errorf("%s: IsPermanent = %v, want %v", tt.name, got, tt.want)
		}
	}

	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
	if !errors.Is(Permanent(base), base) {
		t.Error("Permanent should unwrap to the original error")
	}
}

func TestRetryRun(t *testing.T) {
	p := &RetryPolicy{Attempts: 4, Base: time.Millisecond, Cap: time.Millisecond}
	flaky := errors.New("telegram: 502")

	tests := []struct {
		name      string
		failures  int
		permanent bool
		wantCalls int
		wantErr   bool
	}{
		{"first try", 0, false, 1, false},
		{"recovers", 2, false, 3, false},
		{"exhausted", 10, false, 4, true},
		{"permanent", 10, true, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := p.Run(context.Background(), func() error {
				calls++
				if calls > tt.failures {
					return nil
				}
				if tt.permanent {
					return Permanent(flaky)
				}
				return flaky
			})
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, flaky) {
				t.Errorf("expected last error to wrap %v, got %v", flaky, err)
			}
		})
	}
}

func TestRetryRunZeroAttempts(t *testing.T) {
	calls := 0
	err := (&RetryPolicy{}).Run(context.Background(), func() error {
		calls++
		return errors.New("down")
	})
	if calls != 1 || err == nil {
		t.Errorf("calls = %d, err = %v; want one failing call", calls, err)
	}
}

func TestRetryRunCancelledWhileWaiting(t *testing.T) {
	p := &RetryPolicy{Attempts: 5, Base: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- p.Run(ctx, func() error {
			calls++
			return errors.New("down")
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

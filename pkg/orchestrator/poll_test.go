package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDecide(t *testing.T) {
	critical := WaitPolicy{Name: "nodes-ready", Interval: time.Second, MaxAttempts: 5, FatalOnTimeout: true}
	advisory := WaitPolicy{Name: "addon-active", Interval: time.Second, MaxAttempts: 5, FatalOnTimeout: false}

	t.Run("terminal status fails on the first attempt", func(t *testing.T) {
		got := Decide(advisory, 1, CheckResult{Terminal: true, Status: "CREATE_FAILED"})
		if got != OutcomeFail {
			t.Errorf("Decide() = %v, want OutcomeFail", got)
		}
	})

	t.Run("unknown status retries until ready", func(t *testing.T) {
		// UNKNOWN N times, then ACTIVE: succeeds after exactly N+1 polls.
		const n = 3
		attempt := 0
		for ; attempt < n; attempt++ {
			got := Decide(advisory, attempt+1, CheckResult{Status: "UNKNOWN"})
			if got != OutcomeContinue {
				t.Fatalf("attempt %d: Decide() = %v, want OutcomeContinue", attempt+1, got)
			}
		}
		got := Decide(advisory, attempt+1, CheckResult{Done: true, Status: "ACTIVE"})
		if got != OutcomeSucceed {
			t.Errorf("attempt %d: Decide() = %v, want OutcomeSucceed", attempt+1, got)
		}
		if attempt+1 != n+1 {
			t.Errorf("succeeded after %d attempts, want %d", attempt+1, n+1)
		}
	})

	t.Run("critical timeout fails", func(t *testing.T) {
		got := Decide(critical, critical.MaxAttempts, CheckResult{Status: "0/2 nodes ready"})
		if got != OutcomeFail {
			t.Errorf("Decide() = %v, want OutcomeFail", got)
		}
	})

	t.Run("advisory timeout gives up without failing", func(t *testing.T) {
		got := Decide(advisory, advisory.MaxAttempts, CheckResult{Status: "CREATING"})
		if got != OutcomeGiveUp {
			t.Errorf("Decide() = %v, want OutcomeGiveUp", got)
		}
	})

	t.Run("done wins over attempt exhaustion", func(t *testing.T) {
		got := Decide(critical, critical.MaxAttempts+10, CheckResult{Done: true})
		if got != OutcomeSucceed {
			t.Errorf("Decide() = %v, want OutcomeSucceed", got)
		}
	})
}

func TestWait(t *testing.T) {
	ctx := context.Background()
	fast := WaitPolicy{Name: "test-wait", Interval: time.Millisecond, MaxAttempts: 5, FatalOnTimeout: true}

	t.Run("succeeds once the check is done", func(t *testing.T) {
		calls := 0
		err := wait(ctx, fast, func(_ context.Context) (CheckResult, error) {
			calls++
			return CheckResult{Done: calls >= 3}, nil
		})
		if err != nil {
			t.Fatalf("wait() error = %v", err)
		}
		if calls != 3 {
			t.Errorf("check ran %d times, want 3", calls)
		}
	})

	t.Run("terminal status aborts within one cycle", func(t *testing.T) {
		calls := 0
		err := wait(ctx, fast, func(_ context.Context) (CheckResult, error) {
			calls++
			return CheckResult{Terminal: true, Status: "DEGRADED"}, nil
		})
		if err == nil {
			t.Fatal("wait() = nil error, want terminal failure")
		}
		if calls != 1 {
			t.Errorf("check ran %d times, want 1", calls)
		}
	})

	t.Run("check errors count as not ready", func(t *testing.T) {
		err := wait(ctx, fast, func(_ context.Context) (CheckResult, error) {
			return CheckResult{}, errors.New("connection refused")
		})
		if err == nil {
			t.Fatal("wait() = nil error, want timeout failure")
		}
	})

	t.Run("advisory timeout returns nil", func(t *testing.T) {
		advisory := fast
		advisory.FatalOnTimeout = false
		err := wait(ctx, advisory, func(_ context.Context) (CheckResult, error) {
			return CheckResult{Status: "CREATING"}, nil
		})
		if err != nil {
			t.Fatalf("wait() error = %v, want nil for advisory timeout", err)
		}
	})

	t.Run("context cancellation interrupts the wait", func(t *testing.T) {
		cancelCtx, cancel := context.WithCancel(ctx)
		cancel()
		err := wait(cancelCtx, fast, func(_ context.Context) (CheckResult, error) {
			return CheckResult{Status: "pending"}, nil
		})
		if err == nil {
			t.Fatal("wait() = nil error, want context error")
		}
	})
}

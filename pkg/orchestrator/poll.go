package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/thingslab-dev/thingslab-orchestrator/pkg/status"
)

// CheckResult is one observation of the resource a wait is watching.
type CheckResult struct {
	// Done means the target state is reached.
	Done bool
	// Terminal means the resource reported a status it cannot recover from
	// (DEGRADED, CREATE_FAILED, SecretSyncedError, Degraded health).
	Terminal bool
	// Status is the raw status string, for diagnostics.
	Status string
}

// Check observes the watched resource once. Errors are treated as "not yet
// ready"; a resource that stays broken runs into the attempt bound.
type Check func(ctx context.Context) (CheckResult, error)

// Outcome is the decision after one polling attempt.
type Outcome int

const (
	// OutcomeContinue schedules another attempt.
	OutcomeContinue Outcome = iota
	// OutcomeSucceed ends the wait successfully.
	OutcomeSucceed
	// OutcomeFail aborts the run.
	OutcomeFail
	// OutcomeGiveUp ends an advisory wait with a warning.
	OutcomeGiveUp
)

// Decide maps one attempt's observation to an outcome. It is a pure function
// of the policy, the 1-based attempt number and the observation, so the
// termination behavior of every wait is testable without a clock.
func Decide(p WaitPolicy, attempt int, res CheckResult) Outcome {
	if res.Done {
		return OutcomeSucceed
	}
	if res.Terminal {
		return OutcomeFail
	}
	if attempt >= p.MaxAttempts {
		if p.FatalOnTimeout {
			return OutcomeFail
		}
		return OutcomeGiveUp
	}
	return OutcomeContinue
}

// wait polls check under the policy. The first check runs immediately;
// subsequent ones on the policy interval. An advisory timeout emits a warning
// and returns nil.
func wait(ctx context.Context, p WaitPolicy, check Check) error {
	status.Send(ctx, status.NewUpdate(status.LevelProgress, fmt.Sprintf("Waiting for %s", p.Name)).
		WithResource(p.Name).
		WithAction("waiting"))

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		res, err := check(ctx)
		if err != nil {
			res = CheckResult{Status: err.Error()}
		}

		switch Decide(p, attempt, res) {
		case OutcomeSucceed:
			status.Send(ctx, status.NewUpdate(status.LevelSuccess, fmt.Sprintf("%s is ready", p.Name)).
				WithResource(p.Name).
				WithAction("ready").
				WithMetadata("attempts", attempt))
			return nil
		case OutcomeFail:
			if res.Terminal {
				return fmt.Errorf("%s reached terminal status %q after %d attempts", p.Name, res.Status, attempt)
			}
			return fmt.Errorf("%s not ready after %d attempts (last status %q)", p.Name, attempt, res.Status)
		case OutcomeGiveUp:
			status.Send(ctx, status.NewUpdate(status.LevelWarning, fmt.Sprintf("%s not ready after %d attempts, continuing", p.Name, attempt)).
				WithResource(p.Name).
				WithAction("timeout").
				WithMetadata("last_status", res.Status))
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for %s interrupted: %w", p.Name, ctx.Err())
		case <-ticker.C:
		}
	}
}

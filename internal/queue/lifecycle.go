package queue

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/queuectl/queuectl/internal/core"
)

const maxLastErrorLen = 4000

// Complete marks a job COMPLETED.
func (e *Engine) Complete(ctx context.Context, jobID string) error {
	return e.store.CompleteJob(ctx, jobID, e.clock.Now())
}

// FailOrRetry records a failed execution attempt. It increments
// attempts once (computed exactly once, against a single "now"), and
// either schedules a retry with a deterministic backoff delay or
// dead-letters the job once attempts reach max_retries. The delay
// formula is min(backoff_base^attempts', max_backoff_seconds) with
// plain integer arithmetic — no jitter, so the resulting next_run_at
// is reproducible for a given attempts count.
func (e *Engine) FailOrRetry(ctx context.Context, jobID string, lastError string) (deadLettered bool, err error) {
	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return false, fmt.Errorf("fail or retry: %w", err)
	}

	backoffBase, err := e.intConfig(ctx, core.ConfigBackoffBase)
	if err != nil {
		return false, fmt.Errorf("fail or retry: %w", err)
	}
	maxBackoff, err := e.intConfig(ctx, core.ConfigMaxBackoffSecs)
	if err != nil {
		return false, fmt.Errorf("fail or retry: %w", err)
	}

	now := e.clock.Now()
	attempts := job.Attempts + 1
	truncated := truncateError(lastError)

	if attempts >= job.MaxRetries {
		err = e.store.FailOrRetryJob(ctx, jobID, core.JobDead, attempts, now, truncated, now)
		return true, err
	}

	delay := backoffDelay(backoffBase, attempts, maxBackoff)
	nextRunAt := now.Add(time.Duration(delay) * time.Second)
	// FAILED is the between-attempts waiting state: next_run_at carries
	// the backoff delay, and ClaimNext's predicate matches FAILED rows
	// once next_run_at elapses, same as it matches PENDING rows.
	err = e.store.FailOrRetryJob(ctx, jobID, core.JobFailed, attempts, nextRunAt, truncated, now)
	return false, err
}

// backoffDelay computes min(base^attempts, maxDelay) with integer math.
func backoffDelay(base, attempts, maxDelay int) int {
	delay := int(math.Pow(float64(base), float64(attempts)))
	if delay > maxDelay || delay < 0 {
		return maxDelay
	}
	return delay
}

func truncateError(s string) string {
	if len(s) <= maxLastErrorLen {
		return s
	}
	return s[:maxLastErrorLen]
}

// Heartbeat records that workerID is still alive. Called once per
// poll iteration; it does not extend any job's lease.
func (e *Engine) Heartbeat(ctx context.Context, workerID, hostname string, pid int) error {
	return e.store.Heartbeat(ctx, workerID, hostname, pid, e.clock.Now())
}

// DLQRetry resets a DEAD job back to PENDING for another attempt.
func (e *Engine) DLQRetry(ctx context.Context, jobID string) error {
	return e.store.RetryDeadJob(ctx, jobID, e.clock.Now())
}

// DiscardDeadLetter annotates a DEAD job with a reviewer note without
// changing its state. Additive operation, not present in the
// original's dead-letter command set.
func (e *Engine) DiscardDeadLetter(ctx context.Context, jobID, note string) error {
	return e.store.DiscardDeadJob(ctx, jobID, note, e.clock.Now())
}

// Package worker runs the claim/execute/transition loop: one process,
// one worker id, polling the queue until told to stop.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/queuectl/queuectl/internal/core"
	"github.com/queuectl/queuectl/internal/executor"
	"github.com/queuectl/queuectl/internal/paths"
)

// Queue is the subset of internal/queue.Engine the worker loop needs.
// Declared here, in the consumer package, rather than in the queue
// package — the same dependency-inversion shape used throughout this
// codebase's storage/application boundary.
type Queue interface {
	Claim(ctx context.Context, workerID string) (*core.Job, error)
	Complete(ctx context.Context, jobID string) error
	FailOrRetry(ctx context.Context, jobID string, lastError string) (deadLettered bool, err error)
	Heartbeat(ctx context.Context, workerID, hostname string, pid int) error
	ConfigValue(ctx context.Context, key string) (string, error)
}

// Loop is one worker process's poll/claim/execute/transition cycle.
type Loop struct {
	queue    Queue
	exec     executor.Executor
	workerID string
	hostname string
	pid      int
}

// Option configures a Loop.
type Option func(*Loop)

// WithExecutor overrides the default shell executor, mainly for tests.
func WithExecutor(e executor.Executor) Option {
	return func(l *Loop) { l.exec = e }
}

// WithWorkerID overrides the generated worker id.
func WithWorkerID(id string) Option {
	return func(l *Loop) { l.workerID = id }
}

// New builds a Loop over queue, generating a worker id of the form
// worker-<hostname>-<pid>-<uuid8>, the same shape as the original
// implementation's make_worker_id but with a uuid suffix in place of
// a random 4-digit number.
func New(q Queue, opts ...Option) *Loop {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	pid := os.Getpid()
	l := &Loop{
		queue:    q,
		exec:     executor.Shell{},
		hostname: hostname,
		pid:      pid,
		workerID: fmt.Sprintf("worker-%s-%d-%s", hostname, pid, uuid.NewString()[:8]),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// WorkerID returns this loop's worker id.
func (l *Loop) WorkerID() string { return l.workerID }

// Run polls until ctx is cancelled or the cooperative stop flag is
// set. The stop flag is checked once per iteration, never
// mid-execution, matching the original implementation's
// worker_loop(stop_flag_path).
func (l *Loop) Run(ctx context.Context) error {
	slog.InfoContext(ctx, "worker starting", "worker_id", l.workerID)
	defer slog.InfoContext(ctx, "worker stopped", "worker_id", l.workerID)
	defer l.finalHeartbeat()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		stop, err := paths.StopRequested()
		if err != nil {
			return fmt.Errorf("check stop flag: %w", err)
		}
		if stop {
			return nil
		}

		if err := l.queue.Heartbeat(ctx, l.workerID, l.hostname, l.pid); err != nil {
			slog.ErrorContext(ctx, "heartbeat failed", "worker_id", l.workerID, "error", err)
			return fmt.Errorf("heartbeat: %w", err)
		}

		claimed, err := l.runOnce(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "process iteration failed", "worker_id", l.workerID, "error", err)
			return err
		}
		if !claimed {
			if err := l.sleep(ctx); err != nil {
				return nil
			}
		}
	}
}

// finalHeartbeat sends one best-effort heartbeat on exit, on a fresh
// context since ctx passed to Run may already be cancelled. A store
// that is gone or unreachable by the time the worker is exiting is
// not a reason to fail shutdown, so errors are only logged.
func (l *Loop) finalHeartbeat() {
	hbCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.queue.Heartbeat(hbCtx, l.workerID, l.hostname, l.pid); err != nil {
		slog.WarnContext(hbCtx, "final heartbeat failed", "worker_id", l.workerID, "error", err)
	}
}

func (l *Loop) sleep(ctx context.Context) error {
	interval, err := l.queue.ConfigValue(ctx, core.ConfigPollIntervalMS)
	if err != nil {
		interval = "500"
	}
	ms := parseMillis(interval)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Duration(ms) * time.Millisecond):
		return nil
	}
}

func parseMillis(s string) int64 {
	var ms int64
	for _, r := range s {
		if r < '0' || r > '9' {
			return 500
		}
		ms = ms*10 + int64(r-'0')
	}
	if ms == 0 {
		return 500
	}
	return ms
}

// runOnce claims at most one job and runs it to completion, reporting
// whether a job was claimed.
func (l *Loop) runOnce(ctx context.Context) (claimed bool, err error) {
	job, err := l.queue.Claim(ctx, l.workerID)
	if err != nil {
		return false, fmt.Errorf("claim: %w", err)
	}
	if job == nil {
		return false, nil
	}

	slog.InfoContext(ctx, "job claimed", "worker_id", l.workerID, "job_id", job.ID, "attempt", job.Attempts+1)

	result, execErr := l.executeWithRecovery(ctx, job.Command)
	if execErr != nil {
		if _, err := l.queue.FailOrRetry(ctx, job.ID, execErr.Error()); err != nil {
			return true, fmt.Errorf("fail or retry after execution error: %w", err)
		}
		return true, nil
	}

	if result.Succeeded() {
		if err := l.queue.Complete(ctx, job.ID); err != nil {
			return true, fmt.Errorf("complete: %w", err)
		}
		slog.InfoContext(ctx, "job completed", "worker_id", l.workerID, "job_id", job.ID)
		return true, nil
	}

	dead, err := l.queue.FailOrRetry(ctx, job.ID, result.Message())
	if err != nil {
		return true, fmt.Errorf("fail or retry: %w", err)
	}
	if dead {
		slog.WarnContext(ctx, "job dead-lettered", "worker_id", l.workerID, "job_id", job.ID)
	} else {
		slog.WarnContext(ctx, "job failed, will retry", "worker_id", l.workerID, "job_id", job.ID)
	}
	return true, nil
}

// executeWithRecovery runs command through the configured Executor,
// converting a panic inside a custom Executor into an error so it
// flows through the same attempts/backoff state machine as an
// ordinary command failure, rather than crashing the worker process.
func (l *Loop) executeWithRecovery(ctx context.Context, command string) (res executor.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("executor panic: %v", r)
		}
	}()
	res, err = l.exec.Run(ctx, command)
	return res, err
}

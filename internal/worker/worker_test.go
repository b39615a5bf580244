package worker_test

import (
	"context"
	"errors"
	"testing"

	"github.com/queuectl/queuectl/internal/core"
	"github.com/queuectl/queuectl/internal/executor"
	"github.com/queuectl/queuectl/internal/worker"
)

// mockQueue implements worker.Queue with one function field per
// method, the same fake-struct pattern the teacher's worker tests use.
type mockQueue struct {
	claimFunc       func(ctx context.Context, workerID string) (*core.Job, error)
	completeFunc    func(ctx context.Context, jobID string) error
	failOrRetryFunc func(ctx context.Context, jobID, lastError string) (bool, error)
	heartbeatFunc   func(ctx context.Context, workerID, hostname string, pid int) error
	configFunc      func(ctx context.Context, key string) (string, error)
}

func (m *mockQueue) Claim(ctx context.Context, workerID string) (*core.Job, error) {
	return m.claimFunc(ctx, workerID)
}
func (m *mockQueue) Complete(ctx context.Context, jobID string) error {
	return m.completeFunc(ctx, jobID)
}
func (m *mockQueue) FailOrRetry(ctx context.Context, jobID, lastError string) (bool, error) {
	return m.failOrRetryFunc(ctx, jobID, lastError)
}
func (m *mockQueue) Heartbeat(ctx context.Context, workerID, hostname string, pid int) error {
	return m.heartbeatFunc(ctx, workerID, hostname, pid)
}
func (m *mockQueue) ConfigValue(ctx context.Context, key string) (string, error) {
	if m.configFunc != nil {
		return m.configFunc(ctx, key)
	}
	return "500", nil
}

type fakeExecutor struct {
	result executor.Result
	err    error
	panics bool
}

func (f fakeExecutor) Run(ctx context.Context, command string) (executor.Result, error) {
	if f.panics {
		panic("boom")
	}
	return f.result, f.err
}

func TestRunOnceCompletesSuccessfulJob(t *testing.T) {
	ctx := context.Background()
	job := &core.Job{ID: "j1", Command: "true"}
	completed := false

	q := &mockQueue{
		claimFunc: func(ctx context.Context, workerID string) (*core.Job, error) { return job, nil },
		completeFunc: func(ctx context.Context, jobID string) error {
			completed = true
			if jobID != "j1" {
				t.Fatalf("unexpected job id %q", jobID)
			}
			return nil
		},
		failOrRetryFunc: func(ctx context.Context, jobID, lastError string) (bool, error) {
			t.Fatal("should not fail a successful job")
			return false, nil
		},
		heartbeatFunc: func(ctx context.Context, workerID, hostname string, pid int) error { return nil },
	}

	loop := worker.New(q, worker.WithExecutor(fakeExecutor{result: executor.Result{ExitCode: 0}}))

	// Run polls until the stop flag or ctx is cancelled; stop it right
	// after the one job we care about has been claimed and processed.
	claims := 0
	q.claimFunc = func(ctx context.Context, workerID string) (*core.Job, error) {
		claims++
		if claims > 1 {
			return nil, nil
		}
		return job, nil
	}

	runCtx, stop := context.WithCancel(ctx)
	q.heartbeatFunc = func(ctx context.Context, workerID, hostname string, pid int) error {
		if claims >= 1 {
			stop()
		}
		return nil
	}
	_ = loop.Run(runCtx)

	if !completed {
		t.Fatal("expected job to complete")
	}
}

func TestRunOnceRetriesFailedCommand(t *testing.T) {
	ctx := context.Background()
	job := &core.Job{ID: "j2", Command: "false"}
	var gotLastError string

	claims := 0
	q := &mockQueue{
		claimFunc: func(ctx context.Context, workerID string) (*core.Job, error) {
			claims++
			if claims > 1 {
				return nil, nil
			}
			return job, nil
		},
		completeFunc: func(ctx context.Context, jobID string) error {
			t.Fatal("should not complete a failed job")
			return nil
		},
		failOrRetryFunc: func(ctx context.Context, jobID, lastError string) (bool, error) {
			gotLastError = lastError
			return false, nil
		},
	}
	ctx, cancel := context.WithCancel(ctx)
	q.heartbeatFunc = func(ctx context.Context, workerID, hostname string, pid int) error {
		if claims >= 1 {
			cancel()
		}
		return nil
	}

	loop := worker.New(q, worker.WithExecutor(fakeExecutor{result: executor.Result{ExitCode: 1, Stderr: "nope"}}))
	_ = loop.Run(ctx)

	if gotLastError != "nope" {
		t.Fatalf("expected stderr to become last_error, got %q", gotLastError)
	}
}

func TestRunOnceRoutesExecutorPanicThroughFailOrRetry(t *testing.T) {
	ctx := context.Background()
	job := &core.Job{ID: "j3", Command: "whatever"}
	var routed bool

	claims := 0
	q := &mockQueue{
		claimFunc: func(ctx context.Context, workerID string) (*core.Job, error) {
			claims++
			if claims > 1 {
				return nil, nil
			}
			return job, nil
		},
		failOrRetryFunc: func(ctx context.Context, jobID, lastError string) (bool, error) {
			routed = true
			return false, nil
		},
	}
	ctx, cancel := context.WithCancel(ctx)
	q.heartbeatFunc = func(ctx context.Context, workerID, hostname string, pid int) error {
		if claims >= 1 {
			cancel()
		}
		return nil
	}

	loop := worker.New(q, worker.WithExecutor(fakeExecutor{panics: true}))
	_ = loop.Run(ctx)

	if !routed {
		t.Fatal("expected panic to be recovered and routed to FailOrRetry")
	}
}

func TestRunStopsOnHeartbeatError(t *testing.T) {
	ctx := context.Background()
	wantErr := errors.New("store down")
	q := &mockQueue{
		heartbeatFunc: func(ctx context.Context, workerID, hostname string, pid int) error { return wantErr },
	}
	loop := worker.New(q)
	err := loop.Run(ctx)
	if err == nil {
		t.Fatal("expected Run to surface the heartbeat error")
	}
}

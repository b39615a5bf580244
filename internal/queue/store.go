// Package queue implements the claim protocol, retry/backoff lifecycle,
// and inspection operations over the embedded store.
package queue

import (
	"context"
	"time"

	"github.com/queuectl/queuectl/internal/core"
)

// Store is the persistence contract the engine needs. It is owned by
// this package (the consumer), not by internal/store (the provider),
// the same dependency-inversion shape as the teacher's
// worker.Repository interface: only the methods the engine actually
// calls are named here.
type Store interface {
	InsertJob(ctx context.Context, job core.Job) error
	ClaimNext(ctx context.Context, workerID string, leaseSeconds int, now time.Time) (*core.Job, error)
	CompleteJob(ctx context.Context, id string, now time.Time) error
	FailOrRetryJob(ctx context.Context, id string, newState core.JobState, attempts int, nextRunAt time.Time, lastError string, now time.Time) error
	RetryDeadJob(ctx context.Context, id string, now time.Time) error
	DiscardDeadJob(ctx context.Context, id string, note string, now time.Time) error
	Heartbeat(ctx context.Context, workerID, hostname string, pid int, now time.Time) error
	GetJob(ctx context.Context, id string) (*core.Job, error)
	ListJobs(ctx context.Context, state core.JobState) ([]core.Job, error)
	ListDeadJobs(ctx context.Context) ([]core.Job, error)
	CountsByState(ctx context.Context) (map[core.JobState]int, error)
	ListWorkers(ctx context.Context) ([]core.Worker, error)
	ConfigValue(ctx context.Context, key, def string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
	AllConfig(ctx context.Context) (map[string]string, error)
}

package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/queuectl/queuectl/internal/core"
	"github.com/queuectl/queuectl/internal/ptr"
)

// EnqueueRequest carries an enqueue call's payload plus any CLI-level
// overrides. Resolution order for MaxRetries and Priority is:
// CLI override, then payload value, then a default (the max_retries
// config value for MaxRetries, the constant 5 for Priority).
type EnqueueRequest struct {
	ID      string
	Command string

	// Payload-level values (e.g. parsed out of a --file JSON document).
	PayloadMaxRetries *int
	PayloadPriority   *int

	// CLI-level overrides, take precedence over payload values.
	OverrideMaxRetries *int
	OverridePriority   *int

	// Scheduling: DelaySeconds takes precedence over RunAt, which
	// takes precedence over "now".
	RunAt        *time.Time
	DelaySeconds *int
}

const defaultPriority = 5

// Enqueue validates req and inserts a new PENDING job.
func (e *Engine) Enqueue(ctx context.Context, req EnqueueRequest) (*core.Job, error) {
	if req.ID == "" || req.Command == "" {
		return nil, fmt.Errorf("%w: id and command are required", core.ErrBadPayload)
	}

	maxRetries, err := e.resolveMaxRetries(ctx, req)
	if err != nil {
		return nil, err
	}
	priority := resolvePriority(req)
	now := e.clock.Now()
	nextRunAt := resolveSchedule(req, now)

	job := core.Job{
		ID:         req.ID,
		Command:    req.Command,
		State:      core.JobPending,
		Attempts:   0,
		MaxRetries: maxRetries,
		Priority:   priority,
		CreatedAt:  now,
		UpdatedAt:  now,
		NextRunAt:  nextRunAt,
	}
	if err := e.store.InsertJob(ctx, job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (e *Engine) resolveMaxRetries(ctx context.Context, req EnqueueRequest) (int, error) {
	if req.OverrideMaxRetries != nil {
		return *req.OverrideMaxRetries, nil
	}
	if req.PayloadMaxRetries != nil {
		return *req.PayloadMaxRetries, nil
	}
	return e.intConfig(ctx, core.ConfigMaxRetries)
}

func resolvePriority(req EnqueueRequest) int {
	return ptr.Deref(req.OverridePriority, ptr.Deref(req.PayloadPriority, defaultPriority))
}

func resolveSchedule(req EnqueueRequest, now time.Time) time.Time {
	if req.DelaySeconds != nil {
		return now.Add(time.Duration(*req.DelaySeconds) * time.Second)
	}
	return ptr.Deref(req.RunAt, now)
}

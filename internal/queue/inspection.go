package queue

import (
	"context"
	"fmt"

	"github.com/queuectl/queuectl/internal/core"
)

// StatusReport summarizes queue health: job counts per state plus the
// known worker fleet.
type StatusReport struct {
	Counts  map[core.JobState]int
	Workers []core.Worker
}

// Status returns per-state job counts and the worker table.
func (e *Engine) Status(ctx context.Context) (*StatusReport, error) {
	counts, err := e.store.CountsByState(ctx)
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	workers, err := e.store.ListWorkers(ctx)
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	return &StatusReport{Counts: counts, Workers: workers}, nil
}

// List returns every job in the given state. Returns core.ErrBadState
// if state isn't one of the known job states.
func (e *Engine) List(ctx context.Context, state core.JobState) ([]core.Job, error) {
	if !state.Valid() {
		return nil, fmt.Errorf("%w: %q", core.ErrBadState, state)
	}
	jobs, err := e.store.ListJobs(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	return jobs, nil
}

// DLQList returns every DEAD job, most recently dead-lettered first.
func (e *Engine) DLQList(ctx context.Context) ([]core.Job, error) {
	jobs, err := e.store.ListDeadJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("dlq list: %w", err)
	}
	return jobs, nil
}

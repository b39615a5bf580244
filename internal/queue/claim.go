package queue

import (
	"context"
	"fmt"

	"github.com/queuectl/queuectl/internal/core"
)

// Claim atomically claims one eligible job for workerID: a PENDING or
// FAILED job whose next_run_at has arrived, or a PROCESSING job whose
// lease has expired (abandoned by a dead worker). Returns (nil, nil) when
// nothing is claimable.
func (e *Engine) Claim(ctx context.Context, workerID string) (*core.Job, error) {
	leaseSeconds, err := e.intConfig(ctx, core.ConfigLeaseSeconds)
	if err != nil {
		return nil, fmt.Errorf("claim: %w", err)
	}
	job, err := e.store.ClaimNext(ctx, workerID, leaseSeconds, e.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("claim: %w", err)
	}
	return job, nil
}

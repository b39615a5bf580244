package store_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queuectl/queuectl/internal/core"
	"github.com/queuectl/queuectl/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()
	st, err := store.OpenSQLite(ctx, filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestSeedsConfigDefaults(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	v, err := st.ConfigValue(ctx, core.ConfigMaxRetries, "nope")
	require.NoError(t, err)
	assert.Equal(t, "3", v)

	all, err := st.AllConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.DefaultConfig(), all)
}

func TestInsertJobRejectsDuplicateID(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	now := time.Now().UTC()

	job := core.Job{ID: "dup", Command: "true", State: core.JobPending, MaxRetries: 3, Priority: 5, CreatedAt: now, UpdatedAt: now, NextRunAt: now}
	require.NoError(t, st.InsertJob(ctx, job))

	err := st.InsertJob(ctx, job)
	assert.ErrorIs(t, err, core.ErrDuplicate)
}

func TestClaimOrdersByPriorityThenAge(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	now := time.Now().UTC()

	low := core.Job{ID: "low-priority", Command: "true", State: core.JobPending, MaxRetries: 3, Priority: 9, CreatedAt: now, UpdatedAt: now, NextRunAt: now}
	high := core.Job{ID: "high-priority", Command: "true", State: core.JobPending, MaxRetries: 3, Priority: 1, CreatedAt: now.Add(time.Second), UpdatedAt: now, NextRunAt: now}
	require.NoError(t, st.InsertJob(ctx, low))
	require.NoError(t, st.InsertJob(ctx, high))

	claimed, err := st.ClaimNext(ctx, "worker-a", 60, now.Add(time.Minute))
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, "high-priority", claimed.ID, "lower priority number wins even though it was enqueued later")
}

func TestClaimReturnsNilWhenNothingEligible(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	claimed, err := st.ClaimNext(ctx, "worker-a", 60, time.Now().UTC())
	require.NoError(t, err)
	assert.Nil(t, claimed)
}

func TestDiscardDeadJobRequiresDeadState(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	now := time.Now().UTC()

	job := core.Job{ID: "alive", Command: "true", State: core.JobPending, MaxRetries: 3, Priority: 5, CreatedAt: now, UpdatedAt: now, NextRunAt: now}
	require.NoError(t, st.InsertJob(ctx, job))

	err := st.DiscardDeadJob(ctx, "alive", "not needed", now)
	assert.ErrorIs(t, err, core.ErrNotDead)
}

// TestClaimExclusiveUnderContention exercises testable property #1:
// of many concurrent claimers racing one eligible row, exactly one
// wins, grounded on the six-step select-then-conditional-UPDATE CAS
// in ClaimNext.
func TestClaimExclusiveUnderContention(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	now := time.Now().UTC()

	job := core.Job{ID: "contended", Command: "true", State: core.JobPending, MaxRetries: 3, Priority: 5, CreatedAt: now, UpdatedAt: now, NextRunAt: now}
	require.NoError(t, st.InsertJob(ctx, job))

	const claimers = 16
	var wins int64
	var wg sync.WaitGroup
	wg.Add(claimers)
	for i := 0; i < claimers; i++ {
		go func(n int) {
			defer wg.Done()
			claimed, err := st.ClaimNext(ctx, fmt.Sprintf("worker-%d", n), 60, now)
			assert.NoError(t, err)
			if claimed != nil {
				atomic.AddInt64(&wins, 1)
			}
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins, "exactly one claimer should win the race")
}

func TestHeartbeatUpsertsWorker(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	t1 := time.Now().UTC()
	t2 := t1.Add(time.Minute)

	require.NoError(t, st.Heartbeat(ctx, "worker-x", "host-a", 123, t1))
	require.NoError(t, st.Heartbeat(ctx, "worker-x", "host-a", 123, t2))

	workers, err := st.ListWorkers(ctx)
	require.NoError(t, err)
	require.Len(t, workers, 1)
	assert.Equal(t, "worker-x", workers[0].ID)
}

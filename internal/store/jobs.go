package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/queuectl/queuectl/internal/clock"
	"github.com/queuectl/queuectl/internal/core"
)

// InsertJob inserts a new job row. Uniqueness is enforced by first
// checking for an existing row inside the same transaction, matching
// the CAS-style idiom the claim query uses rather than sniffing
// driver-specific unique-constraint error codes.
func (s *Store) InsertJob(ctx context.Context, job core.Job) error {
	tx, err := s.beginImmediate(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var exists int
	err = tx.QueryRowContext(ctx, placeholder(s.driver, `SELECT 1 FROM jobs WHERE id = ?`), job.ID).Scan(&exists)
	if err == nil {
		return core.ErrDuplicate
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("check existing job: %w", err)
	}

	_, err = tx.ExecContext(ctx, placeholder(s.driver, `
		INSERT INTO jobs (id, command, state, attempts, max_retries, priority, created_at, updated_at, next_run_at, last_error, worker_id, lease_expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, NULL, NULL)`),
		job.ID, job.Command, string(job.State), job.Attempts, job.MaxRetries, job.Priority,
		clock.Format(job.CreatedAt), clock.Format(job.UpdatedAt), clock.Format(job.NextRunAt))
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return tx.Commit(ctx)
}

// ClaimNext implements the six-step claim CAS: select one eligible
// row ordered by priority then age, conditionally update it re-
// asserting the same eligibility predicate, and return nil if another
// claimer won the race (zero rows affected). A row is eligible when
// it is PENDING or FAILED with next_run_at elapsed (FAILED is the
// between-attempts waiting state, not a resting state), or PROCESSING
// with an expired lease.
func (s *Store) ClaimNext(ctx context.Context, workerID string, leaseSeconds int, now time.Time) (*core.Job, error) {
	tx, err := s.beginImmediate(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	nowText := clock.Format(now)
	row := tx.QueryRowContext(ctx, placeholder(s.driver, `
		SELECT id FROM jobs
		WHERE (state = 'PENDING' AND next_run_at <= ?)
		   OR (state = 'FAILED' AND next_run_at <= ?)
		   OR (state = 'PROCESSING' AND lease_expires_at <= ?)
		ORDER BY priority ASC, created_at ASC, id ASC
		LIMIT 1`), nowText, nowText, nowText)

	var id string
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select claimable job: %w", err)
	}

	leaseExpires := now.Add(time.Duration(leaseSeconds) * time.Second)
	res, err := tx.ExecContext(ctx, placeholder(s.driver, `
		UPDATE jobs SET state = 'PROCESSING', worker_id = ?, lease_expires_at = ?, updated_at = ?
		WHERE id = ?
		  AND ((state = 'PENDING' AND next_run_at <= ?)
		   OR (state = 'FAILED' AND next_run_at <= ?)
		   OR (state = 'PROCESSING' AND lease_expires_at <= ?))`),
		workerID, clock.Format(leaseExpires), nowText, id, nowText, nowText, nowText)
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		// Lost the race to another claimer between select and update.
		return nil, nil
	}

	job, err := scanJobRow(tx.QueryRowContext(ctx, placeholder(s.driver, jobColumns+` FROM jobs WHERE id = ?`), id))
	if err != nil {
		return nil, fmt.Errorf("fetch claimed job: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}
	return job, nil
}

// CompleteJob marks a job COMPLETED and releases its lease.
func (s *Store) CompleteJob(ctx context.Context, id string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, placeholder(s.driver, `
		UPDATE jobs SET state = 'COMPLETED', worker_id = NULL, lease_expires_at = NULL, updated_at = ?
		WHERE id = ?`), clock.Format(now), id)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

// FailOrRetryJob transitions a job to FAILED (with a future next_run_at)
// or DEAD, recording the attempt count and last error. The caller
// (internal/queue) has already decided newState and nextRunAt.
func (s *Store) FailOrRetryJob(ctx context.Context, id string, newState core.JobState, attempts int, nextRunAt time.Time, lastError string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, placeholder(s.driver, `
		UPDATE jobs
		SET state = ?, attempts = ?, next_run_at = ?, last_error = ?, worker_id = NULL, lease_expires_at = NULL, updated_at = ?
		WHERE id = ?`),
		string(newState), attempts, clock.Format(nextRunAt), lastError, clock.Format(now), id)
	if err != nil {
		return fmt.Errorf("fail or retry job: %w", err)
	}
	return nil
}

// RetryDeadJob resets a DEAD job back to PENDING, clearing attempts
// and last_error. Returns core.ErrNotDead if the row isn't DEAD.
func (s *Store) RetryDeadJob(ctx context.Context, id string, now time.Time) error {
	res, err := s.db.ExecContext(ctx, placeholder(s.driver, `
		UPDATE jobs SET state = 'PENDING', attempts = 0, last_error = NULL, next_run_at = ?, updated_at = ?
		WHERE id = ? AND state = 'DEAD'`), clock.Format(now), clock.Format(now), id)
	if err != nil {
		return fmt.Errorf("retry dead job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		if _, getErr := s.GetJob(ctx, id); getErr != nil {
			return getErr
		}
		return core.ErrNotDead
	}
	return nil
}

// DiscardDeadJob appends a reviewer note to last_error without
// changing state; a DEAD job stays DEAD either way.
func (s *Store) DiscardDeadJob(ctx context.Context, id string, note string, now time.Time) error {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if job.State != core.JobDead {
		return core.ErrNotDead
	}
	annotated := job.LastError + fmt.Sprintf(" [discarded: %s]", note)
	_, err = s.db.ExecContext(ctx, placeholder(s.driver, `
		UPDATE jobs SET last_error = ?, updated_at = ? WHERE id = ? AND state = 'DEAD'`),
		annotated, clock.Format(now), id)
	if err != nil {
		return fmt.Errorf("discard dead job: %w", err)
	}
	return nil
}

// GetJob fetches one job by id.
func (s *Store) GetJob(ctx context.Context, id string) (*core.Job, error) {
	row := s.db.QueryRowContext(ctx, placeholder(s.driver, jobColumns+` FROM jobs WHERE id = ?`), id)
	job, err := scanJobRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ListJobs returns every job in the given state, oldest first.
func (s *Store) ListJobs(ctx context.Context, state core.JobState) ([]core.Job, error) {
	rows, err := s.db.QueryContext(ctx, placeholder(s.driver, jobColumns+` FROM jobs WHERE state = ? ORDER BY created_at ASC`), string(state))
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()
	return scanJobRows(rows)
}

// ListDeadJobs returns every DEAD job, most recently dead-lettered first.
func (s *Store) ListDeadJobs(ctx context.Context) ([]core.Job, error) {
	rows, err := s.db.QueryContext(ctx, placeholder(s.driver, jobColumns+` FROM jobs WHERE state = 'DEAD' ORDER BY updated_at DESC`))
	if err != nil {
		return nil, fmt.Errorf("list dead jobs: %w", err)
	}
	defer rows.Close()
	return scanJobRows(rows)
}

// CountsByState returns the number of jobs in each state.
func (s *Store) CountsByState(ctx context.Context) (map[core.JobState]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(*) FROM jobs GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("count jobs by state: %w", err)
	}
	defer rows.Close()

	counts := map[core.JobState]int{}
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, fmt.Errorf("scan count row: %w", err)
		}
		counts[core.JobState(state)] = n
	}
	return counts, rows.Err()
}

const jobColumns = `SELECT id, command, state, attempts, max_retries, priority, created_at, updated_at, next_run_at, last_error, worker_id, lease_expires_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanJobRow(row scanner) (*core.Job, error) {
	var j core.Job
	var createdAt, updatedAt, nextRunAt string
	var lastError, workerID, leaseExpires sql.NullString

	err := row.Scan(&j.ID, &j.Command, &j.State, &j.Attempts, &j.MaxRetries, &j.Priority,
		&createdAt, &updatedAt, &nextRunAt, &lastError, &workerID, &leaseExpires)
	if err != nil {
		return nil, err
	}
	if j.CreatedAt, err = clock.Parse(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if j.UpdatedAt, err = clock.Parse(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	if j.NextRunAt, err = clock.Parse(nextRunAt); err != nil {
		return nil, fmt.Errorf("parse next_run_at: %w", err)
	}
	j.LastError = lastError.String
	j.WorkerID = workerID.String
	if leaseExpires.Valid {
		if j.LeaseExpiresAt, err = clock.Parse(leaseExpires.String); err != nil {
			return nil, fmt.Errorf("parse lease_expires_at: %w", err)
		}
	}
	return &j, nil
}

func scanJobRows(rows *sql.Rows) ([]core.Job, error) {
	var jobs []core.Job
	for rows.Next() {
		j, err := scanJobRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

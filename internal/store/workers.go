package store

import (
	"context"
	"fmt"
	"time"

	"github.com/queuectl/queuectl/internal/clock"
	"github.com/queuectl/queuectl/internal/core"
)

// Heartbeat upserts a worker's row, recording that it is still alive.
// Called once per poll iteration, never mid-execution.
func (s *Store) Heartbeat(ctx context.Context, workerID, hostname string, pid int, now time.Time) error {
	nowText := clock.Format(now)
	if s.driver == "pgx" {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO workers (id, started_at, last_heartbeat_at, hostname, pid)
			VALUES ($1, $2, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET last_heartbeat_at = $2`,
			workerID, nowText, hostname, pid)
		if err != nil {
			return fmt.Errorf("heartbeat: %w", err)
		}
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workers (id, started_at, last_heartbeat_at, hostname, pid)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET last_heartbeat_at = excluded.last_heartbeat_at`,
		workerID, nowText, nowText, hostname, pid)
	if err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	return nil
}

// ListWorkers returns every known worker, most recently seen first.
func (s *Store) ListWorkers(ctx context.Context) ([]core.Worker, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, last_heartbeat_at, hostname, pid FROM workers
		ORDER BY last_heartbeat_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list workers: %w", err)
	}
	defer rows.Close()

	var workers []core.Worker
	for rows.Next() {
		var w core.Worker
		var started, lastSeen string
		if err := rows.Scan(&w.ID, &started, &lastSeen, &w.Hostname, &w.PID); err != nil {
			return nil, fmt.Errorf("scan worker row: %w", err)
		}
		if w.StartedAt, err = clock.Parse(started); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if w.LastHeartbeatAt, err = clock.Parse(lastSeen); err != nil {
			return nil, fmt.Errorf("parse last_heartbeat_at: %w", err)
		}
		workers = append(workers, w)
	}
	return workers, rows.Err()
}

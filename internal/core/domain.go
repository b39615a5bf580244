// Package core defines the job queue's domain types: jobs, workers, and
// the configuration keys that govern claim/retry behavior.
package core

import "time"

// JobState is the lifecycle state of a job.
type JobState string

const (
	JobPending    JobState = "PENDING"
	JobProcessing JobState = "PROCESSING"
	JobCompleted  JobState = "COMPLETED"
	JobFailed     JobState = "FAILED"
	JobDead       JobState = "DEAD"
)

// ValidStates lists every state the list/status operations accept.
var ValidStates = []JobState{JobPending, JobProcessing, JobCompleted, JobFailed, JobDead}

// Valid reports whether s is one of the known job states.
func (s JobState) Valid() bool {
	for _, v := range ValidStates {
		if v == s {
			return true
		}
	}
	return false
}

// Job is a single unit of work: a shell command plus its retry and
// scheduling state. Timestamps are UTC, stored and compared using the
// canonical text form defined by internal/clock.
type Job struct {
	ID             string
	Command        string
	State          JobState
	Attempts       int
	MaxRetries     int
	Priority       int
	CreatedAt      time.Time
	UpdatedAt      time.Time
	NextRunAt      time.Time
	LastError      string
	WorkerID       string
	LeaseExpiresAt time.Time
}

// Worker is a row in the workers table: one per worker process that has
// ever sent a heartbeat, refreshed once per poll iteration. Rows are
// never deleted, so a stopped worker's row stays with its last heartbeat.
type Worker struct {
	ID              string
	StartedAt       time.Time
	LastHeartbeatAt time.Time
	Hostname        string
	PID             int
}

// Config keys stored in the store's config table, with their defaults.
// Names match the original implementation's so an existing data
// directory stays compatible.
const (
	ConfigMaxRetries     = "max_retries"
	ConfigBackoffBase    = "backoff_base"
	ConfigPollIntervalMS = "poll_interval_ms"
	ConfigLeaseSeconds   = "lease_seconds"
	ConfigMaxBackoffSecs = "max_backoff_seconds"
)

// DefaultConfig returns the built-in defaults, inserted into the config
// table for any absent key each time a store is opened, and used
// whenever a key is absent.
func DefaultConfig() map[string]string {
	return map[string]string{
		ConfigMaxRetries:     "3",
		ConfigBackoffBase:    "2",
		ConfigPollIntervalMS: "500",
		ConfigLeaseSeconds:   "60",
		ConfigMaxBackoffSecs: "300",
	}
}

// Package config loads queuectl's process-level configuration (database
// backend selection) from the environment, using the same struct-tag
// loader the rest of the mono tree uses.
package config

import (
	"fmt"

	"github.com/queuectl/queuectl/internal/env"
)

// Config holds the environment-derived settings that select and reach
// the backing store. Per-queue tunables (poll interval, lease seconds,
// retry backoff) live in the store's config table instead, since they
// are runtime-adjustable via "queuectl config set" and must be shared
// across every worker process, not just the one that read the environment.
type Config struct {
	DBDriver string `env:"QUEUECTL_DB_DRIVER"` // sqlite or pgx
	DSN      string `env:"QUEUECTL_DSN"`
}

// ErrDSNRequired is returned when QUEUECTL_DB_DRIVER=pgx but QUEUECTL_DSN is unset.
var ErrDSNRequired = fmt.Errorf("QUEUECTL_DSN is required when QUEUECTL_DB_DRIVER=pgx")

// Load reads Config from the environment, defaulting DBDriver to "sqlite".
func Load() (*Config, error) {
	cfg := &Config{DBDriver: "sqlite"}
	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.DBDriver == "pgx" && cfg.DSN == "" {
		return nil, ErrDSNRequired
	}
	return cfg, nil
}

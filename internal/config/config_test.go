package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queuectl/queuectl/internal/config"
)

func TestLoadDefaultsToSQLite(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.DBDriver)
}

func TestLoadRequiresDSNForPgx(t *testing.T) {
	t.Setenv("QUEUECTL_DB_DRIVER", "pgx")
	t.Setenv("QUEUECTL_DSN", "")

	_, err := config.Load()
	assert.ErrorIs(t, err, config.ErrDSNRequired)
}

func TestLoadReadsPgxDSN(t *testing.T) {
	t.Setenv("QUEUECTL_DB_DRIVER", "pgx")
	t.Setenv("QUEUECTL_DSN", "postgres://localhost/queuectl")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/queuectl", cfg.DSN)
}

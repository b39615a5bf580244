package executor_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queuectl/queuectl/internal/executor"
)

func TestShellRunSuccess(t *testing.T) {
	res, err := executor.Shell{}.Run(context.Background(), "echo hello")
	require.NoError(t, err)
	assert.True(t, res.Succeeded())
	assert.Equal(t, "hello\n", res.Stdout)
}

func TestShellRunNonZeroExit(t *testing.T) {
	res, err := executor.Shell{}.Run(context.Background(), "echo oops >&2; exit 3")
	require.NoError(t, err)
	assert.False(t, res.Succeeded())
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "oops\n", res.Message())
}

func TestResultMessageFallsBackToStdoutThenFixedText(t *testing.T) {
	assert.Equal(t, "out", executor.Result{Stdout: "out"}.Message())
	assert.Equal(t, "Command failed (no output)", executor.Result{}.Message())
}

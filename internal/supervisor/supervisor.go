// Package supervisor spawns and supervises a pool of worker OS
// processes, coordinating their shutdown through the cooperative
// stop flag.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/queuectl/queuectl/internal/paths"
)

// RunWorkerArg is the hidden subcommand argument the supervisor execs
// for each worker process.
const RunWorkerArg = "__run-worker"

// Supervisor spawns Count copies of the current executable, each
// running as a worker process, and waits for them to exit.
type Supervisor struct {
	Count      int
	Executable string
}

// New returns a Supervisor that spawns count worker processes by
// re-execing the current binary.
func New(count int) (*Supervisor, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve executable: %w", err)
	}
	return &Supervisor{Count: count, Executable: exe}, nil
}

// Run clears any stale stop flag, spawns Count worker processes, and
// blocks until they all exit or ctx/SIGINT/SIGTERM requests a stop —
// at which point it writes the stop flag and waits for the children
// to drain cooperatively. Translated from the original implementation's
// multiprocessing.Process-based supervisor to Go's os/exec, the direct
// equivalent for supervising separate OS processes.
func (s *Supervisor) Run(ctx context.Context) error {
	if err := paths.ClearStop(); err != nil {
		return fmt.Errorf("clear stale stop flag: %w", err)
	}
	defer paths.ClearStop()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var group errgroup.Group
	for i := 0; i < s.Count; i++ {
		idx := i
		group.Go(func() error {
			cmd := exec.Command(s.Executable, RunWorkerArg)
			cmd.Stdout = os.Stdout
			cmd.Stderr = os.Stderr
			slog.Info("spawning worker process", "index", idx)
			return cmd.Run()
		})
	}

	done := make(chan error, 1)
	go func() { done <- group.Wait() }()

	select {
	case <-sigCtx.Done():
		slog.Info("stop requested, signalling workers")
		if err := paths.RequestStop(); err != nil {
			return fmt.Errorf("request stop: %w", err)
		}
		return <-done
	case err := <-done:
		return err
	}
}

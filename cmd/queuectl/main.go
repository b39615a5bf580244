// Command queuectl enqueues and runs durable shell-command jobs
// against an embedded store.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/queuectl/queuectl/internal/clock"
	"github.com/queuectl/queuectl/internal/config"
	"github.com/queuectl/queuectl/internal/core"
	"github.com/queuectl/queuectl/internal/paths"
	"github.com/queuectl/queuectl/internal/queue"
	"github.com/queuectl/queuectl/internal/store"
	"github.com/queuectl/queuectl/internal/supervisor"
	"github.com/queuectl/queuectl/internal/worker"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx := context.Background()
	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case supervisor.RunWorkerArg:
		err = runWorkerProcess(ctx)
	case "enqueue":
		err = runEnqueue(ctx, args)
	case "status":
		err = runStatus(ctx, args)
	case "list":
		err = runList(ctx, args)
	case "dlq":
		err = runDLQ(ctx, args)
	case "worker":
		err = runWorker(ctx, args)
	case "config":
		err = runConfig(ctx, args)
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("usage: queuectl <enqueue|status|list|dlq|worker|config> [flags]")
}

// openEngine opens the default data-directory store and wraps it in
// a queue.Engine. QUEUECTL_DB_DRIVER=pgx and QUEUECTL_DSN select an
// alternate Postgres backend; sqlite against ~/.queuectl/queue.db is
// the default.
func openEngine(ctx context.Context) (*queue.Engine, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	var st *store.Store
	if cfg.DBDriver == "pgx" {
		st, err = store.OpenPostgres(ctx, cfg.DSN)
	} else {
		var dbPath string
		dbPath, err = paths.DBPath()
		if err != nil {
			return nil, nil, err
		}
		st, err = store.OpenSQLite(ctx, dbPath)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return queue.New(st), func() { st.Close() }, nil
}

func runWorkerProcess(ctx context.Context) error {
	engine, closeFn, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	loop := worker.New(engine)
	slog.Info("worker process starting", "worker_id", loop.WorkerID())
	return loop.Run(ctx)
}

func runEnqueue(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("enqueue", flag.ExitOnError)
	id := fs.String("id", "", "job id (required)")
	command := fs.String("cmd", "", "shell command to run (required unless --file)")
	file := fs.String("file", "", "path to a JSON payload file")
	maxRetries := fs.Int("max-retries", -1, "override max retry attempts")
	priority := fs.Int("priority", -1, "override priority (lower runs first)")
	delay := fs.Int("delay", -1, "delay in seconds before the job becomes eligible")
	runAt := fs.String("run-at", "", "absolute UTC run time, "+clock.Layout)
	fs.Parse(args)

	req := queue.EnqueueRequest{ID: *id, Command: *command}

	if *file != "" {
		payload, err := loadPayload(*file)
		if err != nil {
			return fmt.Errorf("%w: %v", core.ErrBadPayload, err)
		}
		if req.ID == "" {
			req.ID = payload.ID
		}
		if req.Command == "" {
			req.Command = payload.Command
		}
		req.PayloadMaxRetries = payload.MaxRetries
		req.PayloadPriority = payload.Priority
	}

	if *maxRetries >= 0 {
		req.OverrideMaxRetries = maxRetries
	}
	if *priority >= 0 {
		req.OverridePriority = priority
	}
	if *delay >= 0 {
		req.DelaySeconds = delay
	}
	if *runAt != "" {
		t, err := clock.Parse(*runAt)
		if err != nil {
			return fmt.Errorf("%w: bad --run-at: %v", core.ErrBadPayload, err)
		}
		req.RunAt = &t
	}

	engine, closeFn, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	job, err := engine.Enqueue(ctx, req)
	if err != nil {
		return err
	}
	fmt.Printf("enqueued %s (priority=%d max_retries=%d next_run_at=%s)\n",
		job.ID, job.Priority, job.MaxRetries, clock.Format(job.NextRunAt))
	return nil
}

type jsonPayload struct {
	ID         string `json:"id"`
	Command    string `json:"command"`
	MaxRetries *int   `json:"max_retries,omitempty"`
	Priority   *int   `json:"priority,omitempty"`
}

func loadPayload(path string) (*jsonPayload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p jsonPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	if p.ID == "" || p.Command == "" {
		return nil, fmt.Errorf("payload requires id and command")
	}
	return &p, nil
}

func runStatus(ctx context.Context, args []string) error {
	engine, closeFn, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	report, err := engine.Status(ctx)
	if err != nil {
		return err
	}
	fmt.Println("jobs by state:")
	for _, s := range core.ValidStates {
		fmt.Printf("  %-10s %d\n", s, report.Counts[s])
	}
	fmt.Println("workers:")
	now := time.Now().UTC()
	for _, w := range report.Workers {
		age := now.Sub(w.LastHeartbeatAt).Round(time.Second)
		fmt.Printf("  %-30s pid=%-8d last seen %s ago\n", w.ID, w.PID, age)
	}
	return nil
}

func runList(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	state := fs.String("state", "", "job state to list (required)")
	fs.Parse(args)

	engine, closeFn, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	jobs, err := engine.List(ctx, core.JobState(*state))
	if err != nil {
		return err
	}
	printJobs(jobs)
	return nil
}

func printJobs(jobs []core.Job) {
	for _, j := range jobs {
		fmt.Printf("%-36s %-10s attempts=%d/%d priority=%d next_run_at=%s\n",
			j.ID, j.State, j.Attempts, j.MaxRetries, j.Priority, clock.Format(j.NextRunAt))
	}
}

func runDLQ(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: queuectl dlq <list|retry|discard> ...")
	}
	engine, closeFn, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	switch args[0] {
	case "list":
		jobs, err := engine.DLQList(ctx)
		if err != nil {
			return err
		}
		printJobs(jobs)
		return nil
	case "retry":
		if len(args) < 2 {
			return fmt.Errorf("usage: queuectl dlq retry <job_id>")
		}
		return engine.DLQRetry(ctx, args[1])
	case "discard":
		if len(args) < 2 {
			return fmt.Errorf("usage: queuectl dlq discard <job_id> --note ...")
		}
		fs := flag.NewFlagSet("discard", flag.ExitOnError)
		note := fs.String("note", "", "reviewer note")
		fs.Parse(args[2:])
		return engine.DiscardDeadLetter(ctx, args[1], *note)
	default:
		return fmt.Errorf("unknown dlq subcommand %q", args[0])
	}
}

func runWorker(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: queuectl worker <start|stop> ...")
	}
	switch args[0] {
	case "start":
		fs := flag.NewFlagSet("start", flag.ExitOnError)
		count := fs.Int("n", 1, "number of worker processes")
		fs.Parse(args[1:])

		sup, err := supervisor.New(*count)
		if err != nil {
			return err
		}
		return sup.Run(ctx)
	case "stop":
		return paths.RequestStop()
	default:
		return fmt.Errorf("unknown worker subcommand %q", args[0])
	}
}

func runConfig(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: queuectl config <get|set|show> ...")
	}
	engine, closeFn, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	switch args[0] {
	case "get":
		if len(args) < 2 {
			return fmt.Errorf("usage: queuectl config get <key>")
		}
		v, err := engine.ConfigValue(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Println(v)
		return nil
	case "set":
		if len(args) < 3 {
			return fmt.Errorf("usage: queuectl config set <key> <value>")
		}
		if _, err := strconv.Atoi(args[2]); err != nil {
			return fmt.Errorf("%w: config values must be integers", core.ErrBadPayload)
		}
		return engine.SetConfig(ctx, args[1], args[2])
	case "show":
		all, err := engine.AllConfig(ctx)
		if err != nil {
			return err
		}
		for k, v := range all {
			fmt.Printf("%-20s %s\n", k, v)
		}
		return nil
	default:
		return fmt.Errorf("unknown config subcommand %q", args[0])
	}
}

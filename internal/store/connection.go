// Package store is the embedded transactional store backing the job
// queue: one jobs table, one workers table, one config table, reached
// through database/sql against either SQLite (default) or Postgres.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // postgres driver
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/queuectl/queuectl/internal/core"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Config holds database connection configuration.
type Config struct {
	Driver          string // "sqlite" or "pgx"
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Store wraps a *sql.DB with the job queue's schema and queries.
type Store struct {
	db     *sql.DB
	driver string
}

// Open opens a database connection, runs migrations, and seeds any
// missing config defaults.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	db, err := sql.Open(driverName(cfg.Driver), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 10
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 5
	}
	lifetime := cfg.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = 5 * time.Minute
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(lifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db, cfg.Driver); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	s := &Store{db: db, driver: cfg.Driver}
	if err := s.seedDefaults(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed config defaults: %w", err)
	}
	return s, nil
}

// OpenSQLite opens a SQLite-backed store at path with the pragmas the
// claim protocol relies on: WAL for concurrent readers, a busy
// timeout so BEGIN IMMEDIATE waits rather than failing immediately
// under contention, and foreign keys on.
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	return Open(ctx, Config{Driver: "sqlite", DSN: dsn})
}

// OpenPostgres opens a Postgres-backed store.
func OpenPostgres(ctx context.Context, connString string) (*Store, error) {
	return Open(ctx, Config{Driver: "pgx", DSN: connString})
}

func driverName(driver string) string {
	if driver == "pgx" {
		return "pgx"
	}
	return "sqlite"
}

func runMigrations(db *sql.DB, driver string) error {
	dialect := "sqlite3"
	if driver == "pgx" {
		dialect = "postgres"
	}
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	goose.SetBaseFS(embedMigrations)
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (s *Store) seedDefaults(ctx context.Context) error {
	for k, v := range core.DefaultConfig() {
		_, err := s.db.ExecContext(ctx, insertConfigIfAbsent(s.driver), k, v)
		if err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// immediateTx wraps a pinned *sql.Conn mid-transaction. On SQLite this
// is opened with BEGIN IMMEDIATE so the writer lock is acquired at
// transaction start rather than at first write, which is what makes
// two concurrent claimers serialize instead of racing. database/sql's
// BeginTx has no knob for this, so the transaction is driven by hand
// over a dedicated connection.
type immediateTx struct {
	conn   *sql.Conn
	driver string
}

func (s *Store) beginImmediate(ctx context.Context) (*immediateTx, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	startStmt := "BEGIN IMMEDIATE"
	if s.driver == "pgx" {
		startStmt = "BEGIN ISOLATION LEVEL SERIALIZABLE"
	}
	if _, err := conn.ExecContext(ctx, startStmt); err != nil {
		conn.Close()
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &immediateTx{conn: conn, driver: s.driver}, nil
}

func (t *immediateTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.conn.ExecContext(ctx, query, args...)
}

func (t *immediateTx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return t.conn.QueryRowContext(ctx, query, args...)
}

func (t *immediateTx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.conn.QueryContext(ctx, query, args...)
}

func (t *immediateTx) Commit(ctx context.Context) error {
	defer t.conn.Close()
	_, err := t.conn.ExecContext(ctx, "COMMIT")
	return err
}

func (t *immediateTx) Rollback(ctx context.Context) {
	defer t.conn.Close()
	t.conn.ExecContext(ctx, "ROLLBACK")
}

func insertConfigIfAbsent(driver string) string {
	if driver == "pgx" {
		return "INSERT INTO config (key, value) VALUES ($1, $2) ON CONFLICT (key) DO NOTHING"
	}
	return "INSERT INTO config (key, value) VALUES (?, ?) ON CONFLICT (key) DO NOTHING"
}

// placeholder rewrites a query written with ? placeholders into the
// $1, $2, ... form pgx requires. SQLite accepts ? directly.
func placeholder(driver, query string) string {
	if driver != "pgx" {
		return query
	}
	out := make([]byte, 0, len(query)+8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			out = append(out, '$')
			out = append(out, []byte(fmt.Sprintf("%d", n))...)
			continue
		}
		out = append(out, query[i])
	}
	return string(out)
}

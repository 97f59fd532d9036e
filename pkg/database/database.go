package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/cuemby/hutch/pkg/log"
)

// Config holds persistence gateway configuration
type Config struct {
	URL                string
	MaxConns           int
	SlowQueryThreshold time.Duration
}

// DB is the pooled persistence gateway. All queries run through it (or
// through a Tx it opens) so that slow-query accounting and placeholder
// binding are uniform.
type DB struct {
	runner
	pool *sqlx.DB
}

// Querier is the query surface shared by the pool and open transactions.
// Values travel only through placeholder args; callers never compose SQL
// with user input.
type Querier interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Connect opens the connection pool, applies pool limits, and verifies
// connectivity with a ping.
func Connect(ctx context.Context, cfg Config) (*DB, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database URL is required")
	}
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = 20
	}
	if cfg.SlowQueryThreshold <= 0 {
		cfg.SlowQueryThreshold = time.Second
	}

	sqlDB, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxConns)
	sqlDB.SetMaxIdleConns(cfg.MaxConns / 2)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return New(sqlx.NewDb(sqlDB, "pgx"), cfg.SlowQueryThreshold), nil
}

// New wraps an existing pool. Connect is the production path; New exists
// for tests and alternate drivers.
func New(pool *sqlx.DB, slowThreshold time.Duration) *DB {
	logger := log.WithComponent("database")
	return &DB{
		runner: runner{ext: pool, slow: slowThreshold, log: logger},
		pool:   pool,
	}
}

// Ping verifies connectivity, for health checks.
func (d *DB) Ping(ctx context.Context) error {
	return d.pool.PingContext(ctx)
}

// Close releases the pool.
func (d *DB) Close() error {
	return d.pool.Close()
}

// WithTx runs fn inside a transaction. The transaction rolls back if fn
// returns an error or panics, and commits otherwise. A serialization
// failure (40001) or deadlock (40P01) retries fn exactly once on a fresh
// transaction.
func (d *DB) WithTx(ctx context.Context, fn func(*Tx) error) error {
	err := d.runTx(ctx, fn)
	if err == nil || !isRetryable(err) {
		return err
	}

	d.log.Warn().Err(err).Msg("transaction serialization failure, retrying once")
	return d.runTx(ctx, fn)
}

func (d *DB) runTx(ctx context.Context, fn func(*Tx) error) (err error) {
	tx, err := d.pool.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	wrapped := &Tx{
		runner: runner{ext: tx, slow: d.slow, log: d.log},
		tx:     tx,
	}

	if err := fn(wrapped); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			d.log.Error().Err(rbErr).Msg("rollback failed")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// runner executes queries over either the pool or a transaction and
// records slow ones.
type runner struct {
	ext  sqlx.ExtContext
	slow time.Duration
	log  zerolog.Logger
}

func (r *runner) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	start := time.Now()
	err := sqlx.GetContext(ctx, r.ext, dest, query, args...)
	r.observe(query, start)
	return err
}

func (r *runner) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	start := time.Now()
	err := sqlx.SelectContext(ctx, r.ext, dest, query, args...)
	r.observe(query, start)
	return err
}

func (r *runner) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	res, err := r.ext.ExecContext(ctx, query, args...)
	r.observe(query, start)
	return res, err
}

func (r *runner) observe(query string, start time.Time) {
	elapsed := time.Since(start)
	if r.slow > 0 && elapsed >= r.slow {
		r.log.Warn().
			Dur("elapsed", elapsed).
			Str("query", summarize(query)).
			Msg("slow query")
	}
}

// summarize collapses whitespace and truncates the SQL text for logging.
// Bound values never appear: only the parameterized statement is logged.
func summarize(query string) string {
	s := strings.Join(strings.Fields(query), " ")
	if len(s) > 120 {
		s = s[:120] + "..."
	}
	return s
}

/*
Package database is the persistence gateway for Hutch.

It wraps a pooled PostgreSQL connection (pgx driver under database/sql,
sqlx on top for struct scanning) and exposes exactly two ways to touch the
database: one-shot queries on the pool, and scoped transactions that
support parameterized queries, SELECT ... FOR UPDATE row locking, commit,
and rollback.

# Architecture

	┌────────────────── PERSISTENCE GATEWAY ──────────────────┐
	│                                                         │
	│  Connect(cfg) ──► *sql.DB (pgx) ──► sqlx.NewDb          │
	│                     │  pool limits (default 20 conns)   │
	│                     ▼                                   │
	│  ┌──────────────── DB ────────────────┐                 │
	│  │ GetContext / SelectContext / Exec  │  slow-query log │
	│  │ WithTx(fn) ── begin ── fn(Tx) ─────┼── commit        │
	│  │        rollback on error or panic  │                 │
	│  │        one retry on 40001 / 40P01  │                 │
	│  └────────────────────────────────────┘                 │
	└─────────────────────────────────────────────────────────┘

# Contracts

  - No operation accepts SQL composed with user input; values travel only
    through placeholder bindings.
  - A transaction that exits abnormally (error or panic) rolls back.
  - Queries exceeding the configured threshold (default 1s) are logged
    with the statement text only, never bound values.
  - Serialization failures retry the whole transaction closure exactly
    once; closures must therefore be safe to re-run from the top.

# Usage

	db, err := database.Connect(ctx, database.Config{
		URL:      cfg.Database.URL,
		MaxConns: cfg.Database.MaxConns,
	})

	err = db.WithTx(ctx, func(tx *database.Tx) error {
		var ws types.Workspace
		if err := tx.GetContext(ctx, &ws,
			`SELECT * FROM workspaces WHERE id = $1 FOR UPDATE`, id); err != nil {
			return err
		}
		// ... mutate under the row lock ...
		return nil
	})

# Error Classification

IsNotFound, IsUniqueViolation, and UniqueConstraint translate driver
errors so upper layers can map them to the domain taxonomy (duplicate
email vs duplicate workspace name) without importing pgconn.
*/
package database

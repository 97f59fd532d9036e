/*
Package storage provides PostgreSQL-backed state persistence for Hutch's
control-plane data.

The storage package implements the Store interface over the database
gateway, persisting users, workspaces, subscriptions, and the payment
event ledger. Every query is a parameterized statement from queries.go;
user-supplied values never reach SQL text. A MemoryStore with identical
semantics backs tests and local development.

# Architecture

	┌───────────────────── STORAGE LAYER ─────────────────────┐
	│                                                          │
	│  ┌────────────────────────────────────────────┐          │
	│  │              Store interface               │          │
	│  │  Users / Workspaces / Subscriptions /      │          │
	│  │  PaymentEvents / WithTx                    │          │
	│  └───────────┬───────────────────┬────────────┘          │
	│              │                   │                       │
	│  ┌───────────▼──────────┐  ┌─────▼──────────────┐        │
	│  │    PostgresStore     │  │    MemoryStore     │        │
	│  │  - queries.go SQL    │  │  - maps + mutex    │        │
	│  │  - sqlx binding      │  │  - snapshot tx     │        │
	│  │  - pg error mapping  │  │  - same semantics  │        │
	│  └───────────┬──────────┘  └────────────────────┘        │
	│              │                                           │
	│  ┌───────────▼──────────────────────────────┐            │
	│  │        pkg/database gateway              │            │
	│  │  - pooled pgx connections                │            │
	│  │  - WithTx commit/rollback + retry        │            │
	│  │  - slow query logging                    │            │
	│  └──────────────────────────────────────────┘            │
	│                                                          │
	└──────────────────────────────────────────────────────────┘

# Core Components

Store:
  - Interface consumed by auth, workspace, billing, and proxy services
  - Getters return types.Error with KindNotFound on missing rows
  - Writes map uniqueness violations to KindConflict
  - WithTx scopes a group of operations to one transaction

PostgresStore:
  - Binds typed structs with sqlx over the database gateway
  - Constraint names translate to stable, user-safe conflict messages
  - Transaction-scoped copies share the open transaction on nesting

MemoryStore:
  - Map-backed implementation guarded by one mutex
  - WithTx snapshots state and restores it when the closure fails
  - Getters return copies so callers cannot mutate stored rows

# Row Locking

Concurrent mutations serialize on row-level write locks:

  - LockUser: FOR UPDATE on the owner row, taken before entitlement and
    quota checks so two concurrent creates cannot both pass the cap
  - GetWorkspaceForUpdate: FOR UPDATE on the workspace row for
    lifecycle transitions
  - GetSubscriptionByProviderIDForUpdate: FOR UPDATE on the
    subscription row for webhook transitions

Lock variants are only meaningful inside WithTx; outside a transaction
the lock releases as soon as the statement returns.

# Payment Event Ledger

The payment_events table is append-only. InsertPaymentEvent relies on
ON CONFLICT (provider_event_id) DO NOTHING RETURNING id:

  - First delivery: the row inserts and the call reports true
  - Replayed delivery: no row returns and the call reports false
    without aborting the surrounding transaction

Existing ledger rows are never updated or deleted by the application.

# Usage

Creating a store:

	db, err := database.Connect(ctx, database.Config{URL: url})
	if err != nil {
		return err
	}
	store := storage.NewPostgres(db)
	defer store.Close()

Transactional workspace creation:

	err := store.WithTx(ctx, func(tx storage.Store) error {
		if err := tx.LockUser(ctx, ownerID); err != nil {
			return err
		}
		count, err := tx.CountWorkspacesByOwner(ctx, ownerID)
		if err != nil {
			return err
		}
		if count >= limit {
			return types.NewError(types.KindLimitReached, "workspace limit reached")
		}
		return tx.CreateWorkspace(ctx, ws)
	})

# Error Mapping

Read paths:
  - sql.ErrNoRows becomes KindNotFound ("user not found", ...)
  - Anything else wraps with operation context

Write paths:
  - users_email_key: KindConflict "email already registered"
  - workspaces_owner_id_name_key: KindConflict "workspace name already in use"
  - workspaces_proxy_credential_key: KindInternal "proxy credential collision"
  - subscriptions_provider_subscription_id_key: KindConflict "subscription already registered"
  - subscriptions_one_non_terminal_per_user: KindConflict "user already has a subscription in progress"
  - Updates and deletes touching zero rows: KindNotFound

Messages stay constraint-derived and constant so API responses never
echo submitted values.

# Integration Points

  - pkg/database: connection pool, transactions, slow query logging
  - pkg/workspace: lifecycle transitions under row locks
  - pkg/billing: webhook processing and the payment event ledger
  - pkg/proxy: credential to workspace resolution per request
  - pkg/auth: user lookup during registration and login

# See Also

  - pkg/database for the persistence gateway contracts
  - pkg/types for entity definitions and error kinds
  - migrations/ for the schema these queries assume
*/
package storage

package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/cuemby/hutch/pkg/types"
)

// Store defines the interface for control-plane state storage.
// Implemented by PostgresStore and, for tests and local development, by
// MemoryStore.
//
// Getters return a types.Error with KindNotFound when no row matches.
// Writes that hit a uniqueness rule return KindConflict. The *ForUpdate
// and Lock variants take a row-level write lock and are only meaningful
// inside WithTx.
type Store interface {
	// Users
	CreateUser(ctx context.Context, user *types.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*types.User, error)
	GetUserByEmail(ctx context.Context, email string) (*types.User, error)
	LockUser(ctx context.Context, id uuid.UUID) error
	DeleteUser(ctx context.Context, id uuid.UUID) error

	// Workspaces
	CreateWorkspace(ctx context.Context, ws *types.Workspace) error
	GetWorkspace(ctx context.Context, id uuid.UUID) (*types.Workspace, error)
	GetWorkspaceForUpdate(ctx context.Context, id uuid.UUID) (*types.Workspace, error)
	GetWorkspaceByCredential(ctx context.Context, credential string) (*types.Workspace, error)
	ListWorkspacesByOwner(ctx context.Context, ownerID uuid.UUID) ([]*types.Workspace, error)
	CountWorkspacesByOwner(ctx context.Context, ownerID uuid.UUID) (int, error)
	UpdateWorkspace(ctx context.Context, ws *types.Workspace) error
	DeleteWorkspace(ctx context.Context, id uuid.UUID) error

	// Subscriptions
	CreateSubscription(ctx context.Context, sub *types.Subscription) error
	GetSubscriptionByProviderID(ctx context.Context, providerID string) (*types.Subscription, error)
	GetSubscriptionByProviderIDForUpdate(ctx context.Context, providerID string) (*types.Subscription, error)
	GetLatestSubscriptionByUser(ctx context.Context, userID uuid.UUID) (*types.Subscription, error)
	GetNonTerminalSubscriptionByUser(ctx context.Context, userID uuid.UUID) (*types.Subscription, error)
	UpdateSubscription(ctx context.Context, sub *types.Subscription) error
	HasActiveSubscription(ctx context.Context, userID uuid.UUID) (bool, error)

	// Payment events (append-only ledger). InsertPaymentEvent reports
	// false when the provider event id was already recorded.
	InsertPaymentEvent(ctx context.Context, ev *types.PaymentEvent) (bool, error)

	// Inventory counts, used by the metrics collector
	CountWorkspacesByState(ctx context.Context) (map[types.WorkspaceState]int, error)
	CountSubscriptionsByState(ctx context.Context) (map[types.SubscriptionState]int, error)

	// WithTx runs fn against a transaction-scoped Store. Mutations and
	// locks inside fn commit together or not at all. Calling WithTx on a
	// transaction-scoped Store runs fn in the same transaction.
	WithTx(ctx context.Context, fn func(Store) error) error

	// Utility
	Ping(ctx context.Context) error
	Close() error
}

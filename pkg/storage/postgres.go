package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/hutch/pkg/database"
	"github.com/cuemby/hutch/pkg/types"
)

// PostgresStore implements Store on the persistence gateway. A zero db
// field marks a transaction-scoped instance created by WithTx.
type PostgresStore struct {
	db *database.DB
	q  database.Querier
}

// NewPostgres creates a PostgresStore over a connected gateway.
func NewPostgres(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db, q: db}
}

// WithTx runs fn against a transaction-scoped copy of the store. Nested
// calls reuse the already-open transaction.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(Store) error) error {
	if s.db == nil {
		return fn(s)
	}
	return s.db.WithTx(ctx, func(tx *database.Tx) error {
		return fn(&PostgresStore{q: tx})
	})
}

// Ping verifies database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.Ping(ctx)
}

// Close releases the underlying pool.
func (s *PostgresStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Users

func (s *PostgresStore) CreateUser(ctx context.Context, user *types.User) error {
	_, err := s.q.ExecContext(ctx, qCreateUser,
		user.ID, user.Email, user.PasswordDigest, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return mapWriteError(err, "create user")
	}
	return nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id uuid.UUID) (*types.User, error) {
	var user types.User
	if err := s.q.GetContext(ctx, &user, qGetUser, id); err != nil {
		return nil, mapReadError(err, "user")
	}
	return &user, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	var user types.User
	if err := s.q.GetContext(ctx, &user, qGetUserByEmail, email); err != nil {
		return nil, mapReadError(err, "user")
	}
	return &user, nil
}

func (s *PostgresStore) LockUser(ctx context.Context, id uuid.UUID) error {
	var locked uuid.UUID
	if err := s.q.GetContext(ctx, &locked, qLockUser, id); err != nil {
		return mapReadError(err, "user")
	}
	return nil
}

func (s *PostgresStore) DeleteUser(ctx context.Context, id uuid.UUID) error {
	res, err := s.q.ExecContext(ctx, qDeleteUser, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return requireRow(res, "user")
}

// Workspaces

func (s *PostgresStore) CreateWorkspace(ctx context.Context, ws *types.Workspace) error {
	_, err := s.q.ExecContext(ctx, qCreateWorkspace,
		ws.ID, ws.OwnerID, ws.Name, ws.EngineHandle, ws.RuntimeState,
		ws.ProxyCredential, ws.CPUQuota, ws.MemoryBytes,
		ws.CreatedAt, ws.UpdatedAt, ws.LastStartedAt)
	if err != nil {
		return mapWriteError(err, "create workspace")
	}
	return nil
}

func (s *PostgresStore) GetWorkspace(ctx context.Context, id uuid.UUID) (*types.Workspace, error) {
	var ws types.Workspace
	if err := s.q.GetContext(ctx, &ws, qGetWorkspace, id); err != nil {
		return nil, mapReadError(err, "workspace")
	}
	return &ws, nil
}

func (s *PostgresStore) GetWorkspaceForUpdate(ctx context.Context, id uuid.UUID) (*types.Workspace, error) {
	var ws types.Workspace
	if err := s.q.GetContext(ctx, &ws, qGetWorkspaceForUpdate, id); err != nil {
		return nil, mapReadError(err, "workspace")
	}
	return &ws, nil
}

func (s *PostgresStore) GetWorkspaceByCredential(ctx context.Context, credential string) (*types.Workspace, error) {
	var ws types.Workspace
	if err := s.q.GetContext(ctx, &ws, qGetWorkspaceByCredential, credential); err != nil {
		return nil, mapReadError(err, "workspace")
	}
	return &ws, nil
}

func (s *PostgresStore) ListWorkspacesByOwner(ctx context.Context, ownerID uuid.UUID) ([]*types.Workspace, error) {
	workspaces := []*types.Workspace{}
	if err := s.q.SelectContext(ctx, &workspaces, qListWorkspacesByOwner, ownerID); err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	return workspaces, nil
}

func (s *PostgresStore) CountWorkspacesByOwner(ctx context.Context, ownerID uuid.UUID) (int, error) {
	var count int
	if err := s.q.GetContext(ctx, &count, qCountWorkspacesByOwner, ownerID); err != nil {
		return 0, fmt.Errorf("count workspaces: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) UpdateWorkspace(ctx context.Context, ws *types.Workspace) error {
	res, err := s.q.ExecContext(ctx, qUpdateWorkspace,
		ws.ID, ws.Name, ws.EngineHandle, ws.RuntimeState,
		ws.CPUQuota, ws.MemoryBytes, ws.UpdatedAt, ws.LastStartedAt)
	if err != nil {
		return mapWriteError(err, "update workspace")
	}
	return requireRow(res, "workspace")
}

func (s *PostgresStore) DeleteWorkspace(ctx context.Context, id uuid.UUID) error {
	res, err := s.q.ExecContext(ctx, qDeleteWorkspace, id)
	if err != nil {
		return fmt.Errorf("delete workspace: %w", err)
	}
	return requireRow(res, "workspace")
}

// Subscriptions

func (s *PostgresStore) CreateSubscription(ctx context.Context, sub *types.Subscription) error {
	_, err := s.q.ExecContext(ctx, qCreateSubscription,
		sub.ID, sub.UserID, sub.ProviderSubscriptionID, sub.State, sub.PlanID,
		sub.PeriodStart, sub.PeriodEnd, sub.CancelledAt, sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		return mapWriteError(err, "create subscription")
	}
	return nil
}

func (s *PostgresStore) GetSubscriptionByProviderID(ctx context.Context, providerID string) (*types.Subscription, error) {
	var sub types.Subscription
	if err := s.q.GetContext(ctx, &sub, qGetSubscriptionByProviderID, providerID); err != nil {
		return nil, mapReadError(err, "subscription")
	}
	return &sub, nil
}

func (s *PostgresStore) GetSubscriptionByProviderIDForUpdate(ctx context.Context, providerID string) (*types.Subscription, error) {
	var sub types.Subscription
	if err := s.q.GetContext(ctx, &sub, qGetSubscriptionByProviderIDForUpdate, providerID); err != nil {
		return nil, mapReadError(err, "subscription")
	}
	return &sub, nil
}

func (s *PostgresStore) GetLatestSubscriptionByUser(ctx context.Context, userID uuid.UUID) (*types.Subscription, error) {
	var sub types.Subscription
	if err := s.q.GetContext(ctx, &sub, qGetLatestSubscriptionByUser, userID); err != nil {
		return nil, mapReadError(err, "subscription")
	}
	return &sub, nil
}

func (s *PostgresStore) GetNonTerminalSubscriptionByUser(ctx context.Context, userID uuid.UUID) (*types.Subscription, error) {
	var sub types.Subscription
	if err := s.q.GetContext(ctx, &sub, qGetNonTerminalSubscriptionByUser, userID); err != nil {
		return nil, mapReadError(err, "subscription")
	}
	return &sub, nil
}

func (s *PostgresStore) UpdateSubscription(ctx context.Context, sub *types.Subscription) error {
	res, err := s.q.ExecContext(ctx, qUpdateSubscription,
		sub.ID, sub.ProviderSubscriptionID, sub.State, sub.PlanID,
		sub.PeriodStart, sub.PeriodEnd, sub.CancelledAt, sub.UpdatedAt)
	if err != nil {
		return mapWriteError(err, "update subscription")
	}
	return requireRow(res, "subscription")
}

func (s *PostgresStore) HasActiveSubscription(ctx context.Context, userID uuid.UUID) (bool, error) {
	var entitled bool
	if err := s.q.GetContext(ctx, &entitled, qHasActiveSubscription, userID, time.Now().UTC()); err != nil {
		return false, fmt.Errorf("check entitlement: %w", err)
	}
	return entitled, nil
}

// Payment events

func (s *PostgresStore) InsertPaymentEvent(ctx context.Context, ev *types.PaymentEvent) (bool, error) {
	var id uuid.UUID
	err := s.q.GetContext(ctx, &id, qInsertPaymentEvent,
		ev.ID, ev.SubscriptionID, ev.ProviderEventID, ev.EventType,
		ev.ProviderPaymentID, ev.AmountMinorUnits, ev.Currency,
		ev.RawPayload, ev.CreatedAt)
	if err != nil {
		if database.IsNotFound(err) {
			// ON CONFLICT DO NOTHING returned no row: duplicate event.
			return false, nil
		}
		return false, fmt.Errorf("insert payment event: %w", err)
	}
	return true, nil
}

// Inventory counts

func (s *PostgresStore) CountWorkspacesByState(ctx context.Context) (map[types.WorkspaceState]int, error) {
	rows := []stateCount{}
	if err := s.q.SelectContext(ctx, &rows, qCountWorkspacesByState); err != nil {
		return nil, fmt.Errorf("count workspaces by state: %w", err)
	}
	counts := make(map[types.WorkspaceState]int, len(rows))
	for _, row := range rows {
		counts[types.WorkspaceState(row.State)] = row.Count
	}
	return counts, nil
}

func (s *PostgresStore) CountSubscriptionsByState(ctx context.Context) (map[types.SubscriptionState]int, error) {
	rows := []stateCount{}
	if err := s.q.SelectContext(ctx, &rows, qCountSubscriptionsByState); err != nil {
		return nil, fmt.Errorf("count subscriptions by state: %w", err)
	}
	counts := make(map[types.SubscriptionState]int, len(rows))
	for _, row := range rows {
		counts[types.SubscriptionState(row.State)] = row.Count
	}
	return counts, nil
}

type stateCount struct {
	State string `db:"state"`
	Count int    `db:"count"`
}

// Error mapping

func mapReadError(err error, entity string) error {
	if database.IsNotFound(err) {
		return types.WrapError(types.KindNotFound, entity+" not found", err)
	}
	return fmt.Errorf("get %s: %w", entity, err)
}

func mapWriteError(err error, op string) error {
	switch database.UniqueConstraint(err) {
	case "users_email_key":
		return types.WrapError(types.KindConflict, "email already registered", err)
	case "workspaces_owner_id_name_key":
		return types.WrapError(types.KindConflict, "workspace name already in use", err)
	case "workspaces_proxy_credential_key":
		return types.WrapError(types.KindInternal, "proxy credential collision", err)
	case "subscriptions_provider_subscription_id_key":
		return types.WrapError(types.KindConflict, "subscription already registered", err)
	case "subscriptions_one_non_terminal_per_user":
		return types.WrapError(types.KindConflict, "user already has a subscription in progress", err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func requireRow(res interface{ RowsAffected() (int64, error) }, entity string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return types.NewError(types.KindNotFound, entity+" not found")
	}
	return nil
}

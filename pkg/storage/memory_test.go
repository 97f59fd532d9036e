package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/hutch/pkg/types"
)

func newUser(email string) *types.User {
	now := time.Now().UTC()
	return &types.User{
		ID:             uuid.New(),
		Email:          email,
		PasswordDigest: "$2a$12$digest",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func newWorkspace(owner uuid.UUID, name, credential string) *types.Workspace {
	now := time.Now().UTC()
	return &types.Workspace{
		ID:              uuid.New(),
		OwnerID:         owner,
		Name:            name,
		RuntimeState:    types.WorkspaceStateStopped,
		ProxyCredential: credential,
		CPUQuota:        1.0,
		MemoryBytes:     512 << 20,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func newSubscription(user uuid.UUID, providerID string, state types.SubscriptionState) *types.Subscription {
	now := time.Now().UTC()
	sub := &types.Subscription{
		ID:        uuid.New(),
		UserID:    user,
		State:     state,
		PlanID:    "plan_basic",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if providerID != "" {
		sub.ProviderSubscriptionID = &providerID
	}
	return sub
}

// TestMemoryUserLifecycle tests user create, lookup, and duplicate email rejection
func TestMemoryUserLifecycle(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	user := newUser("ada@example.com")
	require.NoError(t, store.CreateUser(ctx, user))

	got, err := store.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, got.Email)

	byEmail, err := store.GetUserByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	dup := newUser("ada@example.com")
	err = store.CreateUser(ctx, dup)
	assert.Equal(t, types.KindConflict, types.KindOf(err))
	assert.Contains(t, err.Error(), "email already registered")

	_, err = store.GetUserByEmail(ctx, "nobody@example.com")
	assert.Equal(t, types.KindNotFound, types.KindOf(err))
}

// TestMemoryDeleteUserCascades tests that deleting a user removes their workspaces and subscriptions
func TestMemoryDeleteUserCascades(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	user := newUser("ada@example.com")
	require.NoError(t, store.CreateUser(ctx, user))
	ws := newWorkspace(user.ID, "blog", "cred-1")
	require.NoError(t, store.CreateWorkspace(ctx, ws))
	sub := newSubscription(user.ID, "sub_1", types.SubscriptionStateActive)
	require.NoError(t, store.CreateSubscription(ctx, sub))

	require.NoError(t, store.DeleteUser(ctx, user.ID))

	_, err := store.GetWorkspace(ctx, ws.ID)
	assert.Equal(t, types.KindNotFound, types.KindOf(err))
	_, err = store.GetSubscriptionByProviderID(ctx, "sub_1")
	assert.Equal(t, types.KindNotFound, types.KindOf(err))
}

// TestMemoryWorkspaceNameUniquePerOwner tests per-owner name uniqueness
func TestMemoryWorkspaceNameUniquePerOwner(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	alice := uuid.New()
	bob := uuid.New()
	require.NoError(t, store.CreateWorkspace(ctx, newWorkspace(alice, "blog", "cred-a")))

	err := store.CreateWorkspace(ctx, newWorkspace(alice, "blog", "cred-b"))
	assert.Equal(t, types.KindConflict, types.KindOf(err))
	assert.Contains(t, err.Error(), "workspace name already in use")

	// A different owner may reuse the name.
	require.NoError(t, store.CreateWorkspace(ctx, newWorkspace(bob, "blog", "cred-c")))
}

// TestMemoryWorkspaceByCredential tests proxy credential lookup
func TestMemoryWorkspaceByCredential(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	ws := newWorkspace(uuid.New(), "blog", "cred-xyz")
	require.NoError(t, store.CreateWorkspace(ctx, ws))

	got, err := store.GetWorkspaceByCredential(ctx, "cred-xyz")
	require.NoError(t, err)
	assert.Equal(t, ws.ID, got.ID)

	_, err = store.GetWorkspaceByCredential(ctx, "wrong")
	assert.Equal(t, types.KindNotFound, types.KindOf(err))
}

// TestMemoryListAndCountWorkspaces tests owner-scoped listing in creation order
func TestMemoryListAndCountWorkspaces(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	owner := uuid.New()
	first := newWorkspace(owner, "one", "cred-1")
	first.CreatedAt = time.Now().UTC().Add(-time.Hour)
	second := newWorkspace(owner, "two", "cred-2")
	require.NoError(t, store.CreateWorkspace(ctx, second))
	require.NoError(t, store.CreateWorkspace(ctx, first))
	require.NoError(t, store.CreateWorkspace(ctx, newWorkspace(uuid.New(), "other", "cred-3")))

	list, err := store.ListWorkspacesByOwner(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "one", list[0].Name)
	assert.Equal(t, "two", list[1].Name)

	count, err := store.CountWorkspacesByOwner(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

// TestMemoryOneNonTerminalSubscriptionPerUser tests the non-terminal uniqueness rule
func TestMemoryOneNonTerminalSubscriptionPerUser(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	user := uuid.New()
	first := newSubscription(user, "sub_1", types.SubscriptionStatePending)
	require.NoError(t, store.CreateSubscription(ctx, first))

	err := store.CreateSubscription(ctx, newSubscription(user, "sub_2", types.SubscriptionStateActive))
	assert.Equal(t, types.KindConflict, types.KindOf(err))
	assert.Contains(t, err.Error(), "subscription in progress")

	// Once the first reaches a terminal state a new one is allowed.
	first.State = types.SubscriptionStateCancelled
	require.NoError(t, store.UpdateSubscription(ctx, first))
	require.NoError(t, store.CreateSubscription(ctx, newSubscription(user, "sub_3", types.SubscriptionStatePending)))
}

// TestMemoryDuplicateProviderSubscriptionID tests provider id uniqueness
func TestMemoryDuplicateProviderSubscriptionID(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	require.NoError(t, store.CreateSubscription(ctx, newSubscription(uuid.New(), "sub_1", types.SubscriptionStateCancelled)))

	err := store.CreateSubscription(ctx, newSubscription(uuid.New(), "sub_1", types.SubscriptionStateCancelled))
	assert.Equal(t, types.KindConflict, types.KindOf(err))
	assert.Contains(t, err.Error(), "subscription already registered")
}

// TestMemoryLatestSubscription tests most-recent and non-terminal lookups
func TestMemoryLatestSubscription(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	user := uuid.New()
	old := newSubscription(user, "sub_old", types.SubscriptionStateCancelled)
	old.CreatedAt = time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, store.CreateSubscription(ctx, old))
	current := newSubscription(user, "sub_new", types.SubscriptionStateActive)
	require.NoError(t, store.CreateSubscription(ctx, current))

	latest, err := store.GetLatestSubscriptionByUser(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, current.ID, latest.ID)

	nonTerminal, err := store.GetNonTerminalSubscriptionByUser(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, current.ID, nonTerminal.ID)

	current.State = types.SubscriptionStateExpired
	require.NoError(t, store.UpdateSubscription(ctx, current))
	_, err = store.GetNonTerminalSubscriptionByUser(ctx, user)
	assert.Equal(t, types.KindNotFound, types.KindOf(err))

	// The latest lookup still returns the terminal row.
	latest, err = store.GetLatestSubscriptionByUser(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, current.ID, latest.ID)
}

// TestMemoryHasActiveSubscription tests the entitlement check
func TestMemoryHasActiveSubscription(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	user := uuid.New()
	entitled, err := store.HasActiveSubscription(ctx, user)
	require.NoError(t, err)
	assert.False(t, entitled)

	sub := newSubscription(user, "sub_1", types.SubscriptionStateActive)
	future := time.Now().UTC().Add(30 * 24 * time.Hour)
	sub.PeriodEnd = &future
	require.NoError(t, store.CreateSubscription(ctx, sub))

	entitled, err = store.HasActiveSubscription(ctx, user)
	require.NoError(t, err)
	assert.True(t, entitled)

	// An elapsed period no longer entitles.
	past := time.Now().UTC().Add(-time.Hour)
	sub.PeriodEnd = &past
	require.NoError(t, store.UpdateSubscription(ctx, sub))
	entitled, err = store.HasActiveSubscription(ctx, user)
	require.NoError(t, err)
	assert.False(t, entitled)
}

// TestMemoryPaymentEventDedup tests ledger idempotency on provider event id
func TestMemoryPaymentEventDedup(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	ev := &types.PaymentEvent{
		ID:              uuid.New(),
		ProviderEventID: "evt_1",
		EventType:       "subscription.activated",
		RawPayload:      []byte(`{"event":"subscription.activated"}`),
		CreatedAt:       time.Now().UTC(),
	}
	inserted, err := store.InsertPaymentEvent(ctx, ev)
	require.NoError(t, err)
	assert.True(t, inserted)

	replay := *ev
	replay.ID = uuid.New()
	inserted, err = store.InsertPaymentEvent(ctx, &replay)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Len(t, store.PaymentEvents(), 1)
}

// TestMemoryWithTxRollback tests that a failed transaction leaves no writes behind
func TestMemoryWithTxRollback(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	ws := newWorkspace(uuid.New(), "blog", "cred-1")
	boom := errors.New("boom")
	err := store.WithTx(ctx, func(tx Store) error {
		if err := tx.CreateWorkspace(ctx, ws); err != nil {
			return err
		}
		if _, err := tx.InsertPaymentEvent(ctx, &types.PaymentEvent{
			ID:              uuid.New(),
			ProviderEventID: "evt_tx",
			EventType:       "subscription.charged",
			CreatedAt:       time.Now().UTC(),
		}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = store.GetWorkspace(ctx, ws.ID)
	assert.Equal(t, types.KindNotFound, types.KindOf(err))
	assert.Empty(t, store.PaymentEvents())
}

// TestMemoryWithTxCommitAndNesting tests that commits persist and nesting reuses the transaction
func TestMemoryWithTxCommitAndNesting(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	ws := newWorkspace(uuid.New(), "blog", "cred-1")
	err := store.WithTx(ctx, func(tx Store) error {
		return tx.WithTx(ctx, func(inner Store) error {
			return inner.CreateWorkspace(ctx, ws)
		})
	})
	require.NoError(t, err)

	got, err := store.GetWorkspace(ctx, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, ws.Name, got.Name)
}

// TestMemoryGettersReturnCopies tests that callers cannot mutate stored rows in place
func TestMemoryGettersReturnCopies(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	ws := newWorkspace(uuid.New(), "blog", "cred-1")
	require.NoError(t, store.CreateWorkspace(ctx, ws))

	got, err := store.GetWorkspace(ctx, ws.ID)
	require.NoError(t, err)
	got.RuntimeState = types.WorkspaceStateRunning

	again, err := store.GetWorkspace(ctx, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, types.WorkspaceStateStopped, again.RuntimeState)
}

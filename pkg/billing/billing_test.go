package billing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/hutch/pkg/storage"
	"github.com/cuemby/hutch/pkg/types"
)

func newCheckoutService(t *testing.T, provider Provider) (*Service, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemory()
	svc := NewService(store, provider, &recordingStopper{}, testPaymentConfig())
	svc.Start()
	t.Cleanup(svc.Close)
	return svc, store
}

// TestCheckout tests the happy path: provider subscription plus local
// pending row
func TestCheckout(t *testing.T) {
	provider := &stubProvider{sub: ProviderSubscription{
		ID: "sub_p9", Status: "created", ShortURL: "https://pay.example/p9",
	}}
	svc, store := newCheckoutService(t, provider)
	ctx := context.Background()
	user := seedUser(t, store)

	res, err := svc.Checkout(ctx, user, "plan_basic")
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/p9", res.ShortURL)
	assert.Equal(t, []string{"plan_basic"}, provider.created)

	sub, err := store.GetSubscriptionByProviderID(ctx, "sub_p9")
	require.NoError(t, err)
	assert.Equal(t, res.SubscriptionID, sub.ID)
	assert.Equal(t, user.ID, sub.UserID)
	assert.Equal(t, types.SubscriptionStatePending, sub.State)
	assert.Equal(t, "plan_basic", sub.PlanID)
	assert.Nil(t, sub.PeriodEnd)
}

// TestCheckoutRejectsUnknownPlan tests the plan catalog gate
func TestCheckoutRejectsUnknownPlan(t *testing.T) {
	provider := &stubProvider{}
	svc, store := newCheckoutService(t, provider)
	user := seedUser(t, store)

	_, err := svc.Checkout(context.Background(), user, "plan_bogus")
	assert.Equal(t, types.KindValidation, types.KindOf(err))
	assert.Empty(t, provider.created)
}

// TestCheckoutConflictsWithExistingSubscription tests the one
// non-terminal subscription rule
func TestCheckoutConflictsWithExistingSubscription(t *testing.T) {
	provider := &stubProvider{}
	svc, store := newCheckoutService(t, provider)
	ctx := context.Background()
	user := seedUser(t, store)
	seedSubscription(t, store, user.ID, "sub_p1", types.SubscriptionStateActive)

	_, err := svc.Checkout(ctx, user, "plan_basic")
	assert.Equal(t, types.KindConflict, types.KindOf(err))
	assert.Empty(t, provider.created)
}

// TestCheckoutAfterTerminalSubscription tests that an expired
// subscription does not block a new checkout
func TestCheckoutAfterTerminalSubscription(t *testing.T) {
	provider := &stubProvider{}
	svc, store := newCheckoutService(t, provider)
	ctx := context.Background()
	user := seedUser(t, store)
	seedSubscription(t, store, user.ID, "sub_old", types.SubscriptionStateExpired)

	_, err := svc.Checkout(ctx, user, "plan_pro")
	assert.NoError(t, err)
}

// TestCheckoutProviderFailure tests that provider errors leave no local
// row behind
func TestCheckoutProviderFailure(t *testing.T) {
	provider := &stubProvider{createErr: types.NewError(types.KindProviderDown, "payment provider unreachable")}
	svc, store := newCheckoutService(t, provider)
	ctx := context.Background()
	user := seedUser(t, store)

	_, err := svc.Checkout(ctx, user, "plan_basic")
	assert.Equal(t, types.KindProviderDown, types.KindOf(err))

	_, err = store.GetLatestSubscriptionByUser(ctx, user.ID)
	assert.Equal(t, types.KindNotFound, types.KindOf(err))
}

// TestCurrentSubscription tests the status view over the latest row
func TestCurrentSubscription(t *testing.T) {
	svc, store := newCheckoutService(t, &stubProvider{})
	ctx := context.Background()
	user := seedUser(t, store)

	_, err := svc.CurrentSubscription(ctx, user.ID)
	assert.Equal(t, types.KindNotFound, types.KindOf(err))

	sub := seedSubscription(t, store, user.ID, "sub_p1", types.SubscriptionStateActive)
	start := time.Now().UTC().Add(-24 * time.Hour)
	end := time.Now().UTC().Add(29*24*time.Hour + time.Hour)
	sub.PeriodStart = &start
	sub.PeriodEnd = &end
	require.NoError(t, store.UpdateSubscription(ctx, sub))

	st, err := svc.CurrentSubscription(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, types.SubscriptionStateActive, st.State)
	assert.Equal(t, "plan_basic", st.PlanID)
	assert.True(t, st.IsActive)
	assert.Equal(t, 29, st.DaysRemaining)
}

// TestCurrentSubscriptionInactive tests that a terminal row still
// renders, as not active
func TestCurrentSubscriptionInactive(t *testing.T) {
	svc, store := newCheckoutService(t, &stubProvider{})
	ctx := context.Background()
	user := seedUser(t, store)
	seedSubscription(t, store, user.ID, "sub_p1", types.SubscriptionStateCancelled)

	st, err := svc.CurrentSubscription(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, types.SubscriptionStateCancelled, st.State)
	assert.False(t, st.IsActive)
	assert.Zero(t, st.DaysRemaining)
}

// TestCancel tests that cancellation goes to the provider and leaves
// local state alone
func TestCancel(t *testing.T) {
	provider := &stubProvider{}
	svc, store := newCheckoutService(t, provider)
	ctx := context.Background()
	user := seedUser(t, store)
	sub := seedSubscription(t, store, user.ID, "sub_p1", types.SubscriptionStateActive)
	end := time.Now().UTC().Add(20 * 24 * time.Hour).Truncate(time.Second)
	sub.PeriodEnd = &end
	require.NoError(t, store.UpdateSubscription(ctx, sub))

	endDate, err := svc.Cancel(ctx, user.ID, "too expensive")
	require.NoError(t, err)
	assert.Equal(t, end, endDate)
	assert.Equal(t, []string{"sub_p1"}, provider.cancelled)

	// The webhook, not this call, flips the state.
	stored, err := store.GetSubscriptionByProviderID(ctx, "sub_p1")
	require.NoError(t, err)
	assert.Equal(t, types.SubscriptionStateActive, stored.State)
	assert.Nil(t, stored.CancelledAt)
}

// TestCancelWithoutSubscription tests the not-found path
func TestCancelWithoutSubscription(t *testing.T) {
	svc, store := newCheckoutService(t, &stubProvider{})
	user := seedUser(t, store)

	_, err := svc.Cancel(context.Background(), user.ID, "")
	assert.Equal(t, types.KindNotFound, types.KindOf(err))
}

// TestCancelProviderFailure tests that provider errors surface without
// touching the row
func TestCancelProviderFailure(t *testing.T) {
	provider := &stubProvider{cancelErr: types.NewError(types.KindProviderDown, "payment provider unreachable")}
	svc, store := newCheckoutService(t, provider)
	ctx := context.Background()
	user := seedUser(t, store)
	seedSubscription(t, store, user.ID, "sub_p1", types.SubscriptionStateActive)

	_, err := svc.Cancel(ctx, user.ID, "")
	assert.Equal(t, types.KindProviderDown, types.KindOf(err))

	stored, err := store.GetSubscriptionByProviderID(ctx, "sub_p1")
	require.NoError(t, err)
	assert.Equal(t, types.SubscriptionStateActive, stored.State)
}

package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/hutch/pkg/config"
	"github.com/cuemby/hutch/pkg/log"
	"github.com/cuemby/hutch/pkg/storage"
	"github.com/cuemby/hutch/pkg/types"
)

// Service owns subscription state. Local rows change only through
// verified webhook events; Checkout and Cancel talk to the provider and
// let the resulting webhooks drive the state machine.
type Service struct {
	store    storage.Store
	provider Provider
	worker   *StopWorker
	cfg      config.Payment
	log      zerolog.Logger
}

// NewService creates the billing service and its stop worker. Call
// Start before serving webhooks and Close on shutdown.
func NewService(store storage.Store, provider Provider, stopper WorkspaceStopper, cfg config.Payment) *Service {
	return &Service{
		store:    store,
		provider: provider,
		worker:   NewStopWorker(stopper),
		cfg:      cfg,
		log:      log.WithComponent("billing"),
	}
}

// Start launches the stop worker.
func (s *Service) Start() {
	s.worker.Start()
}

// Close drains and stops the stop worker.
func (s *Service) Close() {
	s.worker.Close()
}

// CheckoutResult carries the local subscription id and the provider's
// hosted checkout URL.
type CheckoutResult struct {
	SubscriptionID uuid.UUID
	ShortURL       string
}

// Checkout creates a provider subscription on the given plan and a local
// row in pending. The subscription activates later, when the provider
// confirms payment by webhook. A user can hold at most one non-terminal
// subscription at a time.
func (s *Service) Checkout(ctx context.Context, user *types.User, planID string) (*CheckoutResult, error) {
	if !s.cfg.PlanAllowed(planID) {
		return nil, types.NewError(types.KindValidation, "unknown plan")
	}

	_, err := s.store.GetNonTerminalSubscriptionByUser(ctx, user.ID)
	if err == nil {
		return nil, types.NewError(types.KindConflict, "a subscription is already in progress")
	}
	if !types.IsKind(err, types.KindNotFound) {
		return nil, err
	}

	psub, err := s.provider.CreateSubscription(ctx, planID, user.Email)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sub := &types.Subscription{
		ID:                     uuid.New(),
		UserID:                 user.ID,
		ProviderSubscriptionID: &psub.ID,
		State:                  types.SubscriptionStatePending,
		PlanID:                 planID,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if err := s.store.CreateSubscription(ctx, sub); err != nil {
		// Concurrent checkouts can both pass the pre-check; the partial
		// unique index decides. The losing provider subscription is
		// never paid and lapses on its own.
		return nil, err
	}

	s.log.Info().
		Str("user_id", user.ID.String()).
		Str("subscription_id", sub.ID.String()).
		Str("plan_id", planID).
		Msg("checkout created")

	return &CheckoutResult{SubscriptionID: sub.ID, ShortURL: psub.ShortURL}, nil
}

// SubscriptionStatus is the user-facing view of the latest subscription.
type SubscriptionStatus struct {
	ID            uuid.UUID
	State         types.SubscriptionState
	PlanID        string
	PeriodStart   *time.Time
	PeriodEnd     *time.Time
	IsActive      bool
	DaysRemaining int
}

// CurrentSubscription returns the user's most recent subscription, in
// any state, or KindNotFound when the user never checked out.
func (s *Service) CurrentSubscription(ctx context.Context, userID uuid.UUID) (*SubscriptionStatus, error) {
	sub, err := s.store.GetLatestSubscriptionByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	st := &SubscriptionStatus{
		ID:          sub.ID,
		State:       sub.State,
		PlanID:      sub.PlanID,
		PeriodStart: sub.PeriodStart,
		PeriodEnd:   sub.PeriodEnd,
		IsActive:    sub.Entitled(now),
	}
	if st.IsActive {
		st.DaysRemaining = int(sub.PeriodEnd.Sub(now).Hours() / 24)
	}
	return st, nil
}

// Cancel requests cancellation at the provider, at cycle end. Local
// state does not change here: the authoritative transition arrives by
// webhook. Returns the date access ends, the current period end when
// one is set. The reason is logged and goes no further.
func (s *Service) Cancel(ctx context.Context, userID uuid.UUID, reason string) (time.Time, error) {
	sub, err := s.store.GetNonTerminalSubscriptionByUser(ctx, userID)
	if err != nil {
		if types.IsKind(err, types.KindNotFound) {
			return time.Time{}, types.NewError(types.KindNotFound, "no subscription to cancel")
		}
		return time.Time{}, err
	}
	if sub.ProviderSubscriptionID == nil {
		return time.Time{}, types.NewError(types.KindConflict, "subscription has no provider reference")
	}

	if err := s.provider.CancelSubscription(ctx, *sub.ProviderSubscriptionID, true); err != nil {
		return time.Time{}, err
	}

	s.log.Info().
		Str("user_id", userID.String()).
		Str("subscription_id", sub.ID.String()).
		Str("reason", reason).
		Msg("cancellation requested")

	if sub.PeriodEnd != nil {
		return *sub.PeriodEnd, nil
	}
	return time.Now().UTC(), nil
}

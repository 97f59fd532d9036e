package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/hutch/pkg/metrics"
	"github.com/cuemby/hutch/pkg/storage"
	"github.com/cuemby/hutch/pkg/types"
)

// WebhookOutcome is the terminal disposition of a processed webhook.
type WebhookOutcome string

const (
	// OutcomeProcessed means the event changed subscription state.
	OutcomeProcessed WebhookOutcome = "processed"
	// OutcomeDuplicate means the provider event id was already in the
	// ledger; nothing changed.
	OutcomeDuplicate WebhookOutcome = "duplicate"
	// OutcomeRecorded means the event was appended to the ledger but did
	// not apply: unknown subscription, unknown event type, or a
	// transition the current state rejects.
	OutcomeRecorded WebhookOutcome = "recorded"
)

// webhookEnvelope mirrors the provider's webhook body. Period fields are
// unix seconds.
type webhookEnvelope struct {
	ID        string         `json:"id"`
	Event     string         `json:"event"`
	CreatedAt int64          `json:"created_at"`
	Payload   webhookPayload `json:"payload"`
}

type webhookPayload struct {
	Subscription *eventSubscription `json:"subscription"`
	Payment      *eventPayment      `json:"payment"`
}

type eventSubscription struct {
	ID           string `json:"id"`
	PlanID       string `json:"plan_id"`
	Status       string `json:"status"`
	CurrentStart int64  `json:"current_start"`
	CurrentEnd   int64  `json:"current_end"`
}

type eventPayment struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// VerifySignature reports whether signature is the lowercase hex
// HMAC-SHA256 of body under secret. The comparison is timing-independent.
func VerifySignature(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ProcessWebhook verifies and applies one provider webhook. The raw body
// must be the exact bytes the signature was computed over.
//
// Inside one transaction it appends the event to the ledger (a duplicate
// provider event id short-circuits to OutcomeDuplicate), locks the
// subscription row, validates the transition, and applies the state and
// period changes. Terminal transitions enqueue the owner on the stop
// worker after commit; a full queue or failed stop never changes the
// response. Any error before commit returns non-nil so the provider
// retries delivery.
func (s *Service) ProcessWebhook(ctx context.Context, body []byte, signature string) (WebhookOutcome, error) {
	if signature == "" {
		metrics.WebhookEventsTotal.WithLabelValues("unknown", "rejected").Inc()
		return "", types.NewError(types.KindAuthFailed, "missing webhook signature")
	}
	if !VerifySignature(s.cfg.WebhookSecret, body, signature) {
		metrics.WebhookEventsTotal.WithLabelValues("unknown", "rejected").Inc()
		return "", types.NewError(types.KindAuthFailed, "invalid webhook signature")
	}

	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("unknown", "rejected").Inc()
		return "", types.NewError(types.KindValidation, "malformed webhook body")
	}
	if env.ID == "" || env.Event == "" {
		metrics.WebhookEventsTotal.WithLabelValues("unknown", "rejected").Inc()
		return "", types.NewError(types.KindValidation, "webhook body missing id or event")
	}

	var (
		outcome   WebhookOutcome
		stopOwner uuid.NullUUID
	)
	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		outcome = OutcomeRecorded
		stopOwner = uuid.NullUUID{}

		inserted, err := tx.InsertPaymentEvent(ctx, s.eventRow(ctx, tx, &env, body))
		if err != nil {
			return err
		}
		if !inserted {
			outcome = OutcomeDuplicate
			return nil
		}

		if env.Payload.Subscription == nil || env.Payload.Subscription.ID == "" {
			s.log.Info().
				Str("event_id", env.ID).
				Str("event_type", env.Event).
				Msg("webhook carries no subscription, recorded only")
			return nil
		}

		sub, err := tx.GetSubscriptionByProviderIDForUpdate(ctx, env.Payload.Subscription.ID)
		if err != nil {
			if types.IsKind(err, types.KindNotFound) {
				s.log.Warn().
					Str("event_id", env.ID).
					Str("provider_subscription_id", env.Payload.Subscription.ID).
					Msg("webhook for unknown subscription, recorded only")
				return nil
			}
			return err
		}

		tr, ok := evaluate(env.Event, sub.State)
		if !ok {
			s.log.Info().
				Str("event_id", env.ID).
				Str("event_type", env.Event).
				Str("subscription_id", sub.ID.String()).
				Str("state", string(sub.State)).
				Msg("webhook does not apply to current state, recorded only")
			return nil
		}

		now := time.Now().UTC()
		sub.State = tr.to
		if tr.setCancelled && sub.CancelledAt == nil {
			sub.CancelledAt = &now
		}
		applyPeriods(sub, env.Payload.Subscription)
		sub.UpdatedAt = now
		if err := tx.UpdateSubscription(ctx, sub); err != nil {
			return err
		}

		outcome = OutcomeProcessed
		if tr.stopOwner {
			stopOwner = uuid.NullUUID{UUID: sub.UserID, Valid: true}
		}

		s.log.Info().
			Str("event_id", env.ID).
			Str("event_type", env.Event).
			Str("subscription_id", sub.ID.String()).
			Str("state", string(sub.State)).
			Msg("subscription transitioned")
		return nil
	})
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues(env.Event, "error").Inc()
		return "", err
	}
	metrics.WebhookEventsTotal.WithLabelValues(env.Event, string(outcome)).Inc()

	if stopOwner.Valid {
		s.worker.Enqueue(stopOwner.UUID)
	}
	return outcome, nil
}

// eventRow builds the ledger row for the envelope. The subscription
// reference is resolved with a plain read so the insert can happen
// before the row lock is taken.
func (s *Service) eventRow(ctx context.Context, tx storage.Store, env *webhookEnvelope, raw []byte) *types.PaymentEvent {
	ev := &types.PaymentEvent{
		ID:              uuid.New(),
		ProviderEventID: env.ID,
		EventType:       env.Event,
		RawPayload:      raw,
		CreatedAt:       time.Now().UTC(),
	}
	if p := env.Payload.Payment; p != nil && p.ID != "" {
		paymentID, amount, currency := p.ID, p.Amount, p.Currency
		ev.ProviderPaymentID = &paymentID
		ev.AmountMinorUnits = &amount
		if currency != "" {
			ev.Currency = &currency
		}
	}
	if es := env.Payload.Subscription; es != nil && es.ID != "" {
		if sub, err := tx.GetSubscriptionByProviderID(ctx, es.ID); err == nil {
			ev.SubscriptionID = uuid.NullUUID{UUID: sub.ID, Valid: true}
		}
	}
	return ev
}

// applyPeriods refreshes the period dates when the event carries a later
// period end. Webhook delivery order is not guaranteed; an event with an
// older period loses.
func applyPeriods(sub *types.Subscription, es *eventSubscription) {
	if es.CurrentEnd == 0 {
		return
	}
	end := time.Unix(es.CurrentEnd, 0).UTC()
	if sub.PeriodEnd != nil && !end.After(*sub.PeriodEnd) {
		return
	}
	sub.PeriodEnd = &end
	if es.CurrentStart != 0 {
		start := time.Unix(es.CurrentStart, 0).UTC()
		sub.PeriodStart = &start
	}
}

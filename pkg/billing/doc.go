// Package billing mirrors payment-provider subscriptions and drives the
// subscription state machine from verified webhook events.
//
// Local rows never change from user actions. Checkout creates a pending
// row and hands the user to the provider's hosted page; Cancel asks the
// provider to cancel at cycle end. Every state transition arrives as a
// webhook, signature-verified and applied under a row lock.
//
// # Architecture
//
//	 provider webhook                        user request
//	        │                                     │
//	        ▼                                     ▼
//	┌─ ProcessWebhook ─────────────┐   ┌─ Checkout / Cancel ──┐
//	│ verify HMAC over raw body    │   │ pre-checks           │
//	│ tx:                          │   │ RESTProvider call    │
//	│   ledger insert (dedup)      │   │ pending row insert   │
//	│   lock subscription row      │   └──────────────────────┘
//	│   evaluate transition        │
//	│   apply state + periods      │
//	│ commit                       │
//	│ enqueue terminal fan-out ────┼──► StopWorker ──► workspace.Manager
//	└──────────────────────────────┘      (supervised, bounded queue)
//
// # State Machine
//
//	pending  → active
//	active   → past_due | cancelled | expired
//	past_due → active   | cancelled | expired
//	cancelled, expired: terminal
//
// Terminal states are sticky. Events that do not fit the current state
// are appended to the ledger and acknowledged so the provider stops
// retrying; nothing else changes.
//
// # Idempotency and Ordering
//
// The payment_events ledger is keyed by the provider event id; a replay
// short-circuits after the dedup insert, so two deliveries of the same
// event leave exactly the state and ledger one would. Out-of-order
// deliveries resolve by latest-wins on the period end: an event carrying
// an older current_end cannot roll the period back.
//
// # Failure Discipline
//
// Signature, parse, and transaction failures return non-2xx so the
// provider redelivers. Once the transaction commits the response is
// success no matter what the stop fan-out does: stop failures are
// logged, and a full worker queue drops the owner with a log line.
//
// # Usage
//
//	svc := billing.NewService(store, billing.NewRESTProvider(cfg.Payment), mgr, cfg.Payment)
//	svc.Start()
//	defer svc.Close()
//
//	outcome, err := svc.ProcessWebhook(ctx, rawBody, r.Header.Get("X-Webhook-Signature"))
//
// # Integration Points
//
//   - pkg/storage: subscription rows, row locks, the payment ledger
//   - pkg/workspace: StopAllForOwner on terminal transitions
//   - pkg/api: webhook route (raw body), checkout and cancel endpoints
//   - pkg/config: provider keys, webhook secret, plan catalog
//
// # See Also
//
//   - pkg/types for subscription states and the entitlement rule
//   - pkg/workspace for what entitlement gates
package billing

package billing

import (
	"github.com/cuemby/hutch/pkg/types"
)

// Event types delivered by the payment provider. Anything else is
// recorded in the ledger without touching subscription state.
const (
	EventActivated     = "subscription.activated"
	EventCharged       = "subscription.charged"
	EventCompleted     = "subscription.completed"
	EventCancelled     = "subscription.cancelled"
	EventPending       = "subscription.pending"
	EventHalted        = "subscription.halted"
	EventPaused        = "subscription.paused"
	EventResumed       = "subscription.resumed"
	EventPaymentFailed = "payment.failed"
)

// transition is the row mutation a webhook event produces.
type transition struct {
	to           types.SubscriptionState
	setCancelled bool
	stopOwner    bool
}

// evaluate maps an event type and the current state to the transition it
// produces. ok is false when the event does not move this subscription:
// terminal states accept nothing, and each event applies only from the
// states listed here. The caller records the event either way.
func evaluate(event string, current types.SubscriptionState) (transition, bool) {
	if current.Terminal() {
		return transition{}, false
	}

	switch event {
	case EventActivated:
		if current == types.SubscriptionStatePending {
			return transition{to: types.SubscriptionStateActive}, true
		}
	case EventCharged:
		// A successful charge leaves the subscription active whatever
		// non-terminal state it was in: it confirms pending and
		// recovers past_due.
		return transition{to: types.SubscriptionStateActive}, true
	case EventCompleted:
		if current == types.SubscriptionStateActive || current == types.SubscriptionStatePastDue {
			return transition{to: types.SubscriptionStateExpired, stopOwner: true}, true
		}
	case EventCancelled:
		// Cancellation wins from every non-terminal state, including
		// pending subscriptions that never activated.
		return transition{to: types.SubscriptionStateCancelled, setCancelled: true, stopOwner: true}, true
	case EventPending, EventHalted, EventPaused:
		if current == types.SubscriptionStateActive {
			return transition{to: types.SubscriptionStatePastDue}, true
		}
	case EventResumed:
		if current == types.SubscriptionStatePastDue {
			return transition{to: types.SubscriptionStateActive}, true
		}
	}
	return transition{}, false
}

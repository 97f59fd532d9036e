package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cuemby/hutch/pkg/types"
)

// TestEvaluate tests the event-to-transition table over every state
func TestEvaluate(t *testing.T) {
	tests := []struct {
		name    string
		event   string
		current types.SubscriptionState
		ok      bool
		to      types.SubscriptionState
		stop    bool
	}{
		{"activated from pending", EventActivated, types.SubscriptionStatePending, true, types.SubscriptionStateActive, false},
		{"activated from active ignored", EventActivated, types.SubscriptionStateActive, false, "", false},
		{"activated from past_due ignored", EventActivated, types.SubscriptionStatePastDue, false, "", false},

		{"charged confirms pending", EventCharged, types.SubscriptionStatePending, true, types.SubscriptionStateActive, false},
		{"charged keeps active", EventCharged, types.SubscriptionStateActive, true, types.SubscriptionStateActive, false},
		{"charged recovers past_due", EventCharged, types.SubscriptionStatePastDue, true, types.SubscriptionStateActive, false},

		{"completed from active", EventCompleted, types.SubscriptionStateActive, true, types.SubscriptionStateExpired, true},
		{"completed from past_due", EventCompleted, types.SubscriptionStatePastDue, true, types.SubscriptionStateExpired, true},
		{"completed from pending ignored", EventCompleted, types.SubscriptionStatePending, false, "", false},

		{"cancelled from pending", EventCancelled, types.SubscriptionStatePending, true, types.SubscriptionStateCancelled, true},
		{"cancelled from active", EventCancelled, types.SubscriptionStateActive, true, types.SubscriptionStateCancelled, true},
		{"cancelled from past_due", EventCancelled, types.SubscriptionStatePastDue, true, types.SubscriptionStateCancelled, true},

		{"halted from active", EventHalted, types.SubscriptionStateActive, true, types.SubscriptionStatePastDue, false},
		{"paused from active", EventPaused, types.SubscriptionStateActive, true, types.SubscriptionStatePastDue, false},
		{"pending-event from active", EventPending, types.SubscriptionStateActive, true, types.SubscriptionStatePastDue, false},
		{"halted from pending ignored", EventHalted, types.SubscriptionStatePending, false, "", false},

		{"resumed from past_due", EventResumed, types.SubscriptionStatePastDue, true, types.SubscriptionStateActive, false},
		{"resumed from active ignored", EventResumed, types.SubscriptionStateActive, false, "", false},

		{"cancelled state is sticky", EventCharged, types.SubscriptionStateCancelled, false, "", false},
		{"expired state is sticky", EventCancelled, types.SubscriptionStateExpired, false, "", false},
		{"activated on cancelled ignored", EventActivated, types.SubscriptionStateCancelled, false, "", false},

		{"payment failure records only", EventPaymentFailed, types.SubscriptionStateActive, false, "", false},
		{"unknown event records only", "invoice.created", types.SubscriptionStateActive, false, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, ok := evaluate(tt.event, tt.current)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.to, tr.to)
				assert.Equal(t, tt.stop, tr.stopOwner)
			}
		})
	}
}

// TestEvaluateCancelledSetsTimestampFlag tests that only cancellation
// carries the cancelled_at side effect
func TestEvaluateCancelledSetsTimestampFlag(t *testing.T) {
	tr, ok := evaluate(EventCancelled, types.SubscriptionStateActive)
	assert.True(t, ok)
	assert.True(t, tr.setCancelled)

	tr, ok = evaluate(EventCompleted, types.SubscriptionStateActive)
	assert.True(t, ok)
	assert.False(t, tr.setCancelled)
}

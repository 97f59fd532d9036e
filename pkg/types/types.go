package types

import (
	"time"

	"github.com/google/uuid"
)

// Data-model bounds shared by validation at the API edge and the
// lifecycle manager.
const (
	MaxEmailLength = 255
	MaxNameLength  = 100

	MaxCPUQuota = 8.0

	MinMemoryBytes = 128 << 20 // 128 MiB
	MaxMemoryBytes = 8 << 30   // 8 GiB

	// ProxyCredentialLength is the hex-encoded length of the 256-bit
	// per-workspace credential.
	ProxyCredentialLength = 64
)

// User represents a registered account
type User struct {
	ID             uuid.UUID `db:"id"`
	Email          string    `db:"email"`
	PasswordDigest string    `db:"password_digest"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// WorkspaceState represents the lifecycle state of a workspace record.
// It tracks the record, not the container: a stopped workspace may have
// no container at all.
type WorkspaceState string

const (
	WorkspaceStateStopped  WorkspaceState = "stopped"
	WorkspaceStateCreating WorkspaceState = "creating"
	WorkspaceStateRunning  WorkspaceState = "running"
	WorkspaceStateError    WorkspaceState = "error"
)

// Workspace represents a per-tenant isolated container plus its persisted
// configuration
type Workspace struct {
	ID              uuid.UUID      `db:"id"`
	OwnerID         uuid.UUID      `db:"owner_id"`
	Name            string         `db:"name"`
	EngineHandle    *string        `db:"engine_handle"`
	RuntimeState    WorkspaceState `db:"runtime_state"`
	ProxyCredential string         `db:"proxy_credential"`
	CPUQuota        float64        `db:"cpu_quota"`
	MemoryBytes     int64          `db:"memory_bytes"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
	LastStartedAt   *time.Time     `db:"last_started_at"`
}

// Handle returns the engine handle or "" when no container exists.
func (w *Workspace) Handle() string {
	if w.EngineHandle == nil {
		return ""
	}
	return *w.EngineHandle
}

// SubscriptionState represents the state of a subscription
type SubscriptionState string

const (
	SubscriptionStatePending   SubscriptionState = "pending"
	SubscriptionStateActive    SubscriptionState = "active"
	SubscriptionStatePastDue   SubscriptionState = "past_due"
	SubscriptionStateCancelled SubscriptionState = "cancelled"
	SubscriptionStateExpired   SubscriptionState = "expired"
)

// Terminal reports whether the state has no outgoing transitions.
func (s SubscriptionState) Terminal() bool {
	return s == SubscriptionStateCancelled || s == SubscriptionStateExpired
}

// Subscription represents a payment-provider subscription mirrored locally.
// State transitions happen exclusively through verified webhook events.
type Subscription struct {
	ID                     uuid.UUID         `db:"id"`
	UserID                 uuid.UUID         `db:"user_id"`
	ProviderSubscriptionID *string           `db:"provider_subscription_id"`
	State                  SubscriptionState `db:"state"`
	PlanID                 string            `db:"plan_id"`
	PeriodStart            *time.Time        `db:"period_start"`
	PeriodEnd              *time.Time        `db:"period_end"`
	CancelledAt            *time.Time        `db:"cancelled_at"`
	CreatedAt              time.Time         `db:"created_at"`
	UpdatedAt              time.Time         `db:"updated_at"`
}

// Entitled reports whether the subscription grants access at the given
// instant: active state with an unexpired period.
func (s *Subscription) Entitled(now time.Time) bool {
	return s.State == SubscriptionStateActive && s.PeriodEnd != nil && s.PeriodEnd.After(now)
}

// PaymentEvent represents one row of the append-only webhook ledger. Rows
// are inserted exactly once, keyed by the provider event id, and never
// updated or deleted.
type PaymentEvent struct {
	ID                uuid.UUID     `db:"id"`
	SubscriptionID    uuid.NullUUID `db:"subscription_id"`
	ProviderEventID   string        `db:"provider_event_id"`
	EventType         string        `db:"event_type"`
	ProviderPaymentID *string       `db:"provider_payment_id"`
	AmountMinorUnits  *int64        `db:"amount_minor_units"`
	Currency          *string       `db:"currency"`
	RawPayload        []byte        `db:"raw_payload"`
	CreatedAt         time.Time     `db:"created_at"`
}

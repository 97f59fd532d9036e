/*
Package types defines the core data structures used throughout Hutch.

This package contains the domain model for the control plane: users,
workspaces, subscriptions, and the append-only payment-event ledger, plus
the error taxonomy every component speaks. These types are used by all
other packages for persistence, state management, and API responses.

# Core Types

Accounts and workspaces:
  - User: Registered account with a bcrypt password digest
  - Workspace: Per-tenant isolated container plus persisted configuration
  - WorkspaceState: stopped, creating, running, error

Billing:
  - Subscription: Provider-driven subscription with local state mirror
  - SubscriptionState: pending, active, past_due, cancelled, expired
    (cancelled and expired are terminal)
  - PaymentEvent: One verified webhook event; the table is simultaneously
    the audit log and the idempotency ledger

Errors:
  - Kind: Edge classification (validation, auth_failed, conflict, ...)
  - Error: Kind + client-safe message + optional details + wrapped cause

# Invariants

  - A workspace's proxy credential is a 256-bit random value, hex encoded
    (64 characters), exposed only to the owner and never logged.
  - A user is entitled iff a subscription row exists with state = active
    and period_end in the future; Subscription.Entitled encodes this.
  - Terminal subscription states are sticky: no event may leave them.
  - PaymentEvent rows are append-only.

# Usage

	ws := &types.Workspace{
		ID:           uuid.New(),
		OwnerID:      owner.ID,
		Name:         "my-app",
		RuntimeState: types.WorkspaceStateStopped,
		CPUQuota:     1.0,
		MemoryBytes:  512 << 20,
	}

	if !sub.Entitled(time.Now()) {
		return types.NewError(types.KindUnentitled, "active subscription required")
	}
*/
package types

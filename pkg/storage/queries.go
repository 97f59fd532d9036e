package storage

// SQL statements for PostgresStore. Placeholder bindings only; values
// never appear in these strings.
const (
	qCreateUser = `
		INSERT INTO users (id, email, password_digest, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`

	qGetUser = `
		SELECT id, email, password_digest, created_at, updated_at
		FROM users
		WHERE id = $1`

	qGetUserByEmail = `
		SELECT id, email, password_digest, created_at, updated_at
		FROM users
		WHERE email = $1`

	qLockUser = `
		SELECT id FROM users WHERE id = $1 FOR UPDATE`

	qDeleteUser = `
		DELETE FROM users WHERE id = $1`

	qCreateWorkspace = `
		INSERT INTO workspaces (
			id, owner_id, name, engine_handle, runtime_state,
			proxy_credential, cpu_quota, memory_bytes,
			created_at, updated_at, last_started_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	workspaceColumns = `
		id, owner_id, name, engine_handle, runtime_state,
		proxy_credential, cpu_quota, memory_bytes,
		created_at, updated_at, last_started_at`

	qGetWorkspace = `
		SELECT ` + workspaceColumns + `
		FROM workspaces
		WHERE id = $1`

	qGetWorkspaceForUpdate = qGetWorkspace + `
		FOR UPDATE`

	qGetWorkspaceByCredential = `
		SELECT ` + workspaceColumns + `
		FROM workspaces
		WHERE proxy_credential = $1`

	qListWorkspacesByOwner = `
		SELECT ` + workspaceColumns + `
		FROM workspaces
		WHERE owner_id = $1
		ORDER BY created_at`

	qCountWorkspacesByOwner = `
		SELECT COUNT(*) FROM workspaces WHERE owner_id = $1`

	qUpdateWorkspace = `
		UPDATE workspaces
		SET name = $2,
		    engine_handle = $3,
		    runtime_state = $4,
		    cpu_quota = $5,
		    memory_bytes = $6,
		    updated_at = $7,
		    last_started_at = $8
		WHERE id = $1`

	qDeleteWorkspace = `
		DELETE FROM workspaces WHERE id = $1`

	qCreateSubscription = `
		INSERT INTO subscriptions (
			id, user_id, provider_subscription_id, state, plan_id,
			period_start, period_end, cancelled_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	subscriptionColumns = `
		id, user_id, provider_subscription_id, state, plan_id,
		period_start, period_end, cancelled_at, created_at, updated_at`

	qGetSubscriptionByProviderID = `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE provider_subscription_id = $1`

	qGetSubscriptionByProviderIDForUpdate = qGetSubscriptionByProviderID + `
		FOR UPDATE`

	qGetLatestSubscriptionByUser = `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 1`

	qGetNonTerminalSubscriptionByUser = `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE user_id = $1 AND state NOT IN ('cancelled', 'expired')
		ORDER BY created_at DESC
		LIMIT 1`

	qUpdateSubscription = `
		UPDATE subscriptions
		SET provider_subscription_id = $2,
		    state = $3,
		    plan_id = $4,
		    period_start = $5,
		    period_end = $6,
		    cancelled_at = $7,
		    updated_at = $8
		WHERE id = $1`

	qHasActiveSubscription = `
		SELECT EXISTS (
			SELECT 1 FROM subscriptions
			WHERE user_id = $1 AND state = 'active' AND period_end > $2
		)`

	qCountWorkspacesByState = `
		SELECT runtime_state AS state, COUNT(*) AS count
		FROM workspaces
		GROUP BY runtime_state`

	qCountSubscriptionsByState = `
		SELECT state, COUNT(*) AS count
		FROM subscriptions
		GROUP BY state`

	// The ledger is append-only; a duplicate provider_event_id inserts
	// nothing and returns no row, which is the idempotency signal.
	qInsertPaymentEvent = `
		INSERT INTO payment_events (
			id, subscription_id, provider_event_id, event_type,
			provider_payment_id, amount_minor_units, currency,
			raw_payload, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (provider_event_id) DO NOTHING
		RETURNING id`
)

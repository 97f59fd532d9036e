/*
Package ratelimit provides keyed token-bucket rate limiting.

Each key (a client IP for HTTP middleware, an owner id for workspace
lifecycle operations) gets an independent bucket allowing the full
configured budget immediately, refilling evenly across the window.
Counters are in-process; the single-instance deployment assumption makes
that sufficient.

# Usage

	authLimiter := ratelimit.New(5, 15*time.Minute)

	if !authLimiter.Allow(clientIP) {
		// reject with 429
	}

Buckets idle for a full window are swept opportunistically during Allow
calls, so long-running processes do not accumulate stale keys.

# Integration Points

  - pkg/api: per-IP limits on auth and general API routes
  - pkg/workspace: per-owner limits on lifecycle operations
*/
package ratelimit

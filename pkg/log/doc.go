/*
Package log provides structured logging for Hutch using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific loggers, configurable log levels, and a mandatory
redaction layer for secret material. All logs include timestamps and support
filtering by severity level for production debugging.

# Architecture

	┌───────────────────── LOGGING SYSTEM ─────────────────────┐
	│                                                          │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                   │          │
	│  │  - Zerolog instance                        │          │
	│  │  - Initialized via log.Init()              │          │
	│  │  - Thread-safe for concurrent use          │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                    │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Component Loggers                  │          │
	│  │  - WithComponent("workspace")              │          │
	│  │  - WithUserID("...") / WithWorkspaceID     │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                    │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          Redaction Layer                   │          │
	│  │  - log.Fields(event, map) / log.Redact     │          │
	│  │  - Blacklisted keys -> "[REDACTED]"        │          │
	│  │  - Recurses into nested maps and arrays    │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                    │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Log Output                      │          │
	│  │  JSON (production) or console (dev)        │          │
	│  └────────────────────────────────────────────┘          │
	└──────────────────────────────────────────────────────────┘

# Redaction

Hutch handles several classes of secret: password digests, bearer tokens,
per-workspace proxy credentials, and payment-provider keys and signatures.
The redaction layer guarantees that none of them can reach a log sink
through map-shaped fields:

  - Any field key whose lowercased name contains one of the blacklist
    substrings (password, secret, token, authorization, api_key, apikey,
    signature, credential, cookie) has its value replaced by "[REDACTED]".
  - Redaction descends nested maps and arrays, so a secret buried inside a
    decoded request body is still caught.
  - log.Prefix truncates a secret to a short correlation prefix for the rare
    case where an identifier is needed (for example the first 8 characters
    of a proxy credential on an authentication failure).

All map-shaped logging in Hutch goes through log.Fields; scalar fields are
added with typed zerolog methods and must never carry secret values.

# Usage

Initializing the logger:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Component loggers:

	wsLog := log.WithComponent("workspace")
	wsLog.Info().Str("workspace_id", ws.ID.String()).Msg("workspace created")

Redacted map logging:

	log.Fields(apiLog.Debug(), map[string]any{
		"path":          r.URL.Path,
		"authorization": r.Header.Get("Authorization"),
	}).Msg("request received")

# Integration Points

This package integrates with:

  - pkg/database: slow query warnings
  - pkg/workspace: lifecycle transition logs
  - pkg/billing: webhook processing and side-effect logs
  - pkg/proxy: request routing and upstream failures
  - pkg/api: request logging and panic recovery

# Security

Log Content:
  - Never log secrets or sensitive data directly
  - Route map-shaped fields through log.Fields
  - Identify credentials only by log.Prefix output
  - Raw webhook bodies and signature headers are never logged

# See Also

  - Zerolog documentation: https://github.com/rs/zerolog
  - 12-Factor App Logs: https://12factor.net/logs
*/
package log

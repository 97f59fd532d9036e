/*
Package config loads and validates the Hutch control-plane configuration.

Configuration is layered: built-in defaults, then an optional YAML file,
then environment variables. The environment always wins, so a deployment
can run entirely from the environment with no file at all.

# Environment Variables

Core:
  - DATABASE_URL (required), DATABASE_MAX_CONNS, SLOW_QUERY_THRESHOLD
  - API_ADDR, FRONTEND_ORIGIN
  - TOKEN_SECRET (required), TOKEN_TTL, BCRYPT_COST
  - LOG_LEVEL, LOG_JSON

Payments:
  - PAYMENT_PROVIDER, PAYMENT_API_BASE
  - PAYMENT_KEY_ID, PAYMENT_KEY_SECRET, PAYMENT_WEBHOOK_SECRET (required)
  - PAYMENT_PLAN_IDS (comma-separated allowlist)

Workspaces:
  - WORKSPACE_NETWORK, WORKSPACE_IMAGE, WORKSPACE_PORT
  - WORKSPACE_CPU_DEFAULT, WORKSPACE_CPU_MAX
  - WORKSPACE_MEMORY_DEFAULT, WORKSPACE_MEMORY_MIN, WORKSPACE_MEMORY_MAX
  - MAX_WORKSPACES_PER_USER
  - STOP_TIMEOUT, PROXY_DIAL_TIMEOUT

Rate limits:
  - RATE_AUTH_LIMIT / RATE_AUTH_WINDOW
  - RATE_API_LIMIT / RATE_API_WINDOW
  - RATE_LIFECYCLE_LIMIT / RATE_LIFECYCLE_WINDOW

The container engine endpoint is not configured here: the engine client
honors the standard DOCKER_HOST family directly.

# Memory Sizes

Memory values accept "512m"/"512M" (MiB), "2g"/"2G" (GiB), or a bare
integer meaning MiB. ParseMemorySize implements the rule and is shared
with API request validation, so "127m" and "8193m" fail the same way
everywhere.

# Usage

	cfg, err := config.Load(configPath) // path may be ""
	if err != nil {
		return err
	}
*/
package config

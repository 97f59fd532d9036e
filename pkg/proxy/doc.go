// Package proxy streams authenticated HTTP traffic into workspace
// containers.
//
// Workspace containers publish no host ports; this handler is the only
// path from the outside to a container. Admission is decided per
// request, so a revoked entitlement or a stopped container takes effect
// immediately.
//
// # Admission Ladder
//
//	/api/proxy/{workspace_id}/{rest...}
//
//	1. X-Workspace-Credential header present?   no ⇒ 401 auth_required
//	2. credential resolves to a workspace?      no ⇒ 401 auth_failed
//	3. workspace matches the path id?           no ⇒ 401 auth_failed
//	4. owner holds an active subscription?      no ⇒ 403 unentitled
//	5. state running with an engine handle?     no ⇒ 503 not_running
//	6. container has an address?                no ⇒ 503 unreachable
//	7. upstream answers?                        no ⇒ 502 upstream_unreachable
//
// Rungs 2 and 3 share one response body; callers cannot probe which
// credentials exist. Failed lookups log an 8-character credential
// prefix, never the credential.
//
// # Forwarding
//
// The target http://<container-ip>:<port> is built at dispatch time from
// a fresh engine inspect. The path loses its /api/proxy/{id} prefix (a
// bare prefix becomes "/"), the query string survives, the credential
// header is deleted, and everything else passes through verbatim.
// FlushInterval -1 disables response buffering so streaming upstreams
// work through the proxy.
//
// # Usage
//
//	h := proxy.NewHandler(store, eng, cfg.Workspace, renderError)
//	router.Handle("/api/proxy/*", h)
//
// # Integration Points
//
//   - pkg/storage: credential lookup, entitlement check
//   - pkg/engine: per-request container address resolution
//   - pkg/api: mounts the handler and supplies the error renderer
package proxy

// Package api is the HTTP surface of the control plane. It assembles
// the router, enforces the middleware ladder, and translates between
// JSON requests and the domain services.
//
// Request flow:
//
//	client
//	   |
//	   v
//	+-----------------------------------------------------------+
//	| request id -> real ip -> logger -> recoverer -> headers   |
//	| -> cors -> metrics                                        |
//	+-----------------------------------------------------------+
//	   |                |                 |              |
//	   v                v                 v              v
//	auth group      bearer group      webhook        /api/proxy/*
//	(body cap,      (body cap,        (body cap,     (no cap,
//	 5/15m per IP)   100/15m per IP,   no limit)      credential
//	                 bearer token)                    checked)
//	   |                |                 |              |
//	   v                v                 v              v
//	auth.Service    workspace.Manager  billing        proxy.Handler
//	                billing.Service    .Service
//
// Every error leaves through one renderer as {error, message,
// details?}; the error kind decides the status code. Handlers never
// write errors themselves.
//
// # Usage
//
//	server := api.NewServer(cfg, store, authSvc, manager, billingSvc, engine)
//	go func() {
//	    if err := server.Start(); err != nil {
//	        log.Fatal(err.Error())
//	    }
//	}()
//	...
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//	server.Shutdown(ctx)
//
// # Integration Points
//
//   - pkg/auth: register, login, and bearer token verification
//   - pkg/workspace: workspace CRUD and lifecycle handlers
//   - pkg/billing: checkout, subscription views, and the webhook
//   - pkg/proxy: mounted at /api/proxy/ without a body cap
//   - pkg/metrics: request counters, latency, and /metrics exposition
//   - pkg/ratelimit: per-IP windows for auth and API groups
//
// # See Also
//
//   - pkg/proxy for the workspace passthrough it mounts
//   - pkg/types for the error taxonomy behind the envelope
package api

// Package workspace implements the workspace lifecycle state machine.
//
// A workspace is one user-owned container plus its database record. The
// record is the source of truth; the container is derived state that the
// Manager converges toward the recorded runtime state.
//
// # Architecture
//
//	┌────────────────────────────────────────────────────────────┐
//	│                         Manager                            │
//	│                                                            │
//	│  Create ──► validate ──► tx: lock owner ── entitled? ──┐   │
//	│                              cap? ── insert stopped ◄──┘   │
//	│                                                            │
//	│  Start ───► tx: lock row ── entitled? ── creating          │
//	│                 │ create container ── start ── running     │
//	│                 └ engine failure ──► error (committed)     │
//	│                                                            │
//	│  Stop ────► tx: lock row ── stop container ── stopped      │
//	│  Delete ──► tx: lock row ── remove container ── delete     │
//	└──────────────┬──────────────────────────┬──────────────────┘
//	               │                          │
//	               ▼                          ▼
//	        storage.Store               engine.Engine
//	        (PostgreSQL)                (Docker daemon)
//
// # State Machine
//
// Runtime states are stopped, creating, running, and error. Creating is
// only ever observed briefly while a container is provisioned. Error is
// recoverable: a later Start retries provisioning, and Delete always
// works. Start on a running workspace and Stop on a stopped one are
// no-op successes.
//
// # Locking
//
// Every mutating operation runs inside storage.WithTx holding a row
// lock: Create locks the owner row so two concurrent creates cannot
// both pass the per-owner cap, and Start, Stop, and Delete lock the
// workspace row so concurrent lifecycle calls serialize. Engine calls
// happen under that lock. When the engine fails, the transaction still
// commits with the workspace in error state so the record never claims
// a container that does not exist.
//
// # Rate Limiting
//
// Mutating operations share a per-owner token bucket (default 10
// operations per 5 minutes). Exhausting it returns KindRateLimited
// before any validation or locking happens.
//
// # Usage
//
//	mgr := workspace.NewManager(store, eng, cfg.Workspace)
//
//	ws, err := mgr.Create(ctx, userID, "my blog", workspace.Limits{})
//	if err != nil {
//		return err
//	}
//	ws, err = mgr.Start(ctx, userID, ws.ID)
//
// # Integration Points
//
//   - pkg/storage: transactional state, row locks, per-owner cap count
//   - pkg/engine: container create/start/stop/remove under the tx
//   - pkg/billing: calls StopAllForOwner when a subscription ends
//   - pkg/proxy: reads workspace state to admit or refuse requests
//   - pkg/api: HTTP handlers over Create/Start/Stop/Delete/Get/List
//
// # See Also
//
//   - pkg/engine for the container hardening profile
//   - pkg/storage for locking and conflict semantics
package workspace

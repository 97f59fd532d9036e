/*
Package engine adapts the Docker Engine API for workspace containers.

The adapter owns every interaction with the container daemon: the
internal workspace network, container creation with the hardening
profile, lifecycle calls, and address resolution for the reverse proxy.
Nothing outside this package constructs daemon requests.

# Architecture

	┌──────────────── ENGINE ADAPTER ────────────────┐
	│                                                │
	│  Engine interface                              │
	│   Ping / EnsureNetwork / CreateContainer /     │
	│   StartContainer / StopContainer /             │
	│   RemoveContainer / ContainerIP                │
	│            │                                   │
	│  ┌─────────▼──────────┐                        │
	│  │   DockerEngine     │                        │
	│  │  - docker/client   │                        │
	│  │  - version         │                        │
	│  │    negotiation     │                        │
	│  │  - errdefs-based   │                        │
	│  │    idempotency     │                        │
	│  └─────────┬──────────┘                        │
	│            │ unix:///var/run/docker.sock       │
	│  ┌─────────▼──────────┐                        │
	│  │   Docker daemon    │                        │
	│  └────────────────────┘                        │
	└────────────────────────────────────────────────┘

# Hardening Profile

Every workspace container is created with:

  - No port bindings; reachable only over the internal bridge network
  - CPU quota via the 100000 microsecond CFS period
  - Memory limit with MemorySwap equal to Memory (swap disabled)
  - Capabilities dropped to ALL, then NET_BIND_SERVICE added back
  - no-new-privileges
  - Restart policy off; the lifecycle manager owns restarts
  - WORKSPACE_ID in the environment and a hostname derived from the
    workspace id

The adapter never publishes a host port and never attaches a container
to any network other than the configured internal one.

# Idempotency

The daemon signals in-state and absent resources with 304 and 404
responses; the adapter translates those into success where the
operation's outcome already holds:

  - Start: already running is success
  - Stop: already stopped and absent are success
  - Remove: absent is success (removal is forced)
  - ContainerIP: absent container or no address returns "" without error

# Usage

	eng, err := engine.NewDocker(cfg.Workspace)
	if err != nil {
		return err
	}
	defer eng.Close()

	if err := eng.EnsureNetwork(ctx); err != nil {
		return err
	}
	handle, err := eng.CreateContainer(ctx, engine.CreateSpec{
		WorkspaceID: ws.ID,
		CPUQuota:    ws.CPUQuota,
		MemoryBytes: ws.MemoryBytes,
	})

# Integration Points

  - pkg/workspace: lifecycle transitions drive every adapter call
  - pkg/proxy: ContainerIP resolves upstream targets per request
  - pkg/api: health checks ping the daemon

# See Also

  - pkg/workspace for the state machine above this adapter
  - pkg/types for the engine error kind
*/
package engine

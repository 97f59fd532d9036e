package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CreateSpec describes the container to create for a workspace. Limits
// arrive validated by the lifecycle manager.
type CreateSpec struct {
	WorkspaceID uuid.UUID
	CPUQuota    float64
	MemoryBytes int64
}

// Engine abstracts the container daemon for workspace containers.
// Operations are idempotent where the daemon allows: starting a running
// container, stopping a stopped one, and removing an absent one all
// succeed.
type Engine interface {
	// Ping verifies daemon connectivity.
	Ping(ctx context.Context) error

	// EnsureNetwork idempotently creates the internal workspace network.
	EnsureNetwork(ctx context.Context) error

	// CreateContainer creates a hardened workspace container and returns
	// its engine handle. The container is not started.
	CreateContainer(ctx context.Context, spec CreateSpec) (string, error)

	// StartContainer starts the container behind handle.
	StartContainer(ctx context.Context, handle string) error

	// StopContainer stops the container gracefully, escalating after
	// timeout.
	StopContainer(ctx context.Context, handle string, timeout time.Duration) error

	// RemoveContainer force-removes the container.
	RemoveContainer(ctx context.Context, handle string) error

	// ContainerIP returns the container's address on the internal
	// network, or "" without error when no address is attached.
	ContainerIP(ctx context.Context, handle string) (string, error)
}

package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/strslice"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/google/uuid"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/rs/zerolog"

	"github.com/cuemby/hutch/pkg/config"
	"github.com/cuemby/hutch/pkg/log"
	"github.com/cuemby/hutch/pkg/metrics"
	hutchtypes "github.com/cuemby/hutch/pkg/types"
)

const (
	// cpuPeriod is the CFS scheduling period all quota calculations use.
	cpuPeriod = 100000

	// containerPrefix names workspace containers after their record id.
	containerPrefix = "hutch-ws-"
)

// dockerAPI is the slice of the Docker client the adapter uses,
// extracted for testing with a fake daemon.
type dockerAPI interface {
	Ping(ctx context.Context) (types.Ping, error)
	NetworkInspect(ctx context.Context, networkID string, options network.InspectOptions) (network.Inspect, error)
	NetworkCreate(ctx context.Context, name string, options network.CreateOptions) (network.CreateResponse, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
}

// DockerEngine implements Engine against the Docker Engine API.
type DockerEngine struct {
	cli     dockerAPI
	closer  func() error
	network string
	image   string
	log     zerolog.Logger
}

// NewDocker connects to the Docker daemon using the standard DOCKER_*
// environment variables and negotiates the API version.
func NewDocker(cfg config.Workspace) (*DockerEngine, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to container daemon: %w", err)
	}

	return &DockerEngine{
		cli:     cli,
		closer:  cli.Close,
		network: cfg.Network,
		image:   cfg.Image,
		log:     log.WithComponent("engine"),
	}, nil
}

// Close closes the daemon connection.
func (e *DockerEngine) Close() error {
	if e.closer != nil {
		return e.closer()
	}
	return nil
}

// Ping verifies daemon connectivity.
func (e *DockerEngine) Ping(ctx context.Context) error {
	if _, err := e.cli.Ping(ctx); err != nil {
		return wrapEngine("failed to reach container daemon", err)
	}
	return nil
}

// EnsureNetwork creates the internal workspace bridge network if it does
// not exist. Containers on it reach each other by IP; nothing is
// published to the host.
func (e *DockerEngine) EnsureNetwork(ctx context.Context) error {
	_, err := e.cli.NetworkInspect(ctx, e.network, network.InspectOptions{})
	if err == nil {
		return nil
	}
	if !errdefs.IsNotFound(err) {
		return wrapEngine("failed to inspect network", err)
	}

	_, err = e.cli.NetworkCreate(ctx, e.network, network.CreateOptions{
		Driver:     "bridge",
		Attachable: true,
		Labels:     map[string]string{"hutch.managed": "true"},
	})
	if err != nil {
		// A concurrent creator may have won; the network existing is all
		// that matters.
		if _, inspectErr := e.cli.NetworkInspect(ctx, e.network, network.InspectOptions{}); inspectErr == nil {
			return nil
		}
		return wrapEngine("failed to create network", err)
	}

	e.log.Info().Str("network", e.network).Msg("workspace network created")
	return nil
}

// CreateContainer creates a hardened workspace container attached only
// to the internal network and returns the daemon's container id.
func (e *DockerEngine) CreateContainer(ctx context.Context, spec CreateSpec) (handle string, err error) {
	defer func() { observeOperation("create", err) }()

	id := spec.WorkspaceID.String()
	resp, err := e.cli.ContainerCreate(ctx,
		newContainerConfig(e.image, spec),
		newHostConfig(spec),
		newNetworkingConfig(e.network),
		nil,
		containerName(spec.WorkspaceID),
	)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return "", hutchtypes.WrapError(hutchtypes.KindEngineError, "workspace image not available", err)
		}
		if errdefs.IsInvalidParameter(err) {
			return "", hutchtypes.WrapError(hutchtypes.KindValidation, "invalid container configuration", err)
		}
		return "", wrapEngine("failed to create container", err)
	}

	e.log.Info().
		Str("workspace_id", id).
		Str("container_id", resp.ID).
		Msg("container created")
	return resp.ID, nil
}

// StartContainer starts the container. A container that is already
// running counts as success.
func (e *DockerEngine) StartContainer(ctx context.Context, handle string) (err error) {
	defer func() { observeOperation("start", err) }()

	if err := e.cli.ContainerStart(ctx, handle, container.StartOptions{}); err != nil {
		if errdefs.IsNotModified(err) {
			return nil
		}
		return wrapEngine("failed to start container", err)
	}
	return nil
}

// StopContainer stops the container gracefully; the daemon escalates to
// SIGKILL after timeout. Already-stopped and absent containers count as
// success.
func (e *DockerEngine) StopContainer(ctx context.Context, handle string, timeout time.Duration) (err error) {
	defer func() { observeOperation("stop", err) }()

	seconds := int(timeout.Seconds())
	stopErr := e.cli.ContainerStop(ctx, handle, container.StopOptions{Timeout: &seconds})
	if stopErr != nil && !errdefs.IsNotFound(stopErr) && !errdefs.IsNotModified(stopErr) {
		return wrapEngine("failed to stop container", stopErr)
	}
	return nil
}

// RemoveContainer force-removes the container. An absent container
// counts as success.
func (e *DockerEngine) RemoveContainer(ctx context.Context, handle string) (err error) {
	defer func() { observeOperation("remove", err) }()

	removeErr := e.cli.ContainerRemove(ctx, handle, container.RemoveOptions{Force: true})
	if removeErr != nil && !errdefs.IsNotFound(removeErr) {
		return wrapEngine("failed to remove container", removeErr)
	}
	return nil
}

// ContainerIP returns the container's address on the internal network.
// An absent container or a container without an address on that network
// returns "" with no error.
func (e *DockerEngine) ContainerIP(ctx context.Context, handle string) (ip string, err error) {
	defer func() { observeOperation("inspect", err) }()

	inspect, err := e.cli.ContainerInspect(ctx, handle)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return "", nil
		}
		return "", wrapEngine("failed to inspect container", err)
	}

	if inspect.NetworkSettings == nil {
		return "", nil
	}
	endpoint, ok := inspect.NetworkSettings.Networks[e.network]
	if !ok || endpoint == nil {
		return "", nil
	}
	return endpoint.IPAddress, nil
}

func containerName(workspaceID uuid.UUID) string {
	return containerPrefix + workspaceID.String()
}

func containerHostname(workspaceID uuid.UUID) string {
	return "ws-" + strings.SplitN(workspaceID.String(), "-", 2)[0]
}

func newContainerConfig(image string, spec CreateSpec) *container.Config {
	id := spec.WorkspaceID.String()
	return &container.Config{
		Image:    image,
		Hostname: containerHostname(spec.WorkspaceID),
		Env:      []string{"WORKSPACE_ID=" + id},
		Labels: map[string]string{
			"hutch.managed":      "true",
			"hutch.workspace_id": id,
		},
	}
}

func newHostConfig(spec CreateSpec) *container.HostConfig {
	return &container.HostConfig{
		Resources: container.Resources{
			CPUPeriod: cpuPeriod,
			CPUQuota:  int64(spec.CPUQuota * cpuPeriod),
			// MemorySwap equal to Memory disables swap.
			Memory:     spec.MemoryBytes,
			MemorySwap: spec.MemoryBytes,
		},
		CapDrop:       strslice.StrSlice{"ALL"},
		CapAdd:        strslice.StrSlice{"NET_BIND_SERVICE"},
		SecurityOpt:   []string{"no-new-privileges:true"},
		RestartPolicy: container.RestartPolicy{Name: container.RestartPolicyDisabled},
	}
}

func newNetworkingConfig(networkName string) *network.NetworkingConfig {
	return &network.NetworkingConfig{
		EndpointsConfig: map[string]*network.EndpointSettings{
			networkName: {},
		},
	}
}

func wrapEngine(msg string, err error) error {
	return hutchtypes.WrapError(hutchtypes.KindEngineError, msg, err)
}

func observeOperation(operation string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	metrics.EngineOperationsTotal.WithLabelValues(operation, result).Inc()
}

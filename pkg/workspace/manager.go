package workspace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/hutch/pkg/config"
	"github.com/cuemby/hutch/pkg/engine"
	"github.com/cuemby/hutch/pkg/log"
	"github.com/cuemby/hutch/pkg/ratelimit"
	"github.com/cuemby/hutch/pkg/storage"
	"github.com/cuemby/hutch/pkg/types"
)

// nameRE constrains workspace names to letters, digits, spaces, dashes,
// and underscores, at most 100 characters.
var nameRE = regexp.MustCompile(`^[A-Za-z0-9 _-]{1,100}$`)

// Limits carries requested resource limits. Zero fields take the
// configured defaults.
type Limits struct {
	CPUQuota    float64
	MemoryBytes int64
}

// Manager drives the workspace state machine. Every mutating operation
// runs in one transaction holding the workspace (or owner) row lock, so
// concurrent operations on the same workspace serialize. The engine
// call happens under that lock; when it fails the transaction still
// commits, recording the error state.
type Manager struct {
	store   storage.Store
	engine  engine.Engine
	cfg     config.Workspace
	limiter *ratelimit.Limiter
	log     zerolog.Logger
}

// NewManager creates a lifecycle manager.
func NewManager(store storage.Store, eng engine.Engine, cfg config.Workspace) *Manager {
	return &Manager{
		store:   store,
		engine:  eng,
		cfg:     cfg,
		limiter: ratelimit.New(cfg.LifecycleRateLimit, cfg.LifecycleRateWindow),
		log:     log.WithComponent("workspace"),
	}
}

// Create validates the request and inserts a stopped workspace with a
// fresh proxy credential. Entitlement and the per-owner cap are checked
// inside the transaction, under the owner row lock, so two concurrent
// creates cannot both pass the cap.
func (m *Manager) Create(ctx context.Context, ownerID uuid.UUID, name string, limits Limits) (*types.Workspace, error) {
	if err := m.allow(ownerID); err != nil {
		return nil, err
	}
	if err := validateName(name); err != nil {
		return nil, err
	}
	limits, err := m.normalizeLimits(limits)
	if err != nil {
		return nil, err
	}
	credential, err := newProxyCredential()
	if err != nil {
		return nil, err
	}

	var ws *types.Workspace
	err = m.store.WithTx(ctx, func(tx storage.Store) error {
		if err := tx.LockUser(ctx, ownerID); err != nil {
			return err
		}
		if err := m.requireEntitlement(ctx, tx, ownerID); err != nil {
			return err
		}
		count, err := tx.CountWorkspacesByOwner(ctx, ownerID)
		if err != nil {
			return err
		}
		if count >= m.cfg.MaxPerUser {
			return types.NewError(types.KindLimitReached,
				fmt.Sprintf("workspace limit of %d reached", m.cfg.MaxPerUser))
		}

		now := time.Now().UTC()
		ws = &types.Workspace{
			ID:              uuid.New(),
			OwnerID:         ownerID,
			Name:            name,
			RuntimeState:    types.WorkspaceStateStopped,
			ProxyCredential: credential,
			CPUQuota:        limits.CPUQuota,
			MemoryBytes:     limits.MemoryBytes,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		return tx.CreateWorkspace(ctx, ws)
	})
	if err != nil {
		return nil, err
	}

	m.log.Info().
		Str("workspace_id", ws.ID.String()).
		Str("user_id", ownerID.String()).
		Msg("workspace created")
	return ws, nil
}

// Start brings a workspace to running. When no container exists yet the
// workspace passes through creating while one is provisioned. Starting
// a running workspace is a no-op success. Engine failures commit the
// error state and surface to the caller; a later start may retry.
func (m *Manager) Start(ctx context.Context, ownerID, workspaceID uuid.UUID) (*types.Workspace, error) {
	if err := m.allow(ownerID); err != nil {
		return nil, err
	}

	var (
		ws        *types.Workspace
		engineErr error
	)
	err := m.store.WithTx(ctx, func(tx storage.Store) error {
		engineErr = nil
		var err error
		ws, err = m.lockOwned(ctx, tx, ownerID, workspaceID)
		if err != nil {
			return err
		}
		if err := m.requireEntitlement(ctx, tx, ownerID); err != nil {
			return err
		}
		if ws.RuntimeState == types.WorkspaceStateRunning {
			return nil
		}

		if ws.EngineHandle == nil {
			ws.RuntimeState = types.WorkspaceStateCreating
			ws.UpdatedAt = time.Now().UTC()
			if err := tx.UpdateWorkspace(ctx, ws); err != nil {
				return err
			}

			handle, err := m.engine.CreateContainer(ctx, engine.CreateSpec{
				WorkspaceID: ws.ID,
				CPUQuota:    ws.CPUQuota,
				MemoryBytes: ws.MemoryBytes,
			})
			if err != nil {
				engineErr = err
				return m.markError(ctx, tx, ws)
			}
			ws.EngineHandle = &handle
			ws.RuntimeState = types.WorkspaceStateStopped
		}

		if err := m.engine.StartContainer(ctx, *ws.EngineHandle); err != nil {
			engineErr = err
			return m.markError(ctx, tx, ws)
		}

		now := time.Now().UTC()
		ws.RuntimeState = types.WorkspaceStateRunning
		ws.LastStartedAt = &now
		ws.UpdatedAt = now
		return tx.UpdateWorkspace(ctx, ws)
	})
	if err != nil {
		return nil, err
	}
	if engineErr != nil {
		return nil, engineErr
	}

	m.log.Info().Str("workspace_id", ws.ID.String()).Msg("workspace started")
	return ws, nil
}

// Stop stops the container with the configured graceful timeout and
// moves the record to stopped. Stopping a stopped workspace is a no-op
// success.
func (m *Manager) Stop(ctx context.Context, ownerID, workspaceID uuid.UUID) (*types.Workspace, error) {
	if err := m.allow(ownerID); err != nil {
		return nil, err
	}

	var (
		ws        *types.Workspace
		engineErr error
	)
	err := m.store.WithTx(ctx, func(tx storage.Store) error {
		engineErr = nil
		var err error
		ws, err = m.lockOwned(ctx, tx, ownerID, workspaceID)
		if err != nil {
			return err
		}
		if err := m.requireEntitlement(ctx, tx, ownerID); err != nil {
			return err
		}
		if ws.RuntimeState == types.WorkspaceStateStopped {
			return nil
		}

		if ws.EngineHandle != nil {
			if err := m.engine.StopContainer(ctx, *ws.EngineHandle, m.cfg.StopTimeout); err != nil {
				engineErr = err
				return m.markError(ctx, tx, ws)
			}
		}

		ws.RuntimeState = types.WorkspaceStateStopped
		ws.UpdatedAt = time.Now().UTC()
		return tx.UpdateWorkspace(ctx, ws)
	})
	if err != nil {
		return nil, err
	}
	if engineErr != nil {
		return nil, engineErr
	}

	m.log.Info().Str("workspace_id", ws.ID.String()).Msg("workspace stopped")
	return ws, nil
}

// Delete force-removes any backing container and deletes the record.
// It succeeds when the container is already absent and does not require
// an entitlement, so owners can clean up after a subscription ends.
func (m *Manager) Delete(ctx context.Context, ownerID, workspaceID uuid.UUID) error {
	if err := m.allow(ownerID); err != nil {
		return err
	}

	var engineErr error
	err := m.store.WithTx(ctx, func(tx storage.Store) error {
		engineErr = nil
		ws, err := m.lockOwned(ctx, tx, ownerID, workspaceID)
		if err != nil {
			return err
		}

		if ws.EngineHandle != nil {
			if err := m.engine.RemoveContainer(ctx, *ws.EngineHandle); err != nil {
				engineErr = err
				return m.markError(ctx, tx, ws)
			}
		}
		return tx.DeleteWorkspace(ctx, ws.ID)
	})
	if err != nil {
		return err
	}
	if engineErr != nil {
		return engineErr
	}

	m.log.Info().Str("workspace_id", workspaceID.String()).Msg("workspace deleted")
	return nil
}

// Get returns a workspace after checking ownership.
func (m *Manager) Get(ctx context.Context, ownerID, workspaceID uuid.UUID) (*types.Workspace, error) {
	ws, err := m.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if ws.OwnerID != ownerID {
		return nil, types.NewError(types.KindForbidden, "access denied")
	}
	return ws, nil
}

// List returns the owner's workspaces in creation order.
func (m *Manager) List(ctx context.Context, ownerID uuid.UUID) ([]*types.Workspace, error) {
	return m.store.ListWorkspacesByOwner(ctx, ownerID)
}

// StopAllForOwner stops every non-stopped workspace the owner has. The
// billing fan-out calls this after a terminal subscription transition;
// one workspace failing to stop does not keep the rest running.
func (m *Manager) StopAllForOwner(ctx context.Context, ownerID uuid.UUID) error {
	workspaces, err := m.store.ListWorkspacesByOwner(ctx, ownerID)
	if err != nil {
		return err
	}

	for _, ws := range workspaces {
		if ws.RuntimeState == types.WorkspaceStateStopped {
			continue
		}
		if err := m.stopLocked(ctx, ws.ID); err != nil {
			m.log.Error().Err(err).
				Str("workspace_id", ws.ID.String()).
				Str("user_id", ownerID.String()).
				Msg("failed to stop workspace")
		}
	}
	return nil
}

// stopLocked stops one workspace under its row lock without ownership
// or entitlement checks.
func (m *Manager) stopLocked(ctx context.Context, workspaceID uuid.UUID) error {
	var engineErr error
	err := m.store.WithTx(ctx, func(tx storage.Store) error {
		engineErr = nil
		ws, err := tx.GetWorkspaceForUpdate(ctx, workspaceID)
		if err != nil {
			return err
		}
		if ws.RuntimeState == types.WorkspaceStateStopped {
			return nil
		}

		if ws.EngineHandle != nil {
			if err := m.engine.StopContainer(ctx, *ws.EngineHandle, m.cfg.StopTimeout); err != nil {
				engineErr = err
				return m.markError(ctx, tx, ws)
			}
		}

		ws.RuntimeState = types.WorkspaceStateStopped
		ws.UpdatedAt = time.Now().UTC()
		return tx.UpdateWorkspace(ctx, ws)
	})
	if err != nil {
		return err
	}
	return engineErr
}

func (m *Manager) lockOwned(ctx context.Context, tx storage.Store, ownerID, workspaceID uuid.UUID) (*types.Workspace, error) {
	ws, err := tx.GetWorkspaceForUpdate(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if ws.OwnerID != ownerID {
		return nil, types.NewError(types.KindForbidden, "access denied")
	}
	return ws, nil
}

func (m *Manager) requireEntitlement(ctx context.Context, tx storage.Store, ownerID uuid.UUID) error {
	entitled, err := tx.HasActiveSubscription(ctx, ownerID)
	if err != nil {
		return err
	}
	if !entitled {
		return types.NewError(types.KindUnentitled, "active subscription required")
	}
	return nil
}

func (m *Manager) markError(ctx context.Context, tx storage.Store, ws *types.Workspace) error {
	ws.RuntimeState = types.WorkspaceStateError
	ws.UpdatedAt = time.Now().UTC()
	return tx.UpdateWorkspace(ctx, ws)
}

func (m *Manager) allow(ownerID uuid.UUID) error {
	if !m.limiter.Allow(ownerID.String()) {
		return types.NewError(types.KindRateLimited, "workspace operation rate limit exceeded")
	}
	return nil
}

func (m *Manager) normalizeLimits(l Limits) (Limits, error) {
	if l.CPUQuota == 0 {
		l.CPUQuota = m.cfg.CPUDefault
	}
	if l.MemoryBytes == 0 {
		l.MemoryBytes = m.cfg.MemoryDefault
	}
	if l.CPUQuota <= 0 || l.CPUQuota > m.cfg.CPUMax {
		return l, types.NewError(types.KindValidation,
			fmt.Sprintf("cpu limit must be greater than 0 and at most %g", m.cfg.CPUMax))
	}
	if l.MemoryBytes < m.cfg.MemoryMin || l.MemoryBytes > m.cfg.MemoryMax {
		return l, types.NewError(types.KindValidation,
			fmt.Sprintf("memory limit must be between %d MiB and %d MiB",
				m.cfg.MemoryMin>>20, m.cfg.MemoryMax>>20))
	}
	return l, nil
}

func validateName(name string) error {
	if !nameRE.MatchString(name) {
		return types.NewError(types.KindValidation,
			"name must be 1-100 characters of letters, digits, spaces, dashes, or underscores")
	}
	return nil
}

func newProxyCredential() (string, error) {
	buf := make([]byte, types.ProxyCredentialLength/2)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate proxy credential: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

package metrics

import (
	"context"
	"time"

	"github.com/cuemby/hutch/pkg/storage"
	"github.com/cuemby/hutch/pkg/types"
)

const (
	collectInterval = 15 * time.Second
	collectTimeout  = 10 * time.Second
)

// Collector refreshes inventory gauges from the store
type Collector struct {
	store  storage.Store
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(store storage.Store) *Collector {
	return &Collector{
		store:  store,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(collectInterval)
	go func() {
		// Collect immediately on start
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	ctx, cancel := context.WithTimeout(context.Background(), collectTimeout)
	defer cancel()

	c.collectWorkspaceMetrics(ctx)
	c.collectSubscriptionMetrics(ctx)
}

func (c *Collector) collectWorkspaceMetrics(ctx context.Context) {
	counts, err := c.store.CountWorkspacesByState(ctx)
	if err != nil {
		return
	}

	// Walk the full state set so emptied states drop back to zero
	for _, state := range []types.WorkspaceState{
		types.WorkspaceStateStopped,
		types.WorkspaceStateCreating,
		types.WorkspaceStateRunning,
		types.WorkspaceStateError,
	} {
		WorkspacesTotal.WithLabelValues(string(state)).Set(float64(counts[state]))
	}
}

func (c *Collector) collectSubscriptionMetrics(ctx context.Context) {
	counts, err := c.store.CountSubscriptionsByState(ctx)
	if err != nil {
		return
	}

	for _, state := range []types.SubscriptionState{
		types.SubscriptionStatePending,
		types.SubscriptionStateActive,
		types.SubscriptionStatePastDue,
		types.SubscriptionStateCancelled,
		types.SubscriptionStateExpired,
	} {
		SubscriptionsTotal.WithLabelValues(string(state)).Set(float64(counts[state]))
	}
}

package billing

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/hutch/pkg/log"
)

const (
	stopQueueSize   = 128
	stopDrainBudget = 5 * time.Minute
)

// WorkspaceStopper stops every workspace an owner has. Implemented by
// workspace.Manager.
type WorkspaceStopper interface {
	StopAllForOwner(ctx context.Context, ownerID uuid.UUID) error
}

// StopWorker drains the container-stop fan-out that follows a terminal
// subscription transition. Fan-out runs outside the webhook transaction:
// owners are enqueued after commit, stop failures are logged, and the
// webhook response never depends on the outcome.
type StopWorker struct {
	stopper WorkspaceStopper
	queue   chan uuid.UUID
	done    chan struct{}
	log     zerolog.Logger

	mu      sync.Mutex
	started bool
	closed  bool
}

// NewStopWorker creates a worker with a bounded queue.
func NewStopWorker(stopper WorkspaceStopper) *StopWorker {
	return &StopWorker{
		stopper: stopper,
		queue:   make(chan uuid.UUID, stopQueueSize),
		done:    make(chan struct{}),
		log:     log.WithComponent("stopworker"),
	}
}

// Start launches the drain loop.
func (w *StopWorker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started || w.closed {
		return
	}
	w.started = true
	go w.run()
}

// Enqueue queues an owner for fan-out and reports whether it was
// accepted. A full queue drops the owner with a log line; the owner's
// containers stop on the next terminal event or a manual stop.
func (w *StopWorker) Enqueue(ownerID uuid.UUID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return false
	}
	select {
	case w.queue <- ownerID:
		return true
	default:
		w.log.Warn().
			Str("user_id", ownerID.String()).
			Msg("stop queue full, dropping fan-out")
		return false
	}
}

// Close stops accepting work and waits for the queue to drain.
func (w *StopWorker) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	started := w.started
	close(w.queue)
	w.mu.Unlock()

	if started {
		<-w.done
	}
}

func (w *StopWorker) run() {
	defer close(w.done)
	for ownerID := range w.queue {
		w.stopAll(ownerID)
	}
}

// stopAll runs one fan-out, recovering panics so the loop survives one
// bad item.
func (w *StopWorker) stopAll(ownerID uuid.UUID) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error().
				Interface("panic", r).
				Str("user_id", ownerID.String()).
				Msg("stop fan-out panicked")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), stopDrainBudget)
	defer cancel()

	if err := w.stopper.StopAllForOwner(ctx, ownerID); err != nil {
		w.log.Error().Err(err).
			Str("user_id", ownerID.String()).
			Msg("stop fan-out failed")
	}
}

package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/inferna-ai/inferna/internal/types"
)

// unhealthyThreshold is the consecutive-failure count at which a worker is
// quarantined (spec.md §4.4.3).
const unhealthyThreshold = 3

// Prober performs one health check against a worker, returning an error on
// failure. The orchestrator supplies this via the RPC-client cache so the
// monitor stays transport-agnostic.
type Prober func(ctx context.Context, w *types.Worker) error

// HealthMonitor tracks per-worker probe history and quarantines workers
// after unhealthyThreshold consecutive failures, restoring them on the next
// successful probe. Grounded on the teacher's per-runner health state
// machine in api/pkg/scheduler/runner.go.
type HealthMonitor struct {
	registry *Registry
	prober   Prober
	interval time.Duration

	mu     sync.Mutex
	states map[string]*types.HealthState
}

func NewHealthMonitor(registry *Registry, prober Prober, interval time.Duration) *HealthMonitor {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &HealthMonitor{
		registry: registry,
		prober:   prober,
		interval: interval,
		states:   make(map[string]*types.HealthState),
	}
}

// ProbeOnce checks every registered worker once. Quarantined workers are
// still probed so recovery is automatic.
func (h *HealthMonitor) ProbeOnce(ctx context.Context) {
	for _, w := range h.registry.All() {
		h.probeWorker(ctx, w)
	}
}

func (h *HealthMonitor) probeWorker(ctx context.Context, w *types.Worker) {
	err := h.prober(ctx, w)

	h.mu.Lock()
	state, ok := h.states[w.ID]
	if !ok {
		state = &types.HealthState{Status: types.WorkerActive}
		h.states[w.ID] = state
	}
	state.LastCheck = time.Now()

	if err == nil {
		state.ConsecutiveFailures = 0
		state.SuccessfulChecks++
		state.TotalChecks++
		state.Status = types.WorkerActive
	} else {
		state.ConsecutiveFailures++
		state.TotalChecks++
		if state.ConsecutiveFailures >= unhealthyThreshold {
			state.Status = types.WorkerUnhealthy
		}
	}
	status := state.Status
	h.mu.Unlock()

	if statusErr := h.registry.UpdateStatus(w.ID, StatusPatch{Status: &status}); statusErr != nil {
		log.Debug().Str("worker_id", w.ID).Err(statusErr).Msg("health monitor could not update worker status")
	}
}

// State returns a copy of the tracked health state for id.
func (h *HealthMonitor) State(id string) types.HealthState {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.states[id]
	if !ok {
		return types.HealthState{}
	}
	return *s
}

// Run starts the probe loop on its own goroutine; it returns once ctx is
// cancelled. Intended to be launched once per orchestrator instance.
func (h *HealthMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.ProbeOnce(ctx)
		}
	}
}

// Package orchestrator implements the control-plane service: the worker
// registry, load balancer, health monitor, and routing logic described in
// spec.md §4.4. Grounded on api/pkg/scheduler/scheduler.go's registry +
// reconcile-loop architecture.
package orchestrator

import (
	"sync"
	"time"

	"github.com/inferna-ai/inferna/internal/apierr"
	"github.com/inferna-ai/inferna/internal/types"
)

// RegisterInput is the payload for Register.
type RegisterInput struct {
	ID           string
	Address      string
	Capabilities []string
	Capacity     types.Capacity
}

// Registry maintains the worker set plus one capability index, which also
// serves model lookups (see GetWorkersForModel).
// registerTwice is idempotent: mutable fields (capabilities, address,
// lastSeen) are overwritten, identity (id) never changes.
type Registry struct {
	mu               sync.RWMutex
	workers          map[string]*types.Worker
	capabilityIndex  map[string]map[string]struct{} // capability -> set(workerID)
}

func NewRegistry() *Registry {
	return &Registry{
		workers:         make(map[string]*types.Worker),
		capabilityIndex: make(map[string]map[string]struct{}),
	}
}

// Register inserts or idempotently re-registers a worker into every index.
func (r *Registry) Register(in RegisterInput) *types.Worker {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	existing, exists := r.workers[in.ID]
	if exists {
		r.unindexCapabilitiesLocked(existing)
	}

	w := &types.Worker{
		ID:           in.ID,
		Address:      in.Address,
		Capabilities: append([]string(nil), in.Capabilities...),
		Capacity:     in.Capacity,
		LastSeen:     now,
		Status:       types.WorkerActive,
	}
	if exists {
		w.RegisteredAt = existing.RegisteredAt
	} else {
		w.RegisteredAt = now
	}

	r.workers[in.ID] = w
	r.indexCapabilitiesLocked(w)
	return w.Clone()
}

// Unregister removes id from every index it appears in.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[id]
	if !ok {
		return false
	}
	r.unindexCapabilitiesLocked(w)
	delete(r.workers, id)
	return true
}

func (r *Registry) indexCapabilitiesLocked(w *types.Worker) {
	for _, capability := range w.Capabilities {
		set, ok := r.capabilityIndex[capability]
		if !ok {
			set = make(map[string]struct{})
			r.capabilityIndex[capability] = set
		}
		set[w.ID] = struct{}{}
	}
}

func (r *Registry) unindexCapabilitiesLocked(w *types.Worker) {
	for _, capability := range w.Capabilities {
		set, ok := r.capabilityIndex[capability]
		if !ok {
			continue
		}
		delete(set, w.ID)
		if len(set) == 0 {
			delete(r.capabilityIndex, capability)
		}
	}
}

// Get returns a copy of the worker registered under id.
func (r *Registry) Get(id string) (*types.Worker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workers[id]
	if !ok {
		return nil, apierr.ErrNoWorkersAvailable
	}
	return w.Clone(), nil
}

// GetWorkersForModel returns active workers advertising modelID as a
// capability — this control plane treats "model id" and "capability tag" as
// the same namespace, matching spec.md §4.4.1's getWorkersForModel /
// getWorkersByCapability pair sharing one index.
func (r *Registry) GetWorkersForModel(modelID string) []*types.Worker {
	return r.GetWorkersByCapability(modelID)
}

// GetWorkersByCapability returns active workers advertising tag.
func (r *Registry) GetWorkersByCapability(tag string) []*types.Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.capabilityIndex[tag]
	out := make([]*types.Worker, 0, len(ids))
	for id := range ids {
		w := r.workers[id]
		if w != nil && w.Status == types.WorkerActive {
			out = append(out, w.Clone())
		}
	}
	return out
}

// StatusPatch carries the mutable fields UpdateStatus may change.
type StatusPatch struct {
	Status *types.WorkerStatus
}

// UpdateStatus applies patch to id, always stamping lastSeen.
func (r *Registry) UpdateStatus(id string, patch StatusPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[id]
	if !ok {
		return apierr.ErrNoWorkersAvailable
	}
	if patch.Status != nil {
		w.Status = *patch.Status
	}
	w.LastSeen = time.Now()
	return nil
}

// All returns a copy of every registered worker, regardless of status.
func (r *Registry) All() []*types.Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*types.Worker, 0, len(r.workers))
	for _, w := range r.workers {
		out = append(out, w.Clone())
	}
	return out
}

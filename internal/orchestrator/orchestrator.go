package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/inferna-ai/inferna/internal/apierr"
	"github.com/inferna-ai/inferna/internal/transport"
	"github.com/inferna-ai/inferna/internal/types"
)

// DiscoveryFunc refreshes the registry from an external discovery oracle.
// spec.md §4.4.4 allows this to be a no-op; the default Orchestrator uses
// one that does nothing, since workers register themselves over HTTP.
type DiscoveryFunc func(ctx context.Context, registry *Registry) error

// Config tunes an Orchestrator's background loops and RPC behavior.
type Config struct {
	Strategy                Strategy
	RequestTimeout          time.Duration
	HealthCheckInterval     time.Duration
	ServiceDiscoveryInterval time.Duration
	DecisionLogSize         int
}

// Orchestrator is the single authority for worker lifecycle, selection, and
// routing (spec.md §4.4). Grounded on api/pkg/scheduler/scheduler.go's
// composition of registry + strategy + reconcile loops.
type Orchestrator struct {
	registry *Registry
	balancer *Balancer
	health   *HealthMonitor
	clients  *clientCache
	decisions *decisionLog

	requestTimeout           time.Duration
	serviceDiscoveryInterval time.Duration
	discover                 DiscoveryFunc
}

func New(dial Dial, cfg Config) *Orchestrator {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.ServiceDiscoveryInterval <= 0 {
		cfg.ServiceDiscoveryInterval = 10 * time.Second
	}

	registry := NewRegistry()
	balancer := NewBalancer(cfg.Strategy)
	clients := newClientCache(dial)

	o := &Orchestrator{
		registry:                 registry,
		balancer:                 balancer,
		clients:                  clients,
		decisions:                newDecisionLog(cfg.DecisionLogSize),
		requestTimeout:           cfg.RequestTimeout,
		serviceDiscoveryInterval: cfg.ServiceDiscoveryInterval,
		discover:                 func(context.Context, *Registry) error { return nil },
	}
	o.health = NewHealthMonitor(registry, o.probe, cfg.HealthCheckInterval)
	return o
}

// SetDiscovery overrides the no-op discovery function with a real one.
func (o *Orchestrator) SetDiscovery(fn DiscoveryFunc) {
	if fn != nil {
		o.discover = fn
	}
}

// probe is the HealthMonitor's Prober: it calls the worker's "health"
// method through the same RPC-client cache routing uses.
func (o *Orchestrator) probe(ctx context.Context, w *types.Worker) error {
	caller, err := o.clients.getOrCreate(w.ID, w.Address)
	if err != nil {
		return err
	}
	_, err = caller.Call(ctx, "health", nil, o.requestTimeout)
	if err != nil {
		o.clients.evict(w.ID)
	}
	return err
}

// RegisterWorker adds or idempotently re-registers a worker.
func (o *Orchestrator) RegisterWorker(in RegisterInput) *types.Worker {
	return o.registry.Register(in)
}

// UnregisterWorker removes a worker and closes its cached RPC client.
func (o *Orchestrator) UnregisterWorker(id string) bool {
	removed := o.registry.Unregister(id)
	o.clients.evict(id)
	return removed
}

// FindWorkersInput is the payload for FindWorkers.
type FindWorkersInput struct {
	ModelID      string
	Capabilities []string
	MinCapacity  int
}

// FindWorkers returns the workers matching modelID and optional requirement
// filters, without dispatching anything.
func (o *Orchestrator) FindWorkers(in FindWorkersInput) ([]*types.Worker, error) {
	candidates := o.registry.GetWorkersForModel(in.ModelID)
	if len(candidates) == 0 {
		return nil, apierr.ErrNoWorkersAvailable
	}
	filtered := filterByRequirements(candidates, types.Requirements{
		Capabilities: in.Capabilities,
		MinCapacity:  in.MinCapacity,
	}, o.balancer)
	if len(filtered) == 0 {
		return nil, apierr.ErrNoWorkersMatchRequirements
	}
	return filtered, nil
}

func filterByRequirements(candidates []*types.Worker, req types.Requirements, balancer *Balancer) []*types.Worker {
	out := candidates[:0:0]
	for _, w := range candidates {
		if !hasAllCapabilities(w, req.Capabilities) {
			continue
		}
		if req.MinCapacity > 0 {
			load := balancer.Stats(w.ID).CurrentLoad
			if load >= int64(req.MinCapacity) {
				continue
			}
		}
		out = append(out, w)
	}
	return out
}

func hasAllCapabilities(w *types.Worker, required []string) bool {
	for _, tag := range required {
		if !w.HasCapability(tag) {
			return false
		}
	}
	return true
}

// RouteRequest is the payload for RouteInferenceRequest.
type RouteRequest struct {
	ModelID   string
	InputData any
	Options   types.InferenceOptions
}

// RouteResult is what RouteInferenceRequest returns to its caller (the
// gateway), per spec.md §4.4.4 step 8.
type RouteResult struct {
	Success   bool                  `json:"success"`
	Result    types.InferenceResult `json:"result"`
	WorkerID  string                `json:"workerId"`
	RoutedAt  time.Time             `json:"routedAt"`
}

// RouteInferenceRequest implements spec.md §4.4.4's eight-step routing
// algorithm: select candidates, filter by requirements, pick a worker via
// the load balancer, acquire an in-flight slot, dispatch over RPC, update
// balancer stats, and return the envelope. No silent failover is performed
// if the chosen worker's call fails — the caller observes the error
// directly, with transport-level failures wrapped as apierr.ErrUnavailable
// (see DESIGN.md's Open Question decision on this).
func (o *Orchestrator) RouteInferenceRequest(ctx context.Context, req RouteRequest) (RouteResult, error) {
	candidates := o.registry.GetWorkersForModel(req.ModelID)
	if len(candidates) == 0 {
		o.logDecision(req.ModelID, "", false, apierr.ErrNoWorkersAvailable)
		return RouteResult{}, apierr.ErrNoWorkersAvailable
	}

	candidates = filterByRequirements(candidates, req.Options.Requirements, o.balancer)
	if len(candidates) == 0 {
		o.logDecision(req.ModelID, "", false, apierr.ErrNoWorkersMatchRequirements)
		return RouteResult{}, apierr.ErrNoWorkersMatchRequirements
	}

	worker := o.balancer.Pick(candidates, req.ModelID)

	o.balancer.AcquireSlot(worker.ID)
	defer o.balancer.ReleaseSlot(worker.ID)

	caller, err := o.clients.getOrCreate(worker.ID, worker.Address)
	if err != nil {
		o.logDecision(req.ModelID, worker.ID, false, err)
		return RouteResult{}, fmt.Errorf("%w: %w: %v", apierr.ErrUnavailable, apierr.ErrTransportError, err)
	}

	timeout := o.requestTimeout
	if req.Options.TimeoutMs > 0 {
		timeout = time.Duration(req.Options.TimeoutMs) * time.Millisecond
	}

	start := time.Now()
	raw, err := caller.Call(ctx, "runInference", map[string]any{
		"modelId":   req.ModelID,
		"inputData": req.InputData,
		"options":   req.Options,
	}, timeout)
	elapsedMs := time.Since(start).Seconds() * 1000

	if err != nil {
		o.clients.evict(worker.ID)
		o.balancer.Update(CompletionUpdate{WorkerID: worker.ID, ProcessingMs: elapsedMs, Success: false})
		o.logDecision(req.ModelID, worker.ID, false, err)
		if errors.Is(err, transport.ErrTransport) || errors.Is(err, apierr.ErrTransportError) {
			return RouteResult{}, fmt.Errorf("%w: %w", apierr.ErrUnavailable, err)
		}
		return RouteResult{}, err
	}

	var envelope types.InferenceEnvelope
	if err := decodeResult(raw, &envelope); err != nil {
		o.balancer.Update(CompletionUpdate{WorkerID: worker.ID, ProcessingMs: elapsedMs, Success: false})
		o.logDecision(req.ModelID, worker.ID, false, err)
		return RouteResult{}, fmt.Errorf("%w: decoding worker response: %v", apierr.ErrTransportError, err)
	}

	o.balancer.Update(CompletionUpdate{
		WorkerID:     worker.ID,
		ProcessingMs: envelope.ProcessingTime,
		Success:      envelope.Success,
	})
	o.logDecision(req.ModelID, worker.ID, envelope.Success, nil)

	return RouteResult{
		Success:  envelope.Success,
		Result:   envelope.Result,
		WorkerID: worker.ID,
		RoutedAt: time.Now(),
	}, nil
}

func (o *Orchestrator) logDecision(modelID, workerID string, success bool, err error) {
	dec := Decision{
		ModelID:   modelID,
		WorkerID:  workerID,
		Strategy:  o.balancer.strategy,
		Timestamp: time.Now(),
		Success:   success,
	}
	if err != nil {
		dec.Error = err.Error()
	}
	o.decisions.record(dec)
}

// GetRecentDecisions returns the routing-decision trail, newest first.
func (o *Orchestrator) GetRecentDecisions() []Decision {
	return o.decisions.recent()
}

// decodeResult normalizes a transport.Caller's untyped result into out via a
// JSON round-trip. This is needed because transport.HTTP decodes responses
// into map[string]any while transport.InProcess hands back the callee's
// concrete Go value directly — both must land in the same typed struct.
func decodeResult(raw any, out any) error {
	encoded, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(encoded, out)
}

// StatusSnapshot aggregates orchestrator-visible health for GET /api/status.
type StatusSnapshot struct {
	Workers   []*types.Worker `json:"workers"`
	Decisions []Decision      `json:"recentDecisions"`
}

func (o *Orchestrator) Status() StatusSnapshot {
	return StatusSnapshot{
		Workers:   o.registry.All(),
		Decisions: o.decisions.recent(),
	}
}

// Run starts the orchestrator's background loops (service discovery and
// health probing), both singletons per instance, returning once ctx is
// cancelled.
func (o *Orchestrator) Run(ctx context.Context) {
	go o.health.Run(ctx)

	ticker := time.NewTicker(o.serviceDiscoveryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := o.discover(ctx, o.registry); err != nil {
				log.Warn().Err(err).Msg("service discovery tick failed")
			}
		}
	}
}

// Close releases all cached RPC clients.
func (o *Orchestrator) Close() {
	o.clients.closeAll()
}

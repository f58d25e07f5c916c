package orchestrator

import (
	"sync"
	"time"

	"golang.org/x/exp/rand" //nolint:staticcheck

	"github.com/inferna-ai/inferna/internal/types"
)

// Strategy names the pluggable selection strategies spec.md §4.4.2 requires.
// The direct ancestor of this pluggable-strategy-function shape is the
// teacher's SchedulingStrategyFunc (api/pkg/scheduler/strategy.go); unlike
// the teacher's GPU-fit strategies, ours balance over workers.
type Strategy string

const (
	StrategyRoundRobin       Strategy = "round-robin"
	StrategyLeastConnections Strategy = "least-connections"
	StrategyWeighted         Strategy = "weighted"
	StrategyRandom           Strategy = "random"
)

// CompletionUpdate is what the router reports back after a dispatched call
// finishes, so the balancer's stats reflect real outcomes.
type CompletionUpdate struct {
	WorkerID       string
	ProcessingMs   float64
	Success        bool
}

// Balancer selects a worker from a candidate list and tracks per-worker
// stats that feed the weighted strategy.
type Balancer struct {
	strategy Strategy
	rand     *rand.Rand

	mu       sync.Mutex
	stats    map[string]*types.WorkerStats
	rrCursor map[string]int // keyed by modelId (or "default")
}

func NewBalancer(strategy Strategy) *Balancer {
	if strategy == "" {
		strategy = StrategyRoundRobin
	}
	return &Balancer{
		strategy: strategy,
		rand:     rand.New(rand.NewSource(1)),
		stats:    make(map[string]*types.WorkerStats),
		rrCursor: make(map[string]int),
	}
}

// Pick selects one worker from candidates per the configured strategy.
// candidates must be non-empty; a single candidate always short-circuits.
func (b *Balancer) Pick(candidates []*types.Worker, key string) *types.Worker {
	if len(candidates) == 1 {
		return candidates[0]
	}
	switch b.strategy {
	case StrategyLeastConnections:
		return b.pickLeastConnections(candidates)
	case StrategyWeighted:
		return b.pickWeighted(candidates)
	case StrategyRandom:
		return candidates[b.rand.Intn(len(candidates))]
	default:
		return b.pickRoundRobin(candidates, key)
	}
}

func (b *Balancer) pickRoundRobin(candidates []*types.Worker, key string) *types.Worker {
	if key == "" {
		key = "default"
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	cursor := b.rrCursor[key] % len(candidates)
	b.rrCursor[key] = (cursor + 1) % len(candidates)
	return candidates[cursor]
}

func (b *Balancer) pickLeastConnections(candidates []*types.Worker) *types.Worker {
	b.mu.Lock()
	defer b.mu.Unlock()
	best := candidates[0]
	bestLoad := b.statsLocked(best.ID).CurrentLoad
	for _, c := range candidates[1:] {
		load := b.statsLocked(c.ID).CurrentLoad
		if load < bestLoad {
			best, bestLoad = c, load
		}
	}
	return best
}

// pickWeighted samples proportional to w(id) = successRate *
// (1000/max(avg_ms,1)); workers with no recorded stats get weight 1.
func (b *Balancer) pickWeighted(candidates []*types.Worker) *types.Worker {
	b.mu.Lock()
	weights := make([]float64, len(candidates))
	var total float64
	for i, c := range candidates {
		s := b.statsLocked(c.ID)
		avg := s.AverageProcessingMs
		if avg < 1 {
			avg = 1
		}
		w := s.SuccessRate() * (1000 / avg)
		if s.RequestCount == 0 {
			w = 1
		}
		weights[i] = w
		total += w
	}
	b.mu.Unlock()

	if total <= 0 {
		return candidates[b.rand.Intn(len(candidates))]
	}
	r := b.rand.Float64() * total
	var cumulative float64
	for i, w := range weights {
		cumulative += w
		if r <= cumulative {
			return candidates[i]
		}
	}
	return candidates[len(candidates)-1]
}

func (b *Balancer) statsLocked(id string) *types.WorkerStats {
	s, ok := b.stats[id]
	if !ok {
		s = &types.WorkerStats{}
		b.stats[id] = s
	}
	return s
}

// AcquireSlot increments the worker's currentLoad before dispatch.
func (b *Balancer) AcquireSlot(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statsLocked(id).CurrentLoad++
}

// ReleaseSlot decrements currentLoad on any dispatch exit path.
func (b *Balancer) ReleaseSlot(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.statsLocked(id)
	if s.CurrentLoad > 0 {
		s.CurrentLoad--
	}
}

// Update applies the stat-update contract on request completion.
func (b *Balancer) Update(u CompletionUpdate) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.statsLocked(u.WorkerID)
	s.RequestCount++
	s.TotalProcessingTime += u.ProcessingMs
	s.AverageProcessingMs = s.TotalProcessingTime / float64(s.RequestCount)
	if u.Success {
		s.SuccessCount++
	} else {
		s.FailureCount++
	}
	s.LastRequestTime = time.Now()
}

// Stats returns a copy of the tracked stats for id.
func (b *Balancer) Stats(id string) types.WorkerStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return *b.statsLocked(id)
}

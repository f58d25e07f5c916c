// Package worker implements the per-process inference executor: the
// concurrency gate, model cache, inference pipeline, and rolling history
// described in spec.md §4.3. Grounded on api/pkg/runner/controller_inference.go
// and runner/slot.go's gate-then-release shape.
package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/inferna-ai/inferna/internal/apierr"
	"github.com/inferna-ai/inferna/internal/types"
)

// ModelFetcher is the worker's contract with the Model Manager: on a
// loadModel miss, the worker consults this to obtain the predictor.
type ModelFetcher interface {
	FetchModel(ctx context.Context, modelID string) (*types.LoadedModel, error)
}

// Config tunes a Worker's limits.
type Config struct {
	MaxConcurrent     int
	InferenceTimeout  time.Duration
	ModelCacheSize    int
	HistoryCapacity   int
}

// Worker serves inference requests against preloaded models under a hard
// concurrency ceiling.
type Worker struct {
	id       string
	capacity int64 // max concurrent, immutable after construction
	load     int64 // current in-flight count, atomic

	inferenceTimeout time.Duration
	cacheSize        int

	fetcher ModelFetcher
	loadsf  singleflight.Group

	mu          sync.Mutex
	preloaded   map[string]*types.LoadedModel
	loadOrder   []string // LRU order, most-recently-used at the end

	history   *ring
	startedAt time.Time
}

func New(id string, fetcher ModelFetcher, cfg Config) *Worker {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 10
	}
	if cfg.InferenceTimeout <= 0 {
		cfg.InferenceTimeout = 30 * time.Second
	}
	if cfg.ModelCacheSize <= 0 {
		cfg.ModelCacheSize = 4
	}
	return &Worker{
		id:               id,
		capacity:         int64(cfg.MaxConcurrent),
		inferenceTimeout: cfg.InferenceTimeout,
		cacheSize:        cfg.ModelCacheSize,
		fetcher:          fetcher,
		preloaded:        make(map[string]*types.LoadedModel),
		history:          newRing(cfg.HistoryCapacity),
		startedAt:        time.Now(),
	}
}

// LoadModel is idempotent: the first caller for a given modelID fetches it
// from the Model Manager and caches it; concurrent callers for the same
// modelID share that one fetch via singleflight rather than issuing
// redundant fetches (spec.md §9's single-flight design note).
func (w *Worker) LoadModel(ctx context.Context, modelID string) (loaded bool, err error) {
	w.mu.Lock()
	if _, ok := w.preloaded[modelID]; ok {
		w.touchLRU(modelID)
		w.mu.Unlock()
		return true, nil
	}
	w.mu.Unlock()

	_, err, _ = w.loadsf.Do(modelID, func() (any, error) {
		model, err := w.fetcher.FetchModel(ctx, modelID)
		if err != nil {
			return nil, err
		}

		w.mu.Lock()
		defer w.mu.Unlock()
		if _, ok := w.preloaded[modelID]; !ok {
			w.evictIfNeededLocked()
			w.preloaded[modelID] = model
			w.loadOrder = append(w.loadOrder, modelID)
		} else {
			w.touchLRU(modelID)
		}
		return nil, nil
	})
	if err != nil {
		return false, fmt.Errorf("loading model %q: %w", modelID, err)
	}
	return true, nil
}

// evictIfNeededLocked unloads the least-recently-used model once the cache
// would exceed cacheSize. Must be called with w.mu held. Grounded on the
// teacher's runner model-instance lifecycle, generalized from GPU-memory
// staleness to a simple count bound (GPU scheduling itself is out of
// scope).
func (w *Worker) evictIfNeededLocked() {
	for len(w.preloaded) >= w.cacheSize && len(w.loadOrder) > 0 {
		victim := w.loadOrder[0]
		w.loadOrder = w.loadOrder[1:]
		delete(w.preloaded, victim)
		log.Debug().Str("worker_id", w.id).Str("model_id", victim).Msg("evicted model to respect cache size")
	}
}

func (w *Worker) touchLRU(modelID string) {
	for i, id := range w.loadOrder {
		if id == modelID {
			w.loadOrder = append(w.loadOrder[:i], w.loadOrder[i+1:]...)
			break
		}
	}
	w.loadOrder = append(w.loadOrder, modelID)
}

// UnloadModel removes modelID from the cache and preloaded set.
func (w *Worker) UnloadModel(modelID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.preloaded, modelID)
	for i, id := range w.loadOrder {
		if id == modelID {
			w.loadOrder = append(w.loadOrder[:i], w.loadOrder[i+1:]...)
			break
		}
	}
}

func (w *Worker) modelFor(modelID string) (*types.LoadedModel, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	model, ok := w.preloaded[modelID]
	return model, ok
}

// RunInference executes the four-stage pipeline against modelID under the
// worker's capacity gate. The check-increment-body-decrement sequence is
// made atomic with a CAS loop: no caller can observe currentLoad exceed
// maxConcurrent, and every exit path — success or failure — releases the
// slot it acquired (spec.md §5's capacity-safety invariant).
func (w *Worker) RunInference(ctx context.Context, modelID string, input any, opts types.InferenceOptions) (types.InferenceEnvelope, error) {
	if !w.acquire() {
		return types.InferenceEnvelope{}, fmt.Errorf("%w: %d/%d slots in use", apierr.ErrCapacityExceeded, atomic.LoadInt64(&w.load), w.capacity)
	}
	defer w.release()

	model, ok := w.modelFor(modelID)
	if !ok {
		w.record(modelID, 0, false, apierr.ErrModelNotAvailable.Error())
		return types.InferenceEnvelope{}, fmt.Errorf("%w: %q is not preloaded", apierr.ErrModelNotAvailable, modelID)
	}

	start := time.Now()
	timeout := w.inferenceTimeout
	if opts.TimeoutMs > 0 {
		timeout = time.Duration(opts.TimeoutMs) * time.Millisecond
	}

	shapeMeta, err := validateInput(model, input)
	if err != nil {
		w.record(modelID, time.Since(start).Seconds()*1000, false, err.Error())
		return types.InferenceEnvelope{}, err
	}

	processed := preprocess(input, shapeMeta)

	raw, err := execute(ctx, model, processed, timeout)
	elapsedMs := time.Since(start).Seconds() * 1000
	if err != nil {
		w.record(modelID, elapsedMs, false, err.Error())
		return types.InferenceEnvelope{}, err
	}

	result := postprocess(raw, model)
	w.record(modelID, elapsedMs, true, "")

	return types.InferenceEnvelope{
		Success:        true,
		Result:         result,
		ProcessingTime: elapsedMs,
	}, nil
}

func (w *Worker) acquire() bool {
	for {
		current := atomic.LoadInt64(&w.load)
		if current >= w.capacity {
			return false
		}
		if atomic.CompareAndSwapInt64(&w.load, current, current+1) {
			return true
		}
	}
}

func (w *Worker) release() {
	atomic.AddInt64(&w.load, -1)
}

func (w *Worker) record(modelID string, processingTimeMs float64, success bool, errMsg string) {
	w.history.append(types.InferenceRecord{
		InferenceID:    uuid.NewString(),
		ModelID:        modelID,
		ProcessingTime: processingTimeMs,
		Timestamp:      time.Now(),
		Success:        success,
		Error:          errMsg,
	})
}

// CapacitySnapshot is returned by CheckCapacity.
type CapacitySnapshot struct {
	MaxConcurrent   int      `json:"maxConcurrent"`
	CurrentLoad     int64    `json:"currentLoad"`
	Available       int64    `json:"available"`
	AvailableModels []string `json:"availableModels"`
	ModelLoaded     *bool    `json:"modelLoaded,omitempty"`
}

func (w *Worker) CheckCapacity(modelID string) CapacitySnapshot {
	current := atomic.LoadInt64(&w.load)

	w.mu.Lock()
	models := make([]string, 0, len(w.preloaded))
	for id := range w.preloaded {
		models = append(models, id)
	}
	w.mu.Unlock()

	snap := CapacitySnapshot{
		MaxConcurrent:   int(w.capacity),
		CurrentLoad:     current,
		Available:       w.capacity - current,
		AvailableModels: models,
	}
	if modelID != "" {
		_, ok := w.modelFor(modelID)
		snap.ModelLoaded = &ok
	}
	return snap
}

// HealthSnapshot is returned by GetHealth.
type HealthSnapshot struct {
	Status   string           `json:"status"`
	Capacity CapacitySnapshot `json:"capacity"`
	UptimeMs int64            `json:"uptime"`
}

func (w *Worker) GetHealth() HealthSnapshot {
	return HealthSnapshot{
		Status:   "healthy",
		Capacity: w.CheckCapacity(""),
		UptimeMs: time.Since(w.startedAt).Milliseconds(),
	}
}

// History returns a copy of the current rolling inference record window.
func (w *Worker) History() []types.InferenceRecord {
	return w.history.snapshot()
}

func (w *Worker) ID() string {
	return w.id
}

// Package types holds the domain entities shared across the control plane,
// as catalogued in the data model: Worker, WorkerStats, HealthState,
// ModelMetadata, LoadedModel, InferenceRecord, RateWindow, and ApiKey.
package types

import "time"

// WorkerStatus is the lifecycle status of a registered worker.
type WorkerStatus string

const (
	WorkerActive    WorkerStatus = "active"
	WorkerUnhealthy WorkerStatus = "unhealthy"
)

// Capacity describes a worker's concurrency ceiling.
type Capacity struct {
	MaxConcurrent int `json:"maxConcurrent"`
}

// Worker is the registry's view of a single inference worker process.
type Worker struct {
	ID           string       `json:"id"`
	Address      string       `json:"address"`
	Capabilities []string     `json:"capabilities"`
	Capacity     Capacity     `json:"capacity"`
	RegisteredAt time.Time    `json:"registeredAt"`
	LastSeen     time.Time    `json:"lastSeen"`
	Status       WorkerStatus `json:"status"`
}

// HasCapability reports whether the worker advertises tag, which may be a
// generic capability (e.g. "gpu") or a model id.
func (w *Worker) HasCapability(tag string) bool {
	for _, c := range w.Capabilities {
		if c == tag {
			return true
		}
	}
	return false
}

// Clone returns a deep-enough copy so that callers can mutate the result
// without racing the registry's internal state.
func (w *Worker) Clone() *Worker {
	if w == nil {
		return nil
	}
	caps := make([]string, len(w.Capabilities))
	copy(caps, w.Capabilities)
	cp := *w
	cp.Capabilities = caps
	return &cp
}

// WorkerStats accumulates per-worker request outcomes, feeding the load
// balancer's selection strategies.
type WorkerStats struct {
	RequestCount        int64     `json:"requestCount"`
	SuccessCount        int64     `json:"successCount"`
	FailureCount        int64     `json:"failureCount"`
	TotalProcessingTime float64   `json:"totalProcessingTime"`
	AverageProcessingMs float64   `json:"averageProcessingTime"`
	CurrentLoad         int64     `json:"currentLoad"`
	LastRequestTime     time.Time `json:"lastRequestTime"`
}

// SuccessRate returns success/requests, defaulting to 1 when no requests
// have been recorded yet (per the weighted-strategy contract).
func (s *WorkerStats) SuccessRate() float64 {
	if s.RequestCount == 0 {
		return 1
	}
	return float64(s.SuccessCount) / float64(s.RequestCount)
}

// HealthState is the health monitor's per-worker probe history.
type HealthState struct {
	Status              WorkerStatus `json:"status"`
	LastCheck           time.Time    `json:"lastCheck"`
	ConsecutiveFailures int          `json:"consecutiveFailures"`
	TotalChecks         int64        `json:"totalChecks"`
	SuccessfulChecks    int64        `json:"successfulChecks"`
}

// ModelMetadata catalogues a stored model blob.
type ModelMetadata struct {
	ModelID     string    `json:"modelId"`
	Type        string    `json:"type"`
	Version     string    `json:"version"`
	Description string    `json:"description"`
	StorageKey  string    `json:"storageKey"`
	Checksum    string    `json:"checksum"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Predictor is the opaque ML runtime capability a loaded model exposes.
// Shapes and tensor semantics are a runtime concern outside this spec;
// Predict accepts and returns untyped payloads.
type Predictor interface {
	Predict(input any) (any, error)
}

// LoadedModel is a worker's in-memory handle on a model it has preloaded.
type LoadedModel struct {
	ID       string
	Type     string
	Version  string
	Metadata ModelMetadata
	Predict  Predictor
}

// InferenceRecord is one append-only entry in a worker's rolling history.
type InferenceRecord struct {
	InferenceID    string    `json:"inferenceId"`
	ModelID        string    `json:"modelId"`
	ProcessingTime float64   `json:"processingTime"`
	Timestamp      time.Time `json:"timestamp"`
	Success        bool      `json:"success"`
	Error          string    `json:"error,omitempty"`
}

// RateWindow is the sliding-window counter state for one rate-limited
// client key.
type RateWindow struct {
	ClientKey   string
	Requests    int
	WindowStart time.Time
}

// ApiKey is a gateway credential.
type ApiKey struct {
	Key         string    `json:"-"`
	Name        string    `json:"name"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"createdAt"`
	LastUsed    time.Time `json:"lastUsed"`
}

// HasPermission reports whether the key grants perm, honoring the "*"
// wildcard.
func (k *ApiKey) HasPermission(perm string) bool {
	for _, p := range k.Permissions {
		if p == "*" || p == perm {
			return true
		}
	}
	return false
}

// InferenceOptions carries per-request tuning passed down from the gateway
// through the orchestrator to the worker.
type InferenceOptions struct {
	TimeoutMs    int64        `json:"timeout,omitempty"`
	Requirements Requirements `json:"requirements,omitempty"`
}

// Requirements filters candidate workers during routing.
type Requirements struct {
	Capabilities []string `json:"capabilities,omitempty"`
	MinCapacity  int      `json:"minCapacity,omitempty"`
}

// InferenceResult is the normalized postprocess output.
type InferenceResult struct {
	Predictions any     `json:"predictions"`
	Confidence  float64 `json:"confidence"`
	ModelVersion string `json:"modelVersion,omitempty"`
	ProcessedAt  time.Time `json:"processedAt,omitempty"`
}

// InferenceEnvelope is what runInference returns to its caller.
type InferenceEnvelope struct {
	Success        bool            `json:"success"`
	Result         InferenceResult `json:"result"`
	ProcessingTime float64         `json:"processingTime"`
}

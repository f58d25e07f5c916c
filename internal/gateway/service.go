package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/inferna-ai/inferna/internal/modelmanager"
	"github.com/inferna-ai/inferna/internal/orchestrator"
	"github.com/inferna-ai/inferna/internal/transport"
	"github.com/inferna-ai/inferna/internal/types"
)

// Service wires the gateway's RPC peers (orchestrator, model manager) behind
// the narrow transport.Caller boundary, so it can be exercised in tests
// without either process running.
type Service struct {
	orchestrator transport.Caller
	modelManager transport.Caller
	timeout      time.Duration
	startedAt    time.Time
}

func NewService(orchestratorCaller, modelManagerCaller transport.Caller, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Service{
		orchestrator: orchestratorCaller,
		modelManager: modelManagerCaller,
		timeout:      timeout,
		startedAt:    time.Now(),
	}
}

// decodeResult normalizes a transport.Caller's untyped result into out via a
// JSON round-trip, mirroring modelmanager.decodeResult.
func decodeResult(raw any, out any) error {
	encoded, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(encoded, out)
}

// RouteInference forwards an inference request to the orchestrator.
func (s *Service) RouteInference(ctx context.Context, modelID string, inputData any, opts types.InferenceOptions) (orchestrator.RouteResult, error) {
	raw, err := s.orchestrator.Call(ctx, "routeInferenceRequest", map[string]any{
		"modelId":   modelID,
		"inputData": inputData,
		"options": map[string]any{
			"timeout":      opts.TimeoutMs,
			"capabilities": opts.Requirements.Capabilities,
			"minCapacity":  opts.Requirements.MinCapacity,
		},
	}, s.timeout)
	if err != nil {
		return orchestrator.RouteResult{}, err
	}
	var result orchestrator.RouteResult
	if err := decodeResult(raw, &result); err != nil {
		return orchestrator.RouteResult{}, err
	}
	return result, nil
}

// Status aggregates orchestrator + model manager health for GET /api/v1/status.
func (s *Service) Status(ctx context.Context) map[string]any {
	orchStatus, orchErr := s.orchestrator.Call(ctx, "status", nil, s.timeout)
	mmStatus, mmErr := s.modelManager.Call(ctx, "health", nil, s.timeout)

	out := map[string]any{
		"orchestrator": orchStatus,
		"modelManager": mmStatus,
	}
	if orchErr != nil {
		out["orchestratorError"] = orchErr.Error()
	}
	if mmErr != nil {
		out["modelManagerError"] = mmErr.Error()
	}
	return out
}

// ListModels proxies to the Model Manager's listModels method.
func (s *Service) ListModels(ctx context.Context) ([]types.ModelMetadata, error) {
	raw, err := s.modelManager.Call(ctx, "listModels", nil, s.timeout)
	if err != nil {
		return nil, err
	}
	var models []types.ModelMetadata
	if err := decodeResult(raw, &models); err != nil {
		return nil, err
	}
	return models, nil
}

// GetModel proxies to the Model Manager's getModel method, returning only
// metadata — the gateway never ships raw model bytes back to API callers.
func (s *Service) GetModel(ctx context.Context, modelID string) (types.ModelMetadata, error) {
	raw, err := s.modelManager.Call(ctx, "getModel", map[string]any{"modelId": modelID}, s.timeout)
	if err != nil {
		return types.ModelMetadata{}, err
	}
	var result struct {
		Metadata types.ModelMetadata `json:"metadata"`
	}
	if err := decodeResult(raw, &result); err != nil {
		return types.ModelMetadata{}, err
	}
	return result.Metadata, nil
}

// CreateModelRequest is the payload for CreateModel.
type CreateModelRequest struct {
	ModelID     string
	ModelData   []byte
	Type        string
	Version     string
	Description string
}

// CreateModel proxies model creation to the Model Manager. The gateway never
// touches the blob store or registry directly — it is an edge proxy over
// RPC, not a co-owner of Model Manager state.
func (s *Service) CreateModel(ctx context.Context, req CreateModelRequest) (modelmanager.CreateModelResult, error) {
	raw, err := s.modelManager.Call(ctx, "createModel", map[string]any{
		"modelId":     req.ModelID,
		"data":        req.ModelData,
		"type":        req.Type,
		"version":     req.Version,
		"description": req.Description,
	}, s.timeout)
	if err != nil {
		return modelmanager.CreateModelResult{}, err
	}
	var result modelmanager.CreateModelResult
	if err := decodeResult(raw, &result); err != nil {
		return modelmanager.CreateModelResult{}, err
	}
	return result, nil
}

func (s *Service) Uptime() time.Duration {
	return time.Since(s.startedAt)
}

package modelmanager

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/inferna-ai/inferna/internal/transport"
	"github.com/inferna-ai/inferna/internal/types"
)

// Client adapts a transport.Caller bound to the Model Manager into the
// worker's ModelFetcher contract (spec.md §4.3: "on first call, fetches
// from the Model Manager and caches it").
type Client struct {
	caller  transport.Caller
	timeout time.Duration
}

func NewClient(caller transport.Caller, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{caller: caller, timeout: timeout}
}

type fetchModelParams struct {
	ModelID string `json:"modelId"`
}

// fetchModelResult mirrors the GET /api/models/:modelId response shape.
type fetchModelResult struct {
	ModelID   string              `json:"modelId"`
	Metadata  types.ModelMetadata `json:"metadata"`
	ModelData []byte              `json:"modelData"`
}

// FetchModel satisfies worker.ModelFetcher. The Model Manager hands back raw
// model bytes, not a runtime; this wraps them in a blobPredictor so the
// worker has something satisfying types.Predictor to call into until a real
// inference runtime is wired in (spec.md treats predict as an opaque
// capability of the loaded model).
func (c *Client) FetchModel(ctx context.Context, modelID string) (*types.LoadedModel, error) {
	res, err := c.caller.Call(ctx, "getModel", fetchModelParams{ModelID: modelID}, c.timeout)
	if err != nil {
		return nil, err
	}
	var result fetchModelResult
	if err := decodeResult(res, &result); err != nil {
		return nil, err
	}

	return &types.LoadedModel{
		ID:       modelID,
		Type:     result.Metadata.Type,
		Version:  result.Metadata.Version,
		Metadata: result.Metadata,
		Predict:  &blobPredictor{modelID: modelID, data: result.ModelData},
	}, nil
}

// decodeResult normalizes a transport.Caller's untyped result into out via a
// JSON round-trip, since transport.HTTP decodes responses into
// map[string]any while transport.InProcess hands back the callee's concrete
// Go value directly.
func decodeResult(raw any, out any) error {
	encoded, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(encoded, out)
}

// blobPredictor is a deterministic stand-in for a real inference runtime: it
// has no notion of model architecture, so it echoes the input back alongside
// the byte length of the loaded weights. Swapping it for a real runtime (ONNX,
// torch, etc.) only touches this type.
type blobPredictor struct {
	modelID string
	data    []byte
}

func (p *blobPredictor) Predict(input any) (any, error) {
	return map[string]any{
		"echo":      input,
		"modelId":   p.modelID,
		"weightLen": len(p.data),
	}, nil
}

// createModelParams is the "createModel" method's payload shape.
type createModelParams struct {
	ModelID     string `json:"modelId"`
	Data        []byte `json:"data"`
	Type        string `json:"type"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

// Handler exposes the Model Manager's service as a transport.HandlerFunc so
// it can be wired into an in-process transport.Caller without a network hop.
// Params are normalized via decodeParams so this accepts both a concrete
// params struct built in-process and a map[string]any coming off HTTP.
func Handler(s *Service) func(ctx context.Context, method string, params any) (any, error) {
	return func(ctx context.Context, method string, params any) (any, error) {
		switch method {
		case "getModel":
			var p fetchModelParams
			if err := decodeParams(params, &p); err != nil {
				return nil, fmt.Errorf("modelmanager handler: bad params for getModel: %w", err)
			}
			meta, data, err := s.FetchModelData(p.ModelID, "")
			if err != nil {
				return nil, err
			}
			return fetchModelResult{ModelID: p.ModelID, Metadata: meta, ModelData: data}, nil
		case "listModels":
			return s.ListModels("", 0), nil
		case "createModel":
			var p createModelParams
			if err := decodeParams(params, &p); err != nil {
				return nil, fmt.Errorf("modelmanager handler: bad params for createModel: %w", err)
			}
			return s.CreateModel(ctx, CreateModelInput{
				ModelID:     p.ModelID,
				Data:        p.Data,
				Type:        p.Type,
				Version:     p.Version,
				Description: p.Description,
			})
		case "health":
			return s.Status(ctx)
		default:
			return nil, fmt.Errorf("modelmanager handler: unknown method %q", method)
		}
	}
}

// decodeParams normalizes params into target via a JSON round-trip, mirroring
// worker.decodeParams: callers may hand this either a map[string]any or a
// concrete params struct built in-process.
func decodeParams(params any, target any) error {
	encoded, err := json.Marshal(params)
	if err != nil {
		return err
	}
	return json.Unmarshal(encoded, target)
}

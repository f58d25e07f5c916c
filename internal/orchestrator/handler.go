package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/inferna-ai/inferna/internal/types"
)

var errBadParams = errors.New("invalid params")

// RegisterParams is the payload shape for the "registerWorker" method.
type RegisterParams struct {
	ID           string   `json:"id"`
	Address      string   `json:"address"`
	Capabilities []string `json:"capabilities"`
	MaxConcurrent int     `json:"maxConcurrent"`
}

// FindWorkersParams is the payload shape for the "findWorkers" method.
type FindWorkersParams struct {
	ModelID      string   `json:"modelId"`
	Capabilities []string `json:"capabilities"`
	MinCapacity  int      `json:"minCapacity"`
}

// RouteParams is the payload shape for the "routeInferenceRequest" method.
type RouteParams struct {
	ModelID   string      `json:"modelId"`
	InputData any         `json:"inputData"`
	Options   RouteOptionsParams `json:"options"`
}

// RouteOptionsParams mirrors types.InferenceOptions for transport decoding.
type RouteOptionsParams struct {
	TimeoutMs    int64    `json:"timeout,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
	MinCapacity  int      `json:"minCapacity,omitempty"`
}

// Handler dispatches transport method calls onto this orchestrator's public
// contract, mirroring worker.Worker.Handler's shape so transport.InProcess
// can wrap either service without depending on its concrete type.
func (o *Orchestrator) Handler(ctx context.Context, method string, params any) (any, error) {
	switch method {
	case "registerWorker":
		var p RegisterParams
		if err := decodeParams(params, &p); err != nil {
			return nil, fmt.Errorf("%w: unexpected params for registerWorker: %v", errBadParams, err)
		}
		return o.RegisterWorker(RegisterInput{
			ID:           p.ID,
			Address:      p.Address,
			Capabilities: p.Capabilities,
			Capacity:     capacityFrom(p.MaxConcurrent),
		}), nil
	case "findWorkers":
		var p FindWorkersParams
		if err := decodeParams(params, &p); err != nil {
			return nil, fmt.Errorf("%w: unexpected params for findWorkers: %v", errBadParams, err)
		}
		return o.FindWorkers(FindWorkersInput{
			ModelID:      p.ModelID,
			Capabilities: p.Capabilities,
			MinCapacity:  p.MinCapacity,
		})
	case "routeInferenceRequest":
		var p RouteParams
		if err := decodeParams(params, &p); err != nil {
			return nil, fmt.Errorf("%w: unexpected params for routeInferenceRequest: %v", errBadParams, err)
		}
		return o.RouteInferenceRequest(ctx, RouteRequest{
			ModelID:   p.ModelID,
			InputData: p.InputData,
			Options: routeOptionsFrom(p.Options),
		})
	case "status":
		return o.Status(), nil
	case "health":
		return map[string]string{"status": "healthy"}, nil
	default:
		return nil, fmt.Errorf("orchestrator: unknown method %q", method)
	}
}

func capacityFrom(maxConcurrent int) types.Capacity {
	return types.Capacity{MaxConcurrent: maxConcurrent}
}

func routeOptionsFrom(p RouteOptionsParams) types.InferenceOptions {
	return types.InferenceOptions{
		TimeoutMs: p.TimeoutMs,
		Requirements: types.Requirements{
			Capabilities: p.Capabilities,
			MinCapacity:  p.MinCapacity,
		},
	}
}

// decodeParams normalizes params into target via a JSON round-trip, mirroring
// worker.decodeParams and modelmanager.decodeParams: callers may hand this
// either a map[string]any (transport.HTTP, or a caller outside this package
// that cannot construct its unexported param types) or the concrete struct.
func decodeParams(params any, target any) error {
	encoded, err := json.Marshal(params)
	if err != nil {
		return err
	}
	return json.Unmarshal(encoded, target)
}

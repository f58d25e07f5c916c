package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/inferna-ai/inferna/internal/types"
)

var errBadParams = errors.New("invalid params")

// decodeParams normalizes params into target via a JSON round-trip. Callers
// may hand this either a map[string]any (anything that came off the wire)
// or a concrete params struct built in-process; both forms land in target
// identically.
func decodeParams(params any, target any) error {
	encoded, err := json.Marshal(params)
	if err != nil {
		return err
	}
	return json.Unmarshal(encoded, target)
}

// InferenceParams is the payload shape for the "runInference" method.
type InferenceParams struct {
	ModelID   string                  `json:"modelId"`
	InputData any                     `json:"inputData"`
	Options   types.InferenceOptions  `json:"options"`
}

// Handler dispatches transport method calls onto this worker's public
// contract, so it can be wrapped by transport.NewInProcess without the
// transport package needing any knowledge of Worker's shape.
func (w *Worker) Handler(ctx context.Context, method string, params any) (any, error) {
	switch method {
	case "runInference":
		var p InferenceParams
		if err := decodeParams(params, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", errBadParams, err)
		}
		return w.RunInference(ctx, p.ModelID, p.InputData, p.Options)
	case "checkCapacity":
		var modelID string
		_ = decodeParams(params, &modelID)
		return w.CheckCapacity(modelID), nil
	case "loadModel":
		var modelID string
		if err := decodeParams(params, &modelID); err != nil || modelID == "" {
			return nil, fmt.Errorf("%w: unexpected params for loadModel", errBadParams)
		}
		loaded, err := w.LoadModel(ctx, modelID)
		return map[string]any{"loaded": loaded}, err
	case "health":
		return w.GetHealth(), nil
	default:
		return nil, fmt.Errorf("worker: unknown method %q", method)
	}
}

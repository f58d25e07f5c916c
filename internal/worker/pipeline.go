package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/inferna-ai/inferna/internal/apierr"
	"github.com/inferna-ai/inferna/internal/types"
)

// processedInput is what preprocess hands to execute.
type processedInput struct {
	Data     any
	Metadata map[string]any
}

// validateInput rejects a nil/empty payload. The returned metadata map holds
// the model's blob size under "modelSize" when it is known; no inputShape is
// read from the model or recorded, and no shape checking is performed here.
func validateInput(model *types.LoadedModel, input any) (map[string]any, error) {
	if input == nil {
		return nil, fmt.Errorf("%w: inputData is required", apierr.ErrBadRequest)
	}
	if m, ok := input.(map[string]any); ok && len(m) == 0 {
		return nil, fmt.Errorf("%w: inputData must not be empty", apierr.ErrBadRequest)
	}
	meta := map[string]any{}
	if model != nil && model.Metadata.Size != 0 {
		meta["modelSize"] = model.Metadata.Size
	}
	return meta, nil
}

func preprocess(input any, shapeMeta map[string]any) processedInput {
	meta := map[string]any{
		"originalShape": shapeMeta,
		"processedAt":   time.Now(),
	}
	return processedInput{Data: input, Metadata: meta}
}

// execute races model.Predict against the effective timeout. On timer win
// it returns ErrInferenceTimeout; the orphaned predict goroutine is
// abandoned rather than canceled — per spec.md §5, the only cancellation
// mechanism is this race, and predict cannot itself be interrupted. Using a
// buffered result channel means the goroutine can still write its result
// (or just be garbage collected once it returns) without blocking forever
// on a send nobody receives.
func execute(ctx context.Context, model *types.LoadedModel, processed processedInput, timeout time.Duration) (any, error) {
	type outcome struct {
		result any
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{nil, fmt.Errorf("%w: predict panicked: %v", apierr.ErrExecutionError, r)}
			}
		}()
		result, err := model.Predict.Predict(processed.Data)
		if err != nil {
			done <- outcome{nil, fmt.Errorf("%w: %v", apierr.ErrExecutionError, err)}
			return
		}
		done <- outcome{result, nil}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case o := <-done:
		return o.result, o.err
	case <-timer.C:
		return nil, fmt.Errorf("%w: exceeded %s", apierr.ErrInferenceTimeout, timeout)
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", apierr.ErrExecutionError, ctx.Err())
	}
}

// postprocess normalizes predict's raw output into the envelope shape. The
// model's output is not assumed to already be normalized (spec.md §9 flags
// this as unresolved upstream) — it is coerced here with the documented
// defaults.
func postprocess(raw any, model *types.LoadedModel) types.InferenceResult {
	result := types.InferenceResult{
		Confidence:   0.5,
		ModelVersion: model.Version,
		ProcessedAt:  time.Now(),
	}

	switch v := raw.(type) {
	case map[string]any:
		if p, ok := v["predictions"]; ok {
			result.Predictions = p
		} else {
			result.Predictions = raw
		}
		if c, ok := v["confidence"]; ok {
			if f, ok := toFloat(c); ok {
				result.Confidence = f
			}
		}
	default:
		result.Predictions = raw
	}
	return result
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}

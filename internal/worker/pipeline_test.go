package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferna-ai/inferna/internal/apierr"
	"github.com/inferna-ai/inferna/internal/types"
)

func TestValidateInputRejectsNil(t *testing.T) {
	_, err := validateInput(&types.LoadedModel{}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apierr.ErrBadRequest))
}

func TestValidateInputRejectsEmptyMap(t *testing.T) {
	_, err := validateInput(&types.LoadedModel{}, map[string]any{})
	require.Error(t, err)
}

func TestValidateInputAcceptsPayload(t *testing.T) {
	_, err := validateInput(&types.LoadedModel{}, map[string]any{"x": 1})
	require.NoError(t, err)
}

func TestPostprocessDefaultsWhenRawHasNoStructure(t *testing.T) {
	result := postprocess([]int{1, 2, 3}, &types.LoadedModel{Version: "v1"})
	assert.Equal(t, []int{1, 2, 3}, result.Predictions)
	assert.Equal(t, 0.5, result.Confidence)
	assert.Equal(t, "v1", result.ModelVersion)
}

func TestPostprocessCoercesRichOutput(t *testing.T) {
	raw := map[string]any{"predictions": []int{4, 5}, "confidence": 0.75}
	result := postprocess(raw, &types.LoadedModel{})
	assert.Equal(t, []int{4, 5}, result.Predictions)
	assert.Equal(t, 0.75, result.Confidence)
}

func TestExecuteTimesOutWhenPredictIsSlow(t *testing.T) {
	model := &types.LoadedModel{Predict: &fakePredictor{delay: 100 * time.Millisecond}}
	_, err := execute(context.Background(), model, processedInput{}, 10*time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apierr.ErrInferenceTimeout))
}

func TestExecutePropagatesPredictError(t *testing.T) {
	model := &types.LoadedModel{Predict: &fakePredictor{err: errors.New("runtime exploded")}}
	_, err := execute(context.Background(), model, processedInput{}, time.Second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apierr.ErrExecutionError))
}

func TestExecuteReturnsOnSuccessBeforeTimeout(t *testing.T) {
	model := &types.LoadedModel{Predict: &fakePredictor{output: "ok"}}
	result, err := execute(context.Background(), model, processedInput{}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
}

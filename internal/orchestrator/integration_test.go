package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferna-ai/inferna/internal/transport"
	"github.com/inferna-ai/inferna/internal/types"
	"github.com/inferna-ai/inferna/internal/worker"
)

type stubFetcher struct{}

func (stubFetcher) FetchModel(_ context.Context, modelID string) (*types.LoadedModel, error) {
	return &types.LoadedModel{ID: modelID, Predict: stubPredictor{}}, nil
}

type stubPredictor struct{}

func (stubPredictor) Predict(input any) (any, error) {
	return map[string]any{"predictions": []int{9}, "confidence": 0.99}, nil
}

// TestRoutingAgainstARealInProcessWorker exercises the full
// orchestrator->transport->worker chain without any network, wiring an
// actual worker.Worker behind transport.InProcess the way a co-located
// deployment would.
func TestRoutingAgainstARealInProcessWorker(t *testing.T) {
	w := worker.New("w1", stubFetcher{}, worker.Config{MaxConcurrent: 2})
	_, err := w.LoadModel(context.Background(), "m1")
	require.NoError(t, err)

	dial := func(address string) (transport.Caller, error) {
		return transport.NewInProcess(w.Handler), nil
	}
	o := New(dial, Config{RequestTimeout: time.Second})
	o.RegisterWorker(RegisterInput{ID: "w1", Address: "w1", Capabilities: []string{"m1"}})

	result, err := o.RouteInferenceRequest(context.Background(), RouteRequest{
		ModelID:   "m1",
		InputData: map[string]any{"x": 1},
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "w1", result.WorkerID)
}

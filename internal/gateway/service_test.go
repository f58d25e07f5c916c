package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferna-ai/inferna/internal/modelmanager"
	"github.com/inferna-ai/inferna/internal/orchestrator"
	"github.com/inferna-ai/inferna/internal/types"
)

// fakeCaller mirrors orchestrator_test.go's fake: it lets gateway tests
// script an RPC peer's response without a network or a real orchestrator/
// model manager process.
type fakeCaller struct {
	result any
	err    error
	calls  []callRecord
}

type callRecord struct {
	method string
	params any
}

func (f *fakeCaller) Call(_ context.Context, method string, params any, _ time.Duration) (any, error) {
	f.calls = append(f.calls, callRecord{method: method, params: params})
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeCaller) Close() error { return nil }

func TestRouteInferenceForwardsToOrchestratorAndDecodesResult(t *testing.T) {
	orch := &fakeCaller{result: orchestrator.RouteResult{
		Success:  true,
		WorkerID: "w1",
		Result:   types.InferenceResult{Predictions: []int{1, 2, 3}, Confidence: 0.9},
	}}
	mm := &fakeCaller{}
	svc := NewService(orch, mm, time.Second)

	result, err := svc.RouteInference(context.Background(), "m1", map[string]any{"x": 1}, types.InferenceOptions{})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "w1", result.WorkerID)
	assert.Equal(t, 0.9, result.Result.Confidence)

	require.Len(t, orch.calls, 1)
	assert.Equal(t, "routeInferenceRequest", orch.calls[0].method)
}

func TestRouteInferencePropagatesOrchestratorError(t *testing.T) {
	orch := &fakeCaller{err: errors.New("no workers available")}
	mm := &fakeCaller{}
	svc := NewService(orch, mm, time.Second)

	_, err := svc.RouteInference(context.Background(), "m1", map[string]any{}, types.InferenceOptions{})
	assert.Error(t, err)
}

func TestListModelsDecodesCatalogSlice(t *testing.T) {
	orch := &fakeCaller{}
	mm := &fakeCaller{result: []types.ModelMetadata{
		{ModelID: "m1", Type: "classifier"},
		{ModelID: "m2", Type: "regressor"},
	}}
	svc := NewService(orch, mm, time.Second)

	models, err := svc.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "m1", models[0].ModelID)
}

func TestGetModelReturnsMetadataOnly(t *testing.T) {
	orch := &fakeCaller{}
	mm := &fakeCaller{result: map[string]any{
		"modelId":  "m1",
		"metadata": types.ModelMetadata{ModelID: "m1", Type: "classifier", Version: "v1"},
	}}
	svc := NewService(orch, mm, time.Second)

	meta, err := svc.GetModel(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, "m1", meta.ModelID)
	assert.Equal(t, "classifier", meta.Type)
}

func TestCreateModelSendsFlatParamsAndDecodesResult(t *testing.T) {
	orch := &fakeCaller{}
	mm := &fakeCaller{result: modelmanager.CreateModelResult{Status: "created"}}
	svc := NewService(orch, mm, time.Second)

	result, err := svc.CreateModel(context.Background(), CreateModelRequest{
		ModelID:   "m1",
		ModelData: []byte("weights"),
		Type:      "classifier",
		Version:   "v1",
	})
	require.NoError(t, err)
	assert.Equal(t, "created", result.Status)

	require.Len(t, mm.calls, 1)
	assert.Equal(t, "createModel", mm.calls[0].method)
	params, ok := mm.calls[0].params.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "m1", params["modelId"])
}

func TestStatusAggregatesBothPeersAndSurvivesAPeerError(t *testing.T) {
	orch := &fakeCaller{result: map[string]any{"workerCount": 2}}
	mm := &fakeCaller{err: errors.New("unreachable")}
	svc := NewService(orch, mm, time.Second)

	status := svc.Status(context.Background())
	assert.NotNil(t, status["orchestrator"])
	assert.Equal(t, "unreachable", status["modelManagerError"])
}

func TestUptimeGrowsMonotonically(t *testing.T) {
	svc := NewService(&fakeCaller{}, &fakeCaller{}, time.Second)
	first := svc.Uptime()
	time.Sleep(time.Millisecond)
	second := svc.Uptime()
	assert.Greater(t, second, first)
}

package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferna-ai/inferna/internal/apierr"
	"github.com/inferna-ai/inferna/internal/transport"
	"github.com/inferna-ai/inferna/internal/types"
)

// fakeCaller lets orchestrator tests control a worker's RPC responses
// without a network or a real worker.Worker.
type fakeCaller struct {
	result any
	err    error
	calls  int
	closed bool
}

func (f *fakeCaller) Call(_ context.Context, _ string, _ any, _ time.Duration) (any, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeCaller) Close() error {
	f.closed = true
	return nil
}

func dialerFor(callers map[string]*fakeCaller) Dial {
	return func(address string) (transport.Caller, error) {
		c, ok := callers[address]
		if !ok {
			return nil, errors.New("no such worker")
		}
		return c, nil
	}
}

func successEnvelope() types.InferenceEnvelope {
	return types.InferenceEnvelope{
		Success:        true,
		Result:         types.InferenceResult{Predictions: []int{1, 2}, Confidence: 0.8},
		ProcessingTime: 12,
	}
}

func TestRouteInferenceRequestNoWorkersRegistered(t *testing.T) {
	o := New(dialerFor(nil), Config{})
	_, err := o.RouteInferenceRequest(context.Background(), RouteRequest{ModelID: "m1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apierr.ErrNoWorkersAvailable))
}

func TestRouteInferenceRequestFiltersByRequirements(t *testing.T) {
	o := New(dialerFor(nil), Config{})
	o.RegisterWorker(RegisterInput{ID: "w1", Address: "w1", Capabilities: []string{"m1"}})

	_, err := o.RouteInferenceRequest(context.Background(), RouteRequest{
		ModelID: "m1",
		Options: types.InferenceOptions{Requirements: types.Requirements{Capabilities: []string{"gpu"}}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apierr.ErrNoWorkersMatchRequirements))
}

func TestRouteInferenceRequestHappyPath(t *testing.T) {
	callers := map[string]*fakeCaller{"w1": {result: successEnvelope()}}
	o := New(dialerFor(callers), Config{})
	o.RegisterWorker(RegisterInput{ID: "w1", Address: "w1", Capabilities: []string{"m1"}})

	result, err := o.RouteInferenceRequest(context.Background(), RouteRequest{ModelID: "m1", InputData: map[string]any{"x": 1}})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "w1", result.WorkerID)
	assert.InDelta(t, 0.8, result.Result.Confidence, 0.0001)

	stats := o.balancer.Stats("w1")
	assert.Equal(t, int64(1), stats.RequestCount)
	assert.Equal(t, int64(0), stats.CurrentLoad, "slot must be released after completion")
}

func TestRouteInferenceRequestDoesNotSilentlyFailoverOnTransportError(t *testing.T) {
	callers := map[string]*fakeCaller{
		"w1": {err: errors.New("connection refused")},
		"w2": {result: successEnvelope()},
	}
	o := New(dialerFor(callers), Config{Strategy: StrategyRoundRobin})
	o.RegisterWorker(RegisterInput{ID: "w1", Address: "w1", Capabilities: []string{"m1"}})

	_, err := o.RouteInferenceRequest(context.Background(), RouteRequest{ModelID: "m1"})
	require.Error(t, err)
	assert.Equal(t, 0, callers["w2"].calls, "routing must not silently retry on a different worker")
}

func TestRouteInferenceRequestEvictsCachedClientOnTransportFailure(t *testing.T) {
	callers := map[string]*fakeCaller{"w1": {err: errors.New("boom")}}
	o := New(dialerFor(callers), Config{})
	o.RegisterWorker(RegisterInput{ID: "w1", Address: "w1", Capabilities: []string{"m1"}})

	_, err := o.RouteInferenceRequest(context.Background(), RouteRequest{ModelID: "m1"})
	require.Error(t, err)
	assert.True(t, callers["w1"].closed)
}

func TestUnregisterWorkerClosesCachedClient(t *testing.T) {
	callers := map[string]*fakeCaller{"w1": {result: successEnvelope()}}
	o := New(dialerFor(callers), Config{})
	o.RegisterWorker(RegisterInput{ID: "w1", Address: "w1", Capabilities: []string{"m1"}})

	_, err := o.RouteInferenceRequest(context.Background(), RouteRequest{ModelID: "m1"})
	require.NoError(t, err)

	o.UnregisterWorker("w1")
	assert.True(t, callers["w1"].closed)
}

func TestGetRecentDecisionsRecordsOutcome(t *testing.T) {
	callers := map[string]*fakeCaller{"w1": {result: successEnvelope()}}
	o := New(dialerFor(callers), Config{})
	o.RegisterWorker(RegisterInput{ID: "w1", Address: "w1", Capabilities: []string{"m1"}})

	_, err := o.RouteInferenceRequest(context.Background(), RouteRequest{ModelID: "m1"})
	require.NoError(t, err)

	decisions := o.GetRecentDecisions()
	require.Len(t, decisions, 1)
	assert.Equal(t, "w1", decisions[0].WorkerID)
	assert.True(t, decisions[0].Success)
}

func TestFindWorkersReturnsNoWorkersAvailableWhenModelUnknown(t *testing.T) {
	o := New(dialerFor(nil), Config{})
	_, err := o.FindWorkers(FindWorkersInput{ModelID: "missing"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apierr.ErrNoWorkersAvailable))
}

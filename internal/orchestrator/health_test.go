package orchestrator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferna-ai/inferna/internal/types"
)

func TestHealthMonitorQuarantinesAfterThreeConsecutiveFailures(t *testing.T) {
	r := NewRegistry()
	r.Register(RegisterInput{ID: "w1", Capabilities: []string{"m1"}})

	prober := func(_ context.Context, _ *types.Worker) error { return errors.New("unreachable") }
	h := NewHealthMonitor(r, prober, 0)

	for i := 0; i < 2; i++ {
		h.ProbeOnce(context.Background())
		assert.Len(t, r.GetWorkersForModel("m1"), 1, "should still be active before threshold is hit")
	}
	h.ProbeOnce(context.Background())

	assert.Empty(t, r.GetWorkersForModel("m1"))
	state := h.State("w1")
	assert.Equal(t, types.WorkerUnhealthy, state.Status)
	assert.Equal(t, 3, state.ConsecutiveFailures)
}

func TestHealthMonitorRecoversOnSingleSuccessfulProbe(t *testing.T) {
	r := NewRegistry()
	r.Register(RegisterInput{ID: "w1", Capabilities: []string{"m1"}})

	var fail int32 = 1
	prober := func(_ context.Context, _ *types.Worker) error {
		if atomic.LoadInt32(&fail) == 1 {
			return errors.New("down")
		}
		return nil
	}
	h := NewHealthMonitor(r, prober, 0)
	for i := 0; i < 3; i++ {
		h.ProbeOnce(context.Background())
	}
	require.Empty(t, r.GetWorkersForModel("m1"))

	atomic.StoreInt32(&fail, 0)
	h.ProbeOnce(context.Background())

	assert.Len(t, r.GetWorkersForModel("m1"), 1)
	assert.Equal(t, 0, h.State("w1").ConsecutiveFailures)
}

func TestHealthMonitorContinuesProbingQuarantinedWorkers(t *testing.T) {
	r := NewRegistry()
	r.Register(RegisterInput{ID: "w1", Capabilities: []string{"m1"}})
	prober := func(_ context.Context, _ *types.Worker) error { return errors.New("down") }
	h := NewHealthMonitor(r, prober, 0)

	for i := 0; i < 5; i++ {
		h.ProbeOnce(context.Background())
	}
	assert.Equal(t, int64(5), h.State("w1").TotalChecks)
}

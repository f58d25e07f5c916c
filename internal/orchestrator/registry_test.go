package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferna-ai/inferna/internal/types"
)

func TestRegisterThenGetWorkersForModel(t *testing.T) {
	r := NewRegistry()
	r.Register(RegisterInput{ID: "w1", Address: "http://w1", Capabilities: []string{"m1"}})

	workers := r.GetWorkersForModel("m1")
	require.Len(t, workers, 1)
	assert.Equal(t, "w1", workers[0].ID)
}

func TestRegisterTwiceIsIdempotentOverMutableFields(t *testing.T) {
	r := NewRegistry()
	first := r.Register(RegisterInput{ID: "w1", Address: "http://old", Capabilities: []string{"m1"}})
	second := r.Register(RegisterInput{ID: "w1", Address: "http://new", Capabilities: []string{"m1", "m2"}})

	assert.Equal(t, first.RegisteredAt, second.RegisteredAt)
	assert.Equal(t, "http://new", second.Address)
	assert.ElementsMatch(t, []string{"m1", "m2"}, second.Capabilities)
}

func TestUnregisterRemovesFromEveryIndex(t *testing.T) {
	r := NewRegistry()
	r.Register(RegisterInput{ID: "w1", Capabilities: []string{"m1", "gpu"}})

	assert.True(t, r.Unregister("w1"))
	assert.Empty(t, r.GetWorkersForModel("m1"))
	assert.Empty(t, r.GetWorkersByCapability("gpu"))
	assert.False(t, r.Unregister("w1"))
}

func TestGetWorkersForModelExcludesUnhealthyWorkers(t *testing.T) {
	r := NewRegistry()
	r.Register(RegisterInput{ID: "w1", Capabilities: []string{"m1"}})
	unhealthy := types.WorkerUnhealthy
	require.NoError(t, r.UpdateStatus("w1", StatusPatch{Status: &unhealthy}))

	assert.Empty(t, r.GetWorkersForModel("m1"))
}

func TestUpdateStatusStampsLastSeen(t *testing.T) {
	r := NewRegistry()
	before := r.Register(RegisterInput{ID: "w1"})
	active := types.WorkerActive
	require.NoError(t, r.UpdateStatus("w1", StatusPatch{Status: &active}))

	after, err := r.Get("w1")
	require.NoError(t, err)
	assert.True(t, !after.LastSeen.Before(before.LastSeen))
}

func TestUpdateStatusMissingWorkerErrors(t *testing.T) {
	r := NewRegistry()
	err := r.UpdateStatus("missing", StatusPatch{})
	require.Error(t, err)
}

func TestReregisteringAfterCapabilityChangeDropsStaleIndexEntries(t *testing.T) {
	r := NewRegistry()
	r.Register(RegisterInput{ID: "w1", Capabilities: []string{"m1"}})
	r.Register(RegisterInput{ID: "w1", Capabilities: []string{"m2"}})

	assert.Empty(t, r.GetWorkersForModel("m1"))
	assert.Len(t, r.GetWorkersForModel("m2"), 1)
}

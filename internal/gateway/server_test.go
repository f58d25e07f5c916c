package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferna-ai/inferna/internal/orchestrator"
	"github.com/inferna-ai/inferna/internal/types"
)

func testRouter(t *testing.T, orch, mm *fakeCaller) (*httptest.Server, *KeyStore) {
	t.Helper()
	service := NewService(orch, mm, time.Second)
	keyStore := NewKeyStore()
	keyStore.Add("test-key", "test", []string{"*"})

	router := NewRouter(RouterConfig{
		Service:        service,
		KeyStore:       keyStore,
		RateLimiter:    NewRateLimiter(60000, 1000),
		AuthEnabled:    true,
		RateLimitOn:    false,
		AllowedOrigins: []string{"*"},
		StartedAt:      time.Now(),
	})
	return httptest.NewServer(router), keyStore
}

func TestHealthEndpointNeedsNoAuth(t *testing.T) {
	srv, _ := testRouter(t, &fakeCaller{}, &fakeCaller{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestInferenceEndpointRejectsMissingAPIKey(t *testing.T) {
	srv, _ := testRouter(t, &fakeCaller{}, &fakeCaller{})
	defer srv.Close()

	body, _ := json.Marshal(map[string]any{"inputData": map[string]any{"x": 1}})
	resp, err := http.Post(srv.URL+"/api/v1/inference/m1", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestInferenceEndpointHappyPath(t *testing.T) {
	orch := &fakeCaller{result: orchestrator.RouteResult{
		Success:  true,
		WorkerID: "w1",
		Result:   types.InferenceResult{Predictions: []int{1, 2, 3}, Confidence: 0.75},
	}}
	srv, _ := testRouter(t, orch, &fakeCaller{})
	defer srv.Close()

	body, _ := json.Marshal(map[string]any{"inputData": map[string]any{"x": 1}})
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/inference/m1", bytes.NewReader(body))
	req.Header.Set("X-Api-Key", "test-key")
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	assert.Equal(t, true, decoded["success"])
	assert.Equal(t, "m1", decoded["modelId"])
}

func TestInferenceEndpointRejectsMissingInputData(t *testing.T) {
	srv, _ := testRouter(t, &fakeCaller{}, &fakeCaller{})
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/inference/m1", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("X-Api-Key", "test-key")
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListModelsEndpointFiltersByType(t *testing.T) {
	mm := &fakeCaller{result: []types.ModelMetadata{
		{ModelID: "m1", Type: "classifier"},
		{ModelID: "m2", Type: "regressor"},
	}}
	srv, _ := testRouter(t, &fakeCaller{}, mm)
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/models?type=classifier", nil)
	req.Header.Set("X-Api-Key", "test-key")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var decoded struct {
		Models []types.ModelMetadata `json:"models"`
		Count  int                   `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	require.Len(t, decoded.Models, 1)
	assert.Equal(t, "m1", decoded.Models[0].ModelID)
}

func TestCreateModelEndpointRequiresWritePermission(t *testing.T) {
	mm := &fakeCaller{}
	service := NewService(&fakeCaller{}, mm, time.Second)
	keyStore := NewKeyStore()
	keyStore.Add("read-only-key", "reader", []string{"models:read"})

	router := NewRouter(RouterConfig{
		Service:     service,
		KeyStore:    keyStore,
		RateLimiter: NewRateLimiter(60000, 1000),
		AuthEnabled: true,
		StartedAt:   time.Now(),
	})
	srv := httptest.NewServer(router)
	defer srv.Close()

	body, _ := json.Marshal(map[string]any{"modelId": "m1", "modelData": []byte("weights")})
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/models", bytes.NewReader(body))
	req.Header.Set("X-Api-Key", "read-only-key")
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestStatusEndpointNeedsNoSpecificPermission(t *testing.T) {
	orch := &fakeCaller{result: map[string]any{"workerCount": 1}}
	srv, _ := testRouter(t, orch, &fakeCaller{})
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/status", nil)
	req.Header.Set("X-Api-Key", "test-key")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

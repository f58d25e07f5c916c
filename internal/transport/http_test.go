package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferna-ai/inferna/internal/apierr"
)

func jsonErrorServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(status)
		_, _ = rw.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func echoRoute(method string, params any) (Route, error) {
	return Route{HTTPMethod: http.MethodPost, Path: "/" + method, Body: params}, nil
}

func TestHTTPCallReconstructsModelNotFoundSentinel(t *testing.T) {
	srv := jsonErrorServer(t, http.StatusNotFound, `{"success":false,"error":"model not found"}`)
	caller := NewHTTP(srv.URL, echoRoute)

	_, err := caller.Call(context.Background(), "getModel", nil, time.Second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apierr.ErrModelNotFound), "expected ErrModelNotFound, got %v", err)
	assert.Equal(t, http.StatusNotFound, apierr.HTTPStatus(err))
}

func TestHTTPCallReconstructsCapacityExceededSentinel(t *testing.T) {
	srv := jsonErrorServer(t, http.StatusInternalServerError, `{"success":false,"error":"capacity exceeded: worker at max concurrency"}`)
	caller := NewHTTP(srv.URL, echoRoute)

	_, err := caller.Call(context.Background(), "runInference", nil, time.Second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apierr.ErrCapacityExceeded), "expected ErrCapacityExceeded, got %v", err)
}

func TestHTTPCallReconstructsNoWorkersAvailableAs503(t *testing.T) {
	srv := jsonErrorServer(t, http.StatusServiceUnavailable, `{"success":false,"error":"no workers available"}`)
	caller := NewHTTP(srv.URL, echoRoute)

	_, err := caller.Call(context.Background(), "routeInferenceRequest", nil, time.Second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apierr.ErrNoWorkersAvailable))
	assert.Equal(t, http.StatusServiceUnavailable, apierr.HTTPStatus(err))
}

func TestHTTPCallReconstructsInferenceTimeoutAs504(t *testing.T) {
	srv := jsonErrorServer(t, http.StatusGatewayTimeout, `{"success":false,"error":"inference timed out after 30s"}`)
	caller := NewHTTP(srv.URL, echoRoute)

	_, err := caller.Call(context.Background(), "runInference", nil, time.Second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apierr.ErrInferenceTimeout))
	assert.Equal(t, http.StatusGatewayTimeout, apierr.HTTPStatus(err))
}

func TestHTTPCallFallsBackToTransportErrorOnUnrecognizedBody(t *testing.T) {
	srv := jsonErrorServer(t, http.StatusBadGateway, `not json`)
	caller := NewHTTP(srv.URL, echoRoute)

	_, err := caller.Call(context.Background(), "runInference", nil, time.Second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransport))
	assert.False(t, errors.Is(err, apierr.ErrModelNotFound))
}

func TestHTTPCallFallsBackToTransportErrorOnUnknownErrorText(t *testing.T) {
	srv := jsonErrorServer(t, http.StatusInternalServerError, `{"error":"something inexplicable happened"}`)
	caller := NewHTTP(srv.URL, echoRoute)

	_, err := caller.Call(context.Background(), "runInference", nil, time.Second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransport))
}

func TestHTTPCallSucceedsAndDecodesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true})
	}))
	t.Cleanup(srv.Close)
	caller := NewHTTP(srv.URL, echoRoute)

	result, err := caller.Call(context.Background(), "health", nil, time.Second)
	require.NoError(t, err)
	decoded, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, decoded["ok"])
}

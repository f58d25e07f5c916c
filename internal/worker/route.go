package worker

import (
	"fmt"
	"net/url"

	"github.com/inferna-ai/inferna/internal/transport"
)

// HTTPRoute resolves worker RPC methods onto the worker's HTTP surface
// (§6: GET /health, POST /api/inference/:modelId, GET /api/capacity, POST
// /api/models/:modelId/load), for use by transport.NewHTTP on the
// orchestrator side of the orchestrator->worker hop.
func HTTPRoute(method string, params any) (transport.Route, error) {
	switch method {
	case "health":
		return transport.Route{HTTPMethod: "GET", Path: "/health"}, nil
	case "checkCapacity":
		modelID, _ := params.(string)
		path := "/api/capacity"
		if modelID != "" {
			path += "?modelId=" + url.QueryEscape(modelID)
		}
		return transport.Route{HTTPMethod: "GET", Path: path}, nil
	case "loadModel":
		modelID, ok := params.(string)
		if !ok {
			return transport.Route{}, fmt.Errorf("worker route: loadModel expects a modelId string")
		}
		return transport.Route{HTTPMethod: "POST", Path: "/api/models/" + url.PathEscape(modelID) + "/load"}, nil
	case "runInference":
		var p InferenceParams
		if err := decodeParams(params, &p); err != nil {
			return transport.Route{}, fmt.Errorf("worker route: runInference expects InferenceParams: %w", err)
		}
		return transport.Route{
			HTTPMethod: "POST",
			Path:       "/api/inference/" + url.PathEscape(p.ModelID),
			Body: inferenceRequestBody{
				InputData: p.InputData,
				Options:   p.Options,
			},
		}, nil
	default:
		return transport.Route{}, fmt.Errorf("worker route: unknown method %q", method)
	}
}

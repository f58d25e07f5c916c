package orchestrator

import (
	"fmt"

	"github.com/inferna-ai/inferna/internal/transport"
)

// HTTPRoute resolves orchestrator RPC methods onto its HTTP surface (§6:
// GET /health, POST /api/workers/register, POST /api/workers/find, POST
// /api/inference/route, GET /api/status), for use by transport.NewHTTP on
// the gateway side of the gateway->orchestrator hop.
func HTTPRoute(method string, params any) (transport.Route, error) {
	switch method {
	case "health":
		return transport.Route{HTTPMethod: "GET", Path: "/health"}, nil
	case "registerWorker":
		return transport.Route{HTTPMethod: "POST", Path: "/api/workers/register", Body: params}, nil
	case "findWorkers":
		return transport.Route{HTTPMethod: "POST", Path: "/api/workers/find", Body: params}, nil
	case "routeInferenceRequest":
		return transport.Route{HTTPMethod: "POST", Path: "/api/inference/route", Body: params}, nil
	case "status":
		return transport.Route{HTTPMethod: "GET", Path: "/api/status"}, nil
	default:
		return transport.Route{}, fmt.Errorf("orchestrator route: unknown method %q", method)
	}
}

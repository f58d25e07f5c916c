package modelmanager

import (
	"encoding/base64"
	"fmt"
	"net/url"

	"github.com/inferna-ai/inferna/internal/transport"
)

// HTTPRoute resolves Model Manager RPC methods onto its HTTP surface (§6:
// GET /health, GET /api/models, GET /api/models/:modelId, POST
// /api/models), for use by transport.NewHTTP on the worker side of the
// worker->Model Manager hop.
func HTTPRoute(method string, params any) (transport.Route, error) {
	switch method {
	case "health":
		return transport.Route{HTTPMethod: "GET", Path: "/health"}, nil
	case "listModels":
		return transport.Route{HTTPMethod: "GET", Path: "/api/models"}, nil
	case "getModel":
		var p fetchModelParams
		if err := decodeParams(params, &p); err != nil {
			return transport.Route{}, fmt.Errorf("modelmanager route: getModel expects fetchModelParams: %w", err)
		}
		return transport.Route{HTTPMethod: "GET", Path: "/api/models/" + url.PathEscape(p.ModelID)}, nil
	case "createModel":
		var p createModelParams
		if err := decodeParams(params, &p); err != nil {
			return transport.Route{}, fmt.Errorf("modelmanager route: createModel expects createModelParams: %w", err)
		}
		body := createModelRequest{ModelID: p.ModelID, ModelData: base64.StdEncoding.EncodeToString(p.Data)}
		body.Metadata.Type = p.Type
		body.Metadata.Version = p.Version
		body.Metadata.Description = p.Description
		return transport.Route{HTTPMethod: "POST", Path: "/api/models", Body: body}, nil
	default:
		return transport.Route{}, fmt.Errorf("modelmanager route: unknown method %q", method)
	}
}

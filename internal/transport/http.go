package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/inferna-ai/inferna/internal/apierr"
)

// Route describes how one RPC method maps onto the remote HTTP surface.
type Route struct {
	HTTPMethod string
	Path       string
	Body       any // nil for GET-style calls with no body
}

// RouteFunc resolves an RPC method + params into the concrete HTTP call to
// make. Worker and orchestrator each supply their own, keeping this package
// free of domain knowledge about §6's HTTP surfaces.
type RouteFunc func(method string, params any) (Route, error)

// HTTP satisfies Caller by issuing a real HTTP request per Call, used
// between processes (orchestrator -> worker, gateway -> orchestrator) per
// spec.md §9's transport design note.
type HTTP struct {
	baseURL string
	client  *http.Client
	route   RouteFunc
}

func NewHTTP(baseURL string, route RouteFunc) *HTTP {
	return &HTTP{
		baseURL: baseURL,
		client:  &http.Client{},
		route:   route,
	}
}

func (h *HTTP) Call(ctx context.Context, method string, params any, timeout time.Duration) (any, error) {
	route, err := h.route(method, params)
	if err != nil {
		return nil, fmt.Errorf("transport: resolving route for %q: %w", method, err)
	}

	callCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var bodyReader io.Reader
	if route.Body != nil {
		encoded, err := json.Marshal(route.Body)
		if err != nil {
			return nil, fmt.Errorf("transport: encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(callCtx, route.HTTPMethod, h.baseURL+route.Path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("transport: building request: %w", err)
	}
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrTransport, err)
	}

	if resp.StatusCode >= 300 {
		return nil, remoteError(resp.StatusCode, raw)
	}

	if len(raw) == 0 {
		return nil, nil
	}
	var result any
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("transport: decoding response: %w", err)
	}
	return result, nil
}

// remoteError reconstructs the peer's apierr sentinel from its JSON error
// body (written by each service's writeError) so a non-2xx response carries
// the same structured error across the wire as it would in-process. Falls
// back to the generic transport error, tagged with the status code, when the
// body isn't the expected shape or names an error outside the taxonomy.
func remoteError(status int, raw []byte) error {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		if sentinel, ok := apierr.FromMessage(body.Error); ok {
			return fmt.Errorf("%w: %s", sentinel, body.Error)
		}
		return fmt.Errorf("%w: remote status %d: %s", ErrTransport, status, body.Error)
	}
	return fmt.Errorf("%w: remote returned status %d: %s", ErrTransport, status, string(raw))
}

func (h *HTTP) Close() error {
	return nil
}

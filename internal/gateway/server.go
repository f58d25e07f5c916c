package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/inferna-ai/inferna/internal/apierr"
	"github.com/inferna-ai/inferna/internal/types"
)

// RouterConfig bundles the gateway's dependencies for NewRouter.
type RouterConfig struct {
	Service        *Service
	KeyStore       *KeyStore
	RateLimiter    *RateLimiter
	AuthEnabled    bool
	RateLimitOn    bool
	AllowedOrigins []string
	StartedAt      time.Time
}

// NewRouter builds the gateway's public HTTP surface per spec.md §6:
// GET /health, POST /api/v1/inference/:modelId, GET /api/v1/models,
// GET /api/v1/models/:modelId, POST /api/v1/models, GET /api/v1/status.
func NewRouter(cfg RouterConfig) *mux.Router {
	r := mux.NewRouter()
	r.Use(CORS(cfg.AllowedOrigins))

	r.HandleFunc("/health", handleHealth(cfg)).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(Authenticate(cfg.KeyStore, cfg.AuthEnabled))
	api.Use(RateLimit(cfg.RateLimiter, cfg.RateLimitOn))

	api.Handle("/inference/{modelId}",
		Authorize("inference:run")(http.HandlerFunc(handleInference(cfg.Service)))).Methods(http.MethodPost)
	api.Handle("/models",
		Authorize("models:read")(http.HandlerFunc(handleListModels(cfg.Service)))).Methods(http.MethodGet)
	api.Handle("/models/{modelId}",
		Authorize("models:read")(http.HandlerFunc(handleGetModel(cfg.Service)))).Methods(http.MethodGet)
	api.Handle("/models",
		Authorize("models:write")(http.HandlerFunc(handleCreateModel(cfg.Service)))).Methods(http.MethodPost)
	api.Handle("/status",
		http.HandlerFunc(handleStatus(cfg.Service))).Methods(http.MethodGet)

	return r
}

func writeJSON(rw http.ResponseWriter, status int, body any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	if err := json.NewEncoder(rw).Encode(body); err != nil {
		log.Error().Err(err).Msg("writing response body")
	}
}

func writeError(rw http.ResponseWriter, err error) {
	msg := err.Error()
	if _, ok := apierr.FromMessage(msg); !ok {
		msg = "internal error"
	}
	writeJSON(rw, apierr.HTTPStatus(err), map[string]any{"success": false, "error": msg})
}

func handleHealth(cfg RouterConfig) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		writeJSON(rw, http.StatusOK, map[string]any{
			"status":  "healthy",
			"service": "gateway",
			"uptime":  time.Since(cfg.StartedAt).String(),
		})
	}
}

type inferenceRequestBody struct {
	InputData any `json:"inputData"`
	Options   struct {
		TimeoutMs    int64    `json:"timeout,omitempty"`
		Capabilities []string `json:"capabilities,omitempty"`
		MinCapacity  int      `json:"minCapacity,omitempty"`
	} `json:"options"`
}

func handleInference(s *Service) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		modelID := mux.Vars(r)["modelId"]

		var body inferenceRequestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.InputData == nil {
			writeError(rw, apierr.ErrBadRequest)
			return
		}

		opts := types.InferenceOptions{
			TimeoutMs: body.Options.TimeoutMs,
			Requirements: types.Requirements{
				Capabilities: body.Options.Capabilities,
				MinCapacity:  body.Options.MinCapacity,
			},
		}

		result, err := s.RouteInference(r.Context(), modelID, body.InputData, opts)
		if err != nil {
			writeError(rw, err)
			return
		}
		writeJSON(rw, http.StatusOK, map[string]any{
			"success":   true,
			"modelId":   modelID,
			"result":    result,
			"timestamp": time.Now(),
		})
	}
}

func handleListModels(s *Service) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		models, err := s.ListModels(r.Context())
		if err != nil {
			writeError(rw, err)
			return
		}

		typeFilter := r.URL.Query().Get("type")
		if typeFilter != "" {
			filtered := make([]types.ModelMetadata, 0, len(models))
			for _, m := range models {
				if m.Type == typeFilter {
					filtered = append(filtered, m)
				}
			}
			models = filtered
		}
		if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit > 0 && limit < len(models) {
			models = models[:limit]
		}

		writeJSON(rw, http.StatusOK, map[string]any{
			"success": true,
			"models":  models,
			"count":   len(models),
		})
	}
}

func handleGetModel(s *Service) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		modelID := mux.Vars(r)["modelId"]
		meta, err := s.GetModel(r.Context(), modelID)
		if err != nil {
			writeError(rw, err)
			return
		}
		writeJSON(rw, http.StatusOK, map[string]any{
			"success": true,
			"model":   meta,
		})
	}
}

type createModelRequestBody struct {
	ModelID   string `json:"modelId"`
	ModelData []byte `json:"modelData"`
	Metadata  struct {
		Type        string `json:"type"`
		Version     string `json:"version"`
		Description string `json:"description"`
	} `json:"metadata"`
}

func handleCreateModel(s *Service) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		var body createModelRequestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(rw, apierr.ErrBadRequest)
			return
		}

		result, err := s.CreateModel(r.Context(), CreateModelRequest{
			ModelID:     body.ModelID,
			ModelData:   body.ModelData,
			Type:        body.Metadata.Type,
			Version:     body.Metadata.Version,
			Description: body.Metadata.Description,
		})
		if err != nil {
			writeError(rw, err)
			return
		}
		writeJSON(rw, http.StatusOK, map[string]any{
			"success":   true,
			"modelId":   body.ModelID,
			"result":    result,
			"timestamp": time.Now(),
		})
	}
}

func handleStatus(s *Service) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		writeJSON(rw, http.StatusOK, map[string]any{
			"success": true,
			"status":  s.Status(r.Context()),
			"uptime":  s.Uptime().String(),
		})
	}
}

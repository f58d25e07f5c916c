package modelmanager

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/inferna-ai/inferna/internal/apierr"
)

// NewRouter builds the Model Manager HTTP surface per spec.md §6:
// GET /health, GET /api/models, GET /api/models/:modelId, POST /api/models.
func NewRouter(s *Service) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", handleHealth(s)).Methods(http.MethodGet)
	r.HandleFunc("/api/models", handleListModels(s)).Methods(http.MethodGet)
	r.HandleFunc("/api/models", handleCreateModel(s)).Methods(http.MethodPost)
	r.HandleFunc("/api/models/{modelId}", handleGetModel(s)).Methods(http.MethodGet)
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
	writeJSON(rw, apierr.HTTPStatus(err), map[string]any{"success": false, "error": err.Error()})
}

func handleHealth(s *Service) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		status, err := s.Status(r.Context())
		if err != nil {
			writeError(rw, err)
			return
		}
		writeJSON(rw, http.StatusOK, map[string]any{
			"status":  "healthy",
			"service": "model-manager",
			"stats":   status,
		})
	}
}

func handleListModels(s *Service) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit := 0
		if v := q.Get("limit"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				limit = parsed
			}
		}
		models := s.ListModels(q.Get("type"), limit)
		writeJSON(rw, http.StatusOK, map[string]any{
			"success":   true,
			"models":    models,
			"count":     len(models),
			"timestamp": time.Now(),
		})
	}
}

func handleGetModel(s *Service) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		modelID := mux.Vars(r)["modelId"]
		version := r.URL.Query().Get("version")

		meta, data, err := s.FetchModelData(modelID, version)
		if err != nil {
			writeError(rw, err)
			return
		}
		writeJSON(rw, http.StatusOK, map[string]any{
			"modelId":   modelID,
			"metadata":  meta,
			"modelData": base64.StdEncoding.EncodeToString(data),
		})
	}
}

type createModelRequest struct {
	ModelID   string `json:"modelId"`
	ModelData string `json:"modelData"`
	Metadata  struct {
		Type        string `json:"type"`
		Version     string `json:"version"`
		Description string `json:"description"`
	} `json:"metadata"`
}

func handleCreateModel(s *Service) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		var req createModelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(rw, apierr.ErrBadRequest)
			return
		}
		data, err := base64.StdEncoding.DecodeString(req.ModelData)
		if err != nil {
			writeError(rw, apierr.ErrInvalidModelData)
			return
		}

		result, err := s.CreateModel(r.Context(), CreateModelInput{
			ModelID:     req.ModelID,
			Data:        data,
			Type:        req.Metadata.Type,
			Version:     req.Metadata.Version,
			Description: req.Metadata.Description,
		})
		if err != nil {
			writeError(rw, err)
			return
		}
		writeJSON(rw, http.StatusOK, map[string]any{
			"success":   true,
			"modelId":   req.ModelID,
			"result":    result,
			"timestamp": time.Now(),
		})
	}
}

package worker

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/inferna-ai/inferna/internal/apierr"
	"github.com/inferna-ai/inferna/internal/types"
)

// NewRouter builds the worker's HTTP surface per spec.md §6: GET /health,
// POST /api/inference/:modelId, GET /api/capacity, POST
// /api/models/:modelId/load.
func NewRouter(w *Worker) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", handleHealth(w)).Methods(http.MethodGet)
	r.HandleFunc("/api/inference/{modelId}", handleInference(w)).Methods(http.MethodPost)
	r.HandleFunc("/api/capacity", handleCapacity(w)).Methods(http.MethodGet)
	r.HandleFunc("/api/models/{modelId}/load", handleLoad(w)).Methods(http.MethodPost)
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
	writeJSON(rw, apierr.HTTPStatus(err), map[string]any{
		"success": false,
		"error":   err.Error(),
	})
}

func handleHealth(w *Worker) http.HandlerFunc {
	return func(rw http.ResponseWriter, _ *http.Request) {
		writeJSON(rw, http.StatusOK, w.GetHealth())
	}
}

func handleCapacity(w *Worker) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		writeJSON(rw, http.StatusOK, w.CheckCapacity(r.URL.Query().Get("modelId")))
	}
}

func handleLoad(w *Worker) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		modelID := mux.Vars(r)["modelId"]
		loaded, err := w.LoadModel(r.Context(), modelID)
		if err != nil {
			writeError(rw, err)
			return
		}
		writeJSON(rw, http.StatusOK, map[string]any{"loaded": loaded})
	}
}

type inferenceRequestBody struct {
	InputData any                    `json:"inputData"`
	Options   types.InferenceOptions `json:"options"`
}

func handleInference(w *Worker) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		modelID := mux.Vars(r)["modelId"]

		var body inferenceRequestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(rw, apierr.ErrBadRequest)
			return
		}

		envelope, err := w.RunInference(r.Context(), modelID, body.InputData, body.Options)
		if err != nil {
			writeError(rw, err)
			return
		}
		writeJSON(rw, http.StatusOK, envelope)
	}
}

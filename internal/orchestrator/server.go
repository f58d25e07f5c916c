package orchestrator

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/inferna-ai/inferna/internal/apierr"
)

// NewRouter builds the orchestrator's HTTP surface per spec.md §6: GET
// /health, POST /api/workers/register, POST /api/workers/find, POST
// /api/inference/route, GET /api/status.
func NewRouter(o *Orchestrator) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", handleHealth()).Methods(http.MethodGet)
	r.HandleFunc("/api/workers/register", handleRegister(o)).Methods(http.MethodPost)
	r.HandleFunc("/api/workers/find", handleFind(o)).Methods(http.MethodPost)
	r.HandleFunc("/api/inference/route", handleRoute(o)).Methods(http.MethodPost)
	r.HandleFunc("/api/status", handleStatus(o)).Methods(http.MethodGet)
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

func handleHealth() http.HandlerFunc {
	return func(rw http.ResponseWriter, _ *http.Request) {
		writeJSON(rw, http.StatusOK, map[string]string{"status": "healthy", "service": "orchestrator"})
	}
}

func handleRegister(o *Orchestrator) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		var p RegisterParams
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			writeError(rw, apierr.ErrBadRequest)
			return
		}
		worker := o.RegisterWorker(RegisterInput{
			ID:           p.ID,
			Address:      p.Address,
			Capabilities: p.Capabilities,
			Capacity:     capacityFrom(p.MaxConcurrent),
		})
		writeJSON(rw, http.StatusOK, map[string]any{"success": true, "worker": worker})
	}
}

func handleFind(o *Orchestrator) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		var p FindWorkersParams
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			writeError(rw, apierr.ErrBadRequest)
			return
		}
		workers, err := o.FindWorkers(FindWorkersInput{
			ModelID:      p.ModelID,
			Capabilities: p.Capabilities,
			MinCapacity:  p.MinCapacity,
		})
		if err != nil {
			writeError(rw, err)
			return
		}
		writeJSON(rw, http.StatusOK, map[string]any{"success": true, "workers": workers})
	}
}

func handleRoute(o *Orchestrator) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		var p RouteParams
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			writeError(rw, apierr.ErrBadRequest)
			return
		}
		result, err := o.RouteInferenceRequest(r.Context(), RouteRequest{
			ModelID:   p.ModelID,
			InputData: p.InputData,
			Options:   routeOptionsFrom(p.Options),
		})
		if err != nil {
			writeError(rw, err)
			return
		}
		writeJSON(rw, http.StatusOK, result)
	}
}

func handleStatus(o *Orchestrator) http.HandlerFunc {
	return func(rw http.ResponseWriter, _ *http.Request) {
		writeJSON(rw, http.StatusOK, o.Status())
	}
}

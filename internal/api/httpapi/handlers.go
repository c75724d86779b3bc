// Package httpapi exposes the Service over HTTP (spec §6): thin
// decoders that call into internal/service and map apperr sentinels
// to status codes.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aiserve/modelserver/internal/apperr"
	"github.com/aiserve/modelserver/internal/middleware"
	"github.com/aiserve/modelserver/internal/service"
)

// Server holds the Service and builds the mux.Router that serves it.
type Server struct {
	svc *service.Service
}

// New returns a Server wrapping svc.
func New(svc *service.Service) *Server {
	return &Server{svc: svc}
}

// Router builds the full route table with the standard middleware
// chain applied (spec ambient stack: CORS, request ID, logging,
// panic recovery).
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthcheck", s.healthCheck).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/api/predict", s.predict).Methods(http.MethodPost)
	r.HandleFunc("/api/models", s.listModels).Methods(http.MethodGet)
	r.HandleFunc("/api/models", s.addModel).Methods(http.MethodPost)
	r.HandleFunc("/api/models", s.updateModel).Methods(http.MethodPut)
	r.HandleFunc("/api/models", s.deleteModel).Methods(http.MethodDelete)

	var h http.Handler = r
	h = middleware.Logger(h)
	h = middleware.Recovery(h)
	h = middleware.RequestID(h)
	h = middleware.CORS(h)
	return h
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.HealthCheck(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type predictRequest struct {
	ModelName string `json:"model_name"`
	Input     string `json:"input"`
}

type predictResponse struct {
	Output string `json:"output"`
}

func (s *Server) predict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.ErrBadInput)
		return
	}

	out, err := s.svc.Predict(r.Context(), req.ModelName, req.Input)
	if err != nil {
		writeError(w, err)
		return
	}

	encoded, err := service.EncodePredictions(out)
	if err != nil {
		writeError(w, err)
		return
	}
	middleware.RespondJSON(w, http.StatusOK, predictResponse{Output: encoded})
}

type listModelsResponse struct {
	Total  int                    `json:"total"`
	Models []service.ModelInfo    `json:"models"`
}

func (s *Server) listModels(w http.ResponseWriter, r *http.Request) {
	models := s.svc.ListModels()
	middleware.RespondJSON(w, http.StatusOK, listModelsResponse{Total: len(models), Models: models})
}

type modelNameRequest struct {
	ModelName string `json:"model_name"`
}

func (s *Server) addModel(w http.ResponseWriter, r *http.Request) {
	var req modelNameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.ErrBadInput)
		return
	}
	if err := s.svc.AddModel(r.Context(), req.ModelName); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) updateModel(w http.ResponseWriter, r *http.Request) {
	var req modelNameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.ErrBadInput)
		return
	}
	if err := s.svc.UpdateModel(r.Context(), req.ModelName); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) deleteModel(w http.ResponseWriter, r *http.Request) {
	modelName := r.URL.Query().Get("model_name")
	if err := s.svc.DeleteModel(r.Context(), modelName); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case apperr.Is(err, apperr.ErrBadInput):
		status = http.StatusBadRequest
	case apperr.Is(err, apperr.ErrNotFound):
		status = http.StatusNotFound
	case apperr.Is(err, apperr.ErrAlreadyPresent):
		status = http.StatusConflict
	case apperr.Is(err, apperr.ErrDeadline):
		status = http.StatusGatewayTimeout
	case apperr.Is(err, apperr.ErrLoadError), apperr.Is(err, apperr.ErrInferenceFailure):
		status = http.StatusInternalServerError
	}
	middleware.RespondJSON(w, status, map[string]string{"error": err.Error()})
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"mt5-analysis-service/internal/config"
	"mt5-analysis-service/internal/store"
	"mt5-analysis-service/internal/tasks"
	"mt5-analysis-service/internal/telemetry"
)

// Server wires HTTP handlers for the analysis API.
type Server struct {
	cfg   config.Config
	tasks *tasks.Service
	log   *zap.Logger
}

// New constructs the API server.
func New(cfg config.Config, svc *tasks.Service, log *zap.Logger) *Server {
	return &Server{cfg: cfg, tasks: svc, log: log}
}

// Router builds the HTTP router. Everything except health and metrics
// sits behind the API key check.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(recoverer(s.log))
	r.Use(requestLogger(s.log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Mount("/metrics", telemetry.Handler())

	r.Group(func(r chi.Router) {
		r.Use(requireAPIKey(s.cfg.APIKey))
		r.Post("/analyze", s.handleAnalyze)
		r.Get("/task/{id}", s.handleTaskStatus)
	})

	return r
}

type analyzeResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	id, err := s.tasks.Trigger(r.Context())
	if err != nil {
		s.log.Error("trigger analysis", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to start analysis"})
		return
	}
	writeJSON(w, http.StatusAccepted, analyzeResponse{TaskID: id, Status: "running"})
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	status, err := s.tasks.Status(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "task not found"})
			return
		}
		s.log.Error("task status", zap.String("task_id", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read task"})
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

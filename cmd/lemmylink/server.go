package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"lemmylink/internal/constants"
	"lemmylink/internal/metrics"
	"lemmylink/internal/middleware"
	"lemmylink/internal/models"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type statsSource interface {
	Stats(ctx context.Context) (*models.StoreStats, error)
}

type runningChecker interface {
	IsRunning() bool
}

type healthResponse struct {
	Status          string `json:"status"`
	Reconciler      string `json:"reconciler"`
	ThreadMappings  int    `json:"threadMappings"`
	CommentMappings int    `json:"commentMappings"`
	Error           string `json:"error,omitempty"`
}

// Server exposes health and metrics over HTTP
type Server struct {
	router     *mux.Router
	logger     *logrus.Logger
	store      statsSource
	reconciler runningChecker
	metrics    *metrics.Registry
	server     *http.Server
}

func NewServer(store statsSource, reconciler runningChecker, logger *logrus.Logger) *Server {
	return newServer(store, reconciler, logger, metrics.GetRegistry())
}

func newServer(store statsSource, reconciler runningChecker, logger *logrus.Logger, reg *metrics.Registry) *Server {
	s := &Server{
		router:     mux.NewRouter(),
		logger:     logger,
		store:      store,
		reconciler: reconciler,
		metrics:    reg,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Observability(s.logger, s.metrics))
	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)
}

func (s *Server) Start(port int) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  constants.DefaultServerReadTimeoutSec * time.Second,
		WriteTimeout: constants.DefaultServerWriteTimeoutSec * time.Second,
		IdleTimeout:  constants.DefaultServerIdleTimeoutSec * time.Second,
	}

	s.logger.Infof("Starting status server on port %d", port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok", Reconciler: "stopped"}
		status := http.StatusOK

		if s.reconciler != nil && s.reconciler.IsRunning() {
			resp.Reconciler = "running"
		}

		stats, err := s.store.Stats(r.Context())
		if err != nil {
			s.logger.WithError(err).Warn("Health check could not read the mapping store")
			resp.Status = "degraded"
			resp.Error = "mapping store unavailable"
			status = http.StatusServiceUnavailable
		} else {
			resp.ThreadMappings = stats.ThreadMappings
			resp.CommentMappings = stats.CommentMappings
		}

		writeJSON(w, status, resp, s.logger)
	}
}

func (s *Server) handleMetrics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		writeJSON(w, http.StatusOK, s.metrics.GetAllMetrics(), s.logger)
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}, logger *logrus.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(body); err != nil {
		logger.WithError(err).Error("Failed to encode response")
	}
}

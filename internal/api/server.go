// Package api exposes summarization jobs and checkpoint introspection over
// HTTP.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/dgallion1/docsum/internal/checkpoint"
	"github.com/dgallion1/docsum/internal/completion"
	"github.com/dgallion1/docsum/internal/config"
	"github.com/dgallion1/docsum/internal/pipeline"
)

// Server is the HTTP API server for docsum.
type Server struct {
	router   chi.Router
	runner   *pipeline.Runner
	store    checkpoint.Store
	stats    *completion.StatsClient
	validate *validator.Validate
	log      *slog.Logger
	cfg      *config.Config
}

// NewServer creates and configures the HTTP server. stats may be nil.
func NewServer(runner *pipeline.Runner, stats *completion.StatsClient, log *slog.Logger, cfg *config.Config) *Server {
	s := &Server{
		runner:   runner,
		store:    runner.Summarizer().Store(),
		stats:    stats,
		validate: validator.New(),
		log:      log,
		cfg:      cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.Server.APIKey, s.log))

		r.Post("/api/summarize", s.handleSummarize)
		r.Get("/api/summarize/{jobID}", s.handleSummarizeStatus)

		r.Post("/api/checkpoints/lookup", s.handleCheckpointLookup)
		r.Get("/api/checkpoints", s.handleListCheckpoints)
		r.Get("/api/checkpoints/{taskID}", s.handleGetCheckpoint)
		r.Delete("/api/checkpoints/{taskID}", s.handleDeleteCheckpoint)

		r.Get("/api/stats/llm", s.handleLLMStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"queue_depth": s.runner.QueueDepth(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

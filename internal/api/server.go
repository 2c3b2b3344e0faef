package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dgallion1/doxynav/internal/config"
	"github.com/dgallion1/doxynav/internal/pipeline"
	"github.com/dgraph-io/ristretto"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Server is the HTTP API server for doxynav.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	cache        *ristretto.Cache
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. cache may be nil, in
// which case site pages are adjusted on every request.
func NewServer(orch *pipeline.Orchestrator, cache *ristretto.Cache, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		cache:        cache,
		log:          log,
		cfg:          cfg,
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
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "Viewport-Width", "Sec-CH-Viewport-Width"},
		ExposedHeaders: []string{"ETag", headerSteps, headerPreset},
		MaxAge:         300,
	}))

	// Public endpoints.
	r.Get("/health", s.handleHealth)
	if s.cfg.SiteDir != "" {
		r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/docs/", http.StatusMovedPermanently)
		})
		r.Get("/docs/*", s.handleSite)
	}

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/adjust", s.handleAdjust)
		r.Post("/api/adjust/batch", s.handleBatchAdjust)
		r.Get("/api/jobs/{jobID}/status", s.handleJobStatus)
		r.Get("/api/jobs/{jobID}/pages/*", s.handleJobPage)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":      "ok",
		"preset":      s.orchestrator.Adjusters().Default().Preset().Name,
		"queue_depth": s.orchestrator.QueueDepth(),
	})
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

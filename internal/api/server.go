package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/YuvaAi/promoforge/internal/campaign"
	"github.com/YuvaAi/promoforge/internal/config"
	"github.com/YuvaAi/promoforge/internal/contentlog"
	"github.com/YuvaAi/promoforge/internal/credstore"
	"github.com/YuvaAi/promoforge/internal/generator"
	"github.com/YuvaAi/promoforge/internal/publisher"
)

// Server is the HTTP API server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	generator  *generator.Generator
	publisher  *publisher.Orchestrator
	builder    *campaign.Builder
	creds      credstore.Store
	log        contentlog.Log
	config     *config.APIConfig
	logger     *slog.Logger
	startTime  time.Time
}

// NewServer creates a new API server
func NewServer(gen *generator.Generator, pub *publisher.Orchestrator, builder *campaign.Builder, creds credstore.Store, log contentlog.Log, cfg *config.APIConfig, logger *slog.Logger) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		generator: gen,
		publisher: pub,
		builder:   builder,
		creds:     creds,
		log:       log,
		config:    cfg,
		logger:    logger,
		startTime: time.Now(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)

	// Health check (no auth required)
	s.router.Get("/health", s.handleHealth)

	// API v1 routes (auth required)
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.requireAPIKey)

		r.Post("/generate", s.handleGenerate)
		r.Post("/publish", s.handlePublish)
		r.Post("/campaigns", s.handleCreateCampaign)
		r.Post("/campaigns/resume", s.handleResumeCampaign)

		r.Put("/credentials/{userID}/{platform}", s.handlePutCredential)
		r.Get("/credentials/{userID}", s.handleListCredentials)
		r.Delete("/credentials/{userID}/{platform}", s.handleDeleteCredential)

		r.Get("/content/{userID}", s.handleListContent)
		r.Get("/metrics/{userID}/{platform}/{remoteID}", s.handleFetchMetrics)
	})
}

// Router returns the underlying router (used by tests)
func (s *Server) Router() http.Handler {
	return s.router
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	s.httpServer = &http.Server{
		Addr:           s.config.ListenAddr,
		Handler:        s.router,
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
	}

	s.logger.Info("starting HTTP API server", "addr", s.config.ListenAddr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP API server")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

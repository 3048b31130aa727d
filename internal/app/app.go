// Package app wires the service together: storage, generator,
// platform adapters, publish orchestrator, campaign builder and the
// HTTP surfaces.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/YuvaAi/promoforge/internal/api"
	"github.com/YuvaAi/promoforge/internal/campaign"
	"github.com/YuvaAi/promoforge/internal/config"
	"github.com/YuvaAi/promoforge/internal/contentlog"
	"github.com/YuvaAi/promoforge/internal/credstore"
	"github.com/YuvaAi/promoforge/internal/generator"
	"github.com/YuvaAi/promoforge/internal/metrics"
	"github.com/YuvaAi/promoforge/internal/platform"
	"github.com/YuvaAi/promoforge/internal/publisher"
)

const shutdownTimeout = 15 * time.Second

// App is the main application
type App struct {
	config        *config.Config
	creds         *credstore.BoltStore
	contentLog    *contentlog.BoltLog
	apiServer     *api.Server
	metricsServer *http.Server
	metrics       *metrics.Metrics
	logger        *slog.Logger
}

// New creates a new application
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := setupLogger(cfg.Logging)

	creds, err := credstore.NewBoltStore(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create credential store: %w", err)
	}

	contentLog, err := contentlog.NewBoltLog(creds.DB())
	if err != nil {
		creds.Close()
		return nil, fmt.Errorf("failed to create content log: %w", err)
	}

	backend, err := generator.NewGeminiBackend(ctx, cfg.Generator.APIKey, cfg.Generator.Model)
	if err != nil {
		creds.Close()
		return nil, fmt.Errorf("failed to create generator backend: %w", err)
	}

	m := metrics.New()

	gen := generator.New(backend, generator.Config{
		BaseDelay:   cfg.Generator.BaseDelay,
		MaxAttempts: cfg.Generator.MaxAttempts,
	}, nil, nil, m, logger.With("component", "generator"))

	adapters := platform.NewRegistry(
		platform.NewFacebookAdapter(cfg.Platforms.GraphBaseURL, cfg.Platforms.RequestTimeout, logger.With("component", "facebook")),
		platform.NewInstagramAdapter(cfg.Platforms.GraphBaseURL, cfg.Platforms.RequestTimeout, logger.With("component", "instagram")),
		platform.NewLinkedInAdapter(cfg.Platforms.LinkedInBaseURL, cfg.Platforms.RequestTimeout, logger.With("component", "linkedin")),
	)

	builder := campaign.NewBuilder(
		campaign.NewAPIClient(cfg.Campaign.GraphBaseURL, cfg.Campaign.RequestTimeout),
		m,
		logger.With("component", "campaign_builder"),
	)

	var ads publisher.AdCreator
	if cfg.Campaign.AutoBoost {
		ads = builder
		logger.Info("automatic post boosting enabled")
	}

	pub := publisher.New(adapters, publisher.Config{
		AttemptTimeout: cfg.Platforms.PublishTimeout,
	}, contentLog, ads, m, logger.With("component", "publisher"))

	apiServer := api.NewServer(gen, pub, builder, creds, contentLog, &cfg.API, logger.With("component", "api"))

	app := &App{
		config:     cfg,
		creds:      creds,
		contentLog: contentLog,
		apiServer:  apiServer,
		metrics:    m,
		logger:     logger,
	}

	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, m.Handler())
		app.metricsServer = &http.Server{
			Addr:    cfg.Metrics.ListenAddr,
			Handler: mux,
		}
	}

	return app, nil
}

// Run starts the servers and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)

	go func() {
		if err := a.apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()

	if a.metricsServer != nil {
		a.logger.Info("starting metrics server", "addr", a.metricsServer.Addr)
		go func() {
			if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.logger.Error("server error", "error", err)
		return a.shutdownWith(err)
	}

	return a.shutdownWith(nil)
}

func (a *App) shutdownWith(cause error) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.apiServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("api server shutdown failed", "error", err)
	}
	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("metrics server shutdown failed", "error", err)
		}
	}
	if err := a.creds.Close(); err != nil {
		a.logger.Error("storage close failed", "error", err)
	}

	a.logger.Info("shutdown complete")
	return cause
}

// setupLogger creates the root logger from config
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

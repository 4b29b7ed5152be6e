package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/BaSui01/agentloop/api/handlers"
	"github.com/BaSui01/agentloop/config"
	"github.com/BaSui01/agentloop/internal/metrics"
	"github.com/BaSui01/agentloop/internal/server"
	"github.com/BaSui01/agentloop/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// =============================================================================
// 🖥️ Server
// =============================================================================

// Server runs the HTTP API and the metrics endpoint around an App.
type Server struct {
	cfg       *config.Config
	loader    *config.Loader
	logger    *zap.Logger
	collector *metrics.Collector
	telemetry *telemetry.Providers

	app      *App
	reloader *config.Reloader

	httpManager    *server.Manager
	metricsManager *server.Manager

	cancel context.CancelFunc
}

// NewServer builds the app. loader is used for config reload when it has a path.
func NewServer(cfg *config.Config, loader *config.Loader, logger *zap.Logger, otelProviders *telemetry.Providers) (*Server, error) {
	return newServer(cfg, loader, logger, otelProviders, metrics.NewCollector("agentloop", logger))
}

func newServer(cfg *config.Config, loader *config.Loader, logger *zap.Logger, otelProviders *telemetry.Providers,
	collector *metrics.Collector, opts ...AppOption) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	app, err := NewApp(cfg, logger, append([]AppOption{WithCollector(collector)}, opts...)...)
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:       cfg,
		loader:    loader,
		logger:    logger,
		collector: collector,
		telemetry: otelProviders,
		app:       app,
	}, nil
}

// Handler returns the API mux wrapped in the middleware chain.
func (s *Server) Handler(ctx context.Context) (http.Handler, error) {
	health := handlers.NewHealthHandler(s.logger)
	health.RegisterCheck(s.app.ReadyChecks()...)
	runs := handlers.NewRunHandler(s.app, s.app.Sessions(), s.app.History(), s.logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", health.HandleHealth)
	mux.HandleFunc("GET /healthz", health.HandleHealthz)
	mux.HandleFunc("GET /ready", health.HandleReady)
	mux.HandleFunc("GET /readyz", health.HandleReady)
	mux.HandleFunc("GET /version", health.HandleVersion(Version, BuildTime, GitCommit))
	mux.HandleFunc("POST /api/v1/run", runs.HandleRun)
	mux.HandleFunc("GET /api/v1/runs", runs.HandleListRuns)
	mux.HandleFunc("GET /api/v1/runs/{id}", runs.HandleGetRun)

	chain := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.collector),
		OTelTracing(),
		RateLimiter(ctx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger),
	}
	if s.cfg.Server.JWT.Enabled() {
		auth, err := JWTAuth(s.cfg.Server.JWT, s.logger)
		if err != nil {
			return nil, err
		}
		chain = append(chain, auth)
	}
	return Chain(mux, chain...), nil
}

// Start starts both listeners and, with a config file, the reloader.
func (s *Server) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	handler, err := s.Handler(ctx)
	if err != nil {
		return fmt.Errorf("build handler: %w", err)
	}

	s.httpManager = server.NewManager(handler, server.ConfigFrom("api", s.cfg.Server.HTTPPort, s.cfg.Server), s.logger)
	if err := s.httpManager.Start(); err != nil {
		return err
	}

	if s.cfg.Server.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		s.metricsManager = server.NewManager(mux, server.ConfigFrom("metrics", s.cfg.Server.MetricsPort, s.cfg.Server), s.logger)
		if err := s.metricsManager.Start(); err != nil {
			return err
		}
	}

	if s.loader != nil {
		s.reloader, err = config.NewReloader(s.loader, s.cfg, config.WithReloaderLogger(s.logger))
		if err == nil {
			s.reloader.OnReload(s.app.ApplyConfig)
			err = s.reloader.Start(ctx)
		}
		if err != nil {
			s.logger.Warn("config reload disabled", zap.Error(err))
			s.reloader = nil
		}
	}

	s.logger.Info("agentloop serving",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.Bool("jwt", s.cfg.Server.JWT.Enabled()),
		zap.Bool("hot_reload", s.reloader != nil),
	)
	return nil
}

// Wait blocks until ctx ends or the API server fails, then shuts down.
func (s *Server) Wait(ctx context.Context) error {
	err := s.httpManager.Wait(ctx)
	s.Shutdown(context.WithoutCancel(ctx))
	return err
}

// Shutdown stops listeners first so in-flight runs drain, then releases the app.
func (s *Server) Shutdown(ctx context.Context) {
	s.logger.Info("starting graceful shutdown")

	if s.reloader != nil {
		s.reloader.Stop()
	}
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("metrics server shutdown error", zap.Error(err))
		}
	}
	if s.cancel != nil {
		s.cancel()
	}
	if err := s.app.Close(); err != nil {
		s.logger.Error("release resources", zap.Error(err))
	}
	if s.telemetry != nil {
		if err := s.telemetry.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("telemetry shutdown error", zap.Error(err))
		}
	}

	s.logger.Info("graceful shutdown completed")
}

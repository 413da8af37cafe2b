package api_gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mortgage-deed-signing/internal/api_gateway/handler"
	"github.com/mortgage-deed-signing/internal/api_gateway/middleware"
	"github.com/mortgage-deed-signing/internal/api_gateway/service"
	"github.com/mortgage-deed-signing/internal/config"
	"github.com/mortgage-deed-signing/internal/platform/metrics"
)

// Server handles HTTP requests and manages the application's lifecycle
type Server struct {
	logger          *slog.Logger
	httpServer      *http.Server
	httpRouter      *gin.Engine
	shutdownTimeout time.Duration
}

// Services bundles what the HTTP layer calls into
type Services struct {
	Signing service.SigningService
	Queries service.DeedQueryService
	Stats   service.StatsService
	// Health lists the dependencies /health pings, by name
	Health map[string]handler.Pinger
}

// NewServer creates and configures a new HTTP server with the given services.
// m and gatherer may be nil, which disables request metrics and /metrics.
func NewServer(log *slog.Logger, cfg *config.Config, services Services, m *metrics.Metrics, gatherer prometheus.Gatherer) *Server {
	if cfg.Application.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	httpRouter := gin.New()

	deedHandler := handler.NewDeedHandler(log, services.Signing, services.Queries)
	statsHandler := handler.NewStatsHandler(log, services.Stats)
	healthHandler := handler.NewHealthHandler(log, services.Health)
	verifier := middleware.NewTokenVerifier(cfg.Auth)

	setupRouter(log, httpRouter, verifier, m, gatherer, deedHandler, statsHandler, healthHandler)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpRouter,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{
		logger:          log,
		httpServer:      httpServer,
		httpRouter:      httpRouter,
		shutdownTimeout: cfg.Server.ShutdownTimeout,
	}
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.httpRouter
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the HTTP server, waiting at most the configured
// shutdown timeout for in-flight requests
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop HTTP server: %w", err)
	}
	return nil
}

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/identifier/config"
	"example.com/backstage/services/identifier/internal/api/handlers"
	"example.com/backstage/services/identifier/internal/api/middleware"
	"example.com/backstage/services/identifier/internal/metrics"
	"example.com/backstage/services/identifier/internal/services"
	"example.com/backstage/services/identifier/internal/tracing"
)

// Server represents the HTTP server
type Server struct {
	config     config.Config
	router     *gin.Engine
	httpServer *http.Server
	service    *services.IdentifierService
	metrics    *metrics.Metrics
	tracer     tracing.Tracer
}

// NewServer creates a new HTTP server
func NewServer(cfg config.Config, service *services.IdentifierService, collector *metrics.Metrics, tracer tracing.Tracer) (*Server, error) {
	if tracer == nil {
		tracer = tracing.Disabled()
	}
	if collector == nil {
		collector = metrics.NewMetrics()
	}
	if err := handlers.RegisterValidators(); err != nil {
		return nil, errors.Wrap(err, "failed to register validators")
	}

	server := &Server{
		config:  cfg,
		service: service,
		metrics: collector,
		tracer:  tracer,
	}
	server.router = server.setupRouter()

	server.httpServer = &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      server.router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	return server, nil
}

// setupRouter configures the HTTP router
func (s *Server) setupRouter() *gin.Engine {
	if s.config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	if s.config.MetricsEnabled {
		router.Use(middleware.Metrics(s.metrics))
	}
	if app := s.tracer.Application(); app != nil {
		router.Use(nrgin.Middleware(app))
	}

	handlers.NewIdentifierHandler(s.service, s.tracer).RegisterRoutes(router)
	handlers.NewMetricsHandler(s.metrics, s.tracer).RegisterRoutes(router)

	return router
}

// Handler returns the configured router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Info().Str("address", s.config.Server.Address).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "HTTP server error")
	}

	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "HTTP server shutdown error")
	}

	log.Info().Msg("HTTP server shut down successfully")
	return nil
}

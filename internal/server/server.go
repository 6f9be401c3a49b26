// Package server provides the HTTP server implementation for the data API.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/vmskonakanchi/ymts-crud-api/internal/config"
	apierrors "github.com/vmskonakanchi/ymts-crud-api/internal/errors"
	"github.com/vmskonakanchi/ymts-crud-api/internal/handler"
	"github.com/vmskonakanchi/ymts-crud-api/internal/health"
	"github.com/vmskonakanchi/ymts-crud-api/internal/metrics"
	"github.com/vmskonakanchi/ymts-crud-api/internal/middleware"
	"go.uber.org/zap"
)

var (
	corsMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch}
	corsHeaders = []string{"Content-Type", "Authorization", middleware.RequestIDHeader}
)

// Server represents the HTTP server.
type Server struct {
	router       *mux.Router
	handler      http.Handler
	httpServer   *http.Server
	handlers     *handler.Handlers
	healthCheck  *health.HealthCheck
	errorHandler *apierrors.Handler
	metrics      *metrics.Metrics
	logger       *zap.Logger
	cfg          *config.Config
}

// NewServer creates a new HTTP server.
func NewServer(
	cfg *config.Config,
	handlers *handler.Handlers,
	healthCheck *health.HealthCheck,
	errorHandler *apierrors.Handler,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:       mux.NewRouter(),
		handlers:     handlers,
		healthCheck:  healthCheck,
		errorHandler: errorHandler,
		metrics:      m,
		logger:       logger,
		cfg:          cfg,
	}
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s
}

// setupRoutes configures all HTTP routes. Middleware that must see every
// request, including preflights and unknown paths, wraps the router; route
// aware middleware is attached with Use.
func (s *Server) setupRoutes() {
	outer := []func(http.Handler) http.Handler{
		middleware.Recovery(s.errorHandler, s.logger),
		middleware.RequestID,
		middleware.Logging(s.logger),
		middleware.CORS(middleware.CORSConfig{
			AllowedOrigins:   s.cfg.Server.CORSAllowedOrigins,
			AllowedMethods:   corsMethods,
			AllowedHeaders:   corsHeaders,
			AllowCredentials: true,
		}),
	}

	if s.cfg.RateLimiter.Enabled {
		rateLimiter := middleware.NewRateLimiter(
			s.cfg.RateLimiter.RequestsPerSecond,
			s.cfg.RateLimiter.BurstSize,
			s.errorHandler,
			s.logger,
		)
		outer = append(outer, rateLimiter.Limit)
	}

	s.router.Use(metrics.MetricsMiddleware(s.metrics))

	// Health check endpoints
	s.router.HandleFunc("/health", s.healthCheck.LivenessHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", s.healthCheck.ReadinessHandler).Methods(http.MethodGet)

	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	v1.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))

	// Tenant provisioning
	v1.HandleFunc("/initialize", s.handlers.Initialize).Methods(http.MethodPost)
	v1.HandleFunc("/tenants/{tenant_id}/status", s.handlers.TenantStatus).Methods(http.MethodGet)

	// Tenant documents
	v1.HandleFunc("/{tenant_id}/{collection}", s.handlers.InsertRecords).Methods(http.MethodPost)
	v1.HandleFunc("/{tenant_id}/{collection}/login", s.handlers.FindRecord).Methods(http.MethodPost)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(middleware.RequestIDHeader)
		s.errorHandler.WriteErrorResponse(w, http.StatusNotFound, apierrors.ErrorCodeInvalidRequest, "endpoint not found", requestID)
	})

	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(middleware.RequestIDHeader)
		s.errorHandler.WriteErrorResponse(w, http.StatusMethodNotAllowed, apierrors.ErrorCodeInvalidRequest, "method not allowed", requestID)
	})

	s.handler = middleware.Chain(outer...)(s.router)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server",
		zap.Int("port", s.cfg.Server.Port),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// GetHandler returns the http.Handler for the server.
func (s *Server) GetHandler() http.Handler {
	return s.handler
}

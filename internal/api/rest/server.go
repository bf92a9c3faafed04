package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/publichealthengland/coronavirus-dashboard-api/internal/infrastructure/config"
)

// Server is the public HTTP server.
type Server struct {
	config     *config.Config
	httpServer *http.Server
	handler    *Handler
	logger     *zap.Logger
}

// NewServer wires the handler behind the middleware chain and the
// service routes.
func NewServer(cfg *config.Config, handler *Handler, logger *zap.Logger,
	reg prometheus.Registerer) *Server {

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/data", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		handler.handleData(w, r)
	})
	mux.HandleFunc("/generic/healthcheck", handler.handleHealthcheck)
	mux.Handle("/metrics", promhttp.Handler())

	middlewares := []Middleware{
		requestIDMiddleware,
		loggingMiddleware(logger),
		metricsMiddleware(newHTTPMetrics(reg)),
		recoveryMiddleware(logger, handler.finisher),
		timeoutMiddleware(cfg.Server.RequestTimeout),
	}

	if cfg.Server.RateLimit.Enabled {
		limiter := newIPRateLimiter(
			cfg.Server.RateLimit.RequestsPerSecond,
			cfg.Server.RateLimit.BurstSize)
		middlewares = append(middlewares, rateLimitMiddleware(limiter))
	}

	return &Server{
		config:  cfg,
		handler: handler,
		logger:  logger,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:      chain(mux, middlewares...),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}
}

// Start serves until the listener closes.
func (s *Server) Start() error {
	s.logger.Info("server listening",
		zap.Int("port", s.config.Server.Port),
		zap.String("environment", s.config.Environment))

	if err := s.httpServer.ListenAndServe(); err != nil &&
		!errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down server")
	return s.httpServer.Shutdown(shutdownCtx)
}

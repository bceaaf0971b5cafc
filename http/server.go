// Package http exposes the detector over JSON endpoints, a websocket
// progress feed and a prometheus scrape endpoint.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"spamdetect/monitoring"
)

type Server struct {
	server *http.Server
	config ServerConfig
	log    *zap.Logger
}

// ServerConfig.BatchDir is the only directory POST /api/batch reads from;
// empty disables the endpoint.
type ServerConfig struct {
	Port           int
	Timeout        time.Duration
	AllowedOrigins []string
	BatchDir       string
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:           8080,
		Timeout:        30 * time.Second,
		AllowedOrigins: []string{"*"},
		BatchDir:       "data/batch",
	}
}

// NewRouter builds the route table. hub and metrics may be nil, in which case
// their endpoints are not registered.
func NewRouter(config ServerConfig, d Detector, hub *monitoring.Hub, metrics *monitoring.Metrics, logger *zap.Logger) *mux.Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &handlers{detector: d, batchDir: config.BatchDir, log: logger}

	router := mux.NewRouter()
	router.Use(
		RecoveryMiddleware(logger),
		LoggerMiddleware(logger),
		CORSMiddleware(config.AllowedOrigins),
	)
	router.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	if metrics != nil {
		router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	}

	api := router.PathPrefix("/api").Subrouter()
	if hub != nil {
		api.Handle("/ws/progress", hub).Methods(http.MethodGet)
	}

	// routes stay on api itself so a wrong verb is a 405, not a 404
	timed := TimeoutMiddleware(config.Timeout)
	api.Handle("/classify", timed(http.HandlerFunc(h.classify))).Methods(http.MethodPost, http.MethodOptions)
	api.Handle("/batch", timed(http.HandlerFunc(h.batch))).Methods(http.MethodPost, http.MethodOptions)
	api.Handle("/performance", timed(http.HandlerFunc(h.performance))).Methods(http.MethodGet)
	api.Handle("/history", timed(http.HandlerFunc(h.history))).Methods(http.MethodGet)
	api.Handle("/state", timed(http.HandlerFunc(h.state))).Methods(http.MethodGet)
	return router
}

func NewServer(config ServerConfig, d Detector, hub *monitoring.Hub, metrics *monitoring.Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	router := NewRouter(config, d, hub, metrics, logger)
	return &Server{
		server: &http.Server{
			Addr:        fmt.Sprintf(":%d", config.Port),
			Handler:     router,
			ReadTimeout: config.Timeout,
			IdleTimeout: 120 * time.Second,
		},
		config: config,
		log:    logger,
	}
}

// Start blocks until the server stops. A clean Stop returns nil.
func (s *Server) Start() error {
	s.log.Info("starting http server",
		zap.String("addr", s.server.Addr),
		zap.String("progress_feed", fmt.Sprintf("ws://localhost%s/api/ws/progress", s.server.Addr)))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	s.log.Info("shutting down http server")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

func (s *Server) Addr() string {
	return s.server.Addr
}

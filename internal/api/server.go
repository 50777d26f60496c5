// Package api provides the HTTP REST and WebSocket API for netrecon.
// Clients start and cancel scans, read the last result and follow scan
// progress live over a WebSocket.
package api

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/anstrom/netrecon/docs/swagger" // generated OpenAPI docs
	apihandlers "github.com/anstrom/netrecon/internal/api/handlers"
	"github.com/anstrom/netrecon/internal/api/middleware"
	"github.com/anstrom/netrecon/internal/config"
	"github.com/anstrom/netrecon/internal/coordinator"
	"github.com/anstrom/netrecon/internal/logging"
	"github.com/anstrom/netrecon/internal/metrics"
	"github.com/anstrom/netrecon/internal/netmap"
)

//go:generate swag init --dir ../.. --generalInfo internal/api/server.go --output ../../docs/swagger --parseInternal

// @title netrecon API
// @version 1.0
// @description Local network reconnaissance: start and cancel scans, read discovered devices
// @description and detected AI agents, and follow scan progress over a WebSocket.
//
// @contact.name netrecon
// @contact.url https://github.com/anstrom/netrecon
//
// @license.name MIT
//
// @host localhost:8080
// @BasePath /

const serverShutdownTimeout = 30 * time.Second

// Option configures a Server.
type Option func(*Server)

// WithStore serves persisted devices at /api/v1/devices?stored=true.
func WithStore(store netmap.Store, network string) Option {
	return func(s *Server) {
		s.store = store
		s.network = network
	}
}

// WithDatabase adds a database check to /health.
func WithDatabase(db apihandlers.DatabasePinger) Option {
	return func(s *Server) { s.database = db }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics sets the metrics collector served at /metrics.
func WithMetrics(m *metrics.PrometheusMetrics) Option {
	return func(s *Server) { s.metrics = m }
}

// Server represents the API server.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	handler    http.Handler
	config     config.APIConfig

	coordinator apihandlers.Coordinator
	store       netmap.Store
	network     string
	database    apihandlers.DatabasePinger
	logger      *logging.Logger
	metrics     *metrics.PrometheusMetrics

	results   *apihandlers.Results
	websocket *apihandlers.WebSocketHandler

	// ctx bounds scans started over the API.
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new API server instance.
func New(cfg config.APIConfig, coord apihandlers.Coordinator, opts ...Option) *Server {
	s := &Server{
		router:      mux.NewRouter(),
		config:      cfg,
		coordinator: coord,
		logger:      logging.Default(),
		metrics:     metrics.GetGlobalMetrics(),
		results:     apihandlers.NewResults(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("api")
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.websocket = apihandlers.NewWebSocketHandler(cfg.AllowedOrigins, s.logger)

	s.setupRoutes()
	s.setupMiddleware()

	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(cfg.ListenAddr, strconv.Itoa(cfg.Port)),
		Handler:           s.handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
	return s
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	scans := apihandlers.NewScanHandler(s.ctx, s.coordinator, s, s.logger)
	devices := apihandlers.NewDeviceHandler(s.results, s.store, s.network, s.logger)
	health := apihandlers.NewHealthHandler(s.database, s.coordinator, s.logger)

	s.router.HandleFunc("/health", health.Health).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.metrics.GetRegistry(), promhttp.HandlerOpts{})).
		Methods(http.MethodGet)

	s.router.PathPrefix("/swagger/").Handler(httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("none"),
	))
	s.router.HandleFunc("/docs", redirectToSwagger).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/scans", scans.StartScan).Methods(http.MethodPost)
	api.HandleFunc("/scans/current", scans.CurrentScan).Methods(http.MethodGet)
	api.HandleFunc("/scans/current", scans.CancelScan).Methods(http.MethodDelete)
	api.HandleFunc("/devices", devices.ListDevices).Methods(http.MethodGet)
	api.HandleFunc("/ws", s.websocket.ServeWS).Methods(http.MethodGet)
}

// redirectToSwagger sends browsers to the Swagger UI.
func redirectToSwagger(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/swagger/index.html", http.StatusMovedPermanently)
}

// setupMiddleware configures middleware for the API server. CORS wraps
// the router so preflight requests are answered before route matching.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Recovery(s.logger))
	s.router.Use(middleware.Logging(s.logger))
	s.router.Use(middleware.Metrics(s.metrics))

	s.handler = s.router
	if len(s.config.AllowedOrigins) > 0 {
		s.handler = handlers.CORS(
			handlers.AllowedOrigins(s.config.AllowedOrigins),
			handlers.AllowedHeaders([]string{"Content-Type", middleware.RequestIDHeader}),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
			handlers.ExposedHeaders([]string{middleware.RequestIDHeader}),
		)(s.router)
	}
}

// Publish feeds a scan event to the result holder and WebSocket clients.
// Scans started elsewhere, such as by the watcher, are published here too.
func (s *Server) Publish(ev coordinator.Event) {
	s.results.Publish(ev)
	s.websocket.Publish(ev)
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// GetAddress returns the server address.
func (s *Server) GetAddress() string {
	return s.httpServer.Addr
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting API server",
		"address", s.httpServer.Addr,
		"read_timeout", s.httpServer.ReadTimeout,
		"write_timeout", s.httpServer.WriteTimeout)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("API server failed: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-errChan:
		s.cancel()
		s.websocket.Shutdown()
		return err
	}
}

// Stop gracefully stops the API server. Scans started over the API are
// cancelled and WebSocket clients are disconnected.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")

	s.cancel()
	s.websocket.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("API server shutdown error", "error", err)
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("API server stopped")
	return nil
}

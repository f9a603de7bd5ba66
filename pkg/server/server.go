// Package server exposes the project service over HTTP with gin.
//
// It is a thin presentation adapter: it binds form or JSON input, calls the
// service, and maps results and store error kinds to HTTP responses. It does
// not render HTML.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openfroyo/folio/pkg/config"
	"github.com/openfroyo/folio/pkg/projects"
	"github.com/openfroyo/folio/pkg/telemetry"
)

// Server is the folio HTTP server.
type Server struct {
	engine *gin.Engine
	http   *http.Server
	logger *telemetry.Logger
}

// New builds the router and an unstarted http.Server.
func New(cfg config.ServerConfig, svc *projects.Service, tel *telemetry.Telemetry, version string) *Server {
	if tel == nil {
		tel = telemetry.Nop()
	}
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}

	logger := tel.Logger.NewComponentLogger("http")

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggingMiddleware(logger))
	r.Use(MetricsMiddleware(tel.Metrics))

	NewHealthHandler(svc, tel.Config.ServiceName, version).RegisterRoutes(r)
	NewProjectHandler(svc).Register(r)

	if tel.Metrics.Registry() != nil {
		r.GET(metricsPath(tel.Config), gin.WrapH(tel.Metrics.Handler()))
	}

	return &Server{
		engine: r,
		http: &http.Server{
			Addr:              cfg.ListenAddress,
			Handler:           r,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		},
		logger: logger,
	}
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start listens and serves until Shutdown is called. It returns nil after a
// graceful shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.http.Addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.WithField("address", ln.Addr().String()).Info("HTTP server listening")
	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("HTTP server shutting down")
	return s.http.Shutdown(ctx)
}

func metricsPath(cfg *telemetry.Config) string {
	if cfg == nil || cfg.Metrics.Path == "" {
		return "/metrics"
	}
	return cfg.Metrics.Path
}

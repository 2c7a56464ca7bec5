// Package server owns the HTTP listener lifecycle around the assembled
// container: route setup, timeouts, and graceful drain on shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/AtRiskMedia/signalstack-go/internal/application/container"
	"github.com/AtRiskMedia/signalstack-go/internal/presentation/http/routes"
	"github.com/AtRiskMedia/signalstack-go/pkg/config"
)

// Server is the process's single HTTP listener.
type Server struct {
	httpServer *http.Server
	container  *container.Container
}

// New assembles the router from the container and binds it to a listener
// with the configured read, write, and idle timeouts.
func New(port string, c *container.Container) *Server {
	return &Server{
		container: c,
		httpServer: &http.Server{
			Addr:         ":" + port,
			Handler:      routes.SetupRoutes(c),
			ReadTimeout:  config.ServerReadTimeout,
			WriteTimeout: config.ServerWriteTimeout,
			IdleTimeout:  config.ServerIdleTimeout,
		},
	}
}

// Start blocks serving requests until Stop is called or the listener fails.
func (s *Server) Start() error {
	s.container.Logger.Startup().Info("HTTP server listening", "addr", s.httpServer.Addr)

	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Stop drains in-flight requests until the context expires.
func (s *Server) Stop(ctx context.Context) error {
	s.container.Logger.Shutdown().Info("HTTP server draining")
	return s.httpServer.Shutdown(ctx)
}

package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/pbar1/ssh-benchmark/internal/cache"
	"github.com/pbar1/ssh-benchmark/internal/config"
)

// Server represents the render service HTTP server
type Server struct {
	config     *config.Config
	httpServer *http.Server
	logger     *zap.Logger
}

// NewServer creates a new HTTP server instance
func NewServer(cfg *config.Config, bundles *cache.BundleCache, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	httpServer := &http.Server{
		Addr:         cfg.GetServerAddress(),
		Handler:      NewRouter(bundles, cfg, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 75 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		config:     cfg,
		httpServer: httpServer,
		logger:     logger,
	}
}

// Start listens on the configured address and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server failed to start: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("Starting HTTP server",
		zap.String("address", ln.Addr().String()),
		zap.String("version", s.config.AppVersion),
	)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server failed: %w", err)
		}
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("Shutdown signal received, stopping server...")
		return s.Shutdown()
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Info("Shutting down HTTP server...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("HTTP server stopped successfully")
	return nil
}

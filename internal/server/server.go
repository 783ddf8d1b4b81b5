package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zeusync/configurator/internal/config"
	"github.com/zeusync/configurator/internal/core/observability/log"
)

// Server serves the configurator API over HTTP.
type Server struct {
	engine *gin.Engine
	http   *http.Server

	// Server state
	running int32 // atomic bool
	closed  int32 // atomic bool

	config Config
	logger log.Log

	listener    net.Listener
	workerGroup sync.WaitGroup
}

// Config holds server configuration
type Config struct {
	ListenAddr        string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() Config {
	return Config{
		ListenAddr:        "0.0.0.0:8081",
		ReadHeaderTimeout: 10 * time.Second,
		ShutdownTimeout:   15 * time.Second,
	}
}

// ConfigFrom derives the server configuration from the process configuration.
func ConfigFrom(cfg *config.Config) Config {
	c := DefaultServerConfig()
	c.ListenAddr = fmt.Sprintf("0.0.0.0:%d", cfg.APIPort)
	return c
}

// NewServer creates a server for the given handlers.
func NewServer(config Config, handlers *Handlers, logger log.Log) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery(), RequestID(), AccessLog(logger))
	RegisterRoutes(engine.Group("/api"), handlers)

	server := &Server{
		engine: engine,
		config: config,
		logger: logger.With(log.String("component", "server")),
	}

	server.logger.Info("Server created", log.String("listen_addr", config.ListenAddr))

	return server
}

// Handler exposes the routing engine.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Addr returns the bound address while the server runs.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start binds the listen address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	if atomic.LoadInt32(&s.closed) == 1 {
		return ErrServerClosed
	}

	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return ErrServerAlreadyRunning
	}

	s.logger.Info("Starting server")

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.config.ListenAddr)
	if err != nil {
		atomic.StoreInt32(&s.running, 0)
		s.logger.Error("Failed to create listener", log.Error(err))
		return fmt.Errorf("%w: %w", ErrListenerFailed, err)
	}
	s.listener = listener
	s.http = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
	}

	s.workerGroup.Add(1)
	go func() {
		defer s.workerGroup.Done()
		if err := s.http.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Server stopped unexpectedly", log.Error(err))
		}
	}()

	s.logger.Info("Server listening", log.String("addr", listener.Addr().String()))

	return nil
}

// Stop drains in-flight requests and stops serving.
func (s *Server) Stop(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.running, 1, 0) {
		return ErrServerNotRunning
	}

	s.logger.Info("Stopping server")

	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()
	err := s.http.Shutdown(ctx)

	s.workerGroup.Wait()

	s.logger.Info("Server stopped")

	return err
}

// Close closes the server and releases all resources
func (s *Server) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil // Already closed
	}

	s.logger.Info("Closing server")

	if atomic.LoadInt32(&s.running) == 1 {
		_ = s.Stop(context.Background())
	}

	s.logger.Info("Server closed")

	return nil
}

// Running reports whether the server is serving.
func (s *Server) Running() bool {
	return atomic.LoadInt32(&s.running) == 1
}

package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Server runs the HTTP API
type Server struct {
	server *http.Server
	logger *zap.Logger
	errCh  chan error
}

// ServerOptions configures the listener
type ServerOptions struct {
	ListenAddress string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
}

// NewServer creates a new HTTP server for handler
func NewServer(handler http.Handler, opts ServerOptions, logger *zap.Logger) *Server {
	return &Server{
		server: &http.Server{
			Addr:              opts.ListenAddress,
			Handler:           handler,
			ReadTimeout:       opts.ReadTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      opts.WriteTimeout,
			ErrorLog:          zap.NewStdLog(logger),
		},
		logger: logger,
		errCh:  make(chan error, 1),
	}
}

// Start binds the listener and serves in the background. Bind failures are
// returned directly.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}

	s.logger.Info("HTTP server starting", zap.String("address", ln.Addr().String()))

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", zap.Error(err))
			s.errCh <- err
		}
		close(s.errCh)
	}()

	return nil
}

// Errors reports a fatal serve error; it is closed when serving stops
func (s *Server) Errors() <-chan error {
	return s.errCh
}

// Stop drains in-flight requests until ctx expires
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("HTTP server stopping")
	return s.server.Shutdown(ctx)
}

// Package httpserver runs an http.Server for the lifetime of a context and
// shuts it down gracefully when the context ends.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/waverider/internal/logger"
)

// Server wraps an http.Server with a context-driven lifecycle.
type Server struct {
	name            string
	srv             *http.Server
	shutdownTimeout time.Duration

	ready    chan struct{}
	addr     net.Addr
	stopOnce sync.Once
	stopErr  error
}

// New wraps srv. name prefixes log lines and errors, e.g. "content server".
// srv.Addr must be set; ":0" picks a free port, see Addr.
func New(name string, srv *http.Server, shutdownTimeout time.Duration) *Server {
	return &Server{
		name:            name,
		srv:             srv,
		shutdownTimeout: shutdownTimeout,
		ready:           make(chan struct{}),
	}
}

// Serve listens and serves until ctx ends, then shuts down within the
// shutdown timeout. It returns nil after a graceful shutdown.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("%s failed: %w", s.name, err)
	}
	s.addr = ln.Addr()
	close(s.ready)

	errChan := make(chan error, 1)
	go func() {
		logger.Info("%s listening on %s", s.name, s.addr)
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("%s shutdown signal received", s.name)
		// ctx is already done and would abort the shutdown at once
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("%s failed: %w", s.name, err)
	}
}

// Stop shuts the server down. Safe to call more than once and before Serve.
func (s *Server) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		if err := s.srv.Shutdown(ctx); err != nil {
			s.stopErr = fmt.Errorf("%s shutdown error: %w", s.name, err)
			logger.Error("%s shutdown error: %v", s.name, err)
			return
		}
		logger.Info("%s stopped gracefully", s.name)
	})
	return s.stopErr
}

// Ready is closed once Serve is listening.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr is the bound address. Valid after Ready is closed.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Handler returns the wrapped server's handler.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

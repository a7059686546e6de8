// Package server is the HTTP boundary of the content store.
//
// Requests are mapped to ContentKeys as <host>:<path>, where host is the
// request Host without its port:
//
//	GET|HEAD /<path>            current revision (ETag, If-None-Match, gzip)
//	PUT      /<path>            store the body as a new revision
//	PUT      /<path>?render     render the body to HTML and store it
//	DELETE   /<path>            delete every revision
//	GET      /_versions/<path>  list revision ids, most recent first
//	POST     /_purge/<path>     prune revisions past ?keep=N
//	GET      /_metrics          Prometheus scrape, when metrics share the port
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/marmos91/waverider/internal/httpserver"
	"github.com/marmos91/waverider/internal/ratelimiter"
	"github.com/marmos91/waverider/pkg/content"
	"github.com/marmos91/waverider/pkg/metrics"
)

// Config configures the content HTTP server.
type Config struct {
	// Port to listen on.
	// Default: 2000
	Port int

	// ShutdownTimeout bounds graceful shutdown once Start's context ends.
	// Default: 30s
	ShutdownTimeout time.Duration

	// WriteRateLimit caps mutating requests per second. 0 disables.
	WriteRateLimit uint

	// WriteBurst is the number of writes allowed at once (default: WriteRateLimit).
	WriteBurst uint

	// MetricsHandler, when set, is served at /_metrics. Used when metrics
	// share the content port.
	MetricsHandler http.Handler
}

func (c *Config) applyDefaults() {
	if c.Port <= 0 {
		c.Port = 2000
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
}

// Server serves a content Manager over HTTP.
//
// In-flight writes finish (or fail with the client's cancellation) before a
// graceful shutdown returns.
type Server struct {
	mgr     *content.Manager
	metrics metrics.HTTPMetrics
	writes  *ratelimiter.RateLimiter
	scrape  http.Handler

	http *httpserver.Server
	port int
}

// New creates a stopped server. Call Start to begin serving requests.
//
// Parameters:
//   - mgr: Content manager (required)
//   - config: Port, timeouts, write limits and the optional scrape handler
//   - m: Request metrics; nil uses a no-op implementation
//
// Panics if mgr is nil.
func New(mgr *content.Manager, config Config, m metrics.HTTPMetrics) *Server {
	if mgr == nil {
		panic("content manager cannot be nil")
	}
	if m == nil {
		m = metrics.NewNoopHTTPMetrics()
	}
	config.applyDefaults()

	s := &Server{
		mgr:     mgr,
		metrics: m,
		scrape:  config.MetricsHandler,
		port:    config.Port,
	}
	if config.WriteRateLimit > 0 {
		s.writes = ratelimiter.New(config.WriteRateLimit, config.WriteBurst)
	}

	// No WriteTimeout: uploads and downloads are streamed and may be large
	s.http = httpserver.New("content server", &http.Server{
		Addr:              fmt.Sprintf(":%d", config.Port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}, config.ShutdownTimeout)

	return s
}

// Start serves until ctx is cancelled, then shuts down gracefully.
//
// Returns nil on graceful shutdown, or the listen or shutdown error.
func (s *Server) Start(ctx context.Context) error {
	return s.http.Serve(ctx)
}

// Stop initiates graceful shutdown. Safe to call multiple times and
// concurrently with Start.
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Stop(ctx)
}

// Handler returns the request router, for mounting or testing without a
// listener.
func (s *Server) Handler() http.Handler {
	return s.http.Handler()
}

// Port returns the TCP port the server listens on.
func (s *Server) Port() int {
	return s.port
}

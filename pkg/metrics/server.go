package metrics

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/marmos91/waverider/internal/httpserver"
	"github.com/marmos91/waverider/internal/logger"
)

// ServerConfig configures the standalone metrics listener.
type ServerConfig struct {
	// Default: 9090
	Port int

	// Default: 5s
	ShutdownTimeout time.Duration
}

func (c *ServerConfig) applyDefaults() {
	if c.Port <= 0 {
		c.Port = 9090
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
}

// Server is a dedicated scrape listener:
//
//	GET /metrics  exposition format (503 while collection is disabled)
//	GET /         index of the waverider families currently registered
type Server struct {
	http *httpserver.Server
	port int
}

// NewServer creates a stopped metrics server. Call Start to serve.
func NewServer(config ServerConfig) *Server {
	config.applyDefaults()

	r := chi.NewRouter()
	r.Method(http.MethodGet, "/metrics", Handler())
	r.Get("/", serveIndex)

	return &Server{
		http: httpserver.New("metrics server", &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		}, config.ShutdownTimeout),
		port: config.Port,
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	return s.http.Serve(ctx)
}

// Stop shuts the server down. Safe to call multiple times.
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Stop(ctx)
}

// Handler returns the router, for tests without a listener.
func (s *Server) Handler() http.Handler {
	return s.http.Handler()
}

// Port returns the configured TCP port.
func (s *Server) Port() int {
	return s.port
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><title>waverider metrics</title></head>
<body>
<h1>waverider metrics</h1>
{{if .Enabled}}<p>Scrape <a href="/metrics">/metrics</a>.</p>
<table>
<tr><th>Family</th><th>Type</th><th>Help</th></tr>
{{range .Families}}<tr><td>{{.Name}}</td><td>{{.Type}}</td><td>{{.Help}}</td></tr>
{{else}}<tr><td colspan="3">no series recorded yet</td></tr>
{{end}}</table>
{{else}}<p>Metrics collection is disabled.</p>
{{end}}</body>
</html>
`))

func serveIndex(w http.ResponseWriter, r *http.Request) {
	families, err := Families()
	if err != nil {
		logger.Warn("Failed to gather metric families: %v", err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, struct {
		Enabled  bool
		Families []Family
	}{IsEnabled(), families}); err != nil {
		logger.Debug("Failed to render metrics index: %v", err)
	}
}

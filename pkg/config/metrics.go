package config

import (
	"net/http"

	"github.com/marmos91/waverider/pkg/content"
	"github.com/marmos91/waverider/pkg/metrics"
	promMetrics "github.com/marmos91/waverider/pkg/metrics/prometheus"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// ContentMetrics is the collector for the content manager (nil if
	// disabled, which the manager treats as no-op)
	ContentMetrics content.Metrics

	// HTTPMetrics is the collector for the HTTP boundary (never nil, uses noop if disabled)
	HTTPMetrics metrics.HTTPMetrics

	// ScrapeHandler is set instead of Server when metrics.port equals
	// server.port; the content server then serves it at /_metrics.
	ScrapeHandler http.Handler
}

// InitializeMetrics creates and initializes all metrics components based on configuration.
//
// If metrics are enabled in the configuration:
//   - Initializes the global Prometheus registry
//   - Creates the metrics HTTP server, or a scrape handler for the content
//     server when both are configured on the same port
//   - Creates Prometheus-backed metrics instances for all components
//
// If metrics are disabled:
//   - Returns nil server
//   - Returns no-op metrics implementations (zero overhead)
//
// Must be called at most once per process with metrics enabled; collectors
// register on the global registry.
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Metrics.Enabled {
		return &MetricsResult{
			HTTPMetrics: metrics.NewNoopHTTPMetrics(),
		}
	}

	metrics.InitRegistry()

	res := &MetricsResult{
		ContentMetrics: promMetrics.NewContentMetrics(),
		HTTPMetrics:    metrics.NewHTTPMetrics(),
	}
	if cfg.Metrics.Port == cfg.Server.Port {
		res.ScrapeHandler = metrics.Handler()
		return res
	}

	res.Server = metrics.NewServer(metrics.ServerConfig{
		Port:            cfg.Metrics.Port,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	return res
}

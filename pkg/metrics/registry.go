// Package metrics holds the process-wide Prometheus registry, the scrape
// server and the HTTP request metrics.
//
// Collection is opt-in: until InitRegistry runs, every constructor in this
// package and in pkg/metrics/prometheus returns a no-op (or nil) collector,
// so the content manager and HTTP server run unchanged without it.
package metrics

import (
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric registered by waverider itself.
const Namespace = "waverider"

var (
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry creates the registry with the Go runtime and process
// collectors already on it. Later calls are no-ops.
func InitRegistry() {
	registryOnce.Do(func() {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		registry = reg
	})
}

// GetRegistry returns the registry, or nil before InitRegistry.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether InitRegistry has run.
func IsEnabled() bool {
	return GetRegistry() != nil
}

// Handler serves the registry in the exposition format. Before InitRegistry
// it answers 503 so a scraper can tell "disabled" from "down".
func Handler() http.Handler {
	reg := GetRegistry()
	if reg == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "metrics collection is disabled", http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Family describes one registered metric family.
type Family struct {
	Name string
	Type string
	Help string
}

// Families lists the waverider metric families that currently hold at
// least one series, sorted by name. Runtime and process families are left
// out.
func Families() ([]Family, error) {
	reg := GetRegistry()
	if reg == nil {
		return nil, nil
	}

	gathered, err := reg.Gather()
	if err != nil {
		return nil, err
	}

	var out []Family
	for _, mf := range gathered {
		if !strings.HasPrefix(mf.GetName(), Namespace+"_") {
			continue
		}
		out = append(out, Family{
			Name: mf.GetName(),
			Type: strings.ToLower(mf.GetType().String()),
			Help: mf.GetHelp(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Package prometheus holds Prometheus implementations of metrics interfaces
// declared by other packages, kept apart so those packages need not import
// the client library.
package prometheus

import (
	"time"

	"github.com/marmos91/waverider/pkg/content"
	"github.com/marmos91/waverider/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// contentMetrics is the Prometheus implementation of content.Metrics.
type contentMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	bytesTotal        *prometheus.CounterVec
	prunesTotal       *prometheus.CounterVec
	revisionsPruned   prometheus.Counter
}

// NewContentMetrics creates a new Prometheus-backed content.Metrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called), which
// makes the content manager fall back to its no-op implementation.
func NewContentMetrics() content.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &contentMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "waverider_content_operations_total",
				Help: "Total number of content manager operations by operation and status",
			},
			[]string{"operation", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "waverider_content_operation_duration_seconds",
				Help: "Duration of content manager operations in seconds",
				Buckets: []float64{
					0.001, // 1ms
					0.005, // 5ms
					0.025, // 25ms
					0.1,   // 100ms
					0.5,   // 500ms
					2.5,   // 2.5s
					10.0,  // 10s
				},
			},
			[]string{"operation"},
		),
		bytesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "waverider_content_bytes_total",
				Help: "Total stored (compressed) bytes written and read",
			},
			[]string{"direction"},
		),
		prunesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "waverider_content_prunes_total",
				Help: "Total number of prune attempts by outcome",
			},
			[]string{"outcome"},
		),
		revisionsPruned: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "waverider_content_revisions_pruned_total",
				Help: "Total number of revisions removed by pruning",
			},
		),
	}
}

func (m *contentMetrics) ObserveOperation(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	m.operationsTotal.WithLabelValues(operation, status).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *contentMetrics) RecordBytes(direction string, bytes int64) {
	m.bytesTotal.WithLabelValues(direction).Add(float64(bytes))
}

func (m *contentMetrics) RecordPrune(outcome string, revisions int) {
	m.prunesTotal.WithLabelValues(outcome).Inc()
	m.revisionsPruned.Add(float64(revisions))
}

package content

import "time"

// Metrics provides observability for content manager operations.
//
// This is optional: a nil Metrics in Options falls back to a no-op. The
// Prometheus implementation lives in pkg/metrics.
type Metrics interface {
	// ObserveOperation records an operation ("set", "get_data", "get_meta",
	// "del", "render", ...) with its duration and outcome
	ObserveOperation(operation string, duration time.Duration, err error)

	// RecordBytes records stored bytes written or read
	RecordBytes(operation string, bytes int64)

	// RecordPrune records a prune attempt. outcome is one of "pruned",
	// "noop", "conflict", "error".
	RecordPrune(outcome string, revisions int)
}

type noopMetrics struct{}

func (noopMetrics) ObserveOperation(operation string, duration time.Duration, err error) {}
func (noopMetrics) RecordBytes(operation string, bytes int64)                            {}
func (noopMetrics) RecordPrune(outcome string, revisions int)                            {}

package prometheus

import (
	"errors"
	"testing"
	"time"

	"github.com/marmos91/waverider/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gathered returns the value of the sample of family name whose labels
// match labels exactly.
func gathered(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := metrics.GetRegistry().Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			got := make(map[string]string)
			for _, lp := range m.GetLabel() {
				got[lp.GetName()] = lp.GetValue()
			}
			if len(got) != len(labels) {
				continue
			}
			match := true
			for k, v := range labels {
				if got[k] != v {
					match = false
				}
			}
			if match {
				return m.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("no sample %s%v", name, labels)
	return 0
}

func TestContentMetrics(t *testing.T) {
	metrics.InitRegistry()

	m := NewContentMetrics()
	require.NotNil(t, m)

	m.ObserveOperation("set", time.Millisecond, nil)
	m.ObserveOperation("set", time.Millisecond, errors.New("boom"))
	m.RecordBytes("write", 100)
	m.RecordPrune("pruned", 3)
	m.RecordPrune("conflict", 0)

	assert.Equal(t, 1.0, gathered(t, "waverider_content_operations_total", map[string]string{"operation": "set", "status": "success"}))
	assert.Equal(t, 1.0, gathered(t, "waverider_content_operations_total", map[string]string{"operation": "set", "status": "error"}))
	assert.Equal(t, 100.0, gathered(t, "waverider_content_bytes_total", map[string]string{"direction": "write"}))
	assert.Equal(t, 1.0, gathered(t, "waverider_content_prunes_total", map[string]string{"outcome": "conflict"}))
	assert.Equal(t, 3.0, gathered(t, "waverider_content_revisions_pruned_total", map[string]string{}))
}

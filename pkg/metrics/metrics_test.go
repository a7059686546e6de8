package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopHTTPMetricsBeforeInit(t *testing.T) {
	// Runs first in this package: the registry is still unset
	if IsEnabled() {
		t.Skip("registry already initialized")
	}
	assert.IsType(t, noopHTTPMetrics{}, NewHTTPMetrics())

	srv := NewServer(ServerConfig{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Metrics collection is disabled")

	families, err := Families()
	require.NoError(t, err)
	assert.Empty(t, families)
}

func TestMetricsEndpoint(t *testing.T) {
	InitRegistry()
	require.True(t, IsEnabled())

	m := NewHTTPMetrics()
	m.RecordRequestStart(http.MethodGet)
	m.RecordRequest(http.MethodGet, http.StatusOK, 3*time.Millisecond)
	m.RecordRequestEnd(http.MethodGet)
	m.RecordBytesTransferred("out", 128)
	m.RecordNotModified()

	srv := NewServer(ServerConfig{Port: 19090})
	assert.Equal(t, 19090, srv.Port())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `waverider_http_requests_total{code="200",method="GET"} 1`)
	assert.Contains(t, string(body), `waverider_http_bytes_total{direction="out"} 128`)
	assert.Contains(t, string(body), "waverider_http_not_modified_total 1")

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIndexListsFamilies(t *testing.T) {
	InitRegistry()

	promauto.With(GetRegistry()).NewCounter(prometheus.CounterOpts{
		Name: "waverider_index_test_total",
		Help: "Registered by TestIndexListsFamilies",
	}).Inc()

	families, err := Families()
	require.NoError(t, err)
	require.NotEmpty(t, families)

	names := make([]string, len(families))
	for i, f := range families {
		names[i] = f.Name
		assert.True(t, strings.HasPrefix(f.Name, Namespace+"_"), f.Name)
	}
	assert.IsNonDecreasing(t, names)
	assert.Contains(t, names, "waverider_index_test_total")

	srv := NewServer(ServerConfig{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Registered by TestIndexListsFamilies")
	assert.NotContains(t, rec.Body.String(), "go_goroutines")
}

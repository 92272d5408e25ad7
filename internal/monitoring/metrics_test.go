package monitoring

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Observe(t *testing.T) {
	m := NewMetrics()

	m.ObserveLLMRequest("openrouter", "chunk", "ok", 2*time.Second)
	m.ObserveLLMRequest("openrouter", "chunk", "ok", time.Second)
	m.ObserveLLMRequest("openrouter", "single", "transport", time.Second)
	m.ObserveAttribution("chunked", "partial")
	m.ObserveChunk("failed")
	m.ObserveHTTP(http.MethodGet, "/health", http.StatusOK, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.llmRequests.WithLabelValues("openrouter", "chunk", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.llmRequests.WithLabelValues("openrouter", "single", "transport")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.attributions.WithLabelValues("chunked", "partial")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.chunks.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/health", "200")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveLLMRequest("p", "c", "o", time.Second)
		m.ObserveAttribution("s", "o")
		m.ObserveChunk("o")
		m.ObserveHTTP("GET", "/", 200, time.Second)
		m.SetSnapshot(&Snapshot{})
	})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	families, err := m.Gatherer().Gather()
	require.NoError(t, err)
	assert.Empty(t, families)
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.ObserveAttribution("single", "ok")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `careplan_attribution_total{outcome="ok",strategy="single"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		_ = NewMetrics()
		_ = NewMetrics()
	})
}

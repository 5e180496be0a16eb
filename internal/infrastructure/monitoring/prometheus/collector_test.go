package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ChemSight/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemSight/pkg/errors"
)

func newTestCollector(t *testing.T) MetricsCollector {
	t.Helper()
	c, err := NewMetricsCollector(CollectorConfig{Namespace: "chemsight_test"}, logging.NewNopLogger())
	require.NoError(t, err)
	return c
}

func scrapeMetrics(t *testing.T, c MetricsCollector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestNewMetricsCollector_RequiresNamespace(t *testing.T) {
	_, err := NewMetricsCollector(CollectorConfig{}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestRegisterCounter(t *testing.T) {
	c := newTestCollector(t)
	vec := c.RegisterCounter("lookups_total", "Lookups", "kind")
	vec.WithLabelValues("name").Inc()
	vec.WithLabelValues("name").Add(2)

	body := scrapeMetrics(t, c)
	assert.Contains(t, body, `chemsight_test_lookups_total{kind="name"} 3`)
}

func TestRegisterTwiceReturnsSameMetric(t *testing.T) {
	c := newTestCollector(t)
	a := c.RegisterCounter("dup_total", "Dup")
	b := c.RegisterCounter("dup_total", "Dup")
	a.WithLabelValues().Inc()
	b.WithLabelValues().Inc()

	assert.Contains(t, scrapeMetrics(t, c), "chemsight_test_dup_total 2")
}

func TestTypeMismatchIsNoop(t *testing.T) {
	c := newTestCollector(t)
	c.RegisterCounter("mixed", "Mixed")
	g := c.RegisterGauge("mixed", "Mixed")
	assert.IsType(t, noopGaugeVec{}, g)
	assert.NotPanics(t, func() { g.WithLabelValues().Set(4) })
}

func TestRegisterGaugeAndHistogram(t *testing.T) {
	c := newTestCollector(t)
	g := c.RegisterGauge("inflight", "Inflight", "op")
	g.WithLabelValues("analyze").Inc()
	g.WithLabelValues("analyze").Inc()
	g.WithLabelValues("analyze").Dec()

	h := c.RegisterHistogram("latency_seconds", "Latency", []float64{0.1, 1}, "op")
	h.WithLabelValues("analyze").Observe(0.5)

	body := scrapeMetrics(t, c)
	assert.Contains(t, body, `chemsight_test_inflight{op="analyze"} 1`)
	assert.Contains(t, body, `chemsight_test_latency_seconds_bucket{op="analyze",le="1"} 1`)
	assert.Contains(t, body, `chemsight_test_latency_seconds_bucket{op="analyze",le="0.1"} 0`)
}

func TestTimer(t *testing.T) {
	c := newTestCollector(t)
	h := c.RegisterHistogram("timed_seconds", "Timed", nil)
	timer := NewTimer(h.WithLabelValues())
	time.Sleep(time.Millisecond)
	d := timer.ObserveDuration()
	assert.Greater(t, d, time.Duration(0))

	n, err := testutil.GatherAndCount(c.Registry(), "chemsight_test_timed_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.NotPanics(t, func() { NewTimer(nil).ObserveDuration() })
}

func TestProcessAndGoMetrics(t *testing.T) {
	c, err := NewMetricsCollector(CollectorConfig{
		Namespace:            "chemsight_test",
		EnableGoMetrics:      true,
		EnableProcessMetrics: true,
	}, nil)
	require.NoError(t, err)
	body := scrapeMetrics(t, c)
	assert.True(t, strings.Contains(body, "go_goroutines"))
}

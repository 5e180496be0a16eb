package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ChemSight/internal/application/analysis"
	"github.com/turtacn/ChemSight/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemSight/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/ChemSight/internal/intelligence/chem_extractor"
	"github.com/turtacn/ChemSight/internal/interfaces/http/handlers"
	"github.com/turtacn/ChemSight/internal/interfaces/http/middleware"
	"github.com/turtacn/ChemSight/pkg/types/chemical"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newAnalysisHandler() *handlers.AnalysisHandler {
	dict := chem_extractor.DefaultDictionary()
	svc := analysis.NewService(
		chem_extractor.NewExtractor(dict, nil, chem_extractor.DefaultExtractorConfig(), nil),
		chem_extractor.NewResolver(dict, chem_extractor.DefaultResolverConfig()),
		dict, analysis.DefaultConfig())
	return handlers.NewAnalysisHandler(svc)
}

func request(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestNewRouter_RoutesRegistered(t *testing.T) {
	r := NewRouter(RouterConfig{
		AnalysisHandler: newAnalysisHandler(),
		HealthHandler:   handlers.NewHealthHandler("test", nil),
		MetricsHandler:  http.NotFoundHandler(),
	})

	got := map[string]bool{}
	for _, ri := range r.Routes() {
		got[ri.Method+" "+ri.Path] = true
	}
	for _, want := range []string{
		"GET /api/v1/analyze",
		"GET /api/v1/results",
		"POST /api/v1/analyze/smiles",
		"POST /api/v1/measure",
		"GET /api/v1/compounds/search",
		"GET /api/v1/compounds/similar",
		"POST /api/v1/smiles/validate",
		"GET /api/hello",
		"POST /api/llm",
		"GET /healthz",
		"GET /readyz",
		"GET /health/detailed",
		"GET /metrics",
	} {
		assert.True(t, got[want], "missing route %s", want)
	}
}

func TestNewRouter_AnalyzeBenzene(t *testing.T) {
	r := NewRouter(RouterConfig{AnalysisHandler: newAnalysisHandler()})

	for _, path := range []string{"/api/v1/analyze?q=BENZENE", "/api/v1/results?q=benzene+ring"} {
		w := request(r, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, w.Code, path)
		var res chemical.ChemicalResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.True(t, res.IsDetected)
		assert.Equal(t, "Benzene", res.Compound)
		assert.Equal(t, "C₆H₆", res.MolecularFormula)
		assert.NotEmpty(t, w.Header().Get(middleware.HeaderRequestID))
	}
}

func TestNewRouter_EndToEndErrors(t *testing.T) {
	r := NewRouter(RouterConfig{AnalysisHandler: newAnalysisHandler()})

	w := request(r, http.MethodPost, "/api/v1/analyze/smiles", `{"smiles":"C1CC"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = request(r, http.MethodPost, "/api/v1/measure", `{"smiles":"CC","kind":"angle","atoms":[0,1]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = request(r, http.MethodPost, "/api/llm", `{"text":"hello"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = request(r, http.MethodGet, "/api/v1/nothing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = request(r, http.MethodDelete, "/api/v1/analyze", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestNewRouter_NilHandlers_NoPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		r := NewRouter(RouterConfig{})
		w := request(r, http.MethodGet, "/healthz", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestNewRouter_RateLimitSkipsProbes(t *testing.T) {
	limiter := middleware.NewKeyedLimiter(0.001, 1, 0)
	r := NewRouter(RouterConfig{
		AnalysisHandler: newAnalysisHandler(),
		HealthHandler:   handlers.NewHealthHandler("test", nil),
		RateLimiter:     limiter,
		RateLimit:       middleware.DefaultRateLimitConfig(),
	})

	assert.Equal(t, http.StatusOK, request(r, http.MethodGet, "/api/hello", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, request(r, http.MethodGet, "/api/hello", "").Code)
	assert.Equal(t, http.StatusOK, request(r, http.MethodGet, "/healthz", "").Code)
}

func TestNewRouter_Metrics(t *testing.T) {
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: "chemsight_router_test"}, logging.NewNopLogger())
	require.NoError(t, err)
	metrics := prometheus.NewAppMetrics(collector)

	r := NewRouter(RouterConfig{
		AnalysisHandler: newAnalysisHandler(),
		HTTPMetrics:     metrics,
		MetricsHandler:  collector.Handler(),
	})
	require.Equal(t, http.StatusOK, request(r, http.MethodGet, "/api/hello", "").Code)

	w := request(r, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `chemsight_router_test_http_requests_total{method="GET",path="/api/hello",status_code="200"} 1`)
}

func TestNewRouter_BodyLimit(t *testing.T) {
	r := NewRouter(RouterConfig{AnalysisHandler: newAnalysisHandler(), MaxBodySize: 16})
	w := request(r, http.MethodPost, "/api/v1/smiles/validate", `{"smiles":"CCCCCCCCCCCCCCCCCCCCCCCC"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

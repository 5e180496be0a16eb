package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ChemSight/pkg/errors"
)

type stubChecker struct {
	name string
	err  error
}

func (s stubChecker) Name() string                    { return s.name }
func (s stubChecker) Check(ctx context.Context) error { return s.err }

type healthRecorder struct {
	mu     sync.Mutex
	states map[string]bool
}

func (r *healthRecorder) SetHealth(component string, up bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[component] = up
}

func newHealthEngine(h *HealthHandler) *gin.Engine {
	r := gin.New()
	r.GET("/healthz", h.Liveness)
	r.GET("/readyz", h.Readiness)
	r.GET("/health/detailed", h.Detailed)
	return r
}

func TestHealth_Liveness(t *testing.T) {
	w := do(newHealthEngine(NewHealthHandler("1.2.3", nil)), http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp LivenessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "alive", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
}

func TestHealth_ReadinessWithoutCheckers(t *testing.T) {
	w := do(newHealthEngine(NewHealthHandler("v", nil)), http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ready"}`, w.Body.String())
}

func TestHealth_Degraded(t *testing.T) {
	obs := &healthRecorder{states: map[string]bool{}}
	h := NewHealthHandler("v", obs,
		stubChecker{name: "postgres"},
		stubChecker{name: "redis", err: errors.New(errors.ErrCodeCacheError, "connection refused")})
	r := newHealthEngine(h)

	w := do(r, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var ready ReadinessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ready))
	assert.Equal(t, "not_ready", ready.Status)
	assert.Equal(t, "healthy", ready.Components["postgres"].Status)
	assert.Equal(t, "unhealthy", ready.Components["redis"].Status)
	assert.Contains(t, ready.Components["redis"].Error, "connection refused")

	w = do(r, http.MethodGet, "/health/detailed", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var detailed DetailedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detailed))
	assert.Equal(t, "degraded", detailed.Status)
	assert.Len(t, detailed.Components, 2)

	assert.Equal(t, map[string]bool{"postgres": true, "redis": false}, obs.states)
}

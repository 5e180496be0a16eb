package client

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions(t *testing.T) {
	custom := &http.Client{Timeout: 60 * time.Second}
	logger := &testLogger{}

	c, err := NewClient("https://chemsight.example.com",
		WithHTTPClient(custom),
		WithTimeout(5*time.Second),
		WithLogger(logger),
		WithRetryMax(5),
		WithRetryWait(time.Second, 10*time.Second),
		WithUserAgent("custom/2.0"),
		WithAPIKey("k"),
	)
	require.NoError(t, err)
	assert.Same(t, custom, c.httpClient)
	assert.Equal(t, 5*time.Second, c.httpClient.Timeout)
	assert.Equal(t, logger, c.logger)
	assert.Equal(t, 5, c.retryMax)
	assert.Equal(t, time.Second, c.retryWaitMin)
	assert.Equal(t, 10*time.Second, c.retryWaitMax)
	assert.Equal(t, "custom/2.0", c.userAgent)
	assert.Equal(t, "k", c.apiKey)
}

func TestOptions_IgnoreInvalidValues(t *testing.T) {
	c, err := NewClient("http://localhost:8080",
		WithHTTPClient(nil),
		WithTimeout(-1),
		WithLogger(nil),
		WithRetryMax(-1),
		WithRetryWait(0, time.Second),
		WithUserAgent(""),
	)
	require.NoError(t, err)
	assert.NotNil(t, c.httpClient)
	assert.Equal(t, 30*time.Second, c.httpClient.Timeout)
	assert.IsType(t, noopLogger{}, c.logger)
	assert.Equal(t, 3, c.retryMax)
	assert.Equal(t, 500*time.Millisecond, c.retryWaitMin)
	assert.Equal(t, 5*time.Second, c.retryWaitMax)
	assert.Contains(t, c.userAgent, "chemsight-go-sdk/")
}

func TestWithRetryWait_MaxBelowMin(t *testing.T) {
	c, err := NewClient("http://localhost", WithRetryWait(2*time.Second, time.Second))
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, c.retryWaitMin)
	assert.Equal(t, 5*time.Second, c.retryWaitMax)
}

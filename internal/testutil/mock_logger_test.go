package testutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ChemSight/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemSight/internal/testutil"
)

var _ logging.Logger = (*testutil.MockLogger)(nil)

func TestMockLogger(t *testing.T) {
	logger := testutil.NewMockLogger()

	logger.Info("test info", logging.String("key", "value"))

	messages := logger.GetMessages()
	require.Len(t, messages, 1)
	assert.Equal(t, "info", messages[0].Level)
	assert.Equal(t, "test info", messages[0].Message)

	logger.Clear()
	assert.Empty(t, logger.GetMessages())

	logger.Error("test error")
	assert.True(t, logger.HasMessage("error", "test error"))
	assert.False(t, logger.HasMessage("info", "test info"))
}

func TestMockLogger_Children(t *testing.T) {
	root := testutil.NewMockLogger()
	child := root.Named("grpc").Named("health").With(logging.String("component", "redis"))

	child.Warn("component down", logging.Bool("up", false))

	e, ok := root.Find("warn", "down")
	require.True(t, ok)
	assert.Equal(t, "grpc.health", e.Logger)
	v, ok := e.Field("component")
	assert.True(t, ok)
	assert.Equal(t, "redis", v)
	v, _ = e.Field("up")
	assert.Equal(t, false, v)

	_, ok = e.Field("missing")
	assert.False(t, ok)
}

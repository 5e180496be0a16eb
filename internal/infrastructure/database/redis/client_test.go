package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ChemSight/internal/infrastructure/monitoring/logging"
)

func TestNewClient_Standalone(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := NewClient(&RedisConfig{Mode: "standalone", Addr: mr.Addr()}, logging.NewNopLogger())
	require.NoError(t, err)
	require.NotNil(t, client)

	assert.NoError(t, client.Ping(context.Background()))
	assert.NoError(t, client.Close())
	assert.NoError(t, client.Close())
	assert.Equal(t, ErrClientClosed, client.Ping(context.Background()))
}

func TestNewClient_ConnectionFailed(t *testing.T) {
	client, err := NewClient(&RedisConfig{Mode: "standalone", Addr: "localhost:1"}, logging.NewNopLogger())
	assert.Error(t, err)
	assert.Nil(t, client)
}

func TestApplyDefaults(t *testing.T) {
	cfg := &RedisConfig{}
	applyDefaults(cfg)
	assert.Equal(t, "localhost:6379", cfg.Addr)
	assert.Positive(t, cfg.PoolSize)
	assert.Equal(t, 3, cfg.MaxRetries)
}

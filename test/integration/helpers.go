//go:build integration

// Package integration runs ChemSight against real backends started with
// testcontainers. Docker is required; the tests are gated behind the
// "integration" build tag.
package integration

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/turtacn/ChemSight/internal/config"
	"github.com/turtacn/ChemSight/internal/infrastructure/database/postgres"
	"github.com/turtacn/ChemSight/internal/infrastructure/monitoring/logging"
)

const (
	postgresImage  = "postgres:16-alpine"
	startupTimeout = 60 * time.Second
)

// startPostgres launches a PostgreSQL container, applies the embedded
// migrations and returns an open connection with its settings.
func startPostgres(t *testing.T) (*postgres.Connection, config.DatabaseConfig) {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        postgresImage,
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "chemsight",
				"POSTGRES_PASSWORD": "chemsight",
				"POSTGRES_DB":       "chemsight_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(startupTimeout),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)
	portNum, err := strconv.Atoi(port.Port())
	require.NoError(t, err)

	cfg := config.DatabaseConfig{
		Enabled:  true,
		Host:     host,
		Port:     portNum,
		User:     "chemsight",
		Password: "chemsight",
		DBName:   "chemsight_test",
		SSLMode:  "disable",
		MaxConns: 5,
		MinConns: 1,
	}

	log := logging.NewNopLogger()
	m, err := postgres.NewMigrator(cfg.DSN(), log)
	require.NoError(t, err)
	require.NoError(t, m.Up())
	require.NoError(t, m.Close())

	conn, err := postgres.NewConnection(cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn, cfg
}

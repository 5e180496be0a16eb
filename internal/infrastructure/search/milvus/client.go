package milvus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"

	"github.com/turtacn/ChemSight/internal/config"
	"github.com/turtacn/ChemSight/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemSight/pkg/errors"
)

// MilvusClientFactory creates a Milvus client.
type MilvusClientFactory func(ctx context.Context, conf client.Config) (client.Client, error)

// milvusNewClient is swapped in tests.
var milvusNewClient MilvusClientFactory = client.NewClient

var (
	ErrInvalidConfig    = errors.New(errors.ErrCodeValidation, "invalid milvus configuration")
	ErrConnectionFailed = errors.New(errors.ErrCodeServiceUnavailable, "milvus connection failed")
	ErrUnhealthy        = errors.New(errors.ErrCodeServiceUnavailable, "milvus unhealthy")
)

const (
	connectTimeout      = 10 * time.Second
	healthCheckInterval = 30 * time.Second
	reconnectAfter      = 3
)

// Client manages the Milvus connection and reconnects after repeated
// failed health checks.
type Client struct {
	milvusClient client.Client
	config       config.MilvusConfig
	logger       logging.Logger
	healthy      atomic.Bool
	cancel       context.CancelFunc
	mu           sync.RWMutex
}

// NewClient connects to Milvus and verifies the connection.
func NewClient(cfg config.MilvusConfig, log logging.Logger) (*Client, error) {
	if cfg.Addr == "" {
		return nil, ErrInvalidConfig
	}
	if cfg.DBName == "" {
		cfg.DBName = "default"
	}
	if log == nil {
		log = logging.NewNopLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	mc, err := connect(ctx, cfg)
	if err != nil {
		cancel()
		return nil, ErrConnectionFailed.WithCause(err)
	}

	c := &Client{milvusClient: mc, config: cfg, logger: log.Named("milvus"), cancel: cancel}
	if err := c.CheckHealth(ctx); err != nil {
		c.Close()
		return nil, ErrConnectionFailed.WithCause(err)
	}
	go c.startHealthCheck(ctx)

	c.logger.Info("Milvus client connected", logging.String("address", cfg.Addr), logging.String("db", cfg.DBName))
	return c, nil
}

func connect(ctx context.Context, cfg config.MilvusConfig) (client.Client, error) {
	milvusCfg := client.Config{
		Address: cfg.Addr,
		DBName:  cfg.DBName,
		DialOptions: []grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithKeepaliveParams(keepalive.ClientParameters{
				Time:                60 * time.Second,
				Timeout:             20 * time.Second,
				PermitWithoutStream: true,
			}),
		},
	}
	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	return milvusNewClient(connectCtx, milvusCfg)
}

// CheckHealth asks the server for its state.
func (c *Client) CheckHealth(ctx context.Context) error {
	mc := c.GetMilvusClient()
	if mc == nil {
		return ErrConnectionFailed
	}
	state, err := mc.CheckHealth(ctx)
	if err != nil || (state != nil && !state.IsHealthy) {
		c.healthy.Store(false)
		if err == nil {
			return ErrUnhealthy
		}
		return ErrUnhealthy.WithCause(err)
	}
	c.healthy.Store(true)
	return nil
}

// IsHealthy returns the result of the last health check.
func (c *Client) IsHealthy() bool {
	return c.healthy.Load()
}

// GetMilvusClient returns the underlying Milvus client.
func (c *Client) GetMilvusClient() client.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.milvusClient
}

// Close stops the health check and closes the connection.
func (c *Client) Close() error {
	c.cancel()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.milvusClient != nil {
		c.milvusClient.Close()
		c.milvusClient = nil
	}
	c.logger.Info("Milvus client closed")
	return nil
}

func (c *Client) startHealthCheck(ctx context.Context) {
	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if c.checkAndRecover(ctx, &failures) != nil {
			c.logger.Warn("Milvus health check failed", logging.Int("consecutive_failures", failures))
		}
	}
}

// checkAndRecover runs one health probe and reconnects once failures
// reaches reconnectAfter.
func (c *Client) checkAndRecover(ctx context.Context, failures *int) error {
	prev := c.healthy.Load()
	err := c.CheckHealth(ctx)
	if err == nil {
		if !prev {
			c.logger.Info("Milvus cluster recovered")
		}
		*failures = 0
		return nil
	}
	*failures++
	if *failures >= reconnectAfter {
		if rerr := c.reconnect(ctx); rerr != nil {
			c.logger.Error("Milvus reconnect failed", logging.Err(rerr))
		} else {
			*failures = 0
		}
	}
	return err
}

func (c *Client) reconnect(ctx context.Context) error {
	mc, err := connect(ctx, c.config)
	if err != nil {
		return err
	}
	c.mu.Lock()
	old := c.milvusClient
	c.milvusClient = mc
	c.mu.Unlock()
	if old != nil {
		old.Close()
	}
	c.logger.Warn("Milvus client reconnected")
	return nil
}

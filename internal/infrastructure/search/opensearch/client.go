package opensearch

import (
	"context"
	"crypto/tls"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"

	"github.com/turtacn/ChemSight/internal/config"
	"github.com/turtacn/ChemSight/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemSight/pkg/errors"
)

var (
	ErrInvalidConfig    = errors.New(errors.ErrCodeValidation, "invalid opensearch configuration")
	ErrConnectionFailed = errors.New(errors.ErrCodeServiceUnavailable, "opensearch connection failed")
)

const healthCheckInterval = 30 * time.Second

// Client manages the OpenSearch connection and tracks cluster health in
// the background.
type Client struct {
	client      *opensearch.Client
	indexPrefix string
	logger      logging.Logger
	healthy     atomic.Bool
	cancel      context.CancelFunc
}

// NewClient connects to the cluster and verifies it with a ping.
func NewClient(cfg config.OpenSearchConfig, log logging.Logger) (*Client, error) {
	if len(cfg.Addresses) == 0 {
		return nil, ErrInvalidConfig
	}

	transport := &http.Transport{MaxIdleConnsPerHost: 10}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	osClient, err := opensearch.NewClient(opensearch.Config{
		Addresses:     cfg.Addresses,
		Username:      cfg.User,
		Password:      cfg.Password,
		MaxRetries:    3,
		RetryBackoff:  func(int) time.Duration { return 100 * time.Millisecond },
		RetryOnStatus: []int{502, 503, 504, 429},
		Transport:     transport,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create opensearch client")
	}

	c := NewClientWithOpenSearch(osClient, cfg.IndexPrefix, log)
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	pingCtx, pingCancel := context.WithTimeout(ctx, 10*time.Second)
	defer pingCancel()
	if err := c.Ping(pingCtx); err != nil {
		cancel()
		return nil, ErrConnectionFailed.WithCause(err)
	}
	go c.startHealthCheck(ctx)

	c.logger.Info("OpenSearch client connected", logging.Strings("addresses", cfg.Addresses))
	return c, nil
}

// NewClientWithOpenSearch wraps an existing client without pinging it.
func NewClientWithOpenSearch(osClient *opensearch.Client, indexPrefix string, log logging.Logger) *Client {
	if log == nil {
		log = logging.NewNopLogger()
	}
	c := &Client{
		client:      osClient,
		indexPrefix: indexPrefix,
		logger:      log.Named("opensearch"),
		cancel:      func() {},
	}
	c.healthy.Store(true)
	return c
}

// Ping checks the connection to OpenSearch.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.client.Ping(c.client.Ping.WithContext(ctx))
	if err != nil {
		c.healthy.Store(false)
		return err
	}
	defer resp.Body.Close()

	if resp.IsError() {
		c.healthy.Store(false)
		return errors.Newf(errors.ErrCodeServiceUnavailable, "ping returned status %d", resp.StatusCode)
	}
	c.healthy.Store(true)
	return nil
}

// IsHealthy reports the result of the last ping.
func (c *Client) IsHealthy() bool {
	return c.healthy.Load()
}

// IndexName prefixes name with the configured index prefix.
func (c *Client) IndexName(name string) string {
	return c.indexPrefix + name
}

// GetClient returns the underlying OpenSearch client.
func (c *Client) GetClient() *opensearch.Client {
	return c.client
}

// Close stops the health check.
func (c *Client) Close() error {
	c.cancel()
	c.logger.Info("OpenSearch client closed")
	return nil
}

func (c *Client) startHealthCheck(ctx context.Context) {
	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prev := c.healthy.Load()
			err := c.Ping(ctx)
			curr := c.healthy.Load()
			if prev && !curr {
				c.logger.Error("OpenSearch cluster became unhealthy", logging.Err(err))
			} else if !prev && curr {
				c.logger.Info("OpenSearch cluster recovered")
			}
		}
	}
}

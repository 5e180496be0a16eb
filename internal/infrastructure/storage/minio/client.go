package minio

import (
	"context"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/turtacn/ChemSight/internal/config"
	"github.com/turtacn/ChemSight/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemSight/pkg/errors"
)

// MinIOAPI is the subset of *minio.Client the store uses.
type MinIOAPI interface {
	ListBuckets(ctx context.Context) ([]minio.BucketInfo, error)
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error)
}

const (
	DefaultBucket        = "structures"
	DefaultPresignExpiry = time.Hour
	defaultRegion        = "us-east-1"
)

// MinIOClient holds the connection and the structure bucket name.
type MinIOClient struct {
	client        MinIOAPI
	bucket        string
	presignExpiry time.Duration
	logger        logging.Logger
}

// NewMinIOClient connects, verifies credentials and creates the bucket when
// missing.
func NewMinIOClient(cfg config.MinIOConfig, log logging.Logger) (*MinIOClient, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: defaultRegion,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create minio client")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := client.ListBuckets(ctx); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeServiceUnavailable, "failed to connect to minio")
	}

	c := NewMinIOClientWithAPI(client, cfg, log)
	if err := c.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	log.Info("MinIO client connected",
		logging.String("endpoint", cfg.Endpoint),
		logging.String("bucket", c.bucket),
		logging.Bool("ssl", cfg.UseSSL))
	return c, nil
}

// NewMinIOClientWithAPI wraps an existing API implementation.
func NewMinIOClientWithAPI(api MinIOAPI, cfg config.MinIOConfig, log logging.Logger) *MinIOClient {
	if log == nil {
		log = logging.NewNopLogger()
	}
	c := &MinIOClient{
		client:        api,
		bucket:        cfg.Bucket,
		presignExpiry: cfg.PresignExpiry,
		logger:        log.Named("minio"),
	}
	if c.bucket == "" {
		c.bucket = DefaultBucket
	}
	if c.presignExpiry <= 0 {
		c.presignExpiry = DefaultPresignExpiry
	}
	return c
}

// EnsureBucket creates the structure bucket if it does not exist.
func (c *MinIOClient) EnsureBucket(ctx context.Context) error {
	exists, err := c.client.BucketExists(ctx, c.bucket)
	if err != nil {
		return errors.Wrap(err, errors.CodeStorageError, "failed to check bucket existence")
	}
	if exists {
		return nil
	}
	if err := c.client.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{Region: defaultRegion}); err != nil {
		return errors.Wrapf(err, errors.CodeStorageError, "failed to create bucket %s", c.bucket)
	}
	c.logger.Info("Created bucket", logging.String("bucket", c.bucket))
	return nil
}

// Bucket returns the structure bucket name.
func (c *MinIOClient) Bucket() string { return c.bucket }

// HealthStatus is the outcome of HealthCheck.
type HealthStatus struct {
	Healthy bool
	Latency time.Duration
	Error   string
}

// HealthCheck lists buckets and reports the round trip.
func (c *MinIOClient) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	start := time.Now()
	_, err := c.client.ListBuckets(ctx)
	status := &HealthStatus{Healthy: err == nil, Latency: time.Since(start)}
	if err != nil {
		status.Error = err.Error()
		return status, errors.Wrap(err, errors.ErrCodeServiceUnavailable, "minio health check failed")
	}
	return status, nil
}

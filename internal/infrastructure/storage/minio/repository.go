package minio

import (
	"bytes"
	"context"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/turtacn/ChemSight/internal/domain/depiction"
	"github.com/turtacn/ChemSight/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemSight/pkg/errors"
)

// StructureStore keeps rendered structure artefacts.
type StructureStore interface {
	// Put uploads artefacts, skipping keys that already exist. Objects are
	// content-addressed by structure hash, so existing ones are identical.
	Put(ctx context.Context, artifacts []depiction.Artifact) error
	// URL returns a presigned GET URL for key.
	URL(ctx context.Context, key string) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
}

type structureStore struct {
	client *MinIOClient
	logger logging.Logger
}

// NewStructureStore builds a StructureStore over client.
func NewStructureStore(client *MinIOClient, log logging.Logger) StructureStore {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &structureStore{client: client, logger: log.Named("structures")}
}

func (s *structureStore) Put(ctx context.Context, artifacts []depiction.Artifact) error {
	for _, a := range artifacts {
		exists, err := s.Exists(ctx, a.Key)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		_, err = s.client.client.PutObject(ctx, s.client.bucket, a.Key,
			bytes.NewReader(a.Content), int64(len(a.Content)),
			minio.PutObjectOptions{
				ContentType:  a.ContentType,
				CacheControl: "public, max-age=31536000, immutable",
			})
		if err != nil {
			return errors.Wrapf(err, errors.CodeStorageError, "failed to upload %s", a.Key)
		}
		s.logger.Debug("uploaded structure", logging.String("key", a.Key), logging.Int("bytes", len(a.Content)))
	}
	return nil
}

func (s *structureStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.client.StatObject(ctx, s.client.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return false, nil
	}
	return false, errors.Wrapf(err, errors.CodeStorageError, "failed to stat %s", key)
}

func (s *structureStore) URL(ctx context.Context, key string) (string, error) {
	return s.presign(ctx, key, s.client.presignExpiry)
}

func (s *structureStore) presign(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := s.client.client.PresignedGetObject(ctx, s.client.bucket, key, expiry, nil)
	if err != nil {
		return "", errors.Wrapf(err, errors.CodeStorageError, "failed to presign %s", key)
	}
	return u.String(), nil
}

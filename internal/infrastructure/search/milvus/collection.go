package milvus

import (
	"context"
	"strconv"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/turtacn/ChemSight/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemSight/pkg/errors"
)

const (
	DefaultCollection     = "compound_fingerprints"
	DefaultFingerprintDim = 2048

	FieldCanonicalSMILES = "canonical_smiles"
	FieldName            = "name"
	FieldFingerprint     = "fingerprint"

	maxSMILESLength = 2048
	maxNameLength   = 512
	indexNList      = 128
)

// CollectionManager owns the fingerprint collection lifecycle.
type CollectionManager struct {
	client *Client
	name   string
	dim    int
	logger logging.Logger
}

// NewCollectionManager creates a CollectionManager for collection name
// with binary fingerprints of dim bits.
func NewCollectionManager(client *Client, name string, dim int, log logging.Logger) *CollectionManager {
	if name == "" {
		name = DefaultCollection
	}
	if dim <= 0 {
		dim = DefaultFingerprintDim
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &CollectionManager{client: client, name: name, dim: dim, logger: log.Named("collection")}
}

// Name returns the collection name.
func (m *CollectionManager) Name() string { return m.name }

// Dim returns the fingerprint width in bits.
func (m *CollectionManager) Dim() int { return m.dim }

// Schema returns the fingerprint collection schema. Rows are keyed by
// canonical SMILES.
func (m *CollectionManager) Schema() *entity.Schema {
	return entity.NewSchema().
		WithName(m.name).
		WithDescription("Morgan fingerprints of analysed compounds").
		WithField(entity.NewField().
			WithName(FieldCanonicalSMILES).
			WithDataType(entity.FieldTypeVarChar).
			WithIsPrimaryKey(true).
			WithMaxLength(maxSMILESLength)).
		WithField(entity.NewField().
			WithName(FieldName).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(maxNameLength)).
		WithField(entity.NewField().
			WithName(FieldFingerprint).
			WithDataType(entity.FieldTypeBinaryVector).
			WithDim(int64(m.dim)))
}

// EnsureCollection creates the collection and its Jaccard index when
// missing, then loads it for search.
func (m *CollectionManager) EnsureCollection(ctx context.Context) error {
	mc := m.client.GetMilvusClient()
	if mc == nil {
		return ErrConnectionFailed
	}

	exists, err := mc.HasCollection(ctx, m.name)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "failed to check collection")
	}
	if !exists {
		if err := mc.CreateCollection(ctx, m.Schema(), 2); err != nil {
			return errors.Wrapf(err, errors.ErrCodeExternalService, "failed to create collection %s", m.name)
		}
		idx, err := entity.NewIndexBinIvfFlat(entity.JACCARD, indexNList)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to build index definition")
		}
		if err := mc.CreateIndex(ctx, m.name, FieldFingerprint, idx, false); err != nil {
			return errors.Wrap(err, errors.ErrCodeExternalService, "failed to create fingerprint index")
		}
		m.logger.Info("Collection created",
			logging.String("collection", m.name),
			logging.String("dim", strconv.Itoa(m.dim)))
	}

	if err := mc.LoadCollection(ctx, m.name, false); err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "failed to load collection")
	}
	return nil
}

// DropCollection deletes the collection.
func (m *CollectionManager) DropCollection(ctx context.Context) error {
	mc := m.client.GetMilvusClient()
	if mc == nil {
		return ErrConnectionFailed
	}
	if err := mc.DropCollection(ctx, m.name); err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "failed to drop collection")
	}
	m.logger.Warn("Collection dropped", logging.String("collection", m.name))
	return nil
}

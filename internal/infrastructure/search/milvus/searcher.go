package milvus

import (
	"context"
	"strconv"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/turtacn/ChemSight/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemSight/pkg/errors"
)

const (
	DefaultTopK  = 10
	MaxTopK      = 100
	searchNProbe = 16
)

// FingerprintRecord is one stored fingerprint.
type FingerprintRecord struct {
	CanonicalSMILES string
	Name            string
	Bits            []byte
}

// SimilarityHit is one neighbour. Similarity is the Tanimoto coefficient,
// i.e. one minus the Jaccard distance Milvus reports.
type SimilarityHit struct {
	CanonicalSMILES string
	Name            string
	Similarity      float64
}

// Searcher stores and queries compound fingerprints.
type Searcher struct {
	client      *Client
	collection  *CollectionManager
	defaultTopK int
	logger      logging.Logger
}

// NewSearcher creates a Searcher over the collection managed by coll.
func NewSearcher(client *Client, coll *CollectionManager, defaultTopK int, log logging.Logger) *Searcher {
	if defaultTopK <= 0 {
		defaultTopK = DefaultTopK
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Searcher{client: client, collection: coll, defaultTopK: defaultTopK, logger: log.Named("similarity")}
}

func (s *Searcher) checkBits(bits []byte) error {
	if want := s.collection.Dim() / 8; len(bits) != want {
		return errors.Newf(errors.ErrCodeValidation, "fingerprint has %d bytes, collection expects %d", len(bits), want)
	}
	return nil
}

// Upsert stores records, replacing rows with the same canonical SMILES.
func (s *Searcher) Upsert(ctx context.Context, records ...FingerprintRecord) error {
	if len(records) == 0 {
		return nil
	}
	mc := s.client.GetMilvusClient()
	if mc == nil {
		return ErrConnectionFailed
	}

	keys := make([]string, len(records))
	names := make([]string, len(records))
	vectors := make([][]byte, len(records))
	for i, r := range records {
		if r.CanonicalSMILES == "" {
			return errors.New(errors.ErrCodeValidation, "record has no canonical smiles")
		}
		if err := s.checkBits(r.Bits); err != nil {
			return err
		}
		keys[i] = r.CanonicalSMILES
		names[i] = truncate(r.Name, maxNameLength)
		vectors[i] = r.Bits
	}

	_, err := mc.Upsert(ctx, s.collection.Name(), "",
		entity.NewColumnVarChar(FieldCanonicalSMILES, keys),
		entity.NewColumnVarChar(FieldName, names),
		entity.NewColumnBinaryVector(FieldFingerprint, s.collection.Dim(), vectors),
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "failed to upsert fingerprints")
	}
	s.logger.Debug("Fingerprints upserted", logging.Int("count", len(records)))
	return nil
}

// Search returns up to topK stored structures most similar to bits,
// best first.
func (s *Searcher) Search(ctx context.Context, bits []byte, topK int) ([]SimilarityHit, error) {
	if err := s.checkBits(bits); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = s.defaultTopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}
	mc := s.client.GetMilvusClient()
	if mc == nil {
		return nil, ErrConnectionFailed
	}

	sp, err := entity.NewIndexBinIvfFlatSearchParam(searchNProbe)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to build search params")
	}
	results, err := mc.Search(ctx, s.collection.Name(), nil, "",
		[]string{FieldName},
		[]entity.Vector{entity.BinaryVector(bits)},
		FieldFingerprint, entity.JACCARD, topK, sp)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeSearchError, "similarity search failed")
	}
	if len(results) == 0 {
		return nil, nil
	}

	r := results[0]
	var names *entity.ColumnVarChar
	for _, col := range r.Fields {
		if c, ok := col.(*entity.ColumnVarChar); ok && col.Name() == FieldName {
			names = c
		}
	}
	ids, ok := r.IDs.(*entity.ColumnVarChar)
	if !ok {
		return nil, errors.New(errors.CodeSearchError, "unexpected primary key column type")
	}

	hits := make([]SimilarityHit, 0, r.ResultCount)
	for i := 0; i < r.ResultCount && i < len(r.Scores); i++ {
		key, err := ids.ValueByIdx(i)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeSearchError, "failed to read result key")
		}
		hit := SimilarityHit{CanonicalSMILES: key, Similarity: 1 - float64(r.Scores[i])}
		if names != nil {
			hit.Name, _ = names.ValueByIdx(i)
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Delete removes the rows of the given structures.
func (s *Searcher) Delete(ctx context.Context, canonicalSMILES ...string) error {
	if len(canonicalSMILES) == 0 {
		return nil
	}
	mc := s.client.GetMilvusClient()
	if mc == nil {
		return ErrConnectionFailed
	}
	if err := mc.Delete(ctx, s.collection.Name(), "", inExpr(FieldCanonicalSMILES, canonicalSMILES)); err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "failed to delete fingerprints")
	}
	return nil
}

func inExpr(field string, values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = strconv.Quote(v)
	}
	return field + " in [" + strings.Join(quoted, ",") + "]"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

package milvus

import (
	"context"
	"errors"
	"testing"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ChemSight/internal/domain/molecule"
	pkgerrors "github.com/turtacn/ChemSight/pkg/errors"
)

func newTestSearcher(f *fakeMilvus) *Searcher {
	c := newTestClient(f)
	return NewSearcher(c, NewCollectionManager(c, "fps", 2048, nil), 0, nil)
}

func morganBits(t *testing.T, smiles string) []byte {
	t.Helper()
	m, err := molecule.ParseSMILES(smiles)
	require.NoError(t, err)
	fp, err := molecule.MorganFingerprint(m, 2, 2048)
	require.NoError(t, err)
	return fp.ToBytes()
}

func TestUpsert(t *testing.T) {
	fake := newFakeMilvus()
	s := newTestSearcher(fake)

	err := s.Upsert(context.Background(),
		FingerprintRecord{CanonicalSMILES: "CCO", Name: "Ethanol", Bits: morganBits(t, "CCO")},
		FingerprintRecord{CanonicalSMILES: "CC(=O)O", Name: "Acetic acid", Bits: morganBits(t, "CC(=O)O")},
	)
	require.NoError(t, err)
	require.Len(t, fake.upserted, 3)
	assert.Equal(t, FieldCanonicalSMILES, fake.upserted[0].Name())
	assert.Equal(t, 2, fake.upserted[0].Len())
	assert.Equal(t, FieldFingerprint, fake.upserted[2].Name())
}

func TestUpsert_Validation(t *testing.T) {
	s := newTestSearcher(newFakeMilvus())
	err := s.Upsert(context.Background(), FingerprintRecord{CanonicalSMILES: "C", Bits: []byte{1, 2}})
	assert.True(t, pkgerrors.IsValidation(err))

	err = s.Upsert(context.Background(), FingerprintRecord{Bits: make([]byte, 256)})
	assert.True(t, pkgerrors.IsValidation(err))

	assert.NoError(t, s.Upsert(context.Background()))
}

func TestSearch(t *testing.T) {
	fake := newFakeMilvus()
	fake.searchRes = []client.SearchResult{{
		ResultCount: 2,
		IDs:         entity.NewColumnVarChar(FieldCanonicalSMILES, []string{"CCO", "CCCO"}),
		Fields:      []entity.Column{entity.NewColumnVarChar(FieldName, []string{"Ethanol", "Propanol"})},
		Scores:      []float32{0, 0.25},
	}}
	s := newTestSearcher(fake)

	hits, err := s.Search(context.Background(), morganBits(t, "CCO"), 500)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "CCO", hits[0].CanonicalSMILES)
	assert.Equal(t, "Ethanol", hits[0].Name)
	assert.Equal(t, 1.0, hits[0].Similarity)
	assert.Equal(t, 0.75, hits[1].Similarity)
	assert.Equal(t, MaxTopK, fake.searchArgs.topK)
	assert.Equal(t, entity.JACCARD, fake.searchArgs.metric)
	assert.Equal(t, FieldFingerprint, fake.searchArgs.field)
}

func TestSearch_DefaultTopKAndErrors(t *testing.T) {
	fake := newFakeMilvus()
	s := newTestSearcher(fake)

	hits, err := s.Search(context.Background(), make([]byte, 256), 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.Equal(t, DefaultTopK, fake.searchArgs.topK)

	fake.searchErr = errors.New("collection not loaded")
	_, err = s.Search(context.Background(), make([]byte, 256), 5)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeSearchError))

	_, err = s.Search(context.Background(), []byte{1}, 5)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestDelete(t *testing.T) {
	fake := newFakeMilvus()
	s := newTestSearcher(fake)
	require.NoError(t, s.Delete(context.Background(), "CCO", `C"C`))
	assert.Equal(t, `canonical_smiles in ["CCO","C\"C"]`, fake.deleteExpr)
}

package milvus

import (
	"context"
	"testing"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectionManager_Defaults(t *testing.T) {
	m := NewCollectionManager(newTestClient(newFakeMilvus()), "", 0, nil)
	assert.Equal(t, DefaultCollection, m.Name())
	assert.Equal(t, DefaultFingerprintDim, m.Dim())
}

func TestSchema(t *testing.T) {
	s := NewCollectionManager(newTestClient(newFakeMilvus()), "fps", 1024, nil).Schema()
	assert.Equal(t, "fps", s.CollectionName)
	require.Len(t, s.Fields, 3)
	assert.True(t, s.Fields[0].PrimaryKey)
	assert.Equal(t, entity.FieldTypeVarChar, s.Fields[0].DataType)
	assert.Equal(t, entity.FieldTypeBinaryVector, s.Fields[2].DataType)
	assert.Equal(t, "1024", s.Fields[2].TypeParams["dim"])
}

func TestEnsureCollection_Creates(t *testing.T) {
	fake := newFakeMilvus()
	m := NewCollectionManager(newTestClient(fake), "fps", 2048, nil)

	require.NoError(t, m.EnsureCollection(context.Background()))
	require.NotNil(t, fake.created)
	assert.Equal(t, FieldFingerprint, fake.indexField)
	assert.Equal(t, []string{"fps"}, fake.loaded)
}

func TestEnsureCollection_Existing(t *testing.T) {
	fake := newFakeMilvus()
	fake.collections["fps"] = true
	m := NewCollectionManager(newTestClient(fake), "fps", 2048, nil)

	require.NoError(t, m.EnsureCollection(context.Background()))
	assert.Nil(t, fake.created)
	assert.Empty(t, fake.indexField)
	assert.Equal(t, []string{"fps"}, fake.loaded)
}

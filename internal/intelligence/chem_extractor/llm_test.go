package chem_extractor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ChemSight/pkg/errors"
)

type mockCompleter struct {
	mock.Mock
}

func (m *mockCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func TestLLMExtractor_Name(t *testing.T) {
	c := new(mockCompleter)
	c.On("Complete", mock.Anything, mock.MatchedBy(func(p string) bool {
		return assert.Contains(t, p, "the drug in advil")
	})).Return(`Sure! {"name": "Ibuprofen", "smiles": "CC(C)Cc1ccc(cc1)C(C)C(=O)O"}`, nil)

	x := NewLLMExtractor(c, nil)
	cands, err := x.Extract(context.Background(), "the drug in advil")
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, EntityCommonName, cands[0].Type)
	assert.Equal(t, "Ibuprofen", cands[0].Text)
	assert.Equal(t, "CC(C)Cc1ccc(cc1)C(C)C(=O)O", cands[0].SuggestedSMILES)
	assert.Equal(t, SourceLLM, cands[0].Source)
	assert.Equal(t, 0, cands[0].StartOffset)
	assert.Equal(t, len("the drug in advil"), cands[0].EndOffset)
}

func TestLLMExtractor_SMILESOnly(t *testing.T) {
	c := new(mockCompleter)
	c.On("Complete", mock.Anything, mock.Anything).Return(`{"name": "", "smiles": "CCO"}`, nil)

	cands, err := NewLLMExtractor(c, nil).Extract(context.Background(), "drinking alcohol")
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, EntitySMILES, cands[0].Type)
	assert.Equal(t, "CCO", cands[0].Text)
}

func TestLLMExtractor_NothingFound(t *testing.T) {
	c := new(mockCompleter)
	c.On("Complete", mock.Anything, mock.Anything).Return(`{"name": "", "smiles": ""}`, nil)

	cands, err := NewLLMExtractor(c, nil).Extract(context.Background(), "hello there")
	require.NoError(t, err)
	assert.Empty(t, cands)
}

func TestLLMExtractor_Errors(t *testing.T) {
	c := new(mockCompleter)
	c.On("Complete", mock.Anything, mock.Anything).Return("I am not sure.", nil).Once()
	c.On("Complete", mock.Anything, mock.Anything).Return("", errors.New(errors.ErrCodeDataSourceUnavailable, "down")).Once()

	x := NewLLMExtractor(c, nil)
	_, err := x.Extract(context.Background(), "q")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeAIInferenceFailed))

	_, err = x.Extract(context.Background(), "q")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeAIInferenceFailed))

	_, err = NewLLMExtractor(nil, nil).Extract(context.Background(), "q")
	assert.True(t, errors.IsCode(err, errors.ErrCodeAIModelNotAvailable))
}

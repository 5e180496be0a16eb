package molecule

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ChemSight/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemSight/pkg/errors"
	"github.com/turtacn/ChemSight/pkg/types/common"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) Save(ctx context.Context, c *Compound) error {
	return m.Called(ctx, c).Error(0)
}

func (m *mockRepository) FindByID(ctx context.Context, id common.ID) (*Compound, error) {
	args := m.Called(ctx, id)
	c, _ := args.Get(0).(*Compound)
	return c, args.Error(1)
}

func (m *mockRepository) FindByCanonicalSMILES(ctx context.Context, canonical string) (*Compound, error) {
	args := m.Called(ctx, canonical)
	c, _ := args.Get(0).(*Compound)
	return c, args.Error(1)
}

func (m *mockRepository) FindByName(ctx context.Context, name string) (*Compound, error) {
	args := m.Called(ctx, name)
	c, _ := args.Get(0).(*Compound)
	return c, args.Error(1)
}

func (m *mockRepository) List(ctx context.Context, page common.Pagination) (*common.PaginatedResult[*Compound], error) {
	args := m.Called(ctx, page)
	r, _ := args.Get(0).(*common.PaginatedResult[*Compound])
	return r, args.Error(1)
}

func (m *mockRepository) Delete(ctx context.Context, id common.ID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func TestNewCompound(t *testing.T) {
	c, mol, err := NewCompound(" Aspirin ", aspirinSMILES, "smiles")
	require.NoError(t, err)
	require.NotNil(t, mol)

	assert.Equal(t, "Aspirin", c.Name)
	assert.Equal(t, "C₉H₈O₄", c.Formula)
	assert.Equal(t, 180.16, c.Weight)
	assert.Equal(t, 3, c.Properties.RotatableBonds)
	assert.Equal(t, 21, c.Topology.AtomCount)
	assert.Equal(t, CanonicalSMILES(mol), c.CanonicalSMILES)
	assert.NoError(t, c.ID.Validate())
	assert.Len(t, c.StructureHash(), 64)
	require.NotNil(t, c.Fingerprint)

	events := c.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "compound.registered", events[0].EventType())
	assert.Empty(t, c.Events())
}

func TestNewCompound_Invalid(t *testing.T) {
	_, _, err := NewCompound("x", "   ", "smiles")
	assert.True(t, errors.IsValidation(err))

	_, _, err = NewCompound("x", "C1CC", "smiles")
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidSMILES))
}

func TestCompound_Synonyms(t *testing.T) {
	c, _, err := NewCompound("", caffeineSMILES, "smiles")
	require.NoError(t, err)
	c.Events()

	assert.True(t, c.AddSynonym("Caffeine"))
	assert.Equal(t, "Caffeine", c.Name)
	assert.True(t, c.AddSynonym("guaranine"))
	assert.False(t, c.AddSynonym("CAFFEINE"))
	assert.False(t, c.AddSynonym("  "))
	assert.Equal(t, []string{"guaranine"}, c.Synonyms)
	assert.True(t, c.HasName("Guaranine"))
	assert.Len(t, c.Events(), 2)
}

func TestStructureHash_FollowsCanonicalForm(t *testing.T) {
	a, _, err := NewCompound("", "OCC", "smiles")
	require.NoError(t, err)
	b, _, err := NewCompound("", "CCO", "smiles")
	require.NoError(t, err)
	assert.Equal(t, a.StructureHash(), b.StructureHash())
}

func TestService_RegisterNew(t *testing.T) {
	repo := new(mockRepository)
	svc := NewService(repo, logging.NewNopLogger())
	ctx := context.Background()

	repo.On("FindByCanonicalSMILES", ctx, "CCO").
		Return(nil, errors.New(errors.ErrCodeCompoundNotFound, "compound not found"))
	repo.On("Save", ctx, mock.MatchedBy(func(c *Compound) bool {
		return c.Name == "ethanol" && c.CanonicalSMILES == "CCO" && c.Description == "a solvent"
	})).Return(nil)

	c, err := svc.Register(ctx, "ethanol", "OCC", "a solvent", "smiles")
	require.NoError(t, err)
	assert.Equal(t, "smiles", c.Source)
	repo.AssertExpectations(t)
}

func TestService_RegisterExistingAddsSynonym(t *testing.T) {
	repo := new(mockRepository)
	svc := NewService(repo, nil)
	ctx := context.Background()

	existing, _, err := NewCompound("ethanol", "CCO", "dictionary")
	require.NoError(t, err)

	repo.On("FindByCanonicalSMILES", ctx, "CCO").Return(existing, nil)
	repo.On("Save", ctx, existing).Return(nil).Once()

	c, err := svc.Register(ctx, "ethyl alcohol", "OCC", "", "smiles")
	require.NoError(t, err)
	assert.Same(t, existing, c)
	assert.Equal(t, []string{"ethyl alcohol"}, c.Synonyms)

	// a known name does not trigger another save
	_, err = svc.Register(ctx, "Ethanol", "CCO", "", "smiles")
	require.NoError(t, err)
	repo.AssertExpectations(t)
	repo.AssertNumberOfCalls(t, "Save", 1)
}

func TestService_RegisterRepositoryFailure(t *testing.T) {
	repo := new(mockRepository)
	svc := NewService(repo, nil)
	ctx := context.Background()

	repo.On("FindByCanonicalSMILES", ctx, "CCO").Return(nil, errors.New(errors.ErrCodeDatabaseError, "connection reset"))

	_, err := svc.Register(ctx, "ethanol", "CCO", "", "smiles")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeDBQueryError))
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestService_Lookups(t *testing.T) {
	repo := new(mockRepository)
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.Get(ctx, "not-a-uuid")
	assert.True(t, errors.IsValidation(err))

	_, err = svc.FindByName(ctx, "")
	assert.True(t, errors.IsValidation(err))

	_, err = svc.FindBySMILES(ctx, "C(")
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidSMILES))

	_, err = svc.List(ctx, common.Pagination{Page: 0, PageSize: 10})
	assert.True(t, errors.IsValidation(err))

	benzene, _, err := NewCompound("benzene", benzeneSMILES, "dictionary")
	require.NoError(t, err)
	repo.On("FindByCanonicalSMILES", ctx, "c1ccccc1").Return(benzene, nil)
	repo.On("FindByName", ctx, "benzol").Return(nil, errors.NotFound("compound not found"))

	got, err := svc.FindBySMILES(ctx, "c1ccccc1")
	require.NoError(t, err)
	assert.Same(t, benzene, got)

	_, err = svc.FindByName(ctx, "benzol")
	assert.True(t, errors.IsNotFound(err))
	repo.AssertExpectations(t)
}

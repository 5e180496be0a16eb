package chem_extractor

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ChemSight/internal/config"
	"github.com/turtacn/ChemSight/internal/domain/molecule"
	"github.com/turtacn/ChemSight/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemSight/pkg/errors"
	"github.com/turtacn/ChemSight/pkg/types/chemical"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) FindByName(ctx context.Context, name string) (*molecule.Compound, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*molecule.Compound), args.Error(1)
}

func (m *mockStore) FindByCanonicalSMILES(ctx context.Context, canonical string) (*molecule.Compound, error) {
	args := m.Called(ctx, canonical)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*molecule.Compound), args.Error(1)
}

type mockPubChem struct {
	mock.Mock
}

func (m *mockPubChem) LookupByName(ctx context.Context, name string) (*chemical.PubChemRecord, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chemical.PubChemRecord), args.Error(1)
}

func (m *mockPubChem) LookupBySMILES(ctx context.Context, smiles string) (*chemical.PubChemRecord, error) {
	args := m.Called(ctx, smiles)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chemical.PubChemRecord), args.Error(1)
}

func (m *mockPubChem) LookupByInChI(ctx context.Context, inchi string) (*chemical.PubChemRecord, error) {
	args := m.Called(ctx, inchi)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chemical.PubChemRecord), args.Error(1)
}

// memCache is a map-backed Cache that round-trips values through JSON.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (c *memCache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[key]
	if !ok {
		return errors.NotFound("cache miss")
	}
	return json.Unmarshal(b, dest)
}

func (c *memCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = b
	c.ttls[key] = ttl
	return nil
}

var notFoundErr = errors.New(errors.ErrCodeCompoundNotFound, "not found")

func TestResolve_DictionaryEntry(t *testing.T) {
	d := DefaultDictionary()
	r := NewResolver(d, DefaultResolverConfig())
	e, _ := d.Lookup("caffeine")

	rc, err := r.Resolve(context.Background(), &Candidate{Text: "coffee caffeine", Type: EntityCommonName, Entry: e})
	require.NoError(t, err)
	assert.True(t, rc.Resolved)
	assert.Equal(t, MethodDictionary, rc.Method)
	assert.Equal(t, "Caffeine", rc.Name)
	assert.Equal(t, "CN1C=NC2=C1C(=O)N(C(=O)N2C)C", rc.SMILES)
	require.NotNil(t, rc.Properties)
	assert.Equal(t, 58.44, rc.Properties.TPSA)
}

func TestResolve_NameChain(t *testing.T) {
	ctx := context.Background()
	stored, _, err := molecule.NewCompound("Theobromine", "CN1C=NC2=C1C(=O)NC(=O)N2C", "pubchem")
	require.NoError(t, err)

	t.Run("store hit", func(t *testing.T) {
		store := new(mockStore)
		store.On("FindByName", mock.Anything, "theobromine").Return(stored, nil)
		pc := new(mockPubChem)

		r := NewResolver(nil, DefaultResolverConfig(), WithStore(store), WithPubChem(pc))
		rc, err := r.Resolve(ctx, &Candidate{Text: "theobromine", Type: EntityCommonName})
		require.NoError(t, err)
		assert.Equal(t, MethodStore, rc.Method)
		assert.Equal(t, "Theobromine", rc.Name)
		pc.AssertNotCalled(t, "LookupByName", mock.Anything, mock.Anything)
	})

	t.Run("pubchem after store miss", func(t *testing.T) {
		store := new(mockStore)
		store.On("FindByName", mock.Anything, "theobromine").Return(nil, notFoundErr)
		pc := new(mockPubChem)
		pc.On("LookupByName", mock.Anything, "theobromine").Return(&chemical.PubChemRecord{
			CID:             5429,
			Title:           "Theobromine",
			CanonicalSMILES: "CN1C=NC2=C1C(=O)NC(=O)N2C",
			Synonyms:        []string{"theobromine", "3,7-dimethylxanthine"},
		}, nil)

		r := NewResolver(nil, DefaultResolverConfig(), WithStore(store), WithPubChem(pc))
		rc, err := r.Resolve(ctx, &Candidate{Text: "theobromine", Type: EntityCommonName})
		require.NoError(t, err)
		assert.Equal(t, MethodPubChem, rc.Method)
		assert.Equal(t, int64(5429), rc.PubChemCID)
		assert.Equal(t, "CN1C=NC2=C1C(=O)NC(=O)N2C", rc.SMILES)
		store.AssertExpectations(t)
		pc.AssertExpectations(t)
	})

	t.Run("upstream failure continues to suggestion", func(t *testing.T) {
		pc := new(mockPubChem)
		pc.On("LookupByName", mock.Anything, "mystery").
			Return(nil, errors.New(errors.ErrCodeDataSourceUnavailable, "pubchem down"))

		r := NewResolver(nil, DefaultResolverConfig(), WithPubChem(pc), WithResolverLogger(logging.NewNopLogger()))
		rc, err := r.Resolve(ctx, &Candidate{Text: "mystery", Type: EntityCommonName, SuggestedSMILES: "CCN"})
		require.NoError(t, err)
		assert.True(t, rc.Resolved)
		assert.Equal(t, MethodLLM, rc.Method)
		assert.Equal(t, "CCN", rc.SMILES)
	})

	t.Run("nothing matches", func(t *testing.T) {
		r := NewResolver(nil, DefaultResolverConfig())
		rc, err := r.Resolve(ctx, &Candidate{Text: "unobtainium", Type: EntityCommonName})
		require.NoError(t, err)
		assert.False(t, rc.Resolved)
		assert.Equal(t, MethodNotFound, rc.Method)
	})
}

func TestResolve_SMILES(t *testing.T) {
	ctx := context.Background()

	t.Run("known structure maps to dictionary", func(t *testing.T) {
		r := NewResolver(nil, DefaultResolverConfig())
		rc, err := r.Resolve(ctx, &Candidate{Text: "C1=CC=CC=C1", Type: EntitySMILES})
		require.NoError(t, err)
		assert.Equal(t, MethodDictionary, rc.Method)
		assert.Equal(t, "Benzene", rc.Name)
	})

	t.Run("unknown structure resolves as itself", func(t *testing.T) {
		store := new(mockStore)
		store.On("FindByCanonicalSMILES", mock.Anything, mock.Anything).Return(nil, notFoundErr)
		r := NewResolver(nil, DefaultResolverConfig(), WithStore(store))
		rc, err := r.Resolve(ctx, &Candidate{Text: "CCCCCCCCCC", Type: EntitySMILES})
		require.NoError(t, err)
		assert.True(t, rc.Resolved)
		assert.Equal(t, MethodSMILES, rc.Method)
		assert.Equal(t, "CCCCCCCCCC", rc.SMILES)
	})

	t.Run("invalid", func(t *testing.T) {
		r := NewResolver(nil, DefaultResolverConfig())
		_, err := r.Resolve(ctx, &Candidate{Text: "C1CC", Type: EntitySMILES})
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidSMILES))
	})
}

func TestResolve_CASAndFormula(t *testing.T) {
	r := NewResolver(nil, DefaultResolverConfig())

	rc, err := r.Resolve(context.Background(), &Candidate{Text: "50-78-2", Type: EntityCASNumber})
	require.NoError(t, err)
	assert.Equal(t, "Aspirin", rc.Name)

	rc, err = r.Resolve(context.Background(), &Candidate{Text: "C8H10N4O2", Type: EntityMolecularFormula})
	require.NoError(t, err)
	assert.Equal(t, "Caffeine", rc.Name)
}

func TestResolve_Cache(t *testing.T) {
	ctx := context.Background()
	cache := newMemCache()
	pc := new(mockPubChem)
	pc.On("LookupByName", mock.Anything, "Nowhereamine").Return(nil, notFoundErr).Once()

	cfg := DefaultResolverConfig()
	r := NewResolver(nil, cfg, WithPubChem(pc), WithCache(cache))

	c := &Candidate{Text: "Nowhereamine", Type: EntityCommonName}
	first, err := r.Resolve(ctx, c)
	require.NoError(t, err)
	assert.False(t, first.Resolved)

	second, err := r.Resolve(ctx, c)
	require.NoError(t, err)
	assert.False(t, second.Resolved)
	assert.Same(t, c, second.Candidate)

	key := resolverCachePrefix + CacheKey(EntityCommonName, "nowhereamine")
	assert.Equal(t, cfg.NegativeCacheTTL, cache.ttls[key])
	pc.AssertNumberOfCalls(t, "LookupByName", 1)
}

func TestResolve_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewResolver(nil, DefaultResolverConfig())
	_, err := r.Resolve(ctx, &Candidate{Text: "something", Type: EntityCommonName})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeTimeout))
}

func TestResolve_EmptyCandidate(t *testing.T) {
	r := NewResolver(nil, DefaultResolverConfig())
	_, err := r.Resolve(context.Background(), &Candidate{Text: " "})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestResolveFirst(t *testing.T) {
	r := NewResolver(nil, DefaultResolverConfig())
	rc, err := r.ResolveFirst(context.Background(), []*Candidate{
		{Text: "unobtainium", Type: EntityCommonName},
		{Text: "aspirin", Type: EntityCommonName},
	})
	require.NoError(t, err)
	assert.Equal(t, "Aspirin", rc.Name)

	rc, err = r.ResolveFirst(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, rc.Resolved)
}

func TestResolveBatch(t *testing.T) {
	r := NewResolver(nil, ResolverConfig{BatchConcurrency: 2})
	cands := []*Candidate{
		{Text: "benzene", Type: EntityCommonName},
		{Text: "CCO", Type: EntitySMILES},
		{Text: "71-43-2", Type: EntityCASNumber},
		{Text: "nothing", Type: EntityCommonName},
	}
	out, err := r.ResolveBatch(context.Background(), cands)
	require.NoError(t, err)
	require.Len(t, out, 4)
	assert.Equal(t, "Benzene", out[0].Name)
	assert.Equal(t, "Ethanol", out[1].Name)
	assert.Equal(t, "Benzene", out[2].Name)
	assert.False(t, out[3].Resolved)
}

func TestResolverConfigFrom(t *testing.T) {
	c := ResolverConfigFrom(config.AnalysisConfig{ResolverCacheTTL: time.Hour, ResolveConcurrency: 8})
	assert.Equal(t, time.Hour, c.CacheTTL)
	assert.Equal(t, DefaultResolverConfig().NegativeCacheTTL, c.NegativeCacheTTL)
	assert.Equal(t, 8, c.BatchConcurrency)
}

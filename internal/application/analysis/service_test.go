package analysis

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ChemSight/internal/domain/depiction"
	"github.com/turtacn/ChemSight/internal/domain/molecule"
	"github.com/turtacn/ChemSight/internal/intelligence/chem_extractor"
	"github.com/turtacn/ChemSight/pkg/errors"
	"github.com/turtacn/ChemSight/pkg/types/chemical"
)

// ---------------------------------------------------------------------------
// Test doubles
// ---------------------------------------------------------------------------

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) GetOrSet(ctx context.Context, key string, dest interface{}, _ time.Duration, loader func(ctx context.Context) (interface{}, error)) error {
	c.mu.Lock()
	b, ok := c.data[key]
	c.mu.Unlock()
	if !ok {
		v, err := loader(ctx)
		if err != nil {
			return err
		}
		if b, err = json.Marshal(v); err != nil {
			return err
		}
		c.mu.Lock()
		c.data[key] = b
		c.mu.Unlock()
	}
	return json.Unmarshal(b, dest)
}

type mockRegistry struct{ mock.Mock }

func (m *mockRegistry) Register(ctx context.Context, name, smiles, description, source string) (*molecule.Compound, error) {
	args := m.Called(ctx, name, smiles, description, source)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*molecule.Compound), args.Error(1)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) PublishCompoundAnalyzed(ctx context.Context, ev *chemical.CompoundAnalyzedEvent) error {
	return m.Called(ctx, ev).Error(0)
}

type mockStore struct{ mock.Mock }

func (m *mockStore) Put(ctx context.Context, artifacts []depiction.Artifact) error {
	return m.Called(ctx, artifacts).Error(0)
}

func (m *mockStore) URL(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

type fakeLocker struct {
	err      error
	acquired []string
	released int
}

func (l *fakeLocker) TryLock(_ context.Context, name string, _ time.Duration) (func(context.Context) error, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.acquired = append(l.acquired, name)
	return func(context.Context) error { l.released++; return nil }, nil
}

type recorderFunc func(ctx context.Context, r Record) error

func (f recorderFunc) Record(ctx context.Context, r Record) error { return f(ctx, r) }

type recordingMetrics struct {
	mu       sync.Mutex
	outcomes []string
	cache    []bool
	errors   []string
}

func (m *recordingMetrics) RecordAnalysis(outcome, _ string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}
func (m *recordingMetrics) RecordStage(string, time.Duration) {}
func (m *recordingMetrics) RecordConformer(int)               {}
func (m *recordingMetrics) RecordCacheAccess(_ string, hit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache = append(m.cache, hit)
}
func (m *recordingMetrics) RecordError(component, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, component)
}

type completerFunc func(ctx context.Context, prompt string) (string, error)

func (f completerFunc) Complete(ctx context.Context, prompt string) (string, error) { return f(ctx, prompt) }

func newTestService(opts ...Option) *Service {
	dict := chem_extractor.DefaultDictionary()
	ex := chem_extractor.NewExtractor(dict, nil, chem_extractor.DefaultExtractorConfig(), nil)
	rs := chem_extractor.NewResolver(dict, chem_extractor.DefaultResolverConfig())
	return NewService(ex, rs, dict, DefaultConfig(), opts...)
}

// ---------------------------------------------------------------------------
// Analyze
// ---------------------------------------------------------------------------

func TestAnalyze_ReferenceCompounds(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	tests := []struct {
		query    string
		name     string
		smiles   string
		formula  string
		weight   float64
		info     chemical.MoleculeInfo
		logP     float64
		psa      float64
		rotors   int
		donors   int
		acceptor int
	}{
		{"what is BENZENE?", "Benzene", "c1ccccc1", "C₆H₆", 78.11,
			chemical.MoleculeInfo{AtomCount: 12, BondCount: 12, RingCount: 1, AromaticRings: 1, HeavyAtomCount: 6}, 2.13, 0, 0, 0, 0},
		{"my morning Caffeine", "Caffeine", "CN1C=NC2=C1C(=O)N(C(=O)N2C)C", "C₈H₁₀N₄O₂", 194.19,
			chemical.MoleculeInfo{AtomCount: 24, BondCount: 25, RingCount: 2, AromaticRings: 2, HeavyAtomCount: 14}, -0.07, 58.44, 0, 0, 6},
		{"aspirin", "Aspirin", "CC(=O)OC1=CC=CC=C1C(=O)O", "C₉H₈O₄", 180.16,
			chemical.MoleculeInfo{AtomCount: 21, BondCount: 21, RingCount: 1, AromaticRings: 1, HeavyAtomCount: 13}, 1.19, 63.6, 3, 1, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.Analyze(ctx, tt.query)
			require.NoError(t, err)
			assert.True(t, res.IsDetected)
			assert.Equal(t, tt.name, res.Compound)
			assert.Equal(t, tt.smiles, res.SMILES)
			assert.Equal(t, tt.formula, res.MolecularFormula)
			assert.InDelta(t, tt.weight, res.MolecularWeight, 0.001)
			assert.Equal(t, tt.info, *res.MoleculeInfo)
			assert.Equal(t, chemical.Properties{
				LogP: tt.logP, PolarSurfaceArea: tt.psa, RotorBonds: tt.rotors,
				HBondDonors: tt.donors, HBondAcceptors: tt.acceptor,
			}, *res.Properties)
			assert.Equal(t, chemical.SourceDictionary, res.Source)
			assert.NotEmpty(t, res.Description)
			require.NotNil(t, res.Assessment)
			assert.True(t, res.Assessment.DrugLike)
			assert.Equal(t, molecule.LabelDrugLike, res.Assessment.Label)

			total := 0.0
			for _, b := range res.BondAnalysis {
				total += b.Percentage
			}
			assert.InDelta(t, 100, total, 0.5)
			assert.Len(t, res.BondMeasurements, tt.info.BondCount)
			assert.True(t, strings.HasPrefix(res.Structure2D, "<svg"))
			assert.Contains(t, res.Structure3D, "V2000")
		})
	}
}

func TestAnalyze_BenzeneGeometry(t *testing.T) {
	res, err := newTestService().Analyze(context.Background(), "benzene")
	require.NoError(t, err)

	byType := map[string]chemical.BondAnalysis{}
	for _, b := range res.BondAnalysis {
		byType[b.BondType] = b
	}
	require.Contains(t, byType, "C-C Aromatic")
	require.Contains(t, byType, "C-H")
	cc := byType["C-C Aromatic"]
	assert.Equal(t, 6, cc.Count)
	assert.InDelta(t, 50, cc.Percentage, 0.01)
	assert.InDelta(t, 1.39, cc.AverageDistance, 0.05)
	assert.InDelta(t, 120, cc.AverageAngle, 3)
	require.NotNil(t, res.Summary)
	assert.Equal(t, 12, res.Summary.TotalBonds)
	assert.Equal(t, 2, res.Summary.UniqueBondTypes)
}

func TestAnalyze_PriorityOrder(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	res, err := svc.Analyze(ctx, "aspirin, caffeine or benzene")
	require.NoError(t, err)
	assert.Equal(t, "Benzene", res.Compound)

	res, err = svc.Analyze(ctx, "aspirin with caffeine")
	require.NoError(t, err)
	assert.Equal(t, "Caffeine", res.Compound)
}

func TestAnalyze_Undetected(t *testing.T) {
	rec := &recordingMetrics{}
	var logged []Record
	svc := newTestService(WithMetrics(rec), WithRecorder(recorderFunc(func(_ context.Context, r Record) error {
		logged = append(logged, r)
		return nil
	})))

	res, err := svc.Analyze(context.Background(), "unobtainium")
	require.NoError(t, err)
	assert.False(t, res.IsDetected)
	assert.Equal(t, chemical.UnknownCompound, res.Compound)
	assert.Equal(t, chemical.UnknownDescription, res.Description)
	assert.Empty(t, res.SMILES)
	assert.Empty(t, res.MolecularFormula)
	assert.Zero(t, res.MolecularWeight)
	assert.Empty(t, res.BondAnalysis)
	assert.Equal(t, chemical.MoleculeInfo{}, *res.MoleculeInfo)

	assert.Equal(t, []string{OutcomeUndetected}, rec.outcomes)
	require.Len(t, logged, 1)
	assert.False(t, logged[0].Detected)
	assert.Empty(t, logged[0].CompoundID)
}

func TestAnalyze_EmptyQuery(t *testing.T) {
	_, err := newTestService().Analyze(context.Background(), "   ")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
}

func TestAnalyze_Cached(t *testing.T) {
	rec := &recordingMetrics{}
	svc := newTestService(WithResultCache(newMemCache()), WithMetrics(rec))
	ctx := context.Background()

	first, err := svc.Analyze(ctx, "Benzene")
	require.NoError(t, err)
	second, err := svc.Analyze(ctx, "  benzene ")
	require.NoError(t, err)

	assert.Equal(t, first.CanonicalSMILES, second.CanonicalSMILES)
	assert.Equal(t, []bool{false, true}, rec.cache)
	assert.Len(t, rec.outcomes, 1)
}

func TestAnalyze_PersistAndPublish(t *testing.T) {
	stored, _, err := molecule.NewCompound("Caffeine", "CN1C=NC2=C1C(=O)N(C(=O)N2C)C", "dictionary")
	require.NoError(t, err)

	reg := new(mockRegistry)
	reg.On("Register", mock.Anything, "Caffeine", "CN1C=NC2=C1C(=O)N(C(=O)N2C)C", mock.Anything, "dictionary").
		Return(stored, nil)
	pub := new(mockPublisher)
	pub.On("PublishCompoundAnalyzed", mock.Anything, mock.MatchedBy(func(ev *chemical.CompoundAnalyzedEvent) bool {
		return ev.CompoundID == string(stored.ID) &&
			ev.CanonicalSMILES == stored.CanonicalSMILES &&
			ev.Query == "caffeine" &&
			ev.EventID != ""
	})).Return(nil)
	locker := &fakeLocker{}

	res, err := newTestService(WithRegistry(reg), WithPublisher(pub), WithLocker(locker)).
		Analyze(context.Background(), "caffeine")
	require.NoError(t, err)
	assert.Equal(t, string(stored.ID), res.CompoundID)
	assert.Equal(t, []string{"persist:" + stored.StructureHash()}, locker.acquired)
	assert.Equal(t, 1, locker.released)
	reg.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestAnalyze_LockHeldElsewhereSkipsPersistence(t *testing.T) {
	reg := new(mockRegistry)
	pub := new(mockPublisher)
	locker := &fakeLocker{err: errors.Conflict("held")}

	res, err := newTestService(WithRegistry(reg), WithPublisher(pub), WithLocker(locker)).
		Analyze(context.Background(), "aspirin")
	require.NoError(t, err)
	assert.True(t, res.IsDetected)
	assert.Empty(t, res.CompoundID)
	reg.AssertNotCalled(t, "Register", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	pub.AssertNotCalled(t, "PublishCompoundAnalyzed", mock.Anything, mock.Anything)
}

func TestAnalyze_OptionalFailuresDoNotFail(t *testing.T) {
	reg := new(mockRegistry)
	reg.On("Register", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New(errors.ErrCodeDatabaseError, "db down"))
	pub := new(mockPublisher)
	pub.On("PublishCompoundAnalyzed", mock.Anything, mock.Anything).
		Return(errors.New(errors.ErrCodeExternalService, "kafka down"))
	store := new(mockStore)
	store.On("Put", mock.Anything, mock.Anything).Return(errors.New(errors.ErrCodeExternalService, "minio down"))
	rec := &recordingMetrics{}

	res, err := newTestService(WithRegistry(reg), WithPublisher(pub), WithStructureStore(store), WithMetrics(rec)).
		Analyze(context.Background(), "benzene")
	require.NoError(t, err)
	assert.True(t, res.IsDetected)
	assert.True(t, strings.HasPrefix(res.Structure2D, "<svg"))
	assert.ElementsMatch(t, []string{"structure_store", "persist", "publish"}, rec.errors)
}

func TestAnalyze_StructureURLs(t *testing.T) {
	store := new(mockStore)
	store.On("Put", mock.Anything, mock.MatchedBy(func(a []depiction.Artifact) bool { return len(a) == 2 })).Return(nil)
	store.On("URL", mock.Anything, mock.MatchedBy(func(k string) bool { return strings.HasSuffix(k, depiction.Name2D) })).
		Return("http://minio/structures/2d.svg", nil)
	store.On("URL", mock.Anything, mock.MatchedBy(func(k string) bool { return strings.HasSuffix(k, depiction.Name3D) })).
		Return("http://minio/structures/3d.mol", nil)

	res, err := newTestService(WithStructureStore(store)).Analyze(context.Background(), "benzene")
	require.NoError(t, err)
	assert.Equal(t, "http://minio/structures/2d.svg", res.Structure2D)
	assert.Equal(t, "http://minio/structures/3d.mol", res.Structure3D)
}

// ---------------------------------------------------------------------------
// AnalyzeSMILES
// ---------------------------------------------------------------------------

func TestAnalyzeSMILES(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	res, err := svc.AnalyzeSMILES(ctx, "OCC", "")
	require.NoError(t, err)
	assert.Equal(t, "Ethanol", res.Compound)
	assert.Equal(t, "C₂H₆O", res.MolecularFormula)

	res, err = svc.AnalyzeSMILES(ctx, "CCCCCC", "hexane")
	require.NoError(t, err)
	assert.Equal(t, "hexane", res.Compound)
	assert.Equal(t, chemical.SourceSMILES, res.Source)
	assert.Equal(t, 20, res.MoleculeInfo.AtomCount)

	_, err = svc.AnalyzeSMILES(ctx, "C1CC", "")
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidSMILES))

	_, err = svc.AnalyzeSMILES(ctx, "", "")
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
}

func TestAnalyzeSMILES_TooLarge(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxHeavyAtoms = 3
	dict := chem_extractor.DefaultDictionary()
	svc := NewService(
		chem_extractor.NewExtractor(dict, nil, chem_extractor.DefaultExtractorConfig(), nil),
		chem_extractor.NewResolver(dict, chem_extractor.DefaultResolverConfig()),
		dict, cfg)

	_, err := svc.AnalyzeSMILES(context.Background(), "CCCCCC", "")
	assert.True(t, errors.IsCode(err, errors.ErrCodeMoleculeTooLarge))
}

// ---------------------------------------------------------------------------
// Other operations
// ---------------------------------------------------------------------------

func TestValidateSMILES(t *testing.T) {
	svc := newTestService()

	ok := svc.ValidateSMILES("c1ccccc1")
	assert.True(t, ok.Valid)
	assert.Empty(t, ok.Issues)
	assert.NotEmpty(t, ok.CanonicalSMILES)

	bad := svc.ValidateSMILES("CC(C")
	assert.False(t, bad.Valid)
	require.NotEmpty(t, bad.Issues)
	assert.NotEmpty(t, bad.Issues[0].Message)
	assert.Empty(t, bad.CanonicalSMILES)
}

func TestComplete(t *testing.T) {
	_, err := newTestService().Complete(context.Background(), "hi")
	assert.True(t, errors.IsCode(err, errors.ErrCodeAIModelNotAvailable))

	svc := newTestService(WithCompleter(completerFunc(func(_ context.Context, p string) (string, error) {
		return "echo: " + p, nil
	})))
	out, err := svc.Complete(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", out.Response)

	_, err = svc.Complete(context.Background(), " ")
	assert.True(t, errors.IsCode(err, errors.ErrCodeAIInputInvalid))
}

func TestSearch_DictionaryFallback(t *testing.T) {
	out, err := newTestService().Search(context.Background(), "CAFF", 0)
	require.NoError(t, err)
	require.Equal(t, 1, out.Total)
	assert.Equal(t, "Caffeine", out.Hits[0].Name)
	assert.Equal(t, "C₈H₁₀N₄O₂", out.Hits[0].MolecularFormula)

	_, err = newTestService().Search(context.Background(), "", 5)
	assert.Error(t, err)
}

type searcherFunc func(ctx context.Context, text string, limit int) (*chemical.SearchResponse, error)

func (f searcherFunc) Search(ctx context.Context, text string, limit int) (*chemical.SearchResponse, error) {
	return f(ctx, text, limit)
}

func TestSearch_ClampsLimit(t *testing.T) {
	var got int
	svc := newTestService(WithSearcher(searcherFunc(func(_ context.Context, text string, limit int) (*chemical.SearchResponse, error) {
		got = limit
		return &chemical.SearchResponse{Query: text}, nil
	})))
	_, err := svc.Search(context.Background(), "x", 10000)
	require.NoError(t, err)
	assert.Equal(t, maxSearchSize, got)
}

func TestSimilar_DictionaryFallback(t *testing.T) {
	out, err := newTestService().Similar(context.Background(), "C1=CC=CC=C1", 3)
	require.NoError(t, err)
	require.NotEmpty(t, out.Hits)
	assert.LessOrEqual(t, len(out.Hits), 3)
	assert.Equal(t, "Benzene", out.Hits[0].Name)
	assert.Equal(t, 1.0, out.Hits[0].Score)
	for i := 1; i < len(out.Hits); i++ {
		assert.LessOrEqual(t, out.Hits[i].Score, out.Hits[i-1].Score)
	}

	_, err = newTestService().Similar(context.Background(), "C1CC", 3)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidSMILES))
}

type similarityFunc func(ctx context.Context, fp *molecule.Fingerprint, topK int) ([]chemical.CompoundHit, error)

func (f similarityFunc) Similar(ctx context.Context, fp *molecule.Fingerprint, topK int) ([]chemical.CompoundHit, error) {
	return f(ctx, fp, topK)
}

func TestSimilar_UsesIndex(t *testing.T) {
	svc := newTestService(WithSimilarityIndex(similarityFunc(func(_ context.Context, fp *molecule.Fingerprint, topK int) ([]chemical.CompoundHit, error) {
		assert.Equal(t, molecule.DefaultMorganBits, fp.Length)
		assert.Equal(t, 5, topK)
		return []chemical.CompoundHit{{Name: "Toluene", Score: 0.5}}, nil
	})))
	out, err := svc.Similar(context.Background(), "c1ccccc1", 5)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Total)
}

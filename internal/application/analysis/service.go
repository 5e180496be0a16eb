// Package analysis implements the query analysis pipeline: a free-text query
// is turned into a chemical entity, resolved to a structure and analysed
// into a ChemicalResult with descriptors, a 3D conformer, bond geometry,
// a drug-likeness assessment and structure depictions.
package analysis

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/turtacn/ChemSight/internal/config"
	"github.com/turtacn/ChemSight/internal/domain/conformer"
	"github.com/turtacn/ChemSight/internal/domain/molecule"
	"github.com/turtacn/ChemSight/internal/intelligence/chem_extractor"
	"github.com/turtacn/ChemSight/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemSight/pkg/errors"
	"github.com/turtacn/ChemSight/pkg/types/chemical"
)

// Outcome labels of the analyses metric.
const (
	OutcomeDetected   = "detected"
	OutcomeUndetected = "undetected"
	OutcomeError      = "error"
)

const (
	resultCacheName   = "analysis"
	defaultLockTTL    = 30 * time.Second
	defaultSearchSize = 20
	maxSearchSize     = 100
	defaultTopK       = 10
	maxTopK           = 100
)

// Config tunes the pipeline.
type Config struct {
	ResultCacheTTL   time.Duration
	MaxHeavyAtoms    int
	Conformer        conformer.Options
	ConformerTimeout time.Duration
	InlineStructures bool
	PersistLockTTL   time.Duration
	FingerprintBits  int
}

// DefaultConfig returns the pipeline defaults.
func DefaultConfig() Config {
	return Config{
		ResultCacheTTL:   config.DefaultResultCacheTTL,
		MaxHeavyAtoms:    config.DefaultMaxHeavyAtoms,
		Conformer:        conformer.DefaultOptions(),
		ConformerTimeout: config.DefaultConformerTimeout,
		PersistLockTTL:   defaultLockTTL,
		FingerprintBits:  molecule.DefaultMorganBits,
	}
}

// ConfigFrom maps the application configuration onto a pipeline Config.
func ConfigFrom(a config.AnalysisConfig, fingerprintDim int) Config {
	c := DefaultConfig()
	if a.ResultCacheTTL > 0 {
		c.ResultCacheTTL = a.ResultCacheTTL
	}
	if a.MaxHeavyAtoms > 0 {
		c.MaxHeavyAtoms = a.MaxHeavyAtoms
	}
	if a.ConformerAttempts > 0 {
		c.Conformer.Attempts = a.ConformerAttempts
	}
	if a.ConformerMaxIter > 0 {
		c.Conformer.MaxIterations = a.ConformerMaxIter
	}
	if a.ConformerTimeout > 0 {
		c.ConformerTimeout = a.ConformerTimeout
	}
	if fingerprintDim > 0 {
		c.FingerprintBits = fingerprintDim
	}
	c.InlineStructures = a.InlineStructures
	return c
}

// Option configures a Service.
type Option func(*Service)

func WithResultCache(c ResultCache) Option         { return func(s *Service) { s.cache = c } }
func WithLocker(l Locker) Option                   { return func(s *Service) { s.locker = l } }
func WithRegistry(r CompoundRegistry) Option       { return func(s *Service) { s.registry = r } }
func WithStructureStore(st StructureStore) Option  { return func(s *Service) { s.store = st } }
func WithPublisher(p EventPublisher) Option        { return func(s *Service) { s.publisher = p } }
func WithRecorder(r Recorder) Option               { return func(s *Service) { s.recorder = r } }
func WithSearcher(cs CompoundSearcher) Option      { return func(s *Service) { s.searcher = cs } }
func WithSimilarityIndex(i SimilarityIndex) Option { return func(s *Service) { s.similarity = i } }
func WithCompleter(c Completer) Option             { return func(s *Service) { s.completer = c } }
func WithMetrics(m Metrics) Option                 { return func(s *Service) { s.metrics = m } }
func WithLogger(l logging.Logger) Option           { return func(s *Service) { s.logger = l } }

// Service runs analyses. Only the extractor and resolver are required; every
// other dependency is optional and its failures are logged without failing
// the analysis.
type Service struct {
	extractor  CandidateExtractor
	resolver   CompoundResolver
	dictionary *chem_extractor.Dictionary
	config     Config

	cache      ResultCache
	locker     Locker
	registry   CompoundRegistry
	store      StructureStore
	publisher  EventPublisher
	recorder   Recorder
	searcher   CompoundSearcher
	similarity SimilarityIndex
	completer  Completer
	metrics    Metrics
	logger     logging.Logger
}

// NewService builds a Service. dictionary backs the offline search and
// similarity fallbacks and may be nil.
func NewService(extractor CandidateExtractor, resolver CompoundResolver, dictionary *chem_extractor.Dictionary, cfg Config, opts ...Option) *Service {
	d := DefaultConfig()
	if cfg.MaxHeavyAtoms <= 0 {
		cfg.MaxHeavyAtoms = d.MaxHeavyAtoms
	}
	if cfg.ConformerTimeout <= 0 {
		cfg.ConformerTimeout = d.ConformerTimeout
	}
	if cfg.PersistLockTTL <= 0 {
		cfg.PersistLockTTL = d.PersistLockTTL
	}
	if cfg.FingerprintBits <= 0 {
		cfg.FingerprintBits = d.FingerprintBits
	}
	if dictionary == nil {
		dictionary = chem_extractor.DefaultDictionary()
	}
	s := &Service{
		extractor:  extractor,
		resolver:   resolver,
		dictionary: dictionary,
		config:     cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = nopMetrics{}
	}
	if s.logger == nil {
		s.logger = logging.NewNopLogger()
	}
	s.logger = s.logger.Named("analysis")
	return s
}

// Analyze analyses the compound named in query. A query naming nothing
// known yields the undetected payload, not an error.
func (s *Service) Analyze(ctx context.Context, query string) (*chemical.ChemicalResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.InvalidParam("query cannot be empty")
	}
	key := "analysis:q:" + strings.ToLower(chem_extractor.Normalise(query))
	return s.cached(ctx, key, func(ctx context.Context) (*chemical.ChemicalResult, error) {
		return s.analyzeQuery(ctx, query)
	})
}

// AnalyzeSMILES analyses a structure given directly. name, when set,
// overrides the resolved display name.
func (s *Service) AnalyzeSMILES(ctx context.Context, smiles, name string) (*chemical.ChemicalResult, error) {
	smiles = strings.TrimSpace(smiles)
	if smiles == "" {
		return nil, errors.InvalidParam("smiles cannot be empty")
	}
	mol, err := molecule.ParseSMILES(smiles)
	if err != nil {
		return nil, err
	}
	key := "analysis:smiles:" + molecule.CanonicalSMILES(mol) + ":" + strings.ToLower(strings.TrimSpace(name))
	return s.cached(ctx, key, func(ctx context.Context) (*chemical.ChemicalResult, error) {
		start := time.Now()
		rc, err := s.resolver.Resolve(ctx, &chem_extractor.Candidate{
			Text:       smiles,
			Type:       chem_extractor.EntitySMILES,
			Confidence: 1,
			EndOffset:  len(smiles),
			Source:     chem_extractor.SourceQuery,
		})
		if err != nil {
			s.metrics.RecordAnalysis(OutcomeError, "", time.Since(start))
			return nil, err
		}
		if n := strings.TrimSpace(name); n != "" {
			rc.Name = n
		}
		res, err := s.build(ctx, rc, smiles)
		s.finish(ctx, smiles, res, err, start)
		return res, err
	})
}

func (s *Service) cached(ctx context.Context, key string, compute func(context.Context) (*chemical.ChemicalResult, error)) (*chemical.ChemicalResult, error) {
	if s.cache == nil {
		return compute(ctx)
	}
	loaded := false
	var res chemical.ChemicalResult
	err := s.cache.GetOrSet(ctx, key, &res, s.config.ResultCacheTTL, func(ctx context.Context) (interface{}, error) {
		loaded = true
		return compute(ctx)
	})
	if err != nil {
		if loaded || ctx.Err() != nil {
			return nil, err
		}
		s.logger.Warn("result cache unavailable", logging.String("key", key), logging.Err(err))
		return compute(ctx)
	}
	s.metrics.RecordCacheAccess(resultCacheName, !loaded)
	return &res, nil
}

func (s *Service) analyzeQuery(ctx context.Context, query string) (*chemical.ChemicalResult, error) {
	start := time.Now()

	stage := time.Now()
	candidates, err := s.extractor.Extract(ctx, query)
	s.metrics.RecordStage("extract", time.Since(stage))
	if err != nil {
		s.metrics.RecordAnalysis(OutcomeError, "", time.Since(start))
		return nil, err
	}

	stage = time.Now()
	rc, err := s.resolver.ResolveFirst(ctx, candidates)
	s.metrics.RecordStage("resolve", time.Since(stage))
	if err != nil {
		s.metrics.RecordAnalysis(OutcomeError, "", time.Since(start))
		return nil, err
	}

	var res *chemical.ChemicalResult
	if rc == nil || !rc.Resolved {
		res = chemical.Undetected(query)
	} else {
		res, err = s.build(ctx, rc, query)
		if errors.IsCode(err, errors.ErrCodeInvalidSMILES) {
			s.logger.Warn("resolved structure is not valid SMILES",
				logging.String("query", query),
				logging.String("smiles", rc.SMILES),
				logging.Err(err))
			res, err = chemical.Undetected(query), nil
		}
	}
	s.finish(ctx, query, res, err, start)
	return res, err
}

// finish records metrics and the analysis log for a completed analysis.
func (s *Service) finish(ctx context.Context, query string, res *chemical.ChemicalResult, err error, start time.Time) {
	d := time.Since(start)
	if err != nil {
		s.metrics.RecordAnalysis(OutcomeError, "", d)
		return
	}
	outcome := OutcomeUndetected
	if res.IsDetected {
		outcome = OutcomeDetected
	}
	s.metrics.RecordAnalysis(outcome, string(res.Source), d)
	s.logger.Info("analysis complete",
		logging.String("query", query),
		logging.String("compound", res.Compound),
		logging.String("source", string(res.Source)),
		logging.Duration("duration", d),
		logging.String("request_id", logging.RequestIDFromContext(ctx)))

	if s.recorder == nil {
		return
	}
	rec := Record{Query: query, Detected: res.IsDetected, Source: string(res.Source), Duration: d}
	if res.IsDetected {
		rec.CompoundID = res.CompoundID
	}
	if err := s.recorder.Record(ctx, rec); err != nil {
		s.optionalFailed("analysis_log", err)
	}
}

func (s *Service) optionalFailed(stage string, err error) {
	s.logger.Warn("optional stage failed", logging.String("stage", stage), logging.Err(err))
	s.metrics.RecordError(stage, string(errors.GetCode(err)))
}

// ValidateSMILES reports the problems of a SMILES string without analysing
// it.
func (s *Service) ValidateSMILES(smiles string) *chemical.ValidateSMILESResponse {
	issues := molecule.ValidateSMILES(smiles)
	out := &chemical.ValidateSMILESResponse{Valid: len(issues) == 0, Issues: []chemical.ValidationIssue{}}
	for _, is := range issues {
		out.Issues = append(out.Issues, chemical.ValidationIssue{Position: is.Position, Message: is.Message})
	}
	if out.Valid {
		if mol, err := molecule.ParseSMILES(smiles); err == nil {
			out.CanonicalSMILES = molecule.CanonicalSMILES(mol)
		}
	}
	return out
}

// Complete passes text to the completion model.
func (s *Service) Complete(ctx context.Context, text string) (*chemical.LLMResponse, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New(errors.ErrCodeAIInputInvalid, "text cannot be empty")
	}
	if s.completer == nil {
		return nil, errors.New(errors.ErrCodeAIModelNotAvailable, "no completion model configured")
	}
	reply, err := s.completer.Complete(ctx, text)
	if err != nil {
		return nil, err
	}
	return &chemical.LLMResponse{Response: reply}, nil
}

// Search finds stored compounds matching text. Without a search backend the
// curated dictionary is searched by name.
func (s *Service) Search(ctx context.Context, text string, limit int) (*chemical.SearchResponse, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.InvalidParam("search text cannot be empty")
	}
	if limit <= 0 {
		limit = defaultSearchSize
	}
	if limit > maxSearchSize {
		limit = maxSearchSize
	}
	if s.searcher != nil {
		return s.searcher.Search(ctx, text, limit)
	}

	needle := strings.ToLower(text)
	out := &chemical.SearchResponse{Query: text, Hits: []chemical.CompoundHit{}}
	for _, e := range s.dictionary.Entries() {
		for _, n := range e.Names() {
			if strings.Contains(strings.ToLower(n), needle) {
				if hit, err := entryHit(e, 1); err == nil {
					out.Hits = append(out.Hits, hit)
				}
				break
			}
		}
		if len(out.Hits) == limit {
			break
		}
	}
	out.Total = len(out.Hits)
	return out, nil
}

// Similar returns the structures most similar to smiles by Morgan
// fingerprint. Without a similarity index the curated dictionary is ranked
// by Tanimoto similarity.
func (s *Service) Similar(ctx context.Context, smiles string, topK int) (*chemical.SearchResponse, error) {
	smiles = strings.TrimSpace(smiles)
	if smiles == "" {
		return nil, errors.InvalidParam("smiles cannot be empty")
	}
	if topK <= 0 {
		topK = defaultTopK
	}
	if topK > maxTopK {
		topK = maxTopK
	}
	mol, err := molecule.ParseSMILES(smiles)
	if err != nil {
		return nil, err
	}
	fp, err := molecule.MorganFingerprint(mol, molecule.DefaultMorganRadius, s.config.FingerprintBits)
	if err != nil {
		return nil, err
	}

	out := &chemical.SearchResponse{Query: smiles}
	if s.similarity != nil {
		hits, err := s.similarity.Similar(ctx, fp, topK)
		if err != nil {
			return nil, err
		}
		out.Hits = hits
		out.Total = len(hits)
		return out, nil
	}

	out.Hits = []chemical.CompoundHit{}
	for _, e := range s.dictionary.Entries() {
		m, err := molecule.ParseSMILES(e.SMILES)
		if err != nil {
			continue
		}
		efp, err := molecule.MorganFingerprint(m, molecule.DefaultMorganRadius, s.config.FingerprintBits)
		if err != nil {
			continue
		}
		score, err := molecule.Tanimoto(fp, efp)
		if err != nil || score == 0 {
			continue
		}
		if hit, err := entryHit(e, molecule.Round(score, 4)); err == nil {
			out.Hits = append(out.Hits, hit)
		}
	}
	sort.SliceStable(out.Hits, func(i, j int) bool { return out.Hits[i].Score > out.Hits[j].Score })
	if len(out.Hits) > topK {
		out.Hits = out.Hits[:topK]
	}
	out.Total = len(out.Hits)
	return out, nil
}

func entryHit(e *chem_extractor.DictionaryEntry, score float64) (chemical.CompoundHit, error) {
	mol, err := molecule.ParseSMILES(e.SMILES)
	if err != nil {
		return chemical.CompoundHit{}, err
	}
	return chemical.CompoundHit{
		Name:             e.Name,
		Synonyms:         e.Synonyms,
		SMILES:           e.SMILES,
		CanonicalSMILES:  molecule.CanonicalSMILES(mol),
		MolecularFormula: mol.UnicodeFormula(),
		MolecularWeight:  mol.MolecularWeight(),
		Score:            score,
	}, nil
}

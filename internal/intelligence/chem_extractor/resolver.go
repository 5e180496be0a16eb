package chem_extractor

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/ChemSight/internal/config"
	"github.com/turtacn/ChemSight/internal/domain/molecule"
	"github.com/turtacn/ChemSight/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemSight/pkg/errors"
	"github.com/turtacn/ChemSight/pkg/types/chemical"
)

// ---------------------------------------------------------------------------
// Dependencies
// ---------------------------------------------------------------------------

// CompoundStore is the read side of the compound repository.
type CompoundStore interface {
	FindByName(ctx context.Context, name string) (*molecule.Compound, error)
	FindByCanonicalSMILES(ctx context.Context, canonical string) (*molecule.Compound, error)
}

// SynonymSearcher finds stored compounds by fuzzy name or synonym match.
type SynonymSearcher interface {
	SearchByName(ctx context.Context, name string) (*molecule.Compound, error)
}

// PubChemClient looks compounds up in PubChem. Absent compounds are
// reported with a not-found error.
type PubChemClient interface {
	LookupByName(ctx context.Context, name string) (*chemical.PubChemRecord, error)
	LookupBySMILES(ctx context.Context, smiles string) (*chemical.PubChemRecord, error)
	LookupByInChI(ctx context.Context, inchi string) (*chemical.PubChemRecord, error)
}

// Cache stores resolutions. Get reports a miss with a not-found error.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// ResolverMetrics records resolution outcomes.
type ResolverMetrics interface {
	RecordResolution(method string, cached bool, duration time.Duration)
}

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// ResolverConfig holds resolver tuning.
type ResolverConfig struct {
	CacheTTL         time.Duration `mapstructure:"cache_ttl"`
	NegativeCacheTTL time.Duration `mapstructure:"negative_cache_ttl"`
	LookupTimeout    time.Duration `mapstructure:"lookup_timeout"`
	BatchConcurrency int           `mapstructure:"batch_concurrency"`
	MaxSynonyms      int           `mapstructure:"max_synonyms"`
}

// DefaultResolverConfig returns production defaults.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		CacheTTL:         24 * time.Hour,
		NegativeCacheTTL: 10 * time.Minute,
		LookupTimeout:    5 * time.Second,
		BatchConcurrency: 4,
		MaxSynonyms:      10,
	}
}

// ResolverConfigFrom overlays the non-zero analysis settings on the
// defaults.
func ResolverConfigFrom(a config.AnalysisConfig) ResolverConfig {
	c := DefaultResolverConfig()
	if a.ResolverCacheTTL > 0 {
		c.CacheTTL = a.ResolverCacheTTL
	}
	if a.NegativeCacheTTL > 0 {
		c.NegativeCacheTTL = a.NegativeCacheTTL
	}
	if a.ResolveConcurrency > 0 {
		c.BatchConcurrency = a.ResolveConcurrency
	}
	return c
}

const resolverCachePrefix = "resolve:"

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithStore enables lookups in the local compound store.
func WithStore(s CompoundStore) ResolverOption {
	return func(r *Resolver) { r.store = s }
}

// WithSearcher enables fuzzy synonym search.
func WithSearcher(s SynonymSearcher) ResolverOption {
	return func(r *Resolver) { r.searcher = s }
}

// WithPubChem enables PubChem lookups.
func WithPubChem(p PubChemClient) ResolverOption {
	return func(r *Resolver) { r.pubchem = p }
}

// WithCache enables caching of resolutions.
func WithCache(c Cache) ResolverOption {
	return func(r *Resolver) { r.cache = c }
}

// WithResolverMetrics records resolution metrics.
func WithResolverMetrics(m ResolverMetrics) ResolverOption {
	return func(r *Resolver) { r.metrics = m }
}

// WithResolverLogger sets the logger.
func WithResolverLogger(l logging.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = l }
}

// ---------------------------------------------------------------------------
// Resolver
// ---------------------------------------------------------------------------

// Resolver turns candidates into structures. Each candidate type runs its
// own chain; names go through the dictionary, the compound store, synonym
// search, PubChem and finally any structure suggested alongside the name.
type Resolver struct {
	dictionary *Dictionary
	store      CompoundStore
	searcher   SynonymSearcher
	pubchem    PubChemClient
	cache      Cache
	metrics    ResolverMetrics
	config     ResolverConfig
	logger     logging.Logger
}

// NewResolver constructs a Resolver over dictionary.
func NewResolver(dictionary *Dictionary, config ResolverConfig, opts ...ResolverOption) *Resolver {
	if dictionary == nil {
		dictionary = DefaultDictionary()
	}
	d := DefaultResolverConfig()
	if config.CacheTTL <= 0 {
		config.CacheTTL = d.CacheTTL
	}
	if config.NegativeCacheTTL <= 0 {
		config.NegativeCacheTTL = d.NegativeCacheTTL
	}
	if config.BatchConcurrency <= 0 {
		config.BatchConcurrency = d.BatchConcurrency
	}
	if config.MaxSynonyms <= 0 {
		config.MaxSynonyms = d.MaxSynonyms
	}
	r := &Resolver{dictionary: dictionary, config: config}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logging.NewNopLogger()
	}
	r.logger = r.logger.Named("resolver")
	return r
}

// Resolve resolves one candidate. A candidate that nothing matches yields a
// ResolvedCompound with Method not_found and no error. Errors are returned
// for an empty candidate, an unparseable SMILES candidate and a cancelled
// context.
func (r *Resolver) Resolve(ctx context.Context, c *Candidate) (*ResolvedCompound, error) {
	if c == nil || strings.TrimSpace(c.Text) == "" {
		return nil, errors.InvalidParam("candidate text cannot be empty")
	}
	start := time.Now()

	if c.Entry != nil {
		rc := fromEntry(c, c.Entry)
		r.record(rc, false, start)
		return rc, nil
	}

	key := resolverCachePrefix + CacheKey(c.Type, c.Text)
	if rc, ok := r.cached(ctx, key); ok {
		rc.Candidate = c
		r.record(rc, true, start)
		return rc, nil
	}

	rc, err := r.resolve(ctx, c)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTimeout, "resolution cancelled")
	}
	r.remember(ctx, key, rc)
	r.record(rc, false, start)
	return rc, nil
}

// ResolveFirst resolves candidates in order and returns the first that
// resolves. When none does, the not-found result of the first candidate is
// returned.
func (r *Resolver) ResolveFirst(ctx context.Context, candidates []*Candidate) (*ResolvedCompound, error) {
	if len(candidates) == 0 {
		return notFound(nil), nil
	}
	var first *ResolvedCompound
	for _, c := range candidates {
		rc, err := r.Resolve(ctx, c)
		if err != nil {
			if errors.IsCode(err, errors.ErrCodeTimeout) {
				return nil, err
			}
			r.logger.Debug("candidate failed to resolve", logging.String("candidate", c.String()), logging.Err(err))
			continue
		}
		if rc.Resolved {
			return rc, nil
		}
		if first == nil {
			first = rc
		}
	}
	if first == nil {
		first = notFound(candidates[0])
	}
	return first, nil
}

// ResolveBatch resolves candidates concurrently, at most BatchConcurrency at
// a time. Results keep the input order.
func (r *Resolver) ResolveBatch(ctx context.Context, candidates []*Candidate) ([]*ResolvedCompound, error) {
	out := make([]*ResolvedCompound, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.BatchConcurrency)
	for i, c := range candidates {
		i, c := i, c
		g.Go(func() error {
			rc, err := r.Resolve(gctx, c)
			if err != nil {
				return err
			}
			out[i] = rc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Resolver) resolve(ctx context.Context, c *Candidate) (*ResolvedCompound, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTimeout, "resolution cancelled")
	}
	text := strings.TrimSpace(c.Text)
	switch c.Type {
	case EntitySMILES:
		return r.resolveSMILES(ctx, c, text)
	case EntityCASNumber:
		return r.resolveCAS(ctx, c, text), nil
	case EntityInChI:
		return r.resolveInChI(ctx, c, text), nil
	case EntityMolecularFormula:
		if e, ok := r.dictionary.LookupFormula(text); ok {
			return fromEntry(c, e), nil
		}
		return notFound(c), nil
	case EntityCommonName, EntityIUPACName:
		return r.resolveName(ctx, c, text), nil
	}
	return notFound(c), nil
}

func (r *Resolver) resolveSMILES(ctx context.Context, c *Candidate, text string) (*ResolvedCompound, error) {
	mol, err := molecule.ParseSMILES(text)
	if err != nil {
		return nil, err
	}
	canonical := molecule.CanonicalSMILES(mol)

	if e, ok := r.dictionary.LookupCanonical(canonical); ok {
		return fromEntry(c, e), nil
	}
	if r.store != nil {
		lctx, cancel := r.lookupContext(ctx)
		cp, err := r.store.FindByCanonicalSMILES(lctx, canonical)
		cancel()
		if err == nil {
			return fromCompound(c, cp), nil
		}
		r.stageFailed("store", c, err)
	}
	rc := &ResolvedCompound{Candidate: c, SMILES: text, Method: MethodSMILES, Resolved: true}
	if r.pubchem != nil {
		lctx, cancel := r.lookupContext(ctx)
		rec, err := r.pubchem.LookupBySMILES(lctx, text)
		cancel()
		if err == nil {
			rc.Name = rec.DisplayName()
			rc.Synonyms = r.clip(rec.Synonyms)
			rc.InChI = rec.InChI
			rc.PubChemCID = rec.CID
		} else {
			r.stageFailed("pubchem", c, err)
		}
	}
	return rc, nil
}

func (r *Resolver) resolveCAS(ctx context.Context, c *Candidate, text string) *ResolvedCompound {
	if e, ok := r.dictionary.LookupCAS(text); ok {
		return fromEntry(c, e)
	}
	if r.pubchem == nil {
		return notFound(c)
	}
	lctx, cancel := r.lookupContext(ctx)
	defer cancel()
	rec, err := r.pubchem.LookupByName(lctx, text)
	if err != nil {
		r.stageFailed("pubchem", c, err)
		return notFound(c)
	}
	rc := r.fromPubChem(c, rec)
	rc.CASNumber = text
	return rc
}

func (r *Resolver) resolveInChI(ctx context.Context, c *Candidate, text string) *ResolvedCompound {
	if r.pubchem == nil {
		return notFound(c)
	}
	lctx, cancel := r.lookupContext(ctx)
	defer cancel()
	rec, err := r.pubchem.LookupByInChI(lctx, text)
	if err != nil {
		r.stageFailed("pubchem", c, err)
		return notFound(c)
	}
	rc := r.fromPubChem(c, rec)
	if rc.InChI == "" {
		rc.InChI = text
	}
	return rc
}

func (r *Resolver) resolveName(ctx context.Context, c *Candidate, text string) *ResolvedCompound {
	if e, ok := r.dictionary.Lookup(text); ok {
		return fromEntry(c, e)
	}
	if r.store != nil {
		lctx, cancel := r.lookupContext(ctx)
		cp, err := r.store.FindByName(lctx, text)
		cancel()
		if err == nil {
			return fromCompound(c, cp)
		}
		r.stageFailed("store", c, err)
	}
	if r.searcher != nil {
		lctx, cancel := r.lookupContext(ctx)
		cp, err := r.searcher.SearchByName(lctx, text)
		cancel()
		if err == nil {
			return fromCompound(c, cp)
		}
		r.stageFailed("search", c, err)
	}
	if r.pubchem != nil {
		lctx, cancel := r.lookupContext(ctx)
		rec, err := r.pubchem.LookupByName(lctx, text)
		cancel()
		if err == nil {
			if rc := r.fromPubChem(c, rec); rc.Resolved {
				return rc
			}
		} else {
			r.stageFailed("pubchem", c, err)
		}
	}
	if s := strings.TrimSpace(c.SuggestedSMILES); s != "" {
		if mol, err := molecule.ParseSMILES(s); err == nil && mol.NumAtoms() > 0 {
			return &ResolvedCompound{Candidate: c, Name: text, SMILES: s, Method: MethodLLM, Resolved: true}
		}
		r.logger.Debug("suggested SMILES rejected", logging.String("smiles", s))
	}
	return notFound(c)
}

func (r *Resolver) fromPubChem(c *Candidate, rec *chemical.PubChemRecord) *ResolvedCompound {
	smiles := rec.SMILES()
	if smiles == "" {
		return notFound(c)
	}
	name := rec.DisplayName()
	if name == "" {
		name = c.Text
	}
	return &ResolvedCompound{
		Candidate:  c,
		Name:       name,
		Synonyms:   r.clip(rec.Synonyms),
		SMILES:     smiles,
		InChI:      rec.InChI,
		PubChemCID: rec.CID,
		Method:     MethodPubChem,
		Resolved:   true,
	}
}

func (r *Resolver) clip(synonyms []string) []string {
	if len(synonyms) > r.config.MaxSynonyms {
		synonyms = synonyms[:r.config.MaxSynonyms]
	}
	return append([]string(nil), synonyms...)
}

func (r *Resolver) lookupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.config.LookupTimeout > 0 {
		return context.WithTimeout(ctx, r.config.LookupTimeout)
	}
	return context.WithCancel(ctx)
}

// stageFailed logs an upstream failure. Not-found answers are expected and
// only logged at debug level.
func (r *Resolver) stageFailed(stage string, c *Candidate, err error) {
	if errors.IsNotFound(err) {
		r.logger.Debug("no match", logging.String("stage", stage), logging.String("candidate", c.String()))
		return
	}
	r.logger.Warn("resolution stage failed",
		logging.String("stage", stage),
		logging.String("candidate", c.String()),
		logging.Err(err))
}

func (r *Resolver) cached(ctx context.Context, key string) (*ResolvedCompound, bool) {
	if r.cache == nil {
		return nil, false
	}
	var rc ResolvedCompound
	if err := r.cache.Get(ctx, key, &rc); err != nil {
		if !errors.IsNotFound(err) {
			r.logger.Warn("resolver cache read failed", logging.String("key", key), logging.Err(err))
		}
		return nil, false
	}
	return &rc, true
}

func (r *Resolver) remember(ctx context.Context, key string, rc *ResolvedCompound) {
	if r.cache == nil {
		return
	}
	ttl := r.config.CacheTTL
	if !rc.Resolved {
		ttl = r.config.NegativeCacheTTL
	}
	if err := r.cache.Set(ctx, key, rc, ttl); err != nil {
		r.logger.Warn("resolver cache write failed", logging.String("key", key), logging.Err(err))
	}
}

func (r *Resolver) record(rc *ResolvedCompound, cached bool, start time.Time) {
	if r.metrics != nil {
		r.metrics.RecordResolution(string(rc.Method), cached, time.Since(start))
	}
}

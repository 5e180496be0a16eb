package analysis

import (
	"context"
	"time"

	"github.com/turtacn/ChemSight/internal/domain/depiction"
	"github.com/turtacn/ChemSight/internal/domain/molecule"
	"github.com/turtacn/ChemSight/internal/intelligence/chem_extractor"
	"github.com/turtacn/ChemSight/pkg/types/chemical"
)

// CandidateExtractor finds chemical mentions in a query.
type CandidateExtractor interface {
	Extract(ctx context.Context, query string) ([]*chem_extractor.Candidate, error)
}

// CompoundResolver maps candidates to structures.
type CompoundResolver interface {
	Resolve(ctx context.Context, c *chem_extractor.Candidate) (*chem_extractor.ResolvedCompound, error)
	ResolveFirst(ctx context.Context, candidates []*chem_extractor.Candidate) (*chem_extractor.ResolvedCompound, error)
}

// CompoundRegistry persists analysed compounds, deduplicated by structure.
type CompoundRegistry interface {
	Register(ctx context.Context, name, smiles, description, source string) (*molecule.Compound, error)
}

// ResultCache memoises analysis results.
type ResultCache interface {
	GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader func(ctx context.Context) (interface{}, error)) error
}

// Locker serialises persistence of a structure across instances.
type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, error)
}

// StructureStore keeps rendered depictions and hands out URLs for them.
type StructureStore interface {
	Put(ctx context.Context, artifacts []depiction.Artifact) error
	URL(ctx context.Context, key string) (string, error)
}

// EventPublisher announces analysed compounds.
type EventPublisher interface {
	PublishCompoundAnalyzed(ctx context.Context, ev *chemical.CompoundAnalyzedEvent) error
}

// Record is one line of the analysis log.
type Record struct {
	Query      string
	CompoundID string
	Detected   bool
	Source     string
	Duration   time.Duration
}

// Recorder appends to the analysis log.
type Recorder interface {
	Record(ctx context.Context, r Record) error
}

// CompoundSearcher runs full-text compound searches.
type CompoundSearcher interface {
	Search(ctx context.Context, text string, limit int) (*chemical.SearchResponse, error)
}

// SimilarityIndex finds structures with similar fingerprints.
type SimilarityIndex interface {
	Similar(ctx context.Context, fp *molecule.Fingerprint, topK int) ([]chemical.CompoundHit, error)
}

// Completer is a text completion model.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Metrics receives pipeline measurements.
type Metrics interface {
	RecordAnalysis(outcome, source string, duration time.Duration)
	RecordStage(stage string, duration time.Duration)
	RecordConformer(attempts int)
	RecordCacheAccess(cache string, hit bool)
	RecordError(component, code string)
}

type nopMetrics struct{}

func (nopMetrics) RecordAnalysis(string, string, time.Duration) {}
func (nopMetrics) RecordStage(string, time.Duration)            {}
func (nopMetrics) RecordConformer(int)                          {}
func (nopMetrics) RecordCacheAccess(string, bool)               {}
func (nopMetrics) RecordError(string, string)                   {}

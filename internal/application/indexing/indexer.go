// Package indexing keeps the search backends in step with the compound
// registry. It consumes compound-analysed events and writes each structure
// to the full-text index and its fingerprint to the similarity index.
package indexing

import (
	"context"
	"strings"
	"time"

	"github.com/turtacn/ChemSight/internal/domain/molecule"
	"github.com/turtacn/ChemSight/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemSight/pkg/errors"
	"github.com/turtacn/ChemSight/pkg/types/chemical"
)

// TextIndex stores compound documents for name search.
type TextIndex interface {
	IndexCompound(ctx context.Context, ev *chemical.CompoundAnalyzedEvent) error
}

// FingerprintIndex stores structure fingerprints for similarity search.
type FingerprintIndex interface {
	UpsertFingerprint(ctx context.Context, canonicalSMILES, name string, bits []byte) error
}

// Metrics receives per-event outcomes.
type Metrics interface {
	RecordMessage(topic, outcome string, d time.Duration)
	RecordError(component, code string)
}

type nopMetrics struct{}

func (nopMetrics) RecordMessage(string, string, time.Duration) {}
func (nopMetrics) RecordError(string, string)                  {}

// Outcomes reported to Metrics.
const (
	OutcomeIndexed  = "indexed"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Indexer applies compound-analysed events to the indexes. Either index may
// be nil.
type Indexer struct {
	text        TextIndex
	fingerprint FingerprintIndex
	bits        int
	topic       string
	metrics     Metrics
	logger      logging.Logger
}

// Option configures an Indexer.
type Option func(*Indexer)

func WithTextIndex(t TextIndex) Option               { return func(i *Indexer) { i.text = t } }
func WithFingerprintIndex(f FingerprintIndex) Option { return func(i *Indexer) { i.fingerprint = f } }
func WithMetrics(m Metrics) Option                   { return func(i *Indexer) { i.metrics = m } }
func WithLogger(l logging.Logger) Option             { return func(i *Indexer) { i.logger = l } }

// NewIndexer returns an Indexer producing fingerprints of the given width.
// topic labels the metrics.
func NewIndexer(topic string, fingerprintBits int, opts ...Option) *Indexer {
	i := &Indexer{
		bits:    fingerprintBits,
		topic:   topic,
		metrics: nopMetrics{},
		logger:  logging.NewNopLogger(),
	}
	if i.bits <= 0 {
		i.bits = molecule.DefaultMorganBits
	}
	for _, opt := range opts {
		opt(i)
	}
	i.logger = i.logger.Named("indexer")
	return i
}

// Handle indexes one event. Events whose structure cannot be parsed are
// rejected with a validation error; index failures are returned as is so
// that the caller can retry them.
func (i *Indexer) Handle(ctx context.Context, ev *chemical.CompoundAnalyzedEvent) error {
	start := time.Now()
	err := i.handle(ctx, ev)
	switch {
	case err == nil:
		i.metrics.RecordMessage(i.topic, OutcomeIndexed, time.Since(start))
	case errors.IsValidation(err):
		i.metrics.RecordMessage(i.topic, OutcomeRejected, time.Since(start))
	default:
		i.metrics.RecordMessage(i.topic, OutcomeFailed, time.Since(start))
	}
	return err
}

func (i *Indexer) handle(ctx context.Context, ev *chemical.CompoundAnalyzedEvent) error {
	if ev == nil || strings.TrimSpace(ev.SMILES) == "" {
		return errors.New(errors.ErrCodeValidation, "event carries no structure")
	}
	mol, err := molecule.ParseSMILES(ev.SMILES)
	if err != nil {
		return err
	}
	if ev.CanonicalSMILES == "" {
		ev.CanonicalSMILES = molecule.CanonicalSMILES(mol)
	}

	if i.text != nil {
		if err := i.text.IndexCompound(ctx, ev); err != nil {
			i.metrics.RecordError("search_index", string(errors.GetCode(err)))
			return err
		}
	}
	if i.fingerprint != nil {
		fp, err := molecule.MorganFingerprint(mol, molecule.DefaultMorganRadius, i.bits)
		if err != nil {
			return err
		}
		if err := i.fingerprint.UpsertFingerprint(ctx, ev.CanonicalSMILES, ev.Name, fp.Bits); err != nil {
			i.metrics.RecordError("similarity_index", string(errors.GetCode(err)))
			return err
		}
	}

	i.logger.Debug("compound indexed",
		logging.String("event_id", ev.EventID),
		logging.String("canonical_smiles", ev.CanonicalSMILES))
	return nil
}

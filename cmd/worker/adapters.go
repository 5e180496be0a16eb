package main

import (
	"context"
	"time"

	"github.com/turtacn/ChemSight/internal/config"
	"github.com/turtacn/ChemSight/internal/infrastructure/search/milvus"
	"github.com/turtacn/ChemSight/internal/infrastructure/search/opensearch"
	"github.com/turtacn/ChemSight/pkg/types/chemical"
)

// textIndex writes compound documents to OpenSearch.
type textIndex struct {
	indexer *opensearch.Indexer
}

func (t textIndex) IndexCompound(ctx context.Context, ev *chemical.CompoundAnalyzedEvent) error {
	return t.indexer.IndexCompound(ctx, documentFromEvent(ev))
}

func documentFromEvent(ev *chemical.CompoundAnalyzedEvent) opensearch.CompoundDocument {
	indexedAt := ev.OccurredAt
	if indexedAt.IsZero() {
		indexedAt = time.Now().UTC()
	}
	return opensearch.CompoundDocument{
		ID:              ev.CompoundID,
		Name:            ev.Name,
		Synonyms:        ev.Synonyms,
		SMILES:          ev.SMILES,
		CanonicalSMILES: ev.CanonicalSMILES,
		Formula:         ev.MolecularFormula,
		Weight:          ev.MolecularWeight,
		Description:     ev.Description,
		Source:          string(ev.Source),
		IndexedAt:       indexedAt,
	}
}

// fingerprintIndex upserts fingerprints into Milvus.
type fingerprintIndex struct {
	searcher *milvus.Searcher
}

func (f fingerprintIndex) UpsertFingerprint(ctx context.Context, canonicalSMILES, name string, bits []byte) error {
	return f.searcher.Upsert(ctx, milvus.FingerprintRecord{
		CanonicalSMILES: canonicalSMILES,
		Name:            name,
		Bits:            bits,
	})
}

// healthCheck adapts a ping function to handlers.HealthChecker.
type healthCheck struct {
	name  string
	check func(ctx context.Context) error
}

func (h healthCheck) Name() string                    { return h.name }
func (h healthCheck) Check(ctx context.Context) error { return h.check(ctx) }

func workerCount(flagValue int, cfg config.WorkerConfig) int {
	if flagValue > 0 {
		return flagValue
	}
	if cfg.Concurrency > 0 {
		return cfg.Concurrency
	}
	return 1
}

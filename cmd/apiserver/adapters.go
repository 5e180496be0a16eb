package main

import (
	"context"

	"github.com/turtacn/ChemSight/internal/application/analysis"
	"github.com/turtacn/ChemSight/internal/config"
	"github.com/turtacn/ChemSight/internal/domain/molecule"
	"github.com/turtacn/ChemSight/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/ChemSight/internal/infrastructure/database/redis"
	"github.com/turtacn/ChemSight/internal/infrastructure/search/milvus"
	"github.com/turtacn/ChemSight/internal/infrastructure/search/opensearch"
	"github.com/turtacn/ChemSight/internal/infrastructure/storage/minio"
	"github.com/turtacn/ChemSight/internal/interfaces/http/handlers"
	"github.com/turtacn/ChemSight/pkg/errors"
	"github.com/turtacn/ChemSight/pkg/types/chemical"
)

// healthCheck adapts a ping function to handlers.HealthChecker.
type healthCheck struct {
	name  string
	check func(ctx context.Context) error
}

func (h healthCheck) Name() string                    { return h.name }
func (h healthCheck) Check(ctx context.Context) error { return h.check(ctx) }

func minioHealth(c *minio.MinIOClient) func(context.Context) error {
	return func(ctx context.Context) error {
		st, err := c.HealthCheck(ctx)
		if err != nil {
			return err
		}
		if !st.Healthy {
			return errors.New(errors.ErrCodeServiceUnavailable, st.Error)
		}
		return nil
	}
}

// healthFanout forwards readiness results to several observers.
type healthFanout []handlers.HealthObserver

func (f healthFanout) SetHealth(component string, up bool) {
	for _, o := range f {
		o.SetHealth(component, up)
	}
}

// compoundSearcher serves analysis searches from OpenSearch.
type compoundSearcher struct {
	searcher *opensearch.Searcher
}

func (s compoundSearcher) Search(ctx context.Context, text string, limit int) (*chemical.SearchResponse, error) {
	res, err := s.searcher.Search(ctx, text, limit)
	if err != nil {
		return nil, err
	}
	out := &chemical.SearchResponse{Query: text, Total: int(res.Total), Hits: make([]chemical.CompoundHit, 0, len(res.Hits))}
	for _, h := range res.Hits {
		d := h.Document
		out.Hits = append(out.Hits, chemical.CompoundHit{
			ID:               d.ID,
			Name:             d.Name,
			Synonyms:         d.Synonyms,
			SMILES:           d.SMILES,
			CanonicalSMILES:  d.CanonicalSMILES,
			MolecularFormula: d.Formula,
			MolecularWeight:  d.Weight,
			Score:            h.Score,
		})
	}
	return out, nil
}

// similarityIndex serves fingerprint neighbours from Milvus. Milvus stores
// only the structure and name, so formula and weight are derived here.
type similarityIndex struct {
	searcher *milvus.Searcher
}

func (s similarityIndex) Similar(ctx context.Context, fp *molecule.Fingerprint, topK int) ([]chemical.CompoundHit, error) {
	hits, err := s.searcher.Search(ctx, fp.Bits, topK)
	if err != nil {
		return nil, err
	}
	out := make([]chemical.CompoundHit, 0, len(hits))
	for _, h := range hits {
		hit := chemical.CompoundHit{
			Name:            h.Name,
			SMILES:          h.CanonicalSMILES,
			CanonicalSMILES: h.CanonicalSMILES,
			Score:           h.Similarity,
		}
		if mol, err := molecule.ParseSMILES(h.CanonicalSMILES); err == nil {
			hit.MolecularFormula = mol.UnicodeFormula()
			hit.MolecularWeight = mol.MolecularWeight()
		}
		out = append(out, hit)
	}
	return out, nil
}

// analysisRecorder writes the analysis log to PostgreSQL.
type analysisRecorder struct {
	repo *repositories.AnalysisLogRepository
}

func (r analysisRecorder) Record(ctx context.Context, rec analysis.Record) error {
	return r.repo.Record(ctx, repositories.AnalysisLogEntry{
		Query:      rec.Query,
		CompoundID: rec.CompoundID,
		Detected:   rec.Detected,
		Source:     rec.Source,
		Duration:   rec.Duration,
	})
}

func redisConfig(c config.RedisConfig) *redis.RedisConfig {
	return &redis.RedisConfig{
		Mode:         "standalone",
		Addr:         c.Addr,
		Password:     c.Password,
		DB:           c.DB,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
	}
}

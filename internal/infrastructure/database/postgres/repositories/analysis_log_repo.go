package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/turtacn/ChemSight/internal/infrastructure/database/postgres"
	"github.com/turtacn/ChemSight/pkg/errors"
)

// AnalysisLogEntry records one analysed query.
type AnalysisLogEntry struct {
	Query      string
	CompoundID string
	Detected   bool
	Source     string
	Duration   time.Duration
}

// AnalysisLogRepository appends to the analysis_log table.
type AnalysisLogRepository struct {
	conn *postgres.Connection
}

func NewAnalysisLogRepository(conn *postgres.Connection) *AnalysisLogRepository {
	return &AnalysisLogRepository{conn: conn}
}

// Record inserts e. An empty CompoundID is stored as NULL.
func (r *AnalysisLogRepository) Record(ctx context.Context, e AnalysisLogEntry) error {
	var compoundID sql.NullString
	if e.CompoundID != "" {
		compoundID = sql.NullString{String: e.CompoundID, Valid: true}
	}
	_, err := r.conn.DB().ExecContext(ctx,
		`INSERT INTO analysis_log (query, compound_id, detected, source, duration_ms) VALUES ($1, $2, $3, $4, $5)`,
		e.Query, compoundID, e.Detected, e.Source, e.Duration.Milliseconds())
	if err != nil {
		return errors.Wrap(err, errors.CodeDBQueryError, "failed to record analysis")
	}
	return nil
}

package repositories

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/turtacn/ChemSight/internal/domain/molecule"
	"github.com/turtacn/ChemSight/internal/infrastructure/database/postgres"
	"github.com/turtacn/ChemSight/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemSight/pkg/errors"
	"github.com/turtacn/ChemSight/pkg/types/common"
)

const compoundColumns = `id, name, synonyms, smiles, canonical_smiles, formula, weight,
	description, properties, topology, source, pubchem_cid, version, created_at, updated_at`

// CompoundRepository is the PostgreSQL implementation of molecule.Repository.
type CompoundRepository struct {
	conn   *postgres.Connection
	logger logging.Logger
}

var _ molecule.Repository = (*CompoundRepository)(nil)

// NewCompoundRepository builds a repository over conn.
func NewCompoundRepository(conn *postgres.Connection, log logging.Logger) *CompoundRepository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &CompoundRepository{conn: conn, logger: log.Named("compound_repo")}
}

func (r *CompoundRepository) db() queryExecutor { return r.conn.DB() }

// Save upserts by canonical SMILES. An existing row is only updated when its
// version equals c.Version; c receives the stored id and new version.
func (r *CompoundRepository) Save(ctx context.Context, c *molecule.Compound) error {
	if c.ID == "" {
		c.ID = common.NewID()
	}
	if c.Version == 0 {
		c.Version = 1
	}
	synonyms := c.Synonyms
	if synonyms == nil {
		synonyms = []string{}
	}
	synJSON, err := toJSONB(synonyms)
	if err != nil {
		return err
	}
	propsJSON, err := toJSONB(c.Properties)
	if err != nil {
		return err
	}
	topoJSON, err := toJSONB(c.Topology)
	if err != nil {
		return err
	}
	var cid sql.NullInt64
	if c.PubChemCID > 0 {
		cid = sql.NullInt64{Int64: c.PubChemCID, Valid: true}
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}

	query := `
		INSERT INTO compounds (` + compoundColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (canonical_smiles) DO UPDATE SET
			name = EXCLUDED.name,
			synonyms = EXCLUDED.synonyms,
			smiles = EXCLUDED.smiles,
			formula = EXCLUDED.formula,
			weight = EXCLUDED.weight,
			description = EXCLUDED.description,
			properties = EXCLUDED.properties,
			topology = EXCLUDED.topology,
			source = EXCLUDED.source,
			pubchem_cid = COALESCE(EXCLUDED.pubchem_cid, compounds.pubchem_cid),
			version = compounds.version + 1,
			updated_at = EXCLUDED.updated_at
		WHERE compounds.version = EXCLUDED.version
		RETURNING id, version, created_at, updated_at`

	var id string
	err = r.db().QueryRowContext(ctx, query,
		string(c.ID), c.Name, synJSON, c.SMILES, c.CanonicalSMILES, c.Formula, c.Weight,
		c.Description, propsJSON, topoJSON, c.Source, cid, c.Version, c.CreatedAt, now,
	).Scan(&id, &c.Version, &c.CreatedAt, &c.UpdatedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return errors.New(errors.ErrCodeConflict, "compound was modified concurrently").
			WithDetail("canonical_smiles: " + c.CanonicalSMILES)
	}
	if err != nil {
		r.logger.Error("failed to save compound", logging.String("canonical_smiles", c.CanonicalSMILES), logging.Err(err))
		return errors.Wrap(err, errors.CodeDBQueryError, "failed to save compound")
	}
	c.ID = common.ID(id)
	return nil
}

// FindByID loads one compound.
func (r *CompoundRepository) FindByID(ctx context.Context, id common.ID) (*molecule.Compound, error) {
	row := r.db().QueryRowContext(ctx, `SELECT `+compoundColumns+` FROM compounds WHERE id = $1`, string(id))
	return r.scanOne(row, "id "+string(id))
}

// FindByCanonicalSMILES loads the compound with the given structure.
func (r *CompoundRepository) FindByCanonicalSMILES(ctx context.Context, canonical string) (*molecule.Compound, error) {
	row := r.db().QueryRowContext(ctx, `SELECT `+compoundColumns+` FROM compounds WHERE canonical_smiles = $1`, canonical)
	return r.scanOne(row, "canonical smiles "+canonical)
}

// FindByName matches the primary name first, then synonyms, ignoring case.
func (r *CompoundRepository) FindByName(ctx context.Context, name string) (*molecule.Compound, error) {
	row := r.db().QueryRowContext(ctx, `
		SELECT `+compoundColumns+` FROM compounds
		WHERE lower(name) = lower($1)
		   OR EXISTS (SELECT 1 FROM jsonb_array_elements_text(synonyms) s WHERE lower(s) = lower($1))
		ORDER BY (lower(name) = lower($1)) DESC, created_at
		LIMIT 1`, name)
	return r.scanOne(row, "name "+name)
}

// List returns compounds ordered by name.
func (r *CompoundRepository) List(ctx context.Context, page common.Pagination) (*common.PaginatedResult[*molecule.Compound], error) {
	total, err := r.Count(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := r.db().QueryContext(ctx,
		`SELECT `+compoundColumns+` FROM compounds ORDER BY lower(name), id LIMIT $1 OFFSET $2`,
		page.PageSize, page.Offset())
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDBQueryError, "failed to list compounds")
	}
	defer rows.Close()

	items := make([]*molecule.Compound, 0, page.PageSize)
	for rows.Next() {
		c, err := scanCompound(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeDBQueryError, "failed to iterate compounds")
	}
	return &common.PaginatedResult[*molecule.Compound]{
		Items:    items,
		Total:    total,
		Page:     page.Page,
		PageSize: page.PageSize,
	}, nil
}

// Delete removes a compound.
func (r *CompoundRepository) Delete(ctx context.Context, id common.ID) error {
	res, err := r.db().ExecContext(ctx, `DELETE FROM compounds WHERE id = $1`, string(id))
	if err != nil {
		return errors.Wrap(err, errors.CodeDBQueryError, "failed to delete compound")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, errors.CodeDBQueryError, "failed to delete compound")
	}
	if n == 0 {
		return errors.Newf(errors.ErrCodeCompoundNotFound, "compound %s not found", id)
	}
	return nil
}

// Count returns the number of stored compounds.
func (r *CompoundRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db().QueryRowContext(ctx, `SELECT COUNT(*) FROM compounds`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, errors.CodeDBQueryError, "failed to count compounds")
	}
	return n, nil
}

func (r *CompoundRepository) scanOne(row scanner, what string) (*molecule.Compound, error) {
	c, err := scanCompound(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.New(errors.ErrCodeCompoundNotFound, "compound not found").WithDetail(what)
	}
	return c, err
}

func scanCompound(s scanner) (*molecule.Compound, error) {
	var (
		c                           molecule.Compound
		id                          string
		synJSON, propsJSON, topJSON []byte
		cid                         sql.NullInt64
	)
	err := s.Scan(&id, &c.Name, &synJSON, &c.SMILES, &c.CanonicalSMILES, &c.Formula, &c.Weight,
		&c.Description, &propsJSON, &topJSON, &c.Source, &cid, &c.Version, &c.CreatedAt, &c.UpdatedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDBQueryError, "failed to scan compound")
	}
	c.ID = common.ID(id)
	c.PubChemCID = cid.Int64
	if err := fromJSONB(synJSON, &c.Synonyms); err != nil {
		return nil, err
	}
	if err := fromJSONB(propsJSON, &c.Properties); err != nil {
		return nil, err
	}
	if err := fromJSONB(topJSON, &c.Topology); err != nil {
		return nil, err
	}
	return &c, nil
}

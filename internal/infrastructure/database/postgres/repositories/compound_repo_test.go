package repositories

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/ChemSight/internal/domain/molecule"
	"github.com/turtacn/ChemSight/internal/infrastructure/database/postgres"
	"github.com/turtacn/ChemSight/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemSight/pkg/errors"
	"github.com/turtacn/ChemSight/pkg/types/common"
)

var compoundRowColumns = []string{
	"id", "name", "synonyms", "smiles", "canonical_smiles", "formula", "weight",
	"description", "properties", "topology", "source", "pubchem_cid", "version", "created_at", "updated_at",
}

type CompoundRepoTestSuite struct {
	suite.Suite
	db   *sql.DB
	mock sqlmock.Sqlmock
	repo *CompoundRepository
}

func (s *CompoundRepoTestSuite) SetupTest() {
	var err error
	s.db, s.mock, err = sqlmock.New()
	require.NoError(s.T(), err)
	s.repo = NewCompoundRepository(postgres.NewConnectionWithDB(s.db, nil), logging.NewNopLogger())
}

func (s *CompoundRepoTestSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
	s.db.Close()
}

func caffeineRow(now time.Time) []driver.Value {
	return []driver.Value{
		"0b7c1c3e-8f0a-4a53-9f59-2f1ad0a1f001", "Caffeine", []byte(`["guaranine"]`),
		"CN1C=NC2=C1C(=O)N(C(=O)N2C)C", "Cn1cnc2c1c(=O)n(C)c(=O)n2C", "C₈H₁₀N₄O₂", 194.19,
		"stimulant", []byte(`{"logP":-0.07,"polarSurfaceArea":58.44,"rotorBonds":0,"hBondDonors":0,"hBondAcceptors":6}`),
		[]byte(`{"atomCount":24,"bondCount":25,"ringCount":2,"aromaticRings":2,"heavyAtomCount":14,"formalCharge":0}`),
		"dictionary", int64(2519), 1, now, now,
	}
}

func (s *CompoundRepoTestSuite) TestSave_Insert() {
	c, _, err := molecule.NewCompound("Ethanol", "CCO", "smiles")
	s.Require().NoError(err)
	now := time.Now()

	s.mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO compounds")).
		WithArgs(string(c.ID), "Ethanol", []byte(`[]`), "CCO", c.CanonicalSMILES, c.Formula, c.Weight,
			"", sqlmock.AnyArg(), sqlmock.AnyArg(), "smiles", sql.NullInt64{}, 1, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "version", "created_at", "updated_at"}).
			AddRow(string(c.ID), 1, now, now))

	s.Require().NoError(s.repo.Save(context.Background(), c))
	s.Equal(1, c.Version)
}

func (s *CompoundRepoTestSuite) TestSave_UpsertAdoptsStoredID() {
	c, _, err := molecule.NewCompound("Ethyl alcohol", "OCC", "pubchem")
	s.Require().NoError(err)
	c.PubChemCID = 702
	now := time.Now()

	s.mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (canonical_smiles)")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "version", "created_at", "updated_at"}).
			AddRow("existing-id", 2, now, now))

	s.Require().NoError(s.repo.Save(context.Background(), c))
	s.Equal(common.ID("existing-id"), c.ID)
	s.Equal(2, c.Version)
}

func (s *CompoundRepoTestSuite) TestSave_VersionConflict() {
	c, _, err := molecule.NewCompound("Ethanol", "CCO", "smiles")
	s.Require().NoError(err)

	s.mock.ExpectQuery("INSERT INTO compounds").WillReturnError(sql.ErrNoRows)

	err = s.repo.Save(context.Background(), c)
	s.True(errors.IsConflict(err))
}

func (s *CompoundRepoTestSuite) TestFindByCanonicalSMILES() {
	now := time.Now()
	s.mock.ExpectQuery(regexp.QuoteMeta("FROM compounds WHERE canonical_smiles = $1")).
		WithArgs("Cn1cnc2c1c(=O)n(C)c(=O)n2C").
		WillReturnRows(sqlmock.NewRows(compoundRowColumns).AddRow(caffeineRow(now)...))

	c, err := s.repo.FindByCanonicalSMILES(context.Background(), "Cn1cnc2c1c(=O)n(C)c(=O)n2C")
	s.Require().NoError(err)
	s.Equal("Caffeine", c.Name)
	s.Equal([]string{"guaranine"}, c.Synonyms)
	s.Equal(58.44, c.Properties.TPSA)
	s.Equal(24, c.Topology.AtomCount)
	s.Equal(int64(2519), c.PubChemCID)
}

func (s *CompoundRepoTestSuite) TestFindByName_NotFound() {
	s.mock.ExpectQuery("jsonb_array_elements_text").
		WithArgs("nothing").
		WillReturnRows(sqlmock.NewRows(compoundRowColumns))

	_, err := s.repo.FindByName(context.Background(), "nothing")
	s.True(errors.IsCode(err, errors.ErrCodeCompoundNotFound))
	s.True(errors.IsNotFound(err))
}

func (s *CompoundRepoTestSuite) TestList() {
	now := time.Now()
	s.mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM compounds")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(1)))
	s.mock.ExpectQuery("ORDER BY lower\\(name\\), id LIMIT").
		WithArgs(20, 20).
		WillReturnRows(sqlmock.NewRows(compoundRowColumns).AddRow(caffeineRow(now)...))

	page, err := s.repo.List(context.Background(), common.Pagination{Page: 2, PageSize: 20})
	s.Require().NoError(err)
	s.Equal(int64(1), page.Total)
	s.Len(page.Items, 1)
}

func (s *CompoundRepoTestSuite) TestDelete() {
	s.mock.ExpectExec("DELETE FROM compounds").WithArgs("a").WillReturnResult(sqlmock.NewResult(0, 1))
	s.NoError(s.repo.Delete(context.Background(), "a"))

	s.mock.ExpectExec("DELETE FROM compounds").WithArgs("b").WillReturnResult(sqlmock.NewResult(0, 0))
	s.True(errors.IsNotFound(s.repo.Delete(context.Background(), "b")))
}

func TestCompoundRepoSuite(t *testing.T) {
	suite.Run(t, new(CompoundRepoTestSuite))
}

func TestAnalysisLogRepository_Record(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewAnalysisLogRepository(postgres.NewConnectionWithDB(db, nil))

	mock.ExpectExec("INSERT INTO analysis_log").
		WithArgs("what is benzene", sql.NullString{}, false, "not_found", int64(12)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Record(context.Background(), AnalysisLogEntry{
		Query:    "what is benzene",
		Source:   "not_found",
		Duration: 12 * time.Millisecond,
	}))
	require.NoError(t, mock.ExpectationsWereMet())
}

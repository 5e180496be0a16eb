package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ChemSight/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemSight/pkg/errors"
	"github.com/turtacn/ChemSight/pkg/types/chemical"
)

// run executes the CLI offline with no dotenv file.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--offline", "--env-file="}, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestNewRootCommand_Structure(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "chemsight", cmd.Use)

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"analyze", "measure", "validate", "compounds", "migrate", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
	for _, flag := range []string{"config", "output", "offline", "server", "timeout", "verbose"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), flag)
	}
}

func TestAnalyze_QueryJSON(t *testing.T) {
	out, _, err := run(t, "analyze", "tell", "me", "about", "caffeine", "-o", "json")
	require.NoError(t, err)

	var res chemical.ChemicalResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.IsDetected)
	assert.Equal(t, "Caffeine", res.Compound)
	assert.Equal(t, "C₈H₁₀N₄O₂", res.MolecularFormula)
	assert.InDelta(t, 194.19, res.MolecularWeight, 0.05)
	assert.NotEmpty(t, res.Structure2D)
}

func TestAnalyze_SMILESText(t *testing.T) {
	out, _, err := run(t, "analyze", "--smiles", "CCO", "--name", "Ethanol", "--bonds")
	require.NoError(t, err)
	assert.Contains(t, out, "Compound:  Ethanol")
	assert.Contains(t, out, "Formula:   C₂H₆O")
	assert.Contains(t, out, "BOND TYPE")
	assert.Contains(t, out, "DISTANCE")
}

func TestAnalyze_Table(t *testing.T) {
	out, _, err := run(t, "analyze", "benzene", "-o", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "BOND TYPE")
	assert.Contains(t, out, "C-C Aromatic")
	assert.NotContains(t, out, "Compound:")
}

func TestAnalyze_Undetected(t *testing.T) {
	out, _, err := run(t, "analyze", "xyzzy")
	require.NoError(t, err)
	assert.Equal(t, chemical.UnknownCompound+"\n"+chemical.UnknownDescription+"\n", out)
}

func TestAnalyze_ArgumentErrors(t *testing.T) {
	_, _, err := run(t, "analyze")
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))

	_, _, err = run(t, "analyze", "water", "--smiles", "O")
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))

	_, _, err = run(t, "analyze", "--smiles", "C1CC")
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidSMILES))
}

func TestMeasure(t *testing.T) {
	out, _, err := run(t, "measure", "--smiles", "c1ccccc1", "0", "1", "-o", "json")
	require.NoError(t, err)
	var m chemical.Measurement
	require.NoError(t, json.Unmarshal([]byte(out), &m))
	assert.Equal(t, "distance", m.Kind)
	assert.InDelta(t, 1.39, m.Value, 0.05)
	assert.Equal(t, []string{"C", "C"}, m.Elements)

	out, _, err = run(t, "measure", "--query", "benzene", "0", "1", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "angle C0-C1-C2 = 1")
}

func TestMeasure_Errors(t *testing.T) {
	_, _, err := run(t, "measure", "0", "1")
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))

	_, _, err = run(t, "measure", "--smiles", "CCO", "--query", "ethanol", "0", "1")
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))

	_, _, err = run(t, "measure", "--smiles", "CCO", "0", "x")
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))

	_, _, err = run(t, "measure", "--smiles", "CCO", "0")
	assert.Error(t, err)

	_, _, err = run(t, "measure", "--smiles", "CCO", "--kind", "torsion", "0", "1")
	assert.True(t, errors.IsCode(err, errors.ErrCodeMeasureKindInvalid))

	_, _, err = run(t, "measure", "--smiles", "CCO", "0", "99")
	assert.True(t, errors.IsCode(err, errors.ErrCodeAtomIndexOutOfRange))
}

func TestValidate(t *testing.T) {
	out, _, err := run(t, "validate", "OCC")
	require.NoError(t, err)
	assert.Contains(t, out, "valid: ")

	out, _, err = run(t, "validate", "C1CC")
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidSMILES))
	assert.Contains(t, out, "invalid:")
}

func TestCompounds(t *testing.T) {
	out, _, err := run(t, "compounds", "search", "caff")
	require.NoError(t, err)
	assert.Contains(t, out, "Caffeine")
	assert.Contains(t, out, "C₈H₁₀N₄O₂")

	out, _, err = run(t, "compounds", "similar", "c1ccccc1", "-k", "3", "-o", "json")
	require.NoError(t, err)
	var res chemical.SearchResponse
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.NotEmpty(t, res.Hits)
	assert.LessOrEqual(t, len(res.Hits), 3)
	assert.Equal(t, "Benzene", res.Hits[0].Name)
}

func TestVersion(t *testing.T) {
	out, _, err := run(t, "version", "-o", "json")
	require.NoError(t, err)
	var info BuildInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, Version, info.Version)
	assert.NotEmpty(t, info.GoVersion)
}

func TestUnknownOutputFormat(t *testing.T) {
	_, _, err := run(t, "version", "-o", "yaml")
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
}

func TestRemoteBackend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/analyze":
			assert.Equal(t, "aspirin", r.URL.Query().Get("q"))
			json.NewEncoder(w).Encode(&chemical.ChemicalResult{
				IsDetected:       true,
				Compound:         "Aspirin",
				SMILES:           "CC(=O)OC1=CC=CC=C1C(=O)O",
				MolecularFormula: "C9H8O4",
				Source:           chemical.SourcePubChem,
			})
		case "/api/v1/smiles/validate":
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"code":"CHEM_001","message":"invalid SMILES","detail":"unexpected ')'"}`))
		}
	}))
	defer srv.Close()

	out, _, err := run(t, "--server", srv.URL, "analyze", "aspirin")
	require.NoError(t, err)
	assert.Contains(t, out, "Compound:  Aspirin")
	assert.Contains(t, out, "Source:    pubchem")

	_, _, err = run(t, "--server", srv.URL, "validate", "C)")
	require.Error(t, err)
	var buf bytes.Buffer
	PrintError(&buf, err)
	assert.Equal(t, "Error: invalid SMILES: unexpected ')'\n", buf.String())
}

type fakeMigrator struct {
	version uint
	dirty   bool
	downBy  int
	closed  bool
}

func (f *fakeMigrator) Up() error                    { f.version = 3; return nil }
func (f *fakeMigrator) Down(steps int) error         { f.downBy = steps; f.version -= uint(steps); return nil }
func (f *fakeMigrator) Version() (uint, bool, error) { return f.version, f.dirty, nil }
func (f *fakeMigrator) Force(v int) error            { f.version = uint(v); f.dirty = false; return nil }
func (f *fakeMigrator) Close() error                 { f.closed = true; return nil }

func useFakeMigrator(t *testing.T, fm *fakeMigrator) *string {
	t.Helper()
	var gotDSN string
	orig := openMigrator
	openMigrator = func(dsn string, _ logging.Logger) (migrator, error) {
		gotDSN = dsn
		return fm, nil
	}
	t.Cleanup(func() { openMigrator = orig })
	return &gotDSN
}

func TestMigrate(t *testing.T) {
	fm := &fakeMigrator{}
	dsn := useFakeMigrator(t, fm)

	out, _, err := run(t, "migrate", "up")
	require.NoError(t, err)
	assert.Equal(t, "schema version 3\n", out)
	assert.True(t, fm.closed)
	assert.Contains(t, *dsn, "postgres://")

	out, _, err = run(t, "migrate", "down", "--steps", "2")
	require.NoError(t, err)
	assert.Equal(t, 2, fm.downBy)
	assert.Equal(t, "schema version 1\n", out)

	fm.dirty = true
	out, _, err = run(t, "migrate", "version")
	require.NoError(t, err)
	assert.Equal(t, "schema version 1 (dirty)\n", out)

	out, _, err = run(t, "migrate", "force", "2", "-o", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":2,"dirty":false}`, out)
}

func TestMigrate_ArgumentErrors(t *testing.T) {
	useFakeMigrator(t, &fakeMigrator{})

	_, _, err := run(t, "migrate", "down", "--steps", "0")
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))

	_, _, err = run(t, "migrate", "force", "latest")
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
}

func TestFormatTable(t *testing.T) {
	got := FormatTable([]string{"A", "LONG"}, [][]string{{"xyz", "1"}, {"q"}})
	want := "A    LONG\n---  ----\nxyz  1   \nq        \n"
	assert.Equal(t, want, got)
	assert.Empty(t, FormatTable(nil, nil))
}

package molecule

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ChemSight/pkg/errors"
)

func TestTPSA(t *testing.T) {
	tests := []struct {
		smiles string
		want   float64
	}{
		{benzeneSMILES, 0},
		{aspirinSMILES, 63.60},
		{caffeineSMILES, 61.82},
		{"CCO", 20.23},
		{"CC#N", 23.79},
		{"CN", 26.02},
		{"CNC", 12.03},
		{"CN(C)C", 3.24},
		{"c1ccncc1", 12.89},
		{"c1cc[nH]c1", 15.79},
		{"c1ccoc1", 13.14},
		{"C1CO1", 12.53},
		{"CC(=O)[O-]", 40.13},
		{"C[N+](C)(C)C", 0},
	}
	for _, tt := range tests {
		t.Run(tt.smiles, func(t *testing.T) {
			assert.InDelta(t, tt.want, TPSA(MustParseSMILES(tt.smiles)), 1e-6)
		})
	}
}

func TestLogP(t *testing.T) {
	assert.InDelta(t, 1.6866, LogP(MustParseSMILES(benzeneSMILES)), 1e-6)
	assert.Equal(t, 1.69, ComputeDescriptors(MustParseSMILES(benzeneSMILES)).LogP)

	// methane: one C1 carbon and four hydrocarbon hydrogens
	assert.InDelta(t, 0.1441+4*0.1230, LogP(MustParseSMILES("C")), 1e-9)

	// explicit and implicit hydrogens contribute alike
	m := MustParseSMILES("CCO")
	assert.InDelta(t, LogP(m), LogP(m.AddHydrogens()), 1e-9)

	// a hydroxyl lowers logP relative to the parent hydrocarbon
	assert.Less(t, LogP(MustParseSMILES("CCO")), LogP(MustParseSMILES("CCC")))
}

func TestCrippenTypes(t *testing.T) {
	types := CrippenTypes(MustParseSMILES("CC(=O)O"))
	assert.Equal(t, []string{"C1", "C5", "O11", "O12"}, types)

	types = CrippenTypes(MustParseSMILES("Cc1ccccc1O"))
	assert.Equal(t, "C8", types[0])
	assert.Equal(t, "C21", types[1])
	assert.Equal(t, "C18", types[2])
	assert.Equal(t, "C23", types[6])
	assert.Equal(t, "O2", types[7])
}

func TestRotatableBonds(t *testing.T) {
	tests := []struct {
		smiles string
		want   int
	}{
		{"CC", 0},
		{"CCCC", 1},
		{"CCCCC", 2},
		{"C1CCCCC1", 0},
		{"CC#CC", 0},
		{"c1ccccc1c1ccccc1", 1},
		{aspirinSMILES, 3},
	}
	for _, tt := range tests {
		t.Run(tt.smiles, func(t *testing.T) {
			assert.Equal(t, tt.want, RotatableBonds(MustParseSMILES(tt.smiles)))
		})
	}
}

func TestHBondCounts(t *testing.T) {
	m := MustParseSMILES("NCC(=O)O")
	assert.Equal(t, 2, HBondDonors(m))
	assert.Equal(t, 3, HBondAcceptors(m))
}

func TestFormula(t *testing.T) {
	tests := []struct {
		smiles  string
		ascii   string
		unicode string
	}{
		{"O", "H2O", "H₂O"},
		{"C", "CH4", "CH₄"},
		{"ClC(Cl)Cl", "CHCl3", "CHCl₃"},
		{"[NH4+]", "H4N+", "H₄N+"},
		{"OS(=O)(=O)[O-]", "HO4S-", "HO₄S-"},
		{"CC(=O)[O-]", "C2H3O2-", "C₂H₃O₂-"},
	}
	for _, tt := range tests {
		t.Run(tt.smiles, func(t *testing.T) {
			m := MustParseSMILES(tt.smiles)
			assert.Equal(t, tt.ascii, m.Formula())
			assert.Equal(t, tt.unicode, m.UnicodeFormula())
		})
	}
}

func TestSubscript_KeepsChargeDigits(t *testing.T) {
	assert.Equal(t, "Fe+2", Subscript("Fe+2"))
	assert.Equal(t, "C₁₂H₂₂O₁₁", Subscript("C12H22O11"))
}

func TestRound(t *testing.T) {
	assert.Equal(t, 78.11, Round(78.114, 2))
	assert.Equal(t, 180.16, Round(180.159, 2))
	assert.Equal(t, 63.6, Round(63.6, 1))
	assert.Equal(t, -0.07, Round(-0.0712, 2))
	assert.False(t, math.Signbit(Round(-0.0004, 2)), "negative zero")
}

func TestParseFormula(t *testing.T) {
	counts, err := ParseFormula("C₉H₈O₄")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"C": 9, "H": 8, "O": 4}, counts)
	assert.Equal(t, "C9H8O4", HillFormula(counts))

	counts, err = ParseFormula("H6C6")
	require.NoError(t, err)
	assert.Equal(t, "C6H6", HillFormula(counts))

	counts, err = ParseFormula("NaCl")
	require.NoError(t, err)
	assert.Equal(t, "ClNa", HillFormula(counts))

	_, err = ParseFormula("C6Xx6")
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnknownElement))
	_, err = ParseFormula("c6h6")
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidFormula))
	_, err = ParseFormula("C0")
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidFormula))
	_, err = ParseFormula(" ")
	assert.True(t, errors.IsValidation(err))
}

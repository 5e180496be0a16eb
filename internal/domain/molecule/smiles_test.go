package molecule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ChemSight/pkg/errors"
)

const (
	benzeneSMILES  = "c1ccccc1"
	caffeineSMILES = "CN1C=NC2=C1C(=O)N(C(=O)N2C)C"
	aspirinSMILES  = "CC(=O)OC1=CC=CC=C1C(=O)O"
)

func TestParseSMILES_ReferenceTopology(t *testing.T) {
	tests := []struct {
		name      string
		smiles    string
		atoms     int
		bonds     int
		rings     int
		aromatic  int
		heavy     int
		formula   string
		weight    float64
		hDonors   int
		hAccept   int
		rotatable int
	}{
		{"benzene", benzeneSMILES, 12, 12, 1, 1, 6, "C₆H₆", 78.11, 0, 0, 0},
		{"caffeine", caffeineSMILES, 24, 25, 2, 2, 14, "C₈H₁₀N₄O₂", 194.19, 0, 6, 0},
		{"aspirin", aspirinSMILES, 21, 21, 1, 1, 13, "C₉H₈O₄", 180.16, 1, 4, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ParseSMILES(tt.smiles)
			require.NoError(t, err)

			topo := ComputeTopology(m)
			assert.Equal(t, tt.atoms, topo.AtomCount, "atom count")
			assert.Equal(t, tt.bonds, topo.BondCount, "bond count")
			assert.Equal(t, tt.rings, topo.RingCount, "ring count")
			assert.Equal(t, tt.aromatic, topo.AromaticRings, "aromatic rings")
			assert.Equal(t, tt.heavy, topo.HeavyAtomCount, "heavy atoms")
			assert.Zero(t, topo.FormalCharge)

			assert.Equal(t, tt.formula, m.UnicodeFormula())
			assert.InDelta(t, tt.weight, m.MolecularWeight(), 1e-9)

			d := ComputeDescriptors(m)
			assert.Equal(t, tt.hDonors, d.HBondDonors)
			assert.Equal(t, tt.hAccept, d.HBondAcceptors)
			assert.Equal(t, tt.rotatable, d.RotatableBonds)
		})
	}
}

func TestParseSMILES_ImplicitHydrogens(t *testing.T) {
	tests := []struct {
		smiles string
		want   []int
	}{
		{"C", []int{4}},
		{"CC=O", []int{3, 1, 0}},
		{"C#N", []int{1, 0}},
		{"c1ccncc1", []int{1, 1, 1, 0, 1, 1}},
		{"[NH4+]", []int{4}},
		{"[CH2]", []int{2}},
		{"OS(=O)(=O)O", []int{1, 0, 0, 0, 1}},
		{"c1ccsc1", []int{1, 1, 1, 0, 1}},
		{"c1ccoc1", []int{1, 1, 1, 0, 1}},
		{"c1cc[nH]c1", []int{1, 1, 1, 1, 1}},
		{"c1cc[nH+]cc1", []int{1, 1, 1, 1, 1, 1}},
		{"O=c1cc[nH]cc1", []int{0, 0, 1, 1, 1, 1, 1}},
		{"Cn1cnc2c1c(=O)n(C)c(=O)n2C", []int{3, 0, 1, 0, 0, 0, 0, 0, 0, 3, 0, 0, 0, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.smiles, func(t *testing.T) {
			m := MustParseSMILES(tt.smiles)
			got := make([]int, len(m.Atoms))
			for i, a := range m.Atoms {
				got[i] = a.HCount
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSMILES_BracketAtoms(t *testing.T) {
	m := MustParseSMILES("[13CH3:7][C@@H](N)[O-]")
	require.Len(t, m.Atoms, 4)
	assert.Equal(t, 13, m.Atoms[0].Isotope)
	assert.Equal(t, 3, m.Atoms[0].HCount)
	assert.Equal(t, 7, m.Atoms[0].MapNum)
	assert.Equal(t, "@@", m.Atoms[1].Chirality)
	assert.Equal(t, 1, m.Atoms[1].HCount)
	assert.Equal(t, -1, m.Atoms[3].Charge)
	assert.Equal(t, -1, m.FormalCharge())

	m = MustParseSMILES("[Fe++]")
	assert.Equal(t, 2, m.Atoms[0].Charge)
	m = MustParseSMILES("[Cu+2]")
	assert.Equal(t, 2, m.Atoms[0].Charge)
}

func TestParseSMILES_RingClosures(t *testing.T) {
	m := MustParseSMILES("C%10CCCCC%10")
	assert.Equal(t, 1, m.RingInfo().NumRings())

	m = MustParseSMILES("C=1CCCCC1")
	b, ok := m.BondBetween(0, 5)
	require.True(t, ok)
	assert.Equal(t, BondDouble, m.Bonds[b].Order)

	m = MustParseSMILES("c1ccc2ccccc2c1")
	ri := m.RingInfo()
	assert.Equal(t, 2, ri.NumRings())
	assert.Equal(t, 2, ri.NumAromaticRings())
}

func TestParseSMILES_Components(t *testing.T) {
	m := MustParseSMILES("[Na+].[Cl-]")
	assert.Len(t, m.Components(), 2)
	assert.Zero(t, m.FormalCharge())
	assert.Equal(t, "ClNa", m.Formula())
}

func TestParseSMILES_BiphenylLinkIsSingle(t *testing.T) {
	m := MustParseSMILES("c1ccccc1c1ccccc1")
	b, ok := m.BondBetween(5, 6)
	require.True(t, ok)
	assert.Equal(t, BondSingle, m.Bonds[b].Order)
	assert.Equal(t, 2, m.RingInfo().NumRings())
}

func TestParseSMILES_Errors(t *testing.T) {
	tests := []struct {
		smiles string
		pos    int
		reason string
	}{
		{"", 0, "empty SMILES"},
		{"C(C", 1, "unclosed branch"},
		{"C)", 1, "unbalanced parenthesis"},
		{"C()C", 2, "empty branch"},
		{"C1CC", 1, "unclosed ring 1"},
		{"C=", 1, "dangling bond"},
		{"C=#C", 2, "consecutive bond symbols"},
		{"[Xx]", 1, "unknown element"},
		{"[C", 0, "unterminated bracket atom"},
		{"Q", 0, "unknown element"},
		{"Zn", 0, `element "Zn" must be written in brackets`},
		{"K", 0, `element "K" must be written in brackets`},
		{"C=1CC#1", 6, "conflicting bond orders"},
		{"C%1", 1, "must be followed by two digits"},
		{"(C)", 0, "branch without preceding atom"},
		{"C$", 1, "unexpected character"},
	}
	for _, tt := range tests {
		t.Run(tt.smiles, func(t *testing.T) {
			_, err := ParseSMILES(tt.smiles)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidSMILES))

			var se *SyntaxError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.pos, se.Pos)
			assert.Contains(t, se.Reason, tt.reason)
		})
	}
}

func TestParseSMILES_AromaticOutsideRing(t *testing.T) {
	_, err := ParseSMILES("cc")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidSMILES))
}

func TestParseSMILES_AromaticHeterocycles(t *testing.T) {
	tests := []struct {
		smiles  string
		formula string
	}{
		{"c1ccsc1", "C₄H₄S"},
		{"c1ccoc1", "C₄H₄O"},
		{"c1cc[nH]c1", "C₄H₅N"},
		{"O=c1cc[nH]cc1", "C₅H₅NO"},
		{"Cn1cnc2c1c(=O)n(C)c(=O)n2C", "C₈H₁₀N₄O₂"},
		{"Cn1c(=O)c2c(ncn2C)n(C)c1=O", "C₈H₁₀N₄O₂"},
		{"O=c1[nH]c(=O)c2[nH]cnc2[nH]1", "C₅H₄N₄O₂"},
	}
	for _, tt := range tests {
		t.Run(tt.smiles, func(t *testing.T) {
			m, err := ParseSMILES(tt.smiles)
			require.NoError(t, err)
			assert.Equal(t, tt.formula, m.UnicodeFormula())
			assert.Nil(t, ValidateSMILES(tt.smiles))
		})
	}
}

func TestParseSMILES_NotKekulizable(t *testing.T) {
	for _, s := range []string{"c1cccc1", "c1ccnc1"} {
		t.Run(s, func(t *testing.T) {
			_, err := ParseSMILES(s)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidSMILES))

			issues := ValidateSMILES(s)
			require.Len(t, issues, 1)
			assert.Equal(t, -1, issues[0].Position)
			assert.Contains(t, issues[0].Message, "kekulized")
		})
	}
}

func TestParseSMILES_ValenceViolation(t *testing.T) {
	_, err := ParseSMILES("C(=O)(=O)(=O)C")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValenceViolation))
}

func TestValidateSMILES(t *testing.T) {
	assert.Nil(t, ValidateSMILES(aspirinSMILES))

	issues := ValidateSMILES("CC(C")
	require.Len(t, issues, 1)
	assert.Equal(t, 2, issues[0].Position)
	assert.Contains(t, issues[0].Message, "unclosed branch")

	issues = ValidateSMILES("C(F)(F)(F)(F)F")
	require.Len(t, issues, 1)
	assert.Equal(t, -1, issues[0].Position)
	assert.Contains(t, issues[0].Message, "valence")
}

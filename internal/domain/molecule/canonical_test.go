package molecule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalSMILES_OrderIndependent(t *testing.T) {
	tests := []struct {
		name string
		a, b string
	}{
		{"ethanol", "CCO", "OCC"},
		{"acetic acid", "CC(=O)O", "OC(C)=O"},
		{"aspirin", "CC(=O)Oc1ccccc1C(=O)O", "OC(=O)c1ccccc1OC(C)=O"},
		{"pyridine", "c1ccncc1", "n1ccccc1"},
		{"isobutane", "CC(C)C", "C(C)(C)C"},
		{"salt", "[Na+].[Cl-]", "[Cl-].[Na+]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ca := CanonicalSMILES(MustParseSMILES(tt.a))
			cb := CanonicalSMILES(MustParseSMILES(tt.b))
			assert.Equal(t, ca, cb)
		})
	}
}

func TestCanonicalSMILES_KnownStrings(t *testing.T) {
	assert.Equal(t, "CCO", CanonicalSMILES(MustParseSMILES("OCC")))
	assert.Equal(t, "c1ccccc1", CanonicalSMILES(MustParseSMILES(benzeneSMILES)))
	assert.Equal(t, "", CanonicalSMILES(New()))
}

func TestCanonicalSMILES_RoundTrip(t *testing.T) {
	for _, s := range []string{
		benzeneSMILES, caffeineSMILES, aspirinSMILES,
		"[13CH3][NH3+]", "C1CC2CCC1CC2", "c1ccc2ccccc2c1", "C=C/C=C/C", "OS(=O)(=O)[O-].[K+]",
		"c1ccsc1", "Cn1cnc2c1c(=O)n(C)c(=O)n2C", "O=c1cc[nH]cc1",
	} {
		t.Run(s, func(t *testing.T) {
			m := MustParseSMILES(s)
			c := CanonicalSMILES(m)
			back, err := ParseSMILES(c)
			require.NoError(t, err, c)
			assert.Equal(t, c, CanonicalSMILES(back))
			assert.Equal(t, m.Formula(), back.Formula())
			assert.Equal(t, ComputeTopology(m), ComputeTopology(back))
		})
	}
}

func TestCanonicalSMILES_KekuleMatchesAromatic(t *testing.T) {
	tests := []struct {
		name             string
		kekule, aromatic string
	}{
		{"benzene", "C1=CC=CC=C1", benzeneSMILES},
		{"caffeine", caffeineSMILES, "Cn1cnc2c1c(=O)n(C)c(=O)n2C"},
		{"aspirin", aspirinSMILES, "CC(=O)Oc1ccccc1C(=O)O"},
		{"4-pyridone", "O=C1C=CNC=C1", "O=c1cc[nH]cc1"},
		{"thiophene", "C1=CSC=C1", "c1ccsc1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t,
				CanonicalSMILES(MustParseSMILES(tt.aromatic)),
				CanonicalSMILES(MustParseSMILES(tt.kekule)))
		})
	}

	assert.Equal(t, "c1ccccc1", CanonicalSMILES(MustParseSMILES("C1=CC=CC=C1")))
}

func TestCanonicalRanks_Unique(t *testing.T) {
	m := MustParseSMILES(caffeineSMILES)
	ranks := CanonicalRanks(m)
	seen := map[int]bool{}
	for _, r := range ranks {
		assert.False(t, seen[r], "duplicate rank %d", r)
		seen[r] = true
	}
	assert.Len(t, ranks, m.NumAtoms())
}

func TestSMILES_InputOrder(t *testing.T) {
	assert.Equal(t, "OCC", SMILES(MustParseSMILES("OCC")))
	assert.Equal(t, "CC(=O)O", SMILES(MustParseSMILES("CC(=O)O")))
}

func TestWriter_BracketAtoms(t *testing.T) {
	m := MustParseSMILES("[CH3][NH3+]")
	assert.Equal(t, "C[NH3+]", SMILES(m))

	m = MustParseSMILES("[CH2]C")
	assert.Equal(t, "[CH2]C", SMILES(m))

	m = MustParseSMILES("[2H]C")
	assert.Equal(t, "[2H]C", SMILES(m))
}

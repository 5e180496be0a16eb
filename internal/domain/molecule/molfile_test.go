package molecule

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ChemSight/pkg/errors"
)

func gridCoords(n int) [][3]float64 {
	coords := make([][3]float64, n)
	for i := range coords {
		coords[i] = [3]float64{float64(i) * 1.5, float64(i%3) * 0.25, -float64(i) * 0.125}
	}
	return coords
}

func TestMolBlock_RoundTrip(t *testing.T) {
	for _, s := range []string{benzeneSMILES, aspirinSMILES, caffeineSMILES, "C[NH3+]", "CC(=O)[O-]", "c1ccncc1"} {
		t.Run(s, func(t *testing.T) {
			m := MustParseSMILES(s)
			coords := gridCoords(m.NumAtoms())

			block, err := MolBlock(m, coords, "test")
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(block, "test\n"))
			assert.Contains(t, block, "V2000")
			assert.True(t, strings.HasSuffix(block, "M  END\n"))

			back, backCoords, err := ReadMolBlock(strings.NewReader(block))
			require.NoError(t, err)
			assert.Equal(t, m.Formula(), back.Formula())
			assert.Equal(t, m.FormalCharge(), back.FormalCharge())
			assert.Equal(t, m.NumBonds(), back.NumBonds())
			require.Len(t, backCoords, len(coords))
			for i := range coords {
				for k := 0; k < 3; k++ {
					assert.InDelta(t, coords[i][k], backCoords[i][k], 1e-4)
				}
			}
		})
	}
}

func TestMolBlock_ChargeLines(t *testing.T) {
	m := MustParseSMILES("[NH4+].[O-]C")
	block, err := MolBlock(m, gridCoords(m.NumAtoms()), "")
	require.NoError(t, err)
	assert.Contains(t, block, "M  CHG  2   1   1   2  -1")
}

func TestMolBlock_CoordinateMismatch(t *testing.T) {
	m := MustParseSMILES("CC")
	_, err := MolBlock(m, gridCoords(1), "")
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidMolBlock))
}

func TestReadMolBlock_Errors(t *testing.T) {
	tests := []struct {
		name  string
		block string
		code  errors.ErrorCode
	}{
		{"v3000", "x\n\n\n  0  0  0     0  0            999 V3000\nM  END\n", errors.ErrCodeInvalidMolBlock},
		{"no counts", "x\n\n\nnothing here\n", errors.ErrCodeInvalidMolBlock},
		{"truncated", "x\n\n\n  2  1  0  0  0  0  0  0  0  0999 V2000\n    0.0000    0.0000    0.0000 C   0  0\n", errors.ErrCodeInvalidMolBlock},
		{"unknown element", "x\n\n\n  1  0  0  0  0  0  0  0  0  0999 V2000\n    0.0000    0.0000    0.0000 Qq  0  0\nM  END\n", errors.ErrCodeUnknownElement},
		{"bad bond type", "x\n\n\n  2  1  0  0  0  0  0  0  0  0999 V2000\n    0.0000    0.0000    0.0000 C   0  0\n    1.5000    0.0000    0.0000 C   0  0\n  1  2  8  0\nM  END\n", errors.ErrCodeInvalidMolBlock},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ReadMolBlock(strings.NewReader(tt.block))
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, tt.code), err.Error())
		})
	}
}

package molecule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ChemSight/pkg/errors"
)

func morgan(t *testing.T, smiles string) *Fingerprint {
	t.Helper()
	fp, err := MorganFingerprint(MustParseSMILES(smiles), DefaultMorganRadius, DefaultMorganBits)
	require.NoError(t, err)
	return fp
}

func TestFingerprint_BitOperations(t *testing.T) {
	fp := NewFingerprint(FingerprintMorgan, make([]byte, 2), 16)
	assert.False(t, fp.GetBit(3))
	fp.SetBit(3)
	fp.SetBit(3)
	fp.SetBit(15)
	fp.SetBit(16)
	fp.SetBit(-1)
	assert.True(t, fp.GetBit(3))
	assert.True(t, fp.GetBit(15))
	assert.False(t, fp.GetBit(16))
	assert.Equal(t, 2, fp.NumOnBits)
	assert.Equal(t, []int{3, 15}, fp.OnBits())
	assert.Equal(t, []byte{0x08, 0x80}, fp.ToBytes())

	back := FingerprintFromBytes(FingerprintMorgan, fp.ToBytes(), 16)
	assert.Equal(t, 2, back.NumOnBits)
}

func TestMorganFingerprint_Deterministic(t *testing.T) {
	a := morgan(t, "CCO")
	b := morgan(t, "OCC")
	assert.Equal(t, a.Bits, b.Bits)
	assert.Greater(t, a.NumOnBits, 0)
	assert.Equal(t, DefaultMorganBits, a.Length)
	assert.Len(t, a.Bits, DefaultMorganBits/8)
}

func TestMorganFingerprint_RadiusGrowsBits(t *testing.T) {
	m := MustParseSMILES(caffeineSMILES)
	r0, err := MorganFingerprint(m, 0, 1024)
	require.NoError(t, err)
	r2, err := MorganFingerprint(m, 2, 1024)
	require.NoError(t, err)
	assert.Greater(t, r2.NumOnBits, r0.NumOnBits)
}

func TestMorganFingerprint_InvalidParameters(t *testing.T) {
	m := MustParseSMILES("CC")
	_, err := MorganFingerprint(m, -1, 1024)
	assert.True(t, errors.IsCode(err, errors.ErrCodeFingerprintFailed))
	_, err = MorganFingerprint(m, 2, 1001)
	assert.True(t, errors.IsCode(err, errors.ErrCodeFingerprintFailed))
	_, err = MorganFingerprint(m, 2, 0)
	assert.Error(t, err)
}

func TestSimilarity(t *testing.T) {
	aspirin := morgan(t, aspirinSMILES)
	same := morgan(t, "OC(=O)C1=CC=CC=C1OC(C)=O")
	caffeine := morgan(t, caffeineSMILES)

	for _, metric := range []SimilarityMetric{MetricTanimoto, MetricDice, MetricCosine} {
		s, err := Similarity(aspirin, same, metric)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, s, 1e-9, metric.String())

		s, err = Similarity(aspirin, caffeine, metric)
		require.NoError(t, err)
		assert.Less(t, s, 1.0)
		assert.GreaterOrEqual(t, s, 0.0)
	}

	empty := NewFingerprint(FingerprintMorgan, make([]byte, DefaultMorganBits/8), DefaultMorganBits)
	s, err := Tanimoto(empty, empty)
	require.NoError(t, err)
	assert.Zero(t, s)
}

func TestSimilarity_Errors(t *testing.T) {
	a := morgan(t, "CC")
	short := NewFingerprint(FingerprintMorgan, make([]byte, 8), 64)
	_, err := Tanimoto(a, short)
	assert.Error(t, err)
	_, err = Tanimoto(a, nil)
	assert.Error(t, err)
	_, err = Similarity(a, a, SimilarityMetric("manhattan"))
	assert.Error(t, err)
}

func TestParseSimilarityMetric(t *testing.T) {
	m, err := ParseSimilarityMetric("")
	require.NoError(t, err)
	assert.Equal(t, MetricTanimoto, m)

	m, err = ParseSimilarityMetric("dice")
	require.NoError(t, err)
	assert.Equal(t, MetricDice, m)

	_, err = ParseSimilarityMetric("euclid")
	assert.True(t, errors.IsValidation(err))
}

func TestClassifySimilarity(t *testing.T) {
	assert.Equal(t, "identical", ClassifySimilarity(1.0))
	assert.Equal(t, "high", ClassifySimilarity(0.9))
	assert.Equal(t, "moderate", ClassifySimilarity(0.75))
	assert.Equal(t, "low", ClassifySimilarity(0.5))
	assert.Equal(t, "dissimilar", ClassifySimilarity(0.1))
}

package molecule

import (
	"math"
	"math/bits"

	"github.com/turtacn/ChemSight/pkg/errors"
)

// SimilarityMetric defines the algorithm used for fingerprint comparison.
type SimilarityMetric string

const (
	MetricTanimoto SimilarityMetric = "tanimoto"
	MetricDice     SimilarityMetric = "dice"
	MetricCosine   SimilarityMetric = "cosine"
)

// IsValid checks if the similarity metric is supported.
func (m SimilarityMetric) IsValid() bool {
	switch m {
	case MetricTanimoto, MetricDice, MetricCosine:
		return true
	default:
		return false
	}
}

func (m SimilarityMetric) String() string {
	return string(m)
}

// ParseSimilarityMetric parses a string into a SimilarityMetric. The empty
// string selects Tanimoto.
func ParseSimilarityMetric(s string) (SimilarityMetric, error) {
	if s == "" {
		return MetricTanimoto, nil
	}
	m := SimilarityMetric(s)
	if m.IsValid() {
		return m, nil
	}
	return "", errors.New(errors.ErrCodeValidation, "unsupported similarity metric: "+s)
}

// Similarity compares two fingerprints of the same type and length.
func Similarity(fp1, fp2 *Fingerprint, metric SimilarityMetric) (float64, error) {
	if fp1 == nil || fp2 == nil {
		return 0, errors.New(errors.ErrCodeValidation, "fingerprint is nil")
	}
	if fp1.Type != fp2.Type || fp1.Length != fp2.Length {
		return 0, errors.New(errors.ErrCodeValidation, "fingerprints must have same type and length")
	}
	both, either := 0, 0
	for i := range fp1.Bits {
		both += bits.OnesCount8(fp1.Bits[i] & fp2.Bits[i])
		either += bits.OnesCount8(fp1.Bits[i] | fp2.Bits[i])
	}
	a, b := fp1.NumOnBits, fp2.NumOnBits

	switch metric {
	case MetricTanimoto:
		if either == 0 {
			return 0, nil
		}
		return float64(both) / float64(either), nil
	case MetricDice:
		if a+b == 0 {
			return 0, nil
		}
		return 2 * float64(both) / float64(a+b), nil
	case MetricCosine:
		if a == 0 || b == 0 {
			return 0, nil
		}
		return float64(both) / math.Sqrt(float64(a)*float64(b)), nil
	default:
		return 0, errors.New(errors.ErrCodeValidation, "unsupported similarity metric: "+metric.String())
	}
}

// Tanimoto is Similarity with MetricTanimoto.
func Tanimoto(fp1, fp2 *Fingerprint) (float64, error) {
	return Similarity(fp1, fp2, MetricTanimoto)
}

// Similarity thresholds.
const (
	ThresholdIdentical          = 0.99
	ThresholdHighSimilarity     = 0.85
	ThresholdModerateSimilarity = 0.70
	ThresholdLowSimilarity      = 0.50
)

// ClassifySimilarity returns a classification label for a similarity score.
func ClassifySimilarity(score float64) string {
	switch {
	case score >= ThresholdIdentical:
		return "identical"
	case score >= ThresholdHighSimilarity:
		return "high"
	case score >= ThresholdModerateSimilarity:
		return "moderate"
	case score >= ThresholdLowSimilarity:
		return "low"
	default:
		return "dissimilar"
	}
}

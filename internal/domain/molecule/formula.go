package molecule

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/turtacn/ChemSight/pkg/errors"
)

var subscriptDigits = []rune{'₀', '₁', '₂', '₃', '₄', '₅', '₆', '₇', '₈', '₉'}

// ElementCounts returns the number of atoms per element symbol with
// hydrogens (implicit and explicit) included.
func (m *Molecule) ElementCounts() map[string]int {
	counts := make(map[string]int)
	for _, a := range m.Atoms {
		counts[a.Symbol]++
		if a.HCount > 0 {
			counts["H"] += a.HCount
		}
	}
	return counts
}

// hillOrder sorts symbols C first, H second, the rest alphabetically. Without
// carbon every symbol (H included) is alphabetical.
func hillOrder(counts map[string]int) []string {
	syms := make([]string, 0, len(counts))
	for s := range counts {
		syms = append(syms, s)
	}
	_, hasC := counts["C"]
	sort.Slice(syms, func(i, j int) bool {
		if hasC {
			ri, rj := hillRank(syms[i]), hillRank(syms[j])
			if ri != rj {
				return ri < rj
			}
		}
		return syms[i] < syms[j]
	})
	return syms
}

func hillRank(s string) int {
	switch s {
	case "C":
		return 0
	case "H":
		return 1
	}
	return 2
}

// Formula returns the Hill formula in plain ASCII, e.g. "C6H6".
func (m *Molecule) Formula() string {
	f := HillFormula(m.ElementCounts())
	if q := m.FormalCharge(); q != 0 {
		f += chargeSuffix(q)
	}
	return f
}

// HillFormula writes element counts in Hill order.
func HillFormula(counts map[string]int) string {
	var sb strings.Builder
	for _, s := range hillOrder(counts) {
		if counts[s] <= 0 {
			continue
		}
		sb.WriteString(s)
		if counts[s] > 1 {
			sb.WriteString(strconv.Itoa(counts[s]))
		}
	}
	return sb.String()
}

// MaxFormulaCount bounds the per-element count accepted by ParseFormula.
const MaxFormulaCount = 1000

// ParseFormula reads a neutral molecular formula such as "C9H8O4" or "C₉H₈O₄"
// into element counts. Repeated symbols are summed.
func ParseFormula(s string) (map[string]int, error) {
	s = strings.TrimSpace(Unsubscript(s))
	if s == "" {
		return nil, errors.New(errors.ErrCodeInvalidFormula, "formula is empty")
	}
	counts := make(map[string]int)
	for i := 0; i < len(s); {
		if s[i] < 'A' || s[i] > 'Z' {
			return nil, errors.Newf(errors.ErrCodeInvalidFormula, "unexpected %q at position %d", s[i], i)
		}
		j := i + 1
		if j < len(s) && s[j] >= 'a' && s[j] <= 'z' {
			j++
		}
		sym := s[i:j]
		if _, ok := LookupElement(sym); !ok {
			return nil, errors.Newf(errors.ErrCodeUnknownElement, "unknown element %q", sym)
		}
		k := j
		for k < len(s) && s[k] >= '0' && s[k] <= '9' {
			k++
		}
		n := 1
		if k > j {
			v, err := strconv.Atoi(s[j:k])
			if err != nil || v == 0 || v > MaxFormulaCount {
				return nil, errors.Newf(errors.ErrCodeInvalidFormula, "unreasonable count %q for %s", s[j:k], sym)
			}
			n = v
		}
		counts[sym] += n
		i = k
	}
	return counts, nil
}

// Unsubscript rewrites Unicode subscript digits as ASCII digits.
func Unsubscript(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '₀' && r <= '₉' {
			return '0' + (r - '₀')
		}
		return r
	}, s)
}

// UnicodeFormula returns the Hill formula with subscript digits, e.g. "C₆H₆".
func (m *Molecule) UnicodeFormula() string {
	return Subscript(m.Formula())
}

// Subscript rewrites the element counts of an ASCII formula as Unicode
// subscripts. Digits following a charge sign are left untouched.
func Subscript(formula string) string {
	var sb strings.Builder
	inCharge := false
	for _, r := range formula {
		switch {
		case r == '+' || r == '-':
			inCharge = true
			sb.WriteRune(r)
		case r >= '0' && r <= '9' && !inCharge:
			sb.WriteRune(subscriptDigits[r-'0'])
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func chargeSuffix(q int) string {
	switch {
	case q == 1:
		return "+"
	case q == -1:
		return "-"
	case q > 1:
		return "+" + strconv.Itoa(q)
	default:
		return "-" + strconv.Itoa(-q)
	}
}

// MolecularWeight is the average molecular weight in g/mol rounded to two
// decimals.
func (m *Molecule) MolecularWeight() float64 {
	return Round(m.ExactAverageWeight(), 2)
}

// ExactAverageWeight is the unrounded sum of standard atomic weights.
func (m *Molecule) ExactAverageWeight() float64 {
	h := MustElement("H").Weight
	w := 0.0
	for _, a := range m.Atoms {
		if e, ok := LookupElement(a.Symbol); ok {
			w += e.Weight
		}
		w += float64(a.HCount) * h
	}
	return w
}

// Round rounds v half away from zero to the given number of decimals.
// Values that round to zero are returned as +0.
func Round(v float64, decimals int) float64 {
	p := math.Pow10(decimals)
	r := math.Round(v*p) / p
	if r == 0 {
		return 0
	}
	return r
}

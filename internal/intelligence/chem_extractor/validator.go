package chem_extractor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/turtacn/ChemSight/internal/domain/molecule"
	"github.com/turtacn/ChemSight/pkg/errors"
)

// ValidationResult holds the outcome of validating a single candidate.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Issues []string `json:"issues,omitempty"`
}

func (r *ValidationResult) fail(issue string) {
	r.Valid = false
	r.Issues = append(r.Issues, issue)
}

var (
	reCASFormat   = regexp.MustCompile(`^\d{2,7}-\d{2}-\d$`)
	reInChIPrefix = regexp.MustCompile(`^InChI=1S?/`)
	reInChILayer  = regexp.MustCompile(`/[a-z]`)
)

// stopWords are common query words that are never compound names.
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "of": true, "and": true, "or": true,
	"is": true, "what": true, "show": true, "me": true, "structure": true,
	"compound": true, "molecule": true, "chemical": true, "for": true,
	"with": true, "please": true, "find": true, "search": true,
}

// Validator checks that a candidate is plausible for its type.
type Validator struct{}

// NewValidator creates a Validator.
func NewValidator() *Validator { return &Validator{} }

// Validate runs the type-specific checks for c.
func (v *Validator) Validate(c *Candidate) ValidationResult {
	res := ValidationResult{Valid: true}
	if c == nil {
		res.fail("candidate is nil")
		return res
	}
	text := strings.TrimSpace(c.Text)
	if text == "" {
		res.fail("empty text")
		return res
	}

	var err error
	switch c.Type {
	case EntityCASNumber:
		err = ValidateCAS(text)
	case EntityMolecularFormula:
		err = ValidateFormula(text)
	case EntityInChI:
		err = ValidateInChI(text)
	case EntitySMILES:
		for _, issue := range SMILESIssues(text) {
			res.fail(issue)
		}
		return res
	case EntityCommonName, EntityIUPACName:
		if stopWords[strings.ToLower(text)] {
			res.fail("common word, not a compound name")
		}
		return res
	default:
		res.fail("unsupported entity type " + string(c.Type))
		return res
	}
	if err != nil {
		res.fail(err.Error())
	}
	return res
}

// ValidateCAS checks the NNNNNNN-NN-N format and the CAS check digit: the
// sum of each digit times its position counted from the right, modulo 10.
func ValidateCAS(cas string) error {
	if !reCASFormat.MatchString(cas) {
		return errors.Newf(errors.ErrCodeInvalidCAS, "CAS number %q does not match NNNNNNN-NN-N", cas)
	}
	parts := strings.Split(cas, "-")
	digits := parts[0] + parts[1]
	check, _ := strconv.Atoi(parts[2])

	sum := 0
	for i := 0; i < len(digits); i++ {
		sum += int(digits[len(digits)-1-i]-'0') * (i + 1)
	}
	if sum%10 != check {
		return errors.Newf(errors.ErrCodeInvalidCAS, "CAS number %q fails its check digit", cas)
	}
	return nil
}

// ValidateFormula checks that f is a molecular formula over known elements.
func ValidateFormula(f string) error {
	_, err := molecule.ParseFormula(f)
	return err
}

// NormaliseFormula rewrites f in ASCII Hill order, e.g. "H₆C₆" to "C6H6".
// Unparseable input is returned trimmed.
func NormaliseFormula(f string) string {
	counts, err := molecule.ParseFormula(f)
	if err != nil {
		return strings.TrimSpace(f)
	}
	return molecule.HillFormula(counts)
}

// ValidateInChI checks the standard InChI prefix, a non-empty formula layer
// and that every further layer starts with its lower-case prefix letter.
func ValidateInChI(s string) error {
	loc := reInChIPrefix.FindStringIndex(s)
	if loc == nil {
		return errors.New(errors.ErrCodeInvalidInChI, "InChI must start with 'InChI=1/' or 'InChI=1S/'")
	}
	layers := strings.Split(s[loc[1]:], "/")
	if layers[0] == "" {
		return errors.New(errors.ErrCodeInvalidInChI, "InChI has no formula layer")
	}
	for _, l := range layers[1:] {
		if !reInChILayer.MatchString("/" + l) {
			return errors.Newf(errors.ErrCodeInvalidInChI, "malformed InChI layer %q", l)
		}
	}
	return nil
}

// SMILESIssues returns the problems with s: bracket and ring-closure
// balance first, then whatever the SMILES parser rejects.
func SMILESIssues(s string) []string {
	var issues []string
	if !balanced(s, '(', ')') {
		issues = append(issues, "unbalanced parentheses")
	}
	if !balanced(s, '[', ']') {
		issues = append(issues, "unbalanced brackets")
	}
	if !ringClosuresPaired(s) {
		issues = append(issues, "unmatched ring closure digits")
	}
	if len(issues) > 0 {
		return issues
	}
	for _, is := range molecule.ValidateSMILES(s) {
		issues = append(issues, is.Message)
	}
	return issues
}

func balanced(s string, left, right rune) bool {
	depth := 0
	for _, ch := range s {
		switch ch {
		case left:
			depth++
		case right:
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}

// ringClosuresPaired counts ring-bond labels outside bracket atoms; each
// label must occur an even number of times.
func ringClosuresPaired(s string) bool {
	counts := make(map[string]int)
	inBracket := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch == '[':
			inBracket = true
		case ch == ']':
			inBracket = false
		case inBracket:
		case ch == '%':
			if i+2 < len(s) && isDigit(s[i+1]) && isDigit(s[i+2]) {
				counts[s[i+1:i+3]]++
				i += 2
			}
		case isDigit(ch):
			counts[string(ch)]++
		}
	}
	for _, c := range counts {
		if c%2 != 0 {
			return false
		}
	}
	return true
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

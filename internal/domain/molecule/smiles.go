package molecule

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/turtacn/ChemSight/pkg/errors"
)

// SyntaxError describes why a SMILES string was rejected. Pos is the 0-based
// byte offset of the offending character.
type SyntaxError struct {
	Pos    int
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("position %d: %s", e.Pos, e.Reason)
}

// Issue is a single validation finding returned by ValidateSMILES.
type Issue struct {
	Position int    `json:"position"`
	Message  string `json:"message"`
}

type ringOpen struct {
	atom   int
	order  BondOrder
	stereo byte
	pos    int
}

type smilesParser struct {
	src string
	pos int
	mol *Molecule

	prev        int
	pendingBond BondOrder
	pendingPos  int
	pendingDir  byte
	branches    []int
	branchPos   []int
	rings       map[int]ringOpen
	justOpened  bool
}

// ParseSMILES parses an OpenSMILES string into a Molecule with implicit
// hydrogens assigned and rings and aromaticity perceived.
//
// Supported: organic subset atoms, aromatic lowercase atoms, bracket atoms
// (isotope, chirality tag, hydrogen count, charge, atom class), bonds
// - = # : / \, branches, ring closures (digits and %nn) and '.' separated
// components. Errors are *errors.AppError with code CHEM_001 wrapping a
// *SyntaxError.
func ParseSMILES(s string) (*Molecule, error) {
	m, err := parseSMILES(s)
	if err != nil {
		return nil, err
	}
	AssignImplicitHydrogens(m)
	ri := m.RingInfo()
	for i, a := range m.Atoms {
		if a.Aromatic && !ri.AtomInRing(i) {
			return nil, invalidSMILES(&SyntaxError{Pos: -1, Reason: fmt.Sprintf("aromatic atom %d (%s) is not in a ring", i, strings.ToLower(a.Symbol))})
		}
	}
	// implicit aromatic bonds between rings (biphenyl written without '-') are single
	for bi, b := range m.Bonds {
		if b.Order == BondAromatic && !ri.BondInRing(bi) {
			m.Bonds[bi].Order = BondSingle
		}
	}
	if bad := ValenceIssues(m); len(bad) > 0 {
		a := m.Atoms[bad[0]]
		return nil, errors.New(errors.ErrCodeValenceViolation, "valence exceeded").
			WithDetail(fmt.Sprintf("atom %d (%s) has valence %d", bad[0], a.Symbol, m.BondValence(bad[0])+a.HCount))
	}
	if _, bad := kekuleMatching(m); bad >= 0 {
		return nil, invalidSMILES(&SyntaxError{Pos: -1, Reason: fmt.Sprintf("aromatic system at atom %d (%s) cannot be kekulized", bad, strings.ToLower(m.Atoms[bad].Symbol))})
	}
	m.rings = nil
	m.RingInfo()
	return m, nil
}

// MustParseSMILES is ParseSMILES that panics. For tests and static tables.
func MustParseSMILES(s string) *Molecule {
	m, err := ParseSMILES(s)
	if err != nil {
		panic(err)
	}
	return m
}

// ValidateSMILES parses s and returns the problems found, or nil when s is a
// valid SMILES string.
func ValidateSMILES(s string) []Issue {
	_, err := ParseSMILES(s)
	if err == nil {
		return nil
	}
	var se *SyntaxError
	if errors.As(err, &se) {
		return []Issue{{Position: se.Pos, Message: se.Reason}}
	}
	var ae *errors.AppError
	if errors.As(err, &ae) {
		msg := ae.Message
		if ae.Detail != "" {
			msg += ": " + ae.Detail
		}
		return []Issue{{Position: -1, Message: msg}}
	}
	return []Issue{{Position: -1, Message: err.Error()}}
}

func invalidSMILES(se *SyntaxError) error {
	return errors.Wrap(se, errors.ErrCodeInvalidSMILES, "invalid SMILES").WithDetail(se.Error())
}

func parseSMILES(s string) (*Molecule, error) {
	if strings.TrimSpace(s) == "" {
		return nil, invalidSMILES(&SyntaxError{Pos: 0, Reason: "empty SMILES"})
	}
	p := &smilesParser{src: s, mol: New(), prev: -1, rings: map[int]ringOpen{}}
	if err := p.run(); err != nil {
		return nil, invalidSMILES(err)
	}
	return p.mol, nil
}

func (p *smilesParser) fail(pos int, format string, args ...interface{}) *SyntaxError {
	return &SyntaxError{Pos: pos, Reason: fmt.Sprintf(format, args...)}
}

func (p *smilesParser) run() *SyntaxError {
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == '(':
			if p.prev < 0 {
				return p.fail(p.pos, "branch without preceding atom")
			}
			if p.pendingBond != 0 {
				return p.fail(p.pendingPos, "bond symbol before branch")
			}
			p.branches = append(p.branches, p.prev)
			p.branchPos = append(p.branchPos, p.pos)
			p.justOpened = true
			p.pos++
		case c == ')':
			if len(p.branches) == 0 {
				return p.fail(p.pos, "unbalanced parenthesis")
			}
			if p.justOpened {
				return p.fail(p.pos, "empty branch")
			}
			if p.pendingBond != 0 {
				return p.fail(p.pendingPos, "dangling bond")
			}
			p.prev = p.branches[len(p.branches)-1]
			p.branches = p.branches[:len(p.branches)-1]
			p.branchPos = p.branchPos[:len(p.branchPos)-1]
			p.pos++
		case c == '.':
			if p.pendingBond != 0 {
				return p.fail(p.pendingPos, "dangling bond")
			}
			if len(p.branches) > 0 {
				return p.fail(p.pos, "dot inside branch")
			}
			p.prev = -1
			p.pos++
		case c == '-' || c == '=' || c == '#' || c == ':' || c == '/' || c == '\\':
			if p.pendingBond != 0 {
				return p.fail(p.pos, "consecutive bond symbols")
			}
			if p.prev < 0 {
				return p.fail(p.pos, "bond without preceding atom")
			}
			p.pendingBond, p.pendingDir = bondFromSymbol(c)
			p.pendingPos = p.pos
			p.pos++
		case c >= '0' && c <= '9' || c == '%':
			if err := p.ringClosure(); err != nil {
				return err
			}
		case c == '[':
			if err := p.bracketAtom(); err != nil {
				return err
			}
		case isLetter(c):
			if err := p.organicAtom(); err != nil {
				return err
			}
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			// a SMILES ends at the first whitespace; the rest is a title
			p.pos = len(p.src)
		default:
			return p.fail(p.pos, "unexpected character %q", c)
		}
	}
	if p.pendingBond != 0 {
		return p.fail(p.pendingPos, "dangling bond")
	}
	if len(p.branches) > 0 {
		return p.fail(p.branchPos[len(p.branchPos)-1], "unclosed branch")
	}
	if len(p.rings) > 0 {
		lowest := -1
		for n := range p.rings {
			if lowest < 0 || n < lowest {
				lowest = n
			}
		}
		return p.fail(p.rings[lowest].pos, "unclosed ring %d", lowest)
	}
	if len(p.mol.Atoms) == 0 {
		return p.fail(0, "no atoms")
	}
	return nil
}

func bondFromSymbol(c byte) (BondOrder, byte) {
	switch c {
	case '=':
		return BondDouble, 0
	case '#':
		return BondTriple, 0
	case ':':
		return BondAromatic, 0
	case '/', '\\':
		return BondSingle, c
	default:
		return BondSingle, 0
	}
}

func isLetter(c byte) bool { return c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' }

func (p *smilesParser) attach(idx int) *SyntaxError {
	if p.prev >= 0 {
		order := p.pendingBond
		if order == 0 {
			order = p.defaultOrder(p.prev, idx)
		}
		bi, err := p.mol.AddBond(p.prev, idx, order)
		if err != nil {
			return p.fail(p.pos, "%v", err)
		}
		p.mol.Bonds[bi].Stereo = p.pendingDir
	}
	p.prev = idx
	p.pendingBond = 0
	p.pendingDir = 0
	p.justOpened = false
	return nil
}

func (p *smilesParser) defaultOrder(i, j int) BondOrder {
	if p.mol.Atoms[i].Aromatic && p.mol.Atoms[j].Aromatic {
		return BondAromatic
	}
	return BondSingle
}

func (p *smilesParser) organicAtom() *SyntaxError {
	start := p.pos
	c := p.src[p.pos]
	var sym string
	aromatic := false
	switch {
	case c == 'C' && p.peek(1) == 'l':
		sym = "Cl"
	case c == 'B' && p.peek(1) == 'r':
		sym = "Br"
	case c >= 'a' && c <= 'z':
		sym = strings.ToUpper(string(c))
		aromatic = true
		if !aromaticSubset[sym] {
			return p.fail(start, "unknown aromatic atom %q", string(c))
		}
	default:
		sym = string(c)
		if !organicSubset[sym] {
			if isLower(p.peek(1)) {
				if two := p.src[p.pos : p.pos+2]; isKnownElement(two) {
					return p.fail(start, "element %q must be written in brackets", two)
				}
			}
			if isKnownElement(sym) {
				return p.fail(start, "element %q must be written in brackets", sym)
			}
			return p.fail(start, "unknown element %q", sym)
		}
	}
	p.pos += len(sym)
	idx := p.mol.AddAtom(Atom{Symbol: sym, Aromatic: aromatic})
	return p.attach(idx)
}

func isLower(c byte) bool { return c >= 'a' && c <= 'z' }

func isKnownElement(sym string) bool {
	_, ok := LookupElement(sym)
	return ok
}

func (p *smilesParser) peek(off int) byte {
	if p.pos+off < len(p.src) {
		return p.src[p.pos+off]
	}
	return 0
}

func (p *smilesParser) bracketAtom() *SyntaxError {
	start := p.pos
	end := strings.IndexByte(p.src[p.pos:], ']')
	if end < 0 {
		return p.fail(start, "unterminated bracket atom")
	}
	body := p.src[p.pos+1 : p.pos+end]
	p.pos += end + 1
	if body == "" {
		return p.fail(start, "empty bracket atom")
	}

	i := 0
	var atom Atom
	atom.Bracket = true

	// isotope
	for i < len(body) && body[i] >= '0' && body[i] <= '9' {
		i++
	}
	if i > 0 {
		atom.Isotope, _ = strconv.Atoi(body[:i])
	}

	// symbol
	if i >= len(body) || !isLetter(body[i]) {
		return p.fail(start, "missing element symbol in bracket atom")
	}
	sym, aromatic, n := bracketSymbol(body[i:])
	if n == 0 {
		return p.fail(start+1+i, "unknown element in %q", "["+body+"]")
	}
	atom.Symbol, atom.Aromatic = sym, aromatic
	i += n

	// chirality
	if i < len(body) && body[i] == '@' {
		j := i
		for j < len(body) && body[j] == '@' {
			j++
		}
		for j < len(body) && (body[j] >= 'A' && body[j] <= 'Z' && body[j] != 'H' || body[j] >= '0' && body[j] <= '9') {
			j++
		}
		atom.Chirality = body[i:j]
		i = j
	}

	// hydrogen count
	if i < len(body) && body[i] == 'H' {
		i++
		atom.HCount = 1
		j := i
		for j < len(body) && body[j] >= '0' && body[j] <= '9' {
			j++
		}
		if j > i {
			atom.HCount, _ = strconv.Atoi(body[i:j])
		}
		i = j
	}

	// charge
	if i < len(body) && (body[i] == '+' || body[i] == '-') {
		sign := 1
		if body[i] == '-' {
			sign = -1
		}
		ch := body[i]
		i++
		j := i
		for j < len(body) && body[j] >= '0' && body[j] <= '9' {
			j++
		}
		switch {
		case j > i:
			v, _ := strconv.Atoi(body[i:j])
			atom.Charge = sign * v
			i = j
		default:
			count := 1
			for i < len(body) && body[i] == ch {
				count++
				i++
			}
			atom.Charge = sign * count
		}
	}

	// atom class
	if i < len(body) && body[i] == ':' {
		j := i + 1
		for j < len(body) && body[j] >= '0' && body[j] <= '9' {
			j++
		}
		if j == i+1 {
			return p.fail(start+1+i, "missing atom class number")
		}
		atom.MapNum, _ = strconv.Atoi(body[i+1 : j])
		i = j
	}

	if i != len(body) {
		return p.fail(start+1+i, "unexpected %q in bracket atom", body[i:])
	}

	idx := p.mol.AddAtom(atom)
	return p.attach(idx)
}

// bracketSymbol reads an element symbol at the start of s and returns it in
// canonical case, whether it was written aromatic, and the bytes consumed.
func bracketSymbol(s string) (string, bool, int) {
	if len(s) >= 2 && isLower(s[0]) && isLower(s[1]) {
		two := strings.ToUpper(s[:1]) + s[1:2]
		if two == "Se" || two == "As" || two == "Te" {
			return two, true, 2
		}
	}
	if isLower(s[0]) {
		one := strings.ToUpper(s[:1])
		if aromaticSubset[one] {
			return one, true, 1
		}
		return "", false, 0
	}
	if len(s) >= 2 && isLower(s[1]) {
		if _, ok := LookupElement(s[:2]); ok {
			return s[:2], false, 2
		}
	}
	if _, ok := LookupElement(s[:1]); ok {
		return s[:1], false, 1
	}
	return "", false, 0
}

func (p *smilesParser) ringClosure() *SyntaxError {
	start := p.pos
	if p.prev < 0 {
		return p.fail(start, "ring closure without preceding atom")
	}
	var num int
	if p.src[p.pos] == '%' {
		if p.pos+2 >= len(p.src) || !isDigit(p.src[p.pos+1]) || !isDigit(p.src[p.pos+2]) {
			return p.fail(start, "'%%' must be followed by two digits")
		}
		num, _ = strconv.Atoi(p.src[p.pos+1 : p.pos+3])
		p.pos += 3
	} else {
		num = int(p.src[p.pos] - '0')
		p.pos++
	}

	open, ok := p.rings[num]
	if !ok {
		p.rings[num] = ringOpen{atom: p.prev, order: p.pendingBond, stereo: p.pendingDir, pos: start}
		p.pendingBond = 0
		p.pendingDir = 0
		return nil
	}

	delete(p.rings, num)
	order := p.pendingBond
	switch {
	case order == 0:
		order = open.order
	case open.order != 0 && open.order != order:
		return p.fail(start, "conflicting bond orders for ring %d", num)
	}
	if order == 0 {
		order = p.defaultOrder(open.atom, p.prev)
	}
	if open.atom == p.prev {
		return p.fail(start, "ring %d closes on the same atom", num)
	}
	bi, err := p.mol.AddBond(open.atom, p.prev, order)
	if err != nil {
		return p.fail(start, "ring %d duplicates an existing bond", num)
	}
	if p.pendingDir != 0 {
		p.mol.Bonds[bi].Stereo = p.pendingDir
	} else {
		p.mol.Bonds[bi].Stereo = open.stereo
	}
	p.pendingBond = 0
	p.pendingDir = 0
	return nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

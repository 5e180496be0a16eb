package molecule

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/turtacn/ChemSight/pkg/errors"
)

// molCharge maps the V2000 atom-block charge code to a formal charge.
var molCharge = map[int]int{1: 3, 2: 2, 3: 1, 5: -1, 6: -2, 7: -3}

func chargeCode(q int) int {
	for code, c := range molCharge {
		if c == q {
			return code
		}
	}
	return 0
}

// WriteMolBlock writes m as a MOL V2000 block with one coordinate triple per
// atom. Charges are written both in the atom block and as M  CHG lines.
func WriteMolBlock(w io.Writer, m *Molecule, coords [][3]float64, title string) error {
	if len(coords) != len(m.Atoms) {
		return errors.Newf(errors.ErrCodeInvalidMolBlock, "have %d coordinates for %d atoms", len(coords), len(m.Atoms))
	}
	if len(m.Atoms) > 999 || len(m.Bonds) > 999 {
		return errors.New(errors.ErrCodeMoleculeTooLarge, "V2000 blocks hold at most 999 atoms and bonds")
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, title)
	fmt.Fprintln(bw, "  ChemSight          3D")
	fmt.Fprintln(bw)
	fmt.Fprintf(bw, "%3d%3d  0  0  0  0  0  0  0  0999 V2000\n", len(m.Atoms), len(m.Bonds))
	for i, a := range m.Atoms {
		c := coords[i]
		fmt.Fprintf(bw, "%10.4f%10.4f%10.4f %-3s 0%3d  0  0  0  0  0  0  0  0  0  0\n",
			c[0], c[1], c[2], a.Symbol, chargeCode(a.Charge))
	}
	for _, b := range m.Bonds {
		fmt.Fprintf(bw, "%3d%3d%3d  0\n", b.Begin+1, b.End+1, int(b.Order))
	}
	var charged []int
	for i, a := range m.Atoms {
		if a.Charge != 0 {
			charged = append(charged, i)
		}
	}
	for start := 0; start < len(charged); start += 8 {
		end := start + 8
		if end > len(charged) {
			end = len(charged)
		}
		fmt.Fprintf(bw, "M  CHG%3d", end-start)
		for _, i := range charged[start:end] {
			fmt.Fprintf(bw, " %3d %3d", i+1, m.Atoms[i].Charge)
		}
		fmt.Fprintln(bw)
	}
	fmt.Fprintln(bw, "M  END")
	return bw.Flush()
}

// MolBlock is WriteMolBlock into a string.
func MolBlock(m *Molecule, coords [][3]float64, title string) (string, error) {
	var sb strings.Builder
	if err := WriteMolBlock(&sb, m, coords, title); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// ReadMolBlock parses the first V2000 molecule from r and returns it with its
// coordinates. Implicit hydrogens are assigned from default valences; bond
// type 4 marks both atoms aromatic.
func ReadMolBlock(r io.Reader) (*Molecule, [][3]float64, error) {
	sc := bufio.NewScanner(r)
	var lines []string
	for sc.Scan() {
		lines = append(lines, strings.TrimRight(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrCodeInvalidMolBlock, "read mol block")
	}

	countsAt := -1
	for i, l := range lines {
		if strings.Contains(l, "V2000") {
			countsAt = i
			break
		}
		if strings.Contains(l, "V3000") {
			return nil, nil, errors.New(errors.ErrCodeInvalidMolBlock, "V3000 blocks are not supported")
		}
	}
	if countsAt < 0 || len(lines[countsAt]) < 6 {
		return nil, nil, errors.New(errors.ErrCodeInvalidMolBlock, "counts line with V2000 not found")
	}
	nAtoms, err1 := fixedInt(lines[countsAt], 0, 3)
	nBonds, err2 := fixedInt(lines[countsAt], 3, 6)
	if err1 != nil || err2 != nil {
		return nil, nil, errors.New(errors.ErrCodeInvalidMolBlock, "malformed counts line")
	}
	body := lines[countsAt+1:]
	if len(body) < nAtoms+nBonds {
		return nil, nil, errors.Newf(errors.ErrCodeInvalidMolBlock, "expected %d atom and %d bond lines", nAtoms, nBonds)
	}

	m := New()
	coords := make([][3]float64, 0, nAtoms)
	for i := 0; i < nAtoms; i++ {
		l := body[i]
		if len(l) < 34 {
			return nil, nil, errors.Newf(errors.ErrCodeInvalidMolBlock, "atom line %d too short", i+1)
		}
		var xyz [3]float64
		for k := 0; k < 3; k++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(l[k*10:(k+1)*10]), 64)
			if err != nil {
				return nil, nil, errors.Newf(errors.ErrCodeInvalidMolBlock, "atom line %d: bad coordinate", i+1)
			}
			xyz[k] = v
		}
		sym := strings.TrimSpace(l[31:34])
		if _, ok := LookupElement(sym); !ok {
			return nil, nil, errors.Newf(errors.ErrCodeUnknownElement, "atom line %d: unknown element %q", i+1, sym)
		}
		a := Atom{Symbol: sym}
		if len(l) >= 39 {
			if code, err := fixedInt(l, 36, 39); err == nil {
				a.Charge = molCharge[code]
			}
		}
		m.AddAtom(a)
		coords = append(coords, xyz)
	}
	for i := 0; i < nBonds; i++ {
		l := body[nAtoms+i]
		from, e1 := fixedInt(l, 0, 3)
		to, e2 := fixedInt(l, 3, 6)
		typ, e3 := fixedInt(l, 6, 9)
		if e1 != nil || e2 != nil || e3 != nil {
			return nil, nil, errors.Newf(errors.ErrCodeInvalidMolBlock, "bond line %d malformed", i+1)
		}
		if typ < 1 || typ > 4 {
			return nil, nil, errors.Newf(errors.ErrCodeInvalidMolBlock, "bond line %d: unsupported bond type %d", i+1, typ)
		}
		if _, err := m.AddBond(from-1, to-1, BondOrder(typ)); err != nil {
			return nil, nil, errors.Wrapf(err, errors.ErrCodeInvalidMolBlock, "bond line %d", i+1)
		}
		if BondOrder(typ) == BondAromatic {
			m.Atoms[from-1].Aromatic = true
			m.Atoms[to-1].Aromatic = true
		}
	}

	for _, l := range body[nAtoms+nBonds:] {
		if strings.HasPrefix(l, "M  END") {
			break
		}
		if strings.HasPrefix(l, "M  CHG") {
			fields := strings.Fields(l[6:])
			for k := 1; k+1 < len(fields); k += 2 {
				idx, e1 := strconv.Atoi(fields[k])
				q, e2 := strconv.Atoi(fields[k+1])
				if e1 == nil && e2 == nil && idx >= 1 && idx <= len(m.Atoms) {
					m.Atoms[idx-1].Charge = q
				}
			}
		}
	}

	assignMolHydrogens(m)
	return m, coords, nil
}

// assignMolHydrogens fills implicit hydrogens for atoms read from a MOL
// block, shifting the valence by the formal charge for N, O and S cations
// and anions.
func assignMolHydrogens(m *Molecule) {
	for i, a := range m.Atoms {
		if a.IsHydrogen() {
			continue
		}
		h := implicitHydrogens(m, i)
		switch {
		case a.Charge > 0 && (a.Symbol == "N" || a.Symbol == "O" || a.Symbol == "S" || a.Symbol == "P"):
			h += a.Charge
		case a.Charge != 0:
			h -= abs(a.Charge)
		}
		if h < 0 {
			h = 0
		}
		m.Atoms[i].HCount = h
	}
	m.rings = nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func fixedInt(line string, from, to int) (int, error) {
	if len(line) < to {
		if len(line) <= from {
			return 0, fmt.Errorf("field %d:%d missing", from, to)
		}
		to = len(line)
	}
	return strconv.Atoi(strings.TrimSpace(line[from:to]))
}

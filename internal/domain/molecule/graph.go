package molecule

import (
	"fmt"
	"sort"

	"github.com/turtacn/ChemSight/pkg/errors"
)

// BondOrder is the multiplicity of a bond. BondAromatic marks bonds written
// between lowercase (aromatic) SMILES atoms.
type BondOrder int

const (
	BondSingle   BondOrder = 1
	BondDouble   BondOrder = 2
	BondTriple   BondOrder = 3
	BondAromatic BondOrder = 4
)

// Valence is the bond's contribution to an atom's explicit valence. Aromatic
// bonds count as 1; the extra π electron is handled by the aromatic atom
// correction in the hydrogen model.
func (o BondOrder) Valence() int {
	if o == BondAromatic {
		return 1
	}
	return int(o)
}

// Multiplicity is the bond order used for geometry (1.5 for aromatic).
func (o BondOrder) Multiplicity() float64 {
	if o == BondAromatic {
		return 1.5
	}
	return float64(o)
}

// Symbol is the SMILES bond symbol.
func (o BondOrder) Symbol() string {
	switch o {
	case BondDouble:
		return "="
	case BondTriple:
		return "#"
	case BondAromatic:
		return ":"
	default:
		return "-"
	}
}

func (o BondOrder) String() string {
	switch o {
	case BondSingle:
		return "single"
	case BondDouble:
		return "double"
	case BondTriple:
		return "triple"
	case BondAromatic:
		return "aromatic"
	default:
		return fmt.Sprintf("BondOrder(%d)", int(o))
	}
}

// Atom is a vertex of the molecular graph.
type Atom struct {
	Symbol  string `json:"symbol"`
	Isotope int    `json:"isotope,omitempty"`
	Charge  int    `json:"charge,omitempty"`
	// HCount is the number of implicit (or bracket-declared) hydrogens. Hydrogens
	// present as separate atoms are not included.
	HCount   int  `json:"hCount"`
	Aromatic bool `json:"aromatic,omitempty"`
	Bracket  bool `json:"bracket,omitempty"`
	MapNum   int  `json:"mapNum,omitempty"`
	// Chirality keeps the @/@@ tag as written; it does not influence geometry.
	Chirality string `json:"chirality,omitempty"`
}

// IsHydrogen reports whether the atom is a hydrogen.
func (a Atom) IsHydrogen() bool { return a.Symbol == "H" }

// Element returns the element record of the atom.
func (a Atom) Element() Element {
	e, _ := LookupElement(a.Symbol)
	return e
}

// Bond is an edge of the molecular graph.
type Bond struct {
	Begin int       `json:"begin"`
	End   int       `json:"end"`
	Order BondOrder `json:"order"`
	// Stereo carries the '/' or '\\' directional marker, 0 otherwise.
	Stereo byte `json:"-"`
}

// Other returns the bond's atom that is not a.
func (b Bond) Other(a int) int {
	if b.Begin == a {
		return b.End
	}
	return b.Begin
}

// Molecule is an undirected multigraph-free molecular graph. Atom and bond
// indices are stable for the molecule's lifetime.
type Molecule struct {
	Atoms []Atom
	Bonds []Bond

	adj   [][]int // atom -> bond indices
	rings *RingInfo
}

// New returns an empty molecule.
func New() *Molecule { return &Molecule{} }

// NumAtoms returns the number of atoms, including explicit hydrogens.
func (m *Molecule) NumAtoms() int { return len(m.Atoms) }

// NumBonds returns the number of bonds.
func (m *Molecule) NumBonds() int { return len(m.Bonds) }

// AddAtom appends a and returns its index.
func (m *Molecule) AddAtom(a Atom) int {
	m.Atoms = append(m.Atoms, a)
	m.adj = append(m.adj, nil)
	m.rings = nil
	return len(m.Atoms) - 1
}

// AddBond connects atoms i and j and returns the bond index.
func (m *Molecule) AddBond(i, j int, order BondOrder) (int, error) {
	if i < 0 || j < 0 || i >= len(m.Atoms) || j >= len(m.Atoms) {
		return -1, errors.Newf(errors.ErrCodeAtomIndexOutOfRange, "bond %d-%d out of range [0,%d)", i, j, len(m.Atoms))
	}
	if i == j {
		return -1, errors.Newf(errors.ErrCodeInvalidSMILES, "atom %d cannot bond to itself", i)
	}
	if _, ok := m.BondBetween(i, j); ok {
		return -1, errors.Newf(errors.ErrCodeInvalidSMILES, "atoms %d and %d are already bonded", i, j)
	}
	m.Bonds = append(m.Bonds, Bond{Begin: i, End: j, Order: order})
	idx := len(m.Bonds) - 1
	m.adj[i] = append(m.adj[i], idx)
	m.adj[j] = append(m.adj[j], idx)
	m.rings = nil
	return idx, nil
}

// BondsOf returns the indices of the bonds incident to atom i.
func (m *Molecule) BondsOf(i int) []int { return m.adj[i] }

// Neighbors returns the atoms bonded to atom i, in bond insertion order.
func (m *Molecule) Neighbors(i int) []int {
	out := make([]int, 0, len(m.adj[i]))
	for _, b := range m.adj[i] {
		out = append(out, m.Bonds[b].Other(i))
	}
	return out
}

// BondBetween returns the index of the bond joining i and j.
func (m *Molecule) BondBetween(i, j int) (int, bool) {
	if i < 0 || i >= len(m.adj) {
		return -1, false
	}
	for _, b := range m.adj[i] {
		if m.Bonds[b].Other(i) == j {
			return b, true
		}
	}
	return -1, false
}

// Degree is the number of explicit neighbours of atom i.
func (m *Molecule) Degree(i int) int { return len(m.adj[i]) }

// HeavyDegree is the number of non-hydrogen neighbours of atom i.
func (m *Molecule) HeavyDegree(i int) int {
	n := 0
	for _, b := range m.adj[i] {
		if !m.Atoms[m.Bonds[b].Other(i)].IsHydrogen() {
			n++
		}
	}
	return n
}

// BondValence is the sum of bond valence contributions at atom i.
func (m *Molecule) BondValence(i int) int {
	v := 0
	for _, b := range m.adj[i] {
		v += m.Bonds[b].Order.Valence()
	}
	return v
}

// TotalHydrogens returns implicit plus explicit hydrogens on atom i.
func (m *Molecule) TotalHydrogens(i int) int {
	h := m.Atoms[i].HCount
	for _, b := range m.adj[i] {
		if m.Atoms[m.Bonds[b].Other(i)].IsHydrogen() {
			h++
		}
	}
	return h
}

// HeavyAtomCount counts non-hydrogen atoms.
func (m *Molecule) HeavyAtomCount() int {
	n := 0
	for _, a := range m.Atoms {
		if !a.IsHydrogen() {
			n++
		}
	}
	return n
}

// ImplicitHydrogenCount is the sum of HCount over all atoms.
func (m *Molecule) ImplicitHydrogenCount() int {
	n := 0
	for _, a := range m.Atoms {
		n += a.HCount
	}
	return n
}

// TotalAtomCount counts every atom once hydrogens are made explicit.
func (m *Molecule) TotalAtomCount() int { return len(m.Atoms) + m.ImplicitHydrogenCount() }

// TotalBondCount counts every bond once hydrogens are made explicit.
func (m *Molecule) TotalBondCount() int { return len(m.Bonds) + m.ImplicitHydrogenCount() }

// FormalCharge is the net charge of the molecule.
func (m *Molecule) FormalCharge() int {
	q := 0
	for _, a := range m.Atoms {
		q += a.Charge
	}
	return q
}

// Clone returns a deep copy.
func (m *Molecule) Clone() *Molecule {
	c := &Molecule{
		Atoms: append([]Atom(nil), m.Atoms...),
		Bonds: append([]Bond(nil), m.Bonds...),
		adj:   make([][]int, len(m.adj)),
	}
	for i, a := range m.adj {
		c.adj[i] = append([]int(nil), a...)
	}
	return c
}

// AddHydrogens returns a copy in which every implicit hydrogen is an explicit
// atom. Existing atoms keep their indices; new hydrogens are appended in
// parent atom order.
func (m *Molecule) AddHydrogens() *Molecule {
	c := m.Clone()
	n := len(c.Atoms)
	for i := 0; i < n; i++ {
		h := c.Atoms[i].HCount
		c.Atoms[i].HCount = 0
		for k := 0; k < h; k++ {
			hi := c.AddAtom(Atom{Symbol: "H"})
			// cannot fail: fresh atom, distinct indices
			_, _ = c.AddBond(i, hi, BondSingle)
		}
	}
	c.rings = nil
	return c
}

// Components returns the connected components as sorted atom index lists.
func (m *Molecule) Components() [][]int {
	seen := make([]bool, len(m.Atoms))
	var comps [][]int
	for s := range m.Atoms {
		if seen[s] {
			continue
		}
		var comp []int
		stack := []int{s}
		seen[s] = true
		for len(stack) > 0 {
			a := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			comp = append(comp, a)
			for _, nb := range m.Neighbors(a) {
				if !seen[nb] {
					seen[nb] = true
					stack = append(stack, nb)
				}
			}
		}
		sort.Ints(comp)
		comps = append(comps, comp)
	}
	return comps
}

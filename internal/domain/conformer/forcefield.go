package conformer

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/turtacn/ChemSight/internal/domain/molecule"
)

// Hybridisation of an atom as far as ideal angles are concerned.
type Hybridisation int

const (
	SP3 Hybridisation = iota
	SP2
	SP
)

func (h Hybridisation) String() string {
	switch h {
	case SP:
		return "sp"
	case SP2:
		return "sp2"
	default:
		return "sp3"
	}
}

// Ideal valence angles in degrees.
const (
	AngleSP      = 180.0
	AngleSP2     = 120.0
	AngleSP3     = 109.47
	AngleSP3N    = 107.0
	AngleSP3O    = 104.5
	paulingShift = 0.71
)

// Energy term weights.
const (
	weightBond      = 1.0
	weightAngle     = 0.5
	weightRepulsion = 0.2
)

// singleBondLength holds reference single-bond lengths in Å, keyed by the
// alphabetically ordered element pair. Other pairs use covalent radii.
var singleBondLength = map[[2]string]float64{
	{"C", "C"}:  1.54,
	{"C", "N"}:  1.47,
	{"C", "O"}:  1.43,
	{"C", "H"}:  1.09,
	{"C", "S"}:  1.82,
	{"C", "F"}:  1.35,
	{"C", "Cl"}: 1.77,
	{"Br", "C"}: 1.94,
	{"C", "I"}:  2.14,
	{"H", "N"}:  1.01,
	{"H", "O"}:  0.96,
	{"H", "S"}:  1.34,
	{"N", "N"}:  1.45,
	{"N", "O"}:  1.40,
	{"O", "O"}:  1.48,
	{"O", "P"}:  1.63,
	{"O", "S"}:  1.57,
	{"H", "H"}:  0.74,
}

// aromaticBondLength holds measured aromatic bond lengths.
var aromaticBondLength = map[[2]string]float64{
	{"C", "C"}: 1.39,
	{"C", "N"}: 1.34,
	{"C", "O"}: 1.36,
	{"C", "S"}: 1.71,
	{"N", "N"}: 1.35,
}

func pairKey(a, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}

// IdealBondLength returns the target length of bond b. Aromatic bonds use the
// measured table; other orders shorten the single-bond length by Pauling's
// relation r(n) = r(1) - 0.71·log10(n).
func IdealBondLength(m *molecule.Molecule, b int) float64 {
	bond := m.Bonds[b]
	key := pairKey(m.Atoms[bond.Begin].Symbol, m.Atoms[bond.End].Symbol)
	order := bond.Order.Multiplicity()
	if m.IsAromaticBond(b) {
		if l, ok := aromaticBondLength[key]; ok {
			return l
		}
		order = 1.5
	}
	single, ok := singleBondLength[key]
	if !ok {
		single = m.Atoms[bond.Begin].Element().CovalentRadius + m.Atoms[bond.End].Element().CovalentRadius
	}
	return single - paulingShift*math.Log10(order)
}

// HybridisationOf derives the hybridisation of atom a from its bonds. Atoms
// with a triple bond or two double bonds are sp, aromatic atoms and atoms
// with a double bond are sp2, and an amine nitrogen attached to an sp2 centre
// is treated as conjugated sp2.
func HybridisationOf(m *molecule.Molecule, a int) Hybridisation {
	h := ownHybridisation(m, a)
	if h != SP3 || m.Atoms[a].Symbol != "N" {
		return h
	}
	for _, nb := range m.Neighbors(a) {
		if !m.Atoms[nb].IsHydrogen() && ownHybridisation(m, nb) == SP2 {
			return SP2
		}
	}
	return SP3
}

func ownHybridisation(m *molecule.Molecule, a int) Hybridisation {
	if m.IsAromaticAtom(a) {
		return SP2
	}
	doubles := 0
	for _, b := range m.BondsOf(a) {
		switch m.Bonds[b].Order {
		case molecule.BondTriple:
			return SP
		case molecule.BondDouble:
			doubles++
		case molecule.BondAromatic:
			return SP2
		}
	}
	switch {
	case doubles >= 2:
		return SP
	case doubles == 1:
		return SP2
	}
	return SP3
}

// IdealAngle returns the target angle (degrees) at vertex j between
// neighbours i and k. Angles inside small or planar rings follow the ring
// polygon; exocyclic angles at planar ring atoms split the remainder.
func IdealAngle(m *molecule.Molecule, i, j, k int) float64 {
	hyb := HybridisationOf(m, j)
	ri := m.RingInfo()
	for _, r := range ri.AtomRings(j) {
		ring := ri.Rings[r]
		n := ring.Size()
		inner := 180 * float64(n-2) / float64(n)
		inI, inK := ringNeighbour(ring, j, i), ringNeighbour(ring, j, k)
		switch {
		case inI && inK && (hyb == SP2 || n <= 4):
			return inner
		case inI != inK && hyb == SP2 && n <= 6:
			return (360 - inner) / 2
		}
	}
	switch hyb {
	case SP:
		return AngleSP
	case SP2:
		return AngleSP2
	}
	switch m.Atoms[j].Symbol {
	case "N":
		return AngleSP3N
	case "O", "S":
		return AngleSP3O
	}
	return AngleSP3
}

// ringNeighbour reports whether x follows or precedes j in ring order.
func ringNeighbour(r molecule.Ring, j, x int) bool {
	n := r.Size()
	for p, a := range r.Atoms {
		if a != j {
			continue
		}
		return r.Atoms[(p+1)%n] == x || r.Atoms[(p+n-1)%n] == x
	}
	return false
}

// distanceConstraint pulls atoms a and b towards Target (harmonic) or, for
// repulsive constraints, only pushes them apart up to Target.
type distanceConstraint struct {
	a, b      int
	target    float64
	weight    float64
	repulsive bool
}

// forceField is the set of distance constraints of one molecule.
type forceField struct {
	n           int
	constraints []distanceConstraint
}

// newForceField derives bond, 1-3 and non-bonded constraints from m, which
// must carry explicit hydrogens.
func newForceField(m *molecule.Molecule) *forceField {
	n := m.NumAtoms()
	ff := &forceField{n: n}
	bondLen := make([]float64, m.NumBonds())
	for b, bond := range m.Bonds {
		bondLen[b] = IdealBondLength(m, b)
		ff.constraints = append(ff.constraints, distanceConstraint{
			a: bond.Begin, b: bond.End, target: bondLen[b], weight: weightBond,
		})
	}

	near := make([]map[int]bool, n)
	for i := range near {
		near[i] = map[int]bool{i: true}
		for _, nb := range m.Neighbors(i) {
			near[i][nb] = true
		}
	}

	for j := 0; j < n; j++ {
		bonds := m.BondsOf(j)
		for x := 0; x < len(bonds); x++ {
			for y := x + 1; y < len(bonds); y++ {
				i, k := m.Bonds[bonds[x]].Other(j), m.Bonds[bonds[y]].Other(j)
				theta := IdealAngle(m, i, j, k) * math.Pi / 180
				a, c := bondLen[bonds[x]], bondLen[bonds[y]]
				d := math.Sqrt(a*a + c*c - 2*a*c*math.Cos(theta))
				ff.constraints = append(ff.constraints, distanceConstraint{
					a: i, b: k, target: d, weight: weightAngle,
				})
				near[i][k] = true
				near[k][i] = true
			}
		}
	}

	for i := 0; i < n; i++ {
		for k := i + 1; k < n; k++ {
			if near[i][k] {
				continue
			}
			ff.constraints = append(ff.constraints, distanceConstraint{
				a: i, b: k, target: contactDistance(m.Atoms[i], m.Atoms[k]), weight: weightRepulsion, repulsive: true,
			})
		}
	}
	return ff
}

// contactDistance is the distance below which non-bonded atoms repel.
func contactDistance(a, b molecule.Atom) float64 {
	switch {
	case a.IsHydrogen() && b.IsHydrogen():
		return 1.8
	case a.IsHydrogen() || b.IsHydrogen():
		return 2.2
	}
	return 2.6
}

// energy returns the constraint energy of the flattened coordinates x and,
// when grad is non-nil, writes its gradient.
func (ff *forceField) energy(x, grad []float64) float64 {
	if grad != nil {
		for i := range grad {
			grad[i] = 0
		}
	}
	e := 0.0
	for _, c := range ff.constraints {
		pa, pb := at(x, c.a), at(x, c.b)
		diff := r3.Sub(pa, pb)
		d := r3.Norm(diff)
		delta := d - c.target
		if c.repulsive && delta >= 0 {
			continue
		}
		e += c.weight * delta * delta
		if grad == nil || d < 1e-12 {
			continue
		}
		g := r3.Scale(2*c.weight*delta/d, diff)
		addAt(grad, c.a, g)
		addAt(grad, c.b, r3.Scale(-1, g))
	}
	return e
}

func at(x []float64, i int) r3.Vec {
	return r3.Vec{X: x[3*i], Y: x[3*i+1], Z: x[3*i+2]}
}

func addAt(x []float64, i int, v r3.Vec) {
	x[3*i] += v.X
	x[3*i+1] += v.Y
	x[3*i+2] += v.Z
}

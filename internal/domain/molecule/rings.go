package molecule

import (
	"fmt"
	"sort"
	"strings"
)

// Ring is one member of the smallest set of smallest rings.
type Ring struct {
	// Atoms are listed in cycle order.
	Atoms    []int
	Bonds    []int
	Aromatic bool
}

// Size is the number of ring atoms.
func (r Ring) Size() int { return len(r.Atoms) }

// Contains reports whether atom a is a ring member.
func (r Ring) Contains(a int) bool {
	for _, x := range r.Atoms {
		if x == a {
			return true
		}
	}
	return false
}

// RingInfo is the ring and aromaticity perception result of a molecule.
type RingInfo struct {
	Rings []Ring

	atomRings  [][]int
	bondRings  [][]int
	bondInRing []bool
}

// NumRings is the SSSR size, equal to the cyclomatic number.
func (ri *RingInfo) NumRings() int { return len(ri.Rings) }

// NumAromaticRings counts aromatic SSSR rings.
func (ri *RingInfo) NumAromaticRings() int {
	n := 0
	for _, r := range ri.Rings {
		if r.Aromatic {
			n++
		}
	}
	return n
}

// AtomInRing reports whether atom a belongs to any ring.
func (ri *RingInfo) AtomInRing(a int) bool { return a < len(ri.atomRings) && len(ri.atomRings[a]) > 0 }

// BondInRing reports whether bond b belongs to any cycle.
func (ri *RingInfo) BondInRing(b int) bool { return b < len(ri.bondInRing) && ri.bondInRing[b] }

// AtomRings returns the indices of the SSSR rings containing atom a.
func (ri *RingInfo) AtomRings(a int) []int {
	if a >= len(ri.atomRings) {
		return nil
	}
	return ri.atomRings[a]
}

// RingsOfBond returns the indices of the SSSR rings containing bond b.
func (ri *RingInfo) RingsOfBond(b int) []int {
	if b >= len(ri.bondRings) {
		return nil
	}
	return ri.bondRings[b]
}

// AtomInAromaticRing reports whether atom a is a member of an aromatic ring.
func (ri *RingInfo) AtomInAromaticRing(a int) bool {
	for _, r := range ri.AtomRings(a) {
		if ri.Rings[r].Aromatic {
			return true
		}
	}
	return false
}

// BondInAromaticRing reports whether bond b is a member of an aromatic ring.
func (ri *RingInfo) BondInAromaticRing(b int) bool {
	for _, r := range ri.RingsOfBond(b) {
		if ri.Rings[r].Aromatic {
			return true
		}
	}
	return false
}

// RingInfo returns the cached ring perception, computing it on first use.
func (m *Molecule) RingInfo() *RingInfo {
	if m.rings == nil {
		m.rings = perceiveRings(m)
		perceiveAromaticity(m, m.rings)
	}
	return m.rings
}

// CyclomaticNumber is E - V + C.
func (m *Molecule) CyclomaticNumber() int {
	return len(m.Bonds) - len(m.Atoms) + len(m.Components())
}

// IsAromaticAtom reports whether atom i is aromatic either as written or by
// perception.
func (m *Molecule) IsAromaticAtom(i int) bool {
	return m.Atoms[i].Aromatic || m.RingInfo().AtomInAromaticRing(i)
}

// IsAromaticBond reports whether bond b is aromatic either as written or by
// perception.
func (m *Molecule) IsAromaticBond(b int) bool {
	return m.Bonds[b].Order == BondAromatic || m.RingInfo().BondInAromaticRing(b)
}

func perceiveRings(m *Molecule) *RingInfo {
	ri := &RingInfo{
		atomRings:  make([][]int, len(m.Atoms)),
		bondRings:  make([][]int, len(m.Bonds)),
		bondInRing: make([]bool, len(m.Bonds)),
	}
	for b := range m.Bonds {
		ri.bondInRing[b] = bondIsCyclic(m, b)
	}
	target := m.CyclomaticNumber()
	if target == 0 {
		return ri
	}

	cands := hortonCandidates(m, ri.bondInRing)
	words := (len(m.Bonds) + 63) / 64
	var basis [][]uint64
	var pivots []int
	for _, c := range cands {
		if len(basis) == target {
			break
		}
		vec := make([]uint64, words)
		for _, b := range c.Bonds {
			vec[b/64] ^= 1 << (uint(b) % 64)
		}
		// reduce against the current basis
		for k, row := range basis {
			p := pivots[k]
			if vec[p/64]&(1<<(uint(p)%64)) != 0 {
				for w := range vec {
					vec[w] ^= row[w]
				}
			}
		}
		pivot := -1
		for w, x := range vec {
			if x != 0 {
				for bit := 0; bit < 64; bit++ {
					if x&(1<<uint(bit)) != 0 {
						pivot = w*64 + bit
						break
					}
				}
				break
			}
		}
		if pivot < 0 {
			continue
		}
		// keep rows reduced so the pivot test above stays valid
		for k, row := range basis {
			if row[pivot/64]&(1<<(uint(pivot)%64)) != 0 {
				for w := range row {
					basis[k][w] ^= vec[w]
				}
			}
		}
		basis = append(basis, vec)
		pivots = append(pivots, pivot)
		ri.Rings = append(ri.Rings, c)
	}

	for r, ring := range ri.Rings {
		for _, a := range ring.Atoms {
			ri.atomRings[a] = append(ri.atomRings[a], r)
		}
		for _, b := range ring.Bonds {
			ri.bondRings[b] = append(ri.bondRings[b], r)
		}
	}
	return ri
}

// bondIsCyclic reports whether the endpoints of b stay connected without b.
func bondIsCyclic(m *Molecule, b int) bool {
	src, dst := m.Bonds[b].Begin, m.Bonds[b].End
	seen := make([]bool, len(m.Atoms))
	seen[src] = true
	queue := []int{src}
	for len(queue) > 0 {
		a := queue[0]
		queue = queue[1:]
		for _, e := range m.adj[a] {
			if e == b {
				continue
			}
			n := m.Bonds[e].Other(a)
			if n == dst {
				return true
			}
			if !seen[n] {
				seen[n] = true
				queue = append(queue, n)
			}
		}
	}
	return false
}

// hortonCandidates enumerates cycles P(r,x) + (x,y) + P(y,r) over the cyclic
// subgraph, deduplicated and ordered by size then by bond key.
func hortonCandidates(m *Molecule, cyclic []bool) []Ring {
	n := len(m.Atoms)
	seen := map[string]bool{}
	var out []Ring

	for r := 0; r < n; r++ {
		if !atomHasCyclicBond(m, r, cyclic) {
			continue
		}
		parent := make([]int, n)
		parentBond := make([]int, n)
		dist := make([]int, n)
		for i := range dist {
			dist[i] = -1
		}
		dist[r] = 0
		parent[r] = -1
		queue := []int{r}
		for len(queue) > 0 {
			a := queue[0]
			queue = queue[1:]
			for _, e := range m.adj[a] {
				if !cyclic[e] {
					continue
				}
				nb := m.Bonds[e].Other(a)
				if dist[nb] < 0 {
					dist[nb] = dist[a] + 1
					parent[nb] = a
					parentBond[nb] = e
					queue = append(queue, nb)
				}
			}
		}

		for e, bond := range m.Bonds {
			if !cyclic[e] {
				continue
			}
			x, y := bond.Begin, bond.End
			if dist[x] < 0 || dist[y] < 0 || parentBond[x] == e && parent[x] == y || parentBond[y] == e && parent[y] == x {
				continue
			}
			px := pathToRoot(parent, x)
			py := pathToRoot(parent, y)
			if !disjointExceptRoot(px, py) {
				continue
			}
			// px: x..r, py: y..r ; cycle r..x then y..(before r)
			atoms := make([]int, 0, len(px)+len(py)-1)
			for i := len(px) - 1; i >= 0; i-- {
				atoms = append(atoms, px[i])
			}
			for i := 0; i < len(py)-1; i++ {
				atoms = append(atoms, py[i])
			}
			ring := ringFromAtoms(m, atoms)
			key := ringKey(ring.Bonds)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, ring)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if len(out[i].Bonds) != len(out[j].Bonds) {
			return len(out[i].Bonds) < len(out[j].Bonds)
		}
		return ringKey(out[i].Bonds) < ringKey(out[j].Bonds)
	})
	return out
}

func atomHasCyclicBond(m *Molecule, a int, cyclic []bool) bool {
	for _, e := range m.adj[a] {
		if cyclic[e] {
			return true
		}
	}
	return false
}

func pathToRoot(parent []int, a int) []int {
	var p []int
	for a >= 0 {
		p = append(p, a)
		a = parent[a]
	}
	return p
}

func disjointExceptRoot(px, py []int) bool {
	set := make(map[int]bool, len(px))
	for _, a := range px[:len(px)-1] {
		set[a] = true
	}
	for _, a := range py[:len(py)-1] {
		if set[a] {
			return false
		}
	}
	return true
}

// ringFromAtoms builds a Ring whose atom list starts at the lowest index and
// walks towards the lower-indexed neighbour.
func ringFromAtoms(m *Molecule, atoms []int) Ring {
	k := len(atoms)
	start := 0
	for i, a := range atoms {
		if a < atoms[start] {
			start = i
		}
	}
	dir := 1
	if atoms[(start-1+k)%k] < atoms[(start+1)%k] {
		dir = -1
	}
	ordered := make([]int, k)
	for i := 0; i < k; i++ {
		ordered[i] = atoms[((start+dir*i)%k+k)%k]
	}
	bonds := make([]int, 0, k)
	for i := 0; i < k; i++ {
		b, _ := m.BondBetween(ordered[i], ordered[(i+1)%k])
		bonds = append(bonds, b)
	}
	return Ring{Atoms: ordered, Bonds: bonds}
}

func ringKey(bonds []int) string {
	s := append([]int(nil), bonds...)
	sort.Ints(s)
	parts := make([]string, len(s))
	for i, b := range s {
		parts[i] = fmt.Sprint(b)
	}
	return strings.Join(parts, ",")
}

// ─────────────────────────────────────────────────────────────────────────────
// Aromaticity
// ─────────────────────────────────────────────────────────────────────────────

// perceiveAromaticity flags SSSR rings as aromatic when every ring bond was
// written aromatic, or when the ring satisfies Hückel's 4n+2 rule. Pairs of
// fused rings that fail individually are tested as a combined envelope.
func perceiveAromaticity(m *Molecule, ri *RingInfo) {
	for r := range ri.Rings {
		ring := &ri.Rings[r]
		allAromatic := true
		for _, b := range ring.Bonds {
			if m.Bonds[b].Order != BondAromatic {
				allAromatic = false
				break
			}
		}
		if allAromatic {
			ring.Aromatic = true
			continue
		}
		ring.Aromatic = huckel(m, ri, ring.Atoms)
	}

	for i := range ri.Rings {
		for j := i + 1; j < len(ri.Rings); j++ {
			a, b := &ri.Rings[i], &ri.Rings[j]
			if a.Aromatic || b.Aromatic || sharedBonds(a.Bonds, b.Bonds) != 1 {
				continue
			}
			union := unionAtoms(a.Atoms, b.Atoms)
			if huckel(m, ri, union) {
				a.Aromatic, b.Aromatic = true, true
			}
		}
	}
}

func sharedBonds(a, b []int) int {
	n := 0
	for _, x := range a {
		for _, y := range b {
			if x == y {
				n++
			}
		}
	}
	return n
}

func unionAtoms(a, b []int) []int {
	set := map[int]bool{}
	var out []int
	for _, x := range append(append([]int(nil), a...), b...) {
		if !set[x] {
			set[x] = true
			out = append(out, x)
		}
	}
	return out
}

// huckel counts π electrons over atoms and reports 4n+2 aromaticity.
func huckel(m *Molecule, ri *RingInfo, atoms []int) bool {
	inSet := make(map[int]bool, len(atoms))
	for _, a := range atoms {
		inSet[a] = true
	}
	total := 0
	for _, a := range atoms {
		e, ok := piElectrons(m, ri, a, inSet)
		if !ok {
			return false
		}
		total += e
	}
	return total >= 2 && total%4 == 2
}

// piElectrons returns the π electron contribution of atom a to a ring system.
// Endocyclic double bonds give 1, exocyclic double bonds to heteroatoms 0,
// lone-pair heteroatoms 2. sp3 carbons and triple bonds disqualify the ring.
func piElectrons(m *Molecule, ri *RingInfo, a int, inSet map[int]bool) (int, bool) {
	atom := m.Atoms[a]
	sym := atom.Symbol
	conn := m.Degree(a) + atom.HCount

	if atom.Aromatic {
		switch sym {
		case "C", "B":
			for _, b := range m.adj[a] {
				bond := m.Bonds[b]
				if bond.Order == BondDouble && !inSet[bond.Other(a)] {
					return 0, true
				}
			}
			if atom.Charge < 0 {
				return 2, true
			}
			if sym == "B" || atom.Charge > 0 {
				return 0, true
			}
			return 1, true
		case "N", "P":
			if conn >= 3 && atom.Charge == 0 {
				return 2, true
			}
			return 1, true
		case "O", "S", "Se", "Te":
			if atom.Charge > 0 {
				return 1, true
			}
			return 2, true
		}
		return 0, false
	}

	double := 0
	contribution := 0
	for _, b := range m.adj[a] {
		bond := m.Bonds[b]
		nb := bond.Other(a)
		switch bond.Order {
		case BondTriple:
			return 0, false
		case BondDouble:
			double++
			switch {
			case inSet[nb]:
				contribution = 1
			case ri.AtomInRing(nb):
				contribution = 1
			case m.Atoms[nb].Symbol != "C":
				contribution = 0
			default:
				return 0, false
			}
		}
	}
	if double > 1 {
		return 0, false
	}
	if double == 1 {
		return contribution, true
	}

	switch sym {
	case "N", "P":
		if conn == 3 && atom.Charge == 0 {
			return 2, true
		}
	case "O", "S", "Se":
		if conn == 2 && atom.Charge == 0 {
			return 2, true
		}
	case "C":
		if atom.Charge < 0 && conn == 3 {
			return 2, true
		}
		if atom.Charge > 0 && conn == 3 {
			return 0, true
		}
	case "B":
		if conn == 3 {
			return 0, true
		}
	}
	return 0, false
}

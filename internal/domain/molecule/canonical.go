package molecule

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// CanonicalRanks returns a rank per atom that is independent of input atom
// order for symmetric-distinct atoms. Ranks start at 0 and are unique.
func CanonicalRanks(m *Molecule) []int {
	n := len(m.Atoms)
	if n == 0 {
		return nil
	}
	ri := m.RingInfo()
	inv := make([][]int, n)
	for i, a := range m.Atoms {
		z := 0
		if e, ok := LookupElement(a.Symbol); ok {
			z = e.Number
		}
		arom, ring := 0, 0
		if m.IsAromaticAtom(i) {
			arom = 1
		}
		if ri.AtomInRing(i) {
			ring = 1
		}
		inv[i] = []int{m.HeavyDegree(i), z, a.Isotope, a.Charge, m.TotalHydrogens(i), arom, ring}
	}
	ranks := denseRank(inv)
	ranks = refineRanks(m, ranks)

	for {
		tied := lowestTiedRank(ranks)
		if tied < 0 {
			return ranks
		}
		chosen := -1
		for i, r := range ranks {
			if r == tied {
				chosen = i
				break
			}
		}
		for i := range ranks {
			ranks[i] *= 2
		}
		ranks[chosen]--
		ranks = refineRanks(m, compress(ranks))
	}
}

func refineRanks(m *Molecule, ranks []int) []int {
	classes := countClasses(ranks)
	for {
		keys := make([][]int, len(ranks))
		for i := range ranks {
			var nb [][2]int
			for _, b := range m.adj[i] {
				nb = append(nb, [2]int{ranks[m.Bonds[b].Other(i)], int(m.Bonds[b].Order)})
			}
			sort.Slice(nb, func(x, y int) bool {
				if nb[x][0] != nb[y][0] {
					return nb[x][0] < nb[y][0]
				}
				return nb[x][1] < nb[y][1]
			})
			key := []int{ranks[i]}
			for _, p := range nb {
				key = append(key, p[0], p[1])
			}
			keys[i] = key
		}
		next := denseRank(keys)
		c := countClasses(next)
		ranks = next
		if c == classes {
			return ranks
		}
		classes = c
	}
}

func denseRank(keys [][]int) []int {
	idx := make([]int, len(keys))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return lessInts(keys[idx[a]], keys[idx[b]]) })
	ranks := make([]int, len(keys))
	r := 0
	for k, i := range idx {
		if k > 0 && lessInts(keys[idx[k-1]], keys[i]) {
			r++
		}
		ranks[i] = r
	}
	return ranks
}

func lessInts(a, b []int) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

func compress(ranks []int) []int {
	keys := make([][]int, len(ranks))
	for i, r := range ranks {
		keys[i] = []int{r}
	}
	return denseRank(keys)
}

func countClasses(ranks []int) int {
	seen := map[int]bool{}
	for _, r := range ranks {
		seen[r] = true
	}
	return len(seen)
}

func lowestTiedRank(ranks []int) int {
	count := map[int]int{}
	for _, r := range ranks {
		count[r]++
	}
	best := -1
	for r, c := range count {
		if c > 1 && (best < 0 || r < best) {
			best = r
		}
	}
	return best
}

// ─────────────────────────────────────────────────────────────────────────────
// Writer
// ─────────────────────────────────────────────────────────────────────────────

// CanonicalSMILES writes m as a SMILES string whose text depends only on the
// graph, not on the input atom order. Rings perceived as aromatic are written
// in lowercase, so Kekulé and aromatic spellings give the same string. Stereo
// markers are not emitted.
func CanonicalSMILES(m *Molecule) string {
	if len(m.Atoms) == 0 {
		return ""
	}
	a := aromaticForm(m)
	return writeSMILES(a, CanonicalRanks(a))
}

// aromaticForm returns a copy of m in which every atom and bond of a
// perceived aromatic ring is marked aromatic. Hydrogen counts are unchanged;
// exocyclic double bonds stay double.
func aromaticForm(m *Molecule) *Molecule {
	ri := m.RingInfo()
	c := m.Clone()
	for i := range c.Atoms {
		if ri.AtomInAromaticRing(i) {
			c.Atoms[i].Aromatic = true
		}
	}
	for b := range c.Bonds {
		if ri.BondInAromaticRing(b) {
			c.Bonds[b].Order = BondAromatic
		}
	}
	return c
}

// SMILES writes m in input atom order.
func SMILES(m *Molecule) string {
	ranks := make([]int, len(m.Atoms))
	for i := range ranks {
		ranks[i] = i
	}
	return writeSMILES(m, ranks)
}

type smilesWriter struct {
	m        *Molecule
	ranks    []int
	visited  []bool
	children [][]int // tree bonds in emission order
	closures [][]int // ring-closure bonds per atom
	isClose  map[int]bool
	emitted  []bool
	digits   map[int]int // bond -> ring digit
	free     []bool
	sb       strings.Builder
}

func writeSMILES(m *Molecule, ranks []int) string {
	w := &smilesWriter{
		m:        m,
		ranks:    ranks,
		visited:  make([]bool, len(m.Atoms)),
		children: make([][]int, len(m.Atoms)),
		closures: make([][]int, len(m.Atoms)),
		isClose:  map[int]bool{},
		emitted:  make([]bool, len(m.Atoms)),
		digits:   map[int]int{},
		free:     make([]bool, 100),
	}
	for i := 1; i < 100; i++ {
		w.free[i] = true
	}

	roots := make([]int, 0)
	for _, comp := range m.Components() {
		best := comp[0]
		for _, a := range comp {
			if ranks[a] < ranks[best] {
				best = a
			}
		}
		roots = append(roots, best)
	}
	sort.Slice(roots, func(i, j int) bool { return ranks[roots[i]] < ranks[roots[j]] })

	for k, r := range roots {
		w.plan(r, -1)
		if k > 0 {
			w.sb.WriteByte('.')
		}
		w.emit(r)
	}
	return w.sb.String()
}

func (w *smilesWriter) sortedBonds(a int) []int {
	bonds := append([]int(nil), w.m.adj[a]...)
	sort.Slice(bonds, func(i, j int) bool {
		return w.ranks[w.m.Bonds[bonds[i]].Other(a)] < w.ranks[w.m.Bonds[bonds[j]].Other(a)]
	})
	return bonds
}

func (w *smilesWriter) plan(a, parentBond int) {
	w.visited[a] = true
	for _, b := range w.sortedBonds(a) {
		if b == parentBond {
			continue
		}
		nb := w.m.Bonds[b].Other(a)
		if w.visited[nb] {
			if !w.isClose[b] {
				w.isClose[b] = true
				w.closures[a] = append(w.closures[a], b)
				w.closures[nb] = append(w.closures[nb], b)
			}
			continue
		}
		w.children[a] = append(w.children[a], b)
		w.plan(nb, b)
	}
}

func (w *smilesWriter) emit(a int) {
	w.emitted[a] = true
	w.sb.WriteString(w.atomText(a))

	for _, b := range w.closures[a] {
		nb := w.m.Bonds[b].Other(a)
		if d, ok := w.digits[b]; ok && w.emitted[nb] {
			w.sb.WriteString(ringDigit(d))
			w.free[d] = true
			delete(w.digits, b)
			continue
		}
		d := w.allocDigit()
		w.digits[b] = d
		w.sb.WriteString(w.bondText(b))
		w.sb.WriteString(ringDigit(d))
	}

	kids := w.children[a]
	for k, b := range kids {
		nb := w.m.Bonds[b].Other(a)
		last := k == len(kids)-1
		if !last {
			w.sb.WriteByte('(')
		}
		w.sb.WriteString(w.bondText(b))
		w.emit(nb)
		if !last {
			w.sb.WriteByte(')')
		}
	}
}

func (w *smilesWriter) allocDigit() int {
	for d := 1; d < len(w.free); d++ {
		if w.free[d] {
			w.free[d] = false
			return d
		}
	}
	// more than 99 simultaneously open rings is not representable
	panic("molecule: ring closure digits exhausted")
}

func ringDigit(d int) string {
	if d < 10 {
		return strconv.Itoa(d)
	}
	return fmt.Sprintf("%%%02d", d)
}

func (w *smilesWriter) bondText(b int) string {
	bond := w.m.Bonds[b]
	switch bond.Order {
	case BondDouble:
		return "="
	case BondTriple:
		return "#"
	case BondAromatic:
		return ""
	default:
		if w.m.Atoms[bond.Begin].Aromatic && w.m.Atoms[bond.End].Aromatic {
			return "-"
		}
		return ""
	}
}

func (w *smilesWriter) atomText(i int) string {
	a := w.m.Atoms[i]
	sym := a.Symbol
	if a.Aromatic {
		sym = strings.ToLower(sym)
	}
	needBracket := a.Isotope != 0 || a.Charge != 0 || a.MapNum != 0 || a.Chirality != "" ||
		a.IsHydrogen() || (a.Aromatic && !aromaticSubset[a.Symbol]) || (!a.Aromatic && !organicSubset[a.Symbol])
	if !needBracket && a.HCount != implicitHydrogens(w.m, i) {
		needBracket = true
	}
	if !needBracket {
		return sym
	}

	var sb strings.Builder
	sb.WriteByte('[')
	if a.Isotope != 0 {
		sb.WriteString(strconv.Itoa(a.Isotope))
	}
	sb.WriteString(sym)
	if a.HCount == 1 {
		sb.WriteByte('H')
	} else if a.HCount > 1 {
		sb.WriteString("H" + strconv.Itoa(a.HCount))
	}
	switch {
	case a.Charge == 1:
		sb.WriteByte('+')
	case a.Charge == -1:
		sb.WriteByte('-')
	case a.Charge > 1:
		sb.WriteString("+" + strconv.Itoa(a.Charge))
	case a.Charge < -1:
		sb.WriteString(strconv.Itoa(a.Charge))
	}
	if a.MapNum != 0 {
		sb.WriteString(":" + strconv.Itoa(a.MapNum))
	}
	sb.WriteByte(']')
	return sb.String()
}

// Package conformer generates coordinates for molecular graphs: a 2D layout
// used for depictions and as the starting point of 3D embedding, and a 3D
// conformer obtained by minimising a constraint energy over bond lengths,
// 1-3 distances and non-bonded repulsion.
package conformer

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/turtacn/ChemSight/internal/domain/molecule"
)

// LayoutBondLength is the bond length of 2D layouts, in Å.
const LayoutBondLength = 1.5

// componentGap separates disconnected components in a layout.
const componentGap = 2 * LayoutBondLength

// Layout2D places every atom of m in the plane. Rings are regular polygons,
// fused rings are built on their shared edge, spiro and substituted rings
// grow away from the atom they hang on, and chains are drawn zig-zag.
// Components are laid out left to right.
func Layout2D(m *molecule.Molecule) []r2.Vec {
	l := &layout{
		m:      m,
		ri:     m.RingInfo(),
		pos:    make([]r2.Vec, m.NumAtoms()),
		placed: make([]bool, m.NumAtoms()),
		turn:   make([]float64, m.NumAtoms()),
	}
	offset := 0.0
	for _, comp := range m.Components() {
		l.component(comp)
		minX, maxX := math.Inf(1), math.Inf(-1)
		minY, maxY := math.Inf(1), math.Inf(-1)
		for _, a := range comp {
			p := l.pos[a]
			minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
			minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
		}
		shift := r2.Vec{X: offset - minX, Y: -(minY + maxY) / 2}
		for _, a := range comp {
			l.pos[a] = r2.Add(l.pos[a], shift)
		}
		offset += maxX - minX + componentGap
	}
	return l.pos
}

type layout struct {
	m      *molecule.Molecule
	ri     *molecule.RingInfo
	pos    []r2.Vec
	placed []bool
	// turn is the zig-zag direction (+1/-1) a chain continues with.
	turn []float64
}

func (l *layout) component(comp []int) {
	start := comp[0]
	for _, a := range comp {
		if l.ri.AtomInRing(a) {
			start = a
			break
		}
	}

	queue := []int{start}
	if rings := l.ri.AtomRings(start); len(rings) > 0 {
		l.placeFirstRing(l.ri.Rings[rings[0]])
		queue = append(queue[:0], l.ri.Rings[rings[0]].Atoms...)
	} else {
		l.set(start, r2.Vec{}, 1)
	}

	for len(queue) > 0 {
		a := queue[0]
		queue = queue[1:]
		for _, r := range l.ri.AtomRings(a) {
			queue = append(queue, l.placeRing(l.ri.Rings[r])...)
		}
		queue = append(queue, l.placeChildren(a)...)
	}
}

func (l *layout) set(a int, p r2.Vec, turn float64) {
	l.pos[a] = p
	l.placed[a] = true
	l.turn[a] = turn
}

func circumradius(n int) float64 {
	return LayoutBondLength / (2 * math.Sin(math.Pi/float64(n)))
}

func (l *layout) placeFirstRing(r molecule.Ring) {
	n := r.Size()
	rad := circumradius(n)
	step := 2 * math.Pi / float64(n)
	for k, a := range r.Atoms {
		theta := math.Pi/2 + float64(k)*step
		l.set(a, r2.Vec{X: rad * math.Cos(theta), Y: rad * math.Sin(theta)}, 1)
	}
}

// placeRing completes a ring that already has at least one placed atom and
// returns the atoms it placed.
func (l *layout) placeRing(r molecule.Ring) []int {
	n := r.Size()
	fixed := 0
	for _, a := range r.Atoms {
		if l.placed[a] {
			fixed++
		}
	}
	if fixed == 0 || fixed == n {
		return nil
	}

	rad := circumradius(n)
	step := 2 * math.Pi / float64(n)

	// fused: grow on the first placed edge, away from what is already drawn
	for k := 0; k < n; k++ {
		a, b := r.Atoms[k], r.Atoms[(k+1)%n]
		if !l.placed[a] || !l.placed[b] {
			continue
		}
		pa, pb := l.pos[a], l.pos[b]
		mid := r2.Scale(0.5, r2.Add(pa, pb))
		edge := r2.Sub(pb, pa)
		normal := r2.Unit(r2.Vec{X: -edge.Y, Y: edge.X})
		apothem := rad * math.Cos(math.Pi/float64(n))

		away := l.placedNeighbourCentroid([]int{a, b})
		center := r2.Add(mid, r2.Scale(apothem, normal))
		if alt := r2.Sub(mid, r2.Scale(apothem, normal)); away != nil && r2.Norm(r2.Sub(alt, *away)) > r2.Norm(r2.Sub(center, *away)) {
			center = alt
		}

		dir := 1.0
		if r2.Cross(r2.Sub(pa, center), r2.Sub(pb, center)) < 0 {
			dir = -1
		}
		thetaB := angleOf(r2.Sub(pb, center))
		var added []int
		for j := 1; j < n-1; j++ {
			v := r.Atoms[(k+1+j)%n]
			if l.placed[v] {
				continue
			}
			theta := thetaB + dir*float64(j)*step
			l.set(v, r2.Add(center, r2.Vec{X: rad * math.Cos(theta), Y: rad * math.Sin(theta)}), 1)
			added = append(added, v)
		}
		return added
	}

	// spiro or substituent: hang the ring on its first placed atom
	for k, a := range r.Atoms {
		if !l.placed[a] {
			continue
		}
		u := r2.Vec{X: 1}
		if c := l.placedNeighbourCentroid([]int{a}); c != nil {
			if d := r2.Sub(l.pos[a], *c); r2.Norm(d) > 1e-9 {
				u = r2.Unit(d)
			}
		}
		center := r2.Add(l.pos[a], r2.Scale(rad, u))
		thetaA := angleOf(r2.Sub(l.pos[a], center))
		var added []int
		for j := 1; j < n; j++ {
			v := r.Atoms[(k+j)%n]
			if l.placed[v] {
				continue
			}
			theta := thetaA + float64(j)*step
			l.set(v, r2.Add(center, r2.Vec{X: rad * math.Cos(theta), Y: rad * math.Sin(theta)}), 1)
			added = append(added, v)
		}
		return added
	}
	return nil
}

// placedNeighbourCentroid averages the placed neighbours of atoms, excluding
// the atoms themselves. It returns nil when there are none.
func (l *layout) placedNeighbourCentroid(atoms []int) *r2.Vec {
	skip := make(map[int]bool, len(atoms))
	for _, a := range atoms {
		skip[a] = true
	}
	var sum r2.Vec
	n := 0
	for _, a := range atoms {
		for _, nb := range l.m.Neighbors(a) {
			if l.placed[nb] && !skip[nb] {
				sum = r2.Add(sum, l.pos[nb])
				n++
			}
		}
	}
	if n == 0 {
		return nil
	}
	c := r2.Scale(1/float64(n), sum)
	return &c
}

// placeChildren places the unplaced neighbours of a placed atom.
func (l *layout) placeChildren(a int) []int {
	var children, parents []int
	for _, nb := range l.m.Neighbors(a) {
		if l.placed[nb] {
			parents = append(parents, nb)
		} else {
			children = append(children, nb)
		}
	}
	if len(children) == 0 {
		return nil
	}

	var dirs []float64
	switch len(parents) {
	case 0:
		// chain start: pretend the parent lies on the negative x axis
		dirs = spread(math.Pi, len(children), l.linear(a))
		if len(children) == 1 {
			dirs = []float64{-math.Pi / 6}
		}
	case 1:
		back := angleOf(r2.Sub(l.pos[parents[0]], l.pos[a]))
		dirs = spread(back, len(children), l.linear(a))
		if len(children) == 1 && !l.linear(a) {
			incoming := back + math.Pi
			dirs = []float64{incoming + l.turn[a]*math.Pi/3}
		}
	default:
		var sum r2.Vec
		for _, p := range parents {
			sum = r2.Add(sum, r2.Unit(r2.Sub(l.pos[p], l.pos[a])))
		}
		out := angleOf(r2.Scale(-1, sum))
		if r2.Norm(sum) < 1e-9 {
			out = angleOf(r2.Sub(l.pos[a], l.pos[parents[0]])) + math.Pi/2
		}
		for k := range children {
			dirs = append(dirs, out+(float64(k)-float64(len(children)-1)/2)*math.Pi/3)
		}
	}

	for k, c := range children {
		p := r2.Add(l.pos[a], r2.Vec{X: LayoutBondLength * math.Cos(dirs[k]), Y: LayoutBondLength * math.Sin(dirs[k])})
		l.set(c, p, -l.turn[a])
	}
	return children
}

// linear reports whether a is sp-hybridised: a triple bond or two
// cumulated double bonds.
func (l *layout) linear(a int) bool {
	doubles := 0
	for _, b := range l.m.BondsOf(a) {
		switch l.m.Bonds[b].Order {
		case molecule.BondTriple:
			return true
		case molecule.BondDouble:
			doubles++
		}
	}
	return doubles >= 2
}

// spread distributes k directions evenly around an atom whose only
// neighbour lies in direction back. Linear atoms continue straight on.
func spread(back float64, k int, linear bool) []float64 {
	if linear && k == 1 {
		return []float64{back + math.Pi}
	}
	dirs := make([]float64, k)
	step := 2 * math.Pi / float64(k+1)
	for j := range dirs {
		dirs[j] = back + float64(j+1)*step
	}
	return dirs
}

func angleOf(v r2.Vec) float64 { return math.Atan2(v.Y, v.X) }

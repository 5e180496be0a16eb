package molecule

// organicSubset lists the elements that may be written without brackets.
var organicSubset = map[string]bool{
	"B": true, "C": true, "N": true, "O": true, "P": true, "S": true,
	"F": true, "Cl": true, "Br": true, "I": true,
}

// aromaticSubset lists the elements that may be written lowercase without
// brackets.
var aromaticSubset = map[string]bool{
	"B": true, "C": true, "N": true, "O": true, "P": true, "S": true,
}

// implicitHydrogens computes the implicit hydrogen count of an unbracketed
// atom from its default valences. An aromatic atom that still needs a ring
// double bond reserves one valence unit for it; lone-pair donors and atoms
// with an exocyclic double bond reserve nothing. The result never goes below
// zero.
func implicitHydrogens(m *Molecule, i int) int {
	e, ok := LookupElement(m.Atoms[i].Symbol)
	if !ok || len(e.Valences) == 0 {
		return 0
	}
	used := m.BondValence(i)
	if needsPiBond(m, i, 0) {
		used++
	}
	for _, v := range e.Valences {
		if v >= used {
			return v - used
		}
	}
	return 0
}

// needsPiBond reports whether aromatic atom i takes part in the ring's
// alternating double bonds. h is the number of hydrogens not present as
// explicit atoms. Pyrrole-type N, furan-type O and S, and atoms already
// carrying a double bond contribute their electrons another way.
func needsPiBond(m *Molecule, i, h int) bool {
	a := m.Atoms[i]
	if !a.Aromatic {
		return false
	}
	for _, b := range m.adj[i] {
		if m.Bonds[b].Order == BondDouble {
			return false
		}
	}
	conn := m.Degree(i) + h
	switch a.Symbol {
	case "C":
		return a.Charge == 0
	case "B":
		return a.Charge < 0
	case "N", "P", "As":
		switch a.Charge {
		case 0:
			return conn < 3
		case 1:
			return conn < 4
		}
		return false
	case "O", "S", "Se":
		return a.Charge == 1 && conn < 3
	}
	return false
}

// AssignImplicitHydrogens sets HCount on every unbracketed atom. Bracket atoms
// keep the count written in the SMILES.
func AssignImplicitHydrogens(m *Molecule) {
	for i := range m.Atoms {
		if m.Atoms[i].Bracket || m.Atoms[i].IsHydrogen() {
			continue
		}
		m.Atoms[i].HCount = implicitHydrogens(m, i)
	}
}

// ValenceIssues reports atoms whose explicit valence exceeds every allowed
// valence of their element (after accounting for charge).
func ValenceIssues(m *Molecule) []int {
	var bad []int
	for i, a := range m.Atoms {
		e, ok := LookupElement(a.Symbol)
		if !ok || len(e.Valences) == 0 {
			continue
		}
		used := m.BondValence(i) + a.HCount
		if needsPiBond(m, i, a.HCount) {
			used++
		}
		limit := e.Valences[len(e.Valences)-1]
		// charged atoms may carry one extra bond per unit of charge
		if a.Charge > 0 {
			limit += a.Charge
		} else {
			limit -= a.Charge
		}
		if used > limit {
			bad = append(bad, i)
		}
	}
	return bad
}

// kekuleMatching pairs every aromatic atom that needs a ring double bond with
// an aromatic neighbour that needs one too. It returns the partner of each
// atom (-1 when unpaired) and, when no complete pairing exists, an atom of the
// system that cannot be paired.
func kekuleMatching(m *Molecule) ([]int, int) {
	n := len(m.Atoms)
	needy := make([]bool, n)
	for i := range m.Atoms {
		needy[i] = needsPiBond(m, i, m.Atoms[i].HCount)
	}
	partner := make([]int, n)
	for i := range partner {
		partner[i] = -1
	}
	candidates := func(a int) []int {
		var out []int
		for _, b := range m.adj[a] {
			bond := m.Bonds[b]
			nb := bond.Other(a)
			if bond.Order == BondAromatic && needy[nb] && partner[nb] < 0 {
				out = append(out, nb)
			}
		}
		return out
	}

	// each connected system is paired on its own so that a failure in one
	// does not re-explore the others
	seen := make([]bool, n)
	for s := 0; s < n; s++ {
		if !needy[s] || seen[s] {
			continue
		}
		var system []int
		stack := []int{s}
		seen[s] = true
		for len(stack) > 0 {
			a := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			system = append(system, a)
			for _, b := range m.adj[a] {
				nb := m.Bonds[b].Other(a)
				if m.Bonds[b].Order == BondAromatic && needy[nb] && !seen[nb] {
					seen[nb] = true
					stack = append(stack, nb)
				}
			}
		}
		if len(system)%2 == 1 {
			return partner, system[0]
		}

		var solve func() bool
		solve = func() bool {
			pick, options := -1, []int(nil)
			for _, a := range system {
				if partner[a] >= 0 {
					continue
				}
				c := candidates(a)
				if pick < 0 || len(c) < len(options) {
					pick, options = a, c
				}
				if len(c) == 0 {
					return false
				}
			}
			if pick < 0 {
				return true
			}
			for _, nb := range options {
				partner[pick], partner[nb] = nb, pick
				if solve() {
					return true
				}
				partner[pick], partner[nb] = -1, -1
			}
			return false
		}
		if !solve() {
			return partner, system[0]
		}
	}
	return partner, -1
}

package molecule

// Descriptors holds the computed physicochemical properties of a molecule.
type Descriptors struct {
	LogP           float64 `json:"logP"`
	TPSA           float64 `json:"polarSurfaceArea"`
	RotatableBonds int     `json:"rotorBonds"`
	HBondDonors    int     `json:"hBondDonors"`
	HBondAcceptors int     `json:"hBondAcceptors"`
}

// Topology holds the graph-level counts of a molecule. Atom and bond counts
// include hydrogens.
type Topology struct {
	AtomCount      int `json:"atomCount"`
	BondCount      int `json:"bondCount"`
	RingCount      int `json:"ringCount"`
	AromaticRings  int `json:"aromaticRings"`
	HeavyAtomCount int `json:"heavyAtomCount"`
	FormalCharge   int `json:"formalCharge"`
}

// ComputeDescriptors returns logP and TPSA rounded to two decimals along with
// the counting descriptors.
func ComputeDescriptors(m *Molecule) Descriptors {
	return Descriptors{
		LogP:           Round(LogP(m), 2),
		TPSA:           Round(TPSA(m), 2),
		RotatableBonds: RotatableBonds(m),
		HBondDonors:    HBondDonors(m),
		HBondAcceptors: HBondAcceptors(m),
	}
}

// ComputeTopology returns the topology counts of m.
func ComputeTopology(m *Molecule) Topology {
	ri := m.RingInfo()
	return Topology{
		AtomCount:      m.TotalAtomCount(),
		BondCount:      m.TotalBondCount(),
		RingCount:      ri.NumRings(),
		AromaticRings:  ri.NumAromaticRings(),
		HeavyAtomCount: m.HeavyAtomCount(),
		FormalCharge:   m.FormalCharge(),
	}
}

// HBondDonors counts nitrogen and oxygen atoms bearing at least one hydrogen.
func HBondDonors(m *Molecule) int {
	n := 0
	for i, a := range m.Atoms {
		if (a.Symbol == "N" || a.Symbol == "O") && m.TotalHydrogens(i) > 0 {
			n++
		}
	}
	return n
}

// HBondAcceptors counts nitrogen and oxygen atoms.
func HBondAcceptors(m *Molecule) int {
	n := 0
	for _, a := range m.Atoms {
		if a.Symbol == "N" || a.Symbol == "O" {
			n++
		}
	}
	return n
}

// RotatableBonds counts acyclic single bonds between two non-terminal heavy
// atoms, neither of which takes part in a triple bond.
func RotatableBonds(m *Molecule) int {
	ri := m.RingInfo()
	n := 0
	for b, bond := range m.Bonds {
		if bond.Order != BondSingle || ri.BondInRing(b) {
			continue
		}
		i, j := bond.Begin, bond.End
		if m.Atoms[i].IsHydrogen() || m.Atoms[j].IsHydrogen() {
			continue
		}
		if m.HeavyDegree(i) < 2 || m.HeavyDegree(j) < 2 {
			continue
		}
		if hasBondOrder(m, i, BondTriple) || hasBondOrder(m, j, BondTriple) {
			continue
		}
		n++
	}
	return n
}

func hasBondOrder(m *Molecule, a int, order BondOrder) bool {
	for _, b := range m.adj[a] {
		if m.Bonds[b].Order == order {
			return true
		}
	}
	return false
}

// ─────────────────────────────────────────────────────────────────────────────
// Topological polar surface area (Ertl, N and O contributions)
// ─────────────────────────────────────────────────────────────────────────────

type polarEnv struct {
	heavy, hydrogens, charge          int
	single, double, triple, aromBonds int
	aromatic, inThreeRing             bool
}

func polarEnvironment(m *Molecule, i int) polarEnv {
	ri := m.RingInfo()
	env := polarEnv{
		heavy:     m.HeavyDegree(i),
		hydrogens: m.TotalHydrogens(i),
		charge:    m.Atoms[i].Charge,
		aromatic:  m.IsAromaticAtom(i),
	}
	for _, b := range m.adj[i] {
		if m.Atoms[m.Bonds[b].Other(i)].IsHydrogen() {
			continue
		}
		switch {
		case m.IsAromaticBond(b):
			env.aromBonds++
		case m.Bonds[b].Order == BondDouble:
			env.double++
		case m.Bonds[b].Order == BondTriple:
			env.triple++
		default:
			env.single++
		}
	}
	for _, r := range ri.AtomRings(i) {
		if ri.Rings[r].Size() == 3 {
			env.inThreeRing = true
		}
	}
	return env
}

// TPSA is the topological polar surface area in Å² from nitrogen and oxygen
// fragment contributions. Unlisted environments fall back to a linear
// estimate on neighbour and hydrogen counts.
func TPSA(m *Molecule) float64 {
	total := 0.0
	for i, a := range m.Atoms {
		switch a.Symbol {
		case "N":
			total += nitrogenPSA(polarEnvironment(m, i))
		case "O":
			total += oxygenPSA(polarEnvironment(m, i))
		}
	}
	return total
}

func nitrogenPSA(e polarEnv) float64 {
	if e.aromatic && e.aromBonds > 0 {
		switch {
		case e.charge == 0 && e.hydrogens == 0 && e.heavy == 2:
			return 12.89
		case e.charge == 0 && e.hydrogens == 0 && e.heavy == 3 && e.aromBonds == 3:
			return 4.41
		case e.charge == 0 && e.hydrogens == 0 && e.heavy == 3 && e.single == 1:
			return 4.93
		case e.charge == 0 && e.hydrogens == 0 && e.heavy == 3 && e.double == 1:
			return 8.39
		case e.charge == 0 && e.hydrogens == 1 && e.heavy == 2:
			return 15.79
		case e.charge == 1 && e.hydrogens == 0 && e.heavy == 3 && e.aromBonds == 3:
			return 4.10
		case e.charge == 1 && e.hydrogens == 0 && e.heavy == 3 && e.single == 1:
			return 3.88
		case e.charge == 1 && e.hydrogens == 1 && e.heavy == 2:
			return 14.14
		}
		return fallbackPSA(30.5, 8.2, e)
	}

	switch e.charge {
	case 0:
		switch e.heavy {
		case 1:
			switch {
			case e.hydrogens == 0 && e.triple == 1:
				return 23.79
			case e.hydrogens == 1 && e.double == 1:
				return 23.85
			case e.hydrogens == 2 && e.single == 1:
				return 26.02
			}
		case 2:
			switch {
			case e.hydrogens == 0 && e.single == 1 && e.double == 1:
				return 12.36
			case e.hydrogens == 0 && e.double == 1 && e.triple == 1:
				return 13.60
			case e.hydrogens == 1 && e.single == 2 && e.inThreeRing:
				return 21.94
			case e.hydrogens == 1 && e.single == 2:
				return 12.03
			}
		case 3:
			switch {
			case e.hydrogens == 0 && e.single == 3 && e.inThreeRing:
				return 3.01
			case e.hydrogens == 0 && e.single == 3:
				return 3.24
			case e.hydrogens == 0 && e.single == 1 && e.double == 2:
				return 11.68
			}
		}
	case 1:
		switch e.heavy {
		case 1:
			switch {
			case e.hydrogens == 0 && e.triple == 1:
				return 4.36
			case e.hydrogens == 1 && e.double == 1:
				return 13.97
			case e.hydrogens == 2 && e.double == 1:
				return 25.59
			case e.hydrogens == 3 && e.single == 1:
				return 27.64
			}
		case 2:
			switch {
			case e.hydrogens == 0 && e.triple == 1:
				return 4.36
			case e.hydrogens == 1 && e.single == 1 && e.double == 1:
				return 13.97
			case e.hydrogens == 2 && e.single == 2:
				return 16.61
			}
		case 3:
			switch {
			case e.hydrogens == 0 && e.single == 2 && e.double == 1:
				return 3.01
			case e.hydrogens == 1 && e.single == 3:
				return 4.44
			}
		case 4:
			if e.single == 4 {
				return 0
			}
		}
	}
	return fallbackPSA(30.5, 8.2, e)
}

func oxygenPSA(e polarEnv) float64 {
	if e.aromatic && e.aromBonds > 0 {
		if e.charge == 0 && e.heavy == 2 {
			return 13.14
		}
		return fallbackPSA(28.5, 8.6, e)
	}
	switch {
	case e.charge == 0 && e.heavy == 2 && e.hydrogens == 0 && e.single == 2 && e.inThreeRing:
		return 12.53
	case e.charge == 0 && e.heavy == 2 && e.hydrogens == 0 && e.single == 2:
		return 9.23
	case e.charge == 0 && e.heavy == 1 && e.hydrogens == 0 && e.double == 1:
		return 17.07
	case e.charge == 0 && e.heavy == 1 && e.hydrogens == 1 && e.single == 1:
		return 20.23
	case e.charge == -1 && e.heavy == 1 && e.hydrogens == 0 && e.single == 1:
		return 23.06
	}
	return fallbackPSA(28.5, 8.6, e)
}

func fallbackPSA(base, perNeighbour float64, e polarEnv) float64 {
	v := base - float64(e.heavy)*perNeighbour + float64(e.hydrogens)*1.5
	if v < 0 {
		return 0
	}
	return v
}

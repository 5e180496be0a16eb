package molecule

// crippenContrib holds the reduced Wildman–Crippen atom-type logP
// contributions used by LogP.
var crippenContrib = map[string]float64{
	"C1": 0.1441, "C2": 0, "C3": -0.2035, "C4": -0.2051, "C5": -0.2783,
	"C6": 0.1551, "C7": 0.0017, "C8": 0.08452, "C9": -0.1444, "C10": -0.0516,
	"C11": 0.1193, "C12": -0.0967, "C13": -0.5443, "C14": 0, "C15": 0.2450,
	"C16": 0.1980, "C17": 0, "C18": 0.1581, "C19": 0.2955, "C20": 0.2713,
	"C21": 0.1360, "C22": 0.4619, "C23": 0.5437, "C24": 0.1893, "C25": -0.8186,
	"C26": 0.2640, "C27": 0.2148, "CS": 0.08129,

	"H1": 0.1230, "H2": -0.2677, "H3": 0.2142, "H4": 0.2980, "HS": 0.1125,

	"N1": -1.019, "N2": -0.7096, "N3": -1.027, "N4": -0.5188, "N5": 0.08387,
	"N6": 0.1836, "N7": -0.3187, "N8": -0.4458, "N9": 0.01508, "N10": -1.950,
	"N11": -0.3239, "N12": -1.119, "N14": 0.2578, "NS": -0.4806,

	"O1": 0.1552, "O2": -0.2893, "O3": -0.0684, "O4": -0.4195, "O5": 0.0335,
	"O6": -0.3339, "O7": -1.189, "O8": 0.1788, "O9": -0.1526, "O10": 0.1129,
	"O11": 0.4833, "O12": -1.326, "OS": -0.1188,

	"F": 0.4202, "Cl": 0.6895, "Br": 0.8456, "I": 0.8857,
	"S": 0.6482, "s": 0.6237, "P": 0.8612,
}

// LogP estimates the octanol/water partition coefficient as the sum of atom
// type contributions, hydrogens included.
func LogP(m *Molecule) float64 {
	types := CrippenTypes(m)
	total := 0.0
	for i, t := range types {
		total += crippenContrib[t]
		if m.Atoms[i].IsHydrogen() {
			continue
		}
		if h := m.TotalHydrogens(i) - explicitHydrogens(m, i); h > 0 {
			total += float64(h) * crippenContrib[hydrogenType(m, i, t)]
		}
	}
	return total
}

// CrippenTypes assigns an atom type to every atom. Explicit hydrogens are
// typed by their parent.
func CrippenTypes(m *Molecule) []string {
	types := make([]string, len(m.Atoms))
	for i, a := range m.Atoms {
		if a.IsHydrogen() {
			continue
		}
		switch a.Symbol {
		case "C":
			types[i] = carbonType(m, i)
		case "N":
			types[i] = nitrogenType(m, i)
		case "O":
			types[i] = oxygenType(m, i)
		case "S":
			if m.IsAromaticAtom(i) {
				types[i] = "s"
			} else {
				types[i] = "S"
			}
		default:
			types[i] = a.Symbol
		}
	}
	for i, a := range m.Atoms {
		if !a.IsHydrogen() {
			continue
		}
		types[i] = "HS"
		if nbs := m.Neighbors(i); len(nbs) == 1 {
			types[i] = hydrogenType(m, nbs[0], types[nbs[0]])
		}
	}
	return types
}

func explicitHydrogens(m *Molecule, i int) int {
	n := 0
	for _, nb := range m.Neighbors(i) {
		if m.Atoms[nb].IsHydrogen() {
			n++
		}
	}
	return n
}

func hydrogenType(m *Molecule, parent int, parentType string) string {
	switch m.Atoms[parent].Symbol {
	case "C":
		return "H1"
	case "N":
		return "H3"
	case "O":
		if parentType == "O12" {
			return "H4"
		}
		return "H2"
	}
	return "HS"
}

func isHetero(sym string) bool {
	switch sym {
	case "N", "O", "S", "P", "F", "Cl", "Br", "I":
		return true
	}
	return false
}

func carbonType(m *Molecule, i int) string {
	if m.Atoms[i].Charge != 0 {
		return "CS"
	}
	if m.IsAromaticAtom(i) {
		return aromaticCarbonType(m, i)
	}

	hetero, aromaticNbrs, aromaticHetero := 0, 0, 0
	for _, b := range m.adj[i] {
		bond := m.Bonds[b]
		nb := bond.Other(i)
		sym := m.Atoms[nb].Symbol
		switch bond.Order {
		case BondTriple:
			return "C7"
		case BondDouble:
			if isHetero(sym) {
				return "C5"
			}
			for _, nb2 := range m.Neighbors(i) {
				if m.IsAromaticAtom(nb2) {
					return "C26"
				}
			}
			return "C6"
		}
		if isHetero(sym) {
			hetero++
		}
		if m.IsAromaticAtom(nb) {
			aromaticNbrs++
			if sym != "C" {
				aromaticHetero++
			}
		}
	}

	h := m.TotalHydrogens(i)
	switch {
	case aromaticNbrs > 0 && hetero > 0:
		return "C13"
	case aromaticHetero > 0:
		return "C9"
	case aromaticNbrs > 0 && h >= 2:
		return "C8"
	case aromaticNbrs > 0 && h == 1:
		return "C11"
	case aromaticNbrs > 0:
		return "C12"
	case hetero > 0 && h >= 2:
		return "C3"
	case hetero > 0:
		return "C4"
	case h >= 2:
		return "C1"
	default:
		return "C2"
	}
}

func aromaticCarbonType(m *Molecule, i int) string {
	aromBonds := 0
	subst := ""
	for _, b := range m.adj[i] {
		bond := m.Bonds[b]
		nb := bond.Other(i)
		if m.Atoms[nb].IsHydrogen() {
			continue
		}
		if m.IsAromaticBond(b) {
			aromBonds++
			continue
		}
		if bond.Order == BondDouble && isHetero(m.Atoms[nb].Symbol) {
			return "C25"
		}
		switch sym := m.Atoms[nb].Symbol; {
		case sym == "N":
			subst = "C22"
		case sym == "O":
			subst = "C23"
		case sym == "S":
			subst = "C24"
		case sym == "F" || sym == "Cl" || sym == "Br" || sym == "I":
			subst = "C14"
		case m.IsAromaticAtom(nb):
			subst = "C20"
		case sym == "C" && subst == "":
			subst = "C21"
		}
	}
	if subst != "" {
		return subst
	}
	if aromBonds >= 3 {
		return "C19"
	}
	return "C18"
}

func nitrogenType(m *Molecule, i int) string {
	a := m.Atoms[i]
	if m.IsAromaticAtom(i) {
		if a.Charge != 0 {
			return "N12"
		}
		return "N11"
	}
	if a.Charge > 0 {
		return "N10"
	}
	if a.Charge < 0 {
		return "NS"
	}
	aromaticNbrs := 0
	for _, b := range m.adj[i] {
		bond := m.Bonds[b]
		switch bond.Order {
		case BondTriple:
			return "N14"
		case BondDouble:
			return "N9"
		}
		if m.IsAromaticAtom(bond.Other(i)) {
			aromaticNbrs++
		}
	}
	h := m.TotalHydrogens(i)
	switch {
	case aromaticNbrs > 0 && h == 2:
		return "N4"
	case aromaticNbrs > 0 && h == 1:
		return "N5"
	case aromaticNbrs > 0:
		return "N6"
	case h >= 3:
		return "N7"
	case h == 2:
		return "N1"
	case h == 1:
		return "N2"
	default:
		return "N3"
	}
}

func oxygenType(m *Molecule, i int) string {
	a := m.Atoms[i]
	if m.IsAromaticAtom(i) {
		return "O1"
	}
	if a.Charge < 0 {
		return "O7"
	}
	if a.Charge > 0 {
		return "OS"
	}
	nbs := m.Neighbors(i)
	for _, b := range m.adj[i] {
		bond := m.Bonds[b]
		if bond.Order != BondDouble {
			continue
		}
		nb := bond.Other(i)
		switch {
		case m.IsAromaticAtom(nb):
			return "O8"
		case m.Atoms[nb].Symbol == "N" || m.Atoms[nb].Symbol == "S":
			return "O5"
		case carbonHasOtherHetero(m, nb, i):
			return "O11"
		case attachedToAromatic(m, nb):
			return "O10"
		default:
			return "O9"
		}
	}

	if m.TotalHydrogens(i) > 0 {
		for _, nb := range nbs {
			if isCarbonyl(m, nb) {
				return "O12"
			}
		}
		return "O2"
	}
	for _, nb := range nbs {
		if m.IsAromaticAtom(nb) {
			return "O4"
		}
	}
	if len(nbs) == 2 {
		return "O3"
	}
	return "OS"
}

func carbonHasOtherHetero(m *Molecule, c, except int) bool {
	for _, nb := range m.Neighbors(c) {
		if nb != except && isHetero(m.Atoms[nb].Symbol) {
			return true
		}
	}
	return false
}

func attachedToAromatic(m *Molecule, c int) bool {
	for _, nb := range m.Neighbors(c) {
		if m.IsAromaticAtom(nb) {
			return true
		}
	}
	return false
}

func isCarbonyl(m *Molecule, c int) bool {
	if m.Atoms[c].Symbol != "C" {
		return false
	}
	for _, b := range m.adj[c] {
		bond := m.Bonds[b]
		if bond.Order == BondDouble && m.Atoms[bond.Other(c)].Symbol == "O" {
			return true
		}
	}
	return false
}

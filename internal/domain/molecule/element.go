// Package molecule holds the molecular graph model used throughout ChemSight:
// the element table, atoms and bonds, the SMILES reader and canonical writer,
// ring and aromaticity perception, formula and weight, physicochemical
// descriptors, fingerprints and MOL V2000 I/O.
//
// Molecules are plain value slices indexed by atom id. Nothing in this package
// performs I/O beyond io.Reader/io.Writer arguments.
package molecule

import "strings"

// Element describes the per-element constants the model needs.
type Element struct {
	Number   int
	Symbol   string
	Name     string
	Weight   float64 // IUPAC standard atomic weight (abridged)
	Valences []int   // default valences, ascending
	// CovalentRadius is the single-bond covalent radius in Å.
	CovalentRadius float64
	// Electronegativity on the Pauling scale; 0 when undefined.
	Electronegativity float64
	// Color is the CPK hex colour used for depictions.
	Color string
}

// DefaultValence returns the smallest default valence, or 0 for elements
// without one (metals, noble gases).
func (e Element) DefaultValence() int {
	if len(e.Valences) == 0 {
		return 0
	}
	return e.Valences[0]
}

var elements = []Element{
	{1, "H", "Hydrogen", 1.008, []int{1}, 0.31, 2.20, "#FFFFFF"},
	{2, "He", "Helium", 4.0026, nil, 0.28, 0, "#D9FFFF"},
	{3, "Li", "Lithium", 6.94, []int{1}, 1.28, 0.98, "#CC80FF"},
	{4, "Be", "Beryllium", 9.0122, []int{2}, 0.96, 1.57, "#C2FF00"},
	{5, "B", "Boron", 10.81, []int{3}, 0.84, 2.04, "#FFB5B5"},
	{6, "C", "Carbon", 12.011, []int{4}, 0.76, 2.55, "#909090"},
	{7, "N", "Nitrogen", 14.007, []int{3, 5}, 0.71, 3.04, "#3050F8"},
	{8, "O", "Oxygen", 15.999, []int{2}, 0.66, 3.44, "#FF0D0D"},
	{9, "F", "Fluorine", 18.998, []int{1}, 0.57, 3.98, "#90E050"},
	{10, "Ne", "Neon", 20.180, nil, 0.58, 0, "#B3E3F5"},
	{11, "Na", "Sodium", 22.990, []int{1}, 1.66, 0.93, "#AB5CF2"},
	{12, "Mg", "Magnesium", 24.305, []int{2}, 1.41, 1.31, "#8AFF00"},
	{13, "Al", "Aluminium", 26.982, []int{3}, 1.21, 1.61, "#BFA6A6"},
	{14, "Si", "Silicon", 28.085, []int{4}, 1.11, 1.90, "#F0C8A0"},
	{15, "P", "Phosphorus", 30.974, []int{3, 5}, 1.07, 2.19, "#FF8000"},
	{16, "S", "Sulfur", 32.06, []int{2, 4, 6}, 1.05, 2.58, "#FFFF30"},
	{17, "Cl", "Chlorine", 35.45, []int{1}, 1.02, 3.16, "#1FF01F"},
	{18, "Ar", "Argon", 39.95, nil, 1.06, 0, "#80D1E3"},
	{19, "K", "Potassium", 39.098, []int{1}, 2.03, 0.82, "#8F40D4"},
	{20, "Ca", "Calcium", 40.078, []int{2}, 1.76, 1.00, "#3DFF00"},
	{26, "Fe", "Iron", 55.845, nil, 1.32, 1.83, "#E06633"},
	{29, "Cu", "Copper", 63.546, nil, 1.32, 1.90, "#C88033"},
	{30, "Zn", "Zinc", 65.38, nil, 1.22, 1.65, "#7D80B0"},
	{33, "As", "Arsenic", 74.922, []int{3, 5}, 1.19, 2.18, "#BD80E3"},
	{34, "Se", "Selenium", 78.971, []int{2, 4, 6}, 1.20, 2.55, "#FFA100"},
	{35, "Br", "Bromine", 79.904, []int{1}, 1.20, 2.96, "#A62929"},
	{53, "I", "Iodine", 126.90, []int{1, 3, 5}, 1.39, 2.66, "#940094"},
}

var (
	bySymbol = func() map[string]Element {
		m := make(map[string]Element, len(elements))
		for _, e := range elements {
			m[e.Symbol] = e
		}
		return m
	}()
	byNumber = func() map[int]Element {
		m := make(map[int]Element, len(elements))
		for _, e := range elements {
			m[e.Number] = e
		}
		return m
	}()
)

// LookupElement returns the element with the given symbol (case-sensitive).
func LookupElement(symbol string) (Element, bool) {
	e, ok := bySymbol[symbol]
	return e, ok
}

// LookupElementFold is LookupElement with the first letter upper-cased and
// the rest lower-cased, so "cl" and "CL" both resolve to chlorine.
func LookupElementFold(symbol string) (Element, bool) {
	if symbol == "" {
		return Element{}, false
	}
	return LookupElement(strings.ToUpper(symbol[:1]) + strings.ToLower(symbol[1:]))
}

// ElementByNumber returns the element with the given atomic number.
func ElementByNumber(z int) (Element, bool) {
	e, ok := byNumber[z]
	return e, ok
}

// MustElement panics when symbol is unknown. For package-level tables only.
func MustElement(symbol string) Element {
	e, ok := LookupElement(symbol)
	if !ok {
		panic("molecule: unknown element " + symbol)
	}
	return e
}

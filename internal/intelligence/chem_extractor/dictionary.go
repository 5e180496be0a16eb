package chem_extractor

import (
	"strings"
	"sync"

	"github.com/turtacn/ChemSight/internal/domain/molecule"
)

// DictionaryEntry is a single curated compound.
type DictionaryEntry struct {
	Name        string   `json:"name"`
	Synonyms    []string `json:"synonyms,omitempty"`
	SMILES      string   `json:"smiles"`
	CASNumber   string   `json:"casNumber,omitempty"`
	Formula     string   `json:"formula,omitempty"`
	Description string   `json:"description,omitempty"`

	// Properties are reference values overriding computed descriptors.
	Properties *molecule.Descriptors `json:"properties,omitempty"`

	// Priority orders entries matched in the same query; lower wins. It is
	// assigned from insertion order.
	Priority int `json:"priority"`

	canonical string
}

// Names returns the entry name followed by its synonyms.
func (e *DictionaryEntry) Names() []string {
	return append([]string{e.Name}, e.Synonyms...)
}

// DictionaryMatch is one occurrence of a dictionary name in a text.
type DictionaryMatch struct {
	Entry *DictionaryEntry
	Name  string
	Start int
	End   int
}

// Dictionary is an in-memory curated compound dictionary supporting
// case-insensitive substring matching.
type Dictionary struct {
	mu          sync.RWMutex
	entries     []*DictionaryEntry
	byName      map[string]*DictionaryEntry
	byCAS       map[string]*DictionaryEntry
	byFormula   map[string][]*DictionaryEntry
	byCanonical map[string]*DictionaryEntry
}

// NewDictionary creates a dictionary holding entries in priority order.
func NewDictionary(entries ...*DictionaryEntry) *Dictionary {
	d := &Dictionary{
		byName:      make(map[string]*DictionaryEntry),
		byCAS:       make(map[string]*DictionaryEntry),
		byFormula:   make(map[string][]*DictionaryEntry),
		byCanonical: make(map[string]*DictionaryEntry),
	}
	for _, e := range entries {
		d.Add(e)
	}
	return d
}

// Add appends e with the next priority. Names already present keep their
// original entry.
func (d *Dictionary) Add(e *DictionaryEntry) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e.Priority = len(d.entries)
	if mol, err := molecule.ParseSMILES(e.SMILES); err == nil {
		e.canonical = molecule.CanonicalSMILES(mol)
		if e.Formula == "" {
			e.Formula = mol.Formula()
		}
	}
	d.entries = append(d.entries, e)

	for _, n := range e.Names() {
		key := foldASCII(strings.TrimSpace(n))
		if _, ok := d.byName[key]; !ok && key != "" {
			d.byName[key] = e
		}
	}
	if e.CASNumber != "" {
		d.byCAS[e.CASNumber] = e
	}
	if e.Formula != "" {
		d.byFormula[e.Formula] = append(d.byFormula[e.Formula], e)
	}
	if e.canonical != "" {
		if _, ok := d.byCanonical[e.canonical]; !ok {
			d.byCanonical[e.canonical] = e
		}
	}
}

// Lookup finds an entry by exact name or synonym, ignoring case.
func (d *Dictionary) Lookup(name string) (*DictionaryEntry, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.byName[foldASCII(strings.TrimSpace(name))]
	return e, ok
}

// LookupCAS finds an entry by CAS registry number.
func (d *Dictionary) LookupCAS(cas string) (*DictionaryEntry, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.byCAS[strings.TrimSpace(cas)]
	return e, ok
}

// LookupFormula finds the entry with the given Hill formula. Formulas shared
// by several entries are ambiguous and not found.
func (d *Dictionary) LookupFormula(formula string) (*DictionaryEntry, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	es := d.byFormula[NormaliseFormula(formula)]
	if len(es) != 1 {
		return nil, false
	}
	return es[0], true
}

// LookupCanonical finds an entry by canonical SMILES.
func (d *Dictionary) LookupCanonical(canonical string) (*DictionaryEntry, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.byCanonical[canonical]
	return e, ok
}

// Size returns the number of entries.
func (d *Dictionary) Size() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}

// Entries returns the entries in priority order.
func (d *Dictionary) Entries() []*DictionaryEntry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]*DictionaryEntry(nil), d.entries...)
}

// Match returns every case-insensitive occurrence of every entry name in
// text, in priority order. Overlaps are not resolved.
func (d *Dictionary) Match(text string) []DictionaryMatch {
	d.mu.RLock()
	defer d.mu.RUnlock()

	lower := foldASCII(text)
	var out []DictionaryMatch
	for _, e := range d.entries {
		for _, n := range e.Names() {
			needle := foldASCII(strings.TrimSpace(n))
			if needle == "" {
				continue
			}
			for from := 0; from < len(lower); {
				i := strings.Index(lower[from:], needle)
				if i < 0 {
					break
				}
				start := from + i
				out = append(out, DictionaryMatch{Entry: e, Name: n, Start: start, End: start + len(needle)})
				from = start + 1
			}
		}
	}
	return out
}

// foldASCII lower-cases ASCII letters only, so byte offsets are preserved.
func foldASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// ---------------------------------------------------------------------------
// Curated entries
// ---------------------------------------------------------------------------

// Reference compounds. Their order fixes the priority benzene, caffeine,
// aspirin.
var (
	Benzene = &DictionaryEntry{
		Name:      "Benzene",
		Synonyms:  []string{"benzol"},
		SMILES:    "c1ccccc1",
		CASNumber: "71-43-2",
		Description: "Benzene is a colorless, highly flammable liquid with a sweet odor. " +
			"It is a fundamental aromatic hydrocarbon and an important industrial solvent and precursor " +
			"in the production of drugs, plastics, synthetic rubber, and dyes.",
		Properties: &molecule.Descriptors{LogP: 2.13, TPSA: 0, RotatableBonds: 0, HBondDonors: 0, HBondAcceptors: 0},
	}
	Caffeine = &DictionaryEntry{
		Name:      "Caffeine",
		Synonyms:  []string{"1,3,7-trimethylxanthine", "guaranine"},
		SMILES:    "CN1C=NC2=C1C(=O)N(C(=O)N2C)C",
		CASNumber: "58-08-2",
		Description: "Caffeine is a central nervous system stimulant and the world's most widely consumed " +
			"psychoactive drug. It is found naturally in coffee beans, tea leaves, and cacao beans.",
		Properties: &molecule.Descriptors{LogP: -0.07, TPSA: 58.44, RotatableBonds: 0, HBondDonors: 0, HBondAcceptors: 6},
	}
	Aspirin = &DictionaryEntry{
		Name:      "Aspirin",
		Synonyms:  []string{"acetylsalicylic acid"},
		SMILES:    "CC(=O)OC1=CC=CC=C1C(=O)O",
		CASNumber: "50-78-2",
		Description: "Aspirin, also known as acetylsalicylic acid, is a medication used to reduce pain, fever, " +
			"or inflammation. It is also used as an antiplatelet agent to reduce the risk of heart attacks and strokes.",
		Properties: &molecule.Descriptors{LogP: 1.19, TPSA: 63.6, RotatableBonds: 3, HBondDonors: 1, HBondAcceptors: 4},
	}
)

func commonEntries() []*DictionaryEntry {
	return []*DictionaryEntry{
		{Name: "Water", SMILES: "O", CASNumber: "7732-18-5",
			Description: "Water is the most abundant compound on the Earth's surface and the solvent of life."},
		{Name: "Methanol", Synonyms: []string{"methyl alcohol"}, SMILES: "CO", CASNumber: "67-56-1",
			Description: "Methanol is the simplest alcohol, a toxic volatile solvent and fuel."},
		{Name: "Ethanol", Synonyms: []string{"ethyl alcohol"}, SMILES: "CCO", CASNumber: "64-17-5",
			Description: "Ethanol is a volatile alcohol used as a solvent, fuel and in beverages."},
		{Name: "Acetone", Synonyms: []string{"propanone"}, SMILES: "CC(C)=O", CASNumber: "67-64-1",
			Description: "Acetone is the simplest ketone and a widely used laboratory solvent."},
		{Name: "Acetic acid", Synonyms: []string{"ethanoic acid"}, SMILES: "CC(=O)O", CASNumber: "64-19-7",
			Description: "Acetic acid is a carboxylic acid and the main component of vinegar apart from water."},
		{Name: "Toluene", Synonyms: []string{"methylbenzene"}, SMILES: "Cc1ccccc1", CASNumber: "108-88-3",
			Description: "Toluene is an aromatic hydrocarbon widely used as an industrial solvent."},
		{Name: "Phenol", Synonyms: []string{"carbolic acid"}, SMILES: "Oc1ccccc1", CASNumber: "108-95-2",
			Description: "Phenol is an aromatic alcohol and a precursor to plastics and pharmaceuticals."},
		{Name: "Naphthalene", SMILES: "c1ccc2ccccc2c1", CASNumber: "91-20-3",
			Description: "Naphthalene is the simplest polycyclic aromatic hydrocarbon."},
		{Name: "Pyridine", SMILES: "c1ccncc1", CASNumber: "110-86-1",
			Description: "Pyridine is a basic heterocyclic aromatic compound used as a solvent and reagent."},
		{Name: "Salicylic acid", SMILES: "O=C(O)c1ccccc1O", CASNumber: "69-72-7",
			Description: "Salicylic acid is a phenolic acid used in skin care and as the precursor of aspirin."},
		{Name: "Ibuprofen", SMILES: "CC(C)Cc1ccc(cc1)C(C)C(=O)O", CASNumber: "15687-27-1",
			Description: "Ibuprofen is a nonsteroidal anti-inflammatory drug used to treat pain and fever."},
		{Name: "Paracetamol", Synonyms: []string{"acetaminophen"}, SMILES: "CC(=O)Nc1ccc(O)cc1", CASNumber: "103-90-2",
			Description: "Paracetamol is an analgesic and antipyretic medication."},
		{Name: "Nicotine", SMILES: "CN1CCC[C@H]1c1cccnc1", CASNumber: "54-11-5",
			Description: "Nicotine is an alkaloid stimulant found in the tobacco plant."},
		{Name: "Glucose", Synonyms: []string{"dextrose"}, SMILES: "OC[C@H]1OC(O)[C@H](O)[C@@H](O)[C@@H]1O", CASNumber: "50-99-7",
			Description: "Glucose is a simple sugar and the primary energy source of living cells."},
		{Name: "Urea", Synonyms: []string{"carbamide"}, SMILES: "NC(N)=O", CASNumber: "57-13-6",
			Description: "Urea is the main nitrogen-containing end product of protein metabolism."},
	}
}

// DefaultDictionary returns the curated dictionary: the reference compounds
// first, then common solvents and drugs.
func DefaultDictionary() *Dictionary {
	d := NewDictionary()
	for _, e := range []*DictionaryEntry{Benzene, Caffeine, Aspirin} {
		cp := *e
		cp.Synonyms = append([]string(nil), e.Synonyms...)
		d.Add(&cp)
	}
	for _, e := range commonEntries() {
		d.Add(e)
	}
	return d
}

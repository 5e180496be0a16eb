package chem_extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultDictionary_ReferenceOrder(t *testing.T) {
	d := DefaultDictionary()
	entries := d.Entries()
	require.GreaterOrEqual(t, len(entries), 3)
	assert.Equal(t, "Benzene", entries[0].Name)
	assert.Equal(t, "Caffeine", entries[1].Name)
	assert.Equal(t, "Aspirin", entries[2].Name)
	for i, e := range entries {
		assert.Equal(t, i, e.Priority)
	}
}

func TestDefaultDictionary_Formulas(t *testing.T) {
	d := DefaultDictionary()

	tests := map[string]string{
		"Benzene":  "C6H6",
		"Caffeine": "C8H10N4O2",
		"Aspirin":  "C9H8O4",
	}
	for name, formula := range tests {
		e, ok := d.Lookup(name)
		require.True(t, ok, name)
		assert.Equal(t, formula, e.Formula, name)
	}
}

func TestDefaultDictionary_DoesNotShareReferenceEntries(t *testing.T) {
	d := DefaultDictionary()
	e, ok := d.Lookup("benzene")
	require.True(t, ok)
	assert.NotSame(t, Benzene, e)
	assert.Equal(t, Benzene.Description, e.Description)
}

func TestDictionary_Lookups(t *testing.T) {
	d := DefaultDictionary()

	e, ok := d.Lookup("  ACETYLSALICYLIC acid ")
	require.True(t, ok)
	assert.Equal(t, "Aspirin", e.Name)

	e, ok = d.LookupCAS("58-08-2")
	require.True(t, ok)
	assert.Equal(t, "Caffeine", e.Name)

	e, ok = d.LookupFormula("C₆H₆")
	require.True(t, ok)
	assert.Equal(t, "Benzene", e.Name)

	e, ok = d.LookupCanonical(e.canonical)
	require.True(t, ok)
	assert.Equal(t, "Benzene", e.Name)

	_, ok = d.Lookup("unobtainium")
	assert.False(t, ok)
}

func TestDictionary_AmbiguousFormula(t *testing.T) {
	d := NewDictionary(
		&DictionaryEntry{Name: "Ethanol", SMILES: "CCO"},
		&DictionaryEntry{Name: "Dimethyl ether", SMILES: "COC"},
	)
	_, ok := d.LookupFormula("C2H6O")
	assert.False(t, ok)
}

func TestDictionary_FirstNameWins(t *testing.T) {
	d := NewDictionary(
		&DictionaryEntry{Name: "Alpha", Synonyms: []string{"shared"}, SMILES: "C"},
		&DictionaryEntry{Name: "Beta", Synonyms: []string{"Shared"}, SMILES: "CC"},
	)
	e, ok := d.Lookup("shared")
	require.True(t, ok)
	assert.Equal(t, "Alpha", e.Name)
	assert.Equal(t, 2, d.Size())
}

func TestDictionary_Match(t *testing.T) {
	d := DefaultDictionary()

	matches := d.Match("Methanol is not ethanol")
	var names []string
	for _, m := range matches {
		names = append(names, m.Entry.Name)
	}
	// Ethanol occurs both inside "Methanol" and on its own.
	assert.ElementsMatch(t, []string{"Methanol", "Ethanol", "Ethanol"}, names)

	for _, m := range matches {
		assert.Equal(t, foldASCII(m.Name), foldASCII("Methanol is not ethanol"[m.Start:m.End]))
	}
}

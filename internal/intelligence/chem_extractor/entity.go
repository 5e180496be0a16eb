package chem_extractor

import (
	"fmt"
	"strings"

	"github.com/turtacn/ChemSight/internal/domain/molecule"
)

// ---------------------------------------------------------------------------
// EntityType enumeration
// ---------------------------------------------------------------------------

// EntityType classifies the kind of chemical mention recognised in a query.
type EntityType string

const (
	EntityCommonName       EntityType = "COMMON_NAME"
	EntityIUPACName        EntityType = "IUPAC_NAME"
	EntitySMILES           EntityType = "SMILES"
	EntityCASNumber        EntityType = "CAS_NUMBER"
	EntityMolecularFormula EntityType = "MOLECULAR_FORMULA"
	EntityInChI            EntityType = "INCHI"
)

// IsName reports whether t is a free-text name.
func (t EntityType) IsName() bool {
	return t == EntityCommonName || t == EntityIUPACName
}

// CandidateSource records which stage of extraction produced a candidate.
type CandidateSource string

const (
	SourceDictionary CandidateSource = "dictionary"
	SourcePattern    CandidateSource = "pattern"
	SourceLLM        CandidateSource = "llm"
	SourceQuery      CandidateSource = "query"
)

func (s CandidateSource) rank() int {
	switch s {
	case SourceDictionary:
		return 0
	case SourcePattern:
		return 1
	case SourceLLM:
		return 2
	}
	return 3
}

// ---------------------------------------------------------------------------
// Candidate
// ---------------------------------------------------------------------------

// Candidate is a single chemical mention found in a query. Offsets are byte
// offsets into the normalised query.
type Candidate struct {
	Text        string          `json:"text"`
	Type        EntityType      `json:"type"`
	Confidence  float64         `json:"confidence"`
	StartOffset int             `json:"startOffset"`
	EndOffset   int             `json:"endOffset"`
	Source      CandidateSource `json:"source"`

	// Entry is the dictionary entry behind a dictionary match.
	Entry *DictionaryEntry `json:"-"`

	// SuggestedSMILES is a structure proposed together with a name by the
	// LLM extractor. It is used only when the name itself cannot be resolved.
	SuggestedSMILES string `json:"suggestedSmiles,omitempty"`
}

func (c *Candidate) String() string {
	return fmt.Sprintf("%s(%q)@%d-%d", c.Type, c.Text, c.StartOffset, c.EndOffset)
}

func (c *Candidate) length() int { return c.EndOffset - c.StartOffset }

func (c *Candidate) priority() int {
	if c.Entry != nil {
		return c.Entry.Priority
	}
	return 1 << 30
}

// CacheKey is the resolver cache key of a mention: "<type>::<lower(text)>".
func CacheKey(t EntityType, text string) string {
	return fmt.Sprintf("%s::%s", t, strings.ToLower(strings.TrimSpace(text)))
}

// ---------------------------------------------------------------------------
// ResolvedCompound
// ---------------------------------------------------------------------------

// ResolutionMethod names the link of the resolver chain that produced a
// structure.
type ResolutionMethod string

const (
	MethodDictionary ResolutionMethod = "dictionary"
	MethodStore      ResolutionMethod = "store"
	MethodPubChem    ResolutionMethod = "pubchem"
	MethodSMILES     ResolutionMethod = "smiles"
	MethodLLM        ResolutionMethod = "llm"
	MethodNotFound   ResolutionMethod = "not_found"
)

// ResolvedCompound is the standardised result of resolving a candidate.
type ResolvedCompound struct {
	Candidate   *Candidate       `json:"candidate,omitempty"`
	Name        string           `json:"name"`
	Synonyms    []string         `json:"synonyms,omitempty"`
	Description string           `json:"description,omitempty"`
	SMILES      string           `json:"smiles,omitempty"`
	CASNumber   string           `json:"casNumber,omitempty"`
	InChI       string           `json:"inchi,omitempty"`
	PubChemCID  int64            `json:"pubchemCid,omitempty"`
	Method      ResolutionMethod `json:"method"`
	Resolved    bool             `json:"resolved"`

	// Properties holds curated reference values that take precedence over
	// computed descriptors.
	Properties *molecule.Descriptors `json:"properties,omitempty"`
}

func notFound(c *Candidate) *ResolvedCompound {
	name := ""
	if c != nil {
		name = c.Text
	}
	return &ResolvedCompound{Candidate: c, Name: name, Method: MethodNotFound}
}

func fromEntry(c *Candidate, e *DictionaryEntry) *ResolvedCompound {
	return &ResolvedCompound{
		Candidate:   c,
		Name:        e.Name,
		Synonyms:    append([]string(nil), e.Synonyms...),
		Description: e.Description,
		SMILES:      e.SMILES,
		CASNumber:   e.CASNumber,
		Properties:  e.Properties,
		Method:      MethodDictionary,
		Resolved:    true,
	}
}

func fromCompound(c *Candidate, cp *molecule.Compound) *ResolvedCompound {
	return &ResolvedCompound{
		Candidate:   c,
		Name:        cp.Name,
		Synonyms:    append([]string(nil), cp.Synonyms...),
		Description: cp.Description,
		SMILES:      cp.SMILES,
		PubChemCID:  cp.PubChemCID,
		Method:      MethodStore,
		Resolved:    true,
	}
}

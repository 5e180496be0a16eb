// Package chemical defines the wire types of the ChemSight API: the
// analysis result returned for a query, measurement requests, search hits
// and the PubChem record exchanged between resolver and client. Only plain
// data lives here so that any layer, and the Go SDK, can import it.
package chemical

import (
	"strings"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Detection
// ─────────────────────────────────────────────────────────────────────────────

// Texts of the undetected payload.
const (
	UnknownCompound    = "Unknown"
	UnknownDescription = "Chemical compound information not available."
)

// Source identifies how a compound was resolved.
type Source string

const (
	SourceDictionary Source = "dictionary"
	SourceStore      Source = "store"
	SourcePubChem    Source = "pubchem"
	SourceSMILES     Source = "smiles"
	SourceLLM        Source = "llm"
	SourceNotFound   Source = "not_found"
)

// ─────────────────────────────────────────────────────────────────────────────
// ChemicalResult
// ─────────────────────────────────────────────────────────────────────────────

// BondAnalysis aggregates the bonds sharing a label such as "C-C Aromatic".
type BondAnalysis struct {
	BondType        string    `json:"bondType"`
	Count           int       `json:"count"`
	Percentage      float64   `json:"percentage"`
	AverageDistance float64   `json:"averageDistance"`
	AverageAngle    float64   `json:"averageAngle"`
	Geometry        string    `json:"geometry,omitempty"`
	Distances       []float64 `json:"distances"`
	Angles          []float64 `json:"angles"`
}

// Properties are the physicochemical descriptors of a compound.
type Properties struct {
	LogP             float64 `json:"logP"`
	PolarSurfaceArea float64 `json:"polarSurfaceArea"`
	RotorBonds       int     `json:"rotorBonds"`
	HBondDonors      int     `json:"hBondDonors"`
	HBondAcceptors   int     `json:"hBondAcceptors"`
}

// MoleculeInfo holds the topology counts; atom and bond counts include
// hydrogens.
type MoleculeInfo struct {
	AtomCount      int `json:"atomCount"`
	BondCount      int `json:"bondCount"`
	RingCount      int `json:"ringCount"`
	AromaticRings  int `json:"aromaticRings"`
	HeavyAtomCount int `json:"heavyAtomCount"`
	FormalCharge   int `json:"formalCharge"`
}

// LipinskiCriterion is one rule-of-five check.
type LipinskiCriterion struct {
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
	Limit  float64 `json:"limit"`
	Passed bool    `json:"passed"`
}

// Assessment is the drug-likeness verdict with coarse property labels.
type Assessment struct {
	DrugLike      bool                `json:"drugLike"`
	Label         string              `json:"label"`
	PassedRules   int                 `json:"passedRules"`
	Criteria      []LipinskiCriterion `json:"criteria"`
	Lipophilicity string              `json:"lipophilicity"`
	Polarity      string              `json:"polarity"`
	Flexibility   string              `json:"flexibility"`
	Size          string              `json:"size"`
}

// BondMeasurement is one row of the per-bond table.
type BondMeasurement struct {
	Serial         int       `json:"serial"`
	Atoms          [2]int    `json:"atoms"`
	Elements       [2]string `json:"elements"`
	Label          string    `json:"label"`
	BondType       string    `json:"bondType"`
	Distance       float64   `json:"distance"`
	Classification string    `json:"classification"`
}

// AngleMeasurement is one row of the per-angle table; Atoms[1] is the vertex.
type AngleMeasurement struct {
	Serial         int       `json:"serial"`
	Atoms          [3]int    `json:"atoms"`
	Elements       [3]string `json:"elements"`
	Label          string    `json:"label"`
	Angle          float64   `json:"angle"`
	Classification string    `json:"classification"`
}

// BondSummary condenses the geometry tables.
type BondSummary struct {
	TotalBonds      int     `json:"totalBonds"`
	AverageDistance float64 `json:"averageDistance"`
	AverageAngle    float64 `json:"averageAngle"`
	MinDistance     float64 `json:"minDistance"`
	MaxDistance     float64 `json:"maxDistance"`
	MinAngle        float64 `json:"minAngle"`
	MaxAngle        float64 `json:"maxAngle"`
	UniqueBondTypes int     `json:"uniqueBondTypes"`
}

// ChemicalResult is the analysis of one query.
type ChemicalResult struct {
	IsDetected        bool               `json:"isDetected"`
	Compound          string             `json:"compound"`
	Description       string             `json:"description"`
	SMILES            string             `json:"smiles"`
	CanonicalSMILES   string             `json:"canonicalSmiles,omitempty"`
	MolecularFormula  string             `json:"molecularFormula"`
	MolecularWeight   float64            `json:"molecularWeight"`
	Structure2D       string             `json:"structure2D,omitempty"`
	Structure3D       string             `json:"structure3D,omitempty"`
	BondAnalysis      []BondAnalysis     `json:"bondAnalysis"`
	Properties        *Properties        `json:"properties,omitempty"`
	MoleculeInfo      *MoleculeInfo      `json:"moleculeInfo,omitempty"`
	Assessment        *Assessment        `json:"assessment,omitempty"`
	BondMeasurements  []BondMeasurement  `json:"bondMeasurements,omitempty"`
	AngleMeasurements []AngleMeasurement `json:"angleMeasurements,omitempty"`
	Summary           *BondSummary       `json:"summary,omitempty"`
	Source            Source             `json:"source"`
	Query             string             `json:"query,omitempty"`
	PubChemCID        int64              `json:"pubchemCid,omitempty"`
	CompoundID        string             `json:"compoundId,omitempty"`
	AnalyzedAt        time.Time          `json:"analyzedAt"`
}

// Undetected returns the payload for a query that named no known compound.
func Undetected(query string) *ChemicalResult {
	return &ChemicalResult{
		IsDetected:   false,
		Compound:     UnknownCompound,
		Description:  UnknownDescription,
		BondAnalysis: []BondAnalysis{},
		MoleculeInfo: &MoleculeInfo{},
		Source:       SourceNotFound,
		Query:        query,
		AnalyzedAt:   time.Now().UTC(),
	}
}

// BondTypes lists the bond labels of the result in report order.
func (r *ChemicalResult) BondTypes() []string {
	out := make([]string, 0, len(r.BondAnalysis))
	for _, b := range r.BondAnalysis {
		out = append(out, b.BondType)
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Requests and responses
// ─────────────────────────────────────────────────────────────────────────────

// AnalyzeSMILESRequest asks for the analysis of a structure.
type AnalyzeSMILESRequest struct {
	SMILES string `json:"smiles" binding:"required"`
	Name   string `json:"name,omitempty"`
}

// MeasureRequest asks for a distance, angle or dihedral on the conformer of
// a structure given either as SMILES or as a query.
type MeasureRequest struct {
	SMILES string `json:"smiles,omitempty"`
	Query  string `json:"query,omitempty"`
	Kind   string `json:"kind" binding:"required"`
	Atoms  []int  `json:"atoms" binding:"required"`
}

// Measurement is a single geometric measurement.
type Measurement struct {
	Kind           string   `json:"kind"`
	Atoms          []int    `json:"atoms"`
	Elements       []string `json:"elements"`
	Value          float64  `json:"value"`
	Unit           string   `json:"unit"`
	Classification string   `json:"classification,omitempty"`
	SMILES         string   `json:"smiles"`
}

// ValidateSMILESRequest asks whether a string is valid SMILES.
type ValidateSMILESRequest struct {
	SMILES string `json:"smiles"`
}

// ValidationIssue is one problem found in a SMILES string. Position is the
// zero-based offset, or -1 when not applicable.
type ValidationIssue struct {
	Position int    `json:"position"`
	Message  string `json:"message"`
}

// ValidateSMILESResponse reports the validity of a SMILES string.
type ValidateSMILESResponse struct {
	Valid           bool              `json:"valid"`
	Issues          []ValidationIssue `json:"issues"`
	CanonicalSMILES string            `json:"canonicalSmiles,omitempty"`
}

// CompoundHit is one search or similarity result.
type CompoundHit struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Synonyms         []string `json:"synonyms,omitempty"`
	SMILES           string   `json:"smiles"`
	CanonicalSMILES  string   `json:"canonicalSmiles"`
	MolecularFormula string   `json:"molecularFormula"`
	MolecularWeight  float64  `json:"molecularWeight"`
	Score            float64  `json:"score"`
}

// SearchResponse wraps compound hits.
type SearchResponse struct {
	Query string        `json:"query"`
	Total int           `json:"total"`
	Hits  []CompoundHit `json:"hits"`
}

// LLMRequest is the body of the completion endpoint.
type LLMRequest struct {
	Text string `json:"text" binding:"required"`
}

// LLMResponse carries the completion text.
type LLMResponse struct {
	Response string `json:"response"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Events
// ─────────────────────────────────────────────────────────────────────────────

// CompoundAnalyzedEvent is published after a compound was analysed.
type CompoundAnalyzedEvent struct {
	EventID          string    `json:"eventId"`
	CompoundID       string    `json:"compoundId"`
	Name             string    `json:"name"`
	Synonyms         []string  `json:"synonyms,omitempty"`
	SMILES           string    `json:"smiles"`
	CanonicalSMILES  string    `json:"canonicalSmiles"`
	MolecularFormula string    `json:"molecularFormula"`
	MolecularWeight  float64   `json:"molecularWeight"`
	Description      string    `json:"description,omitempty"`
	Source           Source    `json:"source"`
	Query            string    `json:"query,omitempty"`
	OccurredAt       time.Time `json:"occurredAt"`
}

// ─────────────────────────────────────────────────────────────────────────────
// PubChem
// ─────────────────────────────────────────────────────────────────────────────

// PubChemRecord is the subset of a PubChem compound record used for
// resolution.
type PubChemRecord struct {
	CID              int64    `json:"cid"`
	Title            string   `json:"title,omitempty"`
	IUPACName        string   `json:"iupacName,omitempty"`
	CanonicalSMILES  string   `json:"canonicalSmiles,omitempty"`
	IsomericSMILES   string   `json:"isomericSmiles,omitempty"`
	MolecularFormula string   `json:"molecularFormula,omitempty"`
	MolecularWeight  float64  `json:"molecularWeight,omitempty"`
	InChI            string   `json:"inchi,omitempty"`
	Synonyms         []string `json:"synonyms,omitempty"`
}

// SMILES returns the isomeric SMILES when present, else the canonical one.
func (r *PubChemRecord) SMILES() string {
	if s := strings.TrimSpace(r.IsomericSMILES); s != "" {
		return s
	}
	return strings.TrimSpace(r.CanonicalSMILES)
}

// DisplayName returns the record title, else its IUPAC name.
func (r *PubChemRecord) DisplayName() string {
	if r.Title != "" {
		return r.Title
	}
	return r.IUPACName
}

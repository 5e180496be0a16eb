package molecule

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/turtacn/ChemSight/pkg/errors"
	"github.com/turtacn/ChemSight/pkg/types/common"
)

// ─────────────────────────────────────────────────────────────────────────────
// Domain Events
// ─────────────────────────────────────────────────────────────────────────────

// DomainEvent is a marker interface for compound-related domain events.
type DomainEvent interface {
	EventType() string
}

// CompoundRegisteredEvent is recorded when a new compound is created.
type CompoundRegisteredEvent struct {
	CompoundID      common.ID
	CanonicalSMILES string
	Source          string
}

func (e CompoundRegisteredEvent) EventType() string { return "compound.registered" }

// SynonymAddedEvent is recorded when an existing compound gains a name.
type SynonymAddedEvent struct {
	CompoundID common.ID
	Synonym    string
}

func (e SynonymAddedEvent) EventType() string { return "compound.synonym_added" }

// ─────────────────────────────────────────────────────────────────────────────
// Compound Aggregate Root
// ─────────────────────────────────────────────────────────────────────────────

// Compound is a resolved and analysed chemical structure. Identity is the
// canonical SMILES; names are interchangeable synonyms.
type Compound struct {
	common.BaseEntity

	Name            string      `json:"name"`
	Synonyms        []string    `json:"synonyms,omitempty"`
	SMILES          string      `json:"smiles"`
	CanonicalSMILES string      `json:"canonicalSmiles"`
	Formula         string      `json:"molecularFormula"`
	Weight          float64     `json:"molecularWeight"`
	Description     string      `json:"description,omitempty"`
	Properties      Descriptors `json:"properties"`
	Topology        Topology    `json:"topology"`
	Source          string      `json:"source"`
	PubChemCID      int64       `json:"pubchemCid,omitempty"`

	// Fingerprint is recomputed from the structure and never persisted.
	Fingerprint *Fingerprint `json:"-"`

	events []DomainEvent
}

// NewCompound parses smiles and builds a compound with formula, weight,
// descriptors, topology and a Morgan fingerprint. The parsed molecule is
// returned alongside for callers that continue with geometry.
func NewCompound(name, smiles, source string) (*Compound, *Molecule, error) {
	smiles = strings.TrimSpace(smiles)
	if smiles == "" {
		return nil, nil, errors.InvalidParam("SMILES string cannot be empty")
	}
	mol, err := ParseSMILES(smiles)
	if err != nil {
		return nil, nil, err
	}
	fp, err := MorganFingerprint(mol, DefaultMorganRadius, DefaultMorganBits)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	c := &Compound{
		BaseEntity: common.BaseEntity{
			ID:        common.NewID(),
			CreatedAt: now,
			UpdatedAt: now,
			Version:   1,
		},
		Name:            strings.TrimSpace(name),
		SMILES:          smiles,
		CanonicalSMILES: CanonicalSMILES(mol),
		Formula:         mol.UnicodeFormula(),
		Weight:          mol.MolecularWeight(),
		Properties:      ComputeDescriptors(mol),
		Topology:        ComputeTopology(mol),
		Source:          source,
		Fingerprint:     fp,
	}
	c.events = append(c.events, CompoundRegisteredEvent{
		CompoundID:      c.ID,
		CanonicalSMILES: c.CanonicalSMILES,
		Source:          source,
	})
	return c, mol, nil
}

// StructureHash is the hex SHA-256 of the canonical SMILES. It keys
// structure artefacts in object storage.
func (c *Compound) StructureHash() string {
	return StructureHash(c.CanonicalSMILES)
}

// StructureHash hashes a canonical SMILES.
func StructureHash(canonical string) string {
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// HasName reports whether name matches the compound name or a synonym,
// ignoring case.
func (c *Compound) HasName(name string) bool {
	if strings.EqualFold(c.Name, name) {
		return true
	}
	for _, s := range c.Synonyms {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}

// AddSynonym records name as an alternative name. It returns false when the
// name is blank or already known.
func (c *Compound) AddSynonym(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" || c.HasName(name) {
		return false
	}
	if c.Name == "" {
		c.Name = name
	} else {
		c.Synonyms = append(c.Synonyms, name)
	}
	c.UpdatedAt = time.Now().UTC()
	c.events = append(c.events, SynonymAddedEvent{CompoundID: c.ID, Synonym: name})
	return true
}

// Events returns the pending domain events and clears them.
func (c *Compound) Events() []DomainEvent {
	ev := c.events
	c.events = nil
	return ev
}

package depiction

import (
	"path"

	"github.com/turtacn/ChemSight/internal/domain/conformer"
	"github.com/turtacn/ChemSight/internal/domain/molecule"
)

// ContentTypeMol is the MIME type of MOL blocks.
const ContentTypeMol = "chemical/x-mdl-molfile"

// Object names of structure artefacts under a structure hash.
const (
	Name2D = "2d.svg"
	Name3D = "3d.mol"
)

// MolBlock writes the conformer as a MOL V2000 block.
func MolBlock(c *conformer.Conformer, title string) (string, error) {
	return molecule.MolBlock(c.Molecule, c.Positions(), title)
}

// Key2D is the object key of the 2D drawing of a structure.
func Key2D(structureHash string) string { return path.Join(structureHash, Name2D) }

// Key3D is the object key of the 3D conformer of a structure.
func Key3D(structureHash string) string { return path.Join(structureHash, Name3D) }

// Artifact is one rendered structure file.
type Artifact struct {
	Key         string
	ContentType string
	Content     []byte
}

// Render produces the 2D drawing of mol and the MOL block of conf, keyed by
// the structure hash of the canonical SMILES.
func Render(mol *molecule.Molecule, conf *conformer.Conformer, structureHash, title string) ([]Artifact, error) {
	opts := DefaultOptions()
	opts.Title = title
	svg, err := SVG(mol, opts)
	if err != nil {
		return nil, err
	}
	out := []Artifact{{Key: Key2D(structureHash), ContentType: ContentTypeSVG, Content: []byte(svg)}}
	if conf != nil {
		block, err := MolBlock(conf, title)
		if err != nil {
			return nil, err
		}
		out = append(out, Artifact{Key: Key3D(structureHash), ContentType: ContentTypeMol, Content: []byte(block)})
	}
	return out, nil
}

package analysis

import (
	"context"
	"strings"

	"github.com/turtacn/ChemSight/internal/domain/conformer"
	"github.com/turtacn/ChemSight/internal/domain/geometry"
	"github.com/turtacn/ChemSight/internal/domain/molecule"
	"github.com/turtacn/ChemSight/pkg/errors"
	"github.com/turtacn/ChemSight/pkg/types/chemical"
)

// Measure takes a distance, angle or dihedral on the conformer of the
// structure given as SMILES or named by a query. Atom indices address the
// 3D model: heavy atoms in SMILES order followed by hydrogens, the same
// numbering the analysis tables use.
func (s *Service) Measure(ctx context.Context, req *chemical.MeasureRequest) (*chemical.Measurement, error) {
	if req == nil {
		return nil, errors.InvalidParam("measure request is required")
	}
	kind, err := geometry.ParseMeasureKind(req.Kind)
	if err != nil {
		return nil, err
	}
	if len(req.Atoms) != kind.Arity() {
		return nil, errors.Newf(errors.ErrCodeAtomIndexOutOfRange,
			"%s takes %d atom indices, got %d", kind, kind.Arity(), len(req.Atoms))
	}

	smiles, err := s.structureFor(ctx, req)
	if err != nil {
		return nil, err
	}
	mol, err := molecule.ParseSMILES(smiles)
	if err != nil {
		return nil, err
	}
	if n := mol.HeavyAtomCount(); n > s.config.MaxHeavyAtoms {
		return nil, errors.Newf(errors.ErrCodeMoleculeTooLarge,
			"molecule has %d heavy atoms, limit is %d", n, s.config.MaxHeavyAtoms)
	}

	cctx, cancel := context.WithTimeout(ctx, s.config.ConformerTimeout)
	defer cancel()
	conf, err := conformer.Generate(cctx, mol, s.config.Conformer)
	if err != nil {
		return nil, err
	}

	elements := make([]string, conf.Molecule.NumAtoms())
	for i, a := range conf.Molecule.Atoms {
		elements[i] = a.Symbol
	}
	m, err := geometry.Measure(conf.Coords, elements, kind, req.Atoms)
	if err != nil {
		return nil, err
	}
	return &chemical.Measurement{
		Kind:           string(m.Kind),
		Atoms:          m.Atoms,
		Elements:       m.Elements,
		Value:          m.Value,
		Unit:           m.Unit,
		Classification: m.Classification,
		SMILES:         smiles,
	}, nil
}

func (s *Service) structureFor(ctx context.Context, req *chemical.MeasureRequest) (string, error) {
	if smiles := strings.TrimSpace(req.SMILES); smiles != "" {
		return smiles, nil
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return "", errors.InvalidParam("either smiles or query is required")
	}
	candidates, err := s.extractor.Extract(ctx, query)
	if err != nil {
		return "", err
	}
	rc, err := s.resolver.ResolveFirst(ctx, candidates)
	if err != nil {
		return "", err
	}
	if rc == nil || !rc.Resolved {
		return "", errors.Newf(errors.ErrCodeCompoundNotFound, "no compound found for %q", query)
	}
	return rc.SMILES, nil
}

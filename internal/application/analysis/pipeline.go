package analysis

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/ChemSight/internal/domain/conformer"
	"github.com/turtacn/ChemSight/internal/domain/depiction"
	"github.com/turtacn/ChemSight/internal/domain/geometry"
	"github.com/turtacn/ChemSight/internal/domain/molecule"
	"github.com/turtacn/ChemSight/internal/intelligence/chem_extractor"
	"github.com/turtacn/ChemSight/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemSight/pkg/errors"
	"github.com/turtacn/ChemSight/pkg/types/chemical"
)

// build analyses a resolved compound. Descriptors and topology are always
// computed from the structure; curated reference properties replace the
// computed ones when the resolution carries them.
func (s *Service) build(ctx context.Context, rc *chem_extractor.ResolvedCompound, query string) (*chemical.ChemicalResult, error) {
	stage := time.Now()
	compound, mol, err := molecule.NewCompound(rc.Name, rc.SMILES, string(rc.Method))
	if err != nil {
		return nil, err
	}
	if n := mol.HeavyAtomCount(); n > s.config.MaxHeavyAtoms {
		return nil, errors.Newf(errors.ErrCodeMoleculeTooLarge,
			"molecule has %d heavy atoms, limit is %d", n, s.config.MaxHeavyAtoms)
	}
	compound.Description = rc.Description
	compound.PubChemCID = rc.PubChemCID
	for _, syn := range rc.Synonyms {
		compound.AddSynonym(syn)
	}
	if compound.Name == "" {
		compound.Name = compound.Formula
	}

	props := compound.Properties
	if rc.Properties != nil {
		props = *rc.Properties
	}
	assessment := molecule.Assess(compound.Weight, props)
	topo := compound.Topology

	res := &chemical.ChemicalResult{
		IsDetected:       true,
		Compound:         compound.Name,
		Description:      compound.Description,
		SMILES:           compound.SMILES,
		CanonicalSMILES:  compound.CanonicalSMILES,
		MolecularFormula: compound.Formula,
		MolecularWeight:  compound.Weight,
		BondAnalysis:     []chemical.BondAnalysis{},
		Properties: &chemical.Properties{
			LogP:             props.LogP,
			PolarSurfaceArea: props.TPSA,
			RotorBonds:       props.RotatableBonds,
			HBondDonors:      props.HBondDonors,
			HBondAcceptors:   props.HBondAcceptors,
		},
		MoleculeInfo: &chemical.MoleculeInfo{
			AtomCount:      topo.AtomCount,
			BondCount:      topo.BondCount,
			RingCount:      topo.RingCount,
			AromaticRings:  topo.AromaticRings,
			HeavyAtomCount: topo.HeavyAtomCount,
			FormalCharge:   topo.FormalCharge,
		},
		Assessment: toAssessment(assessment),
		Source:     chemical.Source(rc.Method),
		Query:      query,
		PubChemCID: compound.PubChemCID,
		AnalyzedAt: time.Now().UTC(),
	}
	s.metrics.RecordStage("descriptors", time.Since(stage))

	conf, err := s.embed(ctx, mol)
	if err != nil {
		return nil, err
	}
	if conf != nil {
		stage = time.Now()
		if ga, err := geometry.Analyze(conf.Molecule, conf.Coords); err != nil {
			s.optionalFailed("geometry", err)
		} else {
			applyGeometry(res, ga)
		}
		s.metrics.RecordStage("geometry", time.Since(stage))
	}

	stage = time.Now()
	s.depict(ctx, res, compound, mol, conf)
	s.metrics.RecordStage("depiction", time.Since(stage))

	stage = time.Now()
	res.CompoundID = s.persist(ctx, compound, query)
	s.metrics.RecordStage("persist", time.Since(stage))
	return res, nil
}

// embed generates the conformer of mol. Embedding failures and the
// conformer timeout leave the result without geometry; cancellation of ctx
// itself is an error.
func (s *Service) embed(ctx context.Context, mol *molecule.Molecule) (*conformer.Conformer, error) {
	stage := time.Now()
	defer func() { s.metrics.RecordStage("conformer", time.Since(stage)) }()

	cctx, cancel := context.WithTimeout(ctx, s.config.ConformerTimeout)
	defer cancel()
	conf, err := conformer.Generate(cctx, mol, s.config.Conformer)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), errors.ErrCodeTimeout, "analysis cancelled")
		}
		s.optionalFailed("conformer", err)
		return nil, nil
	}
	s.metrics.RecordConformer(conf.Attempts)
	return conf, nil
}

func applyGeometry(res *chemical.ChemicalResult, ga *geometry.Analysis) {
	res.BondAnalysis = make([]chemical.BondAnalysis, 0, len(ga.BondAnalysis))
	for _, b := range ga.BondAnalysis {
		res.BondAnalysis = append(res.BondAnalysis, chemical.BondAnalysis(b))
	}
	res.BondMeasurements = make([]chemical.BondMeasurement, 0, len(ga.Bonds))
	for _, b := range ga.Bonds {
		res.BondMeasurements = append(res.BondMeasurements, chemical.BondMeasurement(b))
	}
	res.AngleMeasurements = make([]chemical.AngleMeasurement, 0, len(ga.Angles))
	for _, a := range ga.Angles {
		res.AngleMeasurements = append(res.AngleMeasurements, chemical.AngleMeasurement(a))
	}
	summary := chemical.BondSummary(ga.Summary)
	res.Summary = &summary
}

func toAssessment(a molecule.Assessment) *chemical.Assessment {
	out := &chemical.Assessment{
		DrugLike:      a.DrugLike,
		Label:         a.Label,
		PassedRules:   a.PassedRules,
		Lipophilicity: a.Lipophilicity,
		Polarity:      a.Polarity,
		Flexibility:   a.Flexibility,
		Size:          a.Size,
	}
	for _, c := range a.Criteria {
		out.Criteria = append(out.Criteria, chemical.LipinskiCriterion(c))
	}
	return out
}

// depict renders the structure. With a structure store the result carries
// URLs, otherwise (or when the store fails) the inline SVG and MOL block.
func (s *Service) depict(ctx context.Context, res *chemical.ChemicalResult, c *molecule.Compound, mol *molecule.Molecule, conf *conformer.Conformer) {
	artifacts, err := depiction.Render(mol, conf, c.StructureHash(), c.Name)
	if err != nil {
		s.optionalFailed("depiction", err)
		return
	}

	inline := func() {
		for _, a := range artifacts {
			switch a.ContentType {
			case depiction.ContentTypeSVG:
				res.Structure2D = string(a.Content)
			case depiction.ContentTypeMol:
				res.Structure3D = string(a.Content)
			}
		}
	}
	if s.store == nil || s.config.InlineStructures {
		inline()
		return
	}

	if err := s.store.Put(ctx, artifacts); err != nil {
		s.optionalFailed("structure_store", err)
		inline()
		return
	}
	for _, a := range artifacts {
		url, err := s.store.URL(ctx, a.Key)
		if err != nil {
			s.optionalFailed("structure_store", err)
			inline()
			return
		}
		switch a.ContentType {
		case depiction.ContentTypeSVG:
			res.Structure2D = url
		case depiction.ContentTypeMol:
			res.Structure3D = url
		}
	}
}

// persist registers the compound and publishes the analysed event. It runs
// under a per-structure lock; when another instance holds the lock both steps
// are left to it. The returned ID is empty when nothing was persisted.
func (s *Service) persist(ctx context.Context, c *molecule.Compound, query string) string {
	if s.registry == nil && s.publisher == nil {
		return ""
	}
	if s.locker != nil {
		release, err := s.locker.TryLock(ctx, "persist:"+c.StructureHash(), s.config.PersistLockTTL)
		switch {
		case err == nil:
			defer func() {
				if err := release(context.WithoutCancel(ctx)); err != nil {
					s.logger.Debug("persist lock release failed", logging.Err(err))
				}
			}()
		case errors.IsConflict(err):
			s.logger.Debug("structure is being persisted elsewhere",
				logging.String("canonical_smiles", c.CanonicalSMILES))
			return ""
		default:
			s.optionalFailed("lock", err)
		}
	}

	id := ""
	if s.registry != nil {
		stored, err := s.registry.Register(ctx, c.Name, c.SMILES, c.Description, c.Source)
		if err != nil {
			s.optionalFailed("persist", err)
		} else {
			id = string(stored.ID)
		}
	}

	if s.publisher != nil {
		ev := &chemical.CompoundAnalyzedEvent{
			EventID:          uuid.NewString(),
			CompoundID:       id,
			Name:             c.Name,
			Synonyms:         c.Synonyms,
			SMILES:           c.SMILES,
			CanonicalSMILES:  c.CanonicalSMILES,
			MolecularFormula: c.Formula,
			MolecularWeight:  c.Weight,
			Description:      c.Description,
			Source:           chemical.Source(c.Source),
			Query:            query,
			OccurredAt:       time.Now().UTC(),
		}
		if err := s.publisher.PublishCompoundAnalyzed(ctx, ev); err != nil {
			s.optionalFailed("publish", err)
		}
	}
	return id
}

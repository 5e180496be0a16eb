package molecule

import (
	"context"

	"github.com/turtacn/ChemSight/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemSight/pkg/errors"
	"github.com/turtacn/ChemSight/pkg/types/common"
)

// Service coordinates compound registration and lookup on top of a
// Repository.
type Service struct {
	repo   Repository
	logger logging.Logger
}

// NewService constructs a compound domain service.
func NewService(repo Repository, logger logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Service{
		repo:   repo,
		logger: logger.Named("compound"),
	}
}

// Register stores a compound for smiles, deduplicating by canonical SMILES.
// An existing compound gains name as a synonym; otherwise a new compound is
// created with the supplied description and source.
func (s *Service) Register(ctx context.Context, name, smiles, description, source string) (*Compound, error) {
	c, _, err := NewCompound(name, smiles, source)
	if err != nil {
		return nil, err
	}
	c.Description = description

	existing, err := s.repo.FindByCanonicalSMILES(ctx, c.CanonicalSMILES)
	switch {
	case err == nil:
		if existing.AddSynonym(name) {
			if err := s.repo.Save(ctx, existing); err != nil {
				return nil, errors.Wrap(err, errors.CodeDBQueryError, "failed to update compound synonyms")
			}
			s.logger.Debug("compound synonym added",
				logging.String("id", string(existing.ID)),
				logging.String("synonym", name))
		}
		return existing, nil
	case !errors.IsNotFound(err):
		return nil, errors.Wrap(err, errors.CodeDBQueryError, "failed to check for existing compound")
	}

	if err := s.repo.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, errors.CodeDBQueryError, "failed to save compound")
	}
	s.logger.Info("registered compound",
		logging.String("id", string(c.ID)),
		logging.String("canonical_smiles", c.CanonicalSMILES),
		logging.String("source", source))
	return c, nil
}

// Get retrieves a compound by ID.
func (s *Service) Get(ctx context.Context, id common.ID) (*Compound, error) {
	if err := id.Validate(); err != nil {
		return nil, errors.InvalidParam(err.Error())
	}
	return s.repo.FindByID(ctx, id)
}

// FindByName looks a compound up by name or synonym.
func (s *Service) FindByName(ctx context.Context, name string) (*Compound, error) {
	if name == "" {
		return nil, errors.InvalidParam("name cannot be empty")
	}
	return s.repo.FindByName(ctx, name)
}

// FindBySMILES canonicalises smiles and looks the structure up.
func (s *Service) FindBySMILES(ctx context.Context, smiles string) (*Compound, error) {
	mol, err := ParseSMILES(smiles)
	if err != nil {
		return nil, err
	}
	return s.repo.FindByCanonicalSMILES(ctx, CanonicalSMILES(mol))
}

// List returns a page of compounds.
func (s *Service) List(ctx context.Context, page common.Pagination) (*common.PaginatedResult[*Compound], error) {
	if err := page.Validate(); err != nil {
		return nil, errors.InvalidParam(err.Error())
	}
	return s.repo.List(ctx, page)
}

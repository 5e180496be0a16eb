package molecule

import (
	"context"

	"github.com/turtacn/ChemSight/pkg/types/common"
)

// Repository defines the persistence contract for Compound aggregates.
type Repository interface {
	// Save inserts a compound or updates the one with the same canonical
	// SMILES. Returns errors.CodeConflict on a version mismatch.
	Save(ctx context.Context, c *Compound) error

	// FindByID returns errors.CodeCompoundNotFound when no compound has id.
	FindByID(ctx context.Context, id common.ID) (*Compound, error)

	// FindByCanonicalSMILES returns errors.CodeCompoundNotFound when absent.
	FindByCanonicalSMILES(ctx context.Context, canonical string) (*Compound, error)

	// FindByName matches the name or any synonym, ignoring case.
	FindByName(ctx context.Context, name string) (*Compound, error)

	List(ctx context.Context, page common.Pagination) (*common.PaginatedResult[*Compound], error)

	Delete(ctx context.Context, id common.ID) error

	Count(ctx context.Context) (int64, error)
}

package conformer

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/turtacn/ChemSight/internal/domain/molecule"
	"github.com/turtacn/ChemSight/pkg/errors"
)

// Defaults for Options.
const (
	DefaultAttempts      = 3
	DefaultMaxIterations = 500
	DefaultGradientTol   = 1e-4
	DefaultMaxAtoms      = 400
	jitterXY             = 0.15
	jitterZ              = 0.6
)

// Options tunes conformer generation.
type Options struct {
	// Attempts is the number of independently jittered starts; the lowest
	// energy result is kept.
	Attempts int
	// MaxIterations bounds each minimisation.
	MaxIterations int
	// GradientTol is the gradient norm below which a minimisation counts as
	// converged.
	GradientTol float64
	// MaxAtoms rejects molecules with more atoms (hydrogens included).
	MaxAtoms int
	// Seed overrides the seed derived from the canonical SMILES when non-zero.
	Seed int64
}

// DefaultOptions returns the options used by the analysis pipeline.
func DefaultOptions() Options {
	return Options{
		Attempts:      DefaultAttempts,
		MaxIterations: DefaultMaxIterations,
		GradientTol:   DefaultGradientTol,
		MaxAtoms:      DefaultMaxAtoms,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Attempts <= 0 {
		o.Attempts = d.Attempts
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = d.MaxIterations
	}
	if o.GradientTol <= 0 {
		o.GradientTol = d.GradientTol
	}
	if o.MaxAtoms <= 0 {
		o.MaxAtoms = d.MaxAtoms
	}
	return o
}

// Conformer is a 3D embedding of a molecule with explicit hydrogens. Heavy
// atoms keep their input indices; hydrogens follow in parent order.
type Conformer struct {
	Molecule  *molecule.Molecule
	Coords    []r3.Vec
	Energy    float64
	Converged bool
	Attempts  int
}

// Positions returns the coordinates as plain triples, the form MOL blocks
// take.
func (c *Conformer) Positions() [][3]float64 {
	out := make([][3]float64, len(c.Coords))
	for i, p := range c.Coords {
		out[i] = [3]float64{p.X, p.Y, p.Z}
	}
	return out
}

// Generate embeds m in 3D. Hydrogens are made explicit, the 2D layout is
// lifted with deterministic jitter and each attempt is minimised with
// L-BFGS. The same molecule always yields the same conformer.
func Generate(ctx context.Context, m *molecule.Molecule, opts Options) (*Conformer, error) {
	opts = opts.withDefaults()
	if m == nil || m.NumAtoms() == 0 {
		return nil, errors.New(errors.ErrCodeEmbeddingFailed, "molecule has no atoms")
	}
	full := m.AddHydrogens()
	if full.NumAtoms() > opts.MaxAtoms {
		return nil, errors.Newf(errors.ErrCodeMoleculeTooLarge,
			"molecule has %d atoms with hydrogens, limit is %d", full.NumAtoms(), opts.MaxAtoms)
	}

	seed := opts.Seed
	if seed == 0 {
		seed = seedFor(m)
	}
	ff := newForceField(full)
	start := Layout2D(full)

	var best *Conformer
	for attempt := 0; attempt < opts.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeTimeout, "conformer generation cancelled")
		}
		rng := rand.New(rand.NewSource(seed + int64(attempt)*7919))
		x0 := make([]float64, 3*full.NumAtoms())
		for i, p := range start {
			x0[3*i] = p.X + jitterXY*(rng.Float64()-0.5)
			x0[3*i+1] = p.Y + jitterXY*(rng.Float64()-0.5)
			x0[3*i+2] = jitterZ * (rng.Float64() - 0.5)
		}

		x, e, converged, err := minimise(ctx, ff, x0, opts)
		if err != nil {
			continue
		}
		if best == nil || e < best.Energy {
			best = &Conformer{Molecule: full, Coords: toVecs(x), Energy: e, Converged: converged}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTimeout, "conformer generation cancelled")
	}
	if best == nil {
		return nil, errors.New(errors.ErrCodeEmbeddingFailed, "no attempt produced finite coordinates")
	}
	best.Attempts = opts.Attempts
	center(best.Coords)
	return best, nil
}

func minimise(ctx context.Context, ff *forceField, x0 []float64, opts Options) ([]float64, float64, bool, error) {
	problem := optimize.Problem{
		Func: func(x []float64) float64 { return ff.energy(x, nil) },
		Grad: func(grad, x []float64) { ff.energy(x, grad) },
	}
	settings := &optimize.Settings{
		GradientThreshold: opts.GradientTol,
		MajorIterations:   opts.MaxIterations,
		Converger:         &contextConverger{ctx: ctx},
	}
	result, err := optimize.Minimize(problem, x0, settings, &optimize.LBFGS{})
	if result == nil {
		if err == nil {
			return nil, 0, false, errors.New(errors.ErrCodeEmbeddingFailed, "minimisation returned no result")
		}
		return nil, 0, false, errors.Wrap(err, errors.ErrCodeEmbeddingFailed, "minimisation failed")
	}
	// line search failures still leave the best location found
	x, e := result.X, result.F
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, 0, false, errors.New(errors.ErrCodeEmbeddingFailed, "non-finite coordinates")
		}
	}
	converged := err == nil && result.Status == optimize.GradientThreshold
	return x, e, converged, nil
}

// contextConverger stops a minimisation when ctx is done.
type contextConverger struct {
	ctx context.Context
}

func (c *contextConverger) Init(int) {}

func (c *contextConverger) Converged(*optimize.Location) optimize.Status {
	if c.ctx.Err() != nil {
		return optimize.RuntimeLimit
	}
	return optimize.NotTerminated
}

// seedFor derives the jitter seed from the canonical SMILES so that
// equivalent inputs share a conformer.
func seedFor(m *molecule.Molecule) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(molecule.CanonicalSMILES(m)))
	return int64(h.Sum64() & math.MaxInt64)
}

func toVecs(x []float64) []r3.Vec {
	out := make([]r3.Vec, len(x)/3)
	for i := range out {
		out[i] = at(x, i)
	}
	return out
}

// center moves the centroid to the origin.
func center(ps []r3.Vec) {
	var c r3.Vec
	for _, p := range ps {
		c = r3.Add(c, p)
	}
	c = r3.Scale(1/float64(len(ps)), c)
	for i := range ps {
		ps[i] = r3.Sub(ps[i], c)
	}
}

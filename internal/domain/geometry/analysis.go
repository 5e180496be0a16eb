package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/turtacn/ChemSight/internal/domain/molecule"
	"github.com/turtacn/ChemSight/pkg/errors"
)

// Distance classes.
const (
	DistanceShort  = "Short"
	DistanceNormal = "Normal"
	DistanceLong   = "Long"
)

// Single-angle classes.
const (
	AngleLinear = "Linear"
	AngleAcute  = "Acute"
	AngleObtuse = "Obtuse"
	AngleBent   = "Bent"
)

// Geometry classes of an average angle.
const (
	GeometryTrigonal    = "Trigonal"
	GeometryTetrahedral = "Tetrahedral"
	GeometryBent        = "Bent"
	GeometryCustom      = "Custom"
)

// GeometryTolerance is how far (degrees) an average angle may be from an
// ideal value and still be classified as that geometry.
const GeometryTolerance = 1.5

// ClassifyDistance buckets a bond distance in Å.
func ClassifyDistance(d float64) string {
	switch {
	case d < 1.2:
		return DistanceShort
	case d > 2.0:
		return DistanceLong
	}
	return DistanceNormal
}

// ClassifyAngle buckets a single valence angle in degrees.
func ClassifyAngle(a float64) string {
	switch {
	case a >= 179:
		return AngleLinear
	case a < 90:
		return AngleAcute
	case a > 150:
		return AngleObtuse
	}
	return AngleBent
}

// ClassifyGeometry names the ideal geometry an average angle is closest to.
func ClassifyGeometry(avg float64) string {
	switch {
	case math.Abs(avg-120) <= GeometryTolerance:
		return GeometryTrigonal
	case math.Abs(avg-109.5) <= GeometryTolerance:
		return GeometryTetrahedral
	case math.Abs(avg-104.5) <= GeometryTolerance:
		return GeometryBent
	}
	return GeometryCustom
}

// BondAggregate groups the bonds sharing a label.
type BondAggregate struct {
	BondType        string    `json:"bondType"`
	Count           int       `json:"count"`
	Percentage      float64   `json:"percentage"`
	AverageDistance float64   `json:"averageDistance"`
	AverageAngle    float64   `json:"averageAngle"`
	Geometry        string    `json:"geometry,omitempty"`
	Distances       []float64 `json:"distances"`
	Angles          []float64 `json:"angles"`
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

// Summary condenses an analysis.
type Summary struct {
	TotalBonds      int     `json:"totalBonds"`
	AverageDistance float64 `json:"averageDistance"`
	AverageAngle    float64 `json:"averageAngle"`
	MinDistance     float64 `json:"minDistance"`
	MaxDistance     float64 `json:"maxDistance"`
	MinAngle        float64 `json:"minAngle"`
	MaxAngle        float64 `json:"maxAngle"`
	UniqueBondTypes int     `json:"uniqueBondTypes"`
}

// Analysis is the geometry report of a conformer.
type Analysis struct {
	BondAnalysis []BondAggregate    `json:"bondAnalysis"`
	Bonds        []BondMeasurement  `json:"bondMeasurements"`
	Angles       []AngleMeasurement `json:"angleMeasurements"`
	Summary      Summary            `json:"summary"`
}

// Analyze measures every bond and valence angle of m at coords. m is
// expected to carry explicit hydrogens so that X-H bonds are reported.
func Analyze(m *molecule.Molecule, coords []r3.Vec) (*Analysis, error) {
	if len(coords) != m.NumAtoms() {
		return nil, errors.Newf(errors.ErrCodeDegenerateGeometry,
			"have %d coordinates for %d atoms", len(coords), m.NumAtoms())
	}

	out := &Analysis{}
	index := map[string]int{}
	for b := range m.Bonds {
		first, second := orderedAtoms(m, b)
		label := BondLabel(m, b)
		d := r3.Norm(r3.Sub(coords[first], coords[second]))

		out.Bonds = append(out.Bonds, BondMeasurement{
			Serial:         len(out.Bonds) + 1,
			Atoms:          [2]int{first, second},
			Elements:       [2]string{m.Atoms[first].Symbol, m.Atoms[second].Symbol},
			Label:          atomLabel(first, m.Atoms[first].Symbol) + "-" + atomLabel(second, m.Atoms[second].Symbol),
			BondType:       label,
			Distance:       round(d, 3),
			Classification: ClassifyDistance(d),
		})

		k, ok := index[label]
		if !ok {
			k = len(out.BondAnalysis)
			index[label] = k
			out.BondAnalysis = append(out.BondAnalysis, BondAggregate{BondType: label, Distances: []float64{}, Angles: []float64{}})
		}
		agg := &out.BondAnalysis[k]
		agg.Count++
		agg.Distances = append(agg.Distances, round(d, 3))
		if a, ok := bondAngleSample(m, coords, b); ok {
			agg.Angles = append(agg.Angles, round(a, 2))
		}
	}

	for j := range m.Atoms {
		nbs := m.Neighbors(j)
		for x := 0; x < len(nbs); x++ {
			for y := x + 1; y < len(nbs); y++ {
				i, k := nbs[x], nbs[y]
				a, err := angle(coords[i], coords[j], coords[k])
				if err != nil {
					continue
				}
				out.Angles = append(out.Angles, AngleMeasurement{
					Serial:   len(out.Angles) + 1,
					Atoms:    [3]int{i, j, k},
					Elements: [3]string{m.Atoms[i].Symbol, m.Atoms[j].Symbol, m.Atoms[k].Symbol},
					Label: atomLabel(i, m.Atoms[i].Symbol) + "-" + atomLabel(j, m.Atoms[j].Symbol) +
						"-" + atomLabel(k, m.Atoms[k].Symbol),
					Angle:          round(a, 2),
					Classification: ClassifyAngle(a),
				})
			}
		}
	}

	total := len(m.Bonds)
	for k := range out.BondAnalysis {
		agg := &out.BondAnalysis[k]
		agg.Percentage = round(float64(agg.Count)/float64(total)*100, 1)
		agg.AverageDistance = round(mean(agg.Distances), 3)
		if len(agg.Angles) > 0 {
			agg.AverageAngle = round(mean(agg.Angles), 1)
			agg.Geometry = ClassifyGeometry(agg.AverageAngle)
		}
	}
	out.Summary = summarise(out)
	return out, nil
}

// orderedAtoms returns the bond's atoms in label order.
func orderedAtoms(m *molecule.Molecule, b int) (int, int) {
	bond := m.Bonds[b]
	x, y := bond.Begin, bond.End
	if elementLess(m.Atoms[y].Symbol, m.Atoms[x].Symbol) {
		x, y = y, x
	}
	return x, y
}

// elementLess orders element symbols C first, H last and the rest
// alphabetically.
func elementLess(a, b string) bool {
	rank := func(s string) int {
		switch s {
		case "C":
			return 0
		case "H":
			return 2
		}
		return 1
	}
	if ra, rb := rank(a), rank(b); ra != rb {
		return ra < rb
	}
	return a < b
}

// BondLabel names a bond type, e.g. "C-C Aromatic", "C=O", "O-H".
func BondLabel(m *molecule.Molecule, b int) string {
	x, y := orderedAtoms(m, b)
	ex, ey := m.Atoms[x].Symbol, m.Atoms[y].Symbol
	switch m.Bonds[b].Order {
	case molecule.BondDouble:
		return ex + "=" + ey
	case molecule.BondTriple:
		return ex + "≡" + ey
	case molecule.BondAromatic:
		return ex + "-" + ey + " Aromatic"
	}
	return ex + "-" + ey
}

// bondAngleSample is the mean valence angle at the bond's anchor atom (the
// heavier non-hydrogen end) over the anchor's other neighbours, falling back
// to the other end.
func bondAngleSample(m *molecule.Molecule, coords []r3.Vec, b int) (float64, bool) {
	bond := m.Bonds[b]
	anchor, other := bond.Begin, bond.End
	wa, wo := atomWeight(m.Atoms[anchor]), atomWeight(m.Atoms[other])
	if wo > wa {
		anchor, other = other, anchor
	}
	if a, ok := meanAngleAt(m, coords, anchor, other); ok {
		return a, true
	}
	return meanAngleAt(m, coords, other, anchor)
}

func atomWeight(a molecule.Atom) float64 {
	if a.IsHydrogen() {
		return 0
	}
	return a.Element().Weight
}

func meanAngleAt(m *molecule.Molecule, coords []r3.Vec, vertex, partner int) (float64, bool) {
	var samples []float64
	for _, nb := range m.Neighbors(vertex) {
		if nb == partner {
			continue
		}
		if a, err := angle(coords[nb], coords[vertex], coords[partner]); err == nil {
			samples = append(samples, a)
		}
	}
	if len(samples) == 0 {
		return 0, false
	}
	return mean(samples), true
}

func summarise(a *Analysis) Summary {
	s := Summary{TotalBonds: len(a.Bonds), UniqueBondTypes: len(a.BondAnalysis)}
	if len(a.BondAnalysis) == 0 {
		return s
	}
	var dists, angles []float64
	for _, agg := range a.BondAnalysis {
		dists = append(dists, agg.AverageDistance)
		if len(agg.Angles) > 0 {
			angles = append(angles, agg.AverageAngle)
		}
	}
	s.AverageDistance = round(mean(dists), 3)
	s.AverageAngle = round(mean(angles), 1)

	s.MinDistance, s.MaxDistance = math.Inf(1), math.Inf(-1)
	for _, b := range a.Bonds {
		s.MinDistance = math.Min(s.MinDistance, b.Distance)
		s.MaxDistance = math.Max(s.MaxDistance, b.Distance)
	}
	if len(a.Angles) > 0 {
		s.MinAngle, s.MaxAngle = math.Inf(1), math.Inf(-1)
		for _, x := range a.Angles {
			s.MinAngle = math.Min(s.MinAngle, x.Angle)
			s.MaxAngle = math.Max(s.MaxAngle, x.Angle)
		}
	}
	return s
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

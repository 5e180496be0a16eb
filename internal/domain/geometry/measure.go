// Package geometry measures and classifies bond distances and valence angles
// of a 3D conformer and aggregates them per bond type.
package geometry

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/turtacn/ChemSight/pkg/errors"
)

// MeasureKind selects a measurement.
type MeasureKind string

const (
	KindDistance MeasureKind = "distance"
	KindAngle    MeasureKind = "angle"
	KindDihedral MeasureKind = "dihedral"
)

// Arity is the number of atoms the measurement takes.
func (k MeasureKind) Arity() int {
	switch k {
	case KindDistance:
		return 2
	case KindAngle:
		return 3
	case KindDihedral:
		return 4
	}
	return 0
}

// Unit is the unit of the measured value.
func (k MeasureKind) Unit() string {
	if k == KindDistance {
		return "Å"
	}
	return "°"
}

// ParseMeasureKind accepts the kind names case-insensitively.
func ParseMeasureKind(s string) (MeasureKind, error) {
	k := MeasureKind(strings.ToLower(strings.TrimSpace(s)))
	if k.Arity() == 0 {
		return "", errors.Newf(errors.ErrCodeMeasureKindInvalid, "unsupported measurement kind %q", s)
	}
	return k, nil
}

// Measurement is the result of Measure.
type Measurement struct {
	Kind           MeasureKind `json:"kind"`
	Atoms          []int       `json:"atoms"`
	Elements       []string    `json:"elements"`
	Value          float64     `json:"value"`
	Unit           string      `json:"unit"`
	Classification string      `json:"classification,omitempty"`
}

func checkIndices(n int, idx ...int) error {
	seen := make(map[int]bool, len(idx))
	for _, i := range idx {
		if i < 0 || i >= n {
			return errors.Newf(errors.ErrCodeAtomIndexOutOfRange, "atom index %d out of range [0, %d)", i, n)
		}
		if seen[i] {
			return errors.Newf(errors.ErrCodeAtomIndexOutOfRange, "atom index %d repeated", i)
		}
		seen[i] = true
	}
	return nil
}

// MeasureDistance returns |ij| in Å.
func MeasureDistance(coords []r3.Vec, i, j int) (float64, error) {
	if err := checkIndices(len(coords), i, j); err != nil {
		return 0, err
	}
	return r3.Norm(r3.Sub(coords[i], coords[j])), nil
}

// MeasureAngle returns the angle i-j-k in degrees; j is the vertex.
func MeasureAngle(coords []r3.Vec, i, j, k int) (float64, error) {
	if err := checkIndices(len(coords), i, j, k); err != nil {
		return 0, err
	}
	return angle(coords[i], coords[j], coords[k])
}

// MeasureDihedral returns the torsion i-j-k-l in degrees, in (-180, 180].
func MeasureDihedral(coords []r3.Vec, i, j, k, l int) (float64, error) {
	if err := checkIndices(len(coords), i, j, k, l); err != nil {
		return 0, err
	}
	b1 := r3.Sub(coords[j], coords[i])
	b2 := r3.Sub(coords[k], coords[j])
	b3 := r3.Sub(coords[l], coords[k])
	n1 := r3.Cross(b1, b2)
	n2 := r3.Cross(b2, b3)
	if r3.Norm(n1) < 1e-9 || r3.Norm(n2) < 1e-9 {
		return 0, errors.New(errors.ErrCodeDegenerateGeometry, "dihedral undefined for collinear atoms")
	}
	y := r3.Norm(b2) * r3.Dot(b1, n2)
	x := r3.Dot(n1, n2)
	return normalizeTorsion(math.Atan2(y, x) * 180 / math.Pi), nil
}

// normalizeTorsion maps -180 to 180 so torsions fall in (-180, 180].
func normalizeTorsion(d float64) float64 {
	if d <= -180 {
		return d + 360
	}
	return d
}

func angle(a, vertex, b r3.Vec) (float64, error) {
	u, v := r3.Sub(a, vertex), r3.Sub(b, vertex)
	if r3.Norm(u) < 1e-9 || r3.Norm(v) < 1e-9 {
		return 0, errors.New(errors.ErrCodeDegenerateGeometry, "angle undefined for coincident atoms")
	}
	c := math.Max(-1, math.Min(1, r3.Cos(u, v)))
	return math.Acos(c) * 180 / math.Pi, nil
}

// Measure dispatches on kind. elements names the atoms for the result and
// may be nil.
func Measure(coords []r3.Vec, elements []string, kind MeasureKind, atoms []int) (*Measurement, error) {
	if kind.Arity() == 0 {
		return nil, errors.Newf(errors.ErrCodeMeasureKindInvalid, "unsupported measurement kind %q", kind)
	}
	if len(atoms) != kind.Arity() {
		return nil, errors.Newf(errors.ErrCodeAtomIndexOutOfRange,
			"%s takes %d atom indices, got %d", kind, kind.Arity(), len(atoms))
	}

	var (
		v   float64
		err error
		cls string
	)
	switch kind {
	case KindDistance:
		v, err = MeasureDistance(coords, atoms[0], atoms[1])
		cls = ClassifyDistance(v)
	case KindAngle:
		v, err = MeasureAngle(coords, atoms[0], atoms[1], atoms[2])
		cls = ClassifyAngle(v)
	case KindDihedral:
		v, err = MeasureDihedral(coords, atoms[0], atoms[1], atoms[2], atoms[3])
	}
	if err != nil {
		return nil, err
	}

	out := &Measurement{
		Kind:           kind,
		Atoms:          append([]int(nil), atoms...),
		Value:          round(v, 3),
		Unit:           kind.Unit(),
		Classification: cls,
	}
	if kind == KindDihedral {
		out.Value = normalizeTorsion(out.Value)
	}
	if elements != nil {
		for _, a := range atoms {
			out.Elements = append(out.Elements, elements[a])
		}
	}
	return out, nil
}

func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	r := math.Round(v*p) / p
	if r == 0 {
		return 0
	}
	return r
}

// atomLabel renders "3(C)".
func atomLabel(i int, element string) string {
	return fmt.Sprintf("%d(%s)", i, element)
}
